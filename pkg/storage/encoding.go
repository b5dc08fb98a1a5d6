package storage

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/taskchampion/taskchampion/pkg/types"
)

// encodeTaskMap serializes a TaskMap as JSON. encoding/json sorts map
// keys, so the output is deterministic for a given input; decoding it
// back reproduces the same map, satisfying spec §4.4's round-trip
// requirement.
func encodeTaskMap(tm types.TaskMap) ([]byte, error) {
	data, err := json.Marshal(tm)
	if err != nil {
		return nil, fmt.Errorf("storage: encode task: %w", err)
	}
	return data, nil
}

func decodeTaskMap(data []byte) (types.TaskMap, error) {
	var tm types.TaskMap
	if err := json.Unmarshal(data, &tm); err != nil {
		return nil, fmt.Errorf("%w: task data: %v", ErrCorrupt, err)
	}
	if tm == nil {
		tm = types.TaskMap{}
	}
	return tm, nil
}

// opRecord is the on-disk shape of an Operation: a tagged variant with
// only the fields relevant to Kind populated.
type opRecord struct {
	Kind      string  `json:"kind"`
	Uuid      string  `json:"uuid,omitempty"`
	Property  string  `json:"property,omitempty"`
	OldValue  *string `json:"old_value,omitempty"`
	NewValue  *string `json:"new_value,omitempty"`
	Timestamp int64   `json:"timestamp,omitempty"` // unix nanoseconds
}

func encodeOperation(op types.Operation) ([]byte, error) {
	rec := opRecord{Kind: op.Kind.String()}
	switch op.Kind {
	case types.OpCreate, types.OpDelete:
		rec.Uuid = op.Uuid.String()
	case types.OpUpdate:
		rec.Uuid = op.Uuid.String()
		rec.Property = op.Property
		rec.OldValue = op.OldValue
		rec.NewValue = op.NewValue
		rec.Timestamp = op.Timestamp.UnixNano()
	case types.OpUndoPoint:
		// no payload
	default:
		return nil, fmt.Errorf("storage: encode operation: unknown kind %v", op.Kind)
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("storage: encode operation: %w", err)
	}
	return data, nil
}

func decodeOperation(data []byte) (types.Operation, error) {
	var rec opRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return types.Operation{}, fmt.Errorf("%w: operation data: %v", ErrCorrupt, err)
	}

	switch rec.Kind {
	case "create":
		id, err := uuid.Parse(rec.Uuid)
		if err != nil {
			return types.Operation{}, fmt.Errorf("%w: operation uuid %q: %v", ErrCorrupt, rec.Uuid, err)
		}
		return types.Create(id), nil
	case "delete":
		id, err := uuid.Parse(rec.Uuid)
		if err != nil {
			return types.Operation{}, fmt.Errorf("%w: operation uuid %q: %v", ErrCorrupt, rec.Uuid, err)
		}
		return types.Delete(id), nil
	case "update":
		id, err := uuid.Parse(rec.Uuid)
		if err != nil {
			return types.Operation{}, fmt.Errorf("%w: operation uuid %q: %v", ErrCorrupt, rec.Uuid, err)
		}
		ts := time.Unix(0, rec.Timestamp).UTC()
		return types.Update(id, rec.Property, rec.OldValue, rec.NewValue, ts), nil
	case "undo_point":
		return types.UndoPoint(), nil
	default:
		return types.Operation{}, fmt.Errorf("%w: unknown operation kind %q", ErrCorrupt, rec.Kind)
	}
}
