// Package types defines the data vocabulary shared by every storage
// backend: task maps, the operation log's variant, sync metadata, and
// the working set. None of these types interpret their own payloads;
// that is left to higher layers (the task business object, the sync
// client) which are out of scope for this module.
package types

import (
	"time"

	"github.com/google/uuid"
)

// VersionId identifies a point-in-time server snapshot, as tracked by
// the sync client. The all-zero UUID is the well-known default for an
// unset base_version.
type VersionId = uuid.UUID

// DefaultBaseVersion is the value base_version() returns when no
// sync_meta row has been written yet.
var DefaultBaseVersion = uuid.Nil

// TaskMap is a task's full state: an opaque string-to-string
// dictionary. Storage never interprets keys or values.
type TaskMap map[string]string

// TaskMapWith builds a TaskMap from key/value pairs, mirroring the
// test helper the original storage tests use to build expected values.
func TaskMapWith(pairs ...[2]string) TaskMap {
	m := make(TaskMap, len(pairs))
	for _, p := range pairs {
		m[p[0]] = p[1]
	}
	return m
}

// Clone returns a shallow copy, used by the in-memory backend so a
// caller's mutations to a returned map never leak into storage state.
func (m TaskMap) Clone() TaskMap {
	if m == nil {
		return nil
	}
	c := make(TaskMap, len(m))
	for k, v := range m {
		c[k] = v
	}
	return c
}

// OpKind distinguishes the four Operation shapes.
type OpKind int

const (
	OpCreate OpKind = iota
	OpDelete
	OpUpdate
	OpUndoPoint
)

func (k OpKind) String() string {
	switch k {
	case OpCreate:
		return "create"
	case OpDelete:
		return "delete"
	case OpUpdate:
		return "update"
	case OpUndoPoint:
		return "undo_point"
	default:
		return "unknown"
	}
}

// Operation is a single mutation record in the operation log. Only the
// fields relevant to Kind are populated; see the constructors below.
//
//   - Create:    Uuid
//   - Delete:    Uuid
//   - Update:    Uuid, Property, OldValue, NewValue, Timestamp
//   - UndoPoint: (no payload)
type Operation struct {
	Kind      OpKind
	Uuid      uuid.UUID
	Property  string
	OldValue  *string
	NewValue  *string
	Timestamp time.Time
}

// Create builds a Create operation.
func Create(id uuid.UUID) Operation {
	return Operation{Kind: OpCreate, Uuid: id}
}

// Delete builds a Delete operation.
func Delete(id uuid.UUID) Operation {
	return Operation{Kind: OpDelete, Uuid: id}
}

// Update builds an Update operation. old and new may be nil, meaning
// the property was absent on that side of the change.
func Update(id uuid.UUID, property string, old, new *string, ts time.Time) Operation {
	return Operation{
		Kind:      OpUpdate,
		Uuid:      id,
		Property:  property,
		OldValue:  old,
		NewValue:  new,
		Timestamp: ts,
	}
}

// UndoPoint builds an undo-boundary marker.
func UndoPoint() Operation {
	return Operation{Kind: OpUndoPoint}
}

// Equal reports structural equality, respecting nil-vs-empty OldValue
// and NewValue rather than comparing pointers.
func (o Operation) Equal(other Operation) bool {
	if o.Kind != other.Kind {
		return false
	}
	switch o.Kind {
	case OpCreate, OpDelete:
		return o.Uuid == other.Uuid
	case OpUpdate:
		if o.Uuid != other.Uuid || o.Property != other.Property {
			return false
		}
		if !stringPtrEqual(o.OldValue, other.OldValue) {
			return false
		}
		if !stringPtrEqual(o.NewValue, other.NewValue) {
			return false
		}
		return o.Timestamp.Equal(other.Timestamp)
	case OpUndoPoint:
		return true
	default:
		return false
	}
}

func stringPtrEqual(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// WorkingSet is the 1-indexed slot array returned by get_working_set:
// position 0 is always the empty sentinel.
type WorkingSet []*uuid.UUID

// LowestEmptySlot implements the algorithm of spec.md §4.2: scan
// positions 1..len(ws)-1 for the first empty slot; if none is empty,
// the task is appended one past the current highest index. The
// returned index is always >= 1.
func LowestEmptySlot(ws WorkingSet) int {
	for i := 1; i < len(ws); i++ {
		if ws[i] == nil {
			return i
		}
	}
	if len(ws) == 0 {
		return 1
	}
	return len(ws)
}
