package storage

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/taskchampion/taskchampion/pkg/types"
)

func TestTaskMapRoundTrip(t *testing.T) {
	tm := types.TaskMapWith(
		[2]string{"description", "write tests"},
		[2]string{"status", "pending"},
		[2]string{"due", "20260801T000000Z"},
	)

	data, err := encodeTaskMap(tm)
	require.NoError(t, err)

	got, err := decodeTaskMap(data)
	require.NoError(t, err)

	if diff := cmp.Diff(tm, got); diff != "" {
		t.Errorf("TaskMap round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestDecodeTaskMapCorrupt(t *testing.T) {
	_, err := decodeTaskMap([]byte("not json"))
	require.ErrorIs(t, err, ErrCorrupt)
}

func TestOperationRoundTrip(t *testing.T) {
	id := uuid.New()
	old, new := "a", "b"
	ts := time.Now().Truncate(time.Nanosecond)

	ops := []types.Operation{
		types.Create(id),
		types.Delete(id),
		types.Update(id, "status", &old, &new, ts),
		types.Update(id, "status", nil, &new, ts),
		types.UndoPoint(),
	}

	for _, op := range ops {
		data, err := encodeOperation(op)
		require.NoError(t, err)

		got, err := decodeOperation(data)
		require.NoError(t, err)

		if !op.Equal(got) {
			t.Errorf("Operation round trip mismatch: want %+v, got %+v", op, got)
		}
	}
}

func TestDecodeOperationCorrupt(t *testing.T) {
	_, err := decodeOperation([]byte(`{"kind":"nonsense"}`))
	require.ErrorIs(t, err, ErrCorrupt)
}
