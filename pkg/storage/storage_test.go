package storage

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskchampion/taskchampion/pkg/types"
)

// backendFactories enumerates the implementations under test. Every
// scenario below runs against each one so memory, sqlite and bolt are
// held to identical assertions.
func backendFactories(t *testing.T) map[string]func() Storage {
	return map[string]func() Storage{
		"memory": func() Storage {
			return NewMemoryStorage()
		},
		"sqlite": func() Storage {
			s, err := NewSQLiteStorage(t.TempDir())
			require.NoError(t, err)
			t.Cleanup(func() { _ = s.Close() })
			return s
		},
		"bolt": func() Storage {
			s, err := NewBoltStorage(t.TempDir())
			require.NoError(t, err)
			t.Cleanup(func() { _ = s.Close() })
			return s
		},
	}
}

func forEachBackend(t *testing.T, fn func(t *testing.T, s Storage)) {
	for name, factory := range backendFactories(t) {
		t.Run(name, func(t *testing.T) {
			fn(t, factory())
		})
	}
}

func TestCreate(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s Storage) {
		id := uuid.New()
		txn, err := s.Txn()
		require.NoError(t, err)
		defer txn.Discard()

		created, err := txn.CreateTask(id)
		require.NoError(t, err)
		assert.True(t, created)

		tm, ok, err := txn.GetTask(id)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, types.TaskMap{}, tm)

		require.NoError(t, txn.Commit())
	})
}

func TestCreateExists(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s Storage) {
		id := uuid.New()
		txn, err := s.Txn()
		require.NoError(t, err)

		created, err := txn.CreateTask(id)
		require.NoError(t, err)
		assert.True(t, created)

		created, err = txn.CreateTask(id)
		require.NoError(t, err)
		assert.False(t, created)

		require.NoError(t, txn.Commit())
	})
}

func TestGetMissing(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s Storage) {
		txn, err := s.Txn()
		require.NoError(t, err)
		defer txn.Discard()

		_, ok, err := txn.GetTask(uuid.New())
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestSetTask(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s Storage) {
		id := uuid.New()
		txn, err := s.Txn()
		require.NoError(t, err)

		_, err = txn.CreateTask(id)
		require.NoError(t, err)

		tm := types.TaskMap{"status": "pending", "description": "write tests"}
		require.NoError(t, txn.SetTask(id, tm))

		got, ok, err := txn.GetTask(id)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, tm, got)

		require.NoError(t, txn.Commit())

		// visible in a fresh transaction
		txn2, err := s.Txn()
		require.NoError(t, err)
		defer txn2.Discard()
		got2, ok, err := txn2.GetTask(id)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, tm, got2)
	})
}

func TestDeleteTaskMissing(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s Storage) {
		txn, err := s.Txn()
		require.NoError(t, err)
		defer txn.Discard()

		deleted, err := txn.DeleteTask(uuid.New())
		require.NoError(t, err)
		assert.False(t, deleted)
	})
}

func TestDeleteTaskExists(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s Storage) {
		id := uuid.New()
		txn, err := s.Txn()
		require.NoError(t, err)

		_, err = txn.CreateTask(id)
		require.NoError(t, err)

		deleted, err := txn.DeleteTask(id)
		require.NoError(t, err)
		assert.True(t, deleted)

		_, ok, err := txn.GetTask(id)
		require.NoError(t, err)
		assert.False(t, ok)

		require.NoError(t, txn.Commit())
	})
}

func TestAllTasksEmpty(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s Storage) {
		txn, err := s.Txn()
		require.NoError(t, err)
		defer txn.Discard()

		all, err := txn.AllTasks()
		require.NoError(t, err)
		assert.Empty(t, all)

		uuids, err := txn.AllTaskUuids()
		require.NoError(t, err)
		assert.Empty(t, uuids)
	})
}

func TestAllTasksAndUuids(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s Storage) {
		ids := []uuid.UUID{uuid.New(), uuid.New(), uuid.New()}
		txn, err := s.Txn()
		require.NoError(t, err)
		for _, id := range ids {
			_, err := txn.CreateTask(id)
			require.NoError(t, err)
		}
		require.NoError(t, txn.Commit())

		txn2, err := s.Txn()
		require.NoError(t, err)
		defer txn2.Discard()

		all, err := txn2.AllTasks()
		require.NoError(t, err)
		assert.Len(t, all, len(ids))

		uuids, err := txn2.AllTaskUuids()
		require.NoError(t, err)
		assert.ElementsMatch(t, ids, uuids)
	})
}

func TestBaseVersionDefault(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s Storage) {
		txn, err := s.Txn()
		require.NoError(t, err)
		defer txn.Discard()

		v, err := txn.BaseVersion()
		require.NoError(t, err)
		assert.Equal(t, types.DefaultBaseVersion, v)
	})
}

func TestBaseVersionSetting(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s Storage) {
		v := uuid.New()
		txn, err := s.Txn()
		require.NoError(t, err)
		require.NoError(t, txn.SetBaseVersion(v))
		require.NoError(t, txn.Commit())

		txn2, err := s.Txn()
		require.NoError(t, err)
		defer txn2.Discard()
		got, err := txn2.BaseVersion()
		require.NoError(t, err)
		assert.Equal(t, v, got)
	})
}

func TestOperations(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s Storage) {
		id := uuid.New()
		txn, err := s.Txn()
		require.NoError(t, err)

		ops, err := txn.Operations()
		require.NoError(t, err)
		assert.Empty(t, ops)

		require.NoError(t, txn.AddOperation(types.Create(id)))
		require.NoError(t, txn.AddOperation(types.UndoPoint()))
		require.NoError(t, txn.AddOperation(types.Delete(id)))

		ops, err = txn.Operations()
		require.NoError(t, err)
		require.Len(t, ops, 3)
		assert.Equal(t, types.OpCreate, ops[0].Kind)
		assert.Equal(t, types.OpUndoPoint, ops[1].Kind)
		assert.Equal(t, types.OpDelete, ops[2].Kind)

		require.NoError(t, txn.Commit())

		// set_operations replaces the log wholesale and restarts
		// numbering, so the next add lands right after it.
		txn2, err := s.Txn()
		require.NoError(t, err)
		replacement := []types.Operation{types.Create(id), types.UndoPoint()}
		require.NoError(t, txn2.SetOperations(replacement))
		require.NoError(t, txn2.AddOperation(types.Delete(id)))

		ops, err = txn2.Operations()
		require.NoError(t, err)
		require.Len(t, ops, 3)
		assert.Equal(t, types.OpCreate, ops[0].Kind)
		assert.Equal(t, types.OpUndoPoint, ops[1].Kind)
		assert.Equal(t, types.OpDelete, ops[2].Kind)

		require.NoError(t, txn2.Commit())
	})
}

func TestGetWorkingSetEmpty(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s Storage) {
		txn, err := s.Txn()
		require.NoError(t, err)
		defer txn.Discard()

		ws, err := txn.GetWorkingSet()
		require.NoError(t, err)
		require.Len(t, ws, 1)
		assert.Nil(t, ws[0])
	})
}

func TestAddToWorkingSet(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s Storage) {
		a, b := uuid.New(), uuid.New()
		txn, err := s.Txn()
		require.NoError(t, err)

		idxA, err := txn.AddToWorkingSet(a)
		require.NoError(t, err)
		assert.Equal(t, 1, idxA)

		idxB, err := txn.AddToWorkingSet(b)
		require.NoError(t, err)
		assert.Equal(t, 2, idxB)

		require.NoError(t, txn.SetWorkingSetItem(idxA, nil))

		idxC, err := txn.AddToWorkingSet(uuid.New())
		require.NoError(t, err)
		assert.Equal(t, idxA, idxC, "lowest empty slot is reused")

		ws, err := txn.GetWorkingSet()
		require.NoError(t, err)
		require.Len(t, ws, 3)
		assert.Nil(t, ws[0])
		require.NotNil(t, ws[2])
		assert.Equal(t, b, *ws[2])

		require.NoError(t, txn.Commit())
	})
}

func TestClearWorkingSet(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s Storage) {
		txn, err := s.Txn()
		require.NoError(t, err)

		_, err = txn.AddToWorkingSet(uuid.New())
		require.NoError(t, err)
		_, err = txn.AddToWorkingSet(uuid.New())
		require.NoError(t, err)

		require.NoError(t, txn.ClearWorkingSet())

		ws, err := txn.GetWorkingSet()
		require.NoError(t, err)
		require.Len(t, ws, 1)
		assert.Nil(t, ws[0])

		idx, err := txn.AddToWorkingSet(uuid.New())
		require.NoError(t, err)
		assert.Equal(t, 1, idx, "slots are renumbered from 1 after a clear")

		require.NoError(t, txn.Commit())
	})
}

func TestDiscardRollsBack(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s Storage) {
		id := uuid.New()
		txn, err := s.Txn()
		require.NoError(t, err)
		_, err = txn.CreateTask(id)
		require.NoError(t, err)
		txn.Discard()

		txn2, err := s.Txn()
		require.NoError(t, err)
		defer txn2.Discard()
		_, ok, err := txn2.GetTask(id)
		require.NoError(t, err)
		assert.False(t, ok, "discarded transaction must not be visible")
	})
}

func TestCommitTwiceFails(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s Storage) {
		txn, err := s.Txn()
		require.NoError(t, err)
		require.NoError(t, txn.Commit())

		err = txn.Commit()
		assert.ErrorIs(t, err, ErrTransactionAlreadyCommitted)
	})
}

func TestOperationAfterCommitFails(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s Storage) {
		txn, err := s.Txn()
		require.NoError(t, err)
		require.NoError(t, txn.Commit())

		_, _, err = txn.GetTask(uuid.New())
		assert.ErrorIs(t, err, ErrTransactionAlreadyCommitted)
	})
}

// TestBoltBusyFailsFast documents the bolt backend's distinct
// concurrency policy: a second outstanding Txn fails immediately
// rather than blocking, unlike memory and sqlite.
func TestBoltBusyFailsFast(t *testing.T) {
	s, err := NewBoltStorage(t.TempDir())
	require.NoError(t, err)
	defer s.Close()

	txn, err := s.Txn()
	require.NoError(t, err)
	defer txn.Discard()

	_, err = s.Txn()
	assert.ErrorIs(t, err, ErrBusy)
}
