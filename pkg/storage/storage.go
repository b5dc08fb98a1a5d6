// Package storage implements the replica storage layer: a narrow
// abstract contract (Storage, StorageTxn) satisfied identically by an
// in-memory backend and two on-disk backends (SQLite and bbolt), plus
// the operation log and working set semantics shared by all three.
package storage

import (
	"errors"

	"github.com/google/uuid"
	"github.com/taskchampion/taskchampion/pkg/types"
)

// Sentinel errors produced by the core. create_task on a duplicate and
// delete_task on a missing uuid are never errors — they return false.
var (
	// ErrTransactionAlreadyCommitted is returned by any StorageTxn
	// method invoked after that transaction's commit has already
	// returned successfully, or after it has been discarded.
	ErrTransactionAlreadyCommitted = errors.New("storage: transaction already committed")

	// ErrBusy is returned by Storage.Txn when a backend that rejects
	// overlapping transactions (rather than queuing them) already has
	// one live.
	ErrBusy = errors.New("storage: another transaction is already open")

	// ErrCorrupt wraps a decode failure of a stored TaskMap or
	// Operation. It indicates data corruption or version skew and
	// aborts whatever enumeration triggered it.
	ErrCorrupt = errors.New("storage: corrupt record")
)

// Storage is the factory for transactions. At most one uncommitted
// transaction per Storage instance may exist at a time; Txn either
// blocks until a prior transaction resolves or returns ErrBusy,
// whichever policy the concrete backend documents.
type Storage interface {
	// Txn opens a new scoped transaction. Opening fails if the
	// underlying resource is unavailable (I/O error, permissions).
	Txn() (StorageTxn, error)

	// Close releases the storage's underlying file or connection. It
	// must not be called while a transaction is outstanding.
	Close() error
}

// StorageTxn bundles reads and writes into one atomic unit. Every
// method returns ErrTransactionAlreadyCommitted once Commit has
// succeeded or the transaction has been discarded. Reads observe the
// transaction's own prior writes (read-your-writes).
type StorageTxn interface {
	// Task operations.
	GetTask(id uuid.UUID) (types.TaskMap, bool, error)
	CreateTask(id uuid.UUID) (bool, error)
	SetTask(id uuid.UUID, task types.TaskMap) error
	DeleteTask(id uuid.UUID) (bool, error)
	AllTasks() (map[uuid.UUID]types.TaskMap, error)
	AllTaskUuids() ([]uuid.UUID, error)

	// Operation log.
	Operations() ([]types.Operation, error)
	AddOperation(op types.Operation) error
	SetOperations(ops []types.Operation) error

	// Sync metadata.
	BaseVersion() (types.VersionId, error)
	SetBaseVersion(version types.VersionId) error

	// Working set.
	GetWorkingSet() (types.WorkingSet, error)
	AddToWorkingSet(id uuid.UUID) (int, error)
	SetWorkingSetItem(index int, id *uuid.UUID) error
	ClearWorkingSet() error

	// Commit atomically installs every change made since the
	// transaction was opened. It consumes the transaction: no further
	// method may be invoked afterward.
	Commit() error

	// Discard rolls back all changes with no observable effect. It is
	// infallible and safe to call after Commit (a no-op in that case).
	Discard()
}
