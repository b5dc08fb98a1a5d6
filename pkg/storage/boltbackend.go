package storage

import (
	"encoding/binary"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	bolt "go.etcd.io/bbolt"

	"github.com/taskchampion/taskchampion/pkg/log"
	"github.com/taskchampion/taskchampion/pkg/metrics"
	"github.com/taskchampion/taskchampion/pkg/types"
)

const boltFileName = "taskchampion.bolt"
const boltBackendLabel = "bolt"

var (
	boltBucketTasks      = []byte("tasks")
	boltBucketSyncMeta   = []byte("sync_meta")
	boltBucketOperations = []byte("operations")
	boltBucketWorkingSet = []byte("working_set")
)

// BoltStorage is a second on-disk backend, alongside SQLiteStorage,
// built on go.etcd.io/bbolt's embedded B+tree rather than SQL. It
// satisfies the exact same StorageTxn contract, demonstrating the
// "two-backend polymorphism" design note with a non-relational engine.
//
// Unlike the other two backends, BoltStorage documents a fail-fast
// policy: a second Txn call while one is outstanding returns ErrBusy
// immediately instead of blocking.
type BoltStorage struct {
	db *bolt.DB

	mu   sync.Mutex
	open bool
}

// NewBoltStorage opens (or creates) taskchampion.bolt within dir and
// idempotently creates its buckets.
func NewBoltStorage(dir string) (*BoltStorage, error) {
	db, err := bolt.Open(filepath.Join(dir, boltFileName), 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("storage: open bolt database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{boltBucketTasks, boltBucketSyncMeta, boltBucketOperations, boltBucketWorkingSet} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("create bucket %s: %w", name, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("storage: create buckets: %w", err)
	}

	log.WithReplica(dir).Info().Msg("bolt replica opened")
	return &BoltStorage{db: db}, nil
}

func (s *BoltStorage) Txn() (StorageTxn, error) {
	s.mu.Lock()
	if s.open {
		s.mu.Unlock()
		metrics.TransactionsBusyTotal.WithLabelValues(boltBackendLabel).Inc()
		log.WithBackend(boltBackendLabel).Warn().Msg("transaction rejected: another transaction is already open")
		return nil, ErrBusy
	}
	s.open = true
	s.mu.Unlock()

	tx, err := s.db.Begin(true)
	if err != nil {
		s.mu.Lock()
		s.open = false
		s.mu.Unlock()
		return nil, fmt.Errorf("storage: begin bolt transaction: %w", err)
	}
	log.WithBackend(boltBackendLabel).Debug().Msg("transaction opened")
	return &boltTxn{storage: s, tx: tx, live: true, timer: metrics.NewTimer()}, nil
}

func (s *BoltStorage) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("storage: close bolt database: %w", err)
	}
	return nil
}

type boltTxn struct {
	storage *BoltStorage
	tx      *bolt.Tx
	live    bool
	timer   *metrics.Timer
}

func (t *boltTxn) checkLive() error {
	if !t.live {
		return ErrTransactionAlreadyCommitted
	}
	return nil
}

func (t *boltTxn) release() {
	t.storage.mu.Lock()
	t.storage.open = false
	t.storage.mu.Unlock()
}

func (t *boltTxn) GetTask(id uuid.UUID) (types.TaskMap, bool, error) {
	if err := t.checkLive(); err != nil {
		return nil, false, err
	}
	b := t.tx.Bucket(boltBucketTasks)
	data := b.Get(id[:])
	if data == nil {
		return nil, false, nil
	}
	tm, err := decodeTaskMap(data)
	if err != nil {
		return nil, false, err
	}
	return tm, true, nil
}

func (t *boltTxn) CreateTask(id uuid.UUID) (bool, error) {
	if err := t.checkLive(); err != nil {
		return false, err
	}
	b := t.tx.Bucket(boltBucketTasks)
	if b.Get(id[:]) != nil {
		return false, nil
	}
	data, err := encodeTaskMap(types.TaskMap{})
	if err != nil {
		return false, err
	}
	if err := b.Put(id[:], data); err != nil {
		return false, fmt.Errorf("storage: create task: %w", err)
	}
	return true, nil
}

func (t *boltTxn) SetTask(id uuid.UUID, task types.TaskMap) error {
	if err := t.checkLive(); err != nil {
		return err
	}
	data, err := encodeTaskMap(task)
	if err != nil {
		return err
	}
	if err := t.tx.Bucket(boltBucketTasks).Put(id[:], data); err != nil {
		return fmt.Errorf("storage: set task: %w", err)
	}
	return nil
}

func (t *boltTxn) DeleteTask(id uuid.UUID) (bool, error) {
	if err := t.checkLive(); err != nil {
		return false, err
	}
	b := t.tx.Bucket(boltBucketTasks)
	if b.Get(id[:]) == nil {
		return false, nil
	}
	if err := b.Delete(id[:]); err != nil {
		return false, fmt.Errorf("storage: delete task: %w", err)
	}
	return true, nil
}

func (t *boltTxn) AllTasks() (map[uuid.UUID]types.TaskMap, error) {
	if err := t.checkLive(); err != nil {
		return nil, err
	}
	b := t.tx.Bucket(boltBucketTasks)
	out := make(map[uuid.UUID]types.TaskMap)
	err := b.ForEach(func(k, v []byte) error {
		id, err := uuid.FromBytes(k)
		if err != nil {
			return fmt.Errorf("%w: task key: %v", ErrCorrupt, err)
		}
		tm, err := decodeTaskMap(v)
		if err != nil {
			return err
		}
		out[id] = tm
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (t *boltTxn) AllTaskUuids() ([]uuid.UUID, error) {
	if err := t.checkLive(); err != nil {
		return nil, err
	}
	b := t.tx.Bucket(boltBucketTasks)
	var out []uuid.UUID
	err := b.ForEach(func(k, _ []byte) error {
		id, err := uuid.FromBytes(k)
		if err != nil {
			return fmt.Errorf("%w: task key: %v", ErrCorrupt, err)
		}
		out = append(out, id)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (t *boltTxn) BaseVersion() (types.VersionId, error) {
	if err := t.checkLive(); err != nil {
		return types.VersionId{}, err
	}
	b := t.tx.Bucket(boltBucketSyncMeta)
	data := b.Get([]byte("base_version"))
	if data == nil {
		return types.DefaultBaseVersion, nil
	}
	id, err := uuid.ParseBytes(data)
	if err != nil {
		return types.VersionId{}, fmt.Errorf("%w: base_version: %v", ErrCorrupt, err)
	}
	return id, nil
}

func (t *boltTxn) SetBaseVersion(version types.VersionId) error {
	if err := t.checkLive(); err != nil {
		return err
	}
	b := t.tx.Bucket(boltBucketSyncMeta)
	if err := b.Put([]byte("base_version"), []byte(version.String())); err != nil {
		return fmt.Errorf("storage: set base version: %w", err)
	}
	return nil
}

func (t *boltTxn) Operations() ([]types.Operation, error) {
	if err := t.checkLive(); err != nil {
		return nil, err
	}
	b := t.tx.Bucket(boltBucketOperations)
	var out []types.Operation
	c := b.Cursor()
	for k, v := c.First(); k != nil; k, v = c.Next() {
		op, err := decodeOperation(v)
		if err != nil {
			return nil, err
		}
		out = append(out, op)
	}
	return out, nil
}

func (t *boltTxn) AddOperation(op types.Operation) error {
	if err := t.checkLive(); err != nil {
		return err
	}
	b := t.tx.Bucket(boltBucketOperations)
	data, err := encodeOperation(op)
	if err != nil {
		return err
	}
	seq, err := b.NextSequence()
	if err != nil {
		return fmt.Errorf("storage: add operation: %w", err)
	}
	if err := b.Put(sequenceKey(seq), data); err != nil {
		return fmt.Errorf("storage: add operation: %w", err)
	}
	metrics.OperationsAppendedTotal.WithLabelValues(boltBackendLabel, op.Kind.String()).Inc()
	log.WithOperation(op.Kind.String()).Debug().Msg("operation appended")
	return nil
}

// SetOperations replaces the operations bucket wholesale and resets
// its key sequence, so the new entries occupy keys 1..N and
// subsequent AddOperation calls append after the last one.
func (t *boltTxn) SetOperations(ops []types.Operation) error {
	if err := t.checkLive(); err != nil {
		return err
	}
	if err := t.tx.DeleteBucket(boltBucketOperations); err != nil {
		return fmt.Errorf("storage: set operations: %w", err)
	}
	b, err := t.tx.CreateBucket(boltBucketOperations)
	if err != nil {
		return fmt.Errorf("storage: set operations: %w", err)
	}
	for _, op := range ops {
		data, err := encodeOperation(op)
		if err != nil {
			return err
		}
		seq, err := b.NextSequence()
		if err != nil {
			return fmt.Errorf("storage: set operations: %w", err)
		}
		if err := b.Put(sequenceKey(seq), data); err != nil {
			return fmt.Errorf("storage: set operations: %w", err)
		}
	}
	return nil
}

func sequenceKey(seq uint64) []byte {
	k := make([]byte, 8)
	binary.BigEndian.PutUint64(k, seq)
	return k
}

func (t *boltTxn) GetWorkingSet() (types.WorkingSet, error) {
	if err := t.checkLive(); err != nil {
		return nil, err
	}
	b := t.tx.Bucket(boltBucketWorkingSet)
	ws := types.WorkingSet{nil}
	c := b.Cursor()
	for k, v := c.First(); k != nil; k, v = c.Next() {
		slot := int(binary.BigEndian.Uint64(k))
		for len(ws) <= slot {
			ws = append(ws, nil)
		}
		if len(v) == 0 {
			continue
		}
		id, err := uuid.FromBytes(v)
		if err != nil {
			return nil, fmt.Errorf("%w: working set slot %d: %v", ErrCorrupt, slot, err)
		}
		ws[slot] = &id
	}
	return ws, nil
}

func (t *boltTxn) AddToWorkingSet(id uuid.UUID) (int, error) {
	ws, err := t.GetWorkingSet()
	if err != nil {
		return 0, err
	}
	idx := types.LowestEmptySlot(ws)
	if err := t.SetWorkingSetItem(idx, &id); err != nil {
		return 0, err
	}
	return idx, nil
}

func (t *boltTxn) SetWorkingSetItem(index int, id *uuid.UUID) error {
	if err := t.checkLive(); err != nil {
		return err
	}
	if index < 1 {
		return fmt.Errorf("storage: working set index must be >= 1, got %d", index)
	}
	b := t.tx.Bucket(boltBucketWorkingSet)
	key := sequenceKey(uint64(index))
	if id == nil {
		// An empty value marks a cleared slot, so the working set does
		// not shrink when its highest slot is cleared.
		if err := b.Put(key, []byte{}); err != nil {
			return fmt.Errorf("storage: set working set item: %w", err)
		}
		return nil
	}
	if err := b.Put(key, id[:]); err != nil {
		return fmt.Errorf("storage: set working set item: %w", err)
	}
	return nil
}

func (t *boltTxn) ClearWorkingSet() error {
	if err := t.checkLive(); err != nil {
		return err
	}
	if err := t.tx.DeleteBucket(boltBucketWorkingSet); err != nil {
		return fmt.Errorf("storage: clear working set: %w", err)
	}
	if _, err := t.tx.CreateBucket(boltBucketWorkingSet); err != nil {
		return fmt.Errorf("storage: clear working set: %w", err)
	}
	return nil
}

func (t *boltTxn) Commit() error {
	if !t.live {
		return ErrTransactionAlreadyCommitted
	}
	err := t.tx.Commit()
	t.live = false
	t.release()
	t.timer.ObserveDurationVec(metrics.TransactionDuration, boltBackendLabel)
	if err != nil {
		metrics.TransactionsTotal.WithLabelValues(boltBackendLabel, "failed").Inc()
		return fmt.Errorf("storage: commit: %w", err)
	}
	metrics.TransactionsTotal.WithLabelValues(boltBackendLabel, "committed").Inc()
	log.WithBackend(boltBackendLabel).Debug().Msg("transaction committed")
	return nil
}

func (t *boltTxn) Discard() {
	if !t.live {
		return
	}
	t.live = false
	_ = t.tx.Rollback()
	t.release()
	t.timer.ObserveDurationVec(metrics.TransactionDuration, boltBackendLabel)
	metrics.TransactionsTotal.WithLabelValues(boltBackendLabel, "discarded").Inc()
	log.WithBackend(boltBackendLabel).Debug().Msg("transaction discarded")
}
