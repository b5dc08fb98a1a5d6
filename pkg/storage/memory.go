package storage

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/taskchampion/taskchampion/pkg/log"
	"github.com/taskchampion/taskchampion/pkg/metrics"
	"github.com/taskchampion/taskchampion/pkg/types"
)

const memoryBackendLabel = "memory"

// memState is the snapshot a transaction operates on: maps and slices
// guarded by MemoryStorage's single mutex. A transaction clones this
// on begin and, if committed, replaces the live state with its copy.
type memState struct {
	tasks      map[uuid.UUID]types.TaskMap
	syncMeta   map[string]string
	operations []types.Operation
	workingSet types.WorkingSet
}

func newMemState() *memState {
	return &memState{
		tasks:      make(map[uuid.UUID]types.TaskMap),
		syncMeta:   make(map[string]string),
		operations: nil,
		workingSet: types.WorkingSet{nil},
	}
}

func (s *memState) clone() *memState {
	c := &memState{
		tasks:      make(map[uuid.UUID]types.TaskMap, len(s.tasks)),
		syncMeta:   make(map[string]string, len(s.syncMeta)),
		operations: append([]types.Operation(nil), s.operations...),
		workingSet: append(types.WorkingSet(nil), s.workingSet...),
	}
	for id, tm := range s.tasks {
		c.tasks[id] = tm.Clone()
	}
	for k, v := range s.syncMeta {
		c.syncMeta[k] = v
	}
	return c
}

// MemoryStorage is the in-memory backend: maps and slices guarded by a
// single mutex. Opening a transaction blocks until any prior one is
// resolved — this backend's documented policy is to queue, not to
// fail fast with ErrBusy.
type MemoryStorage struct {
	mu    sync.Mutex
	state *memState
}

// NewMemoryStorage returns an empty in-memory replica storage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{state: newMemState()}
}

func (s *MemoryStorage) Txn() (StorageTxn, error) {
	s.mu.Lock()
	log.WithBackend(memoryBackendLabel).Debug().Msg("transaction opened")
	return &memTxn{storage: s, state: s.state.clone(), live: true, timer: metrics.NewTimer()}, nil
}

// Close blocks until any outstanding transaction resolves, then
// returns. A MemoryStorage holds no external resource, so Close never
// fails; its state is left in place.
func (s *MemoryStorage) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return nil
}

// memTxn is a snapshot-isolated transaction over MemoryStorage. It has
// two states, live and finalized; every method checks live first.
type memTxn struct {
	storage *MemoryStorage
	state   *memState
	live    bool
	timer   *metrics.Timer
}

func (t *memTxn) checkLive() error {
	if !t.live {
		return ErrTransactionAlreadyCommitted
	}
	return nil
}

func (t *memTxn) GetTask(id uuid.UUID) (types.TaskMap, bool, error) {
	if err := t.checkLive(); err != nil {
		return nil, false, err
	}
	tm, ok := t.state.tasks[id]
	if !ok {
		return nil, false, nil
	}
	return tm.Clone(), true, nil
}

func (t *memTxn) CreateTask(id uuid.UUID) (bool, error) {
	if err := t.checkLive(); err != nil {
		return false, err
	}
	if _, exists := t.state.tasks[id]; exists {
		return false, nil
	}
	t.state.tasks[id] = types.TaskMap{}
	return true, nil
}

func (t *memTxn) SetTask(id uuid.UUID, task types.TaskMap) error {
	if err := t.checkLive(); err != nil {
		return err
	}
	t.state.tasks[id] = task.Clone()
	return nil
}

func (t *memTxn) DeleteTask(id uuid.UUID) (bool, error) {
	if err := t.checkLive(); err != nil {
		return false, err
	}
	if _, exists := t.state.tasks[id]; !exists {
		return false, nil
	}
	delete(t.state.tasks, id)
	return true, nil
}

func (t *memTxn) AllTasks() (map[uuid.UUID]types.TaskMap, error) {
	if err := t.checkLive(); err != nil {
		return nil, err
	}
	out := make(map[uuid.UUID]types.TaskMap, len(t.state.tasks))
	for id, tm := range t.state.tasks {
		out[id] = tm.Clone()
	}
	return out, nil
}

func (t *memTxn) AllTaskUuids() ([]uuid.UUID, error) {
	if err := t.checkLive(); err != nil {
		return nil, err
	}
	out := make([]uuid.UUID, 0, len(t.state.tasks))
	for id := range t.state.tasks {
		out = append(out, id)
	}
	return out, nil
}

func (t *memTxn) Operations() ([]types.Operation, error) {
	if err := t.checkLive(); err != nil {
		return nil, err
	}
	return append([]types.Operation(nil), t.state.operations...), nil
}

func (t *memTxn) AddOperation(op types.Operation) error {
	if err := t.checkLive(); err != nil {
		return err
	}
	t.state.operations = append(t.state.operations, op)
	metrics.OperationsAppendedTotal.WithLabelValues(memoryBackendLabel, op.Kind.String()).Inc()
	log.WithOperation(op.Kind.String()).Debug().Msg("operation appended")
	return nil
}

func (t *memTxn) SetOperations(ops []types.Operation) error {
	if err := t.checkLive(); err != nil {
		return err
	}
	t.state.operations = append([]types.Operation(nil), ops...)
	return nil
}

func (t *memTxn) BaseVersion() (types.VersionId, error) {
	if err := t.checkLive(); err != nil {
		return types.VersionId{}, err
	}
	v, ok := t.state.syncMeta["base_version"]
	if !ok {
		return types.DefaultBaseVersion, nil
	}
	parsed, err := uuid.Parse(v)
	if err != nil {
		return types.VersionId{}, fmt.Errorf("%w: base_version %q: %v", ErrCorrupt, v, err)
	}
	return parsed, nil
}

func (t *memTxn) SetBaseVersion(version types.VersionId) error {
	if err := t.checkLive(); err != nil {
		return err
	}
	t.state.syncMeta["base_version"] = version.String()
	return nil
}

func (t *memTxn) GetWorkingSet() (types.WorkingSet, error) {
	if err := t.checkLive(); err != nil {
		return nil, err
	}
	return append(types.WorkingSet(nil), t.state.workingSet...), nil
}

func (t *memTxn) AddToWorkingSet(id uuid.UUID) (int, error) {
	if err := t.checkLive(); err != nil {
		return 0, err
	}
	idx := types.LowestEmptySlot(t.state.workingSet)
	v := id
	if idx >= len(t.state.workingSet) {
		t.state.workingSet = append(t.state.workingSet, &v)
	} else {
		t.state.workingSet[idx] = &v
	}
	return idx, nil
}

func (t *memTxn) SetWorkingSetItem(index int, id *uuid.UUID) error {
	if err := t.checkLive(); err != nil {
		return err
	}
	if index < 1 {
		return fmt.Errorf("storage: working set index must be >= 1, got %d", index)
	}
	for len(t.state.workingSet) <= index {
		t.state.workingSet = append(t.state.workingSet, nil)
	}
	if id == nil {
		t.state.workingSet[index] = nil
	} else {
		v := *id
		t.state.workingSet[index] = &v
	}
	return nil
}

func (t *memTxn) ClearWorkingSet() error {
	if err := t.checkLive(); err != nil {
		return err
	}
	t.state.workingSet = types.WorkingSet{nil}
	return nil
}

func (t *memTxn) Commit() error {
	if err := t.checkLive(); err != nil {
		return err
	}
	t.storage.state = t.state
	t.live = false
	t.storage.mu.Unlock()
	t.timer.ObserveDurationVec(metrics.TransactionDuration, memoryBackendLabel)
	metrics.TransactionsTotal.WithLabelValues(memoryBackendLabel, "committed").Inc()
	log.WithBackend(memoryBackendLabel).Debug().Msg("transaction committed")
	return nil
}

func (t *memTxn) Discard() {
	if !t.live {
		return
	}
	t.live = false
	t.storage.mu.Unlock()
	t.timer.ObserveDurationVec(metrics.TransactionDuration, memoryBackendLabel)
	metrics.TransactionsTotal.WithLabelValues(memoryBackendLabel, "discarded").Inc()
	log.WithBackend(memoryBackendLabel).Debug().Msg("transaction discarded")
}
