package metrics

import (
	"time"

	"github.com/google/uuid"
	"github.com/taskchampion/taskchampion/pkg/types"
)

// CollectorTxn is the subset of storage.StorageTxn the collector reads.
// Declared locally rather than importing pkg/storage directly, since
// pkg/storage itself imports pkg/metrics to record its transaction and
// operation counters; any storage.StorageTxn satisfies this interface.
type CollectorTxn interface {
	AllTaskUuids() ([]uuid.UUID, error)
	Operations() ([]types.Operation, error)
	GetWorkingSet() (types.WorkingSet, error)
	Discard()
}

// CollectorStore is the subset of storage.Storage the collector opens
// transactions against. Any storage.Storage satisfies this interface.
type CollectorStore interface {
	Txn() (CollectorTxn, error)
}

// Collector periodically samples a Storage backend's durable state —
// task count, operation log length, working set occupancy — and
// reports it as gauges labeled by backend name.
type Collector struct {
	backend string
	store   CollectorStore
	stopCh  chan struct{}
}

// NewCollector creates a collector for store, reporting its gauges
// under the given backend label ("memory", "sqlite", or "bolt"). store
// is typically a small adapter wrapping a storage.Storage, since
// storage.Storage.Txn's declared return type is storage.StorageTxn, not
// CollectorTxn, and Go requires an explicit adapter method to bridge
// the two named interface types.
func NewCollector(backend string, store CollectorStore) *Collector {
	return &Collector{
		backend: backend,
		store:   store,
		stopCh:  make(chan struct{}),
	}
}

// Start begins collecting metrics every 15 seconds until Stop is called.
func (c *Collector) Start() {
	ticker := time.NewTicker(15 * time.Second)
	go func() {
		c.collect()
		for {
			select {
			case <-ticker.C:
				c.collect()
			case <-c.stopCh:
				ticker.Stop()
				return
			}
		}
	}()
}

// Stop stops the collector.
func (c *Collector) Stop() {
	close(c.stopCh)
}

func (c *Collector) collect() {
	txn, err := c.store.Txn()
	if err != nil {
		return
	}
	defer txn.Discard()

	if uuids, err := txn.AllTaskUuids(); err == nil {
		TasksTotal.WithLabelValues(c.backend).Set(float64(len(uuids)))
	}

	if ops, err := txn.Operations(); err == nil {
		OperationLogLength.WithLabelValues(c.backend).Set(float64(len(ops)))
	}

	if ws, err := txn.GetWorkingSet(); err == nil {
		WorkingSetSize.WithLabelValues(c.backend).Set(float64(len(ws)))
		occupied := 0
		for _, slot := range ws {
			if slot != nil {
				occupied++
			}
		}
		WorkingSetOccupancy.WithLabelValues(c.backend).Set(float64(occupied))
	}
}
