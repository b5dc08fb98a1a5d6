package main

import (
	"fmt"

	"github.com/taskchampion/taskchampion/pkg/metrics"
	"github.com/taskchampion/taskchampion/pkg/storage"
)

// openStorage opens the backend named by cfg.Engine, creating the
// on-disk file in cfg.DataDir for sqlite and bolt.
func openStorage() (storage.Storage, error) {
	switch cfg.Engine {
	case "memory":
		return storage.NewMemoryStorage(), nil
	case "sqlite":
		return storage.NewSQLiteStorage(cfg.DataDir)
	case "bolt":
		return storage.NewBoltStorage(cfg.DataDir)
	default:
		return nil, fmt.Errorf("unknown engine %q (want memory, sqlite, or bolt)", cfg.Engine)
	}
}

// collectorStore adapts a storage.Storage to metrics.CollectorStore.
// storage.Storage.Txn returns storage.StorageTxn, not
// metrics.CollectorTxn, so this wrapper's own Txn method declares the
// bridging return type explicitly.
type collectorStore struct {
	storage.Storage
}

func (s collectorStore) Txn() (metrics.CollectorTxn, error) {
	return s.Storage.Txn()
}
