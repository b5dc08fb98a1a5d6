/*
Package storage defines the replica storage contract and its three
interchangeable backends.

A replica's durable state is a TaskMap set, an append-only operation
log, a sync base version, and a working set. Storage exposes that
state behind two interfaces, Storage and StorageTxn, so callers write
against the contract once and choose a backend for the process
lifetime.

# Architecture

	┌────────────────────────── STORAGE ───────────────────────────┐
	│                                                                │
	│   Storage                                                      │
	│     Txn() (StorageTxn, error)                                  │
	│     Close() error                                              │
	│                                                                │
	│            ┌───────────────┬───────────────┬───────────────┐  │
	│            │  MemoryStorage│ SQLiteStorage │  BoltStorage  │  │
	│            │  (testing,    │  (taskchampion│  (bbolt       │  │
	│            │   ephemeral)  │   .sqlite3)   │   .bolt)      │  │
	│            └───────┬───────┴───────┬───────┴───────┬───────┘  │
	│                    │               │               │          │
	│            ┌───────▼───────────────▼───────────────▼───────┐  │
	│            │              StorageTxn                       │  │
	│            │  tasks: Get/Create/Set/Delete/All(Uuids)      │  │
	│            │  sync_meta: BaseVersion/SetBaseVersion         │  │
	│            │  operations: Operations/Add/Set                │  │
	│            │  working_set: Get/Add/SetItem/Clear            │  │
	│            │  Commit() / Discard()                          │  │
	│            └────────────────────────────────────────────────┘  │
	└────────────────────────────────────────────────────────────────┘

# Backends

MemoryStorage holds a single state snapshot behind a mutex. Txn clones
the snapshot and holds the mutex until Commit replaces the live state
or Discard drops the clone; a second Txn call blocks until the first
resolves.

SQLiteStorage opens a fixed-name database file (taskchampion.sqlite3)
in WAL mode via modernc.org/sqlite, restricting the connection pool to
one connection so a second Txn blocks acquiring it rather than racing
SQLite's own file lock.

BoltStorage opens a bbolt file (taskchampion.bolt) with one bucket per
concern. Unlike the other two backends it documents a fail-fast
policy: Txn returns ErrBusy immediately when a transaction is already
outstanding, demonstrating the other concurrency strategy a backend
may choose for a second transaction.

# Transaction lifecycle

Every StorageTxn is live until Commit or Discard finalizes it; any
further method call returns ErrTransactionAlreadyCommitted. Discard is
always safe to call after Commit or another Discard — it is a no-op,
which lets callers defer it unconditionally.

# Encoding

TaskMap values round-trip through JSON (encodeTaskMap/decodeTaskMap);
encoding/json's sorted map keys make the encoding deterministic.
Operations round-trip through a tagged opRecord whose populated fields
depend on Kind. A decode failure on either always aborts the read with
a wrapped ErrCorrupt rather than silently skipping the record.
*/
package storage
