package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/taskchampion/taskchampion/pkg/log"
	"github.com/taskchampion/taskchampion/pkg/metrics"
	"github.com/taskchampion/taskchampion/pkg/types"
)

const sqliteFileName = "taskchampion.sqlite3"
const sqliteBackendLabel = "sqlite"

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS tasks (uuid TEXT PRIMARY KEY, data TEXT NOT NULL);
CREATE TABLE IF NOT EXISTS sync_meta (key TEXT PRIMARY KEY, value TEXT NOT NULL);
CREATE TABLE IF NOT EXISTS operations (id INTEGER PRIMARY KEY, data TEXT NOT NULL);
CREATE TABLE IF NOT EXISTS working_set (slot INTEGER PRIMARY KEY, uuid TEXT);
`

// SQLiteStorage is the on-disk backend of spec §4.4: a single embedded
// relational database file within the caller-supplied directory,
// opened in WAL mode with a busy_timeout pragma. Its connection pool
// holds a single connection, so a second transaction blocks until the
// first resolves rather than failing fast with ErrBusy — this
// backend's documented policy is to queue.
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage opens (or creates) taskchampion.sqlite3 within dir
// and idempotently creates the schema of spec §4.4.
func NewSQLiteStorage(dir string) (*SQLiteStorage, error) {
	dbPath := filepath.Join(dir, sqliteFileName)
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)", dbPath)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("storage: open sqlite database: %w", err)
	}
	// SQLite allows only one writer; restricting the pool to a single
	// connection means a second Txn blocks acquiring a connection
	// until the first transaction's connection is returned.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(context.Background(), sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage: create schema: %w", err)
	}

	log.WithReplica(dir).Info().Msg("sqlite replica opened")
	return &SQLiteStorage{db: db}, nil
}

func (s *SQLiteStorage) Txn() (StorageTxn, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("storage: begin transaction: %w", err)
	}
	log.WithBackend(sqliteBackendLabel).Debug().Msg("transaction opened")
	return &sqliteTxn{tx: tx, live: true, timer: metrics.NewTimer()}, nil
}

func (s *SQLiteStorage) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("storage: close sqlite database: %w", err)
	}
	return nil
}

// sqliteTxn wraps a single *sql.Tx. Its state machine mirrors memTxn:
// live until Commit succeeds or Discard is called, Finalized after.
type sqliteTxn struct {
	tx    *sql.Tx
	live  bool
	timer *metrics.Timer
}

func (t *sqliteTxn) getTx() (*sql.Tx, error) {
	if !t.live {
		return nil, ErrTransactionAlreadyCommitted
	}
	return t.tx, nil
}

func (t *sqliteTxn) GetTask(id uuid.UUID) (types.TaskMap, bool, error) {
	tx, err := t.getTx()
	if err != nil {
		return nil, false, err
	}
	var data string
	err = tx.QueryRow(`SELECT data FROM tasks WHERE uuid = ?`, id.String()).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("storage: get task: %w", err)
	}
	tm, err := decodeTaskMap([]byte(data))
	if err != nil {
		return nil, false, err
	}
	return tm, true, nil
}

func (t *sqliteTxn) CreateTask(id uuid.UUID) (bool, error) {
	tx, err := t.getTx()
	if err != nil {
		return false, err
	}
	var count int
	if err := tx.QueryRow(`SELECT count(*) FROM tasks WHERE uuid = ?`, id.String()).Scan(&count); err != nil {
		return false, fmt.Errorf("storage: create task: %w", err)
	}
	if count > 0 {
		return false, nil
	}
	data, err := encodeTaskMap(types.TaskMap{})
	if err != nil {
		return false, err
	}
	if _, err := tx.Exec(`INSERT INTO tasks (uuid, data) VALUES (?, ?)`, id.String(), string(data)); err != nil {
		return false, fmt.Errorf("storage: create task: %w", err)
	}
	return true, nil
}

func (t *sqliteTxn) SetTask(id uuid.UUID, task types.TaskMap) error {
	tx, err := t.getTx()
	if err != nil {
		return err
	}
	data, err := encodeTaskMap(task)
	if err != nil {
		return err
	}
	if _, err := tx.Exec(`INSERT OR REPLACE INTO tasks (uuid, data) VALUES (?, ?)`, id.String(), string(data)); err != nil {
		return fmt.Errorf("storage: set task: %w", err)
	}
	return nil
}

func (t *sqliteTxn) DeleteTask(id uuid.UUID) (bool, error) {
	tx, err := t.getTx()
	if err != nil {
		return false, err
	}
	res, err := tx.Exec(`DELETE FROM tasks WHERE uuid = ?`, id.String())
	if err != nil {
		return false, fmt.Errorf("storage: delete task: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("storage: delete task: %w", err)
	}
	return n > 0, nil
}

func (t *sqliteTxn) AllTasks() (map[uuid.UUID]types.TaskMap, error) {
	tx, err := t.getTx()
	if err != nil {
		return nil, err
	}
	rows, err := tx.Query(`SELECT uuid, data FROM tasks`)
	if err != nil {
		return nil, fmt.Errorf("storage: all tasks: %w", err)
	}
	defer rows.Close()

	out := make(map[uuid.UUID]types.TaskMap)
	for rows.Next() {
		var idStr, data string
		if err := rows.Scan(&idStr, &data); err != nil {
			return nil, fmt.Errorf("storage: all tasks: %w", err)
		}
		id, err := uuid.Parse(idStr)
		if err != nil {
			return nil, fmt.Errorf("%w: task uuid %q: %v", ErrCorrupt, idStr, err)
		}
		// A decode failure aborts the whole enumeration instead of
		// silently skipping the row — see spec §9's documented fix.
		tm, err := decodeTaskMap([]byte(data))
		if err != nil {
			return nil, err
		}
		out[id] = tm
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("storage: all tasks: %w", err)
	}
	return out, nil
}

func (t *sqliteTxn) AllTaskUuids() ([]uuid.UUID, error) {
	tx, err := t.getTx()
	if err != nil {
		return nil, err
	}
	rows, err := tx.Query(`SELECT uuid FROM tasks`)
	if err != nil {
		return nil, fmt.Errorf("storage: all task uuids: %w", err)
	}
	defer rows.Close()

	var out []uuid.UUID
	for rows.Next() {
		var idStr string
		if err := rows.Scan(&idStr); err != nil {
			return nil, fmt.Errorf("storage: all task uuids: %w", err)
		}
		id, err := uuid.Parse(idStr)
		if err != nil {
			return nil, fmt.Errorf("%w: task uuid %q: %v", ErrCorrupt, idStr, err)
		}
		out = append(out, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("storage: all task uuids: %w", err)
	}
	return out, nil
}

func (t *sqliteTxn) BaseVersion() (types.VersionId, error) {
	tx, err := t.getTx()
	if err != nil {
		return types.VersionId{}, err
	}
	var value string
	err = tx.QueryRow(`SELECT value FROM sync_meta WHERE key = 'base_version'`).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return types.DefaultBaseVersion, nil
	}
	if err != nil {
		return types.VersionId{}, fmt.Errorf("storage: base version: %w", err)
	}
	parsed, err := uuid.Parse(value)
	if err != nil {
		return types.VersionId{}, fmt.Errorf("%w: base_version %q: %v", ErrCorrupt, value, err)
	}
	return parsed, nil
}

func (t *sqliteTxn) SetBaseVersion(version types.VersionId) error {
	tx, err := t.getTx()
	if err != nil {
		return err
	}
	if _, err := tx.Exec(`INSERT OR REPLACE INTO sync_meta (key, value) VALUES ('base_version', ?)`, version.String()); err != nil {
		return fmt.Errorf("storage: set base version: %w", err)
	}
	return nil
}

func (t *sqliteTxn) Operations() ([]types.Operation, error) {
	tx, err := t.getTx()
	if err != nil {
		return nil, err
	}
	rows, err := tx.Query(`SELECT data FROM operations ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("storage: operations: %w", err)
	}
	defer rows.Close()

	var out []types.Operation
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("storage: operations: %w", err)
		}
		op, err := decodeOperation([]byte(data))
		if err != nil {
			return nil, err
		}
		out = append(out, op)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("storage: operations: %w", err)
	}
	return out, nil
}

func (t *sqliteTxn) AddOperation(op types.Operation) error {
	tx, err := t.getTx()
	if err != nil {
		return err
	}
	data, err := encodeOperation(op)
	if err != nil {
		return err
	}
	if _, err := tx.Exec(`INSERT INTO operations (data) VALUES (?)`, string(data)); err != nil {
		return fmt.Errorf("storage: add operation: %w", err)
	}
	metrics.OperationsAppendedTotal.WithLabelValues(sqliteBackendLabel, op.Kind.String()).Inc()
	log.WithOperation(op.Kind.String()).Debug().Msg("operation appended")
	return nil
}

// SetOperations truncates the operations table and re-inserts ops in
// order. id is a plain (non-AUTOINCREMENT) rowid alias, so once the
// table is empty the next insert starts again at 1 — the new sequence
// occupies ids 1..N and subsequent AddOperation calls append after it.
func (t *sqliteTxn) SetOperations(ops []types.Operation) error {
	tx, err := t.getTx()
	if err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM operations`); err != nil {
		return fmt.Errorf("storage: set operations: %w", err)
	}
	for _, op := range ops {
		data, err := encodeOperation(op)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(`INSERT INTO operations (data) VALUES (?)`, string(data)); err != nil {
			return fmt.Errorf("storage: set operations: %w", err)
		}
	}
	return nil
}

func (t *sqliteTxn) GetWorkingSet() (types.WorkingSet, error) {
	tx, err := t.getTx()
	if err != nil {
		return nil, err
	}
	rows, err := tx.Query(`SELECT slot, uuid FROM working_set ORDER BY slot`)
	if err != nil {
		return nil, fmt.Errorf("storage: get working set: %w", err)
	}
	defer rows.Close()

	ws := types.WorkingSet{nil}
	for rows.Next() {
		var slot int
		var idStr sql.NullString
		if err := rows.Scan(&slot, &idStr); err != nil {
			return nil, fmt.Errorf("storage: get working set: %w", err)
		}
		for len(ws) <= slot {
			ws = append(ws, nil)
		}
		if idStr.Valid {
			id, err := uuid.Parse(idStr.String)
			if err != nil {
				return nil, fmt.Errorf("%w: working set uuid %q: %v", ErrCorrupt, idStr.String, err)
			}
			ws[slot] = &id
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("storage: get working set: %w", err)
	}
	return ws, nil
}

func (t *sqliteTxn) AddToWorkingSet(id uuid.UUID) (int, error) {
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

func (t *sqliteTxn) SetWorkingSetItem(index int, id *uuid.UUID) error {
	tx, err := t.getTx()
	if err != nil {
		return err
	}
	if index < 1 {
		return fmt.Errorf("storage: working set index must be >= 1, got %d", index)
	}
	if id == nil {
		// Keep the row with a NULL uuid so the working set does not
		// shrink when its highest slot is cleared.
		if _, err := tx.Exec(`INSERT OR REPLACE INTO working_set (slot, uuid) VALUES (?, NULL)`, index); err != nil {
			return fmt.Errorf("storage: set working set item: %w", err)
		}
		return nil
	}
	if _, err := tx.Exec(`INSERT OR REPLACE INTO working_set (slot, uuid) VALUES (?, ?)`, index, id.String()); err != nil {
		return fmt.Errorf("storage: set working set item: %w", err)
	}
	return nil
}

func (t *sqliteTxn) ClearWorkingSet() error {
	tx, err := t.getTx()
	if err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM working_set`); err != nil {
		return fmt.Errorf("storage: clear working set: %w", err)
	}
	return nil
}

func (t *sqliteTxn) Commit() error {
	if !t.live {
		return ErrTransactionAlreadyCommitted
	}
	if err := t.tx.Commit(); err != nil {
		return fmt.Errorf("storage: commit: %w", err)
	}
	t.live = false
	t.timer.ObserveDurationVec(metrics.TransactionDuration, sqliteBackendLabel)
	metrics.TransactionsTotal.WithLabelValues(sqliteBackendLabel, "committed").Inc()
	log.WithBackend(sqliteBackendLabel).Debug().Msg("transaction committed")
	return nil
}

func (t *sqliteTxn) Discard() {
	if !t.live {
		return
	}
	t.live = false
	_ = t.tx.Rollback()
	t.timer.ObserveDurationVec(metrics.TransactionDuration, sqliteBackendLabel)
	metrics.TransactionsTotal.WithLabelValues(sqliteBackendLabel, "discarded").Inc()
	log.WithBackend(sqliteBackendLabel).Debug().Msg("transaction discarded")
}
