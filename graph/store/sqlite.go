package store

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

var sqliteDialect = dialect{
	name: "sqlite",
	schema: []string{
		`CREATE TABLE IF NOT EXISTS flowgraph_memory (
			mem_key TEXT NOT NULL PRIMARY KEY,
			value TEXT NOT NULL,
			updated_at INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS flowgraph_workflows (
			id TEXT NOT NULL PRIMARY KEY,
			name TEXT NOT NULL,
			data TEXT NOT NULL,
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_workflows_updated ON flowgraph_workflows(updated_at)`,
		`CREATE TABLE IF NOT EXISTS flowgraph_runs (
			id TEXT NOT NULL PRIMARY KEY,
			workflow_id TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL,
			started_at INTEGER NOT NULL,
			data TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_workflow ON flowgraph_runs(workflow_id, started_at)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_started ON flowgraph_runs(started_at)`,
	},
	upsertMemory: `
		INSERT INTO flowgraph_memory (mem_key, value, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(mem_key) DO UPDATE SET
			value = excluded.value,
			updated_at = excluded.updated_at`,
	upsertWorkflow: `
		INSERT INTO flowgraph_workflows (id, name, data, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			data = excluded.data,
			updated_at = excluded.updated_at`,
	upsertRun: `
		INSERT INTO flowgraph_runs (id, workflow_id, status, started_at, data)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			workflow_id = excluded.workflow_id,
			status = excluded.status,
			started_at = excluded.started_at,
			data = excluded.data`,
}

// SQLiteStore is a single-file Store on the pure-Go modernc.org/sqlite driver.
//
// It suits development, the CLI and single-process servers. The database runs
// in WAL mode so readers do not block the writer.
type SQLiteStore struct {
	sqlStore
	path string
}

// NewSQLiteStore opens (creating if needed) the database at path and
// migrates the schema. Use ":memory:" for a throwaway database.
//
// Example:
//
//	st, err := store.NewSQLiteStore("./flowgraph.db")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer st.Close()
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite connection: %w", err)
	}

	// SQLite supports one writer at a time.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	ctx := context.Background()
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}

	store := &SQLiteStore{
		sqlStore: sqlStore{db: db, dialect: sqliteDialect},
		path:     path,
	}
	if err := store.createTables(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Path returns the database file location.
func (s *SQLiteStore) Path() string { return s.path }
