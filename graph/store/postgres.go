package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dshills/flowgraph/graph"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS flowgraph_memory (
    mem_key    TEXT PRIMARY KEY,
    value      JSONB NOT NULL,
    updated_at BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS flowgraph_workflows (
    id         TEXT PRIMARY KEY,
    name       TEXT NOT NULL,
    data       JSONB NOT NULL,
    created_at BIGINT NOT NULL,
    updated_at BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS flowgraph_runs (
    id          TEXT PRIMARY KEY,
    workflow_id TEXT NOT NULL DEFAULT '',
    status      TEXT NOT NULL,
    started_at  BIGINT NOT NULL,
    data        JSONB NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_workflows_updated ON flowgraph_workflows(updated_at);
CREATE INDEX IF NOT EXISTS idx_runs_workflow     ON flowgraph_runs(workflow_id, started_at);
CREATE INDEX IF NOT EXISTS idx_runs_started      ON flowgraph_runs(started_at);
`

// PostgresStore is a Store on PostgreSQL through a pgx connection pool.
type PostgresStore struct {
	db *pgxpool.Pool

	mu     sync.RWMutex
	closed bool
}

// NewPostgresStore connects to dsn (a postgres:// URL or key=value string),
// verifies the connection and creates the schema.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open PostgreSQL pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping PostgreSQL: %w", err)
	}

	s := NewPostgresStoreFromPool(pool)
	if err := s.CreateSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// NewPostgresStoreFromPool wraps an existing pool. The caller is responsible
// for CreateSchema. Close closes the pool.
func NewPostgresStoreFromPool(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: pool}
}

// CreateSchema creates the flowgraph tables if they don't exist.
func (s *PostgresStore) CreateSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, postgresSchema); err != nil {
		return fmt.Errorf("failed to create postgres schema: %w", err)
	}
	return nil
}

// DropSchema drops the flowgraph tables.
func (s *PostgresStore) DropSchema(ctx context.Context) error {
	_, err := s.db.Exec(ctx, `DROP TABLE IF EXISTS flowgraph_runs, flowgraph_workflows, flowgraph_memory`)
	return err
}

func (s *PostgresStore) check() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}
	return nil
}

// Get reads a memory value from flowgraph_memory.
func (s *PostgresStore) Get(ctx context.Context, key string) (any, bool, error) {
	if err := s.check(); err != nil {
		return nil, false, err
	}

	var data []byte
	err := s.db.QueryRow(ctx, `SELECT value FROM flowgraph_memory WHERE mem_key = $1`, key).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read memory %q: %w", key, err)
	}
	v, err := decodeValue(key, data)
	if err != nil {
		return nil, false, err
	}
	return v, true, nil
}

// Set upserts a memory value.
func (s *PostgresStore) Set(ctx context.Context, key string, value any) error {
	if err := s.check(); err != nil {
		return err
	}
	data, err := encodeValue(key, value)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(ctx, `
		INSERT INTO flowgraph_memory (mem_key, value, updated_at) VALUES ($1, $2, $3)
		ON CONFLICT (mem_key) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at`,
		key, string(data), time.Now().UnixNano())
	if err != nil {
		return fmt.Errorf("failed to write memory %q: %w", key, err)
	}
	return nil
}

// SaveWorkflow inserts or updates w, assigning an ID when empty and keeping
// the stored CreatedAt on update.
func (s *PostgresStore) SaveWorkflow(ctx context.Context, w *Workflow) error {
	if err := s.check(); err != nil {
		return err
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op after commit

	var created time.Time
	if w.ID != "" {
		var nanos int64
		err := tx.QueryRow(ctx, `SELECT created_at FROM flowgraph_workflows WHERE id = $1 FOR UPDATE`, w.ID).Scan(&nanos)
		switch {
		case err == nil:
			created = time.Unix(0, nanos).UTC()
		case !errors.Is(err, pgx.ErrNoRows):
			return fmt.Errorf("failed to look up workflow %s: %w", w.ID, err)
		}
	}
	prepareWorkflow(w, created)

	data, err := encodeWorkflow(w)
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO flowgraph_workflows (id, name, data, created_at, updated_at) VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, data = EXCLUDED.data, updated_at = EXCLUDED.updated_at`,
		w.ID, w.Name, string(data), w.CreatedAt.UnixNano(), w.UpdatedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("failed to save workflow %s: %w", w.ID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// LoadWorkflow returns the workflow with id or ErrNotFound.
func (s *PostgresStore) LoadWorkflow(ctx context.Context, id string) (*Workflow, error) {
	if err := s.check(); err != nil {
		return nil, err
	}

	var data []byte
	err := s.db.QueryRow(ctx, `SELECT data FROM flowgraph_workflows WHERE id = $1`, id).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load workflow %s: %w", id, err)
	}
	return decodeWorkflow(data)
}

// ListWorkflows returns every workflow, most recently updated first.
func (s *PostgresStore) ListWorkflows(ctx context.Context) ([]*Workflow, error) {
	if err := s.check(); err != nil {
		return nil, err
	}

	rows, err := s.db.Query(ctx, `SELECT data FROM flowgraph_workflows ORDER BY updated_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list workflows: %w", err)
	}
	defer rows.Close()

	workflows := []*Workflow{}
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("failed to scan workflow: %w", err)
		}
		w, err := decodeWorkflow(data)
		if err != nil {
			return nil, err
		}
		workflows = append(workflows, w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list workflows: %w", err)
	}
	return workflows, nil
}

// SaveRun upserts run keyed by its ID.
func (s *PostgresStore) SaveRun(ctx context.Context, run *graph.Run) error {
	if err := s.check(); err != nil {
		return err
	}
	data, err := encodeRun(run)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(ctx, `
		INSERT INTO flowgraph_runs (id, workflow_id, status, started_at, data) VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET workflow_id = EXCLUDED.workflow_id, status = EXCLUDED.status,
			started_at = EXCLUDED.started_at, data = EXCLUDED.data`,
		run.ID, run.WorkflowID, string(run.Status), run.StartedAt.UnixNano(), string(data))
	if err != nil {
		return fmt.Errorf("failed to save run %s: %w", run.ID, err)
	}
	return nil
}

// LoadRun returns the run with id or ErrNotFound.
func (s *PostgresStore) LoadRun(ctx context.Context, id string) (*graph.Run, error) {
	if err := s.check(); err != nil {
		return nil, err
	}

	var data []byte
	err := s.db.QueryRow(ctx, `SELECT data FROM flowgraph_runs WHERE id = $1`, id).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load run %s: %w", id, err)
	}
	return decodeRun(data)
}

// ListRuns returns runs newest first, restricted to workflowID when set.
func (s *PostgresStore) ListRuns(ctx context.Context, workflowID string, limit int) ([]*graph.Run, error) {
	if err := s.check(); err != nil {
		return nil, err
	}

	var rows pgx.Rows
	var err error
	if workflowID == "" {
		rows, err = s.db.Query(ctx,
			`SELECT data FROM flowgraph_runs ORDER BY started_at DESC, id DESC LIMIT $1`, listLimit(limit))
	} else {
		rows, err = s.db.Query(ctx,
			`SELECT data FROM flowgraph_runs WHERE workflow_id = $1 ORDER BY started_at DESC, id DESC LIMIT $2`,
			workflowID, listLimit(limit))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	runs := []*graph.Run{}
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		run, err := decodeRun(data)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	return runs, nil
}

// Ping checks the pool can reach the server.
func (s *PostgresStore) Ping(ctx context.Context) error {
	if err := s.check(); err != nil {
		return err
	}
	return s.db.Ping(ctx)
}

// Close closes the pool. Calling Close twice is a no-op.
func (s *PostgresStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.db.Close()
	return nil
}
