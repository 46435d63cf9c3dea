package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dshills/flowgraph/graph"
)

// dialect holds the statements that differ between database/sql backends.
// All of them use ? placeholders.
type dialect struct {
	name           string
	schema         []string
	upsertMemory   string
	upsertWorkflow string
	upsertRun      string
}

// Shared statements. Timestamps are stored as Unix nanoseconds so ordering
// does not depend on driver time handling.
const (
	selectMemory       = `SELECT value FROM flowgraph_memory WHERE mem_key = ?`
	selectWorkflow     = `SELECT data FROM flowgraph_workflows WHERE id = ?`
	selectWorkflowTime = `SELECT created_at FROM flowgraph_workflows WHERE id = ?`
	selectWorkflows    = `SELECT data FROM flowgraph_workflows ORDER BY updated_at DESC, id DESC`
	selectRun          = `SELECT data FROM flowgraph_runs WHERE id = ?`
	selectRuns         = `SELECT data FROM flowgraph_runs ORDER BY started_at DESC, id DESC LIMIT ?`
	selectRunsByFlow   = `SELECT data FROM flowgraph_runs WHERE workflow_id = ? ORDER BY started_at DESC, id DESC LIMIT ?`
)

// sqlStore implements Store on database/sql. SQLiteStore and MySQLStore
// embed it with their own dialect.
type sqlStore struct {
	db      *sql.DB
	dialect dialect

	mu     sync.RWMutex
	closed bool
}

func (s *sqlStore) createTables(ctx context.Context) error {
	for _, stmt := range s.dialect.schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create %s schema: %w", s.dialect.name, err)
		}
	}
	return nil
}

func (s *sqlStore) check() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}
	return nil
}

func (s *sqlStore) Get(ctx context.Context, key string) (any, bool, error) {
	if err := s.check(); err != nil {
		return nil, false, err
	}

	var data []byte
	err := s.db.QueryRowContext(ctx, selectMemory, key).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
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

func (s *sqlStore) Set(ctx context.Context, key string, value any) error {
	if err := s.check(); err != nil {
		return err
	}
	data, err := encodeValue(key, value)
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, s.dialect.upsertMemory, key, string(data), time.Now().UnixNano()); err != nil {
		return fmt.Errorf("failed to write memory %q: %w", key, err)
	}
	return nil
}

// SaveWorkflow runs in a transaction so the CreatedAt read and the upsert
// see the same row.
func (s *sqlStore) SaveWorkflow(ctx context.Context, w *Workflow) (err error) {
	if err := s.check(); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var created time.Time
	if w.ID != "" {
		var nanos int64
		switch err := tx.QueryRowContext(ctx, selectWorkflowTime, w.ID).Scan(&nanos); {
		case err == nil:
			created = time.Unix(0, nanos).UTC()
		case !errors.Is(err, sql.ErrNoRows):
			return fmt.Errorf("failed to look up workflow %s: %w", w.ID, err)
		}
	}
	prepareWorkflow(w, created)

	data, err := encodeWorkflow(w)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, s.dialect.upsertWorkflow,
		w.ID, w.Name, string(data), w.CreatedAt.UnixNano(), w.UpdatedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("failed to save workflow %s: %w", w.ID, err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (s *sqlStore) LoadWorkflow(ctx context.Context, id string) (*Workflow, error) {
	if err := s.check(); err != nil {
		return nil, err
	}

	var data []byte
	err := s.db.QueryRowContext(ctx, selectWorkflow, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load workflow %s: %w", id, err)
	}
	return decodeWorkflow(data)
}

func (s *sqlStore) ListWorkflows(ctx context.Context) ([]*Workflow, error) {
	if err := s.check(); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, selectWorkflows)
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

func (s *sqlStore) SaveRun(ctx context.Context, run *graph.Run) error {
	if err := s.check(); err != nil {
		return err
	}
	data, err := encodeRun(run)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, s.dialect.upsertRun,
		run.ID, run.WorkflowID, string(run.Status), run.StartedAt.UnixNano(), string(data))
	if err != nil {
		return fmt.Errorf("failed to save run %s: %w", run.ID, err)
	}
	return nil
}

func (s *sqlStore) LoadRun(ctx context.Context, id string) (*graph.Run, error) {
	if err := s.check(); err != nil {
		return nil, err
	}

	var data []byte
	err := s.db.QueryRowContext(ctx, selectRun, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load run %s: %w", id, err)
	}
	return decodeRun(data)
}

// ListRuns returns runs newest first, restricted to workflowID when set.
func (s *sqlStore) ListRuns(ctx context.Context, workflowID string, limit int) ([]*graph.Run, error) {
	if err := s.check(); err != nil {
		return nil, err
	}

	var rows *sql.Rows
	var err error
	if workflowID == "" {
		rows, err = s.db.QueryContext(ctx, selectRuns, listLimit(limit))
	} else {
		rows, err = s.db.QueryContext(ctx, selectRunsByFlow, workflowID, listLimit(limit))
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

// Ping verifies the database connection is alive.
func (s *sqlStore) Ping(ctx context.Context) error {
	if err := s.check(); err != nil {
		return err
	}
	return s.db.PingContext(ctx)
}

// Close closes the database. Calling Close twice is a no-op.
func (s *sqlStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}
