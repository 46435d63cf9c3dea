package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/dshills/flowgraph/graph"
)

// MemStore is an in-process Store.
//
// Records are kept in their JSON form, so values read back behave exactly as
// they would from a database backend. MemStore is safe for concurrent use and
// loses everything when the process exits.
type MemStore struct {
	mu        sync.RWMutex
	memory    map[string][]byte
	workflows map[string]memRecord
	runs      map[string]memRecord
	closed    bool
}

type memRecord struct {
	owner string // workflow id of a run
	at    time.Time
	data  []byte
}

// NewMemStore creates an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{
		memory:    make(map[string][]byte),
		workflows: make(map[string]memRecord),
		runs:      make(map[string]memRecord),
	}
}

// Get returns the memory value under key.
//
// Values are stored encoded, so the result is a fresh copy and has the same
// shape a SQL backend would return.
func (m *MemStore) Get(_ context.Context, key string) (any, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, false, ErrClosed
	}
	data, ok := m.memory[key]
	if !ok {
		return nil, false, nil
	}
	v, err := decodeValue(key, data)
	if err != nil {
		return nil, false, err
	}
	return v, true, nil
}

// Set encodes value and stores it under key.
func (m *MemStore) Set(_ context.Context, key string, value any) error {
	data, err := encodeValue(key, value)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	m.memory[key] = data
	return nil
}

// SaveWorkflow inserts or replaces w.
//
// An empty ID is assigned a new UUID. Replacing keeps the original
// CreatedAt; UpdatedAt is always set to now.
func (m *MemStore) SaveWorkflow(_ context.Context, w *Workflow) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}

	var created time.Time
	if w.ID != "" {
		if prev, ok := m.workflows[w.ID]; ok {
			old, err := decodeWorkflow(prev.data)
			if err != nil {
				return err
			}
			created = old.CreatedAt
		}
	}
	prepareWorkflow(w, created)

	data, err := encodeWorkflow(w)
	if err != nil {
		return err
	}
	m.workflows[w.ID] = memRecord{at: w.UpdatedAt, data: data}
	return nil
}

// LoadWorkflow returns the workflow with id or ErrNotFound.
func (m *MemStore) LoadWorkflow(_ context.Context, id string) (*Workflow, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrClosed
	}
	rec, ok := m.workflows[id]
	if !ok {
		return nil, ErrNotFound
	}
	return decodeWorkflow(rec.data)
}

// ListWorkflows returns every workflow, most recently updated first.
func (m *MemStore) ListWorkflows(_ context.Context) ([]*Workflow, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrClosed
	}

	records := sortedRecords(m.workflows, "", 0)
	out := make([]*Workflow, 0, len(records))
	for _, rec := range records {
		w, err := decodeWorkflow(rec.data)
		if err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, nil
}

// SaveRun records run, replacing an earlier record with the same ID.
func (m *MemStore) SaveRun(_ context.Context, run *graph.Run) error {
	data, err := encodeRun(run)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	m.runs[run.ID] = memRecord{owner: run.WorkflowID, at: run.StartedAt, data: data}
	return nil
}

// LoadRun returns the run with id or ErrNotFound.
func (m *MemStore) LoadRun(_ context.Context, id string) (*graph.Run, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrClosed
	}
	rec, ok := m.runs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return decodeRun(rec.data)
}

// ListRuns returns runs newest first, restricted to workflowID when it is
// set. A limit of 0 means DefaultListLimit.
func (m *MemStore) ListRuns(_ context.Context, workflowID string, limit int) ([]*graph.Run, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrClosed
	}

	records := sortedRecords(m.runs, workflowID, listLimit(limit))
	out := make([]*graph.Run, 0, len(records))
	for _, rec := range records {
		run, err := decodeRun(rec.data)
		if err != nil {
			return nil, err
		}
		out = append(out, run)
	}
	return out, nil
}

// sortedRecords returns records newest first, ties broken by descending id
// as in the SQL backends. A non-empty owner filters runs by workflow.
func sortedRecords(records map[string]memRecord, owner string, limit int) []memRecord {
	type keyed struct {
		id  string
		rec memRecord
	}
	var list []keyed
	for id, rec := range records {
		if owner != "" && rec.owner != owner {
			continue
		}
		list = append(list, keyed{id, rec})
	}
	sort.Slice(list, func(i, j int) bool {
		if !list[i].rec.at.Equal(list[j].rec.at) {
			return list[i].rec.at.After(list[j].rec.at)
		}
		return list[i].id > list[j].id
	})
	if limit > 0 && len(list) > limit {
		list = list[:limit]
	}
	out := make([]memRecord, len(list))
	for i, k := range list {
		out[i] = k.rec
	}
	return out
}

// Ping reports ErrClosed after Close.
func (m *MemStore) Ping(context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return ErrClosed
	}
	return nil
}

// Close marks the store closed. Data is discarded.
func (m *MemStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.memory = nil
	m.workflows = nil
	m.runs = nil
	return nil
}
