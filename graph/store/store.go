// Package store persists workflows, run history and memory-cell values.
//
// Every backend implements Store, which also satisfies graph.MemoryStore so the
// engine can keep memory cells in the same database as the workflows that use
// them:
//
//	st, err := store.NewSQLiteStore("./flowgraph.db")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer st.Close()
//	engine, err := graph.New(registry, st, emitter)
//
// Workflows and runs are stored as JSON documents, so a run loaded back from a
// store carries decoded JSON node outputs rather than the typed values the
// engine produced.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dshills/flowgraph/graph"
)

// ErrNotFound is returned when a workflow or run id does not exist.
var ErrNotFound = errors.New("not found")

// ErrClosed is returned by every operation after Close.
var ErrClosed = errors.New("store is closed")

// DefaultListLimit bounds ListRuns when the caller passes no limit.
const DefaultListLimit = 50

// Store is the persistence contract shared by all backends.
type Store interface {
	graph.MemoryStore

	// SaveWorkflow inserts or replaces w. An empty ID is filled with a new
	// UUID; CreatedAt is kept from the first save and UpdatedAt is refreshed.
	SaveWorkflow(ctx context.Context, w *Workflow) error

	// LoadWorkflow returns ErrNotFound for an unknown id.
	LoadWorkflow(ctx context.Context, id string) (*Workflow, error)

	// ListWorkflows returns all workflows, most recently updated first.
	ListWorkflows(ctx context.Context) ([]*Workflow, error)

	// SaveRun inserts or replaces a finished run.
	SaveRun(ctx context.Context, run *graph.Run) error

	// LoadRun returns ErrNotFound for an unknown id.
	LoadRun(ctx context.Context, id string) (*graph.Run, error)

	// ListRuns returns runs newest first. An empty workflowID lists runs of
	// every workflow; limit <= 0 means DefaultListLimit.
	ListRuns(ctx context.Context, workflowID string, limit int) ([]*graph.Run, error)

	Ping(ctx context.Context) error
	Close() error
}

// Workflow is a named, stored graph.
type Workflow struct {
	ID        string       `json:"id"`
	Name      string       `json:"name"`
	Nodes     []graph.Node `json:"nodes"`
	Edges     []graph.Edge `json:"edges"`
	CreatedAt time.Time    `json:"createdAt"`
	UpdatedAt time.Time    `json:"updatedAt"`
}

// Graph returns the workflow's graph.
func (w *Workflow) Graph() *graph.Graph {
	return &graph.Graph{Nodes: w.Nodes, Edges: w.Edges}
}

// prepareWorkflow assigns an id and timestamps before a save. created is the
// creation time of an existing record, zero for a new one.
func prepareWorkflow(w *Workflow, created time.Time) {
	if w.ID == "" {
		w.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	switch {
	case !created.IsZero():
		w.CreatedAt = created
	case w.CreatedAt.IsZero():
		w.CreatedAt = now
	}
	w.UpdatedAt = now
}

func listLimit(limit int) int {
	if limit <= 0 {
		return DefaultListLimit
	}
	return limit
}

func encodeWorkflow(w *Workflow) ([]byte, error) {
	data, err := json.Marshal(w)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal workflow %s: %w", w.ID, err)
	}
	return data, nil
}

func decodeWorkflow(data []byte) (*Workflow, error) {
	var w Workflow
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("failed to unmarshal workflow: %w", err)
	}
	return &w, nil
}

func encodeRun(run *graph.Run) ([]byte, error) {
	if run.ID == "" {
		return nil, errors.New("run id is required")
	}
	data, err := json.Marshal(run)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal run %s: %w", run.ID, err)
	}
	return data, nil
}

func decodeRun(data []byte) (*graph.Run, error) {
	var run graph.Run
	if err := json.Unmarshal(data, &run); err != nil {
		return nil, fmt.Errorf("failed to unmarshal run: %w", err)
	}
	return &run, nil
}

func encodeValue(key string, value any) ([]byte, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal memory value %q: %w", key, err)
	}
	return data, nil
}

func decodeValue(key string, data []byte) (any, error) {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("failed to unmarshal memory value %q: %w", key, err)
	}
	return v, nil
}
