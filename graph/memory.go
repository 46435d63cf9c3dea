package graph

import (
	"context"
	"sync"
)

// MemoryStore is the key/value store behind memory-cell nodes. It outlives a
// single run so later runs can read what earlier runs wrote.
//
// Implementations must be safe for concurrent use. Values are the typed
// outputs of memory-cell writes (string, float64, bool or decoded JSON).
type MemoryStore interface {
	Get(ctx context.Context, key string) (value any, ok bool, err error)
	Set(ctx context.Context, key string, value any) error
}

// MemoryMap is an in-process MemoryStore.
type MemoryMap struct {
	mu     sync.RWMutex
	values map[string]any
}

// NewMemoryMap returns an empty in-process MemoryStore.
func NewMemoryMap() *MemoryMap {
	return &MemoryMap{values: make(map[string]any)}
}

// Get returns the value stored under key and whether it exists.
//
// It never fails; the error is part of the MemoryStore contract for
// persistent backends.
func (m *MemoryMap) Get(_ context.Context, key string) (any, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[key]
	return v, ok, nil
}

// Set stores value under key, replacing any previous value.
//
// Values are held by reference. Callers must not mutate a value after
// storing it.
func (m *MemoryMap) Set(_ context.Context, key string, value any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}

// waveMemory is the view of the store handed to evaluators during one wave.
// Reads go to the underlying store; writes are held until the wave ends so a
// read never observes a write from its own wave.
type waveMemory struct {
	store MemoryStore

	mu     sync.Mutex
	staged map[string]stagedWrite
}

type stagedWrite struct {
	key   string
	value any
}

func newWaveMemory(store MemoryStore) *waveMemory {
	return &waveMemory{store: store, staged: make(map[string]stagedWrite)}
}

func (w *waveMemory) stage(nodeID, key string, value any) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.staged[nodeID] = stagedWrite{key: key, value: value}
}

// commit applies the staged writes of the given nodes in order and returns
// the failures by node id. A failed write does not stop later ones.
func (w *waveMemory) commit(ctx context.Context, order []string) map[string]error {
	w.mu.Lock()
	defer w.mu.Unlock()

	var failed map[string]error
	for _, id := range order {
		sw, ok := w.staged[id]
		if !ok {
			continue
		}
		if err := w.store.Set(ctx, sw.key, sw.value); err != nil {
			if failed == nil {
				failed = make(map[string]error)
			}
			failed[id] = err
		}
	}
	return failed
}

// nodeMemory binds a wave view to the node performing the write.
type nodeMemory struct {
	wave   *waveMemory
	nodeID string
}

func (n nodeMemory) Get(ctx context.Context, key string) (any, bool, error) {
	return n.wave.store.Get(ctx, key)
}

func (n nodeMemory) Set(_ context.Context, key string, value any) error {
	n.wave.stage(n.nodeID, key, value)
	return nil
}
