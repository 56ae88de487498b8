package artifact

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// InMemoryStore is an in‑process ArtifactStore. Data is copied on save and
// retrieval so callers never share buffers with the store.
//
// Layout: sessionID -> name -> raw bytes
type InMemoryStore struct {
	mu        sync.RWMutex
	artifacts map[string]map[string][]byte
}

// NewInMemoryStore returns an empty in‑memory artifact store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{artifacts: make(map[string]map[string][]byte)}
}

// Save stores (or overwrites) the artifact bytes for the given session and name.
func (a *InMemoryStore) Save(_ context.Context, sessionID, name string, data []byte) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if _, exists := a.artifacts[sessionID]; !exists {
		a.artifacts[sessionID] = make(map[string][]byte)
	}

	a.artifacts[sessionID][name] = append([]byte(nil), data...)

	return nil
}

// Get returns a copy of the stored artifact bytes or ErrNotFound.
func (a *InMemoryStore) Get(_ context.Context, sessionID, name string) ([]byte, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	data, ok := a.artifacts[sessionID][name]
	if !ok {
		return nil, fmt.Errorf("%w: %s/%s", ErrNotFound, sessionID, name)
	}

	return append([]byte(nil), data...), nil
}

// List returns the sorted artifact names stored for the session.
func (a *InMemoryStore) List(_ context.Context, sessionID string) ([]string, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	names := make([]string, 0, len(a.artifacts[sessionID]))
	for name := range a.artifacts[sessionID] {
		names = append(names, name)
	}

	sort.Strings(names)

	return names, nil
}

// Delete removes the artifact if present or returns ErrNotFound.
func (a *InMemoryStore) Delete(_ context.Context, sessionID, name string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if _, ok := a.artifacts[sessionID][name]; !ok {
		return fmt.Errorf("%w: %s/%s", ErrNotFound, sessionID, name)
	}

	delete(a.artifacts[sessionID], name)

	return nil
}
