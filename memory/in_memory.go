package memory

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/hupe1980/a2amesh/core"
)

// ErrNotFound is returned when a memory id is unknown within its scope.
var ErrNotFound = errors.New("memory not found")

// InMemoryStore is a process-local MemoryStore. Memories are grouped by scope
// (normally the user id) and searched with a keyword-overlap score.
type InMemoryStore struct {
	mu       sync.RWMutex
	memories map[string][]core.Memory
}

// NewInMemoryStore creates an empty store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{memories: make(map[string][]core.Memory)}
}

// Store persists m, assigning an id and creation time when missing.
func (s *InMemoryStore) Store(_ context.Context, m core.Memory) (core.Memory, error) {
	if m.Scope == "" {
		return core.Memory{}, fmt.Errorf("memory scope is required")
	}

	if m.ID == "" {
		m.ID = core.NewID()
	}

	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}

	m.Metadata = maps.Clone(m.Metadata)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.memories[m.Scope] = append(s.memories[m.Scope], m)

	return m, nil
}

// Search scores every memory in scope by the fraction of query keywords found
// in its content or topic. Memories without any match are dropped. An empty
// query returns all memories, most recent first. limit <= 0 means unlimited.
func (s *InMemoryStore) Search(_ context.Context, scope, query string, limit int) ([]core.SearchResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	terms := keywords(query)
	results := make([]core.SearchResult, 0)

	for _, m := range s.memories[scope] {
		score := 1.0
		if len(terms) > 0 {
			score = overlap(terms, keywords(m.Topic+" "+m.Content))
			if score == 0 {
				continue
			}
		}
		results = append(results, core.SearchResult{Memory: copyMemory(m), Score: score})
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].CreatedAt.After(results[j].CreatedAt)
	})

	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}

	return results, nil
}

// List returns every memory in scope, most recent first.
func (s *InMemoryStore) List(_ context.Context, scope string) ([]core.Memory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]core.Memory, 0, len(s.memories[scope]))
	for _, m := range s.memories[scope] {
		out = append(out, copyMemory(m))
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })

	return out, nil
}

// Delete removes a memory by id within scope.
func (s *InMemoryStore) Delete(_ context.Context, scope, memoryID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := s.memories[scope]
	for i, m := range list {
		if m.ID == memoryID {
			s.memories[scope] = append(list[:i:i], list[i+1:]...)
			return nil
		}
	}

	return fmt.Errorf("%w: %s", ErrNotFound, memoryID)
}

func copyMemory(m core.Memory) core.Memory {
	m.Metadata = maps.Clone(m.Metadata)
	return m
}

// keywords lowercases s and splits it into distinct alphanumeric tokens.
func keywords(s string) map[string]struct{} {
	out := map[string]struct{}{}
	for _, f := range strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		out[f] = struct{}{}
	}
	return out
}

func overlap(query, doc map[string]struct{}) float64 {
	hits := 0
	for t := range query {
		if _, ok := doc[t]; ok {
			hits++
		}
	}
	return float64(hits) / float64(len(query))
}
