package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/a2amesh/core"
)

var _ core.MemoryStore = (*InMemoryStore)(nil)

func TestInMemoryStore_SearchScoring(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()

	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	_, err := s.Store(ctx, core.Memory{Scope: "u1", Content: "The user likes gin and tonic", CreatedAt: base})
	require.NoError(t, err)
	_, err = s.Store(ctx, core.Memory{Scope: "u1", Content: "The user lives in Seattle", CreatedAt: base.Add(time.Minute)})
	require.NoError(t, err)
	_, err = s.Store(ctx, core.Memory{Scope: "u2", Content: "gin", CreatedAt: base})
	require.NoError(t, err)

	res, err := s.Search(ctx, "u1", "Which GIN cocktails?", 10)
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, "The user likes gin and tonic", res[0].Content)
	assert.InDelta(t, 1.0/3.0, res[0].Score, 1e-9)

	all, err := s.Search(ctx, "u1", "", 10)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "The user lives in Seattle", all[0].Content)

	limited, err := s.Search(ctx, "u1", "", 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	none, err := s.Search(ctx, "nobody", "gin", 5)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestInMemoryStore_StoreAssignsIDAndDelete(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()

	_, err := s.Store(ctx, core.Memory{Content: "no scope"})
	require.Error(t, err)

	m, err := s.Store(ctx, core.Memory{Scope: "u1", Content: "x", Metadata: map[string]any{"k": "v"}})
	require.NoError(t, err)
	assert.NotEmpty(t, m.ID)
	assert.False(t, m.CreatedAt.IsZero())

	list, err := s.List(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	list[0].Metadata["k"] = "changed"

	again, err := s.List(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "v", again[0].Metadata["k"])

	require.NoError(t, s.Delete(ctx, "u1", m.ID))
	assert.True(t, errors.Is(s.Delete(ctx, "u1", m.ID), ErrNotFound))
}
