package artifact

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"cloud.google.com/go/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/a2amesh/core"
)

var (
	_ core.ArtifactStore = (*InMemoryStore)(nil)
	_ core.ArtifactStore = (*GCSStore)(nil)
)

func TestInMemoryStore_SaveGetIsolation(t *testing.T) {
	ctx := context.Background()
	svc := NewInMemoryStore()
	data := []byte("hello")
	require.NoError(t, svc.Save(ctx, "s1", "a1", data))

	data[0] = 'H'
	out, err := svc.Get(ctx, "s1", "a1")
	require.NoError(t, err)
	assert.Equal(t, "hello", string(out))

	out[0] = 'x'
	out2, err := svc.Get(ctx, "s1", "a1")
	require.NoError(t, err)
	assert.Equal(t, "hello", string(out2))
}

func TestInMemoryStore_ListAndDelete(t *testing.T) {
	ctx := context.Background()
	svc := NewInMemoryStore()
	require.NoError(t, svc.Save(ctx, "s1", "b.png", []byte("2")))
	require.NoError(t, svc.Save(ctx, "s1", "a.txt", []byte("1")))

	names, err := svc.List(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, []string{"a.txt", "b.png"}, names)

	empty, err := svc.List(ctx, "nope")
	require.NoError(t, err)
	assert.Empty(t, empty)

	require.NoError(t, svc.Delete(ctx, "s1", "a.txt"))
	assert.ErrorIs(t, svc.Delete(ctx, "s1", "a.txt"), ErrNotFound)

	_, err = svc.Get(ctx, "s1", "a.txt")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGCSStore_ObjectNames(t *testing.T) {
	s := &GCSStore{opts: gcsDefaults()}
	assert.Equal(t, "artifacts/s1/report.pdf", s.objectName("s1", "report.pdf"))

	custom := &GCSStore{opts: gcsDefaults(func(o *GCSOptions) { o.Prefix = "a2a/files" })}
	assert.Equal(t, "a2a/files/s1/", custom.sessionPrefix("s1"))
}

func TestMapGCSError(t *testing.T) {
	err := mapGCSError(fmt.Errorf("wrapped: %w", storage.ErrObjectNotExist), "s1", "x")
	assert.ErrorIs(t, err, ErrNotFound)

	other := errors.New("boom")
	assert.Equal(t, other, mapGCSError(other, "s1", "x"))
}
