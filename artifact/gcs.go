package artifact

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

// GCSOptions configures a GCSStore.
type GCSOptions struct {
	// Prefix is prepended to every object name. Defaults to "artifacts".
	Prefix string
	// ContentType is set on uploaded objects. Defaults to application/octet-stream.
	ContentType string
	// ClientOptions are passed to storage.NewClient.
	ClientOptions []option.ClientOption
}

// GCSStore persists artifacts in a Cloud Storage bucket.
type GCSStore struct {
	client *storage.Client
	bucket *storage.BucketHandle
	opts   GCSOptions
	owned  bool
}

// NewGCSStore creates a storage client and binds it to bucket.
func NewGCSStore(ctx context.Context, bucket string, optFns ...func(o *GCSOptions)) (*GCSStore, error) {
	opts := gcsDefaults(optFns...)

	client, err := storage.NewClient(ctx, opts.ClientOptions...)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}

	s := NewGCSStoreFromClient(client, bucket, optFns...)
	s.owned = true

	return s, nil
}

// NewGCSStoreFromClient binds an existing client to bucket. Close does not
// close a client supplied this way.
func NewGCSStoreFromClient(client *storage.Client, bucket string, optFns ...func(o *GCSOptions)) *GCSStore {
	return &GCSStore{client: client, bucket: client.Bucket(bucket), opts: gcsDefaults(optFns...)}
}

func gcsDefaults(optFns ...func(o *GCSOptions)) GCSOptions {
	opts := GCSOptions{Prefix: "artifacts", ContentType: "application/octet-stream"}
	for _, fn := range optFns {
		fn(&opts)
	}
	return opts
}

// Save uploads data to <prefix>/<session>/<name>.
func (s *GCSStore) Save(ctx context.Context, sessionID, name string, data []byte) error {
	w := s.bucket.Object(s.objectName(sessionID, name)).NewWriter(ctx)
	w.ContentType = s.opts.ContentType

	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return fmt.Errorf("write artifact %s: %w", name, err)
	}

	if err := w.Close(); err != nil {
		return fmt.Errorf("write artifact %s: %w", name, err)
	}

	return nil
}

// Get downloads the artifact or returns ErrNotFound.
func (s *GCSStore) Get(ctx context.Context, sessionID, name string) ([]byte, error) {
	r, err := s.bucket.Object(s.objectName(sessionID, name)).NewReader(ctx)
	if err != nil {
		return nil, mapGCSError(err, sessionID, name)
	}
	defer r.Close()

	return io.ReadAll(r)
}

// List returns the sorted artifact names stored under the session prefix.
func (s *GCSStore) List(ctx context.Context, sessionID string) ([]string, error) {
	prefix := s.sessionPrefix(sessionID)
	it := s.bucket.Objects(ctx, &storage.Query{Prefix: prefix})

	names := make([]string, 0)
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("list artifacts: %w", err)
		}
		names = append(names, strings.TrimPrefix(attrs.Name, prefix))
	}

	sort.Strings(names)

	return names, nil
}

// Delete removes the artifact or returns ErrNotFound.
func (s *GCSStore) Delete(ctx context.Context, sessionID, name string) error {
	if err := s.bucket.Object(s.objectName(sessionID, name)).Delete(ctx); err != nil {
		return mapGCSError(err, sessionID, name)
	}
	return nil
}

// Close closes the storage client when the store created it.
func (s *GCSStore) Close() error {
	if s.owned {
		return s.client.Close()
	}
	return nil
}

func (s *GCSStore) sessionPrefix(sessionID string) string {
	return path.Join(s.opts.Prefix, sessionID) + "/"
}

func (s *GCSStore) objectName(sessionID, name string) string {
	return s.sessionPrefix(sessionID) + name
}

func mapGCSError(err error, sessionID, name string) error {
	if errors.Is(err, storage.ErrObjectNotExist) {
		return fmt.Errorf("%w: %s/%s", ErrNotFound, sessionID, name)
	}
	return err
}
