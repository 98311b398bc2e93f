package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingReader records how many times each document ID reaches the
// backing reader.
type countingReader struct {
	docs  map[string]*Document
	calls map[string]int
}

var _ MetadataReader = (*countingReader)(nil)

func newCountingReader(docs ...*Document) *countingReader {
	r := &countingReader{docs: make(map[string]*Document), calls: make(map[string]int)}
	for _, d := range docs {
		r.docs[d.ID] = d
	}
	return r
}

func (r *countingReader) GetDocument(_ context.Context, id string) (*Document, error) {
	r.calls[id]++
	return r.docs[id], nil
}

func (r *countingReader) GetDocuments(_ context.Context, ids []string) (map[string]*Document, error) {
	out := make(map[string]*Document, len(ids))
	for _, id := range ids {
		r.calls[id]++
		if d, ok := r.docs[id]; ok {
			out[id] = d
		}
	}
	return out, nil
}

func TestCachedMetadata(t *testing.T) {
	ctx := context.Background()

	t.Run("second read hits the cache", func(t *testing.T) {
		reader := newCountingReader(&Document{ID: "d1", Title: "one"})
		cache, err := NewCachedMetadata(reader, 8)
		require.NoError(t, err)

		for i := 0; i < 3; i++ {
			doc, err := cache.GetDocument(ctx, "d1")
			require.NoError(t, err)
			require.NotNil(t, doc)
		}
		assert.Equal(t, 1, reader.calls["d1"])
	})

	t.Run("misses are cached as nil", func(t *testing.T) {
		reader := newCountingReader()
		cache, err := NewCachedMetadata(reader, 8)
		require.NoError(t, err)

		for i := 0; i < 3; i++ {
			doc, err := cache.GetDocument(ctx, "ghost")
			require.NoError(t, err)
			assert.Nil(t, doc)
		}
		assert.Equal(t, 1, reader.calls["ghost"])
	})

	t.Run("batch fetch only reads uncached IDs", func(t *testing.T) {
		reader := newCountingReader(
			&Document{ID: "d1", Title: "one"},
			&Document{ID: "d2", Title: "two"},
		)
		cache, err := NewCachedMetadata(reader, 8)
		require.NoError(t, err)

		_, err = cache.GetDocument(ctx, "d1")
		require.NoError(t, err)

		docs, err := cache.GetDocuments(ctx, []string{"d1", "d2", "ghost"})
		require.NoError(t, err)
		assert.Len(t, docs, 2)
		assert.Equal(t, 1, reader.calls["d1"], "d1 was already cached")
		assert.Equal(t, 1, reader.calls["d2"])

		// The ghost miss is cached now too.
		_, err = cache.GetDocuments(ctx, []string{"ghost"})
		require.NoError(t, err)
		assert.Equal(t, 1, reader.calls["ghost"])
	})

	t.Run("invalidate forces a re-read", func(t *testing.T) {
		reader := newCountingReader(&Document{ID: "d1", Title: "one"})
		cache, err := NewCachedMetadata(reader, 8)
		require.NoError(t, err)

		_, err = cache.GetDocument(ctx, "d1")
		require.NoError(t, err)
		cache.Invalidate("d1")
		_, err = cache.GetDocument(ctx, "d1")
		require.NoError(t, err)
		assert.Equal(t, 2, reader.calls["d1"])
	})

	t.Run("purge drops everything", func(t *testing.T) {
		reader := newCountingReader(&Document{ID: "d1"}, &Document{ID: "d2"})
		cache, err := NewCachedMetadata(reader, 8)
		require.NoError(t, err)

		_, err = cache.GetDocuments(ctx, []string{"d1", "d2"})
		require.NoError(t, err)
		cache.Purge()
		_, err = cache.GetDocuments(ctx, []string{"d1", "d2"})
		require.NoError(t, err)
		assert.Equal(t, 2, reader.calls["d1"])
		assert.Equal(t, 2, reader.calls["d2"])
	})
}
