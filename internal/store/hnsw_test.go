package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHNSW(t *testing.T, dims int) *HNSWIndex {
	t.Helper()
	idx, err := NewHNSWIndex(DefaultHNSWConfig(dims))
	require.NoError(t, err)
	t.Cleanup(func() { _ = idx.Close() })
	return idx
}

func record(id string, vec ...float32) *VectorRecord {
	return &VectorRecord{ChunkID: id, Vector: vec}
}

func TestHNSWIndex(t *testing.T) {
	ctx := context.Background()

	t.Run("nearest neighbor comes first", func(t *testing.T) {
		idx := newTestHNSW(t, 3)
		require.NoError(t, idx.Add(ctx, []*VectorRecord{
			record("x", 1, 0, 0),
			record("y", 0, 1, 0),
			record("z", 0, 0, 1),
		}))

		results, err := idx.Search(ctx, []float32{0.9, 0.1, 0}, 2)
		require.NoError(t, err)
		require.NotEmpty(t, results)
		assert.Equal(t, "x", results[0].ID)
		assert.Greater(t, results[0].Score, float32(0.9))
	})

	t.Run("identical vector scores one", func(t *testing.T) {
		idx := newTestHNSW(t, 3)
		require.NoError(t, idx.Add(ctx, []*VectorRecord{record("x", 0.5, 0.5, 0)}))

		results, err := idx.Search(ctx, []float32{0.5, 0.5, 0}, 1)
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.InDelta(t, 1.0, float64(results[0].Score), 1e-5)
	})

	t.Run("empty index returns no results", func(t *testing.T) {
		idx := newTestHNSW(t, 3)
		results, err := idx.Search(ctx, []float32{1, 0, 0}, 5)
		require.NoError(t, err)
		assert.Empty(t, results)
	})

	t.Run("rejects wrong dimensions", func(t *testing.T) {
		idx := newTestHNSW(t, 3)

		err := idx.Add(ctx, []*VectorRecord{record("x", 1, 0)})
		var mismatch ErrDimensionMismatch
		require.ErrorAs(t, err, &mismatch)
		assert.Equal(t, 3, mismatch.Expected)
		assert.Equal(t, 2, mismatch.Got)

		_, err = idx.Search(ctx, []float32{1, 0}, 1)
		assert.ErrorAs(t, err, &mismatch)
	})

	t.Run("re-adding an ID replaces the vector", func(t *testing.T) {
		idx := newTestHNSW(t, 3)
		require.NoError(t, idx.Add(ctx, []*VectorRecord{record("x", 1, 0, 0)}))
		require.NoError(t, idx.Add(ctx, []*VectorRecord{record("x", 0, 1, 0)}))

		assert.Equal(t, 1, idx.Count())

		results, err := idx.Search(ctx, []float32{0, 1, 0}, 1)
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, "x", results[0].ID)
		assert.InDelta(t, 1.0, float64(results[0].Score), 1e-5)
	})

	t.Run("deleted IDs never surface", func(t *testing.T) {
		idx := newTestHNSW(t, 3)
		require.NoError(t, idx.Add(ctx, []*VectorRecord{
			record("x", 1, 0, 0),
			record("y", 0, 1, 0),
		}))
		require.NoError(t, idx.Delete(ctx, []string{"x"}))

		assert.Equal(t, 1, idx.Count())

		results, err := idx.Search(ctx, []float32{1, 0, 0}, 2)
		require.NoError(t, err)
		for _, r := range results {
			assert.NotEqual(t, "x", r.ID)
		}
	})

	t.Run("deleting an unknown ID is fine", func(t *testing.T) {
		idx := newTestHNSW(t, 3)
		assert.NoError(t, idx.Delete(ctx, []string{"ghost"}))
	})

	t.Run("closed index rejects operations", func(t *testing.T) {
		idx, err := NewHNSWIndex(DefaultHNSWConfig(3))
		require.NoError(t, err)
		require.NoError(t, idx.Close())
		require.NoError(t, idx.Close(), "close is idempotent")

		assert.Error(t, idx.Add(ctx, []*VectorRecord{record("x", 1, 0, 0)}))
		_, err = idx.Search(ctx, []float32{1, 0, 0}, 1)
		assert.Error(t, err)
		assert.Zero(t, idx.Count())
	})
}

func TestNewHNSWIndexValidation(t *testing.T) {
	_, err := NewHNSWIndex(HNSWConfig{Dimensions: 0})
	assert.Error(t, err)
}
