package lexical

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grantwell/grantwell/internal/store"
)

func chunk(id, content string) *store.Chunk {
	return &store.Chunk{ID: id, DocumentID: "doc-" + id, Content: content}
}

// docFreqInvariant checks df(t) == number of distinct chunks containing t
// for every term in the snapshot.
func docFreqInvariant(t *testing.T, s *Snapshot) {
	t.Helper()
	for term, df := range s.docFreq {
		assert.Len(t, s.postings[term], df, "df mismatch for term %q", term)
	}
	for term, chunkTF := range s.postings {
		assert.Equal(t, len(chunkTF), s.docFreq[term], "postings without matching df for %q", term)
	}
}

func TestIndexRebuild(t *testing.T) {
	idx := NewIndex()
	idx.Rebuild([]*store.Chunk{
		chunk("c1", "grant funding for youth programs"),
		chunk("c2", "annual report on grant outcomes"),
	})

	snap := idx.Snapshot()
	require.NotNil(t, snap)
	assert.Equal(t, 2, snap.ChunkCount())
	assert.True(t, snap.Contains("c1"))
	assert.True(t, snap.Contains("c2"))
	assert.Equal(t, 2, snap.docFreq["grant"])
	assert.Equal(t, 1, snap.docFreq["youth"])
	docFreqInvariant(t, snap)
}

func TestIndexApply(t *testing.T) {
	t.Run("add and remove preserve df invariant", func(t *testing.T) {
		idx := NewIndex()
		idx.Rebuild([]*store.Chunk{chunk("c1", "grant funding")})

		idx.Apply([]*store.Chunk{chunk("c2", "grant report")}, nil)
		snap := idx.Snapshot()
		assert.Equal(t, 2, snap.docFreq["grant"])
		docFreqInvariant(t, snap)

		idx.Apply(nil, []string{"c1"})
		snap = idx.Snapshot()
		assert.Equal(t, 1, snap.docFreq["grant"])
		assert.False(t, snap.Contains("c1"))
		_, hasFunding := snap.docFreq["funding"]
		assert.False(t, hasFunding, "terms of removed chunks must disappear")
		docFreqInvariant(t, snap)
	})

	t.Run("re-adding an existing chunk replaces it", func(t *testing.T) {
		idx := NewIndex()
		idx.Rebuild([]*store.Chunk{chunk("c1", "grant funding")})

		idx.Apply([]*store.Chunk{chunk("c1", "budget narrative")}, nil)
		snap := idx.Snapshot()
		assert.Equal(t, 1, snap.ChunkCount())
		_, hasGrant := snap.docFreq["grant"]
		assert.False(t, hasGrant)
		assert.Equal(t, 1, snap.docFreq["budget"])
		docFreqInvariant(t, snap)
	})

	t.Run("unknown removal ids are ignored", func(t *testing.T) {
		idx := NewIndex()
		idx.Rebuild([]*store.Chunk{chunk("c1", "grant funding")})
		idx.Apply(nil, []string{"nope"})
		assert.Equal(t, 1, idx.Snapshot().ChunkCount())
	})
}

func TestSnapshotImmutability(t *testing.T) {
	idx := NewIndex()
	idx.Rebuild([]*store.Chunk{
		chunk("c1", "grant funding"),
		chunk("c2", "grant report"),
	})

	old := idx.Snapshot()
	oldGrantDF := old.docFreq["grant"]

	idx.Apply([]*store.Chunk{chunk("c3", "grant budget")}, []string{"c1"})

	// The previously published snapshot must be unchanged.
	assert.Equal(t, oldGrantDF, old.docFreq["grant"])
	assert.Equal(t, 2, old.ChunkCount())
	assert.True(t, old.Contains("c1"))

	fresh := idx.Snapshot()
	assert.Equal(t, 2, fresh.docFreq["grant"])
	assert.False(t, fresh.Contains("c1"))
	assert.Greater(t, fresh.Generation(), old.Generation())
}

func TestSnapshotStats(t *testing.T) {
	idx := NewIndex()
	idx.Rebuild([]*store.Chunk{
		chunk("c1", "grant funding youth"),
		chunk("c2", "grant"),
	})

	stats := idx.Snapshot().Stats()
	assert.Equal(t, 2, stats.Chunks)
	assert.Equal(t, 3, stats.Terms)
	assert.InDelta(t, 2.0, stats.AvgChunkLen, 1e-9)
}

func TestIndexManyChunks(t *testing.T) {
	idx := NewIndex()
	chunks := make([]*store.Chunk, 50)
	for i := range chunks {
		chunks[i] = chunk(fmt.Sprintf("c%02d", i), fmt.Sprintf("grant program number %d outcomes", i))
	}
	idx.Rebuild(chunks)

	snap := idx.Snapshot()
	assert.Equal(t, 50, snap.ChunkCount())
	assert.Equal(t, 50, snap.docFreq["grant"])
	docFreqInvariant(t, snap)
}
