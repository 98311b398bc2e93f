package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func seedStore(t *testing.T, s *SQLiteStore) {
	t.Helper()
	ctx := context.Background()

	docs := []*Document{
		{
			ID:          "d1",
			Type:        DocumentTypeProposal,
			Title:       "Youth Literacy Proposal",
			Programs:    []string{"youth-literacy"},
			Tags:        []string{"education", "reading"},
			PublishedAt: time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
		},
		{
			ID:          "d2",
			Type:        DocumentTypeReport,
			Title:       "Annual Report 2021",
			Programs:    []string{"general"},
			PublishedAt: time.Date(2021, 6, 15, 0, 0, 0, 0, time.UTC),
		},
		{ID: "d3", Type: DocumentTypeBudget, Title: "Undated Budget"},
	}
	require.NoError(t, s.SaveDocuments(ctx, docs))

	chunks := []*Chunk{
		{ID: "c1", DocumentID: "d1", Position: 0, Content: "first chunk"},
		{ID: "c2", DocumentID: "d1", Position: 1, Content: "second chunk"},
		{ID: "c3", DocumentID: "d2", Position: 0, Content: "report chunk"},
		{ID: "c4", DocumentID: "d3", Position: 0, Content: "budget chunk"},
	}
	require.NoError(t, s.SaveChunks(ctx, chunks))
}

func TestSQLiteDocuments(t *testing.T) {
	s := newTestStore(t)
	seedStore(t, s)
	ctx := context.Background()

	t.Run("round-trips a document", func(t *testing.T) {
		doc, err := s.GetDocument(ctx, "d1")
		require.NoError(t, err)
		require.NotNil(t, doc)
		assert.Equal(t, DocumentTypeProposal, doc.Type)
		assert.Equal(t, "Youth Literacy Proposal", doc.Title)
		assert.Equal(t, []string{"youth-literacy"}, doc.Programs)
		assert.Equal(t, []string{"education", "reading"}, doc.Tags)
		assert.Equal(t, 2025, doc.Year())
	})

	t.Run("miss returns nil without error", func(t *testing.T) {
		doc, err := s.GetDocument(ctx, "no-such-doc")
		require.NoError(t, err)
		assert.Nil(t, doc)
	})

	t.Run("zero published date stays zero", func(t *testing.T) {
		doc, err := s.GetDocument(ctx, "d3")
		require.NoError(t, err)
		require.NotNil(t, doc)
		assert.True(t, doc.PublishedAt.IsZero())
		assert.Zero(t, doc.Year())
	})

	t.Run("batch fetch skips missing IDs", func(t *testing.T) {
		docs, err := s.GetDocuments(ctx, []string{"d1", "d2", "ghost"})
		require.NoError(t, err)
		assert.Len(t, docs, 2)
		assert.Contains(t, docs, "d1")
		assert.NotContains(t, docs, "ghost")
	})

	t.Run("save is an upsert", func(t *testing.T) {
		require.NoError(t, s.SaveDocuments(ctx, []*Document{
			{ID: "d2", Type: DocumentTypeReport, Title: "Annual Report 2021 (rev)"},
		}))
		doc, err := s.GetDocument(ctx, "d2")
		require.NoError(t, err)
		assert.Equal(t, "Annual Report 2021 (rev)", doc.Title)
	})
}

func TestSQLiteChunks(t *testing.T) {
	s := newTestStore(t)
	seedStore(t, s)
	ctx := context.Background()

	t.Run("round-trips a chunk", func(t *testing.T) {
		c, err := s.GetChunk(ctx, "c1")
		require.NoError(t, err)
		require.NotNil(t, c)
		assert.Equal(t, "d1", c.DocumentID)
		assert.Equal(t, "first chunk", c.Content)
	})

	t.Run("miss returns nil without error", func(t *testing.T) {
		c, err := s.GetChunk(ctx, "no-such-chunk")
		require.NoError(t, err)
		assert.Nil(t, c)
	})

	t.Run("batch fetch", func(t *testing.T) {
		chunks, err := s.GetChunks(ctx, []string{"c1", "c3", "ghost"})
		require.NoError(t, err)
		assert.Len(t, chunks, 2)
	})

	t.Run("by document in position order", func(t *testing.T) {
		chunks, err := s.GetChunksByDocument(ctx, "d1")
		require.NoError(t, err)
		require.Len(t, chunks, 2)
		assert.Equal(t, "c1", chunks[0].ID)
		assert.Equal(t, "c2", chunks[1].ID)
	})

	t.Run("all chunks ordered by ID", func(t *testing.T) {
		chunks, err := s.AllChunks(ctx)
		require.NoError(t, err)
		require.Len(t, chunks, 4)
		for i := 1; i < len(chunks); i++ {
			assert.Less(t, chunks[i-1].ID, chunks[i].ID)
		}
	})

	t.Run("count", func(t *testing.T) {
		n, err := s.ChunkCount(ctx)
		require.NoError(t, err)
		assert.Equal(t, 4, n)
	})

	t.Run("delete removes rows", func(t *testing.T) {
		require.NoError(t, s.DeleteChunks(ctx, []string{"c4"}))
		c, err := s.GetChunk(ctx, "c4")
		require.NoError(t, err)
		assert.Nil(t, c)
	})
}

func TestSQLiteDeleteCascade(t *testing.T) {
	s := newTestStore(t)
	seedStore(t, s)
	ctx := context.Background()

	require.NoError(t, s.DeleteDocuments(ctx, []string{"d1"}))

	chunks, err := s.GetChunksByDocument(ctx, "d1")
	require.NoError(t, err)
	assert.Empty(t, chunks, "chunks cascade with their document")

	n, err := s.ChunkCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestSQLiteChunkIDsMatching(t *testing.T) {
	s := newTestStore(t)
	seedStore(t, s)
	ctx := context.Background()

	t.Run("nil filter matches everything", func(t *testing.T) {
		ids, err := s.ChunkIDsMatching(ctx, nil)
		require.NoError(t, err)
		assert.Len(t, ids, 4)
	})

	t.Run("type clause", func(t *testing.T) {
		ids, err := s.ChunkIDsMatching(ctx, &MetadataFilter{Types: []DocumentType{DocumentTypeProposal}})
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"c1", "c2"}, ids)
	})

	t.Run("program clause", func(t *testing.T) {
		ids, err := s.ChunkIDsMatching(ctx, &MetadataFilter{Programs: []string{"general"}})
		require.NoError(t, err)
		assert.Equal(t, []string{"c3"}, ids)
	})

	t.Run("tag clause", func(t *testing.T) {
		ids, err := s.ChunkIDsMatching(ctx, &MetadataFilter{Tags: []string{"reading", "unused"}})
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"c1", "c2"}, ids)
	})

	t.Run("year range excludes undated documents", func(t *testing.T) {
		ids, err := s.ChunkIDsMatching(ctx, &MetadataFilter{YearFrom: 2020, YearTo: 2022})
		require.NoError(t, err)
		assert.Equal(t, []string{"c3"}, ids)
	})

	t.Run("combined clauses intersect", func(t *testing.T) {
		ids, err := s.ChunkIDsMatching(ctx, &MetadataFilter{
			Types:    []DocumentType{DocumentTypeProposal},
			YearFrom: 2024,
		})
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"c1", "c2"}, ids)
	})
}

func TestSQLiteClose(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.Close())
	require.NoError(t, s.Close(), "close is idempotent")

	_, err := s.GetDocument(context.Background(), "d1")
	assert.Error(t, err)
}
