package chunk

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grantwell/grantwell/internal/store"
)

func words(n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = "word"
	}
	return strings.Join(parts, " ")
}

func TestChunkerPacksParagraphs(t *testing.T) {
	c := NewWithOptions(Options{MaxWords: 50})
	doc := &store.Document{ID: "d1"}

	text := words(20) + "\n\n" + words(20) + "\n\n" + words(20)
	chunks := c.Chunk(doc, text)

	require.Len(t, chunks, 2, "two paragraphs fit the budget, the third spills")
	assert.Equal(t, 40, len(strings.Fields(chunks[0].Content)))
	assert.Equal(t, 20, len(strings.Fields(chunks[1].Content)))
}

func TestChunkerSplitsOversizedParagraph(t *testing.T) {
	c := NewWithOptions(Options{MaxWords: 30, OverlapWords: 5})
	doc := &store.Document{ID: "d1"}

	// One paragraph of short sentences, far above the budget.
	var b strings.Builder
	for i := 0; i < 12; i++ {
		b.WriteString("This grant application sentence has exactly eight words. ")
	}
	chunks := c.Chunk(doc, b.String())

	require.Greater(t, len(chunks), 1)
	for _, ch := range chunks {
		assert.LessOrEqual(t, len(strings.Fields(ch.Content)), 30+5)
	}

	// Consecutive chunks share the overlap tail.
	first := strings.Fields(chunks[0].Content)
	second := strings.Fields(chunks[1].Content)
	assert.Equal(t, first[len(first)-5:], second[:5])
}

func TestChunkerMetadata(t *testing.T) {
	c := New()
	doc := &store.Document{ID: "d1"}

	chunks := c.Chunk(doc, words(300)+"\n\n"+words(150))
	require.Len(t, chunks, 2)

	for i, ch := range chunks {
		assert.Equal(t, "d1", ch.DocumentID)
		assert.Equal(t, i, ch.Position)
		assert.Len(t, ch.ID, 16)
		assert.False(t, ch.CreatedAt.IsZero())
	}
	assert.NotEqual(t, chunks[0].ID, chunks[1].ID)
}

func TestChunkerStableIDs(t *testing.T) {
	c := New()
	doc := &store.Document{ID: "d1"}
	text := words(50) + "\n\n" + words(250)

	first := c.Chunk(doc, text)
	second := c.Chunk(doc, text)
	require.Equal(t, len(first), len(second))
	for i := range first {
		assert.Equal(t, first[i].ID, second[i].ID)
	}

	other := c.Chunk(&store.Document{ID: "d2"}, text)
	assert.NotEqual(t, first[0].ID, other[0].ID, "IDs differ per document")
}

func TestChunkerMergesTinyTail(t *testing.T) {
	c := NewWithOptions(Options{MaxWords: 50})
	doc := &store.Document{ID: "d1"}

	chunks := c.Chunk(doc, words(48)+"\n\n"+words(5))
	require.Len(t, chunks, 1, "trailing fragment folds into the previous chunk")
	assert.Equal(t, 53, len(strings.Fields(chunks[0].Content)))
}

func TestChunkerEdgeCases(t *testing.T) {
	c := New()

	assert.Nil(t, c.Chunk(nil, "text"))
	assert.Nil(t, c.Chunk(&store.Document{ID: "d1"}, ""))
	assert.Nil(t, c.Chunk(&store.Document{ID: "d1"}, "  \n\n  "))

	chunks := c.Chunk(&store.Document{ID: "d1"}, "A single short paragraph.")
	require.Len(t, chunks, 1)
	assert.Equal(t, "A single short paragraph.", chunks[0].Content)
}

func TestSplitSentences(t *testing.T) {
	sentences := splitSentences("First sentence. Second one! A third? Version 2.5 stays intact. Tail without period")
	require.Len(t, sentences, 5)
	assert.Equal(t, "First sentence.", sentences[0])
	assert.Equal(t, "Version 2.5 stays intact.", sentences[3])
	assert.Equal(t, "Tail without period", sentences[4])
}
