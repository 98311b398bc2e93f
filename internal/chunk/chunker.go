// Package chunk splits grant documents into retrieval-sized chunks.
// Splitting is paragraph-aware: paragraphs are packed into chunks up to
// a word budget, and oversized paragraphs are split on sentence
// boundaries with overlap so no passage loses its surrounding context.
package chunk

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/grantwell/grantwell/internal/store"
)

// Word budgets. Grant prose runs denser than code, so chunks stay small
// enough that a single chunk answers a single question.
const (
	DefaultMaxWords     = 200
	DefaultOverlapWords = 25
	minChunkWords       = 10
)

// Options configures the chunker.
type Options struct {
	// MaxWords is the word budget per chunk.
	MaxWords int

	// OverlapWords is the overlap carried between consecutive chunks
	// split from one oversized paragraph.
	OverlapWords int
}

// Chunker splits document text into store.Chunk values.
type Chunker struct {
	options Options
}

// New creates a chunker with default options.
func New() *Chunker {
	return NewWithOptions(Options{})
}

// NewWithOptions creates a chunker with custom budgets.
func NewWithOptions(opts Options) *Chunker {
	if opts.MaxWords <= 0 {
		opts.MaxWords = DefaultMaxWords
	}
	if opts.OverlapWords < 0 || opts.OverlapWords >= opts.MaxWords {
		opts.OverlapWords = DefaultOverlapWords
	}
	return &Chunker{options: opts}
}

// Chunk splits text into chunks owned by the given document. Chunk IDs
// are derived from the document ID and chunk position, so re-chunking
// unchanged text yields the same IDs and indexing stays idempotent.
func (c *Chunker) Chunk(doc *store.Document, text string) []*store.Chunk {
	if doc == nil || strings.TrimSpace(text) == "" {
		return nil
	}

	var pieces []string
	var pending []string
	pendingWords := 0

	flush := func() {
		if len(pending) > 0 {
			pieces = append(pieces, strings.Join(pending, "\n\n"))
			pending = nil
			pendingWords = 0
		}
	}

	for _, para := range splitParagraphs(text) {
		words := len(strings.Fields(para))
		if words == 0 {
			continue
		}

		if words > c.options.MaxWords {
			flush()
			pieces = append(pieces, c.splitOversized(para)...)
			continue
		}

		if pendingWords+words > c.options.MaxWords {
			flush()
		}
		pending = append(pending, para)
		pendingWords += words
	}
	flush()

	pieces = mergeTinyTail(pieces)

	now := time.Now()
	chunks := make([]*store.Chunk, 0, len(pieces))
	for i, piece := range pieces {
		chunks = append(chunks, &store.Chunk{
			ID:         chunkID(doc.ID, i),
			DocumentID: doc.ID,
			Position:   i,
			Content:    piece,
			CreatedAt:  now,
			UpdatedAt:  now,
		})
	}
	return chunks
}

// splitOversized splits one paragraph on sentence boundaries, packing
// sentences into the word budget and carrying overlap words forward.
func (c *Chunker) splitOversized(para string) []string {
	sentences := splitSentences(para)

	var out []string
	var current []string
	currentWords := 0

	for _, sentence := range sentences {
		words := len(strings.Fields(sentence))
		if currentWords+words > c.options.MaxWords && currentWords > 0 {
			piece := strings.Join(current, " ")
			out = append(out, piece)

			overlap := tailWords(piece, c.options.OverlapWords)
			current = current[:0]
			currentWords = 0
			if overlap != "" {
				current = append(current, overlap)
				currentWords = len(strings.Fields(overlap))
			}
		}
		current = append(current, sentence)
		currentWords += words
	}
	if currentWords > 0 {
		out = append(out, strings.Join(current, " "))
	}
	return out
}

// splitParagraphs splits on blank lines, normalizing line endings.
func splitParagraphs(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	var paras []string
	for _, p := range strings.Split(text, "\n\n") {
		p = strings.TrimSpace(p)
		if p != "" {
			paras = append(paras, p)
		}
	}
	return paras
}

// splitSentences splits on terminal punctuation followed by whitespace.
// Grant prose is formal enough that this heuristic holds up; the cost
// of a missed boundary is only a slightly uneven chunk.
func splitSentences(text string) []string {
	var sentences []string
	var b strings.Builder

	runes := []rune(text)
	for i, r := range runes {
		b.WriteRune(r)
		if r == '.' || r == '!' || r == '?' {
			if i+1 >= len(runes) || runes[i+1] == ' ' || runes[i+1] == '\n' {
				if s := strings.TrimSpace(b.String()); s != "" {
					sentences = append(sentences, s)
				}
				b.Reset()
			}
		}
	}
	if s := strings.TrimSpace(b.String()); s != "" {
		sentences = append(sentences, s)
	}
	return sentences
}

// tailWords returns the last n words of text.
func tailWords(text string, n int) string {
	if n <= 0 {
		return ""
	}
	words := strings.Fields(text)
	if len(words) <= n {
		return text
	}
	return strings.Join(words[len(words)-n:], " ")
}

// mergeTinyTail folds a trailing fragment below the minimum viable size
// into the previous chunk.
func mergeTinyTail(pieces []string) []string {
	n := len(pieces)
	if n < 2 {
		return pieces
	}
	if len(strings.Fields(pieces[n-1])) < minChunkWords {
		pieces[n-2] = pieces[n-2] + "\n\n" + pieces[n-1]
		return pieces[:n-1]
	}
	return pieces
}

// chunkID derives a stable chunk ID from document ID and position.
func chunkID(docID string, position int) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s:%d", docID, position)))
	return hex.EncodeToString(sum[:])[:16]
}
