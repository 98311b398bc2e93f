// Package store provides metadata persistence (SQLite), vector index
// implementations (embedded HNSW, remote Qdrant), and the cached read-only
// document-metadata view consumed by the retrieval engine.
package store

import (
	"context"
	"fmt"
	"time"
)

// DocumentType categorizes a source document in the grant corpus.
type DocumentType string

const (
	DocumentTypeProposal  DocumentType = "proposal"
	DocumentTypeReport    DocumentType = "report"
	DocumentTypeBudget    DocumentType = "budget"
	DocumentTypeNarrative DocumentType = "narrative"
	DocumentTypeCharter   DocumentType = "charter"
	DocumentTypePolicy    DocumentType = "policy"
	DocumentTypeOther     DocumentType = "other"
)

// Document holds the metadata for a source document. The retrieval engine
// reads this through a cached view; ingestion owns the canonical rows.
type Document struct {
	ID          string       `json:"id"`
	Type        DocumentType `json:"type"`
	Title       string       `json:"title"`
	Programs    []string     `json:"programs,omitempty"` // program tags, e.g. "youth-literacy"
	Tags        []string     `json:"tags,omitempty"`     // free-form tags
	PublishedAt time.Time    `json:"published_at,omitempty"`
	CreatedAt   time.Time    `json:"created_at,omitempty"`
}

// Year returns the publication year, or 0 when the date is unknown.
func (d *Document) Year() int {
	if d == nil || d.PublishedAt.IsZero() {
		return 0
	}
	return d.PublishedAt.Year()
}

// Chunk is the unit of retrieval: a bounded span of a document's text.
// A chunk belongs to exactly one document; IDs are unique across the corpus.
type Chunk struct {
	ID         string    `json:"id"`
	DocumentID string    `json:"document_id"`
	Position   int       `json:"position"` // 0-indexed within the document
	Content    string    `json:"content"`
	CreatedAt  time.Time `json:"created_at,omitempty"`
	UpdatedAt  time.Time `json:"updated_at,omitempty"`
}

// MetadataFilter restricts candidates by structured document attributes.
// A nil slice / zero bound leaves that clause unconstrained. Documents with
// missing metadata pass unconstrained clauses and fail constrained ones.
type MetadataFilter struct {
	Types    []DocumentType
	Programs []string
	Tags     []string
	YearFrom int
	YearTo   int
}

// IsZero reports whether the filter constrains nothing.
func (f *MetadataFilter) IsZero() bool {
	return f == nil ||
		(len(f.Types) == 0 && len(f.Programs) == 0 && len(f.Tags) == 0 &&
			f.YearFrom == 0 && f.YearTo == 0)
}

// Matches applies the filter to a document's metadata.
// A nil document (metadata miss) fails every constrained clause.
func (f *MetadataFilter) Matches(doc *Document) bool {
	if f.IsZero() {
		return true
	}
	if len(f.Types) > 0 {
		if doc == nil || !containsType(f.Types, doc.Type) {
			return false
		}
	}
	if len(f.Programs) > 0 {
		if doc == nil || !intersects(f.Programs, doc.Programs) {
			return false
		}
	}
	if len(f.Tags) > 0 {
		if doc == nil || !intersects(f.Tags, doc.Tags) {
			return false
		}
	}
	if f.YearFrom > 0 || f.YearTo > 0 {
		if doc == nil || doc.PublishedAt.IsZero() {
			return false
		}
		year := doc.Year()
		if f.YearFrom > 0 && year < f.YearFrom {
			return false
		}
		if f.YearTo > 0 && year > f.YearTo {
			return false
		}
	}
	return true
}

func containsType(types []DocumentType, t DocumentType) bool {
	for _, v := range types {
		if v == t {
			return true
		}
	}
	return false
}

func intersects(a, b []string) bool {
	for _, x := range a {
		for _, y := range b {
			if x == y {
				return true
			}
		}
	}
	return false
}

// MetadataReader is the read-only view of document metadata the retrieval
// pipeline consumes. A miss returns (nil, nil): treated as "no metadata".
type MetadataReader interface {
	GetDocument(ctx context.Context, id string) (*Document, error)
	GetDocuments(ctx context.Context, ids []string) (map[string]*Document, error)
}

// MetadataStore persists documents and chunks.
type MetadataStore interface {
	MetadataReader

	SaveDocuments(ctx context.Context, docs []*Document) error
	DeleteDocuments(ctx context.Context, ids []string) error

	SaveChunks(ctx context.Context, chunks []*Chunk) error
	GetChunk(ctx context.Context, id string) (*Chunk, error)
	GetChunks(ctx context.Context, ids []string) ([]*Chunk, error) // batch retrieval
	GetChunksByDocument(ctx context.Context, documentID string) ([]*Chunk, error)
	AllChunks(ctx context.Context) ([]*Chunk, error) // for lexical snapshot builds
	DeleteChunks(ctx context.Context, ids []string) error

	// ChunkIDsMatching resolves a metadata filter to the set of chunk IDs
	// whose owning document passes it. Used as the scorers' pre-filter.
	ChunkIDsMatching(ctx context.Context, f *MetadataFilter) ([]string, error)

	ChunkCount(ctx context.Context) (int, error)
	Close() error
}

// VectorRecord pairs a chunk embedding with the document attributes a
// filter-capable index stores as payload.
type VectorRecord struct {
	ChunkID    string
	Vector     []float32
	DocumentID string
	Type       DocumentType
	Programs   []string
	Tags       []string
	Year       int
}

// VectorResult is a single nearest-neighbor hit.
type VectorResult struct {
	ID    string  // chunk ID
	Score float32 // cosine similarity, 0-1
}

// VectorIndex provides nearest-neighbor search over chunk embeddings.
type VectorIndex interface {
	// Add inserts records. Existing IDs are replaced.
	Add(ctx context.Context, records []*VectorRecord) error

	// Search returns up to k nearest neighbors, highest similarity first.
	Search(ctx context.Context, query []float32, k int) ([]*VectorResult, error)

	// Delete removes vectors by chunk ID.
	Delete(ctx context.Context, ids []string) error

	// Count returns the number of indexed vectors.
	Count() int

	Close() error
}

// FilteredVectorIndex is the capability interface for indexes that support
// metadata-filtered search natively. When the engine's index implements it,
// the metadata filter runs inside the index instead of as a post-filter.
type FilteredVectorIndex interface {
	VectorIndex
	SearchFiltered(ctx context.Context, query []float32, k int, f *MetadataFilter) ([]*VectorResult, error)
}

// ErrDimensionMismatch indicates a vector of the wrong dimension.
type ErrDimensionMismatch struct {
	Expected int
	Got      int
}

func (e ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d", e.Expected, e.Got)
}
