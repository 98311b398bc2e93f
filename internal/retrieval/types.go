// Package retrieval implements the hybrid retrieval pipeline: query
// expansion, parallel lexical and vector scoring, score fusion, recency
// decay, per-document diversification, and an optional reranking stage.
package retrieval

import (
	"fmt"
	"math"
	"time"

	gerrors "github.com/grantwell/grantwell/internal/errors"
	"github.com/grantwell/grantwell/internal/store"
	"github.com/grantwell/grantwell/internal/telemetry"
)

// Pipeline defaults. Callers override per request; zero-valued request
// fields fall back to these through applyDefaults.
const (
	DefaultTopK          = 10
	MaxTopK              = 100
	DefaultPerDocCap     = 2
	DefaultHalfLife      = 365 * 24 * time.Hour
	DefaultRecencyFloor  = 0.2
	DefaultVectorTimeout = 2 * time.Second

	// candidateMultiplier oversizes each scoring leg relative to TopK
	// so diversification and filtering have slack to discard from.
	candidateMultiplier = 3

	// weightTolerance is the allowed deviation of the weight sum from 1.
	weightTolerance = 1e-6
)

// Weights blends the two scoring legs. They must sum to 1.
type Weights struct {
	Vector  float64
	Keyword float64
}

// DefaultWeights leans semantic, matching how grant-writing queries are
// usually phrased.
func DefaultWeights() Weights {
	return Weights{Vector: 0.6, Keyword: 0.4}
}

// Validate checks that both weights are non-negative and sum to 1
// within tolerance.
func (w Weights) Validate() error {
	if w.Vector < 0 || w.Keyword < 0 {
		return gerrors.New(gerrors.ErrCodeInvalidWeights,
			fmt.Sprintf("weights must be non-negative, got vector=%v keyword=%v", w.Vector, w.Keyword), nil)
	}
	if math.Abs(w.Vector+w.Keyword-1) > weightTolerance {
		return gerrors.New(gerrors.ErrCodeInvalidWeights,
			fmt.Sprintf("weights must sum to 1, got %v", w.Vector+w.Keyword), nil)
	}
	return nil
}

// RecencyParams controls exponential publication-date decay.
type RecencyParams struct {
	// HalfLife is the age at which the decay factor reaches 0.5.
	HalfLife time.Duration
	// Floor is the minimum decay factor, in (0, 1).
	Floor float64
}

// Request describes one retrieval call.
type Request struct {
	// Query is the natural-language query text.
	Query string

	// TopK is the maximum number of chunks to return.
	TopK int

	// Weights blends vector and keyword scores. Nil selects defaults.
	Weights *Weights

	// Filter restricts candidates by document metadata. Nil or zero
	// filter means no restriction.
	Filter *store.MetadataFilter

	// PerDocCap limits chunks per source document. Zero selects the
	// default; the cap must be at least 1.
	PerDocCap int

	// Recency overrides decay parameters. Nil selects defaults.
	Recency *RecencyParams

	// DisableExpansion turns query expansion off for this request.
	DisableExpansion bool

	// Rerank enables the configured reranker for this request.
	Rerank bool
}

// Validate rejects malformed requests before any scoring work runs.
func (r *Request) Validate() error {
	if r.TopK < 0 {
		return gerrors.New(gerrors.ErrCodeInvalidLimit,
			fmt.Sprintf("topK must not be negative, got %d", r.TopK), nil)
	}
	if r.PerDocCap < 0 {
		return gerrors.New(gerrors.ErrCodeInvalidLimit,
			fmt.Sprintf("per-document cap must not be negative, got %d", r.PerDocCap), nil)
	}
	if r.Weights != nil {
		if err := r.Weights.Validate(); err != nil {
			return err
		}
	}
	if r.Recency != nil {
		if r.Recency.Floor <= 0 || r.Recency.Floor >= 1 {
			return gerrors.New(gerrors.ErrCodeInvalidFilter,
				fmt.Sprintf("recency floor must be in (0,1), got %v", r.Recency.Floor), nil)
		}
		if r.Recency.HalfLife <= 0 {
			return gerrors.New(gerrors.ErrCodeInvalidFilter,
				fmt.Sprintf("recency half-life must be positive, got %v", r.Recency.HalfLife), nil)
		}
	}
	if r.Filter != nil {
		if r.Filter.YearFrom > 0 && r.Filter.YearTo > 0 && r.Filter.YearFrom > r.Filter.YearTo {
			return gerrors.New(gerrors.ErrCodeInvalidFilter,
				fmt.Sprintf("year range is inverted: %d..%d", r.Filter.YearFrom, r.Filter.YearTo), nil)
		}
	}
	return nil
}

// ScoreBreakdown exposes per-stage scores for transparency and tests.
type ScoreBreakdown struct {
	// LexicalRaw is the BM25-variant score before normalization.
	LexicalRaw float64 `json:"lexical_raw"`
	// VectorRaw is the cosine similarity before normalization.
	VectorRaw float64 `json:"vector_raw"`
	// LexicalNorm and VectorNorm are the min-max normalized scores.
	LexicalNorm float64 `json:"lexical_norm"`
	VectorNorm  float64 `json:"vector_norm"`
	// Fused is the weighted blend of the normalized scores.
	Fused float64 `json:"fused"`
	// RecencyFactor is the decay multiplier applied to Fused.
	RecencyFactor float64 `json:"recency_factor"`
	// Final is the ranking score: Fused * RecencyFactor, replaced by
	// the reranker score when reranking ran.
	Final float64 `json:"final"`
	// InBoth reports whether both scoring legs returned this chunk.
	InBoth bool `json:"in_both"`
	// Reranked reports whether Final came from the reranker.
	Reranked bool `json:"reranked"`
}

// Range is a byte span in chunk content, used for term highlights.
type Range struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// ScoredChunk is one ranked result.
type ScoredChunk struct {
	Chunk      *store.Chunk    `json:"chunk"`
	Document   *store.Document `json:"document,omitempty"`
	Scores     ScoreBreakdown  `json:"scores"`
	Highlights []Range         `json:"highlights,omitempty"`
}

// Result is the outcome of one Retrieve call.
type Result struct {
	Chunks []*ScoredChunk `json:"chunks"`

	// CandidatesConsidered counts distinct chunks scored by either leg
	// before filtering, diversification, and truncation.
	CandidatesConsidered int `json:"candidates_considered"`

	// Degraded is set when the vector leg failed and the result was
	// produced from lexical scores alone.
	Degraded       bool   `json:"degraded"`
	DegradedReason string `json:"degraded_reason,omitempty"`

	// Expanded is the expanded query text, when expansion changed it.
	Expanded string `json:"expanded,omitempty"`

	Took time.Duration `json:"took"`
}

// EngineConfig holds engine-level defaults and tunables.
type EngineConfig struct {
	DefaultTopK   int
	MaxTopK       int
	PerDocCap     int
	Weights       Weights
	Recency       RecencyParams
	VectorTimeout time.Duration
}

// DefaultEngineConfig returns the stock configuration.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		DefaultTopK:   DefaultTopK,
		MaxTopK:       MaxTopK,
		PerDocCap:     DefaultPerDocCap,
		Weights:       DefaultWeights(),
		Recency:       RecencyParams{HalfLife: DefaultHalfLife, Floor: DefaultRecencyFloor},
		VectorTimeout: DefaultVectorTimeout,
	}
}

// EngineStats summarizes engine state for diagnostics.
type EngineStats struct {
	LexicalChunks      int     `json:"lexical_chunks"`
	LexicalTerms       int     `json:"lexical_terms"`
	AvgChunkLen        float64 `json:"avg_chunk_len"`
	SnapshotGen        uint64  `json:"snapshot_generation"`
	VectorCount        int     `json:"vector_count"`
	MetadataChunks     int     `json:"metadata_chunks"`
	EmbeddingModel     string  `json:"embedding_model"`
	EmbeddingDims      int     `json:"embedding_dims"`
	RerankerConfigured bool    `json:"reranker_configured"`

	// Queries summarizes recorded query telemetry, when a recorder is
	// attached.
	Queries *telemetry.Summary `json:"queries,omitempty"`
}
