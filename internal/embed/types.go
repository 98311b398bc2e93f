// Package embed generates vector embeddings for query and chunk text.
//
// The retrieval engine treats the embedder as a hard dependency: a
// failed query embedding fails the request outright, unlike vector
// index failures which only degrade it.
package embed

import (
	"context"
	"math"
	"time"
)

const (
	MaxBatchSize      = 256
	DefaultBatchSize  = 32
	DefaultTimeout    = 60 * time.Second
	DefaultMaxRetries = 3

	// DefaultDimensions applies when the provider does not report one.
	DefaultDimensions = 768

	// StaticDimensions is the dimension of the offline hash embedder.
	StaticDimensions = 256
)

// Embedder turns text into fixed-dimension vectors. Implementations
// must return unit-length vectors so cosine similarity reduces to a
// dot product downstream.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	ModelName() string
	Available(ctx context.Context) bool
	Close() error
}

// normalizeVector scales v to unit length. A zero vector comes back
// unchanged rather than producing NaNs.
func normalizeVector(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	mag := math.Sqrt(sum)
	if mag == 0 {
		return v
	}
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) / mag)
	}
	return out
}
