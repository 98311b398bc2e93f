package embed

import (
	"context"
	"hash/fnv"
	"strings"
)

// StaticEmbedder produces deterministic embeddings by hashing token
// n-grams into a fixed number of buckets. It needs no external service,
// which makes it the embedder of choice for tests and offline indexing.
// Quality is far below a learned model; texts sharing vocabulary land
// near each other and little more.
type StaticEmbedder struct {
	dims int
}

var _ Embedder = (*StaticEmbedder)(nil)

// NewStaticEmbedder creates a static embedder. dims <= 0 selects
// StaticDimensions.
func NewStaticEmbedder(dims int) *StaticEmbedder {
	if dims <= 0 {
		dims = StaticDimensions
	}
	return &StaticEmbedder{dims: dims}
}

// Embed hashes unigrams and bigrams of the lowercased text into
// buckets and returns the normalized result.
func (e *StaticEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, e.dims)
	tokens := strings.Fields(strings.ToLower(text))

	for i, tok := range tokens {
		vec[e.bucket(tok)] += 1.0
		if i+1 < len(tokens) {
			vec[e.bucket(tok+" "+tokens[i+1])] += 0.5
		}
	}
	return normalizeVector(vec), nil
}

// EmbedBatch embeds each text independently.
func (e *StaticEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	results := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := e.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		results[i] = vec
	}
	return results, nil
}

func (e *StaticEmbedder) bucket(s string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(s))
	return int(h.Sum32() % uint32(e.dims))
}

// Dimensions returns the embedding dimension.
func (e *StaticEmbedder) Dimensions() int { return e.dims }

// ModelName returns the model identifier.
func (e *StaticEmbedder) ModelName() string { return "static-hash" }

// Available always reports true.
func (e *StaticEmbedder) Available(context.Context) bool { return true }

// Close is a no-op.
func (e *StaticEmbedder) Close() error { return nil }
