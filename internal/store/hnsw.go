package store

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/coder/hnsw"
)

// HNSWConfig configures the embedded vector index.
type HNSWConfig struct {
	// Dimensions is the embedding dimension.
	Dimensions int

	// M is HNSW max connections per layer (default: 16).
	M int

	// EfSearch is query-time search width (default: 20).
	EfSearch int
}

// DefaultHNSWConfig returns sensible defaults for the given dimension.
func DefaultHNSWConfig(dimensions int) HNSWConfig {
	return HNSWConfig{
		Dimensions: dimensions,
		M:          16,
		EfSearch:   20,
	}
}

// HNSWIndex is an embedded, in-process VectorIndex backed by coder/hnsw.
// It cannot filter natively, so the retrieval engine applies metadata
// filters as a post-filter when this implementation is configured.
type HNSWIndex struct {
	mu     sync.RWMutex
	graph  *hnsw.Graph[uint64]
	config HNSWConfig

	// string chunk ID <-> internal uint64 key
	idMap   map[string]uint64
	keyMap  map[uint64]string
	nextKey uint64

	closed bool
}

var _ VectorIndex = (*HNSWIndex)(nil)

// NewHNSWIndex creates an embedded vector index.
func NewHNSWIndex(cfg HNSWConfig) (*HNSWIndex, error) {
	if cfg.Dimensions <= 0 {
		return nil, fmt.Errorf("dimensions must be positive, got %d", cfg.Dimensions)
	}
	if cfg.M == 0 {
		cfg.M = 16
	}
	if cfg.EfSearch == 0 {
		cfg.EfSearch = 20
	}

	graph := hnsw.NewGraph[uint64]()
	graph.Distance = hnsw.CosineDistance
	graph.M = cfg.M
	graph.EfSearch = cfg.EfSearch
	graph.Ml = 0.25

	return &HNSWIndex{
		graph:  graph,
		config: cfg,
		idMap:  make(map[string]uint64),
		keyMap: make(map[uint64]string),
	}, nil
}

// Add inserts records. An existing chunk ID is replaced via lazy deletion:
// the old graph node is orphaned rather than removed, which sidesteps
// graph-repair issues when the last node is deleted.
func (s *HNSWIndex) Add(ctx context.Context, records []*VectorRecord) error {
	if len(records) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("index is closed")
	}

	for _, r := range records {
		if len(r.Vector) != s.config.Dimensions {
			return ErrDimensionMismatch{Expected: s.config.Dimensions, Got: len(r.Vector)}
		}
	}

	for _, r := range records {
		if existingKey, exists := s.idMap[r.ChunkID]; exists {
			delete(s.keyMap, existingKey)
			delete(s.idMap, r.ChunkID)
		}

		key := s.nextKey
		s.nextKey++

		vec := make([]float32, len(r.Vector))
		copy(vec, r.Vector)
		normalizeInPlace(vec)

		s.graph.Add(hnsw.MakeNode(key, vec))
		s.idMap[r.ChunkID] = key
		s.keyMap[key] = r.ChunkID
	}

	return nil
}

// Search returns up to k nearest neighbors by cosine similarity.
// Orphaned (lazily deleted) nodes are skipped.
func (s *HNSWIndex) Search(ctx context.Context, query []float32, k int) ([]*VectorResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, fmt.Errorf("index is closed")
	}
	if len(query) != s.config.Dimensions {
		return nil, ErrDimensionMismatch{Expected: s.config.Dimensions, Got: len(query)}
	}
	if s.graph.Len() == 0 {
		return []*VectorResult{}, nil
	}

	normalized := make([]float32, len(query))
	copy(normalized, query)
	normalizeInPlace(normalized)

	nodes := s.graph.Search(normalized, k)

	results := make([]*VectorResult, 0, len(nodes))
	for _, node := range nodes {
		id, ok := s.keyMap[node.Key]
		if !ok {
			continue // orphaned by lazy deletion
		}
		distance := s.graph.Distance(normalized, node.Value)
		results = append(results, &VectorResult{
			ID:    id,
			Score: cosineDistanceToScore(distance),
		})
	}
	return results, nil
}

// Delete removes vectors by chunk ID using lazy deletion.
func (s *HNSWIndex) Delete(ctx context.Context, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("index is closed")
	}

	for _, id := range ids {
		if key, exists := s.idMap[id]; exists {
			delete(s.keyMap, key)
			delete(s.idMap, id)
		}
	}
	return nil
}

// Count returns the number of live (non-orphaned) vectors.
func (s *HNSWIndex) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return 0
	}
	return len(s.idMap)
}

// Close releases the graph. Idempotent.
func (s *HNSWIndex) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.graph = nil
	return nil
}

// normalizeInPlace scales a vector to unit length.
func normalizeInPlace(v []float32) {
	var sumSquares float64
	for _, val := range v {
		sumSquares += float64(val) * float64(val)
	}
	if sumSquares == 0 {
		return
	}
	inv := float32(1.0 / math.Sqrt(sumSquares))
	for i := range v {
		v[i] *= inv
	}
}

// cosineDistanceToScore converts cosine distance (0-2) to similarity (0-1).
func cosineDistanceToScore(distance float32) float32 {
	return 1.0 - distance/2.0
}
