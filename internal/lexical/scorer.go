package lexical

import "math"

// Default scoring parameters. K1 controls term-frequency saturation, B
// controls chunk-length normalization, and IDFFloor is the positive
// lower bound applied to raw IDF so terms present in most of the corpus
// still add a small amount of signal instead of zeroing out.
const (
	DefaultK1       = 1.2
	DefaultB        = 0.75
	DefaultIDFFloor = 0.05
)

// ScorerParams tunes the BM25 variant. Zero fields fall back to the
// package defaults.
type ScorerParams struct {
	K1       float64
	B        float64
	IDFFloor float64
}

func (p ScorerParams) withDefaults() ScorerParams {
	if p.K1 == 0 {
		p.K1 = DefaultK1
	}
	if p.B == 0 {
		p.B = DefaultB
	}
	if p.IDFFloor == 0 {
		p.IDFFloor = DefaultIDFFloor
	}
	return p
}

// Scorer scores query terms against a snapshot.
type Scorer struct {
	params ScorerParams
}

// NewScorer returns a scorer with the given parameters.
func NewScorer(params ScorerParams) *Scorer {
	return &Scorer{params: params.withDefaults()}
}

// Score computes the lexical score of every chunk matching at least one
// query term. When allow is non-nil, only chunk IDs present in the set
// are scored; everything else is skipped before any math runs. Duplicate
// query terms are counted once. An empty query or an empty snapshot
// yields an empty map.
func (sc *Scorer) Score(s *Snapshot, queryTerms []string, allow map[string]struct{}) map[string]float64 {
	scores := make(map[string]float64)
	if len(queryTerms) == 0 || s.ChunkCount() == 0 {
		return scores
	}

	n := float64(s.ChunkCount())
	avgLen := s.avgChunkLen()
	seen := make(map[string]struct{}, len(queryTerms))

	for _, term := range queryTerms {
		if _, dup := seen[term]; dup {
			continue
		}
		seen[term] = struct{}{}

		df := s.docFreq[term]
		if df == 0 {
			continue
		}
		idf := sc.idf(n, float64(df))

		for chunkID, tf := range s.postings[term] {
			if allow != nil {
				if _, ok := allow[chunkID]; !ok {
					continue
				}
			}
			scores[chunkID] += idf * sc.saturation(float64(tf), float64(s.chunkLen[chunkID]), avgLen)
		}
	}
	return scores
}

// idf computes ln((N - df + 0.5) / (df + 0.5)) clamped to the floor.
// The raw value goes negative once a term appears in more than half the
// corpus; the clamp keeps such terms weakly positive.
func (sc *Scorer) idf(n, df float64) float64 {
	raw := math.Log((n - df + 0.5) / (df + 0.5))
	if raw < sc.params.IDFFloor {
		return sc.params.IDFFloor
	}
	return raw
}

// saturation is the BM25 term-frequency component with length
// normalization against the corpus average.
func (sc *Scorer) saturation(tf, chunkLen, avgLen float64) float64 {
	norm := 1.0
	if avgLen > 0 {
		norm = 1 - sc.params.B + sc.params.B*(chunkLen/avgLen)
	}
	return tf * (sc.params.K1 + 1) / (tf + sc.params.K1*norm)
}
