package retrieval

import (
	"math"
	"time"
)

// recencyFactor computes the exponential decay multiplier for a
// publication date: 0.5^(age/halfLife), bounded below by the floor.
// A zero date means the document has no publication date; such chunks
// are neither boosted nor penalized.
func recencyFactor(publishedAt time.Time, now time.Time, p RecencyParams) float64 {
	if publishedAt.IsZero() {
		return 1.0
	}
	age := now.Sub(publishedAt)
	if age <= 0 {
		return 1.0
	}
	factor := math.Pow(0.5, float64(age)/float64(p.HalfLife))
	if factor < p.Floor {
		return p.Floor
	}
	return factor
}

// applyRecency multiplies each candidate's final score by its decay
// factor and re-sorts. Candidates whose document is unknown keep a
// factor of 1.0.
func applyRecency(candidates []*fusedCandidate, docs map[string]*docInfo, now time.Time, p RecencyParams) {
	for _, c := range candidates {
		factor := 1.0
		if info, ok := docs[c.chunkID]; ok && info.doc != nil {
			factor = recencyFactor(info.doc.PublishedAt, now, p)
		}
		c.recencyFactor = factor
		c.final = c.fused * factor
	}
	sortCandidates(candidates)
}
