package retrieval

import "sort"

// fusedCandidate carries one chunk through the pipeline stages after
// fusion. Stages fill in their fields in order; the final sort runs on
// the final score.
type fusedCandidate struct {
	chunkID       string
	documentID    string
	lexRaw        float64
	vecRaw        float64
	lexNorm       float64
	vecNorm       float64
	fused         float64
	recencyFactor float64
	final         float64
	inBoth        bool
	reranked      bool
}

// fuseScores normalizes each leg's score map with min-max over its own
// candidates, then blends them with the request weights. A chunk absent
// from a leg contributes zero for that leg. A chunk maximal in both
// legs fuses to exactly w.Vector + w.Keyword.
func fuseScores(lexical, vector map[string]float64, w Weights) []*fusedCandidate {
	lexNorm := minMaxNormalize(lexical)
	vecNorm := minMaxNormalize(vector)

	candidates := make(map[string]*fusedCandidate, len(lexical)+len(vector))
	for id, raw := range lexical {
		candidates[id] = &fusedCandidate{
			chunkID: id,
			lexRaw:  raw,
			lexNorm: lexNorm[id],
		}
	}
	for id, raw := range vector {
		c, ok := candidates[id]
		if !ok {
			c = &fusedCandidate{chunkID: id}
			candidates[id] = c
		} else {
			c.inBoth = true
		}
		c.vecRaw = raw
		c.vecNorm = vecNorm[id]
	}

	results := make([]*fusedCandidate, 0, len(candidates))
	for _, c := range candidates {
		c.fused = w.Vector*c.vecNorm + w.Keyword*c.lexNorm
		c.final = c.fused
		c.recencyFactor = 1.0
		results = append(results, c)
	}
	sortCandidates(results)
	return results
}

// minMaxNormalize rescales scores to [0, 1] over the map's own range.
// All-equal scores (including a single candidate) normalize to 1.0 so
// a leg's lone best match still counts at full weight.
func minMaxNormalize(scores map[string]float64) map[string]float64 {
	norm := make(map[string]float64, len(scores))
	if len(scores) == 0 {
		return norm
	}

	first := true
	var min, max float64
	for _, s := range scores {
		if first {
			min, max = s, s
			first = false
			continue
		}
		if s < min {
			min = s
		}
		if s > max {
			max = s
		}
	}

	if max == min {
		for id := range scores {
			norm[id] = 1.0
		}
		return norm
	}
	for id, s := range scores {
		norm[id] = (s - min) / (max - min)
	}
	return norm
}

// sortCandidates orders by final score descending, breaking ties so
// that equal-scored runs come out in a stable, reproducible order:
// chunks found by both legs first, then higher raw lexical score, then
// lexicographic chunk ID.
func sortCandidates(candidates []*fusedCandidate) {
	sort.Slice(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.final != b.final {
			return a.final > b.final
		}
		if a.inBoth != b.inBoth {
			return a.inBoth
		}
		if a.lexRaw != b.lexRaw {
			return a.lexRaw > b.lexRaw
		}
		return a.chunkID < b.chunkID
	})
}
