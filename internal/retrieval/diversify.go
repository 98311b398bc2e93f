package retrieval

// diversify applies the per-document cap in a single greedy pass over
// candidates already in rank order. A candidate is admitted while its
// document has fewer than cap admitted chunks; otherwise it is dropped.
// Relative order of admitted candidates never changes. Candidates with
// no resolved document are treated as a document of their own.
func diversify(candidates []*fusedCandidate, cap int) []*fusedCandidate {
	if cap < 1 {
		return candidates
	}

	perDoc := make(map[string]int)
	out := make([]*fusedCandidate, 0, len(candidates))
	for _, c := range candidates {
		key := c.documentID
		if key == "" {
			key = "chunk:" + c.chunkID
		}
		if perDoc[key] >= cap {
			continue
		}
		perDoc[key]++
		out = append(out, c)
	}
	return out
}
