package retrieval

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRecencyFactor(t *testing.T) {
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	params := RecencyParams{HalfLife: 365 * 24 * time.Hour, Floor: 0.2}

	t.Run("fresh document decays to one half per half-life", func(t *testing.T) {
		oneHalfLife := now.Add(-365 * 24 * time.Hour)
		assert.InDelta(t, 0.5, recencyFactor(oneHalfLife, now, params), 1e-9)
	})

	t.Run("monotone non-increasing in age", func(t *testing.T) {
		prev := 2.0
		for _, days := range []int{0, 30, 180, 365, 730, 1460, 3650} {
			published := now.Add(-time.Duration(days) * 24 * time.Hour)
			factor := recencyFactor(published, now, params)
			assert.LessOrEqual(t, factor, prev, "factor increased at age %d days", days)
			prev = factor
		}
	})

	t.Run("bounded below by the floor", func(t *testing.T) {
		ancient := now.Add(-100 * 365 * 24 * time.Hour)
		assert.Equal(t, params.Floor, recencyFactor(ancient, now, params))
	})

	t.Run("missing date is neutral", func(t *testing.T) {
		assert.Equal(t, 1.0, recencyFactor(time.Time{}, now, params))
	})

	t.Run("future date is neutral", func(t *testing.T) {
		future := now.Add(24 * time.Hour)
		assert.Equal(t, 1.0, recencyFactor(future, now, params))
	})
}

func TestApplyRecency(t *testing.T) {
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	params := RecencyParams{HalfLife: 365 * 24 * time.Hour, Floor: 0.2}

	docs := map[string]*docInfo{
		"new": {doc: docWithDate("d1", now.Add(-24*time.Hour))},
		"old": {doc: docWithDate("d2", now.Add(-4*365*24*time.Hour))},
	}
	candidates := []*fusedCandidate{
		{chunkID: "old", fused: 0.8, final: 0.8},
		{chunkID: "new", fused: 0.8, final: 0.8},
		{chunkID: "undated", fused: 0.5, final: 0.5},
	}

	applyRecency(candidates, docs, now, params)

	byID := scoresByID(candidates)
	assert.Greater(t, byID["new"].final, byID["old"].final,
		"recency must separate equally fused chunks")
	assert.Equal(t, 1.0, byID["undated"].recencyFactor)
	assert.GreaterOrEqual(t, byID["old"].final, params.Floor*byID["old"].fused,
		"final score bounded below by floor * fused")
	assert.Equal(t, "new", candidates[0].chunkID, "applyRecency must re-sort")
}
