package retrieval

import (
	"context"
	"log/slog"
	"time"

	gerrors "github.com/grantwell/grantwell/internal/errors"
	"github.com/grantwell/grantwell/internal/store"
)

// postFilterOversample widens the fetch when filtering must happen
// after the index search, so discards still leave enough candidates.
const postFilterOversample = 3

// vectorLeg adapts a VectorIndex to the pipeline. It owns the leg's
// timeout and the filtering strategy: indexes that can filter natively
// get the filter pushed down, everything else is post-filtered here.
// The leg never computes embeddings.
type vectorLeg struct {
	index   store.VectorIndex
	timeout time.Duration
}

// allowFunc decides whether a chunk passes the metadata filter. It is
// supplied by the engine, which owns metadata resolution.
type allowFunc func(ctx context.Context, chunkID string) (bool, error)

// search returns chunk ID -> cosine similarity for up to k candidates
// passing the filter. Errors and timeouts surface to the engine, which
// treats them as recoverable degradation rather than request failure.
func (v *vectorLeg) search(ctx context.Context, query []float32, k int, f *store.MetadataFilter, allowed allowFunc) (map[string]float64, error) {
	searchCtx := ctx
	if v.timeout > 0 {
		var cancel context.CancelFunc
		searchCtx, cancel = context.WithTimeout(ctx, v.timeout)
		defer cancel()
	}

	filtering := !f.IsZero()

	if filtering {
		if fi, ok := v.index.(store.FilteredVectorIndex); ok {
			results, err := fi.SearchFiltered(searchCtx, query, k, f)
			if err != nil {
				return nil, gerrors.Wrap(gerrors.ErrCodeVectorSearchFailed, err)
			}
			return toScoreMap(results), nil
		}
	}

	fetch := k
	if filtering {
		fetch = k * postFilterOversample
	}
	results, err := v.index.Search(searchCtx, query, fetch)
	if err != nil {
		if searchCtx.Err() == context.DeadlineExceeded && ctx.Err() == nil {
			return nil, gerrors.Wrap(gerrors.ErrCodeVectorTimeout, err)
		}
		return nil, gerrors.Wrap(gerrors.ErrCodeVectorSearchFailed, err)
	}

	if !filtering {
		return toScoreMap(results), nil
	}

	// Post-filter discard, keeping at most k survivors in rank order.
	scores := make(map[string]float64, k)
	for _, r := range results {
		if len(scores) >= k {
			break
		}
		ok, err := allowed(ctx, r.ID)
		if err != nil {
			slog.Warn("metadata lookup failed during vector post-filter",
				slog.String("chunk_id", r.ID),
				slog.String("error", err.Error()))
			continue
		}
		if ok {
			scores[r.ID] = float64(r.Score)
		}
	}
	return scores, nil
}

func toScoreMap(results []*store.VectorResult) map[string]float64 {
	scores := make(map[string]float64, len(results))
	for _, r := range results {
		scores[r.ID] = float64(r.Score)
	}
	return scores
}
