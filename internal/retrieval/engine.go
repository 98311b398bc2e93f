package retrieval

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/grantwell/grantwell/internal/embed"
	gerrors "github.com/grantwell/grantwell/internal/errors"
	"github.com/grantwell/grantwell/internal/lexical"
	"github.com/grantwell/grantwell/internal/store"
	"github.com/grantwell/grantwell/internal/telemetry"
)

// ErrNilDependency is returned when a required dependency is nil.
var ErrNilDependency = errors.New("nil dependency")

// Engine is the hybrid retrieval engine. Retrieve is its sole query
// operation; IndexChunks and DeleteChunks keep the lexical snapshot,
// vector index, and metadata store consistent on corpus mutation.
type Engine struct {
	lexIndex *lexical.Index
	scorer   *lexical.Scorer
	vector   vectorLeg
	embedder embed.Embedder
	metadata store.MetadataStore
	docCache *store.CachedMetadata
	expander *Expander
	reranker Reranker
	metrics  *telemetry.QueryMetrics
	config   EngineConfig
	now      func() time.Time

	mu     sync.RWMutex
	closed bool
}

// EngineOption configures the engine.
type EngineOption func(*Engine)

// WithExpander sets the query expander. Nil disables expansion.
func WithExpander(exp *Expander) EngineOption {
	return func(e *Engine) { e.expander = exp }
}

// WithReranker sets the reranker used when a request asks for it.
func WithReranker(r Reranker) EngineOption {
	return func(e *Engine) { e.reranker = r }
}

// WithClock overrides the time source for recency decay. Used in tests.
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) { e.now = now }
}

// WithMetrics attaches a query metrics recorder.
func WithMetrics(m *telemetry.QueryMetrics) EngineOption {
	return func(e *Engine) { e.metrics = m }
}

// NewEngine creates the engine. All four core dependencies are
// required; the expander and reranker default to enabled expansion and
// a no-op reranker.
func NewEngine(
	lexIndex *lexical.Index,
	vectorIndex store.VectorIndex,
	embedder embed.Embedder,
	metadata store.MetadataStore,
	config EngineConfig,
	opts ...EngineOption,
) (*Engine, error) {
	if lexIndex == nil {
		return nil, fmt.Errorf("%w: lexical index is required", ErrNilDependency)
	}
	if vectorIndex == nil {
		return nil, fmt.Errorf("%w: vector index is required", ErrNilDependency)
	}
	if embedder == nil {
		return nil, fmt.Errorf("%w: embedder is required", ErrNilDependency)
	}
	if metadata == nil {
		return nil, fmt.Errorf("%w: metadata store is required", ErrNilDependency)
	}

	docCache, err := store.NewCachedMetadata(metadata, store.DefaultMetadataCacheSize)
	if err != nil {
		return nil, err
	}

	e := &Engine{
		lexIndex: lexIndex,
		scorer:   lexical.NewScorer(lexical.ScorerParams{}),
		vector:   vectorLeg{index: vectorIndex, timeout: config.VectorTimeout},
		embedder: embedder,
		metadata: metadata,
		docCache: docCache,
		expander: NewExpander(),
		reranker: NoopReranker{},
		config:   config,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// docInfo resolves a candidate chunk to its stored chunk and document.
type docInfo struct {
	chunk *store.Chunk
	doc   *store.Document
}

// Retrieve runs the full pipeline for one query. Vector leg failures
// degrade the result to lexical-only; embedding failures and lexical
// index absence are fatal.
func (e *Engine) Retrieve(ctx context.Context, req Request) (*Result, error) {
	start := e.now()

	if err := req.Validate(); err != nil {
		return nil, err
	}
	req = e.applyDefaults(req)

	query := strings.TrimSpace(req.Query)
	terms := lexical.Tokenize(query)
	if len(terms) == 0 {
		result := &Result{Chunks: []*ScoredChunk{}, Took: e.now().Sub(start)}
		e.record(0, result)
		return result, nil
	}

	// Generation 0 is the empty snapshot published at construction;
	// a real corpus state only exists after the first build or apply.
	snapshot := e.lexIndex.Snapshot()
	if snapshot.Generation() == 0 {
		return nil, gerrors.New(gerrors.ErrCodeSnapshotMissing, "lexical index has not been built", nil)
	}

	// Expansion adds terms for the keyword leg and appends the same
	// additions to a single embedding text for the vector leg.
	lexTerms := terms
	embedText := query
	expanded := ""
	if e.expander != nil && !req.DisableExpansion {
		lexTerms = e.expander.ExpandTerms(terms)
		embedText = e.expander.ExpandText(query, terms)
		if embedText != query {
			expanded = embedText
		}
	}

	allowSet, err := e.buildAllowSet(ctx, req.Filter)
	if err != nil {
		return nil, err
	}

	candidates := req.TopK * candidateMultiplier
	lexScores, vecScores, vecErr, err := e.scoreParallel(ctx, snapshot, lexTerms, embedText, candidates, req.Filter, allowSet)
	if err != nil {
		return nil, err
	}

	weights := *req.Weights
	degraded := false
	degradedReason := ""
	if vecErr != nil {
		// Lexical-only degradation: the keyword leg absorbs the full
		// weight and the rest of the pipeline runs unchanged.
		weights = Weights{Vector: 0, Keyword: 1}
		degraded = true
		degradedReason = vecErr.Error()
		slog.Warn("vector leg failed, degrading to lexical-only",
			slog.String("error", vecErr.Error()))
	}

	considered := countDistinct(lexScores, vecScores)
	fused := fuseScores(lexScores, vecScores, weights)

	docs, err := e.resolveDocs(ctx, fused)
	if err != nil {
		return nil, err
	}
	fused = dropOrphans(fused, docs)

	applyRecency(fused, docs, e.now(), *req.Recency)
	fused = diversify(fused, req.PerDocCap)
	if len(fused) > req.TopK {
		fused = fused[:req.TopK]
	}

	if req.Rerank {
		fused = e.rerank(ctx, query, fused, docs)
	}

	result := &Result{
		Chunks:               e.buildResults(fused, docs, lexTerms),
		CandidatesConsidered: considered,
		Degraded:             degraded,
		DegradedReason:       degradedReason,
		Expanded:             expanded,
		Took:                 e.now().Sub(start),
	}
	e.record(len(terms), result)

	slog.Debug("retrieve complete",
		slog.String("query", query),
		slog.Int("results", len(result.Chunks)),
		slog.Int("candidates", considered),
		slog.Bool("degraded", degraded),
		slog.Duration("took", result.Took))

	return result, nil
}

// record feeds the attached metrics recorder, if any.
func (e *Engine) record(termCount int, result *Result) {
	if e.metrics == nil {
		return
	}
	e.metrics.Record(telemetry.QueryEvent{
		TermCount:   termCount,
		ResultCount: len(result.Chunks),
		Latency:     result.Took,
		Degraded:    result.Degraded,
		Expanded:    result.Expanded != "",
	})
}

// applyDefaults fills zero-valued request fields from engine config.
func (e *Engine) applyDefaults(req Request) Request {
	if req.TopK == 0 {
		req.TopK = e.config.DefaultTopK
	}
	if req.TopK > e.config.MaxTopK {
		req.TopK = e.config.MaxTopK
	}
	if req.PerDocCap == 0 {
		req.PerDocCap = e.config.PerDocCap
	}
	if req.Weights == nil {
		w := e.config.Weights
		req.Weights = &w
	}
	if req.Recency == nil {
		r := e.config.Recency
		req.Recency = &r
	}
	return req
}

// buildAllowSet resolves the metadata filter to a chunk ID allow-set
// for the lexical leg. Nil filter means nil set (no restriction).
func (e *Engine) buildAllowSet(ctx context.Context, f *store.MetadataFilter) (map[string]struct{}, error) {
	if f.IsZero() {
		return nil, nil
	}
	ids, err := e.metadata.ChunkIDsMatching(ctx, f)
	if err != nil {
		return nil, gerrors.Wrap(gerrors.ErrCodeStoreQuery, err)
	}
	allow := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		allow[id] = struct{}{}
	}
	return allow, nil
}

// scoreParallel runs the keyword and vector legs concurrently. The
// lexical leg cannot fail; the vector leg's error comes back as vecErr
// for the caller's degradation decision, except embedding failure and
// context cancellation, which are returned as err.
func (e *Engine) scoreParallel(
	ctx context.Context,
	snapshot *lexical.Snapshot,
	lexTerms []string,
	embedText string,
	k int,
	filter *store.MetadataFilter,
	allowSet map[string]struct{},
) (lexScores, vecScores map[string]float64, vecErr, err error) {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		lexScores = e.scorer.Score(snapshot, lexTerms, allowSet)
		return nil
	})

	var embedErr error
	g.Go(func() error {
		embedding, eErr := e.embedder.Embed(gctx, embedText)
		if eErr != nil {
			embedErr = eErr
			return nil
		}

		allowed := func(ctx context.Context, chunkID string) (bool, error) {
			return e.chunkPassesFilter(ctx, chunkID, filter)
		}
		vecScores, vecErr = e.vector.search(gctx, embedding, k, filter, allowed)
		return nil
	})

	if waitErr := g.Wait(); waitErr != nil {
		return nil, nil, nil, waitErr
	}
	if ctx.Err() != nil {
		return nil, nil, nil, ctx.Err()
	}
	if embedErr != nil {
		return nil, nil, nil, gerrors.Wrap(gerrors.ErrCodeEmbeddingFailed, embedErr)
	}
	return lexScores, vecScores, vecErr, nil
}

// chunkPassesFilter applies the metadata filter to one chunk during
// vector post-filtering.
func (e *Engine) chunkPassesFilter(ctx context.Context, chunkID string, f *store.MetadataFilter) (bool, error) {
	chunk, err := e.metadata.GetChunk(ctx, chunkID)
	if err != nil {
		return false, err
	}
	if chunk == nil {
		return false, nil
	}
	doc, err := e.docCache.GetDocument(ctx, chunk.DocumentID)
	if err != nil {
		return false, err
	}
	return f.Matches(doc), nil
}

// resolveDocs batch-fetches chunks and their documents for all
// candidates.
func (e *Engine) resolveDocs(ctx context.Context, candidates []*fusedCandidate) (map[string]*docInfo, error) {
	if len(candidates) == 0 {
		return map[string]*docInfo{}, nil
	}

	ids := make([]string, len(candidates))
	for i, c := range candidates {
		ids[i] = c.chunkID
	}
	chunks, err := e.metadata.GetChunks(ctx, ids)
	if err != nil {
		return nil, gerrors.Wrap(gerrors.ErrCodeStoreQuery, err)
	}

	docIDs := make([]string, 0, len(chunks))
	seen := make(map[string]struct{}, len(chunks))
	for _, c := range chunks {
		if _, dup := seen[c.DocumentID]; !dup {
			seen[c.DocumentID] = struct{}{}
			docIDs = append(docIDs, c.DocumentID)
		}
	}
	docsByID, err := e.docCache.GetDocuments(ctx, docIDs)
	if err != nil {
		return nil, gerrors.Wrap(gerrors.ErrCodeStoreQuery, err)
	}

	infos := make(map[string]*docInfo, len(chunks))
	for _, c := range chunks {
		infos[c.ID] = &docInfo{chunk: c, doc: docsByID[c.DocumentID]}
	}
	for _, c := range candidates {
		if info, ok := infos[c.chunkID]; ok && info.chunk != nil {
			c.documentID = info.chunk.DocumentID
		}
	}
	return infos, nil
}

// dropOrphans removes candidates whose chunk no longer exists in the
// metadata store. Index orphans are harmless remnants of best-effort
// deletes and get filtered here.
func dropOrphans(candidates []*fusedCandidate, docs map[string]*docInfo) []*fusedCandidate {
	out := make([]*fusedCandidate, 0, len(candidates))
	for _, c := range candidates {
		if info, ok := docs[c.chunkID]; ok && info.chunk != nil {
			out = append(out, c)
		}
	}
	return out
}

// rerank rescores the top candidates with the configured reranker.
// Any failure keeps the existing order.
func (e *Engine) rerank(ctx context.Context, query string, fused []*fusedCandidate, docs map[string]*docInfo) []*fusedCandidate {
	if e.reranker == nil || len(fused) < 2 {
		return fused
	}
	if !e.reranker.Available(ctx) {
		slog.Debug("reranker unavailable, keeping fused order")
		return fused
	}

	documents := make([]string, len(fused))
	for i, c := range fused {
		documents[i] = docs[c.chunkID].chunk.Content
	}

	reranked, err := e.reranker.Rerank(ctx, query, documents, 0)
	if err != nil {
		slog.Warn("reranking failed, keeping fused order",
			slog.String("error", err.Error()))
		return fused
	}

	out := make([]*fusedCandidate, 0, len(fused))
	for _, rr := range reranked {
		if rr.Index < 0 || rr.Index >= len(fused) {
			slog.Warn("reranker returned invalid index, skipping",
				slog.Int("index", rr.Index))
			continue
		}
		c := fused[rr.Index]
		c.final = rr.Score
		c.reranked = true
		out = append(out, c)
	}
	if len(out) == 0 {
		return fused
	}
	return out
}

// buildResults converts pipeline candidates into the public result
// shape with score breakdowns and term highlights.
func (e *Engine) buildResults(fused []*fusedCandidate, docs map[string]*docInfo, terms []string) []*ScoredChunk {
	results := make([]*ScoredChunk, 0, len(fused))
	for _, c := range fused {
		info := docs[c.chunkID]
		results = append(results, &ScoredChunk{
			Chunk:    info.chunk,
			Document: info.doc,
			Scores: ScoreBreakdown{
				LexicalRaw:    c.lexRaw,
				VectorRaw:     c.vecRaw,
				LexicalNorm:   c.lexNorm,
				VectorNorm:    c.vecNorm,
				Fused:         c.fused,
				RecencyFactor: c.recencyFactor,
				Final:         c.final,
				InBoth:        c.inBoth,
				Reranked:      c.reranked,
			},
			Highlights: calculateHighlights(info.chunk.Content, terms),
		})
	}
	return results
}

func countDistinct(a, b map[string]float64) int {
	n := len(a)
	for id := range b {
		if _, ok := a[id]; !ok {
			n++
		}
	}
	return n
}

// IndexChunks adds documents and their chunks to all three stores:
// metadata first (source of truth), then vectors, then the lexical
// snapshot swap.
func (e *Engine) IndexChunks(ctx context.Context, docs []*store.Document, chunks []*store.Chunk) error {
	if len(chunks) == 0 && len(docs) == 0 {
		return nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if len(docs) > 0 {
		if err := e.metadata.SaveDocuments(ctx, docs); err != nil {
			return gerrors.Wrap(gerrors.ErrCodeStoreWrite, err)
		}
		ids := make([]string, len(docs))
		for i, d := range docs {
			ids[i] = d.ID
		}
		e.docCache.Invalidate(ids...)
	}
	if len(chunks) == 0 {
		return nil
	}

	if err := e.metadata.SaveChunks(ctx, chunks); err != nil {
		return gerrors.Wrap(gerrors.ErrCodeStoreWrite, err)
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}
	embeddings, err := e.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return gerrors.Wrap(gerrors.ErrCodeEmbeddingFailed, err)
	}

	records := make([]*store.VectorRecord, len(chunks))
	docByID := make(map[string]*store.Document, len(docs))
	for _, d := range docs {
		docByID[d.ID] = d
	}
	for i, c := range chunks {
		rec := &store.VectorRecord{
			ChunkID:    c.ID,
			Vector:     embeddings[i],
			DocumentID: c.DocumentID,
		}
		doc := docByID[c.DocumentID]
		if doc == nil {
			doc, err = e.docCache.GetDocument(ctx, c.DocumentID)
			if err != nil {
				return gerrors.Wrap(gerrors.ErrCodeStoreQuery, err)
			}
		}
		if doc != nil {
			rec.Type = doc.Type
			rec.Programs = doc.Programs
			rec.Tags = doc.Tags
			rec.Year = doc.Year()
		}
		records[i] = rec
	}
	if err := e.vector.index.Add(ctx, records); err != nil {
		return gerrors.Wrap(gerrors.ErrCodeIndexingFailed, err)
	}

	e.lexIndex.Apply(chunks, nil)

	slog.Info("indexed chunks",
		slog.Int("documents", len(docs)),
		slog.Int("chunks", len(chunks)))
	return nil
}

// DeleteChunks removes chunks from all stores. Metadata is the source
// of truth and must succeed; index deletes are best-effort since
// orphans are filtered at query time.
func (e *Engine) DeleteChunks(ctx context.Context, chunkIDs []string) error {
	if len(chunkIDs) == 0 {
		return nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.vector.index.Delete(ctx, chunkIDs); err != nil {
		slog.Warn("vector delete failed, orphans remain until reindex",
			slog.String("error", err.Error()),
			slog.Int("count", len(chunkIDs)))
	}

	e.lexIndex.Apply(nil, chunkIDs)

	if err := e.metadata.DeleteChunks(ctx, chunkIDs); err != nil {
		return gerrors.Wrap(gerrors.ErrCodeStoreWrite, err)
	}
	return nil
}

// RebuildLexical rebuilds the lexical snapshot from the metadata store
// and publishes it atomically. In-flight queries keep their snapshot.
func (e *Engine) RebuildLexical(ctx context.Context) error {
	chunks, err := e.metadata.AllChunks(ctx)
	if err != nil {
		return gerrors.Wrap(gerrors.ErrCodeStoreQuery, err)
	}
	e.lexIndex.Rebuild(chunks)
	e.docCache.Purge()

	snap := e.lexIndex.Snapshot()
	slog.Info("lexical snapshot rebuilt",
		slog.Int("chunks", snap.ChunkCount()),
		slog.Uint64("generation", snap.Generation()))
	return nil
}

// Stats returns engine diagnostics.
func (e *Engine) Stats(ctx context.Context) (*EngineStats, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	metaCount, err := e.metadata.ChunkCount(ctx)
	if err != nil {
		return nil, gerrors.Wrap(gerrors.ErrCodeStoreQuery, err)
	}

	lexStats := e.lexIndex.Snapshot().Stats()
	_, isNoop := e.reranker.(NoopReranker)
	var queries *telemetry.Summary
	if e.metrics != nil {
		s := e.metrics.Summarize()
		queries = &s
	}
	return &EngineStats{
		LexicalChunks:      lexStats.Chunks,
		LexicalTerms:       lexStats.Terms,
		AvgChunkLen:        lexStats.AvgChunkLen,
		SnapshotGen:        lexStats.Generation,
		VectorCount:        e.vector.index.Count(),
		MetadataChunks:     metaCount,
		EmbeddingModel:     e.embedder.ModelName(),
		EmbeddingDims:      e.embedder.Dimensions(),
		RerankerConfigured: !isNoop,
		Queries:            queries,
	}, nil
}

// Close releases all resources.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true

	var errs []error
	if err := e.vector.index.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := e.embedder.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := e.reranker.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := e.metadata.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// calculateHighlights finds byte ranges of matched terms in content,
// capped per term, sorted by start offset.
func calculateHighlights(content string, terms []string) []Range {
	if len(terms) == 0 || len(content) == 0 {
		return []Range{}
	}

	const maxMatchesPerTerm = 10
	highlights := make([]Range, 0, len(terms)*2)
	lowerContent := strings.ToLower(content)

	for _, term := range terms {
		if term == "" {
			continue
		}
		start := 0
		for matches := 0; matches < maxMatchesPerTerm; matches++ {
			idx := strings.Index(lowerContent[start:], term)
			if idx == -1 {
				break
			}
			absStart := start + idx
			highlights = append(highlights, Range{Start: absStart, End: absStart + len(term)})
			start = absStart + len(term)
		}
	}

	if len(highlights) > 1 {
		sort.Slice(highlights, func(i, j int) bool {
			return highlights[i].Start < highlights[j].Start
		})
	}
	return highlights
}
