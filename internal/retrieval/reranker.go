package retrieval

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// RerankResult is one reranker judgment: the index of the document in
// the submitted list and its relevance score.
type RerankResult struct {
	Index int     `json:"index"`
	Score float64 `json:"score"`
}

// Reranker rescores candidate documents against the query. The pipeline
// shape is fixed: a reranker always runs as the final stage, and the
// default implementation simply preserves the incoming order.
type Reranker interface {
	// Rerank scores documents against the query and returns results
	// sorted by score descending. topK <= 0 returns all documents.
	Rerank(ctx context.Context, query string, documents []string, topK int) ([]RerankResult, error)

	// Available reports whether the reranker can serve requests.
	Available(ctx context.Context) bool

	// Close releases resources.
	Close() error
}

// NoopReranker keeps the fused order untouched. It is the default so
// the pipeline runs the same stages whether or not a model is wired in.
type NoopReranker struct{}

var _ Reranker = (*NoopReranker)(nil)

// Rerank returns results in input order with rank-derived scores.
func (NoopReranker) Rerank(_ context.Context, _ string, documents []string, topK int) ([]RerankResult, error) {
	n := len(documents)
	if topK > 0 && topK < n {
		n = topK
	}
	results := make([]RerankResult, n)
	for i := 0; i < n; i++ {
		results[i] = RerankResult{Index: i, Score: float64(len(documents)-i) / float64(len(documents))}
	}
	return results, nil
}

// Available always reports true.
func (NoopReranker) Available(context.Context) bool { return true }

// Close is a no-op.
func (NoopReranker) Close() error { return nil }

// HTTPRerankerConfig configures the cross-encoder HTTP adapter.
type HTTPRerankerConfig struct {
	URL     string
	Timeout time.Duration
}

// HTTPReranker calls an external cross-encoder service. Failures are
// recoverable by contract: the engine logs a warning and keeps the
// fused order.
type HTTPReranker struct {
	client *http.Client
	config HTTPRerankerConfig
}

var _ Reranker = (*HTTPReranker)(nil)

// NewHTTPReranker creates the adapter. A zero timeout selects 10s.
func NewHTTPReranker(cfg HTTPRerankerConfig) *HTTPReranker {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &HTTPReranker{
		client: &http.Client{Timeout: cfg.Timeout},
		config: cfg,
	}
}

type rerankRequest struct {
	Query     string   `json:"query"`
	Documents []string `json:"documents"`
	TopK      int      `json:"top_k,omitempty"`
}

type rerankResponse struct {
	Results []RerankResult `json:"results"`
}

// Rerank posts the query and documents to the service.
func (r *HTTPReranker) Rerank(ctx context.Context, query string, documents []string, topK int) ([]RerankResult, error) {
	body, err := json.Marshal(rerankRequest{Query: query, Documents: documents, TopK: topK})
	if err != nil {
		return nil, fmt.Errorf("failed to encode rerank request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.config.URL+"/rerank", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create rerank request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("rerank request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("rerank returned status %d: %s", resp.StatusCode, string(respBody))
	}

	var result rerankResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode rerank response: %w", err)
	}
	return result.Results, nil
}

// Available probes the service health endpoint.
func (r *HTTPReranker) Available(ctx context.Context) bool {
	probeCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(probeCtx, http.MethodGet, r.config.URL+"/health", nil)
	if err != nil {
		return false
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return false
	}
	_ = resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// Close releases pooled connections.
func (r *HTTPReranker) Close() error {
	r.client.CloseIdleConnections()
	return nil
}
