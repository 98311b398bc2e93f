package embed

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeOllama serves the two endpoints the embedder uses.
func fakeOllama(t *testing.T, dims int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		switch req.URL.Path {
		case "/api/tags":
			w.WriteHeader(http.StatusOK)
		case "/api/embed":
			var body ollamaEmbedRequest
			require.NoError(t, json.NewDecoder(req.Body).Decode(&body))
			require.NotEmpty(t, body.Model)

			// A constant non-zero vector is enough for plumbing tests.
			vec := make([]float32, dims)
			for i := range vec {
				vec[i] = float32(i + 1)
			}
			_ = json.NewEncoder(w).Encode(ollamaEmbedResponse{Embeddings: [][]float32{vec}})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
}

func TestOllamaEmbedder(t *testing.T) {
	ctx := context.Background()

	t.Run("embeds and normalizes", func(t *testing.T) {
		server := fakeOllama(t, 8)
		defer server.Close()

		e, err := NewOllamaEmbedder(ctx, OllamaConfig{Host: server.URL, Model: "test-model"})
		require.NoError(t, err)
		defer e.Close()

		assert.Equal(t, 8, e.Dimensions(), "dimension detected from the health probe")
		assert.Equal(t, "test-model", e.ModelName())
		assert.True(t, e.Available(ctx))

		vec, err := e.Embed(ctx, "grant deadline")
		require.NoError(t, err)
		require.Len(t, vec, 8)

		var sumSquares float64
		for _, v := range vec {
			sumSquares += float64(v) * float64(v)
		}
		assert.InDelta(t, 1.0, math.Sqrt(sumSquares), 1e-5)
	})

	t.Run("unreachable server fails construction", func(t *testing.T) {
		_, err := NewOllamaEmbedder(ctx, OllamaConfig{
			Host:       "http://127.0.0.1:1",
			Timeout:    200 * time.Millisecond,
			MaxRetries: 1,
		})
		assert.Error(t, err)
	})

	t.Run("skip health check defers the first request", func(t *testing.T) {
		e, err := NewOllamaEmbedder(ctx, OllamaConfig{
			Host:            "http://127.0.0.1:1",
			SkipHealthCheck: true,
		})
		require.NoError(t, err)
		defer e.Close()

		assert.Equal(t, DefaultDimensions, e.Dimensions())
		assert.False(t, e.Available(ctx))
	})

	t.Run("retries transient failures", func(t *testing.T) {
		var attempts int
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			attempts++
			if attempts == 1 {
				w.WriteHeader(http.StatusInternalServerError)
				return
			}
			_ = json.NewEncoder(w).Encode(ollamaEmbedResponse{Embeddings: [][]float32{{1, 2, 3}}})
		}))
		defer server.Close()

		e, err := NewOllamaEmbedder(ctx, OllamaConfig{
			Host:            server.URL,
			SkipHealthCheck: true,
			MaxRetries:      2,
		})
		require.NoError(t, err)
		defer e.Close()

		vec, err := e.Embed(ctx, "retry me")
		require.NoError(t, err)
		assert.Len(t, vec, 3)
		assert.Equal(t, 2, attempts)
	})

	t.Run("closed embedder rejects requests", func(t *testing.T) {
		server := fakeOllama(t, 4)
		defer server.Close()

		e, err := NewOllamaEmbedder(ctx, OllamaConfig{Host: server.URL, SkipHealthCheck: true})
		require.NoError(t, err)
		require.NoError(t, e.Close())
		require.NoError(t, e.Close(), "close is idempotent")

		_, err = e.Embed(ctx, "too late")
		assert.Error(t, err)
	})
}
