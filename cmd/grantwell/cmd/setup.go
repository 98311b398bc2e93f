package cmd

import (
	"context"
	"fmt"

	"github.com/grantwell/grantwell/internal/config"
	"github.com/grantwell/grantwell/internal/embed"
	"github.com/grantwell/grantwell/internal/lexical"
	"github.com/grantwell/grantwell/internal/retrieval"
	"github.com/grantwell/grantwell/internal/store"
	"github.com/grantwell/grantwell/internal/telemetry"
)

// buildEngine wires the engine from configuration: metadata store,
// vector backend, embedder, expander, and optional reranker. The
// lexical snapshot is built from the metadata store on startup.
func buildEngine(ctx context.Context, cfg *config.Config) (*retrieval.Engine, error) {
	metadata, err := store.NewSQLiteStore(cfg.Store.SQLitePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open metadata store: %w", err)
	}

	embedder, err := buildEmbedder(ctx, cfg)
	if err != nil {
		_ = metadata.Close()
		return nil, err
	}

	vectorIndex, err := buildVectorIndex(ctx, cfg, embedder.Dimensions())
	if err != nil {
		_ = embedder.Close()
		_ = metadata.Close()
		return nil, err
	}

	engineCfg := retrieval.EngineConfig{
		DefaultTopK:   cfg.Search.TopK,
		MaxTopK:       cfg.Search.MaxTopK,
		PerDocCap:     cfg.Search.PerDocCap,
		Weights:       retrieval.Weights{Vector: cfg.Search.VectorWeight, Keyword: cfg.Search.KeywordWeight},
		Recency:       retrieval.RecencyParams{HalfLife: cfg.RecencyHalfLife(), Floor: cfg.Search.RecencyFloor},
		VectorTimeout: cfg.VectorTimeoutDuration(),
	}

	opts := []retrieval.EngineOption{
		retrieval.WithMetrics(telemetry.NewQueryMetrics(0)),
	}
	if !cfg.Search.Expansion {
		opts = append(opts, retrieval.WithExpander(nil))
	}
	if cfg.Reranker.Enabled {
		opts = append(opts, retrieval.WithReranker(retrieval.NewHTTPReranker(retrieval.HTTPRerankerConfig{
			URL: cfg.Reranker.URL,
		})))
	}

	engine, err := retrieval.NewEngine(lexical.NewIndex(), vectorIndex, embedder, metadata, engineCfg, opts...)
	if err != nil {
		_ = vectorIndex.Close()
		_ = embedder.Close()
		_ = metadata.Close()
		return nil, err
	}

	if err := engine.RebuildLexical(ctx); err != nil {
		_ = engine.Close()
		return nil, fmt.Errorf("failed to build lexical index: %w", err)
	}
	return engine, nil
}

func buildEmbedder(ctx context.Context, cfg *config.Config) (embed.Embedder, error) {
	switch cfg.Embeddings.Provider {
	case "static":
		return embed.NewStaticEmbedder(cfg.Embeddings.Dimensions), nil
	default:
		return embed.NewOllamaEmbedder(ctx, embed.OllamaConfig{
			Host:       cfg.Embeddings.Host,
			Model:      cfg.Embeddings.Model,
			Dimensions: cfg.Embeddings.Dimensions,
			BatchSize:  cfg.Embeddings.BatchSize,
		})
	}
}

func buildVectorIndex(ctx context.Context, cfg *config.Config, dims int) (store.VectorIndex, error) {
	switch cfg.Store.VectorBackend {
	case "qdrant":
		return store.NewQdrantIndex(ctx, store.QdrantConfig{
			Host:       cfg.Store.QdrantHost,
			Port:       cfg.Store.QdrantPort,
			Collection: cfg.Store.QdrantCollection,
			Dimensions: dims,
		})
	default:
		return store.NewHNSWIndex(store.HNSWConfig{Dimensions: dims})
	}
}
