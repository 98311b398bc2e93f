package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/grantwell/grantwell/internal/config"
)

func newStatsCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show index and corpus statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(".")
			if err != nil {
				return err
			}
			engine, err := buildEngine(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer func() { _ = engine.Close() }()

			stats, err := engine.Stats(cmd.Context())
			if err != nil {
				return err
			}

			if format == "json" {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(stats)
			}

			fmt.Printf("Lexical index:    %d chunks, %d terms (avg length %.1f, generation %d)\n",
				stats.LexicalChunks, stats.LexicalTerms, stats.AvgChunkLen, stats.SnapshotGen)
			fmt.Printf("Vector index:     %d vectors\n", stats.VectorCount)
			fmt.Printf("Metadata store:   %d chunks\n", stats.MetadataChunks)
			fmt.Printf("Embedding model:  %s (%d dims)\n", stats.EmbeddingModel, stats.EmbeddingDims)
			fmt.Printf("Reranker:         %v\n", stats.RerankerConfigured)
			if stats.Queries != nil && stats.Queries.Total > 0 {
				fmt.Printf("Queries served:   %d (%d zero-result, %d degraded, avg %s)\n",
					stats.Queries.Total, stats.Queries.ZeroResult,
					stats.Queries.Degraded, stats.Queries.AvgLatency)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&format, "format", "text", "Output format: text or json")
	return cmd
}
