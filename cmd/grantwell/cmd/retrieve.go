package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/grantwell/grantwell/internal/config"
	"github.com/grantwell/grantwell/internal/retrieval"
	"github.com/grantwell/grantwell/internal/store"
)

func newRetrieveCmd() *cobra.Command {
	var (
		topK      int
		docTypes  []string
		programs  []string
		tags      []string
		yearFrom  int
		yearTo    int
		perDocCap int
		noExpand  bool
		rerank    bool
		format    string
	)

	cmd := &cobra.Command{
		Use:   "retrieve <query>",
		Short: "Retrieve the most relevant chunks for a query",
		Args:  cobra.MinimumNArgs(1),
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

			req := retrieval.Request{
				Query:            strings.Join(args, " "),
				TopK:             topK,
				PerDocCap:        perDocCap,
				DisableExpansion: noExpand,
				Rerank:           rerank,
			}
			filter := buildFilter(docTypes, programs, tags, yearFrom, yearTo)
			if !filter.IsZero() {
				req.Filter = filter
			}

			result, err := engine.Retrieve(cmd.Context(), req)
			if err != nil {
				return err
			}

			if format == "json" {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(result)
			}
			printResult(result)
			return nil
		},
	}

	cmd.Flags().IntVarP(&topK, "top-k", "k", 0, "Maximum number of results (0 = default)")
	cmd.Flags().StringSliceVar(&docTypes, "type", nil, "Filter by document type (proposal, report, budget, ...)")
	cmd.Flags().StringSliceVar(&programs, "program", nil, "Filter by program")
	cmd.Flags().StringSliceVar(&tags, "tag", nil, "Filter by tag")
	cmd.Flags().IntVar(&yearFrom, "year-from", 0, "Earliest publication year")
	cmd.Flags().IntVar(&yearTo, "year-to", 0, "Latest publication year")
	cmd.Flags().IntVar(&perDocCap, "per-doc-cap", 0, "Maximum chunks per document (0 = default)")
	cmd.Flags().BoolVar(&noExpand, "no-expand", false, "Disable query expansion")
	cmd.Flags().BoolVar(&rerank, "rerank", false, "Rerank results with the configured reranker")
	cmd.Flags().StringVar(&format, "format", "text", "Output format: text or json")
	return cmd
}

func buildFilter(types, programs, tags []string, yearFrom, yearTo int) *store.MetadataFilter {
	f := &store.MetadataFilter{
		Programs: programs,
		Tags:     tags,
		YearFrom: yearFrom,
		YearTo:   yearTo,
	}
	for _, t := range types {
		f.Types = append(f.Types, store.DocumentType(t))
	}
	return f
}

func printResult(result *retrieval.Result) {
	if result.Degraded {
		fmt.Printf("(degraded: %s)\n\n", result.DegradedReason)
	}
	if len(result.Chunks) == 0 {
		fmt.Println("No results.")
		return
	}

	for i, sc := range result.Chunks {
		title := sc.Chunk.DocumentID
		if sc.Document != nil {
			title = sc.Document.Title
		}
		fmt.Printf("%2d. [%.4f] %s\n", i+1, sc.Scores.Final, title)
		fmt.Printf("    %s\n", snippet(sc.Chunk.Content, 160))
	}
	fmt.Printf("\n%d results from %d candidates in %s\n",
		len(result.Chunks), result.CandidatesConsidered, result.Took)
}

func snippet(content string, max int) string {
	content = strings.Join(strings.Fields(content), " ")
	if len(content) <= max {
		return content
	}
	return content[:max] + "..."
}
