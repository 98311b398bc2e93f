package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/grantwell/grantwell/internal/chunk"
	"github.com/grantwell/grantwell/internal/config"
	"github.com/grantwell/grantwell/internal/store"
)

// corpusDocument is a document plus optional inline text. Documents
// with text and no pre-made chunks are chunked automatically.
type corpusDocument struct {
	store.Document
	Text string `json:"text,omitempty"`
}

// corpusFile is the ingestion format: documents plus their chunks.
type corpusFile struct {
	Documents []*corpusDocument `json:"documents"`
	Chunks    []*store.Chunk    `json:"chunks"`
}

func newIndexCmd() *cobra.Command {
	var maxWords int

	cmd := &cobra.Command{
		Use:   "index <corpus.json>",
		Short: "Index documents and chunks from a corpus file",
		Long: `Reads a JSON corpus file with "documents" and "chunks" arrays,
embeds the chunk text, and adds everything to the metadata store,
vector index, and lexical index. Documents that carry inline "text"
are split into chunks automatically.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read corpus file: %w", err)
			}
			var corpus corpusFile
			if err := json.Unmarshal(data, &corpus); err != nil {
				return fmt.Errorf("failed to parse corpus file: %w", err)
			}
			if err := validateCorpus(&corpus); err != nil {
				return err
			}

			docs, chunks := expandCorpus(&corpus, maxWords)

			cfg, err := config.Load(".")
			if err != nil {
				return err
			}
			engine, err := buildEngine(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer func() { _ = engine.Close() }()

			if err := engine.IndexChunks(cmd.Context(), docs, chunks); err != nil {
				return err
			}
			fmt.Printf("Indexed %d documents, %d chunks\n", len(docs), len(chunks))
			return nil
		},
	}
	cmd.Flags().IntVar(&maxWords, "max-chunk-words", chunk.DefaultMaxWords,
		"word budget per auto-generated chunk")
	return cmd
}

// expandCorpus flattens wrapped documents and chunks inline text.
func expandCorpus(corpus *corpusFile, maxWords int) ([]*store.Document, []*store.Chunk) {
	chunker := chunk.NewWithOptions(chunk.Options{MaxWords: maxWords})

	docs := make([]*store.Document, 0, len(corpus.Documents))
	chunks := corpus.Chunks
	for _, d := range corpus.Documents {
		doc := d.Document
		docs = append(docs, &doc)
		if d.Text != "" {
			chunks = append(chunks, chunker.Chunk(&doc, d.Text)...)
		}
	}
	return docs, chunks
}

func validateCorpus(corpus *corpusFile) error {
	docIDs := make(map[string]struct{}, len(corpus.Documents))
	for _, d := range corpus.Documents {
		if d.ID == "" {
			return fmt.Errorf("document with empty id")
		}
		if _, dup := docIDs[d.ID]; dup {
			return fmt.Errorf("duplicate document id %q", d.ID)
		}
		docIDs[d.ID] = struct{}{}
	}
	chunkIDs := make(map[string]struct{}, len(corpus.Chunks))
	for _, c := range corpus.Chunks {
		if c.ID == "" {
			return fmt.Errorf("chunk with empty id")
		}
		if _, dup := chunkIDs[c.ID]; dup {
			return fmt.Errorf("duplicate chunk id %q", c.ID)
		}
		chunkIDs[c.ID] = struct{}{}
		if _, ok := docIDs[c.DocumentID]; !ok {
			return fmt.Errorf("chunk %q references unknown document %q", c.ID, c.DocumentID)
		}
	}
	return nil
}
