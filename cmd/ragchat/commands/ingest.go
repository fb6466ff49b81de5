package commands

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/54b3r/ragchat-go/internal/config"
	"github.com/54b3r/ragchat-go/internal/embedder"
	"github.com/54b3r/ragchat-go/internal/ingestion"
	"github.com/54b3r/ragchat-go/internal/logging"
)

// NewIngestCmd constructs the `ragchat ingest` command, which indexes a
// directory of page-oriented .txt documents into the vector store.
func NewIngestCmd() *cobra.Command {
	var dir string
	var collection string

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Index a directory of documents into the vector store",
		Long: `Load every .txt file in a directory, split it into pages on form-feed
characters (the pdftotext page delimiter), embed each page, and upsert the
result into the vector store.

Record IDs are derived from (file name, page number), so ingesting the same
directory again overwrites pages in place rather than duplicating them.
Freshly ingested pages are unclustered until 'ragchat cluster' runs.

Relevant environment variables:
  STORE_BACKEND        sqlite or qdrant (default: sqlite)
  RAGCHAT_DB_PATH      SQLite database path (default: ~/.ragchat/<collection>.db)
  QDRANT_HOST/PORT     Qdrant endpoint when STORE_BACKEND=qdrant
  EMBEDDING_PROVIDER   Embedding backend: ollama, openai, azure, gemini
  INGEST_BATCH_SIZE    Pages embedded per batch (default: 32)

Examples:
  ragchat ingest --dir ./docs
  STORE_BACKEND=qdrant ragchat ingest --dir ./extracted-pdfs`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			if dir == "" {
				return fmt.Errorf("ingest: --dir is required")
			}

			if err := embedder.Validate(log); err != nil {
				return fmt.Errorf("ingest: %w", err)
			}

			pages, err := ingestion.LoadDirectory(dir)
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}
			log.Info("documents loaded", slog.String("dir", dir), slog.Int("pages", len(pages)))

			emb, err := embedder.NewFromEnv(ctx)
			if err != nil {
				return fmt.Errorf("ingest: failed to initialise embedder: %w", err)
			}
			log.Info("embedder initialised", slog.String("provider", embedder.Backend()))

			store, closeStore, err := openStore(ctx, collection, log)
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}
			defer closeStore()

			pipeline, err := ingestion.NewPipeline(emb, store, config.IngestBatchSize(), log)
			if err != nil {
				return fmt.Errorf("ingest: failed to create pipeline: %w", err)
			}

			written, err := pipeline.Ingest(ctx, pages)
			if err != nil {
				return fmt.Errorf("ingest: pipeline failed after %d pages: %w", written, err)
			}

			log.Info("ingestion complete", slog.Int("pages", written))
			fmt.Printf("ingested %d pages from %s\n", written, dir)
			return nil
		},
	}

	cmd.Flags().StringVarP(&dir, "dir", "d", "", "Directory of .txt documents to ingest")
	cmd.Flags().StringVar(&collection, "collection", "", "Collection name to ingest into (default from config)")

	return cmd
}
