package commands

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/54b3r/ragchat-go/internal/ingestion"
	"github.com/54b3r/ragchat-go/internal/logging"
)

// NewGenerateCmd constructs the `ragchat generate` command, which writes a
// deterministic dummy document corpus for trying out the pipeline without
// real documents.
func NewGenerateCmd() *cobra.Command {
	var outDir string
	var count int
	var seed int64

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a dummy document corpus for testing the pipeline",
		Long: `Write a set of synthetic compliance conversation logs as page-oriented
.txt files. The corpus is deterministic for a given seed, so two runs with
the same --seed produce identical files.

The generated directory can be fed straight into 'ragchat ingest --dir'.

Examples:
  ragchat generate --dir ./dummy-docs
  ragchat generate --dir ./dummy-docs --count 50 --seed 7`,
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logging.New()

			if outDir == "" {
				return fmt.Errorf("generate: --dir is required")
			}
			if count < 1 {
				return fmt.Errorf("generate: --count must be at least 1, got %d", count)
			}

			files, err := ingestion.GenerateCorpus(outDir, count, seed)
			if err != nil {
				return fmt.Errorf("generate: %w", err)
			}

			log.Info("dummy corpus written", slog.String("dir", outDir), slog.Int("files", len(files)))
			fmt.Printf("wrote %d documents to %s\n", len(files), outDir)
			return nil
		},
	}

	cmd.Flags().StringVarP(&outDir, "dir", "d", "", "Output directory for generated .txt documents")
	cmd.Flags().IntVarP(&count, "count", "c", 10, "Number of documents to generate")
	cmd.Flags().Int64Var(&seed, "seed", 42, "Random seed for deterministic output")

	return cmd
}
