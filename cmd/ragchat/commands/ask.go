package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/54b3r/ragchat-go/internal/logging"
)

// NewAskCmd constructs the `ragchat ask` command, which answers a single
// natural language question from the indexed documents and prints the
// answer with its cited sources.
func NewAskCmd() *cobra.Command {
	var topN int
	var threshold float32
	var showScores bool

	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Ask a one-shot question over the indexed documents",
		Long: `Answer a single question grounded in the indexed document collection.

The question is embedded, the closest pages are retrieved and filtered by
relevance, and the surviving pages are handed to the chat model as context.
When nothing passes the relevance filter the command reports that no
relevant information is available instead of guessing.

Examples:
  ragchat ask "what is the refund policy?"
  ragchat ask --top-n 10 --threshold 0.5 "who approved the Q3 budget?"
  ragchat ask --show-scores "summarise the incident report"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			overrideTopN := -1
			if cmd.Flags().Changed("top-n") {
				overrideTopN = topN
			}
			overrideThreshold := float32(-1)
			if cmd.Flags().Changed("threshold") {
				overrideThreshold = threshold
			}

			store, closeStore, err := openStore(ctx, "", log)
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}
			defer closeStore()

			engine, err := buildEngine(ctx, store, overrideTopN, overrideThreshold, log)
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}

			question := strings.Join(args, " ")

			resp, err := engine.Ask(ctx, question)
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}

			printAnswer(resp, showScores, engine.Threshold())
			return nil
		},
	}

	cmd.Flags().IntVarP(&topN, "top-n", "n", 0, "Number of pages to retrieve (default from config)")
	cmd.Flags().Float32VarP(&threshold, "threshold", "t", 0, "Minimum relevance score in [0, 1] (default from config)")
	cmd.Flags().BoolVar(&showScores, "show-scores", false, "Print distance, relevance, and threshold verdict for every retrieval candidate")

	return cmd
}
