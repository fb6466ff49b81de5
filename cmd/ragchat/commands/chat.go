package commands

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/54b3r/ragchat-go/internal/logging"
)

// NewChatCmd constructs the `ragchat chat` command, an interactive loop that
// answers questions from the indexed documents until the user quits.
func NewChatCmd() *cobra.Command {
	var showScores bool

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Interactive question loop over the indexed documents",
		Long: `Start an interactive session. Each question runs the full retrieval and
answer pipeline independently; type 'quit' or 'exit' (or press Ctrl-D) to
leave the session.

Examples:
  ragchat chat
  ragchat chat --show-scores`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			store, closeStore, err := openStore(ctx, "", log)
			if err != nil {
				return fmt.Errorf("chat: %w", err)
			}
			defer closeStore()

			engine, err := buildEngine(ctx, store, -1, -1, log)
			if err != nil {
				return fmt.Errorf("chat: %w", err)
			}

			fmt.Println("ragchat interactive session — type 'quit' or 'exit' to leave")

			scanner := bufio.NewScanner(os.Stdin)
			for {
				fmt.Print("\nyou> ")
				if !scanner.Scan() {
					fmt.Println()
					break
				}

				question := strings.TrimSpace(scanner.Text())
				if question == "" {
					continue
				}
				if question == "quit" || question == "exit" {
					break
				}

				resp, err := engine.Ask(ctx, question)
				if err != nil {
					// A failed question should not end the session.
					fmt.Fprintf(os.Stderr, "error: %v\n", err)
					continue
				}

				fmt.Println()
				printAnswer(resp, showScores, engine.Threshold())
			}

			if err := scanner.Err(); err != nil {
				return fmt.Errorf("chat: failed to read input: %w", err)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&showScores, "show-scores", false, "Print distance, relevance, and threshold verdict for every retrieval candidate")

	return cmd
}
