// Package commands defines all Cobra CLI commands for the ragchat binary.
package commands

import (
	"github.com/spf13/cobra"

	"github.com/54b3r/ragchat-go/internal/audit"
	"github.com/54b3r/ragchat-go/internal/config"
	"github.com/54b3r/ragchat-go/internal/logging"
)

// configPath holds the --config flag value for YAML config file override.
var configPath string

// loadedConfigPath stores the resolved config file path for audit logging.
var loadedConfigPath string

// NewRootCmd constructs the root Cobra command that all subcommands attach to.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "ragchat",
		Short: "ragchat — grounded Q&A over your own documents",
		Long: `ragchat indexes page-oriented text documents into a vector store and
answers natural language questions grounded in the retrieved pages.

Typical workflow:
  ragchat ingest --dir ./docs      index a directory of .txt documents
  ragchat cluster                  group the indexed pages by topic
  ragchat ask "what is X?"         one-shot question with cited sources
  ragchat chat                     interactive question loop
  ragchat serve                    HTTP API for the same pipeline

Model and embedding providers are selected via the MODEL_PROVIDER and
EMBEDDING_PROVIDER environment variables or a YAML config file
(~/.ragchat/config.yaml). See 'ragchat --help' for available commands.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			log := logging.New()

			// Load YAML config (env vars always override YAML values).
			path, err := config.Load(configPath, log)
			if err != nil {
				return err
			}
			loadedConfigPath = path

			// Emit structured audit log for every command invocation.
			audit.LogCommandStart(log, cmd.Name(), loadedConfigPath)

			return nil
		},
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML config file (default: ~/.ragchat/config.yaml)")

	root.AddCommand(
		NewIngestCmd(),
		NewClusterCmd(),
		NewAskCmd(),
		NewChatCmd(),
		NewGenerateCmd(),
		NewServeCmd(),
		NewVersionCmd(),
	)

	return root
}
