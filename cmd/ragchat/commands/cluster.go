package commands

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/54b3r/ragchat-go/internal/cluster"
	"github.com/54b3r/ragchat-go/internal/config"
	"github.com/54b3r/ragchat-go/internal/logging"
)

// NewClusterCmd constructs the `ragchat cluster` command, which runs a
// k-means pass over every stored embedding and writes the cluster labels
// back into record metadata.
func NewClusterCmd() *cobra.Command {
	var k int

	cmd := &cobra.Command{
		Use:   "cluster",
		Short: "Group indexed pages into topic clusters",
		Long: `Run k-means over all stored embeddings and persist the resulting cluster
label on each record. Retrieval surfaces the label alongside each source so
answers can reference which topic group a page belongs to.

When the collection holds fewer records than the requested k, the pass uses
one cluster per record instead of failing. Re-running clustering replaces all
previous labels.

Examples:
  ragchat cluster
  ragchat cluster --k 25
  CLUSTER_K=25 ragchat cluster`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			if !cmd.Flags().Changed("k") {
				var err error
				k, err = config.ClusterK()
				if err != nil {
					return fmt.Errorf("cluster: %w", err)
				}
			}
			if k < 1 {
				return fmt.Errorf("cluster: --k must be at least 1, got %d", k)
			}

			store, closeStore, err := openStore(ctx, "", log)
			if err != nil {
				return fmt.Errorf("cluster: %w", err)
			}
			defer closeStore()

			assigner, err := cluster.NewAssigner(store, log)
			if err != nil {
				return fmt.Errorf("cluster: %w", err)
			}

			assignment, err := assigner.Apply(ctx, k)
			if err != nil {
				return fmt.Errorf("cluster: %w", err)
			}

			log.Info("clustering complete",
				slog.Int("records", len(assignment.Labels)),
				slog.Int("k_requested", k),
				slog.Int("k_actual", assignment.KActual),
			)
			fmt.Printf("clustered %d pages into %d clusters\n", len(assignment.Labels), assignment.KActual)
			return nil
		},
	}

	cmd.Flags().IntVarP(&k, "k", "k", config.DefaultClusterK, "Number of clusters to form")

	return cmd
}
