package commands

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/cloudwego/eino/callbacks"
	"github.com/spf13/cobra"

	"github.com/54b3r/ragchat-go/internal/logging"
	"github.com/54b3r/ragchat-go/internal/server"
	"github.com/54b3r/ragchat-go/internal/tracing"
	"github.com/54b3r/ragchat-go/internal/vectorstore"
)

// NewServeCmd constructs the `ragchat serve` command, which starts the HTTP
// server exposing the question-answering pipeline as a REST API.
func NewServeCmd() *cobra.Command {
	var host string
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the ragchat HTTP server",
		Long: `Start the ragchat HTTP server on localhost.

The server exposes POST /api/query for grounded question answering, health
and readiness probes, and Prometheus metrics on /metrics. Protected routes
require a Bearer token when RAGCHAT_API_KEY is set.

Examples:
  ragchat serve
  ragchat serve --port 9090
  STORE_BACKEND=qdrant ragchat serve`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			log.Info("serve starting", slog.String("provider", os.Getenv("MODEL_PROVIDER")))

			// Setup Langfuse tracing — opt-in, no-op if keys are absent.
			handler, flush, ok := tracing.Setup()
			if ok {
				callbacks.AppendGlobalHandlers(handler)
				defer flush()
				log.Info("langfuse tracing enabled")
			} else {
				log.Info("langfuse tracing disabled", slog.String("reason", "LANGFUSE_PUBLIC_KEY not set"))
			}

			store, closeStore, err := openStore(ctx, "", log)
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}
			defer closeStore()

			engine, err := buildEngine(ctx, store, -1, -1, log)
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}

			pingers := []server.Pinger{server.NewStorePinger(store, "store")}
			if qs, ok := store.(*vectorstore.QdrantStore); ok {
				pingers = append(pingers, server.NewQdrantPinger(qs.Client()))
			}

			srv, err := server.New(engine, &server.Config{
				Host:    host,
				Port:    port,
				Logger:  log,
				Pingers: pingers,
				APIKey:  os.Getenv("RAGCHAT_API_KEY"),
			})
			if err != nil {
				return fmt.Errorf("serve: failed to create server: %w", err)
			}

			return srv.Start(ctx)
		},
	}

	cmd.Flags().StringVar(&host, "host", "127.0.0.1", "Host address to bind to")
	cmd.Flags().IntVarP(&port, "port", "p", 8080, "TCP port to listen on")

	return cmd
}
