package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/54b3r/ragchat-go/internal/answer"
	"github.com/54b3r/ragchat-go/internal/config"
	"github.com/54b3r/ragchat-go/internal/embedder"
	"github.com/54b3r/ragchat-go/internal/generator"
	"github.com/54b3r/ragchat-go/internal/rag"
	"github.com/54b3r/ragchat-go/internal/retrieval"
	"github.com/54b3r/ragchat-go/internal/vectorstore"
)

// openStore connects to the vector store selected by STORE_BACKEND (sqlite or
// qdrant) and returns it with a close func the caller must defer. An empty
// collection falls back to the configured collection name.
func openStore(ctx context.Context, collection string, log *slog.Logger) (rag.VectorStore, func(), error) {
	backend := getEnvOrDefault("STORE_BACKEND", "sqlite")
	if collection == "" {
		collection = config.Collection()
	}

	switch backend {
	case "sqlite":
		path := os.Getenv("RAGCHAT_DB_PATH")
		if path == "" {
			var err error
			path, err = vectorstore.DefaultDBPath(collection)
			if err != nil {
				return nil, nil, fmt.Errorf("failed to resolve store path: %w", err)
			}
		}
		store, err := vectorstore.Open(path)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open sqlite store at %s: %w", path, err)
		}
		log.Info("sqlite store ready", slog.String("path", path), slog.String("collection", collection))
		return store, func() { _ = store.Close() }, nil

	case "qdrant":
		host := getEnvOrDefault("QDRANT_HOST", "localhost")
		port := getEnvInt("QDRANT_PORT", 6334)
		vectorSize := uint64(embedder.DefaultDimensions(embedder.Backend())) //nolint:gosec // dimensions are bounded

		store, err := vectorstore.NewQdrantStore(ctx, &vectorstore.QdrantConfig{
			Host:       host,
			Port:       port,
			Collection: collection,
			VectorSize: vectorSize,
			APIKey:     os.Getenv("QDRANT_API_KEY"),
			UseTLS:     os.Getenv("QDRANT_TLS") == "true",
		})
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to Qdrant at %s:%d: %w", host, port, err)
		}
		log.Info("qdrant store ready", slog.String("host", host), slog.Int("port", port), slog.String("collection", collection))
		return store, func() { _ = store.Close() }, nil

	default:
		return nil, nil, fmt.Errorf("unknown STORE_BACKEND %q (expected sqlite or qdrant)", backend)
	}
}

// buildEngine wires the full question-answering pipeline: embedder, retriever
// over the given store, chat model, and the answer engine on top. topN and
// threshold override the configured retrieval knobs when >= 0; pass -1 to use
// the config values.
func buildEngine(ctx context.Context, store rag.VectorStore, topN int, threshold float32, log *slog.Logger) (*answer.Engine, error) {
	if err := embedder.Validate(log); err != nil {
		return nil, err
	}

	emb, err := embedder.NewFromEnv(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to initialise embedder: %w", err)
	}
	log.Info("embedder initialised", slog.String("provider", embedder.Backend()))

	cfgTopN, cfgThreshold, err := config.RetrievalSettings()
	if err != nil {
		return nil, err
	}
	if topN < 0 {
		topN = cfgTopN
	}
	if threshold < 0 {
		threshold = cfgThreshold
	}

	retriever, err := retrieval.NewRetriever(emb, store, topN, threshold, log)
	if err != nil {
		return nil, err
	}

	gen, err := generator.NewFromEnv(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to initialise model provider: %w", err)
	}
	log.Info("generator initialised", slog.String("provider", getEnvOrDefault("MODEL_PROVIDER", "gemini")))

	return answer.NewEngine(retriever, gen, log)
}

// printAnswer writes one answer with its cited sources to stdout. With
// showScores it also prints every retrieval candidate, including the ones
// the relevance threshold rejected, so a "no relevant information" answer
// can be diagnosed instead of guessed at.
func printAnswer(resp *answer.Response, showScores bool, threshold float32) {
	fmt.Println(resp.Answer)

	if len(resp.Sources) > 0 {
		fmt.Println("\nSources:")
		for i, src := range resp.Sources {
			line := fmt.Sprintf("  [%d] %s (page %d", i+1, src.Record.Metadata.Source, src.Record.Metadata.Page)
			if src.Record.Metadata.Clustered() {
				line += fmt.Sprintf(", cluster %d", src.Record.Metadata.ClusterID)
			}
			line += ")"
			if showScores {
				line += fmt.Sprintf(" relevance=%.3f", src.Relevance)
			}
			fmt.Println(line)
		}
	}

	if showScores && len(resp.Candidates) > 0 {
		fmt.Printf("\nRetrieval candidates (threshold %.3f):\n", threshold)
		for i, c := range resp.Candidates {
			verdict := "pass"
			if c.Relevance < threshold {
				verdict = "below threshold"
			}
			fmt.Printf("  [%d] %s (page %d) distance=%.3f relevance=%.3f %s\n",
				i+1, c.Record.Metadata.Source, c.Record.Metadata.Page,
				c.Distance, c.Relevance, verdict)
		}
	}
}

func getEnvOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
