// Package retrieval runs the query-time half of the pipeline: embed the
// question with query intent, rank stored records by distance, and keep
// only those above the configured relevance floor.
package retrieval

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/54b3r/ragchat-go/internal/rag"
)

// Defaults applied when the configuration leaves retrieval knobs unset.
const (
	DefaultTopN               = 5
	DefaultRelevanceThreshold = 0.3
)

// Retriever embeds a question and returns the relevance-filtered nearest
// records. An empty result is a normal outcome, not an error.
type Retriever struct {
	embedder  rag.Embedder
	store     rag.VectorStore
	topN      int
	threshold float32
	log       *slog.Logger
}

// NewRetriever validates the retrieval settings and constructs a Retriever.
// threshold must lie in [0, 1] and topN must be at least 1; violations are
// configuration errors surfaced at startup, never during a query.
func NewRetriever(embedder rag.Embedder, store rag.VectorStore, topN int, threshold float32, log *slog.Logger) (*Retriever, error) {
	if embedder == nil {
		return nil, fmt.Errorf("retrieval: embedder is required")
	}
	if store == nil {
		return nil, fmt.Errorf("retrieval: vector store is required")
	}
	if topN < 1 {
		return nil, fmt.Errorf("retrieval: top_n must be at least 1, got %d", topN)
	}
	if threshold < 0 || threshold > 1 {
		return nil, fmt.Errorf("retrieval: relevance_threshold must be in [0, 1], got %g", threshold)
	}
	if log == nil {
		log = slog.Default()
	}
	return &Retriever{
		embedder:  embedder,
		store:     store,
		topN:      topN,
		threshold: threshold,
		log:       log,
	}, nil
}

// Retrieve embeds the question with query intent, asks the store for the
// topN nearest records, and drops any whose relevance (1 - distance) falls
// below the threshold. Relative order of survivors is preserved.
func (r *Retriever) Retrieve(ctx context.Context, question string) (rag.RetrievalResult, error) {
	embeddings, err := r.embedder.Embed(ctx, []string{question}, rag.IntentQuery)
	if err != nil {
		return rag.RetrievalResult{}, fmt.Errorf("retrieval: embed question: %w", err)
	}
	if len(embeddings) != 1 {
		return rag.RetrievalResult{}, fmt.Errorf("retrieval: expected 1 query embedding, got %d", len(embeddings))
	}

	scored, err := r.store.Query(ctx, embeddings[0], r.topN)
	if err != nil {
		return rag.RetrievalResult{}, fmt.Errorf("retrieval: query store: %w", err)
	}

	kept := make([]rag.ScoredRecord, 0, len(scored))
	for _, s := range scored {
		if s.Relevance >= r.threshold {
			kept = append(kept, s)
		}
	}

	r.log.DebugContext(ctx, "retrieval complete",
		"candidates", len(scored),
		"kept", len(kept),
		"threshold", r.threshold,
	)

	return rag.RetrievalResult{Results: kept, Candidates: scored}, nil
}

// Threshold returns the relevance floor this retriever filters against.
func (r *Retriever) Threshold() float32 {
	return r.threshold
}
