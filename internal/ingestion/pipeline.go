package ingestion

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/54b3r/ragchat-go/internal/rag"
)

// DefaultBatchSize is how many pages are embedded and inserted per round
// trip when the config leaves it unset.
const DefaultBatchSize = 32

// Pipeline orchestrates the load → embed → upsert flow for a set of pages.
type Pipeline struct {
	embedder  rag.Embedder
	store     rag.VectorStore
	batchSize int
	log       *slog.Logger
}

// NewPipeline constructs a Pipeline from the provided dependencies.
func NewPipeline(embedder rag.Embedder, store rag.VectorStore, batchSize int, log *slog.Logger) (*Pipeline, error) {
	if embedder == nil {
		return nil, fmt.Errorf("ingestion: embedder must not be nil")
	}
	if store == nil {
		return nil, fmt.Errorf("ingestion: store must not be nil")
	}
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if log == nil {
		log = slog.Default()
	}
	return &Pipeline{
		embedder:  embedder,
		store:     store,
		batchSize: batchSize,
		log:       log,
	}, nil
}

// Ingest embeds the pages with document intent and upserts them into the
// store in batches. Each batch is inserted atomically; on error the pages
// of earlier batches remain stored and the failing batch is reported. It
// returns the number of records written.
func (p *Pipeline) Ingest(ctx context.Context, pages []Page) (int, error) {
	if len(pages) == 0 {
		return 0, fmt.Errorf("ingestion: no pages to ingest")
	}

	written := 0
	for start := 0; start < len(pages); start += p.batchSize {
		end := min(start+p.batchSize, len(pages))
		batch := pages[start:end]

		texts := make([]string, len(batch))
		for i, pg := range batch {
			texts[i] = pg.Text
		}

		embeddings, err := p.embedder.Embed(ctx, texts, rag.IntentDocument)
		if err != nil {
			return written, fmt.Errorf("ingestion: embed batch starting at page record %d: %w", start, err)
		}
		if len(embeddings) != len(batch) {
			return written, fmt.Errorf("ingestion: expected %d embeddings, got %d", len(batch), len(embeddings))
		}

		records := make([]rag.Record, len(batch))
		for i, pg := range batch {
			records[i] = rag.Record{
				ID:        rag.RecordID(pg.Source, pg.Number),
				Text:      pg.Text,
				Embedding: embeddings[i],
				Metadata: rag.Metadata{
					Source:    pg.Source,
					Page:      pg.Number,
					ClusterID: rag.ClusterUnassigned,
				},
			}
		}

		if err := p.store.Insert(ctx, records); err != nil {
			return written, fmt.Errorf("ingestion: insert batch starting at page record %d: %w", start, err)
		}
		written += len(records)

		p.log.InfoContext(ctx, "ingested batch",
			"records", len(records),
			"total", written,
			"remaining", len(pages)-written,
		)
	}

	return written, nil
}
