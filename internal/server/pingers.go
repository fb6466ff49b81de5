package server

import (
	"context"
	"fmt"

	"github.com/qdrant/go-client/qdrant"

	"github.com/54b3r/ragchat-go/internal/rag"
)

// StorePinger probes a vector store by asking it for its record count.
// It satisfies the Pinger interface and is used by GET /api/ready.
type StorePinger struct {
	// store is the vector store to probe.
	store rag.VectorStore
	// name identifies the backend in readiness responses (e.g. "sqlite").
	name string
}

// NewStorePinger constructs a StorePinger for the given store and backend name.
func NewStorePinger(store rag.VectorStore, name string) *StorePinger {
	return &StorePinger{store: store, name: name}
}

// Name returns the backend label used in readiness responses.
func (p *StorePinger) Name() string { return p.name }

// Ping asks the store for its record count. An empty collection is still
// healthy — only a failing round trip is reported as an error.
func (p *StorePinger) Ping(ctx context.Context) error {
	if _, err := p.store.Count(ctx); err != nil {
		return fmt.Errorf("count failed: %w", err)
	}
	return nil
}

// QdrantPinger probes a Qdrant instance using its native HealthCheck RPC.
// It satisfies the Pinger interface and is used by GET /api/ready.
type QdrantPinger struct {
	// client is the Qdrant gRPC client to probe.
	client *qdrant.Client
}

// NewQdrantPinger constructs a QdrantPinger for the given Qdrant client.
func NewQdrantPinger(client *qdrant.Client) *QdrantPinger {
	return &QdrantPinger{client: client}
}

// Name returns the dependency label used in readiness responses.
func (p *QdrantPinger) Name() string { return "qdrant" }

// Ping calls the Qdrant HealthCheck RPC.
// Returns nil if Qdrant is reachable, or a descriptive error otherwise.
func (p *QdrantPinger) Ping(ctx context.Context) error {
	_, err := p.client.HealthCheck(ctx)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	return nil
}
