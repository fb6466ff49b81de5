package cluster

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/54b3r/ragchat-go/internal/rag"
)

// Assigner runs a full clustering pass over a vector store: fetch all
// records, cluster their embeddings, and merge the resulting labels back
// into each record's metadata by id. Because the final update is a
// read-modify-write over the whole record set, concurrent Apply calls
// against the same collection must be serialized by the caller.
type Assigner struct {
	// store is the collection being labeled.
	store rag.VectorStore

	// kmeans performs the actual partitioning.
	kmeans *KMeans

	// log receives cluster summaries and granularity warnings.
	log *slog.Logger
}

// NewAssigner constructs an Assigner over the given store.
func NewAssigner(store rag.VectorStore, log *slog.Logger) (*Assigner, error) {
	if store == nil {
		return nil, fmt.Errorf("cluster: store must not be nil")
	}
	if log == nil {
		log = slog.Default()
	}
	return &Assigner{store: store, kmeans: NewKMeans(), log: log}, nil
}

// Apply clusters every stored record into kRequested groups and persists the
// labels. Labels travel as explicit (id, label) pairs from the moment they
// are computed — the positional coupling between vectors and labels ends
// inside this function, before any store call.
//
// An under-populated collection (fewer than two records) is reported and
// skipped, not failed: the returned assignment has KActual == 0 and the
// error unwraps to rag.ErrInsufficientData.
func (a *Assigner) Apply(ctx context.Context, kRequested int) (rag.ClusterAssignment, error) {
	records, err := a.store.GetAll(ctx)
	if err != nil {
		return rag.ClusterAssignment{}, fmt.Errorf("cluster: fetch records: %w", err)
	}

	vectors := make([][]float32, len(records))
	for i, rec := range records {
		vectors[i] = rec.Embedding
	}

	assignment, err := a.kmeans.Assign(vectors, kRequested)
	if err != nil {
		if errors.Is(err, rag.ErrInsufficientData) {
			a.log.Warn("clustering skipped: not enough records",
				slog.Int("records", len(records)),
				slog.Int("minimum", 2),
			)
		}
		return rag.ClusterAssignment{}, err
	}

	if assignment.Reduced {
		a.log.Warn("cluster count reduced to match record count",
			slog.Int("k_requested", kRequested),
			slog.Int("k_actual", assignment.KActual),
			slog.Int("records", len(records)),
		)
	}

	// Bind labels to record identity while both slices still share the
	// GetAll snapshot order; everything downstream is keyed by id.
	labels := make(map[string]int, len(records))
	updates := make(map[string]rag.Metadata, len(records))
	for i, rec := range records {
		labels[rec.ID] = assignment.Labels[i]
		md := rec.Metadata
		md.ClusterID = assignment.Labels[i]
		updates[rec.ID] = md
	}

	if err := a.store.UpdateMetadata(ctx, updates); err != nil {
		return rag.ClusterAssignment{}, fmt.Errorf("cluster: persist labels: %w", err)
	}

	a.logSummary(labels, assignment.KActual, len(records))

	return rag.ClusterAssignment{Labels: labels, KActual: assignment.KActual}, nil
}

// logSummary emits per-cluster membership counts, largest first.
func (a *Assigner) logSummary(labels map[string]int, k, total int) {
	counts := make([]int, k)
	for _, l := range labels {
		counts[l]++
	}

	type clusterSize struct{ id, count int }
	sizes := make([]clusterSize, k)
	for i, c := range counts {
		sizes[i] = clusterSize{id: i, count: c}
	}
	sort.Slice(sizes, func(i, j int) bool { return sizes[i].count > sizes[j].count })

	for _, cs := range sizes {
		a.log.Info("cluster summary",
			slog.Int("cluster_id", cs.id),
			slog.Int("records", cs.count),
			slog.String("share", fmt.Sprintf("%.2f%%", float64(cs.count)/float64(total)*100)),
		)
	}
}
