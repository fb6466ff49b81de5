package cluster

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"testing"

	"github.com/54b3r/ragchat-go/internal/rag"
)

// fakeStore is an in-memory rag.VectorStore that preserves insertion order
// and records whether UpdateMetadata was ever called.
type fakeStore struct {
	records  []rag.Record
	updated  bool
	updCalls int
}

func (f *fakeStore) Insert(_ context.Context, records []rag.Record) error {
	f.records = append(f.records, records...)
	return nil
}

func (f *fakeStore) GetAll(_ context.Context) ([]rag.Record, error) {
	out := make([]rag.Record, len(f.records))
	copy(out, f.records)
	return out, nil
}

func (f *fakeStore) Query(_ context.Context, _ []float32, _ int) ([]rag.ScoredRecord, error) {
	return nil, fmt.Errorf("fake: query: %w", rag.ErrEmptyCollection)
}

func (f *fakeStore) UpdateMetadata(_ context.Context, updates map[string]rag.Metadata) error {
	f.updated = true
	f.updCalls++
	for i, rec := range f.records {
		md, ok := updates[rec.ID]
		if !ok {
			return fmt.Errorf("fake: %q: %w", rec.ID, rag.ErrIDNotFound)
		}
		f.records[i].Metadata = md
	}
	return nil
}

func (f *fakeStore) Count(_ context.Context) (int, error) { return len(f.records), nil }
func (f *fakeStore) Close() error                         { return nil }

// seedStore fills a fakeStore with n single-page records spread across
// sources, with well-separated embeddings.
func seedStore(n int) *fakeStore {
	s := &fakeStore{}
	centers := [][]float32{{0, 0}, {100, 0}, {0, 100}, {100, 100}}
	for i := 0; i < n; i++ {
		source := fmt.Sprintf("doc%d.pdf", i%4)
		page := i/4 + 1
		c := centers[i%4]
		_ = s.Insert(context.Background(), []rag.Record{{
			ID:        rag.RecordID(source, page),
			Text:      fmt.Sprintf("page %d of %s", page, source),
			Embedding: []float32{c[0] + float32(i)*0.01, c[1] + float32(i)*0.01},
			Metadata:  rag.Metadata{Source: source, Page: page, ClusterID: rag.ClusterUnassigned},
		}})
	}
	return s
}

func newTestAssigner(t *testing.T, store rag.VectorStore) *Assigner {
	t.Helper()
	a, err := NewAssigner(store, slog.Default())
	if err != nil {
		t.Fatalf("new assigner: %v", err)
	}
	return a
}

func Test_Assigner_LabelsBoundToIDs(t *testing.T) {
	t.Parallel()
	store := seedStore(12)
	a := newTestAssigner(t, store)

	assignment, err := a.Apply(context.Background(), 10)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if assignment.KActual != 10 {
		t.Errorf("12 records, k=10: want KActual 10, got %d", assignment.KActual)
	}
	if len(assignment.Labels) != 12 {
		t.Fatalf("want 12 labeled ids, got %d", len(assignment.Labels))
	}

	// Persisted metadata must agree with the assignment, record by record.
	recs, _ := store.GetAll(context.Background())
	for _, rec := range recs {
		want, ok := assignment.Labels[rec.ID]
		if !ok {
			t.Errorf("record %q missing from assignment", rec.ID)
			continue
		}
		if rec.Metadata.ClusterID != want {
			t.Errorf("record %q: persisted cluster %d, assignment %d", rec.ID, rec.Metadata.ClusterID, want)
		}
		if rec.Metadata.Source == "" || rec.Metadata.Page == 0 {
			t.Errorf("record %q: source/page metadata lost during label merge", rec.ID)
		}
	}
}

func Test_Assigner_ReducedK(t *testing.T) {
	t.Parallel()
	store := seedStore(3)
	a := newTestAssigner(t, store)

	assignment, err := a.Apply(context.Background(), 10)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if assignment.KActual != 3 {
		t.Errorf("3 records, k=10: want KActual 3, got %d", assignment.KActual)
	}
}

func Test_Assigner_InsufficientDataSkipsMetadataUpdate(t *testing.T) {
	t.Parallel()
	store := seedStore(1)
	a := newTestAssigner(t, store)

	_, err := a.Apply(context.Background(), 10)
	if !errors.Is(err, rag.ErrInsufficientData) {
		t.Fatalf("want ErrInsufficientData, got %v", err)
	}
	if store.updated {
		t.Error("metadata mutated despite insufficient data")
	}

	recs, _ := store.GetAll(context.Background())
	if recs[0].Metadata.ClusterID != rag.ClusterUnassigned {
		t.Errorf("record labeled despite skipped clustering: %d", recs[0].Metadata.ClusterID)
	}
}

func Test_Assigner_SingleBulkUpdate(t *testing.T) {
	t.Parallel()
	store := seedStore(8)
	a := newTestAssigner(t, store)

	if _, err := a.Apply(context.Background(), 4); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if store.updCalls != 1 {
		t.Errorf("want exactly one bulk metadata update, got %d", store.updCalls)
	}
}
