package retrieval

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/54b3r/ragchat-go/internal/rag"
)

type fakeEmbedder struct {
	embedding []float32
	gotIntent rag.Intent
	err       error
}

func (f *fakeEmbedder) Embed(_ context.Context, texts []string, intent rag.Intent) ([][]float32, error) {
	f.gotIntent = intent
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i := range out {
		out[i] = f.embedding
	}
	return out, nil
}

type fakeQueryStore struct {
	scored  []rag.ScoredRecord
	err     error
	gotTopN int
}

func (f *fakeQueryStore) Insert(context.Context, []rag.Record) error { return nil }
func (f *fakeQueryStore) GetAll(context.Context) ([]rag.Record, error) {
	return nil, nil
}
func (f *fakeQueryStore) Query(_ context.Context, _ []float32, topN int) ([]rag.ScoredRecord, error) {
	f.gotTopN = topN
	if f.err != nil {
		return nil, f.err
	}
	return f.scored, nil
}
func (f *fakeQueryStore) UpdateMetadata(context.Context, map[string]rag.Metadata) error {
	return nil
}
func (f *fakeQueryStore) Count(context.Context) (int, error) { return len(f.scored), nil }
func (f *fakeQueryStore) Close() error                       { return nil }

func scored(source string, page int, text string, relevance float32) rag.ScoredRecord {
	return rag.ScoredRecord{
		Record: rag.Record{
			ID:   rag.RecordID(source, page),
			Text: text,
			Metadata: rag.Metadata{
				Source:    source,
				Page:      page,
				ClusterID: rag.ClusterUnassigned,
			},
		},
		Distance:  1 - relevance,
		Relevance: relevance,
	}
}

func newTestRetriever(t *testing.T, store *fakeQueryStore, threshold float32) (*Retriever, *fakeEmbedder) {
	t.Helper()
	emb := &fakeEmbedder{embedding: []float32{1, 0}}
	r, err := NewRetriever(emb, store, DefaultTopN, threshold, slog.Default())
	if err != nil {
		t.Fatalf("new retriever: %v", err)
	}
	return r, emb
}

func Test_Retriever_UsesQueryIntent(t *testing.T) {
	t.Parallel()

	r, emb := newTestRetriever(t, &fakeQueryStore{}, 0.3)
	if _, err := r.Retrieve(context.Background(), "a question"); err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	if emb.gotIntent != rag.IntentQuery {
		t.Errorf("want query intent, got %q", emb.gotIntent)
	}
}

func Test_Retriever_FiltersBelowThreshold(t *testing.T) {
	t.Parallel()

	store := &fakeQueryStore{scored: []rag.ScoredRecord{
		scored("a.txt", 1, "keep high", 0.9),
		scored("b.txt", 1, "keep edge", 0.3),
		scored("c.txt", 1, "drop low", 0.15),
	}}
	r, _ := newTestRetriever(t, store, 0.3)

	result, err := r.Retrieve(context.Background(), "q")
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	if len(result.Results) != 2 {
		t.Fatalf("want 2 survivors, got %d", len(result.Results))
	}
	// Threshold is inclusive and relative order is preserved.
	if result.Results[0].Record.Text != "keep high" || result.Results[1].Record.Text != "keep edge" {
		t.Errorf("survivors out of order: %+v", result.Results)
	}
}

func Test_Retriever_KeepsRejectedCandidates(t *testing.T) {
	t.Parallel()

	store := &fakeQueryStore{scored: []rag.ScoredRecord{
		scored("a.txt", 1, "keep high", 0.9),
		scored("c.txt", 1, "drop low", 0.15),
	}}
	r, _ := newTestRetriever(t, store, 0.3)

	result, err := r.Retrieve(context.Background(), "q")
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	// Candidates carry every hit, filtered or not, in rank order, so the
	// CLI can show why a hit was rejected.
	if len(result.Candidates) != 2 {
		t.Fatalf("want 2 candidates, got %d", len(result.Candidates))
	}
	if result.Candidates[0].Record.Text != "keep high" || result.Candidates[1].Record.Text != "drop low" {
		t.Errorf("candidates out of order: %+v", result.Candidates)
	}
	if len(result.Results) != 1 {
		t.Fatalf("want 1 survivor, got %d", len(result.Results))
	}
	if got := r.Threshold(); got != 0.3 {
		t.Errorf("want threshold 0.3, got %g", got)
	}
}

func Test_Retriever_AllRejectedStillReportsCandidates(t *testing.T) {
	t.Parallel()

	store := &fakeQueryStore{scored: []rag.ScoredRecord{
		scored("a.txt", 1, "close miss", 0.29),
		scored("b.txt", 2, "far miss", 0.05),
	}}
	r, _ := newTestRetriever(t, store, 0.3)

	result, err := r.Retrieve(context.Background(), "q")
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	if !result.Empty() {
		t.Fatalf("want empty result, got %d survivors", len(result.Results))
	}
	if len(result.Candidates) != 2 {
		t.Fatalf("want 2 candidates despite empty result, got %d", len(result.Candidates))
	}
	for _, c := range result.Candidates {
		if c.Relevance >= r.Threshold() {
			t.Errorf("candidate %q should be below threshold, relevance %g", c.Record.Text, c.Relevance)
		}
	}
}

func Test_Retriever_EmptyResultIsNotAnError(t *testing.T) {
	t.Parallel()

	store := &fakeQueryStore{scored: []rag.ScoredRecord{
		scored("a.txt", 1, "too far", 0.15),
	}}
	r, _ := newTestRetriever(t, store, 0.3)

	result, err := r.Retrieve(context.Background(), "q")
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	if !result.Empty() {
		t.Errorf("want empty result, got %d survivors", len(result.Results))
	}
}

func Test_Retriever_PropagatesEmptyCollection(t *testing.T) {
	t.Parallel()

	store := &fakeQueryStore{err: rag.ErrEmptyCollection}
	r, _ := newTestRetriever(t, store, 0.3)

	_, err := r.Retrieve(context.Background(), "q")
	if !errors.Is(err, rag.ErrEmptyCollection) {
		t.Fatalf("want ErrEmptyCollection, got %v", err)
	}
}

func Test_NewRetriever_RejectsBadConfig(t *testing.T) {
	t.Parallel()

	emb := &fakeEmbedder{embedding: []float32{1}}
	store := &fakeQueryStore{}

	if _, err := NewRetriever(emb, store, 5, -0.1, nil); err == nil {
		t.Error("negative threshold accepted")
	}
	if _, err := NewRetriever(emb, store, 5, 1.5, nil); err == nil {
		t.Error("threshold above 1 accepted")
	}
	if _, err := NewRetriever(emb, store, 0, 0.3, nil); err == nil {
		t.Error("top_n of 0 accepted")
	}
	if _, err := NewRetriever(emb, store, 5, 0, nil); err != nil {
		t.Errorf("threshold 0 rejected: %v", err)
	}
	if _, err := NewRetriever(emb, store, 5, 1, nil); err != nil {
		t.Errorf("threshold 1 rejected: %v", err)
	}
}

func Test_AssembleContext_TwoBlocks(t *testing.T) {
	t.Parallel()

	first := scored("audit_log_2024.txt", 3, "Retention is 90 days.", 0.912)
	first.Record.Metadata.ClusterID = 2
	second := scored("policy.txt", 1, "Access requires approval.", 0.456)

	got := AssembleContext(rag.RetrievalResult{Results: []rag.ScoredRecord{first, second}})

	want := "[Document 1]\n" +
		"Source: audit_log_2024.txt (Page 3, Cluster 2)\n" +
		"Relevance Score: 0.912\n" +
		"Content: Retention is 90 days.\n" +
		"\n---\n" +
		"[Document 2]\n" +
		"Source: policy.txt (Page 1, Cluster not clustered)\n" +
		"Relevance Score: 0.456\n" +
		"Content: Access requires approval.\n"
	if got != want {
		t.Errorf("assembled context mismatch:\ngot:\n%q\nwant:\n%q", got, want)
	}
}

func Test_AssembleContext_Empty(t *testing.T) {
	t.Parallel()

	if got := AssembleContext(rag.RetrievalResult{}); got != "" {
		t.Errorf("want empty string, got %q", got)
	}
}

func Test_BuildPrompt_ContainsContextAndQuestion(t *testing.T) {
	t.Parallel()

	prompt := BuildPrompt("[Document 1]\nContent: text\n", "What is the policy?")
	if !strings.Contains(prompt, "[Document 1]") {
		t.Error("prompt missing context")
	}
	if !strings.Contains(prompt, "USER QUESTION: What is the policy?") {
		t.Error("prompt missing question")
	}
	if !strings.Contains(prompt, `"According to Document 1..."`) {
		t.Error("prompt missing citation instruction")
	}
}
