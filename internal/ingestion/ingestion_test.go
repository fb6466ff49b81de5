package ingestion

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/54b3r/ragchat-go/internal/rag"
)

type fakeEmbedder struct {
	dim   int
	err   error
	calls int
}

func (f *fakeEmbedder) Embed(_ context.Context, texts []string, intent rag.Intent) ([][]float32, error) {
	f.calls++
	if intent != rag.IntentDocument {
		return nil, errors.New("expected document intent")
	}
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i := range out {
		out[i] = make([]float32, f.dim)
		out[i][0] = float32(len(texts[i]))
	}
	return out, nil
}

type fakeStore struct {
	inserted [][]rag.Record
	err      error
}

func (f *fakeStore) Insert(_ context.Context, records []rag.Record) error {
	if f.err != nil {
		return f.err
	}
	batch := make([]rag.Record, len(records))
	copy(batch, records)
	f.inserted = append(f.inserted, batch)
	return nil
}
func (f *fakeStore) GetAll(context.Context) ([]rag.Record, error) { return nil, nil }
func (f *fakeStore) Query(context.Context, []float32, int) ([]rag.ScoredRecord, error) {
	return nil, nil
}
func (f *fakeStore) UpdateMetadata(context.Context, map[string]rag.Metadata) error { return nil }
func (f *fakeStore) Count(context.Context) (int, error)                            { return 0, nil }
func (f *fakeStore) Close() error                                                  { return nil }

func writeDoc(t *testing.T, dir, name, body string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func Test_LoadDirectory_SplitsPagesAndOrdersFiles(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeDoc(t, dir, "b_report.txt", "page one\fpage two")
	writeDoc(t, dir, "a_policy.txt", "only page")
	writeDoc(t, dir, "notes.md", "ignored")

	pages, err := LoadDirectory(dir)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(pages) != 3 {
		t.Fatalf("want 3 pages, got %d", len(pages))
	}
	if pages[0].Source != "a_policy.txt" || pages[0].Number != 1 {
		t.Errorf("first page = %+v", pages[0])
	}
	if pages[1].Source != "b_report.txt" || pages[1].Number != 1 || pages[1].Text != "page one" {
		t.Errorf("second page = %+v", pages[1])
	}
	if pages[2].Number != 2 || pages[2].Text != "page two" {
		t.Errorf("third page = %+v", pages[2])
	}
}

func Test_LoadDirectory_BlankPageKeepsNumbering(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeDoc(t, dir, "doc.txt", "first\f   \fthird")

	pages, err := LoadDirectory(dir)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(pages) != 2 {
		t.Fatalf("want 2 non-blank pages, got %d", len(pages))
	}
	if pages[1].Number != 3 {
		t.Errorf("page after blank should keep printed number 3, got %d", pages[1].Number)
	}
}

func Test_LoadDirectory_EmptyDirIsError(t *testing.T) {
	t.Parallel()

	if _, err := LoadDirectory(t.TempDir()); err == nil {
		t.Fatal("want error for directory without documents")
	}
}

func Test_Pipeline_IngestBuildsStableRecordIDs(t *testing.T) {
	t.Parallel()

	store := &fakeStore{}
	p, err := NewPipeline(&fakeEmbedder{dim: 4}, store, 0, nil)
	if err != nil {
		t.Fatalf("new pipeline: %v", err)
	}

	pages := []Page{
		{Source: "policy.txt", Number: 1, Text: "alpha"},
		{Source: "policy.txt", Number: 2, Text: "beta"},
	}
	n, err := p.Ingest(context.Background(), pages)
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if n != 2 {
		t.Fatalf("want 2 records written, got %d", n)
	}

	records := store.inserted[0]
	if records[0].ID != "policy.txt_p1" || records[1].ID != "policy.txt_p2" {
		t.Errorf("record ids = %q, %q", records[0].ID, records[1].ID)
	}
	if records[0].Metadata.Clustered() {
		t.Error("fresh records must not carry a cluster label")
	}
	if len(records[0].Embedding) != 4 {
		t.Errorf("embedding dim = %d", len(records[0].Embedding))
	}
}

func Test_Pipeline_BatchesBySize(t *testing.T) {
	t.Parallel()

	store := &fakeStore{}
	emb := &fakeEmbedder{dim: 2}
	p, err := NewPipeline(emb, store, 2, nil)
	if err != nil {
		t.Fatalf("new pipeline: %v", err)
	}

	pages := make([]Page, 5)
	for i := range pages {
		pages[i] = Page{Source: "doc.txt", Number: i + 1, Text: "text"}
	}
	n, err := p.Ingest(context.Background(), pages)
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if n != 5 {
		t.Fatalf("want 5 written, got %d", n)
	}
	if len(store.inserted) != 3 || emb.calls != 3 {
		t.Errorf("want 3 batches, got %d inserts and %d embed calls", len(store.inserted), emb.calls)
	}
}

func Test_Pipeline_EmbedFailureReportsWrittenCount(t *testing.T) {
	t.Parallel()

	store := &fakeStore{}
	p, err := NewPipeline(&fakeEmbedder{dim: 2, err: errors.New("boom")}, store, 2, nil)
	if err != nil {
		t.Fatalf("new pipeline: %v", err)
	}

	n, err := p.Ingest(context.Background(), []Page{{Source: "d.txt", Number: 1, Text: "x"}})
	if err == nil {
		t.Fatal("want error")
	}
	if n != 0 {
		t.Errorf("want 0 written, got %d", n)
	}
}

func Test_GenerateCorpus_Deterministic(t *testing.T) {
	t.Parallel()

	dirA := t.TempDir()
	dirB := t.TempDir()

	pathsA, err := GenerateCorpus(dirA, 3, 42)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if _, err := GenerateCorpus(dirB, 3, 42); err != nil {
		t.Fatalf("generate: %v", err)
	}
	if len(pathsA) != 3 {
		t.Fatalf("want 3 files, got %d", len(pathsA))
	}

	for i := 1; i <= 3; i++ {
		name := filepath.Join(dirA, "dummy_log_"+string(rune('0'+i))+".txt")
		a, err := os.ReadFile(name)
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		b, err := os.ReadFile(filepath.Join(dirB, filepath.Base(name)))
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		if string(a) != string(b) {
			t.Errorf("%s differs between identically seeded runs", filepath.Base(name))
		}
		if !strings.Contains(string(a), "Company Compliance Conversation Log") {
			t.Errorf("%s missing header", filepath.Base(name))
		}
	}
}

func Test_GenerateCorpus_LoadsBack(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	if _, err := GenerateCorpus(dir, 2, 7); err != nil {
		t.Fatalf("generate: %v", err)
	}
	pages, err := LoadDirectory(dir)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(pages) < 2 {
		t.Fatalf("want at least one page per file, got %d", len(pages))
	}
}
