package vectorstore

import (
	"testing"

	"github.com/54b3r/ragchat-go/internal/rag"
)

func seqRec(source string, page int) rag.Record {
	return rag.Record{
		ID:        rag.RecordID(source, page),
		Text:      "t",
		Embedding: []float32{1, 0},
		Metadata:  rag.Metadata{Source: source, Page: page, ClusterID: rag.ClusterUnassigned},
	}
}

func Test_AssignSeqs_NewRecordsAboveHighWater(t *testing.T) {
	t.Parallel()

	records := []rag.Record{seqRec("a.txt", 1), seqRec("a.txt", 2)}
	seqs, next := assignSeqs(records, map[string]int64{}, 5)

	if seqs[0] != 6 || seqs[1] != 7 {
		t.Errorf("want seqs [6 7], got %v", seqs)
	}
	if next != 7 {
		t.Errorf("want high-water mark 7, got %d", next)
	}
}

func Test_AssignSeqs_UpsertKeepsOriginalSeq(t *testing.T) {
	t.Parallel()

	// Re-ingesting a.txt_p1 must not move it to the end of iteration
	// order, and a record inserted afterwards must not collide with it.
	existing := map[string]int64{rag.RecordID("a.txt", 1): 1}

	seqs, next := assignSeqs([]rag.Record{seqRec("a.txt", 1)}, existing, 1)
	if seqs[0] != 1 {
		t.Errorf("upserted record: want original seq 1, got %d", seqs[0])
	}
	if next != 1 {
		t.Errorf("upsert must not advance the high-water mark, got %d", next)
	}

	seqs, next = assignSeqs([]rag.Record{seqRec("b.txt", 1)}, existing, next)
	if seqs[0] != 2 {
		t.Errorf("new record after upsert: want seq 2, got %d", seqs[0])
	}
	if next != 2 {
		t.Errorf("want high-water mark 2, got %d", next)
	}
}

func Test_AssignSeqs_MixedBatch(t *testing.T) {
	t.Parallel()

	existing := map[string]int64{
		rag.RecordID("a.txt", 1): 1,
		rag.RecordID("a.txt", 2): 2,
	}
	records := []rag.Record{
		seqRec("b.txt", 1), // new
		seqRec("a.txt", 1), // upsert
		seqRec("b.txt", 2), // new
	}

	seqs, next := assignSeqs(records, existing, 2)
	want := []int64{3, 1, 4}
	for i := range want {
		if seqs[i] != want[i] {
			t.Errorf("seqs[%d]: want %d, got %d", i, want[i], seqs[i])
		}
	}
	if next != 4 {
		t.Errorf("want high-water mark 4, got %d", next)
	}
}

func Test_AssignSeqs_DuplicateIDWithinBatch(t *testing.T) {
	t.Parallel()

	records := []rag.Record{seqRec("a.txt", 1), seqRec("a.txt", 1)}
	seqs, next := assignSeqs(records, map[string]int64{}, 0)

	if seqs[0] != 1 || seqs[1] != 1 {
		t.Errorf("repeated id must reuse its seq, got %v", seqs)
	}
	if next != 1 {
		t.Errorf("want high-water mark 1, got %d", next)
	}
}
