package cluster

import (
	"errors"
	"testing"

	"github.com/54b3r/ragchat-go/internal/rag"
)

// partitionKey canonicalizes a label slice into a membership signature that
// is invariant under label permutation: each label is renamed to the index
// of its first appearance.
func partitionKey(labels []int) []int {
	next := 0
	seen := map[int]int{}
	out := make([]int, len(labels))
	for i, l := range labels {
		canonical, ok := seen[l]
		if !ok {
			canonical = next
			seen[l] = next
			next++
		}
		out[i] = canonical
	}
	return out
}

// wellSeparated returns n vectors arranged in three tight, distant groups.
func wellSeparated(n int) [][]float32 {
	centers := [][]float32{{0, 0}, {100, 0}, {0, 100}}
	out := make([][]float32, n)
	for i := range out {
		c := centers[i%3]
		// Small deterministic jitter keeps points distinct within a group.
		out[i] = []float32{c[0] + float32(i)*0.01, c[1] + float32(i)*0.01}
	}
	return out
}

func Test_KMeans_InsufficientData(t *testing.T) {
	t.Parallel()
	km := NewKMeans()

	for _, vectors := range [][][]float32{nil, {{1, 2}}} {
		_, err := km.Assign(vectors, 10)
		if !errors.Is(err, rag.ErrInsufficientData) {
			t.Errorf("n=%d: want ErrInsufficientData, got %v", len(vectors), err)
		}
	}
}

func Test_KMeans_InvalidK(t *testing.T) {
	t.Parallel()
	km := NewKMeans()

	_, err := km.Assign(wellSeparated(6), 0)
	if err == nil {
		t.Fatal("want error for k=0, got nil")
	}
	if errors.Is(err, rag.ErrInsufficientData) {
		t.Fatal("k=0 must be a configuration error, not insufficient data")
	}
}

func Test_KMeans_KActualCappedByVectorCount(t *testing.T) {
	t.Parallel()
	km := NewKMeans()

	cases := []struct {
		n, kRequested, wantK int
		wantReduced          bool
	}{
		{12, 10, 10, false},
		{3, 10, 3, true},
		{5, 5, 5, false},
		{100, 3, 3, false},
	}
	for _, tc := range cases {
		got, err := km.Assign(wellSeparated(tc.n), tc.kRequested)
		if err != nil {
			t.Fatalf("n=%d k=%d: %v", tc.n, tc.kRequested, err)
		}
		if got.KActual != tc.wantK {
			t.Errorf("n=%d k=%d: want KActual %d, got %d", tc.n, tc.kRequested, tc.wantK, got.KActual)
		}
		if got.Reduced != tc.wantReduced {
			t.Errorf("n=%d k=%d: want Reduced %v, got %v", tc.n, tc.kRequested, tc.wantReduced, got.Reduced)
		}
		if len(got.Labels) != tc.n {
			t.Errorf("n=%d k=%d: want %d labels, got %d", tc.n, tc.kRequested, tc.n, len(got.Labels))
		}
	}
}

func Test_KMeans_LabelsInRange(t *testing.T) {
	t.Parallel()
	km := NewKMeans()

	got, err := km.Assign(wellSeparated(30), 4)
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	for i, l := range got.Labels {
		if l < 0 || l >= got.KActual {
			t.Errorf("label[%d] = %d outside [0, %d)", i, l, got.KActual)
		}
	}
}

func Test_KMeans_Deterministic(t *testing.T) {
	t.Parallel()

	vectors := wellSeparated(24)

	first, err := NewKMeans().Assign(vectors, 3)
	if err != nil {
		t.Fatalf("first assign: %v", err)
	}
	second, err := NewKMeans().Assign(vectors, 3)
	if err != nil {
		t.Fatalf("second assign: %v", err)
	}

	// Compare partitions, not raw labels: membership must be identical even
	// if label values permute.
	a := partitionKey(first.Labels)
	b := partitionKey(second.Labels)
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("partition differs at %d: %v vs %v", i, a, b)
		}
	}
}

func Test_KMeans_SeparatedGroupsRecovered(t *testing.T) {
	t.Parallel()
	km := NewKMeans()

	vectors := wellSeparated(30)
	got, err := km.Assign(vectors, 3)
	if err != nil {
		t.Fatalf("assign: %v", err)
	}

	// Points seeded from the same center must land in the same cluster.
	for i := 3; i < len(vectors); i++ {
		if got.Labels[i] != got.Labels[i%3] {
			t.Errorf("point %d split from its group: label %d vs %d", i, got.Labels[i], got.Labels[i%3])
		}
	}
	// And the three groups must be distinct clusters.
	if got.Labels[0] == got.Labels[1] || got.Labels[1] == got.Labels[2] || got.Labels[0] == got.Labels[2] {
		t.Errorf("distinct groups merged: labels %v", got.Labels[:3])
	}
}

func Test_KMeans_KEqualsN(t *testing.T) {
	t.Parallel()
	km := NewKMeans()

	vectors := [][]float32{{0, 0}, {10, 0}, {0, 10}}
	got, err := km.Assign(vectors, 3)
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	seen := map[int]bool{}
	for _, l := range got.Labels {
		seen[l] = true
	}
	if len(seen) != 3 {
		t.Errorf("k=n should give each point its own cluster, got %v", got.Labels)
	}
}
