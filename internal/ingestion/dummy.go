package ingestion

import (
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
)

// GenerateCorpus writes count synthetic compliance conversation logs into
// dir as page-oriented .txt files, for trying the pipeline without real
// documents. The same seed always produces the same corpus.
func GenerateCorpus(dir string, count int, seed int64) ([]string, error) {
	if count < 1 {
		return nil, fmt.Errorf("ingestion: corpus count must be at least 1, got %d", count)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("ingestion: create corpus directory: %w", err)
	}

	rng := rand.New(rand.NewSource(seed))

	var paths []string
	for i := 1; i <= count; i++ {
		name := fmt.Sprintf("dummy_log_%d.txt", i)
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte(dummyLog(rng, i)), 0o644); err != nil {
			return nil, fmt.Errorf("ingestion: write %s: %w", name, err)
		}
		paths = append(paths, path)
	}
	return paths, nil
}

var (
	dummyFirstNames = []string{"Avery", "Jordan", "Morgan", "Riley", "Casey", "Quinn", "Dana", "Rowan"}
	dummyLastNames  = []string{"Alvarez", "Chen", "Okafor", "Novak", "Reyes", "Kowalski", "Haddad", "Lindgren"}
	dummyTopics     = []string{
		"data retention schedules",
		"third-party vendor access",
		"quarterly access reviews",
		"incident escalation paths",
		"encryption key rotation",
		"customer data export requests",
		"audit log completeness",
		"change approval workflows",
	}
	dummyStatuses = []string{"Compliant", "Compliant", "Compliant", "Needs Review"}
)

// dummyLog renders one multi-page conversation log. Pages are separated by
// the same form-feed boundary LoadDirectory splits on.
func dummyLog(rng *rand.Rand, index int) string {
	first := dummyFirstNames[rng.Intn(len(dummyFirstNames))]
	last := dummyLastNames[rng.Intn(len(dummyLastNames))]
	status := dummyStatuses[rng.Intn(len(dummyStatuses))]

	var b strings.Builder
	fmt.Fprintf(&b, "Company Compliance Conversation Log\n\n")
	fmt.Fprintf(&b, "User Name: %s %s\n", first, last)
	fmt.Fprintf(&b, "User Email: %s.%s@example.com\n", strings.ToLower(first), strings.ToLower(last))
	fmt.Fprintf(&b, "Conversation ID: %08x-%04x\n", rng.Uint32(), index)
	fmt.Fprintf(&b, "\nCompliance Status: %s\n", status)
	fmt.Fprintf(&b, "\nConversation Log:\n")

	pages := 1 + rng.Intn(3)
	for p := 0; p < pages; p++ {
		if p > 0 {
			b.WriteString(pageBreak)
			fmt.Fprintf(&b, "Conversation Log (continued, page %d):\n", p+1)
		}
		for s := 0; s < 5; s++ {
			topic := dummyTopics[rng.Intn(len(dummyTopics))]
			other := dummyTopics[rng.Intn(len(dummyTopics))]
			fmt.Fprintf(&b, "The reviewer asked about %s and confirmed the current controls cover %s.\n", topic, other)
		}
	}
	return b.String()
}
