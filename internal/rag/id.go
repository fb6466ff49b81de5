package rag

import "fmt"

// RecordID derives the canonical record identifier from a source file name
// and a 1-based page number. The derivation is deterministic so re-indexing
// the same (source, page) pair upserts the existing record instead of
// creating a duplicate.
func RecordID(source string, page int) string {
	return fmt.Sprintf("%s_p%d", source, page)
}
