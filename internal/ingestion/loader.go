// Package ingestion implements the document indexing pipeline. It loads
// page-oriented text documents from a directory, embeds each page, and
// upserts the results into the vector store. This pipeline is invoked by
// the `ragchat ingest` CLI command.
package ingestion

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Page is one unit of ingestable text: the content of a single page of a
// source document, paired with the identity that makes its record ID stable
// across re-indexing.
type Page struct {
	// Source is the base name of the originating file.
	Source string
	// Number is the 1-based page number within the source.
	Number int
	// Text is the page content.
	Text string
}

// pageBreak separates pages inside a text document. Extraction tools such
// as pdftotext emit a form feed between pages.
const pageBreak = "\f"

// LoadDirectory reads every .txt file directly under dir and splits each
// into pages on form-feed boundaries. Blank pages are skipped. Files are
// processed in lexical order so repeated runs produce the same page
// sequence.
func LoadDirectory(dir string) ([]Page, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("ingestion: read directory %s: %w", dir, err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".txt") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	if len(names) == 0 {
		return nil, fmt.Errorf("ingestion: no .txt documents found in %s", dir)
	}

	var pages []Page
	for _, name := range names {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("ingestion: read %s: %w", name, err)
		}
		pages = append(pages, splitPages(name, string(data))...)
	}
	return pages, nil
}

// splitPages breaks a document body into non-blank pages. Page numbers
// count every page in the file, including blank ones, so a page keeps its
// printed number even when earlier pages are empty.
func splitPages(source, body string) []Page {
	var pages []Page
	for i, raw := range strings.Split(body, pageBreak) {
		text := strings.TrimSpace(raw)
		if text == "" {
			continue
		}
		pages = append(pages, Page{Source: source, Number: i + 1, Text: text})
	}
	return pages
}
