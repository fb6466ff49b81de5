// Package rag defines the data model and capability interfaces for the
// retrieval-augmented generation pipeline: vector storage, clustering,
// embedding, and answer generation. Concrete implementations (SQLite, Qdrant,
// Gemini, etc.) satisfy these interfaces so the pipeline never depends on a
// specific backend.
package rag

import (
	"context"
)

// ClusterUnassigned is the ClusterID value of a record that has never been
// through a clustering pass.
const ClusterUnassigned = -1

// Metadata describes the provenance of a record plus its cluster label.
type Metadata struct {
	// Source is the origin file name of the record.
	Source string

	// Page is the 1-based page number within the source.
	Page int

	// ClusterID is the cluster label assigned by the last clustering pass,
	// or ClusterUnassigned if the record has never been clustered.
	ClusterID int
}

// Clustered reports whether a clustering pass has labeled this record.
func (m Metadata) Clustered() bool {
	return m.ClusterID >= 0
}

// Record is one indexed unit of text: its identity, content, embedding,
// and provenance metadata.
type Record struct {
	// ID is the unique identifier within a collection, derived
	// deterministically from (source, page) so re-indexing the same page
	// overwrites rather than duplicates. See RecordID.
	ID string

	// Text is the content that was embedded and is shown at answer time.
	Text string

	// Embedding is the record's dense vector. All records in a collection
	// share one dimensionality, fixed by the first insert.
	Embedding []float32

	// Metadata holds the record's source, page, and cluster label.
	Metadata Metadata
}

// ScoredRecord is one retrieval hit: the record plus its distance to the
// query embedding and the derived relevance score (1 - distance).
type ScoredRecord struct {
	Record    Record
	Distance  float32
	Relevance float32
}

// RetrievalResult is the ranked, relevance-filtered outcome of one query.
// An empty Results slice is a normal outcome meaning "no relevant material";
// it is not an error.
type RetrievalResult struct {
	// Results are the surviving hits, ordered by ascending distance.
	Results []ScoredRecord

	// Candidates are every hit the store returned, before threshold
	// filtering, in the same ascending-distance order. They let callers
	// show why a question produced no results: each candidate's relevance
	// can be compared against the threshold that rejected it.
	Candidates []ScoredRecord
}

// Empty reports whether the query produced no relevant results.
func (r RetrievalResult) Empty() bool {
	return len(r.Results) == 0
}

// ClusterAssignment is the ephemeral result of one clustering run: explicit
// id→label pairs plus the realized cluster count. Labels are bound to record
// identity, never to positional order.
type ClusterAssignment struct {
	// Labels maps record ID to its assigned cluster label.
	Labels map[string]int

	// KActual is the realized cluster count, min(kRequested, len(vectors)).
	KActual int
}

// Intent distinguishes document-time from query-time embedding. Some
// embedding models encode "things to be found" differently from "things
// searching", so both sides of a collection must be produced by one provider
// parameterized by intent.
type Intent string

const (
	// IntentDocument marks text that is being indexed.
	IntentDocument Intent = "document"
	// IntentQuery marks text that is being used as a search query.
	IntentQuery Intent = "query"
)

// Embedder is the interface for converting text into dense vector
// embeddings. Implementations must be safe to call from multiple goroutines.
type Embedder interface {
	// Embed converts a batch of texts into their corresponding embeddings.
	// The returned slice is parallel to the input slice. The intent selects
	// document-time vs query-time encoding.
	Embed(ctx context.Context, texts []string, intent Intent) ([][]float32, error)
}

// VectorStore is the persistent collection of records. Implementations
// persist every mutation durably before returning. Insert and Query are safe
// to issue back-to-back without coordination; concurrent clustering runs
// against the same collection must be serialized by the caller because
// UpdateMetadata performs a read-modify-write over the record set.
type VectorStore interface {
	// Insert upserts a batch of records by ID (last write wins). It fails
	// with ErrEmptyBatch for an empty batch and ErrDimensionMismatch if any
	// embedding's length differs from the collection's established
	// dimensionality. The batch is atomic: a failure leaves the collection
	// unchanged.
	Insert(ctx context.Context, records []Record) error

	// GetAll returns every stored record. Two consecutive calls with no
	// intervening write return records in the same relative order.
	GetAll(ctx context.Context) ([]Record, error)

	// Query returns up to topN nearest records by ascending distance to the
	// query embedding, ties broken by insertion order. It fails with
	// ErrEmptyCollection if the store holds zero records.
	Query(ctx context.Context, embedding []float32, topN int) ([]ScoredRecord, error)

	// UpdateMetadata replaces the metadata of each identified record.
	// It fails with ErrIDNotFound if any id is absent, in which case no
	// record's metadata is modified.
	UpdateMetadata(ctx context.Context, updates map[string]Metadata) error

	// Count returns the number of records currently stored.
	Count(ctx context.Context) (int, error)

	// Close releases any resources held by the store.
	Close() error
}

// Generator is the interface for the answer-generating model. It consumes
// the assembled context + question prompt and returns natural-language text.
// Failures carry a typed kind (see ProviderError) so callers can switch on
// errors.Is rather than parsing message text; ErrRateLimited is the only
// kind a caller should retry.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}
