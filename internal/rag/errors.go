package rag

import (
	"errors"
	"fmt"
	"strings"
)

// Vector store integrity errors. All are fatal to the calling operation and
// are never swallowed by the pipeline.
var (
	// ErrDimensionMismatch is returned when an embedding's length differs
	// from the collection's established dimensionality.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrEmptyBatch is returned when Insert is called with no records.
	ErrEmptyBatch = errors.New("empty record batch")

	// ErrEmptyCollection is returned when Query is issued against a
	// collection that holds zero records. It is a hard failure of an
	// unpopulated store, distinct from a query whose every candidate fell
	// below the relevance threshold.
	ErrEmptyCollection = errors.New("collection is empty")

	// ErrIDNotFound is returned when UpdateMetadata names an id that is not
	// present in the collection.
	ErrIDNotFound = errors.New("record id not found")
)

// ErrInsufficientData is reported by the cluster assigner when fewer than two
// vectors are available. It is informational, not fatal: callers proceed
// without cluster labels.
var ErrInsufficientData = errors.New("insufficient data for clustering")

// External-capability failure kinds. ErrRateLimited is transient and may be
// retried by the caller with backoff; the others propagate to the user as a
// visible, explained failure.
var (
	// ErrRateLimited marks a transient rate-limit rejection from a provider.
	ErrRateLimited = errors.New("provider rate limited")

	// ErrQuotaExceeded marks an exhausted quota that requires operator
	// intervention before retrying.
	ErrQuotaExceeded = errors.New("provider quota exceeded")
)

// ClassifyProviderErr inspects a transport error from an embedding or
// generation backend and returns the typed kind (ErrRateLimited,
// ErrQuotaExceeded) or nil for other failures. Message inspection is
// confined to the capability boundaries that call this; everything above
// them switches on the typed kind via errors.Is.
func ClassifyProviderErr(err error) error {
	if err == nil {
		return nil
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "429") || strings.Contains(msg, "resource_exhausted") ||
		strings.Contains(msg, "rate limit") || strings.Contains(msg, "too many requests"):
		return ErrRateLimited
	case strings.Contains(msg, "quota"):
		return ErrQuotaExceeded
	default:
		return nil
	}
}

// ProviderError wraps a failure from an external capability (embedding or
// generation) with the provider name and an optional typed kind. Callers
// switch on the kind via errors.Is(err, ErrRateLimited) etc. rather than
// matching message text.
type ProviderError struct {
	// Provider names the failing backend (e.g. "gemini", "ollama").
	Provider string

	// Kind is ErrRateLimited, ErrQuotaExceeded, or nil for other failures.
	Kind error

	// Err is the underlying cause.
	Err error
}

// Error implements the error interface.
func (e *ProviderError) Error() string {
	if e.Kind != nil {
		return fmt.Sprintf("%s: %v: %v", e.Provider, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Provider, e.Err)
}

// Unwrap exposes the underlying cause to errors.Is / errors.As.
func (e *ProviderError) Unwrap() error {
	return e.Err
}

// Is reports whether target matches this error's kind. This lets
// errors.Is(err, ErrRateLimited) work without callers knowing the concrete
// wrapper type.
func (e *ProviderError) Is(target error) bool {
	return e.Kind != nil && errors.Is(e.Kind, target)
}
