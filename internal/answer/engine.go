// Package answer orchestrates the query path end to end: retrieve, assemble
// context, and generate a grounded response.
package answer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/54b3r/ragchat-go/internal/rag"
	"github.com/54b3r/ragchat-go/internal/retrieval"
)

// NoRelevantInformation is the user-visible response when every candidate
// falls below the relevance threshold. It is an answer, not an error: an
// empty retrieval is a normal outcome of threshold filtering.
const NoRelevantInformation = "No relevant information available in the indexed documents for this question."

// rateLimitBackoff is how long the engine waits before its single retry
// after a rate-limited generation attempt.
const rateLimitBackoff = 2 * time.Second

// Response is the outcome of one question.
type Response struct {
	// Answer is the generated text, or NoRelevantInformation when
	// retrieval found nothing above the threshold.
	Answer string
	// Sources are the records the answer is grounded on, in rank order.
	// Empty when Answer is NoRelevantInformation.
	Sources []rag.ScoredRecord
	// Candidates are every retrieval hit before threshold filtering, in
	// rank order. Populated even when nothing survived, so callers can
	// show why a question produced no sources.
	Candidates []rag.ScoredRecord
}

// Engine answers questions against an indexed collection.
type Engine struct {
	retriever *retrieval.Retriever
	generator rag.Generator
	log       *slog.Logger
	backoff   time.Duration
}

// NewEngine constructs an Engine. All three dependencies are required
// except log, which falls back to slog.Default.
func NewEngine(retriever *retrieval.Retriever, generator rag.Generator, log *slog.Logger) (*Engine, error) {
	if retriever == nil {
		return nil, fmt.Errorf("answer: retriever is required")
	}
	if generator == nil {
		return nil, fmt.Errorf("answer: generator is required")
	}
	if log == nil {
		log = slog.Default()
	}
	return &Engine{
		retriever: retriever,
		generator: generator,
		log:       log,
		backoff:   rateLimitBackoff,
	}, nil
}

// Ask retrieves context for the question and generates a grounded answer.
// A rate-limited generation attempt is retried once after a short backoff;
// all other provider failures propagate to the caller.
func (e *Engine) Ask(ctx context.Context, question string) (*Response, error) {
	result, err := e.retriever.Retrieve(ctx, question)
	if err != nil {
		return nil, err
	}
	if result.Empty() {
		e.log.InfoContext(ctx, "no results above relevance threshold", "question", question)
		return &Response{Answer: NoRelevantInformation, Candidates: result.Candidates}, nil
	}

	prompt := retrieval.BuildPrompt(retrieval.AssembleContext(result), question)

	text, err := e.generate(ctx, prompt)
	if err != nil {
		return nil, err
	}

	return &Response{Answer: text, Sources: result.Results, Candidates: result.Candidates}, nil
}

// Threshold returns the relevance floor the engine's retriever filters
// against, for callers that display per-candidate pass/fail diagnostics.
func (e *Engine) Threshold() float32 {
	return e.retriever.Threshold()
}

// generate calls the generator, retrying exactly once on a rate limit.
func (e *Engine) generate(ctx context.Context, prompt string) (string, error) {
	text, err := e.generator.Generate(ctx, prompt)
	if err == nil {
		return text, nil
	}
	if !errors.Is(err, rag.ErrRateLimited) {
		return "", err
	}

	e.log.WarnContext(ctx, "generation rate limited, retrying once", "backoff", e.backoff)
	select {
	case <-time.After(e.backoff):
	case <-ctx.Done():
		return "", ctx.Err()
	}

	return e.generator.Generate(ctx, prompt)
}
