package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/54b3r/ragchat-go/internal/logging"
	"github.com/54b3r/ragchat-go/internal/rag"
)

// handleQuery handles POST /api/query. It runs the full retrieve → assemble
// → generate pipeline for one question and returns the grounded answer with
// its cited sources.
func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())
	start := time.Now()

	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	req.Question = strings.TrimSpace(req.Question)
	if req.Question == "" {
		http.Error(w, "question is required", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.QueryTimeout)
	defer cancel()

	s.metrics.queryInFlight.Inc()
	resp, err := s.asker.Ask(ctx, req.Question)
	s.metrics.queryInFlight.Dec()

	if err != nil {
		outcome, status, msg := classifyQueryError(err)
		s.observeQuery(outcome, start)
		log.Error("query failed",
			slog.String("outcome", outcome),
			slog.Any("error", err),
		)
		if status == http.StatusTooManyRequests {
			w.Header().Set("Retry-After", "30")
		}
		http.Error(w, msg, status)
		return
	}

	outcome := "ok"
	if len(resp.Sources) == 0 {
		outcome = "no_results"
	}
	s.observeQuery(outcome, start)

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(queryResponse{
		Answer:  resp.Answer,
		Sources: newQuerySources(resp.Sources),
	}); err != nil {
		log.Error("query encode error", slog.Any("error", err))
	}
}

// observeQuery records the counter and latency for one completed request.
func (s *Server) observeQuery(outcome string, start time.Time) {
	s.metrics.queryRequestsTotal.WithLabelValues(outcome).Inc()
	s.metrics.queryDurationSeconds.WithLabelValues(outcome).Observe(time.Since(start).Seconds())
}

// classifyQueryError maps pipeline failures to a metrics outcome, an HTTP
// status, and a client-safe message.
func classifyQueryError(err error) (outcome string, status int, msg string) {
	switch {
	case errors.Is(err, rag.ErrEmptyCollection):
		return "empty_collection", http.StatusConflict,
			"the collection is empty — ingest documents first"
	case errors.Is(err, rag.ErrRateLimited):
		return "rate_limited", http.StatusTooManyRequests,
			"the model provider is rate limiting requests — retry shortly"
	case errors.Is(err, rag.ErrQuotaExceeded):
		return "quota_exceeded", http.StatusServiceUnavailable,
			"the model provider quota is exhausted"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout", http.StatusGatewayTimeout,
			"the query timed out"
	default:
		return "error", http.StatusInternalServerError,
			"internal error answering the question"
	}
}
