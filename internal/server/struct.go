package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/54b3r/ragchat-go/internal/answer"
	"github.com/54b3r/ragchat-go/internal/rag"
)

// Config holds the HTTP server configuration.
type Config struct {
	// Host is the address to bind to (default: 127.0.0.1).
	Host string
	// Port is the TCP port to listen on (default: 8080).
	Port int
	// ReadTimeout is the maximum duration for reading the request.
	ReadTimeout time.Duration
	// WriteTimeout is the maximum duration for writing the response.
	WriteTimeout time.Duration
	// ShutdownTimeout is the maximum duration for a graceful shutdown.
	ShutdownTimeout time.Duration
	// QueryTimeout bounds one /api/query request end to end, including the
	// embedding and generation round trips. Defaults to 2 minutes.
	QueryTimeout time.Duration
	// Logger is the structured logger used by the server and its handlers.
	// If nil, [logging.New] is used.
	Logger *slog.Logger
	// Pingers is the ordered list of dependency probes run by GET /api/ready.
	// If empty, /api/ready returns 200 with no checks (liveness-only mode).
	Pingers []Pinger
	// RateLimit is the sustained request rate allowed per IP on rate-limited
	// endpoints (requests/second). Defaults to 10 if zero.
	RateLimit float64
	// RateBurst is the maximum instantaneous burst per IP. Defaults to 20 if zero.
	RateBurst int
	// APIKey is the Bearer token required on all protected /api/* routes.
	// If empty, authentication is disabled (development mode).
	APIKey string
	// MetricsRegistry receives the server's Prometheus metric registrations.
	// Defaults to prometheus.DefaultRegisterer.
	MetricsRegistry prometheus.Registerer
	// MetricsGatherer backs GET /metrics. Defaults to prometheus.DefaultGatherer.
	MetricsGatherer prometheus.Gatherer
}

// asker is the interface handleQuery calls to answer a question.
// *answer.Engine satisfies it; tests inject a fake.
type asker interface {
	Ask(ctx context.Context, question string) (*answer.Response, error)
}

// Server is the HTTP server exposing the question-answering API.
type Server struct {
	// asker answers questions against the indexed collection.
	asker asker
	// cfg holds the resolved server configuration.
	cfg *Config
	// httpServer is the underlying net/http server.
	httpServer *http.Server
	// log is the structured logger for this server instance.
	log *slog.Logger
	// pingers is the ordered list of dependency probes for GET /api/ready.
	pingers []Pinger
	// metrics holds the Prometheus instruments owned by this server.
	metrics *serverMetrics
	// stopRL stops the rate limiter's background eviction goroutine on shutdown.
	stopRL func()
}

// queryRequest is the JSON body for POST /api/query.
type queryRequest struct {
	// Question is the user's natural language question.
	Question string `json:"question"`
}

// querySource describes one record the answer is grounded on.
type querySource struct {
	// ID is the record identifier.
	ID string `json:"id"`
	// Source is the originating file name.
	Source string `json:"source"`
	// Page is the 1-based page number within the source.
	Page int `json:"page"`
	// ClusterID is the record's cluster label, omitted when unclustered.
	ClusterID *int `json:"clusterId,omitempty"`
	// Relevance is 1 - distance, in [0, 1] for cosine distance.
	Relevance float32 `json:"relevance"`
}

// queryResponse is the JSON response for POST /api/query.
type queryResponse struct {
	// Answer is the generated text, or the no-relevant-information notice.
	Answer string `json:"answer"`
	// Sources lists the records the answer cites, in rank order.
	Sources []querySource `json:"sources"`
}

// newQuerySources converts scored records into their JSON form.
func newQuerySources(scored []rag.ScoredRecord) []querySource {
	out := make([]querySource, 0, len(scored))
	for _, s := range scored {
		src := querySource{
			ID:        s.Record.ID,
			Source:    s.Record.Metadata.Source,
			Page:      s.Record.Metadata.Page,
			Relevance: s.Relevance,
		}
		if s.Record.Metadata.Clustered() {
			id := s.Record.Metadata.ClusterID
			src.ClusterID = &id
		}
		out = append(out, src)
	}
	return out
}
