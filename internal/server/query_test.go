package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/54b3r/ragchat-go/internal/answer"
	"github.com/54b3r/ragchat-go/internal/rag"
)

// fakeAsker implements the asker interface for tests.
type fakeAsker struct {
	resp        *answer.Response
	err         error
	gotQuestion string
}

func (f *fakeAsker) Ask(_ context.Context, question string) (*answer.Response, error) {
	f.gotQuestion = question
	if f.err != nil {
		return nil, f.err
	}
	return f.resp, nil
}

// newTestServer builds a Server backed by a fresh isolated registry so tests
// do not pollute prometheus.DefaultRegisterer.
func newTestServer() *Server {
	reg := prometheus.NewRegistry()
	return &Server{
		asker: &fakeAsker{resp: &answer.Response{Answer: "ok"}},
		cfg: &Config{
			QueryTimeout:    time.Minute,
			MetricsRegistry: reg,
			MetricsGatherer: reg,
		},
		log:     slog.Default(),
		metrics: newServerMetrics(reg),
	}
}

func postQuery(t *testing.T, s *Server, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/query", strings.NewReader(body))
	w := httptest.NewRecorder()
	s.handleQuery(w, req)
	return w
}

func TestHandleQuery_GroundedAnswer(t *testing.T) {
	t.Parallel()

	clusterID := 2
	s := newTestServer()
	s.asker = &fakeAsker{resp: &answer.Response{
		Answer: "According to Document 1, retention is 90 days.",
		Sources: []rag.ScoredRecord{
			{
				Record: rag.Record{
					ID:       "audit.txt_p3",
					Text:     "Retention is 90 days.",
					Metadata: rag.Metadata{Source: "audit.txt", Page: 3, ClusterID: clusterID},
				},
				Distance:  0.1,
				Relevance: 0.9,
			},
		},
	}}

	w := postQuery(t, s, `{"question":"What is the retention policy?"}`)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d — body: %s", w.Code, w.Body.String())
	}

	var resp queryResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Answer != "According to Document 1, retention is 90 days." {
		t.Errorf("answer = %q", resp.Answer)
	}
	if len(resp.Sources) != 1 {
		t.Fatalf("expected 1 source, got %d", len(resp.Sources))
	}
	src := resp.Sources[0]
	if src.ID != "audit.txt_p3" || src.Source != "audit.txt" || src.Page != 3 {
		t.Errorf("source = %+v", src)
	}
	if src.ClusterID == nil || *src.ClusterID != clusterID {
		t.Errorf("clusterId = %v, want %d", src.ClusterID, clusterID)
	}
}

func TestHandleQuery_UnclusteredSourceOmitsClusterID(t *testing.T) {
	t.Parallel()

	s := newTestServer()
	s.asker = &fakeAsker{resp: &answer.Response{
		Answer: "answer",
		Sources: []rag.ScoredRecord{
			{
				Record: rag.Record{
					ID:       "doc.txt_p1",
					Metadata: rag.Metadata{Source: "doc.txt", Page: 1, ClusterID: rag.ClusterUnassigned},
				},
				Relevance: 0.5,
			},
		},
	}}

	w := postQuery(t, s, `{"question":"q"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if strings.Contains(w.Body.String(), "clusterId") {
		t.Errorf("unclustered source leaked a clusterId: %s", w.Body.String())
	}
}

func TestHandleQuery_MissingQuestion(t *testing.T) {
	t.Parallel()

	s := newTestServer()
	if w := postQuery(t, s, `{"question":"  "}`); w.Code != http.StatusBadRequest {
		t.Errorf("blank question: expected 400, got %d", w.Code)
	}
	if w := postQuery(t, s, `not json`); w.Code != http.StatusBadRequest {
		t.Errorf("malformed body: expected 400, got %d", w.Code)
	}
}

func TestHandleQuery_EmptyCollection(t *testing.T) {
	t.Parallel()

	s := newTestServer()
	s.asker = &fakeAsker{err: rag.ErrEmptyCollection}

	w := postQuery(t, s, `{"question":"q"}`)
	if w.Code != http.StatusConflict {
		t.Errorf("expected 409 for empty collection, got %d", w.Code)
	}
}

func TestHandleQuery_RateLimitedSetsRetryAfter(t *testing.T) {
	t.Parallel()

	s := newTestServer()
	s.asker = &fakeAsker{err: &rag.ProviderError{
		Provider: "gemini generator",
		Kind:     rag.ErrRateLimited,
		Err:      errors.New("429"),
	}}

	w := postQuery(t, s, `{"question":"q"}`)
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", w.Code)
	}
	if w.Header().Get("Retry-After") == "" {
		t.Error("expected Retry-After header")
	}
}

func TestHandleQuery_QuotaExceeded(t *testing.T) {
	t.Parallel()

	s := newTestServer()
	s.asker = &fakeAsker{err: &rag.ProviderError{
		Provider: "gemini generator",
		Kind:     rag.ErrQuotaExceeded,
		Err:      errors.New("quota"),
	}}

	if w := postQuery(t, s, `{"question":"q"}`); w.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503 for quota exhaustion, got %d", w.Code)
	}
}

func TestHandleQuery_NoRelevantResults(t *testing.T) {
	t.Parallel()

	s := newTestServer()
	s.asker = &fakeAsker{resp: &answer.Response{Answer: answer.NoRelevantInformation}}

	w := postQuery(t, s, `{"question":"q"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 for filtered-out results, got %d", w.Code)
	}

	var resp queryResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Answer != answer.NoRelevantInformation {
		t.Errorf("answer = %q", resp.Answer)
	}
	if len(resp.Sources) != 0 {
		t.Errorf("expected no sources, got %d", len(resp.Sources))
	}
}
