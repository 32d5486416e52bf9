package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/kirillkom/domain-router/internal/core/domain"
)

func scrape(t *testing.T, h http.Handler) string {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	if err != nil {
		t.Fatalf("read metrics: %v", err)
	}
	return string(body)
}

func TestHTTPServerMetricsRecordsQueryAndRoutes(t *testing.T) {
	m := NewHTTPServerMetrics("router-api")

	handler := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/v1/sources/abc", nil))

	m.RecordQuery("query", "clinical", domain.QueryResult{
		Domain:    domain.DomainClinical,
		Outcome:   domain.OutcomeAnswered,
		Escalated: true,
		Sources:   []domain.ScoredResult{{Content: "x"}},
	}, 20*time.Millisecond)
	m.RecordClassification(domain.ClassificationResult{Domain: domain.DomainGeneral, Route: domain.RouteKeyword})
	m.RecordSearch("", []domain.ScoredResult{domain.NoResults()})
	m.RetryAttempt("ollama.generate")
	m.BreakerStateChanged("ollama.generate", "open")

	out := scrape(t, m.Handler())
	for _, want := range []string{
		`router_http_requests_total{method="GET",path="/v1/sources/{source_id}",service="router-api",status="404"} 1`,
		`router_query_total{agent="clinical",domain="clinical",outcome="answered",service="router-api"} 1`,
		`router_query_escalated_total{domain="clinical",service="router-api"} 1`,
		`router_classifier_decisions_total{domain="general",route="keyword",service="router-api"} 1`,
		`router_search_no_results_total{domain="all",service="router-api"} 1`,
		`router_resilience_retries_total{operation="ollama.generate",service="router-api"} 1`,
		`router_resilience_breaker_state{operation="ollama.generate",service="router-api",state="open"} 1`,
		`router_resilience_breaker_state{operation="ollama.generate",service="router-api",state="closed"} 0`,
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected metrics output to contain %q\n%s", want, out)
		}
	}
}

func TestNormalizePath(t *testing.T) {
	tests := map[string]string{
		"/v1/domains/clinical/sources": "/v1/domains/{domain}/sources",
		"/v1/conversations/c-1":        "/v1/conversations/{conversation_id}",
		"/v1/domains":                  "/v1/domains",
		"/v1/query":                    "/v1/query",
	}
	for in, want := range tests {
		if got := normalizePath(in); got != want {
			t.Fatalf("normalizePath(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestWorkerMetricsTracksSources(t *testing.T) {
	m := NewWorkerMetrics("router-worker")
	m.StartSource()
	m.FinishSource(time.Second, nil)
	m.StartSource()
	m.FinishSource(time.Second, domain.WrapError(domain.ErrTemporary, "embed", errors.New("ollama down")))

	out := scrape(t, m.Handler())
	if !strings.Contains(out, `router_worker_source_process_total{result="success",service="router-worker"} 1`) {
		t.Fatalf("missing success counter:\n%s", out)
	}
	if !strings.Contains(out, `router_worker_source_process_total{result="temporary",service="router-worker"} 1`) {
		t.Fatalf("missing temporary counter:\n%s", out)
	}
	if !strings.Contains(out, `router_worker_source_process_in_flight{service="router-worker"} 0`) {
		t.Fatalf("missing in-flight gauge:\n%s", out)
	}
}
