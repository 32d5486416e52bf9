package httpadapter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kirillkom/domain-router/internal/config"
	"github.com/kirillkom/domain-router/internal/core/domain"
	"github.com/kirillkom/domain-router/internal/observability/metrics"
)

type classifierFake struct {
	res domain.ClassificationResult
	err error
}

func (f classifierFake) Classify(context.Context, string) (domain.ClassificationResult, error) {
	return f.res, f.err
}

type searcherFake struct {
	gotDomain string
	gotTopK   int
	results   []domain.ScoredResult
}

func (f *searcherFake) Search(_ context.Context, _ string, domainName string, topK int) ([]domain.ScoredResult, error) {
	f.gotDomain = domainName
	f.gotTopK = topK
	return f.results, nil
}

type chatFake struct {
	gotReq  domain.QueryRequest
	resp    *domain.QueryResponse
	err     error
	history []domain.Turn
}

func (f *chatFake) Handle(_ context.Context, req domain.QueryRequest) (*domain.QueryResponse, error) {
	f.gotReq = req
	if f.err != nil {
		return nil, f.err
	}
	return f.resp, nil
}

func (f *chatFake) History(_ context.Context, id string) ([]domain.Turn, error) {
	if strings.TrimSpace(id) == "" || id == "missing" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "history", errors.New("bad id"))
	}
	return f.history, nil
}

type uploaderFake struct {
	gotDomain, gotName, gotBody string
	err                         error
}

func (f *uploaderFake) Upload(_ context.Context, domainName, filename string, body io.Reader) (*domain.Source, error) {
	if f.err != nil {
		return nil, f.err
	}
	raw, _ := io.ReadAll(body)
	f.gotDomain, f.gotName, f.gotBody = domainName, filename, string(raw)
	return &domain.Source{ID: "src-1", Domain: domainName, Filename: filename, Status: domain.SourceUploaded}, nil
}

type sourceReaderFake struct{}

func (sourceReaderFake) GetByID(_ context.Context, id string) (*domain.Source, error) {
	if id != "src-1" {
		return nil, domain.WrapError(domain.ErrNotFound, "get source", errors.New("id="+id))
	}
	return &domain.Source{ID: id, Status: domain.SourceReady, ChunkCount: 4}, nil
}

func testServices() Services {
	return Services{
		Classifier: classifierFake{res: domain.ClassificationResult{Domain: "clinical", Confidence: 0.8, Route: domain.RouteEmbedding}},
		Searcher:   &searcherFake{results: []domain.ScoredResult{domain.NoResults()}},
		Chat:       &chatFake{resp: &domain.QueryResponse{ConversationID: "c-1", AgentUsed: domain.AgentWeb}},
		Store: domain.NewCollections([]string{"clinical", "general"}, map[string][]domain.Chunk{
			"clinical": {{Content: "a"}, {Content: "b"}},
		}),
		Catalog: []domain.DomainDescriptor{
			{Name: "clinical", Description: "Medical topics", Sources: []string{"ctg-studies.pdf"}},
			{Name: "general", Description: "Everything", Keywords: []string{"ai"}, OverridePriority: 1},
		},
	}
}

func newTestHandler(cfg config.Config, svc Services) http.Handler {
	return NewRouter(cfg, svc, metrics.NewHTTPServerMetrics("test")).Handler()
}

func postJSON(t *testing.T, h http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	payload, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	res := httptest.NewRecorder()
	h.ServeHTTP(res, req)
	return res
}

func decodeBody(t *testing.T, res *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(res.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response: %v (%s)", err, res.Body.String())
	}
	return out
}

func TestRootAndHealth(t *testing.T) {
	h := newTestHandler(config.Config{}, testServices())

	res := httptest.NewRecorder()
	h.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/", nil))
	if res.Code != http.StatusOK || decodeBody(t, res)["message"] == nil {
		t.Fatalf("unexpected root response: %d %s", res.Code, res.Body.String())
	}

	res = httptest.NewRecorder()
	h.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	body := decodeBody(t, res)
	if body["status"] != "healthy" {
		t.Fatalf("unexpected health status: %v", body)
	}
	collections, _ := body["document_collections"].([]any)
	if len(collections) != 2 || collections[0] != "clinical" {
		t.Fatalf("unexpected collections: %v", body["document_collections"])
	}
}

func TestListDomainsReportsChunkCounts(t *testing.T) {
	h := newTestHandler(config.Config{}, testServices())
	res := httptest.NewRecorder()
	h.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/v1/domains", nil))

	var body struct {
		Domains []domainView `json:"domains"`
	}
	if err := json.Unmarshal(res.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Domains) != 2 {
		t.Fatalf("expected 2 domains, got %d", len(body.Domains))
	}
	if body.Domains[0].ChunkCount != 2 || body.Domains[1].ChunkCount != 0 {
		t.Fatalf("unexpected chunk counts: %+v", body.Domains)
	}
	if !body.Domains[1].Override || body.Domains[0].Override {
		t.Fatalf("unexpected override flags: %+v", body.Domains)
	}
}

func TestQueryPassesRequestToChat(t *testing.T) {
	svc := testServices()
	chat := &chatFake{resp: &domain.QueryResponse{
		QueryResult: domain.QueryResult{
			Response: "answer",
			Sources:  []domain.ScoredResult{},
			Domain:   "clinical",
			Outcome:  domain.OutcomeAnswered,
		},
		ConversationID: "c-9",
		AgentUsed:      domain.AgentClinical,
	}}
	svc.Chat = chat
	h := newTestHandler(config.Config{}, svc)

	res := postJSON(t, h, "/v1/query", map[string]any{
		"query":           "symptoms of flu",
		"conversation_id": "c-9",
		"agent_type":      "clinical",
	})
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}
	if chat.gotReq.Query != "symptoms of flu" || chat.gotReq.AgentType != "clinical" || chat.gotReq.ConversationID != "c-9" {
		t.Fatalf("unexpected forwarded request: %+v", chat.gotReq)
	}
	body := decodeBody(t, res)
	if body["response"] != "answer" || body["domain"] != "clinical" || body["agent_used"] != "clinical" {
		t.Fatalf("unexpected body: %v", body)
	}
	if sources, ok := body["sources"].([]any); !ok || len(sources) != 0 {
		t.Fatalf("expected empty sources array, got %v", body["sources"])
	}
}

func TestQueryRejectsBlankAndMalformed(t *testing.T) {
	h := newTestHandler(config.Config{}, testServices())

	if res := postJSON(t, h, "/v1/query", map[string]any{"query": "   "}); res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for blank query, got %d", res.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/v1/query", strings.NewReader("{"))
	res := httptest.NewRecorder()
	h.ServeHTTP(res, req)
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed json, got %d", res.Code)
	}
}

func TestQueryMapsErrorKinds(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{domain.WrapError(domain.ErrInvalidInput, "answer", errors.New("bad")), http.StatusBadRequest},
		{domain.WrapError(domain.ErrTemporary, "embed", errors.New("ollama down")), http.StatusServiceUnavailable},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		svc := testServices()
		svc.Chat = &chatFake{err: tc.err}
		res := postJSON(t, newTestHandler(config.Config{}, svc), "/v1/query", map[string]any{"query": "q"})
		if res.Code != tc.want {
			t.Fatalf("error %v: expected %d, got %d", tc.err, tc.want, res.Code)
		}
		if decodeBody(t, res)["request_id"] == "" {
			t.Fatalf("expected request id in error body")
		}
	}
}

func TestSearchDefaultsTopK(t *testing.T) {
	svc := testServices()
	searcher := &searcherFake{results: []domain.ScoredResult{domain.NoResults()}}
	svc.Searcher = searcher
	h := newTestHandler(config.Config{RAGTopK: 5}, svc)

	res := postJSON(t, h, "/v1/search", map[string]any{"query": "crop yields", "domain": " food_security "})
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if searcher.gotTopK != 5 || searcher.gotDomain != "food_security" {
		t.Fatalf("unexpected search args: domain=%q topK=%d", searcher.gotDomain, searcher.gotTopK)
	}
	results, _ := decodeBody(t, res)["results"].([]any)
	if len(results) != 1 {
		t.Fatalf("expected sentinel result, got %v", results)
	}

	if res := postJSON(t, h, "/v1/search", map[string]any{"query": "x", "top_k": -1}); res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for negative top_k, got %d", res.Code)
	}
}

func TestClassifyReturnsResult(t *testing.T) {
	h := newTestHandler(config.Config{}, testServices())
	res := postJSON(t, h, "/v1/classify", map[string]any{"query": "patient diagnosis"})
	body := decodeBody(t, res)
	if res.Code != http.StatusOK || body["domain"] != "clinical" || body["route"] != "embedding" {
		t.Fatalf("unexpected classify response: %d %v", res.Code, body)
	}
}

func multipartUpload(t *testing.T, path, filename, content string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	_, _ = part.Write([]byte(content))
	_ = mw.Close()
	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestUploadSource(t *testing.T) {
	svc := testServices()
	uploader := &uploaderFake{}
	svc.Uploader = uploader
	svc.Sources = sourceReaderFake{}
	h := newTestHandler(config.Config{}, svc)

	res := httptest.NewRecorder()
	h.ServeHTTP(res, multipartUpload(t, "/v1/domains/clinical/sources", "trial.txt", "body text"))
	if res.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", res.Code, res.Body.String())
	}
	if uploader.gotDomain != "clinical" || uploader.gotName != "trial.txt" || uploader.gotBody != "body text" {
		t.Fatalf("unexpected upload args: %+v", uploader)
	}

	res = httptest.NewRecorder()
	h.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/v1/sources/src-1", nil))
	if res.Code != http.StatusOK || decodeBody(t, res)["chunk_count"] != float64(4) {
		t.Fatalf("unexpected source status response: %d %s", res.Code, res.Body.String())
	}

	res = httptest.NewRecorder()
	h.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/v1/sources/missing", nil))
	if res.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", res.Code)
	}
}

func TestUploadSourceUnknownDomainIs400(t *testing.T) {
	svc := testServices()
	svc.Uploader = &uploaderFake{err: domain.WrapError(domain.ErrUnknownDomain, "upload", errors.New("legal"))}
	h := newTestHandler(config.Config{}, svc)

	res := httptest.NewRecorder()
	h.ServeHTTP(res, multipartUpload(t, "/v1/domains/legal/sources", "a.txt", "x"))
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}

func TestUploadDisabledIs501(t *testing.T) {
	h := newTestHandler(config.Config{}, testServices())
	res := httptest.NewRecorder()
	h.ServeHTTP(res, multipartUpload(t, "/v1/domains/clinical/sources", "a.txt", "x"))
	if res.Code != http.StatusNotImplemented {
		t.Fatalf("expected 501, got %d", res.Code)
	}
}

func TestConversationHistory(t *testing.T) {
	svc := testServices()
	svc.Chat = &chatFake{history: []domain.Turn{
		{Role: domain.RoleUser, Content: "hi"},
		{Role: domain.RoleAssistant, Content: "hello"},
	}}
	h := newTestHandler(config.Config{}, svc)

	res := httptest.NewRecorder()
	h.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/v1/conversations/c-1", nil))
	body := decodeBody(t, res)
	turns, _ := body["turns"].([]any)
	if res.Code != http.StatusOK || body["conversation_id"] != "c-1" || len(turns) != 2 {
		t.Fatalf("unexpected history response: %d %v", res.Code, body)
	}
}

func TestMetricsEndpointExposesQueryCounters(t *testing.T) {
	svc := testServices()
	svc.Chat = &chatFake{resp: &domain.QueryResponse{
		QueryResult: domain.QueryResult{Domain: "general", Outcome: domain.OutcomeAnswered},
		AgentUsed:   domain.AgentWeb,
	}}
	h := newTestHandler(config.Config{}, svc)
	postJSON(t, h, "/v1/query", map[string]any{"query": "what is ai"})

	res := httptest.NewRecorder()
	h.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if !strings.Contains(res.Body.String(), `router_query_total{agent="web",domain="general",outcome="answered",service="test"} 1`) {
		t.Fatalf("expected query counter in metrics output:\n%s", res.Body.String())
	}
}
