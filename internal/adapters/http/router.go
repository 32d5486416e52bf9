package httpadapter

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/domain-router/internal/config"
	"github.com/kirillkom/domain-router/internal/core/domain"
	"github.com/kirillkom/domain-router/internal/core/ports"
	"github.com/kirillkom/domain-router/internal/observability/metrics"
)

const (
	welcomeMessage = "Welcome to the domain router API"
	maxUploadBytes = 64 << 20
	maxJSONBytes   = 1 << 20
)

// Services groups the inbound ports served over HTTP. Uploader and Sources
// are nil when ingestion is disabled.
type Services struct {
	Classifier ports.QueryClassifier
	Searcher   ports.KnowledgeSearcher
	Chat       ports.ChatService
	Uploader   ports.SourceUploader
	Sources    ports.SourceReader
	Store      ports.DocumentStore
	Catalog    []domain.DomainDescriptor
}

type Router struct {
	cfg     config.Config
	svc     Services
	metrics *metrics.HTTPServerMetrics
}

func NewRouter(cfg config.Config, svc Services, m *metrics.HTTPServerMetrics) *Router {
	return &Router{
		cfg:     cfg,
		svc:     svc,
		metrics: m,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", rt.root)
	mux.HandleFunc("GET /healthz", rt.healthz)
	mux.HandleFunc("GET /v1/domains", rt.listDomains)
	mux.HandleFunc("POST /v1/query", rt.query)
	mux.HandleFunc("POST /v1/search", rt.search)
	mux.HandleFunc("POST /v1/classify", rt.classify)
	mux.HandleFunc("POST /v1/domains/{domain}/sources", rt.uploadSource)
	mux.HandleFunc("GET /v1/sources/{id}", rt.getSource)
	mux.HandleFunc("GET /v1/conversations/{id}", rt.getConversation)
	if rt.metrics != nil {
		mux.Handle("GET /metrics", rt.metrics.Handler())
	}

	var onReject func(string)
	if rt.metrics != nil {
		onReject = rt.metrics.RecordRejected
	}

	var handler http.Handler = mux
	handler = backpressureMiddleware(handler, rt.cfg.APIMaxInFlight, 50*time.Millisecond, onReject)
	handler = rateLimitMiddleware(handler, rt.cfg.APIRateLimitRPS, rt.cfg.APIRateLimitBurst, onReject)
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(handler)
	}
	handler = accessLogMiddleware(handler)
	return requestIDMiddleware(handler)
}

func (rt *Router) root(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": welcomeMessage})
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	collections := []string{}
	if rt.svc.Store != nil {
		collections = rt.svc.Store.Domains()
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":               "healthy",
		"document_collections": collections,
	})
}

type domainView struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Keywords    []string `json:"keywords"`
	Override    bool     `json:"keyword_override"`
	Sources     []string `json:"sources"`
	ChunkCount  int      `json:"chunk_count"`
}

func (rt *Router) listDomains(w http.ResponseWriter, _ *http.Request) {
	out := make([]domainView, 0, len(rt.svc.Catalog))
	for _, d := range rt.svc.Catalog {
		view := domainView{
			Name:        d.Name,
			Description: d.Description,
			Keywords:    nonNil(d.Keywords),
			Override:    d.IsOverride(),
			Sources:     nonNil(d.Sources),
		}
		if rt.svc.Store != nil {
			chunks, _ := rt.svc.Store.Load(d.Name)
			view.ChunkCount = len(chunks)
		}
		out = append(out, view)
	}
	writeJSON(w, http.StatusOK, map[string]any{"domains": out})
}

func (rt *Router) query(w http.ResponseWriter, r *http.Request) {
	var req domain.QueryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeError(w, r, invalidInput("query", "query is required"))
		return
	}

	start := time.Now()
	resp, err := rt.svc.Chat.Handle(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if rt.metrics != nil {
		rt.metrics.RecordQuery("query", string(resp.AgentUsed), resp.QueryResult, time.Since(start))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (rt *Router) search(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Query  string `json:"query"`
		Domain string `json:"domain"`
		TopK   int    `json:"top_k"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeError(w, r, invalidInput("search", "query is required"))
		return
	}
	if req.TopK < 0 {
		writeError(w, r, invalidInput("search", "top_k must not be negative"))
		return
	}
	if req.TopK == 0 {
		req.TopK = rt.cfg.RAGTopK
	}

	results, err := rt.svc.Searcher.Search(r.Context(), req.Query, strings.TrimSpace(req.Domain), req.TopK)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if rt.metrics != nil {
		rt.metrics.RecordSearch(req.Domain, results)
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": results})
}

func (rt *Router) classify(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Query string `json:"query"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeError(w, r, invalidInput("classify", "query is required"))
		return
	}

	res, err := rt.svc.Classifier.Classify(r.Context(), req.Query)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (rt *Router) uploadSource(w http.ResponseWriter, r *http.Request) {
	if rt.svc.Uploader == nil {
		writeError(w, r, domain.WrapError(domain.ErrUnavailable, "upload source", errors.New("ingestion is disabled")))
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	file, fileHeader, err := r.FormFile("file")
	if err != nil {
		writeError(w, r, invalidInput("upload source", "multipart field 'file' is required"))
		return
	}
	defer file.Close()

	src, err := rt.svc.Uploader.Upload(r.Context(), r.PathValue("domain"), fileHeader.Filename, file)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, src)
}

func (rt *Router) getSource(w http.ResponseWriter, r *http.Request) {
	if rt.svc.Sources == nil {
		writeError(w, r, domain.WrapError(domain.ErrUnavailable, "get source", errors.New("ingestion is disabled")))
		return
	}
	src, err := rt.svc.Sources.GetByID(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, src)
}

func (rt *Router) getConversation(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	turns, err := rt.svc.Chat.History(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"conversation_id": id,
		"turns":           turns,
	})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, out any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBytes)
	if err := json.NewDecoder(r.Body).Decode(out); err != nil {
		return domain.WrapError(domain.ErrInvalidInput, "decode request", err)
	}
	return nil
}

func invalidInput(op, msg string) error {
	return domain.WrapError(domain.ErrInvalidInput, op, errors.New(msg))
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := mapErrorToHTTPStatus(err)
	if status >= http.StatusInternalServerError {
		slog.Error("http_request_failed",
			"request_id", requestIDFromContext(r.Context()),
			"path", r.URL.Path,
			"error", err,
		)
	}
	writeJSON(w, status, map[string]string{
		"error":      err.Error(),
		"request_id": requestIDFromContext(r.Context()),
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Warn("http_response_encode_failed", "error", err)
	}
}

func nonNil(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}
