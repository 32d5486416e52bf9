package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/domain-router/internal/core/domain"
	"github.com/kirillkom/domain-router/internal/infrastructure/resilience"
)

const scrollPageSize = 256

// Client persists built chunks as Qdrant points, one point per chunk,
// keyed deterministically by (domain, source, chunk_id).
type Client struct {
	baseURL    string
	collection string
	httpClient *http.Client
	executor   *resilience.Executor

	ensureMu          sync.Mutex
	ensuredCollection bool
	ensuredVectorSize int
}

type Option func(*Client)

// WithExecutor routes every Qdrant call through retries and a breaker.
func WithExecutor(e *resilience.Executor) Option {
	return func(c *Client) {
		c.executor = e
	}
}

func New(baseURL, collection string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		collection: collection,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type point struct {
	ID      string         `json:"id"`
	Vector  []float32      `json:"vector"`
	Payload map[string]any `json:"payload"`
}

func (c *Client) Persist(ctx context.Context, domainName, source string, chunks []domain.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	if err := c.ensureCollection(ctx, len(chunks[0].Embedding)); err != nil {
		return err
	}

	if err := c.do(ctx, http.MethodPost, "/points/delete?wait=true", map[string]any{
		"filter": sourceFilter(domainName, source),
	}, nil, "delete"); err != nil {
		return err
	}

	points := make([]point, 0, len(chunks))
	for _, chunk := range chunks {
		points = append(points, point{
			ID:     pointID(domainName, source, chunk.Metadata.ChunkID),
			Vector: chunk.Embedding,
			Payload: map[string]any{
				"domain":     domainName,
				"source_key": source,
				"source":     chunk.Metadata.Source,
				"chunk_id":   chunk.Metadata.ChunkID,
				"content":    chunk.Content,
			},
		})
	}
	return c.do(ctx, http.MethodPut, "/points?wait=true", map[string]any{"points": points}, nil, "upsert")
}

func (c *Client) Load(ctx context.Context, domainName, source string) ([]domain.Chunk, bool, error) {
	type scrollResponse struct {
		Result struct {
			Points []struct {
				Vector  []float32      `json:"vector"`
				Payload map[string]any `json:"payload"`
			} `json:"points"`
			NextPageOffset any `json:"next_page_offset"`
		} `json:"result"`
	}

	chunks := make([]domain.Chunk, 0)
	var offset any
	for {
		body := map[string]any{
			"filter":       sourceFilter(domainName, source),
			"limit":        scrollPageSize,
			"with_payload": true,
			"with_vector":  true,
		}
		if offset != nil {
			body["offset"] = offset
		}

		var resp scrollResponse
		err := c.do(ctx, http.MethodPost, "/points/scroll", body, &resp, "scroll")
		if isNotFound(err) {
			return nil, false, nil
		}
		if err != nil {
			return nil, false, err
		}

		for _, p := range resp.Result.Points {
			chunks = append(chunks, domain.Chunk{
				Content:   getStringPayload(p.Payload, "content"),
				Embedding: p.Vector,
				Metadata: domain.ChunkMetadata{
					Source:  getStringPayload(p.Payload, "source"),
					ChunkID: getIntPayload(p.Payload, "chunk_id"),
					Domain:  domainName,
				},
			})
		}
		if resp.Result.NextPageOffset == nil || len(resp.Result.Points) == 0 {
			break
		}
		offset = resp.Result.NextPageOffset
	}

	if len(chunks) == 0 {
		return nil, false, nil
	}
	sort.Slice(chunks, func(i, j int) bool {
		return chunks[i].Metadata.ChunkID < chunks[j].Metadata.ChunkID
	})
	return chunks, true, nil
}

func (c *Client) ensureCollection(ctx context.Context, vectorSize int) error {
	c.ensureMu.Lock()
	if c.ensuredCollection && c.ensuredVectorSize == vectorSize {
		c.ensureMu.Unlock()
		return nil
	}
	c.ensureMu.Unlock()

	err := c.do(ctx, http.MethodPut, "", map[string]any{
		"vectors": map[string]any{
			"size":     vectorSize,
			"distance": "Cosine",
		},
	}, nil, "ensure collection")
	// 409 if it already exists (depends on version/config).
	if err != nil && !isStatus(err, http.StatusConflict) {
		return err
	}

	c.ensureMu.Lock()
	defer c.ensureMu.Unlock()
	c.ensuredCollection = true
	c.ensuredVectorSize = vectorSize
	return nil
}

type statusError struct {
	operation  string
	statusCode int
	status     string
	body       string
}

func (e *statusError) Error() string {
	if e.body == "" {
		return fmt.Sprintf("qdrant %s status: %s", e.operation, e.status)
	}
	return fmt.Sprintf("qdrant %s status: %s: %s", e.operation, e.status, e.body)
}

func isStatus(err error, code int) bool {
	var se *statusError
	return errors.As(err, &se) && se.statusCode == code
}

func isNotFound(err error) bool {
	return isStatus(err, http.StatusNotFound)
}

func (c *Client) do(ctx context.Context, method, path string, payload any, out any, operation string) error {
	if c.executor == nil {
		return c.send(ctx, method, path, payload, out, operation)
	}
	return c.executor.Execute(ctx, "qdrant."+operation, func(ctx context.Context) error {
		return c.send(ctx, method, path, payload, out, operation)
	}, classifyQdrantError)
}

// classifyQdrantError retries transport failures and 5xx/429 replies. Other
// statuses, 404 included, are answers and never count against the breaker.
func classifyQdrantError(err error) resilience.ErrorClassification {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return resilience.ErrorClassification{}
	}
	var se *statusError
	if errors.As(err, &se) {
		transient := se.statusCode >= 500 || se.statusCode == http.StatusTooManyRequests
		return resilience.ErrorClassification{Retryable: transient, RecordFailure: transient}
	}
	return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
}

func (c *Client) send(ctx context.Context, method, path string, payload any, out any, operation string) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s body: %w", operation, err)
	}

	url := fmt.Sprintf("%s/collections/%s%s", c.baseURL, c.collection, path)
	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create %s request: %w", operation, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("qdrant %s request: %w", operation, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return &statusError{
			operation:  operation,
			statusCode: resp.StatusCode,
			status:     resp.Status,
			body:       strings.TrimSpace(string(raw)),
		}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", operation, err)
	}
	return nil
}

func sourceFilter(domainName, source string) map[string]any {
	return map[string]any{
		"must": []map[string]any{
			{"key": "domain", "match": map[string]any{"value": domainName}},
			{"key": "source_key", "match": map[string]any{"value": source}},
		},
	}
}

func pointID(domainName, source string, chunkID int) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(fmt.Sprintf("%s/%s#%d", domainName, source, chunkID))).String()
}

func getStringPayload(payload map[string]any, key string) string {
	v, ok := payload[key]
	if !ok {
		return ""
	}
	s, ok := v.(string)
	if ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

func getIntPayload(payload map[string]any, key string) int {
	switch v := payload[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	default:
		return 0
	}
}
