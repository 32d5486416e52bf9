package ollama

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/domain-router/internal/infrastructure/resilience"
)

type Options struct {
	BaseURL         string
	GenerationModel string
	EmbeddingModel  string
	Timeout         time.Duration
	Executor        *resilience.Executor
}

type Client struct {
	baseURL    string
	genModel   string
	embedModel string
	httpClient *http.Client
	executor   *resilience.Executor
}

func New(opts Options) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	executor := opts.Executor
	if executor == nil {
		executor = resilience.NewExecutor(resilience.DefaultConfig())
	}
	return &Client{
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		genModel:   opts.GenerationModel,
		embedModel: opts.EmbeddingModel,
		httpClient: &http.Client{Timeout: timeout},
		executor:   executor,
	}
}

// call runs one Ollama request under retry and circuit breaking.
func (c *Client) call(ctx context.Context, path string, payload any, out any, operation string) error {
	err := c.executor.Execute(ctx, "ollama."+operation, func(ctx context.Context) error {
		return c.postJSON(ctx, path, payload, out, operation)
	}, classifyOllamaError)
	return toDomainError("ollama "+operation, err)
}
