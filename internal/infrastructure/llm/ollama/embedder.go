package ollama

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/kirillkom/domain-router/internal/core/vectors"
)

const (
	defaultEmbedBatchSize = 8
	defaultQueryPrefix    = "query: "
	defaultPassagePrefix  = "passage: "
)

type EmbedderOptions struct {
	BatchSize     int
	QueryPrefix   string
	PassagePrefix string
}

// Embedder encodes queries and passages with distinct instruction prefixes
// and returns unit-length vectors.
type Embedder struct {
	client        *Client
	batchSize     int
	queryPrefix   string
	passagePrefix string
	dimension     int
}

// NewEmbedder probes the embedding model once so an unavailable model
// fails startup instead of the first query.
func NewEmbedder(ctx context.Context, client *Client, opts EmbedderOptions) (*Embedder, error) {
	if opts.BatchSize <= 0 {
		opts.BatchSize = defaultEmbedBatchSize
	}
	if opts.QueryPrefix == "" {
		opts.QueryPrefix = defaultQueryPrefix
	}
	if opts.PassagePrefix == "" {
		opts.PassagePrefix = defaultPassagePrefix
	}
	e := &Embedder{
		client:        client,
		batchSize:     opts.BatchSize,
		queryPrefix:   opts.QueryPrefix,
		passagePrefix: opts.PassagePrefix,
	}

	probe, err := e.embed(ctx, []string{e.queryPrefix + "probe"})
	if err != nil {
		return nil, fmt.Errorf("probe embedding model %s: %w", client.embedModel, err)
	}
	e.dimension = len(probe[0])
	slog.Info("embedding_model_ready", "model", client.embedModel, "dimension", e.dimension)
	return e, nil
}

func (e *Embedder) Dimension() int {
	return e.dimension
}

func (e *Embedder) EmbedPassages(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += e.batchSize {
		end := start + e.batchSize
		if end > len(texts) {
			end = len(texts)
		}
		batch := make([]string, 0, end-start)
		for _, text := range texts[start:end] {
			batch = append(batch, e.passagePrefix+text)
		}
		vecs, err := e.embed(ctx, batch)
		if err != nil {
			return nil, fmt.Errorf("embed passages [%d:%d]: %w", start, end, err)
		}
		out = append(out, vecs...)
	}
	return out, nil
}

func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.embed(ctx, []string{e.queryPrefix + text})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	return vecs[0], nil
}

func (e *Embedder) embed(ctx context.Context, inputs []string) ([][]float32, error) {
	request := map[string]any{
		"model": e.client.embedModel,
		"input": inputs,
	}

	var response struct {
		Embeddings [][]float32 `json:"embeddings"`
	}
	if err := e.client.call(ctx, "/api/embed", request, &response, "embed"); err != nil {
		return nil, err
	}
	if len(response.Embeddings) != len(inputs) {
		return nil, fmt.Errorf("embedding count mismatch: got %d for %d inputs", len(response.Embeddings), len(inputs))
	}
	for i, vec := range response.Embeddings {
		if len(vec) == 0 {
			return nil, fmt.Errorf("empty embedding at %d", i)
		}
		if e.dimension > 0 && len(vec) != e.dimension {
			return nil, fmt.Errorf("embedding dimension %d, expected %d", len(vec), e.dimension)
		}
		vectors.Normalize(vec)
	}
	return response.Embeddings, nil
}
