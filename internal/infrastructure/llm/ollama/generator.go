package ollama

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/kirillkom/domain-router/internal/core/domain"
)

type GeneratorOptions struct {
	MaxTokens   int
	Temperature float64
}

type Generator struct {
	client *Client
	opts   GeneratorOptions
}

// NewGenerator checks that the generation model is installed.
func NewGenerator(ctx context.Context, client *Client, opts GeneratorOptions) (*Generator, error) {
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = 256
	}
	if opts.Temperature <= 0 {
		opts.Temperature = 0.7
	}
	if err := client.call(ctx, "/api/show", map[string]any{"model": client.genModel}, nil, "show"); err != nil {
		return nil, fmt.Errorf("probe generation model %s: %w", client.genModel, err)
	}
	slog.Info("generation_model_ready", "model", client.genModel)
	return &Generator{client: client, opts: opts}, nil
}

// Generate returns a refusal without calling the model when a specialised
// domain has no passages.
func (g *Generator) Generate(ctx context.Context, req domain.GenerationRequest) (domain.Generation, error) {
	if !hasContent(req.Passages) && req.Domain != "" && req.Domain != domain.DomainGeneral {
		return domain.Refused("no context passages"), nil
	}

	payload := map[string]any{
		"model":  g.client.genModel,
		"prompt": buildAnswerPrompt(req.Query, req.Passages),
		"stream": false,
		"options": map[string]any{
			"num_predict": g.opts.MaxTokens,
			"temperature": g.opts.Temperature,
		},
	}
	var response struct {
		Response string `json:"response"`
	}
	if err := g.client.call(ctx, "/api/generate", payload, &response, "generate"); err != nil {
		return domain.Generation{}, err
	}
	text := strings.TrimSpace(response.Response)
	if text == "" {
		return domain.Generation{}, errors.New("empty generation")
	}
	return domain.Answered(text), nil
}

func hasContent(passages []domain.Passage) bool {
	for _, p := range passages {
		if strings.TrimSpace(p.Content) != "" {
			return true
		}
	}
	return false
}
