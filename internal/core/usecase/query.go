package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kirillkom/domain-router/internal/core/domain"
	"github.com/kirillkom/domain-router/internal/core/ports"
)

const (
	defaultQueryTopK         = 5
	defaultGeneralTopK       = 3
	defaultRelevanceFloor    = 0.4
	defaultContextPassages   = 3
	defaultGenerationTimeout = 60 * time.Second
)

type QueryOptions struct {
	TopK              int
	GeneralTopK       int
	RelevanceFloor    float64
	ContextPassages   int
	GenerationTimeout time.Duration
}

func (o QueryOptions) withDefaults() QueryOptions {
	if o.TopK <= 0 {
		o.TopK = defaultQueryTopK
	}
	if o.GeneralTopK <= 0 {
		o.GeneralTopK = defaultGeneralTopK
	}
	if o.RelevanceFloor <= 0 {
		o.RelevanceFloor = defaultRelevanceFloor
	}
	if o.ContextPassages <= 0 {
		o.ContextPassages = defaultContextPassages
	}
	if o.GenerationTimeout <= 0 {
		o.GenerationTimeout = defaultGenerationTimeout
	}
	return o
}

type QueryUseCase struct {
	classifier ports.QueryClassifier
	searcher   ports.KnowledgeSearcher
	generator  ports.AnswerGenerator
	opts       QueryOptions
}

func NewQueryUseCase(
	classifier ports.QueryClassifier,
	searcher ports.KnowledgeSearcher,
	generator ports.AnswerGenerator,
	opts QueryOptions,
) *QueryUseCase {
	return &QueryUseCase{
		classifier: classifier,
		searcher:   searcher,
		generator:  generator,
		opts:       opts.withDefaults(),
	}
}

func (uc *QueryUseCase) Answer(ctx context.Context, query string) (*domain.QueryResult, error) {
	cls, err := uc.classifier.Classify(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("classify query: %w", err)
	}
	return uc.AnswerInDomain(ctx, query, cls)
}

// AnswerInDomain retrieves from cls.Domain, escalates to the general
// collection when nothing clears the relevance floor, and generates.
func (uc *QueryUseCase) AnswerInDomain(ctx context.Context, query string, cls domain.ClassificationResult) (*domain.QueryResult, error) {
	domainName := cls.Domain
	if domainName == "" {
		domainName = domain.DomainGeneral
	}
	if domainName != domain.DomainGeneral && mentionsAI(query) {
		slog.Info("query_ai_override", "classified_domain", domainName)
		domainName = domain.DomainGeneral
	}

	results, err := uc.searcher.Search(ctx, query, domainName, uc.opts.TopK)
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", domainName, err)
	}

	escalated := false
	if domainName != domain.DomainGeneral && !hasRelevant(results, uc.opts.RelevanceFloor) {
		general, err := uc.searcher.Search(ctx, query, domain.DomainGeneral, uc.opts.GeneralTopK)
		if err != nil {
			return nil, fmt.Errorf("search general: %w", err)
		}
		merged := make([]domain.ScoredResult, 0, len(general)+len(results))
		merged = append(merged, general...)
		results = append(merged, results...)
		escalated = true
		slog.Info("query_escalated_to_general", "domain", domainName, "general_results", len(general))
	}

	sources := domain.WithoutSentinels(results)
	generation := uc.generate(ctx, query, domainName, sources)

	result := &domain.QueryResult{
		Response:   generation.Text,
		Sources:    sources,
		Domain:     domainName,
		Confidence: cls.Confidence,
		Escalated:  escalated,
		Outcome:    generation.Kind,
	}
	if generation.Kind != domain.OutcomeAnswered {
		result.Sources = []domain.ScoredResult{}
	}
	return result, nil
}

func (uc *QueryUseCase) generate(ctx context.Context, query, domainName string, sources []domain.ScoredResult) domain.Generation {
	passages := make([]domain.Passage, 0, uc.opts.ContextPassages)
	for _, r := range truncate(sources, uc.opts.ContextPassages) {
		if strings.TrimSpace(r.Content) == "" {
			continue
		}
		passages = append(passages, domain.Passage{Content: r.Content, Metadata: r.Metadata})
	}

	if len(passages) == 0 && domainName != domain.DomainGeneral {
		return domain.Refused("no relevant context in specialised collection")
	}

	genCtx, cancel := context.WithTimeout(ctx, uc.opts.GenerationTimeout)
	defer cancel()

	generation, err := uc.generator.Generate(genCtx, domain.GenerationRequest{
		Query:    query,
		Passages: passages,
		Domain:   domainName,
	})
	if err != nil {
		slog.Warn("generation_failed", "domain", domainName, "error", err)
		return domain.Generation{
			Kind:   domain.OutcomeFailed,
			Text:   fmt.Sprintf("I encountered an error while generating a response: %v", err),
			Reason: err.Error(),
		}
	}
	return generation
}

func hasRelevant(results []domain.ScoredResult, floor float64) bool {
	for _, r := range results {
		if r.Score > floor {
			return true
		}
	}
	return false
}
