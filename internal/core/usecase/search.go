package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/kirillkom/domain-router/internal/core/domain"
	"github.com/kirillkom/domain-router/internal/core/ports"
	"github.com/kirillkom/domain-router/internal/core/vectors"
)

const (
	defaultSemanticWeight = 0.7
	defaultKeywordWeight  = 0.3
	defaultScoreThreshold = 0.2
	defaultSearchTopK     = 5
)

type SearchOptions struct {
	SemanticWeight float64
	KeywordWeight  float64
	// ScoreThreshold is exclusive: a chunk must score strictly above it.
	ScoreThreshold float64
	DefaultTopK    int
}

func (o SearchOptions) withDefaults() SearchOptions {
	if o.SemanticWeight == 0 && o.KeywordWeight == 0 {
		o.SemanticWeight = defaultSemanticWeight
		o.KeywordWeight = defaultKeywordWeight
	}
	if o.ScoreThreshold <= 0 {
		o.ScoreThreshold = defaultScoreThreshold
	}
	if o.DefaultTopK <= 0 {
		o.DefaultTopK = defaultSearchTopK
	}
	return o
}

// HybridSearchEngine ranks chunks of the immutable collections by a
// weighted mix of cosine similarity and key-term coverage.
type HybridSearchEngine struct {
	embedder ports.Embedder
	store    ports.DocumentStore
	opts     SearchOptions
}

func NewHybridSearchEngine(embedder ports.Embedder, store ports.DocumentStore, opts SearchOptions) *HybridSearchEngine {
	return &HybridSearchEngine{
		embedder: embedder,
		store:    store,
		opts:     opts.withDefaults(),
	}
}

// Search never returns an empty slice on success: when nothing passes the
// threshold anywhere the single "no results" placeholder is returned.
func (e *HybridSearchEngine) Search(ctx context.Context, query, domainName string, topK int) ([]domain.ScoredResult, error) {
	if topK <= 0 {
		topK = e.opts.DefaultTopK
	}

	queryVector, err := e.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	terms := extractKeyTerms(query)

	if domainName != "" {
		if chunks, ok := e.store.Load(domainName); ok {
			results := truncate(e.scoreCollection(domainName, chunks, queryVector, terms), topK)
			if len(results) > 0 {
				return results, nil
			}
			slog.Debug("search_scope_empty_fallback", "domain", domainName, "top_k", topK)
		} else {
			slog.Debug("search_unknown_domain", "domain", domainName)
		}
	}

	results := e.searchAll(queryVector, terms, topK)
	if len(results) == 0 {
		return []domain.ScoredResult{domain.NoResults()}, nil
	}
	return results, nil
}

// searchAll gives each collection topK/len(domains)+1 slots, then merges
// the per-domain leaders by score and keeps the global top K.
func (e *HybridSearchEngine) searchAll(queryVector []float32, terms []string, topK int) []domain.ScoredResult {
	names := e.store.Domains()
	if len(names) == 0 {
		return nil
	}
	slots := topK/len(names) + 1

	merged := make([]domain.ScoredResult, 0, slots*len(names))
	for _, name := range names {
		chunks, ok := e.store.Load(name)
		if !ok {
			continue
		}
		merged = append(merged, truncate(e.scoreCollection(name, chunks, queryVector, terms), slots)...)
	}
	sortByScore(merged)
	return truncate(merged, topK)
}

func (e *HybridSearchEngine) scoreCollection(name string, chunks []domain.Chunk, queryVector []float32, terms []string) []domain.ScoredResult {
	out := make([]domain.ScoredResult, 0)
	for _, chunk := range chunks {
		if !chunk.HasEmbedding() || len(chunk.Embedding) != len(queryVector) {
			continue
		}
		semantic := vectors.Cosine(queryVector, chunk.Embedding)
		score := e.opts.SemanticWeight*semantic + e.opts.KeywordWeight*keywordBoost(chunk.Content, terms)
		if score <= e.opts.ScoreThreshold {
			continue
		}
		out = append(out, domain.ScoredResult{
			Content:  chunk.Content,
			Metadata: chunk.Metadata,
			Score:    score,
			Domain:   name,
		})
	}
	sortByScore(out)
	return out
}

// sortByScore orders by descending score; ties keep collection order.
func sortByScore(results []domain.ScoredResult) {
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
}

func truncate(results []domain.ScoredResult, n int) []domain.ScoredResult {
	if len(results) > n {
		return results[:n]
	}
	return results
}
