package usecase

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/kirillkom/domain-router/internal/core/domain"
	"github.com/kirillkom/domain-router/internal/core/ports"
	"github.com/kirillkom/domain-router/internal/core/vectors"
)

const defaultOverrideConfidence = 0.95

type ClassifierOptions struct {
	OverrideConfidence float64
}

// DomainClassifier picks exactly one catalog domain per query: a keyword
// override for privileged domains first, embedding similarity otherwise.
type DomainClassifier struct {
	embedder           ports.Embedder
	domains            []domain.DomainDescriptor
	keywords           [][]string
	overrideOrder      []int
	overrideConfidence float64
}

// NewDomainClassifier embeds every description lacking a precomputed
// vector. The catalog order is the tie-break order for similarity.
func NewDomainClassifier(
	ctx context.Context,
	embedder ports.Embedder,
	catalog []domain.DomainDescriptor,
	opts ClassifierOptions,
) (*DomainClassifier, error) {
	if len(catalog) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "new classifier", fmt.Errorf("empty domain catalog"))
	}
	if opts.OverrideConfidence <= 0 {
		opts.OverrideConfidence = defaultOverrideConfidence
	}

	domains := make([]domain.DomainDescriptor, len(catalog))
	copy(domains, catalog)

	seen := make(map[string]struct{}, len(domains))
	missing := make([]int, 0, len(domains))
	texts := make([]string, 0, len(domains))
	keywords := make([][]string, len(domains))
	for i, d := range domains {
		if d.Name == "" {
			return nil, domain.WrapError(domain.ErrInvalidInput, "new classifier", fmt.Errorf("domain #%d has no name", i))
		}
		if _, dup := seen[d.Name]; dup {
			return nil, domain.WrapError(domain.ErrInvalidInput, "new classifier", fmt.Errorf("duplicate domain %q", d.Name))
		}
		seen[d.Name] = struct{}{}

		keywords[i] = make([]string, 0, len(d.Keywords))
		for _, kw := range d.Keywords {
			if kw = strings.ToLower(strings.TrimSpace(kw)); kw != "" {
				keywords[i] = append(keywords[i], kw)
			}
		}
		if len(d.DescriptionEmbedding) == 0 {
			missing = append(missing, i)
			texts = append(texts, d.Description)
		}
	}

	if len(texts) > 0 {
		vecs, err := embedder.EmbedPassages(ctx, texts)
		if err != nil {
			return nil, fmt.Errorf("embed domain descriptions: %w", err)
		}
		if len(vecs) != len(texts) {
			return nil, fmt.Errorf("embed domain descriptions: got %d vectors for %d descriptions", len(vecs), len(texts))
		}
		for j, idx := range missing {
			domains[idx].DescriptionEmbedding = vecs[j]
		}
	}

	overrideOrder := make([]int, 0, len(domains))
	for i, d := range domains {
		if d.IsOverride() {
			overrideOrder = append(overrideOrder, i)
		}
	}
	sort.SliceStable(overrideOrder, func(a, b int) bool {
		return domains[overrideOrder[a]].OverridePriority < domains[overrideOrder[b]].OverridePriority
	})

	return &DomainClassifier{
		embedder:           embedder,
		domains:            domains,
		keywords:           keywords,
		overrideOrder:      overrideOrder,
		overrideConfidence: opts.OverrideConfidence,
	}, nil
}

func (c *DomainClassifier) Domains() []domain.DomainDescriptor {
	out := make([]domain.DomainDescriptor, len(c.domains))
	copy(out, c.domains)
	return out
}

func (c *DomainClassifier) Classify(ctx context.Context, query string) (domain.ClassificationResult, error) {
	if name, ok := c.keywordOverride(query); ok {
		return domain.ClassificationResult{
			Domain:     name,
			Confidence: c.overrideConfidence,
			Route:      domain.RouteKeyword,
		}, nil
	}

	queryVector, err := c.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return domain.ClassificationResult{}, fmt.Errorf("embed query: %w", err)
	}

	scores := make(map[string]float64, len(c.domains))
	best := 0
	bestScore := 0.0
	for i, d := range c.domains {
		score := vectors.Cosine(queryVector, d.DescriptionEmbedding)
		scores[d.Name] = score
		if i == 0 || score > bestScore {
			best = i
			bestScore = score
		}
	}

	return domain.ClassificationResult{
		Domain:     c.domains[best].Name,
		Confidence: bestScore,
		Route:      domain.RouteEmbedding,
		AllScores:  scores,
	}, nil
}

// keywordOverride returns the first override domain, by priority, whose
// keyword hit count is positive and not below any other domain's count.
func (c *DomainClassifier) keywordOverride(query string) (string, bool) {
	if len(c.overrideOrder) == 0 {
		return "", false
	}
	lower := strings.ToLower(query)
	counts := make([]int, len(c.domains))
	for i := range c.domains {
		counts[i] = countKeywordHits(lower, c.keywords[i])
	}

	for _, idx := range c.overrideOrder {
		if counts[idx] == 0 {
			continue
		}
		dominant := true
		for j, n := range counts {
			if j != idx && n > counts[idx] {
				dominant = false
				break
			}
		}
		if dominant {
			return c.domains[idx].Name, true
		}
	}
	return "", false
}
