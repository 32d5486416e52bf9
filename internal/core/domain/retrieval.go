package domain

const (
	DomainGeneral      = "general"
	DomainClinical     = "clinical"
	DomainFoodSecurity = "food_security"
	DomainUnknown      = "unknown"

	SentinelContent = "No relevant information found."
	SentinelSource  = "system"
)

// DomainDescriptor is one entry of the fixed domain catalog.
type DomainDescriptor struct {
	Name                 string
	Description          string
	Keywords             []string
	OverridePriority     int
	Sources              []string
	DescriptionEmbedding []float32
}

// IsOverride reports whether a keyword hit may short-circuit classification.
func (d DomainDescriptor) IsOverride() bool {
	return d.OverridePriority > 0
}

type ScoredResult struct {
	Content  string        `json:"content"`
	Metadata ChunkMetadata `json:"metadata"`
	Score    float64       `json:"score"`
	Domain   string        `json:"domain"`
}

// NoResults returns the placeholder emitted when no chunk passed the threshold.
func NoResults() ScoredResult {
	return ScoredResult{
		Content:  SentinelContent,
		Metadata: ChunkMetadata{Source: SentinelSource},
		Score:    0,
		Domain:   DomainUnknown,
	}
}

func (r ScoredResult) IsSentinel() bool {
	return r.Domain == DomainUnknown && r.Metadata.Source == SentinelSource && r.Content == SentinelContent
}

// WithoutSentinels drops placeholder results, keeping order.
func WithoutSentinels(results []ScoredResult) []ScoredResult {
	out := make([]ScoredResult, 0, len(results))
	for _, r := range results {
		if r.IsSentinel() {
			continue
		}
		out = append(out, r)
	}
	return out
}

type ClassificationRoute string

const (
	RouteKeyword   ClassificationRoute = "keyword"
	RouteEmbedding ClassificationRoute = "embedding"
	RouteExplicit  ClassificationRoute = "explicit"
)

// ClassificationResult carries the winning domain. Confidence is a ranking
// score, not a probability.
type ClassificationResult struct {
	Domain     string              `json:"domain"`
	Confidence float64             `json:"confidence"`
	Route      ClassificationRoute `json:"route"`
	AllScores  map[string]float64  `json:"all_scores,omitempty"`
}
