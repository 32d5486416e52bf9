package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/kirillkom/domain-router/internal/core/domain"
)

func newTestClassifier(t *testing.T, embedder *embedderFake) *DomainClassifier {
	t.Helper()
	c, err := NewDomainClassifier(context.Background(), embedder, testCatalog(), ClassifierOptions{})
	if err != nil {
		t.Fatalf("NewDomainClassifier() error = %v", err)
	}
	return c
}

func descriptionEmbedder() *embedderFake {
	return &embedderFake{vectors: map[string][]float32{
		"general knowledge":       {1, 0, 0},
		"clinical knowledge":      {0, 1, 0},
		"food security knowledge": {0, 0, 1},
	}}
}

func TestClassifierEmbedsDescriptionsAsPassages(t *testing.T) {
	embedder := descriptionEmbedder()
	newTestClassifier(t, embedder)

	if len(embedder.passages) != 1 || len(embedder.passages[0]) != 3 {
		t.Fatalf("expected one batch of 3 descriptions, got %v", embedder.passages)
	}
	if len(embedder.queries) != 0 {
		t.Fatalf("expected no query embeddings at construction, got %v", embedder.queries)
	}
}

func TestClassifierKeywordOverride(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  string
	}{
		{name: "clinical keyword", query: "What are the symptoms of diabetes?", want: domain.DomainClinical},
		{name: "food dominates tech", query: "How does AI help crop harvest on a farm?", want: domain.DomainFoodSecurity},
		{name: "tie resolves by priority", query: "doctor recommends food", want: domain.DomainClinical},
		{name: "tech keyword", query: "Which computer should I buy?", want: domain.DomainGeneral},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			embedder := descriptionEmbedder()
			c := newTestClassifier(t, embedder)

			got, err := c.Classify(context.Background(), tt.query)
			if err != nil {
				t.Fatalf("Classify() error = %v", err)
			}
			if got.Domain != tt.want {
				t.Fatalf("expected %s, got %s", tt.want, got.Domain)
			}
			if got.Confidence != 0.95 || got.Route != domain.RouteKeyword {
				t.Fatalf("expected keyword route with 0.95, got %+v", got)
			}
			if got.AllScores != nil {
				t.Fatalf("keyword route must not carry all scores, got %v", got.AllScores)
			}
			if len(embedder.queries) != 0 {
				t.Fatalf("keyword route must not embed the query")
			}
		})
	}
}

func TestClassifierEmbeddingRoute(t *testing.T) {
	embedder := descriptionEmbedder()
	embedder.vectors["global staple prices"] = []float32{0.1, 0.2, 0.97}
	c := newTestClassifier(t, embedder)

	got, err := c.Classify(context.Background(), "global staple prices")
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	if got.Domain != domain.DomainFoodSecurity {
		t.Fatalf("expected food_security, got %s", got.Domain)
	}
	if got.Route != domain.RouteEmbedding {
		t.Fatalf("expected embedding route, got %s", got.Route)
	}
	if len(got.AllScores) != 3 {
		t.Fatalf("expected scores for every domain, got %v", got.AllScores)
	}
	if got.Confidence != got.AllScores[domain.DomainFoodSecurity] {
		t.Fatalf("confidence must equal winning similarity")
	}
}

func TestClassifierEmbeddingTieKeepsDeclaredOrder(t *testing.T) {
	embedder := &embedderFake{fallback: []float32{1, 0}}
	c := newTestClassifier(t, embedder)

	got, err := c.Classify(context.Background(), "")
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	if got.Domain != domain.DomainGeneral {
		t.Fatalf("expected first declared domain on tie, got %s", got.Domain)
	}
}

func TestClassifierIsDeterministic(t *testing.T) {
	embedder := descriptionEmbedder()
	embedder.vectors["weather tomorrow"] = []float32{0.5, 0.5, 0.1}
	c := newTestClassifier(t, embedder)

	first, err := c.Classify(context.Background(), "weather tomorrow")
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	second, _ := c.Classify(context.Background(), "weather tomorrow")
	if first.Domain != second.Domain || first.Confidence != second.Confidence {
		t.Fatalf("expected repeatable classification, got %+v and %+v", first, second)
	}
}

func TestClassifierEmbedError(t *testing.T) {
	embedder := descriptionEmbedder()
	c := newTestClassifier(t, embedder)
	embedder.err = errors.New("ollama down")

	if _, err := c.Classify(context.Background(), "weather tomorrow"); err == nil {
		t.Fatalf("expected embed error")
	}
}

func TestNewDomainClassifierValidatesCatalog(t *testing.T) {
	ctx := context.Background()
	if _, err := NewDomainClassifier(ctx, &embedderFake{}, nil, ClassifierOptions{}); !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input for empty catalog, got %v", err)
	}

	dup := append(testCatalog(), domain.DomainDescriptor{Name: domain.DomainGeneral})
	if _, err := NewDomainClassifier(ctx, &embedderFake{}, dup, ClassifierOptions{}); !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input for duplicate domain, got %v", err)
	}

	if _, err := NewDomainClassifier(ctx, &embedderFake{err: errors.New("probe")}, testCatalog(), ClassifierOptions{}); err == nil {
		t.Fatalf("expected description embedding error")
	}
}
