package usecase

import (
	"context"
	"sync"

	"github.com/kirillkom/domain-router/internal/core/domain"
)

// embedderFake maps texts to fixed vectors; unknown texts get fallback.
type embedderFake struct {
	mu       sync.Mutex
	vectors  map[string][]float32
	fallback []float32
	err      error
	queries  []string
	passages [][]string
}

func (f *embedderFake) EmbedPassages(_ context.Context, texts []string) ([][]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.passages = append(f.passages, append([]string(nil), texts...))
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = f.lookup(text)
	}
	return out, nil
}

func (f *embedderFake) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, text)
	if f.err != nil {
		return nil, f.err
	}
	return f.lookup(text), nil
}

func (f *embedderFake) lookup(text string) []float32 {
	if v, ok := f.vectors[text]; ok {
		return append([]float32(nil), v...)
	}
	if f.fallback != nil {
		return append([]float32(nil), f.fallback...)
	}
	return []float32{1, 0}
}

func testCatalog() []domain.DomainDescriptor {
	return []domain.DomainDescriptor{
		{
			Name:             domain.DomainGeneral,
			Description:      "general knowledge",
			Keywords:         []string{"ai", "artificial intelligence", "computer", "technology", "digital", "internet", "robot"},
			OverridePriority: 1,
		},
		{
			Name:             domain.DomainClinical,
			Description:      "clinical knowledge",
			Keywords:         []string{"medical", "disease", "symptom", "diagnosis", "doctor", "patient", "treatment"},
			OverridePriority: 2,
		},
		{
			Name:             domain.DomainFoodSecurity,
			Description:      "food security knowledge",
			Keywords:         []string{"food", "agriculture", "farm", "crop", "harvest", "nutrition", "hunger"},
			OverridePriority: 3,
		},
	}
}

func chunkAt(content string, id int, embedding ...float32) domain.Chunk {
	return domain.Chunk{
		Content:   content,
		Embedding: embedding,
		Metadata:  domain.ChunkMetadata{Source: "doc.pdf", ChunkID: id},
	}
}
