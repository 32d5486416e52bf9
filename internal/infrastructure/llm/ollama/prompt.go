package ollama

import (
	"fmt"
	"strings"

	"github.com/kirillkom/domain-router/internal/core/domain"
)

func buildAnswerPrompt(query string, passages []domain.Passage) string {
	docs := make([]string, 0, len(passages))
	for _, p := range passages {
		if strings.TrimSpace(p.Content) == "" {
			continue
		}
		docs = append(docs, fmt.Sprintf("Document %d: %s", len(docs)+1, p.Content))
	}
	if len(docs) == 0 {
		return "Answer this question: " + query
	}
	return fmt.Sprintf("Based on this context, answer the question: %s\n\nContext: %s", query, strings.Join(docs, "\n\n"))
}
