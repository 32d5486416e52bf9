package ports

import (
	"context"
	"io"

	"github.com/kirillkom/domain-router/internal/core/domain"
)

// QueryClassifier is the inbound contract for domain classification.
type QueryClassifier interface {
	Classify(ctx context.Context, query string) (domain.ClassificationResult, error)
}

// KnowledgeSearcher is the inbound contract for hybrid retrieval. An empty
// domain searches every collection.
type KnowledgeSearcher interface {
	Search(ctx context.Context, query, domainName string, topK int) ([]domain.ScoredResult, error)
}

// QueryAnswerer runs the full classify, retrieve, escalate and generate flow.
type QueryAnswerer interface {
	Answer(ctx context.Context, query string) (*domain.QueryResult, error)
	AnswerInDomain(ctx context.Context, query string, cls domain.ClassificationResult) (*domain.QueryResult, error)
}

// ChatService is the inbound contract for conversation-aware answering.
type ChatService interface {
	Handle(ctx context.Context, req domain.QueryRequest) (*domain.QueryResponse, error)
	History(ctx context.Context, conversationID string) ([]domain.Turn, error)
}

// SourceUploader accepts new documents for a domain.
type SourceUploader interface {
	Upload(ctx context.Context, domainName, filename string, body io.Reader) (*domain.Source, error)
}

// SourceReader is the inbound read model for ingestion state.
type SourceReader interface {
	GetByID(ctx context.Context, id string) (*domain.Source, error)
}

// SourceProcessor is the inbound contract for asynchronous ingestion.
type SourceProcessor interface {
	ProcessByID(ctx context.Context, sourceID string) error
}
