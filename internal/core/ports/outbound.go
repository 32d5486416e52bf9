package ports

import (
	"context"
	"io"

	"github.com/kirillkom/domain-router/internal/core/domain"
)

// Embedder maps text into one vector space. Passages and queries are
// encoded with different instruction prefixes; outputs are L2-normalised
// and passage output order matches input order.
type Embedder interface {
	EmbedPassages(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// AnswerGenerator is the generation collaborator.
type AnswerGenerator interface {
	Generate(ctx context.Context, req domain.GenerationRequest) (domain.Generation, error)
}

// DocumentStore exposes the immutable per-domain chunk collections.
type DocumentStore interface {
	Domains() []string
	Load(domainName string) ([]domain.Chunk, bool)
}

// ChunkRepository caches built chunks keyed by (domain, source).
type ChunkRepository interface {
	Load(ctx context.Context, domainName, source string) ([]domain.Chunk, bool, error)
	Persist(ctx context.Context, domainName, source string, chunks []domain.Chunk) error
}

// ConversationStore keeps append-only per-conversation history.
type ConversationStore interface {
	Append(ctx context.Context, conversationID string, turn domain.Turn) error
	History(ctx context.Context, conversationID string) ([]domain.Turn, error)
}

// SourceRepository persists ingestion state of uploaded sources.
type SourceRepository interface {
	Create(ctx context.Context, src *domain.Source) error
	GetByID(ctx context.Context, id string) (*domain.Source, error)
	UpdateStatus(ctx context.Context, id string, status domain.SourceStatus, errMessage string) error
	SaveChunkCount(ctx context.Context, id string, count int) error
	ListReady(ctx context.Context) ([]domain.Source, error)
}

// ObjectStorage stores source documents and cached artifacts.
type ObjectStorage interface {
	Save(ctx context.Context, key string, data io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// MessageQueue publishes/consumes ingestion events.
type MessageQueue interface {
	PublishSourceUploaded(ctx context.Context, sourceID string) error
	SubscribeSourceUploaded(ctx context.Context, handler func(context.Context, string) error) error
}

// TextExtractor extracts plain text from a stored source.
type TextExtractor interface {
	Extract(ctx context.Context, src domain.Source) (string, error)
}

// Chunker splits text into retrieval chunks.
type Chunker interface {
	Split(text string) []string
}
