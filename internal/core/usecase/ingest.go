package usecase

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/domain-router/internal/core/domain"
	"github.com/kirillkom/domain-router/internal/core/ports"
)

// UploadSourceUseCase stores a new document for a domain and queues it for
// asynchronous ingestion.
type UploadSourceUseCase struct {
	repo    ports.SourceRepository
	storage ports.ObjectStorage
	queue   ports.MessageQueue
	domains map[string]struct{}
}

func NewUploadSourceUseCase(
	repo ports.SourceRepository,
	storage ports.ObjectStorage,
	queue ports.MessageQueue,
	domainNames []string,
) *UploadSourceUseCase {
	domains := make(map[string]struct{}, len(domainNames))
	for _, name := range domainNames {
		domains[name] = struct{}{}
	}
	return &UploadSourceUseCase{
		repo:    repo,
		storage: storage,
		queue:   queue,
		domains: domains,
	}
}

func (uc *UploadSourceUseCase) Upload(
	ctx context.Context,
	domainName, filename string,
	body io.Reader,
) (*domain.Source, error) {
	if _, ok := uc.domains[domainName]; !ok {
		return nil, domain.WrapError(domain.ErrUnknownDomain, "upload source", fmt.Errorf("domain %q", domainName))
	}
	if strings.TrimSpace(filename) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "upload source", fmt.Errorf("filename is required"))
	}

	id := uuid.NewString()
	storageKey := fmt.Sprintf("uploads/%s/%s_%s", domainName, id, sanitizeFilename(filename))
	now := time.Now().UTC()

	if err := uc.storage.Save(ctx, storageKey, body); err != nil {
		return nil, fmt.Errorf("save to object storage: %w", err)
	}

	src := &domain.Source{
		ID:          id,
		Domain:      domainName,
		Filename:    filepath.Base(filename),
		StoragePath: storageKey,
		Status:      domain.SourceUploaded,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := uc.repo.Create(ctx, src); err != nil {
		return nil, fmt.Errorf("create source metadata: %w", err)
	}

	if err := uc.queue.PublishSourceUploaded(ctx, src.ID); err != nil {
		return nil, fmt.Errorf("publish ingestion event: %w", err)
	}

	return src, nil
}

func sanitizeFilename(name string) string {
	base := filepath.Base(name)
	base = strings.ReplaceAll(base, " ", "_")
	base = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r
		case r >= 'A' && r <= 'Z':
			return r
		case r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, base)
	if base == "" || base == "." {
		return "document.bin"
	}
	return base
}
