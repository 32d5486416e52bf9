package usecase

import (
	"context"
	"fmt"

	"github.com/kirillkom/domain-router/internal/core/domain"
	"github.com/kirillkom/domain-router/internal/core/ports"
)

// ProcessSourceUseCase ingests one uploaded source: extract, chunk, embed
// and persist into the chunk repository.
type ProcessSourceUseCase struct {
	repo    ports.SourceRepository
	builder *CollectionBuilder
}

func NewProcessSourceUseCase(repo ports.SourceRepository, builder *CollectionBuilder) *ProcessSourceUseCase {
	return &ProcessSourceUseCase{
		repo:    repo,
		builder: builder,
	}
}

func (uc *ProcessSourceUseCase) ProcessByID(ctx context.Context, sourceID string) error {
	if err := uc.markStatus(ctx, sourceID, domain.SourceProcessing, ""); err != nil {
		return fmt.Errorf("set status=processing: %w", err)
	}

	count, err := uc.processPipeline(ctx, sourceID)
	if err != nil {
		if failErr := uc.markFailed(ctx, sourceID, err); failErr != nil {
			return fmt.Errorf("%w; mark failed status: %v", err, failErr)
		}
		return err
	}

	if err := uc.repo.SaveChunkCount(ctx, sourceID, count); err != nil {
		return fmt.Errorf("save chunk count: %w", err)
	}

	if err := uc.markStatus(ctx, sourceID, domain.SourceReady, ""); err != nil {
		return fmt.Errorf("set status=ready: %w", err)
	}

	return nil
}

func (uc *ProcessSourceUseCase) processPipeline(ctx context.Context, sourceID string) (int, error) {
	src, err := uc.repo.GetByID(ctx, sourceID)
	if err != nil {
		return 0, fmt.Errorf("fetch source by id: %w", err)
	}

	chunks, err := uc.builder.BuildSource(ctx, *src)
	if err != nil {
		return 0, err
	}
	return len(chunks), nil
}

func (uc *ProcessSourceUseCase) markStatus(ctx context.Context, sourceID string, status domain.SourceStatus, errMessage string) error {
	return uc.repo.UpdateStatus(ctx, sourceID, status, errMessage)
}

func (uc *ProcessSourceUseCase) markFailed(ctx context.Context, sourceID string, processErr error) error {
	if processErr == nil {
		return nil
	}
	return uc.markStatus(ctx, sourceID, domain.SourceFailed, processErr.Error())
}
