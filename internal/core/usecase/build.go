package usecase

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/kirillkom/domain-router/internal/core/domain"
	"github.com/kirillkom/domain-router/internal/core/ports"
)

// CollectionBuilder turns source documents into embedded chunks, reusing
// cached chunks when present.
type CollectionBuilder struct {
	extractor   ports.TextExtractor
	chunker     ports.Chunker
	embedder    ports.Embedder
	cache       ports.ChunkRepository
	sources     ports.SourceRepository
	concurrency int
}

// NewCollectionBuilder accepts a nil sources repository; uploaded sources
// are then not loaded.
func NewCollectionBuilder(
	extractor ports.TextExtractor,
	chunker ports.Chunker,
	embedder ports.Embedder,
	cache ports.ChunkRepository,
	sources ports.SourceRepository,
	concurrency int,
) *CollectionBuilder {
	if concurrency <= 0 {
		concurrency = 2
	}
	return &CollectionBuilder{
		extractor:   extractor,
		chunker:     chunker,
		embedder:    embedder,
		cache:       cache,
		sources:     sources,
		concurrency: concurrency,
	}
}

// BuildSource returns the chunks of one source, from cache when possible.
func (b *CollectionBuilder) BuildSource(ctx context.Context, src domain.Source) ([]domain.Chunk, error) {
	cached, ok, err := b.cache.Load(ctx, src.Domain, src.StoragePath)
	if err != nil {
		slog.Warn("chunk_cache_load_failed", "domain", src.Domain, "source", src.StoragePath, "error", err)
	} else if ok {
		return withDomain(cached, src.Domain), nil
	}

	text, err := b.extractor.Extract(ctx, src)
	if err != nil {
		return nil, fmt.Errorf("extract text: %w", err)
	}
	if strings.TrimSpace(text) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "extract text", errors.New("empty extracted text"))
	}

	parts := b.chunker.Split(text)
	if len(parts) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "chunk source", errors.New("chunking produced zero chunks"))
	}

	vectors, err := b.embedder.EmbedPassages(ctx, parts)
	if err != nil {
		return nil, fmt.Errorf("embed chunks: %w", err)
	}
	if len(vectors) != len(parts) {
		return nil, domain.WrapError(
			domain.ErrInvalidInput,
			"embed chunks",
			fmt.Errorf("vectors/chunks mismatch: %d/%d", len(vectors), len(parts)),
		)
	}

	sourceName := src.Filename
	if sourceName == "" {
		sourceName = path.Base(src.StoragePath)
	}
	chunks := make([]domain.Chunk, len(parts))
	for i, part := range parts {
		chunks[i] = domain.Chunk{
			Content:   part,
			Embedding: vectors[i],
			Metadata: domain.ChunkMetadata{
				Source:  sourceName,
				ChunkID: i,
				Domain:  src.Domain,
			},
		}
	}

	if err := b.cache.Persist(ctx, src.Domain, src.StoragePath, chunks); err != nil {
		slog.Warn("chunk_cache_persist_failed", "domain", src.Domain, "source", src.StoragePath, "error", err)
	}
	return chunks, nil
}

// LoadCollections builds every catalog domain, plus uploaded sources that
// finished ingestion. Missing catalog files are skipped.
func (b *CollectionBuilder) LoadCollections(ctx context.Context, catalog []domain.DomainDescriptor) (*domain.Collections, error) {
	uploaded := map[string][]domain.Source{}
	if b.sources != nil {
		ready, err := b.sources.ListReady(ctx)
		if err != nil {
			return nil, fmt.Errorf("list ready sources: %w", err)
		}
		for _, src := range ready {
			uploaded[src.Domain] = append(uploaded[src.Domain], src)
		}
	}

	order := make([]string, len(catalog))
	built := make([][]domain.Chunk, len(catalog))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.concurrency)
	for i, desc := range catalog {
		order[i] = desc.Name
		g.Go(func() error {
			chunks, err := b.buildDomain(gctx, desc, uploaded[desc.Name])
			if err != nil {
				return fmt.Errorf("build domain %s: %w", desc.Name, err)
			}
			built[i] = chunks
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	byDomain := make(map[string][]domain.Chunk, len(catalog))
	for i, name := range order {
		byDomain[name] = built[i]
		slog.Info("collection_loaded", "domain", name, "chunks", len(built[i]))
	}
	return domain.NewCollections(order, byDomain), nil
}

func (b *CollectionBuilder) buildDomain(ctx context.Context, desc domain.DomainDescriptor, uploaded []domain.Source) ([]domain.Chunk, error) {
	sources := make([]domain.Source, 0, len(desc.Sources)+len(uploaded))
	for _, p := range desc.Sources {
		sources = append(sources, domain.Source{
			Domain:      desc.Name,
			Filename:    path.Base(p),
			StoragePath: p,
		})
	}
	sources = append(sources, uploaded...)

	out := make([]domain.Chunk, 0)
	for _, src := range sources {
		chunks, err := b.BuildSource(ctx, src)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				slog.Warn("source_missing", "domain", desc.Name, "source", src.StoragePath)
				continue
			}
			return nil, fmt.Errorf("source %s: %w", src.StoragePath, err)
		}
		out = append(out, chunks...)
	}
	return out, nil
}

func withDomain(chunks []domain.Chunk, name string) []domain.Chunk {
	for i := range chunks {
		chunks[i].Metadata.Domain = name
	}
	return chunks
}
