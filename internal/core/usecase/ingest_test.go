package usecase

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"strings"
	"sync"
	"testing"

	"github.com/kirillkom/domain-router/internal/core/domain"
)

type sourceRepoFake struct {
	mu          sync.Mutex
	sources     map[string]*domain.Source
	ready       []domain.Source
	createErr   error
	statusErr   error
	listErr     error
	statusCalls []domain.SourceStatus
	chunkCount  int
}

func newSourceRepoFake() *sourceRepoFake {
	return &sourceRepoFake{sources: map[string]*domain.Source{}}
}

func (f *sourceRepoFake) Create(_ context.Context, src *domain.Source) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	cp := *src
	f.sources[src.ID] = &cp
	return nil
}

func (f *sourceRepoFake) GetByID(_ context.Context, id string) (*domain.Source, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	src, ok := f.sources[id]
	if !ok {
		return nil, domain.WrapError(domain.ErrNotFound, "get source", fmt.Errorf("id=%s", id))
	}
	cp := *src
	return &cp, nil
}

func (f *sourceRepoFake) UpdateStatus(_ context.Context, _ string, status domain.SourceStatus, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statusCalls = append(f.statusCalls, status)
	if status != domain.SourceFailed && f.statusErr != nil {
		return f.statusErr
	}
	return nil
}

func (f *sourceRepoFake) SaveChunkCount(_ context.Context, _ string, count int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.chunkCount = count
	return nil
}

func (f *sourceRepoFake) ListReady(context.Context) ([]domain.Source, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.ready, nil
}

type storageFake struct {
	savedKey  string
	savedBody string
	err       error
}

func (f *storageFake) Save(_ context.Context, key string, data io.Reader) error {
	if f.err != nil {
		return f.err
	}
	raw, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	f.savedKey = key
	f.savedBody = string(raw)
	return nil
}

func (f *storageFake) Open(context.Context, string) (io.ReadCloser, error) {
	return io.NopCloser(strings.NewReader("")), nil
}

type queueFake struct {
	sourceID string
	err      error
}

func (f *queueFake) PublishSourceUploaded(_ context.Context, sourceID string) error {
	if f.err != nil {
		return f.err
	}
	f.sourceID = sourceID
	return nil
}

func (f *queueFake) SubscribeSourceUploaded(context.Context, func(context.Context, string) error) error {
	return errors.New("not implemented")
}

func TestUploadSourceSuccess(t *testing.T) {
	repo := newSourceRepoFake()
	storage := &storageFake{}
	queue := &queueFake{}
	uc := NewUploadSourceUseCase(repo, storage, queue, []string{domain.DomainClinical})

	src, err := uc.Upload(context.Background(), domain.DomainClinical, "who report 1.pdf", bytes.NewBufferString("hello"))
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	if src.ID == "" || src.Status != domain.SourceUploaded {
		t.Fatalf("unexpected source %+v", src)
	}
	if src.Filename != "who report 1.pdf" {
		t.Fatalf("expected original filename, got %s", src.Filename)
	}
	if repo.sources[src.ID] == nil {
		t.Fatalf("expected repo.Create call")
	}
	if queue.sourceID != src.ID {
		t.Fatalf("expected queued id %s, got %s", src.ID, queue.sourceID)
	}
	if !strings.HasPrefix(storage.savedKey, "uploads/clinical/") || !strings.HasSuffix(storage.savedKey, "_who_report_1.pdf") {
		t.Fatalf("unexpected storage key %s", storage.savedKey)
	}
	if storage.savedBody != "hello" {
		t.Fatalf("expected saved body hello, got %s", storage.savedBody)
	}
}

func TestUploadSourceRejectsUnknownDomain(t *testing.T) {
	uc := NewUploadSourceUseCase(newSourceRepoFake(), &storageFake{}, &queueFake{}, []string{domain.DomainClinical})

	_, err := uc.Upload(context.Background(), "astronomy", "a.txt", bytes.NewBufferString("x"))
	if !domain.IsKind(err, domain.ErrUnknownDomain) {
		t.Fatalf("expected unknown domain error, got %v", err)
	}
	_, err = uc.Upload(context.Background(), domain.DomainClinical, " ", bytes.NewBufferString("x"))
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input for blank filename, got %v", err)
	}
}

func TestUploadSourceQueueError(t *testing.T) {
	uc := NewUploadSourceUseCase(newSourceRepoFake(), &storageFake{}, &queueFake{err: errors.New("queue down")}, []string{domain.DomainGeneral})

	_, err := uc.Upload(context.Background(), domain.DomainGeneral, "report.txt", bytes.NewBufferString("hello"))
	if err == nil || !strings.Contains(err.Error(), "publish ingestion event") {
		t.Fatalf("expected publish error, got %v", err)
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := map[string]string{
		"../etc/passwd": "passwd",
		"a b+c.txt":     "a_b_c.txt",
		"":              "document.bin",
	}
	for in, want := range tests {
		if got := sanitizeFilename(in); got != want {
			t.Fatalf("sanitizeFilename(%q) = %q, want %q", in, got, want)
		}
	}
}

type extractorFake struct {
	mu    sync.Mutex
	texts map[string]string
	err   error
	calls int
}

func (f *extractorFake) Extract(_ context.Context, src domain.Source) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	text, ok := f.texts[src.StoragePath]
	if !ok {
		return "", fmt.Errorf("open %s: %w", src.StoragePath, fs.ErrNotExist)
	}
	return text, nil
}

type chunkerFake struct{}

func (chunkerFake) Split(text string) []string {
	out := make([]string, 0)
	for _, p := range strings.Split(text, "|") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

type chunkCacheFake struct {
	mu        sync.Mutex
	entries   map[string][]domain.Chunk
	persisted int
	loadErr   error
}

func newChunkCacheFake() *chunkCacheFake {
	return &chunkCacheFake{entries: map[string][]domain.Chunk{}}
}

func (f *chunkCacheFake) Load(_ context.Context, domainName, source string) ([]domain.Chunk, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.loadErr != nil {
		return nil, false, f.loadErr
	}
	chunks, ok := f.entries[domainName+"_"+source]
	return append([]domain.Chunk(nil), chunks...), ok, nil
}

func (f *chunkCacheFake) Persist(_ context.Context, domainName, source string, chunks []domain.Chunk) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.persisted++
	f.entries[domainName+"_"+source] = append([]domain.Chunk(nil), chunks...)
	return nil
}

func TestBuildSourceChunksEmbedsAndCaches(t *testing.T) {
	extractor := &extractorFake{texts: map[string]string{"clinical/who.pdf": "first|second"}}
	cache := newChunkCacheFake()
	embedder := &embedderFake{}
	builder := NewCollectionBuilder(extractor, chunkerFake{}, embedder, cache, nil, 1)
	src := domain.Source{Domain: domain.DomainClinical, Filename: "who.pdf", StoragePath: "clinical/who.pdf"}

	chunks, err := builder.BuildSource(context.Background(), src)
	if err != nil {
		t.Fatalf("BuildSource() error = %v", err)
	}
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(chunks))
	}
	for i, c := range chunks {
		if c.Metadata.ChunkID != i || c.Metadata.Source != "who.pdf" || c.Metadata.Domain != domain.DomainClinical {
			t.Fatalf("unexpected metadata %+v", c.Metadata)
		}
		if !c.HasEmbedding() {
			t.Fatalf("chunk %d has no embedding", i)
		}
	}
	if cache.persisted != 1 {
		t.Fatalf("expected cache persist, got %d", cache.persisted)
	}

	if _, err := builder.BuildSource(context.Background(), src); err != nil {
		t.Fatalf("BuildSource() second call error = %v", err)
	}
	if extractor.calls != 1 {
		t.Fatalf("expected cached second build, extractor calls = %d", extractor.calls)
	}
	if len(embedder.passages) != 1 {
		t.Fatalf("expected a single embedding batch, got %d", len(embedder.passages))
	}
}

func TestBuildSourceRejectsEmptyText(t *testing.T) {
	extractor := &extractorFake{texts: map[string]string{"a.txt": "   "}}
	builder := NewCollectionBuilder(extractor, chunkerFake{}, &embedderFake{}, newChunkCacheFake(), nil, 1)

	_, err := builder.BuildSource(context.Background(), domain.Source{Domain: domain.DomainGeneral, StoragePath: "a.txt"})
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

func TestLoadCollectionsKeepsCatalogOrderAndSkipsMissing(t *testing.T) {
	extractor := &extractorFake{texts: map[string]string{
		"general/ai.txt":     "g1|g2",
		"clinical/who.pdf":   "c1",
		"uploads/clinical/x": "u1|u2",
	}}
	repo := newSourceRepoFake()
	repo.ready = []domain.Source{{ID: "x", Domain: domain.DomainClinical, Filename: "x.pdf", StoragePath: "uploads/clinical/x", Status: domain.SourceReady}}
	builder := NewCollectionBuilder(extractor, chunkerFake{}, &embedderFake{}, newChunkCacheFake(), repo, 2)

	catalog := testCatalog()
	catalog[0].Sources = []string{"general/ai.txt"}
	catalog[1].Sources = []string{"clinical/who.pdf", "clinical/missing.pdf"}

	collections, err := builder.LoadCollections(context.Background(), catalog)
	if err != nil {
		t.Fatalf("LoadCollections() error = %v", err)
	}
	names := collections.Domains()
	if len(names) != 3 || names[0] != domain.DomainGeneral || names[2] != domain.DomainFoodSecurity {
		t.Fatalf("unexpected domain order %v", names)
	}
	if collections.Size(domain.DomainGeneral) != 2 || collections.Size(domain.DomainClinical) != 3 {
		t.Fatalf("unexpected sizes general=%d clinical=%d", collections.Size(domain.DomainGeneral), collections.Size(domain.DomainClinical))
	}
	if !collections.Has(domain.DomainFoodSecurity) || collections.Size(domain.DomainFoodSecurity) != 0 {
		t.Fatalf("expected empty food_security collection")
	}
	chunks, _ := collections.Load(domain.DomainClinical)
	for _, c := range chunks {
		if c.Metadata.Domain != domain.DomainClinical {
			t.Fatalf("chunk domain mismatch %+v", c.Metadata)
		}
	}
}

func TestLoadCollectionsFailsOnBrokenSource(t *testing.T) {
	extractor := &extractorFake{err: errors.New("corrupt pdf")}
	builder := NewCollectionBuilder(extractor, chunkerFake{}, &embedderFake{}, newChunkCacheFake(), nil, 1)
	catalog := testCatalog()
	catalog[0].Sources = []string{"general/ai.pdf"}

	if _, err := builder.LoadCollections(context.Background(), catalog); err == nil {
		t.Fatalf("expected build error")
	}
}
