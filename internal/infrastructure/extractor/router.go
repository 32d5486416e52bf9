package extractor

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/kirillkom/domain-router/internal/core/domain"
	"github.com/kirillkom/domain-router/internal/core/ports"
)

const defaultMaxSourceBytes = 64 << 20

// Parser turns raw document bytes into plain text.
type Parser interface {
	Parse(raw []byte) (string, error)
}

// Router reads a source from object storage and picks a parser by file
// extension.
type Router struct {
	storage  ports.ObjectStorage
	parsers  map[string]Parser
	maxBytes int64
}

func NewRouter(storage ports.ObjectStorage, parsers map[string]Parser) *Router {
	normalized := make(map[string]Parser, len(parsers))
	for ext, p := range parsers {
		normalized[normalizeExt(ext)] = p
	}
	return &Router{
		storage:  storage,
		parsers:  normalized,
		maxBytes: defaultMaxSourceBytes,
	}
}

func (r *Router) Supports(filename string) bool {
	_, ok := r.parsers[normalizeExt(path.Ext(filename))]
	return ok
}

func (r *Router) Extract(ctx context.Context, src domain.Source) (string, error) {
	name := src.Filename
	if name == "" {
		name = src.StoragePath
	}
	parser, ok := r.parsers[normalizeExt(path.Ext(name))]
	if !ok {
		return "", domain.WrapError(domain.ErrInvalidInput, "extract text", fmt.Errorf("unsupported format: %s", name))
	}

	reader, err := r.storage.Open(ctx, src.StoragePath)
	if err != nil {
		return "", fmt.Errorf("open source document: %w", err)
	}
	defer reader.Close()

	raw, err := io.ReadAll(io.LimitReader(reader, r.maxBytes+1))
	if err != nil {
		return "", fmt.Errorf("read source document: %w", err)
	}
	if int64(len(raw)) > r.maxBytes {
		return "", domain.WrapError(domain.ErrInvalidInput, "extract text", fmt.Errorf("%s exceeds %d bytes", name, r.maxBytes))
	}

	text, err := parser.Parse(raw)
	if err != nil {
		return "", domain.WrapError(domain.ErrInvalidInput, "parse "+name, err)
	}
	return strings.TrimSpace(text), nil
}

func normalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}
