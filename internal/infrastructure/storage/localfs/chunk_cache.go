package localfs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/kirillkom/domain-router/internal/core/domain"
)

// ChunkCache keeps built chunks as one JSON file per (domain, source) so a
// restart skips re-embedding unchanged documents.
type ChunkCache struct {
	dir string
}

func NewChunkCache(dir string) (*ChunkCache, error) {
	if dir == "" {
		dir = "./data/vector_db"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create chunk cache dir: %w", err)
	}
	return &ChunkCache{dir: dir}, nil
}

func (c *ChunkCache) Load(_ context.Context, domainName, source string) ([]domain.Chunk, bool, error) {
	raw, err := os.ReadFile(c.path(domainName, source))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read chunk cache: %w", err)
	}

	var chunks []domain.Chunk
	if err := json.Unmarshal(raw, &chunks); err != nil {
		return nil, false, fmt.Errorf("decode chunk cache: %w", err)
	}
	return chunks, true, nil
}

func (c *ChunkCache) Persist(_ context.Context, domainName, source string, chunks []domain.Chunk) error {
	raw, err := json.Marshal(chunks)
	if err != nil {
		return fmt.Errorf("encode chunk cache: %w", err)
	}

	path := c.path(domainName, source)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return fmt.Errorf("write chunk cache: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("commit chunk cache: %w", err)
	}
	return nil
}

func (c *ChunkCache) path(domainName, source string) string {
	name := strings.TrimSuffix(filepath.Base(filepath.FromSlash(source)), filepath.Ext(source))
	return filepath.Join(c.dir, fmt.Sprintf("%s_%s.json", safeName(domainName), safeName(name)))
}

func safeName(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '-', r == '_', r == '.':
			return r
		default:
			return '_'
		}
	}, s)
}
