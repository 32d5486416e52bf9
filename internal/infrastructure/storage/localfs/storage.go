package localfs

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"strings"

	"github.com/google/uuid"
)

// Storage keeps uploaded source files under one directory. Keys are
// slash-separated paths relative to it; os.Root refuses any that escape.
type Storage struct {
	root *os.Root
}

func New(basePath string) (*Storage, error) {
	if basePath == "" {
		basePath = "./data"
	}
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	root, err := os.OpenRoot(basePath)
	if err != nil {
		return nil, fmt.Errorf("open storage root: %w", err)
	}
	return &Storage{root: root}, nil
}

// Save writes data to a temporary sibling first so readers never observe a
// partial file.
func (s *Storage) Save(_ context.Context, key string, data io.Reader) error {
	name, err := cleanKey(key)
	if err != nil {
		return err
	}
	if dir := path.Dir(name); dir != "." {
		if err := s.root.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}

	tmpName := path.Join(path.Dir(name), ".partial-"+uuid.NewString())
	tmp, err := s.root.OpenFile(tmpName, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return fmt.Errorf("create %s: %w", name, err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = s.root.Remove(tmpName)
		}
	}()

	_, copyErr := io.Copy(tmp, data)
	closeErr := tmp.Close()
	if copyErr != nil {
		return fmt.Errorf("write %s: %w", name, copyErr)
	}
	if closeErr != nil {
		return fmt.Errorf("flush %s: %w", name, closeErr)
	}
	if err := s.root.Rename(tmpName, name); err != nil {
		return fmt.Errorf("commit %s: %w", name, err)
	}
	committed = true
	return nil
}

func (s *Storage) Open(_ context.Context, key string) (io.ReadCloser, error) {
	name, err := cleanKey(key)
	if err != nil {
		return nil, err
	}
	f, err := s.root.Open(name)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", name, err)
	}
	return f, nil
}

func (s *Storage) Close() error {
	return s.root.Close()
}

func cleanKey(key string) (string, error) {
	name := path.Clean(strings.ReplaceAll(key, "\\", "/"))
	if name == "." || name == ".." || path.IsAbs(name) || strings.HasPrefix(name, "../") {
		return "", fmt.Errorf("invalid storage key %q", key)
	}
	return name, nil
}
