package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	logx "gamehub/pkg/logx"
)

// fileStore keeps one pretty-printed JSON document per collection under a
// directory. Writes go through a temp file in the same directory so the
// rename is atomic on POSIX filesystems.
type fileStore struct {
	log logx.Logger
	dir string

	mu sync.Mutex
}

var collectionName = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

func openFile(cfg Config, log logx.Logger) (Store, error) {
	dir := strings.TrimSpace(cfg.Path)
	if dir == "" {
		return nil, errors.New("storage.path is required for file driver")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &fileStore{log: log, dir: dir}, nil
}

func (s *fileStore) Close() error { return nil }

func (s *fileStore) path(name string) (string, error) {
	if !collectionName.MatchString(name) {
		return "", fmt.Errorf("invalid collection name %q", name)
	}
	return filepath.Join(s.dir, name+".json"), nil
}

func (s *fileStore) LoadCollection(ctx context.Context, name string, out any) error {
	_ = ctx
	path, err := s.path(name)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return ErrNotFound
		}
		return fmt.Errorf("load %s: %w", name, err)
	}
	if err := json.Unmarshal(b, out); err != nil {
		return fmt.Errorf("load %s: %w", name, err)
	}
	return nil
}

func (s *fileStore) SaveCollection(ctx context.Context, name string, v any) error {
	_ = ctx
	path, err := s.path(name)
	if err != nil {
		return err
	}
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("save %s: %w", name, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return fmt.Errorf("save %s: %w", name, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("save %s: %w", name, err)
	}
	return nil
}
