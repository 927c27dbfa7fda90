package cache

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

var ErrInvalidKey = errors.New("tileview: invalid cache key")

// FSStore keeps each entry in its own file, sharded by the first two key characters
// (e.g. "<root>/3f/3fa9...").
type FSStore struct {
	rootDir string
	logger  *slog.Logger
}

// NewFSStore creates the root directory if needed.
func NewFSStore(rootDir string, opts ...Option) (*FSStore, error) {
	if err := os.MkdirAll(rootDir, 0755); err != nil {
		return nil, err
	}
	return &FSStore{rootDir: rootDir, logger: newConfig(opts).Logger}, nil
}

func (s *FSStore) path(key string) (string, error) {
	if len(key) < 3 || filepath.Base(key) != key {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return filepath.Join(s.rootDir, key[:2], key), nil
}

func (s *FSStore) Get(key string) ([]byte, bool, error) {
	filePath, err := s.path(key)
	if err != nil {
		return nil, false, err
	}
	data, err := os.ReadFile(filePath)
	if os.IsNotExist(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

// Put writes through a temporary file and renames it, so readers never see a
// partially written entry.
func (s *FSStore) Put(key string, data []byte) error {
	filePath, err := s.path(key)
	if err != nil {
		return err
	}

	dirPath := filepath.Dir(filePath)
	if err := os.MkdirAll(dirPath, 0755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dirPath, ".tmp-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	s.logger.Debug("tileview: cache write", "path", filePath, "bytes", len(data))
	return os.Rename(tmp.Name(), filePath)
}
