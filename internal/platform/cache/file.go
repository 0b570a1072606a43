package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"sheetconsole/internal/platform/crypto"
)

var ErrInvalidKey = errors.New("cache key must be letters, digits, dash or underscore")

var keyPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// FileStore keeps one JSON document per key under Dir. Documents are sealed
// when the box holds a key.
type FileStore struct {
	Dir string
	Box *crypto.Box
}

func NewFileStore(dir string, box *crypto.Box) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	return &FileStore{Dir: dir, Box: box}, nil
}

func (s *FileStore) path(key string) (string, error) {
	if !keyPattern.MatchString(key) {
		return "", ErrInvalidKey
	}
	return filepath.Join(s.Dir, key+".json"), nil
}

func (s *FileStore) Load(_ context.Context, key string, dst any) (bool, error) {
	path, err := s.path(key)
	if err != nil {
		return false, err
	}
	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return decode(s.Box, raw, dst)
}

// Save writes to a temp file in the same directory and renames it over the
// previous document.
func (s *FileStore) Save(_ context.Context, key string, value any) error {
	path, err := s.path(key)
	if err != nil {
		return err
	}
	payload, err := encode(s.Box, value)
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(s.Dir, key+".*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(payload); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func encode(box *crypto.Box, value any) ([]byte, error) {
	plain, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("encode cache entry: %w", err)
	}
	return box.Seal(plain)
}

func decode(box *crypto.Box, raw []byte, dst any) (bool, error) {
	plain, err := box.Open(raw)
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(plain, dst); err != nil {
		return false, fmt.Errorf("decode cache entry: %w", err)
	}
	return true, nil
}
