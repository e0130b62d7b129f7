package storage

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/LucaPlaster/MyGeoEyes/pkg/types"
)

const (
	partSuffix = "_part"
	tempPrefix = ".upload-"
)

// PartStore keeps object parts as files in a single directory. Writes go
// through a temp file and a rename so a reader never sees a partial part.
type PartStore struct {
	dir string
	mu  sync.RWMutex
}

func NewPartStore(dir string) (*PartStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create part directory: %w", err)
	}
	return &PartStore{dir: dir}, nil
}

func (s *PartStore) Dir() string {
	return s.dir
}

func (s *PartStore) path(key types.PartKey) string {
	return filepath.Join(s.dir, url.PathEscape(key.Object)+partSuffix+strconv.Itoa(key.Index))
}

func (s *PartStore) Put(key types.PartKey, data []byte) error {
	if key.Object == "" || key.Index < 0 {
		return fmt.Errorf("invalid part key %s", key)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tmp, err := os.CreateTemp(s.dir, tempPrefix+"*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write part %s: %w", key, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to sync part %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close part %s: %w", key, err)
	}
	if err := os.Rename(tmpName, s.path(key)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to commit part %s: %w", key, err)
	}
	return nil
}

// Get returns the part bytes and whether the part exists.
func (s *PartStore) Get(key types.PartKey) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := os.ReadFile(s.path(key))
	if errors.Is(err, os.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read part %s: %w", key, err)
	}
	if data == nil {
		data = []byte{}
	}
	return data, true, nil
}

// Delete removes a part and reports whether it existed.
func (s *PartStore) Delete(key types.PartKey) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.path(key))
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to delete part %s: %w", key, err)
	}
	return true, nil
}

// Stats returns the number of stored parts and their total size.
func (s *PartStore) Stats() (int64, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to list part directory: %w", err)
	}

	var count, size int64
	for _, entry := range entries {
		if entry.IsDir() || !strings.Contains(entry.Name(), partSuffix) || strings.HasPrefix(entry.Name(), tempPrefix) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		count++
		size += info.Size()
	}
	return count, size, nil
}
