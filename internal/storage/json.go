package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/hyperjump/digitrace/internal/models"
)

const indexExt = ".json"

// JSONStore keeps one indented JSON file per key in a directory.
type JSONStore struct {
	dir string
}

// NewJSONStore returns a store rooted at dir. The directory is created on the
// first Put.
func NewJSONStore(dir string) *JSONStore {
	return &JSONStore{dir: dir}
}

// Dir returns the cache directory.
func (s *JSONStore) Dir() string {
	return s.dir
}

// Path returns <dir>/<key>.json.
func (s *JSONStore) Path(key string) string {
	return filepath.Join(s.dir, key+indexExt)
}

// Put writes idx to a temporary file in the cache directory and renames it
// into place, so concurrent writers of the same key leave one complete file.
func (s *JSONStore) Put(ctx context.Context, key string, idx models.Index) (string, error) {
	if !ValidKey(key) {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if idx == nil {
		idx = models.Index{}
	}
	data, err := json.MarshalIndent(idx, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal index: %w", err)
	}
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return "", fmt.Errorf("create cache dir: %w", err)
	}
	tmp, err := os.CreateTemp(s.dir, "."+key+"-*.tmp")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return "", fmt.Errorf("write index: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return "", fmt.Errorf("write index: %w", err)
	}
	path := s.Path(key)
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return "", fmt.Errorf("persist index: %w", err)
	}
	return path, nil
}

// Get loads the index for key.
func (s *JSONStore) Get(ctx context.Context, key string) (models.Index, error) {
	if !ValidKey(key) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.Path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	if err != nil {
		return nil, fmt.Errorf("read index: %w", err)
	}
	idx := models.Index{}
	if err := json.Unmarshal(data, &idx); err != nil {
		return nil, fmt.Errorf("decode index %s: %w", key, err)
	}
	return idx, nil
}

// Exists reports whether an index is stored for key.
func (s *JSONStore) Exists(_ context.Context, key string) (bool, error) {
	if !ValidKey(key) {
		return false, fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	info, err := os.Stat(s.Path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return info.Mode().IsRegular(), nil
}

// Keys lists stored keys. A missing cache directory yields no keys.
func (s *JSONStore) Keys(_ context.Context) ([]string, error) {
	dirEntries, err := os.ReadDir(s.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return []string{}, nil
	}
	if err != nil {
		return nil, err
	}
	keys := []string{}
	for _, de := range dirEntries {
		name := de.Name()
		if de.IsDir() || !strings.HasSuffix(name, indexExt) {
			continue
		}
		if key := strings.TrimSuffix(name, indexExt); ValidKey(key) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// ResolveKey accepts either a bare key or a path to a cache file
// (<anything>/<key>.json) and returns the key.
func ResolveKey(identifier string) (string, error) {
	id := strings.TrimSpace(identifier)
	if strings.HasSuffix(id, indexExt) || strings.ContainsRune(id, filepath.Separator) {
		id = strings.TrimSuffix(filepath.Base(id), indexExt)
	}
	if !ValidKey(id) {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, identifier)
	}
	return id, nil
}
