// Package storage persists ingestion indexes keyed by content fingerprint and
// keeps a catalog of ingestion runs.
package storage

import (
	"context"
	"errors"

	"github.com/hyperjump/digitrace/internal/models"
)

var (
	// ErrNotFound is returned when no index is stored under a key.
	ErrNotFound = errors.New("index not found")
	// ErrInvalidKey is returned for keys that are not lowercase hex.
	ErrInvalidKey = errors.New("invalid cache key")
)

// IndexStore maps a fingerprint key to a persisted index.
type IndexStore interface {
	// Put persists idx under key and returns the artifact path. An existing
	// artifact is replaced.
	Put(ctx context.Context, key string, idx models.Index) (string, error)
	// Get loads the index stored under key or returns ErrNotFound.
	Get(ctx context.Context, key string) (models.Index, error)
	Exists(ctx context.Context, key string) (bool, error)
	// Path returns where key is or would be stored.
	Path(key string) string
	// Keys lists every stored key in lexicographic order.
	Keys(ctx context.Context) ([]string, error)
}

// Catalog records ingestion runs.
type Catalog interface {
	RecordRun(ctx context.Context, run models.Run) error
	// ListRuns returns the newest runs first. limit <= 0 returns all.
	ListRuns(ctx context.Context, limit int) ([]models.Run, error)
	// LatestRun returns the newest run or ErrNotFound.
	LatestRun(ctx context.Context) (models.Run, error)
	CountRuns(ctx context.Context) (int64, error)
	Close() error
}

// ValidKey reports whether key is a non-empty lowercase hex string.
func ValidKey(key string) bool {
	if key == "" {
		return false
	}
	for _, r := range key {
		if (r < '0' || r > '9') && (r < 'a' || r > 'f') {
			return false
		}
	}
	return true
}
