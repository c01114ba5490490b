// Package search finds extracted values within an edit distance of a query.
package search

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/digitrace/internal/models"
	"github.com/hyperjump/digitrace/internal/storage"
)

// ErrInvalidTolerance is returned for a negative tolerance.
var ErrInvalidTolerance = errors.New("tolerance must be >= 0")

// Metric selects the edit distance used for matching.
type Metric int

const (
	// MetricLevenshtein counts insertions, deletions and substitutions.
	MetricLevenshtein Metric = iota
	// MetricDamerau additionally counts adjacent transpositions as one edit.
	MetricDamerau
)

// ParseMetric maps a config value to a Metric. Empty means Levenshtein.
func ParseMetric(s string) (Metric, error) {
	switch s {
	case "", "levenshtein":
		return MetricLevenshtein, nil
	case "damerau":
		return MetricDamerau, nil
	default:
		return 0, fmt.Errorf("unknown distance metric %q", s)
	}
}

// Engine scans indexes for approximate matches.
type Engine struct {
	store      storage.IndexStore
	metric     Metric
	maxResults int
	logger     *zap.Logger
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithMetric selects the distance metric.
func WithMetric(m Metric) EngineOption {
	return func(e *Engine) { e.metric = m }
}

// WithMaxResults caps Search results when the query sets no limit. 0 = unlimited.
func WithMaxResults(n int) EngineOption {
	return func(e *Engine) { e.maxResults = n }
}

// WithLogger sets a logger.
func WithLogger(l *zap.Logger) EngineOption {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// NewEngine creates an engine. store is only needed for Search.
func NewEngine(store storage.IndexStore, opts ...EngineOption) *Engine {
	e := &Engine{store: store, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Match returns every value in idx within tolerance of query, in index scan
// order. Every entry and every position is visited. No matches yields an
// empty slice. Search returns the same matches sorted by models.SortMatches.
func (e *Engine) Match(idx models.Index, query string, tolerance int) ([]models.Match, error) {
	if tolerance < 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidTolerance, tolerance)
	}
	matches := []models.Match{}
	for _, entry := range idx {
		for i, value := range entry.Values {
			d, ok := e.distance(query, value, tolerance)
			if !ok {
				continue
			}
			m := models.Match{Value: value, Distance: d, Source: entry.Source}
			if i < len(entry.Regions) {
				m.Region = entry.Regions[i]
			}
			matches = append(matches, m)
		}
	}
	return matches, nil
}

func (e *Engine) distance(query, value string, tolerance int) (int, bool) {
	if e.metric == MetricDamerau {
		d := DamerauLevenshteinDistance(query, value)
		return d, d <= tolerance
	}
	return WithinDistance(query, value, tolerance)
}

// Search loads the index for q.Key and returns its matches sorted by
// distance. An unknown key returns storage.ErrNotFound.
func (e *Engine) Search(ctx context.Context, q *models.MatchQuery) (*models.MatchResponse, error) {
	start := time.Now()
	if q.Tolerance < 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidTolerance, q.Tolerance)
	}
	if err := q.Validate(); err != nil {
		return nil, err
	}
	if e.store == nil {
		return nil, errors.New("search engine has no index store")
	}
	key, err := storage.ResolveKey(q.Key)
	if err != nil {
		return nil, err
	}
	idx, err := e.store.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	matches, err := e.Match(idx, q.Query, q.Tolerance)
	if err != nil {
		return nil, err
	}
	models.SortMatches(matches)
	total := len(matches)
	limit := q.Limit
	if limit == 0 {
		limit = e.maxResults
	}
	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	e.logger.Debug("search completed",
		zap.String("key", key), zap.String("query", q.Query), zap.Int("tolerance", q.Tolerance),
		zap.Int("total", total), zap.Duration("took", time.Since(start)))
	return &models.MatchResponse{
		Key:       key,
		Query:     q.Query,
		Tolerance: q.Tolerance,
		Total:     total,
		Matches:   matches,
		QueryTime: time.Since(start).Milliseconds(),
	}, nil
}
