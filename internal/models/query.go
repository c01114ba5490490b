package models

import (
	"errors"
	"fmt"
)

// ErrInvalidQuery marks a query rejected before it reaches an index.
var ErrInvalidQuery = errors.New("invalid query")

// MatchQuery is a request against a stored index.
type MatchQuery struct {
	// Key is the cache key or cache file path; empty means the latest ingestion run.
	Key       string `json:"key,omitempty"`
	Query     string `json:"query"`
	Tolerance int    `json:"tolerance"`
	Limit     int    `json:"limit,omitempty"`
}

// Validate ensures the query is usable. A tolerance below zero is rejected;
// a zero or negative limit means unlimited.
func (q *MatchQuery) Validate() error {
	if q.Query == "" {
		return fmt.Errorf("%w: query cannot be empty", ErrInvalidQuery)
	}
	if q.Tolerance < 0 {
		return fmt.Errorf("%w: tolerance must be >= 0, got %d", ErrInvalidQuery, q.Tolerance)
	}
	if q.Limit < 0 {
		q.Limit = 0
	}
	return nil
}
