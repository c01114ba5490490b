package models

import (
	"sort"
	"time"
)

// Match is a query-time projection of one extracted value. It is never persisted.
type Match struct {
	Value    string `json:"value"`
	Distance int    `json:"distance"`
	Source   string `json:"image_path"`
	Region   Quad   `json:"bounding_box"`
}

// SortMatches orders matches by distance ascending. Ties fall back to source
// then value so repeated queries print in the same order.
func SortMatches(matches []Match) {
	sort.SliceStable(matches, func(i, j int) bool {
		a, b := matches[i], matches[j]
		if a.Distance != b.Distance {
			return a.Distance < b.Distance
		}
		if a.Source != b.Source {
			return a.Source < b.Source
		}
		return a.Value < b.Value
	})
}

// MatchResponse is the response for a match query.
type MatchResponse struct {
	Key       string  `json:"key"`
	Query     string  `json:"query"`
	Tolerance int     `json:"tolerance"`
	Total     int     `json:"total"`
	Matches   []Match `json:"matches"`
	QueryTime int64   `json:"query_time_ms"`
}

// FileFailure records a per-file problem during ingestion. Failures never
// abort sibling files.
type FileFailure struct {
	Path  string `json:"path"`
	Phase string `json:"phase"`
	Error string `json:"error"`
}

// IngestResult describes the outcome of one ingestion request.
type IngestResult struct {
	RequestID string        `json:"request_id"`
	Key       string        `json:"key"`
	Path      string        `json:"path"`
	CacheHit  bool          `json:"cache_hit"`
	Inputs    []string      `json:"inputs"`
	Files     int           `json:"files"`
	Entries   int           `json:"entries"`
	Tokens    int           `json:"tokens"`
	Failures  []FileFailure `json:"failures,omitempty"`
	Duration  time.Duration `json:"duration_ns"`
}
