package models

import "time"

// Run is one ingestion request as recorded in the catalog.
type Run struct {
	RequestID string    `json:"request_id"`
	Key       string    `json:"key"`
	Inputs    []string  `json:"inputs"`
	Files     int       `json:"files"`
	Entries   int       `json:"entries"`
	Tokens    int       `json:"tokens"`
	Failures  int       `json:"failures"`
	CacheHit  bool      `json:"cache_hit"`
	CreatedAt time.Time `json:"created_at"`
}

// RunFromResult builds the catalog record for an ingestion result.
func RunFromResult(r *IngestResult) Run {
	return Run{
		RequestID: r.RequestID,
		Key:       r.Key,
		Inputs:    r.Inputs,
		Files:     r.Files,
		Entries:   r.Entries,
		Tokens:    r.Tokens,
		Failures:  len(r.Failures),
		CacheHit:  r.CacheHit,
	}
}

// Status summarizes the cache and catalog.
type Status struct {
	CacheDir       string `json:"cache_dir"`
	Indexes        int    `json:"indexes"`
	Runs           int64  `json:"runs"`
	DiskUsageBytes int64  `json:"disk_usage_bytes"`
	LatestRun      *Run   `json:"latest_run,omitempty"`
}
