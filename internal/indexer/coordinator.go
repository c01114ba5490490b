// Package indexer runs the extraction adapter over a resolved file set with a
// bounded worker pool and aggregates the results into one index.
package indexer

import (
	"context"
	"runtime"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hyperjump/digitrace/internal/models"
)

// Phase names recorded on FileFailure.
const (
	PhaseExtract  = "extract"
	PhaseValidate = "validate"
)

// Processor turns one file into entries. *extract.Adapter satisfies it.
type Processor interface {
	Process(ctx context.Context, path string) ([]models.Entry, error)
}

// ProgressFunc is called by the aggregator after each file completes.
type ProgressFunc func(done, total int)

// Coordinator fans files out to a bounded pool of workers.
type Coordinator struct {
	processor   Processor
	poolSize    int
	fileTimeout time.Duration
	progress    ProgressFunc
	logger      *zap.Logger
}

// CoordinatorOption configures a Coordinator.
type CoordinatorOption func(*Coordinator)

// WithLogger sets a logger for per-file failures.
func WithLogger(l *zap.Logger) CoordinatorOption {
	return func(c *Coordinator) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithPoolSize sets the number of concurrent workers. n <= 0 uses runtime.NumCPU().
func WithPoolSize(n int) CoordinatorOption {
	return func(c *Coordinator) { c.poolSize = n }
}

// WithFileTimeout bounds the time spent on a single file. 0 disables it.
func WithFileTimeout(d time.Duration) CoordinatorOption {
	return func(c *Coordinator) { c.fileTimeout = d }
}

// WithProgress registers a progress callback.
func WithProgress(fn ProgressFunc) CoordinatorOption {
	return func(c *Coordinator) { c.progress = fn }
}

// NewCoordinator creates a coordinator around processor.
func NewCoordinator(processor Processor, opts ...CoordinatorOption) *Coordinator {
	c := &Coordinator{
		processor: processor,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.poolSize <= 0 {
		c.poolSize = runtime.NumCPU()
	}
	return c
}

// PoolSize returns the effective worker count.
func (c *Coordinator) PoolSize() int {
	return c.poolSize
}

type fileResult struct {
	path    string
	entries []models.Entry
	err     error
}

// Run processes every file and returns the aggregated index together with the
// per-file failures. A failing file never stops its siblings. Run returns only
// after every worker has finished. Entry order across files is unspecified.
func (c *Coordinator) Run(ctx context.Context, files []string) (models.Index, []models.FileFailure) {
	idx := models.Index{}
	var failures []models.FileFailure
	if len(files) == 0 {
		return idx, failures
	}

	results := make(chan fileResult)
	done := make(chan struct{})

	// single aggregator; the index and failure list are touched only here
	go func() {
		defer close(done)
		n := 0
		for r := range results {
			n++
			if r.err != nil {
				c.logger.Warn("file extraction failed",
					zap.String("path", r.path), zap.String("phase", PhaseExtract), zap.Error(r.err))
				failures = append(failures, models.FileFailure{Path: r.path, Phase: PhaseExtract, Error: r.err.Error()})
			}
			for _, e := range r.entries {
				if err := e.Validate(); err != nil {
					c.logger.Warn("dropping invalid entry",
						zap.String("path", r.path), zap.String("phase", PhaseValidate), zap.Error(err))
					failures = append(failures, models.FileFailure{Path: e.Source, Phase: PhaseValidate, Error: err.Error()})
					continue
				}
				idx = append(idx, e)
			}
			if c.progress != nil {
				c.progress(n, len(files))
			}
		}
	}()

	var g errgroup.Group
	g.SetLimit(c.poolSize)
	for _, path := range files {
		path := path
		g.Go(func() error {
			entries, err := c.processFile(ctx, path)
			results <- fileResult{path: path, entries: entries, err: err}
			return nil
		})
	}
	_ = g.Wait()
	close(results)
	<-done
	return idx, failures
}

func (c *Coordinator) processFile(ctx context.Context, path string) ([]models.Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if c.fileTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.fileTimeout)
		defer cancel()
	}
	c.logger.Debug("processing file", zap.String("path", path))
	return c.processor.Process(ctx, path)
}
