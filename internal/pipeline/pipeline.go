// Package pipeline wires file resolution, fingerprinting, extraction, storage
// and matching into the ingest, query and annotate entry points.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/hyperjump/digitrace/internal/annotate"
	"github.com/hyperjump/digitrace/internal/config"
	"github.com/hyperjump/digitrace/internal/extract"
	"github.com/hyperjump/digitrace/internal/fileid"
	"github.com/hyperjump/digitrace/internal/fileset"
	"github.com/hyperjump/digitrace/internal/indexer"
	"github.com/hyperjump/digitrace/internal/models"
	"github.com/hyperjump/digitrace/internal/ocr"
	"github.com/hyperjump/digitrace/internal/search"
	"github.com/hyperjump/digitrace/internal/storage"
)

// Pipeline is the entry point used by the CLI, the HTTP server and the watcher.
type Pipeline struct {
	cfg       config.PipelineConfig
	adapter   *extract.Adapter
	store     storage.IndexStore
	catalog   storage.Catalog
	matcher   *search.Engine
	annotator *annotate.Annotator
	progress  indexer.ProgressFunc
	logger    *zap.Logger

	matcherOpts   []search.EngineOption
	annotatorOpts []annotate.Option

	// concurrent ingests of the same file set share one extraction
	inflight singleflight.Group
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the logger passed down to every component.
func WithLogger(l *zap.Logger) Option {
	return func(p *Pipeline) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithCatalog records every ingestion run in c.
func WithCatalog(c storage.Catalog) Option {
	return func(p *Pipeline) { p.catalog = c }
}

// WithProgress reports per-file extraction progress.
func WithProgress(fn indexer.ProgressFunc) Option {
	return func(p *Pipeline) { p.progress = fn }
}

// WithSearchOptions configures the match engine.
func WithSearchOptions(opts ...search.EngineOption) Option {
	return func(p *Pipeline) { p.matcherOpts = append(p.matcherOpts, opts...) }
}

// WithAnnotateOptions configures the region annotator.
func WithAnnotateOptions(opts ...annotate.Option) Option {
	return func(p *Pipeline) { p.annotatorOpts = append(p.annotatorOpts, opts...) }
}

// New creates a pipeline. rasterizer may be nil when no PDFs are expected.
func New(cfg config.PipelineConfig, engine ocr.Engine, rasterizer ocr.Rasterizer, store storage.IndexStore, opts ...Option) *Pipeline {
	p := &Pipeline{
		cfg:    cfg,
		store:  store,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.adapter = extract.NewAdapter(engine, rasterizer, extract.Config{
		ScratchDir:  cfg.ScratchDir,
		DPI:         cfg.RasterDPI,
		MaxPages:    cfg.MaxPages,
		JPEGQuality: cfg.JPEGQuality,
	}, extract.WithLogger(p.logger))
	p.matcher = search.NewEngine(store, append([]search.EngineOption{search.WithLogger(p.logger)}, p.matcherOpts...)...)
	p.annotator = annotate.New(cfg.ScratchDir, append([]annotate.Option{annotate.WithLogger(p.logger)}, p.annotatorOpts...)...)
	return p
}

// Store returns the index store.
func (p *Pipeline) Store() storage.IndexStore {
	return p.store
}

// Catalog returns the run catalog, or nil.
func (p *Pipeline) Catalog() storage.Catalog {
	return p.catalog
}

// Annotator returns the region annotator.
func (p *Pipeline) Annotator() *annotate.Annotator {
	return p.annotator
}

// Ingest resolves paths, fingerprints the resulting files and returns the
// location of their index, extracting only on a cache miss.
//
// Resolution and fingerprint failures abort the request. Per-file extraction
// failures are reported in the result and never abort siblings. A failure to
// persist the index is returned.
func (p *Pipeline) Ingest(ctx context.Context, paths []string) (*models.IngestResult, error) {
	if p.cfg.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.cfg.RequestTimeout)
		defer cancel()
	}
	start := time.Now()
	requestID := uuid.New().String()
	log := p.logger.With(zap.String("request_id", requestID))

	files, err := fileset.Resolve(paths)
	if err != nil {
		return nil, fmt.Errorf("resolve inputs: %w", err)
	}
	key, err := fileid.ContentDigest(files)
	if err != nil {
		return nil, fmt.Errorf("fingerprint inputs: %w", err)
	}
	log.Info("ingestion started", zap.String("key", key), zap.Int("files", len(files)))

	var (
		v      interface{}
		shared bool
	)
	for {
		v, err, shared = p.inflight.Do(key, func() (interface{}, error) {
			return p.ingestKey(ctx, log, key, files)
		})
		// a joined run ends with the leader's context; start over while ours is live
		if err != nil && shared && ctx.Err() == nil && isContextErr(err) {
			log.Debug("shared ingestion cancelled by another request, retrying", zap.String("key", key))
			continue
		}
		break
	}
	if err != nil {
		return nil, err
	}
	result := *v.(*models.IngestResult)
	result.RequestID = requestID
	result.Inputs = paths
	result.Duration = time.Since(start)
	if shared {
		log.Debug("joined in-flight ingestion", zap.String("key", key))
	}

	p.recordRun(ctx, log, &result)
	log.Info("ingestion finished",
		zap.String("key", key),
		zap.Bool("cache_hit", result.CacheHit),
		zap.Int("files", result.Files),
		zap.Int("entries", result.Entries),
		zap.Int("tokens", result.Tokens),
		zap.Int("failures", len(result.Failures)),
		zap.Duration("duration", result.Duration))
	return &result, nil
}

func isContextErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func (p *Pipeline) ingestKey(ctx context.Context, log *zap.Logger, key string, files []string) (*models.IngestResult, error) {
	result := &models.IngestResult{Key: key, Path: p.store.Path(key), Files: len(files)}

	hit, err := p.store.Exists(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("check cache: %w", err)
	}
	if hit {
		result.CacheHit = true
		idx, err := p.store.Get(ctx, key)
		if err != nil {
			// the artifact exists; counts are informational only
			log.Warn("cached index unreadable", zap.String("key", key), zap.Error(err))
		} else {
			result.Entries = len(idx)
			result.Tokens = idx.Tokens()
		}
		return result, nil
	}

	coord := indexer.NewCoordinator(p.adapter,
		indexer.WithPoolSize(p.cfg.PoolSize),
		indexer.WithFileTimeout(p.cfg.FileTimeout),
		indexer.WithProgress(p.progress),
		indexer.WithLogger(p.logger),
	)
	idx, failures := coord.Run(ctx, files)
	if err := ctx.Err(); err != nil {
		// a cancelled run would cache a partial index under the full key
		return nil, fmt.Errorf("ingestion interrupted: %w", err)
	}
	path, err := p.store.Put(ctx, key, idx)
	if err != nil {
		return nil, fmt.Errorf("persist index: %w", err)
	}
	result.Path = path
	result.Entries = len(idx)
	result.Tokens = idx.Tokens()
	result.Failures = failures
	return result, nil
}

func (p *Pipeline) recordRun(ctx context.Context, log *zap.Logger, result *models.IngestResult) {
	if p.catalog == nil {
		return
	}
	if err := p.catalog.RecordRun(context.WithoutCancel(ctx), models.RunFromResult(result)); err != nil {
		log.Warn("failed to record ingestion run", zap.String("key", result.Key), zap.Error(err))
	}
}

// ResolveKey turns an identifier (key or cache file path) into a key. An empty
// identifier selects the most recent ingestion run.
func (p *Pipeline) ResolveKey(ctx context.Context, identifier string) (string, error) {
	if identifier != "" {
		return storage.ResolveKey(identifier)
	}
	if p.catalog == nil {
		return "", fmt.Errorf("%w: no index given and no catalog configured", storage.ErrNotFound)
	}
	run, err := p.catalog.LatestRun(ctx)
	if err != nil {
		return "", err
	}
	return run.Key, nil
}

// Query returns every value in the identified index within tolerance of
// query, ordered by distance. An unknown index returns storage.ErrNotFound.
func (p *Pipeline) Query(ctx context.Context, identifier, query string, tolerance int) ([]models.Match, error) {
	key, err := p.ResolveKey(ctx, identifier)
	if err != nil {
		return nil, err
	}
	idx, err := p.store.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	matches, err := p.matcher.Match(idx, query, tolerance)
	if err != nil {
		return nil, err
	}
	models.SortMatches(matches)
	return matches, nil
}

// Search runs q and returns a response with totals and timing. An empty
// q.Key selects the most recent ingestion run.
func (p *Pipeline) Search(ctx context.Context, q *models.MatchQuery) (*models.MatchResponse, error) {
	key, err := p.ResolveKey(ctx, q.Key)
	if err != nil {
		return nil, err
	}
	resolved := *q
	resolved.Key = key
	return p.matcher.Search(ctx, &resolved)
}

// Suggest returns up to n values closest to query in the identified index.
func (p *Pipeline) Suggest(ctx context.Context, identifier, query string, n int) ([]search.Suggestion, error) {
	key, err := p.ResolveKey(ctx, identifier)
	if err != nil {
		return nil, err
	}
	idx, err := p.store.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	return p.matcher.Suggest(idx, query, n), nil
}

// Annotate writes a copy of match.Source with match.Region outlined and
// returns its path.
func (p *Pipeline) Annotate(ctx context.Context, match models.Match) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return p.annotator.Annotate(match)
}

// Status summarizes the cache and catalog.
func (p *Pipeline) Status(ctx context.Context) (*models.Status, error) {
	keys, err := p.store.Keys(ctx)
	if err != nil {
		return nil, fmt.Errorf("list indexes: %w", err)
	}
	st := &models.Status{Indexes: len(keys)}
	usagePaths := []string{}
	if js, ok := p.store.(*storage.JSONStore); ok {
		st.CacheDir = js.Dir()
		usagePaths = append(usagePaths, js.Dir())
	}
	if p.catalog != nil {
		if st.Runs, err = p.catalog.CountRuns(ctx); err != nil {
			return nil, fmt.Errorf("count runs: %w", err)
		}
		run, err := p.catalog.LatestRun(ctx)
		switch {
		case err == nil:
			st.LatestRun = &run
		case !errors.Is(err, storage.ErrNotFound):
			return nil, fmt.Errorf("latest run: %w", err)
		}
	}
	if st.DiskUsageBytes, err = storage.DiskUsageBytes(usagePaths...); err != nil {
		return nil, fmt.Errorf("disk usage: %w", err)
	}
	return st, nil
}

// Runs lists recorded ingestion runs, newest first. Without a catalog it
// returns an empty list.
func (p *Pipeline) Runs(ctx context.Context, limit int) ([]models.Run, error) {
	if p.catalog == nil {
		return []models.Run{}, nil
	}
	return p.catalog.ListRuns(ctx, limit)
}
