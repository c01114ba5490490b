package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperjump/digitrace/internal/config"
	"github.com/hyperjump/digitrace/internal/extract"
	"github.com/hyperjump/digitrace/internal/models"
	"github.com/hyperjump/digitrace/internal/ocr"
	"github.com/hyperjump/digitrace/internal/storage"
	"github.com/hyperjump/digitrace/internal/testutil"
)

var (
	rect42  = models.QuadFromRect(10, 10, 30, 20)
	rect420 = models.QuadFromRect(5, 5, 25, 15)
)

type fixture struct {
	dir     string
	inputs  string
	engine  *testutil.FakeEngine
	rz      *testutil.FakeRasterizer
	store   *storage.JSONStore
	catalog *storage.SQLiteCatalog
	p       *Pipeline
}

func newFixture(t *testing.T, poolSize int) *fixture {
	t.Helper()
	dir := t.TempDir()
	f := &fixture{
		dir:    dir,
		inputs: filepath.Join(dir, "inputs"),
		engine: testutil.NewFakeEngine(),
		rz:     &testutil.FakeRasterizer{Pages: 2},
		store:  storage.NewJSONStore(filepath.Join(dir, "cache")),
	}
	cat, err := storage.NewSQLiteCatalog(filepath.Join(dir, "cache", "catalog.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = cat.Close() })
	f.catalog = cat

	cfg := config.PipelineConfig{ScratchDir: filepath.Join(dir, "temp"), CacheDir: f.store.Dir(), PoolSize: poolSize}
	f.p = New(cfg, f.engine, f.rz, f.store, WithCatalog(cat))
	return f
}

// writeScenario creates two images: a.png holding "42" and b.png holding "420".
func (f *fixture) writeScenario(t *testing.T) {
	t.Helper()
	require.NoError(t, testutil.WriteFile(filepath.Join(f.inputs, "a.png"), testutil.PNG(40, 30, 1)))
	require.NoError(t, testutil.WriteFile(filepath.Join(f.inputs, "b.png"), testutil.PNG(40, 30, 2)))
	f.engine.Set("a.png", testutil.Token{Value: "42", Region: rect42})
	f.engine.Set("b.png", testutil.Token{Value: "420", Region: rect420})
}

func TestIngestAndQuery_endToEnd(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 2)
	f.writeScenario(t)

	res, err := f.p.Ingest(ctx, []string{f.inputs})
	require.NoError(t, err)
	assert.False(t, res.CacheHit)
	assert.Equal(t, 2, res.Files)
	assert.Equal(t, 2, res.Entries)
	assert.Equal(t, 2, res.Tokens)
	assert.Empty(t, res.Failures)
	assert.Equal(t, f.store.Path(res.Key), res.Path)
	assert.NotEmpty(t, res.RequestID)
	_, err = os.Stat(res.Path)
	require.NoError(t, err)

	exact, err := f.p.Query(ctx, res.Key, "42", 0)
	require.NoError(t, err)
	require.Len(t, exact, 1)
	assert.Equal(t, models.Match{Value: "42", Distance: 0, Source: filepath.Join(f.inputs, "a.png"), Region: rect42}, exact[0])

	near, err := f.p.Query(ctx, res.Path, "42", 1)
	require.NoError(t, err)
	require.Len(t, near, 2)
	assert.Equal(t, 0, near[0].Distance)
	assert.Equal(t, 1, near[1].Distance)
	assert.Equal(t, rect420, near[1].Region)
}

func TestIngest_cacheHitSkipsExtraction(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 4)
	f.writeScenario(t)

	first, err := f.p.Ingest(ctx, []string{f.inputs})
	require.NoError(t, err)
	calls := f.engine.Calls()
	require.Equal(t, 2, calls)

	// same content listed differently resolves to the same set and key
	second, err := f.p.Ingest(ctx, []string{filepath.Join(f.inputs, "b.png"), f.inputs})
	require.NoError(t, err)
	assert.True(t, second.CacheHit)
	assert.Equal(t, first.Key, second.Key)
	assert.Equal(t, first.Path, second.Path)
	assert.Equal(t, 2, second.Tokens)
	assert.Equal(t, calls, f.engine.Calls(), "cache hit must not run extraction")

	// changing a byte changes the key
	require.NoError(t, testutil.WriteFile(filepath.Join(f.inputs, "b.png"), testutil.PNG(40, 30, 3)))
	third, err := f.p.Ingest(ctx, []string{f.inputs})
	require.NoError(t, err)
	assert.False(t, third.CacheHit)
	assert.NotEqual(t, first.Key, third.Key)
}

func TestIngest_poolSizeDoesNotChangeIndex(t *testing.T) {
	ctx := context.Background()
	build := func(pool int) models.Index {
		f := newFixture(t, pool)
		for i := 0; i < 12; i++ {
			name := string(rune('a'+i)) + ".png"
			require.NoError(t, testutil.WriteFile(filepath.Join(f.inputs, name), testutil.PNG(8, 8, byte(i))))
			f.engine.Set(name, testutil.Token{Value: name, Region: rect42})
		}
		res, err := f.p.Ingest(ctx, []string{f.inputs})
		require.NoError(t, err)
		idx, err := f.store.Get(ctx, res.Key)
		require.NoError(t, err)
		return idx
	}
	serial, parallel := build(1), build(8)
	assert.ElementsMatch(t, serial, parallel)
}

func TestIngest_failuresAreIsolated(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 3)
	f.writeScenario(t)
	require.NoError(t, testutil.WriteFile(filepath.Join(f.inputs, "corrupt.jpg"), []byte("not an image")))
	require.NoError(t, testutil.WriteFile(filepath.Join(f.inputs, "notes.txt"), []byte("42")))
	require.NoError(t, testutil.WriteFile(filepath.Join(f.inputs, "doc.pdf"), testutil.MinimalPDF(2)))

	res, err := f.p.Ingest(ctx, []string{f.inputs})
	require.NoError(t, err)
	assert.Equal(t, 5, res.Files)
	// two images + two PDF pages; the text file is skipped silently
	assert.Equal(t, 4, res.Entries)
	require.Len(t, res.Failures, 1)
	assert.Equal(t, filepath.Join(f.inputs, "corrupt.jpg"), res.Failures[0].Path)
	assert.Contains(t, res.Failures[0].Error, extract.ErrDecode.Error())

	idx, err := f.store.Get(ctx, res.Key)
	require.NoError(t, err)
	pages := 0
	for _, e := range idx {
		if filepath.Dir(e.Source) == filepath.Join(f.dir, "temp", "pages") {
			pages++
		}
	}
	assert.Equal(t, 2, pages)
}

func TestIngest_emptyIndexIsPersisted(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 1)
	require.NoError(t, testutil.WriteFile(filepath.Join(f.inputs, "blank.png"), testutil.PNG(4, 4, 0)))

	res, err := f.p.Ingest(ctx, []string{f.inputs})
	require.NoError(t, err)
	assert.Equal(t, 0, res.Tokens)
	ok, err := f.store.Exists(ctx, res.Key)
	require.NoError(t, err)
	assert.True(t, ok)

	matches, err := f.p.Query(ctx, res.Key, "1", 5)
	require.NoError(t, err)
	assert.NotNil(t, matches)
	assert.Empty(t, matches)
}

func TestIngest_missingInputIsFatal(t *testing.T) {
	f := newFixture(t, 1)
	_, err := f.p.Ingest(context.Background(), []string{filepath.Join(f.dir, "nope")})
	assert.ErrorIs(t, err, os.ErrNotExist)
	assert.Equal(t, 0, f.engine.Calls())
}

type failingStore struct {
	*storage.JSONStore
}

func (failingStore) Put(context.Context, string, models.Index) (string, error) {
	return "", errors.New("disk full")
}

func TestIngest_persistenceFailureIsSurfaced(t *testing.T) {
	dir := t.TempDir()
	engine := testutil.NewFakeEngine()
	require.NoError(t, testutil.WriteFile(filepath.Join(dir, "in", "a.png"), testutil.PNG(4, 4, 0)))
	store := failingStore{storage.NewJSONStore(filepath.Join(dir, "cache"))}
	p := New(config.PipelineConfig{ScratchDir: filepath.Join(dir, "temp")}, engine, nil, store)

	_, err := p.Ingest(context.Background(), []string{filepath.Join(dir, "in")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
}

func TestIngest_cancelledRequestIsNotCached(t *testing.T) {
	f := newFixture(t, 1)
	f.writeScenario(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.p.Ingest(ctx, []string{f.inputs})
	assert.ErrorIs(t, err, context.Canceled)
	keys, err := f.store.Keys(context.Background())
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestIngest_concurrentSameInputsExtractOnce(t *testing.T) {
	f := newFixture(t, 2)
	f.writeScenario(t)

	var wg sync.WaitGroup
	keys := make([]string, 6)
	for i := range keys {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := f.p.Ingest(context.Background(), []string{f.inputs})
			if assert.NoError(t, err) {
				keys[i] = res.Key
			}
		}(i)
	}
	wg.Wait()
	for _, k := range keys {
		assert.Equal(t, keys[0], k)
	}
	// every request either shared the in-flight extraction or hit the cache
	assert.Equal(t, 2, f.engine.Calls())
}

func TestIngest_joinedRequestSurvivesLeaderCancellation(t *testing.T) {
	f := newFixture(t, 1)
	f.writeScenario(t)
	started := make(chan struct{})
	var calls atomic.Int32
	// the first extraction blocks until its request is cancelled
	engine := ocr.EngineFunc(func(ctx context.Context, path string) ([]string, []models.Quad, error) {
		if calls.Add(1) == 1 {
			close(started)
			<-ctx.Done()
			return nil, nil, ctx.Err()
		}
		return f.engine.Extract(ctx, path)
	})
	cfg := config.PipelineConfig{ScratchDir: filepath.Join(f.dir, "temp"), CacheDir: f.store.Dir(), PoolSize: 1}
	p := New(cfg, engine, f.rz, f.store)

	leaderCtx, cancelLeader := context.WithCancel(context.Background())
	defer cancelLeader()
	leaderErr := make(chan error, 1)
	go func() {
		_, err := p.Ingest(leaderCtx, []string{f.inputs})
		leaderErr <- err
	}()
	<-started

	type outcome struct {
		res *models.IngestResult
		err error
	}
	joined := make(chan outcome, 1)
	go func() {
		res, err := p.Ingest(context.Background(), []string{f.inputs})
		joined <- outcome{res, err}
	}()
	// give the second request time to join the in-flight run
	time.Sleep(100 * time.Millisecond)
	cancelLeader()

	assert.ErrorIs(t, <-leaderErr, context.Canceled)
	select {
	case out := <-joined:
		require.NoError(t, out.err)
		assert.False(t, out.res.CacheHit)
		assert.Equal(t, 2, out.res.Tokens)
		ok, err := f.store.Exists(context.Background(), out.res.Key)
		require.NoError(t, err)
		assert.True(t, ok)
	case <-time.After(5 * time.Second):
		t.Fatal("joined request did not finish")
	}
}

func TestIngest_recordsRunsInCatalog(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 1)
	f.writeScenario(t)

	first, err := f.p.Ingest(ctx, []string{f.inputs})
	require.NoError(t, err)
	_, err = f.p.Ingest(ctx, []string{f.inputs})
	require.NoError(t, err)

	runs, err := f.catalog.ListRuns(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.True(t, runs[0].CacheHit)
	assert.False(t, runs[1].CacheHit)
	assert.Equal(t, first.Key, runs[1].Key)
	assert.Equal(t, []string{f.inputs}, runs[1].Inputs)
	assert.Equal(t, 2, runs[1].Tokens)

	latest, err := f.p.Runs(ctx, 1)
	require.NoError(t, err)
	require.Len(t, latest, 1)
	assert.Equal(t, runs[0].RequestID, latest[0].RequestID)

	// an empty identifier resolves to the latest run
	matches, err := f.p.Query(ctx, "", "420", 0)
	require.NoError(t, err)
	assert.Len(t, matches, 1)

	st, err := f.p.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, st.Indexes)
	assert.Equal(t, int64(2), st.Runs)
	assert.Greater(t, st.DiskUsageBytes, int64(0))
	require.NotNil(t, st.LatestRun)
	assert.Equal(t, first.Key, st.LatestRun.Key)
}

func TestQuery_errors(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 1)

	_, err := f.p.Query(ctx, "abcdef", "1", 0)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	_, err = f.p.Query(ctx, "", "1", 0)
	assert.ErrorIs(t, err, storage.ErrNotFound, "no runs recorded yet")

	p := New(config.PipelineConfig{ScratchDir: t.TempDir()}, f.engine, nil, f.store)
	_, err = p.Query(ctx, "", "1", 0)
	assert.ErrorIs(t, err, storage.ErrNotFound, "no catalog configured")

	runs, err := p.Runs(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, runs)
}

func TestSearchAndSuggest(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 1)
	f.writeScenario(t)
	_, err := f.p.Ingest(ctx, []string{f.inputs})
	require.NoError(t, err)

	resp, err := f.p.Search(ctx, &models.MatchQuery{Query: "42", Tolerance: 1, Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, 2, resp.Total)
	require.Len(t, resp.Matches, 1)
	assert.Equal(t, "42", resp.Matches[0].Value)

	sugg, err := f.p.Suggest(ctx, "", "4200", 1)
	require.NoError(t, err)
	require.Len(t, sugg, 1)
	assert.Equal(t, "420", sugg[0].Value)
}

func TestAnnotate(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 1)
	f.writeScenario(t)
	res, err := f.p.Ingest(ctx, []string{f.inputs})
	require.NoError(t, err)
	matches, err := f.p.Query(ctx, res.Key, "42", 0)
	require.NoError(t, err)
	require.Len(t, matches, 1)

	out, err := f.p.Annotate(ctx, matches[0])
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(f.dir, "temp", "annotated"), filepath.Dir(out))
	_, err = os.Stat(out)
	assert.NoError(t, err)

	_, err = f.p.Annotate(ctx, models.Match{Source: filepath.Join(f.dir, "missing.png")})
	assert.Error(t, err)
}
