package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"github.com/hyperjump/digitrace/internal/config"
	"github.com/hyperjump/digitrace/internal/models"
	"github.com/hyperjump/digitrace/internal/pipeline"
	"github.com/hyperjump/digitrace/internal/storage"
	"github.com/hyperjump/digitrace/internal/testutil"
)

type mockWatchService struct {
	dirs []string
}

func (m *mockWatchService) Directories() []string {
	return append([]string(nil), m.dirs...)
}

func (m *mockWatchService) AddDirectory(path string, _ bool) error {
	for _, d := range m.dirs {
		if d == path {
			return nil
		}
	}
	m.dirs = append(m.dirs, path)
	return nil
}

func (m *mockWatchService) RemoveDirectory(path string) error {
	for i, d := range m.dirs {
		if d == path {
			m.dirs = append(m.dirs[:i], m.dirs[i+1:]...)
			return nil
		}
	}
	return nil
}

type testEnv struct {
	dir    string
	inputs string
	p      *pipeline.Pipeline
	srv    *Server
	router http.Handler
}

// newTestEnv builds a server over a real pipeline whose inputs directory holds
// a.png ("42") and b.png ("420").
func newTestEnv(t *testing.T, watch WatchService) *testEnv {
	t.Helper()
	dir := t.TempDir()
	inputs := filepath.Join(dir, "inputs")
	if err := testutil.WriteFile(filepath.Join(inputs, "a.png"), testutil.PNG(40, 30, 1)); err != nil {
		t.Fatal(err)
	}
	if err := testutil.WriteFile(filepath.Join(inputs, "b.png"), testutil.PNG(40, 30, 2)); err != nil {
		t.Fatal(err)
	}
	engine := testutil.NewFakeEngine().
		Set("a.png", testutil.Token{Value: "42", Region: models.QuadFromRect(10, 10, 30, 20)}).
		Set("b.png", testutil.Token{Value: "420", Region: models.QuadFromRect(5, 5, 25, 15)})

	store := storage.NewJSONStore(filepath.Join(dir, "cache"))
	catalog, err := storage.NewSQLiteCatalog(filepath.Join(dir, "cache", "catalog.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = catalog.Close() })

	cfg := config.PipelineConfig{ScratchDir: filepath.Join(dir, "temp"), CacheDir: store.Dir(), PoolSize: 2}
	p := pipeline.New(cfg, engine, &testutil.FakeRasterizer{Pages: 1}, store, pipeline.WithCatalog(catalog))
	srv := NewServer(p, &config.ServerConfig{Port: 8080}, zap.NewNop(), watch, "", nil)
	return &testEnv{dir: dir, inputs: inputs, p: p, srv: srv, router: srv.Router()}
}

func (e *testEnv) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	r := httptest.NewRequest(method, path, &buf)
	r.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, r)
	return w
}

func (e *testEnv) ingest(t *testing.T) models.IngestResult {
	t.Helper()
	w := e.do(t, http.MethodPost, "/api/v1/ingest", map[string][]string{"paths": {e.inputs}})
	if w.Code != http.StatusOK {
		t.Fatalf("ingest status: got %d, body: %s", w.Code, w.Body.String())
	}
	var res models.IngestResult
	if err := json.NewDecoder(w.Body).Decode(&res); err != nil {
		t.Fatal(err)
	}
	return res
}

func TestHandleHealth(t *testing.T) {
	env := newTestEnv(t, nil)
	w := env.do(t, http.MethodGet, "/health", nil)
	if w.Code != http.StatusOK {
		t.Errorf("status: got %d", w.Code)
	}
}

func TestHandleIngest(t *testing.T) {
	env := newTestEnv(t, nil)
	res := env.ingest(t)
	if res.Key == "" || res.CacheHit {
		t.Errorf("first ingest: got %+v", res)
	}
	if res.Files != 2 || res.Tokens != 2 {
		t.Errorf("counts: files=%d tokens=%d", res.Files, res.Tokens)
	}
	again := env.ingest(t)
	if !again.CacheHit || again.Key != res.Key {
		t.Errorf("second ingest should hit the cache: %+v", again)
	}
}

func TestHandleIngest_badRequests(t *testing.T) {
	env := newTestEnv(t, nil)
	tests := []struct {
		name string
		body interface{}
		want int
	}{
		{"no paths", map[string][]string{"paths": {}}, http.StatusBadRequest},
		{"missing input", map[string][]string{"paths": {filepath.Join(env.dir, "nope")}}, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, http.MethodPost, "/api/v1/ingest", tt.body)
			if w.Code != tt.want {
				t.Errorf("status: got %d, want %d, body: %s", w.Code, tt.want, w.Body.String())
			}
		})
	}

	r := httptest.NewRequest(http.MethodPost, "/api/v1/ingest", bytes.NewReader([]byte("{not json")))
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, r)
	if w.Code != http.StatusBadRequest {
		t.Errorf("malformed body: got %d", w.Code)
	}
}

func TestHandleSearch(t *testing.T) {
	env := newTestEnv(t, nil)
	res := env.ingest(t)

	w := env.do(t, http.MethodPost, "/api/v1/search", models.MatchQuery{Key: res.Key, Query: "42", Tolerance: 1})
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d, body: %s", w.Code, w.Body.String())
	}
	var resp models.MatchResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.Total != 2 || len(resp.Matches) != 2 {
		t.Fatalf("matches: got %+v", resp)
	}
	if resp.Matches[0].Value != "42" || resp.Matches[0].Distance != 0 {
		t.Errorf("first match: got %+v", resp.Matches[0])
	}
	if resp.Matches[1].Value != "420" || resp.Matches[1].Distance != 1 {
		t.Errorf("second match: got %+v", resp.Matches[1])
	}

	// empty key selects the latest run
	w = env.do(t, http.MethodPost, "/api/v1/search", models.MatchQuery{Query: "420"})
	if w.Code != http.StatusOK {
		t.Fatalf("latest: got %d, body: %s", w.Code, w.Body.String())
	}
}

func TestHandleSearch_errors(t *testing.T) {
	env := newTestEnv(t, nil)
	res := env.ingest(t)
	tests := []struct {
		name  string
		query models.MatchQuery
		want  int
	}{
		{"negative tolerance", models.MatchQuery{Key: res.Key, Query: "42", Tolerance: -1}, http.StatusBadRequest},
		{"empty query", models.MatchQuery{Key: res.Key}, http.StatusBadRequest},
		{"invalid key", models.MatchQuery{Key: "not-a-key", Query: "42"}, http.StatusBadRequest},
		{"unknown key", models.MatchQuery{Key: "abcdef0123", Query: "42"}, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, http.MethodPost, "/api/v1/search", tt.query)
			if w.Code != tt.want {
				t.Errorf("status: got %d, want %d, body: %s", w.Code, tt.want, w.Body.String())
			}
		})
	}
}

func TestHandleSearch_noRunsYet(t *testing.T) {
	env := newTestEnv(t, nil)
	w := env.do(t, http.MethodPost, "/api/v1/search", models.MatchQuery{Query: "42"})
	if w.Code != http.StatusNotFound {
		t.Errorf("status: got %d, want 404", w.Code)
	}
}

func TestHandleSuggest(t *testing.T) {
	env := newTestEnv(t, nil)
	env.ingest(t)
	w := env.do(t, http.MethodPost, "/api/v1/suggest", map[string]interface{}{"query": "4", "n": 1})
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d, body: %s", w.Code, w.Body.String())
	}
	var out struct {
		Suggestions []struct {
			Value    string `json:"value"`
			Distance int    `json:"distance"`
		} `json:"suggestions"`
	}
	if err := json.NewDecoder(w.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if len(out.Suggestions) != 1 || out.Suggestions[0].Value != "42" {
		t.Errorf("suggestions: got %+v", out.Suggestions)
	}
}

func TestHandleAnnotate(t *testing.T) {
	env := newTestEnv(t, nil)
	match := models.Match{
		Value:  "42",
		Source: filepath.Join(env.inputs, "a.png"),
		Region: models.QuadFromRect(10, 10, 30, 20),
	}
	w := env.do(t, http.MethodPost, "/api/v1/annotate", match)
	if w.Code != http.StatusCreated {
		t.Fatalf("status: got %d, body: %s", w.Code, w.Body.String())
	}
	var out map[string]string
	if err := json.NewDecoder(w.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(out["path"]); err != nil {
		t.Fatalf("annotated file: %v", err)
	}

	w = env.do(t, http.MethodGet, "/api/v1/annotated?path="+out["path"], nil)
	if w.Code != http.StatusOK {
		t.Fatalf("serve annotated: got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "image/png" {
		t.Errorf("content type: got %q", ct)
	}

	w = env.do(t, http.MethodGet, "/api/v1/annotated?path="+filepath.Join(env.inputs, "a.png"), nil)
	if w.Code != http.StatusForbidden {
		t.Errorf("outside annotation dir: got %d, want 403", w.Code)
	}
}

func TestHandleAnnotate_missingSource(t *testing.T) {
	env := newTestEnv(t, nil)
	match := models.Match{Value: "1", Source: filepath.Join(env.dir, "gone.png")}
	w := env.do(t, http.MethodPost, "/api/v1/annotate", match)
	if w.Code != http.StatusNotFound {
		t.Errorf("status: got %d, want 404", w.Code)
	}
	w = env.do(t, http.MethodPost, "/api/v1/annotate", models.Match{Value: "1"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("no source: got %d, want 400", w.Code)
	}
}

func TestHandleRunsAndStatus(t *testing.T) {
	env := newTestEnv(t, &mockWatchService{dirs: []string{"/tmp/scans"}})
	res := env.ingest(t)
	env.ingest(t)

	w := env.do(t, http.MethodGet, "/api/v1/runs?limit=1", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("runs: got %d", w.Code)
	}
	var runs struct {
		Runs []models.Run `json:"runs"`
	}
	if err := json.NewDecoder(w.Body).Decode(&runs); err != nil {
		t.Fatal(err)
	}
	if len(runs.Runs) != 1 || !runs.Runs[0].CacheHit || runs.Runs[0].Key != res.Key {
		t.Errorf("runs: got %+v", runs.Runs)
	}

	w = env.do(t, http.MethodGet, "/api/v1/runs?limit=x", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("bad limit: got %d", w.Code)
	}

	w = env.do(t, http.MethodGet, "/api/v1/status", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d", w.Code)
	}
	var st struct {
		Status           models.Status `json:"status"`
		WatchDirectories []string      `json:"watch_directories"`
	}
	if err := json.NewDecoder(w.Body).Decode(&st); err != nil {
		t.Fatal(err)
	}
	if st.Status.Indexes != 1 || st.Status.Runs != 2 {
		t.Errorf("status: got %+v", st.Status)
	}
	if len(st.WatchDirectories) != 1 || st.WatchDirectories[0] != "/tmp/scans" {
		t.Errorf("watch directories: got %v", st.WatchDirectories)
	}
}

func TestHandleWatchDirectoriesList(t *testing.T) {
	env := newTestEnv(t, &mockWatchService{dirs: []string{"/tmp/docs"}})
	w := env.do(t, http.MethodGet, "/api/v1/watch/directories", nil)
	if w.Code != http.StatusOK {
		t.Errorf("status: got %d", w.Code)
	}
	var out struct {
		Directories []string `json:"directories"`
	}
	if err := json.NewDecoder(w.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if len(out.Directories) != 1 || out.Directories[0] != "/tmp/docs" {
		t.Errorf("directories: got %v", out.Directories)
	}
}

func TestHandleWatchDirectoriesList_NotEnabled(t *testing.T) {
	env := newTestEnv(t, nil)
	w := env.do(t, http.MethodGet, "/api/v1/watch/directories", nil)
	if w.Code != http.StatusNotImplemented {
		t.Errorf("status: got %d, want 501", w.Code)
	}
}

func TestHandleWatchDirectoriesAdd(t *testing.T) {
	mock := &mockWatchService{}
	env := newTestEnv(t, mock)
	w := env.do(t, http.MethodPost, "/api/v1/watch/directories", map[string]string{"path": env.inputs})
	if w.Code != http.StatusCreated {
		t.Errorf("status: got %d, body: %s", w.Code, w.Body.String())
	}
	if len(mock.Directories()) != 1 {
		t.Errorf("expected 1 directory, got %v", mock.Directories())
	}

	w = env.do(t, http.MethodPost, "/api/v1/watch/directories", map[string]string{"path": env.dir + "/nonexistent"})
	if w.Code != http.StatusNotFound {
		t.Errorf("nonexistent: got %d", w.Code)
	}
	w = env.do(t, http.MethodPost, "/api/v1/watch/directories", map[string]string{"path": filepath.Join(env.inputs, "a.png")})
	if w.Code != http.StatusBadRequest {
		t.Errorf("file path: got %d", w.Code)
	}
}

func TestHandleWatchDirectoriesAdd_persistsConfig(t *testing.T) {
	mock := &mockWatchService{}
	env := newTestEnv(t, mock)
	cfgPath := filepath.Join(env.dir, "config.yaml")
	appCfg := config.Default(env.dir)
	env.srv.configPath = cfgPath
	env.srv.appConfig = appCfg

	w := env.do(t, http.MethodPost, "/api/v1/watch/directories", map[string]string{"path": env.inputs})
	if w.Code != http.StatusCreated {
		t.Fatalf("status: got %d", w.Code)
	}
	loaded, err := config.Load(cfgPath)
	if err != nil {
		t.Fatal(err)
	}
	if len(loaded.Watch.Directories) != 1 || loaded.Watch.Directories[0] != env.inputs {
		t.Errorf("persisted directories: got %v", loaded.Watch.Directories)
	}
}

func TestHandleWatchDirectoriesRemove(t *testing.T) {
	env0 := t.TempDir()
	mock := &mockWatchService{dirs: []string{env0}}
	env := newTestEnv(t, mock)
	w := env.do(t, http.MethodDelete, "/api/v1/watch/directories?path="+env0, nil)
	if w.Code != http.StatusOK {
		t.Errorf("status: got %d", w.Code)
	}
	if len(mock.Directories()) != 0 {
		t.Errorf("expected 0 directories, got %v", mock.Directories())
	}
	w = env.do(t, http.MethodDelete, "/api/v1/watch/directories", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("no path: got %d", w.Code)
	}
}

func TestInDir(t *testing.T) {
	tests := []struct {
		dir  string
		path string
		want bool
	}{
		{"/tmp/a", "/tmp/a/b.png", true},
		{"/tmp/a", "/tmp/a/sub/b.png", true},
		{"/tmp/a", "/tmp/b/c.png", false},
		{"/tmp/a", "/tmp/a/../b.png", false},
	}
	for _, tt := range tests {
		if got := inDir(tt.dir, filepath.Clean(tt.path)); got != tt.want {
			t.Errorf("inDir(%q, %q) = %v, want %v", tt.dir, tt.path, got, tt.want)
		}
	}
}
