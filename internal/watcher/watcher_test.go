package watcher

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

type recorder struct {
	mu    sync.Mutex
	roots []string
}

func (r *recorder) onChange(root string) {
	r.mu.Lock()
	r.roots = append(r.roots, root)
	r.mu.Unlock()
}

func (r *recorder) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.roots...)
}

// waitFor polls until at least n callbacks were recorded or the deadline passes.
func (r *recorder) waitFor(n int, timeout time.Duration) []string {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if got := r.snapshot(); len(got) >= n {
			return got
		}
		time.Sleep(20 * time.Millisecond)
	}
	return r.snapshot()
}

func imagesOnly(path string) bool {
	return strings.HasSuffix(strings.ToLower(path), ".png")
}

func TestWatcher_AddRemoveDirectories(t *testing.T) {
	dir := t.TempDir()
	rec := &recorder{}
	w := NewWatcher(nil, true, rec.onChange)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	if err := w.AddDirectory(dir, false); err != nil {
		t.Fatal(err)
	}
	if err := w.AddDirectory(dir, false); err != nil {
		t.Fatal(err)
	}
	dirs := w.Directories()
	if len(dirs) != 1 || dirs[0] != filepath.Clean(dir) {
		t.Errorf("Directories() = %v", dirs)
	}

	if err := w.RemoveDirectory(dir); err != nil {
		t.Fatal(err)
	}
	if len(w.Directories()) != 0 {
		t.Errorf("after remove: %v", w.Directories())
	}
}

func TestWatcher_BurstCollapsesToOneCallback(t *testing.T) {
	dir := t.TempDir()
	rec := &recorder{}
	w := NewWatcher([]string{dir}, true, rec.onChange, WithDebounce(150*time.Millisecond), WithFilter(imagesOnly))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	for _, name := range []string{"a.png", "b.png", "c.png"} {
		if err := writeFile(filepath.Join(dir, name), "x"); err != nil {
			t.Fatal(err)
		}
	}
	got := rec.waitFor(1, 3*time.Second)
	if len(got) == 0 {
		t.Fatal("expected a callback")
	}
	if got[0] != filepath.Clean(dir) {
		t.Errorf("callback root = %q, want %q", got[0], dir)
	}
	// no further events: the burst must not produce more callbacks
	time.Sleep(400 * time.Millisecond)
	if n := len(rec.snapshot()); n != 1 {
		t.Errorf("expected 1 callback for the burst, got %d", n)
	}
}

func TestWatcher_FilterIgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	rec := &recorder{}
	w := NewWatcher([]string{dir}, true, rec.onChange, WithDebounce(50*time.Millisecond), WithFilter(imagesOnly))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	if err := writeFile(filepath.Join(dir, "notes.txt"), "123"); err != nil {
		t.Fatal(err)
	}
	time.Sleep(400 * time.Millisecond)
	if got := rec.snapshot(); len(got) != 0 {
		t.Errorf("unsupported file should not trigger, got %v", got)
	}
}

func TestWatcher_RemovalTriggersCallback(t *testing.T) {
	dir := t.TempDir()
	img := filepath.Join(dir, "a.png")
	if err := writeFile(img, "x"); err != nil {
		t.Fatal(err)
	}
	rec := &recorder{}
	w := NewWatcher([]string{dir}, true, rec.onChange, WithDebounce(50*time.Millisecond), WithFilter(imagesOnly))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	if err := os.Remove(img); err != nil {
		t.Fatal(err)
	}
	if got := rec.waitFor(1, 3*time.Second); len(got) == 0 {
		t.Error("expected a callback after removing a watched file")
	}
}

func TestWatcher_SyncExistingFiles(t *testing.T) {
	withImages := t.TempDir()
	withoutImages := t.TempDir()
	if err := writeFile(filepath.Join(withImages, "a.png"), "x"); err != nil {
		t.Fatal(err)
	}
	if err := writeFile(filepath.Join(withoutImages, "ignore.txt"), "x"); err != nil {
		t.Fatal(err)
	}

	rec := &recorder{}
	w := NewWatcher([]string{withImages, withoutImages}, true, rec.onChange,
		WithDebounce(20*time.Millisecond), WithFilter(imagesOnly))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()
	w.SyncExistingFiles()

	rec.waitFor(1, 3*time.Second)
	time.Sleep(200 * time.Millisecond)
	got := rec.snapshot()
	if len(got) != 1 || got[0] != filepath.Clean(withImages) {
		t.Errorf("expected one callback for %s, got %v", withImages, got)
	}
}

func TestWatcher_HandleNewDirectory_recursiveSubfolders(t *testing.T) {
	dir := t.TempDir()
	rec := &recorder{}
	w := NewWatcher([]string{dir}, true, rec.onChange, WithDebounce(100*time.Millisecond), WithFilter(imagesOnly))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	nested := filepath.Join(dir, "level1", "level2")
	if err := mkdirAll(nested); err != nil {
		t.Fatal(err)
	}
	// give the watcher time to add the new directories
	time.Sleep(200 * time.Millisecond)
	if err := writeFile(filepath.Join(nested, "deep.png"), "x"); err != nil {
		t.Fatal(err)
	}
	got := rec.waitFor(1, 3*time.Second)
	if len(got) == 0 || got[0] != filepath.Clean(dir) {
		t.Errorf("expected a callback for the root, got %v", got)
	}
}

func TestWatcher_Start_createsMissingRootDirectory(t *testing.T) {
	base := t.TempDir()
	root := filepath.Join(base, "watch", "me")

	w := NewWatcher([]string{root}, true, nil)
	if err := w.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	if _, err := os.Stat(root); err != nil {
		t.Errorf("root directory should exist after Start: %v", err)
	}
}

func TestWatcher_RootForPrefersMostSpecific(t *testing.T) {
	w := NewWatcher([]string{"/scans", "/scans/inbox"}, true, nil)
	tests := []struct {
		path string
		want string
		ok   bool
	}{
		{"/scans/a.png", "/scans", true},
		{"/scans/inbox/b.png", "/scans/inbox", true},
		{"/other/c.png", "", false},
	}
	for _, tt := range tests {
		got, ok := w.rootFor(tt.path)
		if got != tt.want || ok != tt.ok {
			t.Errorf("rootFor(%q) = %q, %v; want %q, %v", tt.path, got, ok, tt.want, tt.ok)
		}
	}
}

func TestInDir(t *testing.T) {
	tests := []struct {
		dir  string
		path string
		want bool
	}{
		{"/tmp/a", "/tmp/a", true},
		{"/tmp/a", "/tmp/a/b.png", true},
		{"/tmp/a", "/tmp/b", false},
		{"/tmp/a", "/tmp/a/../b", false},
	}
	for _, tt := range tests {
		got := inDir(tt.dir, tt.path)
		if got != tt.want {
			t.Errorf("inDir(%q, %q) = %v, want %v", tt.dir, tt.path, got, tt.want)
		}
	}
}

func mkdirAll(path string) error {
	return os.MkdirAll(path, 0755)
}

func writeFile(path, content string) error {
	return os.WriteFile(path, []byte(content), 0600)
}
