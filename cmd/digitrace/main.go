// Package main is the digitrace CLI entry point.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/digitrace/internal/annotate"
	"github.com/hyperjump/digitrace/internal/cli"
	"github.com/hyperjump/digitrace/internal/config"
	"github.com/hyperjump/digitrace/internal/export"
	"github.com/hyperjump/digitrace/internal/extract"
	"github.com/hyperjump/digitrace/internal/models"
	"github.com/hyperjump/digitrace/internal/ocr"
	"github.com/hyperjump/digitrace/internal/pipeline"
	"github.com/hyperjump/digitrace/internal/search"
	"github.com/hyperjump/digitrace/internal/server"
	"github.com/hyperjump/digitrace/internal/storage"
	"github.com/hyperjump/digitrace/internal/watcher"
	"github.com/hyperjump/digitrace/pkg/utils"
)

var version = "dev"

const (
	defaultConfigPath  = "/usr/local/etc/digitrace/config.yaml"
	defaultSuggestions = 5
)

// loadConfig loads config from path. When path is the default, config.yaml in
// the current directory wins if present; when neither exists, built-in
// defaults rooted at the current directory are used. Returns the config and
// the path that was loaded ("" for built-in defaults).
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		cwd, cwdErr := os.Getwd()
		if cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
		if _, statErr := os.Stat(path); errors.Is(statErr, os.ErrNotExist) && cwdErr == nil {
			return config.Default(cwd), "", nil
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "ingest":
		runIngest()
	case "search":
		runSearch()
	case "annotate":
		runAnnotate()
	case "runs":
		runRuns()
	case "status":
		runStatus()
	case "server":
		runServer()
	case "watch":
		runWatch()
	case "version", "--version", "-v":
		fmt.Printf("digitrace version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

// setup loads config, builds the logger and wires the pipeline. Failures exit.
func setup(configPath string, debugFlag bool, opts ...pipeline.Option) (*config.Config, string, *zap.Logger, *Components) {
	cfg, resolved, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	debugMode := cfg.Debug || debugFlag
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	logger.Debug("config loaded", zap.String("config_path", resolved), zap.Bool("debug", debugMode))

	components, err := initializeComponents(cfg, logger, opts...)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	return cfg, resolved, logger, components
}

func parseFormat(s string) cli.OutputFormat {
	format, err := cli.ParseOutputFormat(s)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	return format
}

func runIngest() {
	fs := flag.NewFlagSet("ingest", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	outputFormat := fs.String("output", "text", "output format: text or json")
	xlsxPath := fs.String("xlsx", "", "also write the index as a spreadsheet to this path")
	progress := fs.Bool("progress", false, "print per-file progress to stderr")
	_ = fs.Parse(os.Args[2:])

	if fs.NArg() < 1 {
		fmt.Println("Usage: digitrace ingest [flags] <file-or-directory>...")
		os.Exit(1)
	}
	format := parseFormat(*outputFormat)

	var opts []pipeline.Option
	if *progress {
		opts = append(opts, pipeline.WithProgress(func(done, total int) {
			fmt.Fprintf(os.Stderr, "\rextracted %d/%d", done, total)
			if done == total {
				fmt.Fprintln(os.Stderr)
			}
		}))
	}
	_, _, logger, components := setup(*configPath, *debug, opts...)
	defer logger.Sync()
	defer components.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	result, err := components.Pipeline.Ingest(ctx, fs.Args())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Ingestion failed: %v\n", err)
		os.Exit(1)
	}
	if *xlsxPath != "" {
		if err := writeIndexXLSX(ctx, components.Store, result.Key, *xlsxPath); err != nil {
			fmt.Fprintf(os.Stderr, "Export failed: %v\n", err)
			os.Exit(1)
		}
	}
	if err := cli.WriteIngestResult(os.Stdout, result, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func writeIndexXLSX(ctx context.Context, store storage.IndexStore, key, path string) error {
	idx, err := store.Get(ctx, key)
	if err != nil {
		return err
	}
	data, err := export.IndexXLSX(idx)
	if err != nil {
		return err
	}
	return export.WriteFile(path, data)
}

// printSearchUsage prints search subcommand usage.
func printSearchUsage(fs *flag.FlagSet) {
	fmt.Fprintf(fs.Output(), "Usage: digitrace search [flags] <value>\n\n")
	fmt.Fprintf(fs.Output(), "The value is all remaining arguments joined without separators, so \"1 250\" searches for 1250.\n\n")
	fs.PrintDefaults()
	fmt.Fprintf(fs.Output(), `
Matches are ordered by edit distance. With no -key the most recent ingestion is searched.
When nothing is within tolerance the closest indexed values are listed instead.

Examples:
  digitrace search 1250
  digitrace search -tolerance 0 1250              # exact matches only
  digitrace search -key 3f2a9c 1250 -output json  # flags may follow the value
  digitrace search -xlsx matches.xlsx 1250
`)
}

// buildSearchQuery joins positional args so a value split by the shell
// ("1 250") is searched as one token.
func buildSearchQuery(args []string) string {
	return strings.Join(strings.Fields(strings.Join(args, " ")), "")
}

// searchConfigPathFromArgs returns the value of -config/--config from args if present, else defaultPath.
func searchConfigPathFromArgs(args []string, defaultPath string) string {
	for i, a := range args {
		if (a == "-config" || a == "--config") && i+1 < len(args) {
			return args[i+1]
		}
	}
	return defaultPath
}

// searchToleranceDefaultFromConfig returns search.default_tolerance from the
// config at path, or 1 when the config cannot be loaded.
func searchToleranceDefaultFromConfig(path string) int {
	cfg, _, err := loadConfig(path)
	if err != nil || cfg == nil {
		return 1
	}
	return cfg.Search.DefaultTolerance
}

// searchArgsReorder moves any flags (and their values) that appear after the
// query to the front so that flag.Parse() sees them. The flag package stops at
// the first non-flag argument.
func searchArgsReorder(args []string) []string {
	for i, a := range args {
		if len(a) > 0 && a[0] == '-' {
			if i == 0 {
				return args
			}
			reordered := make([]string, 0, len(args))
			reordered = append(reordered, args[i:]...)
			reordered = append(reordered, args[:i]...)
			return reordered
		}
	}
	return args
}

func runSearch() {
	searchArgs := searchArgsReorder(os.Args[2:])
	defaultTolerance := searchToleranceDefaultFromConfig(searchConfigPathFromArgs(searchArgs, defaultConfigPath))

	fs := flag.NewFlagSet("search", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "", "server URL (empty = read the cache directly)")
	key := fs.String("key", "", "cache key or cache file path (empty = most recent ingestion)")
	tolerance := fs.Int("tolerance", defaultTolerance, "maximum edit distance")
	limit := fs.Int("limit", 0, "maximum number of matches (0 = config max_results)")
	outputFormat := fs.String("output", "text", "output format: text, compact, or json")
	xlsxPath := fs.String("xlsx", "", "also write the matches as a spreadsheet to this path")
	fs.Usage = func() { printSearchUsage(fs) }
	_ = fs.Parse(searchArgs)

	queryStr := buildSearchQuery(fs.Args())
	if queryStr == "" {
		printSearchUsage(fs)
		os.Exit(1)
	}
	format := parseFormat(*outputFormat)
	query := &models.MatchQuery{Key: *key, Query: queryStr, Tolerance: *tolerance, Limit: *limit}

	var (
		response    *models.MatchResponse
		suggestions []search.Suggestion
		err         error
	)
	if *serverURL != "" {
		response, err = searchViaHTTP(*serverURL, query)
		if err == nil && response.Total == 0 {
			suggestions, _ = suggestViaHTTP(*serverURL, query.Key, queryStr)
		}
	} else {
		_, _, logger, components := setup(*configPath, false)
		defer logger.Sync()
		defer components.Close()
		ctx := context.Background()
		response, err = components.Pipeline.Search(ctx, query)
		if err == nil && response.Total == 0 {
			suggestions, _ = components.Pipeline.Suggest(ctx, response.Key, queryStr, defaultSuggestions)
		}
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Search failed: %v\n", err)
		os.Exit(1)
	}
	if *xlsxPath != "" {
		data, err := export.MatchesXLSX(response)
		if err == nil {
			err = export.WriteFile(*xlsxPath, data)
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "Export failed: %v\n", err)
			os.Exit(1)
		}
	}
	if err := cli.WriteSearchResults(os.Stdout, response, suggestions, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func postJSON(serverURL, path string, body any, want int, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	resp, err := http.Post(serverURL+path, "application/json", bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != want {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, string(b))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func searchViaHTTP(serverURL string, query *models.MatchQuery) (*models.MatchResponse, error) {
	var response models.MatchResponse
	if err := postJSON(serverURL, "/api/v1/search", query, http.StatusOK, &response); err != nil {
		return nil, err
	}
	return &response, nil
}

func suggestViaHTTP(serverURL, key, query string) ([]search.Suggestion, error) {
	var out struct {
		Suggestions []search.Suggestion `json:"suggestions"`
	}
	body := map[string]any{"key": key, "query": query, "n": defaultSuggestions}
	if err := postJSON(serverURL, "/api/v1/suggest", body, http.StatusOK, &out); err != nil {
		return nil, err
	}
	return out.Suggestions, nil
}

func runAnnotate() {
	annotateArgs := searchArgsReorder(os.Args[2:])
	defaultTolerance := searchToleranceDefaultFromConfig(searchConfigPathFromArgs(annotateArgs, defaultConfigPath))

	fs := flag.NewFlagSet("annotate", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	key := fs.String("key", "", "cache key or cache file path (empty = most recent ingestion)")
	tolerance := fs.Int("tolerance", defaultTolerance, "maximum edit distance")
	n := fs.Int("n", 1, "number of best matches to annotate")
	_ = fs.Parse(annotateArgs)

	queryStr := buildSearchQuery(fs.Args())
	if queryStr == "" || *n < 1 {
		fmt.Println("Usage: digitrace annotate [flags] <value>")
		os.Exit(1)
	}
	_, _, logger, components := setup(*configPath, false)
	defer logger.Sync()
	defer components.Close()

	ctx := context.Background()
	response, err := components.Pipeline.Search(ctx, &models.MatchQuery{Key: *key, Query: queryStr, Tolerance: *tolerance, Limit: *n})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Search failed: %v\n", err)
		os.Exit(1)
	}
	if len(response.Matches) == 0 {
		fmt.Printf("No matches for %s within distance %d\n", queryStr, *tolerance)
		os.Exit(1)
	}
	for _, m := range response.Matches {
		path, err := components.Pipeline.Annotate(ctx, m)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Annotate %s failed: %v\n", m.Source, err)
			continue
		}
		fmt.Printf("%s\t%d\t%s\n", m.Value, m.Distance, path)
	}
}

func runRuns() {
	fs := flag.NewFlagSet("runs", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	limit := fs.Int("limit", 20, "number of runs to list (0 = all)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])
	format := parseFormat(*outputFormat)

	_, _, logger, components := setup(*configPath, false)
	defer logger.Sync()
	defer components.Close()

	runs, err := components.Pipeline.Runs(context.Background(), *limit)
	if err != nil {
		fmt.Fprintf(os.Stderr, "List runs failed: %v\n", err)
		os.Exit(1)
	}
	if err := cli.WriteRuns(os.Stdout, runs, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "", "server URL (empty = read the cache directly)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])
	format := parseFormat(*outputFormat)

	var status *models.Status
	if *serverURL != "" {
		st, err := statusViaHTTP(*serverURL)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Status failed: %v\n", err)
			os.Exit(1)
		}
		status = st
	} else {
		_, _, logger, components := setup(*configPath, false)
		defer logger.Sync()
		defer components.Close()
		st, err := components.Pipeline.Status(context.Background())
		if err != nil {
			fmt.Fprintf(os.Stderr, "Status failed: %v\n", err)
			os.Exit(1)
		}
		status = st
	}
	if err := cli.WriteStatus(os.Stdout, status, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func statusViaHTTP(serverURL string) (*models.Status, error) {
	resp, err := http.Get(serverURL + "/api/v1/status")
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, string(b))
	}
	var out struct {
		Status models.Status `json:"status"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &out.Status, nil
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging (watch events, per-file extraction, etc.)")
	_ = fs.Parse(os.Args[2:])

	cfg, resolvedConfigPath, logger, components := setup(*configPath, *debug)
	defer logger.Sync()
	defer components.Close()
	logger.Info("config loaded", zap.String("config_path", resolvedConfigPath))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	p := components.Pipeline
	watchSvc := watcher.NewWatcher(
		cfg.Watch.Directories,
		cfg.Watch.RecursiveOrDefault(),
		func(root string) {
			res, err := p.Ingest(ctx, []string{root})
			if err != nil {
				logger.Warn("watch ingest failed", zap.String("root", root), zap.Error(err))
				return
			}
			logger.Info("watch ingest finished",
				zap.String("root", root),
				zap.String("key", res.Key),
				zap.Bool("cache_hit", res.CacheHit))
		},
		watcher.WithDebounce(cfg.Watch.Debounce),
		watcher.WithFilter(extract.IsSupported),
		watcher.WithLogger(logger),
	)
	if err := watchSvc.Start(ctx); err != nil {
		logger.Fatal("Failed to start watcher", zap.Error(err))
	}
	watchSvc.SyncExistingFiles()

	srv := server.NewServer(p, &cfg.Server, logger, watchSvc, resolvedConfigPath, cfg)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = srv.Stop(shutdownCtx)
}

func runWatch() {
	if len(os.Args) < 3 {
		fmt.Println("Usage: digitrace watch <add|remove|list> [path]")
		fmt.Println("  digitrace watch add <path>     Add directory to watch")
		fmt.Println("  digitrace watch remove <path>  Remove directory from watch")
		fmt.Println("  digitrace watch list           List watched directories")
		os.Exit(1)
	}
	sub := os.Args[2]
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	serverURL := fs.String("server", "http://localhost:8080", "server URL")
	_ = fs.Parse(os.Args[3:])
	switch sub {
	case "add":
		if fs.NArg() < 1 {
			fmt.Println("Usage: digitrace watch add <path>")
			os.Exit(1)
		}
		path, _ := filepath.Abs(fs.Arg(0))
		var out map[string]string
		if err := postJSON(*serverURL, "/api/v1/watch/directories", map[string]any{"path": path, "sync": true}, http.StatusCreated, &out); err != nil {
			fmt.Printf("Add failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Added: %s\n", path)
	case "remove":
		if fs.NArg() < 1 {
			fmt.Println("Usage: digitrace watch remove <path>")
			os.Exit(1)
		}
		path, _ := filepath.Abs(fs.Arg(0))
		req, _ := http.NewRequest(http.MethodDelete, *serverURL+"/api/v1/watch/directories?path="+url.QueryEscape(path), nil)
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			fmt.Printf("Request failed: %v\n", err)
			os.Exit(1)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			b, _ := io.ReadAll(resp.Body)
			fmt.Printf("Remove failed (%d): %s\n", resp.StatusCode, string(b))
			os.Exit(1)
		}
		fmt.Printf("Removed: %s\n", path)
	case "list":
		resp, err := http.Get(*serverURL + "/api/v1/watch/directories")
		if err != nil {
			fmt.Printf("Request failed: %v\n", err)
			os.Exit(1)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			b, _ := io.ReadAll(resp.Body)
			fmt.Printf("List failed (%d): %s\n", resp.StatusCode, string(b))
			os.Exit(1)
		}
		var out struct {
			Directories []string `json:"directories"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			fmt.Printf("Parse failed: %v\n", err)
			os.Exit(1)
		}
		for _, d := range out.Directories {
			fmt.Println(d)
		}
	default:
		fmt.Printf("Unknown watch subcommand: %s\n", sub)
		os.Exit(1)
	}
}

// Components holds initialized services.
type Components struct {
	Store    storage.IndexStore
	Catalog  storage.Catalog
	Pipeline *pipeline.Pipeline
}

func (c *Components) Close() {
	if c.Catalog != nil {
		_ = c.Catalog.Close()
	}
}

func initializeComponents(cfg *config.Config, logger *zap.Logger, extra ...pipeline.Option) (*Components, error) {
	metric, err := search.ParseMetric(cfg.Search.Metric)
	if err != nil {
		return nil, err
	}
	store := storage.NewJSONStore(cfg.Pipeline.CacheDir)

	var catalog storage.Catalog
	if !cfg.Catalog.Disabled {
		c, err := storage.NewSQLiteCatalog(cfg.Catalog.DatabasePath)
		if err != nil {
			// runs are bookkeeping; ingestion and explicit-key queries work without them
			logger.Warn("run catalog unavailable", zap.String("path", cfg.Catalog.DatabasePath), zap.Error(err))
		} else {
			catalog = c
		}
	}

	runner := ocr.ExecRunner{Logger: logger}
	engine := ocr.NewTesseractEngine(ocr.TesseractConfig{
		Binary:      cfg.OCR.Tesseract,
		Language:    cfg.OCR.Language,
		PSM:         cfg.OCR.PSM,
		OEM:         cfg.OCR.OEM,
		TessdataDir: cfg.OCR.TessdataDir,
	}, runner)
	rasterizer := ocr.NewPdftoppmRasterizer(cfg.OCR.Pdftoppm, runner)

	opts := []pipeline.Option{
		pipeline.WithLogger(logger),
		pipeline.WithSearchOptions(
			search.WithMetric(metric),
			search.WithMaxResults(cfg.Search.MaxResults),
		),
		pipeline.WithAnnotateOptions(annotate.WithMaxWidth(cfg.Search.AnnotateMaxWidth)),
	}
	if catalog != nil {
		opts = append(opts, pipeline.WithCatalog(catalog))
	}
	opts = append(opts, extra...)

	p := pipeline.New(cfg.Pipeline, engine, rasterizer, store, opts...)
	logger.Debug("pipeline initialized",
		zap.String("cache_dir", store.Dir()),
		zap.String("scratch_dir", cfg.Pipeline.ScratchDir),
		zap.Int("raster_dpi", cfg.Pipeline.RasterDPI),
		zap.Int("pool_size", cfg.Pipeline.PoolSize),
		zap.Bool("catalog", catalog != nil))

	return &Components{Store: store, Catalog: catalog, Pipeline: p}, nil
}

func printUsage() {
	fmt.Println(`digitrace - Find numbers in scanned images and PDFs

Usage:
  digitrace ingest [flags] <path>...      Extract numeric tokens and cache the index
  digitrace search [flags] <value>        Find indexed values within an edit distance
  digitrace annotate [flags] <value>      Outline the best matches on copies of their images
  digitrace runs [flags]                  List recorded ingestion runs
  digitrace status [flags]                Show cache and catalog status
  digitrace server [flags]                Start the HTTP server and directory watcher
  digitrace watch <add|remove|list>       Manage watched directories
  digitrace version                       Show version
  digitrace help                          Show this help

Ingest Flags:
  --config string    Config file path (default: /usr/local/etc/digitrace/config.yaml, or ./config.yaml)
  --output string    Output format: text or json (default: text)
  --xlsx string      Also write the index as a spreadsheet
  --progress         Print per-file progress to stderr
  --debug            Enable debug logging

Search Flags:
  --key string       Cache key or cache file path (default: most recent ingestion)
  --tolerance int    Maximum edit distance (default from config, or 1)
  --limit int        Maximum matches (default: config max_results)
  --output string    Output format: text, compact, or json (default: text)
  --xlsx string      Also write the matches as a spreadsheet
  --server string    Query a running server instead of the cache directory

Annotate Flags:
  --key string       Cache key or cache file path
  --tolerance int    Maximum edit distance
  --n int            Number of best matches to annotate (default: 1)

Server Flags:
  --config string    Config file path
  --debug            Enable debug logging

Watch Flags:
  --server string    Server URL (default: http://localhost:8080)

Examples:
  digitrace ingest ./scans
  digitrace ingest --xlsx index.xlsx receipt.jpg statement.pdf
  digitrace search 1250
  digitrace search --tolerance 0 --output json 1250
  digitrace annotate --n 3 1250
  digitrace runs
  digitrace server
  digitrace watch add ./inbox`)
}
