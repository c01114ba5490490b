// Package config provides configuration loading and structs for digitrace.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug    bool           `yaml:"debug"`
	Pipeline PipelineConfig `yaml:"pipeline"`
	OCR      OCRConfig      `yaml:"ocr"`
	Catalog  CatalogConfig  `yaml:"catalog"`
	Search   SearchConfig   `yaml:"search"`
	Server   ServerConfig   `yaml:"server"`
	Watch    WatchConfig    `yaml:"watch"`
}

// PipelineConfig holds ingestion settings.
type PipelineConfig struct {
	// ScratchDir receives rasterized PDF pages and annotated images.
	ScratchDir string `yaml:"scratch_dir"`
	// CacheDir holds one <key>.json index per ingested file set.
	CacheDir  string `yaml:"cache_dir"`
	RasterDPI int    `yaml:"raster_dpi"`
	// PoolSize is the number of concurrent extraction workers; 0 = one per CPU.
	PoolSize       int           `yaml:"pool_size"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	FileTimeout    time.Duration `yaml:"file_timeout"`
	// MaxPages limits pages extracted per PDF; 0 = unlimited.
	MaxPages    int `yaml:"max_pages"`
	JPEGQuality int `yaml:"jpeg_quality"`
}

// OCRConfig holds external extraction tool settings.
type OCRConfig struct {
	Tesseract   string `yaml:"tesseract"`
	Pdftoppm    string `yaml:"pdftoppm"`
	Language    string `yaml:"language"`
	PSM         int    `yaml:"psm"`
	OEM         int    `yaml:"oem"`
	TessdataDir string `yaml:"tessdata_dir"`
}

// CatalogConfig holds the ingestion run catalog location.
type CatalogConfig struct {
	DatabasePath string `yaml:"database_path"`
	// Disabled turns the catalog off; ingestion works without it.
	Disabled bool `yaml:"disabled"`
}

// SearchConfig holds match query settings.
type SearchConfig struct {
	DefaultTolerance int `yaml:"default_tolerance"`
	// MaxResults caps returned matches when a query sets no limit; 0 = unlimited.
	MaxResults int `yaml:"max_results"`
	// Metric is "levenshtein" (default) or "damerau".
	Metric string `yaml:"metric"`
	// AnnotateMaxWidth downscales annotated images wider than this; 0 = keep size.
	AnnotateMaxWidth int `yaml:"annotate_max_width"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// WatchConfig holds directory watch settings.
type WatchConfig struct {
	Directories []string      `yaml:"directories"`
	Debounce    time.Duration `yaml:"debounce"`
	Recursive   *bool         `yaml:"recursive"`
}

// RecursiveOrDefault returns whether to watch recursively; defaults to true when unset.
func (w *WatchConfig) RecursiveOrDefault() bool {
	if w.Recursive != nil {
		return *w.Recursive
	}
	return true
}

// Default returns a defaulted config whose relative paths resolve against dir.
func Default(dir string) *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	expandPaths(cfg, dir)
	return cfg
}

// Load reads and parses the config file at path, expands paths, and applies defaults.
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)
	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	expandPaths(&cfg, filepath.Dir(path))
	return &cfg, nil
}

func expandPaths(cfg *Config, configDir string) {
	cfg.Pipeline.ScratchDir = expandPath(cfg.Pipeline.ScratchDir, configDir)
	cfg.Pipeline.CacheDir = expandPath(cfg.Pipeline.CacheDir, configDir)
	cfg.Catalog.DatabasePath = expandPath(cfg.Catalog.DatabasePath, configDir)
	if cfg.OCR.TessdataDir != "" {
		cfg.OCR.TessdataDir = expandPath(cfg.OCR.TessdataDir, configDir)
	}
	for i := range cfg.Watch.Directories {
		cfg.Watch.Directories[i] = expandPath(cfg.Watch.Directories[i], configDir)
	}
}

// Validate rejects settings that cannot work.
func Validate(cfg *Config) error {
	if cfg.Pipeline.RasterDPI < 0 {
		return fmt.Errorf("pipeline.raster_dpi must be positive, got %d", cfg.Pipeline.RasterDPI)
	}
	if cfg.Pipeline.PoolSize < 0 {
		return fmt.Errorf("pipeline.pool_size must be >= 0, got %d", cfg.Pipeline.PoolSize)
	}
	if cfg.Search.DefaultTolerance < 0 {
		return fmt.Errorf("search.default_tolerance must be >= 0, got %d", cfg.Search.DefaultTolerance)
	}
	switch cfg.Search.Metric {
	case "levenshtein", "damerau":
	default:
		return fmt.Errorf("search.metric must be levenshtein or damerau, got %q", cfg.Search.Metric)
	}
	return nil
}

// Save writes the config to path. Used for persisting watch directory add/remove.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// "~/" is the home directory; other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~/"))
}
