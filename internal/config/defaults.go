package config

import "time"

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Pipeline.ScratchDir == "" {
		cfg.Pipeline.ScratchDir = "./temp"
	}
	if cfg.Pipeline.CacheDir == "" {
		cfg.Pipeline.CacheDir = "./cache"
	}
	if cfg.Pipeline.RasterDPI == 0 {
		cfg.Pipeline.RasterDPI = 350
	}
	if cfg.Pipeline.JPEGQuality == 0 {
		cfg.Pipeline.JPEGQuality = 95
	}
	if cfg.OCR.Tesseract == "" {
		cfg.OCR.Tesseract = "tesseract"
	}
	if cfg.OCR.Pdftoppm == "" {
		cfg.OCR.Pdftoppm = "pdftoppm"
	}
	if cfg.OCR.Language == "" {
		cfg.OCR.Language = "eng"
	}
	if cfg.Catalog.DatabasePath == "" {
		cfg.Catalog.DatabasePath = "./cache/catalog.db"
	}
	if cfg.Search.DefaultTolerance == 0 {
		cfg.Search.DefaultTolerance = 1
	}
	if cfg.Search.Metric == "" {
		cfg.Search.Metric = "levenshtein"
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Watch.Debounce == 0 {
		cfg.Watch.Debounce = 400 * time.Millisecond
	}
	// Recursive defaults to true when unset (nil).
	if len(cfg.Watch.Directories) > 0 && cfg.Watch.Recursive == nil {
		t := true
		cfg.Watch.Recursive = &t
	}
}
