// Package extract turns one input file into index entries: images go straight
// to the extraction engine, PDFs are rasterized and each page is extracted.
package extract

import (
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"strings"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"

	"github.com/hyperjump/digitrace/internal/models"
	"github.com/hyperjump/digitrace/internal/ocr"
	"go.uber.org/zap"
)

var (
	// ErrDecode marks a corrupt or unreadable image or PDF. The file contributes no entries.
	ErrDecode = errors.New("decode failed")
	// ErrUnsupported marks a file that is neither an image nor a PDF.
	ErrUnsupported = errors.New("unsupported format")
)

// Kind is the routing class of an input file.
type Kind int

const (
	KindUnsupported Kind = iota
	KindImage
	KindPDF
)

// String returns the kind name used in logs.
func (k Kind) String() string {
	switch k {
	case KindImage:
		return "image"
	case KindPDF:
		return "pdf"
	default:
		return "unsupported"
	}
}

var imageExts = map[string]struct{}{
	".jpg": {}, ".jpeg": {}, ".png": {}, ".bmp": {}, ".webp": {},
}

// KindOf classifies path by extension, case-insensitively.
func KindOf(path string) Kind {
	ext := strings.ToLower(filepath.Ext(path))
	if _, ok := imageExts[ext]; ok {
		return KindImage
	}
	if ext == ".pdf" {
		return KindPDF
	}
	return KindUnsupported
}

// IsSupported reports whether path would produce entries.
func IsSupported(path string) bool {
	return KindOf(path) != KindUnsupported
}

// Config holds adapter settings.
type Config struct {
	// ScratchDir receives rasterized PDF pages under ScratchDir/pages.
	ScratchDir string
	// DPI is the PDF rasterization resolution.
	DPI int
	// MaxPages limits pages per PDF; 0 = no limit.
	MaxPages int
	// JPEGQuality is used when saving page rasters.
	JPEGQuality int
}

// Adapter runs the extraction engine over one resolved file.
type Adapter struct {
	engine     ocr.Engine
	rasterizer ocr.Rasterizer
	cfg        Config
	logger     *zap.Logger
}

// AdapterOption configures an Adapter.
type AdapterOption func(*Adapter)

// WithLogger sets a logger for per-file and per-page warnings.
func WithLogger(l *zap.Logger) AdapterOption {
	return func(a *Adapter) {
		if l != nil {
			a.logger = l
		}
	}
}

// NewAdapter creates an adapter. rasterizer may be nil, in which case PDFs fail
// with an error and contribute no entries.
func NewAdapter(engine ocr.Engine, rasterizer ocr.Rasterizer, cfg Config, opts ...AdapterOption) *Adapter {
	if cfg.DPI <= 0 {
		cfg.DPI = 350
	}
	if cfg.JPEGQuality <= 0 || cfg.JPEGQuality > 100 {
		cfg.JPEGQuality = 95
	}
	if cfg.ScratchDir == "" {
		cfg.ScratchDir = "temp"
	}
	a := &Adapter{
		engine:     engine,
		rasterizer: rasterizer,
		cfg:        cfg,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// PagesDir returns the directory rasterized pages are written to.
func (a *Adapter) PagesDir() string {
	return filepath.Join(a.cfg.ScratchDir, "pages")
}

// Process extracts entries from one file.
//
// Unsupported files return (nil, nil). A corrupt image returns no entries and
// an error wrapping ErrDecode. For PDFs, a page that fails extraction is logged
// and skipped; the remaining pages' entries are returned together with the
// joined page errors. A rasterization failure returns no entries, wrapping
// ErrDecode when the PDF reader could not open the file either.
func (a *Adapter) Process(ctx context.Context, path string) ([]models.Entry, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("absolute path: %w", err)
	}
	switch KindOf(abs) {
	case KindImage:
		entry, err := a.processImage(ctx, abs)
		if err != nil {
			return nil, err
		}
		return []models.Entry{entry}, nil
	case KindPDF:
		return a.processPDF(ctx, abs)
	default:
		a.logger.Debug("skipping unsupported file", zap.String("path", abs))
		return nil, nil
	}
}

func (a *Adapter) processImage(ctx context.Context, path string) (models.Entry, error) {
	if err := checkImage(path); err != nil {
		return models.Entry{}, err
	}
	values, regions, err := a.engine.Extract(ctx, path)
	if err != nil {
		return models.Entry{}, fmt.Errorf("extract %s: %w", path, err)
	}
	entry := models.NewEntry(path, values, regions)
	if err := entry.Validate(); err != nil {
		return models.Entry{}, err
	}
	return entry, nil
}

// checkImage verifies the file is readable and its header decodes.
func checkImage(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open image: %w", err)
	}
	defer f.Close()
	if _, _, err := image.DecodeConfig(f); err != nil {
		return fmt.Errorf("%s: %w: %v", path, ErrDecode, err)
	}
	return nil
}
