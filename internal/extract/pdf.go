package extract

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
	"go.uber.org/zap"

	"github.com/hyperjump/digitrace/internal/fileid"
	"github.com/hyperjump/digitrace/internal/models"
)

// pageCount opens the PDF with the pure-Go reader and returns its page count.
func pageCount(path string) (n int, err error) {
	defer func() {
		// ledongthuc/pdf panics on some malformed xref tables
		if r := recover(); r != nil {
			n, err = 0, fmt.Errorf("%s: %w: %v", path, ErrDecode, r)
		}
	}()
	f, r, err := pdf.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) || errors.Is(err, os.ErrPermission) {
			return 0, fmt.Errorf("open PDF: %w", err)
		}
		return 0, fmt.Errorf("%s: %w: %v", path, ErrDecode, err)
	}
	defer f.Close()
	return r.NumPage(), nil
}

// PageImageName returns the scratch file name for page (1-based) of source.
// The short path digest keeps same-named sources in different directories apart.
func PageImageName(source string, page int) string {
	stem := strings.TrimSuffix(filepath.Base(source), filepath.Ext(source))
	return fmt.Sprintf("%s_%s_page_%d.jpg", stem, fileid.ShortPathDigest(source, 8), page)
}

func (a *Adapter) processPDF(ctx context.Context, path string) ([]models.Entry, error) {
	if a.rasterizer == nil {
		return nil, fmt.Errorf("%s: no PDF rasterizer configured", path)
	}
	// the reader rejects some PDFs the rasterizer renders, so its count is advisory
	want, countErr := pageCount(path)
	if countErr != nil {
		if errors.Is(countErr, os.ErrNotExist) || errors.Is(countErr, os.ErrPermission) {
			return nil, countErr
		}
		a.logger.Warn("PDF page count unavailable", zap.String("path", path), zap.Error(countErr))
	}
	pages, err := a.rasterizer.Rasterize(ctx, path, a.cfg.DPI)
	if err != nil {
		if countErr != nil {
			return nil, fmt.Errorf("rasterize %s: %w: %w", path, ErrDecode, err)
		}
		return nil, fmt.Errorf("rasterize %s: %w", path, err)
	}
	if countErr == nil && len(pages) != want {
		a.logger.Warn("rasterized page count differs from PDF page count",
			zap.String("path", path), zap.Int("pdf_pages", want), zap.Int("rasterized", len(pages)))
	}
	if a.cfg.MaxPages > 0 && len(pages) > a.cfg.MaxPages {
		pages = pages[:a.cfg.MaxPages]
	}

	outDir := a.PagesDir()
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return nil, fmt.Errorf("create pages dir: %w", err)
	}

	entries := make([]models.Entry, 0, len(pages))
	var pageErrs []error
	for i, page := range pages {
		if err := ctx.Err(); err != nil {
			pageErrs = append(pageErrs, err)
			break
		}
		n := i + 1
		pagePath := filepath.Join(outDir, PageImageName(path, n))
		if err := a.savePage(pagePath, page); err != nil {
			a.logger.Warn("failed to save page raster", zap.String("path", path), zap.Int("page", n), zap.Error(err))
			pageErrs = append(pageErrs, fmt.Errorf("page %d: %w", n, err))
			continue
		}
		entry, err := a.processImage(ctx, pagePath)
		if err != nil {
			a.logger.Warn("page extraction failed", zap.String("path", path), zap.Int("page", n), zap.Error(err))
			pageErrs = append(pageErrs, fmt.Errorf("page %d: %w", n, err))
			continue
		}
		entries = append(entries, entry)
	}
	return entries, errors.Join(pageErrs...)
}

func (a *Adapter) savePage(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := jpeg.Encode(f, img, &jpeg.Options{Quality: a.cfg.JPEGQuality}); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
