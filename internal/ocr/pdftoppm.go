package ocr

import (
	"context"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// PdftoppmRasterizer renders PDF pages with `pdftoppm -r <dpi> -png`.
type PdftoppmRasterizer struct {
	Binary string // binary name or absolute path; if empty -> "pdftoppm"
	runner Runner
}

// NewPdftoppmRasterizer returns a rasterizer using runner; a nil runner uses ExecRunner.
func NewPdftoppmRasterizer(binary string, runner Runner) *PdftoppmRasterizer {
	if binary == "" {
		binary = "pdftoppm"
	}
	if runner == nil {
		runner = ExecRunner{}
	}
	return &PdftoppmRasterizer{Binary: binary, runner: runner}
}

// Rasterize renders every page of pdfPath into a private temp directory,
// decodes the PNGs in page order, and removes the directory.
func (r *PdftoppmRasterizer) Rasterize(ctx context.Context, pdfPath string, dpi int) ([]image.Image, error) {
	if dpi <= 0 {
		return nil, fmt.Errorf("invalid dpi %d", dpi)
	}
	tmpDir, err := os.MkdirTemp("", "digitrace-pp-*")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(tmpDir)

	prefix := filepath.Join(tmpDir, "page")
	// pdftoppm -r 350 -png <in.pdf> <tmp/page>
	_, errb, err := r.runner.Run(ctx, r.Binary, "-r", strconv.Itoa(dpi), "-png", pdfPath, prefix)
	if err != nil {
		return nil, fmt.Errorf("pdftoppm: %w: %s", err, truncate(strings.TrimSpace(string(errb)), 512))
	}

	// collect generated pngs (page-1.png, page-2.png, ... zero-padded for large documents)
	matches, err := filepath.Glob(prefix + "-*.png")
	if err != nil {
		return nil, err
	}
	sort.Slice(matches, func(i, j int) bool {
		return pageNumber(matches[i]) < pageNumber(matches[j])
	})
	if len(matches) == 0 {
		return nil, fmt.Errorf("pdftoppm produced no pages for %s", pdfPath)
	}

	pages := make([]image.Image, 0, len(matches))
	for _, m := range matches {
		img, err := decodePNG(m)
		if err != nil {
			return nil, fmt.Errorf("decode page %s: %w", filepath.Base(m), err)
		}
		pages = append(pages, img)
	}
	return pages, nil
}

func pageNumber(path string) int {
	base := strings.TrimSuffix(filepath.Base(path), ".png")
	i := strings.LastIndex(base, "-")
	if i < 0 {
		return 0
	}
	n, _ := strconv.Atoi(base[i+1:])
	return n
}

func decodePNG(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return png.Decode(f)
}
