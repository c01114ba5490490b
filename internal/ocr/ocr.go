// Package ocr defines the extraction engine and PDF rasterizer collaborators
// and provides implementations backed by the tesseract and pdftoppm binaries.
package ocr

import (
	"context"
	"image"

	"github.com/hyperjump/digitrace/internal/models"
)

// Engine recognizes numeric-bearing tokens on a raster image. The returned
// slices are parallel: regions[i] bounds values[i].
type Engine interface {
	Extract(ctx context.Context, imagePath string) (values []string, regions []models.Quad, err error)
}

// Rasterizer renders each page of a PDF at the given DPI, in page order.
type Rasterizer interface {
	Rasterize(ctx context.Context, pdfPath string, dpi int) ([]image.Image, error)
}

// EngineFunc adapts a function to the Engine interface.
type EngineFunc func(ctx context.Context, imagePath string) ([]string, []models.Quad, error)

// Extract calls f.
func (f EngineFunc) Extract(ctx context.Context, imagePath string) ([]string, []models.Quad, error) {
	return f(ctx, imagePath)
}

// RasterizerFunc adapts a function to the Rasterizer interface.
type RasterizerFunc func(ctx context.Context, pdfPath string, dpi int) ([]image.Image, error)

// Rasterize calls f.
func (f RasterizerFunc) Rasterize(ctx context.Context, pdfPath string, dpi int) ([]image.Image, error) {
	return f(ctx, pdfPath, dpi)
}
