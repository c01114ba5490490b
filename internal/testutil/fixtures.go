// Package testutil builds minimal binary fixtures (images and PDFs) and fake
// extraction collaborators for package tests.
package testutil

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/hyperjump/digitrace/internal/models"
)

// PNG returns the bytes of a w x h PNG whose pixels are derived from seed, so
// different seeds give different file contents.
func PNG(w, h int, seed byte) []byte {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: seed, G: byte(x), B: byte(y), A: 255})
		}
	}
	var buf bytes.Buffer
	_ = png.Encode(&buf, img)
	return buf.Bytes()
}

// WriteFile writes data to path, creating parent directories.
func WriteFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}

// MinimalPDF returns a structurally valid PDF with the given number of empty
// pages. Object offsets in the xref table are exact.
func MinimalPDF(pages int) []byte {
	var buf bytes.Buffer
	var offsets []int
	obj := func(body string) {
		offsets = append(offsets, buf.Len())
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", len(offsets), body)
	}
	buf.WriteString("%PDF-1.4\n")
	obj("<< /Type /Catalog /Pages 2 0 R >>")
	var kids bytes.Buffer
	for i := 0; i < pages; i++ {
		fmt.Fprintf(&kids, "%d 0 R ", i+3)
	}
	obj(fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", kids.String(), pages))
	for i := 0; i < pages; i++ {
		obj("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] >>")
	}
	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", len(offsets)+1)
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(offsets)+1, xref)
	return buf.Bytes()
}

// Token is one canned extraction result.
type Token struct {
	Value  string
	Region models.Quad
}

// FakeEngine returns canned tokens per image base name and counts calls.
type FakeEngine struct {
	mu     sync.Mutex
	tokens map[string][]Token
	errs   map[string]error
	calls  atomic.Int64
}

// NewFakeEngine returns an engine with no canned results.
func NewFakeEngine() *FakeEngine {
	return &FakeEngine{tokens: make(map[string][]Token), errs: make(map[string]error)}
}

// Set registers tokens returned for images whose base name is base.
func (f *FakeEngine) Set(base string, tokens ...Token) *FakeEngine {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tokens[base] = tokens
	return f
}

// Fail makes extraction of base return err.
func (f *FakeEngine) Fail(base string, err error) *FakeEngine {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errs[base] = err
	return f
}

// Calls returns how many times Extract ran.
func (f *FakeEngine) Calls() int {
	return int(f.calls.Load())
}

// Extract implements ocr.Engine.
func (f *FakeEngine) Extract(ctx context.Context, imagePath string) ([]string, []models.Quad, error) {
	f.calls.Add(1)
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	base := filepath.Base(imagePath)
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.errs[base]; ok {
		return nil, nil, err
	}
	values := []string{}
	regions := []models.Quad{}
	for _, t := range f.tokens[base] {
		values = append(values, t.Value)
		regions = append(regions, t.Region)
	}
	return values, regions, nil
}

// FakeRasterizer returns n blank pages for every PDF and counts calls.
type FakeRasterizer struct {
	Pages int
	Err   error
	calls atomic.Int64
}

// Calls returns how many times Rasterize ran.
func (f *FakeRasterizer) Calls() int {
	return int(f.calls.Load())
}

// Rasterize implements ocr.Rasterizer.
func (f *FakeRasterizer) Rasterize(_ context.Context, _ string, dpi int) ([]image.Image, error) {
	f.calls.Add(1)
	if f.Err != nil {
		return nil, f.Err
	}
	pages := make([]image.Image, f.Pages)
	for i := range pages {
		// page width grows with the page number so order is observable
		pages[i] = image.NewGray(image.Rect(0, 0, 10+i, dpi/35))
	}
	return pages, nil
}
