// Package annotate draws a match's region onto a copy of its source image.
package annotate

import (
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"strings"

	_ "golang.org/x/image/bmp"
	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/webp"

	"go.uber.org/zap"

	"github.com/hyperjump/digitrace/internal/fileid"
	"github.com/hyperjump/digitrace/internal/models"
)

// OutlineColor is the stroke color used for region outlines.
var OutlineColor = color.RGBA{R: 255, A: 255}

const defaultThickness = 2

// Annotator writes annotated copies of source images to <scratch>/annotated.
type Annotator struct {
	outDir    string
	thickness int
	maxWidth  int
	logger    *zap.Logger
}

// Option configures an Annotator.
type Option func(*Annotator)

// WithThickness sets the outline width in pixels.
func WithThickness(px int) Option {
	return func(a *Annotator) {
		if px > 0 {
			a.thickness = px
		}
	}
}

// WithMaxWidth downscales annotated images wider than px. 0 keeps the
// original size.
func WithMaxWidth(px int) Option {
	return func(a *Annotator) { a.maxWidth = px }
}

// WithLogger sets a logger.
func WithLogger(l *zap.Logger) Option {
	return func(a *Annotator) {
		if l != nil {
			a.logger = l
		}
	}
}

// New creates an annotator writing below scratchDir.
func New(scratchDir string, opts ...Option) *Annotator {
	a := &Annotator{
		outDir:    filepath.Join(scratchDir, "annotated"),
		thickness: defaultThickness,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Dir returns the directory annotated images are written to.
func (a *Annotator) Dir() string {
	return a.outDir
}

// OutputPath returns where the annotation of match is written. The name
// carries a digest of the source path and the rounded region bounds, so
// same-named sources and distinct regions of one source get distinct files.
func (a *Annotator) OutputPath(match models.Match) string {
	stem := strings.TrimSuffix(filepath.Base(match.Source), filepath.Ext(match.Source))
	r := regionRect(match.Region)
	name := fmt.Sprintf("%s_%s_%d_%d_%d_%d.png", stem, fileid.ShortPathDigest(match.Source, 8),
		r.Min.X, r.Min.Y, r.Max.X, r.Max.Y)
	return filepath.Join(a.outDir, name)
}

func regionRect(q models.Quad) image.Rectangle {
	l, t, r, b := q.Bounds()
	return image.Rect(int(math.Round(l)), int(math.Round(t)), int(math.Round(r)), int(math.Round(b)))
}

// Annotate outlines match.Region on a copy of match.Source and returns the
// path of the written PNG. An unreadable source is an error.
func (a *Annotator) Annotate(match models.Match) (string, error) {
	src, err := decode(match.Source)
	if err != nil {
		return "", err
	}
	canvas := image.NewRGBA(image.Rect(0, 0, src.Bounds().Dx(), src.Bounds().Dy()))
	xdraw.Draw(canvas, canvas.Bounds(), src, src.Bounds().Min, xdraw.Src)

	Outline(canvas, regionRect(match.Region), a.thickness, OutlineColor)

	out := image.Image(canvas)
	if a.maxWidth > 0 && canvas.Bounds().Dx() > a.maxWidth {
		out = scale(canvas, a.maxWidth)
	}

	if err := os.MkdirAll(a.outDir, 0755); err != nil {
		return "", fmt.Errorf("create annotation dir: %w", err)
	}
	path := a.OutputPath(match)
	if err := writePNG(path, out); err != nil {
		return "", fmt.Errorf("write annotation: %w", err)
	}
	a.logger.Debug("annotated match", zap.String("source", match.Source), zap.String("path", path), zap.String("value", match.Value))
	return path, nil
}

// Outline strokes rect on img with the given thickness, drawing inward from
// rect's edges. Parts outside img are clipped.
func Outline(img *image.RGBA, rect image.Rectangle, thickness int, c color.Color) {
	rect = rect.Canon()
	if thickness <= 0 {
		thickness = 1
	}
	u := image.NewUniform(c)
	edges := []image.Rectangle{
		image.Rect(rect.Min.X, rect.Min.Y, rect.Max.X, rect.Min.Y+thickness), // top
		image.Rect(rect.Min.X, rect.Max.Y-thickness, rect.Max.X, rect.Max.Y), // bottom
		image.Rect(rect.Min.X, rect.Min.Y, rect.Min.X+thickness, rect.Max.Y), // left
		image.Rect(rect.Max.X-thickness, rect.Min.Y, rect.Max.X, rect.Max.Y), // right
	}
	for _, e := range edges {
		e = e.Intersect(rect).Intersect(img.Bounds())
		if e.Empty() {
			continue
		}
		xdraw.Draw(img, e, u, image.Point{}, xdraw.Src)
	}
}

func scale(src *image.RGBA, width int) image.Image {
	b := src.Bounds()
	height := int(math.Round(float64(b.Dy()) * float64(width) / float64(b.Dx())))
	if height < 1 {
		height = 1
	}
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, b, xdraw.Src, nil)
	return dst
}

func decode(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open source image: %w", err)
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode source image %s: %w", path, err)
	}
	return img, nil
}

func writePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
