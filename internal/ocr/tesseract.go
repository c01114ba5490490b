package ocr

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/hyperjump/digitrace/internal/models"
)

// TesseractConfig configures the tesseract engine.
type TesseractConfig struct {
	Binary      string // binary name or absolute path; if empty -> "tesseract"
	Language    string // default "eng"
	PSM         int    // page segmentation mode; 0 = tesseract default
	OEM         int    // engine mode; 0 = tesseract default
	TessdataDir string
}

// TesseractEngine extracts word boxes with `tesseract <img> stdout tsv` and
// keeps only words containing at least one digit.
type TesseractEngine struct {
	cfg    TesseractConfig
	runner Runner
}

// NewTesseractEngine returns an engine using runner; a nil runner uses ExecRunner.
func NewTesseractEngine(cfg TesseractConfig, runner Runner) *TesseractEngine {
	if cfg.Binary == "" {
		cfg.Binary = "tesseract"
	}
	if cfg.Language == "" {
		cfg.Language = "eng"
	}
	if runner == nil {
		runner = ExecRunner{}
	}
	return &TesseractEngine{cfg: cfg, runner: runner}
}

// Extract runs tesseract on imagePath and returns digit-bearing words with their boxes.
func (e *TesseractEngine) Extract(ctx context.Context, imagePath string) ([]string, []models.Quad, error) {
	args := []string{imagePath, "stdout", "-l", e.cfg.Language}
	if e.cfg.PSM > 0 {
		args = append(args, "--psm", strconv.Itoa(e.cfg.PSM))
	}
	if e.cfg.OEM > 0 {
		args = append(args, "--oem", strconv.Itoa(e.cfg.OEM))
	}
	if e.cfg.TessdataDir != "" {
		args = append(args, "--tessdata-dir", e.cfg.TessdataDir)
	}
	args = append(args, "tsv")

	out, errb, err := e.runner.Run(ctx, e.cfg.Binary, args...)
	if err != nil {
		return nil, nil, fmt.Errorf("tesseract: %w: %s", err, truncate(strings.TrimSpace(string(errb)), 512))
	}
	values, regions := ParseTSV(string(out))
	return values, regions, nil
}

// tsv columns: level page_num block_num par_num line_num word_num left top width height conf text
const (
	tsvColLeft   = 6
	tsvColTop    = 7
	tsvColWidth  = 8
	tsvColHeight = 9
	tsvColText   = 11
	tsvMinCols   = 12
)

// ParseTSV parses tesseract TSV output into parallel value and region slices.
// Rows with empty text, no digits, or malformed geometry are skipped.
func ParseTSV(tsv string) ([]string, []models.Quad) {
	values := []string{}
	regions := []models.Quad{}
	for i, ln := range strings.Split(tsv, "\n") {
		// row 0 is the column header
		if i == 0 || ln == "" {
			continue
		}
		cols := strings.Split(strings.TrimRight(ln, "\r"), "\t")
		if len(cols) < tsvMinCols {
			continue
		}
		text := strings.TrimSpace(cols[tsvColText])
		if text == "" || !HasDigit(text) {
			continue
		}
		left, err1 := strconv.Atoi(cols[tsvColLeft])
		top, err2 := strconv.Atoi(cols[tsvColTop])
		width, err3 := strconv.Atoi(cols[tsvColWidth])
		height, err4 := strconv.Atoi(cols[tsvColHeight])
		if err1 != nil || err2 != nil || err3 != nil || err4 != nil {
			continue
		}
		values = append(values, text)
		regions = append(regions, models.QuadFromRect(
			float64(left), float64(top), float64(left+width), float64(top+height)))
	}
	return values, regions
}

// HasDigit reports whether s contains any decimal digit.
func HasDigit(s string) bool {
	return strings.IndexFunc(s, unicode.IsDigit) >= 0
}
