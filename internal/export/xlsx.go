// Package export writes match lists and indexes to XLSX workbooks.
package export

import (
	"fmt"
	"os"

	"github.com/xuri/excelize/v2"

	"github.com/hyperjump/digitrace/internal/models"
)

const (
	matchesSheet = "Matches"
	tokensSheet  = "Tokens"
)

var regionHeaders = []string{"Left", "Top", "Right", "Bottom"}

// MatchesXLSX returns a workbook (as bytes) listing resp's matches in order.
func MatchesXLSX(resp *models.MatchResponse) ([]byte, error) {
	f, err := newWorkbook(matchesSheet)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	headers := append([]string{"Distance", "Value", "Source"}, regionHeaders...)
	writeRow(f, matchesSheet, 1, toAny(headers)...)
	for i, m := range resp.Matches {
		l, t, r, b := m.Region.Bounds()
		writeRow(f, matchesSheet, i+2, m.Distance, m.Value, m.Source, l, t, r, b)
	}
	_ = f.SetColWidth(matchesSheet, "A", "A", 10)
	_ = f.SetColWidth(matchesSheet, "B", "B", 20)
	_ = f.SetColWidth(matchesSheet, "C", "C", 60)

	// query parameters go in a second sheet so the match table stays rectangular
	if _, err := f.NewSheet("Query"); err != nil {
		return nil, err
	}
	writeRow(f, "Query", 1, "Key", resp.Key)
	writeRow(f, "Query", 2, "Query", resp.Query)
	writeRow(f, "Query", 3, "Tolerance", resp.Tolerance)
	writeRow(f, "Query", 4, "Total", resp.Total)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}
	return buf.Bytes(), nil
}

// IndexXLSX returns a workbook with one row per extracted value.
func IndexXLSX(idx models.Index) ([]byte, error) {
	f, err := newWorkbook(tokensSheet)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	headers := append([]string{"Source", "Position", "Value"}, regionHeaders...)
	writeRow(f, tokensSheet, 1, toAny(headers)...)
	row := 2
	for _, e := range idx {
		for i, v := range e.Values {
			l, t, r, b := e.Regions[i].Bounds()
			writeRow(f, tokensSheet, row, e.Source, i, v, l, t, r, b)
			row++
		}
	}
	_ = f.SetColWidth(tokensSheet, "A", "A", 60)
	_ = f.SetColWidth(tokensSheet, "C", "C", 20)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}
	return buf.Bytes(), nil
}

// WriteFile writes workbook bytes to path.
func WriteFile(path string, data []byte) error {
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func newWorkbook(sheet string) (*excelize.File, error) {
	f := excelize.NewFile()
	// rename the default sheet rather than leaving an empty Sheet1
	if err := f.SetSheetName(f.GetSheetName(0), sheet); err != nil {
		_ = f.Close()
		return nil, err
	}
	return f, nil
}

func writeRow(f *excelize.File, sheet string, row int, values ...any) {
	for i, v := range values {
		cell, _ := excelize.CoordinatesToCellName(i+1, row)
		_ = f.SetCellValue(sheet, cell, v)
	}
}

func toAny(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}
