package models

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrMismatchedRegions is returned when an entry's values and regions differ in length.
var ErrMismatchedRegions = errors.New("values and regions length mismatch")

// Entry is the extraction result for one processed image: a standalone image
// file or one rasterized PDF page. Regions[i] bounds Values[i].
type Entry struct {
	Source  string   `json:"index"`
	Values  []string `json:"values"`
	Regions []Quad   `json:"bounding_boxes"`
}

// NewEntry returns an entry with non-nil slices.
func NewEntry(source string, values []string, regions []Quad) Entry {
	if values == nil {
		values = []string{}
	}
	if regions == nil {
		regions = []Quad{}
	}
	return Entry{Source: source, Values: values, Regions: regions}
}

// Validate checks the value/region pairing.
func (e Entry) Validate() error {
	if len(e.Values) != len(e.Regions) {
		return fmt.Errorf("%s: %w (%d values, %d regions)", e.Source, ErrMismatchedRegions, len(e.Values), len(e.Regions))
	}
	return nil
}

// MarshalJSON writes empty slices as [] rather than null.
func (e Entry) MarshalJSON() ([]byte, error) {
	type entryJSON Entry
	return json.Marshal(entryJSON(NewEntry(e.Source, e.Values, e.Regions)))
}

// Index is the aggregated result set of one ingestion request. Entry order is
// not meaningful; order within an entry is fixed at extraction time.
type Index []Entry

// Tokens returns the total number of extracted values across all entries.
func (idx Index) Tokens() int {
	n := 0
	for _, e := range idx {
		n += len(e.Values)
	}
	return n
}
