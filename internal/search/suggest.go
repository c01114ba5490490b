package search

import (
	"sort"
	"unicode/utf8"

	"github.com/hyperjump/digitrace/internal/models"
)

// Suggestion is a distinct indexed value near a query.
type Suggestion struct {
	Value     string `json:"value"`
	Distance  int    `json:"distance"`
	Frequency int    `json:"frequency"`
}

// Suggest returns up to n distinct values from idx closest to query,
// regardless of tolerance, ordered by distance, then frequency (descending),
// then value. It is used to hint at near misses when a search finds nothing.
func (e *Engine) Suggest(idx models.Index, query string, n int) []Suggestion {
	if n <= 0 {
		return []Suggestion{}
	}
	freq := make(map[string]int)
	for _, entry := range idx {
		for _, v := range entry.Values {
			freq[v]++
		}
	}

	qLen := utf8.RuneCountInString(query)
	suggestions := make([]Suggestion, 0, len(freq))
	worst := -1
	for v, f := range freq {
		// distance >= length difference, so this value would rank below all n held
		if worst >= 0 && len(suggestions) >= n {
			diff := utf8.RuneCountInString(v) - qLen
			if diff < 0 {
				diff = -diff
			}
			if diff > worst {
				continue
			}
		}
		var d int
		if e.metric == MetricDamerau {
			d = DamerauLevenshteinDistance(query, v)
		} else {
			d = LevenshteinDistance(query, v)
		}
		suggestions = append(suggestions, Suggestion{Value: v, Distance: d, Frequency: f})
		if d > worst {
			worst = d
		}
	}

	sort.Slice(suggestions, func(i, j int) bool {
		a, b := suggestions[i], suggestions[j]
		if a.Distance != b.Distance {
			return a.Distance < b.Distance
		}
		if a.Frequency != b.Frequency {
			return a.Frequency > b.Frequency
		}
		return a.Value < b.Value
	})
	if len(suggestions) > n {
		suggestions = suggestions[:n]
	}
	return suggestions
}
