package search

import "unicode/utf8"

// LevenshteinDistance returns the minimum number of single-rune insertions,
// deletions or substitutions that turn a into b.
func LevenshteinDistance(a, b string) int {
	d, _ := boundedLevenshtein([]rune(a), []rune(b), -1)
	return d
}

// WithinDistance reports whether a and b are at most limit edits apart and
// returns the exact distance when they are. It stops early once every cell of
// a DP row exceeds limit.
func WithinDistance(a, b string, limit int) (int, bool) {
	if limit < 0 {
		return 0, false
	}
	return boundedLevenshtein([]rune(a), []rune(b), limit)
}

// boundedLevenshtein computes the two-row DP. limit < 0 disables the cutoff.
func boundedLevenshtein(ra, rb []rune, limit int) (int, bool) {
	if len(ra) < len(rb) {
		ra, rb = rb, ra
	}
	if limit >= 0 && len(ra)-len(rb) > limit {
		return 0, false
	}
	if len(rb) == 0 {
		return len(ra), true
	}

	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		rowMin := curr[0]
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
			if curr[j] < rowMin {
				rowMin = curr[j]
			}
		}
		if limit >= 0 && rowMin > limit {
			return 0, false
		}
		prev, curr = curr, prev
	}
	d := prev[len(rb)]
	if limit >= 0 && d > limit {
		return 0, false
	}
	return d, true
}

// DamerauLevenshteinDistance is LevenshteinDistance that also counts a swap
// of two adjacent runes as one edit (optimal string alignment). Transposed
// digits are a common recognition error.
func DamerauLevenshteinDistance(a, b string) int {
	if a == b {
		return 0
	}
	if a == "" {
		return utf8.RuneCountInString(b)
	}
	if b == "" {
		return utf8.RuneCountInString(a)
	}
	ra, rb := []rune(a), []rune(b)

	d := make([][]int, len(ra)+1)
	for i := range d {
		d[i] = make([]int, len(rb)+1)
		d[i][0] = i
	}
	for j := range d[0] {
		d[0][j] = j
	}
	for i := 1; i <= len(ra); i++ {
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			d[i][j] = min(d[i-1][j]+1, d[i][j-1]+1, d[i-1][j-1]+cost)
			if i > 1 && j > 1 && ra[i-1] == rb[j-2] && ra[i-2] == rb[j-1] {
				d[i][j] = min(d[i][j], d[i-2][j-2]+cost)
			}
		}
	}
	return d[len(ra)][len(rb)]
}
