// Package cli renders pipeline results for the terminal.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/hyperjump/digitrace/internal/models"
	"github.com/hyperjump/digitrace/internal/search"
	"github.com/hyperjump/digitrace/pkg/utils"
)

// OutputFormat is the format for command output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputCompact prints one match per line, tab separated.
	OutputCompact OutputFormat = "compact"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// ParseOutputFormat validates a -output flag value.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch f := OutputFormat(s); f {
	case OutputText, OutputCompact, OutputJSON:
		return f, nil
	default:
		return "", fmt.Errorf("unknown output format %q; use text, compact, or json", s)
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// WriteSearchResults writes a match response to w in the given format.
// Suggestions are printed in text mode when nothing matched.
func WriteSearchResults(w io.Writer, response *models.MatchResponse, suggestions []search.Suggestion, format OutputFormat) error {
	switch format {
	case OutputJSON:
		return writeJSON(w, response)
	case OutputCompact:
		for _, m := range response.Matches {
			l, t, r, b := m.Region.Bounds()
			fmt.Fprintf(w, "%d\t%s\t%s\t%g,%g,%g,%g\n", m.Distance, m.Value, m.Source, l, t, r, b)
		}
		return nil
	default:
		writeSearchResultsText(w, response, suggestions)
		return nil
	}
}

func writeSearchResultsText(w io.Writer, response *models.MatchResponse, suggestions []search.Suggestion) {
	fmt.Fprintf(w, "\nFound %d match(es) for %q within distance %d in %dms\n",
		response.Total, response.Query, response.Tolerance, response.QueryTime)
	if len(response.Matches) < response.Total {
		fmt.Fprintf(w, "Showing the closest %d\n", len(response.Matches))
	}
	fmt.Fprintln(w)
	if len(response.Matches) == 0 {
		if len(suggestions) > 0 {
			parts := make([]string, len(suggestions))
			for i, s := range suggestions {
				parts[i] = fmt.Sprintf("%s (distance %d)", s.Value, s.Distance)
			}
			fmt.Fprintf(w, "Closest values: %s\n", strings.Join(parts, ", "))
		}
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tDIST\tVALUE\tREGION\tSOURCE")
	for i, m := range response.Matches {
		l, t, r, b := m.Region.Bounds()
		fmt.Fprintf(tw, "%d\t%d\t%s\t[%g %g %g %g]\t%s\n", i, m.Distance, utils.Truncate(m.Value, 40), l, t, r, b, m.Source)
	}
	_ = tw.Flush()
}

// WriteIngestResult writes the outcome of an ingestion.
func WriteIngestResult(w io.Writer, res *models.IngestResult, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, res)
	}
	state := "indexed"
	if res.CacheHit {
		state = "cached"
	}
	fmt.Fprintf(w, "Index %s: %s\n", state, res.Path)
	fmt.Fprintf(w, "key:       %s\n", res.Key)
	fmt.Fprintf(w, "files:     %d\n", res.Files)
	fmt.Fprintf(w, "entries:   %d\n", res.Entries)
	fmt.Fprintf(w, "tokens:    %d\n", res.Tokens)
	fmt.Fprintf(w, "duration:  %s\n", res.Duration.Round(time.Millisecond))
	if len(res.Failures) > 0 {
		fmt.Fprintf(w, "\n%d file(s) failed:\n", len(res.Failures))
		for _, f := range res.Failures {
			fmt.Fprintf(w, "  [%s] %s: %s\n", f.Phase, f.Path, utils.Truncate(f.Error, 200))
		}
	}
	return nil
}

// WriteRuns writes catalog runs, newest first.
func WriteRuns(w io.Writer, runs []models.Run, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, runs)
	}
	if len(runs) == 0 {
		fmt.Fprintln(w, "No ingestion runs recorded.")
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "CREATED\tKEY\tFILES\tENTRIES\tTOKENS\tFAILED\tCACHED")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\t%d\t%t\n",
			r.CreatedAt.Local().Format(time.DateTime), ShortKey(r.Key), r.Files, r.Entries, r.Tokens, r.Failures, r.CacheHit)
	}
	return tw.Flush()
}

// WriteStatus writes a cache and catalog summary.
func WriteStatus(w io.Writer, st *models.Status, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, st)
	}
	fmt.Fprintf(w, "cache_dir:         %s\n", st.CacheDir)
	fmt.Fprintf(w, "indexes:           %d   # cached file sets\n", st.Indexes)
	fmt.Fprintf(w, "runs:              %d   # recorded ingestion runs\n", st.Runs)
	fmt.Fprintf(w, "disk_usage_bytes:  %d   # cache + catalog on disk\n", st.DiskUsageBytes)
	if st.LatestRun != nil {
		fmt.Fprintf(w, "latest_key:        %s\n", st.LatestRun.Key)
		fmt.Fprintf(w, "latest_at:         %s\n", st.LatestRun.CreatedAt.Local().Format(time.DateTime))
	}
	return nil
}

// ShortKey abbreviates a cache key for tables.
func ShortKey(key string) string {
	if len(key) <= 12 {
		return key
	}
	return key[:12]
}
