// Package cli provides output formatting for the animerec command line.
package cli

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	json "github.com/goccy/go-json"

	"github.com/hyperjump/animerec/internal/models"
	"github.com/hyperjump/animerec/internal/storage"
	"github.com/hyperjump/animerec/pkg/utils"
)

// OutputFormat selects how command results are written.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputCompact prints one line per result.
	OutputCompact OutputFormat = "compact"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// synopsisPreview is the rune budget for synopses in text output.
const synopsisPreview = 200

// ParseOutputFormat maps a flag value to an OutputFormat. Empty means text.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch f := OutputFormat(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return OutputText, nil
	case OutputText, OutputCompact, OutputJSON:
		return f, nil
	default:
		return "", fmt.Errorf("unknown output format %q (want text, compact or json)", s)
	}
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// WriteRecommendations writes a recommendation response to w in the given format.
func WriteRecommendations(w io.Writer, resp *models.RecommendResponse, format OutputFormat) error {
	switch format {
	case OutputJSON:
		return writeJSON(w, resp)
	case OutputCompact:
		for _, rec := range resp.Recommendations {
			fmt.Fprintf(w, "%d\t%.4f\t%s\n", rec.Rank, rec.Score, rec.Record.Title)
		}
		return nil
	default:
		fmt.Fprintf(w, "\nTop %d recommendations for %q in %dms\n\n",
			len(resp.Recommendations), resp.Resolved, resp.QueryTime)
		for _, rec := range resp.Recommendations {
			writeRecord(w, rec.Rank, rec.Score, rec.Record)
		}
		return nil
	}
}

// WriteSuggestions writes fuzzy title suggestions to w in the given format.
func WriteSuggestions(w io.Writer, resp *models.SuggestResponse, format OutputFormat) error {
	switch format {
	case OutputJSON:
		return writeJSON(w, resp)
	case OutputCompact:
		for _, m := range resp.Suggestions {
			fmt.Fprintf(w, "%d\t%s\n", m.Score, m.Title)
		}
		return nil
	default:
		if len(resp.Suggestions) == 0 {
			fmt.Fprintf(w, "No titles resemble %q\n", resp.Query)
			return nil
		}
		fmt.Fprintf(w, "Did you mean:\n")
		for _, m := range resp.Suggestions {
			fmt.Fprintf(w, "  %-40s (%d)\n", m.Title, m.Score)
		}
		return nil
	}
}

// WriteSearchResults writes catalog search hits to w in the given format.
func WriteSearchResults(w io.Writer, resp *models.SearchResponse, format OutputFormat) error {
	switch format {
	case OutputJSON:
		return writeJSON(w, resp)
	case OutputCompact:
		for _, hit := range resp.Hits {
			fmt.Fprintf(w, "%d\t%.4f\t%s\n", hit.Rank, hit.Score, hit.Record.Title)
		}
		return nil
	default:
		mode := "exact"
		if resp.Fuzzy {
			mode = "fuzzy"
		}
		fmt.Fprintf(w, "\nFound %d results in %dms (%s)\n\n", resp.Total, resp.QueryTime, mode)
		for _, hit := range resp.Hits {
			writeRecord(w, hit.Rank, hit.Score, hit.Record)
		}
		return nil
	}
}

func writeRecord(w io.Writer, rank int, score float64, r models.CatalogRecord) {
	fmt.Fprintf(w, "─────────────────────────────────────────────────────────\n")
	fmt.Fprintf(w, "Rank: %d | Score: %.4f | ID: %d\n", rank, score, r.ID)
	fmt.Fprintf(w, "Title: %s\n", r.Title)
	if r.TitleEnglish != "" && r.TitleEnglish != r.Title {
		fmt.Fprintf(w, "English: %s\n", r.TitleEnglish)
	}
	if r.Genres != "" {
		fmt.Fprintf(w, "Genres: %s\n", r.Genres)
	}
	if r.Synopsis != "" {
		fmt.Fprintf(w, "\n%s\n", utils.Truncate(r.Synopsis, synopsisPreview))
	}
	fmt.Fprintln(w)
}

// WriteStatus writes catalog status to w. now anchors the relative cache age.
func WriteStatus(w io.Writer, status *models.CatalogStatus, format OutputFormat, now time.Time) error {
	if format == OutputJSON {
		return writeJSON(w, status)
	}
	age := "unknown"
	if t, err := time.ParseInLocation(storage.LastUpdatedLayout, status.LastUpdated, time.Local); err == nil {
		age = humanize.RelTime(t, now, "ago", "from now")
	}
	if format == OutputCompact {
		fmt.Fprintf(w, "records=%d fresh=%t updated=%q\n", status.Records, status.Fresh, status.LastUpdated)
		return nil
	}
	fmt.Fprintf(w, "Records:      %s\n", humanize.Comma(int64(status.Records)))
	fmt.Fprintf(w, "Last updated: %s (%s)\n", status.LastUpdated, age)
	fmt.Fprintf(w, "Fresh:        %t\n", status.Fresh)
	fmt.Fprintf(w, "Cache:        %s %s\n", status.CacheBackend, status.CachePath)
	if status.DiskUsageBytes != nil {
		fmt.Fprintf(w, "Disk usage:   %s\n", humanize.Bytes(uint64(*status.DiskUsageBytes)))
	}
	if status.Embedder != "" {
		fmt.Fprintf(w, "Embedder:     %s (%dx%d matrix)\n", status.Embedder, status.MatrixDim, status.MatrixDim)
	}
	if status.Fingerprint != "" {
		fmt.Fprintf(w, "Fingerprint:  %s\n", utils.Truncate(status.Fingerprint, 16))
	}
	if status.PageWarnings > 0 {
		fmt.Fprintf(w, "Warnings:     %d page(s) failed in the last fetch\n", status.PageWarnings)
	}
	return nil
}

// WriteRefresh writes a refresh summary to w in the given format.
func WriteRefresh(w io.Writer, resp *models.RefreshResponse, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, resp)
	}
	fmt.Fprintf(w, "Refreshed %s records in %s (session %s)\n",
		humanize.Comma(int64(resp.Records)), time.Duration(resp.Duration)*time.Millisecond, resp.SessionID)
	for _, warning := range resp.PageWarnings {
		fmt.Fprintf(w, "  warning: %s\n", warning)
	}
	return nil
}
