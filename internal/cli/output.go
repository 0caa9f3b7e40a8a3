// Package cli provides output formatting and input parsing for the kagami commands.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/hyperjump/kagami/internal/models"
)

// OutputFormat is the format of command output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
	// OutputPaths prints one image path (or label) per line, for piping into other tools.
	OutputPaths OutputFormat = "paths"
)

// ParseFormat validates a -format flag value.
func ParseFormat(s string) (OutputFormat, error) {
	switch f := OutputFormat(strings.ToLower(s)); f {
	case "", OutputText:
		return OutputText, nil
	case OutputJSON, OutputPaths:
		return f, nil
	default:
		return "", fmt.Errorf("unknown output format %q (text, json, paths)", s)
	}
}

// WriteJSON writes v as indented JSON.
func WriteJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// WriteSearchResponse writes neighbor or text search results.
func WriteSearchResponse(w io.Writer, resp *models.SearchResponse, format OutputFormat) error {
	switch format {
	case OutputJSON:
		return WriteJSON(w, resp)
	case OutputPaths:
		for _, h := range resp.Hits {
			fmt.Fprintln(w, h.Path)
		}
		return nil
	}
	fmt.Fprintf(w, "\n%d results from %s (%s) in %dms\n", resp.Total, resp.Catalog, resp.Metric, resp.QueryTime)
	writeDegraded(w, resp.Degraded, resp.QueryDimensions, resp.CatalogDimensions)
	fmt.Fprintln(w)
	for _, h := range resp.Hits {
		fmt.Fprintf(w, "%3d. #%-7d %-10s %.6f  %s\n", h.Rank, h.Index, h.CategoryID, h.Distance, h.Label)
		fmt.Fprintf(w, "     %s\n", h.Path)
	}
	return nil
}

// WriteCategoryResponse writes a category ranking. Rows sharing a label are all printed.
func WriteCategoryResponse(w io.Writer, resp *models.CategoryResponse, format OutputFormat) error {
	switch format {
	case OutputJSON:
		return WriteJSON(w, resp)
	case OutputPaths:
		for _, c := range resp.Categories {
			fmt.Fprintln(w, c.Label)
		}
		return nil
	}
	fmt.Fprintf(w, "\nTop %d categories from %s in %dms\n", resp.Total, resp.Catalog, resp.QueryTime)
	writeDegraded(w, resp.Degraded, resp.QueryDimensions, resp.CatalogDimensions)
	fmt.Fprintln(w)
	for _, c := range resp.Categories {
		fmt.Fprintf(w, "%3d. %-10s %.6f  %s\n", c.Rank, c.CategoryID, c.Distance, c.Label)
	}
	return nil
}

func writeDegraded(w io.Writer, degraded bool, query, catalog int) {
	if degraded {
		fmt.Fprintf(w, "warning: query has %d dimensions, catalog has %d; query was adjusted\n", query, catalog)
	}
}

// WriteItem writes one catalog record.
func WriteItem(w io.Writer, item *models.Item, format OutputFormat) error {
	switch format {
	case OutputJSON:
		return WriteJSON(w, item)
	case OutputPaths:
		fmt.Fprintln(w, item.Path)
		return nil
	}
	fmt.Fprintf(w, "Catalog:  %s\nIndex:    %d\nCategory: %s (%s)\nOrdinal:  %d\nPath:     %s\n",
		item.Catalog, item.Index, item.CategoryID, item.Label, item.Ordinal, item.Path)
	return nil
}

// WriteStatus writes the engine status.
func WriteStatus(w io.Writer, st *models.Status, format OutputFormat) error {
	if format == OutputJSON {
		return WriteJSON(w, st)
	}
	fmt.Fprintf(w, "Labels: %d (%s)\n", st.Labels, st.LabelsPath)
	fmt.Fprintf(w, "Text encoder: %v\n", st.Encoder)
	for _, c := range st.Catalogs {
		fmt.Fprintf(w, "\nCatalog %s\n", c.Name)
		fmt.Fprintf(w, "  source:     %s %s\n", c.Source, c.Path)
		fmt.Fprintf(w, "  metric:     %s\n", c.Metric)
		fmt.Fprintf(w, "  records:    %d x %d\n", c.Records, c.Dimensions)
		fmt.Fprintf(w, "  categories: %d\n", c.Categories)
		fmt.Fprintf(w, "  ordinals:   persisted=%v mismatches=%d\n", c.PersistedOrdinal, c.OrdinalMismatch)
		if c.SizeBytes > 0 {
			fmt.Fprintf(w, "  size:       %s\n", FormatBytes(c.SizeBytes))
		}
	}
	return nil
}

// FormatBytes renders n with a binary unit suffix.
func FormatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
