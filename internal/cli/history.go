package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/hyperjump/hondana/internal/models"
)

// WriteHistory lists history entries, newest first as given.
func WriteHistory(w io.Writer, entries []*models.HistoryEntry, format OutputFormat) error {
	if format == OutputJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(entries)
	}
	if len(entries) == 0 {
		fmt.Fprintln(w, "No searches recorded.")
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "WHEN\tQUERY\tPAGE\tRESULT")
	for _, e := range entries {
		result := fmt.Sprintf("%d matches", e.Total)
		if e.Failed {
			result = "failed"
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", e.CreatedAt.Local().Format("2006-01-02 15:04"), e.Query, e.Page, result)
	}
	return tw.Flush()
}
