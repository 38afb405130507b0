package output

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/sdejongh/contentsync/pkg/models"
)

// WriteDiffReport writes the status diff report.
// Format can be "human" or "json".
func WriteDiffReport(w io.Writer, report *models.DiffReport, format string) error {
	switch format {
	case "json":
		return writeDiffJSON(w, report)
	default: // "human"
		return writeDiffHuman(w, report)
	}
}

func writeDiffJSON(w io.Writer, report *models.DiffReport) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(report)
}

// writeDiffHuman writes the diff report in human-readable format
func writeDiffHuman(w io.Writer, report *models.DiffReport) error {
	fmt.Fprintf(w, "Status Report\n")
	fmt.Fprintf(w, "=============\n\n")
	fmt.Fprintf(w, "Generated: %s\n\n", report.GeneratedAt.Format(time.RFC3339))

	table := tablewriter.NewWriter(w)
	table.Header("", "Store A", "Store B")
	rows := [][]string{
		{"Records", itoa(report.FetchedA), itoa(report.FetchedB)},
		{"Visible now", itoa(report.VisibleA), itoa(report.VisibleB)},
		{"Only here", itoa(report.LeftOnly), itoa(report.RightOnly)},
	}
	for _, row := range rows {
		if err := table.Append(row); err != nil {
			return err
		}
	}
	if err := table.Render(); err != nil {
		return err
	}

	fmt.Fprintf(w, "\nMatched: %d (%d in sync, %d divergent)\n", report.Matched, report.InSync, report.Divergent)
	fmt.Fprintf(w, "Sync recommended: %v\n", report.SyncRecommended)

	sections := []struct {
		label string
		ids   []string
	}{
		{"Only in store A", report.LeftOnlyIdentities},
		{"Only in store B", report.RightOnlyIdentities},
	}
	for _, s := range sections {
		if len(s.ids) == 0 {
			continue
		}
		label := fmt.Sprintf("%s (%d records)", s.label, len(s.ids))
		fmt.Fprintf(w, "\n%s\n%s\n", label, strings.Repeat("-", len(label)))
		for _, id := range s.ids {
			fmt.Fprintf(w, "  %s\n", id)
		}
	}

	if len(report.Differences) > 0 {
		label := fmt.Sprintf("Divergent (%d records)", len(report.Differences))
		fmt.Fprintf(w, "\n%s\n%s\n", label, strings.Repeat("-", len(label)))
		for _, d := range report.Differences {
			fmt.Fprintf(w, "  %s: %s\n", d.Title, strings.Join(d.Fields, ", "))
		}
	}

	if len(report.Warnings) > 0 {
		fmt.Fprintf(w, "\nWarnings:\n")
		for _, warning := range report.Warnings {
			fmt.Fprintf(w, "  %s\n", warning)
		}
	}
	return nil
}
