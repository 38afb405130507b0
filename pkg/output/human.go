package output

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/sdejongh/contentsync/pkg/models"
)

// HumanFormatter formats output in human-readable format
type HumanFormatter struct {
	writer io.Writer
	mode   models.SyncMode
	dryRun bool
}

// NewHumanFormatter creates a new human-readable formatter
func NewHumanFormatter() *HumanFormatter {
	return &HumanFormatter{}
}

// Start initializes the formatter
func (f *HumanFormatter) Start(writer io.Writer, mode models.SyncMode, dryRun bool) error {
	f.writer = writer
	f.mode = mode
	f.dryRun = dryRun

	if writer != nil {
		suffix := ""
		if dryRun {
			suffix = " (dry run, nothing will be written)"
		}
		fmt.Fprintf(writer, "Starting %s sync%s\n", mode, suffix)
	}
	return nil
}

// Progress prints failed records as they happen
func (f *HumanFormatter) Progress(update ProgressUpdate) error {
	if f.writer == nil {
		return nil
	}

	if update.Type == UpdateRecordError {
		fmt.Fprintf(f.writer, "[%d/%d] ✗ %s -> store %s: %v\n",
			update.Current, update.Total, update.Identity, update.Target, update.Error)
	}
	return nil
}

// Complete displays the summary table, warnings and errors
func (f *HumanFormatter) Complete(report *models.SyncReport) error {
	if f.writer == nil {
		f.writer = io.Discard
	}
	return writeSummary(f.writer, report)
}

// Error reports an error
func (f *HumanFormatter) Error(err error) error {
	if f.writer != nil {
		fmt.Fprintf(f.writer, "Error: %v\n", err)
	}
	return nil
}

// Name returns the formatter name
func (f *HumanFormatter) Name() string {
	return "human"
}

// SummaryLine returns the one-line outcome of a run
func SummaryLine(report *models.SyncReport) string {
	s := report.Stats
	return fmt.Sprintf("%d matched, %d created A→B, %d created B→A, %d errors",
		s.Matched, s.CreatedAToB, s.CreatedBToA, s.Errors)
}

func writeSummary(w io.Writer, report *models.SyncReport) error {
	s := report.Stats

	fmt.Fprintf(w, "\nSync %s completed in %s\n\n", report.Mode, report.Duration.Round(time.Millisecond))

	table := tablewriter.NewWriter(w)
	table.Header("", "Store A", "Store B")
	rows := [][]string{
		{"Fetched", itoa(s.FetchedA), itoa(s.FetchedB)},
		{"Only here", itoa(s.LeftOnly), itoa(s.RightOnly)},
		{"Updated", itoa(s.UpdatedA), itoa(s.UpdatedB)},
		{"Created", itoa(s.CreatedBToA), itoa(s.CreatedAToB)},
	}
	for _, row := range rows {
		if err := table.Append(row); err != nil {
			return err
		}
	}
	if err := table.Render(); err != nil {
		return err
	}

	fmt.Fprintf(w, "\n  Matched:           %d (%d already in sync)\n", s.Matched, s.InSync)
	fmt.Fprintf(w, "  Already present:   %d\n", s.AlreadyPresent)
	if s.Suppressed > 0 {
		fmt.Fprintf(w, "  Suppressed:        %d (direction %s)\n", s.Suppressed, report.Direction)
	}
	if s.Planned > 0 {
		fmt.Fprintf(w, "  Planned (dry run): %d\n", s.Planned)
	}
	if s.ApprovalRevocations > 0 {
		fmt.Fprintf(w, "  Approvals revoked: %d\n", s.ApprovalRevocations)
	}

	if len(report.Warnings) > 0 {
		fmt.Fprintf(w, "\nWarnings:\n")
		for _, warning := range report.Warnings {
			fmt.Fprintf(w, "  %s\n", warning)
		}
	}

	if failures := report.Failures(); len(failures) > 0 {
		fmt.Fprintf(w, "\nErrors:\n")
		for _, res := range failures {
			fmt.Fprintf(w, "  %s %s -> store %s: %s\n", res.Op, res.Record.Identity(), res.Target, res.Error)
		}
	}

	fmt.Fprintf(w, "\n%s\n", SummaryLine(report))
	fmt.Fprintf(w, "Status: %s\n", report.Status)
	return nil
}

func itoa(n int) string {
	return strconv.Itoa(n)
}

// formatDuration formats duration in human-readable format
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
}
