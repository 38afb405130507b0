package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sdejongh/contentsync/pkg/output"
	"github.com/sdejongh/contentsync/pkg/sync"
)

// NewStatusCommand creates the status command
func NewStatusCommand() *cobra.Command {
	var (
		format  string
		lastRun bool
	)

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Report how the stores differ without writing",
		Long: `Fetch both stores and report matched, store-A-only and store-B-only
records, divergent pairs and whether a sync is recommended. Nothing is written
to either store. The command always exits 0; failures are part of the report.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if globalFlags.Output != "" && !cmd.Flags().Changed("format") {
				format = globalFlags.Output
			}
			if lastRun {
				return showLastRun(cmd, out, format)
			}
			if err := runStatus(cmd, out, format); err != nil {
				writeStatusError(out, format, err)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&format, "format", "json", "report format: json, human")
	cmd.Flags().BoolVar(&lastRun, "last-run", false, "show the status file of the last sync run instead")

	return cmd
}

func runStatus(cmd *cobra.Command, out io.Writer, format string) error {
	ctx, stop := signal.NotifyContext(commandContext(cmd), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	engine, err := a.newEngine(output.Null{}, io.Discard, true)
	if err != nil {
		return err
	}

	diff, err := engine.Status(ctx)
	if err != nil {
		return err
	}
	return output.WriteDiffReport(out, diff, format)
}

func showLastRun(cmd *cobra.Command, out io.Writer, format string) error {
	cfg, err := loadConfig()
	if err != nil {
		writeStatusError(out, format, fmt.Errorf("failed to load config: %w", err))
		return nil
	}

	doc, err := sync.NewStatusStore(cfg.State.StatusPath()).Load()
	switch {
	case err != nil:
		writeStatusError(out, format, err)
	case doc == nil:
		writeStatusError(out, format, fmt.Errorf("no sync has run yet"))
	case format == "human":
		fmt.Fprintf(out, "Last sync: %s (%s, %s)\n", doc.LastSync.Format("2006-01-02 15:04:05"), doc.Mode, doc.Status)
		fmt.Fprintf(out, "Duration:  %s\n", doc.Duration)
		fmt.Fprintf(out, "Errors:    %d\n", len(doc.Errors))
		for _, e := range doc.Errors {
			fmt.Fprintf(out, "  %s %s -> store %s: %s\n", e.Op, e.Identity, e.Target, e.Error)
		}
	default:
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(doc)
	}
	return nil
}

func writeStatusError(out io.Writer, format string, err error) {
	if format == "human" {
		fmt.Fprintf(out, "Error: %v\n", err)
		return
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	enc.Encode(map[string]string{"error": err.Error()})
}
