package cli

import (
	"context"
	"fmt"
	"io"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sdejongh/contentsync/pkg/models"
	"github.com/sdejongh/contentsync/pkg/output"
	"github.com/sdejongh/contentsync/pkg/sync"
)

// NewSyncBidirectionalCommand creates the sync-bidirectional command
func NewSyncBidirectionalCommand() *cobra.Command {
	return newSyncCommand(models.ModeBidirectional,
		"Reconcile store A and store B",
		`Fetch both stores, match records by title and primary keyword, push the
winner of every divergent pair to the other store and create records missing
on either side. Writes are limited by --direction.`)
}

// NewSyncAToBCommand creates the sync-a-to-b command
func NewSyncAToBCommand() *cobra.Command {
	return newSyncCommand(models.ModeAToB,
		"Copy records missing in store B from store A",
		`Fetch store A and create every record store B does not have yet.
Existing records are never updated.`)
}

// NewSyncBToACommand creates the sync-b-to-a command
func NewSyncBToACommand() *cobra.Command {
	return newSyncCommand(models.ModeBToA,
		"Copy records missing in store A from store B",
		`Fetch store B and create every record store A does not have yet.
Existing records are never updated.`)
}

func newSyncCommand(mode models.SyncMode, short, long string) *cobra.Command {
	flags := &SyncFlags{}
	cmd := &cobra.Command{
		Use:   "sync-" + string(mode),
		Short: short,
		Long:  long,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSync(cmd, mode, flags)
		},
	}
	addSyncFlags(cmd, flags)
	return cmd
}

func runSync(cmd *cobra.Command, mode models.SyncMode, flags *SyncFlags) error {
	ctx, stop := signal.NotifyContext(commandContext(cmd), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Override config with command-line flags
	if err := applySyncFlags(cfg, flags); err != nil {
		return fmt.Errorf("invalid flags: %w", err)
	}

	out := cmd.OutOrStdout()
	if cfg.Output.Quiet {
		out = io.Discard
	}
	formatter, err := output.New(cfg.Output.Format, cfg.Output.Progress, out)
	if err != nil {
		return err
	}

	// Only one run at a time may write to the stores
	lock, err := sync.AcquireRunLock(cfg.State.LockPath())
	if err != nil {
		return err
	}
	defer lock.Release()

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	engine, err := a.newEngine(formatter, out, flags.DryRun)
	if err != nil {
		return err
	}
	if l := a.openLedger(ctx); l != nil {
		engine.SetStamper(l)
	}
	a.addObservers(engine)

	report, err := engine.Run(ctx, mode)
	if report != nil && report.Status == models.StatusCancelled {
		return &ExitError{Code: report.Status.ExitCode(), Err: fmt.Errorf("sync %s: %w", report.Status, context.Cause(ctx))}
	}
	if err != nil {
		formatter.Error(err)
		return fmt.Errorf("sync failed: %w", err)
	}

	if code := report.Status.ExitCode(); code != 0 {
		return &ExitError{Code: code, Err: fmt.Errorf("sync %s: %s", report.Status, output.SummaryLine(report))}
	}
	return nil
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
