package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/sdejongh/contentsync/pkg/compare"
	"github.com/sdejongh/contentsync/pkg/config"
	"github.com/sdejongh/contentsync/pkg/ledger"
	"github.com/sdejongh/contentsync/pkg/logging"
	"github.com/sdejongh/contentsync/pkg/metrics"
	"github.com/sdejongh/contentsync/pkg/models"
	"github.com/sdejongh/contentsync/pkg/output"
	"github.com/sdejongh/contentsync/pkg/storage"
	"github.com/sdejongh/contentsync/pkg/storage/airtable"
	"github.com/sdejongh/contentsync/pkg/storage/sheets"
	"github.com/sdejongh/contentsync/pkg/sync"
)

// app holds the resources of one command invocation
type app struct {
	cfg    *config.Config
	logger logging.Logger
	storeA storage.Backend
	storeB storage.Backend
	ledger *ledger.Ledger
}

// loadConfig loads configuration from the --config file or the default location
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(globalFlags.ConfigFile)
	if err != nil {
		return nil, err
	}
	if globalFlags.Output != "" {
		cfg.Output.Format = globalFlags.Output
	}
	if globalFlags.Quiet {
		cfg.Output.Progress = false
		cfg.Output.Quiet = true
	}
	if globalFlags.Verbose {
		cfg.Logging.Level = "debug"
	}
	return cfg, cfg.Validate()
}

// applySyncFlags overrides config values with the sync command flags
func applySyncFlags(cfg *config.Config, f *SyncFlags) error {
	if f.Policy != "" {
		cfg.Sync.Policy = models.Policy(f.Policy)
	}
	if f.Direction != "" {
		cfg.Sync.Direction = models.Direction(f.Direction)
	}
	if f.Comparison != "" {
		cfg.Sync.Comparison = f.Comparison
	}
	if f.BatchSize != 0 {
		cfg.Sync.BatchSize = f.BatchSize
	}
	if f.Delay != "" {
		cfg.Sync.InterBatchDelay = f.Delay
	}
	return cfg.Validate()
}

// newApp opens the logger and both stores. Stores that cannot be built are
// replaced by an Unavailable stand-in so the run degrades instead of failing.
func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	logger, err := createLogger(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	a := &app{cfg: cfg, logger: logger}
	a.storeA = a.openStoreA(ctx)
	a.storeB = a.openStoreB(ctx)
	return a, nil
}

func (a *app) openStoreA(ctx context.Context) storage.Backend {
	c := a.cfg.StoreA
	var (
		backend storage.Backend
		err     error
	)
	switch c.Type {
	case config.TypeLocal:
		backend, err = storage.NewLocal(models.StoreA, c.Path)
	default:
		backend, err = airtable.New(airtable.Config{
			BaseURL:           c.BaseURL,
			BaseID:            c.BaseID,
			Table:             c.Table,
			Token:             c.Token,
			RequestsPerSecond: c.RequestsPerSecond,
			Timeout:           config.Duration(c.Timeout),
			CacheTTL:          config.Duration(c.CacheTTL),
			Fields: airtable.FieldNames{
				Title:                    c.Fields.Title,
				PrimaryKeyword:           c.Fields.PrimaryKeyword,
				Author:                   c.Fields.Author,
				Status:                   c.Fields.Status,
				Approved:                 c.Fields.Approved,
				PublishDate:              c.Fields.PublishDate,
				FeatureImage:             c.Fields.FeatureImage,
				BodyRef:                  c.Fields.BodyRef,
				LastModified:             c.Fields.LastModified,
				FeatureImageAsAttachment: c.Fields.FeatureImageAsAttachment,
			},
		}, a.logger)
	}
	if err != nil {
		a.logger.Warn(ctx, "store unavailable", logging.Fields{"store": string(models.StoreA), "error": err.Error()})
		return storage.NewUnavailable(models.StoreA, err)
	}
	return backend
}

func (a *app) openStoreB(ctx context.Context) storage.Backend {
	c := a.cfg.StoreB
	var (
		backend storage.Backend
		err     error
	)
	switch c.Type {
	case config.TypeLocal:
		backend, err = storage.NewLocal(models.StoreB, c.Path)
	default:
		backend, err = sheets.New(ctx, sheets.Config{
			Endpoint:        c.Endpoint,
			SpreadsheetID:   c.SpreadsheetID,
			SheetName:       c.SheetName,
			Columns:         c.Columns,
			APIKey:          c.APIKey,
			CredentialsFile: c.CredentialsFile,
			CSVExportURL:    c.CSVExportURL,
			CacheTTL:        config.Duration(c.CacheTTL),
			Timeout:         config.Duration(c.Timeout),
		}, a.logger)
	}
	if err != nil {
		a.logger.Warn(ctx, "store unavailable", logging.Fields{"store": string(models.StoreB), "error": err.Error()})
		return storage.NewUnavailable(models.StoreB, err)
	}
	return backend
}

// openLedger opens the timestamp ledger. A ledger that cannot be opened is
// logged and the run continues with unstamped records.
func (a *app) openLedger(ctx context.Context) *ledger.Ledger {
	path := a.cfg.State.LedgerPath()
	if path == "" {
		return nil
	}
	l, err := ledger.Open(path)
	if err != nil {
		a.logger.Warn(ctx, "timestamp ledger unavailable", logging.Fields{"path": path, "error": err.Error()})
		return nil
	}
	a.ledger = l
	return l
}

// newEngine builds the sync engine with the configured options
func (a *app) newEngine(formatter output.Formatter, w io.Writer, dryRun bool) (*sync.Engine, error) {
	comparator, err := compare.New(a.cfg.Sync.Comparison)
	if err != nil {
		return nil, err
	}

	engine := sync.NewEngine(a.storeA, a.storeB, comparator, formatter, a.logger, sync.Options{
		Policy:          a.cfg.Sync.Policy,
		DefaultMaster:   a.cfg.Sync.DefaultMaster,
		Direction:       a.cfg.Sync.Direction,
		DryRun:          dryRun,
		ApprovedOnlyA:   a.cfg.StoreA.ApprovedOnly,
		BatchSize:       a.cfg.Sync.BatchSize,
		InterBatchDelay: config.Duration(a.cfg.Sync.InterBatchDelay),
	})
	engine.SetOutput(w)
	return engine, nil
}

// addObservers registers the status file and metrics writers
func (a *app) addObservers(engine *sync.Engine) {
	if path := a.cfg.State.StatusPath(); path != "" {
		engine.AddObserver(sync.NewStatusStore(path))
	}
	if path := a.cfg.State.MetricsPath(); path != "" {
		engine.AddObserver(metrics.NewRecorder(path))
	}
}

// Close releases the stores, the ledger and the logger
func (a *app) Close() error {
	var errs []error
	for _, s := range []storage.Backend{a.storeA, a.storeB} {
		if s != nil {
			errs = append(errs, s.Close())
		}
	}
	if a.ledger != nil {
		errs = append(errs, a.ledger.Close())
	}
	errs = append(errs, a.logger.Close())
	return errors.Join(errs...)
}

// createLogger creates the zap logger, writing to stderr unless a log file
// is configured
func createLogger(c config.LoggingConfig) (logging.Logger, error) {
	format := logging.FormatJSON
	if c.Format == "text" {
		format = logging.FormatText
	}

	logger, err := logging.NewZapLogger(logging.Config{
		Format:     format,
		Level:      logging.ParseLevel(c.Level),
		Path:       c.File,
		MaxSizeMB:  c.MaxSizeMB,
		MaxBackups: c.MaxBackups,
		MaxAgeDays: c.MaxAgeDays,
	})
	if err != nil {
		return nil, err
	}
	return logger, nil
}
