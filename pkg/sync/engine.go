package sync

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/sdejongh/contentsync/pkg/compare"
	"github.com/sdejongh/contentsync/pkg/logging"
	"github.com/sdejongh/contentsync/pkg/models"
	"github.com/sdejongh/contentsync/pkg/output"
	"github.com/sdejongh/contentsync/pkg/storage"
)

// Options configures a sync run
type Options struct {
	Policy        models.Policy
	DefaultMaster models.StoreID
	Direction     models.Direction
	DryRun        bool
	// ApprovedOnlyA asks store A for approved records only
	ApprovedOnlyA   bool
	BatchSize       int
	InterBatchDelay time.Duration
}

// Stamper assigns last-modified values to fetched records and remembers
// what was written. The timestamp ledger implements it.
type Stamper interface {
	Stamp(ctx context.Context, store models.StoreID, records []models.ContentRecord, now time.Time) ([]models.ContentRecord, error)
	Record(ctx context.Context, store models.StoreID, rec models.ContentRecord, now time.Time) error
}

// RunObserver is notified with the final report of every sync run
type RunObserver interface {
	ObserveRun(ctx context.Context, report *models.SyncReport) error
}

// Engine orchestrates sync runs between store A and store B
type Engine struct {
	storeA     storage.Backend
	storeB     storage.Backend
	comparator compare.Comparator
	formatter  output.Formatter
	logger     logging.Logger
	opts       Options
	stamper    Stamper
	observers  []RunObserver
	writer     *BatchWriter
	out        io.Writer
	now        func() time.Time
}

// NewEngine creates a new sync engine
func NewEngine(
	storeA, storeB storage.Backend,
	comparator compare.Comparator,
	formatter output.Formatter,
	logger logging.Logger,
	opts Options,
) *Engine {
	if comparator == nil {
		comparator = compare.NewFieldComparator()
	}
	if formatter == nil {
		formatter = output.Null{}
	}
	if !opts.Policy.IsValid() {
		opts.Policy = models.PolicyNewestWins
	}
	if !opts.DefaultMaster.IsValid() {
		opts.DefaultMaster = models.StoreA
	}
	if !opts.Direction.IsValid() {
		opts.Direction = models.DirectionBoth
	}
	logger = logging.OrNull(logger)

	writer := NewBatchWriter(opts.BatchSize, opts.InterBatchDelay, logger)
	writer.SetFormatter(formatter)

	return &Engine{
		storeA:     storeA,
		storeB:     storeB,
		comparator: comparator,
		formatter:  formatter,
		logger:     logger,
		opts:       opts,
		writer:     writer,
		out:        os.Stdout,
		now:        time.Now,
	}
}

// SetStamper installs the timestamp ledger
func (e *Engine) SetStamper(s Stamper) {
	e.stamper = s
}

// AddObserver registers o to receive every final report
func (e *Engine) AddObserver(o RunObserver) {
	e.observers = append(e.observers, o)
}

// SetOutput sets the writer handed to the formatter
func (e *Engine) SetOutput(w io.Writer) {
	e.out = w
}

// SetClock replaces the engine's time source
func (e *Engine) SetClock(now func() time.Time) {
	e.now = now
	e.writer.SetClock(now)
}

// Writer exposes the batch writer, mainly so tests can replace its sleep
func (e *Engine) Writer() *BatchWriter {
	return e.writer
}

// Run executes the sync mode
func (e *Engine) Run(ctx context.Context, mode models.SyncMode) (*models.SyncReport, error) {
	switch mode {
	case models.ModeBidirectional:
		return e.SyncBidirectional(ctx)
	case models.ModeAToB:
		return e.SyncOneWay(ctx, models.StoreA)
	case models.ModeBToA:
		return e.SyncOneWay(ctx, models.StoreB)
	default:
		return nil, fmt.Errorf("unsupported sync mode %q", mode)
	}
}

func (e *Engine) backend(store models.StoreID) storage.Backend {
	if store == models.StoreA {
		return e.storeA
	}
	return e.storeB
}

func (e *Engine) newReport(mode models.SyncMode) *models.SyncReport {
	return &models.SyncReport{
		RunID:     uuid.NewString(),
		Mode:      mode,
		Policy:    e.opts.Policy,
		Direction: e.opts.Direction,
		DryRun:    e.opts.DryRun,
		StartTime: e.now(),
		Status:    models.StatusSuccess,
	}
}

func (e *Engine) enter(report *models.SyncReport, phase models.Phase) {
	report.Phase = phase
	e.formatter.Progress(output.ProgressUpdate{Type: output.UpdatePhase, Phase: phase})
}

func (e *Engine) warn(ctx context.Context, report *models.SyncReport, msg string, fields logging.Fields) {
	report.Warnings = append(report.Warnings, msg)
	e.logger.Warn(ctx, msg, fields)
}

// fetched is the FETCHING phase result for one store
type fetched struct {
	records []models.ContentRecord
	err     error
}

// fetch reads the given stores concurrently. A failing store yields an
// empty record set and is marked unreachable; it never aborts the run.
func (e *Engine) fetch(ctx context.Context, report *models.SyncReport, stamp bool, stores ...models.StoreID) map[models.StoreID][]models.ContentRecord {
	results := make([]fetched, len(stores))

	var g errgroup.Group
	for i, store := range stores {
		g.Go(func() error {
			opts := storage.FetchOptions{ApprovedOnly: store == models.StoreA && e.opts.ApprovedOnlyA}
			recs, err := e.backend(store).FetchAll(ctx, opts)
			results[i] = fetched{records: recs, err: err}
			return nil
		})
	}
	g.Wait()

	out := make(map[models.StoreID][]models.ContentRecord, len(stores))
	for i, store := range stores {
		res := results[i]
		if res.err != nil {
			report.MarkUnreachable(store)
			e.warn(ctx, report, fmt.Sprintf("store %s unreachable, treating it as empty: %v", store, res.err), logging.Fields{
				"store": string(store),
				"error": res.err.Error(),
			})
			out[store] = nil
			continue
		}

		recs := res.records
		if stamp && e.stamper != nil {
			stamped, err := e.stamper.Stamp(ctx, store, recs, e.now())
			if err != nil {
				e.warn(ctx, report, fmt.Sprintf("timestamp ledger unavailable for store %s: %v", store, err), logging.Fields{
					"store": string(store),
					"error": err.Error(),
				})
			} else {
				recs = stamped
			}
		}
		out[store] = recs
		e.logger.Info(ctx, "Fetched records", logging.Fields{"store": string(store), "count": len(recs)})
	}

	report.Stats.FetchedA = len(out[models.StoreA])
	report.Stats.FetchedB = len(out[models.StoreB])
	return out
}

// plan collects the operations of one run per target store
type plan struct {
	updates map[models.StoreID][]models.Operation
	creates map[models.StoreID][]models.Operation
	// skipped counts operations dropped because their target failed to fetch
	skipped map[models.StoreID]int
}

func newPlan() *plan {
	return &plan{
		updates: make(map[models.StoreID][]models.Operation),
		creates: make(map[models.StoreID][]models.Operation),
		skipped: make(map[models.StoreID]int),
	}
}

// add queues op for target unless the direction restriction or an
// unreachable target rules it out
func (e *Engine) add(ctx context.Context, p *plan, report *models.SyncReport, target models.StoreID, op models.Operation) {
	if !e.opts.Direction.Allows(target) {
		report.Stats.Suppressed++
		e.logger.Debug(ctx, "Write suppressed by direction", logging.Fields{
			"identity":  op.Record.Identity(),
			"store":     string(target),
			"op":        string(op.Kind),
			"direction": string(e.opts.Direction),
		})
		return
	}

	if report.IsUnreachable(target) {
		p.skipped[target]++
		return
	}

	if op.RevokesApproval {
		report.Stats.ApprovalRevocations++
		e.logger.Warn(ctx, "approval revoked by winning record", logging.Fields{
			"identity": op.Record.Identity(),
			"store":    string(target),
		})
	}

	if op.Kind == models.OpUpdate {
		p.updates[target] = append(p.updates[target], op)
	} else {
		p.creates[target] = append(p.creates[target], op)
	}
}

// execute runs the WRITING phase: updates before creates, store A first
func (e *Engine) execute(ctx context.Context, p *plan, report *models.SyncReport) {
	e.enter(report, models.PhaseWriting)

	for _, target := range []models.StoreID{models.StoreA, models.StoreB} {
		if n := p.skipped[target]; n > 0 {
			e.warn(ctx, report, fmt.Sprintf("%d writes to store %s skipped: store unreachable", n, target), logging.Fields{
				"store":   string(target),
				"skipped": n,
			})
		}
	}

	var queue []struct {
		target models.StoreID
		ops    []models.Operation
	}
	for _, group := range []map[models.StoreID][]models.Operation{p.updates, p.creates} {
		for _, target := range []models.StoreID{models.StoreA, models.StoreB} {
			if ops := group[target]; len(ops) > 0 {
				queue = append(queue, struct {
					target models.StoreID
					ops    []models.Operation
				}{target, ops})
			}
		}
	}

	for _, item := range queue {
		if e.opts.DryRun {
			at := e.now()
			for _, op := range item.ops {
				e.collect(ctx, report, models.Failed(item.target, op, models.OutcomePlanned, nil, at))
			}
			continue
		}

		if report.IsUnreachable(item.target) {
			at := e.now()
			cause := models.NewStoreError(item.target, "write", models.ErrStoreUnreachable, errors.New("store was unreachable during this run"))
			for _, op := range item.ops {
				e.collect(ctx, report, models.Failed(item.target, op, models.OutcomeNotAttempted, cause, at))
			}
			continue
		}

		results, err := e.writer.Write(ctx, e.backend(item.target), item.ops)
		for _, res := range results {
			e.collect(ctx, report, res)
		}
		if err != nil && ctx.Err() == nil {
			report.MarkUnreachable(item.target)
			e.warn(ctx, report, fmt.Sprintf("writes to store %s stopped: %v", item.target, err), logging.Fields{
				"store": string(item.target),
				"error": err.Error(),
			})
		}
	}
}

// collect folds one result into the report and the ledger
func (e *Engine) collect(ctx context.Context, report *models.SyncReport, res models.SyncResult) {
	report.Results = append(report.Results, res)
	report.Stats.AddResult(res)

	if !res.Success || res.Outcome == models.OutcomeAlreadyPresent || e.stamper == nil {
		return
	}
	if err := e.stamper.Record(ctx, res.Target, res.Record, e.now()); err != nil {
		e.logger.Warn(ctx, "Failed to record write in timestamp ledger", logging.Fields{
			"identity": res.Record.Identity(),
			"store":    string(res.Target),
			"error":    err.Error(),
		})
	}
}

// finish computes the final status, notifies observers and the formatter
func (e *Engine) finish(ctx context.Context, report *models.SyncReport) *models.SyncReport {
	report.EndTime = e.now()
	report.Duration = report.EndTime.Sub(report.StartTime)

	switch {
	case ctx.Err() != nil:
		report.Status = models.StatusCancelled
	case report.IsUnreachable(models.StoreA) && report.IsUnreachable(models.StoreB):
		report.Status = models.StatusFailed
	case report.Stats.Errors > 0 || len(report.Unreachable) > 0:
		report.Status = models.StatusPartial
	default:
		report.Status = models.StatusSuccess
	}
	if report.Status != models.StatusCancelled {
		report.Phase = models.PhaseDone
	}

	for _, o := range e.observers {
		if err := o.ObserveRun(context.WithoutCancel(ctx), report); err != nil {
			e.logger.Error(ctx, "Run observer failed", err, logging.Fields{"run_id": report.RunID})
		}
	}

	e.logger.Info(ctx, "Sync finished", logging.Fields{
		"run_id":   report.RunID,
		"mode":     string(report.Mode),
		"status":   string(report.Status),
		"errors":   report.Stats.Errors,
		"duration": report.Duration.String(),
	})
	e.formatter.Complete(report)
	return report
}
