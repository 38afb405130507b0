package sync

import (
	"context"
	"fmt"
	"time"

	"github.com/sdejongh/contentsync/pkg/logging"
	"github.com/sdejongh/contentsync/pkg/models"
	"github.com/sdejongh/contentsync/pkg/output"
	"github.com/sdejongh/contentsync/pkg/storage"
)

const (
	// DefaultBatchSize matches the store A per-request record limit
	DefaultBatchSize = 10
	// DefaultInterBatchDelay keeps runs under the providers' rate limits
	DefaultInterBatchDelay = time.Second
	// minUnreachableStreak is the number of consecutive unreachable failures
	// needed before a fully failed batch stops the writes
	minUnreachableStreak = 2
)

// BatchWriter applies create and update operations to one target store in
// fixed-size batches. Every operation is attempted on its own; a failing
// record is reported in its result and never stops the others.
type BatchWriter struct {
	batchSize int
	delay     time.Duration
	logger    logging.Logger
	formatter output.Formatter
	now       func() time.Time
	sleep     func(ctx context.Context, d time.Duration) error
}

// NewBatchWriter creates a writer. A batch size below one uses DefaultBatchSize.
func NewBatchWriter(batchSize int, delay time.Duration, logger logging.Logger) *BatchWriter {
	if batchSize < 1 {
		batchSize = DefaultBatchSize
	}
	if delay < 0 {
		delay = 0
	}
	return &BatchWriter{
		batchSize: batchSize,
		delay:     delay,
		logger:    logging.OrNull(logger),
		formatter: output.Null{},
		now:       time.Now,
		sleep:     sleepContext,
	}
}

// SetFormatter routes per-record progress to f
func (w *BatchWriter) SetFormatter(f output.Formatter) {
	if f == nil {
		f = output.Null{}
	}
	w.formatter = f
}

// SetClock replaces the time source used for result timestamps
func (w *BatchWriter) SetClock(now func() time.Time) {
	w.now = now
}

// Write applies ops to target and returns exactly one result per op, in
// input order.
//
// CREATE operations first look the record up by identity; a hit is reported
// as already present instead of creating a duplicate. UPDATE operations
// without a target id are located the same way.
//
// The returned error is non-nil only when the run could not go on: the
// context was cancelled, or every operation of a batch failed because the
// target was unreachable. A fully failed batch stops the writes once at
// least two records in a row failed that way, or every operation did, so a
// batch size of one does not give up on a single failure. The operations
// that were not attempted are then reported with OutcomeNotAttempted.
func (w *BatchWriter) Write(ctx context.Context, target storage.Backend, ops []models.Operation) ([]models.SyncResult, error) {
	store := target.Store()
	results := make([]models.SyncResult, len(ops))

	w.formatter.Progress(output.ProgressUpdate{
		Type:   output.UpdateWriteStart,
		Target: store,
		Total:  len(ops),
	})
	defer w.formatter.Progress(output.ProgressUpdate{
		Type:   output.UpdateWriteEnd,
		Target: store,
		Total:  len(ops),
	})

	streak := 0
	for start := 0; start < len(ops); start += w.batchSize {
		end := start + w.batchSize
		if end > len(ops) {
			end = len(ops)
		}

		if start > 0 {
			if err := w.sleep(ctx, w.delay); err != nil {
				w.skip(results, ops, store, start, err)
				return results, err
			}
		}

		unreachable := 0
		for i := start; i < end; i++ {
			if err := ctx.Err(); err != nil {
				w.skip(results, ops, store, i, err)
				return results, err
			}

			res := w.apply(ctx, target, ops[i])
			results[i] = res
			w.report(store, res, i+1, len(ops))
			if !res.Success && models.IsUnreachable(res.Err) {
				unreachable++
				streak++
			} else {
				streak = 0
			}
		}

		if unreachable == end-start && (streak >= minUnreachableStreak || streak == len(ops)) {
			err := models.NewStoreError(store, "write", models.ErrStoreUnreachable,
				fmt.Errorf("every record of batch %d failed", start/w.batchSize+1))
			w.skip(results, ops, store, end, err)
			w.logger.Warn(ctx, "Target store unreachable, stopping writes", logging.Fields{
				"store":   string(store),
				"written": end,
				"skipped": len(ops) - end,
			})
			return results, err
		}
	}

	return results, nil
}

// apply runs a single operation against target
func (w *BatchWriter) apply(ctx context.Context, target storage.Backend, op models.Operation) models.SyncResult {
	store := target.Store()
	rec := op.Record

	switch op.Kind {
	case models.OpCreate:
		loc, err := target.FindByIdentity(ctx, rec.Title, rec.PrimaryKeyword)
		if err != nil {
			return w.fail(ctx, store, op, err)
		}
		if loc.Found {
			present := rec
			present.SourceStore = store
			present.SourceNativeID = loc.NativeID
			w.logger.Debug(ctx, "Record already present, skipping create", logging.Fields{
				"identity": rec.Identity(),
				"store":    string(store),
			})
			return models.Succeeded(store, op, models.OutcomeAlreadyPresent, present, w.now())
		}

		created, err := target.CreateRecord(ctx, rec)
		if err != nil {
			return w.fail(ctx, store, op, err)
		}
		return models.Succeeded(store, op, models.OutcomeCreated, created, w.now())

	case models.OpUpdate:
		id := op.TargetID
		if id == "" {
			loc, err := target.FindByIdentity(ctx, rec.Title, rec.PrimaryKeyword)
			if err != nil {
				return w.fail(ctx, store, op, err)
			}
			if !loc.Found {
				return w.fail(ctx, store, op, models.NewStoreError(store, "update", models.ErrRecordWriteFailed,
					fmt.Errorf("%w: %s", models.ErrNotFound, rec.Identity())))
			}
			id = loc.NativeID
		}

		updated, err := target.UpdateRecord(ctx, id, rec)
		if err != nil {
			return w.fail(ctx, store, op, err)
		}
		return models.Succeeded(store, op, models.OutcomeUpdated, updated, w.now())
	}

	return w.fail(ctx, store, op, fmt.Errorf("unknown operation %q", op.Kind))
}

func (w *BatchWriter) fail(ctx context.Context, store models.StoreID, op models.Operation, err error) models.SyncResult {
	w.logger.Error(ctx, "Record write failed", err, logging.Fields{
		"identity": op.Record.Identity(),
		"store":    string(store),
		"op":       string(op.Kind),
	})
	return models.Failed(store, op, models.OutcomeFailed, err, w.now())
}

// skip marks ops[from:] as not attempted
func (w *BatchWriter) skip(results []models.SyncResult, ops []models.Operation, store models.StoreID, from int, cause error) {
	at := w.now()
	for i := from; i < len(ops); i++ {
		results[i] = models.Failed(store, ops[i], models.OutcomeNotAttempted, cause, at)
	}
}

func (w *BatchWriter) report(store models.StoreID, res models.SyncResult, current, total int) {
	update := output.ProgressUpdate{
		Type:     output.UpdateRecordDone,
		Target:   store,
		Identity: res.Record.Identity(),
		Current:  current,
		Total:    total,
	}
	if !res.Success {
		update.Type = output.UpdateRecordError
		update.Error = res.Err
	}
	w.formatter.Progress(update)
}

// sleepContext waits for d or until ctx is done
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
