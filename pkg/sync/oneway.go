package sync

import (
	"context"
	"fmt"

	"github.com/sdejongh/contentsync/pkg/logging"
	"github.com/sdejongh/contentsync/pkg/models"
)

// SyncOneWay copies every record of store from that the other store lacks.
// Existing records are never updated; the create gate in the batch writer
// decides what is missing.
func (e *Engine) SyncOneWay(ctx context.Context, from models.StoreID) (*models.SyncReport, error) {
	if !from.IsValid() {
		return nil, fmt.Errorf("invalid source store %q", from)
	}
	target := from.Other()
	report := e.newReport(models.OneWayMode(from))

	if err := e.formatter.Start(e.out, report.Mode, report.DryRun); err != nil {
		return nil, err
	}
	e.logger.Info(ctx, "Starting one-way sync", logging.Fields{
		"run_id":  report.RunID,
		"source":  string(from),
		"target":  string(target),
		"dry_run": e.opts.DryRun,
	})

	e.enter(report, models.PhaseFetching)
	records := e.fetch(ctx, report, true, from)
	if ctx.Err() != nil {
		return e.finish(ctx, report), ctx.Err()
	}

	// Only the first record of each identity is pushed
	e.enter(report, models.PhaseMatching)
	seen := make(map[string]bool, len(records[from]))
	var unique []models.ContentRecord
	for _, rec := range records[from] {
		id := rec.Identity()
		if seen[id] {
			e.warn(ctx, report, fmt.Sprintf("duplicate identity %q in store %s ignored", id, from), logging.Fields{
				"identity": id,
				"store":    string(from),
			})
			continue
		}
		seen[id] = true
		unique = append(unique, rec)
	}
	if from == models.StoreA {
		report.Stats.LeftOnly = len(unique)
	} else {
		report.Stats.RightOnly = len(unique)
	}

	e.enter(report, models.PhaseResolving)
	p := newPlan()
	for _, rec := range unique {
		e.add(ctx, p, report, target, models.Operation{Kind: models.OpCreate, Record: rec})
	}

	e.execute(ctx, p, report)

	final := e.finish(ctx, report)
	if ctx.Err() != nil {
		return final, ctx.Err()
	}
	return final, nil
}
