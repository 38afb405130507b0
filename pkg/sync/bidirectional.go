package sync

import (
	"context"

	"github.com/sdejongh/contentsync/pkg/compare"
	"github.com/sdejongh/contentsync/pkg/logging"
	"github.com/sdejongh/contentsync/pkg/models"
)

// SyncBidirectional reconciles both stores.
//
// Records present in one store only are created in the other. For records
// present in both, the resolver picks a winner and the loser's store is
// updated with it, unless both copies already carry the same payload.
// Updates are written before creates.
func (e *Engine) SyncBidirectional(ctx context.Context) (*models.SyncReport, error) {
	report := e.newReport(models.ModeBidirectional)

	if err := e.formatter.Start(e.out, report.Mode, report.DryRun); err != nil {
		return nil, err
	}
	e.logger.Info(ctx, "Starting bidirectional sync", logging.Fields{
		"run_id":    report.RunID,
		"policy":    string(e.opts.Policy),
		"direction": string(e.opts.Direction),
		"dry_run":   e.opts.DryRun,
	})

	// Phase 1: fetch both stores
	e.enter(report, models.PhaseFetching)
	records := e.fetch(ctx, report, true, models.StoreA, models.StoreB)
	if ctx.Err() != nil {
		return e.finish(ctx, report), ctx.Err()
	}

	// Phase 2: partition by identity
	e.enter(report, models.PhaseMatching)
	part := Match(records[models.StoreA], records[models.StoreB])
	report.Stats.Matched = len(part.Matched)
	report.Stats.LeftOnly = len(part.LeftOnly)
	report.Stats.RightOnly = len(part.RightOnly)

	// Phase 3: resolve matched pairs and plan writes
	e.enter(report, models.PhaseResolving)
	p := e.resolve(ctx, part, report)

	// Phase 4: write
	e.execute(ctx, p, report)

	final := e.finish(ctx, report)
	if ctx.Err() != nil {
		return final, ctx.Err()
	}
	return final, nil
}

// resolve turns a partition into a write plan
func (e *Engine) resolve(ctx context.Context, part models.Partition, report *models.SyncReport) *plan {
	p := newPlan()
	resolver := Resolver{Policy: e.opts.Policy, DefaultMaster: e.opts.DefaultMaster}

	for _, pair := range part.Matched {
		if cmp := e.comparator.Compare(pair.A, pair.B); cmp.Result == compare.Same {
			report.Stats.InSync++
			continue
		}

		res := resolver.Resolve(pair)
		e.logger.Debug(ctx, "Resolved conflict", logging.Fields{
			"identity": pair.Identity(),
			"winner":   string(res.LoserStore.Other()),
			"reason":   res.Reason,
		})
		e.add(ctx, p, report, res.LoserStore, models.Operation{
			Kind:            models.OpUpdate,
			Record:          res.Winner,
			TargetID:        res.Loser.SourceNativeID,
			RevokesApproval: res.Loser.Approved && !res.Winner.Approved,
		})
	}

	for _, rec := range part.LeftOnly {
		e.add(ctx, p, report, models.StoreB, models.Operation{Kind: models.OpCreate, Record: rec})
	}
	for _, rec := range part.RightOnly {
		e.add(ctx, p, report, models.StoreA, models.Operation{Kind: models.OpCreate, Record: rec})
	}
	return p
}
