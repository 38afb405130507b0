package sync

import (
	"context"

	"github.com/sdejongh/contentsync/pkg/compare"
	"github.com/sdejongh/contentsync/pkg/models"
)

// Status fetches both stores and reports how they differ. It never writes
// to either store and never touches the timestamp ledger.
func (e *Engine) Status(ctx context.Context) (*models.DiffReport, error) {
	scratch := e.newReport(models.ModeStatus)
	records := e.fetch(ctx, scratch, false, models.StoreA, models.StoreB)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	now := e.now()
	diff := &models.DiffReport{
		GeneratedAt: now,
		FetchedA:    scratch.Stats.FetchedA,
		FetchedB:    scratch.Stats.FetchedB,
		Unreachable: scratch.Unreachable,
		Warnings:    scratch.Warnings,
	}

	part := Match(records[models.StoreA], records[models.StoreB])
	diff.Matched = len(part.Matched)
	diff.LeftOnly = len(part.LeftOnly)
	diff.RightOnly = len(part.RightOnly)
	diff.SyncRecommended = diff.LeftOnly > 0 || diff.RightOnly > 0

	for _, pair := range part.Matched {
		cmp := e.comparator.Compare(pair.A, pair.B)
		if cmp.Result == compare.Same {
			diff.InSync++
			continue
		}
		diff.Divergent++
		fields := cmp.Fields
		if len(fields) == 0 {
			fields = compare.Diff(pair.A, pair.B)
		}
		diff.Differences = append(diff.Differences, models.RecordDifference{
			Identity: pair.Identity(),
			Title:    pair.A.Title,
			Fields:   fields,
		})
	}
	for _, rec := range part.LeftOnly {
		diff.LeftOnlyIdentities = append(diff.LeftOnlyIdentities, rec.Identity())
	}
	for _, rec := range part.RightOnly {
		diff.RightOnlyIdentities = append(diff.RightOnlyIdentities, rec.Identity())
	}

	for _, rec := range records[models.StoreA] {
		if rec.IsVisible(now) {
			diff.VisibleA++
		}
	}
	for _, rec := range records[models.StoreB] {
		if rec.IsVisible(now) {
			diff.VisibleB++
		}
	}

	return diff, nil
}
