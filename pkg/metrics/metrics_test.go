package metrics

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sdejongh/contentsync/pkg/models"
)

func TestRecorderWritesTextfile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "textfile", "contentsync.prom")
	rec := NewRecorder(path)

	end := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	report := &models.SyncReport{
		Mode:     models.ModeBidirectional,
		EndTime:  end,
		Duration: 2 * time.Second,
		Status:   models.StatusPartial,
		Stats:    models.Statistics{FetchedA: 5, FetchedB: 3},
		Results: []models.SyncResult{
			models.Succeeded(models.StoreB, models.Operation{Kind: models.OpCreate}, models.OutcomeCreated, models.ContentRecord{}, end),
			models.Succeeded(models.StoreB, models.Operation{Kind: models.OpCreate}, models.OutcomeCreated, models.ContentRecord{}, end),
			models.Failed(models.StoreA, models.Operation{Kind: models.OpUpdate}, models.OutcomeFailed, errors.New("x"), end),
		},
	}
	report.MarkUnreachable(models.StoreA)

	require.NoError(t, rec.ObserveRun(context.Background(), report))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	out := string(data)

	for _, want := range []string{
		`contentsync_records{store="A"} 5`,
		`contentsync_records{store="B"} 3`,
		`contentsync_last_run_writes{op="create",outcome="created",target="B"} 2`,
		`contentsync_last_run_writes{op="update",outcome="failed",target="A"} 1`,
		`contentsync_store_reachable{store="A"} 0`,
		`contentsync_store_reachable{store="B"} 1`,
		`contentsync_last_run_status{mode="bidirectional",status="partial"} 1`,
		`contentsync_last_run_status{mode="bidirectional",status="success"} 0`,
		`contentsync_last_run_duration_seconds{mode="bidirectional"} 2`,
	} {
		assert.True(t, strings.Contains(out, want), "textfile missing %q:\n%s", want, out)
	}
}

func TestRecorderResetsWritesBetweenRuns(t *testing.T) {
	path := filepath.Join(t.TempDir(), "contentsync.prom")
	rec := NewRecorder(path)
	end := time.Now()

	first := &models.SyncReport{Mode: models.ModeAToB, EndTime: end, Status: models.StatusSuccess, Results: []models.SyncResult{
		models.Succeeded(models.StoreB, models.Operation{Kind: models.OpCreate}, models.OutcomeCreated, models.ContentRecord{}, end),
	}}
	require.NoError(t, rec.ObserveRun(context.Background(), first))

	second := &models.SyncReport{Mode: models.ModeAToB, EndTime: end, Status: models.StatusSuccess}
	require.NoError(t, rec.ObserveRun(context.Background(), second))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "contentsync_last_run_writes{")
}
