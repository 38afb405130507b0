package sync

import (
	"context"
	"errors"
	"fmt"
	"io"
	stdsync "sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sdejongh/contentsync/pkg/models"
	"github.com/sdejongh/contentsync/pkg/output"
	"github.com/sdejongh/contentsync/pkg/storage"
)

// recordingFormatter keeps every progress update
type recordingFormatter struct {
	mu      stdsync.Mutex
	updates []output.ProgressUpdate
	reports []*models.SyncReport
}

func (f *recordingFormatter) Start(io.Writer, models.SyncMode, bool) error { return nil }
func (f *recordingFormatter) Progress(u output.ProgressUpdate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates = append(f.updates, u)
	return nil
}
func (f *recordingFormatter) Complete(r *models.SyncReport) error {
	f.reports = append(f.reports, r)
	return nil
}
func (f *recordingFormatter) Error(error) error { return nil }
func (f *recordingFormatter) Name() string      { return "recording" }

func (f *recordingFormatter) count(kind string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, u := range f.updates {
		if u.Type == kind {
			n++
		}
	}
	return n
}

// newTestWriter returns a writer whose sleeps are counted instead of waited
func newTestWriter(batchSize int) (*BatchWriter, *[]time.Duration) {
	w := NewBatchWriter(batchSize, 250*time.Millisecond, nil)
	var sleeps []time.Duration
	w.sleep = func(ctx context.Context, d time.Duration) error {
		sleeps = append(sleeps, d)
		return ctx.Err()
	}
	return w, &sleeps
}

func createOps(n int) []models.Operation {
	ops := make([]models.Operation, n)
	for i := range ops {
		ops[i] = models.Operation{Kind: models.OpCreate, Record: models.ContentRecord{
			Title:          fmt.Sprintf("post-%d", i+1),
			PrimaryKeyword: "kw",
			Approved:       true,
		}}
	}
	return ops
}

// ============== BatchWriter Tests ==============

func TestBatchWriter_CreatesInBatches(t *testing.T) {
	target := storage.NewMemory(models.StoreB)
	w, sleeps := newTestWriter(3)
	f := &recordingFormatter{}
	w.SetFormatter(f)

	results, err := w.Write(context.Background(), target, createOps(7))

	require.NoError(t, err)
	require.Len(t, results, 7)
	for i, res := range results {
		assert.True(t, res.Success, "result %d", i)
		assert.Equal(t, models.OutcomeCreated, res.Outcome)
		assert.Equal(t, models.StoreB, res.Target)
		assert.NotEmpty(t, res.Record.SourceNativeID)
	}
	assert.Equal(t, 7, target.Len())
	// three batches, a delay between each pair of them
	assert.Equal(t, []time.Duration{250 * time.Millisecond, 250 * time.Millisecond}, *sleeps)
	assert.Equal(t, 7, f.count(output.UpdateRecordDone))
	assert.Equal(t, 1, f.count(output.UpdateWriteStart))
	assert.Equal(t, 1, f.count(output.UpdateWriteEnd))
}

func TestBatchWriter_CreateGate(t *testing.T) {
	target := storage.NewMemory(models.StoreB, models.ContentRecord{Title: "POST-2", PrimaryKeyword: "kw"})
	w, _ := newTestWriter(10)

	results, err := w.Write(context.Background(), target, createOps(3))

	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, models.OutcomeCreated, results[0].Outcome)
	assert.Equal(t, models.OutcomeAlreadyPresent, results[1].Outcome)
	assert.True(t, results[1].Success)
	assert.Equal(t, "B-1", results[1].Record.SourceNativeID)
	assert.Equal(t, models.OutcomeCreated, results[2].Outcome)

	creates, _ := target.Writes()
	assert.Equal(t, 2, creates)
	assert.Equal(t, 3, target.Finds())
	assert.Equal(t, 3, target.Len())
}

func TestBatchWriter_BatchResilience(t *testing.T) {
	target := storage.NewMemory(models.StoreA)
	target.Fault = func(op models.OpKind, r models.ContentRecord) error {
		if r.Title == "post-4" {
			return errors.New("INVALID_VALUE_FOR_COLUMN")
		}
		return nil
	}
	w, _ := newTestWriter(3)

	results, err := w.Write(context.Background(), target, createOps(8))

	require.NoError(t, err)
	require.Len(t, results, 8)
	failures := 0
	for i, res := range results {
		if !res.Success {
			failures++
			assert.Equal(t, 3, i)
			assert.Equal(t, models.OutcomeFailed, res.Outcome)
			assert.ErrorIs(t, res.Err, models.ErrRecordWriteFailed)
			assert.NotEmpty(t, res.Error)
			assert.Equal(t, "post-4", res.Record.Title)
		}
	}
	assert.Equal(t, 1, failures)

	creates, _ := target.Writes()
	assert.Equal(t, 8, creates, "every record must be attempted")
	assert.Equal(t, 7, target.Len())
}

func TestBatchWriter_UnreachableBatchAborts(t *testing.T) {
	target := storage.NewMemory(models.StoreB)
	target.Fault = func(models.OpKind, models.ContentRecord) error {
		return models.ErrStoreUnreachable
	}
	w, sleeps := newTestWriter(3)

	results, err := w.Write(context.Background(), target, createOps(7))

	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrStoreUnreachable)
	require.Len(t, results, 7)
	for i := 0; i < 3; i++ {
		assert.Equal(t, models.OutcomeFailed, results[i].Outcome)
	}
	for i := 3; i < 7; i++ {
		assert.Equal(t, models.OutcomeNotAttempted, results[i].Outcome)
		assert.False(t, results[i].Success)
		assert.Equal(t, "post-"+fmt.Sprint(i+1), results[i].Record.Title)
	}
	creates, _ := target.Writes()
	assert.Equal(t, 3, creates)
	assert.Empty(t, *sleeps)
}

func TestBatchWriter_PartialUnreachableContinues(t *testing.T) {
	// one unreachable failure in a batch is not a dead store
	target := storage.NewMemory(models.StoreB)
	target.Fault = func(op models.OpKind, r models.ContentRecord) error {
		if r.Title == "post-2" {
			return models.ErrStoreUnreachable
		}
		return nil
	}
	w, _ := newTestWriter(3)

	results, err := w.Write(context.Background(), target, createOps(6))

	require.NoError(t, err)
	assert.Equal(t, 5, target.Len())
	assert.False(t, results[1].Success)
	assert.True(t, models.IsUnreachable(results[1].Err))
}

func TestBatchWriter_SingleRecordBatches(t *testing.T) {
	t.Run("one unreachable record does not stop the writes", func(t *testing.T) {
		target := storage.NewMemory(models.StoreB)
		target.Fault = func(op models.OpKind, r models.ContentRecord) error {
			if r.Title == "post-1" {
				return models.ErrStoreUnreachable
			}
			return nil
		}
		w, _ := newTestWriter(1)

		results, err := w.Write(context.Background(), target, createOps(5))

		require.NoError(t, err)
		assert.Equal(t, models.OutcomeFailed, results[0].Outcome)
		for i := 1; i < 5; i++ {
			assert.Equal(t, models.OutcomeCreated, results[i].Outcome, "result %d", i)
		}
		assert.Equal(t, 4, target.Len())
	})

	t.Run("two in a row stop the writes", func(t *testing.T) {
		target := storage.NewMemory(models.StoreB)
		target.Fault = func(models.OpKind, models.ContentRecord) error {
			return models.ErrStoreUnreachable
		}
		w, sleeps := newTestWriter(1)

		results, err := w.Write(context.Background(), target, createOps(5))

		assert.ErrorIs(t, err, models.ErrStoreUnreachable)
		require.Len(t, results, 5)
		assert.Equal(t, models.OutcomeFailed, results[0].Outcome)
		assert.Equal(t, models.OutcomeFailed, results[1].Outcome)
		for i := 2; i < 5; i++ {
			assert.Equal(t, models.OutcomeNotAttempted, results[i].Outcome, "result %d", i)
		}
		creates, _ := target.Writes()
		assert.Equal(t, 2, creates)
		assert.Len(t, *sleeps, 1)
	})
}

func TestBatchWriter_FindFailure(t *testing.T) {
	target := storage.NewMemory(models.StoreB)
	target.FindErr = errors.New("connection refused")
	w, _ := newTestWriter(5)

	results, err := w.Write(context.Background(), target, createOps(2))

	assert.ErrorIs(t, err, models.ErrStoreUnreachable)
	require.Len(t, results, 2)
	creates, _ := target.Writes()
	assert.Equal(t, 0, creates, "no create may be issued without a successful gate")
}

func TestBatchWriter_Update(t *testing.T) {
	target := storage.NewMemory(models.StoreB,
		models.ContentRecord{Title: "AI Trends", PrimaryKeyword: "ai", Author: "old"},
		models.ContentRecord{Title: "Remote Work", PrimaryKeyword: "remote", Author: "old"},
	)
	w, _ := newTestWriter(10)

	ops := []models.Operation{
		{Kind: models.OpUpdate, TargetID: "B-1", Record: models.ContentRecord{Title: "AI Trends", PrimaryKeyword: "ai", Author: "new"}},
		{Kind: models.OpUpdate, Record: models.ContentRecord{Title: "remote work", PrimaryKeyword: "REMOTE", Author: "new"}},
		{Kind: models.OpUpdate, Record: models.ContentRecord{Title: "Gone", PrimaryKeyword: "x", Author: "new"}},
	}
	results, err := w.Write(context.Background(), target, ops)

	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, models.OutcomeUpdated, results[0].Outcome)
	assert.Equal(t, models.OutcomeUpdated, results[1].Outcome)
	assert.Equal(t, "B-2", results[1].Record.SourceNativeID)
	assert.False(t, results[2].Success)
	assert.ErrorIs(t, results[2].Err, models.ErrNotFound)
	assert.ErrorIs(t, results[2].Err, models.ErrRecordWriteFailed)

	for _, r := range target.Records() {
		assert.Equal(t, "new", r.Author)
	}
	// identity fields of the stored record are kept
	assert.Equal(t, "Remote Work", target.Records()[1].Title)
}

func TestBatchWriter_ContextCancelled(t *testing.T) {
	target := storage.NewMemory(models.StoreB)
	w := NewBatchWriter(2, time.Hour, nil)
	ctx, cancel := context.WithCancel(context.Background())

	var results []models.SyncResult
	var err error
	done := make(chan struct{})
	go func() {
		results, err = w.Write(ctx, target, createOps(5))
		close(done)
	}()

	// the writer blocks in the inter-batch delay after the first batch
	require.Eventually(t, func() bool { return target.Len() == 2 }, time.Second, 5*time.Millisecond)
	cancel()
	<-done

	assert.ErrorIs(t, err, context.Canceled)
	require.Len(t, results, 5)
	assert.Equal(t, models.OutcomeCreated, results[1].Outcome)
	for i := 2; i < 5; i++ {
		assert.Equal(t, models.OutcomeNotAttempted, results[i].Outcome)
	}
}

func TestBatchWriter_Defaults(t *testing.T) {
	w := NewBatchWriter(0, -time.Second, nil)
	if w.batchSize != DefaultBatchSize {
		t.Errorf("batchSize = %d, want %d", w.batchSize, DefaultBatchSize)
	}
	if w.delay != 0 {
		t.Errorf("delay = %v, want 0", w.delay)
	}

	results, err := w.Write(context.Background(), storage.NewMemory(models.StoreA), nil)
	if err != nil || len(results) != 0 {
		t.Errorf("Write(nil) = %v, %v; want empty, nil", results, err)
	}
}
