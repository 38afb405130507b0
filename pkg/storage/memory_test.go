package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sdejongh/contentsync/pkg/models"
)

func TestMemoryFindByIdentity(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	m := NewMemory(models.StoreB,
		models.ContentRecord{Title: "AI Trends", PrimaryKeyword: "ai"},
		models.ContentRecord{Title: "Remote Work", PrimaryKeyword: "remote"},
	)

	loc, err := m.FindByIdentity(ctx, "  ai TRENDS", "AI")
	require.NoError(t, err)
	assert.True(t, loc.Found)
	assert.Equal(t, "B-1", loc.NativeID)

	loc, err = m.FindByIdentity(ctx, "Missing", "none")
	require.NoError(t, err)
	assert.False(t, loc.Found)
	assert.Equal(t, 2, m.Finds())
}

func TestMemoryFetchApprovedOnly(t *testing.T) {
	t.Parallel()
	m := NewMemory(models.StoreA,
		models.ContentRecord{Title: "a", PrimaryKeyword: "1", Approved: true},
		models.ContentRecord{Title: "b", PrimaryKeyword: "2"},
	)

	recs, err := m.FetchAll(context.Background(), FetchOptions{ApprovedOnly: true})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "a", recs[0].Title)
}

func TestMemoryFaults(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	m := NewMemory(models.StoreA)
	m.Fault = func(op models.OpKind, rec models.ContentRecord) error {
		if rec.Title == "bad" {
			return errors.New("validation failed")
		}
		if rec.Title == "down" {
			return models.ErrStoreUnreachable
		}
		return nil
	}

	_, err := m.CreateRecord(ctx, models.ContentRecord{Title: "bad"})
	assert.ErrorIs(t, err, models.ErrRecordWriteFailed)

	_, err = m.CreateRecord(ctx, models.ContentRecord{Title: "down"})
	assert.ErrorIs(t, err, models.ErrStoreUnreachable)

	_, err = m.CreateRecord(ctx, models.ContentRecord{Title: "good"})
	assert.NoError(t, err)

	creates, updates := m.Writes()
	assert.Equal(t, 3, creates)
	assert.Equal(t, 0, updates)
	assert.Equal(t, 1, m.Len())

	m.FetchErr = errors.New("connection refused")
	_, err = m.FetchAll(ctx, FetchOptions{})
	assert.True(t, models.IsUnreachable(err))
}

func TestMemoryUpdateMissing(t *testing.T) {
	t.Parallel()
	m := NewMemory(models.StoreA)
	_, err := m.UpdateRecord(context.Background(), "A-99", models.ContentRecord{})
	assert.ErrorIs(t, err, models.ErrNotFound)
	assert.ErrorIs(t, err, models.ErrRecordWriteFailed)
}

func TestMemoryStampWrites(t *testing.T) {
	t.Parallel()
	now := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	m := NewMemory(models.StoreA)
	m.StampWrites = true
	m.SetClock(func() time.Time { return now })

	rec, err := m.CreateRecord(context.Background(), models.ContentRecord{Title: "t", PrimaryKeyword: "k"})
	require.NoError(t, err)
	assert.Equal(t, now, rec.LastModified)
	assert.Equal(t, models.TimestampStore, rec.LastModifiedSource)
}

func TestUnavailable(t *testing.T) {
	t.Parallel()
	u := NewUnavailable(models.StoreA, errors.New("token missing"))
	ctx := context.Background()

	_, err := u.FetchAll(ctx, FetchOptions{})
	assert.ErrorIs(t, err, models.ErrConfigurationMissing)
	assert.True(t, models.IsUnreachable(err))

	_, err = u.FindByIdentity(ctx, "t", "k")
	assert.Error(t, err)
	assert.Equal(t, models.StoreA, u.Store())
}
