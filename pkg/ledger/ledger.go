// Package ledger persists the last observed payload fingerprint of every
// record per store, so records from stores that do not report modification
// times still carry a stable last-modified value across runs.
package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/sdejongh/contentsync/pkg/compare"
	"github.com/sdejongh/contentsync/pkg/models"
)

// Epoch is the floor used for records with neither a store timestamp nor a
// publish date
var Epoch = time.Unix(0, 0).UTC()

// Entry is one ledger row
type Entry struct {
	Store        models.StoreID
	Identity     string
	Fingerprint  string
	LastModified time.Time
	ObservedAt   time.Time
}

// Ledger wraps the SQLite timestamp ledger
type Ledger struct {
	db *sql.DB
}

// Open opens or creates the ledger database at path.
// ":memory:" opens a private in-memory ledger.
func Open(path string) (*Ledger, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("create ledger directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	// one connection keeps :memory: databases shared and serialises writers
	db.SetMaxOpenConns(1)

	if path != ":memory:" {
		if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
			db.Close()
			return nil, fmt.Errorf("enable WAL: %w", err)
		}
	}

	l := &Ledger{db: db}
	if err := l.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return l, nil
}

// Close closes the database
func (l *Ledger) Close() error {
	return l.db.Close()
}

func (l *Ledger) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS observations (
		store TEXT NOT NULL,
		identity TEXT NOT NULL,
		fingerprint TEXT NOT NULL,
		last_modified INTEGER NOT NULL,
		observed_at INTEGER NOT NULL,
		PRIMARY KEY (store, identity)
	);

	CREATE INDEX IF NOT EXISTS idx_observed ON observations(observed_at);
	`
	_, err := l.db.Exec(schema)
	return err
}

// Get returns the ledger row for identity in store, nil if none
func (l *Ledger) Get(ctx context.Context, store models.StoreID, identity string) (*Entry, error) {
	return get(ctx, l.db, store, identity)
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func get(ctx context.Context, q queryer, store models.StoreID, identity string) (*Entry, error) {
	var (
		e                  = &Entry{Store: store, Identity: identity}
		modified, observed int64
	)
	err := q.QueryRowContext(ctx, `
	SELECT fingerprint, last_modified, observed_at
	FROM observations
	WHERE store = ? AND identity = ?
	`, string(store), identity).Scan(&e.Fingerprint, &modified, &observed)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query observation: %w", err)
	}
	e.LastModified = time.Unix(0, modified).UTC()
	e.ObservedAt = time.Unix(0, observed).UTC()
	return e, nil
}

func upsert(ctx context.Context, q queryer, e Entry) error {
	_, err := q.ExecContext(ctx, `
	INSERT INTO observations (store, identity, fingerprint, last_modified, observed_at)
	VALUES (?, ?, ?, ?, ?)
	ON CONFLICT(store, identity) DO UPDATE SET
		fingerprint = excluded.fingerprint,
		last_modified = excluded.last_modified,
		observed_at = excluded.observed_at
	`, string(e.Store), e.Identity, e.Fingerprint, e.LastModified.UnixNano(), e.ObservedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("upsert observation: %w", err)
	}
	return nil
}

// Stamp fills in LastModified for records fetched from store and records
// what was observed.
//
// A timestamp reported by the store is kept as is. Otherwise the first
// observation of a record takes its recorded timestamp, its publish date,
// or Epoch, in that order; a record whose fingerprint changed since the
// last observation takes now unless it carries a newer recorded timestamp;
// an unchanged record keeps the previously stored value.
//
// Only the first record of each identity is observed. Later records with the
// same identity take the first one's stamp and leave the ledger untouched.
func (l *Ledger) Stamp(ctx context.Context, store models.StoreID, records []models.ContentRecord, now time.Time) ([]models.ContentRecord, error) {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	now = now.UTC()
	out := make([]models.ContentRecord, len(records))
	first := make(map[string]models.ContentRecord, len(records))
	for i, rec := range records {
		id := rec.Identity()
		if seen, ok := first[id]; ok {
			if rec.LastModifiedSource != models.TimestampStore || rec.LastModified.IsZero() {
				rec.LastModified = seen.LastModified
				rec.LastModifiedSource = seen.LastModifiedSource
			}
			out[i] = rec
			continue
		}
		fp := compare.Fingerprint(rec)

		if rec.LastModifiedSource == models.TimestampStore && !rec.LastModified.IsZero() {
			if err := upsert(ctx, tx, Entry{Store: store, Identity: id, Fingerprint: fp, LastModified: rec.LastModified, ObservedAt: now}); err != nil {
				return nil, err
			}
			out[i] = rec
			first[id] = rec
			continue
		}

		prev, err := get(ctx, tx, store, id)
		if err != nil {
			return nil, err
		}

		var recorded time.Time
		if rec.LastModifiedSource == models.TimestampRecorded {
			recorded = rec.LastModified.UTC()
		}

		switch {
		case prev == nil && !recorded.IsZero():
			rec.LastModified = recorded
		case prev == nil && !rec.PublishDate.IsZero():
			rec.LastModified = rec.PublishDate.UTC()
			rec.LastModifiedSource = models.TimestampPublishDate
		case prev == nil:
			rec.LastModified = Epoch
			rec.LastModifiedSource = models.TimestampEpoch
		case recorded.After(prev.LastModified):
			rec.LastModified = recorded
		case prev.Fingerprint == fp:
			rec.LastModified = prev.LastModified
			rec.LastModifiedSource = models.TimestampLedger
		default:
			rec.LastModified = now
			rec.LastModifiedSource = models.TimestampLedger
		}

		if prev == nil || prev.Fingerprint != fp || !prev.LastModified.Equal(rec.LastModified) {
			if err := upsert(ctx, tx, Entry{Store: store, Identity: id, Fingerprint: fp, LastModified: rec.LastModified, ObservedAt: now}); err != nil {
				return nil, err
			}
		}
		out[i] = rec
		first[id] = rec
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return out, nil
}

// Record stores rec as just written to store, keeping its LastModified so
// the next observation of the same payload is not mistaken for a change
func (l *Ledger) Record(ctx context.Context, store models.StoreID, rec models.ContentRecord, now time.Time) error {
	lm := rec.LastModified
	if lm.IsZero() {
		lm = now
	}
	return upsert(ctx, l.db, Entry{
		Store:        store,
		Identity:     rec.Identity(),
		Fingerprint:  compare.Fingerprint(rec),
		LastModified: lm.UTC(),
		ObservedAt:   now.UTC(),
	})
}

// Count returns the number of ledger rows for store
func (l *Ledger) Count(ctx context.Context, store models.StoreID) (int, error) {
	var n int
	err := l.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM observations WHERE store = ?", string(store)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count observations: %w", err)
	}
	return n, nil
}
