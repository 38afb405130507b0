package storage

import (
	"context"

	"github.com/sdejongh/contentsync/pkg/models"
)

// FetchOptions narrows a FetchAll call
type FetchOptions struct {
	// ApprovedOnly asks the store to return approved records only.
	// Store A applies it server-side; other stores filter after reading.
	ApprovedOnly bool
}

// Location is the answer of a find-by-identity lookup
type Location struct {
	Found bool
	// NativeID is the id to pass to UpdateRecord
	NativeID string
	// RowIndex is the 1-based sheet row for row-addressed stores, 0 otherwise
	RowIndex int
}

// Backend defines the contract every content store adapter implements.
// Implementations include the table SaaS store, the spreadsheet store and
// the in-memory and file-backed stores used for tests and offline runs.
type Backend interface {
	// Store returns which side of the sync this backend serves
	Store() models.StoreID

	// FetchAll returns every record of the store
	FetchAll(ctx context.Context, opts FetchOptions) ([]models.ContentRecord, error)

	// CreateRecord writes a new record and returns it enriched with its native id
	CreateRecord(ctx context.Context, rec models.ContentRecord) (models.ContentRecord, error)

	// UpdateRecord overwrites the payload of the record addressed by nativeID.
	// Identity fields of the stored record are never changed.
	UpdateRecord(ctx context.Context, nativeID string, rec models.ContentRecord) (models.ContentRecord, error)

	// FindByIdentity locates the record whose title and keyword match
	FindByIdentity(ctx context.Context, title, keyword string) (Location, error)

	// Close releases any resources held by the backend
	Close() error
}

// FilterApproved returns the approved records of recs
func FilterApproved(recs []models.ContentRecord) []models.ContentRecord {
	out := make([]models.ContentRecord, 0, len(recs))
	for _, r := range recs {
		if r.Approved {
			out = append(out, r)
		}
	}
	return out
}
