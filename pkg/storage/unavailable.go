package storage

import (
	"context"

	"github.com/sdejongh/contentsync/pkg/models"
)

// Unavailable stands in for a store whose adapter could not be built.
// Every call fails with the construction error, so the engine degrades the
// store exactly as if it were unreachable.
type Unavailable struct {
	store models.StoreID
	err   error
}

// NewUnavailable wraps err, classifying it as a configuration failure
// unless it already carries a class
func NewUnavailable(store models.StoreID, err error) *Unavailable {
	if !models.IsUnreachable(err) {
		err = models.NewStoreError(store, "init", models.ErrConfigurationMissing, err)
	}
	return &Unavailable{store: store, err: err}
}

// Store returns the side this backend stands in for
func (u *Unavailable) Store() models.StoreID { return u.store }

// Err returns the construction error
func (u *Unavailable) Err() error { return u.err }

// FetchAll always fails
func (u *Unavailable) FetchAll(context.Context, FetchOptions) ([]models.ContentRecord, error) {
	return nil, u.err
}

// CreateRecord always fails
func (u *Unavailable) CreateRecord(context.Context, models.ContentRecord) (models.ContentRecord, error) {
	return models.ContentRecord{}, u.err
}

// UpdateRecord always fails
func (u *Unavailable) UpdateRecord(context.Context, string, models.ContentRecord) (models.ContentRecord, error) {
	return models.ContentRecord{}, u.err
}

// FindByIdentity always fails
func (u *Unavailable) FindByIdentity(context.Context, string, string) (Location, error) {
	return Location{}, u.err
}

// Close is a no-op
func (u *Unavailable) Close() error { return nil }
