package models

import (
	"errors"
	"fmt"
)

var (
	// ErrStoreUnreachable is returned when a store cannot be reached or refuses authentication
	ErrStoreUnreachable = errors.New("store unreachable")

	// ErrRecordWriteFailed is returned when a store rejects a single create or update
	ErrRecordWriteFailed = errors.New("record write failed")

	// ErrConfigurationMissing is returned when an adapter lacks credentials or addressing
	ErrConfigurationMissing = errors.New("configuration missing")

	// ErrSchemaInvalid is returned when a sheet header lacks a required column
	ErrSchemaInvalid = errors.New("schema invalid")

	// ErrReadOnly is returned by writes against a read-only source
	ErrReadOnly = errors.New("store is read-only")

	// ErrSyncInProgress is returned when another run holds the run lock
	ErrSyncInProgress = errors.New("another sync is in progress")

	// ErrNotFound is returned when a record to update no longer exists
	ErrNotFound = errors.New("record not found")
)

// StoreError wraps a failure at a store adapter boundary
type StoreError struct {
	Store StoreID
	Op    string
	Err   error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s: %s: %v", e.Store, e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// NewStoreError wraps err with kind, a sentinel used for classification
func NewStoreError(store StoreID, op string, kind, err error) *StoreError {
	if err == nil || errors.Is(err, kind) {
		if err == nil {
			err = kind
		}
		return &StoreError{Store: store, Op: op, Err: err}
	}
	return &StoreError{Store: store, Op: op, Err: fmt.Errorf("%w: %w", kind, err)}
}

// IsUnreachable reports whether err means the whole store is unusable
func IsUnreachable(err error) bool {
	return errors.Is(err, ErrStoreUnreachable) || errors.Is(err, ErrConfigurationMissing)
}

// ValidationError represents a validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}
