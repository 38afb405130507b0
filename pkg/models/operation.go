package models

import (
	"time"
)

// SyncMode identifies what a run does
type SyncMode string

const (
	// ModeBidirectional reconciles both stores
	ModeBidirectional SyncMode = "bidirectional"
	// ModeAToB copies records missing in store B from store A
	ModeAToB SyncMode = "a-to-b"
	// ModeBToA copies records missing in store A from store B
	ModeBToA SyncMode = "b-to-a"
	// ModeStatus only reports differences
	ModeStatus SyncMode = "status"
)

// OneWayMode returns the one-way mode whose source is from
func OneWayMode(from StoreID) SyncMode {
	if from == StoreA {
		return ModeAToB
	}
	return ModeBToA
}

// OpKind is the kind of write issued against a store
type OpKind string

const (
	OpCreate OpKind = "create"
	OpUpdate OpKind = "update"
)

// Operation is a single write planned against a target store
type Operation struct {
	Kind   OpKind
	Record ContentRecord
	// TargetID is the native id of the record to update in the target store.
	// Empty means the writer locates it by identity.
	TargetID string
	// RevokesApproval marks an update flipping approved from true to false
	RevokesApproval bool
}

// Outcome describes what happened to one operation
type Outcome string

const (
	OutcomeCreated        Outcome = "created"
	OutcomeUpdated        Outcome = "updated"
	OutcomeAlreadyPresent Outcome = "already_present"
	OutcomePlanned        Outcome = "planned"
	OutcomeFailed         Outcome = "failed"
	OutcomeNotAttempted   Outcome = "not_attempted"
)

// SyncResult is the outcome of one write operation
type SyncResult struct {
	Success bool          `json:"success"`
	Op      OpKind        `json:"op"`
	Target  StoreID       `json:"target"`
	Outcome Outcome       `json:"outcome"`
	Record  ContentRecord `json:"record"`
	Err     error         `json:"-"`
	Error   string        `json:"error,omitempty"`
	At      time.Time     `json:"at"`
}

// Failed builds an unsuccessful result for op
func Failed(target StoreID, op Operation, outcome Outcome, err error, at time.Time) SyncResult {
	r := SyncResult{
		Op:      op.Kind,
		Target:  target,
		Outcome: outcome,
		Record:  op.Record,
		Err:     err,
		At:      at,
	}
	if err != nil {
		r.Error = err.Error()
	}
	return r
}

// Succeeded builds a successful result for op carrying the stored record
func Succeeded(target StoreID, op Operation, outcome Outcome, stored ContentRecord, at time.Time) SyncResult {
	return SyncResult{
		Success: true,
		Op:      op.Kind,
		Target:  target,
		Outcome: outcome,
		Record:  stored,
		At:      at,
	}
}
