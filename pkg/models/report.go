package models

import (
	"time"
)

// Phase is a step of a sync run
type Phase string

const (
	PhaseFetching  Phase = "FETCHING"
	PhaseMatching  Phase = "MATCHING"
	PhaseResolving Phase = "RESOLVING"
	PhaseWriting   Phase = "WRITING"
	PhaseDone      Phase = "DONE"
)

// SyncReport represents the results of a sync run
type SyncReport struct {
	// Run details
	RunID     string    `json:"run_id"`
	Mode      SyncMode  `json:"mode"`
	Policy    Policy    `json:"policy,omitempty"`
	Direction Direction `json:"direction,omitempty"`
	DryRun    bool      `json:"dry_run"`

	// Timing
	StartTime time.Time     `json:"start_time"`
	EndTime   time.Time     `json:"end_time"`
	Duration  time.Duration `json:"duration"`

	Phase Phase      `json:"phase"`
	Stats Statistics `json:"stats"`

	// Write outcomes, one per issued or planned operation
	Results []SyncResult `json:"results"`

	// Stores whose fetch or writes failed as a whole
	Unreachable []StoreID `json:"unreachable,omitempty"`
	Warnings    []string  `json:"warnings,omitempty"`

	Status SyncStatus `json:"status"`
}

// Statistics holds sync run counters
type Statistics struct {
	FetchedA int `json:"fetched_a"`
	FetchedB int `json:"fetched_b"`

	Matched   int `json:"matched"`
	LeftOnly  int `json:"left_only"`
	RightOnly int `json:"right_only"`
	InSync    int `json:"in_sync"` // matched pairs with equal payloads

	UpdatedA    int `json:"updated_a"`
	UpdatedB    int `json:"updated_b"`
	CreatedAToB int `json:"created_a_to_b"`
	CreatedBToA int `json:"created_b_to_a"`

	AlreadyPresent      int `json:"already_present"` // create gate hits
	Planned             int `json:"planned"`         // dry run only
	Suppressed          int `json:"suppressed"`      // blocked by direction restriction
	ApprovalRevocations int `json:"approval_revocations"`
	Errors              int `json:"errors"`
}

// SyncStatus represents the overall result
type SyncStatus string

const (
	// StatusSuccess indicates all operations completed successfully
	StatusSuccess SyncStatus = "success"
	// StatusPartial indicates the run completed with record errors or a degraded store
	StatusPartial SyncStatus = "partial"
	// StatusFailed indicates both stores were unreachable
	StatusFailed SyncStatus = "failed"
	// StatusCancelled indicates the run was interrupted
	StatusCancelled SyncStatus = "cancelled"
)

// ExitCode returns the process exit code for the sync status.
// A run that completed, even with record errors, exits 0.
func (s SyncStatus) ExitCode() int {
	switch s {
	case StatusSuccess, StatusPartial:
		return 0
	case StatusFailed:
		return 2
	case StatusCancelled:
		return 3
	default:
		return 2
	}
}

// AddResult folds one write outcome into the counters
func (s *Statistics) AddResult(r SyncResult) {
	switch {
	case r.Outcome == OutcomePlanned:
		s.Planned++
	case !r.Success:
		s.Errors++
	case r.Outcome == OutcomeAlreadyPresent:
		s.AlreadyPresent++
	case r.Op == OpUpdate && r.Target == StoreA:
		s.UpdatedA++
	case r.Op == OpUpdate && r.Target == StoreB:
		s.UpdatedB++
	case r.Op == OpCreate && r.Target == StoreB:
		s.CreatedAToB++
	case r.Op == OpCreate && r.Target == StoreA:
		s.CreatedBToA++
	}
}

// Failures returns the unsuccessful results
func (r *SyncReport) Failures() []SyncResult {
	var out []SyncResult
	for _, res := range r.Results {
		if !res.Success && res.Outcome != OutcomePlanned {
			out = append(out, res)
		}
	}
	return out
}

// IsUnreachable reports whether store was marked unreachable during the run
func (r *SyncReport) IsUnreachable(store StoreID) bool {
	for _, s := range r.Unreachable {
		if s == store {
			return true
		}
	}
	return false
}

// MarkUnreachable records store as unreachable once
func (r *SyncReport) MarkUnreachable(store StoreID) {
	if !r.IsUnreachable(store) {
		r.Unreachable = append(r.Unreachable, store)
	}
}

// DiffReport is the read-only status of the two stores
type DiffReport struct {
	GeneratedAt     time.Time `json:"generated_at"`
	FetchedA        int       `json:"fetched_a"`
	FetchedB        int       `json:"fetched_b"`
	Matched         int       `json:"matched"`
	LeftOnly        int       `json:"left_only"`
	RightOnly       int       `json:"right_only"`
	InSync          int       `json:"in_sync"`
	Divergent       int       `json:"divergent"`
	VisibleA        int       `json:"visible_a"`
	VisibleB        int       `json:"visible_b"`
	SyncRecommended bool      `json:"sync_recommended"`

	LeftOnlyIdentities  []string           `json:"left_only_identities,omitempty"`
	RightOnlyIdentities []string           `json:"right_only_identities,omitempty"`
	Differences         []RecordDifference `json:"differences,omitempty"`

	Unreachable []StoreID `json:"unreachable,omitempty"`
	Warnings    []string  `json:"warnings,omitempty"`
}

// RecordDifference lists the payload fields that differ within a matched pair
type RecordDifference struct {
	Identity string   `json:"identity"`
	Title    string   `json:"title"`
	Fields   []string `json:"fields"`
}
