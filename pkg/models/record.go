package models

import (
	"strings"
	"time"
)

// StoreID identifies one of the two content stores
type StoreID string

const (
	// StoreA is the table-based SaaS store (left side of every match)
	StoreA StoreID = "A"
	// StoreB is the spreadsheet store (right side of every match)
	StoreB StoreID = "B"
)

// Other returns the opposite store
func (s StoreID) Other() StoreID {
	if s == StoreA {
		return StoreB
	}
	return StoreA
}

// IsValid returns true for A or B
func (s StoreID) IsValid() bool {
	return s == StoreA || s == StoreB
}

// PostStatus is the editorial state of a content record
type PostStatus string

const (
	PostDraft     PostStatus = "Draft"
	PostApproved  PostStatus = "Approved"
	PostPublished PostStatus = "Published"
)

// ParsePostStatus maps free text to a PostStatus, case-insensitively.
// Unknown values return ("", false).
func ParsePostStatus(s string) (PostStatus, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "draft":
		return PostDraft, true
	case "approved":
		return PostApproved, true
	case "published":
		return PostPublished, true
	default:
		return "", false
	}
}

// TimestampSource tells where a record's LastModified value came from
type TimestampSource string

const (
	// TimestampStore means the store reported the modification time itself
	TimestampStore TimestampSource = "store"
	// TimestampRecorded means the value was read from a timestamp column
	// written alongside the record; it may be stale if an author edited the
	// record without touching the column
	TimestampRecorded TimestampSource = "recorded"
	// TimestampLedger means the value was derived from the local fingerprint ledger
	TimestampLedger TimestampSource = "ledger"
	// TimestampPublishDate means the record was first seen and carried a publish date
	TimestampPublishDate TimestampSource = "publish-date"
	// TimestampEpoch means nothing better was known
	TimestampEpoch TimestampSource = "epoch"
)

// ContentRecord is one blog post as seen in a single store
type ContentRecord struct {
	// Identity fields, never mutated by a sync
	Title          string `json:"title"`
	PrimaryKeyword string `json:"primary_keyword"`

	// Payload
	Author          string     `json:"author,omitempty"`
	Status          PostStatus `json:"status,omitempty"`
	Approved        bool       `json:"approved"`
	PublishDate     time.Time  `json:"publish_date,omitempty"`
	FeatureImageURL string     `json:"feature_image_url,omitempty"`
	BodyRef         string     `json:"body_ref,omitempty"`

	// Provenance
	SourceStore        StoreID         `json:"source_store"`
	SourceNativeID     string          `json:"source_native_id,omitempty"`
	LastModified       time.Time       `json:"last_modified"`
	LastModifiedSource TimestampSource `json:"last_modified_source,omitempty"`
}

// Identity returns the cross-store matching key of the record
func (r ContentRecord) Identity() string {
	return Identity(r.Title, r.PrimaryKeyword)
}

// IsVisible reports whether the rendering layer would show the post at now.
// Visibility is a read-time filter only; it never affects sync eligibility.
func (r ContentRecord) IsVisible(now time.Time) bool {
	if !r.Approved || r.Status == PostDraft {
		return false
	}
	return !r.PublishDate.After(now)
}

// WithPayload returns r carrying the payload and LastModified of src.
// Identity and provenance fields of r are kept.
func (r ContentRecord) WithPayload(src ContentRecord) ContentRecord {
	r.Author = src.Author
	r.Status = src.Status
	r.Approved = src.Approved
	r.PublishDate = src.PublishDate
	r.FeatureImageURL = src.FeatureImageURL
	r.BodyRef = src.BodyRef
	r.LastModified = src.LastModified
	return r
}
