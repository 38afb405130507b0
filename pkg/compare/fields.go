package compare

import (
	"strings"

	"github.com/sdejongh/contentsync/pkg/models"
)

// FieldComparator compares records field by field
type FieldComparator struct{}

// NewFieldComparator creates a new field comparator
func NewFieldComparator() *FieldComparator {
	return &FieldComparator{}
}

// Compare lists every payload field that differs
func (c *FieldComparator) Compare(a, b models.ContentRecord) *Comparison {
	fields := Diff(a, b)
	if len(fields) == 0 {
		return &Comparison{
			Identity: a.Identity(),
			Result:   Same,
			Reason:   "payloads match",
		}
	}
	return &Comparison{
		Identity: a.Identity(),
		Result:   Different,
		Reason:   "differs in " + strings.Join(fields, ", "),
		Fields:   fields,
	}
}

// Name returns the comparator name
func (c *FieldComparator) Name() string {
	return "fields"
}

// Diff returns the names of payload fields that differ between a and b.
// Values are compared in the canonical form used by Fingerprint.
func Diff(a, b models.ContentRecord) []string {
	ca, cb := canonical(a), canonical(b)
	var out []string
	if ca.author != cb.author {
		out = append(out, FieldAuthor)
	}
	if ca.status != cb.status {
		out = append(out, FieldStatus)
	}
	if ca.approved != cb.approved {
		out = append(out, FieldApproved)
	}
	if ca.publishDate != cb.publishDate {
		out = append(out, FieldPublishDate)
	}
	if ca.featureImage != cb.featureImage {
		out = append(out, FieldFeatureImage)
	}
	if ca.bodyRef != cb.bodyRef {
		out = append(out, FieldBodyRef)
	}
	return out
}
