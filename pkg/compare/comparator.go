package compare

import (
	"github.com/sdejongh/contentsync/pkg/models"
)

// Result represents the outcome of comparing two copies of a record
type Result string

const (
	// Same indicates the payloads are identical
	Same Result = "same"
	// Different indicates the payloads differ
	Different Result = "different"
)

// Payload field names reported by Diff
const (
	FieldAuthor       = "author"
	FieldStatus       = "status"
	FieldApproved     = "approved"
	FieldPublishDate  = "publish_date"
	FieldFeatureImage = "feature_image_url"
	FieldBodyRef      = "body_ref"
)

// Comparison holds the result of comparing a matched pair
type Comparison struct {
	Identity string
	Result   Result
	Reason   string
	// Fields lists differing payload fields when the comparator knows them
	Fields []string
}

// Comparator defines the interface for payload comparison strategies
type Comparator interface {
	// Compare compares the payloads of two records sharing an identity
	Compare(a, b models.ContentRecord) *Comparison

	// Name returns the name of the comparison method
	Name() string
}

// Equal reports whether a and b carry the same payload
func Equal(a, b models.ContentRecord) bool {
	return Fingerprint(a) == Fingerprint(b)
}

// New returns the comparator registered under name ("fields" or "hash")
func New(name string) (Comparator, error) {
	switch name {
	case "", "fields":
		return NewFieldComparator(), nil
	case "hash":
		return NewHashComparator(), nil
	default:
		return nil, &models.ValidationError{Field: "sync.comparison", Message: "unknown comparison method: " + name}
	}
}
