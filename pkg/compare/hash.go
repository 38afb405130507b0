package compare

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"

	"github.com/sdejongh/contentsync/pkg/models"
)

// canonicalPayload is the store-independent form of a record payload.
// Publish dates are compared at day precision since the stores differ in
// how much of a timestamp they keep.
type canonicalPayload struct {
	author       string
	status       string
	approved     bool
	publishDate  string
	featureImage string
	bodyRef      string
}

func canonical(r models.ContentRecord) canonicalPayload {
	p := canonicalPayload{
		author:       strings.TrimSpace(r.Author),
		status:       strings.ToLower(strings.TrimSpace(string(r.Status))),
		approved:     r.Approved,
		featureImage: strings.TrimSpace(r.FeatureImageURL),
		bodyRef:      strings.TrimSpace(r.BodyRef),
	}
	if !r.PublishDate.IsZero() {
		p.publishDate = r.PublishDate.UTC().Format("2006-01-02")
	}
	return p
}

// Fingerprint returns the SHA-256 hex digest of the record payload.
// Identity and provenance fields are excluded.
func Fingerprint(r models.ContentRecord) string {
	p := canonical(r)
	h := sha256.New()
	for _, v := range []string{
		p.author,
		p.status,
		strconv.FormatBool(p.approved),
		p.publishDate,
		p.featureImage,
		p.bodyRef,
	} {
		h.Write([]byte(v))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// HashComparator compares records by payload fingerprint only
type HashComparator struct{}

// NewHashComparator creates a new fingerprint-based comparator
func NewHashComparator() *HashComparator {
	return &HashComparator{}
}

// Compare compares the fingerprints of a and b
func (c *HashComparator) Compare(a, b models.ContentRecord) *Comparison {
	fa, fb := Fingerprint(a), Fingerprint(b)
	if fa == fb {
		return &Comparison{Identity: a.Identity(), Result: Same, Reason: "fingerprints match"}
	}
	return &Comparison{
		Identity: a.Identity(),
		Result:   Different,
		Reason:   "fingerprint " + fa[:12] + " != " + fb[:12],
	}
}

// Name returns the comparator name
func (c *HashComparator) Name() string {
	return "hash"
}
