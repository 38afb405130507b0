package airtable

import (
	"fmt"
	"strings"

	"github.com/sdejongh/contentsync/pkg/models"
	"github.com/sdejongh/contentsync/pkg/storage"
)

// FieldNames maps record fields to Airtable column names.
// An empty name leaves the field unmapped.
type FieldNames struct {
	Title          string
	PrimaryKeyword string
	Author         string
	Status         string
	Approved       string
	PublishDate    string
	FeatureImage   string
	BodyRef        string
	// LastModified names a read-only "last modified time" field
	LastModified string
	// FeatureImageAsAttachment writes the image as an attachment list
	// instead of a URL string
	FeatureImageAsAttachment bool
}

// DefaultFieldNames returns the column names of the content base
func DefaultFieldNames() FieldNames {
	return FieldNames{
		Title:          "Title",
		PrimaryKeyword: "Primary Keyword",
		Author:         "Author",
		Status:         "Status",
		Approved:       "Approved",
		PublishDate:    "Publish Date",
		FeatureImage:   "Feature Image",
		BodyRef:        "Document URL",
		LastModified:   "Last Modified",
	}
}

// withDefaults fills unset names from DefaultFieldNames
func (f FieldNames) withDefaults() FieldNames {
	d := DefaultFieldNames()
	set := func(v *string, def string) {
		if *v == "" {
			*v = def
		}
	}
	set(&f.Title, d.Title)
	set(&f.PrimaryKeyword, d.PrimaryKeyword)
	set(&f.Author, d.Author)
	set(&f.Status, d.Status)
	set(&f.Approved, d.Approved)
	set(&f.PublishDate, d.PublishDate)
	set(&f.FeatureImage, d.FeatureImage)
	set(&f.BodyRef, d.BodyRef)
	set(&f.LastModified, d.LastModified)
	return f
}

// apiRecord is the wire shape of one record
type apiRecord struct {
	ID          string         `json:"id,omitempty"`
	CreatedTime string         `json:"createdTime,omitempty"`
	Fields      map[string]any `json:"fields"`
}

type listResponse struct {
	Records []apiRecord `json:"records"`
	Offset  string      `json:"offset,omitempty"`
}

type writeRequest struct {
	Records  []apiRecord `json:"records"`
	Typecast bool        `json:"typecast"`
}

type writeResponse struct {
	Records []apiRecord `json:"records"`
}

// fromStoreA converts an API record to a ContentRecord
func fromStoreA(r apiRecord, f FieldNames) (models.ContentRecord, error) {
	rec := models.ContentRecord{
		Title:          textValue(r.Fields[f.Title]),
		PrimaryKeyword: textValue(r.Fields[f.PrimaryKeyword]),
		Author:         textValue(r.Fields[f.Author]),
		Approved:       flagValue(r.Fields[f.Approved]),
		BodyRef:        textValue(r.Fields[f.BodyRef]),
		SourceStore:    models.StoreA,
		SourceNativeID: r.ID,
	}
	if rec.Title == "" && rec.PrimaryKeyword == "" {
		return models.ContentRecord{}, fmt.Errorf("record %s has neither title nor keyword", r.ID)
	}

	if s, ok := models.ParsePostStatus(textValue(r.Fields[f.Status])); ok {
		rec.Status = s
	}
	if d, ok := storage.ParseDate(textValue(r.Fields[f.PublishDate])); ok {
		rec.PublishDate = d
	}
	rec.FeatureImageURL = imageValue(r.Fields[f.FeatureImage])

	if f.LastModified != "" {
		if t, ok := storage.ParseDate(textValue(r.Fields[f.LastModified])); ok {
			rec.LastModified = t
			rec.LastModifiedSource = models.TimestampStore
		}
	}
	return rec, nil
}

// toStoreA converts the payload of rec to API fields. Identity fields are
// only included for creates.
func toStoreA(rec models.ContentRecord, f FieldNames, withIdentity bool) map[string]any {
	fields := map[string]any{}
	put := func(name string, v any) {
		if name != "" {
			fields[name] = v
		}
	}

	if withIdentity {
		put(f.Title, rec.Title)
		put(f.PrimaryKeyword, rec.PrimaryKeyword)
	}
	put(f.Author, rec.Author)
	if rec.Status == "" {
		put(f.Status, nil)
	} else {
		put(f.Status, string(rec.Status))
	}
	put(f.Approved, rec.Approved)
	if rec.PublishDate.IsZero() {
		put(f.PublishDate, nil)
	} else {
		put(f.PublishDate, storage.FormatDate(rec.PublishDate))
	}
	switch {
	case rec.FeatureImageURL == "":
		put(f.FeatureImage, nil)
	case f.FeatureImageAsAttachment:
		put(f.FeatureImage, []map[string]string{{"url": rec.FeatureImageURL}})
	default:
		put(f.FeatureImage, rec.FeatureImageURL)
	}
	put(f.BodyRef, rec.BodyRef)
	return fields
}

// textValue flattens the shapes Airtable uses for text-like cells:
// plain strings, collaborators, linked/lookup arrays and numbers
func textValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case map[string]any:
		if name, ok := t["name"].(string); ok {
			return strings.TrimSpace(name)
		}
		if email, ok := t["email"].(string); ok {
			return strings.TrimSpace(email)
		}
		return ""
	case []any:
		if len(t) == 0 {
			return ""
		}
		return textValue(t[0])
	case bool:
		if t {
			return "true"
		}
		return "false"
	default:
		return strings.TrimSpace(fmt.Sprint(t))
	}
}

func flagValue(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case nil:
		return false
	default:
		return storage.ParseFlag(textValue(t))
	}
}

// imageValue accepts a URL string or an attachment list
func imageValue(v any) string {
	if list, ok := v.([]any); ok {
		for _, item := range list {
			if m, ok := item.(map[string]any); ok {
				if u, ok := m["url"].(string); ok && u != "" {
					return u
				}
			}
		}
		return ""
	}
	return textValue(v)
}
