package sheets

import (
	"strconv"
	"strings"

	"github.com/sdejongh/contentsync/pkg/models"
	"github.com/sdejongh/contentsync/pkg/storage"
)

// firstDataRow is the 1-based sheet row of the first record; row 1 is the header
const firstDataRow = 2

// fromStoreB converts a sheet row to a ContentRecord. Rows without a title
// and keyword are blank and reported as not ok.
func fromStoreB(row []string, sheetRow int, s SchemaMap) (models.ContentRecord, bool) {
	rec := models.ContentRecord{
		Title:           s.cell(row, FieldTitle),
		PrimaryKeyword:  s.cell(row, FieldPrimaryKeyword),
		Author:          s.cell(row, FieldAuthor),
		Approved:        storage.ParseFlag(s.cell(row, FieldApproved)),
		FeatureImageURL: s.cell(row, FieldFeatureImage),
		BodyRef:         s.cell(row, FieldBodyRef),
		SourceStore:     models.StoreB,
		SourceNativeID:  strconv.Itoa(sheetRow),
	}
	if rec.Title == "" && rec.PrimaryKeyword == "" {
		return models.ContentRecord{}, false
	}
	if st, ok := models.ParsePostStatus(s.cell(row, FieldStatus)); ok {
		rec.Status = st
	}
	if d, ok := storage.ParseDate(s.cell(row, FieldPublishDate)); ok {
		rec.PublishDate = d
	}
	if t, ok := storage.ParseDate(s.cell(row, FieldLastModified)); ok {
		rec.LastModified = t
		rec.LastModifiedSource = models.TimestampRecorded
	}
	return rec, true
}

// toStoreB overlays the payload of rec onto existing, keeping unmapped
// columns. Identity columns are only written for creates.
func toStoreB(rec models.ContentRecord, existing []string, s SchemaMap, withIdentity bool) []string {
	width := s.Width()
	if len(existing) > width {
		width = len(existing)
	}
	row := make([]string, width)
	copy(row, existing)

	set := func(f Field, v string) {
		if i, ok := s.Column(f); ok {
			row[i] = v
		}
	}
	if withIdentity {
		set(FieldTitle, cellText(rec.Title))
		set(FieldPrimaryKeyword, cellText(rec.PrimaryKeyword))
	}
	set(FieldAuthor, cellText(rec.Author))
	set(FieldStatus, string(rec.Status))
	set(FieldApproved, storage.FormatFlag(rec.Approved))
	set(FieldPublishDate, storage.FormatDate(rec.PublishDate))
	set(FieldFeatureImage, cellText(rec.FeatureImageURL))
	set(FieldBodyRef, cellText(rec.BodyRef))
	if !rec.LastModified.IsZero() {
		set(FieldLastModified, storage.FormatTimestamp(rec.LastModified))
	}
	return row
}

// cellText keeps user-entered input from being read as a formula
func cellText(v string) string {
	if strings.HasPrefix(v, "=") || strings.HasPrefix(v, "+") || strings.HasPrefix(v, "@") {
		return "'" + v
	}
	return v
}
