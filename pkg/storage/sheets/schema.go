package sheets

import (
	"fmt"
	"sort"
	"strings"

	"github.com/sdejongh/contentsync/pkg/models"
)

// Field is a canonical record field a sheet column can map to
type Field string

const (
	FieldTitle          Field = "title"
	FieldPrimaryKeyword Field = "primary_keyword"
	FieldAuthor         Field = "author"
	FieldStatus         Field = "status"
	FieldApproved       Field = "approved"
	FieldPublishDate    Field = "publish_date"
	FieldFeatureImage   Field = "feature_image"
	FieldBodyRef        Field = "body_ref"
	FieldLastModified   Field = "last_modified"
)

// fieldOrder is the discovery order; earlier fields claim columns first
var fieldOrder = []Field{
	FieldTitle,
	FieldPrimaryKeyword,
	FieldAuthor,
	FieldStatus,
	FieldApproved,
	FieldPublishDate,
	FieldFeatureImage,
	FieldBodyRef,
	FieldLastModified,
}

// aliases lists the normalized header spellings of every field
var aliases = map[Field][]string{
	FieldTitle:          {"title", "posttitle", "blogtitle", "headline", "name"},
	FieldPrimaryKeyword: {"primarykeyword", "keyword", "focuskeyword", "targetkeyword", "mainkeyword"},
	FieldAuthor:         {"author", "writer", "byline"},
	FieldStatus:         {"status", "poststatus", "stage"},
	FieldApproved:       {"approved", "approval", "isapproved"},
	FieldPublishDate:    {"publishdate", "publishon", "publicationdate", "publishedon", "date"},
	FieldFeatureImage:   {"featureimage", "featuredimage", "featureimageurl", "image", "heroimage"},
	FieldBodyRef:        {"documenturl", "document", "googledoc", "docurl", "doc", "bodyref", "contenturl"},
	FieldLastModified:   {"lastmodified", "modified", "updatedat", "lastupdated"},
}

// SchemaMap maps canonical fields to 0-based column indexes. It is
// discovered once from the header row and threaded through every read and
// write, so reordering columns does not break the adapter.
type SchemaMap struct {
	columns map[Field]int
	headers []string
}

// normalizeHeader drops everything but letters and digits
func normalizeHeader(h string) string {
	return strings.ReplaceAll(models.Normalize(h), "|", "")
}

// DiscoverSchema builds a SchemaMap from the header row. Exact alias
// matches win over prefix matches ("Primary Keyword (SEO)"). Title and
// primary keyword columns are required.
func DiscoverSchema(header []string) (SchemaMap, error) {
	s := SchemaMap{columns: map[Field]int{}, headers: append([]string(nil), header...)}
	claimed := map[int]bool{}
	normalized := make([]string, len(header))
	for i, h := range header {
		normalized[i] = normalizeHeader(h)
	}

	match := func(f Field, accept func(h, alias string) bool) {
		if _, done := s.columns[f]; done {
			return
		}
		for _, alias := range aliases[f] {
			for i, h := range normalized {
				if h != "" && !claimed[i] && accept(h, alias) {
					s.columns[f] = i
					claimed[i] = true
					return
				}
			}
		}
	}

	for _, f := range fieldOrder {
		match(f, func(h, alias string) bool { return h == alias })
	}
	for _, f := range fieldOrder {
		match(f, func(h, alias string) bool { return len(alias) > 3 && strings.HasPrefix(h, alias) })
	}

	var missing []string
	for _, f := range []Field{FieldTitle, FieldPrimaryKeyword} {
		if _, ok := s.columns[f]; !ok {
			missing = append(missing, string(f))
		}
	}
	if len(missing) > 0 {
		return SchemaMap{}, fmt.Errorf("%w: header %q lacks %s", models.ErrSchemaInvalid, header, strings.Join(missing, ", "))
	}
	return s, nil
}

// Column returns the column index of f
func (s SchemaMap) Column(f Field) (int, bool) {
	i, ok := s.columns[f]
	return i, ok
}

// mappedColumns returns the sorted column indexes of every mapped field
func (s SchemaMap) mappedColumns(withIdentity bool) []int {
	cols := make([]int, 0, len(s.columns))
	for f, i := range s.columns {
		if !withIdentity && (f == FieldTitle || f == FieldPrimaryKeyword) {
			continue
		}
		cols = append(cols, i)
	}
	sort.Ints(cols)
	return cols
}

// Width returns the number of header columns
func (s SchemaMap) Width() int {
	return len(s.headers)
}

// Headers returns the header row the map was built from
func (s SchemaMap) Headers() []string {
	return s.headers
}

// cell returns the trimmed cell of row mapped to f
func (s SchemaMap) cell(row []string, f Field) string {
	i, ok := s.columns[f]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}
