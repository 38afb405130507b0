package sheets

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sdejongh/contentsync/pkg/models"
	"github.com/sdejongh/contentsync/pkg/storage"
)

// fakeSheets serves the values endpoints of one spreadsheet
type fakeSheets struct {
	mu     sync.Mutex
	grid   [][]string
	reads  int
	writes []string // ranges written
	status int      // non-zero fails every request
}

func (f *fakeSheets) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	const (
		prefix      = "/v4/spreadsheets/sheet123/values/"
		batchUpdate = "/v4/spreadsheets/sheet123/values:batchUpdate"
	)
	if !strings.HasPrefix(r.URL.Path, prefix) && r.URL.Path != batchUpdate {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	if f.status != 0 {
		w.WriteHeader(f.status)
		_, _ = w.Write([]byte(`{"error":{"code":` + strconv.Itoa(f.status) + `,"message":"injected"}}`))
		return
	}
	rng := strings.TrimPrefix(r.URL.Path, prefix)

	switch r.Method {
	case http.MethodGet:
		f.reads++
		values := make([][]any, len(f.grid))
		for i, row := range f.grid {
			for _, c := range row {
				values[i] = append(values[i], c)
			}
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"range": rng, "majorDimension": "ROWS", "values": values})

	case http.MethodPut:
		var body struct {
			Values [][]string `json:"values"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		f.writes = append(f.writes, rng)
		row := rowOf(rng)
		for len(f.grid) < row {
			f.grid = append(f.grid, nil)
		}
		f.grid[row-1] = body.Values[0]
		_ = json.NewEncoder(w).Encode(map[string]any{"updatedRange": rng, "updatedRows": 1})

	case http.MethodPost:
		var body struct {
			Data []struct {
				Range  string     `json:"range"`
				Values [][]string `json:"values"`
			} `json:"data"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		for _, d := range body.Data {
			f.writes = append(f.writes, d.Range)
			row, col := rowOf(d.Range), colOf(d.Range)
			for len(f.grid) < row {
				f.grid = append(f.grid, nil)
			}
			for len(f.grid[row-1]) < col+len(d.Values[0]) {
				f.grid[row-1] = append(f.grid[row-1], "")
			}
			copy(f.grid[row-1][col:], d.Values[0])
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"totalUpdatedRows": 1})
	}
}

// rowOf extracts the start row of "Sheet!A5:I5"
func rowOf(rng string) int {
	cells := rng[strings.LastIndex(rng, "!")+1:]
	start := strings.Split(cells, ":")[0]
	n, _ := strconv.Atoi(strings.TrimLeft(start, "ABCDEFGHIJKLMNOPQRSTUVWXYZ"))
	return n
}

// colOf extracts the 0-based start column of "Sheet!C2:H2"
func colOf(rng string) int {
	cells := rng[strings.LastIndex(rng, "!")+1:]
	col := 0
	for _, c := range strings.Split(cells, ":")[0] {
		if c < 'A' || c > 'Z' {
			break
		}
		col = col*26 + int(c-'A') + 1
	}
	return col - 1
}

func (f *fakeSheets) row(i int) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.grid[i-1]
}

var header = []string{"Title", "Primary Keyword", "Author", "Status", "Approved", "Publish Date", "Feature Image", "Google Doc", "Notes", "Last Modified"}

func newFake() *fakeSheets {
	return &fakeSheets{grid: [][]string{
		header,
		{"AI Trends", "ai", "Ann", "Approved", "TRUE", "2025-05-01", "", "https://docs/ai", "keep me", "2025-05-02T00:00:00Z"},
		{},
		{"Remote Work", "remote", "Bob", "Draft", "FALSE", "", "", "", ""},
	}}
}

func newTestStore(t *testing.T, fake *fakeSheets) *Store {
	t.Helper()
	server := httptest.NewServer(fake)
	server.Config.SetKeepAlivesEnabled(false)
	t.Cleanup(server.Close)

	s, err := New(context.Background(), Config{
		Endpoint:             server.URL + "/",
		SpreadsheetID:        "sheet123",
		SheetName:            "Posts",
		HTTPClient:           server.Client(),
		MaxRetries:           1,
		RetryInitialInterval: time.Millisecond,
	}, nil)
	require.NoError(t, err)
	return s
}

// ============== Schema Tests ==============

func TestDiscoverSchema(t *testing.T) {
	t.Parallel()

	s, err := DiscoverSchema([]string{"Notes", "Focus Keyword", "Post Title", "Approved?", "Publish Date", "Featured Image URL", "Doc"})
	require.NoError(t, err)

	col := func(f Field) int {
		i, ok := s.Column(f)
		require.True(t, ok, "field %s not mapped", f)
		return i
	}
	assert.Equal(t, 2, col(FieldTitle))
	assert.Equal(t, 1, col(FieldPrimaryKeyword))
	assert.Equal(t, 3, col(FieldApproved))
	assert.Equal(t, 4, col(FieldPublishDate))
	assert.Equal(t, 5, col(FieldFeatureImage))
	assert.Equal(t, 6, col(FieldBodyRef))
	_, ok := s.Column(FieldAuthor)
	assert.False(t, ok)
	assert.Equal(t, 7, s.Width())

	s, err = DiscoverSchema([]string{"Primary Keyword (SEO)", "Title"})
	require.NoError(t, err)
	assert.Equal(t, 0, s.columns[FieldPrimaryKeyword], "prefix match")

	_, err = DiscoverSchema([]string{"Title", "Author"})
	assert.ErrorIs(t, err, models.ErrSchemaInvalid)
}

func TestRanges(t *testing.T) {
	t.Parallel()
	tests := map[int]string{0: "A", 25: "Z", 26: "AA", 27: "AB", 51: "AZ", 52: "BA", 701: "ZZ", 702: "AAA"}
	for in, want := range tests {
		assert.Equal(t, want, columnLetter(in), "columnLetter(%d)", in)
	}
	assert.Equal(t, "Posts!A5:J5", rowRange("Posts", 5, 10))
	assert.Equal(t, "'Blog Posts'!A:Z", sheetRange("Blog Posts", "A:Z"))
	assert.Equal(t, "'Bob''s'!A2:A2", rowRange("Bob's", 2, 0))
	assert.Equal(t, "Posts!C2:H2", spanRange("Posts", 2, 2, 7))
}

func TestMappedSpans(t *testing.T) {
	t.Parallel()
	schema, err := DiscoverSchema(header)
	require.NoError(t, err)
	values := []string{"t", "k", "a", "s", "TRUE", "d", "i", "doc", "notes", "lm"}

	spans := mappedSpans("Posts", 3, values, schema, false)
	require.Len(t, spans, 2)
	assert.Equal(t, cellSpan{Range: "Posts!C3:H3", Values: []string{"a", "s", "TRUE", "d", "i", "doc"}}, spans[0])
	assert.Equal(t, cellSpan{Range: "Posts!J3:J3", Values: []string{"lm"}}, spans[1])

	spans = mappedSpans("Posts", 3, values, schema, true)
	require.Len(t, spans, 2)
	assert.Equal(t, "Posts!A3:H3", spans[0].Range)
}

// ============== Store Tests ==============

func TestNewRequiresConfiguration(t *testing.T) {
	t.Parallel()
	_, err := New(context.Background(), Config{SpreadsheetID: "x"}, nil)
	assert.ErrorIs(t, err, models.ErrConfigurationMissing)

	_, err = New(context.Background(), Config{APIKey: "k"}, nil)
	assert.ErrorIs(t, err, models.ErrConfigurationMissing)
}

func TestFetchAll(t *testing.T) {
	t.Parallel()
	fake := newFake()
	s := newTestStore(t, fake)

	recs, err := s.FetchAll(context.Background(), storage.FetchOptions{})
	require.NoError(t, err)
	require.Len(t, recs, 2, "blank row should be skipped")

	ai := recs[0]
	assert.Equal(t, "AI Trends", ai.Title)
	assert.Equal(t, "2", ai.SourceNativeID)
	assert.Equal(t, models.StoreB, ai.SourceStore)
	assert.True(t, ai.Approved)
	assert.Equal(t, models.PostApproved, ai.Status)
	assert.Equal(t, "https://docs/ai", ai.BodyRef)
	assert.Equal(t, models.TimestampRecorded, ai.LastModifiedSource)
	assert.Equal(t, time.Date(2025, 5, 2, 0, 0, 0, 0, time.UTC), ai.LastModified)

	assert.Equal(t, "4", recs[1].SourceNativeID)
	assert.True(t, recs[1].LastModified.IsZero())

	approved, err := s.FetchAll(context.Background(), storage.FetchOptions{ApprovedOnly: true})
	require.NoError(t, err)
	assert.Len(t, approved, 1)

	schema, ok := s.Schema()
	require.True(t, ok)
	assert.Equal(t, header, schema.Headers())
}

func TestFindByIdentityScansCachedSheet(t *testing.T) {
	t.Parallel()
	fake := newFake()
	s := newTestStore(t, fake)
	ctx := context.Background()

	loc, err := s.FindByIdentity(ctx, "remote work", "REMOTE")
	require.NoError(t, err)
	assert.True(t, loc.Found)
	assert.Equal(t, 4, loc.RowIndex)
	assert.Equal(t, "4", loc.NativeID)

	loc, err = s.FindByIdentity(ctx, "nope", "x")
	require.NoError(t, err)
	assert.False(t, loc.Found)
	assert.Equal(t, 1, fake.reads)
}

func TestCreateRecordAppends(t *testing.T) {
	t.Parallel()
	fake := newFake()
	s := newTestStore(t, fake)
	ctx := context.Background()
	lm := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)

	created, err := s.CreateRecord(ctx, models.ContentRecord{
		Title: "SEO Basics", PrimaryKeyword: "seo", Author: "=cmd()", Approved: true,
		Status: models.PostApproved, PublishDate: time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC),
		LastModified: lm,
	})
	require.NoError(t, err)
	assert.Equal(t, "5", created.SourceNativeID)
	assert.Equal(t, []string{"Posts!A5:J5"}, fake.writes)

	row := fake.row(5)
	assert.Equal(t, "SEO Basics", row[0])
	assert.Equal(t, "'=cmd()", row[2], "formulas are escaped")
	assert.Equal(t, "TRUE", row[4])
	assert.Equal(t, "2025-07-01", row[5])
	assert.Equal(t, "2025-06-01T08:00:00Z", row[9])

	loc, err := s.FindByIdentity(ctx, "SEO Basics", "seo")
	require.NoError(t, err)
	assert.True(t, loc.Found, "cache should include the created row")
	assert.Equal(t, 1, fake.reads)

	second, err := s.CreateRecord(ctx, models.ContentRecord{Title: "Next", PrimaryKeyword: "n"})
	require.NoError(t, err)
	assert.Equal(t, "6", second.SourceNativeID)
}

func TestUpdateRecordOverlaysRow(t *testing.T) {
	t.Parallel()
	fake := newFake()
	s := newTestStore(t, fake)
	ctx := context.Background()

	_, err := s.FetchAll(ctx, storage.FetchOptions{})
	require.NoError(t, err)

	updated, err := s.UpdateRecord(ctx, "2", models.ContentRecord{
		Title: "ai trends", PrimaryKeyword: "AI", Author: "Zed", Status: models.PostPublished, Approved: true,
	})
	require.NoError(t, err)
	assert.Equal(t, "Zed", updated.Author)

	row := fake.row(2)
	assert.Equal(t, "AI Trends", row[0], "identity cells are not rewritten")
	assert.Equal(t, "Zed", row[2])
	assert.Equal(t, "Published", row[3])
	assert.Equal(t, "keep me", row[8], "unmapped columns are preserved")
	// the unmapped Notes column (I) is never part of a write
	assert.Equal(t, []string{"Posts!C2:H2", "Posts!J2:J2"}, fake.writes)
}

func TestUpdateRecordKeepsUnmappedFormulas(t *testing.T) {
	t.Parallel()
	fake := newFake()
	s := newTestStore(t, fake)
	ctx := context.Background()

	_, err := s.FetchAll(ctx, storage.FetchOptions{})
	require.NoError(t, err)

	// the sheet computes Notes; reads only ever see the rendered value
	fake.mu.Lock()
	fake.grid[1][8] = "=LEN(C2)"
	fake.mu.Unlock()

	_, err = s.UpdateRecord(ctx, "2", models.ContentRecord{Title: "AI Trends", PrimaryKeyword: "ai", Author: "Zed"})
	require.NoError(t, err)
	assert.Equal(t, "=LEN(C2)", fake.row(2)[8])
	assert.Equal(t, "Zed", fake.row(2)[2])
}

func TestUpdateRecordRelocatesShiftedRow(t *testing.T) {
	t.Parallel()
	fake := newFake()
	s := newTestStore(t, fake)
	ctx := context.Background()

	_, err := s.FetchAll(ctx, storage.FetchOptions{})
	require.NoError(t, err)

	// someone inserts a row above "Remote Work" after our read
	fake.mu.Lock()
	fake.grid = append(fake.grid[:1], append([][]string{{"Inserted", "ins"}}, fake.grid[1:]...)...)
	fake.mu.Unlock()
	s.InvalidateCache()

	_, err = s.UpdateRecord(ctx, "4", models.ContentRecord{Title: "Remote Work", PrimaryKeyword: "remote", Author: "Cy"})
	require.NoError(t, err)
	assert.Equal(t, "Cy", fake.row(5)[2])
	assert.Equal(t, "Inserted", fake.row(2)[0])

	_, err = s.UpdateRecord(ctx, "2", models.ContentRecord{Title: "Gone", PrimaryKeyword: "x"})
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestReadErrors(t *testing.T) {
	t.Parallel()

	fake := newFake()
	fake.status = http.StatusForbidden
	s := newTestStore(t, fake)
	_, err := s.FetchAll(context.Background(), storage.FetchOptions{})
	assert.ErrorIs(t, err, models.ErrStoreUnreachable)

	bad := &fakeSheets{grid: [][]string{{"Author", "Status"}}}
	s = newTestStore(t, bad)
	_, err = s.FetchAll(context.Background(), storage.FetchOptions{})
	assert.ErrorIs(t, err, models.ErrSchemaInvalid)

	empty := &fakeSheets{}
	s = newTestStore(t, empty)
	_, err = s.FetchAll(context.Background(), storage.FetchOptions{})
	assert.ErrorIs(t, err, models.ErrSchemaInvalid)
}

func TestCSVExportFallback(t *testing.T) {
	t.Parallel()
	csvBody := "Title,Keyword,Approved\n\"AI Trends, 2025\",ai,yes\nRemote Work,remote,no\n,,\n"
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/csv")
		_, _ = w.Write([]byte(csvBody))
	}))
	defer server.Close()

	s, err := New(context.Background(), Config{CSVExportURL: server.URL, RetryInitialInterval: time.Millisecond}, nil)
	require.NoError(t, err)
	assert.True(t, s.ReadOnly())

	recs, err := s.FetchAll(context.Background(), storage.FetchOptions{})
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "AI Trends, 2025", recs[0].Title)
	assert.True(t, recs[0].Approved)

	_, err = s.CreateRecord(context.Background(), models.ContentRecord{Title: "x", PrimaryKeyword: "y"})
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrReadOnly)
	assert.True(t, models.IsUnreachable(err), "read-only writes abort the batch")
}
