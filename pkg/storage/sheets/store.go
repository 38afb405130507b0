// Package sheets implements the store B adapter on top of a header-driven
// spreadsheet, read and written through the Sheets v4 values API or read
// through a CSV export.
package sheets

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/sdejongh/contentsync/pkg/logging"
	"github.com/sdejongh/contentsync/pkg/models"
	"github.com/sdejongh/contentsync/pkg/storage"
)

const (
	// DefaultSheetName is used when no sheet name is configured
	DefaultSheetName = "Sheet1"
	// DefaultColumns is the column span read from the sheet
	DefaultColumns = "A:Z"
	// DefaultTimeout is the default timeout for HTTP requests
	DefaultTimeout = 30 * time.Second
)

// Config holds the store B connection settings
type Config struct {
	// Endpoint overrides the API base URL, for tests
	Endpoint        string
	SpreadsheetID   string
	SheetName       string
	Columns         string
	APIKey          string
	CredentialsFile string
	// CSVExportURL enables the read-only fallback when no API
	// credentials are configured
	CSVExportURL string

	CacheTTL             time.Duration
	Timeout              time.Duration
	MaxRetries           int
	RetryInitialInterval time.Duration

	// HTTPClient bypasses credential handling, for tests
	HTTPClient *http.Client
}

func (c Config) hasAPIAccess() bool {
	return c.APIKey != "" || c.CredentialsFile != "" || c.HTTPClient != nil
}

// Validate reports missing credentials or addressing
func (c Config) Validate() error {
	switch {
	case c.hasAPIAccess() && c.SpreadsheetID == "":
		return fmt.Errorf("%w: store_b spreadsheet_id", models.ErrConfigurationMissing)
	case !c.hasAPIAccess() && c.CSVExportURL == "":
		return fmt.Errorf("%w: store_b api_key, credentials_file or csv_export_url", models.ErrConfigurationMissing)
	}
	return nil
}

// snapshot is one full read of the sheet. rows[i] is sheet row i+2.
type snapshot struct {
	schema SchemaMap
	rows   [][]string
}

func (s *snapshot) find(identity string) (int, bool) {
	for i, row := range s.rows {
		if rec, ok := fromStoreB(row, i+firstDataRow, s.schema); ok && rec.Identity() == identity {
			return i + firstDataRow, true
		}
	}
	return 0, false
}

// Store is the store B adapter
type Store struct {
	values valueSource
	sheet  string
	cols   string
	logger logging.Logger
	cache  *storage.RecordCache[*snapshot]
}

// New creates a store B adapter. Without API credentials it falls back to
// the read-only CSV export.
func New(ctx context.Context, cfg Config, logger logging.Logger) (*Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, models.NewStoreError(models.StoreB, "init", models.ErrConfigurationMissing, err)
	}
	if cfg.SheetName == "" {
		cfg.SheetName = DefaultSheetName
	}
	if cfg.Columns == "" {
		cfg.Columns = DefaultColumns
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	retry := retrier{maxTries: uint(cfg.MaxRetries) + 1, initial: cfg.RetryInitialInterval}
	if cfg.MaxRetries == 0 {
		retry.maxTries = 4
	}
	if retry.initial == 0 {
		retry.initial = 500 * time.Millisecond
	}

	logger = logging.OrNull(logger).WithFields(logging.Fields{"store": string(models.StoreB)})

	var values valueSource
	if cfg.hasAPIAccess() {
		api, err := newAPIValues(ctx, cfg, retry)
		if err != nil {
			return nil, models.NewStoreError(models.StoreB, "init", models.ErrConfigurationMissing, err)
		}
		values = api
	} else {
		hc := &http.Client{Timeout: cfg.Timeout}
		values = &csvValues{url: cfg.CSVExportURL, httpClient: hc, retry: retry}
		logger.Info(ctx, "no sheets credentials configured, using read-only csv export", nil)
	}

	return &Store{
		values: values,
		sheet:  cfg.SheetName,
		cols:   cfg.Columns,
		logger: logger,
		cache:  storage.NewRecordCache[*snapshot](cfg.CacheTTL),
	}, nil
}

// Store returns models.StoreB
func (s *Store) Store() models.StoreID {
	return models.StoreB
}

// ReadOnly reports whether writes are impossible (CSV export mode)
func (s *Store) ReadOnly() bool {
	_, ok := s.values.(*csvValues)
	return ok
}

// loadSnapshot reads the whole range and discovers the schema
func (s *Store) loadSnapshot(ctx context.Context) (*snapshot, error) {
	rows, err := s.values.ReadRange(ctx, sheetRange(s.sheet, s.cols))
	if err != nil {
		return nil, classify("read", err)
	}
	if len(rows) == 0 {
		return nil, models.NewStoreError(models.StoreB, "read", models.ErrSchemaInvalid, errors.New("sheet has no header row"))
	}
	schema, err := DiscoverSchema(rows[0])
	if err != nil {
		return nil, models.NewStoreError(models.StoreB, "read", models.ErrSchemaInvalid, err)
	}
	return &snapshot{schema: schema, rows: rows[1:]}, nil
}

// FetchAll reads the sheet and converts every non-blank row
func (s *Store) FetchAll(ctx context.Context, opts storage.FetchOptions) ([]models.ContentRecord, error) {
	snap, err := s.cache.Refresh(ctx, s.loadSnapshot)
	if err != nil {
		return nil, err
	}

	recs := make([]models.ContentRecord, 0, len(snap.rows))
	for i, row := range snap.rows {
		if rec, ok := fromStoreB(row, i+firstDataRow, snap.schema); ok {
			recs = append(recs, rec)
		}
	}
	if opts.ApprovedOnly {
		recs = storage.FilterApproved(recs)
	}
	s.logger.Debug(ctx, "fetched records", logging.Fields{"records": len(recs), "rows": len(snap.rows)})
	return recs, nil
}

// FindByIdentity scans the cached sheet for the first row with a matching
// title and keyword, reading the whole range when the cache expired
func (s *Store) FindByIdentity(ctx context.Context, title, keyword string) (storage.Location, error) {
	snap, err := s.cache.GetOrRefresh(ctx, s.loadSnapshot)
	if err != nil {
		return storage.Location{}, err
	}
	row, ok := snap.find(models.Identity(title, keyword))
	if !ok {
		return storage.Location{}, nil
	}
	return storage.Location{Found: true, RowIndex: row, NativeID: strconv.Itoa(row)}, nil
}

// CreateRecord writes rec into the first row after the last data row
func (s *Store) CreateRecord(ctx context.Context, rec models.ContentRecord) (models.ContentRecord, error) {
	snap, err := s.cache.GetOrRefresh(ctx, s.loadSnapshot)
	if err != nil {
		return models.ContentRecord{}, err
	}

	row := len(snap.rows) + firstDataRow
	values := toStoreB(rec, nil, snap.schema, true)
	if err := s.values.WriteRange(ctx, rowRange(s.sheet, row, len(values)), [][]string{values}); err != nil {
		return models.ContentRecord{}, classify("create", err)
	}

	s.cache.Update(func(cur *snapshot) *snapshot {
		if cur == snap {
			cur.rows = append(cur.rows, values)
		}
		return cur
	})

	rec.SourceStore = models.StoreB
	rec.SourceNativeID = strconv.Itoa(row)
	return rec, nil
}

// UpdateRecord rewrites the mapped cells of the row addressed by nativeID
// (a 1-based row number); unmapped columns are never written. If the row no
// longer holds the record, it is located again by identity.
func (s *Store) UpdateRecord(ctx context.Context, nativeID string, rec models.ContentRecord) (models.ContentRecord, error) {
	snap, err := s.cache.GetOrRefresh(ctx, s.loadSnapshot)
	if err != nil {
		return models.ContentRecord{}, err
	}

	identity := rec.Identity()
	row, err := strconv.Atoi(nativeID)
	if err != nil || !s.rowHolds(snap, row, identity) {
		snap, err = s.cache.Refresh(ctx, s.loadSnapshot)
		if err != nil {
			return models.ContentRecord{}, err
		}
		var ok bool
		if row, ok = snap.find(identity); !ok {
			return models.ContentRecord{}, models.NewStoreError(models.StoreB, "update", models.ErrRecordWriteFailed,
				fmt.Errorf("%w: %s", models.ErrNotFound, identity))
		}
	}

	existing := snap.rows[row-firstDataRow]
	values := toStoreB(rec, existing, snap.schema, false)
	if err := s.values.WriteSpans(ctx, mappedSpans(s.sheet, row, values, snap.schema, false)); err != nil {
		return models.ContentRecord{}, classify("update", err)
	}

	s.cache.Update(func(cur *snapshot) *snapshot {
		if cur == snap {
			cur.rows[row-firstDataRow] = values
		}
		return cur
	})

	stored, _ := fromStoreB(values, row, snap.schema)
	stored.LastModified = rec.LastModified
	stored.LastModifiedSource = rec.LastModifiedSource
	return stored, nil
}

func (s *Store) rowHolds(snap *snapshot, row int, identity string) bool {
	i := row - firstDataRow
	if i < 0 || i >= len(snap.rows) {
		return false
	}
	rec, ok := fromStoreB(snap.rows[i], row, snap.schema)
	return ok && rec.Identity() == identity
}

// Schema returns the schema of the cached snapshot, if any
func (s *Store) Schema() (SchemaMap, bool) {
	snap, ok := s.cache.Get()
	if !ok {
		return SchemaMap{}, false
	}
	return snap.schema, true
}

// InvalidateCache drops the cached sheet
func (s *Store) InvalidateCache() {
	s.cache.Invalidate()
}

// CacheExpiresAt returns when the cached sheet expires
func (s *Store) CacheExpiresAt() time.Time {
	return s.cache.ExpiresAt()
}

// Close is a no-op
func (s *Store) Close() error {
	return nil
}

// classify wraps a values error with the store error taxonomy
func classify(op string, err error) error {
	if errors.Is(err, models.ErrReadOnly) {
		return models.NewStoreError(models.StoreB, op, models.ErrConfigurationMissing, err)
	}
	code := statusCode(err)
	switch {
	case code == 0,
		code == http.StatusUnauthorized,
		code == http.StatusForbidden,
		code == http.StatusNotFound,
		code == http.StatusTooManyRequests,
		code >= 500:
		return models.NewStoreError(models.StoreB, op, models.ErrStoreUnreachable, err)
	case op == "read":
		return models.NewStoreError(models.StoreB, op, models.ErrStoreUnreachable, err)
	default:
		return models.NewStoreError(models.StoreB, op, models.ErrRecordWriteFailed, err)
	}
}
