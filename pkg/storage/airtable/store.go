package airtable

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sdejongh/contentsync/pkg/logging"
	"github.com/sdejongh/contentsync/pkg/models"
	"github.com/sdejongh/contentsync/pkg/storage"
)

// Config holds the store A connection settings
type Config struct {
	BaseURL string
	BaseID  string
	Table   string
	Token   string
	Fields  FieldNames

	RequestsPerSecond    float64
	Timeout              time.Duration
	CacheTTL             time.Duration
	MaxRetries           int
	RetryInitialInterval time.Duration

	// HTTPClient overrides the default client, for tests
	HTTPClient *http.Client
}

// Validate reports missing credentials or addressing
func (c Config) Validate() error {
	var missing []string
	if c.Token == "" {
		missing = append(missing, "token")
	}
	if c.BaseID == "" {
		missing = append(missing, "base_id")
	}
	if c.Table == "" {
		missing = append(missing, "table")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: store_a %s", models.ErrConfigurationMissing, strings.Join(missing, ", "))
	}
	return nil
}

// Store is the store A adapter
type Store struct {
	client *Client
	path   string
	fields FieldNames
	logger logging.Logger

	// index maps identity to record id for find-by-identity
	index *storage.RecordCache[map[string]string]
}

// New creates a store A adapter
func New(cfg Config, logger logging.Logger) (*Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, models.NewStoreError(models.StoreA, "init", models.ErrConfigurationMissing, err)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	return &Store{
		client: newClient(cfg),
		path:   "/v0/" + url.PathEscape(cfg.BaseID) + "/" + url.PathEscape(cfg.Table),
		fields: cfg.Fields.withDefaults(),
		logger: logging.OrNull(logger).WithFields(logging.Fields{"store": string(models.StoreA)}),
		index:  storage.NewRecordCache[map[string]string](cfg.CacheTTL),
	}, nil
}

// Store returns models.StoreA
func (s *Store) Store() models.StoreID {
	return models.StoreA
}

// approvedFormula filters to checked approval boxes server-side
func (s *Store) approvedFormula() string {
	return fmt.Sprintf("{%s}=TRUE()", s.fields.Approved)
}

// list pages through the table
func (s *Store) list(ctx context.Context, formula string) ([]apiRecord, error) {
	var (
		all    []apiRecord
		offset string
	)
	for {
		q := url.Values{}
		q.Set("pageSize", fmt.Sprint(pageSize))
		if formula != "" {
			q.Set("filterByFormula", formula)
		}
		if offset != "" {
			q.Set("offset", offset)
		}

		var page listResponse
		if err := s.client.do(ctx, http.MethodGet, s.path, q, nil, &page); err != nil {
			return nil, err
		}
		all = append(all, page.Records...)
		if page.Offset == "" {
			return all, nil
		}
		offset = page.Offset
	}
}

// FetchAll lists the table and converts every usable record
func (s *Store) FetchAll(ctx context.Context, opts storage.FetchOptions) ([]models.ContentRecord, error) {
	formula := ""
	if opts.ApprovedOnly {
		formula = s.approvedFormula()
	}

	raw, err := s.list(ctx, formula)
	if err != nil {
		return nil, classify("list", err)
	}

	recs := make([]models.ContentRecord, 0, len(raw))
	for _, r := range raw {
		rec, err := fromStoreA(r, s.fields)
		if err != nil {
			s.logger.Warn(ctx, "skipping unusable record", logging.Fields{"id": r.ID, "error": err.Error()})
			continue
		}
		recs = append(recs, rec)
	}

	if !opts.ApprovedOnly {
		s.index.Set(buildIndex(recs))
	}
	s.logger.Debug(ctx, "fetched records", logging.Fields{"records": len(recs), "approved_only": opts.ApprovedOnly})
	return recs, nil
}

// CreateRecord creates rec with its identity fields
func (s *Store) CreateRecord(ctx context.Context, rec models.ContentRecord) (models.ContentRecord, error) {
	req := writeRequest{
		Records:  []apiRecord{{Fields: toStoreA(rec, s.fields, true)}},
		Typecast: true,
	}
	var resp writeResponse
	if err := s.client.do(ctx, http.MethodPost, s.path, nil, req, &resp); err != nil {
		return models.ContentRecord{}, classify("create", err)
	}
	if len(resp.Records) != 1 {
		return models.ContentRecord{}, models.NewStoreError(models.StoreA, "create", models.ErrRecordWriteFailed,
			fmt.Errorf("expected 1 record in response, got %d", len(resp.Records)))
	}

	created := s.merge(rec, resp.Records[0])
	s.index.Update(func(idx map[string]string) map[string]string {
		if _, ok := idx[created.Identity()]; !ok {
			idx[created.Identity()] = created.SourceNativeID
		}
		return idx
	})
	return created, nil
}

// UpdateRecord patches the payload fields of nativeID
func (s *Store) UpdateRecord(ctx context.Context, nativeID string, rec models.ContentRecord) (models.ContentRecord, error) {
	if nativeID == "" {
		return models.ContentRecord{}, models.NewStoreError(models.StoreA, "update", models.ErrRecordWriteFailed,
			errors.New("missing record id"))
	}
	req := writeRequest{
		Records:  []apiRecord{{ID: nativeID, Fields: toStoreA(rec, s.fields, false)}},
		Typecast: true,
	}
	var resp writeResponse
	if err := s.client.do(ctx, http.MethodPatch, s.path, nil, req, &resp); err != nil {
		return models.ContentRecord{}, classify("update", err)
	}
	if len(resp.Records) != 1 {
		return models.ContentRecord{}, models.NewStoreError(models.StoreA, "update", models.ErrRecordWriteFailed,
			fmt.Errorf("expected 1 record in response, got %d", len(resp.Records)))
	}
	return s.merge(rec, resp.Records[0]), nil
}

// merge reads back the stored record, falling back to the request payload
// when the response omits fields
func (s *Store) merge(sent models.ContentRecord, r apiRecord) models.ContentRecord {
	stored, err := fromStoreA(r, s.fields)
	if err != nil {
		stored = sent
	}
	stored.SourceStore = models.StoreA
	stored.SourceNativeID = r.ID
	if stored.LastModifiedSource != models.TimestampStore {
		stored.LastModified = sent.LastModified
		stored.LastModifiedSource = sent.LastModifiedSource
	}
	return stored
}

// FindByIdentity answers from the identity index, listing the whole table
// when the index is missing or expired
func (s *Store) FindByIdentity(ctx context.Context, title, keyword string) (storage.Location, error) {
	idx, err := s.index.GetOrRefresh(ctx, s.loadIndex)
	if err != nil {
		return storage.Location{}, err
	}
	id, ok := idx[models.Identity(title, keyword)]
	if !ok {
		return storage.Location{}, nil
	}
	return storage.Location{Found: true, NativeID: id}, nil
}

func (s *Store) loadIndex(ctx context.Context) (map[string]string, error) {
	raw, err := s.list(ctx, "")
	if err != nil {
		return nil, classify("find", err)
	}
	recs := make([]models.ContentRecord, 0, len(raw))
	for _, r := range raw {
		if rec, err := fromStoreA(r, s.fields); err == nil {
			recs = append(recs, rec)
		}
	}
	return buildIndex(recs), nil
}

// InvalidateCache drops the identity index
func (s *Store) InvalidateCache() {
	s.index.Invalidate()
}

// CacheExpiresAt returns when the identity index expires
func (s *Store) CacheExpiresAt() time.Time {
	return s.index.ExpiresAt()
}

// Close releases idle connections
func (s *Store) Close() error {
	s.client.httpClient.CloseIdleConnections()
	return nil
}

// buildIndex maps identities to ids; the first occurrence wins
func buildIndex(recs []models.ContentRecord) map[string]string {
	idx := make(map[string]string, len(recs))
	for _, r := range recs {
		if _, ok := idx[r.Identity()]; !ok {
			idx[r.Identity()] = r.SourceNativeID
		}
	}
	return idx
}
