package sheets

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	sheetsapi "google.golang.org/api/sheets/v4"

	"github.com/sdejongh/contentsync/pkg/models"
)

// valueSource reads and writes cell ranges
type valueSource interface {
	ReadRange(ctx context.Context, rng string) ([][]string, error)
	WriteRange(ctx context.Context, rng string, rows [][]string) error
	WriteSpans(ctx context.Context, spans []cellSpan) error
	Name() string
}

// retrier retries a call on rate-limit and server errors
type retrier struct {
	maxTries uint
	initial  time.Duration
}

func (r retrier) run(ctx context.Context, call func() error) error {
	op := func() (struct{}, error) {
		err := call()
		if err == nil {
			return struct{}{}, nil
		}
		if ctx.Err() != nil || !retryable(err) {
			return struct{}{}, backoff.Permanent(err)
		}
		return struct{}{}, err
	}
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.initial
	_, err := backoff.Retry(ctx, op, backoff.WithBackOff(b), backoff.WithMaxTries(r.maxTries))
	return err
}

func retryable(err error) bool {
	code := statusCode(err)
	return code == 0 || code == http.StatusTooManyRequests || code >= 500
}

// statusCode extracts the HTTP status of an API error, 0 for transport errors
func statusCode(err error) int {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return gerr.Code
	}
	var cerr *csvError
	if errors.As(err, &cerr) {
		return cerr.StatusCode
	}
	return 0
}

// apiValues talks to the Sheets v4 values endpoints
type apiValues struct {
	svc           *sheetsapi.Service
	spreadsheetID string
	retry         retrier
}

func newAPIValues(ctx context.Context, cfg Config, retry retrier) (*apiValues, error) {
	var opts []option.ClientOption
	switch {
	case cfg.HTTPClient != nil:
		opts = append(opts, option.WithHTTPClient(cfg.HTTPClient))
	case cfg.CredentialsFile != "":
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	case cfg.APIKey != "":
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	}
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.Endpoint))
	}

	svc, err := sheetsapi.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return &apiValues{svc: svc, spreadsheetID: cfg.SpreadsheetID, retry: retry}, nil
}

func (a *apiValues) Name() string { return "sheets-api" }

// ReadRange reads formatted cell values
func (a *apiValues) ReadRange(ctx context.Context, rng string) ([][]string, error) {
	var resp *sheetsapi.ValueRange
	err := a.retry.run(ctx, func() error {
		var err error
		resp, err = a.svc.Spreadsheets.Values.Get(a.spreadsheetID, rng).
			ValueRenderOption("FORMATTED_VALUE").
			Context(ctx).
			Do()
		return err
	})
	if err != nil {
		return nil, err
	}

	rows := make([][]string, len(resp.Values))
	for i, row := range resp.Values {
		rows[i] = make([]string, len(row))
		for j, v := range row {
			rows[i][j] = fmt.Sprint(v)
		}
	}
	return rows, nil
}

// WriteRange overwrites rng with rows, parsed as if typed by a user
func (a *apiValues) WriteRange(ctx context.Context, rng string, rows [][]string) error {
	values := make([][]interface{}, len(rows))
	for i, row := range rows {
		values[i] = make([]interface{}, len(row))
		for j, v := range row {
			values[i][j] = v
		}
	}
	vr := &sheetsapi.ValueRange{Range: rng, MajorDimension: "ROWS", Values: values}

	return a.retry.run(ctx, func() error {
		_, err := a.svc.Spreadsheets.Values.Update(a.spreadsheetID, rng, vr).
			ValueInputOption("USER_ENTERED").
			Context(ctx).
			Do()
		return err
	})
}

// WriteSpans overwrites several single-row ranges in one request, leaving
// every other cell untouched
func (a *apiValues) WriteSpans(ctx context.Context, spans []cellSpan) error {
	req := &sheetsapi.BatchUpdateValuesRequest{ValueInputOption: "USER_ENTERED"}
	for _, span := range spans {
		row := make([]interface{}, len(span.Values))
		for i, v := range span.Values {
			row[i] = v
		}
		req.Data = append(req.Data, &sheetsapi.ValueRange{
			Range:          span.Range,
			MajorDimension: "ROWS",
			Values:         [][]interface{}{row},
		})
	}

	return a.retry.run(ctx, func() error {
		_, err := a.svc.Spreadsheets.Values.BatchUpdate(a.spreadsheetID, req).
			Context(ctx).
			Do()
		return err
	})
}

// csvError is a non-2xx answer of the CSV export endpoint
type csvError struct {
	StatusCode int
	URL        string
}

func (e *csvError) Error() string {
	return fmt.Sprintf("csv export: HTTP %d %s", e.StatusCode, e.URL)
}

// csvValues reads the published CSV export of the sheet. It cannot write.
type csvValues struct {
	url        string
	httpClient *http.Client
	retry      retrier
}

func (c *csvValues) Name() string { return "csv-export" }

// ReadRange returns the whole exported sheet; the range is ignored
func (c *csvValues) ReadRange(ctx context.Context, _ string) ([][]string, error) {
	var rows [][]string
	err := c.retry.run(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("failed to create request: %w", err))
		}
		req.Header.Set("Accept", "text/csv")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("failed to execute request: %w", err)
		}
		defer func() {
			_ = resp.Body.Close()
		}()
		if resp.StatusCode != http.StatusOK {
			_, _ = io.Copy(io.Discard, resp.Body)
			return &csvError{StatusCode: resp.StatusCode, URL: c.url}
		}

		r := csv.NewReader(resp.Body)
		r.FieldsPerRecord = -1
		r.LazyQuotes = true
		parsed, err := r.ReadAll()
		if err != nil {
			return backoff.Permanent(fmt.Errorf("parse csv export: %w", err))
		}
		rows = trimTrailingBlankRows(parsed)
		return nil
	})
	return rows, err
}

// WriteRange always fails
func (c *csvValues) WriteRange(context.Context, string, [][]string) error {
	return models.ErrReadOnly
}

// WriteSpans always fails
func (c *csvValues) WriteSpans(context.Context, []cellSpan) error {
	return models.ErrReadOnly
}

// trimTrailingBlankRows mirrors the values API, which omits trailing empty rows
func trimTrailingBlankRows(rows [][]string) [][]string {
	for len(rows) > 0 && strings.TrimSpace(strings.Join(rows[len(rows)-1], "")) == "" {
		rows = rows[:len(rows)-1]
	}
	return rows
}
