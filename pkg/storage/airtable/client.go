// Package airtable implements the store A adapter on top of the Airtable
// REST API.
package airtable

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/sdejongh/contentsync/pkg/models"
	"github.com/sdejongh/contentsync/pkg/ratelimit"
)

const (
	// DefaultBaseURL is the public Airtable API endpoint
	DefaultBaseURL = "https://api.airtable.com"

	// DefaultTimeout is the default timeout for HTTP requests
	DefaultTimeout = 30 * time.Second

	// DefaultRequestsPerSecond stays under the per-base API limit
	DefaultRequestsPerSecond = 5

	// MaxRecordsPerRequest is the API limit for batch create and update
	MaxRecordsPerRequest = 10

	// pageSize is the largest page the list endpoint returns
	pageSize = 100

	// maxResponseSize bounds a single response body (10MB)
	maxResponseSize = 10 * 1024 * 1024

	// defaultMaxRetries applies when the config leaves retries unset
	defaultMaxRetries = 3

	// UserAgent is the user agent string for HTTP requests
	UserAgent = "contentsync/1.0"
)

// HTTPError is a non-2xx API response
type HTTPError struct {
	StatusCode int
	Method     string
	URL        string
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d %s %s: %s", e.StatusCode, e.Method, e.URL, e.Body)
}

// unreachable reports whether the status means the whole store is unusable
// rather than one record being rejected
func (e *HTTPError) unreachable() bool {
	switch {
	case e.StatusCode == http.StatusUnauthorized, e.StatusCode == http.StatusForbidden:
		return true
	case e.StatusCode == http.StatusTooManyRequests:
		return true
	case e.StatusCode >= 500:
		return true
	}
	return false
}

// Client performs authenticated, rate-limited and retried API calls
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	limiter    *ratelimit.Limiter
	maxTries   uint
	newBackOff func() backoff.BackOff
}

func newClient(cfg Config) *Client {
	hc := cfg.HTTPClient
	if hc == nil {
		timeout := cfg.Timeout
		if timeout == 0 {
			timeout = DefaultTimeout
		}
		hc = &http.Client{Timeout: timeout}
	}
	rps := cfg.RequestsPerSecond
	if rps == 0 {
		rps = DefaultRequestsPerSecond
	}
	maxTries := uint(cfg.MaxRetries) + 1
	if cfg.MaxRetries == 0 {
		maxTries = defaultMaxRetries + 1
	}
	initial := cfg.RetryInitialInterval
	if initial == 0 {
		initial = 500 * time.Millisecond
	}

	return &Client{
		baseURL:    cfg.BaseURL,
		token:      cfg.Token,
		httpClient: hc,
		limiter:    ratelimit.NewLimiter(rps, int(rps)),
		maxTries:   maxTries,
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = initial
			b.MaxInterval = 30 * time.Second
			return b
		},
	}
}

// do sends one API call, retrying rate-limit and server errors.
// Creates are only retried on 429 since a failed POST may still have
// been applied.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
	}

	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	op := func() (struct{}, error) {
		err := c.doOnce(ctx, method, u, payload, out)
		if err == nil {
			return struct{}{}, nil
		}
		if ctx.Err() != nil {
			return struct{}{}, backoff.Permanent(err)
		}
		var he *HTTPError
		if errors.As(err, &he) {
			retryable := he.StatusCode == http.StatusTooManyRequests ||
				(he.StatusCode >= 500 && method != http.MethodPost)
			if !retryable {
				return struct{}{}, backoff.Permanent(err)
			}
			return struct{}{}, err
		}
		if method == http.MethodPost {
			return struct{}{}, backoff.Permanent(err)
		}
		return struct{}{}, err
	}

	_, err := backoff.Retry(ctx, op, backoff.WithBackOff(c.newBackOff()), backoff.WithMaxTries(c.maxTries))
	return err
}

func (c *Client) doOnce(ctx context.Context, method, u string, payload []byte, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	var reqBody io.Reader
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, reqBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("User-Agent", UserAgent)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize+1))
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}
	if int64(len(data)) > maxResponseSize {
		return fmt.Errorf("response exceeds %d bytes", maxResponseSize)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		excerpt := string(data)
		if len(excerpt) > 512 {
			excerpt = excerpt[:512]
		}
		return &HTTPError{StatusCode: resp.StatusCode, Method: method, URL: u, Body: excerpt}
	}

	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// classify wraps a client error with the store error taxonomy
func classify(op string, err error) error {
	var he *HTTPError
	switch {
	case errors.As(err, &he) && he.StatusCode == http.StatusNotFound && op == "update":
		return models.NewStoreError(models.StoreA, op, models.ErrRecordWriteFailed, fmt.Errorf("%w: %w", models.ErrNotFound, err))
	case errors.As(err, &he) && (op == "list" || he.unreachable() || he.StatusCode == http.StatusNotFound):
		return models.NewStoreError(models.StoreA, op, models.ErrStoreUnreachable, err)
	case errors.As(err, &he):
		return models.NewStoreError(models.StoreA, op, models.ErrRecordWriteFailed, err)
	default:
		return models.NewStoreError(models.StoreA, op, models.ErrStoreUnreachable, err)
	}
}
