// Tracksync - ClickUp Time Tracking Warehouse Pipeline
// Copyright 2026 Nordlum Analytics
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nordlum/tracksync

// Package clickup implements the ClickUp v2 API client used by the sync
// pipeline: a retrying fetcher, a circuit-breaker wrapper, the windowed
// time-entry collector, and the workspace hierarchy walker.
package clickup

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/nordlum/tracksync/internal/metrics"
)

// ErrorKind classifies a fetch failure.
type ErrorKind int

const (
	// KindRateLimited is an HTTP 429 response (retryable).
	KindRateLimited ErrorKind = iota
	// KindServerError is an HTTP 5xx response (retryable).
	KindServerError
	// KindClientError is an HTTP 4xx other than 429 (fatal, never retried).
	KindClientError
	// KindNetworkError is a transport-level failure (retryable).
	KindNetworkError
	// KindExhaustedRetries means every allowed attempt failed.
	KindExhaustedRetries
)

// String returns the metrics label for the kind.
func (k ErrorKind) String() string {
	switch k {
	case KindRateLimited:
		return "rate_limited"
	case KindServerError:
		return "server_error"
	case KindClientError:
		return "client_error"
	case KindNetworkError:
		return "network_error"
	case KindExhaustedRetries:
		return "exhausted_retries"
	default:
		return "unknown"
	}
}

// FetchError is the typed error returned by Client.Get. Callers inspect
// Kind to decide whether a window can be skipped or the run must abort.
type FetchError struct {
	Kind       ErrorKind
	StatusCode int
	Path       string
	Err        error
}

// Error implements the error interface.
func (e *FetchError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("clickup fetch %s: %s (HTTP %d)", e.Path, e.Kind, e.StatusCode)
	}
	if e.Err != nil {
		return fmt.Sprintf("clickup fetch %s: %s: %v", e.Path, e.Kind, e.Err)
	}
	return fmt.Sprintf("clickup fetch %s: %s", e.Path, e.Kind)
}

// Unwrap returns the underlying error, if any.
func (e *FetchError) Unwrap() error { return e.Err }

// retryable reports whether the failure class permits another attempt.
func (e *FetchError) retryable() bool {
	switch e.Kind {
	case KindRateLimited, KindServerError, KindNetworkError:
		return true
	default:
		return false
	}
}

// Client is a retrying ClickUp API fetcher. It issues authenticated GET
// requests and retries rate limits, server errors and network faults with
// exponential backoff. Safe for concurrent use.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	maxRetries int

	// retryBaseDelay is the backoff unit: attempt n waits base * 2^n.
	// Injectable so tests don't sleep for real.
	retryBaseDelay time.Duration

	logger zerolog.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = hc }
}

// WithMaxRetries sets the number of additional attempts after a retryable
// failure.
func WithMaxRetries(n int) ClientOption {
	return func(c *Client) { c.maxRetries = n }
}

// WithRetryBaseDelay sets the exponential backoff unit.
func WithRetryBaseDelay(d time.Duration) ClientOption {
	return func(c *Client) { c.retryBaseDelay = d }
}

// WithLogger sets the client logger.
func WithLogger(l zerolog.Logger) ClientOption {
	return func(c *Client) { c.logger = l }
}

// NewClient creates a ClickUp API client.
func NewClient(baseURL, token string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: baseURL,
		token:   token,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		maxRetries:     3,
		retryBaseDelay: time.Second,
		logger:         zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get fetches path (relative to the API root, e.g. "/team/123/time_entries")
// with the given query parameters and decodes the JSON response body.
//
// Retryable failures (429, 5xx, network) are retried up to maxRetries extra
// times with base*2^attempt backoff. Other 4xx responses fail immediately.
// When retries run out the returned *FetchError has KindExhaustedRetries and
// wraps the last attempt's error.
func (c *Client) Get(ctx context.Context, path string, params url.Values) (map[string]any, error) {
	var lastErr *FetchError

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			delay := c.retryBaseDelay * (1 << (attempt - 1))
			c.logger.Warn().
				Str("path", path).
				Int("attempt", attempt).
				Dur("backoff", delay).
				Str("reason", lastErr.Kind.String()).
				Msg("Retrying ClickUp request")
			metrics.FetchRetries.Inc()

			select {
			case <-ctx.Done():
				return nil, &FetchError{Kind: KindNetworkError, Path: path, Err: ctx.Err()}
			case <-time.After(delay):
			}
		}

		body, ferr := c.doRequest(ctx, path, params)
		if ferr == nil {
			metrics.FetchRequests.WithLabelValues("success").Inc()
			return body, nil
		}

		metrics.FetchRequests.WithLabelValues(ferr.Kind.String()).Inc()
		if !ferr.retryable() {
			return nil, ferr
		}
		lastErr = ferr
	}

	return nil, &FetchError{
		Kind:       KindExhaustedRetries,
		StatusCode: lastErr.StatusCode,
		Path:       path,
		Err:        lastErr,
	}
}

// doRequest performs a single HTTP GET attempt.
func (c *Client) doRequest(ctx context.Context, path string, params url.Values) (map[string]any, *FetchError) {
	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, &FetchError{Kind: KindClientError, Path: path, Err: err}
	}
	req.Header.Set("Authorization", c.token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &FetchError{Kind: KindNetworkError, Path: path, Err: err}
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, &FetchError{Kind: KindRateLimited, StatusCode: resp.StatusCode, Path: path}
	case resp.StatusCode >= 500:
		return nil, &FetchError{Kind: KindServerError, StatusCode: resp.StatusCode, Path: path}
	case resp.StatusCode >= 400:
		return nil, &FetchError{Kind: KindClientError, StatusCode: resp.StatusCode, Path: path}
	}

	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, &FetchError{Kind: KindNetworkError, Path: path, Err: fmt.Errorf("decode response: %w", err)}
	}
	return body, nil
}

// IsClientError reports whether err is a fatal 4xx fetch failure.
func IsClientError(err error) bool {
	var fe *FetchError
	return errors.As(err, &fe) && fe.Kind == KindClientError
}
