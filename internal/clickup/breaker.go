// Tracksync - ClickUp Time Tracking Warehouse Pipeline
// Copyright 2026 Nordlum Analytics
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nordlum/tracksync

package clickup

import (
	"context"
	"net/url"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/nordlum/tracksync/internal/logging"
	"github.com/nordlum/tracksync/internal/metrics"
)

// API is the fetch surface the pipeline depends on. *Client and
// *BreakerClient both satisfy it.
type API interface {
	Get(ctx context.Context, path string, params url.Values) (map[string]any, error)
}

// BreakerClient wraps an API with a circuit breaker so a ClickUp outage
// fails sync runs fast instead of grinding through every window's full
// retry sequence.
//
// The breaker opens after 5 consecutive failures and tries again after
// 60 seconds. A retry-exhausted window counts as one failure; the client's
// own per-request retries happen inside a single breaker execution.
type BreakerClient struct {
	inner   API
	breaker *gobreaker.CircuitBreaker[map[string]any]
}

// NewBreakerClient wraps api with a named circuit breaker.
func NewBreakerClient(name string, api API) *BreakerClient {
	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Circuit breaker state change")
			metrics.CircuitBreakerTransitions.WithLabelValues(name, from.String(), to.String()).Inc()
			metrics.CircuitBreakerState.WithLabelValues(name).Set(breakerStateValue(to))
		},
		IsSuccessful: func(err error) bool {
			// 4xx responses are caller bugs, not upstream health; they
			// must not open the circuit.
			return err == nil || IsClientError(err)
		},
	}

	return &BreakerClient{
		inner:   api,
		breaker: gobreaker.NewCircuitBreaker[map[string]any](settings),
	}
}

// Get executes the fetch through the circuit breaker.
func (b *BreakerClient) Get(ctx context.Context, path string, params url.Values) (map[string]any, error) {
	return b.breaker.Execute(func() (map[string]any, error) {
		return b.inner.Get(ctx, path, params)
	})
}

// State returns the current breaker state.
func (b *BreakerClient) State() gobreaker.State { return b.breaker.State() }

func breakerStateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}
