// Tracksync - ClickUp Time Tracking Warehouse Pipeline
// Copyright 2026 Nordlum Analytics
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nordlum/tracksync

// Package metrics provides Prometheus instrumentation for the sync pipeline:
// run outcomes and duration, window coverage, fetch retries, warehouse row
// counts, and circuit breaker state.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Sync run metrics

	SyncRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tracksync_runs_total",
			Help: "Total number of sync runs by kind and outcome",
		},
		[]string{"kind", "status"}, // status: "success", "error"
	)

	SyncRunDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tracksync_run_duration_seconds",
			Help:    "Duration of sync runs in seconds",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200},
		},
		[]string{"kind"},
	)

	RecordsFetched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tracksync_records_fetched_total",
			Help: "Total raw records fetched from the ClickUp API",
		},
		[]string{"kind"},
	)

	// Window coverage metrics (time-entry collection)

	WindowsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tracksync_windows_total",
			Help: "Total date sub-windows attempted, by outcome",
		},
		[]string{"status"}, // "fetched", "failed"
	)

	// Fetcher metrics

	FetchRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tracksync_fetch_requests_total",
			Help: "Total ClickUp API requests by outcome",
		},
		[]string{"status"}, // "success", "rate_limited", "server_error", "client_error", "network_error"
	)

	FetchRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tracksync_fetch_retries_total",
			Help: "Total retry attempts against the ClickUp API",
		},
	)

	// Warehouse metrics

	RowsStaged = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tracksync_rows_staged_total",
			Help: "Total rows loaded into the staging table",
		},
		[]string{"kind"},
	)

	MergeRowsAffected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tracksync_merge_rows_affected_total",
			Help: "Total fact-table rows touched by merge statements",
		},
		[]string{"policy"}, // "windowed", "full", "upsert"
	)

	BackupFilesWritten = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tracksync_backup_files_written_total",
			Help: "Total CSV backup snapshots written",
		},
	)

	// Circuit breaker metrics

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "tracksync_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tracksync_circuit_breaker_transitions_total",
			Help: "Total circuit breaker state transitions",
		},
		[]string{"name", "from", "to"},
	)
)
