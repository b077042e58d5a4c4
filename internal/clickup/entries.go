// Tracksync - ClickUp Time Tracking Warehouse Pipeline
// Copyright 2026 Nordlum Analytics
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nordlum/tracksync

package clickup

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/nordlum/tracksync/internal/metrics"
)

// maxWindowDays is the widest date range the time-entries endpoint accepts.
const maxWindowDays = 30

// Window is one inclusive [Start, End] query range.
type Window struct {
	Start time.Time
	End   time.Time
}

// SplitWindows splits [start, end] into contiguous sub-windows of at most
// windowDays days each. Windows abut exactly: each window starts where the
// previous one ended, so no entry on a boundary instant is missed and the
// merge dedup absorbs the overlap. A zero or negative range yields nil.
func SplitWindows(start, end time.Time, windowDays int) []Window {
	if windowDays <= 0 || windowDays > maxWindowDays {
		windowDays = maxWindowDays
	}
	if !start.Before(end) {
		return nil
	}

	span := time.Duration(windowDays) * 24 * time.Hour
	var windows []Window
	for cursor := start; cursor.Before(end); {
		next := cursor.Add(span)
		if next.After(end) {
			next = end
		}
		windows = append(windows, Window{Start: cursor, End: next})
		cursor = next
	}
	return windows
}

// WindowReport summarizes one collection run. Failed windows leave holes in
// coverage; callers surface the report so a partial run is visible instead
// of silently shorter.
type WindowReport struct {
	Windows int // sub-windows attempted
	Failed  int // sub-windows that failed after retries
	Records int // raw entries collected
}

// Collector fetches raw time entries across a date range, window by window,
// pacing requests to stay under the API rate limit.
type Collector struct {
	api        API
	teamID     string
	assignees  string
	windowDays int
	limiter    *rate.Limiter
	logger     zerolog.Logger
}

// NewCollector creates a time-entry collector. pace is the minimum spacing
// between window requests; assignees is the comma-separated user id filter
// ("" fetches all).
func NewCollector(api API, teamID, assignees string, windowDays int, pace time.Duration, logger zerolog.Logger) *Collector {
	if pace <= 0 {
		pace = 500 * time.Millisecond
	}
	return &Collector{
		api:        api,
		teamID:     teamID,
		assignees:  assignees,
		windowDays: windowDays,
		limiter:    rate.NewLimiter(rate.Every(pace), 1),
		logger:     logger,
	}
}

// Collect fetches all time entries in [start, end]. A window that still
// fails after the client's retries is logged and skipped; the remaining
// windows are still collected and the report counts the hole. The returned
// error is non-nil only for whole-run failures (context cancellation,
// circuit open on every window).
func (c *Collector) Collect(ctx context.Context, start, end time.Time) ([]map[string]any, WindowReport, error) {
	windows := SplitWindows(start, end, c.windowDays)
	report := WindowReport{Windows: len(windows)}

	var entries []map[string]any
	for i, w := range windows {
		if err := c.limiter.Wait(ctx); err != nil {
			return entries, report, fmt.Errorf("collect time entries: %w", err)
		}

		batch, err := c.fetchWindow(ctx, w)
		if err != nil {
			if ctx.Err() != nil {
				return entries, report, fmt.Errorf("collect time entries: %w", ctx.Err())
			}
			report.Failed++
			metrics.WindowsTotal.WithLabelValues("failed").Inc()
			c.logger.Error().
				Err(err).
				Int("window", i+1).
				Int("windows", len(windows)).
				Time("start", w.Start).
				Time("end", w.End).
				Msg("Window failed, skipping")
			continue
		}

		metrics.WindowsTotal.WithLabelValues("fetched").Inc()
		entries = append(entries, batch...)
		c.logger.Debug().
			Int("window", i+1).
			Int("windows", len(windows)).
			Int("records", len(batch)).
			Msg("Window fetched")
	}

	report.Records = len(entries)
	return entries, report, nil
}

// fetchWindow fetches one sub-window of time entries.
func (c *Collector) fetchWindow(ctx context.Context, w Window) ([]map[string]any, error) {
	params := url.Values{
		"start_date": {strconv.FormatInt(w.Start.UnixMilli(), 10)},
		"end_date":   {strconv.FormatInt(w.End.UnixMilli(), 10)},
	}
	if c.assignees != "" {
		params.Set("assignee", c.assignees)
	}

	body, err := c.api.Get(ctx, "/team/"+c.teamID+"/time_entries", params)
	if err != nil {
		return nil, err
	}

	raw, _ := body["data"].([]any)
	entries := make([]map[string]any, 0, len(raw))
	for _, item := range raw {
		if m, ok := item.(map[string]any); ok {
			entries = append(entries, m)
		}
	}
	return entries, nil
}
