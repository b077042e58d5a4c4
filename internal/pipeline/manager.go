// Tracksync - ClickUp Time Tracking Warehouse Pipeline
// Copyright 2026 Nordlum Analytics
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nordlum/tracksync

// Package pipeline orchestrates sync runs: collect from the API, transform
// and deduplicate, snapshot to CSV, stage, and reconcile into the
// warehouse. Each sync kind runs at most once at a time; concurrent
// triggers of the same kind are rejected with ErrAlreadyRunning.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/nordlum/tracksync/internal/clickup"
	"github.com/nordlum/tracksync/internal/metrics"
	"github.com/nordlum/tracksync/internal/models"
	"github.com/nordlum/tracksync/internal/transform"
)

// ErrAlreadyRunning is returned when a sync kind is triggered while a run
// of the same kind is still in flight.
var ErrAlreadyRunning = errors.New("sync already running")

// Sync kinds.
const (
	KindRefresh      = "refresh"
	KindFullReindex  = "full_reindex"
	KindLists        = "lists"
	KindTasks        = "tasks"
	KindAccounts     = "accounts"
	KindApplications = "applications"
)

// EntrySource collects raw time entries over a date range.
type EntrySource interface {
	Collect(ctx context.Context, start, end time.Time) ([]map[string]any, clickup.WindowReport, error)
}

// HierarchySource walks the workspace hierarchy and roster.
type HierarchySource interface {
	Lists(ctx context.Context) ([]models.HierarchyRow, error)
	Tasks(ctx context.Context, listIDs []string) ([]map[string]any, error)
	TeamMembers(ctx context.Context) ([]map[string]any, error)
	ApplicationTasks(ctx context.Context, listID string) ([]map[string]any, error)
}

// Warehouse is the storage surface the pipeline writes to.
type Warehouse interface {
	ReplaceStaging(ctx context.Context, rows []models.TimeEntryRow) error
	MergeWindowed(ctx context.Context, cutoff time.Time) (int64, error)
	MergeFull(ctx context.Context) (int64, error)
	MergeUpsert(ctx context.Context) (int64, error)
	ReplaceLists(ctx context.Context, rows []models.HierarchyRow) error
	ReplaceTasks(ctx context.Context, rows []models.TaskRow) error
	ReplaceMembers(ctx context.Context, rows []models.MemberRow) error
	ReplaceApplications(ctx context.Context, rows []models.ApplicationRow) error
}

// BackupWriter snapshots collected rows before the warehouse is touched.
type BackupWriter interface {
	WriteTimeEntries(rows []models.TimeEntryRow, now time.Time) (string, error)
}

// Result summarizes one completed sync run.
type Result struct {
	Kind          string    `json:"kind"`
	RunID         string    `json:"run_id"`
	StartedAt     time.Time `json:"started_at"`
	Duration      string    `json:"duration"`
	Records       int       `json:"records"`
	Windows       int       `json:"windows,omitempty"`
	WindowsFailed int       `json:"windows_failed,omitempty"`
	RowsAffected  int64     `json:"rows_affected"`
	BackupPath    string    `json:"backup_path,omitempty"`
}

// Options holds the pipeline knobs not owned by a collaborator.
type Options struct {
	RefreshDays       int
	StartYear         int
	ApplicationListID string
	ApplicationFields []string
	Location          *time.Location
	BackupEnabled     bool
}

// Manager coordinates sync runs over injected collaborators.
type Manager struct {
	entries   EntrySource
	hierarchy HierarchySource
	warehouse Warehouse
	backup    BackupWriter
	opts      Options
	logger    zerolog.Logger

	// now is injectable for tests.
	now func() time.Time

	mu      sync.Mutex
	running map[string]bool
}

// NewManager creates a pipeline manager. backup may be nil when backups
// are disabled.
func NewManager(entries EntrySource, hierarchy HierarchySource, wh Warehouse, backup BackupWriter, opts Options, logger zerolog.Logger) *Manager {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	return &Manager{
		entries:   entries,
		hierarchy: hierarchy,
		warehouse: wh,
		backup:    backup,
		opts:      opts,
		logger:    logger,
		now:       time.Now,
		running:   make(map[string]bool),
	}
}

// tryBegin marks kind as running, or fails if it already is.
func (m *Manager) tryBegin(kind string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running[kind] {
		return fmt.Errorf("%w: %s", ErrAlreadyRunning, kind)
	}
	m.running[kind] = true
	return nil
}

// end clears the running mark for kind.
func (m *Manager) end(kind string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.running, kind)
}

// Running reports the sync kinds currently in flight.
func (m *Manager) Running() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	kinds := make([]string, 0, len(m.running))
	for k := range m.running {
		kinds = append(kinds, k)
	}
	return kinds
}

// run wraps one sync invocation with the per-kind guard, a run-scoped
// logger, and run metrics.
func (m *Manager) run(kind string, fn func(logger zerolog.Logger, res *Result) error) (Result, error) {
	if err := m.tryBegin(kind); err != nil {
		return Result{Kind: kind}, err
	}
	defer m.end(kind)

	started := m.now()
	res := Result{
		Kind:      kind,
		RunID:     uuid.NewString(),
		StartedAt: started,
	}
	runLogger := m.logger.With().
		Str("kind", kind).
		Str("run_id", res.RunID).
		Logger()

	runLogger.Info().Msg("Sync run started")
	err := fn(runLogger, &res)
	elapsed := m.now().Sub(started)
	res.Duration = elapsed.String()

	metrics.SyncRunDuration.WithLabelValues(kind).Observe(elapsed.Seconds())
	if err != nil {
		metrics.SyncRunsTotal.WithLabelValues(kind, "error").Inc()
		runLogger.Error().Err(err).Dur("elapsed", elapsed).Msg("Sync run failed")
		return res, err
	}

	metrics.SyncRunsTotal.WithLabelValues(kind, "success").Inc()
	runLogger.Info().
		Dur("elapsed", elapsed).
		Int("records", res.Records).
		Int64("rows_affected", res.RowsAffected).
		Msg("Sync run complete")
	return res, nil
}

// Refresh runs the windowed refresh: collect the last days of time
// entries and reconcile them into the fact table, deleting upstream
// deletions only inside the window. days <= 0 uses the configured default.
func (m *Manager) Refresh(ctx context.Context, days int) (Result, error) {
	if days <= 0 {
		days = m.opts.RefreshDays
	}

	return m.run(KindRefresh, func(logger zerolog.Logger, res *Result) error {
		now := m.now().In(m.opts.Location)
		year, month, day := now.Date()
		cutoff := time.Date(year, month, day, 0, 0, 0, 0, m.opts.Location).AddDate(0, 0, -days)

		if err := m.syncEntries(ctx, logger, res, cutoff, now); err != nil {
			return err
		}

		// A failed window leaves a hole in coverage: rows there are absent
		// from staging without being deleted upstream, so the delete arm
		// must not run. Updates and inserts still land.
		var affected int64
		var err error
		if res.WindowsFailed > 0 {
			logger.Warn().
				Int("windows_failed", res.WindowsFailed).
				Msg("Coverage holes, merging without delete reconciliation")
			affected, err = m.warehouse.MergeUpsert(ctx)
		} else {
			affected, err = m.warehouse.MergeWindowed(ctx, cutoff)
		}
		if err != nil {
			return err
		}
		res.RowsAffected = affected
		return nil
	})
}

// FullReindex rebuilds the fact table from the configured start year to
// now. Fact rows absent upstream are deleted regardless of age.
func (m *Manager) FullReindex(ctx context.Context) (Result, error) {
	return m.run(KindFullReindex, func(logger zerolog.Logger, res *Result) error {
		start := time.Date(m.opts.StartYear, time.January, 1, 0, 0, 0, 0, m.opts.Location)
		now := m.now().In(m.opts.Location)

		if err := m.syncEntries(ctx, logger, res, start, now); err != nil {
			return err
		}

		// Same hole rule as the refresh: delete-by-absence is only sound
		// when every window was actually fetched.
		var affected int64
		var err error
		if res.WindowsFailed > 0 {
			logger.Warn().
				Int("windows_failed", res.WindowsFailed).
				Msg("Coverage holes, merging without delete reconciliation")
			affected, err = m.warehouse.MergeUpsert(ctx)
		} else {
			affected, err = m.warehouse.MergeFull(ctx)
		}
		if err != nil {
			return err
		}
		res.RowsAffected = affected
		return nil
	})
}

// syncEntries is the shared collect-transform-backup-stage path of both
// fact policies.
func (m *Manager) syncEntries(ctx context.Context, logger zerolog.Logger, res *Result, start, end time.Time) error {
	raw, report, err := m.entries.Collect(ctx, start, end)
	if err != nil {
		return err
	}
	res.Windows = report.Windows
	res.WindowsFailed = report.Failed
	metrics.RecordsFetched.WithLabelValues("time_entries").Add(float64(report.Records))

	rows := make([]models.TimeEntryRow, 0, len(raw))
	for _, entry := range raw {
		rows = append(rows, transform.TimeEntry(entry, m.opts.Location))
	}
	rows = transform.Dedup(rows)
	res.Records = len(rows)

	if m.opts.BackupEnabled && m.backup != nil {
		path, err := m.backup.WriteTimeEntries(rows, m.now())
		if err != nil {
			// Snapshot failures are logged, not fatal; the warehouse
			// load still proceeds.
			logger.Error().Err(err).Msg("Backup snapshot failed")
		} else {
			res.BackupPath = path
			logger.Debug().Str("path", path).Msg("Backup snapshot written")
		}
	}

	return m.warehouse.ReplaceStaging(ctx, rows)
}

// SyncLists refreshes the list-hierarchy dimension.
func (m *Manager) SyncLists(ctx context.Context) (Result, error) {
	return m.run(KindLists, func(logger zerolog.Logger, res *Result) error {
		rows, err := m.hierarchy.Lists(ctx)
		if err != nil {
			return err
		}
		res.Records = len(rows)
		metrics.RecordsFetched.WithLabelValues("lists").Add(float64(len(rows)))

		if err := m.warehouse.ReplaceLists(ctx, rows); err != nil {
			return err
		}
		res.RowsAffected = int64(len(rows))
		return nil
	})
}

// SyncTasks refreshes the task dimension across every list in the
// hierarchy, deduplicated by last update.
func (m *Manager) SyncTasks(ctx context.Context) (Result, error) {
	return m.run(KindTasks, func(logger zerolog.Logger, res *Result) error {
		lists, err := m.hierarchy.Lists(ctx)
		if err != nil {
			return err
		}
		listIDs := make([]string, 0, len(lists))
		for _, l := range lists {
			listIDs = append(listIDs, l.ListID)
		}

		raw, err := m.hierarchy.Tasks(ctx, listIDs)
		if err != nil {
			return err
		}
		metrics.RecordsFetched.WithLabelValues("tasks").Add(float64(len(raw)))

		rows := make([]models.TaskRow, 0, len(raw))
		for _, task := range raw {
			rows = append(rows, transform.Task(task))
		}
		rows = transform.Dedup(rows)
		res.Records = len(rows)

		if err := m.warehouse.ReplaceTasks(ctx, rows); err != nil {
			return err
		}
		res.RowsAffected = int64(len(rows))
		return nil
	})
}

// SyncAccounts refreshes the workspace roster dimension.
func (m *Manager) SyncAccounts(ctx context.Context) (Result, error) {
	return m.run(KindAccounts, func(logger zerolog.Logger, res *Result) error {
		raw, err := m.hierarchy.TeamMembers(ctx)
		if err != nil {
			return err
		}
		metrics.RecordsFetched.WithLabelValues("accounts").Add(float64(len(raw)))

		rows := make([]models.MemberRow, 0, len(raw))
		for _, member := range raw {
			rows = append(rows, transform.Member(member))
		}
		res.Records = len(rows)

		if err := m.warehouse.ReplaceMembers(ctx, rows); err != nil {
			return err
		}
		res.RowsAffected = int64(len(rows))
		return nil
	})
}

// SyncApplications refreshes the application register dimension from the
// configured register list.
func (m *Manager) SyncApplications(ctx context.Context) (Result, error) {
	return m.run(KindApplications, func(logger zerolog.Logger, res *Result) error {
		if m.opts.ApplicationListID == "" {
			return errors.New("application register list not configured")
		}

		raw, err := m.hierarchy.ApplicationTasks(ctx, m.opts.ApplicationListID)
		if err != nil {
			return err
		}
		metrics.RecordsFetched.WithLabelValues("applications").Add(float64(len(raw)))

		rows := make([]models.ApplicationRow, 0, len(raw))
		for _, task := range raw {
			rows = append(rows, transform.Application(task, m.opts.ApplicationFields))
		}
		res.Records = len(rows)

		if err := m.warehouse.ReplaceApplications(ctx, rows); err != nil {
			return err
		}
		res.RowsAffected = int64(len(rows))
		return nil
	})
}
