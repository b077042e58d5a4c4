// Tracksync - ClickUp Time Tracking Warehouse Pipeline
// Copyright 2026 Nordlum Analytics
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nordlum/tracksync

package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/nordlum/tracksync/internal/clickup"
	"github.com/nordlum/tracksync/internal/models"
)

type fakeEntries struct {
	mu      sync.Mutex
	start   time.Time
	end     time.Time
	raw     []map[string]any
	report  clickup.WindowReport
	err     error
	release chan struct{} // when non-nil, Collect blocks until closed
}

func (f *fakeEntries) Collect(_ context.Context, start, end time.Time) ([]map[string]any, clickup.WindowReport, error) {
	f.mu.Lock()
	f.start, f.end = start, end
	f.mu.Unlock()
	if f.release != nil {
		<-f.release
	}
	return f.raw, f.report, f.err
}

type fakeHierarchy struct {
	lists    []models.HierarchyRow
	tasks    []map[string]any
	members  []map[string]any
	apps     []map[string]any
	taskErr  error
	gotLists []string
	gotApp   string
}

func (f *fakeHierarchy) Lists(context.Context) ([]models.HierarchyRow, error) {
	return f.lists, nil
}

func (f *fakeHierarchy) Tasks(_ context.Context, listIDs []string) ([]map[string]any, error) {
	f.gotLists = listIDs
	return f.tasks, f.taskErr
}

func (f *fakeHierarchy) TeamMembers(context.Context) ([]map[string]any, error) {
	return f.members, nil
}

func (f *fakeHierarchy) ApplicationTasks(_ context.Context, listID string) ([]map[string]any, error) {
	f.gotApp = listID
	return f.apps, nil
}

type fakeWarehouse struct {
	mu           sync.Mutex
	staged       []models.TimeEntryRow
	cutoff       time.Time
	mergedFull   bool
	mergedUpsert bool
	lists        []models.HierarchyRow
	tasks        []models.TaskRow
	members      []models.MemberRow
	applications []models.ApplicationRow
	stageErr     error
}

func (f *fakeWarehouse) ReplaceStaging(_ context.Context, rows []models.TimeEntryRow) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.staged = rows
	return f.stageErr
}

func (f *fakeWarehouse) MergeWindowed(_ context.Context, cutoff time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cutoff = cutoff
	return int64(len(f.staged)), nil
}

func (f *fakeWarehouse) MergeFull(context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.mergedFull = true
	return int64(len(f.staged)), nil
}

func (f *fakeWarehouse) MergeUpsert(context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.mergedUpsert = true
	return int64(len(f.staged)), nil
}

func (f *fakeWarehouse) ReplaceLists(_ context.Context, rows []models.HierarchyRow) error {
	f.lists = rows
	return nil
}

func (f *fakeWarehouse) ReplaceTasks(_ context.Context, rows []models.TaskRow) error {
	f.tasks = rows
	return nil
}

func (f *fakeWarehouse) ReplaceMembers(_ context.Context, rows []models.MemberRow) error {
	f.members = rows
	return nil
}

func (f *fakeWarehouse) ReplaceApplications(_ context.Context, rows []models.ApplicationRow) error {
	f.applications = rows
	return nil
}

type fakeBackup struct {
	rows []models.TimeEntryRow
	err  error
}

func (f *fakeBackup) WriteTimeEntries(rows []models.TimeEntryRow, _ time.Time) (string, error) {
	f.rows = rows
	return "/backups/time_entries_test.csv", f.err
}

func newTestManager(entries EntrySource, hierarchy HierarchySource, wh Warehouse, bw BackupWriter) *Manager {
	m := NewManager(entries, hierarchy, wh, bw, Options{
		RefreshDays:       60,
		StartYear:         2024,
		ApplicationListID: "reg1",
		ApplicationFields: []string{"field-1"},
		Location:          time.UTC,
		BackupEnabled:     bw != nil,
	}, zerolog.Nop())
	m.now = func() time.Time {
		return time.Date(2024, 8, 15, 12, 0, 0, 0, time.UTC)
	}
	return m
}

func TestRefresh(t *testing.T) {
	entries := &fakeEntries{
		raw: []map[string]any{
			{"id": "e1", "at": float64(100)},
			{"id": "e1", "at": float64(200)},
			{"id": "e2", "at": float64(50)},
		},
		report: clickup.WindowReport{Windows: 3, Records: 3},
	}
	wh := &fakeWarehouse{}
	bw := &fakeBackup{}
	m := newTestManager(entries, &fakeHierarchy{}, wh, bw)

	res, err := m.Refresh(context.Background(), 0)
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}

	// Default lookback: 60 days before local midnight of the frozen now.
	wantStart := time.Date(2024, 6, 16, 0, 0, 0, 0, time.UTC)
	if !entries.start.Equal(wantStart) {
		t.Errorf("collect start = %v, want %v", entries.start, wantStart)
	}
	if !wh.cutoff.Equal(wantStart) {
		t.Errorf("merge cutoff = %v, want the window start", wh.cutoff)
	}

	// Duplicates collapse before staging.
	if len(wh.staged) != 2 {
		t.Errorf("staged = %d rows, want 2 after dedup", len(wh.staged))
	}
	if len(bw.rows) != 2 {
		t.Errorf("backup = %d rows, want the deduped batch", len(bw.rows))
	}
	if res.Records != 2 || res.Windows != 3 || res.RowsAffected != 2 {
		t.Errorf("result = %+v", res)
	}
	if res.RunID == "" || res.BackupPath == "" {
		t.Errorf("result missing run metadata: %+v", res)
	}
}

func TestRefresh_ExplicitDays(t *testing.T) {
	entries := &fakeEntries{}
	wh := &fakeWarehouse{}
	m := newTestManager(entries, &fakeHierarchy{}, wh, nil)

	if _, err := m.Refresh(context.Background(), 10); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	wantStart := time.Date(2024, 8, 5, 0, 0, 0, 0, time.UTC)
	if !entries.start.Equal(wantStart) {
		t.Errorf("collect start = %v, want %v", entries.start, wantStart)
	}
}

func TestFullReindex(t *testing.T) {
	entries := &fakeEntries{
		raw:    []map[string]any{{"id": "e1"}},
		report: clickup.WindowReport{Windows: 8, Records: 1},
	}
	wh := &fakeWarehouse{}
	m := newTestManager(entries, &fakeHierarchy{}, wh, nil)

	res, err := m.FullReindex(context.Background())
	if err != nil {
		t.Fatalf("FullReindex: %v", err)
	}

	wantStart := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	if !entries.start.Equal(wantStart) {
		t.Errorf("collect start = %v, want January 1 of the start year", entries.start)
	}
	if !wh.mergedFull {
		t.Error("full reindex must use the full merge policy")
	}
	if res.Kind != KindFullReindex {
		t.Errorf("kind = %q", res.Kind)
	}
}

func TestRefresh_CoverageHolesSkipDeleteArm(t *testing.T) {
	entries := &fakeEntries{
		raw:    []map[string]any{{"id": "e1"}},
		report: clickup.WindowReport{Windows: 3, Failed: 1, Records: 1},
	}
	wh := &fakeWarehouse{}
	m := newTestManager(entries, &fakeHierarchy{}, wh, nil)

	res, err := m.Refresh(context.Background(), 0)
	if err != nil {
		t.Fatalf("Refresh: %v (a run with holes still succeeds)", err)
	}
	if !wh.mergedUpsert {
		t.Error("a run with failed windows must merge without the delete arm")
	}
	if !wh.cutoff.IsZero() {
		t.Error("windowed merge must not run when coverage has holes")
	}
	if res.WindowsFailed != 1 {
		t.Errorf("WindowsFailed = %d, holes must be reported", res.WindowsFailed)
	}
	if len(wh.staged) != 1 {
		t.Errorf("staged = %d, updates and inserts still land", len(wh.staged))
	}
}

func TestFullReindex_CoverageHolesSkipDeleteArm(t *testing.T) {
	entries := &fakeEntries{
		raw:    []map[string]any{{"id": "e1"}},
		report: clickup.WindowReport{Windows: 8, Failed: 2, Records: 1},
	}
	wh := &fakeWarehouse{}
	m := newTestManager(entries, &fakeHierarchy{}, wh, nil)

	if _, err := m.FullReindex(context.Background()); err != nil {
		t.Fatalf("FullReindex: %v", err)
	}
	if wh.mergedFull {
		t.Error("delete-by-absence must not run when coverage has holes")
	}
	if !wh.mergedUpsert {
		t.Error("a reindex with failed windows must merge without the delete arm")
	}
}

func TestRefresh_RejectsConcurrentSameKind(t *testing.T) {
	release := make(chan struct{})
	entries := &fakeEntries{release: release}
	wh := &fakeWarehouse{}
	m := newTestManager(entries, &fakeHierarchy{}, wh, nil)

	done := make(chan error, 1)
	go func() {
		_, err := m.Refresh(context.Background(), 5)
		done <- err
	}()

	// Wait for the first run to be registered.
	for i := 0; ; i++ {
		if len(m.Running()) > 0 {
			break
		}
		if i > 100 {
			t.Fatal("first run never started")
		}
		time.Sleep(time.Millisecond)
	}

	_, err := m.Refresh(context.Background(), 5)
	if !errors.Is(err, ErrAlreadyRunning) {
		t.Errorf("second refresh err = %v, want ErrAlreadyRunning", err)
	}

	// A different kind is not blocked.
	if _, err := m.SyncLists(context.Background()); err != nil {
		t.Errorf("SyncLists during refresh: %v", err)
	}

	close(release)
	if err := <-done; err != nil {
		t.Errorf("first refresh: %v", err)
	}
	if len(m.Running()) != 0 {
		t.Errorf("running = %v after completion", m.Running())
	}
}

func TestSyncTasks_WalksHierarchyLists(t *testing.T) {
	hier := &fakeHierarchy{
		lists: []models.HierarchyRow{
			{ListID: "l1"}, {ListID: "l2"},
		},
		tasks: []map[string]any{
			{"id": "t1", "date_updated": "100"},
			{"id": "t1", "date_updated": "900"},
		},
	}
	wh := &fakeWarehouse{}
	m := newTestManager(&fakeEntries{}, hier, wh, nil)

	res, err := m.SyncTasks(context.Background())
	if err != nil {
		t.Fatalf("SyncTasks: %v", err)
	}
	if len(hier.gotLists) != 2 {
		t.Errorf("walked %v, want both lists", hier.gotLists)
	}
	if len(wh.tasks) != 1 {
		t.Errorf("tasks = %d, want 1 after dedup by update instant", len(wh.tasks))
	}
	if res.Records != 1 {
		t.Errorf("records = %d", res.Records)
	}
}

func TestSyncAccounts(t *testing.T) {
	hier := &fakeHierarchy{
		members: []map[string]any{
			{"user": map[string]any{"id": float64(1), "username": "kari", "email": "kari@example.com"}},
		},
	}
	wh := &fakeWarehouse{}
	m := newTestManager(&fakeEntries{}, hier, wh, nil)

	if _, err := m.SyncAccounts(context.Background()); err != nil {
		t.Fatalf("SyncAccounts: %v", err)
	}
	if len(wh.members) != 1 || wh.members[0].Username != "kari" {
		t.Errorf("members = %+v", wh.members)
	}
	if wh.members[0].EmailSHA256 == nil {
		t.Error("member email hash missing")
	}
}

func TestSyncApplications(t *testing.T) {
	hier := &fakeHierarchy{
		apps: []map[string]any{
			{
				"id":   "a1",
				"name": "Vendor onboarding",
				"custom_fields": []any{
					map[string]any{"id": "field-1", "value": "acme"},
					map[string]any{"id": "field-2", "value": "dropped"},
				},
			},
		},
	}
	wh := &fakeWarehouse{}
	m := newTestManager(&fakeEntries{}, hier, wh, nil)

	if _, err := m.SyncApplications(context.Background()); err != nil {
		t.Fatalf("SyncApplications: %v", err)
	}
	if hier.gotApp != "reg1" {
		t.Errorf("fetched list %q, want the configured register list", hier.gotApp)
	}
	if len(wh.applications) != 1 {
		t.Fatalf("applications = %d", len(wh.applications))
	}
	if wh.applications[0].CustomFields != `{"field-1":"acme"}` {
		t.Errorf("custom fields = %s, want only the configured field", wh.applications[0].CustomFields)
	}
}

func TestSyncApplications_Unconfigured(t *testing.T) {
	m := NewManager(&fakeEntries{}, &fakeHierarchy{}, &fakeWarehouse{}, nil, Options{
		Location: time.UTC,
	}, zerolog.Nop())

	if _, err := m.SyncApplications(context.Background()); err == nil {
		t.Error("want error when the register list is not configured")
	}
}

func TestRefresh_BackupFailureIsNotFatal(t *testing.T) {
	entries := &fakeEntries{raw: []map[string]any{{"id": "e1"}}}
	wh := &fakeWarehouse{}
	bw := &fakeBackup{err: errors.New("disk full")}
	m := newTestManager(entries, &fakeHierarchy{}, wh, bw)

	res, err := m.Refresh(context.Background(), 5)
	if err != nil {
		t.Fatalf("Refresh: %v (backup failures must not abort the run)", err)
	}
	if len(wh.staged) != 1 {
		t.Errorf("staged = %d, warehouse load should still happen", len(wh.staged))
	}
	if res.BackupPath != "" {
		t.Errorf("BackupPath = %q, want empty on failed snapshot", res.BackupPath)
	}
}
