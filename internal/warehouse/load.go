// Tracksync - ClickUp Time Tracking Warehouse Pipeline
// Copyright 2026 Nordlum Analytics
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nordlum/tracksync

package warehouse

import (
	"context"
	"fmt"
	"strings"

	"github.com/nordlum/tracksync/internal/metrics"
	"github.com/nordlum/tracksync/internal/models"
)

// timeEntryColumnNames is the insert column order for staging and fact
// loads. Must match timeEntryColumns in schema.go.
var timeEntryColumnNames = []string{
	"id", "start_utc", "end_utc", "duration_ms", "duration_hours",
	"billable", "description", "source", "at_utc", "is_locked",
	"approval_id", "task_url",
	"task_id", "task_name", "task_custom_type", "task_custom_id",
	"task_status", "task_status_color", "task_status_type", "task_status_orderindex",
	"user_id", "user_username", "user_email", "user_email_sha256",
	"user_color", "user_initials", "user_profile_picture",
	"list_id", "folder_id", "space_id", "local_date",
}

// timeEntryValues flattens a row into the insert argument list.
func timeEntryValues(r models.TimeEntryRow) []any {
	return []any{
		r.ID, r.StartUTC, r.EndUTC, r.DurationMS, r.DurationHours,
		r.Billable, r.Description, r.Source, r.AtUTC, r.IsLocked,
		r.ApprovalID, r.TaskURL,
		r.TaskID, r.TaskName, r.TaskCustomType, r.TaskCustomID,
		r.TaskStatus, r.TaskStatusColor, r.TaskStatusType, r.TaskStatusOrderIdx,
		r.UserID, r.UserUsername, r.UserEmail, r.UserEmailSHA256,
		r.UserColor, r.UserInitials, r.UserProfilePicture,
		r.ListID, r.FolderID, r.SpaceID, r.LocalDate,
	}
}

// placeholders returns "(?, ?, ...)" with n markers.
func placeholders(n int) string {
	marks := make([]string, n)
	for i := range marks {
		marks[i] = "?"
	}
	return "(" + strings.Join(marks, ", ") + ")"
}

// ReplaceStaging atomically replaces the staging table contents with rows.
// Delete and insert share one transaction, so a failed load leaves the
// previous staging contents intact.
func (db *DB) ReplaceStaging(ctx context.Context, rows []models.TimeEntryRow) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("stage time entries: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	staging := db.qualified(db.cfg.StagingTable)
	if _, err := tx.ExecContext(ctx, "DELETE FROM "+staging); err != nil {
		return fmt.Errorf("clear staging: %w", err)
	}

	insert := fmt.Sprintf("INSERT INTO %s (%s) VALUES %s",
		staging,
		strings.Join(timeEntryColumnNames, ", "),
		placeholders(len(timeEntryColumnNames)))

	stmt, err := tx.PrepareContext(ctx, insert)
	if err != nil {
		return fmt.Errorf("prepare staging insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, r := range rows {
		if _, err := stmt.ExecContext(ctx, timeEntryValues(r)...); err != nil {
			return fmt.Errorf("stage entry %s: %w", r.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("stage time entries: %w", err)
	}

	metrics.RowsStaged.WithLabelValues("time_entries").Add(float64(len(rows)))
	return nil
}

// StagingCount returns the current staging row count.
func (db *DB) StagingCount(ctx context.Context) (int, error) {
	var n int
	err := db.conn.QueryRowContext(ctx,
		"SELECT count(*) FROM "+db.qualified(db.cfg.StagingTable)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count staging rows: %w", err)
	}
	return n, nil
}

// FactCount returns the current fact row count.
func (db *DB) FactCount(ctx context.Context) (int, error) {
	var n int
	err := db.conn.QueryRowContext(ctx,
		"SELECT count(*) FROM "+db.qualified(db.cfg.FactTable)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count fact rows: %w", err)
	}
	return n, nil
}
