// Tracksync - ClickUp Time Tracking Warehouse Pipeline
// Copyright 2026 Nordlum Analytics
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nordlum/tracksync

// Package backup writes CSV snapshots of collected time entries before any
// warehouse interaction, so a bad merge never loses the raw pull.
package backup

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/nordlum/tracksync/internal/metrics"
	"github.com/nordlum/tracksync/internal/models"
)

// Writer writes timestamped CSV snapshots into a directory.
type Writer struct {
	dir string
}

// NewWriter creates a snapshot writer rooted at dir.
func NewWriter(dir string) *Writer {
	return &Writer{dir: dir}
}

// header mirrors the staging column order minus nothing; one CSV column per
// row field, nils rendered as empty cells.
var header = []string{
	"id", "start_utc", "end_utc", "duration_ms", "duration_hours",
	"billable", "description", "source", "at_utc", "is_locked",
	"approval_id", "task_url",
	"task_id", "task_name", "task_custom_type", "task_custom_id",
	"task_status", "task_status_color", "task_status_type", "task_status_orderindex",
	"user_id", "user_username", "user_email", "user_email_sha256",
	"user_color", "user_initials", "user_profile_picture",
	"list_id", "folder_id", "space_id", "local_date",
}

// WriteTimeEntries writes rows to time_entries_<timestamp>.csv and returns
// the snapshot path.
func (w *Writer) WriteTimeEntries(rows []models.TimeEntryRow, now time.Time) (string, error) {
	if err := os.MkdirAll(w.dir, 0o750); err != nil {
		return "", fmt.Errorf("create backup dir: %w", err)
	}

	path := filepath.Join(w.dir, "time_entries_"+now.UTC().Format("20060102T150405Z")+".csv")
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create backup file: %w", err)
	}
	defer func() { _ = f.Close() }()

	cw := csv.NewWriter(f)
	if err := cw.Write(header); err != nil {
		return "", fmt.Errorf("write backup header: %w", err)
	}
	for _, r := range rows {
		if err := cw.Write(record(r)); err != nil {
			return "", fmt.Errorf("write backup row %s: %w", r.ID, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return "", fmt.Errorf("flush backup: %w", err)
	}

	metrics.BackupFilesWritten.Inc()
	return path, nil
}

func record(r models.TimeEntryRow) []string {
	return []string{
		r.ID,
		timeCell(r.StartUTC),
		timeCell(r.EndUTC),
		int64Cell(r.DurationMS),
		strconv.FormatFloat(r.DurationHours, 'f', -1, 64),
		strconv.FormatBool(r.Billable),
		r.Description,
		r.Source,
		timeCell(r.AtUTC),
		strconv.FormatBool(r.IsLocked),
		r.ApprovalID,
		r.TaskURL,
		r.TaskID,
		r.TaskName,
		r.TaskCustomType,
		r.TaskCustomID,
		r.TaskStatus,
		r.TaskStatusColor,
		r.TaskStatusType,
		int64Cell(r.TaskStatusOrderIdx),
		r.UserID,
		r.UserUsername,
		r.UserEmail,
		stringCell(r.UserEmailSHA256),
		r.UserColor,
		r.UserInitials,
		r.UserProfilePicture,
		r.ListID,
		r.FolderID,
		r.SpaceID,
		stringCell(r.LocalDate),
	}
}

func timeCell(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func int64Cell(n *int64) string {
	if n == nil {
		return ""
	}
	return strconv.FormatInt(*n, 10)
}

func stringCell(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
