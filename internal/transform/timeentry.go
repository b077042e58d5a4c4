// Tracksync - ClickUp Time Tracking Warehouse Pipeline
// Copyright 2026 Nordlum Analytics
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nordlum/tracksync

package transform

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/nordlum/tracksync/internal/models"
)

// TimeEntry converts one raw API time entry into a normalized row.
//
// The transform is total: a panic while digging through the raw object is
// recovered and yields a defaults row that keeps whatever id could be read,
// so one malformed entry never aborts a batch.
func TimeEntry(raw map[string]any, loc *time.Location) (row models.TimeEntryRow) {
	row.ID = asString(raw["id"])

	defer func() {
		if r := recover(); r != nil {
			row = models.TimeEntryRow{ID: asString(raw["id"])}
		}
	}()

	row.StartUTC = asMillis(raw["start"])
	row.EndUTC = asMillis(raw["end"])
	row.DurationMS = asInt64(raw["duration"])
	if row.DurationMS != nil {
		row.DurationHours = float64(*row.DurationMS) / 3_600_000
	}
	row.Billable = asBool(raw["billable"])
	row.Description = asString(raw["description"])
	row.Source = asString(raw["source"])
	row.AtUTC = asMillis(raw["at"])
	row.IsLocked = asBool(raw["is_locked"])
	row.ApprovalID = asString(raw["approval_id"])
	row.TaskURL = asString(raw["task_url"])

	if task, ok := raw["task"].(map[string]any); ok {
		row.TaskID = asString(task["id"])
		row.TaskName = asString(task["name"])
		row.TaskCustomType = asString(task["custom_type"])
		row.TaskCustomID = asString(task["custom_id"])
		if status, ok := task["status"].(map[string]any); ok {
			row.TaskStatus = asString(status["status"])
			row.TaskStatusColor = asString(status["color"])
			row.TaskStatusType = asString(status["type"])
			row.TaskStatusOrderIdx = asInt64(status["orderindex"])
		}
	}

	if user, ok := raw["user"].(map[string]any); ok {
		row.UserID = asString(user["id"])
		row.UserUsername = asString(user["username"])
		row.UserEmail = asString(user["email"])
		row.UserEmailSHA256 = EmailHash(row.UserEmail)
		row.UserColor = asString(user["color"])
		row.UserInitials = asString(user["initials"])
		row.UserProfilePicture = asString(user["profilePicture"])
	}

	if loc1, ok := raw["task_location"].(map[string]any); ok {
		row.ListID = asString(loc1["list_id"])
		row.FolderID = asString(loc1["folder_id"])
		row.SpaceID = asString(loc1["space_id"])
	}

	row.LocalDate = localDate(row.StartUTC, loc)
	return row
}

// localDate renders the calendar date of t in the reporting timezone as
// "YYYY-MM-DD". Nil in, nil out.
func localDate(t *time.Time, loc *time.Location) *string {
	if t == nil {
		return nil
	}
	if loc == nil {
		loc = time.UTC
	}
	s := t.In(loc).Format("2006-01-02")
	return &s
}

// EmailHash returns the lowercase hex SHA-256 of email, or nil when email
// is empty. The hash of "" is never emitted.
func EmailHash(email string) *string {
	if email == "" {
		return nil
	}
	sum := sha256.Sum256([]byte(email))
	s := hex.EncodeToString(sum[:])
	return &s
}
