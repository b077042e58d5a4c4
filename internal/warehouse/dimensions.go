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

// replaceDimension truncates table and inserts rows inside one transaction.
// Dimensions are small full snapshots, so truncate-and-replace keeps them
// trivially consistent with upstream.
func (db *DB) replaceDimension(ctx context.Context, kind, table string, columns []string, rows [][]any) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("replace %s: %w", kind, err)
	}
	defer func() { _ = tx.Rollback() }()

	qualified := db.qualified(table)
	if _, err := tx.ExecContext(ctx, "DELETE FROM "+qualified); err != nil {
		return fmt.Errorf("clear %s: %w", kind, err)
	}

	insert := fmt.Sprintf("INSERT INTO %s (%s) VALUES %s",
		qualified, strings.Join(columns, ", "), placeholders(len(columns)))
	stmt, err := tx.PrepareContext(ctx, insert)
	if err != nil {
		return fmt.Errorf("prepare %s insert: %w", kind, err)
	}
	defer func() { _ = stmt.Close() }()

	for _, row := range rows {
		if _, err := stmt.ExecContext(ctx, row...); err != nil {
			return fmt.Errorf("insert %s row: %w", kind, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("replace %s: %w", kind, err)
	}

	metrics.RowsStaged.WithLabelValues(kind).Add(float64(len(rows)))
	return nil
}

// ReplaceLists replaces the list-hierarchy dimension.
func (db *DB) ReplaceLists(ctx context.Context, rows []models.HierarchyRow) error {
	values := make([][]any, 0, len(rows))
	for _, r := range rows {
		values = append(values, []any{
			r.SpaceID, r.SpaceName, r.FolderID, r.FolderName, r.ListID, r.ListName,
		})
	}
	return db.replaceDimension(ctx, "lists", db.cfg.ListsTable,
		[]string{"space_id", "space_name", "folder_id", "folder_name", "list_id", "list_name"},
		values)
}

// ReplaceTasks replaces the task dimension.
func (db *DB) ReplaceTasks(ctx context.Context, rows []models.TaskRow) error {
	values := make([][]any, 0, len(rows))
	for _, r := range rows {
		values = append(values, []any{
			r.ID, r.Name, r.Status, r.StatusColor, r.StatusType,
			r.ListID, r.FolderID, r.SpaceID, r.Archived,
			r.CreatedUTC, r.UpdatedUTC, r.URL,
		})
	}
	return db.replaceDimension(ctx, "tasks", db.cfg.TasksTable,
		[]string{
			"id", "name", "status", "status_color", "status_type",
			"list_id", "folder_id", "space_id", "archived",
			"created_utc", "updated_utc", "url",
		},
		values)
}

// ReplaceMembers replaces the workspace roster dimension.
func (db *DB) ReplaceMembers(ctx context.Context, rows []models.MemberRow) error {
	values := make([][]any, 0, len(rows))
	for _, r := range rows {
		values = append(values, []any{
			r.UserID, r.Username, r.Email, r.EmailSHA256,
			r.Color, r.Initials, r.ProfilePicture, r.Role, r.Invited,
		})
	}
	return db.replaceDimension(ctx, "members", db.cfg.MembersTable,
		[]string{
			"user_id", "username", "email", "email_sha256",
			"color", "initials", "profile_picture", "role", "invited",
		},
		values)
}

// ReplaceApplications replaces the application register dimension.
func (db *DB) ReplaceApplications(ctx context.Context, rows []models.ApplicationRow) error {
	values := make([][]any, 0, len(rows))
	for _, r := range rows {
		values = append(values, []any{
			r.ID, r.Name, r.Status, r.ListID, r.UpdatedUTC, r.CustomFields,
		})
	}
	return db.replaceDimension(ctx, "applications", db.cfg.ApplicationsTable,
		[]string{"id", "name", "status", "list_id", "updated_utc", "custom_fields"},
		values)
}
