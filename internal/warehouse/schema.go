// Tracksync - ClickUp Time Tracking Warehouse Pipeline
// Copyright 2026 Nordlum Analytics
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nordlum/tracksync

package warehouse

import (
	"context"
	"fmt"
)

// timeEntryColumns is the shared column layout of the staging and fact
// tables. The fact table appends loaded_at on top of these.
const timeEntryColumns = `
	id                     VARCHAR NOT NULL,
	start_utc              TIMESTAMP,
	end_utc                TIMESTAMP,
	duration_ms            BIGINT,
	duration_hours         DOUBLE,
	billable               BOOLEAN,
	description            VARCHAR,
	source                 VARCHAR,
	at_utc                 TIMESTAMP,
	is_locked              BOOLEAN,
	approval_id            VARCHAR,
	task_url               VARCHAR,
	task_id                VARCHAR,
	task_name              VARCHAR,
	task_custom_type       VARCHAR,
	task_custom_id         VARCHAR,
	task_status            VARCHAR,
	task_status_color      VARCHAR,
	task_status_type       VARCHAR,
	task_status_orderindex BIGINT,
	user_id                VARCHAR,
	user_username          VARCHAR,
	user_email             VARCHAR,
	user_email_sha256      VARCHAR,
	user_color             VARCHAR,
	user_initials          VARCHAR,
	user_profile_picture   VARCHAR,
	list_id                VARCHAR,
	folder_id              VARCHAR,
	space_id               VARCHAR,
	local_date             DATE`

// ensureSchema creates the dataset and every table if they don't exist.
// Idempotent; runs on every startup.
func (db *DB) ensureSchema(ctx context.Context) error {
	stmts := []string{
		fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", db.cfg.Dataset),

		fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)",
			db.qualified(db.cfg.StagingTable), timeEntryColumns),

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (%s,
	loaded_at              TIMESTAMP NOT NULL DEFAULT current_timestamp,
	PRIMARY KEY (id))`,
			db.qualified(db.cfg.FactTable), timeEntryColumns),

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	space_id    VARCHAR NOT NULL,
	space_name  VARCHAR,
	folder_id   VARCHAR NOT NULL,
	folder_name VARCHAR,
	list_id     VARCHAR NOT NULL,
	list_name   VARCHAR,
	loaded_at   TIMESTAMP NOT NULL DEFAULT current_timestamp)`,
			db.qualified(db.cfg.ListsTable)),

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	id           VARCHAR NOT NULL,
	name         VARCHAR,
	status       VARCHAR,
	status_color VARCHAR,
	status_type  VARCHAR,
	list_id      VARCHAR,
	folder_id    VARCHAR,
	space_id     VARCHAR,
	archived     BOOLEAN,
	created_utc  TIMESTAMP,
	updated_utc  TIMESTAMP,
	url          VARCHAR,
	loaded_at    TIMESTAMP NOT NULL DEFAULT current_timestamp)`,
			db.qualified(db.cfg.TasksTable)),

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	user_id         VARCHAR NOT NULL,
	username        VARCHAR,
	email           VARCHAR,
	email_sha256    VARCHAR,
	color           VARCHAR,
	initials        VARCHAR,
	profile_picture VARCHAR,
	role            BIGINT,
	invited         BOOLEAN,
	loaded_at       TIMESTAMP NOT NULL DEFAULT current_timestamp)`,
			db.qualified(db.cfg.MembersTable)),

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	id            VARCHAR NOT NULL,
	name          VARCHAR,
	status        VARCHAR,
	list_id       VARCHAR,
	updated_utc   TIMESTAMP,
	custom_fields VARCHAR,
	loaded_at     TIMESTAMP NOT NULL DEFAULT current_timestamp)`,
			db.qualified(db.cfg.ApplicationsTable)),
	}

	for _, stmt := range stmts {
		if _, err := db.conn.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("schema bootstrap: %w", err)
		}
	}
	return nil
}
