// Tracksync - ClickUp Time Tracking Warehouse Pipeline
// Copyright 2026 Nordlum Analytics
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nordlum/tracksync

package warehouse

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/nordlum/tracksync/internal/metrics"
)

// mergeStatement builds the stage-to-fact MERGE. deleteClause is the
// policy's NOT MATCHED BY SOURCE arm; empty means no delete arm at all
// (upsert policy).
//
// The whole reconciliation is one statement, so readers never observe a
// half-applied sync: matched rows update, new rows insert, and stale rows
// delete atomically.
func (db *DB) mergeStatement(deleteClause string) string {
	var sets []string
	var inserts []string
	for _, col := range timeEntryColumnNames {
		if col != "id" {
			sets = append(sets, fmt.Sprintf("%s = s.%s", col, col))
		}
		inserts = append(inserts, "s."+col)
	}
	sets = append(sets, "loaded_at = current_timestamp")

	stmt := fmt.Sprintf(`MERGE INTO %s AS t
USING %s AS s ON t.id = s.id
WHEN MATCHED THEN UPDATE SET %s
WHEN NOT MATCHED THEN INSERT (%s, loaded_at) VALUES (%s, current_timestamp)`,
		db.qualified(db.cfg.FactTable),
		db.qualified(db.cfg.StagingTable),
		strings.Join(sets, ", "),
		strings.Join(timeEntryColumnNames, ", "),
		strings.Join(inserts, ", "))
	if deleteClause != "" {
		stmt += "\n" + deleteClause
	}
	return stmt
}

// MergeWindowed reconciles staging into the fact table under the
// windowed-refresh policy: rows inside the refresh window that vanished
// upstream are deleted, rows older than cutoff are never touched by the
// delete arm. cutoff is the first local date considered in scope.
func (db *DB) MergeWindowed(ctx context.Context, cutoff time.Time) (int64, error) {
	clause := fmt.Sprintf("WHEN NOT MATCHED BY SOURCE AND t.local_date >= DATE '%s' THEN DELETE",
		cutoff.Format("2006-01-02"))
	return db.merge(ctx, "windowed", clause)
}

// MergeFull reconciles staging into the fact table under the full-reindex
// policy: the staging contents become the complete source of truth and any
// fact row absent from staging is deleted.
func (db *DB) MergeFull(ctx context.Context) (int64, error) {
	return db.merge(ctx, "full", "WHEN NOT MATCHED BY SOURCE THEN DELETE")
}

// MergeUpsert reconciles staging into the fact table without any delete
// arm. Used when collection had coverage holes: a row absent from staging
// may sit in a failed window, so absence cannot be read as upstream
// deletion.
func (db *DB) MergeUpsert(ctx context.Context) (int64, error) {
	return db.merge(ctx, "upsert", "")
}

func (db *DB) merge(ctx context.Context, policy, deleteClause string) (int64, error) {
	res, err := db.conn.ExecContext(ctx, db.mergeStatement(deleteClause))
	if err != nil {
		return 0, fmt.Errorf("merge (%s): %w", policy, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		affected = 0
	}
	metrics.MergeRowsAffected.WithLabelValues(policy).Add(float64(affected))
	return affected, nil
}
