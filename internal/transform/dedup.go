// Tracksync - ClickUp Time Tracking Warehouse Pipeline
// Copyright 2026 Nordlum Analytics
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nordlum/tracksync

package transform

import (
	"sort"
	"time"
)

// Revisioned is a row with a natural key and an optional last-modified
// instant. TimeEntryRow and TaskRow satisfy it.
type Revisioned interface {
	Key() string
	RevisedAt() *time.Time
}

// Dedup keeps one row per key: the batch is stably sorted by revision
// ascending with nil revisions last, then the last row per key wins. Rows
// with equal or nil revisions resolve by input order, which is stable but
// otherwise unspecified.
//
// When no row in the batch carries a revision at all, the batch is returned
// unchanged, duplicates included; there is nothing to rank by.
func Dedup[T Revisioned](rows []T) []T {
	anyRevision := false
	for _, r := range rows {
		if r.RevisedAt() != nil {
			anyRevision = true
			break
		}
	}
	if !anyRevision {
		return rows
	}

	sorted := make([]T, len(rows))
	copy(sorted, rows)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i].RevisedAt(), sorted[j].RevisedAt()
		switch {
		case a == nil:
			return false // nils sort last
		case b == nil:
			return true
		default:
			return a.Before(*b)
		}
	})

	last := make(map[string]int, len(sorted))
	for i, r := range sorted {
		last[r.Key()] = i
	}

	out := make([]T, 0, len(last))
	for i, r := range sorted {
		if last[r.Key()] == i {
			out = append(out, r)
		}
	}
	return out
}
