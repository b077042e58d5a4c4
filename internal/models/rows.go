// Tracksync - ClickUp Time Tracking Warehouse Pipeline
// Copyright 2026 Nordlum Analytics
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nordlum/tracksync

// Package models defines the normalized row types landed in the warehouse.
//
// Every row type maps one external record to exactly one typed row. Absent or
// malformed source values degrade to documented defaults (empty string, false,
// nil) during transformation; nothing here enforces presence.
package models

import "time"

// TimeEntryRow is the normalized form of one ClickUp time entry.
//
// ID is the natural key used for staging/fact reconciliation. LocalDate is
// the calendar date of StartUTC rendered in the configured reporting
// timezone ("YYYY-MM-DD"); it is the partition key for windowed merges and
// is nil exactly when StartUTC is nil.
type TimeEntryRow struct {
	ID            string
	StartUTC      *time.Time
	EndUTC        *time.Time
	DurationMS    *int64
	DurationHours float64
	Billable      bool
	Description   string
	Source        string
	AtUTC         *time.Time
	IsLocked      bool
	ApprovalID    string
	TaskURL       string

	TaskID             string
	TaskName           string
	TaskCustomType     string
	TaskCustomID       string
	TaskStatus         string
	TaskStatusColor    string
	TaskStatusType     string
	TaskStatusOrderIdx *int64

	UserID             string
	UserUsername       string
	UserEmail          string
	UserEmailSHA256    *string
	UserColor          string
	UserInitials       string
	UserProfilePicture string

	ListID   string
	FolderID string
	SpaceID  string

	LocalDate *string
}

// Key returns the natural key for deduplication.
func (r TimeEntryRow) Key() string { return r.ID }

// RevisedAt returns the entry's last-modified instant, nil when unknown.
func (r TimeEntryRow) RevisedAt() *time.Time { return r.AtUTC }

// HierarchyRow is one flattened space/folder/list relation.
//
// FolderID and FolderName are empty strings, not nulls, for lists that sit
// directly under a space. The empty string is a deliberate sentinel meaning
// "no parent folder", distinct from "unknown".
type HierarchyRow struct {
	SpaceID    string
	SpaceName  string
	FolderID   string
	FolderName string
	ListID     string
	ListName   string
}

// TaskRow is the normalized form of one ClickUp task.
type TaskRow struct {
	ID          string
	Name        string
	Status      string
	StatusColor string
	StatusType  string
	ListID      string
	FolderID    string
	SpaceID     string
	Archived    bool
	CreatedUTC  *time.Time
	UpdatedUTC  *time.Time
	URL         string
}

// Key returns the natural key for deduplication.
func (r TaskRow) Key() string { return r.ID }

// RevisedAt returns the task's last-updated instant, nil when unknown.
func (r TaskRow) RevisedAt() *time.Time { return r.UpdatedUTC }

// MemberRow is one workspace membership (user-to-team relationship).
type MemberRow struct {
	UserID         string
	Username       string
	Email          string
	EmailSHA256    *string
	Color          string
	Initials       string
	ProfilePicture string
	Role           *int64
	Invited        bool
}

// ApplicationRow is one entry of the application register list: a task in
// the configured register list with the configured custom fields captured
// as a JSON document.
type ApplicationRow struct {
	ID           string
	Name         string
	Status       string
	ListID       string
	UpdatedUTC   *time.Time
	CustomFields string // JSON object: field id -> value
}
