// Tracksync - ClickUp Time Tracking Warehouse Pipeline
// Copyright 2026 Nordlum Analytics
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nordlum/tracksync

package transform

import (
	"github.com/goccy/go-json"

	"github.com/nordlum/tracksync/internal/models"
)

// Task converts one raw API task into a normalized row.
func Task(raw map[string]any) (row models.TaskRow) {
	row.ID = asString(raw["id"])

	defer func() {
		if r := recover(); r != nil {
			row = models.TaskRow{ID: asString(raw["id"])}
		}
	}()

	row.Name = asString(raw["name"])
	if status, ok := raw["status"].(map[string]any); ok {
		row.Status = asString(status["status"])
		row.StatusColor = asString(status["color"])
		row.StatusType = asString(status["type"])
	}
	if list, ok := raw["list"].(map[string]any); ok {
		row.ListID = asString(list["id"])
	}
	if folder, ok := raw["folder"].(map[string]any); ok {
		row.FolderID = asString(folder["id"])
	}
	if space, ok := raw["space"].(map[string]any); ok {
		row.SpaceID = asString(space["id"])
	}
	row.Archived = asBool(raw["archived"])
	row.CreatedUTC = asMillis(raw["date_created"])
	row.UpdatedUTC = asMillis(raw["date_updated"])
	row.URL = asString(raw["url"])
	return row
}

// Member converts one raw team member object into a normalized row. The
// roster endpoint nests the user under a "user" key.
func Member(raw map[string]any) (row models.MemberRow) {
	user, ok := raw["user"].(map[string]any)
	if !ok {
		user = raw
	}
	row.UserID = asString(user["id"])

	defer func() {
		if r := recover(); r != nil {
			row = models.MemberRow{UserID: asString(user["id"])}
		}
	}()

	row.Username = asString(user["username"])
	row.Email = asString(user["email"])
	row.EmailSHA256 = EmailHash(row.Email)
	row.Color = asString(user["color"])
	row.Initials = asString(user["initials"])
	row.ProfilePicture = asString(user["profilePicture"])
	row.Role = asInt64(user["role"])
	// invited_by is null for regular members; only a real inviter object
	// marks the membership as invited.
	if _, ok := user["invited_by"].(map[string]any); ok {
		row.Invited = true
	}
	return row
}

// Application converts one task of the application register list into a
// row, capturing the wanted custom fields as a JSON document keyed by field
// id. fieldIDs selects which custom fields survive; empty keeps them all.
func Application(raw map[string]any, fieldIDs []string) (row models.ApplicationRow) {
	row.ID = asString(raw["id"])

	defer func() {
		if r := recover(); r != nil {
			row = models.ApplicationRow{ID: asString(raw["id"]), CustomFields: "{}"}
		}
	}()

	row.Name = asString(raw["name"])
	if status, ok := raw["status"].(map[string]any); ok {
		row.Status = asString(status["status"])
	}
	if list, ok := raw["list"].(map[string]any); ok {
		row.ListID = asString(list["id"])
	}
	row.UpdatedUTC = asMillis(raw["date_updated"])
	row.CustomFields = customFieldsJSON(raw, fieldIDs)
	return row
}

// customFieldsJSON extracts the selected custom fields as a compact JSON
// object mapping field id to value. Marshaling failures degrade to "{}".
func customFieldsJSON(raw map[string]any, fieldIDs []string) string {
	wanted := make(map[string]bool, len(fieldIDs))
	for _, id := range fieldIDs {
		wanted[id] = true
	}

	fields := map[string]any{}
	rawFields, _ := raw["custom_fields"].([]any)
	for _, item := range rawFields {
		field, ok := item.(map[string]any)
		if !ok {
			continue
		}
		id := asString(field["id"])
		if id == "" {
			continue
		}
		if len(wanted) > 0 && !wanted[id] {
			continue
		}
		fields[id] = field["value"]
	}

	buf, err := json.Marshal(fields)
	if err != nil {
		return "{}"
	}
	return string(buf)
}
