// Tracksync - ClickUp Time Tracking Warehouse Pipeline
// Copyright 2026 Nordlum Analytics
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nordlum/tracksync

package clickup

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/nordlum/tracksync/internal/models"
)

// Enumerator walks the workspace hierarchy (spaces, folders, lists, tasks)
// and the team roster. Listing calls are paced more tightly than time-entry
// windows since the walk fans out to many small requests.
type Enumerator struct {
	api      API
	teamID   string
	spaceID  string
	pageSize int
	limiter  *rate.Limiter
	logger   zerolog.Logger
}

// NewEnumerator creates a hierarchy walker. spaceID restricts the walk to
// one space when non-empty. pace is the minimum spacing between listing
// requests.
func NewEnumerator(api API, teamID, spaceID string, pageSize int, pace time.Duration, logger zerolog.Logger) *Enumerator {
	if pace <= 0 {
		pace = 200 * time.Millisecond
	}
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 100
	}
	return &Enumerator{
		api:      api,
		teamID:   teamID,
		spaceID:  spaceID,
		pageSize: pageSize,
		limiter:  rate.NewLimiter(rate.Every(pace), 1),
		logger:   logger,
	}
}

// get is a paced fetch.
func (e *Enumerator) get(ctx context.Context, path string, params url.Values) (map[string]any, error) {
	if err := e.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return e.api.Get(ctx, path, params)
}

// notArchived filters out archived hierarchy objects.
var notArchived = url.Values{"archived": {"false"}}

// Lists walks spaces, folders and folderless lists and returns one
// flattened row per list. Lists directly under a space carry empty-string
// folder fields.
//
// A branch whose listing fails is logged and treated as empty; the walk
// continues with the remaining branches so one sick space never blanks the
// whole dimension. Only a failure to enumerate the spaces themselves is
// fatal.
func (e *Enumerator) Lists(ctx context.Context) ([]models.HierarchyRow, error) {
	spaces, err := e.spaces(ctx)
	if err != nil {
		return nil, err
	}

	var rows []models.HierarchyRow
	for _, space := range spaces {
		spaceID := stringField(space, "id")
		spaceName := stringField(space, "name")

		folders, err := e.items(ctx, "/space/"+spaceID+"/folder", "folders")
		if err != nil {
			if ctx.Err() != nil {
				return rows, ctx.Err()
			}
			e.logger.Error().
				Err(err).
				Str("space_id", spaceID).
				Msg("Folder listing failed, skipping branch")
		}
		for _, folder := range folders {
			folderID := stringField(folder, "id")
			folderName := stringField(folder, "name")
			lists, _ := folder["lists"].([]any)
			for _, item := range lists {
				list, ok := item.(map[string]any)
				if !ok {
					continue
				}
				rows = append(rows, models.HierarchyRow{
					SpaceID:    spaceID,
					SpaceName:  spaceName,
					FolderID:   folderID,
					FolderName: folderName,
					ListID:     stringField(list, "id"),
					ListName:   stringField(list, "name"),
				})
			}
		}

		folderless, err := e.items(ctx, "/space/"+spaceID+"/list", "lists")
		if err != nil {
			if ctx.Err() != nil {
				return rows, ctx.Err()
			}
			e.logger.Error().
				Err(err).
				Str("space_id", spaceID).
				Msg("Folderless list listing failed, skipping branch")
		}
		for _, list := range folderless {
			rows = append(rows, models.HierarchyRow{
				SpaceID:   spaceID,
				SpaceName: spaceName,
				// No parent folder: empty string sentinel, not null.
				FolderID:   "",
				FolderName: "",
				ListID:     stringField(list, "id"),
				ListName:   stringField(list, "name"),
			})
		}
	}

	e.logger.Info().Int("lists", len(rows)).Int("spaces", len(spaces)).Msg("Hierarchy walked")
	return rows, nil
}

// spaces returns the non-archived spaces in scope.
func (e *Enumerator) spaces(ctx context.Context) ([]map[string]any, error) {
	if e.spaceID != "" {
		body, err := e.get(ctx, "/space/"+e.spaceID, nil)
		if err != nil {
			return nil, fmt.Errorf("fetch space %s: %w", e.spaceID, err)
		}
		return []map[string]any{body}, nil
	}

	spaces, err := e.items(ctx, "/team/"+e.teamID+"/space", "spaces")
	if err != nil {
		return nil, fmt.Errorf("list spaces: %w", err)
	}
	return spaces, nil
}

// items fetches path and returns the named array of objects.
func (e *Enumerator) items(ctx context.Context, path, field string) ([]map[string]any, error) {
	body, err := e.get(ctx, path, notArchived)
	if err != nil {
		return nil, err
	}
	raw, _ := body[field].([]any)
	items := make([]map[string]any, 0, len(raw))
	for _, item := range raw {
		if m, ok := item.(map[string]any); ok {
			items = append(items, m)
		}
	}
	return items, nil
}

// Tasks fetches every task of the given lists, in two passes per list
// (live, then archived). A list whose pagination fails ends only that
// list's collection; the remaining lists are still walked.
func (e *Enumerator) Tasks(ctx context.Context, listIDs []string) ([]map[string]any, error) {
	var tasks []map[string]any
	for _, listID := range listIDs {
		for _, archived := range []bool{false, true} {
			batch, err := e.listTasks(ctx, listID, archived)
			if err != nil {
				if ctx.Err() != nil {
					return tasks, ctx.Err()
				}
				e.logger.Error().
					Err(err).
					Str("list_id", listID).
					Bool("archived", archived).
					Msg("Task listing failed, skipping list")
				break
			}
			tasks = append(tasks, batch...)
		}
	}
	return tasks, nil
}

// listTasks paginates one list's tasks. The page size is sent explicitly
// so the short-page termination below compares against what the server was
// actually asked for; a page shorter than that (or empty) ends pagination.
func (e *Enumerator) listTasks(ctx context.Context, listID string, archived bool) ([]map[string]any, error) {
	var tasks []map[string]any
	for page := 0; ; page++ {
		params := url.Values{
			"archived":         {strconv.FormatBool(archived)},
			"page":             {strconv.Itoa(page)},
			"limit":            {strconv.Itoa(e.pageSize)},
			"subtasks":         {"true"},
			"include_closed":   {"true"},
			"order_by":         {"updated"},
			"custom_task_ids":  {"false"},
			"include_markdown": {"false"},
		}

		body, err := e.get(ctx, "/list/"+listID+"/task", params)
		if err != nil {
			return nil, err
		}

		raw, _ := body["tasks"].([]any)
		for _, item := range raw {
			if m, ok := item.(map[string]any); ok {
				tasks = append(tasks, m)
			}
		}
		if len(raw) < e.pageSize {
			return tasks, nil
		}
	}
}

// TeamMembers returns the raw member objects of the workspace roster.
func (e *Enumerator) TeamMembers(ctx context.Context) ([]map[string]any, error) {
	body, err := e.get(ctx, "/team/"+e.teamID, nil)
	if err != nil {
		return nil, fmt.Errorf("fetch team: %w", err)
	}

	team, _ := body["team"].(map[string]any)
	raw, _ := team["members"].([]any)
	members := make([]map[string]any, 0, len(raw))
	for _, item := range raw {
		if m, ok := item.(map[string]any); ok {
			members = append(members, m)
		}
	}
	return members, nil
}

// ApplicationTasks fetches the tasks of the application register list.
func (e *Enumerator) ApplicationTasks(ctx context.Context, listID string) ([]map[string]any, error) {
	var all []map[string]any
	for _, archived := range []bool{false, true} {
		batch, err := e.listTasks(ctx, listID, archived)
		if err != nil {
			return nil, fmt.Errorf("list application tasks: %w", err)
		}
		all = append(all, batch...)
	}
	return all, nil
}

// stringField extracts a string field, tolerating numeric ids.
func stringField(m map[string]any, key string) string {
	switch v := m[key].(type) {
	case string:
		return v
	case float64:
		return strconv.FormatInt(int64(v), 10)
	default:
		return ""
	}
}
