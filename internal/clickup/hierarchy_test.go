// Tracksync - ClickUp Time Tracking Warehouse Pipeline
// Copyright 2026 Nordlum Analytics
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nordlum/tracksync

package clickup

import (
	"context"
	"net/url"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

// pathAPI serves canned responses keyed by request path. A nil entry means
// the request fails.
type pathAPI struct {
	responses map[string]map[string]any
	pager     func(path string, params url.Values) (map[string]any, error)
}

func (p *pathAPI) Get(_ context.Context, path string, params url.Values) (map[string]any, error) {
	if p.pager != nil {
		if body, err := p.pager(path, params); body != nil || err != nil {
			return body, err
		}
	}
	body, ok := p.responses[path]
	if !ok {
		return nil, &FetchError{Kind: KindClientError, StatusCode: 404, Path: path}
	}
	return body, nil
}

func newTestEnumerator(api API, spaceID string) *Enumerator {
	return NewEnumerator(api, "9", spaceID, 2, time.Microsecond, zerolog.Nop())
}

func TestEnumerator_Lists(t *testing.T) {
	api := &pathAPI{responses: map[string]map[string]any{
		"/team/9/space": {
			"spaces": []any{
				map[string]any{"id": "s1", "name": "Engineering"},
			},
		},
		"/space/s1/folder": {
			"folders": []any{
				map[string]any{
					"id":   "f1",
					"name": "Sprints",
					"lists": []any{
						map[string]any{"id": "l1", "name": "Sprint 1"},
						map[string]any{"id": "l2", "name": "Sprint 2"},
					},
				},
			},
		},
		"/space/s1/list": {
			"lists": []any{
				map[string]any{"id": "l3", "name": "Backlog"},
			},
		},
	}}

	rows, err := newTestEnumerator(api, "").Lists(context.Background())
	if err != nil {
		t.Fatalf("Lists: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("rows = %d, want 3", len(rows))
	}

	byList := map[string]int{}
	for i, r := range rows {
		byList[r.ListID] = i
	}

	foldered := rows[byList["l1"]]
	if foldered.FolderID != "f1" || foldered.FolderName != "Sprints" {
		t.Errorf("foldered list = %+v", foldered)
	}

	// Folderless lists carry the empty-string sentinel, never a
	// placeholder value.
	folderless := rows[byList["l3"]]
	if folderless.FolderID != "" || folderless.FolderName != "" {
		t.Errorf("folderless list folder = %q/%q, want empty sentinel", folderless.FolderID, folderless.FolderName)
	}
	if folderless.SpaceID != "s1" || folderless.SpaceName != "Engineering" {
		t.Errorf("folderless list space = %+v", folderless)
	}
}

func TestEnumerator_ListsSpaceFailureIsIsolated(t *testing.T) {
	api := &pathAPI{responses: map[string]map[string]any{
		"/team/9/space": {
			"spaces": []any{
				map[string]any{"id": "s1", "name": "Sick"},
				map[string]any{"id": "s2", "name": "Healthy"},
			},
		},
		// s1's folder listing is absent so it fails; its folderless
		// listing works, and s2 is fully healthy.
		"/space/s1/list": {
			"lists": []any{map[string]any{"id": "l1", "name": "Survivor"}},
		},
		"/space/s2/folder": {"folders": []any{}},
		"/space/s2/list": {
			"lists": []any{map[string]any{"id": "l2", "name": "Inbox"}},
		},
	}}

	rows, err := newTestEnumerator(api, "").Lists(context.Background())
	if err != nil {
		t.Fatalf("Lists: %v (a branch failure must not end the walk)", err)
	}
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want the surviving branches of both spaces", len(rows))
	}

	got := map[string]bool{}
	for _, r := range rows {
		got[r.ListID] = true
	}
	if !got["l1"] || !got["l2"] {
		t.Errorf("rows = %+v, want l1 and l2", rows)
	}
}

func TestEnumerator_ListsScopedToSpace(t *testing.T) {
	api := &pathAPI{responses: map[string]map[string]any{
		"/space/s7":        {"id": "s7", "name": "Only"},
		"/space/s7/folder": {"folders": []any{}},
		"/space/s7/list": {
			"lists": []any{map[string]any{"id": "l9", "name": "Inbox"}},
		},
	}}

	rows, err := newTestEnumerator(api, "s7").Lists(context.Background())
	if err != nil {
		t.Fatalf("Lists: %v", err)
	}
	if len(rows) != 1 || rows[0].SpaceID != "s7" {
		t.Errorf("rows = %+v", rows)
	}
}

func TestEnumerator_TasksPagination(t *testing.T) {
	task := func(id string) any { return map[string]any{"id": id} }

	api := &pathAPI{pager: func(path string, params url.Values) (map[string]any, error) {
		if path != "/list/l1/task" {
			return nil, nil
		}
		// The requested page size drives the short-page termination, so
		// it must be sent explicitly.
		if got := params.Get("limit"); got != "2" {
			return nil, &FetchError{Kind: KindClientError, StatusCode: 400, Path: path}
		}
		if params.Get("archived") == "true" {
			return map[string]any{"tasks": []any{}}, nil
		}
		// Page size is 2: full page 0, short page 1 ends pagination.
		switch params.Get("page") {
		case "0":
			return map[string]any{"tasks": []any{task("t1"), task("t2")}}, nil
		case "1":
			return map[string]any{"tasks": []any{task("t3")}}, nil
		default:
			return nil, &FetchError{Kind: KindClientError, StatusCode: 400, Path: path}
		}
	}}

	tasks, err := newTestEnumerator(api, "").Tasks(context.Background(), []string{"l1"})
	if err != nil {
		t.Fatalf("Tasks: %v", err)
	}
	if len(tasks) != 3 {
		t.Errorf("tasks = %d, want 3 across two pages", len(tasks))
	}
}

func TestEnumerator_TasksListFailureIsIsolated(t *testing.T) {
	task := func(id string) any { return map[string]any{"id": id} }

	api := &pathAPI{pager: func(path string, params url.Values) (map[string]any, error) {
		switch path {
		case "/list/bad/task":
			return nil, &FetchError{Kind: KindExhaustedRetries, Path: path}
		case "/list/good/task":
			if params.Get("archived") == "true" {
				return map[string]any{"tasks": []any{}}, nil
			}
			return map[string]any{"tasks": []any{task("t1")}}, nil
		default:
			return nil, nil
		}
	}}

	tasks, err := newTestEnumerator(api, "").Tasks(context.Background(), []string{"bad", "good"})
	if err != nil {
		t.Fatalf("Tasks: %v (one list's failure must not end the walk)", err)
	}
	if len(tasks) != 1 {
		t.Errorf("tasks = %d, want the surviving list's task", len(tasks))
	}
}

func TestEnumerator_TeamMembers(t *testing.T) {
	api := &pathAPI{responses: map[string]map[string]any{
		"/team/9": {
			"team": map[string]any{
				"id": "9",
				"members": []any{
					map[string]any{"user": map[string]any{"id": float64(1), "username": "kari"}},
					map[string]any{"user": map[string]any{"id": float64(2), "username": "ola"}},
				},
			},
		},
	}}

	members, err := newTestEnumerator(api, "").TeamMembers(context.Background())
	if err != nil {
		t.Fatalf("TeamMembers: %v", err)
	}
	if len(members) != 2 {
		t.Errorf("members = %d, want 2", len(members))
	}
}
