// Tracksync - ClickUp Time Tracking Warehouse Pipeline
// Copyright 2026 Nordlum Analytics
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nordlum/tracksync

package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/goccy/go-json"

	"github.com/nordlum/tracksync/internal/pipeline"
)

// stubManager records calls and returns scripted outcomes.
type stubManager struct {
	refreshDays int
	called      string
	result      pipeline.Result
	err         error
	running     []string
}

func (s *stubManager) Refresh(_ context.Context, days int) (pipeline.Result, error) {
	s.called = "refresh"
	s.refreshDays = days
	return s.result, s.err
}

func (s *stubManager) FullReindex(context.Context) (pipeline.Result, error) {
	s.called = "full_reindex"
	return s.result, s.err
}

func (s *stubManager) SyncLists(context.Context) (pipeline.Result, error) {
	s.called = "lists"
	return s.result, s.err
}

func (s *stubManager) SyncTasks(context.Context) (pipeline.Result, error) {
	s.called = "tasks"
	return s.result, s.err
}

func (s *stubManager) SyncAccounts(context.Context) (pipeline.Result, error) {
	s.called = "accounts"
	return s.result, s.err
}

func (s *stubManager) SyncApplications(context.Context) (pipeline.Result, error) {
	s.called = "applications"
	return s.result, s.err
}

func (s *stubManager) Running() []string { return s.running }

type stubPinger struct{ err error }

func (s *stubPinger) Ping(context.Context) error { return s.err }

func newTestRouter(m SyncManager, p Pinger) http.Handler {
	return NewRouter(NewHandlers(m, p), RouterConfig{})
}

func TestRefreshHandler(t *testing.T) {
	tests := []struct {
		name       string
		target     string
		body       string
		err        error
		wantStatus int
		wantDays   int
	}{
		{"default days", "/sync/refresh", "", nil, http.StatusOK, 0},
		{"query days", "/sync/refresh?days=14", "", nil, http.StatusOK, 14},
		{"body days", "/sync/refresh", `{"days": 30}`, nil, http.StatusOK, 30},
		{"bad query days", "/sync/refresh?days=-3", "", nil, http.StatusBadRequest, 0},
		{"junk query days", "/sync/refresh?days=soon", "", nil, http.StatusBadRequest, 0},
		{"bad body", "/sync/refresh", `{"days": `, nil, http.StatusBadRequest, 0},
		{"already running", "/sync/refresh", "", pipeline.ErrAlreadyRunning, http.StatusConflict, 0},
		{"pipeline failure", "/sync/refresh", "", errors.New("merge exploded"), http.StatusInternalServerError, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &stubManager{err: tt.err, result: pipeline.Result{Kind: "refresh", RunID: "r1"}}
			router := newTestRouter(m, &stubPinger{})

			var body *strings.Reader
			if tt.body != "" {
				body = strings.NewReader(tt.body)
			} else {
				body = strings.NewReader("")
			}
			req := httptest.NewRequest(http.MethodPost, tt.target, body)
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (body: %s)", rec.Code, tt.wantStatus, rec.Body.String())
			}
			if tt.wantStatus == http.StatusOK && m.refreshDays != tt.wantDays {
				t.Errorf("days = %d, want %d", m.refreshDays, tt.wantDays)
			}
			if tt.wantStatus == http.StatusBadRequest && m.called != "" {
				t.Error("pipeline must not run on a rejected request")
			}
		})
	}
}

func TestSyncEndpointsDispatch(t *testing.T) {
	endpoints := map[string]string{
		"/sync/full_reindex": "full_reindex",
		"/sync/lists":        "lists",
		"/sync/tasks":        "tasks",
		"/sync/accounts":     "accounts",
		"/sync/applications": "applications",
	}

	for target, want := range endpoints {
		t.Run(want, func(t *testing.T) {
			m := &stubManager{result: pipeline.Result{Kind: want}}
			router := newTestRouter(m, &stubPinger{})

			req := httptest.NewRequest(http.MethodPost, target, nil)
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d", rec.Code)
			}
			if m.called != want {
				t.Errorf("dispatched %q, want %q", m.called, want)
			}

			var res pipeline.Result
			if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
				t.Fatalf("decode response: %v", err)
			}
			if res.Kind != want {
				t.Errorf("response kind = %q", res.Kind)
			}
		})
	}
}

func TestSyncEndpointsRejectGET(t *testing.T) {
	router := newTestRouter(&stubManager{}, &stubPinger{})

	req := httptest.NewRequest(http.MethodGet, "/sync/refresh", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", rec.Code)
	}
}

func TestHealth(t *testing.T) {
	t.Run("healthy", func(t *testing.T) {
		router := newTestRouter(&stubManager{running: []string{"refresh"}}, &stubPinger{})
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
		var res healthResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if res.Status != "ok" || len(res.Running) != 1 {
			t.Errorf("response = %+v", res)
		}
	})

	t.Run("degraded", func(t *testing.T) {
		router := newTestRouter(&stubManager{}, &stubPinger{err: errors.New("db gone")})
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		if rec.Code != http.StatusServiceUnavailable {
			t.Errorf("status = %d, want 503", rec.Code)
		}
	})
}

func TestRoot(t *testing.T) {
	router := newTestRouter(&stubManager{}, &stubPinger{})
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var info serviceInfo
	if err := json.Unmarshal(rec.Body.Bytes(), &info); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if info.Service != "tracksync" || len(info.Endpoints) == 0 {
		t.Errorf("info = %+v", info)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	router := newTestRouter(&stubManager{}, &stubPinger{})
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d", rec.Code)
	}
}
