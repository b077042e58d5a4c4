// Tracksync - ClickUp Time Tracking Warehouse Pipeline
// Copyright 2026 Nordlum Analytics
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nordlum/tracksync

// Package api exposes the HTTP trigger surface: sync endpoints, health,
// service info and Prometheus metrics. Sync handlers run the pipeline
// synchronously and return the run result; Cloud Scheduler style callers
// get the outcome in the response body.
package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/goccy/go-json"

	"github.com/nordlum/tracksync/internal/logging"
	"github.com/nordlum/tracksync/internal/pipeline"
)

// Version is the service version reported by the root endpoint. Set at
// build time via -ldflags.
var Version = "dev"

// SyncManager is the pipeline surface the handlers drive.
type SyncManager interface {
	Refresh(ctx context.Context, days int) (pipeline.Result, error)
	FullReindex(ctx context.Context) (pipeline.Result, error)
	SyncLists(ctx context.Context) (pipeline.Result, error)
	SyncTasks(ctx context.Context) (pipeline.Result, error)
	SyncAccounts(ctx context.Context) (pipeline.Result, error)
	SyncApplications(ctx context.Context) (pipeline.Result, error)
	Running() []string
}

// Pinger is the warehouse liveness check used by the health endpoint.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handlers holds the HTTP handler dependencies.
type Handlers struct {
	manager   SyncManager
	warehouse Pinger
}

// NewHandlers creates the handler set.
func NewHandlers(manager SyncManager, warehouse Pinger) *Handlers {
	return &Handlers{manager: manager, warehouse: warehouse}
}

// errorResponse is the JSON error envelope.
type errorResponse struct {
	Error string `json:"error"`
}

// writeJSON serializes v with the appropriate headers.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Error().Err(err).Msg("Failed to encode response")
	}
}

// writeResult maps a pipeline outcome to a response: 200 with the run
// result, 409 when that kind is already running, 500 otherwise.
func writeResult(w http.ResponseWriter, res pipeline.Result, err error) {
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, res)
	case errors.Is(err, pipeline.ErrAlreadyRunning):
		writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error()})
	default:
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
	}
}

// refreshRequest is the optional body of POST /sync/refresh.
type refreshRequest struct {
	Days int `json:"days"`
}

// Refresh handles POST /sync/refresh. The lookback can be set with the
// "days" query parameter or a JSON body; otherwise the configured default
// applies.
func (h *Handlers) Refresh(w http.ResponseWriter, r *http.Request) {
	days := 0
	if q := r.URL.Query().Get("days"); q != "" {
		n, err := strconv.Atoi(q)
		if err != nil || n <= 0 {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "days must be a positive integer"})
			return
		}
		days = n
	} else if r.Body != nil && r.ContentLength > 0 {
		var req refreshRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
			return
		}
		if req.Days < 0 {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "days must be a positive integer"})
			return
		}
		days = req.Days
	}

	res, err := h.manager.Refresh(r.Context(), days)
	writeResult(w, res, err)
}

// FullReindex handles POST /sync/full_reindex.
func (h *Handlers) FullReindex(w http.ResponseWriter, r *http.Request) {
	res, err := h.manager.FullReindex(r.Context())
	writeResult(w, res, err)
}

// Lists handles POST /sync/lists.
func (h *Handlers) Lists(w http.ResponseWriter, r *http.Request) {
	res, err := h.manager.SyncLists(r.Context())
	writeResult(w, res, err)
}

// Tasks handles POST /sync/tasks.
func (h *Handlers) Tasks(w http.ResponseWriter, r *http.Request) {
	res, err := h.manager.SyncTasks(r.Context())
	writeResult(w, res, err)
}

// Accounts handles POST /sync/accounts.
func (h *Handlers) Accounts(w http.ResponseWriter, r *http.Request) {
	res, err := h.manager.SyncAccounts(r.Context())
	writeResult(w, res, err)
}

// Applications handles POST /sync/applications.
func (h *Handlers) Applications(w http.ResponseWriter, r *http.Request) {
	res, err := h.manager.SyncApplications(r.Context())
	writeResult(w, res, err)
}

// healthResponse is the health endpoint payload.
type healthResponse struct {
	Status  string   `json:"status"`
	Running []string `json:"running,omitempty"`
}

// Health handles GET /health. Degraded (503) when the warehouse does not
// answer a ping.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.warehouse.Ping(r.Context()); err != nil {
		logging.Error().Err(err).Msg("Health check failed")
		writeJSON(w, http.StatusServiceUnavailable, healthResponse{Status: "degraded"})
		return
	}
	writeJSON(w, http.StatusOK, healthResponse{
		Status:  "ok",
		Running: h.manager.Running(),
	})
}

// serviceInfo is the root endpoint payload.
type serviceInfo struct {
	Service   string   `json:"service"`
	Version   string   `json:"version"`
	Endpoints []string `json:"endpoints"`
}

// Root handles GET /.
func (h *Handlers) Root(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, serviceInfo{
		Service: "tracksync",
		Version: Version,
		Endpoints: []string{
			"POST /sync/refresh",
			"POST /sync/full_reindex",
			"POST /sync/lists",
			"POST /sync/tasks",
			"POST /sync/accounts",
			"POST /sync/applications",
			"GET /health",
			"GET /metrics",
		},
	})
}
