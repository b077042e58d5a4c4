// Tracksync - ClickUp Time Tracking Warehouse Pipeline
// Copyright 2026 Nordlum Analytics
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nordlum/tracksync

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RouterConfig holds router tuning.
type RouterConfig struct {
	// RateLimitReqs requests per RateLimitWindow per client IP on the sync
	// endpoints. Health and metrics are not rate limited.
	RateLimitReqs   int
	RateLimitWindow time.Duration
}

// NewRouter builds the HTTP routing tree.
func NewRouter(h *Handlers, cfg RouterConfig) http.Handler {
	if cfg.RateLimitReqs <= 0 {
		cfg.RateLimitReqs = 60
	}
	if cfg.RateLimitWindow <= 0 {
		cfg.RateLimitWindow = time.Minute
	}

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)

	r.Get("/", h.Root)
	r.Get("/health", h.Health)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/sync", func(r chi.Router) {
		r.Use(httprate.LimitByIP(cfg.RateLimitReqs, cfg.RateLimitWindow))

		r.Post("/refresh", h.Refresh)
		r.Post("/full_reindex", h.FullReindex)
		r.Post("/lists", h.Lists)
		r.Post("/tasks", h.Tasks)
		r.Post("/accounts", h.Accounts)
		r.Post("/applications", h.Applications)
	})

	return r
}
