// Tracksync - ClickUp Time Tracking Warehouse Pipeline
// Copyright 2026 Nordlum Analytics
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nordlum/tracksync

// Package config loads and validates Tracksync configuration.
//
// Configuration is layered (defaults, optional YAML file, environment
// variables) and materialized once at startup into a Config value object
// that is passed to the pipeline entry point. Nothing re-reads the
// environment mid-pipeline.
package config

import "time"

// Config is the root configuration object.
type Config struct {
	ClickUp   ClickUpConfig   `koanf:"clickup"`
	Warehouse WarehouseConfig `koanf:"warehouse"`
	Sync      SyncConfig      `koanf:"sync"`
	Backup    BackupConfig    `koanf:"backup"`
	Server    ServerConfig    `koanf:"server"`
	Logging   LoggingConfig   `koanf:"logging"`
}

// ClickUpConfig holds ClickUp API access settings.
type ClickUpConfig struct {
	// BaseURL is the API root. Overridable for tests.
	BaseURL string `koanf:"base_url"`

	// Token is the personal API token sent as the Authorization header.
	Token string `koanf:"token" validate:"required"`

	// TeamID is the workspace (team) identifier.
	TeamID string `koanf:"team_id" validate:"required"`

	// Assignees is the comma-separated list of user ids whose time entries
	// are fetched. Empty means all assignees.
	Assignees string `koanf:"assignees"`

	// SpaceID optionally restricts the hierarchy walk to one space.
	// Empty walks every non-archived space in the team.
	SpaceID string `koanf:"space_id"`

	// ApplicationListID is the list backing the application register sync.
	ApplicationListID string `koanf:"application_list_id"`

	// ApplicationFieldIDs are the custom field ids captured per
	// application record.
	ApplicationFieldIDs []string `koanf:"application_field_ids"`

	// MaxRetries is the number of additional attempts after a retryable
	// failure (HTTP 429, 5xx, network fault).
	MaxRetries int `koanf:"max_retries" validate:"min=0"`

	// RetryBaseDelay is the backoff unit: attempt n waits base * 2^n.
	RetryBaseDelay time.Duration `koanf:"retry_base_delay"`

	// RequestTimeout bounds every single HTTP request.
	RequestTimeout time.Duration `koanf:"request_timeout"`

	// EntryPace is the minimum spacing between time-entry window requests.
	EntryPace time.Duration `koanf:"entry_pace"`

	// ListPace is the minimum spacing between hierarchy listing requests.
	ListPace time.Duration `koanf:"list_pace"`
}

// WarehouseConfig holds DuckDB warehouse addressing.
type WarehouseConfig struct {
	// Path is the DuckDB database file. ":memory:" is accepted for tests.
	Path string `koanf:"path" validate:"required"`

	// Dataset is the schema holding every Tracksync table.
	Dataset string `koanf:"dataset" validate:"required"`

	StagingTable      string `koanf:"staging_table" validate:"required"`
	FactTable         string `koanf:"fact_table" validate:"required"`
	ListsTable        string `koanf:"lists_table" validate:"required"`
	TasksTable        string `koanf:"tasks_table" validate:"required"`
	MembersTable      string `koanf:"members_table" validate:"required"`
	ApplicationsTable string `koanf:"applications_table" validate:"required"`

	// MaxMemory caps DuckDB memory usage (e.g. "2GB").
	MaxMemory string `koanf:"max_memory"`

	// Threads configures DuckDB parallelism. 0 = runtime.NumCPU().
	Threads int `koanf:"threads"`
}

// SyncConfig holds pipeline tuning knobs.
type SyncConfig struct {
	// RefreshDays is the default lookback for the windowed refresh.
	RefreshDays int `koanf:"refresh_days" validate:"min=1"`

	// StartYear anchors the full reindex range (January 1 of that year).
	StartYear int `koanf:"start_year" validate:"min=2000"`

	// WindowDays is the maximum queryable date range of the time-entries
	// endpoint. The collector never issues a wider window.
	WindowDays int `koanf:"window_days" validate:"min=1,max=30"`

	// PageSize is the task pagination page size.
	PageSize int `koanf:"page_size" validate:"min=1,max=100"`

	// Timezone is the reporting timezone used to derive local_date and the
	// windowed-merge cutoff.
	Timezone string `koanf:"timezone" validate:"required"`
}

// BackupConfig controls the pre-warehouse CSV snapshot.
type BackupConfig struct {
	Enabled bool   `koanf:"enabled"`
	Dir     string `koanf:"dir"`
}

// ServerConfig holds HTTP trigger-surface settings.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port" validate:"min=1,max=65535"`
	Timeout         time.Duration `koanf:"timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`

	// RateLimitReqs requests per RateLimitWindow per client IP.
	RateLimitReqs   int           `koanf:"rate_limit_reqs"`
	RateLimitWindow time.Duration `koanf:"rate_limit_window"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// defaultConfig returns a Config with all default values. Defaults are
// applied first, then overridden by the config file and environment.
func defaultConfig() *Config {
	return &Config{
		ClickUp: ClickUpConfig{
			BaseURL:        "https://api.clickup.com/api/v2",
			MaxRetries:     3,
			RetryBaseDelay: time.Second,
			RequestTimeout: 30 * time.Second,
			EntryPace:      500 * time.Millisecond,
			ListPace:       200 * time.Millisecond,
		},
		Warehouse: WarehouseConfig{
			Path:              "/data/tracksync.duckdb",
			Dataset:           "clickup",
			StagingTable:      "staging_time_entries",
			FactTable:         "fact_time_entries",
			ListsTable:        "dim_lists",
			TasksTable:        "dim_tasks",
			MembersTable:      "dim_members",
			ApplicationsTable: "dim_applications",
			MaxMemory:         "2GB",
			Threads:           0,
		},
		Sync: SyncConfig{
			RefreshDays: 60,
			StartYear:   2024,
			WindowDays:  30,
			PageSize:    100,
			Timezone:    "Europe/Oslo",
		},
		Backup: BackupConfig{
			Enabled: true,
			Dir:     "/data/backups",
		},
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			Timeout:         30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			RateLimitReqs:   60,
			RateLimitWindow: time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}
