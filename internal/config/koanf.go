// Tracksync - ClickUp Time Tracking Warehouse Pipeline
// Copyright 2026 Nordlum Analytics
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nordlum/tracksync

package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where config files are searched in
// order of priority. The first file found wins.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/tracksync/config.yaml",
	"/etc/tracksync/config.yml",
}

// ConfigPathEnvVar overrides the config file path when set.
const ConfigPathEnvVar = "CONFIG_PATH"

// Load builds the configuration from layered sources:
//  1. Defaults: built-in sensible defaults
//  2. Config file: optional YAML file (if one exists)
//  3. Environment variables: override any setting
//
// Precedence is ENV > file > defaults. The result is validated before it
// is returned; a Config that loads successfully is safe to run with.
func Load() (*Config, error) {
	k := koanf.New(".")

	// Layer 1: defaults from struct
	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// Layer 2: optional config file
	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// Layer 3: environment variables (highest priority)
	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	// Comma-separated env values for slice fields
	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile returns the first existing config file path, or "".
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// sliceConfigPaths defines which config paths are parsed as comma-separated
// slices when they arrive as env var strings.
var sliceConfigPaths = []string{
	"clickup.application_field_ids",
}

// processSliceFields converts comma-separated string values to slices for
// known slice fields. Env vars come in as strings but the config expects
// slices; YAML values are already slices and pass through untouched.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		val := k.Get(path)
		if val == nil {
			continue
		}

		if _, ok := val.([]interface{}); ok {
			continue
		}
		if _, ok := val.([]string); ok {
			continue
		}

		strVal, ok := val.(string)
		if !ok || strVal == "" {
			continue
		}

		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if len(trimmed) > 0 {
			if err := k.Set(path, trimmed); err != nil {
				return fmt.Errorf("failed to set %s: %w", path, err)
			}
		}
	}
	return nil
}

// envTransformFunc maps environment variable names to koanf config paths.
//
// Examples:
//   - CLICKUP_API_TOKEN -> clickup.token
//   - CLICKUP_TEAM_ID -> clickup.team_id
//   - DUCKDB_PATH -> warehouse.path
//   - HTTP_PORT -> server.port
//
// Unknown variables map to "" and are ignored, so unrelated environment
// noise never leaks into the config tree.
func envTransformFunc(key string) string {
	key = strings.ToLower(key)

	envMappings := map[string]string{
		// ClickUp API
		"clickup_api_token":             "clickup.token",
		"clickup_base_url":              "clickup.base_url",
		"clickup_team_id":               "clickup.team_id",
		"clickup_assignees":             "clickup.assignees",
		"clickup_space_id":              "clickup.space_id",
		"clickup_application_list_id":   "clickup.application_list_id",
		"clickup_application_field_ids": "clickup.application_field_ids",
		"clickup_max_retries":           "clickup.max_retries",
		"clickup_retry_base_delay":      "clickup.retry_base_delay",
		"clickup_request_timeout":       "clickup.request_timeout",
		"clickup_entry_pace":            "clickup.entry_pace",
		"clickup_list_pace":             "clickup.list_pace",

		// Warehouse
		"duckdb_path":                  "warehouse.path",
		"duckdb_max_memory":            "warehouse.max_memory",
		"duckdb_threads":               "warehouse.threads",
		"warehouse_dataset":            "warehouse.dataset",
		"warehouse_staging_table":      "warehouse.staging_table",
		"warehouse_fact_table":         "warehouse.fact_table",
		"warehouse_lists_table":        "warehouse.lists_table",
		"warehouse_tasks_table":        "warehouse.tasks_table",
		"warehouse_members_table":      "warehouse.members_table",
		"warehouse_applications_table": "warehouse.applications_table",

		// Sync tuning
		"sync_refresh_days": "sync.refresh_days",
		"sync_start_year":   "sync.start_year",
		"sync_window_days":  "sync.window_days",
		"sync_page_size":    "sync.page_size",
		"sync_timezone":     "sync.timezone",

		// Backup
		"backup_enabled": "backup.enabled",
		"backup_dir":     "backup.dir",

		// HTTP server
		"http_host":              "server.host",
		"http_port":              "server.port",
		"http_timeout":           "server.timeout",
		"http_shutdown_timeout":  "server.shutdown_timeout",
		"http_rate_limit_reqs":   "server.rate_limit_reqs",
		"http_rate_limit_window": "server.rate_limit_window",

		// Logging
		"log_level":  "logging.level",
		"log_format": "logging.format",
		"log_caller": "logging.caller",
	}

	if mapped, ok := envMappings[key]; ok {
		return mapped
	}
	return ""
}
