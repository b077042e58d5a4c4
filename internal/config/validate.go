// Tracksync - ClickUp Time Tracking Warehouse Pipeline
// Copyright 2026 Nordlum Analytics
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nordlum/tracksync

package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// Validate checks that required configuration is present and consistent.
// Struct-tag validation covers presence and ranges; the cross-field checks
// below cover what tags cannot express.
func (c *Config) Validate() error {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("invalid config: field %s failed rule %q", fe.Namespace(), fe.Tag())
		}
		return fmt.Errorf("invalid config: %w", err)
	}

	if _, err := time.LoadLocation(c.Sync.Timezone); err != nil {
		return fmt.Errorf("invalid config: sync.timezone %q: %w", c.Sync.Timezone, err)
	}

	if c.Backup.Enabled && c.Backup.Dir == "" {
		return fmt.Errorf("invalid config: backup.dir is required when backup.enabled is true")
	}

	if c.ClickUp.RetryBaseDelay <= 0 {
		return fmt.Errorf("invalid config: clickup.retry_base_delay must be positive")
	}
	if c.ClickUp.RequestTimeout <= 0 {
		return fmt.Errorf("invalid config: clickup.request_timeout must be positive")
	}

	return nil
}

// Location resolves the configured reporting timezone. Validate guarantees
// this cannot fail on a validated Config.
func (c *Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.Sync.Timezone)
}
