// Tracksync - ClickUp Time Tracking Warehouse Pipeline
// Copyright 2026 Nordlum Analytics
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nordlum/tracksync

// Package transform converts raw API objects into warehouse row types.
//
// Every transform is total: malformed or absent source values degrade to
// documented defaults (empty string, false, nil) instead of failing the
// batch. The coercion helpers below define those defaults in one place.
package transform

import (
	"strconv"
	"strings"
	"time"
)

// asString coerces a value to string. Numbers render without an exponent
// (ids arrive as JSON numbers from some endpoints). Anything else is "".
func asString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		if t == float64(int64(t)) {
			return strconv.FormatInt(int64(t), 10)
		}
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return ""
	}
}

// asInt64 coerces a value to *int64. Accepts native numbers and numeric
// strings. Returns nil for everything else.
func asInt64(v any) *int64 {
	switch t := v.(type) {
	case float64:
		n := int64(t)
		return &n
	case int:
		n := int64(t)
		return &n
	case int64:
		return &t
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return nil
		}
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return &n
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			n := int64(f)
			return &n
		}
		return nil
	default:
		return nil
	}
}

// asFloat coerces a value to float64, defaulting to 0.
func asFloat(v any) float64 {
	switch t := v.(type) {
	case float64:
		return t
	case int:
		return float64(t)
	case int64:
		return float64(t)
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(t), 64); err == nil {
			return f
		}
		return 0
	default:
		return 0
	}
}

// asBool coerces a value to bool. True for native true, the strings
// "true", "1", "yes", "on" (case-insensitive), and nonzero numbers.
// Everything else is false.
func asBool(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "true", "1", "yes", "on":
			return true
		}
		return false
	case float64:
		return t != 0
	case int:
		return t != 0
	case int64:
		return t != 0
	default:
		return false
	}
}

// asMillis coerces an epoch-milliseconds value (number or numeric string)
// to a UTC instant. Returns nil for anything unparseable or non-positive.
func asMillis(v any) *time.Time {
	ms := asInt64(v)
	if ms == nil || *ms <= 0 {
		return nil
	}
	t := time.UnixMilli(*ms).UTC()
	return &t
}
