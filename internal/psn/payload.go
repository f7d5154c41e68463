// Trophytrack - PlayStation Trophy Records and Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/trophytrack

/*
Payload extraction helpers for the upstream trophy service.

The upstream schema is treated as untrusted: field names have shifted
across API revisions, numbers arrive as either JSON numbers or strings,
and whole sub-objects go missing on private profiles. Every field is
read through an ordered list of candidate paths with an explicit
default, so a drifted payload degrades field-by-field instead of
failing the call. Only fields that cannot be defaulted (record
identity) cause a record to be dropped.
*/
package psn

import (
	"strconv"
	"strings"
	"time"
)

// payload is a decoded upstream JSON object.
type payload map[string]any

// lookup resolves a dotted path ("definedTrophies.bronze") inside the
// payload. A numeric segment indexes an array ("avatarUrls.0.avatarUrl").
// The second return is false when any path segment is missing or the
// value mid-path cannot take the next segment.
func (p payload) lookup(path string) (any, bool) {
	var cur any = map[string]any(p)
	for _, seg := range strings.Split(path, ".") {
		switch node := cur.(type) {
		case map[string]any:
			next, ok := node[seg]
			if !ok {
				return nil, false
			}
			cur = next
		case []any:
			idx, err := strconv.Atoi(seg)
			if err != nil || idx < 0 || idx >= len(node) {
				return nil, false
			}
			cur = node[idx]
		default:
			return nil, false
		}
	}
	return cur, true
}

// str returns the first path that resolves to a non-empty string.
func (p payload) str(def string, paths ...string) string {
	for _, path := range paths {
		v, ok := p.lookup(path)
		if !ok {
			continue
		}
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	return def
}

// integer returns the first path that resolves to a number. JSON
// numbers decode as float64; numeric strings are coerced.
func (p payload) integer(def int, paths ...string) int {
	for _, path := range paths {
		v, ok := p.lookup(path)
		if !ok {
			continue
		}
		switch n := v.(type) {
		case float64:
			return int(n)
		case int:
			return n
		case int64:
			return int(n)
		case string:
			if parsed, err := strconv.Atoi(strings.TrimSpace(n)); err == nil {
				return parsed
			}
		}
	}
	return def
}

// intPtr is integer for optional fields: nil when no path resolves.
func (p payload) intPtr(paths ...string) *int {
	const sentinel = -1 << 30
	n := p.integer(sentinel, paths...)
	if n == sentinel {
		return nil
	}
	return &n
}

// boolean returns the first path that resolves to a bool. The strings
// "true"/"false" and numeric 0/1 are coerced since both shapes have
// been observed.
func (p payload) boolean(def bool, paths ...string) bool {
	for _, path := range paths {
		v, ok := p.lookup(path)
		if !ok {
			continue
		}
		switch b := v.(type) {
		case bool:
			return b
		case string:
			switch strings.ToLower(b) {
			case "true", "1":
				return true
			case "false", "0":
				return false
			}
		case float64:
			return b != 0
		}
	}
	return def
}

// timestamp returns the first path that parses as RFC 3339, or nil.
func (p payload) timestamp(paths ...string) *time.Time {
	for _, path := range paths {
		v, ok := p.lookup(path)
		if !ok {
			continue
		}
		s, ok := v.(string)
		if !ok || s == "" {
			continue
		}
		if t, err := time.Parse(time.RFC3339, s); err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}

// list returns the first path that resolves to an array of objects.
// Non-object elements are skipped.
func (p payload) list(paths ...string) []payload {
	for _, path := range paths {
		v, ok := p.lookup(path)
		if !ok {
			continue
		}
		arr, ok := v.([]any)
		if !ok {
			continue
		}
		out := make([]payload, 0, len(arr))
		for _, el := range arr {
			if obj, ok := el.(map[string]any); ok {
				out = append(out, payload(obj))
			}
		}
		return out
	}
	return nil
}
