package store

import (
	"encoding/json"
	"time"
)

// Patch values arrive in two shapes: typed Go values from in-process
// callers, and plain JSON types (float64, string, bool, nil, maps) when
// an outbox entry is restored from the cache. These coercions accept
// both.

func asString(v any) (string, bool) {
	s, ok := v.(string)
	return s, ok
}

func asStringPtr(v any) (*string, bool) {
	if v == nil {
		return nil, true
	}
	switch s := v.(type) {
	case string:
		return &s, true
	case *string:
		return s, true
	}
	return nil, false
}

func asBool(v any) (bool, bool) {
	b, ok := v.(bool)
	return b, ok
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	}
	return 0, false
}

func asTimePtr(v any) (*time.Time, bool) {
	if v == nil {
		return nil, true
	}
	switch t := v.(type) {
	case time.Time:
		return &t, true
	case *time.Time:
		return t, true
	case string:
		parsed, err := time.Parse(time.RFC3339, t)
		if err != nil {
			return nil, false
		}
		return &parsed, true
	}
	return nil, false
}

// reencode round-trips an arbitrary patch value through JSON into dst.
// Used for structured fields like attachment lists, where the cached
// form is a []any of maps.
func reencode(v any, dst any) bool {
	raw, err := json.Marshal(v)
	if err != nil {
		return false
	}
	return json.Unmarshal(raw, dst) == nil
}
