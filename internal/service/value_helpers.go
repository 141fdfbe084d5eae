package service

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"
)

// toFloat reads a finite number from a decoded JSON value, accepting numeric strings.
func toFloat(val interface{}) (float64, bool) {
	var f float64
	switch v := val.(type) {
	case float64:
		f = v
	case float32:
		f = float64(v)
	case int:
		f = float64(v)
	case int32:
		f = float64(v)
	case int64:
		f = float64(v)
	case *float64:
		if v == nil {
			return 0, false
		}
		f = *v
	case json.Number:
		parsed, err := v.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}

	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// isBlank treats nil and whitespace-only strings as absent.
func isBlank(val interface{}) bool {
	if val == nil {
		return true
	}
	if s, ok := val.(string); ok {
		return strings.TrimSpace(s) == ""
	}
	return false
}

// optFloat returns a pointer to the number under key, nil when absent or unparsable.
func optFloat(data map[string]interface{}, key string) *float64 {
	val, ok := data[key]
	if !ok || isBlank(val) {
		return nil
	}
	f, ok := toFloat(val)
	if !ok {
		return nil
	}
	return &f
}

// optString returns the trimmed string under key, empty when absent.
func optString(data map[string]interface{}, key string) string {
	s, _ := data[key].(string)
	return strings.TrimSpace(s)
}

// parseTime accepts RFC3339 timestamps and plain dates as sent by the dashboard.
func parseTime(val interface{}) (time.Time, bool) {
	s, ok := val.(string)
	if !ok {
		return time.Time{}, false
	}
	s = strings.TrimSpace(s)
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC().Truncate(time.Millisecond), true
		}
	}
	return time.Time{}, false
}

// flatten writes nested objects as dotted keys.
func flatten(prefix string, data map[string]interface{}, out map[string]interface{}) {
	for key, val := range data {
		path := key
		if prefix != "" {
			path = prefix + "." + key
		}
		if nested, ok := val.(map[string]interface{}); ok {
			flatten(path, nested, out)
			continue
		}
		out[path] = val
	}
}
