package httpapi

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/antoniostano/aiplanner/internal/tasks"
)

var localLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
}

// parseTimestamp accepts RFC 3339 or a zone-less local time interpreted in
// loc. An empty value yields the zero time.
func parseTimestamp(field, v string, loc *time.Location) (time.Time, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
		return t.In(loc), nil
	}
	for _, layout := range localLayouts {
		if t, err := time.ParseInLocation(layout, v, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, &tasks.ValidationError{Field: field, Reason: fmt.Sprintf("%q is not an ISO-8601 timestamp", v)}
}

// parseDurationMinutes reads the auto-plan duration, which clients send as a
// number or a numeric string. Absent or unparseable values fall back to def.
func parseDurationMinutes(raw json.RawMessage, def int) int {
	s := strings.TrimSpace(string(raw))
	if s == "" || s == "null" {
		return def
	}
	if unquoted, err := strconv.Unquote(s); err == nil {
		s = strings.TrimSpace(unquoted)
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && !math.IsNaN(f) {
		switch {
		case f > math.MaxInt32:
			return math.MaxInt32
		case f < math.MinInt32:
			return math.MinInt32
		}
		return int(f)
	}
	return def
}
