package reporting

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"
)

// dateLayouts are tried in order when a date arrives as text
var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// UsableDate normalizes the many shapes a stored request date can take.
//
// Storage timestamp wrappers (anything exposing ToDate or AsTime, and the
// {"seconds","nanoseconds"} objects found in document-store exports) are converted
// through their own accessor. Other values are read as a native date: time values,
// RFC 3339 text or epoch milliseconds. A zero or unparseable value is not usable.
func UsableDate(v any) (time.Time, bool) {
	var t time.Time

	switch d := v.(type) {
	case nil:
		return time.Time{}, false
	case time.Time:
		t = d
	case *time.Time:
		if d == nil {
			return time.Time{}, false
		}
		t = *d
	case interface{ ToDate() time.Time }:
		t = d.ToDate()
	case interface{ AsTime() time.Time }:
		t = d.AsTime()
	case map[string]any:
		var ok bool
		if t, ok = wrapperTime(d); !ok {
			return time.Time{}, false
		}
	case string:
		var ok bool
		if t, ok = parseDateText(d); !ok {
			return time.Time{}, false
		}
	case json.Number:
		f, err := d.Float64()
		if err != nil {
			return time.Time{}, false
		}
		t = fromMillis(f)
	case float64:
		t = fromMillis(d)
	case int64:
		t = time.UnixMilli(d)
	case int:
		t = time.UnixMilli(int64(d))
	default:
		return time.Time{}, false
	}

	if t.IsZero() {
		return time.Time{}, false
	}
	return t, true
}

func wrapperTime(m map[string]any) (time.Time, bool) {
	secs, ok := numberField(m, "seconds", "_seconds")
	if !ok {
		return time.Time{}, false
	}
	nanos, _ := numberField(m, "nanoseconds", "_nanoseconds")
	return time.Unix(int64(secs), int64(nanos)), true
}

func numberField(m map[string]any, keys ...string) (float64, bool) {
	for _, k := range keys {
		switch n := m[k].(type) {
		case float64:
			return n, true
		case int64:
			return float64(n), true
		case int:
			return float64(n), true
		case json.Number:
			if f, err := n.Float64(); err == nil {
				return f, true
			}
		}
	}
	return 0, false
}

func parseDateText(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	if ms, err := strconv.ParseFloat(s, 64); err == nil {
		return fromMillis(ms), true
	}
	return time.Time{}, false
}

func fromMillis(ms float64) time.Time {
	if math.IsNaN(ms) || math.IsInf(ms, 0) {
		return time.Time{}
	}
	return time.UnixMilli(int64(ms))
}
