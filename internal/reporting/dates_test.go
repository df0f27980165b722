package reporting

import (
	"encoding/json"
	"testing"
	"time"
)

type toDateWrapper struct{ t time.Time }

func (w toDateWrapper) ToDate() time.Time { return w.t }

type asTimeWrapper struct{ t time.Time }

func (w asTimeWrapper) AsTime() time.Time { return w.t }

func TestUsableDate(t *testing.T) {
	ref := time.Date(2025, 3, 1, 9, 30, 0, 0, time.UTC)
	var nilTime *time.Time

	cases := []struct {
		name string
		in   any
		want time.Time
		ok   bool
	}{
		{"nil", nil, time.Time{}, false},
		{"nil pointer", nilTime, time.Time{}, false},
		{"zero time", time.Time{}, time.Time{}, false},
		{"time value", ref, ref, true},
		{"time pointer", &ref, ref, true},
		{"ToDate wrapper", toDateWrapper{ref}, ref, true},
		{"AsTime wrapper", asTimeWrapper{ref}, ref, true},
		{"seconds object", map[string]any{"seconds": float64(ref.Unix()), "nanoseconds": float64(0)}, ref, true},
		{"underscore seconds object", map[string]any{"_seconds": float64(ref.Unix())}, ref, true},
		{"object without seconds", map[string]any{"foo": 1}, time.Time{}, false},
		{"rfc3339", "2025-03-01T09:30:00Z", ref, true},
		{"space layout", "2025-03-01 09:30:00", ref, true},
		{"epoch millis text", "1740821400000", ref, true},
		{"epoch millis float", float64(ref.UnixMilli()), ref, true},
		{"epoch millis int64", ref.UnixMilli(), ref, true},
		{"json number", json.Number("1740821400000"), ref, true},
		{"empty string", "", time.Time{}, false},
		{"garbage", "next tuesday", time.Time{}, false},
		{"unsupported type", struct{}{}, time.Time{}, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := UsableDate(tc.in)
			if ok != tc.ok {
				t.Fatalf("ok = %v, want %v", ok, tc.ok)
			}
			if ok && !got.Equal(tc.want) {
				t.Errorf("got %v, want %v", got, tc.want)
			}
		})
	}
}
