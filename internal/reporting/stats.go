// Package reporting derives the reporting screen's windowed statistics and the
// category detail list from a live snapshot of every request.
//
// All computation is a full pass over the latest snapshot; nothing is carried over
// from earlier snapshots apart from memoized results keyed on the snapshot version.
package reporting

import (
	"fmt"
	"time"

	"github.com/xelth-com/eckdesk/internal/models"
)

// Timeframe selects the trailing window statistics are computed over
type Timeframe string

const (
	Weekly  Timeframe = "weekly"
	Monthly Timeframe = "monthly"
)

// Window returns the length of the trailing period
func (tf Timeframe) Window() time.Duration {
	if tf == Monthly {
		return 30 * 24 * time.Hour
	}
	return 7 * 24 * time.Hour
}

// ParseTimeframe accepts "weekly" or "monthly"; an empty string means weekly
func ParseTimeframe(s string) (Timeframe, error) {
	switch Timeframe(s) {
	case "", Weekly:
		return Weekly, nil
	case Monthly:
		return Monthly, nil
	}
	return "", fmt.Errorf("unknown timeframe %q", s)
}

// Filter is the active category of the detail list. FilterNone means no list.
type Filter string

const (
	FilterNone         Filter = ""
	FilterTotal        Filter = "total"
	FilterOpen         Filter = "open"
	FilterClosed       Filter = "closed"
	FilterResolved     Filter = "resolved"
	FilterUnassigned   Filter = "unassigned"
	FilterHighPriority Filter = "highPriority"
)

// Categories lists the six countable groupings in card order
var Categories = []Filter{
	FilterTotal,
	FilterOpen,
	FilterClosed,
	FilterResolved,
	FilterUnassigned,
	FilterHighPriority,
}

// ParseFilter accepts a category name; an empty string is FilterNone
func ParseFilter(s string) (Filter, error) {
	f := Filter(s)
	if f == FilterNone {
		return FilterNone, nil
	}
	for _, c := range Categories {
		if c == f {
			return f, nil
		}
	}
	return "", fmt.Errorf("unknown filter %q", s)
}

// Select is the category toggle: selecting the active category clears it,
// selecting any other category activates that one.
func Select(current, selected Filter) Filter {
	if current == selected {
		return FilterNone
	}
	return selected
}

// Matches reports whether a request belongs to the category.
// FilterTotal matches everything, FilterNone matches nothing.
func (f Filter) Matches(r *models.Request) bool {
	switch f {
	case FilterTotal:
		return true
	case FilterOpen:
		return r.Status == models.StatusOpen
	case FilterClosed:
		return r.Status == models.StatusClosed
	case FilterResolved:
		return r.Status == models.StatusResolved
	case FilterUnassigned:
		return r.Status == models.StatusUnassigned
	case FilterHighPriority:
		return models.PriorityLevel(r.Priority) == "high"
	}
	return false
}

// Stats holds the six windowed category counts
type Stats struct {
	Total        int `json:"total"`
	Open         int `json:"open"`
	Closed       int `json:"closed"`
	Resolved     int `json:"resolved"`
	Unassigned   int `json:"unassigned"`
	HighPriority int `json:"highPriority"`
}

// Count returns the count for a category
func (s Stats) Count(f Filter) int {
	switch f {
	case FilterTotal:
		return s.Total
	case FilterOpen:
		return s.Open
	case FilterClosed:
		return s.Closed
	case FilterResolved:
		return s.Resolved
	case FilterUnassigned:
		return s.Unassigned
	case FilterHighPriority:
		return s.HighPriority
	}
	return 0
}

// InWindow reports whether the request has a usable date no older than now minus the window
func InWindow(r *models.Request, tf Timeframe, now time.Time) bool {
	d, ok := UsableDate(r.Date)
	if !ok {
		return false
	}
	return !d.Before(now.Add(-tf.Window()))
}

// ComputeStatistics counts the windowed requests per category
func ComputeStatistics(snapshot []models.Request, tf Timeframe, now time.Time) Stats {
	var s Stats
	for i := range snapshot {
		r := &snapshot[i]
		if !InWindow(r, tf, now) {
			continue
		}
		s.Total++
		switch {
		case FilterOpen.Matches(r):
			s.Open++
		case FilterClosed.Matches(r):
			s.Closed++
		case FilterResolved.Matches(r):
			s.Resolved++
		case FilterUnassigned.Matches(r):
			s.Unassigned++
		}
		if FilterHighPriority.Matches(r) {
			s.HighPriority++
		}
	}
	return s
}

// ComputeFilteredList returns the windowed requests of the active category in snapshot order
func ComputeFilteredList(snapshot []models.Request, tf Timeframe, f Filter, now time.Time) []models.Request {
	out := []models.Request{}
	if f == FilterNone {
		return out
	}
	for i := range snapshot {
		r := &snapshot[i]
		if InWindow(r, tf, now) && f.Matches(r) {
			out = append(out, *r)
		}
	}
	return out
}
