package reporting

import (
	"testing"
	"time"

	"github.com/xelth-com/eckdesk/internal/models"
)

var testNow = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

func at(d time.Duration) *time.Time {
	t := testNow.Add(-d)
	return &t
}

func req(id, status, priority string, date *time.Time) models.Request {
	return models.Request{ID: id, Status: status, Priority: priority, Date: date}
}

const day = 24 * time.Hour

func sampleSnapshot() []models.Request {
	// descending by date, as the feed delivers it
	return []models.Request{
		req("r1", models.StatusOpen, models.PriorityHigh, at(0)),
		req("r2", models.StatusClosed, models.PriorityLow, at(1*day)),
		req("r3", models.StatusOnHold, "HIGH", at(2*day)),
		req("r4", models.StatusResolved, models.PriorityMedium, at(3*day)),
		req("r5", models.StatusUnassigned, "high [whatever]", at(6*day)),
		req("r6", models.StatusOpen, models.PriorityLow, at(10*day)),
		req("r7", models.StatusClosed, models.PriorityHigh, at(29*day)),
		req("r8", models.StatusOpen, models.PriorityHigh, at(40*day)),
		req("r9", models.StatusOpen, models.PriorityHigh, nil),
	}
}

func TestComputeStatisticsEmpty(t *testing.T) {
	for _, tf := range []Timeframe{Weekly, Monthly} {
		if got := ComputeStatistics(nil, tf, testNow); got != (Stats{}) {
			t.Errorf("%s: expected zero stats, got %+v", tf, got)
		}
		if got := ComputeStatistics([]models.Request{}, tf, testNow); got != (Stats{}) {
			t.Errorf("%s: expected zero stats for empty snapshot, got %+v", tf, got)
		}
	}
}

func TestComputeStatisticsWindows(t *testing.T) {
	snapshot := sampleSnapshot()

	weekly := ComputeStatistics(snapshot, Weekly, testNow)
	wantWeekly := Stats{Total: 5, Open: 1, Closed: 1, Resolved: 1, Unassigned: 1, HighPriority: 3}
	if weekly != wantWeekly {
		t.Errorf("weekly = %+v, want %+v", weekly, wantWeekly)
	}

	monthly := ComputeStatistics(snapshot, Monthly, testNow)
	wantMonthly := Stats{Total: 7, Open: 2, Closed: 2, Resolved: 1, Unassigned: 1, HighPriority: 4}
	if monthly != wantMonthly {
		t.Errorf("monthly = %+v, want %+v", monthly, wantMonthly)
	}
}

func TestStatusBucketsNeverExceedTotal(t *testing.T) {
	for _, tf := range []Timeframe{Weekly, Monthly} {
		s := ComputeStatistics(sampleSnapshot(), tf, testNow)
		if s.Open+s.Closed+s.Resolved+s.Unassigned > s.Total {
			t.Errorf("%s: status buckets exceed total: %+v", tf, s)
		}
	}

	// an "On Hold" request counts toward total only
	s := ComputeStatistics([]models.Request{req("x", models.StatusOnHold, models.PriorityLow, at(0))}, Weekly, testNow)
	if s.Total != 1 || s.Open+s.Closed+s.Resolved+s.Unassigned != 0 {
		t.Errorf("unexpected stats for On Hold request: %+v", s)
	}
}

func TestHighPriorityMatching(t *testing.T) {
	cases := []struct {
		priority string
		want     bool
	}{
		{"HIGH", true},
		{"High", true},
		{"high [whatever suffix]", true},
		{models.PriorityHigh, true},
		{"medium", false},
		{models.PriorityMedium, false},
		{models.PriorityLow, false},
		{"", false},
		{"Higher-than-usual", false},
		{"High[Org]", true},
		{"  high  ", true},
		{"High priority", false},
		{"high - urgent", false},
		{"highest", false},
	}

	for _, tc := range cases {
		r := req("x", models.StatusOpen, tc.priority, at(0))
		if got := FilterHighPriority.Matches(&r); got != tc.want {
			t.Errorf("priority %q: got %v, want %v", tc.priority, got, tc.want)
		}
	}
}

func TestStatusMatchingIsCaseSensitive(t *testing.T) {
	r := req("x", "open", models.PriorityLow, at(0))
	if FilterOpen.Matches(&r) {
		t.Error("lower-case status must not match Open")
	}
	if !FilterTotal.Matches(&r) {
		t.Error("total matches every request")
	}
	if FilterNone.Matches(&r) {
		t.Error("no filter matches nothing")
	}
}

func TestWindowBoundary(t *testing.T) {
	justOutside := req("a", models.StatusOpen, models.PriorityLow, at(7*day+time.Second))
	sixDays := req("b", models.StatusOpen, models.PriorityLow, at(6*day))
	exactEdge := req("c", models.StatusOpen, models.PriorityLow, at(7*day))

	if InWindow(&justOutside, Weekly, testNow) {
		t.Error("now-7d-1s must be outside the weekly window")
	}
	if !InWindow(&justOutside, Monthly, testNow) {
		t.Error("now-7d-1s must be inside the monthly window")
	}
	if !InWindow(&sixDays, Weekly, testNow) || !InWindow(&sixDays, Monthly, testNow) {
		t.Error("now-6d must be inside both windows")
	}
	if !InWindow(&exactEdge, Weekly, testNow) {
		t.Error("the window start is inclusive")
	}
}

func TestMissingDateExcluded(t *testing.T) {
	snapshot := []models.Request{
		req("nil", models.StatusOpen, models.PriorityHigh, nil),
		req("zero", models.StatusOpen, models.PriorityHigh, &time.Time{}),
	}
	if s := ComputeStatistics(snapshot, Monthly, testNow); s != (Stats{}) {
		t.Errorf("records without a usable date must be excluded, got %+v", s)
	}
	if l := ComputeFilteredList(snapshot, Monthly, FilterTotal, testNow); len(l) != 0 {
		t.Errorf("records without a usable date must not be listed, got %d", len(l))
	}
}

func TestSelectToggle(t *testing.T) {
	state := FilterNone
	state = Select(state, FilterOpen)
	if state != FilterOpen {
		t.Fatalf("expected open, got %q", state)
	}
	state = Select(state, FilterOpen)
	if state != FilterNone {
		t.Fatalf("selecting the active category twice must clear it, got %q", state)
	}

	state = Select(Select(FilterNone, FilterOpen), FilterClosed)
	if state != FilterClosed {
		t.Errorf("selecting another category must switch to it, got %q", state)
	}
}

func TestFilteredListConsistency(t *testing.T) {
	snapshot := sampleSnapshot()

	for _, tf := range []Timeframe{Weekly, Monthly} {
		stats := ComputeStatistics(snapshot, tf, testNow)
		for _, f := range Categories {
			list := ComputeFilteredList(snapshot, tf, f, testNow)
			if len(list) != stats.Count(f) {
				t.Errorf("%s/%s: list has %d items, stats say %d", tf, f, len(list), stats.Count(f))
			}
			for i := range list {
				if !f.Matches(&list[i]) || !InWindow(&list[i], tf, testNow) {
					t.Errorf("%s/%s: %s does not belong in the list", tf, f, list[i].ID)
				}
			}
		}
	}
}

func TestFilteredListPreservesOrder(t *testing.T) {
	list := ComputeFilteredList(sampleSnapshot(), Monthly, FilterTotal, testNow)
	for i := 1; i < len(list); i++ {
		if list[i].Date.After(*list[i-1].Date) {
			t.Fatalf("list out of order at %d: %s after %s", i, list[i].ID, list[i-1].ID)
		}
	}
	if len(list) == 0 || list[0].ID != "r1" {
		t.Errorf("expected r1 first, got %+v", list)
	}
}

func TestFilteredListNone(t *testing.T) {
	list := ComputeFilteredList(sampleSnapshot(), Weekly, FilterNone, testNow)
	if list == nil || len(list) != 0 {
		t.Errorf("expected an empty, non-nil list, got %v", list)
	}
}

func TestFilteredListDoesNotMutateSnapshot(t *testing.T) {
	snapshot := sampleSnapshot()
	list := ComputeFilteredList(snapshot, Weekly, FilterOpen, testNow)
	list[0].Status = models.StatusClosed

	if snapshot[0].Status != models.StatusOpen {
		t.Error("modifying the list must not touch the snapshot")
	}
}

func TestExampleScenario(t *testing.T) {
	snapshot := []models.Request{
		req("a", models.StatusOpen, "High", at(0)),
		req("b", models.StatusClosed, "Low", at(40*day)),
	}

	got := ComputeStatistics(snapshot, Weekly, testNow)
	want := Stats{Total: 1, Open: 1, HighPriority: 1}
	if got != want {
		t.Errorf("stats = %+v, want %+v", got, want)
	}

	if l := ComputeFilteredList(snapshot, Weekly, FilterClosed, testNow); len(l) != 0 {
		t.Errorf("closed list should be empty, got %d", len(l))
	}
}

func TestParseTimeframeAndFilter(t *testing.T) {
	if tf, err := ParseTimeframe(""); err != nil || tf != Weekly {
		t.Errorf("empty timeframe should default to weekly, got %q %v", tf, err)
	}
	if _, err := ParseTimeframe("daily"); err == nil {
		t.Error("daily is not a timeframe")
	}
	if f, err := ParseFilter("highPriority"); err != nil || f != FilterHighPriority {
		t.Errorf("unexpected filter parse: %q %v", f, err)
	}
	if _, err := ParseFilter("pending"); err == nil {
		t.Error("pending is not a filter")
	}
}
