package reporting

import (
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/xelth-com/eckdesk/internal/models"
)

var (
	recomputationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "eckdesk_report_recomputations_total",
		Help: "Full passes over a request snapshot, by result kind.",
	}, []string{"kind"})
	memoHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "eckdesk_report_memo_hits_total",
		Help: "Report results served from the memo cache.",
	})
	snapshotsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "eckdesk_report_snapshots_total",
		Help: "Request snapshots received by aggregators.",
	})
)

// Aggregator holds the latest request snapshot and memoizes the derived results.
//
// Results are keyed on (snapshot version, timeframe[, filter]); the TTL bounds how
// long a result may lag behind the sliding window. A filtered entry carries the
// statistics computed at the same instant so a report's counts and list agree.
type Aggregator struct {
	mu       sync.RWMutex
	snapshot []models.Request
	version  uint64

	memo *expirable.LRU[string, result]

	now func() time.Time
}

type result struct {
	stats Stats
	list  []models.Request
}

// NewAggregator creates an aggregator. cacheSize <= 0 disables memoization.
func NewAggregator(cacheSize int, ttl time.Duration) *Aggregator {
	a := &Aggregator{now: time.Now}
	if cacheSize > 0 {
		a.memo = expirable.NewLRU[string, result](cacheSize, nil, ttl)
	}
	return a
}

// Update replaces the snapshot wholesale
func (a *Aggregator) Update(snapshot []models.Request) {
	records := make([]models.Request, len(snapshot))
	copy(records, snapshot)

	a.mu.Lock()
	a.snapshot = records
	a.version++
	a.mu.Unlock()

	if a.memo != nil {
		a.memo.Purge()
	}
	snapshotsTotal.Inc()
}

// Len returns the number of records in the current snapshot
func (a *Aggregator) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.snapshot)
}

// Statistics returns the windowed counts for the current snapshot
func (a *Aggregator) Statistics(tf Timeframe) Stats {
	return a.compute(tf, FilterNone).stats
}

// FilteredList returns the active category's detail list for the current snapshot.
// The returned slice is shared with the memo cache and must not be modified.
func (a *Aggregator) FilteredList(tf Timeframe, f Filter) []models.Request {
	return a.compute(tf, f).list
}

// Report assembles statistics, cards and the detail list in one response
func (a *Aggregator) Report(tf Timeframe, f Filter, privileged bool) Report {
	r := a.compute(tf, f)
	return Report{
		Timeframe:   tf,
		Filter:      f,
		Stats:       r.stats,
		Cards:       BuildCards(r.stats, f, privileged),
		ListTitle:   ListTitle(f),
		Requests:    r.list,
		GeneratedAt: a.now().UTC(),
	}
}

func (a *Aggregator) compute(tf Timeframe, f Filter) result {
	a.mu.RLock()
	snapshot, version := a.snapshot, a.version
	a.mu.RUnlock()

	key := fmt.Sprintf("%d|%s|%s", version, tf, f)
	if a.memo != nil {
		if r, ok := a.memo.Get(key); ok {
			memoHitsTotal.Inc()
			return r
		}
	}

	now := a.now()
	r := result{
		stats: ComputeStatistics(snapshot, tf, now),
		list:  ComputeFilteredList(snapshot, tf, f, now),
	}
	recomputationsTotal.WithLabelValues(kindOf(f)).Inc()

	if a.memo != nil {
		a.memo.Add(key, r)
	}
	return r
}

func kindOf(f Filter) string {
	if f == FilterNone {
		return "statistics"
	}
	return "list"
}
