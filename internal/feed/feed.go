// Package feed pushes the full request snapshot to subscribers whenever the
// underlying store changes.
package feed

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/sync/singleflight"

	"github.com/xelth-com/eckdesk/internal/models"
)

var (
	subscribersGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "eckdesk_feed_subscribers",
		Help: "Live request feed subscriptions.",
	})
	deliveriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "eckdesk_feed_deliveries_total",
		Help: "Snapshot deliveries by outcome.",
	}, []string{"outcome"})
)

// DefaultLoadTimeout bounds a single snapshot load
const DefaultLoadTimeout = 15 * time.Second

// Source loads the current set of requests, ordered by date descending
type Source interface {
	Snapshot(ctx context.Context) ([]models.Request, error)
}

// Feed fans change notifications out to subscribers. Every subscriber has its own
// delivery goroutine, so its callbacks never overlap; change signals arriving while a
// delivery is in flight collapse into one follow-up delivery. Subscribers waiting on
// the same change share a single snapshot load.
type Feed struct {
	source      Source
	loadTimeout time.Duration
	ctx         context.Context
	cancel      context.CancelFunc

	loads singleflight.Group

	mu      sync.Mutex
	subs    map[uint64]*subscription
	nextID  uint64
	closed  bool
	version uint64
	last    *snapshot
}

type subscription struct {
	id     uint64
	signal chan struct{}
	ctx    context.Context
	cancel context.CancelFunc
}

// snapshot is the last successful load and the change version it reflects
type snapshot struct {
	version uint64
	records []models.Request
}

// New creates a feed over source
func New(source Source) *Feed {
	ctx, cancel := context.WithCancel(context.Background())
	return &Feed{
		source:      source,
		loadTimeout: DefaultLoadTimeout,
		ctx:         ctx,
		cancel:      cancel,
		subs:        make(map[uint64]*subscription),
	}
}

// Subscribe starts delivering snapshots: once immediately and again after every Notify.
// A load failure is passed to onError and ends the subscription. The returned function
// is idempotent, never blocks, and may be called from inside either callback.
// Delivered slices are shared between subscribers and must not be modified.
func (f *Feed) Subscribe(onSnapshot func([]models.Request), onError func(error)) func() {
	ctx, cancel := context.WithCancel(context.Background())
	sub := &subscription{
		signal: make(chan struct{}, 1),
		ctx:    ctx,
		cancel: cancel,
	}

	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		cancel()
		return func() {}
	}
	f.nextID++
	sub.id = f.nextID
	f.subs[sub.id] = sub
	f.mu.Unlock()

	subscribersGauge.Inc()
	sub.signal <- struct{}{}
	go f.deliver(sub, onSnapshot, onError)

	var once sync.Once
	return func() {
		once.Do(func() { f.remove(sub) })
	}
}

// Notify tells every subscriber that the store changed
func (f *Feed) Notify() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.version++
	for _, sub := range f.subs {
		select {
		case sub.signal <- struct{}{}:
		default:
			// a delivery is already pending
		}
	}
}

// Subscribers returns the number of live subscriptions
func (f *Feed) Subscribers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}

// Close ends every subscription without notifying the subscribers
func (f *Feed) Close() {
	f.mu.Lock()
	f.closed = true
	subs := make([]*subscription, 0, len(f.subs))
	for _, sub := range f.subs {
		subs = append(subs, sub)
	}
	f.mu.Unlock()

	for _, sub := range subs {
		f.remove(sub)
	}
	f.cancel()
}

func (f *Feed) remove(sub *subscription) {
	f.mu.Lock()
	_, ok := f.subs[sub.id]
	delete(f.subs, sub.id)
	f.mu.Unlock()

	sub.cancel()
	if ok {
		subscribersGauge.Dec()
	}
}

func (f *Feed) deliver(sub *subscription, onSnapshot func([]models.Request), onError func(error)) {
	for {
		select {
		case <-sub.ctx.Done():
			return
		case <-sub.signal:
		}

		records, err := f.current(sub.ctx)
		if sub.ctx.Err() != nil {
			return
		}
		if err != nil {
			deliveriesTotal.WithLabelValues("error").Inc()
			log.Printf("🔴 Feed: snapshot load failed, closing subscription %d: %v", sub.id, err)
			f.remove(sub)
			if onError != nil {
				onError(err)
			}
			return
		}

		deliveriesTotal.WithLabelValues("ok").Inc()
		if onSnapshot != nil {
			onSnapshot(records)
		}
	}
}

// current returns the snapshot for the latest change, reusing the last load when
// nothing changed since and joining a load already running for it otherwise.
// A failed load is not reused.
func (f *Feed) current(ctx context.Context) ([]models.Request, error) {
	f.mu.Lock()
	version := f.version
	if f.last != nil && f.last.version == version {
		records := f.last.records
		f.mu.Unlock()
		return records, nil
	}
	f.mu.Unlock()

	ch := f.loads.DoChan(strconv.FormatUint(version, 10), func() (interface{}, error) {
		return f.load(version)
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]models.Request), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (f *Feed) load(version uint64) ([]models.Request, error) {
	ctx, cancel := context.WithTimeout(f.ctx, f.loadTimeout)
	defer cancel()

	records, err := f.source.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("load request snapshot: %w", err)
	}

	f.mu.Lock()
	if f.last == nil || version >= f.last.version {
		f.last = &snapshot{version: version, records: records}
	}
	f.mu.Unlock()
	return records, nil
}
