package reporting

import (
	"errors"
	"sync"

	"github.com/xelth-com/eckdesk/internal/models"
)

// ErrNotPrivileged is returned when a caller without elevated privilege selects a category
var ErrNotPrivileged = errors.New("administrator privilege required to filter requests")

// ErrClosed is returned by a screen that has been torn down
var ErrClosed = errors.New("report screen closed")

// Feed delivers full request snapshots, ordered by date descending, until unsubscribed.
// unsubscribe must be idempotent and safe to call from inside a callback.
type Feed interface {
	Subscribe(onSnapshot func([]models.Request), onError func(error)) (unsubscribe func())
}

// Screen is one consuming view of the reporting data: it owns a feed subscription,
// the selected timeframe, the active category and the caller's privilege flag.
//
// onReport and onError are invoked with the screen's lock held so reports are
// delivered in state order; they must not call back into the Screen.
type Screen struct {
	feed       Feed
	agg        *Aggregator
	privileged bool
	onReport   func(Report)
	onError    func(error)

	mu          sync.Mutex
	timeframe   Timeframe
	filter      Filter
	gen         uint64
	active      bool
	closed      bool
	unsubscribe func()
}

// NewScreen creates a screen in its initial state (weekly, no filter) and subscribes it
func NewScreen(feed Feed, agg *Aggregator, privileged bool, onReport func(Report), onError func(error)) *Screen {
	s := &Screen{
		feed:       feed,
		agg:        agg,
		privileged: privileged,
		onReport:   onReport,
		onError:    onError,
		timeframe:  Weekly,
		filter:     FilterNone,
	}
	s.subscribe()
	return s
}

// Timeframe returns the selected timeframe
func (s *Screen) Timeframe() Timeframe {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.timeframe
}

// ActiveFilter returns the active category, FilterNone when no list is shown
func (s *Screen) ActiveFilter() Filter {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.filter
}

// SetTimeframe switches the window and emits a fresh report
func (s *Screen) SetTimeframe(tf Timeframe) error {
	if _, err := ParseTimeframe(string(tf)); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.timeframe = tf
	s.emitLocked()
	return nil
}

// SelectCategory applies the toggle transition for a category card press
func (s *Screen) SelectCategory(f Filter) error {
	if !s.privileged {
		return ErrNotPrivileged
	}
	if f == FilterNone {
		return errors.New("a category is required")
	}
	if _, err := ParseFilter(string(f)); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.filter = Select(s.filter, f)
	s.emitLocked()
	return nil
}

// ClearFilter hides the detail list
func (s *Screen) ClearFilter() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if s.filter != FilterNone {
		s.filter = FilterNone
		s.emitLocked()
	}
	return nil
}

// Cards returns the category cards for the current state
func (s *Screen) Cards() []Card {
	s.mu.Lock()
	defer s.mu.Unlock()
	return BuildCards(s.agg.Statistics(s.timeframe), s.filter, s.privileged)
}

// Retry re-subscribes after the feed reported an error. It is a no-op while
// a subscription is live.
func (s *Screen) Retry() error {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return ErrClosed
	}
	s.subscribe()
	return nil
}

// Close releases the feed subscription. No report is emitted afterwards.
func (s *Screen) Close() {
	s.mu.Lock()
	s.closed = true
	s.active = false
	unsubscribe := s.unsubscribe
	s.unsubscribe = nil
	s.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
}

func (s *Screen) subscribe() {
	s.mu.Lock()
	if s.closed || s.active {
		s.mu.Unlock()
		return
	}
	s.gen++
	gen := s.gen
	s.active = true
	s.mu.Unlock()

	unsubscribe := s.feed.Subscribe(
		func(records []models.Request) { s.handleSnapshot(gen, records) },
		func(err error) { s.handleError(gen, err) },
	)

	s.mu.Lock()
	stale := s.closed || s.gen != gen || !s.active
	if !stale {
		s.unsubscribe = unsubscribe
	}
	s.mu.Unlock()

	if stale {
		unsubscribe()
	}
}

func (s *Screen) handleSnapshot(gen uint64, records []models.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || gen != s.gen || !s.active {
		return
	}
	s.agg.Update(records)
	s.emitLocked()
}

func (s *Screen) handleError(gen uint64, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || gen != s.gen || !s.active {
		return
	}
	s.active = false
	unsubscribe := s.unsubscribe
	s.unsubscribe = nil
	if unsubscribe != nil {
		unsubscribe()
	}
	if s.onError != nil {
		s.onError(err)
	}
}

func (s *Screen) emitLocked() {
	if s.onReport == nil {
		return
	}
	s.onReport(s.agg.Report(s.timeframe, s.filter, s.privileged))
}
