package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/xelth-com/eckdesk/internal/models"
	"github.com/xelth-com/eckdesk/internal/reporting"
)

type staticFeed struct {
	records []models.Request
}

func (f staticFeed) Subscribe(onSnapshot func([]models.Request), _ func(error)) func() {
	onSnapshot(f.records)
	return func() {}
}

type received struct {
	Type      string            `json:"type"`
	Timeframe string            `json:"timeframe"`
	Filter    string            `json:"filter"`
	Stats     reporting.Stats   `json:"stats"`
	Requests  []json.RawMessage `json:"requests"`
	Error     string            `json:"error"`
	RequestID string            `json:"requestId"`
}

func ago(d time.Duration) *time.Time {
	t := time.Now().Add(-d)
	return &t
}

func startServer(t *testing.T) (*Hub, string) {
	t.Helper()
	feed := staticFeed{records: []models.Request{
		{ID: "a", Status: models.StatusOpen, Priority: models.PriorityHigh, Date: ago(time.Hour)},
		{ID: "b", Status: models.StatusClosed, Priority: models.PriorityLow, Date: ago(10 * 24 * time.Hour)},
	}}

	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s := Session{UserID: "u1", Privileged: r.URL.Query().Get("admin") == "1"}
		ServeReports(hub, feed, reporting.NewAggregator(0, 0), s, w, r)
	}))
	t.Cleanup(func() {
		srv.Close()
		cancel()
	})
	return hub, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func read(t *testing.T, conn *websocket.Conn) received {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	var msg received
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read: %v", err)
	}
	return msg
}

func TestReportSession(t *testing.T) {
	_, url := startServer(t)
	conn := dial(t, url+"?admin=1")

	initial := read(t, conn)
	if initial.Type != TypeReport || initial.Timeframe != "weekly" || initial.Stats.Total != 1 {
		t.Fatalf("unexpected initial report %+v", initial)
	}

	conn.WriteJSON(Inbound{Type: TypeSetTimeframe, Timeframe: "monthly"})
	monthly := read(t, conn)
	if monthly.Timeframe != "monthly" || monthly.Stats.Total != 2 || monthly.Stats.Closed != 1 {
		t.Fatalf("unexpected monthly report %+v", monthly)
	}

	conn.WriteJSON(Inbound{Type: TypeSelectCategory, Filter: "closed"})
	filtered := read(t, conn)
	if filtered.Filter != "closed" || len(filtered.Requests) != 1 {
		t.Fatalf("unexpected filtered report %+v", filtered)
	}

	// Selecting the active category again hides the list
	conn.WriteJSON(Inbound{Type: TypeSelectCategory, Filter: "closed"})
	cleared := read(t, conn)
	if cleared.Filter != "" || len(cleared.Requests) != 0 {
		t.Fatalf("expected the list to be hidden, got %+v", cleared)
	}
}

func TestUnprivilegedSessionCannotFilter(t *testing.T) {
	_, url := startServer(t)
	conn := dial(t, url)
	read(t, conn)

	conn.WriteJSON(Inbound{Type: TypeSelectCategory, Filter: "open"})
	msg := read(t, conn)
	if msg.Type != TypeError || msg.Error != reporting.ErrNotPrivileged.Error() {
		t.Fatalf("expected a privilege error, got %+v", msg)
	}

	conn.WriteJSON(Inbound{Type: "NOPE"})
	if msg := read(t, conn); msg.Type != TypeError {
		t.Fatalf("expected an error for an unknown type, got %+v", msg)
	}
}

func TestBroadcast(t *testing.T) {
	hub, url := startServer(t)
	conn := dial(t, url)
	read(t, conn)

	deadline := time.Now().Add(2 * time.Second)
	for hub.Clients() != 1 {
		if time.Now().After(deadline) {
			t.Fatal("client never registered")
		}
		time.Sleep(10 * time.Millisecond)
	}

	hub.Broadcast(Event{Type: TypeRequestChanged, RequestID: "a", Action: models.ActionUpdated})
	msg := read(t, conn)
	if msg.Type != TypeRequestChanged || msg.RequestID != "a" {
		t.Fatalf("unexpected broadcast %+v", msg)
	}
}
