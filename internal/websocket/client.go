package websocket

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/xelth-com/eckdesk/internal/reporting"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 4 * 1024
)

// Message types
const (
	TypeSetTimeframe   = "SET_TIMEFRAME"
	TypeSelectCategory = "SELECT_CATEGORY"
	TypeClearFilter    = "CLEAR_FILTER"
	TypeRetry          = "RETRY"

	TypeReport         = "REPORT"
	TypeError          = "ERROR"
	TypeRequestChanged = "REQUEST_CHANGED"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The token query parameter authenticates the socket
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Client is a middleman between the websocket connection and the hub.
// Each client owns one live report screen.
type Client struct {
	hub *Hub

	// The websocket connection.
	conn *websocket.Conn

	// Buffered channel of outbound messages. It is never closed; done ends the write pump.
	send chan []byte

	done      chan struct{}
	closeOnce sync.Once

	screen *reporting.Screen

	ID     string
	UserID string
}

// Inbound is a message from the browser
type Inbound struct {
	Type      string `json:"type"`
	Timeframe string `json:"timeframe,omitempty"`
	Filter    string `json:"filter,omitempty"`
}

// ReportMessage carries a full report
type ReportMessage struct {
	Type string `json:"type"`
	reporting.Report
}

// ErrorMessage reports a failed command or a lost feed
type ErrorMessage struct {
	Type      string `json:"type"`
	Error     string `json:"error"`
	Retryable bool   `json:"retryable,omitempty"`
}

// Event is a server-initiated notification without payload beyond its fields
type Event struct {
	Type      string `json:"type"`
	RequestID string `json:"requestId,omitempty"`
	Action    string `json:"action,omitempty"`
}

// Session describes what a new connection may see
type Session struct {
	UserID     string
	Privileged bool
}

// readPump pumps commands from the websocket connection to the client's screen.
func (c *Client) readPump() {
	defer func() {
		c.screen.Close()
		c.hub.remove(c)
		c.close()
		c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error { c.conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WS error: %v", err)
			}
			break
		}

		var msg Inbound
		if err := json.Unmarshal(message, &msg); err != nil {
			c.sendError(errors.New("invalid message"), false)
			continue
		}
		if err := c.handle(msg); err != nil {
			c.sendError(err, false)
		}
	}
}

func (c *Client) handle(msg Inbound) error {
	switch msg.Type {
	case TypeSetTimeframe:
		tf, err := reporting.ParseTimeframe(msg.Timeframe)
		if err != nil {
			return err
		}
		return c.screen.SetTimeframe(tf)
	case TypeSelectCategory:
		f, err := reporting.ParseFilter(msg.Filter)
		if err != nil {
			return err
		}
		if f == reporting.FilterNone {
			return c.screen.ClearFilter()
		}
		return c.screen.SelectCategory(f)
	case TypeClearFilter:
		return c.screen.ClearFilter()
	case TypeRetry:
		return c.screen.Retry()
	default:
		return errors.New("unknown message type " + msg.Type)
	}
}

// writePump pumps messages from the hub to the websocket connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		case message := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// queue serializes v onto the send buffer without blocking
func (c *Client) queue(v interface{}) {
	msg, err := json.Marshal(v)
	if err != nil {
		log.Printf("Error marshaling message: %v", err)
		return
	}
	select {
	case <-c.done:
	case c.send <- msg:
	default:
		log.Printf("⚠️ Send buffer full for client %s", c.ID)
	}
}

func (c *Client) close() {
	c.closeOnce.Do(func() { close(c.done) })
}

func (c *Client) sendError(err error, retryable bool) {
	c.queue(ErrorMessage{Type: TypeError, Error: err.Error(), Retryable: retryable})
}

// ServeReports upgrades the request and opens a live report session backed by feed.
// agg must be private to this session.
func ServeReports(hub *Hub, feed reporting.Feed, agg *reporting.Aggregator, s Session, w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Println(err)
		return
	}

	client := &Client{
		hub:    hub,
		conn:   conn,
		send:   make(chan []byte, 256),
		done:   make(chan struct{}),
		ID:     "ws_" + uuid.New().String(),
		UserID: s.UserID,
	}

	client.screen = reporting.NewScreen(feed, agg, s.Privileged,
		func(rep reporting.Report) {
			client.queue(ReportMessage{Type: TypeReport, Report: rep})
		},
		func(err error) {
			log.Printf("⚠️ Report feed failed for %s: %v", client.ID, err)
			client.sendError(err, true)
		},
	)
	if !hub.add(client) {
		client.screen.Close()
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}
