package interfaces

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	report "building-energy/internal/report/application"
)

const (
	MessageReport = "report"
	MessageRun    = "run"

	clientBuffer = 16
	writeTimeout = 10 * time.Second
)

// Envelope is the websocket message frame.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// NewEnvelope encodes payload under msgType.
func NewEnvelope(msgType string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Type: msgType, Payload: raw})
}

// RunEvent announces a finished pipeline run.
type RunEvent struct {
	RunID       string    `json:"runId"`
	GeneratedAt time.Time `json:"generatedAt"`
	Stale       bool      `json:"stale"`
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

func (c *client) writePump() {
	defer c.conn.Close()
	for msg := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
}

// Hub fans report updates out to dashboard clients.
type Hub struct {
	mu      sync.RWMutex
	clients map[*client]struct{}
	logger  *log.Logger
}

// NewHub constructs a hub.
func NewHub(logger *log.Logger) *Hub {
	if logger == nil {
		logger = log.Default()
	}
	return &Hub{clients: make(map[*client]struct{}), logger: logger}
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = struct{}{}
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
}

// Broadcast queues msg for every client; slow clients drop it.
func (h *Hub) Broadcast(msg []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
			h.logger.Printf("report stream: client buffer full, dropping message")
		}
	}
}

// Publish sends the run event followed by the report.
func (h *Hub) Publish(ctx context.Context, runID string, rep *report.Report, stale bool) error {
	if rep == nil {
		return nil
	}
	event, err := NewEnvelope(MessageRun, RunEvent{RunID: runID, GeneratedAt: rep.GeneratedAt, Stale: stale})
	if err != nil {
		return err
	}
	body, err := NewEnvelope(MessageReport, rep)
	if err != nil {
		return err
	}
	h.Broadcast(event)
	h.Broadcast(body)
	return nil
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// StreamHandler upgrades /api/v1/report/stream and sends the latest report on connect.
type StreamHandler struct {
	hub      *Hub
	reports  report.Repository
	upgrader websocket.Upgrader
}

// NewStreamHandler constructs a stream handler. reports may be nil.
func NewStreamHandler(hub *Hub, reports report.Repository) *StreamHandler {
	return &StreamHandler{
		hub:     hub,
		reports: reports,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

func (h *StreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.hub.logger.Printf("report stream upgrade error: err=%v", err)
		return
	}
	c := &client{conn: conn, send: make(chan []byte, clientBuffer)}
	h.hub.register(c)
	go c.writePump()

	if h.reports != nil {
		if latest, err := h.reports.Latest(r.Context()); err == nil {
			if msg, err := NewEnvelope(MessageReport, latest); err == nil {
				c.send <- msg
			}
		}
	}

	defer h.hub.unregister(c)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.hub.logger.Printf("report stream read error: err=%v", err)
			}
			return
		}
	}
}
