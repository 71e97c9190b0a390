package websocket

import (
	"banksim/internal/database"
	"banksim/internal/models"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const (
	// sendBuffer is how many messages a client may fall behind before it is
	// disconnected.
	sendBuffer = 1024
	writeWait  = 10 * time.Second
)

// message is the envelope every client receives
type message struct {
	Kind    string             `json:"kind"` // snapshot, event or run
	Event   *models.Event      `json:"event,omitempty"`
	Run     *models.RunResult  `json:"run,omitempty"`
	Runs    []models.RunResult `json:"runs,omitempty"`
	Metrics *models.Metrics    `json:"metrics,omitempty"`
}

// client is one connection and its outbound queue. Only writePump writes to
// conn, so every client sees messages in broadcast order.
type client struct {
	conn *websocket.Conn
	send chan message
}

// Manager manages WebSocket connections and broadcasts
type Manager struct {
	clients   map[*client]struct{}
	clientsMu sync.Mutex
	db        *database.DB
	log       logrus.FieldLogger
}

// New creates a new WebSocket manager. db may be nil when results are not stored.
func New(db *database.DB, log logrus.FieldLogger) *Manager {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Manager{
		clients: make(map[*client]struct{}),
		db:      db,
		log:     log,
	}
}

// AddClient adds a new WebSocket client
func (m *Manager) AddClient(conn *websocket.Conn) {
	c := &client{conn: conn, send: make(chan message, sendBuffer)}

	// Send initial data ahead of any broadcast
	c.send <- m.snapshot()

	m.clientsMu.Lock()
	m.clients[c] = struct{}{}
	total := len(m.clients)
	m.clientsMu.Unlock()

	m.log.Infof("[WEBSOCKET] New client connected. Total clients: %d", total)

	go m.writePump(c)

	// Handle disconnection
	go func() {
		defer m.remove(c)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

// Broadcast sends a simulation event to all connected clients
func (m *Manager) Broadcast(e models.Event) {
	m.broadcast(message{Kind: "event", Event: &e})
}

// BroadcastRun sends a finished run to all connected clients
func (m *Manager) BroadcastRun(run *models.RunResult) {
	m.broadcast(message{Kind: "run", Run: run})
}

func (m *Manager) broadcast(msg message) {
	m.clientsMu.Lock()
	defer m.clientsMu.Unlock()

	for c := range m.clients {
		select {
		case c.send <- msg:
		default:
			m.log.Warnf("[WEBSOCKET] Client too slow, %d messages pending; disconnecting", len(c.send))
			m.removeLocked(c)
		}
	}
}

// snapshot builds the stored history sent to a new client
func (m *Manager) snapshot() message {
	msg := message{Kind: "snapshot"}
	if m.db == nil {
		return msg
	}
	runs, err := m.db.ListRuns("", 20)
	if err != nil {
		m.log.Errorf("[WEBSOCKET] Failed to load runs: %v", err)
	}
	metrics, err := m.db.GetMetrics()
	if err != nil {
		m.log.Errorf("[WEBSOCKET] Failed to load metrics: %v", err)
	}
	msg.Runs, msg.Metrics = runs, metrics
	return msg
}

// writePump drains c.send until the client is removed
func (m *Manager) writePump(c *client) {
	defer c.conn.Close()

	for msg := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteJSON(msg); err != nil {
			m.log.Errorf("[WEBSOCKET] Failed to send update: %v", err)
			m.remove(c)
			return
		}
	}
}

func (m *Manager) remove(c *client) {
	m.clientsMu.Lock()
	defer m.clientsMu.Unlock()
	m.removeLocked(c)
}

// removeLocked unregisters c and closes its queue. It is a no-op for a client
// that is already gone. clientsMu must be held.
func (m *Manager) removeLocked(c *client) {
	if _, ok := m.clients[c]; !ok {
		return
	}
	delete(m.clients, c)
	close(c.send)
	m.log.Infof("[WEBSOCKET] Client disconnected. Total clients: %d", len(m.clients))
}

// ClientCount returns the number of connected clients
func (m *Manager) ClientCount() int {
	m.clientsMu.Lock()
	defer m.clientsMu.Unlock()
	return len(m.clients)
}
