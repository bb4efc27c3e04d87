// Package surface serves the control surface over WebSocket. The Hub
// fans session pushes out to every connected client; the Server accepts
// clients and feeds their events back to the session.
package surface

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"recorder/internal/calllog"
	"recorder/internal/codegen"
	"recorder/internal/logging"
	"recorder/internal/protocol"
)

// ErrBufferFull is returned when a client cannot keep up with pushes.
var ErrBufferFull = errors.New("client send buffer full")

const sendBuffer = 256

// client is one connected control surface.
type client struct {
	id   string
	conn *websocket.Conn
	send chan []byte

	mu     sync.Mutex
	closed bool
}

func (c *client) write(messageType int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteMessage(messageType, data)
}

// Hub holds the connected clients. It implements protocol.Surface.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*client
}

var _ protocol.Surface = (*Hub)(nil)

func NewHub() *Hub {
	return &Hub{clients: make(map[string]*client)}
}

func (h *Hub) newClient(conn *websocket.Conn) *client {
	return &client{id: uuid.NewString(), conn: conn, send: make(chan []byte, sendBuffer)}
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	h.clients[c.id] = c
	n := len(h.clients)
	h.mu.Unlock()
	metricClients.Set(float64(n))
	logging.Surface("client %s connected (%d total)", c.id, n)
}

// unregister removes c and closes its send queue. It is safe to call more
// than once.
func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	_, ok := h.clients[c.id]
	if ok {
		delete(h.clients, c.id)
		c.mu.Lock()
		if !c.closed {
			c.closed = true
			close(c.send)
		}
		c.mu.Unlock()
	}
	n := len(h.clients)
	h.mu.Unlock()
	if !ok {
		return
	}
	metricClients.Set(float64(n))
	logging.Surface("client %s disconnected (%d left)", c.id, n)
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast queues msg on every client. Clients whose queue is full are
// dropped.
func (h *Hub) Broadcast(msg protocol.Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	var slow []*client
	h.mu.RLock()
	for _, c := range h.clients {
		select {
		case c.send <- data:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		logging.SurfaceWarn("client %s is not keeping up, disconnecting", c.id)
		h.unregister(c)
	}
	metricPushes.WithLabelValues(msg.Method).Inc()
	return nil
}

// sendTo queues msg on a single client.
func (h *Hub) sendTo(c *client, msg protocol.Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	select {
	case c.send <- data:
		return nil
	default:
		return ErrBufferFull
	}
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.RLock()
	all := make([]*client, 0, len(h.clients))
	for _, c := range h.clients {
		all = append(all, c)
	}
	h.mu.RUnlock()

	deadline := time.Now().Add(time.Second)
	for _, c := range all {
		msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "recorder shutting down")
		c.mu.Lock()
		_ = c.conn.WriteControl(websocket.CloseMessage, msg, deadline)
		c.mu.Unlock()
		h.unregister(c)
	}
}

func (h *Hub) SetMode(mode protocol.Mode) error { return h.Broadcast(protocol.SetModeMessage(mode)) }
func (h *Hub) SetPaused(paused bool) error      { return h.Broadcast(protocol.SetPausedMessage(paused)) }
func (h *Hub) SelectSource(id string) error     { return h.Broadcast(protocol.SelectSourceMessage(id)) }
func (h *Hub) SetPageURL(url string) error      { return h.Broadcast(protocol.SetPageURLMessage(url)) }

func (h *Hub) SetSources(sources []codegen.Source) error {
	return h.Broadcast(protocol.SetSourcesMessage(sources))
}

func (h *Hub) ElementPicked(info protocol.ElementInfo, userGesture bool) error {
	return h.Broadcast(protocol.ElementPickedMessage(info, userGesture))
}

func (h *Hub) UpdateCallLogs(entries []calllog.Entry) error {
	return h.Broadcast(protocol.UpdateCallLogsMessage(entries))
}

func (h *Hub) ArbitraryCommandResult(result protocol.CommandResult) error {
	return h.Broadcast(protocol.ArbitraryCommandResultMessage(result))
}
