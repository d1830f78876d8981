package ws

import (
	"sync"

	"github.com/gorilla/websocket"
)

// Client wraps a registered connection with a write lock.
// gorilla/websocket permits at most one concurrent writer per connection,
// and writes arrive from both the socket's reader loop and the outbox
// worker goroutine, so every write must go through Send.
type Client struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (c *Client) Send(payload any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(payload)
}

// Hub manages active WebSocket connections keyed by user uid and provides
// helper methods to push events to one or more users. A user may hold
// several connections (multiple tabs/devices).
type Hub struct {
	mu    sync.RWMutex
	conns map[string]map[*websocket.Conn]*Client
}

func NewHub() *Hub {
	return &Hub{
		conns: make(map[string]map[*websocket.Conn]*Client),
	}
}

// Register adds a connection for the given user and returns the Client the
// owning handler must use for its own writes.
func (h *Hub) Register(uid string, conn *websocket.Conn) *Client {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.conns[uid] == nil {
		h.conns[uid] = make(map[*websocket.Conn]*Client)
	}
	c := &Client{conn: conn}
	h.conns[uid][conn] = c
	return c
}

// Unregister removes a connection for the given user.
func (h *Hub) Unregister(uid string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if conns, ok := h.conns[uid]; ok {
		delete(conns, conn)
		if len(conns) == 0 {
			delete(h.conns, uid)
		}
	}
}

type deadConn struct {
	uid  string
	conn *websocket.Conn
}

// NotifyUsers sends the given payload to all active connections of the
// provided uids. Connections whose write fails are closed and removed.
func (h *Hub) NotifyUsers(uids []string, payload any) {
	var dead []deadConn

	h.mu.RLock()
	for _, uid := range uids {
		for conn, c := range h.conns[uid] {
			if err := c.Send(payload); err != nil {
				dead = append(dead, deadConn{uid: uid, conn: conn})
			}
		}
	}
	h.mu.RUnlock()

	h.reap(dead)
}

// BroadcastAll sends the payload to every connected user.
func (h *Hub) BroadcastAll(payload any) {
	var dead []deadConn

	h.mu.RLock()
	for uid, conns := range h.conns {
		for conn, c := range conns {
			if err := c.Send(payload); err != nil {
				dead = append(dead, deadConn{uid: uid, conn: conn})
			}
		}
	}
	h.mu.RUnlock()

	h.reap(dead)
}

func (h *Hub) reap(dead []deadConn) {
	for _, d := range dead {
		d.conn.Close()
		h.Unregister(d.uid, d.conn)
	}
}
