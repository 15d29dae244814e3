// Package hub fans view updates out to the websocket connections attached
// to a directory session.
package hub

import "sync"

type Writer interface {
	Write(message []byte) error
	Close() error
}

type Connection struct {
	SessionID string
	Writer    Writer
}

type Hub struct {
	mu          sync.RWMutex
	connections map[string]map[*Connection]struct{}
}

func New() *Hub {
	return &Hub{connections: make(map[string]map[*Connection]struct{})}
}

func (h *Hub) Register(conn *Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.connections[conn.SessionID] == nil {
		h.connections[conn.SessionID] = make(map[*Connection]struct{})
	}
	h.connections[conn.SessionID][conn] = struct{}{}
}

func (h *Hub) Unregister(conn *Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()

	set := h.connections[conn.SessionID]
	if set == nil {
		return
	}
	delete(set, conn)
	if len(set) == 0 {
		delete(h.connections, conn.SessionID)
	}
}

func (h *Hub) Count(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.connections[sessionID])
}

func (h *Hub) Broadcast(sessionID string, message []byte) {
	var failed []*Connection
	for _, c := range h.snapshot(sessionID) {
		if err := c.Writer.Write(message); err != nil {
			failed = append(failed, c)
		}
	}
	for _, c := range failed {
		_ = c.Writer.Close()
		h.Unregister(c)
	}
}

// CloseSession closes and drops every connection of a session.
func (h *Hub) CloseSession(sessionID string) {
	h.mu.Lock()
	set := h.connections[sessionID]
	delete(h.connections, sessionID)
	h.mu.Unlock()

	for c := range set {
		_ = c.Writer.Close()
	}
}

func (h *Hub) snapshot(sessionID string) []*Connection {
	h.mu.RLock()
	defer h.mu.RUnlock()

	set := h.connections[sessionID]
	conns := make([]*Connection, 0, len(set))
	for c := range set {
		conns = append(conns, c)
	}
	return conns
}
