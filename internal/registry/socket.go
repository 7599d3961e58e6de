package registry

// Socket registry (§4, "Socket registry"): the map from opaque socket id to
// the live connection handle (I1).

// AddSocket registers a newly accepted connection.
func (h *Hub) AddSocket(c *Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sockets[c.SocketID] = c
}

// RemoveSocket removes a connection from the socket registry.
func (h *Hub) RemoveSocket(socketID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.sockets, socketID)
}

// Socket looks up a connection by socket id.
func (h *Hub) Socket(socketID string) (*Connection, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	c, ok := h.sockets[socketID]
	return c, ok
}

// SocketCount returns the number of live sockets.
func (h *Hub) SocketCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.sockets)
}

// AllSockets returns a snapshot slice of all live connections, used by the
// heartbeat supervisor's sweep (§4.7).
func (h *Hub) AllSockets() []*Connection {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]*Connection, 0, len(h.sockets))
	for _, c := range h.sockets {
		out = append(out, c)
	}
	return out
}
