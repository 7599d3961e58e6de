package registry

import (
	"sync"
	"time"
)

// Hub owns the socket, peer, session, and request registries behind a
// single coarse mutex, per §5's "Shared-resource policy": handlers that
// mutate multiple registries (AUTH supersession, session creation,
// disconnect) hold the lock for the full cross-registry mutation so I1-I3
// are never visible as violated to a concurrent reader.
type Hub struct {
	mu sync.Mutex

	sockets map[string]*Connection // socket_id -> connection

	peers        map[string]*Peer  // user_id -> Peer
	socketToUser map[string]string // socket_id -> user_id (peer registry's secondary index)
	peerOrder    []string          // user_id, in registration order (§4.8)

	sessions map[string]*Session // session_id -> Session

	requests   map[string]*ConnectionRequest // request_id -> request
	requestTTL time.Duration

	now func() time.Time
}

// NewHub constructs an empty Hub. requestTTL is the ConnectionRequest
// lifetime (§4.5); now lets tests control the clock.
func NewHub(requestTTL time.Duration, now func() time.Time) *Hub {
	if now == nil {
		now = time.Now
	}
	return &Hub{
		sockets:      make(map[string]*Connection),
		peers:        make(map[string]*Peer),
		socketToUser: make(map[string]string),
		sessions:     make(map[string]*Session),
		requests:     make(map[string]*ConnectionRequest),
		requestTTL:   requestTTL,
		now:          now,
	}
}

// Stats is a cheap snapshot of registry sizes, used by the health handler.
type Stats struct {
	Peers    int
	Sessions int
	Sockets  int
}

// Stats returns current registry sizes.
func (h *Hub) Stats() Stats {
	h.mu.Lock()
	defer h.mu.Unlock()
	return Stats{Peers: len(h.peers), Sessions: len(h.sessions), Sockets: len(h.sockets)}
}
