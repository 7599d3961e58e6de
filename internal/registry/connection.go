// Package registry holds the in-memory connection/peer/session/request
// registries that are the single source of truth for presence, session
// membership, and routing (§3, §4).
package registry

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/coldbrewlabs/pairhub/internal/wire"
)

// ConnState is a connection's position in the lifecycle state machine
// (§4.1). States are monotonically forward-only: CONNECTED -> AUTHED ->
// REGISTERED.
type ConnState int32

const (
	ConnStateConnected ConnState = iota
	ConnStateAuthed
	ConnStateRegistered
)

// Sender abstracts writing a frame to the underlying socket, keeping the
// registries and dispatcher transport-agnostic.
type Sender interface {
	Send(f wire.Frame) error
	Close(code int, reason string) error
	// Ping writes a low-level transport ping, used by the heartbeat
	// supervisor (§4.7) — distinct from the application-level PING event.
	Ping() error
}

// Connection is the per-socket record created on accept and destroyed on
// close (§3).
type Connection struct {
	SocketID    string
	ConnectedAt time.Time
	Sender      Sender

	mu          sync.Mutex
	state       ConnState
	userID      string
	displayName string
	networkID   string
	hasNetwork  bool
	ipHash      string

	alive      atomic.Bool
	closedOnce sync.Once
	closed     atomic.Bool
}

// NewConnection creates a fresh CONNECTED connection record.
func NewConnection(socketID string, sender Sender, now time.Time) *Connection {
	c := &Connection{
		SocketID:    socketID,
		ConnectedAt: now,
		Sender:      sender,
	}
	c.alive.Store(true)
	return c
}

// State returns the current lifecycle state.
func (c *Connection) State() ConnState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// MarkAuthed transitions CONNECTED -> AUTHED, recording identity and
// network. Per I4, network is captured once here and is immutable for the
// rest of the connection's lifetime. displayName is the verifier's
// identity display name, used by PEER_REGISTER as the default profile
// name when the client omits one (§4.6).
func (c *Connection) MarkAuthed(userID, displayName, networkID string, hasNetwork bool, ipHash string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != ConnStateConnected {
		return
	}
	c.state = ConnStateAuthed
	c.userID = userID
	c.displayName = displayName
	c.networkID = networkID
	c.hasNetwork = hasNetwork
	c.ipHash = ipHash
}

// MarkRegistered transitions AUTHED -> REGISTERED.
func (c *Connection) MarkRegistered() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != ConnStateAuthed {
		return
	}
	c.state = ConnStateRegistered
}

// UserID returns the authenticated user id, or "" before AUTH.
func (c *Connection) UserID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.userID
}

// DisplayName returns the identity display name captured at AUTH.
func (c *Connection) DisplayName() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.displayName
}

// NetworkID returns the network id captured at AUTH and whether one was
// resolved at all (a resolver miss is not the same as network_id == "").
func (c *Connection) NetworkID() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.networkID, c.hasNetwork
}

// IPHash returns the salted IP hash captured at AUTH.
func (c *Connection) IPHash() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ipHash
}

// SetAlive marks the connection's heartbeat liveness flag (§4.7).
func (c *Connection) SetAlive(v bool) { c.alive.Store(v) }

// Alive reports the current heartbeat liveness flag.
func (c *Connection) Alive() bool { return c.alive.Load() }

// Terminate closes the underlying socket exactly once, regardless of how
// many cleanup paths race to call it (heartbeat sweep vs. peer-initiated
// close vs. supersession) — see §9 "Heartbeat vs. disconnect".
func (c *Connection) Terminate(code int, reason string) {
	c.closedOnce.Do(func() {
		c.closed.Store(true)
		if c.Sender != nil {
			_ = c.Sender.Close(code, reason)
		}
	})
}

// Closed reports whether Terminate has already run for this connection.
func (c *Connection) Closed() bool { return c.closed.Load() }

// Emit sends a single frame to this connection's socket, best-effort.
func (c *Connection) Emit(f wire.Frame) {
	if c.Sender == nil || c.closed.Load() {
		return
	}
	_ = c.Sender.Send(f)
}

// Ping writes a low-level transport ping, best-effort.
func (c *Connection) Ping() {
	if c.Sender == nil || c.closed.Load() {
		return
	}
	_ = c.Sender.Ping()
}
