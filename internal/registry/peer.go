package registry

import "time"

// Role tags (§3).
const (
	RoleHost     = "host"
	RoleGuest    = "guest"
	RoleObserver = "observer"
)

// Status values (§3).
const (
	StatusOnline  = "online"
	StatusAway    = "away"
	StatusBusy    = "busy"
	StatusOffline = "offline"
)

// Connection mode values (§9, open question c).
const (
	ConnectionModeLAN    = "LAN"
	ConnectionModeRemote = "REMOTE"
)

// Profile is the mutable, client-settable subset of a Peer's identity.
type Profile struct {
	DisplayName string
	IDE         string
	Role        string
}

// Peer is the record created on PEER_REGISTER and destroyed on disconnect
// or supersession (§3). At most one Peer exists per user_id (I2).
type Peer struct {
	UserID     string
	SocketID   string
	Profile    Profile
	Status     string
	SessionIDs []string
	IPHash     string
	// NetworkID/HasNetwork mirror the connection's captured network (I4).
	// HasNetwork false means "no active network" (null), not "network ''".
	NetworkID  string
	HasNetwork bool
	// ConnectionMode is the value DISCOVER_PEERS reports for this peer; it is
	// stored rather than recomputed per recipient (§4.6), defaulting to
	// REMOTE. PEER_STATUS_UPDATE broadcasts recompute LAN/REMOTE per
	// recipient instead of reading this field (§9, open question c).
	ConnectionMode string

	ConnectedAt    time.Time
	LastActivityAt time.Time
}

// Register installs a new Peer for userID, or re-registers one. If a prior
// Peer already exists for userID, its session list is preserved into the new
// record and its socket mapping is removed first — this is a defensive
// fallback; the normal path is that AUTH-time supersession has already
// removed the prior Peer before PEER_REGISTER runs (§4.3).
func (h *Hub) Register(userID string, profile Profile, socketID, ipHash string, networkID string, hasNetwork bool, now time.Time) *Peer {
	h.mu.Lock()
	defer h.mu.Unlock()

	var preservedSessions []string
	if prior, ok := h.peers[userID]; ok {
		preservedSessions = append(preservedSessions, prior.SessionIDs...)
		delete(h.socketToUser, prior.SocketID)
		h.removePeerFromOrderLocked(userID)
	}

	p := &Peer{
		UserID:         userID,
		SocketID:       socketID,
		Profile:        profile,
		Status:         StatusOnline,
		SessionIDs:     preservedSessions,
		IPHash:         ipHash,
		NetworkID:      networkID,
		HasNetwork:     hasNetwork,
		ConnectionMode: ConnectionModeRemote,
		ConnectedAt:    now,
		LastActivityAt: now,
	}
	h.peers[userID] = p
	h.socketToUser[socketID] = userID
	h.peerOrder = append(h.peerOrder, userID)
	return p
}

// UnregisterByUser removes the Peer for userID, if any.
func (h *Hub) UnregisterByUser(userID string) (*Peer, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	p, ok := h.peers[userID]
	if !ok {
		return nil, false
	}
	delete(h.peers, userID)
	delete(h.socketToUser, p.SocketID)
	h.removePeerFromOrderLocked(userID)
	return p, true
}

// UnregisterBySocket removes whichever Peer is mapped to socketID, if any.
func (h *Hub) UnregisterBySocket(socketID string) (*Peer, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	userID, ok := h.socketToUser[socketID]
	if !ok {
		return nil, false
	}
	p := h.peers[userID]
	delete(h.peers, userID)
	delete(h.socketToUser, socketID)
	h.removePeerFromOrderLocked(userID)
	return p, p != nil
}

// LookupByUser returns the Peer for userID, if any (O(1)).
func (h *Hub) LookupByUser(userID string) (*Peer, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	p, ok := h.peers[userID]
	return p, ok
}

// LookupBySocket returns the Peer mapped to socketID, if any (O(1)).
func (h *Hub) LookupBySocket(socketID string) (*Peer, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	userID, ok := h.socketToUser[socketID]
	if !ok {
		return nil, false
	}
	p, ok := h.peers[userID]
	return p, ok
}

// UpdateStatus sets a peer's status.
func (h *Hub) UpdateStatus(userID, status string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if p, ok := h.peers[userID]; ok {
		p.Status = status
	}
}

// UpdateActivity bumps a peer's last-activity timestamp.
func (h *Hub) UpdateActivity(userID string, now time.Time) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if p, ok := h.peers[userID]; ok {
		p.LastActivityAt = now
	}
}

// AddSession idempotently adds sessionID to a peer's session list (R2).
func (h *Hub) AddSession(userID, sessionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	p, ok := h.peers[userID]
	if !ok {
		return
	}
	for _, s := range p.SessionIDs {
		if s == sessionID {
			return
		}
	}
	p.SessionIDs = append(p.SessionIDs, sessionID)
}

// RemoveSession removes sessionID from a peer's session list, if present.
func (h *Hub) RemoveSession(userID, sessionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	p, ok := h.peers[userID]
	if !ok {
		return
	}
	out := p.SessionIDs[:0]
	for _, s := range p.SessionIDs {
		if s != sessionID {
			out = append(out, s)
		}
	}
	p.SessionIDs = out
}

// OnlineInNetwork returns online peers in networkID, in peer-registry
// insertion order (§4.8). A null (absent) networkID always yields an empty
// result, even though two absent peers would otherwise "match": per spec
// §4.3, both-null is not a match.
func (h *Hub) OnlineInNetwork(networkID string) []*Peer {
	h.mu.Lock()
	defer h.mu.Unlock()
	if networkID == "" {
		return nil
	}
	var out []*Peer
	for _, userID := range h.peerOrder {
		p, ok := h.peers[userID]
		if !ok {
			continue
		}
		if p.Status == StatusOnline && p.HasNetwork && p.NetworkID == networkID {
			out = append(out, p)
		}
	}
	return out
}

// SameLAN reports whether both users have a non-empty, equal IP hash.
func (h *Hub) SameLAN(userA, userB string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	a, ok := h.peers[userA]
	if !ok || a.IPHash == "" {
		return false
	}
	b, ok := h.peers[userB]
	if !ok || b.IPHash == "" {
		return false
	}
	return a.IPHash == b.IPHash
}

// SameLANHash reports whether recipientUserID's registered IP hash equals
// subjectIPHash. Used for the disconnect-path PEER_STATUS_UPDATE broadcast,
// where the subject's Peer has already been removed from the registry and
// so can no longer be looked up by user id — its IP hash must be passed in
// directly instead.
func (h *Hub) SameLANHash(subjectIPHash, recipientUserID string) bool {
	if subjectIPHash == "" {
		return false
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	r, ok := h.peers[recipientUserID]
	if !ok || r.IPHash == "" {
		return false
	}
	return subjectIPHash == r.IPHash
}

// AllOnlinePeersOrdered returns every online peer across all networks, in
// insertion order. Used by disconnect/registration broadcasts, which fan
// out regardless of network (the network scoping only applies to discovery
// and pairing, per §4.6/§1).
func (h *Hub) AllOnlinePeersOrdered() []*Peer {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []*Peer
	for _, userID := range h.peerOrder {
		p, ok := h.peers[userID]
		if ok && p.Status == StatusOnline {
			out = append(out, p)
		}
	}
	return out
}

// removePeerFromOrderLocked removes userID from peerOrder. Caller must hold
// h.mu.
func (h *Hub) removePeerFromOrderLocked(userID string) {
	for i, u := range h.peerOrder {
		if u == userID {
			h.peerOrder = append(h.peerOrder[:i], h.peerOrder[i+1:]...)
			return
		}
	}
}
