package registry

import "time"

// Session status values (§3).
const (
	SessionPending = "pending"
	SessionActive  = "active"
	SessionPaused  = "paused"
	SessionEnded   = "ended"
)

// Participant is one side of a Session (§3).
type Participant struct {
	UserID         string
	SocketID       string
	RoleTag        string
	JoinedAt       time.Time
	LastActivityAt time.Time
}

// Session is always exactly two participants in this core (§3). HostUserID
// is the original requester (§4.4).
type Session struct {
	SessionID      string
	HostUserID     string
	Participants   map[string]*Participant // user_id -> Participant
	Status         string
	CreatedAt      time.Time
	LastActivityAt time.Time
}

// CreateForPair creates a Session between userA (host, the original
// requester) and userB, and writes the session id into both Peers'
// session_ids via the peer registry (§4.4).
func (h *Hub) CreateForPair(sessionID, userA, socketA, userB, socketB string, now time.Time) *Session {
	h.mu.Lock()
	defer h.mu.Unlock()

	s := &Session{
		SessionID: sessionID,
		HostUserID: userA,
		Participants: map[string]*Participant{
			userA: {UserID: userA, SocketID: socketA, RoleTag: RoleHost, JoinedAt: now, LastActivityAt: now},
			userB: {UserID: userB, SocketID: socketB, RoleTag: RoleGuest, JoinedAt: now, LastActivityAt: now},
		},
		Status:         SessionActive,
		CreatedAt:      now,
		LastActivityAt: now,
	}
	h.sessions[sessionID] = s

	if p, ok := h.peers[userA]; ok {
		addSessionLocked(p, sessionID)
	}
	if p, ok := h.peers[userB]; ok {
		addSessionLocked(p, sessionID)
	}
	return s
}

func addSessionLocked(p *Peer, sessionID string) {
	for _, s := range p.SessionIDs {
		if s == sessionID {
			return
		}
	}
	p.SessionIDs = append(p.SessionIDs, sessionID)
}

// GetSession returns the Session for sessionID, if any.
func (h *Hub) GetSession(sessionID string) (*Session, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	s, ok := h.sessions[sessionID]
	return s, ok
}

// IsParticipant reports whether userID participates in sessionID.
func (h *Hub) IsParticipant(sessionID, userID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	s, ok := h.sessions[sessionID]
	if !ok {
		return false
	}
	_, ok = s.Participants[userID]
	return ok
}

// SessionParticipants returns the session's participants, in no particular
// order (there are always exactly two).
func (h *Hub) SessionParticipants(sessionID string) []Participant {
	h.mu.Lock()
	defer h.mu.Unlock()
	s, ok := h.sessions[sessionID]
	if !ok {
		return nil
	}
	out := make([]Participant, 0, len(s.Participants))
	for _, p := range s.Participants {
		out = append(out, *p)
	}
	return out
}

// UpdateSessionActivity bumps the session's and the named participant's
// activity timestamps.
func (h *Hub) UpdateSessionActivity(sessionID, userID string, now time.Time) {
	h.mu.Lock()
	defer h.mu.Unlock()
	s, ok := h.sessions[sessionID]
	if !ok {
		return
	}
	s.LastActivityAt = now
	if p, ok := s.Participants[userID]; ok {
		p.LastActivityAt = now
	}
}

// RemoveParticipant removes userID from the session. If the departing user
// is the host, or fewer than two participants remain, the session is ended
// (destroyed) rather than left with a single participant.
func (h *Hub) RemoveParticipant(sessionID, userID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	s, ok := h.sessions[sessionID]
	if !ok {
		return
	}
	delete(s.Participants, userID)
	if userID == s.HostUserID || len(s.Participants) < 2 {
		h.endSessionLocked(s)
		return
	}
}

// EndSession marks sessionID ended, removes it from remaining peers'
// session lists, and deletes the session record (§4.4).
func (h *Hub) EndSession(sessionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	s, ok := h.sessions[sessionID]
	if !ok {
		return
	}
	h.endSessionLocked(s)
}

// endSessionLocked performs the End operation. Caller must hold h.mu.
func (h *Hub) endSessionLocked(s *Session) {
	s.Status = SessionEnded
	for userID := range s.Participants {
		if p, ok := h.peers[userID]; ok {
			removeSessionLocked(p, s.SessionID)
		}
	}
	delete(h.sessions, s.SessionID)
}

func removeSessionLocked(p *Peer, sessionID string) {
	out := p.SessionIDs[:0]
	for _, id := range p.SessionIDs {
		if id != sessionID {
			out = append(out, id)
		}
	}
	p.SessionIDs = out
}

// HandleUserDisconnect ends every session userID participates in, and
// purges any ConnectionRequest referencing userID as either endpoint
// (§4.4, §4.9).
func (h *Hub) HandleUserDisconnect(userID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, s := range h.sessions {
		if _, ok := s.Participants[userID]; !ok {
			continue
		}
		delete(s.Participants, userID)
		if userID == s.HostUserID || len(s.Participants) < 2 {
			h.endSessionLocked(s)
		}
	}

	for id, r := range h.requests {
		if r.FromUserID == userID || r.ToUserID == userID {
			delete(h.requests, id)
		}
	}
}
