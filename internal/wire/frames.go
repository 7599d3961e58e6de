// Package wire defines the duplex-socket wire protocol (§6): the frame
// envelope and the typed payloads for every event in the catalogue.
package wire

import "encoding/json"

// Frame is the envelope every inbound and outbound message is wrapped in.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Outbound close codes, sent when the server closes the underlying socket.
const (
	CloseAuthTimeout = 4001 // auth timeout/failure
	CloseSuperseded  = 4002 // a newer connection authenticated for this user
)

// --- Client -> server payloads ---

// AuthRequest is the AUTH event payload.
type AuthRequest struct {
	Token string `json:"token"`
}

// PeerRegisterRequest is the PEER_REGISTER event payload.
type PeerRegisterRequest struct {
	DisplayName string `json:"displayName,omitempty"`
	IDE         string `json:"ide,omitempty"`
	Role        string `json:"role,omitempty"`
}

// ConnectionRequestPayload is the CONNECTION_REQUEST event payload.
type ConnectionRequestPayload struct {
	TargetID string `json:"targetId"`
}

// ConnectionResponsePayload is the CONNECTION_RESPONSE event payload.
type ConnectionResponsePayload struct {
	RequestID string `json:"requestId"`
	Accepted  bool   `json:"accepted"`
}

// SendMessagePayload is the SEND_MESSAGE event payload.
type SendMessagePayload struct {
	SessionID     string          `json:"sessionId"`
	Content       json.RawMessage `json:"content"`
	Type          string          `json:"type,omitempty"`
	CorrelationID string          `json:"correlationId,omitempty"`
}

// --- Server -> client payloads ---

// Profile is the discoverable subset of a peer's identity.
type Profile struct {
	DisplayName string `json:"displayName"`
	Role        string `json:"role"`
	IDE         string `json:"ide"`
}

// AuthSuccess is the AUTH_SUCCESS event payload.
type AuthSuccess struct {
	UserID      string `json:"userId"`
	DisplayName string `json:"displayName"`
	Email       string `json:"email"`
}

// AuthFailed is the AUTH_FAILED event payload.
type AuthFailed struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// PeerRegistered is the PEER_REGISTERED event payload.
type PeerRegistered struct {
	ID      string  `json:"id"`
	Profile Profile `json:"profile"`
	Status  string  `json:"status"`
}

// PeerStatusUpdate is the PEER_STATUS_UPDATE event payload.
type PeerStatusUpdate struct {
	ID             string   `json:"id"`
	Profile        *Profile `json:"profile,omitempty"`
	Status         string   `json:"status"`
	ConnectionMode string   `json:"connectionMode"`
}

// PeerSummary is a single entry in a PEERS_LIST event.
type PeerSummary struct {
	ID             string  `json:"id"`
	Profile        Profile `json:"profile"`
	Status         string  `json:"status"`
	ConnectionMode string  `json:"connectionMode"`
}

// PeersList is the PEERS_LIST event payload.
type PeersList struct {
	Peers []PeerSummary `json:"peers"`
}

// PeerRef identifies a peer alongside their profile, as embedded in pairing
// events.
type PeerRef struct {
	ID      string  `json:"id"`
	Profile Profile `json:"profile"`
}

// ConnectionRequestReceived is the CONNECTION_REQUEST_RECEIVED event payload.
type ConnectionRequestReceived struct {
	RequestID string  `json:"requestId"`
	From      PeerRef `json:"from"`
}

// ConnectionAccepted is the CONNECTION_ACCEPTED event payload.
type ConnectionAccepted struct {
	RequestID string  `json:"requestId"`
	SessionID string  `json:"sessionId"`
	Peer      PeerRef `json:"peer"`
}

// ConnectionRejected is the CONNECTION_REJECTED event payload.
type ConnectionRejected struct {
	RequestID string `json:"requestId"`
	TargetID  string `json:"targetId"`
}

// SessionCreated is the SESSION_CREATED event payload.
type SessionCreated struct {
	SessionID string  `json:"sessionId"`
	Peer      PeerRef `json:"peer"`
}

// MessageReceived is the MESSAGE_RECEIVED event payload.
type MessageReceived struct {
	SessionID     string          `json:"sessionId"`
	From          string          `json:"from"`
	Content       json.RawMessage `json:"content"`
	Type          string          `json:"type,omitempty"`
	CorrelationID string          `json:"correlationId,omitempty"`
	Timestamp     string          `json:"timestamp"`
}

// Pong is the PONG event payload.
type Pong struct {
	Timestamp int64 `json:"timestamp"`
}

// ErrorPayload is the ERROR event payload.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
