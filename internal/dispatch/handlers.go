package dispatch

import (
	"context"
	"time"

	"github.com/coldbrewlabs/pairhub/internal/identity"
	"github.com/coldbrewlabs/pairhub/internal/registry"
	"github.com/coldbrewlabs/pairhub/internal/wire"
)

// HandleAuth processes the AUTH event (§4.6). ipHash is the salted IP hash
// of the inbound connection, captured by the transport layer at accept
// time (I6).
func HandleAuth(ctx context.Context, deps Deps, conn *registry.Connection, payload wire.AuthRequest, ipHash string) EventResult {
	id, err := deps.Identity.Verify(ctx, payload.Token)
	if err != nil {
		code := wire.ErrTokenInvalid
		var verr *identity.VerifyError
		if ve, ok := err.(*identity.VerifyError); ok {
			verr = ve
		}
		if verr != nil {
			switch verr.Kind {
			case identity.ErrorKindMissing:
				code = wire.ErrTokenMissing
			case identity.ErrorKindExpired:
				code = wire.ErrTokenExpired
			default:
				code = wire.ErrTokenInvalid
			}
		}
		return EventResult{
			Emissions: []Emission{toSocket(conn.SocketID, frame("AUTH_FAILED", wire.AuthFailed{
				Code:    code,
				Message: "authentication failed",
			}))},
			Closes: []CloseInstruction{{SocketID: conn.SocketID, Code: wire.CloseAuthTimeout, Reason: "authentication failed"}},
		}
	}

	var result EventResult

	// Supersession (§4.1): a prior live Peer for this user is closed and
	// removed before the new one is installed, so I2 is never violated
	// mid-operation.
	if prior, ok := deps.Hub.LookupByUser(id.UserID); ok {
		result.Emissions = append(result.Emissions, toSocket(prior.SocketID, frame("ERROR", wire.ErrorPayload{
			Code:    wire.ErrPeerAlreadyConnected,
			Message: "superseded by a new connection",
		})))
		result.Closes = append(result.Closes, CloseInstruction{SocketID: prior.SocketID, Code: wire.CloseSuperseded, Reason: "superseded"})
		deps.Hub.UnregisterByUser(id.UserID)
	}

	networkID, hasNetwork := deps.Membership.ActiveNetwork(ctx, id.UserID)
	conn.MarkAuthed(id.UserID, id.DisplayName, networkID, hasNetwork, ipHash)

	result.Emissions = append(result.Emissions, toSocket(conn.SocketID, frame("AUTH_SUCCESS", wire.AuthSuccess{
		UserID:      id.UserID,
		DisplayName: id.DisplayName,
		Email:       id.Email,
	})))
	return result
}

// HandlePeerRegister processes PEER_REGISTER (§4.6).
func HandlePeerRegister(deps Deps, conn *registry.Connection, payload wire.PeerRegisterRequest) EventResult {
	if conn.State() != registry.ConnStateAuthed {
		return errorResult(conn.SocketID, wire.ErrSocketNotAuthenticated, "socket is not authenticated")
	}

	displayName := payload.DisplayName
	if displayName == "" {
		displayName = conn.DisplayName()
	}
	ide := payload.IDE
	if ide == "" {
		ide = DefaultIDE
	}
	role := payload.Role
	if role == "" {
		role = DefaultRole
	}

	networkID, hasNetwork := conn.NetworkID()
	now := deps.Now()
	p := deps.Hub.Register(conn.UserID(), registry.Profile{
		DisplayName: displayName,
		IDE:         ide,
		Role:        role,
	}, conn.SocketID, conn.IPHash(), networkID, hasNetwork, now)
	conn.MarkRegistered()

	result := EventResult{
		Emissions: []Emission{toSocket(conn.SocketID, frame("PEER_REGISTERED", wire.PeerRegistered{
			ID:      p.UserID,
			Profile: profileOf(p),
			Status:  p.Status,
		}))},
	}
	result.Emissions = append(result.Emissions, broadcastPeerStatusUpdate(deps.Hub, p, registry.StatusOnline, true)...)
	return result
}

// HandleDiscoverPeers processes DISCOVER_PEERS (§4.6). Client-side filters
// are accepted on the wire but ignored by design.
func HandleDiscoverPeers(deps Deps, conn *registry.Connection) EventResult {
	if conn.State() != registry.ConnStateRegistered {
		return errorResult(conn.SocketID, wire.ErrPeerMustRegister, "register before discovering peers")
	}
	networkID, hasNetwork := conn.NetworkID()
	if !hasNetwork {
		return EventResult{Emissions: []Emission{toSocket(conn.SocketID, frame("PEERS_LIST", wire.PeersList{Peers: []wire.PeerSummary{}}))}}
	}
	list := buildPeersList(deps.Hub, conn.UserID(), networkID)
	if list.Peers == nil {
		list.Peers = []wire.PeerSummary{}
	}
	return EventResult{Emissions: []Emission{toSocket(conn.SocketID, frame("PEERS_LIST", list))}}
}

// HandleConnectionRequest processes CONNECTION_REQUEST (§4.6).
func HandleConnectionRequest(deps Deps, conn *registry.Connection, payload wire.ConnectionRequestPayload) EventResult {
	if conn.State() != registry.ConnStateRegistered {
		return errorResult(conn.SocketID, wire.ErrPeerMustRegister, "register before requesting a connection")
	}

	requester, ok := deps.Hub.LookupByUser(conn.UserID())
	if !ok {
		return errorResult(conn.SocketID, wire.ErrPeerNotFound, "requester peer not found")
	}
	target, ok := deps.Hub.LookupByUser(payload.TargetID)
	if !ok {
		return errorResult(conn.SocketID, wire.ErrPeerNotFound, "target peer not found")
	}
	if !requester.HasNetwork || !target.HasNetwork || requester.NetworkID != target.NetworkID {
		return errorResult(conn.SocketID, wire.ErrPeerNotSameNetwork, "peers are not in the same network")
	}
	targetConn, ok := deps.Hub.Socket(target.SocketID)
	if !ok || targetConn.Closed() {
		return errorResult(conn.SocketID, wire.ErrTargetOffline, "target is offline")
	}

	now := deps.Now()
	reqID := deps.NewRequestID(now)
	deps.Hub.CreateRequest(reqID, requester.UserID, target.UserID, now)

	return EventResult{Emissions: []Emission{toSocket(target.SocketID, frame("CONNECTION_REQUEST_RECEIVED", wire.ConnectionRequestReceived{
		RequestID: reqID,
		From:      peerRef(requester),
	}))}}
}

// HandleConnectionResponse processes CONNECTION_RESPONSE (§4.6).
func HandleConnectionResponse(deps Deps, conn *registry.Connection, payload wire.ConnectionResponsePayload) EventResult {
	if conn.State() != registry.ConnStateRegistered {
		return errorResult(conn.SocketID, wire.ErrPeerMustRegister, "register before responding to a connection request")
	}

	now := deps.Now()
	req, ok := deps.Hub.GetRequest(payload.RequestID, now)
	if !ok {
		return errorResult(conn.SocketID, wire.ErrRequestNotFound, "request not found or expired")
	}
	if req.ToUserID != conn.UserID() {
		return errorResult(conn.SocketID, wire.ErrRequestUnauthorized, "not authorized to respond to this request")
	}
	deps.Hub.RemoveRequest(req.RequestID)

	requester, ok := deps.Hub.LookupByUser(req.FromUserID)
	if !ok {
		return errorResult(conn.SocketID, wire.ErrPeerNotFound, "requester is no longer online")
	}
	responder, ok := deps.Hub.LookupByUser(conn.UserID())
	if !ok {
		return errorResult(conn.SocketID, wire.ErrPeerNotFound, "responder peer not found")
	}

	if !payload.Accepted {
		return EventResult{Emissions: []Emission{toSocket(requester.SocketID, frame("CONNECTION_REJECTED", wire.ConnectionRejected{
			RequestID: req.RequestID,
			TargetID:  responder.UserID,
		}))}}
	}

	sessionID := deps.NewSessionID()
	deps.Hub.CreateForPair(sessionID, requester.UserID, requester.SocketID, responder.UserID, responder.SocketID, now)

	return EventResult{Emissions: []Emission{
		toSocket(requester.SocketID, frame("CONNECTION_ACCEPTED", wire.ConnectionAccepted{
			RequestID: req.RequestID,
			SessionID: sessionID,
			Peer:      peerRef(responder),
		})),
		toSocket(responder.SocketID, frame("SESSION_CREATED", wire.SessionCreated{
			SessionID: sessionID,
			Peer:      peerRef(requester),
		})),
	}}
}

// HandleSendMessage processes SEND_MESSAGE (§4.6). Delivery is
// best-effort fire-and-forget: no ack, no persistence, no redelivery.
func HandleSendMessage(deps Deps, conn *registry.Connection, payload wire.SendMessagePayload) EventResult {
	if conn.State() != registry.ConnStateRegistered {
		return errorResult(conn.SocketID, wire.ErrPeerMustRegister, "register before sending messages")
	}
	if !deps.Hub.IsParticipant(payload.SessionID, conn.UserID()) {
		if _, ok := deps.Hub.GetSession(payload.SessionID); !ok {
			return errorResult(conn.SocketID, wire.ErrSessionNotFound, "session not found")
		}
		return errorResult(conn.SocketID, wire.ErrNotParticipant, "not a participant in this session")
	}

	now := deps.Now()
	deps.Hub.UpdateSessionActivity(payload.SessionID, conn.UserID(), now)
	deps.Hub.UpdateActivity(conn.UserID(), now)

	participants := deps.Hub.SessionParticipants(payload.SessionID)
	var result EventResult
	for _, p := range participants {
		if p.UserID == conn.UserID() {
			continue
		}
		sock, ok := deps.Hub.Socket(p.SocketID)
		if !ok || sock.Closed() {
			continue
		}
		result.Emissions = append(result.Emissions, toSocket(p.SocketID, frame("MESSAGE_RECEIVED", wire.MessageReceived{
			SessionID:     payload.SessionID,
			From:          conn.UserID(),
			Content:       payload.Content,
			Type:          payload.Type,
			CorrelationID: payload.CorrelationID,
			Timestamp:     now.UTC().Format(time.RFC3339),
		})))
	}
	return result
}

// HandlePing processes PING (§4.6), accepted in every state, CONNECTED
// included.
func HandlePing(deps Deps, conn *registry.Connection) EventResult {
	conn.SetAlive(true)
	now := deps.Now()
	if conn.State() != registry.ConnStateConnected {
		if userID := conn.UserID(); userID != "" {
			deps.Hub.UpdateActivity(userID, now)
		}
	}
	return EventResult{Emissions: []Emission{toSocket(conn.SocketID, frame("PONG", wire.Pong{Timestamp: now.UnixMilli()}))}}
}

// HandleDisconnect applies disconnect-side effects for a socket (§4.9). It
// is idempotent with respect to the registries: calling it for a socket
// already removed is a no-op.
func HandleDisconnect(deps Deps, conn *registry.Connection) EventResult {
	deps.Hub.RemoveSocket(conn.SocketID)

	if conn.State() != registry.ConnStateRegistered {
		return emptyResult()
	}
	userID := conn.UserID()
	// Only the socket that still owns the user's peer record cleans it up,
	// so a repeat call cannot remove a peer a newer connection registered.
	if p, ok := deps.Hub.LookupBySocket(conn.SocketID); !ok || p.UserID != userID {
		return emptyResult()
	}
	deps.Hub.HandleUserDisconnect(userID)
	peer, ok := deps.Hub.UnregisterByUser(userID)
	if !ok {
		return emptyResult()
	}
	return EventResult{Emissions: broadcastPeerStatusUpdate(deps.Hub, peer, registry.StatusOffline, false)}
}
