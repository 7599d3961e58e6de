package dispatch

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/coldbrewlabs/pairhub/internal/registry"
	"github.com/coldbrewlabs/pairhub/internal/wire"
)

// Dispatch parses and routes a single inbound frame (§4.2). Event
// authorization is state-gated (§4.1): only AUTH and PING are accepted in
// CONNECTED; PEER_REGISTER additionally requires AUTHED; discovery,
// connection request/response, and send-message require REGISTERED.
func Dispatch(ctx context.Context, deps Deps, conn *registry.Connection, raw []byte, ipHash string) EventResult {
	var f wire.Frame
	if err := json.Unmarshal(raw, &f); err != nil {
		return errorResult(conn.SocketID, wire.ErrInvalidMessage, "malformed frame")
	}
	if f.Event == "" {
		return errorResult(conn.SocketID, wire.ErrInvalidMessage, "missing event")
	}

	switch f.Event {
	case "AUTH":
		var p wire.AuthRequest
		if !unmarshalPayload(f.Data, &p) {
			return errorResult(conn.SocketID, wire.ErrInvalidMessage, "malformed AUTH payload")
		}
		return HandleAuth(ctx, deps, conn, p, ipHash)

	case "PING":
		return HandlePing(deps, conn)

	case "PEER_REGISTER":
		// Exact-state check, not requireAtLeast: an already-REGISTERED
		// connection re-sending PEER_REGISTER is rejected here too, not
		// just a not-yet-AUTHED one.
		if conn.State() != registry.ConnStateAuthed {
			return errorResult(conn.SocketID, wire.ErrSocketNotAuthenticated, "socket is not authenticated")
		}
		var p wire.PeerRegisterRequest
		if !unmarshalPayload(f.Data, &p) {
			return errorResult(conn.SocketID, wire.ErrInvalidMessage, "malformed PEER_REGISTER payload")
		}
		return HandlePeerRegister(deps, conn, p)

	case "DISCOVER_PEERS":
		if err := requireAtLeast(conn, registry.ConnStateRegistered); err != "" {
			return errorResult(conn.SocketID, wire.ErrSocketNotAuthenticated, err)
		}
		return HandleDiscoverPeers(deps, conn)

	case "CONNECTION_REQUEST":
		if err := requireAtLeast(conn, registry.ConnStateRegistered); err != "" {
			return errorResult(conn.SocketID, wire.ErrSocketNotAuthenticated, err)
		}
		var p wire.ConnectionRequestPayload
		if !unmarshalPayload(f.Data, &p) {
			return errorResult(conn.SocketID, wire.ErrInvalidMessage, "malformed CONNECTION_REQUEST payload")
		}
		return HandleConnectionRequest(deps, conn, p)

	case "CONNECTION_RESPONSE":
		if err := requireAtLeast(conn, registry.ConnStateRegistered); err != "" {
			return errorResult(conn.SocketID, wire.ErrSocketNotAuthenticated, err)
		}
		var p wire.ConnectionResponsePayload
		if !unmarshalPayload(f.Data, &p) {
			return errorResult(conn.SocketID, wire.ErrInvalidMessage, "malformed CONNECTION_RESPONSE payload")
		}
		return HandleConnectionResponse(deps, conn, p)

	case "SEND_MESSAGE":
		if err := requireAtLeast(conn, registry.ConnStateRegistered); err != "" {
			return errorResult(conn.SocketID, wire.ErrSocketNotAuthenticated, err)
		}
		var p wire.SendMessagePayload
		if !unmarshalPayload(f.Data, &p) {
			return errorResult(conn.SocketID, wire.ErrInvalidMessage, "malformed SEND_MESSAGE payload")
		}
		return HandleSendMessage(deps, conn, p)

	default:
		return errorResult(conn.SocketID, wire.ErrInvalidMessage, fmt.Sprintf("unknown event %q", f.Event))
	}
}

// requireAtLeast returns a non-empty reason if conn's state is below min.
func requireAtLeast(conn *registry.Connection, min registry.ConnState) string {
	if conn.State() < min {
		return "socket is not authenticated"
	}
	return ""
}

func unmarshalPayload(data json.RawMessage, v any) bool {
	if len(data) == 0 {
		return true
	}
	return json.Unmarshal(data, v) == nil
}
