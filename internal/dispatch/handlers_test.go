package dispatch

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/coldbrewlabs/pairhub/internal/identity"
	"github.com/coldbrewlabs/pairhub/internal/registry"
	"github.com/coldbrewlabs/pairhub/internal/wire"
)

type fakeVerifier struct {
	identities map[string]identity.Identity
}

func (f *fakeVerifier) Verify(ctx context.Context, token string) (identity.Identity, error) {
	if token == "" {
		return identity.Identity{}, &identity.VerifyError{Kind: identity.ErrorKindMissing}
	}
	id, ok := f.identities[token]
	if !ok {
		return identity.Identity{}, &identity.VerifyError{Kind: identity.ErrorKindInvalid}
	}
	return id, nil
}

type fakeResolver struct {
	networks map[string]string
}

func (f *fakeResolver) ActiveNetwork(ctx context.Context, userID string) (string, bool) {
	n, ok := f.networks[userID]
	if !ok {
		return "", false
	}
	return n, true
}

type fakeSender struct {
	sent   []wire.Frame
	closed bool
	code   int
}

func (f *fakeSender) Send(frm wire.Frame) error {
	f.sent = append(f.sent, frm)
	return nil
}
func (f *fakeSender) Close(code int, reason string) error {
	f.closed = true
	f.code = code
	return nil
}
func (f *fakeSender) Ping() error { return nil }

func newHarness(t *testing.T) (Deps, *registry.Hub, *fakeVerifier, *fakeResolver) {
	t.Helper()
	hub := registry.NewHub(30*time.Second, nil)
	ver := &fakeVerifier{identities: map[string]identity.Identity{}}
	res := &fakeResolver{networks: map[string]string{}}
	deps := NewDeps(hub, ver, res)
	return deps, hub, ver, res
}

func authedConn(t *testing.T, deps Deps, userID string) (*registry.Connection, *fakeSender) {
	t.Helper()
	sender := &fakeSender{}
	conn := registry.NewConnection(registry.NewSocketID(), sender, deps.Now())
	deps.Hub.AddSocket(conn)
	result := HandleAuth(context.Background(), deps, conn, wire.AuthRequest{Token: userID}, "hash-"+userID)
	apply(deps.Hub, result)
	return conn, sender
}

func apply(hub *registry.Hub, result EventResult) {
	for _, e := range result.Emissions {
		if c, ok := hub.Socket(e.SocketID); ok {
			c.Emit(e.Frame)
		}
	}
	for _, cl := range result.Closes {
		if c, ok := hub.Socket(cl.SocketID); ok {
			c.Terminate(cl.Code, cl.Reason)
		}
	}
}

func decode[T any](t *testing.T, data json.RawMessage) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(data, &v))
	return v
}

func TestHandleAuth_Success(t *testing.T) {
	deps, _, ver, _ := newHarness(t)
	ver.identities["user_1"] = identity.Identity{UserID: "user_1", DisplayName: "Ada"}

	conn, sender := authedConn(t, deps, "user_1")

	require.Equal(t, registry.ConnStateAuthed, conn.State())
	require.Len(t, sender.sent, 1)
	require.Equal(t, "AUTH_SUCCESS", sender.sent[0].Event)
	got := decode[wire.AuthSuccess](t, sender.sent[0].Data)
	require.Equal(t, "user_1", got.UserID)
}

func TestHandleAuth_MissingToken(t *testing.T) {
	// S1-adjacent: ERR_1001 on a missing token.
	deps, _, _, _ := newHarness(t)
	sender := &fakeSender{}
	conn := registry.NewConnection(registry.NewSocketID(), sender, deps.Now())
	deps.Hub.AddSocket(conn)

	result := HandleAuth(context.Background(), deps, conn, wire.AuthRequest{Token: ""}, "hash")
	apply(deps.Hub, result)

	require.True(t, sender.closed)
	require.Equal(t, wire.CloseAuthTimeout, sender.code)
	got := decode[wire.AuthFailed](t, sender.sent[0].Data)
	require.Equal(t, wire.ErrTokenMissing, got.Code)
}

func TestHandleAuth_Supersession(t *testing.T) {
	// S2: a second AUTH for the same user closes the first with 4002 and
	// leaves exactly one peer behind once both have registered.
	deps, hub, ver, _ := newHarness(t)
	ver.identities["user_1"] = identity.Identity{UserID: "user_1"}

	connA, senderA := authedConn(t, deps, "user_1")
	apply(hub, HandlePeerRegister(deps, connA, wire.PeerRegisterRequest{}))
	require.Equal(t, 1, hub.Stats().Peers)

	connB, senderB := authedConn(t, deps, "user_1")

	require.True(t, senderA.closed)
	require.Equal(t, wire.CloseSuperseded, senderA.code)
	errPayload := decode[wire.ErrorPayload](t, senderA.sent[len(senderA.sent)-1].Data)
	require.Equal(t, wire.ErrPeerAlreadyConnected, errPayload.Code)

	require.False(t, senderB.closed)
	require.Equal(t, registry.ConnStateAuthed, connB.State())

	apply(hub, HandlePeerRegister(deps, connB, wire.PeerRegisterRequest{}))
	require.Equal(t, 1, hub.Stats().Peers)
	p, _ := hub.LookupByUser("user_1")
	require.Equal(t, connB.SocketID, p.SocketID)
}

func TestDispatch_PeerRegisterRejectedWhenAlreadyRegistered(t *testing.T) {
	deps, hub, ver, _ := newHarness(t)
	ver.identities["user_1"] = identity.Identity{UserID: "user_1", DisplayName: "Ada"}

	conn, sender := authedConn(t, deps, "user_1")
	apply(hub, HandlePeerRegister(deps, conn, wire.PeerRegisterRequest{}))
	require.Equal(t, registry.ConnStateRegistered, conn.State())
	sender.sent = nil

	raw, err := json.Marshal(wire.Frame{Event: "PEER_REGISTER"})
	require.NoError(t, err)
	result := Dispatch(context.Background(), deps, conn, raw, "hash-user_1")
	apply(hub, result)

	require.Len(t, sender.sent, 1)
	require.Equal(t, "ERROR", sender.sent[0].Event)
	errPayload := decode[wire.ErrorPayload](t, sender.sent[0].Data)
	require.Equal(t, wire.ErrSocketNotAuthenticated, errPayload.Code)
	require.Equal(t, registry.ConnStateRegistered, conn.State())
}

func registerPeer(t *testing.T, deps Deps, userID, networkID string) (*registry.Connection, *fakeSender) {
	t.Helper()
	if networkID != "" {
		deps.Membership.(*fakeResolver).networks[userID] = networkID
	}
	deps.Identity.(*fakeVerifier).identities[userID] = identity.Identity{UserID: userID, DisplayName: userID}
	conn, sender := authedConn(t, deps, userID)
	apply(deps.Hub, HandlePeerRegister(deps, conn, wire.PeerRegisterRequest{DisplayName: userID}))
	return conn, sender
}

func TestHandlePeerRegister_DefaultsDisplayNameFromIdentity(t *testing.T) {
	// §4.6: PEER_REGISTER with no display_name falls back to the name the
	// identity verifier returned at AUTH.
	deps, _, ver, _ := newHarness(t)
	ver.identities["user_1"] = identity.Identity{UserID: "user_1", DisplayName: "Ada Lovelace"}

	conn, sender := authedConn(t, deps, "user_1")
	apply(deps.Hub, HandlePeerRegister(deps, conn, wire.PeerRegisterRequest{}))

	got := decode[wire.PeerRegistered](t, sender.sent[len(sender.sent)-1].Data)
	require.Equal(t, "Ada Lovelace", got.Profile.DisplayName)

	p, ok := deps.Hub.LookupByUser("user_1")
	require.True(t, ok)
	require.Equal(t, "Ada Lovelace", p.Profile.DisplayName)
}

func TestHandlePeerRegister_ExplicitDisplayNameOverridesIdentity(t *testing.T) {
	deps, _, ver, _ := newHarness(t)
	ver.identities["user_1"] = identity.Identity{UserID: "user_1", DisplayName: "Ada Lovelace"}

	conn, sender := authedConn(t, deps, "user_1")
	apply(deps.Hub, HandlePeerRegister(deps, conn, wire.PeerRegisterRequest{DisplayName: "Ada"}))

	got := decode[wire.PeerRegistered](t, sender.sent[len(sender.sent)-1].Data)
	require.Equal(t, "Ada", got.Profile.DisplayName)
}

func TestHandlePeerRegister_BroadcastsStatusUpdateWithConnectionMode(t *testing.T) {
	deps, hub, _, _ := newHarness(t)
	_, senderA := registerPeer(t, deps, "a", "net1")
	senderA.sent = nil

	_, senderB := registerPeer(t, deps, "b", "net1")

	require.Len(t, senderA.sent, 1)
	require.Equal(t, "PEER_STATUS_UPDATE", senderA.sent[0].Event)
	update := decode[wire.PeerStatusUpdate](t, senderA.sent[0].Data)
	require.Equal(t, "b", update.ID)
	require.Equal(t, registry.StatusOnline, update.Status)
	require.Equal(t, registry.ConnectionModeRemote, update.ConnectionMode) // "hash-a" != "hash-b"

	require.Len(t, senderB.sent, 2) // its own AUTH_SUCCESS and PEER_REGISTERED; broadcasts exclude the subject
	require.Equal(t, "AUTH_SUCCESS", senderB.sent[0].Event)
	require.Equal(t, "PEER_REGISTERED", senderB.sent[1].Event)
	_ = hub
}

func TestHandleDiscoverPeers_NullNetworkYieldsEmptyList(t *testing.T) {
	// S3 (first half): a peer with no network discovers nobody.
	deps, _, _, _ := newHarness(t)
	conn, sender := registerPeer(t, deps, "a", "")
	sender.sent = nil

	result := HandleDiscoverPeers(deps, conn)
	apply(deps.Hub, result)

	got := decode[wire.PeersList](t, sender.sent[0].Data)
	require.Empty(t, got.Peers)
}

func TestHandleDiscoverPeers_CrossNetworkIsolation(t *testing.T) {
	deps, _, _, _ := newHarness(t)
	connA, senderA := registerPeer(t, deps, "a", "netX")
	registerPeer(t, deps, "b", "netY")
	senderA.sent = nil

	result := HandleDiscoverPeers(deps, connA)
	apply(deps.Hub, result)

	got := decode[wire.PeersList](t, senderA.sent[0].Data)
	require.Empty(t, got.Peers)
}

func TestHandleConnectionRequest_CrossNetworkRejected(t *testing.T) {
	// S3 (second half): ERR_2007, and nothing delivered to the target.
	deps, _, _, _ := newHarness(t)
	connA, senderA := registerPeer(t, deps, "a", "netX")
	_, senderB := registerPeer(t, deps, "b", "netY")
	senderA.sent = nil
	senderB.sent = nil

	result := HandleConnectionRequest(deps, connA, wire.ConnectionRequestPayload{TargetID: "b"})
	apply(deps.Hub, result)

	require.Empty(t, senderB.sent)
	require.Len(t, senderA.sent, 1)
	got := decode[wire.ErrorPayload](t, senderA.sent[0].Data)
	require.Equal(t, wire.ErrPeerNotSameNetwork, got.Code)
}

func TestHandleConnectionRequest_TargetNotFound(t *testing.T) {
	deps, _, _, _ := newHarness(t)
	connA, senderA := registerPeer(t, deps, "a", "net1")

	result := HandleConnectionRequest(deps, connA, wire.ConnectionRequestPayload{TargetID: "ghost"})
	apply(deps.Hub, result)

	got := decode[wire.ErrorPayload](t, senderA.sent[len(senderA.sent)-1].Data)
	require.Equal(t, wire.ErrPeerNotFound, got.Code)
}

func TestAcceptedPairingAndMessage(t *testing.T) {
	// S4: accepted pairing followed by a message exchange.
	deps, hub, _, _ := newHarness(t)
	connA, senderA := registerPeer(t, deps, "a", "net1")
	connB, senderB := registerPeer(t, deps, "b", "net1")
	senderA.sent = nil
	senderB.sent = nil

	reqResult := HandleConnectionRequest(deps, connA, wire.ConnectionRequestPayload{TargetID: "b"})
	apply(hub, reqResult)
	require.Len(t, senderB.sent, 1)
	received := decode[wire.ConnectionRequestReceived](t, senderB.sent[0].Data)
	require.Equal(t, "a", received.From.ID)

	senderB.sent = nil
	respResult := HandleConnectionResponse(deps, connB, wire.ConnectionResponsePayload{RequestID: received.RequestID, Accepted: true})
	apply(hub, respResult)

	require.Len(t, senderA.sent, 1)
	accepted := decode[wire.ConnectionAccepted](t, senderA.sent[0].Data)
	require.Equal(t, "b", accepted.Peer.ID)

	require.Len(t, senderB.sent, 1)
	created := decode[wire.SessionCreated](t, senderB.sent[0].Data)
	require.Equal(t, accepted.SessionID, created.SessionID)

	senderA.sent = nil
	senderB.sent = nil
	msgResult := HandleSendMessage(deps, connA, wire.SendMessagePayload{
		SessionID: accepted.SessionID,
		Content:   json.RawMessage(`{"text":"hi"}`),
	})
	apply(hub, msgResult)

	require.Empty(t, senderA.sent) // sender never receives its own message
	require.Len(t, senderB.sent, 1)
	msg := decode[wire.MessageReceived](t, senderB.sent[0].Data)
	require.Equal(t, "a", msg.From)
	require.JSONEq(t, `{"text":"hi"}`, string(msg.Content))
}

func TestHandleConnectionResponse_Rejected(t *testing.T) {
	deps, hub, _, _ := newHarness(t)
	connA, senderA := registerPeer(t, deps, "a", "net1")
	connB, _ := registerPeer(t, deps, "b", "net1")
	senderA.sent = nil

	reqResult := HandleConnectionRequest(deps, connA, wire.ConnectionRequestPayload{TargetID: "b"})
	apply(hub, reqResult)

	var reqID string
	for _, e := range reqResult.Emissions {
		reqID = decode[wire.ConnectionRequestReceived](t, e.Frame.Data).RequestID
	}

	senderA.sent = nil
	respResult := HandleConnectionResponse(deps, connB, wire.ConnectionResponsePayload{RequestID: reqID, Accepted: false})
	apply(hub, respResult)

	require.Len(t, senderA.sent, 1)
	rejected := decode[wire.ConnectionRejected](t, senderA.sent[0].Data)
	require.Equal(t, "b", rejected.TargetID)
}

func TestHandleConnectionResponse_WrongResponder(t *testing.T) {
	deps, hub, _, _ := newHarness(t)
	connA, _ := registerPeer(t, deps, "a", "net1")
	_, _ = registerPeer(t, deps, "b", "net1")
	connC, senderC := registerPeer(t, deps, "c", "net1")

	reqResult := HandleConnectionRequest(deps, connA, wire.ConnectionRequestPayload{TargetID: "b"})
	apply(hub, reqResult)
	reqID := decode[wire.ConnectionRequestReceived](t, reqResult.Emissions[0].Frame.Data).RequestID

	result := HandleConnectionResponse(deps, connC, wire.ConnectionResponsePayload{RequestID: reqID, Accepted: true})
	apply(hub, result)

	got := decode[wire.ErrorPayload](t, senderC.sent[len(senderC.sent)-1].Data)
	require.Equal(t, wire.ErrRequestUnauthorized, got.Code)
}

func TestHandleSendMessage_NotParticipant(t *testing.T) {
	deps, hub, _, _ := newHarness(t)
	connA, senderA := registerPeer(t, deps, "a", "net1")
	connB, _ := registerPeer(t, deps, "b", "net1")

	reqResult := HandleConnectionRequest(deps, connA, wire.ConnectionRequestPayload{TargetID: "b"})
	apply(hub, reqResult)
	reqID := decode[wire.ConnectionRequestReceived](t, reqResult.Emissions[0].Frame.Data).RequestID
	respResult := HandleConnectionResponse(deps, connB, wire.ConnectionResponsePayload{RequestID: reqID, Accepted: true})
	apply(hub, respResult)
	sessionID := decode[wire.ConnectionAccepted](t, respResult.Emissions[0].Frame.Data).SessionID

	connC, senderC := registerPeer(t, deps, "c", "net1")
	senderA.sent = nil

	result := HandleSendMessage(deps, connC, wire.SendMessagePayload{SessionID: sessionID, Content: json.RawMessage(`{}`)})
	apply(hub, result)

	got := decode[wire.ErrorPayload](t, senderC.sent[len(senderC.sent)-1].Data)
	require.Equal(t, wire.ErrNotParticipant, got.Code)
}

func TestHandlePing(t *testing.T) {
	// R3: PONG timestamps are monotonically non-decreasing.
	deps, _, _, _ := newHarness(t)
	conn := registry.NewConnection(registry.NewSocketID(), &fakeSender{}, deps.Now())
	deps.Hub.AddSocket(conn)

	r1 := HandlePing(deps, conn)
	apply(deps.Hub, r1)
	p1 := decode[wire.Pong](t, r1.Emissions[0].Frame.Data)

	r2 := HandlePing(deps, conn)
	apply(deps.Hub, r2)
	p2 := decode[wire.Pong](t, r2.Emissions[0].Frame.Data)

	require.True(t, conn.Alive())
	require.GreaterOrEqual(t, p2.Timestamp, p1.Timestamp)
}

func TestHandleDisconnect_BroadcastsOfflineAndCleansUp(t *testing.T) {
	deps, hub, _, _ := newHarness(t)
	connA, senderA := registerPeer(t, deps, "a", "net1")
	_, senderB := registerPeer(t, deps, "b", "net1")
	senderB.sent = nil

	result := HandleDisconnect(deps, connA)
	apply(hub, result)

	_, ok := hub.LookupByUser("a")
	require.False(t, ok)
	require.Len(t, senderB.sent, 1)
	update := decode[wire.PeerStatusUpdate](t, senderB.sent[0].Data)
	require.Equal(t, "a", update.ID)
	require.Equal(t, registry.StatusOffline, update.Status)
	_ = senderA
}

func TestHandleDisconnect_OfflineBroadcastReflectsLANEvenAfterUnregister(t *testing.T) {
	// Regression: subject's Peer is already removed from the registry by
	// the time the offline broadcast is built, so connectionMode must come
	// from subject's IP hash directly rather than a post-removal lookup.
	deps, hub, ver, res := newHarness(t)
	ver.identities["a"] = identity.Identity{UserID: "a", DisplayName: "a"}
	res.networks["a"] = "net1"
	connA := registry.NewConnection(registry.NewSocketID(), &fakeSender{}, deps.Now())
	hub.AddSocket(connA)
	apply(hub, HandleAuth(context.Background(), deps, connA, wire.AuthRequest{Token: "a"}, "shared-hash"))
	apply(hub, HandlePeerRegister(deps, connA, wire.PeerRegisterRequest{}))

	ver.identities["b"] = identity.Identity{UserID: "b", DisplayName: "b"}
	res.networks["b"] = "net1"
	connB := registry.NewConnection(registry.NewSocketID(), &fakeSender{}, deps.Now())
	hub.AddSocket(connB)
	apply(hub, HandleAuth(context.Background(), deps, connB, wire.AuthRequest{Token: "b"}, "shared-hash"))
	apply(hub, HandlePeerRegister(deps, connB, wire.PeerRegisterRequest{}))

	senderB := connB.Sender.(*fakeSender)
	senderB.sent = nil

	apply(hub, HandleDisconnect(deps, connA))

	require.Len(t, senderB.sent, 1)
	update := decode[wire.PeerStatusUpdate](t, senderB.sent[0].Data)
	require.Equal(t, registry.ConnectionModeLAN, update.ConnectionMode)
}
