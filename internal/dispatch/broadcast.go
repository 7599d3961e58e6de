package dispatch

import (
	"github.com/coldbrewlabs/pairhub/internal/registry"
	"github.com/coldbrewlabs/pairhub/internal/wire"
)

// Broadcast engine (§4.8): recipient sets are derived from the registries at
// emission time — nothing is cached — and the set is snapshotted under the
// registry lock (inside the Hub methods below) before any per-socket write
// happens.

func peerRef(p *registry.Peer) wire.PeerRef {
	return wire.PeerRef{ID: p.UserID, Profile: profileOf(p)}
}

func profileOf(p *registry.Peer) wire.Profile {
	return wire.Profile{DisplayName: p.Profile.DisplayName, IDE: p.Profile.IDE, Role: p.Profile.Role}
}

// broadcastPeerStatusUpdate emits PEER_STATUS_UPDATE for subject to every
// other online peer, in peer-registry insertion order, with connectionMode
// computed per-recipient via same_lan (§4.6). subject's IP hash is taken
// directly off the Peer record passed in rather than re-queried by user id,
// since on the disconnect path subject has already been removed from the
// registry by the time this runs and would no longer be found.
func broadcastPeerStatusUpdate(hub *registry.Hub, subject *registry.Peer, status string, includeProfile bool) []Emission {
	recipients := hub.AllOnlinePeersOrdered()
	out := make([]Emission, 0, len(recipients))
	for _, r := range recipients {
		if r.UserID == subject.UserID {
			continue
		}
		connMode := registry.ConnectionModeRemote
		if hub.SameLANHash(subject.IPHash, r.UserID) {
			connMode = registry.ConnectionModeLAN
		}
		payload := wire.PeerStatusUpdate{
			ID:             subject.UserID,
			Status:         status,
			ConnectionMode: connMode,
		}
		if includeProfile {
			p := profileOf(subject)
			payload.Profile = &p
		}
		out = append(out, toSocket(r.SocketID, frame("PEER_STATUS_UPDATE", payload)))
	}
	return out
}

// buildPeersList constructs the PEERS_LIST payload for requester: every
// online peer in networkID except requester, each with its stored
// connectionMode (§4.6 — unlike PEER_STATUS_UPDATE, DISCOVER_PEERS does not
// recompute per-recipient LAN/REMOTE).
func buildPeersList(hub *registry.Hub, requesterUserID, networkID string) wire.PeersList {
	peers := hub.OnlineInNetwork(networkID)
	list := make([]wire.PeerSummary, 0, len(peers))
	for _, p := range peers {
		if p.UserID == requesterUserID {
			continue
		}
		list = append(list, wire.PeerSummary{
			ID:             p.UserID,
			Profile:        profileOf(p),
			Status:         p.Status,
			ConnectionMode: p.ConnectionMode,
		})
	}
	return wire.PeersList{Peers: list}
}
