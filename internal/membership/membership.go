// Package membership defines the membership-resolver external collaborator
// interface (§6): the mapping from a user to their active invite-code
// network.
package membership

import "context"

// Resolver maps a user id to their currently active network id.
//
// Returning ok == false (for any reason, including a backing-store error)
// means "no active network" — the core treats this as non-fatal: the user's
// Peer keeps network_id == null and discovery/pairing are simply
// unavailable to them (§7).
type Resolver interface {
	ActiveNetwork(ctx context.Context, userID string) (networkID string, ok bool)
}
