// Package dispatch implements the protocol dispatcher and per-event
// handlers that sit between the wire transport and the registries.
package dispatch

import (
	"time"

	"github.com/coldbrewlabs/pairhub/internal/identity"
	"github.com/coldbrewlabs/pairhub/internal/membership"
	"github.com/coldbrewlabs/pairhub/internal/registry"
)

// Default profile fields applied when PEER_REGISTER omits them (§4.6).
const (
	DefaultIDE  = "other"
	DefaultRole = registry.RoleGuest
)

// Deps bundles the narrow dependencies handlers need: the registries, the
// two external-collaborator interfaces, and the clock/id generators so
// tests can control both.
type Deps struct {
	Hub        *registry.Hub
	Identity   identity.Verifier
	Membership membership.Resolver

	now          func() time.Time
	newSessionID func() string
	newRequestID func(time.Time) string
}

// NewDeps builds a dependency bundle for handler calls.
func NewDeps(hub *registry.Hub, ver identity.Verifier, resolver membership.Resolver) Deps {
	return Deps{Hub: hub, Identity: ver, Membership: resolver}
}

// WithClock overrides the clock and id generators, for deterministic tests.
func (d Deps) WithClock(now func() time.Time, newSessionID func() string, newRequestID func(time.Time) string) Deps {
	d.now = now
	d.newSessionID = newSessionID
	d.newRequestID = newRequestID
	return d
}

func (d Deps) Now() time.Time {
	if d.now != nil {
		return d.now()
	}
	return time.Now()
}

func (d Deps) NewSessionID() string {
	if d.newSessionID != nil {
		return d.newSessionID()
	}
	return registry.NewSessionID()
}

func (d Deps) NewRequestID(now time.Time) string {
	if d.newRequestID != nil {
		return d.newRequestID(now)
	}
	return registry.NewRequestID(now)
}
