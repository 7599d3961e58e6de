package wsconn

import (
	"context"
	"time"

	"github.com/coldbrewlabs/pairhub/internal/dispatch"
	"github.com/coldbrewlabs/pairhub/internal/logger"
	"github.com/coldbrewlabs/pairhub/internal/registry"
)

// CloseHeartbeatTimeout is the close code used when a connection misses two
// consecutive heartbeat sweeps. The spec names no application-level code
// for this path (only 4001/4002 are reserved), so a normal closure code is
// used.
const CloseHeartbeatTimeout = 1000

// RunHeartbeatSupervisor runs the liveness sweep every interval until ctx is
// canceled (§4.7). For each live connection: if alive == false, it is force
// terminated (it has missed two consecutive sweeps); otherwise alive is set
// to false and a low-level ping is sent. A pong or any received
// application frame sets alive back to true in between sweeps.
func RunHeartbeatSupervisor(ctx context.Context, deps dispatch.Deps, hub *registry.Hub, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sweep(deps, hub)
		}
	}
}

func sweep(deps dispatch.Deps, hub *registry.Hub) {
	for _, conn := range hub.AllSockets() {
		if conn.Closed() {
			continue
		}
		if !conn.Alive() {
			logger.Debugf("heartbeat: terminating unresponsive socket %s", conn.SocketID)
			conn.Terminate(CloseHeartbeatTimeout, "heartbeat timeout")
			result := dispatch.HandleDisconnect(deps, conn)
			deliver(hub, result)
			continue
		}
		conn.SetAlive(false)
		conn.Ping()
	}
}

func deliver(hub *registry.Hub, result dispatch.EventResult) {
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
