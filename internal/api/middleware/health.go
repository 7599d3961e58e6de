package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// HealthStats is the narrow snapshot the /healthz handler reports. The
// durable health-probe surface itself is an external collaborator (§1); this
// is just the thin in-process reporter it polls.
type HealthStats struct {
	Peers    int
	Sessions int
	Sockets  int
}

// HealthHandler builds a gin handler reporting process uptime and registry
// sizes for the health-probe surface.
func HealthHandler(startedAt time.Time, stats func() HealthStats) gin.HandlerFunc {
	return func(c *gin.Context) {
		s := stats()
		c.JSON(http.StatusOK, gin.H{
			"status":       "ok",
			"uptimeMillis": time.Since(startedAt).Milliseconds(),
			"peers":        s.Peers,
			"sessions":     s.Sessions,
			"sockets":      s.Sockets,
		})
	}
}
