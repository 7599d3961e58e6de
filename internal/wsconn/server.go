// Package wsconn adapts the gorilla/websocket transport to the
// connection/dispatch layer: it owns the /ws upgrade, the per-connection
// read pump, the 10s auth timer, and frame (de)serialization.
package wsconn

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/coldbrewlabs/pairhub/internal/dispatch"
	"github.com/coldbrewlabs/pairhub/internal/iphash"
	"github.com/coldbrewlabs/pairhub/internal/logger"
	"github.com/coldbrewlabs/pairhub/internal/registry"
	"github.com/coldbrewlabs/pairhub/internal/wire"
)

// Server upgrades inbound HTTP requests to duplex socket connections and
// runs each connection's read pump (§4.1, §6).
type Server struct {
	Hub         *registry.Hub
	Deps        dispatch.Deps
	IPSalt      string
	AuthTimeout time.Duration

	upgrader websocket.Upgrader
}

// NewServer constructs a Server. allowedOrigins of ["*"] disables the
// origin check entirely, matching the teacher's permissive default.
func NewServer(hub *registry.Hub, deps dispatch.Deps, ipSalt string, authTimeout time.Duration, allowedOrigins []string) *Server {
	allowAll := len(allowedOrigins) == 0
	originSet := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		if o == "*" {
			allowAll = true
		}
		originSet[o] = true
	}
	return &Server{
		Hub:         hub,
		Deps:        deps,
		IPSalt:      ipSalt,
		AuthTimeout: authTimeout,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				if allowAll {
					return true
				}
				return originSet[r.Header.Get("Origin")]
			},
		},
	}
}

// HandleUpgrade upgrades the request and runs the connection's read pump
// until it closes.
func (s *Server) HandleUpgrade(c *gin.Context) {
	raw, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Warnf("websocket upgrade failed: %v", err)
		return
	}

	socketID := registry.NewSocketID()
	sender := &wsSender{conn: raw}
	ipHash := iphash.Hash(s.IPSalt, c.ClientIP())

	conn := registry.NewConnection(socketID, sender, s.Deps.Now())
	s.Hub.AddSocket(conn)

	raw.SetPongHandler(func(string) error {
		conn.SetAlive(true)
		return nil
	})

	authTimer := time.AfterFunc(s.AuthTimeout, func() {
		if conn.State() != registry.ConnStateConnected {
			return
		}
		conn.Emit(frameOf("AUTH_FAILED", wire.AuthFailed{Code: wire.ErrTokenMissing, Message: "authentication timeout"}))
		conn.Terminate(wire.CloseAuthTimeout, "authentication timeout")
	})
	defer authTimer.Stop()

	s.readPump(conn, raw, ipHash)

	result := dispatch.HandleDisconnect(s.Deps, conn)
	s.apply(result)
	conn.Terminate(websocket.CloseNormalClosure, "connection closed")
}

func (s *Server) readPump(conn *registry.Connection, raw *websocket.Conn, ipHash string) {
	ctx := context.Background()
	for {
		_, data, err := raw.ReadMessage()
		if err != nil {
			return
		}
		conn.SetAlive(true)

		result := dispatch.Dispatch(ctx, s.Deps, conn, data, ipHash)
		s.apply(result)

		if conn.Closed() {
			return
		}
	}
}

// apply delivers an EventResult's emissions, then its closes, honoring the
// ordering guarantee that a close follows any frame addressed to the same
// socket (§5(b), AUTH_SUCCESS/AUTH_FAILED semantics generalize to all
// handler-issued closes).
func (s *Server) apply(result dispatch.EventResult) {
	for _, e := range result.Emissions {
		if c, ok := s.Hub.Socket(e.SocketID); ok {
			c.Emit(e.Frame)
		}
	}
	for _, cl := range result.Closes {
		if c, ok := s.Hub.Socket(cl.SocketID); ok {
			c.Terminate(cl.Code, cl.Reason)
		}
	}
}

func frameOf(event string, payload any) wire.Frame {
	b, err := json.Marshal(payload)
	if err != nil {
		b = []byte("{}")
	}
	return wire.Frame{Event: event, Data: b}
}

// wsSender adapts a gorilla/websocket.Conn to registry.Sender.
type wsSender struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
}

func (s *wsSender) Send(f wire.Frame) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	b, err := json.Marshal(f)
	if err != nil {
		return err
	}
	return s.conn.WriteMessage(websocket.TextMessage, b)
}

func (s *wsSender) Close(code int, reason string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	msg := websocket.FormatCloseMessage(code, reason)
	_ = s.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	return s.conn.Close()
}

func (s *wsSender) Ping() error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(time.Second))
}
