package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"dronefleet/internal/hub"
	"dronefleet/internal/logging"
)

const wsReadLimit = 4096

// wsConn carries hub frames as text messages and probes with ping frames.
type wsConn struct {
	conn *websocket.Conn
}

func deadline(ctx context.Context) time.Time {
	if dl, ok := ctx.Deadline(); ok {
		return dl
	}
	return time.Time{}
}

func (c *wsConn) Send(ctx context.Context, f hub.Frame) error {
	if err := c.conn.SetWriteDeadline(deadline(ctx)); err != nil {
		return err
	}
	return c.conn.WriteMessage(websocket.TextMessage, f.Payload)
}

func (c *wsConn) Ping(ctx context.Context) error {
	return c.conn.WriteControl(websocket.PingMessage, nil, deadline(ctx))
}

func (c *wsConn) Close() error {
	return c.conn.Close()
}

// handleRootUpgrade accepts WebSocket clients on "/" as well as "/ws".
func (s *Server) handleRootUpgrade(w http.ResponseWriter, r *http.Request) {
	if !websocket.IsWebSocketUpgrade(r) {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "Not found"})
		return
	}
	s.handleWebSocket(w, r)
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context()).With("transport", "websocket", "remote", r.RemoteAddr)
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn("websocket upgrade failed", "err", err)
		return
	}
	ctx := logging.NewContext(r.Context(), log)
	sub, err := s.sim.Hub().Subscribe(ctx, &wsConn{conn: conn})
	if err != nil {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
			time.Now().Add(time.Second))
		conn.Close()
		return
	}

	// Inbound messages are ignored; reading drives pong and close handling and
	// ends when the peer goes away or the hub closes the connection.
	conn.SetReadLimit(wsReadLimit)
	go func() {
		<-r.Context().Done()
		s.sim.Hub().Unsubscribe(sub)
	}()
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	s.sim.Hub().Unsubscribe(sub)
}
