package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nugget/lifeops/internal/events"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	// streamBuffer is the per-connection event backlog. Events beyond it
	// are dropped for that connection.
	streamBuffer = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The stream is read-only and unauthenticated like the rest of the
	// API, which is meant to listen on a trusted interface.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// handleEvents streams pipeline events to a WebSocket client as JSON
// text frames. An optional ?source= filter keeps only events from the
// named sources (comma separated).
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if s.bus == nil {
		s.errorResponse(w, http.StatusServiceUnavailable, "unavailable", "event stream not configured")
		return
	}

	var sources map[string]bool
	if raw := r.URL.Query().Get("source"); raw != "" {
		sources = make(map[string]bool)
		for _, src := range strings.Split(raw, ",") {
			if src = strings.TrimSpace(src); src != "" {
				sources[src] = true
			}
		}
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		s.logger.Debug("websocket upgrade failed", "error", err)
		return
	}

	ch := s.bus.Subscribe(streamBuffer)
	s.logger.Debug("event stream opened", "remote", r.RemoteAddr, "subscribers", s.bus.SubscriberCount())

	done := make(chan struct{})
	go s.readPump(conn, done)
	s.writePump(conn, ch, sources, done)

	s.bus.Unsubscribe(ch)
	s.logger.Debug("event stream closed", "remote", r.RemoteAddr)
}

// readPump consumes client frames so control messages are processed.
// It closes done when the connection fails or the client hangs up.
func (s *Server) readPump(conn *websocket.Conn, done chan<- struct{}) {
	defer close(done)

	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Debug("event stream read error", "error", err)
			}
			return
		}
	}
}

// writePump forwards events and keeps the connection alive with pings.
// It owns all writes to conn and closes it on return.
func (s *Server) writePump(conn *websocket.Conn, ch <-chan events.Event, sources map[string]bool, done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = conn.Close()
	}()

	for {
		select {
		case <-done:
			return

		case e, ok := <-ch:
			if !ok {
				_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
				_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if sources != nil && !sources[e.Source] {
				continue
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(e); err != nil {
				s.logger.Debug("event stream write failed", "error", err)
				return
			}

		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
