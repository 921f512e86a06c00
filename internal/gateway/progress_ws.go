package gateway

import (
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/fieldhand/fieldhand/internal/progress"
	"github.com/fieldhand/fieldhand/internal/sessions"
)

const (
	wsReadLimit = 4096
	wsPongWait  = 60 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  8192,
	WriteBufferSize: 8192,
	CheckOrigin: func(*http.Request) bool {
		return true
	},
}

// handleProgress upgrades the connection and binds it to the session's
// progress channel. The stream is server-to-client only: the read loop exists
// to detect close and abort frames, and any client text is ignored.
func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	if s.opts.Hub == nil {
		writeError(w, http.StatusNotImplemented, "progress streaming not configured")
		return
	}

	sessionID := r.URL.Query().Get("session_id")
	if sessionID == "" {
		writeError(w, http.StatusBadRequest, "session_id is required")
		return
	}
	if _, err := s.opts.Sessions.Get(r.Context(), sessionID); err != nil {
		if errors.Is(err, sessions.ErrNotFound) {
			writeError(w, http.StatusNotFound, "session not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "session lookup failed")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		return
	}

	ch := progress.NewWSChannel(conn)
	if err := s.opts.Hub.Register(sessionID, ch); err != nil {
		s.logger.Warn("progress registration failed", "session_id", sessionID, "error", err)
		_ = ch.Close()
		return
	}

	s.logger.Debug("progress channel opened", "session_id", sessionID)

	conn.SetReadLimit(wsReadLimit)
	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	go s.progressReadLoop(sessionID, conn, ch)
}

// progressReadLoop drains the connection until it closes, then unregisters
// the channel. Removal is keyed to this connection's channel so a lagging
// read loop cannot tear down a replacement registered after a reconnect.
// In-flight tool executions keep running; only their progress reporting is
// lost.
func (s *Server) progressReadLoop(sessionID string, conn *websocket.Conn, ch *progress.WSChannel) {
	defer func() {
		s.opts.Hub.Remove(sessionID, ch)
		_ = ch.Close()
		s.logger.Debug("progress channel closed", "session_id", sessionID)
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	}
}
