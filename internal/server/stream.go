package server

import (
	"log/slog"
	"net/http"
	"time"

	"focus-service/internal/focus"

	"github.com/gorilla/websocket"
)

const (
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingInterval = (pongWait * 9) / 10
	streamBuffer = 64
)

// StreamMessage is what the stream endpoint writes for every result.
type StreamMessage struct {
	Type      string                 `json:"type"`
	SessionID string                 `json:"session_id"`
	Timestamp int64                  `json:"timestamp"`
	Payload   *focus.DetectionResult `json:"payload,omitempty"`
}

const (
	msgWelcome = "WELCOME"
	msgResult  = "RESULT"
)

// streamHandler pushes every result of a session to a WebSocket client until
// either side closes.
func (s *Server) streamHandler(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookupSession(w, r)
	if !ok {
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("WebSocket upgrade failed", slog.Any("error", err))
		return
	}
	logger := s.logger.With(slog.String("session_id", sess.ID), slog.String("remote", r.RemoteAddr))
	logger.Info("Stream client connected")

	results, cancel := sess.Subscribe(streamBuffer)
	defer func() {
		cancel()
		conn.Close()
		logger.Info("Stream client disconnected")
	}()

	// Read loop only tracks pongs and notices the client leaving.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					logger.Debug("Stream read error", slog.Any("error", err))
				}
				return
			}
		}
	}()

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(StreamMessage{Type: msgWelcome, SessionID: sess.ID, Timestamp: s.now().UnixMilli()}); err != nil {
		return
	}

	for {
		select {
		case res, ok := <-results:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session closed"))
				return
			}
			msg := StreamMessage{Type: msgResult, SessionID: sess.ID, Timestamp: s.now().UnixMilli(), Payload: &res}
			if err := conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-gone:
			return
		}
	}
}
