package api

import (
	"bytes"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/next-chapter/resume-engine/internal/models"
)

// Live message types
const (
	liveTypeInput  = "input"
	liveTypeResult = "result"
	liveTypeError  = "error"
	liveTypePing   = "ping"
	liveTypePong   = "pong"
)

const (
	liveReadLimit   = 64 << 10
	liveIdleTimeout = 5 * time.Minute
	liveWriteWait   = 10 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// handleLiveTranslate streams previews back as the athlete edits the form.
// Previews are neither cached nor recorded in history.
func (s *Server) handleLiveTranslate(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("failed to upgrade to websocket", "error", err)
		return
	}
	defer conn.Close()

	client := ClientFromContext(r.Context())
	s.recorder.LiveConnected(1)
	defer s.recorder.LiveConnected(-1)

	slog.Info("live preview connected", "client", client.Name)

	conn.SetReadLimit(liveReadLimit)

	for {
		conn.SetReadDeadline(time.Now().Add(liveIdleTimeout))

		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Debug("websocket read error", "error", err)
			}
			break
		}

		var msg models.LiveMessage
		if err := decodeStrict(bytes.NewReader(message), &msg); err != nil {
			if s.sendLiveError(conn, "invalid message format") != nil {
				break
			}
			continue
		}

		if err := s.handleLiveMessage(conn, msg); err != nil {
			break
		}
	}

	slog.Info("live preview disconnected", "client", client.Name)
}

func (s *Server) handleLiveMessage(conn *websocket.Conn, msg models.LiveMessage) error {
	switch msg.Type {
	case liveTypeInput:
		if msg.Input == nil {
			return s.sendLiveError(conn, "input is required")
		}
		result, err := s.service.Preview(*msg.Input)
		if err != nil {
			return s.sendLiveError(conn, err.Error())
		}
		return s.sendLiveMessage(conn, models.LiveMessage{Type: liveTypeResult, Result: &result})
	case liveTypePing:
		return s.sendLiveMessage(conn, models.LiveMessage{Type: liveTypePong})
	default:
		return s.sendLiveError(conn, "unknown message type: "+msg.Type)
	}
}

func (s *Server) sendLiveMessage(conn *websocket.Conn, msg models.LiveMessage) error {
	conn.SetWriteDeadline(time.Now().Add(liveWriteWait))
	if err := conn.WriteJSON(msg); err != nil {
		slog.Debug("failed to send live message", "error", err)
		return err
	}
	return nil
}

func (s *Server) sendLiveError(conn *websocket.Conn, message string) error {
	return s.sendLiveMessage(conn, models.LiveMessage{Type: liveTypeError, Error: message})
}
