package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"

	"github.com/gorilla/websocket"
)

// LiveMessage is a frame on the live preview channel
type LiveMessage struct {
	Type   string             `json:"type"`
	Input  *AthleteInput      `json:"input,omitempty"`
	Result *TranslationResult `json:"result,omitempty"`
	Error  string             `json:"error,omitempty"`
}

// LiveSession is an open live preview connection. Preview calls are serialized.
type LiveSession struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

// Live opens a live preview connection
func (c *Client) Live(ctx context.Context) (*LiveSession, error) {
	u, err := url.Parse(c.baseURL + "/api/v1/translate/live")
	if err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}

	header := http.Header{}
	if c.apiKey != "" {
		header.Set("Authorization", "Bearer "+c.apiKey)
	}

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, u.String(), header)
	if err != nil {
		if resp != nil {
			return nil, &APIError{StatusCode: resp.StatusCode, Code: "handshake_failed", Message: err.Error()}
		}
		return nil, fmt.Errorf("failed to connect: %w", err)
	}

	return &LiveSession{conn: conn}, nil
}

// Preview sends input and waits for the rendered result
func (s *LiveSession) Preview(input AthleteInput) (*TranslationResult, error) {
	reply, err := s.exchange(LiveMessage{Type: "input", Input: &input})
	if err != nil {
		return nil, err
	}
	if reply.Type == "error" {
		return nil, errors.New(reply.Error)
	}
	if reply.Result == nil {
		return nil, fmt.Errorf("unexpected %q reply", reply.Type)
	}
	return reply.Result, nil
}

// Ping checks the connection is alive
func (s *LiveSession) Ping() error {
	reply, err := s.exchange(LiveMessage{Type: "ping"})
	if err != nil {
		return err
	}
	if reply.Type != "pong" {
		return fmt.Errorf("unexpected %q reply", reply.Type)
	}
	return nil
}

// Close closes the connection
func (s *LiveSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = s.conn.WriteMessage(websocket.CloseMessage, msg)
	return s.conn.Close()
}

func (s *LiveSession) exchange(msg LiveMessage) (*LiveMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.conn.WriteJSON(msg); err != nil {
		return nil, fmt.Errorf("failed to send: %w", err)
	}

	var reply LiveMessage
	if err := s.conn.ReadJSON(&reply); err != nil {
		return nil, fmt.Errorf("failed to read reply: %w", err)
	}
	return &reply, nil
}
