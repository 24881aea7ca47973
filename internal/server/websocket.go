package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/michaelbrown/schoolbot/internal/agent"
	"github.com/michaelbrown/schoolbot/internal/llm"
)

// wsIncoming is a message from the client.
type wsIncoming struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	ChatID  *int64 `json:"chat_id,omitempty"`
	UserID  *int64 `json:"user_id,omitempty"`
}

// wsOutgoing is a message to the client.
type wsOutgoing struct {
	Type    string        `json:"type"`
	Content string        `json:"content,omitempty"`
	Name    string        `json:"name,omitempty"`
	Args    any           `json:"args,omitempty"`
	Result  any           `json:"result,omitempty"`
	Chat    *chatResponse `json:"chat,omitempty"`
}

func (s *Server) upgrader() *websocket.Upgrader {
	return &websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || origin == s.opts.AllowedOrigin
		},
	}
}

// handleWebSocket runs chat requests over one connection, streaming each
// tool call and result as it happens. Browsers cannot set headers on a
// WebSocket handshake, so the token may also come from the "token" query.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r.Header.Get("Authorization"))
	if token == "" {
		token = strings.TrimSpace(r.URL.Query().Get("token"))
	}
	if token == "" {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := s.upgrader().Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade", "err", err)
		return
	}
	defer conn.Close()

	for {
		var msg wsIncoming
		if err := conn.ReadJSON(&msg); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Warn("websocket read", "err", err)
			}
			return
		}

		if msg.Type != "message" {
			s.wsWriteJSON(conn, wsOutgoing{Type: "error", Content: "invalid message"})
			continue
		}

		s.processWebSocketMessage(r.Context(), conn, token, msg)
	}
}

func (s *Server) processWebSocketMessage(ctx context.Context, conn *websocket.Conn, token string, msg wsIncoming) {
	if s.opts.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.RequestTimeout)
		defer cancel()
	}

	start := time.Now()
	res, err := s.chat.Chat(ctx, agent.Request{
		Message: msg.Message,
		ChatID:  msg.ChatID,
		UserID:  msg.UserID,
		Token:   token,
		OnToolCall: func(call llm.ToolCall) {
			s.wsWriteJSON(conn, wsOutgoing{Type: "tool_call", Name: call.Name, Args: call.Args})
		},
		OnToolResult: func(call llm.ToolCall, result any) {
			s.wsWriteJSON(conn, wsOutgoing{Type: "tool_result", Name: call.Name, Result: result})
		},
	})

	status := http.StatusOK
	if err != nil {
		status = statusFor(err)
	}
	resp := newChatResponse(res, err)
	s.recordTrace(ctx, chatRequest{Message: msg.Message, ChatID: msg.ChatID, UserID: msg.UserID},
		res, resp.Response, status, err, time.Since(start))

	if err != nil {
		s.wsWriteJSON(conn, wsOutgoing{Type: "error", Content: err.Error(), Chat: &resp})
		return
	}
	s.wsWriteJSON(conn, wsOutgoing{Type: "done", Content: resp.Response, Chat: &resp})
}

func (s *Server) wsWriteJSON(conn *websocket.Conn, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		s.logger.Warn("websocket marshal", "err", err)
		return
	}
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		s.logger.Warn("websocket write", "err", err)
	}
}
