package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/michaelbrown/schoolbot/internal/agent"
	"github.com/michaelbrown/schoolbot/internal/apperr"
	"github.com/michaelbrown/schoolbot/internal/storage"
)

// --- JSON helpers ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"detail": msg})
}

func decodeJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

// bearerToken extracts the token from an "Authorization: Bearer <token>"
// header. It returns "" when the header is absent or malformed.
func bearerToken(header string) string {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// --- Chat ---

type chatRequest struct {
	Message string `json:"message"`
	UserID  *int64 `json:"user_id,omitempty"`
	ChatID  *int64 `json:"chat_id,omitempty"`
}

type chatResponse struct {
	Response string         `json:"response"`
	Data     map[string]any `json:"data"`
}

// newChatResponse renders a result. On success the full trace is included;
// on failure only the call count accumulated so far.
func newChatResponse(res *agent.Result, err error) chatResponse {
	if res == nil {
		res = &agent.Result{}
	}
	if err != nil {
		return chatResponse{
			Response: "Error: " + err.Error(),
			Data:     map[string]any{"function_call_count": res.Count()},
		}
	}
	return chatResponse{
		Response: res.Response,
		Data: map[string]any{
			"api_calls":           res.APICalls(),
			"api_responses":       res.APIResponses(),
			"function_call_count": res.Count(),
		},
	}
}

// statusFor maps an error kind to the HTTP status of the chat response.
// Only backend failures change the status; everything else, including a
// token the backend rejects mid-request, is reported in the body with 200.
// The one 401 is the missing bearer check in handleChat.
func statusFor(err error) int {
	if apperr.KindOf(err) == apperr.KindBackend {
		return http.StatusInternalServerError
	}
	return http.StatusOK
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r.Header.Get("Authorization"))
	if token == "" {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req chatRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}

	ctx := r.Context()
	if s.opts.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.RequestTimeout)
		defer cancel()
	}

	start := time.Now()
	res, err := s.chat.Chat(ctx, agent.Request{
		Message: req.Message,
		ChatID:  req.ChatID,
		UserID:  req.UserID,
		Token:   token,
	})

	status := http.StatusOK
	if err != nil {
		status = statusFor(err)
		s.logger.Error("chat failed", "status", status, "kind", apperr.KindOf(err).String(), "err", err)
	}
	resp := newChatResponse(res, err)

	s.recordTrace(ctx, req, res, resp.Response, status, err, time.Since(start))
	writeJSON(w, status, resp)
}

// recordTrace writes the request outcome to the audit log. Failures are
// logged and never affect the response.
func (s *Server) recordTrace(ctx context.Context, req chatRequest, res *agent.Result, response string, status int, err error, elapsed time.Duration) {
	if s.opts.Store == nil {
		return
	}

	tr := &storage.Trace{
		ChatID:     req.ChatID,
		UserID:     req.UserID,
		Message:    req.Message,
		Response:   response,
		Status:     storage.StatusOK,
		HTTPStatus: status,
		Duration:   elapsed,
	}
	if err != nil {
		tr.Status = storage.StatusFailed
		tr.Error = err.Error()
	}
	if res != nil {
		for _, c := range res.Calls {
			tr.Calls = append(tr.Calls, storage.TraceCall{Tool: c.Tool, Args: c.Args, Result: c.Result, Error: c.Err})
		}
	}

	if saveErr := s.opts.Store.SaveTrace(context.WithoutCancel(ctx), tr); saveErr != nil {
		s.logger.Warn("saving trace", "err", saveErr)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
