package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/michaelbrown/schoolbot/internal/agent"
	"github.com/michaelbrown/schoolbot/internal/apperr"
	"github.com/michaelbrown/schoolbot/internal/backend"
	"github.com/michaelbrown/schoolbot/internal/llm"
	"github.com/michaelbrown/schoolbot/internal/storage"
	"github.com/michaelbrown/schoolbot/internal/storage/sqlite"
	"github.com/michaelbrown/schoolbot/internal/tools"
)

const testOrigin = "http://localhost:3015"

// stubLLM replays replies in order; a nil reply with a non-nil error fails
// that invocation.
type stubLLM struct {
	mu      sync.Mutex
	replies []*llm.Response
	errs    []error
	calls   int
}

func (s *stubLLM) Generate(ctx context.Context, turns []llm.Turn, tools []llm.ToolDef, gen *llm.GenerationConfig) (*llm.Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.calls
	s.calls++
	if i < len(s.errs) && s.errs[i] != nil {
		return nil, s.errs[i]
	}
	if i >= len(s.replies) {
		return nil, errors.New("script exhausted")
	}
	return s.replies[i], nil
}

func (s *stubLLM) invocations() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// stubTools answers every call with a fixed result or error.
type stubTools struct {
	result any
	err    error
	tokens []string
}

func (s *stubTools) Execute(ctx context.Context, name string, args map[string]any, token string) (any, error) {
	s.tokens = append(s.tokens, token)
	return s.result, s.err
}

func (s *stubTools) ToolDefs() []llm.ToolDef { return []llm.ToolDef{{Name: "find_classes"}} }

func (s *stubTools) Mutates(name string) bool { return strings.HasPrefix(name, "create_") }

func call(name string, args map[string]any) *llm.Response {
	return &llm.Response{Parts: []llm.Part{{Call: &llm.ToolCall{Name: name, Args: args}}}}
}

func text(s string) *llm.Response {
	return &llm.Response{Parts: []llm.Part{{Text: s}}}
}

func newTestServer(t *testing.T, client llm.Client, runner agent.ToolRunner, store storage.Store) *Server {
	t.Helper()
	prompt := filepath.Join(t.TempDir(), "system_prompt.txt")
	require.NoError(t, os.WriteFile(prompt, []byte("You help school staff."), 0o644))

	a := agent.New(client, runner, agent.Options{PromptPath: prompt})
	return New(a, Options{AllowedOrigin: testOrigin, Store: store})
}

func postChat(t *testing.T, s *Server, auth, body string) (*httptest.ResponseRecorder, chatResponse) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(body))
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	var resp chatResponse
	if rec.Code != http.StatusBadRequest {
		_ = json.Unmarshal(rec.Body.Bytes(), &resp)
	}
	return rec, resp
}

func TestChatRequiresBearer(t *testing.T) {
	tests := []struct {
		name string
		auth string
	}{
		{name: "missing header", auth: ""},
		{name: "wrong scheme", auth: "Basic dXNlcjpwYXNz"},
		{name: "empty token", auth: "Bearer "},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &stubLLM{replies: []*llm.Response{text("hi")}}
			s := newTestServer(t, client, &stubTools{}, nil)

			rec, _ := postChat(t, s, tt.auth, `{"message":"hello"}`)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Zero(t, client.invocations(), "model must not be invoked")
		})
	}
}

func TestChatBadRequest(t *testing.T) {
	s := newTestServer(t, &stubLLM{}, &stubTools{}, nil)

	rec, _ := postChat(t, s, "Bearer tok", `{"message":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestChatEmptyMessageReachesModel(t *testing.T) {
	client := &stubLLM{replies: []*llm.Response{text("What would you like to do?")}}
	s := newTestServer(t, client, &stubTools{}, nil)

	rec, resp := postChat(t, s, "Bearer tok", `{"message":"  "}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "What would you like to do?", resp.Response)
	assert.Equal(t, float64(0), resp.Data["function_call_count"])
	assert.Equal(t, 1, client.invocations())
}

func TestChatSuccess(t *testing.T) {
	client := &stubLLM{replies: []*llm.Response{
		call("find_classes", map[string]any{"name": "Math"}),
		text("raw"),
		text("You have one Math class."),
	}}
	tools := &stubTools{result: map[string]any{"total": float64(1)}}
	s := newTestServer(t, client, tools, nil)

	rec, resp := postChat(t, s, "Bearer tok-123", `{"message":"find math","chat_id":5}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	assert.Equal(t, "You have one Math class.", resp.Response)
	assert.Equal(t, float64(1), resp.Data["function_call_count"])
	assert.Equal(t, []any{map[string]any{"tool": "find_classes", "args": map[string]any{"name": "Math"}}}, resp.Data["api_calls"])
	assert.Equal(t, []any{map[string]any{"total": float64(1)}}, resp.Data["api_responses"])
	assert.Equal(t, []string{"tok-123"}, tools.tokens)
}

func TestChatWithoutToolCalls(t *testing.T) {
	client := &stubLLM{replies: []*llm.Response{text("Hello!")}}
	s := newTestServer(t, client, &stubTools{}, nil)

	rec, resp := postChat(t, s, "Bearer tok", `{"message":"hi"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Hello!", resp.Response)
	assert.Equal(t, float64(0), resp.Data["function_call_count"])
	assert.Equal(t, []any{}, resp.Data["api_calls"])
	assert.Equal(t, 1, client.invocations())
}

func TestChatSummarizerFailure(t *testing.T) {
	client := &stubLLM{
		replies: []*llm.Response{call("create_class", map[string]any{"name": "Art"}), text("raw")},
		errs:    []error{nil, nil, errors.New("model overloaded")},
	}
	s := newTestServer(t, client, &stubTools{result: map[string]any{"id": float64(9)}}, nil)

	rec, resp := postChat(t, s, "Bearer tok", `{"message":"create Art"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, agent.SummaryFallback, resp.Response)
	assert.Equal(t, []any{map[string]any{"id": float64(9)}}, resp.Data["api_responses"])
}

func TestChatErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		client     *stubLLM
		tools      *stubTools
		wantStatus int
		wantCount  float64
	}{
		{
			name:       "backend error",
			client:     &stubLLM{replies: []*llm.Response{call("find_classes", nil)}},
			tools:      &stubTools{err: apperr.Backend("/classes/find-classes", 502, "bad gateway", nil)},
			wantStatus: http.StatusInternalServerError,
			wantCount:  1,
		},
		{
			name:       "expired token",
			client:     &stubLLM{replies: []*llm.Response{call("find_classes", nil)}},
			tools:      &stubTools{err: apperr.Unauthenticated("find_classes", "token expired")},
			wantStatus: http.StatusOK,
			wantCount:  1,
		},
		{
			name:       "validation error",
			client:     &stubLLM{replies: []*llm.Response{call("create_class", nil)}},
			tools:      &stubTools{err: apperr.Validation("create_class", "sessions", errors.New("is required"))},
			wantStatus: http.StatusOK,
			wantCount:  1,
		},
		{
			name:       "model error",
			client:     &stubLLM{errs: []error{errors.New("quota")}},
			tools:      &stubTools{},
			wantStatus: http.StatusOK,
			wantCount:  0,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, tt.client, tt.tools, nil)

			rec, resp := postChat(t, s, "Bearer tok", `{"message":"go"}`)
			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.True(t, strings.HasPrefix(resp.Response, "Error: "), resp.Response)
			assert.Equal(t, tt.wantCount, resp.Data["function_call_count"])
			assert.NotContains(t, resp.Data, "api_calls")
		})
	}
}

func TestChatBackendRejectsToken(t *testing.T) {
	backendSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"message":"jwt expired"}`))
	}))
	defer backendSrv.Close()

	exec := tools.NewExecutor(tools.NewRegistry(), backend.NewGateway(backendSrv.URL, 0, nil), nil)
	client := &stubLLM{replies: []*llm.Response{call("find_classes", map[string]any{"name": "Math"})}}
	s := newTestServer(t, client, exec, nil)

	rec, resp := postChat(t, s, "Bearer expired", `{"message":"find math"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.HasPrefix(resp.Response, "Error: find_classes: unauthenticated"), resp.Response)
	assert.Equal(t, float64(1), resp.Data["function_call_count"])
}

func TestChatRecordsTrace(t *testing.T) {
	store, err := sqlite.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	client := &stubLLM{replies: []*llm.Response{call("find_classes", map[string]any{"month": float64(5)}), text("raw"), text("ok")}}
	s := newTestServer(t, client, &stubTools{result: "cal"}, store)

	rec, _ := postChat(t, s, "Bearer tok", `{"message":"may","chat_id":3,"user_id":8}`)
	require.Equal(t, http.StatusOK, rec.Code)

	traces, err := store.ListTraces(context.Background(), storage.ListOptions{})
	require.NoError(t, err)
	require.Len(t, traces, 1)

	tr := traces[0]
	assert.Equal(t, "may", tr.Message)
	assert.Equal(t, "ok", tr.Response)
	assert.Equal(t, storage.StatusOK, tr.Status)
	assert.Equal(t, 200, tr.HTTPStatus)
	require.NotNil(t, tr.ChatID)
	assert.Equal(t, int64(3), *tr.ChatID)
	require.Len(t, tr.Calls, 1)
	assert.Equal(t, "find_classes", tr.Calls[0].Tool)
	assert.Equal(t, "cal", tr.Calls[0].Result)
}

func TestChatRecordsFailedTrace(t *testing.T) {
	store, err := sqlite.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	client := &stubLLM{replies: []*llm.Response{call("find_classes", nil)}}
	s := newTestServer(t, client, &stubTools{err: apperr.Backend("/classes/find-classes", 500, "boom", nil)}, store)

	rec, _ := postChat(t, s, "Bearer tok", `{"message":"x"}`)
	require.Equal(t, http.StatusInternalServerError, rec.Code)

	traces, err := store.ListTraces(context.Background(), storage.ListOptions{Status: storage.StatusFailed})
	require.NoError(t, err)
	require.Len(t, traces, 1)
	assert.Equal(t, 500, traces[0].HTTPStatus)
	assert.Contains(t, traces[0].Error, "boom")
	assert.NotEmpty(t, traces[0].Calls[0].Error)
}

func TestCORS(t *testing.T) {
	s := newTestServer(t, &stubLLM{}, &stubTools{}, nil)

	req := httptest.NewRequest(http.MethodOptions, "/chat", nil)
	req.Header.Set("Origin", testOrigin)
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, testOrigin, rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))

	req = httptest.NewRequest(http.MethodOptions, "/chat", nil)
	req.Header.Set("Origin", "http://evil.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, &stubLLM{}, &stubTools{}, nil)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		header string
		want   string
	}{
		{"Bearer abc", "abc"},
		{"bearer abc", "abc"},
		{"  Bearer   abc  ", "abc"},
		{"Bearer", ""},
		{"Token abc", ""},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, bearerToken(tt.header), "header %q", tt.header)
	}
}

func TestWebSocketStreamsTrace(t *testing.T) {
	client := &stubLLM{replies: []*llm.Response{
		call("find_classes", map[string]any{"name": "Math"}),
		text("raw"),
		text("Found it."),
	}}
	tools := &stubTools{result: "r"}
	s := newTestServer(t, client, tools, nil)

	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/chat/ws?token=ws-tok"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(wsIncoming{Type: "message", Message: "find math"}))

	var events []wsOutgoing
	for {
		var ev wsOutgoing
		require.NoError(t, conn.ReadJSON(&ev))
		events = append(events, ev)
		if ev.Type == "done" || ev.Type == "error" {
			break
		}
	}

	require.Len(t, events, 3)
	assert.Equal(t, "tool_call", events[0].Type)
	assert.Equal(t, "find_classes", events[0].Name)
	assert.Equal(t, "tool_result", events[1].Type)
	assert.Equal(t, "r", events[1].Result)
	assert.Equal(t, "done", events[2].Type)
	assert.Equal(t, "Found it.", events[2].Content)
	require.NotNil(t, events[2].Chat)
	assert.Equal(t, float64(1), events[2].Chat.Data["function_call_count"])
	assert.Equal(t, []string{"ws-tok"}, tools.tokens)
}

func TestWebSocketInvalidMessage(t *testing.T) {
	s := newTestServer(t, &stubLLM{}, &stubTools{}, nil)
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/chat/ws"
	header := http.Header{"Authorization": []string{"Bearer tok"}}
	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(wsIncoming{Type: "ping"}))

	var ev wsOutgoing
	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, "error", ev.Type)
	assert.Equal(t, "invalid message", ev.Content)
}

func TestWebSocketRequiresToken(t *testing.T) {
	s := newTestServer(t, &stubLLM{}, &stubTools{}, nil)
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/chat/ws"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
