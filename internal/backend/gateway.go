// Package backend is the HTTP client for the school-management REST API.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/michaelbrown/schoolbot/internal/apperr"
)

// Endpoints called by the tool executor.
const (
	EndpointCreateMessage   = "/messages/create"
	EndpointFindMessages    = "/messages/find-messages"
	EndpointHistoryMessages = "/messages/history-messages"
	EndpointClassCalendar   = "/classes/calendar"
	EndpointFindClasses     = "/classes/find-classes"
	EndpointCreateStudent   = "/students/create"
	EndpointCreateClass     = "/classes/create"
)

// The backend reads the session token from this cookie as well as from the
// bearer header.
const authCookie = "Authentication"

const maxErrorBody = 4096

// Caller is what the tool executor needs from the backend.
type Caller interface {
	Call(ctx context.Context, endpoint, method string, payload any, token string) (any, error)
}

// Gateway issues JSON requests against a fixed base URL.
type Gateway struct {
	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

// NewGateway creates a Gateway. A zero timeout means no client-side deadline;
// callers bound requests through the context instead.
func NewGateway(baseURL string, timeout time.Duration, logger *slog.Logger) *Gateway {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gateway{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

// Call sends payload to endpoint and decodes the JSON reply. POST sends the
// payload as the body, GET encodes it as query parameters. Any non-2xx status
// or transport failure is returned as an apperr.KindBackend error carrying the
// status (0 for transport failures) and the response body.
func (g *Gateway) Call(ctx context.Context, endpoint, method string, payload any, token string) (any, error) {
	req, err := g.newRequest(ctx, endpoint, method, payload)
	if err != nil {
		return nil, apperr.Backend(endpoint, 0, "", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
		req.AddCookie(&http.Cookie{Name: authCookie, Value: token})
	}

	start := time.Now()
	resp, err := g.client.Do(req)
	if err != nil {
		g.logger.Warn("backend request failed", "method", method, "endpoint", endpoint, "error", err)
		return nil, apperr.Backend(endpoint, 0, "", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperr.Backend(endpoint, resp.StatusCode, "", fmt.Errorf("reading response: %w", err))
	}

	g.logger.Debug("backend request",
		"method", method,
		"endpoint", endpoint,
		"status", resp.StatusCode,
		"duration", time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, apperr.Backend(endpoint, resp.StatusCode, truncate(string(body)), nil)
	}

	if len(bytes.TrimSpace(body)) == 0 {
		return nil, nil
	}
	var out any
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, apperr.Backend(endpoint, resp.StatusCode, truncate(string(body)), fmt.Errorf("decoding response: %w", err))
	}
	return out, nil
}

func (g *Gateway) newRequest(ctx context.Context, endpoint, method string, payload any) (*http.Request, error) {
	target := g.baseURL + endpoint

	switch strings.ToUpper(method) {
	case http.MethodPost:
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encoding payload: %w", err)
		}
		return http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(data))
	case http.MethodGet:
		query, err := queryValues(payload)
		if err != nil {
			return nil, err
		}
		if len(query) > 0 {
			target += "?" + query.Encode()
		}
		return http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	default:
		return nil, fmt.Errorf("method %s not supported", method)
	}
}

// queryValues flattens a payload object into query parameters. Nested values
// are sent as JSON.
func queryValues(payload any) (url.Values, error) {
	if payload == nil {
		return nil, nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encoding payload: %w", err)
	}
	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("GET payload must be an object: %w", err)
	}

	values := url.Values{}
	for k, v := range fields {
		switch t := v.(type) {
		case nil:
			continue
		case string:
			values.Set(k, t)
		case float64, bool:
			values.Set(k, fmt.Sprint(t))
		default:
			nested, _ := json.Marshal(t)
			values.Set(k, string(nested))
		}
	}
	return values, nil
}

// truncate cuts s to at most maxErrorBody bytes without splitting a rune.
func truncate(s string) string {
	if len(s) <= maxErrorBody {
		return s
	}
	cut := maxErrorBody
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "... (truncated)"
}
