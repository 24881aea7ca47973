// Package storage is the operator audit log of handled chat requests. Records
// are written after a request finishes and are never read back into a
// conversation.
package storage

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when no trace matches an ID or prefix.
var ErrNotFound = errors.New("trace not found")

// TraceStatus is the outcome of a request.
type TraceStatus string

const (
	StatusOK     TraceStatus = "ok"
	StatusFailed TraceStatus = "failed"
)

// TraceCall is one tool invocation made while handling a request.
type TraceCall struct {
	Tool   string         `json:"tool" yaml:"tool"`
	Args   map[string]any `json:"args" yaml:"args"`
	Result any            `json:"result,omitempty" yaml:"result,omitempty"`
	Error  string         `json:"error,omitempty" yaml:"error,omitempty"`
}

// Trace is the audit record of one chat request.
type Trace struct {
	ID         string        `json:"id" yaml:"id"`
	ChatID     *int64        `json:"chat_id,omitempty" yaml:"chat_id,omitempty"`
	UserID     *int64        `json:"user_id,omitempty" yaml:"user_id,omitempty"`
	Message    string        `json:"message" yaml:"message"`
	Response   string        `json:"response" yaml:"response"`
	Status     TraceStatus   `json:"status" yaml:"status"`
	HTTPStatus int           `json:"http_status" yaml:"http_status"`
	Error      string        `json:"error,omitempty" yaml:"error,omitempty"`
	Calls      []TraceCall   `json:"calls" yaml:"calls"`
	Duration   time.Duration `json:"duration_ns" yaml:"duration"`
	CreatedAt  time.Time     `json:"created_at" yaml:"created_at"`
}

// CallCount is the number of tool calls the model made.
func (t *Trace) CallCount() int { return len(t.Calls) }

// ListOptions controls filtering and pagination for ListTraces.
type ListOptions struct {
	Status TraceStatus
	ChatID *int64
	Limit  int
	Offset int
}

// Store is the persistence interface for traces.
type Store interface {
	// SaveTrace inserts a trace. An empty ID is filled with a new UUID and a
	// zero CreatedAt with the current time.
	SaveTrace(ctx context.Context, t *Trace) error

	// GetTrace returns a trace by ID or unique ID prefix.
	GetTrace(ctx context.Context, id string) (*Trace, error)

	// ListTraces returns traces ordered by created_at descending.
	ListTraces(ctx context.Context, opts ListOptions) ([]Trace, error)

	// DeleteTrace removes a trace by ID or unique ID prefix.
	DeleteTrace(ctx context.Context, id string) error

	// Close releases resources.
	Close() error
}
