package tools

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/michaelbrown/schoolbot/internal/apperr"
	"github.com/michaelbrown/schoolbot/internal/backend"
	"github.com/michaelbrown/schoolbot/internal/llm"
)

// Executor runs tool calls against the backend.
type Executor struct {
	registry *Registry
	backend  backend.Caller
	validate *validator.Validate
	logger   *slog.Logger
}

// NewExecutor creates an Executor over the given registry and backend.
func NewExecutor(registry *Registry, caller backend.Caller, logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{
		registry: registry,
		backend:  caller,
		validate: newValidator(),
		logger:   logger,
	}
}

// ToolDefs returns the declarations passed to the model.
func (e *Executor) ToolDefs() []llm.ToolDef {
	return e.registry.ToolDefs()
}

// Mutates reports whether the named tool creates backend records. Unknown
// names report false.
func (e *Executor) Mutates(name string) bool {
	tool, ok := e.registry.Lookup(name)
	return ok && tool.Mutates()
}

// Execute validates args for the named tool and issues exactly one backend
// call. Unknown names, invalid arguments and missing tokens fail before any
// request is sent.
func (e *Executor) Execute(ctx context.Context, name string, args map[string]any, token string) (any, error) {
	tool, ok := e.registry.Lookup(name)
	if !ok {
		return nil, apperr.UnknownTool(name)
	}

	if tool.RequiresToken() && token == "" {
		return nil, apperr.Unauthenticated(name, "authentication required")
	}

	typed, err := decodeArgs(e.validate, tool, args)
	if err != nil {
		return nil, err
	}

	endpoint := typed.route()
	e.logger.Info("executing tool", "tool", name, "endpoint", endpoint, "args", args)

	result, err := e.backend.Call(ctx, endpoint, http.MethodPost, typed, token)
	if err != nil {
		return nil, translateBackendError(name, err)
	}
	return result, nil
}

// translateBackendError turns a backend 401 into KindUnauthenticated so the
// caller can tell an expired token apart from other failures.
func translateBackendError(tool string, err error) error {
	var be *apperr.Error
	if errors.As(err, &be) && be.Kind == apperr.KindBackend && be.Status == http.StatusUnauthorized {
		return &apperr.Error{
			Kind:   apperr.KindUnauthenticated,
			Op:     tool,
			Status: be.Status,
			Body:   be.Body,
			Err:    errors.New("authentication failed or token expired"),
		}
	}
	return err
}
