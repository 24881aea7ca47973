package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOfWrapped(t *testing.T) {
	base := Backend("create_class", 502, "bad gateway", nil)
	wrapped := fmt.Errorf("executing tool: %w", fmt.Errorf("loop turn 2: %w", base))

	assert.Equal(t, KindBackend, KindOf(wrapped))
	assert.True(t, Is(wrapped, KindBackend))
	assert.False(t, Is(wrapped, KindValidation))

	var e *Error
	if assert.True(t, errors.As(wrapped, &e)) {
		assert.Equal(t, 502, e.Status)
		assert.Equal(t, "bad gateway", e.Body)
	}
}

func TestKindOfPlainError(t *testing.T) {
	assert.Equal(t, KindUnknown, KindOf(errors.New("boom")))
	assert.False(t, Is(nil, KindUnknown))
}

func TestErrorMessage(t *testing.T) {
	tests := []struct {
		name string
		err  *Error
		want string
	}{
		{
			name: "validation with field",
			err:  Validation("create_class", "sessions[0].amount", errors.New("must be greater than 0")),
			want: "create_class: validation (sessions[0].amount): must be greater than 0",
		},
		{
			name: "backend with status",
			err:  Backend("/classes/create", 500, "oops", nil),
			want: "/classes/create: backend status 500: oops",
		},
		{
			name: "unknown tool",
			err:  UnknownTool("delete_school"),
			want: `delete_school: unknown_tool: tool "delete_school" is not registered`,
		},
		{
			name: "max turns",
			err:  MaxTurns(3),
			want: "max_turns: no final answer after 3 model turns",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestUnwrap(t *testing.T) {
	cause := errors.New("dial tcp: refused")
	err := Backend("/messages/create", 0, "", cause)
	assert.ErrorIs(t, err, cause)
}
