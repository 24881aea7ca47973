package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sdkStruct struct {
	SessionKey string  `json:"sessionKey"`
	Amount     int     `json:"amount"`
	Tags       []int32 `json:"tags"`
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want any
	}{
		{name: "nil", in: nil, want: nil},
		{name: "string", in: "x", want: "x"},
		{name: "int becomes float64", in: 5, want: float64(5)},
		{name: "typed slice", in: []string{"a", "b"}, want: []any{"a", "b"}},
		{
			name: "struct becomes map",
			in:   sdkStruct{SessionKey: "SESSION_1", Amount: 100, Tags: []int32{1}},
			want: map[string]any{"sessionKey": "SESSION_1", "amount": float64(100), "tags": []any{float64(1)}},
		},
		{
			name: "nested composite inside plain map",
			in: map[string]any{
				"sessions": []sdkStruct{{SessionKey: "SESSION_2", Amount: 1}},
			},
			want: map[string]any{
				"sessions": []any{map[string]any{"sessionKey": "SESSION_2", "amount": float64(1), "tags": nil}},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Normalize(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalizeUnsupported(t *testing.T) {
	_, err := Normalize(map[string]any{"ch": make(chan int)})
	assert.Error(t, err)
}

func TestNormalizeArgsNil(t *testing.T) {
	got, err := NormalizeArgs(nil)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{}, got)
}
