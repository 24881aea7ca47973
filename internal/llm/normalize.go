package llm

import (
	"encoding/json"
	"fmt"
)

// Normalize converts a provider argument value into plain Go values:
// map[string]any, []any, string, float64, bool or nil. Provider SDKs may hand
// back their own composite types; a JSON round trip materializes them.
//
// Adapters call this exactly once when decoding a reply.
func Normalize(v any) (any, error) {
	switch t := v.(type) {
	case nil, string, bool, float64:
		return t, nil
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			n, err := Normalize(e)
			if err != nil {
				return nil, fmt.Errorf("key %q: %w", k, err)
			}
			out[k] = n
		}
		return out, nil
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			n, err := Normalize(e)
			if err != nil {
				return nil, fmt.Errorf("index %d: %w", i, err)
			}
			out[i] = n
		}
		return out, nil
	}

	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("materializing %T: %w", v, err)
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("decoding %T: %w", v, err)
	}
	return out, nil
}

// NormalizeArgs is Normalize for a top-level argument object.
func NormalizeArgs(args map[string]any) (map[string]any, error) {
	if args == nil {
		return map[string]any{}, nil
	}
	n, err := Normalize(args)
	if err != nil {
		return nil, err
	}
	return n.(map[string]any), nil
}
