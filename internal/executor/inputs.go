package executor

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
)

// Inputs is the loosely typed input map of a step. Plans come from an
// untrusted generator, so every accessor checks shape and reports an
// InputError instead of assuming it.
type Inputs map[string]any

// Value returns the raw value stored under key.
func (in Inputs) Value(key string) (any, bool) {
	v, ok := in[key]
	if ok && v == nil {
		return nil, false
	}
	return v, ok
}

// RequireString returns a non-empty string input.
func (in Inputs) RequireString(key string) (string, error) {
	v, ok := in.Value(key)
	if !ok {
		return "", &InputError{Key: key, Want: "a non-empty string"}
	}
	s, ok := v.(string)
	if !ok {
		return "", &InputError{Key: key, Want: "a string", Got: v}
	}
	if strings.TrimSpace(s) == "" {
		return "", &InputError{Key: key, Want: "a non-empty string"}
	}
	return s, nil
}

// String returns a string input, or def when it is absent.
func (in Inputs) String(key, def string) (string, error) {
	v, ok := in.Value(key)
	if !ok {
		return def, nil
	}
	s, ok := v.(string)
	if !ok {
		return "", &InputError{Key: key, Want: "a string", Got: v}
	}
	if s == "" {
		return def, nil
	}
	return s, nil
}

// StringSlice returns a list of strings. A single string is treated as a
// one-element list; a missing key yields nil.
func (in Inputs) StringSlice(key string) ([]string, error) {
	v, ok := in.Value(key)
	if !ok {
		return nil, nil
	}
	switch t := v.(type) {
	case string:
		return []string{t}, nil
	case []string:
		return t, nil
	case []any:
		out := make([]string, 0, len(t))
		for i, item := range t {
			s, ok := item.(string)
			if !ok {
				return nil, &InputError{Key: fmt.Sprintf("%s[%d]", key, i), Want: "a string", Got: item}
			}
			out = append(out, s)
		}
		return out, nil
	}
	return nil, &InputError{Key: key, Want: "a list of strings", Got: v}
}

// Int returns an integer input, or def when it is absent. JSON numbers decode
// as float64, so integral floats are accepted.
func (in Inputs) Int(key string, def int) (int, error) {
	v, ok := in.Value(key)
	if !ok {
		return def, nil
	}
	switch t := v.(type) {
	case int:
		return t, nil
	case int64:
		return int(t), nil
	case float64:
		if t == math.Trunc(t) {
			return int(t), nil
		}
	case json.Number:
		if n, err := t.Int64(); err == nil {
			return int(n), nil
		}
	}
	return 0, &InputError{Key: key, Want: "an integer", Got: v}
}
