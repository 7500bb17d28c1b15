package config

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

var secretKeys = map[string]bool{
	"llm.api_key":    true,
	"speech.api_key": true,
	"telegram.token": true,
}

// IsSecretKey reports whether the dot-separated key holds a credential.
func IsSecretKey(key string) bool {
	return secretKeys[key]
}

// Flatten converts a nested map into dot-separated keys:
// {"speech": {"model": "m"}} becomes {"speech.model": "m"}.
func Flatten(m map[string]any) map[string]any {
	out := make(map[string]any)
	var walk func(prefix string, m map[string]any)
	walk = func(prefix string, m map[string]any) {
		for k, v := range m {
			if prefix != "" {
				k = prefix + "." + k
			}
			if child, ok := v.(map[string]any); ok {
				walk(k, child)
				continue
			}
			out[k] = v
		}
	}
	walk("", m)
	return out
}

// Unflatten is the inverse of Flatten. A key that collides with a leaf
// replaces it with a map.
func Unflatten(flat map[string]any) map[string]any {
	out := make(map[string]any)
	for k, v := range flat {
		parts := strings.Split(k, ".")
		node := out
		for _, part := range parts[:len(parts)-1] {
			next, ok := node[part].(map[string]any)
			if !ok {
				next = make(map[string]any)
				node[part] = next
			}
			node = next
		}
		node[parts[len(parts)-1]] = v
	}
	return out
}

// MaskSecrets returns a copy of flat with non-empty credentials replaced
// by "***" and their last four characters.
func MaskSecrets(flat map[string]any) map[string]any {
	out := make(map[string]any, len(flat))
	for k, v := range flat {
		out[k] = v
		if s, ok := v.(string); ok && secretKeys[k] && s != "" {
			out[k] = "***" + s[max(0, len(s)-4):]
		}
	}
	return out
}

// schema maps every known key to its default value, which fixes the type
// a value for that key must have.
func schema() map[string]any {
	m, err := ToMap(Default())
	if err != nil {
		panic(err)
	}
	return Flatten(m)
}

// coerce converts raw command-line input to the JSON type of key.
// Channel IDs and tokens stay strings even when they look numeric.
func coerce(key, raw string) (any, error) {
	def, ok := schema()[key]
	if !ok {
		return nil, fmt.Errorf("unknown config key: %s", key)
	}
	switch def.(type) {
	case string:
		return raw, nil
	case float64:
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("%s expects a number: %w", key, err)
		}
		return f, nil
	case bool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, fmt.Errorf("%s expects true or false: %w", key, err)
		}
		return b, nil
	default:
		var v any
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			return nil, fmt.Errorf("%s expects JSON: %w", key, err)
		}
		return v, nil
	}
}
