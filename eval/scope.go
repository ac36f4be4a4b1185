// Package eval provides variable scopes, token classification and the
// bounded expression evaluator used by the template engine.
package eval

import (
	"strconv"
	"strings"
)

// Scope is the flattened name→value mapping visible to one resolution call
type Scope map[string]interface{}

// Clone returns a shallow copy of the scope
func (s Scope) Clone() Scope {
	out := make(Scope, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// Lookup resolves a bare name or a dotted path. A key that exists as-is
// wins over a nested walk, so names containing dots stay addressable.
func (s Scope) Lookup(path string) (interface{}, bool) {
	if val, ok := s[path]; ok {
		return val, true
	}

	parts := strings.Split(path, ".")
	if len(parts) < 2 {
		return nil, false
	}
	root, ok := s[parts[0]]
	if !ok {
		return nil, false
	}
	return getNestedValue(root, parts[1:])
}

// getNestedValue walks maps by key and slices by index
func getNestedValue(data interface{}, path []string) (interface{}, bool) {
	current := data
	for _, key := range path {
		switch v := current.(type) {
		case map[string]interface{}:
			next, ok := v[key]
			if !ok {
				return nil, false
			}
			current = next
		case Scope:
			next, ok := v[key]
			if !ok {
				return nil, false
			}
			current = next
		case map[string]string:
			next, ok := v[key]
			if !ok {
				return nil, false
			}
			current = next
		case []interface{}:
			idx, err := strconv.Atoi(key)
			if err != nil || idx < 0 || idx >= len(v) {
				return nil, false
			}
			current = v[idx]
		case []string:
			idx, err := strconv.Atoi(key)
			if err != nil || idx < 0 || idx >= len(v) {
				return nil, false
			}
			current = v[idx]
		default:
			return nil, false
		}
	}
	return current, true
}
