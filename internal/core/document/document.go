// Package document provides access helpers for structured event payloads.
//
// A payload is a JSON-like tree: map[string]interface{}, []interface{}, string,
// bool, nil, Go integers, float64 or json.Number. Sources decode JSON with
// UseNumber so integers keep their integer identity.
package document

import (
	"strconv"
	"strings"
)

// Lookup resolves a dotted path against doc. The literal key "a.b.c" is tried
// first; when absent the path is walked segment by segment. A numeric segment
// indexes into an array.
func Lookup(doc map[string]interface{}, path string) (interface{}, bool) {
	if doc == nil || path == "" {
		return nil, false
	}
	if v, ok := doc[path]; ok {
		return v, true
	}
	if !strings.Contains(path, ".") {
		return nil, false
	}

	var cur interface{} = doc
	for _, seg := range strings.Split(path, ".") {
		switch node := cur.(type) {
		case map[string]interface{}:
			next, ok := node[seg]
			if !ok {
				return nil, false
			}
			cur = next
		case []interface{}:
			idx, err := strconv.Atoi(seg)
			if err != nil || idx < 0 || idx >= len(node) {
				return nil, false
			}
			cur = node[idx]
		default:
			return nil, false
		}
	}
	return cur, true
}

// Clone returns a deep copy of v. Maps and slices are copied recursively;
// scalars are returned as is.
func Clone(v interface{}) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		return CloneMap(val)
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, item := range val {
			out[i] = Clone(item)
		}
		return out
	default:
		return val
	}
}

// CloneMap deep-copies a payload object. A nil map stays nil.
func CloneMap(m map[string]interface{}) map[string]interface{} {
	if m == nil {
		return nil
	}
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = Clone(v)
	}
	return out
}
