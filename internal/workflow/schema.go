package workflow

import (
	"encoding/json"
	"sort"
	"strings"
)

// Schema is the output-shape declaration of an LLM node. It is either a
// strict JSON schema or an example value whose shape implies one; both
// normalize to the same strict form.
type Schema interface {
	isSchema()
}

// Strict is a JSON-schema-like document carrying at least one schema marker.
type Strict struct {
	Node map[string]any
}

// Example is any value standing in for the shape of the expected output.
type Example struct {
	Value any
}

func (Strict) isSchema()  {}
func (Example) isSchema() {}

var primitiveTypes = map[string]bool{
	"string": true, "number": true, "integer": true, "boolean": true,
	"object": true, "array": true, "null": true,
}

var schemaMarkers = []string{"type", "properties", "items", "enum"}

// ParseSchema classifies a raw schema value. A JSON string is decoded
// first; nil or an empty string means no schema.
func ParseSchema(v any) Schema {
	if s, ok := v.(string); ok {
		s = strings.TrimSpace(s)
		if s == "" {
			return nil
		}
		var decoded any
		if err := json.Unmarshal([]byte(s), &decoded); err == nil {
			v = decoded
		}
	}
	if v == nil {
		return nil
	}
	if m, ok := v.(map[string]any); ok {
		if len(m) == 0 {
			return nil
		}
		if hasMarker(m) {
			return Strict{Node: m}
		}
	}
	return Example{Value: v}
}

// Normalize converts a schema into the strict form used for constrained
// decoding. A root object without "type" and "properties" is read as a
// properties map with every key required. The result is deterministic and
// normalizing it again returns an equal value.
func Normalize(s Schema) map[string]any {
	var v any
	switch t := s.(type) {
	case Strict:
		v = t.Node
	case Example:
		v = t.Value
	case nil:
		return map[string]any{"type": "string"}
	}

	if m, ok := v.(map[string]any); ok {
		_, hasType := m["type"]
		_, hasProps := m["properties"]
		if !hasType && !hasProps {
			return objectOf(m)
		}
	}
	return normalizeNode(v)
}

// NormalizeValue parses and normalizes a raw schema value.
func NormalizeValue(v any) map[string]any {
	return Normalize(ParseSchema(v))
}

func normalizeNode(v any) map[string]any {
	switch t := v.(type) {
	case nil:
		return map[string]any{"type": "string"}
	case string:
		if primitiveTypes[t] {
			return map[string]any{"type": t}
		}
		return map[string]any{"type": "string", "description": t}
	case bool:
		return map[string]any{"type": "boolean"}
	case float64, float32, int, int64, json.Number:
		return map[string]any{"type": "number"}
	case []any:
		return map[string]any{"type": "array", "items": map[string]any{"type": "string"}}
	case map[string]any:
		if !hasMarker(t) {
			return objectOf(t)
		}
		return normalizeMarked(t)
	}
	return map[string]any{"type": "string"}
}

// objectOf wraps a bare key map as an object schema with every key required.
func objectOf(m map[string]any) map[string]any {
	keys := make([]string, 0, len(m))
	props := make(map[string]any, len(m))
	for k, v := range m {
		keys = append(keys, k)
		props[k] = normalizeNode(v)
	}
	sort.Strings(keys)
	required := make([]any, len(keys))
	for i, k := range keys {
		required[i] = k
	}
	return map[string]any{"type": "object", "properties": props, "required": required}
}

func normalizeMarked(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}

	typ, hasType := m["type"]
	if hasType {
		name, _ := typ.(string)
		if !primitiveTypes[name] {
			clean := map[string]any{"type": "string"}
			if d, ok := m["description"].(string); ok {
				clean["description"] = d
			}
			return clean
		}
	} else {
		switch {
		case m["properties"] != nil:
			out["type"] = "object"
		case m["items"] != nil:
			out["type"] = "array"
		default:
			out["type"] = "string"
		}
	}

	if raw, ok := m["properties"]; ok {
		props, isMap := raw.(map[string]any)
		if !isMap {
			delete(out, "properties")
		} else {
			norm := make(map[string]any, len(props))
			for k, v := range props {
				norm[k] = normalizeNode(v)
			}
			out["properties"] = norm
		}
	}
	if items, ok := m["items"]; ok {
		out["items"] = normalizeNode(items)
	}
	if out["type"] == "array" && out["items"] == nil {
		out["items"] = map[string]any{"type": "string"}
	}
	if req, ok := out["required"].([]string); ok {
		conv := make([]any, len(req))
		for i, r := range req {
			conv[i] = r
		}
		out["required"] = conv
	}
	return out
}

func hasMarker(m map[string]any) bool {
	for _, k := range schemaMarkers {
		if _, ok := m[k]; ok {
			return true
		}
	}
	return false
}
