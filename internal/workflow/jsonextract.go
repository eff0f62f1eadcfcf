package workflow

import (
	"bytes"
	"encoding/json"
	"regexp"
	"strings"
)

var fencedBlock = regexp.MustCompile("(?s)```(?:json|JSON)?\\s*\\n?(.*?)```")

// ExtractJSON pulls a JSON value out of model output that may wrap it in a
// markdown fence or surrounding prose. A fenced block wins when present;
// otherwise the whole text is tried, then the span from the first '{' to
// the last '}'. Numbers decode as json.Number.
func ExtractJSON(text string) (any, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, false
	}

	if m := fencedBlock.FindStringSubmatch(text); m != nil {
		return decodeJSON(strings.TrimSpace(m[1]))
	}
	if v, ok := decodeJSON(text); ok {
		return v, true
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return nil, false
	}
	return decodeJSON(text[start : end+1])
}

// ExtractObject is ExtractJSON restricted to JSON objects.
func ExtractObject(text string) (map[string]any, bool) {
	v, ok := ExtractJSON(text)
	if !ok {
		return nil, false
	}
	obj, ok := v.(map[string]any)
	return obj, ok
}

func decodeJSON(s string) (any, bool) {
	if s == "" {
		return nil, false
	}
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, false
	}
	// Trailing content means the text was not a single JSON value.
	if dec.More() {
		return nil, false
	}
	return v, true
}

// stringify renders a resolved value the way it should appear inside a
// prompt: strings verbatim, everything else as compact JSON.
func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case json.Number:
		return t.String()
	case nil:
		return "null"
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return ""
	}
	return strings.TrimSuffix(buf.String(), "\n")
}
