package workflow

import (
	"regexp"
	"strings"
)

var variableToken = regexp.MustCompile(`\{\{\s*([\w.\-]+)\s*\}\}`)

// Resolve substitutes {{nodeId}} and {{nodeId.path}} tokens with values from
// earlier nodes. A token whose node is absent, whose output cannot be parsed,
// or whose path does not exist is left in place.
func Resolve(template string, rc *RunContext) string {
	if template == "" {
		return ""
	}
	return variableToken.ReplaceAllStringFunc(template, func(token string) string {
		m := variableToken.FindStringSubmatch(token)
		if m == nil {
			return token
		}
		v, ok := lookup(m[1], rc)
		if !ok {
			return token
		}
		return v
	})
}

func lookup(variable string, rc *RunContext) (string, bool) {
	nodeID, path, _ := strings.Cut(variable, ".")
	e, ok := rc.Get(NodeID(nodeID))
	if !ok {
		return "", false
	}
	if path == "" || path == "output" {
		return e.Output, true
	}

	parsed, ok := ExtractJSON(e.Output)
	if !ok {
		return "", false
	}
	v, ok := walkPath(parsed, path)
	if !ok {
		return "", false
	}
	return stringify(v), true
}

// walkPath follows a dotted path through decoded JSON. Array elements are
// addressed by index.
func walkPath(v any, path string) (any, bool) {
	for _, seg := range strings.Split(path, ".") {
		switch node := v.(type) {
		case map[string]any:
			next, ok := node[seg]
			if !ok {
				return nil, false
			}
			v = next
		case []any:
			i, ok := index(seg, len(node))
			if !ok {
				return nil, false
			}
			v = node[i]
		default:
			return nil, false
		}
	}
	return v, true
}

func index(seg string, n int) (int, bool) {
	if seg == "" {
		return 0, false
	}
	i := 0
	for _, r := range seg {
		if r < '0' || r > '9' {
			return 0, false
		}
		i = i*10 + int(r-'0')
		if i >= n {
			return 0, false
		}
	}
	return i, true
}
