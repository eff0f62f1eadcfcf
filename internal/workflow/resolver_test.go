package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func contextOf(t *testing.T, kv ...string) *RunContext {
	t.Helper()
	rc := NewRunContext()
	for i := 0; i+1 < len(kv); i += 2 {
		require.NoError(t, rc.Set(NodeID(kv[i]), Entry{Output: kv[i+1]}))
	}
	return rc
}

func TestResolve(t *testing.T) {
	rc := contextOf(t,
		"a", `{"x": 5, "nested": {"name": "Acme"}, "list": ["p", "q"], "obj": {"k": "v"}, "nil": null}`,
		"fenced", "Here: ```json\n{\"x\":1}\n```",
		"prose", `Result follows {"fit": "HIT"} end`,
		"text", "plain words",
		"node-1", `{"ok": true}`,
	)

	tests := []struct {
		name     string
		template string
		want     string
	}{
		{"property", "val={{a.x}}", "val=5"},
		{"missing node", "val={{missing.x}}", "val={{missing.x}}"},
		{"missing path", "val={{a.nope}}", "val={{a.nope}}"},
		{"nested path", "{{a.nested.name}}", "Acme"},
		{"array index", "{{a.list.1}}", "q"},
		{"object value", "{{a.obj}}", `{"k":"v"}`},
		{"null value", "{{a.nil}}", "null"},
		{"markdown extraction", "{{fenced.x}}", "1"},
		{"brace slicing", "{{prose.fit}}", "HIT"},
		{"whole output", "{{text}}", "plain words"},
		{"output path", "{{text.output}}", "plain words"},
		{"unparseable with path", "{{text.x}}", "{{text.x}}"},
		{"spaces", "{{ a.x }}", "5"},
		{"hyphenated id", "{{node-1.ok}}", "true"},
		{"multiple tokens", "{{a.x}}-{{a.nested.name}}-{{missing}}", "5-Acme-{{missing}}"},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Resolve(tt.template, rc))
		})
	}
}

func TestResolve_NilContext(t *testing.T) {
	assert.Equal(t, "{{a.x}}", Resolve("{{a.x}}", nil))
}
