package workflow

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/rotisserie/eris"
)

// ErrContextOverwrite is returned when a node id is written twice within
// one run.
var ErrContextOverwrite = eris.New("context entry already set")

// NodeID identifies a node within a workflow graph and keys the run context.
type NodeID string

// Entry is one node's contribution to a run: the configuration it ran with
// and the text it produced.
type Entry struct {
	Input  any    `json:"input"`
	Output string `json:"output"`
}

// RunContext is the ordered, append-only record of node outputs within a
// single run. The zero value is ready to use.
type RunContext struct {
	order   []NodeID
	entries map[NodeID]Entry
}

// NewRunContext returns an empty context.
func NewRunContext() *RunContext {
	return &RunContext{entries: map[NodeID]Entry{}}
}

// Set records a node's entry. Entries are never replaced.
func (c *RunContext) Set(id NodeID, e Entry) error {
	if c.entries == nil {
		c.entries = map[NodeID]Entry{}
	}
	if _, ok := c.entries[id]; ok {
		return eris.Wrapf(ErrContextOverwrite, "workflow: node %q", id)
	}
	c.entries[id] = e
	c.order = append(c.order, id)
	return nil
}

// Get returns a node's entry.
func (c *RunContext) Get(id NodeID) (Entry, bool) {
	if c == nil {
		return Entry{}, false
	}
	e, ok := c.entries[id]
	return e, ok
}

// Has reports whether a node has produced output.
func (c *RunContext) Has(id NodeID) bool {
	_, ok := c.Get(id)
	return ok
}

// Len is the number of recorded nodes.
func (c *RunContext) Len() int {
	if c == nil {
		return 0
	}
	return len(c.order)
}

// IDs returns node ids in insertion order.
func (c *RunContext) IDs() []NodeID {
	if c == nil {
		return nil
	}
	return append([]NodeID(nil), c.order...)
}

// Latest walks entries from most to least recent until fn returns true.
func (c *RunContext) Latest(fn func(id NodeID, e Entry) bool) {
	if c == nil {
		return
	}
	for i := len(c.order) - 1; i >= 0; i-- {
		id := c.order[i]
		if fn(id, c.entries[id]) {
			return
		}
	}
}

// MarshalJSON writes the context as an object in insertion order.
func (c *RunContext) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, id := range c.IDs() {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(string(id))
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(c.entries[id])
		if err != nil {
			return nil, eris.Wrapf(err, "workflow: marshal context entry %q", id)
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads a context object preserving key order. Each value is
// either {input, output} or a bare output; non-string outputs are kept as
// their JSON text.
func (c *RunContext) UnmarshalJSON(data []byte) error {
	*c = RunContext{entries: map[NodeID]Entry{}}
	if t := strings.TrimSpace(string(data)); t == "null" || t == "" {
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return eris.Wrap(err, "workflow: decode context")
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return eris.New("workflow: context must be a JSON object")
	}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return eris.Wrap(err, "workflow: decode context key")
		}
		key, _ := tok.(string)
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return eris.Wrapf(err, "workflow: decode context entry %q", key)
		}
		if err := c.Set(NodeID(key), decodeEntry(raw)); err != nil {
			return err
		}
	}
	_, err = dec.Token()
	return eris.Wrap(err, "workflow: decode context")
}

func decodeEntry(raw json.RawMessage) Entry {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err == nil {
		if out, ok := obj["output"]; ok {
			e := Entry{Output: rawText(out)}
			if in, ok := obj["input"]; ok {
				var input any
				if json.Unmarshal(in, &input) == nil {
					e.Input = input
				}
			}
			return e
		}
	}
	return Entry{Output: rawText(raw)}
}

// rawText returns a JSON string's value, or the raw JSON text of anything
// else.
func rawText(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}
