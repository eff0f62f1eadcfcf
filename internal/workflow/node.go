package workflow

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
)

// Kind is the closed set of node kinds the executor understands. Any type
// name outside the adapter kinds is an LLM prompt node.
type Kind int

const (
	KindLLM Kind = iota
	KindJSON
	KindJSONBuilder
	KindLeadInput
	KindBox1Input
	KindBox1Output
	KindLeadOutput
	KindAnymailfinder
)

var kindNames = map[string]Kind{
	"JSON":          KindJSON,
	"JSON_BUILDER":  KindJSONBuilder,
	"LEAD_INPUT":    KindLeadInput,
	"BOX1_INPUT":    KindBox1Input,
	"BOX1_OUTPUT":   KindBox1Output,
	"LEAD_OUTPUT":   KindLeadOutput,
	"ANYMAILFINDER": KindAnymailfinder,
}

func (k Kind) String() string {
	for name, kind := range kindNames {
		if kind == k {
			return name
		}
	}
	return "LLM"
}

// KindOf maps a node type name to its kind.
func KindOf(typeName string) Kind {
	if k, ok := kindNames[typeName]; ok {
		return k
	}
	return KindLLM
}

// Node is one decoded workflow graph vertex.
type Node interface {
	ID() NodeID
	Kind() Kind
	// TypeName is the type string the graph declared.
	TypeName() string
	// Definition is the node as it appeared in the graph.
	Definition() json.RawMessage
}

// Base carries the fields every node has.
type Base struct {
	NodeID NodeID
	Type   string
	Raw    json.RawMessage
	Label  string
}

func (b Base) ID() NodeID       { return b.NodeID }
func (b Base) TypeName() string { return b.Type }

func (b Base) Definition() json.RawMessage { return b.Raw }

// JSONNode emits static JSON text.
type JSONNode struct {
	Base
	JSON string
}

// JSONBuilderNode emits a JSON template with variables resolved.
type JSONBuilderNode struct {
	Base
	Template string
}

// LeadInputNode loads leads matching a status filter.
type LeadInputNode struct {
	Base
	StatusFilter string
	Limit        int
}

// Box1InputNode forwards leads from an upstream node, or loads the box1
// input view when none is present.
type Box1InputNode struct {
	Base
	Limit int
}

// Box1OutputNode persists box1 classifications found in the context.
type Box1OutputNode struct {
	Base
}

// LeadOutputNode writes a result column for each lead in the context.
type LeadOutputNode struct {
	Base
	ResultField string
	MarkAsSent  bool
}

// AnymailfinderNode verifies the email of each lead in the context.
type AnymailfinderNode struct {
	Base
	APIKey string
}

// Output modes of an LLM node.
const (
	OutputStructured = "structured"
	OutputFree       = "free"
)

// LLMNode generates text with a model.
type LLMNode struct {
	Base
	Model        string
	SystemPrompt string
	UserPrompt   string
	Temperature  *float64
	Schema       Schema
	RawSchema    any
	OutputMode   string
	Recency      string
	Citations    bool
}

func (JSONNode) Kind() Kind          { return KindJSON }
func (JSONBuilderNode) Kind() Kind   { return KindJSONBuilder }
func (LeadInputNode) Kind() Kind     { return KindLeadInput }
func (Box1InputNode) Kind() Kind     { return KindBox1Input }
func (Box1OutputNode) Kind() Kind    { return KindBox1Output }
func (LeadOutputNode) Kind() Kind    { return KindLeadOutput }
func (AnymailfinderNode) Kind() Kind { return KindAnymailfinder }
func (LLMNode) Kind() Kind           { return KindLLM }

// Model defaults.
const (
	DefaultGeminiModel     = "gemini-3-pro-preview"
	DefaultPerplexityModel = "sonar"
	defaultInputLimit      = 100
)

// rawNode is the graph editor's node shape. Configuration may sit at the
// top level or under data; top-level values win.
type rawNode struct {
	ID   string         `json:"id"`
	Type string         `json:"type"`
	Data map[string]any `json:"data"`
	Top  map[string]any `json:"-"`
}

func (r rawNode) get(key string) any {
	if v, ok := r.Top[key]; ok && v != nil {
		return v
	}
	return r.Data[key]
}

func (r rawNode) str(key string) string {
	switch v := r.get(key).(type) {
	case string:
		return v
	case nil:
		return ""
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		b, _ := json.Marshal(v)
		return string(b)
	}
}

func (r rawNode) boolean(key string) bool {
	switch v := r.get(key).(type) {
	case bool:
		return v
	case string:
		b, _ := strconv.ParseBool(v)
		return b
	}
	return false
}

func (r rawNode) float(key string) (float64, bool) {
	switch v := r.get(key).(type) {
	case float64:
		return v, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		return f, err == nil
	}
	return 0, false
}

func (r rawNode) integer(key string, def int) int {
	if f, ok := r.float(key); ok && f > 0 {
		return int(f)
	}
	return def
}

// DecodeNode decodes one graph node into its typed variant. The node type
// is data.type, falling back to type.
func DecodeNode(raw json.RawMessage) (Node, error) {
	var r rawNode
	if err := json.Unmarshal(raw, &r); err != nil {
		return nil, eris.Wrap(err, "workflow: decode node")
	}
	if err := json.Unmarshal(raw, &r.Top); err != nil {
		return nil, eris.Wrap(err, "workflow: decode node")
	}
	if r.ID == "" {
		return nil, eris.New("workflow: node has no id")
	}

	typeName, _ := r.Data["type"].(string)
	if typeName == "" {
		typeName = r.Type
	}
	base := Base{
		NodeID: NodeID(r.ID),
		Type:   typeName,
		Raw:    append(json.RawMessage(nil), raw...),
		Label:  r.str("label"),
	}

	switch KindOf(typeName) {
	case KindJSON:
		return JSONNode{Base: base, JSON: orEmptyObject(r.str("json"))}, nil
	case KindJSONBuilder:
		return JSONBuilderNode{Base: base, Template: orEmptyObject(r.str("json"))}, nil
	case KindLeadInput:
		return LeadInputNode{
			Base:         base,
			StatusFilter: r.str("statusFilter"),
			Limit:        r.integer("limit", defaultInputLimit),
		}, nil
	case KindBox1Input:
		return Box1InputNode{Base: base, Limit: r.integer("limit", defaultInputLimit)}, nil
	case KindBox1Output:
		return Box1OutputNode{Base: base}, nil
	case KindLeadOutput:
		return LeadOutputNode{
			Base:        base,
			ResultField: r.str("resultField"),
			MarkAsSent:  r.boolean("markAsSent"),
		}, nil
	case KindAnymailfinder:
		return AnymailfinderNode{Base: base, APIKey: r.str("apiKey")}, nil
	}

	n := LLMNode{
		Base:         base,
		Model:        r.str("model"),
		SystemPrompt: r.str("systemPrompt"),
		UserPrompt:   r.str("userPrompt"),
		RawSchema:    r.get("schema"),
		OutputMode:   r.str("outputMode"),
		Recency:      r.str("recency"),
		Citations:    r.boolean("citations"),
	}
	if n.Model == "" {
		// The graph editor's PERPLEXITY node carries no model of its own.
		if r.Type == "PERPLEXITY" || typeName == "PERPLEXITY" {
			n.Model = DefaultPerplexityModel
		}
	}
	if t, ok := r.float("temperature"); ok && t != 0 {
		n.Temperature = &t
	}
	n.Schema = ParseSchema(n.RawSchema)
	return n, nil
}

// DecodeNodes decodes a graph's node list in order.
func DecodeNodes(raws []json.RawMessage) ([]Node, error) {
	nodes := make([]Node, 0, len(raws))
	for i, raw := range raws {
		n, err := DecodeNode(raw)
		if err != nil {
			return nil, eris.Wrapf(err, "workflow: node %d", i)
		}
		nodes = append(nodes, n)
	}
	return nodes, nil
}

func orEmptyObject(s string) string {
	if s == "" {
		return "{}"
	}
	return s
}
