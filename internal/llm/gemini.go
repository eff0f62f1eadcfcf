package llm

import (
	"context"
	"errors"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"github.com/rotisserie/eris"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/sells-group/lead-studio/internal/resilience"
)

// Gemini generates with Google Gemini models.
type Gemini struct {
	client *genai.Client
	gate   *resilience.Gate
}

// NewGemini creates a Gemini generator.
func NewGemini(ctx context.Context, apiKey string, gate *resilience.Gate) (*Gemini, error) {
	if apiKey == "" {
		return nil, eris.Wrap(ErrProviderNotConfigured, "llm: gemini api key is required")
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, eris.Wrap(err, "llm: create gemini client")
	}
	return &Gemini{client: client, gate: gate}, nil
}

// Close releases the underlying client.
func (g *Gemini) Close() error {
	if g.client != nil {
		return g.client.Close()
	}
	return nil
}

// Generate implements Generator.
func (g *Gemini) Generate(ctx context.Context, req Request) (string, error) {
	m := g.client.GenerativeModel(req.Model)
	applyRequest(m, req)

	return resilience.Call(ctx, g.gate, func(ctx context.Context) (string, error) {
		resp, err := m.GenerateContent(ctx, genai.Text(req.UserPrompt))
		if err != nil {
			return "", classifyGemini(err)
		}
		return responseText(resp)
	})
}

// applyRequest copies system instruction, temperature and output
// constraints onto a model handle.
func applyRequest(m *genai.GenerativeModel, req Request) {
	if req.SystemPrompt != "" {
		m.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(req.SystemPrompt)}}
	}
	temp := DefaultTemperature(FamilyGemini)
	if req.Temperature != nil {
		temp = *req.Temperature
	}
	m.SetTemperature(float32(temp))

	switch {
	case len(req.Schema) > 0:
		m.ResponseMIMEType = "application/json"
		m.ResponseSchema = toGenaiSchema(req.Schema)
	case req.JSONMode:
		m.ResponseMIMEType = "application/json"
	}
}

var genaiTypes = map[string]genai.Type{
	"string":  genai.TypeString,
	"number":  genai.TypeNumber,
	"integer": genai.TypeInteger,
	"boolean": genai.TypeBoolean,
	"object":  genai.TypeObject,
	"array":   genai.TypeArray,
}

// toGenaiSchema converts a strict JSON schema document into the SDK's
// schema type. Gemini has no null type, so "null" becomes a nullable string.
func toGenaiSchema(s map[string]any) *genai.Schema {
	out := &genai.Schema{Type: genai.TypeString}
	if t, _ := s["type"].(string); t != "" {
		if gt, ok := genaiTypes[t]; ok {
			out.Type = gt
		} else if t == "null" {
			out.Nullable = true
		}
	}
	if d, _ := s["description"].(string); d != "" {
		out.Description = d
	}
	if enum, ok := s["enum"].([]any); ok {
		for _, e := range enum {
			if str, ok := e.(string); ok {
				out.Enum = append(out.Enum, str)
			}
		}
	}
	if props, ok := s["properties"].(map[string]any); ok {
		out.Properties = make(map[string]*genai.Schema, len(props))
		for k, v := range props {
			if child, ok := v.(map[string]any); ok {
				out.Properties[k] = toGenaiSchema(child)
			}
		}
	}
	if items, ok := s["items"].(map[string]any); ok {
		out.Items = toGenaiSchema(items)
	}
	switch req := s["required"].(type) {
	case []string:
		out.Required = append(out.Required, req...)
	case []any:
		for _, r := range req {
			if str, ok := r.(string); ok {
				out.Required = append(out.Required, str)
			}
		}
	}
	return out
}

func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return "", eris.New("llm: gemini response has no candidates")
	}
	c := resp.Candidates[0]
	if c.Content == nil || len(c.Content.Parts) == 0 {
		return "", eris.New("llm: gemini response has no content")
	}
	var b strings.Builder
	for _, p := range c.Content.Parts {
		if t, ok := p.(genai.Text); ok {
			b.WriteString(string(t))
		}
	}
	if b.Len() == 0 {
		return "", eris.New("llm: gemini response has no text parts")
	}
	return b.String(), nil
}

func classifyGemini(err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) && resilience.IsTransientHTTPStatus(gerr.Code) {
		return resilience.NewTransientError(eris.Wrap(err, "llm: gemini generate"), gerr.Code)
	}
	return eris.Wrap(err, "llm: gemini generate")
}
