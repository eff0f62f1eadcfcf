package llm

import (
	"net/http"
	"testing"

	"github.com/google/generative-ai-go/genai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"

	"github.com/sells-group/lead-studio/internal/resilience"
)

func TestApplyRequest_Defaults(t *testing.T) {
	m := &genai.GenerativeModel{}
	applyRequest(m, Request{Model: "gemini-2.5-flash", UserPrompt: "hi"})

	require.NotNil(t, m.Temperature)
	assert.InDelta(t, 0.7, *m.Temperature, 0.0001)
	assert.Nil(t, m.SystemInstruction)
	assert.Empty(t, m.ResponseMIMEType)
}

func TestApplyRequest_SchemaAndSystem(t *testing.T) {
	m := &genai.GenerativeModel{}
	applyRequest(m, Request{
		Model:        "gemini-2.5-flash",
		SystemPrompt: "sys",
		Temperature:  ptr(0.1),
		Schema: map[string]any{
			"type":     "object",
			"required": []any{"fit"},
			"properties": map[string]any{
				"fit":    map[string]any{"type": "boolean"},
				"reason": map[string]any{"type": "string", "description": "why"},
			},
		},
	})

	require.NotNil(t, m.SystemInstruction)
	assert.Equal(t, genai.Text("sys"), m.SystemInstruction.Parts[0])
	assert.InDelta(t, 0.1, *m.Temperature, 0.0001)
	assert.Equal(t, "application/json", m.ResponseMIMEType)
	require.NotNil(t, m.ResponseSchema)
	assert.Equal(t, genai.TypeObject, m.ResponseSchema.Type)
	assert.Equal(t, []string{"fit"}, m.ResponseSchema.Required)
	assert.Equal(t, genai.TypeBoolean, m.ResponseSchema.Properties["fit"].Type)
	assert.Equal(t, "why", m.ResponseSchema.Properties["reason"].Description)
}

func TestApplyRequest_JSONMode(t *testing.T) {
	m := &genai.GenerativeModel{}
	applyRequest(m, Request{JSONMode: true})
	assert.Equal(t, "application/json", m.ResponseMIMEType)
	assert.Nil(t, m.ResponseSchema)
}

func TestToGenaiSchema_ArraysAndEnums(t *testing.T) {
	s := toGenaiSchema(map[string]any{
		"type": "array",
		"items": map[string]any{
			"type": "string",
			"enum": []any{"hit", "miss"},
		},
	})
	assert.Equal(t, genai.TypeArray, s.Type)
	require.NotNil(t, s.Items)
	assert.Equal(t, []string{"hit", "miss"}, s.Items.Enum)
}

func TestToGenaiSchema_Null(t *testing.T) {
	s := toGenaiSchema(map[string]any{"type": "null"})
	assert.True(t, s.Nullable)
}

func TestResponseText(t *testing.T) {
	resp := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []genai.Part{genai.Text("hello "), genai.Text("world")}},
		}},
	}
	out, err := responseText(resp)
	require.NoError(t, err)
	assert.Equal(t, "hello world", out)

	_, err = responseText(&genai.GenerateContentResponse{})
	assert.Error(t, err)
}

func TestClassifyGemini(t *testing.T) {
	err := classifyGemini(&googleapi.Error{Code: http.StatusTooManyRequests})
	assert.True(t, resilience.IsTransient(err))

	err = classifyGemini(&googleapi.Error{Code: http.StatusBadRequest})
	assert.False(t, resilience.IsTransient(err))
}
