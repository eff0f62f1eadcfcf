package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/lead-studio/internal/resilience"
	"github.com/sells-group/lead-studio/pkg/perplexity"
)

// Perplexity generates with Perplexity sonar and r1 models.
type Perplexity struct {
	client perplexity.Client
	gate   *resilience.Gate
}

// NewPerplexity wraps a Perplexity client.
func NewPerplexity(client perplexity.Client, gate *resilience.Gate) *Perplexity {
	return &Perplexity{client: client, gate: gate}
}

var thinkBlock = regexp.MustCompile(`(?s)<think>.*?</think>`)

// Generate implements Generator.
func (p *Perplexity) Generate(ctx context.Context, req Request) (string, error) {
	creq, err := buildChatRequest(req)
	if err != nil {
		return "", err
	}

	resp, err := resilience.Call(ctx, p.gate, func(ctx context.Context) (*perplexity.ChatCompletionResponse, error) {
		return p.client.ChatCompletion(ctx, creq)
	})
	if err != nil {
		return "", eris.Wrapf(err, "llm: perplexity %s", req.Model)
	}
	content, err := resp.Content()
	if err != nil {
		return "", err
	}

	if IsReasoningModel(req.Model) {
		content = strings.TrimSpace(thinkBlock.ReplaceAllString(content, ""))
	}
	if req.Citations && !req.WantsJSON() && len(resp.Citations) > 0 {
		var b strings.Builder
		b.WriteString(content)
		b.WriteString("\n\nCitations:")
		for i, c := range resp.Citations {
			fmt.Fprintf(&b, "\n[%d] %s", i+1, c)
		}
		content = b.String()
	}
	return content, nil
}

// buildChatRequest shapes the request for the model. Reasoning models take
// no system message, temperature or response_format, so the system prompt
// and any schema move into the user message.
func buildChatRequest(req Request) (perplexity.ChatCompletionRequest, error) {
	out := perplexity.ChatCompletionRequest{
		Model:               req.Model,
		ReturnCitations:     req.Citations,
		SearchRecencyFilter: req.Recency,
	}

	if IsReasoningModel(req.Model) {
		user := req.UserPrompt
		if req.SystemPrompt != "" {
			user = req.SystemPrompt + "\n\n" + user
		}
		switch {
		case len(req.Schema) > 0:
			schema, err := json.MarshalIndent(req.Schema, "", "  ")
			if err != nil {
				return out, eris.Wrap(err, "llm: marshal schema")
			}
			user += "\n\nRespond ONLY with a valid JSON object matching this JSON schema:\n" + string(schema)
		case req.JSONMode:
			user += "\n\nRespond ONLY with a valid JSON object."
		}
		out.Messages = []perplexity.Message{{Role: "user", Content: user}}
		return out, nil
	}

	if req.SystemPrompt != "" {
		out.Messages = append(out.Messages, perplexity.Message{Role: "system", Content: req.SystemPrompt})
	}
	user := req.UserPrompt
	if req.JSONMode && len(req.Schema) == 0 {
		user += "\n\nRespond ONLY with a valid JSON object."
	}
	out.Messages = append(out.Messages, perplexity.Message{Role: "user", Content: user})

	temp := DefaultTemperature(FamilyPerplexity)
	if req.Temperature != nil {
		temp = *req.Temperature
	}
	out.Temperature = &temp
	if len(req.Schema) > 0 {
		out.ResponseFormat = perplexity.NewJSONSchemaFormat(req.Schema)
	}
	return out, nil
}
