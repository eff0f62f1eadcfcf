package flows

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/lead-studio/internal/llm"
	"github.com/sells-group/lead-studio/internal/workflow"
)

const chatSystemPrompt = "You are a helpful AI assistant in a workflow automation studio. " +
	"You have access to context data from executed nodes."

const variationSystemPrompt = `You are an expert prompt engineer. Your task is to improve and modify prompts based on specific instructions.

CRITICAL RULE: You must NOT change the output schema or data structure defined in the original prompts. The output format (JSON structure, keys, etc.) must remain EXACTLY the same. Only modify the instructions, reasoning, or content generation logic within the system and user prompts to satisfy the user's request.

You will receive:
1. An original system prompt
2. An original user prompt
3. The Target Output Schema (MUST BE PRESERVED)
4. A specific instruction for modification

Generate improved versions that follow the instruction while STRICTLY maintaining the output schema and core purpose.

Output ONLY a JSON object with this structure:
{
  "systemPrompt": "improved system prompt here",
  "userPrompt": "improved user prompt here"
}

Do NOT include any explanation or text outside the JSON.`

// defaultInstruction replaces a blank instruction.
const defaultInstruction = "Improve the prompt's clarity and effectiveness while maintaining the original intent."

var variationSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"systemPrompt": map[string]any{"type": "string"},
		"userPrompt":   map[string]any{"type": "string"},
	},
	"required": []any{"systemPrompt", "userPrompt"},
}

// Chat answers a question about the context data of executed nodes.
func (s *Service) Chat(ctx context.Context, message string, data any) (string, error) {
	if strings.TrimSpace(message) == "" {
		return "", eris.New("flows: message is required")
	}
	user := message
	if data != nil {
		ctxJSON, err := json.MarshalIndent(data, "", "  ")
		if err != nil {
			return "", eris.Wrap(err, "flows: marshal chat context")
		}
		user = fmt.Sprintf("Context Data:\n%s\n\nUser Question: %s", ctxJSON, message)
	}
	temp := 0.7
	reply, err := s.gen.Generate(ctx, llm.Request{
		Model:        s.chatModel,
		SystemPrompt: chatSystemPrompt,
		UserPrompt:   user,
		Temperature:  &temp,
	})
	if err != nil {
		return "", eris.Wrap(err, "flows: chat")
	}
	return reply, nil
}

// Variation is a rewritten prompt pair for one instruction.
type Variation struct {
	ID           string  `json:"id"`
	Label        string  `json:"label"`
	SystemPrompt string  `json:"systemPrompt"`
	UserPrompt   string  `json:"userPrompt"`
	Temperature  float64 `json:"temperature"`
	Instruction  string  `json:"instruction"`
	Schema       any     `json:"schema"`
}

// Variations rewrites an LLM node's prompts once per instruction. Calls run
// concurrently up to the configured bound; a reply that does not parse
// falls back to the original prompts.
func (s *Service) Variations(ctx context.Context, n workflow.LLMNode, instructions []string) ([]Variation, error) {
	target := n.RawSchema
	if target == nil {
		target = map[string]any{}
	}
	schemaJSON, err := json.MarshalIndent(target, "", "  ")
	if err != nil {
		return nil, eris.Wrap(err, "flows: marshal target schema")
	}
	system, user := orNone(n.SystemPrompt), orNone(n.UserPrompt)
	temperature := 0.7
	if n.Temperature != nil {
		temperature = *n.Temperature
	}
	requestTemp := 0.7
	stamp := time.Now().UnixMilli()

	out := make([]Variation, len(instructions))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.fanOut)
	for i, instr := range instructions {
		effective := instr
		if strings.TrimSpace(effective) == "" {
			effective = defaultInstruction
		}
		g.Go(func() error {
			reply, err := s.gen.Generate(gctx, llm.Request{
				Model:        s.chatModel,
				SystemPrompt: variationSystemPrompt,
				UserPrompt: fmt.Sprintf("Original System Prompt:\n%s\n\nOriginal User Prompt:\n%s\n\n"+
					"Target Output Schema (MUST BE PRESERVED):\n%s\n\n"+
					"Instruction for modification: %s\n\n"+
					"Generate improved prompts following the instruction above. Output ONLY the JSON object.",
					system, user, schemaJSON, effective),
				Temperature: &requestTemp,
				Schema:      variationSchema,
			})
			if err != nil {
				return eris.Wrapf(err, "flows: variation %d", i)
			}

			v := Variation{
				ID:           fmt.Sprintf("v_ai_%d_%d", stamp, i),
				Label:        label(instr),
				SystemPrompt: n.SystemPrompt,
				UserPrompt:   n.UserPrompt,
				Temperature:  temperature,
				Instruction:  instr,
				Schema:       n.RawSchema,
			}
			if obj, ok := workflow.ExtractObject(reply); ok {
				if sp, ok := obj["systemPrompt"].(string); ok {
					v.SystemPrompt = sp
				}
				if up, ok := obj["userPrompt"].(string); ok {
					v.UserPrompt = up
				}
			} else {
				zap.L().Warn("flows: variation reply not parseable, keeping original prompts",
					zap.Int("index", i),
				)
			}
			out[i] = v
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func orNone(s string) string {
	if s == "" {
		return "None"
	}
	return s
}

func label(instruction string) string {
	r := []rune(instruction)
	if len(r) <= 20 {
		return instruction
	}
	return string(r[:20]) + "..."
}

// NodeRun is the outcome of running a single node.
type NodeRun struct {
	Output string `json:"output"`
	Input  any    `json:"input"`
}

// RunNode executes one node against caller-supplied context entries.
func (s *Service) RunNode(ctx context.Context, n workflow.Node, rc *workflow.RunContext) (*NodeRun, error) {
	if rc == nil {
		rc = workflow.NewRunContext()
	}
	res, err := s.exec.Execute(ctx, n, rc)
	if err != nil {
		return nil, err
	}
	return &NodeRun{Output: res.Output, Input: res.Input}, nil
}
