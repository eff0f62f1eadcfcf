// Package llm routes prompt generation to the supported model families.
package llm

import (
	"context"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/lead-studio/internal/config"
	"github.com/sells-group/lead-studio/internal/resilience"
)

// ErrUnsupportedModel is returned for a model name outside the Gemini and
// Perplexity families. It is raised before any network call.
var ErrUnsupportedModel = eris.New("unsupported model")

// ErrProviderNotConfigured is returned when a family is recognized but its
// credentials are missing.
var ErrProviderNotConfigured = eris.New("provider not configured")

// Family is a model provider family.
type Family string

const (
	FamilyGemini     Family = "gemini"
	FamilyPerplexity Family = "perplexity"
)

// FamilyOf classifies a model name.
func FamilyOf(model string) (Family, error) {
	m := strings.ToLower(model)
	switch {
	case strings.Contains(m, "gemini"):
		return FamilyGemini, nil
	case strings.Contains(m, "sonar"), strings.Contains(m, "r1"):
		return FamilyPerplexity, nil
	}
	return "", eris.Wrapf(ErrUnsupportedModel, "llm: model %q", model)
}

// IsReasoningModel reports whether a Perplexity model rejects system
// messages, temperature and native response formats.
func IsReasoningModel(model string) bool {
	m := strings.ToLower(model)
	return strings.Contains(m, "reasoning") || strings.Contains(m, "r1")
}

// DefaultTemperature is used when a request carries none.
func DefaultTemperature(f Family) float64 {
	if f == FamilyPerplexity {
		return 0.2
	}
	return 0.7
}

// Request is one generation call.
type Request struct {
	Model        string
	SystemPrompt string
	UserPrompt   string
	Temperature  *float64
	// Schema is a strict JSON schema constraining the output. It takes
	// precedence over JSONMode.
	Schema map[string]any
	// JSONMode asks for unconstrained JSON output.
	JSONMode  bool
	Recency   string
	Citations bool
}

// WantsJSON reports whether the caller expects a JSON document back.
func (r Request) WantsJSON() bool {
	return r.JSONMode || len(r.Schema) > 0
}

// Generator produces text for a request.
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// Router dispatches requests by model family. A nil provider means the
// family is not configured.
type Router struct {
	Gemini     Generator
	Perplexity Generator
}

// Generate implements Generator.
func (r *Router) Generate(ctx context.Context, req Request) (string, error) {
	family, err := FamilyOf(req.Model)
	if err != nil {
		return "", err
	}
	var g Generator
	switch family {
	case FamilyGemini:
		g = r.Gemini
	case FamilyPerplexity:
		g = r.Perplexity
	}
	if g == nil {
		return "", eris.Wrapf(ErrProviderNotConfigured, "llm: %s", family)
	}
	return g.Generate(ctx, req)
}

// NewGate builds the limiter, breaker and retry policy shared by calls to
// one provider.
func NewGate(name string, cfg config.LLMConfig) *resilience.Gate {
	retry := resilience.DefaultRetryConfig()
	if cfg.RetryAttempts > 0 {
		retry.MaxAttempts = cfg.RetryAttempts
	}
	return &resilience.Gate{
		Name:    name,
		Limiter: resilience.NewLimiter(cfg.RatePerSec, cfg.Burst),
		Breaker: resilience.NewCircuitBreaker(name, resilience.BreakerConfig{
			FailureThreshold: cfg.BreakerThreshold,
			ResetTimeout:     time.Duration(cfg.BreakerResetSecs) * time.Second,
		}),
		Retry:   retry,
		Timeout: time.Duration(cfg.TimeoutSecs) * time.Second,
	}
}
