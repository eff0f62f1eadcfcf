package llm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/lead-studio/internal/config"
	"github.com/sells-group/lead-studio/internal/resilience"
)

func TestFamilyOf(t *testing.T) {
	tests := []struct {
		model   string
		want    Family
		wantErr bool
	}{
		{"gemini-3-pro-preview", FamilyGemini, false},
		{"Gemini-2.0-Flash", FamilyGemini, false},
		{"sonar", FamilyPerplexity, false},
		{"sonar-reasoning-pro", FamilyPerplexity, false},
		{"r1-1776", FamilyPerplexity, false},
		{"gpt-4o", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.model, func(t *testing.T) {
			got, err := FamilyOf(tt.model)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnsupportedModel)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestIsReasoningModel(t *testing.T) {
	assert.True(t, IsReasoningModel("sonar-reasoning"))
	assert.True(t, IsReasoningModel("r1-1776"))
	assert.False(t, IsReasoningModel("sonar-pro"))
	assert.False(t, IsReasoningModel("sonar"))
}

func TestDefaultTemperature(t *testing.T) {
	assert.Equal(t, 0.7, DefaultTemperature(FamilyGemini))
	assert.Equal(t, 0.2, DefaultTemperature(FamilyPerplexity))
}

type stubGenerator struct {
	out  string
	seen []Request
}

func (s *stubGenerator) Generate(_ context.Context, req Request) (string, error) {
	s.seen = append(s.seen, req)
	return s.out, nil
}

func TestRouter_Dispatch(t *testing.T) {
	g := &stubGenerator{out: "from gemini"}
	p := &stubGenerator{out: "from perplexity"}
	r := &Router{Gemini: g, Perplexity: p}

	out, err := r.Generate(context.Background(), Request{Model: "gemini-2.5-flash"})
	require.NoError(t, err)
	assert.Equal(t, "from gemini", out)

	out, err = r.Generate(context.Background(), Request{Model: "sonar-pro"})
	require.NoError(t, err)
	assert.Equal(t, "from perplexity", out)

	assert.Len(t, g.seen, 1)
	assert.Len(t, p.seen, 1)
}

func TestRouter_UnsupportedModelMakesNoCall(t *testing.T) {
	g := &stubGenerator{}
	r := &Router{Gemini: g, Perplexity: g}

	_, err := r.Generate(context.Background(), Request{Model: "claude-3"})
	assert.ErrorIs(t, err, ErrUnsupportedModel)
	assert.Empty(t, g.seen)
}

func TestRouter_MissingProvider(t *testing.T) {
	r := &Router{Gemini: &stubGenerator{}}

	_, err := r.Generate(context.Background(), Request{Model: "sonar"})
	assert.ErrorIs(t, err, ErrProviderNotConfigured)
}

func TestNewGate(t *testing.T) {
	g := NewGate("gemini", config.LLMConfig{
		RatePerSec:       2,
		Burst:            4,
		TimeoutSecs:      30,
		RetryAttempts:    5,
		BreakerThreshold: 3,
		BreakerResetSecs: 10,
	})
	assert.Equal(t, "gemini", g.Name)
	assert.Equal(t, 5, g.Retry.MaxAttempts)
	assert.NotNil(t, g.Limiter)
	assert.Equal(t, resilience.BreakerClosed, g.Breaker.State())
	assert.Equal(t, 30.0, g.Timeout.Seconds())
}

func TestRequest_WantsJSON(t *testing.T) {
	assert.False(t, Request{}.WantsJSON())
	assert.True(t, Request{JSONMode: true}.WantsJSON())
	assert.True(t, Request{Schema: map[string]any{"type": "object"}}.WantsJSON())
}
