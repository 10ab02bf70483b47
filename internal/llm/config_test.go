package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/google/generative-ai-go/genai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	for tier, want := range map[ModelTier]string{
		TierLite:     "gemini-2.5-flash-lite",
		TierStandard: "gemini-2.5-flash",
		TierAdvanced: "gemini-2.5-pro",
	} {
		got, err := cfg.Model(tier)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	assert.Positive(t, cfg.CallTimeout)
}

func TestModel_Fallback(t *testing.T) {
	cfg := &Config{Models: map[ModelTier]string{TierLite: "small"}}

	for _, tier := range []ModelTier{TierLite, TierStandard, TierAdvanced} {
		got, err := cfg.Model(tier)
		require.NoError(t, err)
		assert.Equal(t, "small", got, tier)
	}

	cfg = &Config{Models: map[ModelTier]string{TierStandard: "mid", TierAdvanced: ""}}
	got, err := cfg.Model(TierAdvanced)
	require.NoError(t, err)
	assert.Equal(t, "mid", got)
}

func TestModel_Errors(t *testing.T) {
	_, err := (&Config{}).Model(TierAdvanced)
	assert.ErrorContains(t, err, "no model configured")

	_, err = DefaultConfig().Model("ultra")
	assert.ErrorContains(t, err, "unknown model tier")
}

func TestParseTier(t *testing.T) {
	tier, err := ParseTier("")
	require.NoError(t, err)
	assert.Equal(t, TierStandard, tier)

	tier, err = ParseTier("advanced")
	require.NoError(t, err)
	assert.Equal(t, TierAdvanced, tier)

	_, err = ParseTier("ultra")
	assert.Error(t, err)
}

func TestNewClient_RequiresKey(t *testing.T) {
	_, err := NewClient(context.Background(), nil, "")
	assert.ErrorContains(t, err, "API key is required")
}

func TestResponseText(t *testing.T) {
	text, reason := responseText(&genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []genai.Part{genai.Text(`{"intent":`), genai.Text(` {}}`)}},
		}},
	})
	assert.Empty(t, reason)
	assert.Equal(t, `{"intent": {}}`, text)

	_, reason = responseText(nil)
	assert.Equal(t, "empty response", reason)

	_, reason = responseText(&genai.GenerateContentResponse{})
	assert.Equal(t, "no candidates in response", reason)

	_, reason = responseText(&genai.GenerateContentResponse{
		PromptFeedback: &genai.PromptFeedback{BlockReason: genai.BlockReasonSafety},
	})
	assert.Contains(t, reason, "prompt blocked")

	_, reason = responseText(&genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{FinishReason: genai.FinishReasonMaxTokens}},
	})
	assert.Contains(t, reason, "no text in response")
}

func TestGenerationError(t *testing.T) {
	cause := errors.New("deadline exceeded")
	err := &GenerationError{Model: "gemini-2.5-flash", Reason: "request failed", Cause: cause}
	assert.Equal(t, "gemini-2.5-flash: request failed: deadline exceeded", err.Error())
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "m: no candidates in response", (&GenerationError{Model: "m", Reason: "no candidates in response"}).Error())
}
