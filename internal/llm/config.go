// Package llm is the Gemini client behind the language-model intent source.
// Models are chosen by capability tier.
package llm

import (
	"fmt"
	"time"
)

// ModelTier names a capability level; each tier maps to one Gemini model
type ModelTier string

const (
	// TierLite is the cheapest model; fine for short, well-specified prompts
	TierLite ModelTier = "lite"
	// TierStandard is the default for intent extraction
	TierStandard ModelTier = "standard"
	// TierAdvanced is for long prompts that mix several tasks
	TierAdvanced ModelTier = "advanced"
)

// tierFallback lists the tiers tried, in order, when resolving a tier
var tierFallback = map[ModelTier][]ModelTier{
	TierLite:     {TierLite, TierStandard},
	TierStandard: {TierStandard, TierLite},
	TierAdvanced: {TierAdvanced, TierStandard, TierLite},
}

// Config holds the models and generation settings for intent extraction
type Config struct {
	Models          map[ModelTier]string
	Temperature     float32
	MaxOutputTokens int32         // 0 = model default
	CallTimeout     time.Duration // 0 = only the caller's context applies
}

// DefaultConfig returns the Gemini models and a low temperature, so the same
// request tends to produce the same intent
func DefaultConfig() *Config {
	return &Config{
		Models: map[ModelTier]string{
			TierLite:     "gemini-2.5-flash-lite",
			TierStandard: "gemini-2.5-flash",
			TierAdvanced: "gemini-2.5-pro",
		},
		Temperature:     0.1,
		MaxOutputTokens: 2048,
		CallTimeout:     90 * time.Second,
	}
}

// ParseTier converts a configuration string into a tier. Empty means standard.
func ParseTier(s string) (ModelTier, error) {
	if s == "" {
		return TierStandard, nil
	}
	if _, ok := tierFallback[ModelTier(s)]; !ok {
		return "", fmt.Errorf("unknown model tier %q", s)
	}
	return ModelTier(s), nil
}

// Model returns the model for tier, falling back to a neighbouring tier when
// none is configured
func (c *Config) Model(tier ModelTier) (string, error) {
	chain, ok := tierFallback[tier]
	if !ok {
		return "", fmt.Errorf("unknown model tier %q", tier)
	}
	for _, t := range chain {
		if m := c.Models[t]; m != "" {
			return m, nil
		}
	}
	return "", fmt.Errorf("no model configured for tier %s", tier)
}
