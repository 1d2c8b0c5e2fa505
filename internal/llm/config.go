// Package llm wraps the language-model provider behind a small interface for
// schema-constrained generation.
package llm

import (
	"fmt"
	"maps"
)

// ModelTier selects a model by capability.
type ModelTier string

const (
	// TierLite is for cheap, latency-sensitive calls
	TierLite ModelTier = "lite"
	// TierStandard drafts cover letters
	TierStandard ModelTier = "standard"
	// TierAdvanced is for long or reasoning-heavy prompts
	TierAdvanced ModelTier = "advanced"
)

// fallbackOrder is consulted when a tier has no model of its own.
var fallbackOrder = []ModelTier{TierStandard, TierLite}

// Provider names an LLM vendor.
type Provider string

// ProviderGemini is the Google Gemini provider
const ProviderGemini Provider = "gemini"

// Generation defaults for cover letters.
const (
	DefaultTemperature     float32 = 0.6
	DefaultMaxOutputTokens int32   = 1200
)

// Config maps tiers to provider models.
type Config struct {
	Provider Provider
	Models   map[ModelTier]string
}

// DefaultConfig returns the Gemini model lineup.
func DefaultConfig() *Config {
	return &Config{
		Provider: ProviderGemini,
		Models: map[ModelTier]string{
			TierLite:     "gemini-2.5-flash-lite",
			TierStandard: "gemini-2.5-flash",
			TierAdvanced: "gemini-2.5-pro",
		},
	}
}

// GetModel returns the model for tier, falling back to the standard and
// then the lite model. It returns "" when nothing is configured.
func (c *Config) GetModel(tier ModelTier) string {
	if model := c.Models[tier]; model != "" {
		return model
	}
	for _, t := range fallbackOrder {
		if model := c.Models[t]; model != "" {
			return model
		}
	}
	return ""
}

// WithModel returns a copy of c that uses model for tier.
func (c *Config) WithModel(tier ModelTier, model string) *Config {
	models := maps.Clone(c.Models)
	if models == nil {
		models = make(map[ModelTier]string, 1)
	}
	models[tier] = model
	return &Config{Provider: c.Provider, Models: models}
}

// Validate reports a config no client can be built from.
func (c *Config) Validate() error {
	if c.Provider != ProviderGemini {
		return fmt.Errorf("unsupported LLM provider %q", c.Provider)
	}
	if c.GetModel(TierStandard) == "" {
		return fmt.Errorf("no model configured for tier %s", TierStandard)
	}
	return nil
}
