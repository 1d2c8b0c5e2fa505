package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultConfig_Models(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, ProviderGemini, cfg.Provider)

	tests := []struct {
		tier ModelTier
		want string
	}{
		{TierLite, "gemini-2.5-flash-lite"},
		{TierStandard, "gemini-2.5-flash"},
		{TierAdvanced, "gemini-2.5-pro"},
		{"unknown", "gemini-2.5-flash"},
	}
	for _, tt := range tests {
		t.Run(string(tt.tier), func(t *testing.T) {
			assert.Equal(t, tt.want, cfg.GetModel(tt.tier))
		})
	}
}

func TestGetModel_FallsBackToLite(t *testing.T) {
	cfg := &Config{Provider: ProviderGemini, Models: map[ModelTier]string{TierLite: "only-lite"}}
	assert.Equal(t, "only-lite", cfg.GetModel(TierAdvanced))
	assert.Empty(t, (&Config{}).GetModel(TierAdvanced))
}

func TestWithModel_Copies(t *testing.T) {
	base := DefaultConfig()
	custom := base.WithModel(TierStandard, "gemini-custom")

	assert.Equal(t, "gemini-2.5-flash", base.GetModel(TierStandard))
	assert.Equal(t, "gemini-custom", custom.GetModel(TierStandard))
	assert.Equal(t, "gemini-2.5-pro", custom.GetModel(TierAdvanced))

	empty := (&Config{Provider: ProviderGemini}).WithModel(TierLite, "x")
	assert.Equal(t, "x", empty.GetModel(TierLite))
}

func TestConfig_Validate(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())
	assert.ErrorContains(t, (&Config{Provider: "openai"}).Validate(), "unsupported")
	assert.ErrorContains(t, (&Config{Provider: ProviderGemini}).Validate(), "no model configured")
}

func TestNewClient_RejectsUnsupportedProvider(t *testing.T) {
	_, err := NewClient(t.Context(), &Config{Provider: "openai", Models: map[ModelTier]string{TierStandard: "m"}}, "key")
	assert.ErrorContains(t, err, "unsupported LLM provider")
}

func TestGenerationDefaults(t *testing.T) {
	assert.InDelta(t, 0.6, float64(DefaultTemperature), 1e-6)
	assert.Equal(t, int32(1200), DefaultMaxOutputTokens)
}
