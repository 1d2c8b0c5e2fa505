package llm

import (
	"testing"

	"github.com/google/generative-ai-go/genai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/job-intel/internal/schemas"
)

func TestSchemaFromJSON_CoverLetter(t *testing.T) {
	raw, err := schemas.Raw(schemas.CoverLetter)
	require.NoError(t, err)

	s, err := SchemaFromJSON(raw)
	require.NoError(t, err)

	assert.Equal(t, genai.TypeObject, s.Type)
	assert.ElementsMatch(t, []string{"coverLetterMarkdown", "talkingPoints", "researchSources"}, s.Required)
	require.Contains(t, s.Properties, "talkingPoints")
	assert.Equal(t, genai.TypeArray, s.Properties["talkingPoints"].Type)
	assert.Equal(t, genai.TypeString, s.Properties["talkingPoints"].Items.Type)

	sources := s.Properties["researchSources"].Items
	require.NotNil(t, sources)
	assert.Equal(t, genai.TypeObject, sources.Type)
	assert.Equal(t, genai.TypeString, sources.Properties["url"].Type)
}

func TestSchemaFromJSON_Errors(t *testing.T) {
	_, err := SchemaFromJSON([]byte(`{not json`))
	assert.Error(t, err)

	_, err = SchemaFromJSON([]byte(`{"type":"object","properties":{"x":{"type":"tuple"}}}`))
	assert.ErrorContains(t, err, "property x")
}

func TestNewGeminiClient_RequiresKey(t *testing.T) {
	_, err := NewGeminiClient(t.Context(), DefaultConfig(), "")
	assert.ErrorIs(t, err, ErrNotConfigured)
}
