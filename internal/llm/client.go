package llm

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/jonathan/job-intel/internal/logging"
)

// ErrNotConfigured is returned when no API key is available.
var ErrNotConfigured = errors.New("LLM client is not configured")

// Client generates text from an LLM provider.
type Client interface {
	// GenerateStructured returns raw JSON text constrained by opts.Schema.
	GenerateStructured(ctx context.Context, prompt string, opts StructuredOptions) (string, error)
	// GetModel returns the provider model name for tier.
	GetModel(tier ModelTier) string
	Close() error
}

// StructuredOptions configures one schema-constrained generation.
type StructuredOptions struct {
	Tier            ModelTier
	SchemaName      string
	Schema          *genai.Schema
	MaxOutputTokens int32
	Temperature     float32
}

// APIError wraps a provider failure.
type APIError struct {
	Model string
	Cause error
}

func (e *APIError) Error() string {
	return fmt.Sprintf("model %s request failed: %v", e.Model, e.Cause)
}

func (e *APIError) Unwrap() error {
	return e.Cause
}

// NewClient validates config, DefaultConfig when nil, and connects to its
// provider.
func NewClient(ctx context.Context, config *Config, apiKey string) (Client, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return NewGeminiClient(ctx, config, apiKey)
}

// GeminiClient serves Client from the Gemini API.
type GeminiClient struct {
	genai  *genai.Client
	config *Config
}

// NewGeminiClient connects with apiKey. An empty key yields ErrNotConfigured.
func NewGeminiClient(ctx context.Context, config *Config, apiKey string) (*GeminiClient, error) {
	if apiKey == "" {
		return nil, ErrNotConfigured
	}
	gc, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("connect to gemini: %w", err)
	}
	return &GeminiClient{genai: gc, config: config}, nil
}

// GenerateStructured asks the model for JSON matching opts.Schema.
func (c *GeminiClient) GenerateStructured(ctx context.Context, prompt string, opts StructuredOptions) (string, error) {
	tier := cmp.Or(opts.Tier, TierStandard)
	modelName := c.config.GetModel(tier)
	if modelName == "" {
		return "", fmt.Errorf("tier %s has no model", tier)
	}

	model := c.genai.GenerativeModel(modelName)
	model.ResponseMIMEType = "application/json"
	model.ResponseSchema = opts.Schema
	model.SetTemperature(cmp.Or(opts.Temperature, DefaultTemperature))
	maxTokens := opts.MaxOutputTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxOutputTokens
	}
	model.SetMaxOutputTokens(maxTokens)

	logging.C(ctx).Debug().
		Str("model", modelName).
		Str("schema", opts.SchemaName).
		Int("prompt_chars", len(prompt)).
		Msg("dispatching structured generation")

	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		return "", &APIError{Model: modelName, Cause: err}
	}
	text, err := responseText(resp)
	if err != nil {
		return "", &APIError{Model: modelName, Cause: err}
	}
	return CleanJSONBlock(text), nil
}

func (c *GeminiClient) GetModel(tier ModelTier) string {
	return c.config.GetModel(tier)
}

func (c *GeminiClient) Close() error {
	if c.genai == nil {
		return nil
	}
	return c.genai.Close()
}

// errEmptyResponse means the model answered without any text.
var errEmptyResponse = errors.New("response has no text")

// responseText joins the text parts of the first candidate. A blocked
// prompt or a candidate stopped for safety is an error.
func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil {
		return "", errEmptyResponse
	}
	if fb := resp.PromptFeedback; fb != nil && fb.BlockReason != genai.BlockReasonUnspecified {
		return "", fmt.Errorf("prompt blocked: %s", fb.BlockReason)
	}
	if len(resp.Candidates) == 0 {
		return "", errEmptyResponse
	}
	cand := resp.Candidates[0]
	if cand.FinishReason == genai.FinishReasonSafety {
		return "", errors.New("candidate stopped for safety")
	}
	if cand.Content == nil {
		return "", errEmptyResponse
	}
	var sb strings.Builder
	for _, part := range cand.Content.Parts {
		if t, ok := part.(genai.Text); ok {
			sb.WriteString(string(t))
		}
	}
	if sb.Len() == 0 {
		return "", errEmptyResponse
	}
	return sb.String(), nil
}
