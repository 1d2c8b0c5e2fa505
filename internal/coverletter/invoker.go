package coverletter

import (
	"context"
	"fmt"
	"time"

	"github.com/google/generative-ai-go/genai"

	"github.com/jonathan/job-intel/internal/llm"
	"github.com/jonathan/job-intel/internal/schemas"
)

// DefaultTimeout bounds one model call.
const DefaultTimeout = 60 * time.Second

// Invoker sends cover letter prompts to the model and returns sanitized
// results.
type Invoker struct {
	client      llm.Client
	schema      *genai.Schema
	tier        llm.ModelTier
	maxTokens   int32
	temperature float32
}

// InvokerOption tunes an Invoker.
type InvokerOption func(*Invoker)

// WithTier selects the model tier.
func WithTier(t llm.ModelTier) InvokerOption {
	return func(i *Invoker) { i.tier = t }
}

// WithMaxOutputTokens overrides the token budget.
func WithMaxOutputTokens(n int32) InvokerOption {
	return func(i *Invoker) {
		if n > 0 {
			i.maxTokens = n
		}
	}
}

// NewInvoker prepares an invoker around client.
func NewInvoker(client llm.Client, opts ...InvokerOption) (*Invoker, error) {
	raw, err := schemas.Raw(schemas.CoverLetter)
	if err != nil {
		return nil, err
	}
	schema, err := llm.SchemaFromJSON(raw)
	if err != nil {
		return nil, err
	}
	inv := &Invoker{
		client:      client,
		schema:      schema,
		tier:        llm.TierStandard,
		maxTokens:   llm.DefaultMaxOutputTokens,
		temperature: llm.DefaultTemperature,
	}
	for _, opt := range opts {
		opt(inv)
	}
	return inv, nil
}

// Invoke runs prompt under budget. A deadline hit returns an error wrapping
// context.DeadlineExceeded; unusable output wraps ErrMalformedOutput.
func (i *Invoker) Invoke(ctx context.Context, prompt string, budget time.Duration) (Result, error) {
	if budget <= 0 {
		budget = DefaultTimeout
	}
	callCtx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()

	raw, err := i.client.GenerateStructured(callCtx, prompt, llm.StructuredOptions{
		Tier:            i.tier,
		SchemaName:      SchemaName,
		Schema:          i.schema,
		MaxOutputTokens: i.maxTokens,
		Temperature:     i.temperature,
	})
	if err != nil {
		if ctxErr := callCtx.Err(); ctxErr != nil {
			return Result{}, fmt.Errorf("cover letter generation: %w", ctxErr)
		}
		return Result{}, err
	}

	doc, err := Parse(raw)
	if err != nil {
		return Result{}, err
	}
	return SanitizeResult(doc), nil
}
