package pipeline

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/jonathan/job-intel/internal/coverletter"
	"github.com/jonathan/job-intel/internal/fetch"
)

// Step names a network-bound step of a run.
type Step string

const (
	StepFetch    Step = "fetch"
	StepResearch Step = "research"
	StepLLM      Step = "llm"
)

var timeoutMessages = map[Step]string{
	StepFetch:    "Fetching the job posting took too long.",
	StepResearch: "Research step timed out.",
	StepLLM:      "LLM request exceeded the time limit.",
}

var upstreamMessages = map[Step]string{
	StepFetch:    "Unable to retrieve the job posting.",
	StepResearch: "Company research service failed.",
	StepLLM:      "The language model request failed.",
}

// ValidationError rejects a request before any network call. Status is the
// HTTP status the caller should answer with.
type ValidationError struct {
	Status  int
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func invalid(message string) *ValidationError {
	return &ValidationError{Status: http.StatusBadRequest, Message: message}
}

// TimeoutError reports a step that exceeded its budget.
type TimeoutError struct {
	Step  Step
	Cause error
}

func (e *TimeoutError) Error() string {
	if msg, ok := timeoutMessages[e.Step]; ok {
		return msg
	}
	return "The request timed out."
}

func (e *TimeoutError) Unwrap() error {
	return e.Cause
}

// UpstreamError reports a failed or malformed response from a dependency.
type UpstreamError struct {
	Step    Step
	Message string
	Cause   error
}

func (e *UpstreamError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if msg, ok := upstreamMessages[e.Step]; ok {
		return msg
	}
	return "An upstream service failed."
}

func (e *UpstreamError) Unwrap() error {
	return e.Cause
}

// ParseError reports model output that is not a usable cover letter.
type ParseError struct {
	Cause error
}

func (e *ParseError) Error() string {
	return "Unable to parse the language model response."
}

func (e *ParseError) Unwrap() error {
	return e.Cause
}

// Classify maps an error raised while running step into the error
// taxonomy. Errors already classified are returned unchanged; a nil error
// stays nil.
func Classify(step Step, err error) error {
	if err == nil {
		return nil
	}
	var (
		ve *ValidationError
		te *TimeoutError
		ue *UpstreamError
		pe *ParseError
	)
	if errors.As(err, &ve) || errors.As(err, &te) || errors.As(err, &ue) || errors.As(err, &pe) {
		return err
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return &TimeoutError{Step: step, Cause: err}
	}
	if errors.Is(err, coverletter.ErrMalformedOutput) {
		return &ParseError{Cause: err}
	}

	var fe *fetch.Error
	if errors.As(err, &fe) {
		msg := upstreamMessages[step]
		if fe.StatusCode > 0 {
			msg = fmt.Sprintf("%s (HTTP %d)", msg, fe.StatusCode)
		}
		return &UpstreamError{Step: step, Message: msg, Cause: err}
	}
	return &UpstreamError{Step: step, Cause: err}
}
