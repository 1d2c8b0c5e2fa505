package coverletter

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"

	"github.com/jonathan/job-intel/internal/llm"
	"github.com/jonathan/job-intel/internal/research"
	"github.com/jonathan/job-intel/internal/sanitize"
	"github.com/jonathan/job-intel/internal/schemas"
)

// Output caps.
const (
	MaxTalkingPoints   = 6
	MaxResearchSources = 5
)

// ErrMalformedOutput marks model output that is not a cover letter bundle.
var ErrMalformedOutput = errors.New("model returned a malformed cover letter")

// Result is a sanitized cover letter bundle.
type Result struct {
	CoverLetterMarkdown string            `json:"coverLetterMarkdown"`
	TalkingPoints       []string          `json:"talkingPoints"`
	ResearchSources     []research.Source `json:"researchSources"`
}

// Parse decodes raw model output into a generic object. Code fences and
// chatter around the JSON are tolerated; anything that is not an object
// carrying every required key wraps ErrMalformedOutput.
func Parse(raw string) (map[string]any, error) {
	cleaned := llm.CleanJSONBlock(raw)
	var doc map[string]any
	if err := json.Unmarshal([]byte(cleaned), &doc); err != nil || doc == nil {
		return nil, fmt.Errorf("%w: invalid JSON", ErrMalformedOutput)
	}
	if err := schemas.Validate(schemas.CoverLetterEnvelope, []byte(cleaned)); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedOutput, err)
	}
	return doc, nil
}

// SanitizeResult turns a decoded bundle into a Result. Malformed fields
// degrade to empty values.
func SanitizeResult(doc map[string]any) Result {
	res := Result{TalkingPoints: []string{}, ResearchSources: []research.Source{}}
	if doc == nil {
		return res
	}
	if md, ok := doc["coverLetterMarkdown"].(string); ok {
		res.CoverLetterMarkdown = sanitize.Markdown(md)
	}
	res.TalkingPoints = sanitize.Array(doc["talkingPoints"], MaxTalkingPoints)

	sources, _ := doc["researchSources"].([]any)
	for _, item := range sources {
		if len(res.ResearchSources) >= MaxResearchSources {
			break
		}
		if src, ok := sanitizeSource(item); ok {
			res.ResearchSources = append(res.ResearchSources, src)
		}
	}
	return res
}

func sanitizeSource(item any) (research.Source, bool) {
	obj, ok := item.(map[string]any)
	if !ok {
		return research.Source{}, false
	}
	title := sanitize.Value(obj["title"])
	rawURL, _ := obj["url"].(string)
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return research.Source{}, false
	}
	if title == "" {
		return research.Source{}, false
	}
	return research.Source{Title: title, URL: u.String()}, true
}
