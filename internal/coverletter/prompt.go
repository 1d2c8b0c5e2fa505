// Package coverletter builds the cover letter prompt, invokes the model with
// the cover_letter_bundle schema and sanitizes what comes back.
package coverletter

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/jonathan/job-intel/internal/prompts"
	"github.com/jonathan/job-intel/internal/research"
	"github.com/jonathan/job-intel/internal/resumes"
)

// SchemaName is the name the model is told its output conforms to.
const SchemaName = "cover_letter_bundle"

// RequiredKeys are the top-level keys of a cover letter bundle.
var RequiredKeys = []string{"coverLetterMarkdown", "talkingPoints", "researchSources"}

const maxKeyPoints = 8

// Job is the job posting as presented to the model and echoed in result meta.
type Job struct {
	Title     string   `json:"title"`
	Company   string   `json:"company"`
	Location  string   `json:"location"`
	Summary   string   `json:"summary"`
	KeyPoints []string `json:"keyPoints"`
	URL       string   `json:"url"`
}

// CompanyResearch is the research digest given to the model.
type CompanyResearch struct {
	CompanyName string            `json:"companyName"`
	Domain      string            `json:"domain"`
	Highlights  []string          `json:"highlights"`
	Values      []string          `json:"values"`
	Products    []string          `json:"products"`
	RecentNews  []string          `json:"recentNews"`
	Sources     []research.Source `json:"sources"`
}

// ResearchFromPayload digests p, or returns nil when p has no facts.
func ResearchFromPayload(p *research.Payload, sourceLimit int) *CompanyResearch {
	if p.Skipped() {
		return nil
	}
	return &CompanyResearch{
		CompanyName: p.CompanyName,
		Domain:      p.Domain,
		Highlights:  nonNil(p.Facts.Highlights),
		Values:      nonNil(p.Facts.Values),
		Products:    nonNil(p.Facts.Products),
		RecentNews:  nonNil(p.Facts.RecentNews),
		Sources:     p.Sources(sourceLimit),
	}
}

// Input is everything the prompt is assembled from.
type Input struct {
	Job         Job
	Resume      resumes.PromptProfile
	Research    *CompanyResearch
	Preferences map[string]any
}

type contextResume struct {
	ID             string   `json:"id"`
	Name           string   `json:"name"`
	Focus          string   `json:"focus"`
	TopHighlights  []string `json:"topHighlights"`
	PrioritySkills []string `json:"prioritySkills"`
}

type contextPayload struct {
	Job             Job              `json:"job"`
	Resume          contextResume    `json:"resume"`
	CompanyResearch *CompanyResearch `json:"companyResearch"`
	UserPreferences map[string]any   `json:"userPreferences"`
}

var whitespace = regexp.MustCompile(`\s+`)

func normalize(s string) string {
	return strings.TrimSpace(whitespace.ReplaceAllString(s, " "))
}

func bulletList(items []string) string {
	lines := make([]string, 0, len(items))
	for _, item := range items {
		if item = normalize(item); item != "" {
			lines = append(lines, "- "+item)
		}
	}
	return strings.Join(lines, "\n")
}

// BuildPrompt renders the cover letter prompt. It is pure: the same input
// always yields the same text.
func BuildPrompt(in Input) string {
	frag := func(key string) string { return prompts.MustGet(prompts.CoverLetter, key) }

	instructions := prompts.Format(frag("instructions"), map[string]string{
		"SchemaName":   SchemaName,
		"RequiredKeys": strings.Join(RequiredKeys, ", "),
	})
	lines := []string{instructions}
	if in.Research != nil {
		lines = append(lines, frag("research-available"))
	} else {
		lines = append(lines, frag("research-unavailable"))
	}
	lines = append(lines, frag("sources-rule"), frag("preferences-rule"), "")

	highlights := bulletList(in.Resume.TopHighlights)
	if highlights == "" {
		highlights = "- " + frag("resume-empty")
	}
	lines = append(lines, frag("resume-heading"), highlights, "")

	if metrics := bulletList(in.Resume.PrimaryMetrics); metrics != "" {
		lines = append(lines, frag("metrics-heading"), metrics, "")
	}
	if skills := bulletList(in.Resume.PrioritySkills); skills != "" {
		lines = append(lines, frag("skills-heading"), skills, "")
	}

	job := in.Job
	job.Title = normalize(job.Title)
	job.Company = normalize(job.Company)
	job.Location = normalize(job.Location)
	job.Summary = normalize(job.Summary)
	job.KeyPoints = nonNil(job.KeyPoints)
	if len(job.KeyPoints) > maxKeyPoints {
		job.KeyPoints = job.KeyPoints[:maxKeyPoints]
	}
	prefs := in.Preferences
	if prefs == nil {
		prefs = map[string]any{}
	}
	payload := contextPayload{
		Job: job,
		Resume: contextResume{
			ID:             in.Resume.ID,
			Name:           in.Resume.Name,
			Focus:          normalize(in.Resume.Focus),
			TopHighlights:  nonNil(in.Resume.TopHighlights),
			PrioritySkills: nonNil(in.Resume.PrioritySkills),
		},
		CompanyResearch: in.Research,
		UserPreferences: prefs,
	}
	// Every field is a string, slice or string-keyed map, so encoding cannot fail.
	encoded, _ := json.MarshalIndent(payload, "", "  ")

	lines = append(lines, frag("context-heading"), string(encoded), "", frag("closing"))
	return strings.Join(lines, "\n")
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
