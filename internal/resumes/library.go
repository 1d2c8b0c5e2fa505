// Package resumes provides the read-only résumé library the pipeline writes
// cover letters for.
package resumes

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

//go:embed library.yaml
var defaultLibrary []byte

// ErrNotFound is returned for an unknown résumé id.
var ErrNotFound = errors.New("resume not found")

const (
	maxFocusLength    = 220
	focusCutLength    = 217
	profileHighlights = 3
	profileSkills     = 12
	profileMetrics    = 3
	focusEllipsis     = "…"
)

// Resume is one entry of the library.
type Resume struct {
	ID         string        `yaml:"id" json:"id" validate:"required"`
	Name       string        `yaml:"name" json:"name" validate:"required"`
	File       string        `yaml:"file" json:"file,omitempty" validate:"omitempty,url"`
	Focus      string        `yaml:"focus" json:"focus"`
	Highlights []string      `yaml:"highlights" json:"highlights"`
	Skills     []string      `yaml:"skills" json:"skills"`
	Profile    PromptProfile `yaml:"-" json:"promptProfile"`
}

// PromptProfile is the condensed view of a résumé used in prompts.
type PromptProfile struct {
	ID             string   `json:"id"`
	Name           string   `json:"name"`
	Focus          string   `json:"focus"`
	TopHighlights  []string `json:"topHighlights"`
	PrioritySkills []string `json:"prioritySkills"`
	PrimaryMetrics []string `json:"primaryMetrics"`
}

// Store looks résumés up by id.
type Store interface {
	Get(id string) (*Resume, error)
	List() []Resume
}

// Library is an in-memory Store.
type Library struct {
	order []string
	byID  map[string]*Resume
}

type libraryFile struct {
	Resumes []Resume `yaml:"resumes" validate:"required,min=1,dive"`
}

var validate = validator.New()

// Parse decodes a YAML library and derives every prompt profile.
func Parse(data []byte) (*Library, error) {
	var f libraryFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse resume library: %w", err)
	}
	if err := validate.Struct(f); err != nil {
		return nil, fmt.Errorf("invalid resume library: %w", err)
	}

	lib := &Library{byID: make(map[string]*Resume, len(f.Resumes))}
	for i := range f.Resumes {
		r := f.Resumes[i]
		if _, dup := lib.byID[r.ID]; dup {
			return nil, fmt.Errorf("invalid resume library: duplicate id %q", r.ID)
		}
		r.Profile = BuildPromptProfile(r)
		lib.byID[r.ID] = &r
		lib.order = append(lib.order, r.ID)
	}
	return lib, nil
}

// Default returns the embedded library.
func Default() (*Library, error) {
	return Parse(defaultLibrary)
}

// Load reads a library from path, or the embedded one when path is empty.
func Load(path string) (*Library, error) {
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read resume library: %w", err)
	}
	return Parse(data)
}

// Get returns the résumé with id.
func (l *Library) Get(id string) (*Resume, error) {
	r, ok := l.byID[strings.TrimSpace(id)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return r, nil
}

// List returns every résumé in file order.
func (l *Library) List() []Resume {
	out := make([]Resume, 0, len(l.order))
	for _, id := range l.order {
		out = append(out, *l.byID[id])
	}
	return out
}

var (
	whitespace   = regexp.MustCompile(`\s+`)
	metricSignal = regexp.MustCompile(`[0-9%$€£]`)
)

func normalize(s string) string {
	return strings.TrimSpace(whitespace.ReplaceAllString(s, " "))
}

// BuildPromptProfile condenses r: the focus is trimmed to 220 characters,
// three highlights and twelve lower-cased skills are kept, and quantified
// highlights are preferred as metrics.
func BuildPromptProfile(r Resume) PromptProfile {
	focus := normalize(r.Focus)
	if utf8.RuneCountInString(focus) > maxFocusLength {
		runes := []rune(focus)
		focus = strings.TrimRight(string(runes[:focusCutLength]), " \t\n") + focusEllipsis
	}

	highlights := make([]string, 0, profileHighlights)
	for _, h := range r.Highlights {
		if len(highlights) == profileHighlights {
			break
		}
		if h = normalize(h); h != "" {
			highlights = append(highlights, h)
		}
	}

	skills := make([]string, 0, profileSkills)
	for _, s := range r.Skills {
		if len(skills) == profileSkills {
			break
		}
		if s = strings.ToLower(normalize(s)); s != "" {
			skills = append(skills, s)
		}
	}

	metrics := make([]string, 0, profileMetrics)
	for _, h := range highlights {
		if metricSignal.MatchString(h) {
			metrics = append(metrics, h)
		}
	}
	if len(metrics) == 0 {
		metrics = append(metrics, highlights...)
	}
	if len(metrics) > profileMetrics {
		metrics = metrics[:profileMetrics]
	}

	return PromptProfile{
		ID:             r.ID,
		Name:           r.Name,
		Focus:          focus,
		TopHighlights:  highlights,
		PrioritySkills: skills,
		PrimaryMetrics: metrics,
	}
}
