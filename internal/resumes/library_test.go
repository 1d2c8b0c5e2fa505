package resumes

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_ProfilesArePromptReady(t *testing.T) {
	lib, err := Default()
	require.NoError(t, err)

	all := lib.List()
	require.NotEmpty(t, all)

	for _, r := range all {
		t.Run(r.ID, func(t *testing.T) {
			p := r.Profile
			assert.Equal(t, r.ID, p.ID)
			assert.LessOrEqual(t, utf8.RuneCountInString(p.Focus), 221)
			assert.LessOrEqual(t, len(p.TopHighlights), 3)
			assert.LessOrEqual(t, len(p.PrioritySkills), 12)
			assert.NotEmpty(t, p.PrimaryMetrics)
			for _, h := range p.TopHighlights {
				assert.Equal(t, strings.TrimSpace(h), h)
			}
			for _, s := range p.PrioritySkills {
				assert.Equal(t, strings.ToLower(s), s)
			}
		})
	}
}

func TestDefault_DataAnalystMetricsAreQuantified(t *testing.T) {
	lib, err := Default()
	require.NoError(t, err)

	r, err := lib.Get("data-analyst-cv")
	require.NoError(t, err)
	quantified := regexp.MustCompile(`\d|%|\$`)
	found := false
	for _, m := range r.Profile.PrimaryMetrics {
		if quantified.MatchString(m) {
			found = true
		}
	}
	assert.True(t, found, "primary metrics should contain a quantified result")
}

func TestBuildPromptProfile_FallsBackToHighlights(t *testing.T) {
	p := BuildPromptProfile(Resume{
		ID:         "test",
		Name:       "Test Resume",
		Focus:      "Generalist profile.",
		Highlights: []string{"Led customer onboarding across three markets."},
		Skills:     []string{"Stakeholder   Engagement"},
	})
	assert.Equal(t, []string{"Led customer onboarding across three markets."}, p.PrimaryMetrics)
	assert.Equal(t, "stakeholder engagement", p.PrioritySkills[0])
}

func TestBuildPromptProfile_TrimsLongFocus(t *testing.T) {
	p := BuildPromptProfile(Resume{ID: "x", Name: "X", Focus: strings.Repeat("word ", 100)})
	assert.True(t, strings.HasSuffix(p.Focus, "…"))
	assert.LessOrEqual(t, utf8.RuneCountInString(p.Focus), 218)
	assert.False(t, strings.HasSuffix(strings.TrimSuffix(p.Focus, "…"), " "))
}

func TestLibrary_GetUnknown(t *testing.T) {
	lib, err := Default()
	require.NoError(t, err)
	_, err = lib.Get("nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestParse_Rejects(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"empty", "resumes: []"},
		{"missing name", "resumes:\n  - id: a\n"},
		{"duplicate", "resumes:\n  - id: a\n    name: A\n  - id: a\n    name: B\n"},
		{"bad yaml", "resumes: ["},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestLoad_FromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lib.yaml")
	require.NoError(t, os.WriteFile(path, []byte("resumes:\n  - id: a\n    name: A\n    focus: Go\n"), 0o600))

	lib, err := Load(path)
	require.NoError(t, err)
	r, err := lib.Get("a")
	require.NoError(t, err)
	assert.Equal(t, "A", r.Name)
	assert.Empty(t, r.Profile.PrimaryMetrics)
}
