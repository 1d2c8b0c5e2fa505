package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

const letterJSON = `{"coverLetterMarkdown": "Dear team,\n\nI build {things}.", "talkingPoints": ["Scaled \"billing\""], "researchSources": []}`

func TestCleanJSONBlock(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain object", letterJSON, letterJSON},
		{"json fence", "```json\n" + letterJSON + "\n```", letterJSON},
		{"bare fence", "```\n" + letterJSON + "\n```", letterJSON},
		{"fence with other language tag", "```javascript\n" + letterJSON + "\n```", letterJSON},
		{"preamble", "Here is the cover letter bundle:\n\n" + letterJSON, letterJSON},
		{"trailing chatter", letterJSON + "\n\nLet me know if you want a shorter version.", letterJSON},
		{"surrounding whitespace", "  \n" + letterJSON + "\n\t", letterJSON},
		{"array before object", `Points: ["a", "b"] then {"x": 1}`, `["a", "b"]`},
		{"object before array", `Result {"talkingPoints": ["a"]}`, `{"talkingPoints": ["a"]}`},
		{"no json", "  I could not draft a letter.  ", "I could not draft a letter."},
		{"unbalanced object", `Result: {"coverLetterMarkdown": "cut off`, `Result: {"coverLetterMarkdown": "cut off`},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CleanJSONBlock(tt.input))
		})
	}
}

func TestExtractBalanced(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		open, close byte
		want        string
	}{
		{"nested object", `{"a": {"b": {"c": 1}}} tail`, '{', '}', `{"a": {"b": {"c": 1}}}`},
		{"braces in strings", `{"t": "Hello {name}}"}`, '{', '}', `{"t": "Hello {name}}"}`},
		{"escaped quote in string", `{"t": "say \"}\" now"} x`, '{', '}', `{"t": "say \"}\" now"}`},
		{"escaped backslash", `{"p": "C:\\"} x`, '{', '}', `{"p": "C:\\"}`},
		{"array of objects", `[{"id": 1}, {"id": 2}] more`, '[', ']', `[{"id": 1}, {"id": 2}]`},
		{"wrong opener", `x{"a": 1}`, '{', '}', ""},
		{"never closes", `{"a": {"b": 1}`, '{', '}', ""},
		{"empty", "", '[', ']', ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, extractBalanced(tt.input, tt.open, tt.close))
		})
	}
}

func TestExtractJSONHelpers(t *testing.T) {
	assert.Equal(t, `{"k": "v"}`, extractJSONObject(`{"k": "v"} and more`))
	assert.Equal(t, `[1, [2]]`, extractJSONArray(`[1, [2]] and more`))
	assert.Empty(t, extractJSONObject(`[1]`))
	assert.Empty(t, extractJSONArray(`{"k": 1}`))
}
