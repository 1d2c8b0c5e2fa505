// Package prompts holds the prompt fragments used to assemble LLM requests.
// Fragments live in JSON files embedded at compile time.
package prompts

import (
	"embed"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
)

//go:embed *.json
var promptFiles embed.FS

// CoverLetter is the fragment file for cover letter prompts.
const CoverLetter = "coverletter.json"

// fragmentSets caches parsed files by name.
var fragmentSets sync.Map

type fragmentSet struct {
	once      sync.Once
	fragments map[string]string
	err       error
}

func load(filename string) (map[string]string, error) {
	v, _ := fragmentSets.LoadOrStore(filename, &fragmentSet{})
	set := v.(*fragmentSet)
	set.once.Do(func() {
		data, err := promptFiles.ReadFile(filename)
		if err != nil {
			set.err = fmt.Errorf("read fragments %s: %w", filename, err)
			return
		}
		if err := json.Unmarshal(data, &set.fragments); err != nil {
			set.err = fmt.Errorf("parse fragments %s: %w", filename, err)
		}
	})
	return set.fragments, set.err
}

// Get returns the fragment stored under key in filename.
func Get(filename, key string) (string, error) {
	fragments, err := load(filename)
	if err != nil {
		return "", err
	}
	if s, ok := fragments[key]; ok {
		return s, nil
	}
	return "", fmt.Errorf("%s has no fragment %q", filename, key)
}

// MustGet is Get for embedded fragments the binary cannot run without.
func MustGet(filename, key string) string {
	s, err := Get(filename, key)
	if err != nil {
		panic(err)
	}
	return s
}

// Format replaces {{.Key}} placeholders with values from data. Placeholders
// without a value are kept.
func Format(template string, data map[string]string) string {
	if len(data) == 0 {
		return template
	}
	oldnew := make([]string, 0, len(data)*2)
	for k, v := range data {
		oldnew = append(oldnew, "{{."+k+"}}", v)
	}
	return strings.NewReplacer(oldnew...).Replace(template)
}
