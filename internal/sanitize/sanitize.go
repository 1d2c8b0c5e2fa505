// Package sanitize strips markup from untrusted text before it is compared,
// stored, sent to the model or written to a client.
package sanitize

import (
	"fmt"
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var strict = bluemonday.StrictPolicy()

// maxStripPasses bounds how many layers of entity encoding are peeled.
const maxStripPasses = 4

// strip removes tags and decodes entities until decoding exposes no new
// markup. Input still changing after maxStripPasses is returned in its
// escaped form.
func strip(s string) string {
	cur := s
	for range maxStripPasses {
		next := html.UnescapeString(strict.Sanitize(cur))
		if next == cur {
			return cur
		}
		cur = next
	}
	return strict.Sanitize(cur)
}

// Text removes all HTML tags, including tags hidden behind entity encoding,
// and returns the decoded, trimmed text.
func Text(s string) string {
	if s == "" {
		return ""
	}
	out := strings.ReplaceAll(strip(s), "\u00a0", " ")
	return strings.TrimSpace(out)
}

// Markdown strips HTML from model-written Markdown. Unlike Text it keeps
// leading and trailing whitespace so paragraph breaks survive.
func Markdown(s string) string {
	if s == "" {
		return ""
	}
	return strings.ReplaceAll(strip(s), "\u00a0", " ")
}

// Value sanitizes an arbitrary JSON-ish value as text. Non-strings are
// formatted before stripping; nil becomes "".
func Value(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return Text(t)
	case fmt.Stringer:
		return Text(t.String())
	default:
		return Text(fmt.Sprint(t))
	}
}

// Strings sanitizes each value, drops empties and keeps at most limit items.
// A non-positive limit keeps everything.
func Strings(values []string, limit int) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if s := Text(v); s != "" {
			out = append(out, s)
			if limit > 0 && len(out) >= limit {
				break
			}
		}
	}
	return out
}

// Array is Strings for decoded JSON arrays. Anything that is not a slice
// yields an empty result.
func Array(v any, limit int) []string {
	items, ok := v.([]any)
	if !ok {
		if ss, ok := v.([]string); ok {
			return Strings(ss, limit)
		}
		return []string{}
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s := Value(item); s != "" {
			out = append(out, s)
			if limit > 0 && len(out) >= limit {
				break
			}
		}
	}
	return out
}

// Preferences normalizes free-form user preferences into a flat object of
// sanitized strings and string lists.
//
//	string -> {"notes": s}
//	array  -> {"preferences": [...]}
//	object -> each value sanitized as a string or list
//	other  -> {"note": s}
func Preferences(v any) map[string]any {
	switch t := v.(type) {
	case nil:
		return map[string]any{}
	case string:
		s := Text(t)
		if s == "" {
			return map[string]any{}
		}
		return map[string]any{"notes": s}
	case []any:
		return map[string]any{"preferences": Array(t, 0)}
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			if arr, ok := val.([]any); ok {
				out[k] = Array(arr, 0)
				continue
			}
			out[k] = Value(val)
		}
		return out
	default:
		return map[string]any{"note": Value(t)}
	}
}
