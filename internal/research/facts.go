package research

import (
	"regexp"

	"github.com/jonathan/job-intel/internal/parsing"
	"github.com/jonathan/job-intel/internal/sanitize"
)

const (
	minSentenceLength = 20
	perPageLimit      = 3
	highlightsPerPage = 2
	overallLimit      = 5
)

var (
	valuesPattern   = regexp.MustCompile(`(?i)value|mission|culture|principle|ethos`)
	productsPattern = regexp.MustCompile(`(?i)product|service|platform|solution|suite|technology|tool`)
	newsPattern     = regexp.MustCompile(`(?i)news|announc|launch|recent|award|partner|expan|202[0-9]`)
)

// Summarize classifies the sentences of every page into facts.
func Summarize(pages []Page) *Facts {
	var values, products, news, highlights []string
	for _, page := range pages {
		var sentences []string
		for _, s := range parsing.SplitSentences(page.TextContent) {
			if len(s) > minSentenceLength {
				sentences = append(sentences, s)
			}
		}

		values = append(values, matching(sentences, valuesPattern, perPageLimit)...)
		products = append(products, matching(sentences, productsPattern, perPageLimit)...)
		news = append(news, matching(sentences, newsPattern, perPageLimit)...)
		if len(sentences) > highlightsPerPage {
			highlights = append(highlights, sentences[:highlightsPerPage]...)
		} else {
			highlights = append(highlights, sentences...)
		}
	}
	return &Facts{
		Values:     sanitize.Strings(values, overallLimit),
		Products:   sanitize.Strings(products, overallLimit),
		RecentNews: sanitize.Strings(news, overallLimit),
		Highlights: sanitize.Strings(highlights, overallLimit),
	}
}

func matching(sentences []string, re *regexp.Regexp, limit int) []string {
	var out []string
	for _, s := range sentences {
		if len(out) >= limit {
			break
		}
		if re.MatchString(s) {
			out = append(out, s)
		}
	}
	return out
}
