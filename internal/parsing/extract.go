package parsing

import (
	"regexp"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/jonathan/job-intel/internal/sanitize"
)

const (
	// DefaultSummarySentences is the summary length used by the pipeline.
	DefaultSummarySentences = 3
	// DetailSummarySentences is the summary length of the job-details endpoint.
	DetailSummarySentences = 5

	maxBulletPoints    = 8
	maxParagraphPoints = 5
	locationSearchSpan = 1500
)

// Metadata holds the identifying fields of a posting.
type Metadata struct {
	RoleTitle     string   `json:"roleTitle"`
	CompanyName   string   `json:"companyName"`
	CompanyHints  []string `json:"companyHints"`
	Location      string   `json:"location"`
	LocationHints []string `json:"locationHints"`
	SourceURL     string   `json:"sourceUrl"`
}

// JobDetails is everything extracted from one job posting.
type JobDetails struct {
	Metadata     Metadata `json:"metadata"`
	Summary      string   `json:"summary"`
	BulletPoints []string `json:"bulletPoints"`
	TextContent  string   `json:"textContent"`
}

// Option tunes extraction.
type Option func(*extractOptions)

type extractOptions struct {
	summarySentences int
}

// WithSummarySentences sets how many sentences the summary keeps.
func WithSummarySentences(n int) Option {
	return func(o *extractOptions) {
		if n > 0 {
			o.summarySentences = n
		}
	}
}

// ExtractDetails derives job details from posting HTML. It is pure: the
// same input always yields the same output.
func ExtractDetails(html, pageURL string, opts ...Option) (*JobDetails, error) {
	o := extractOptions{summarySentences: DefaultSummarySentences}
	for _, opt := range opts {
		opt(&o)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, &ExtractionError{URL: pageURL, Cause: err}
	}

	// Candidates that live outside the main content are read before the
	// reader pass strips headers and meta-bearing chrome.
	var titles, companies, locations candidates
	titles.add(doc.Find("title").First().Text())
	titles.add(doc.Find("h1").First().Text())
	doc.Find("meta").Each(func(_ int, s *goquery.Selection) {
		name := strings.ToLower(metaName(s))
		content := s.AttrOr("content", "")
		if name == "" {
			return
		}
		if strings.Contains(name, "title") {
			titles.add(content)
		}
		if strings.Contains(name, "company") || strings.Contains(name, "organization") || strings.Contains(name, "site_name") {
			companies.add(content)
		}
		if strings.Contains(name, "location") || strings.Contains(name, "city") || strings.Contains(name, "geo") {
			locations.add(content)
		}
	})

	article, main := readArticle(doc, pageURL)
	titles.prepend(article.Title)

	text := article.TextContent
	if text == "" {
		text = sanitize.Text(doc.Find("body").Text())
	}

	for _, t := range titles.items {
		if i := strings.Index(strings.ToLower(t), " at "); i >= 0 {
			companies.add(t[i+4:])
		}
	}
	companies.add(article.Byline)
	companies.add(companyFromText(text))
	locations.add(locationFromText(text))

	return &JobDetails{
		Metadata: Metadata{
			RoleTitle:     PickTitle(titles.items),
			CompanyName:   PickCompany(companies.items),
			CompanyHints:  companies.list(),
			Location:      PickLocation(locations.items),
			LocationHints: locations.list(),
			SourceURL:     pageURL,
		},
		Summary:      summarize(firstNonEmpty(article.Excerpt, text), o.summarySentences),
		BulletPoints: bulletPoints(main),
		TextContent:  text,
	}, nil
}

// CompanyForResearch returns the best company name to research: the picked
// company, then the first hint, then patterns in the body text.
func CompanyForResearch(d *JobDetails) string {
	if d == nil {
		return ""
	}
	if d.Metadata.CompanyName != "" {
		return d.Metadata.CompanyName
	}
	if len(d.Metadata.CompanyHints) > 0 {
		return d.Metadata.CompanyHints[0]
	}
	return companyFromText(d.TextContent)
}

// candidates is an insertion-ordered set of sanitized, non-empty strings.
type candidates struct {
	items []string
	seen  map[string]bool
}

func (c *candidates) add(s string) {
	s = sanitize.Text(s)
	if s == "" || c.seen[s] {
		return
	}
	if c.seen == nil {
		c.seen = make(map[string]bool)
	}
	c.seen[s] = true
	c.items = append(c.items, s)
}

func (c *candidates) prepend(s string) {
	s = sanitize.Text(s)
	if s == "" || c.seen[s] {
		return
	}
	c.add(s)
	c.items = append([]string{s}, c.items[:len(c.items)-1]...)
}

func (c *candidates) list() []string {
	if c.items == nil {
		return []string{}
	}
	return c.items
}

var (
	titleSeparator  = regexp.MustCompile(`\||\s[-–—]\s`)
	trailingClause  = regexp.MustCompile(`[,|]`)
	legalSuffix     = regexp.MustCompile(`(?i)\b(inc|llc|pty|ltd)\b\.?`)
	spaceRun        = regexp.MustCompile(`\s+`)
	locationPattern = regexp.MustCompile(`(?i)(Location|Based in|Work location)[:\-]\s*([^\n]+)`)
	companyLabel    = regexp.MustCompile(`(?i)(Company|Organisation|Organization)[:\-]\s*([^\n]+)`)
	companyAt       = regexp.MustCompile(`\bat\s+([A-Z][A-Za-z0-9&.,'\- ]{2,60})`)
)

// PickTitle cuts each candidate at its first site separator and returns the
// shortest survivor, or the first raw candidate if none survive.
func PickTitle(titles []string) string {
	return pickShortest(titles, func(s string) string {
		if loc := titleSeparator.FindStringIndex(s); loc != nil {
			s = s[:loc[0]]
		}
		return strings.TrimSpace(s)
	})
}

// PickCompany cuts each candidate at its first comma or pipe, strips legal
// suffixes and returns the shortest survivor.
func PickCompany(companies []string) string {
	return pickShortest(companies, CleanCompany)
}

// CleanCompany normalizes a company name candidate.
func CleanCompany(s string) string {
	s = cutAt(s, trailingClause)
	s = legalSuffix.ReplaceAllString(s, "")
	return strings.TrimSpace(spaceRun.ReplaceAllString(s, " "))
}

// PickLocation cuts each candidate at its first comma or pipe and returns
// the shortest survivor.
func PickLocation(locations []string) string {
	return pickShortest(locations, func(s string) string {
		return strings.TrimSpace(cutAt(s, trailingClause))
	})
}

func pickShortest(in []string, clean func(string) string) string {
	if len(in) == 0 {
		return ""
	}
	cleaned := make([]string, 0, len(in))
	for _, s := range in {
		if c := clean(s); c != "" {
			cleaned = append(cleaned, c)
		}
	}
	if len(cleaned) == 0 {
		return in[0]
	}
	sort.SliceStable(cleaned, func(i, j int) bool {
		return len(cleaned[i]) < len(cleaned[j])
	})
	return cleaned[0]
}

func cutAt(s string, re *regexp.Regexp) string {
	if loc := re.FindStringIndex(s); loc != nil {
		return s[:loc[0]]
	}
	return s
}

func locationFromText(text string) string {
	if len(text) > locationSearchSpan {
		text = text[:locationSearchSpan]
	}
	if m := locationPattern.FindStringSubmatch(text); m != nil {
		return sanitize.Text(m[2])
	}
	return ""
}

func companyFromText(text string) string {
	if text == "" {
		return ""
	}
	if m := companyLabel.FindStringSubmatch(text); m != nil {
		return sanitize.Text(m[2])
	}
	if m := companyAt.FindStringSubmatch(text); m != nil {
		return sanitize.Text(m[1])
	}
	return ""
}

// SplitSentences splits text on '.', '!' or '?' followed by whitespace.
// Runs of whitespace are collapsed first.
func SplitSentences(text string) []string {
	text = strings.TrimSpace(spaceRun.ReplaceAllString(text, " "))
	if text == "" {
		return nil
	}
	var out []string
	start := 0
	for i := 0; i < len(text)-1; i++ {
		switch text[i] {
		case '.', '!', '?':
			if text[i+1] == ' ' {
				if s := strings.TrimSpace(text[start : i+1]); s != "" {
					out = append(out, s)
				}
				start = i + 2
			}
		}
	}
	if s := strings.TrimSpace(text[start:]); s != "" {
		out = append(out, s)
	}
	return out
}

func summarize(text string, n int) string {
	sentences := SplitSentences(text)
	if len(sentences) > n {
		sentences = sentences[:n]
	}
	return strings.Join(sentences, " ")
}

func bulletPoints(main *goquery.Selection) []string {
	var items candidates
	main.Find("li").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		items.add(s.Text())
		return len(items.items) < maxBulletPoints
	})
	if len(items.items) > 0 {
		return items.items
	}

	paragraphs := make([]string, 0, maxParagraphPoints)
	main.Find("p").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if t := sanitize.Text(s.Text()); t != "" {
			paragraphs = append(paragraphs, t)
		}
		return len(paragraphs) < maxParagraphPoints
	})
	return paragraphs
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
