// Package parsing derives structured job details from posting HTML.
package parsing

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/jonathan/job-intel/internal/fetch"
	"github.com/jonathan/job-intel/internal/sanitize"
)

// Article is the reader-mode view of a page: the main content with
// navigation, forms and other chrome removed.
type Article struct {
	Title       string
	Byline      string
	TextContent string
	Excerpt     string
}

// ReadArticle parses html and returns its reader-mode article. Selectors are
// chosen from the platform detected for pageURL.
func ReadArticle(html, pageURL string) (*Article, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, &ExtractionError{URL: pageURL, Cause: err}
	}
	a, _ := readArticle(doc, pageURL)
	return a, nil
}

// readArticle strips noise from doc in place and returns the article along
// with its main content selection.
func readArticle(doc *goquery.Document, pageURL string) (*Article, *goquery.Selection) {
	a := &Article{
		Title:   articleTitle(doc),
		Byline:  byline(doc),
		Excerpt: metaContent(doc, "og:description", "description", "twitter:description"),
	}

	platform := fetch.DetectPlatform(pageURL)
	main := fetch.MainContent(doc, fetch.ContentSelectors(platform), fetch.NoiseSelectors(platform)...)

	blocks := make([]string, 0, 32)
	main.Find("h1, h2, h3, h4, p, li, td, dt, dd, pre, blockquote").Each(func(_ int, s *goquery.Selection) {
		if s.Find("p, li").Length() > 0 {
			return
		}
		if t := strings.Join(strings.Fields(s.Text()), " "); t != "" {
			blocks = append(blocks, t)
		}
	})
	if len(blocks) == 0 {
		a.TextContent = fetch.CleanWhitespace(main.Text())
	} else {
		a.TextContent = strings.Join(blocks, "\n")
	}

	if a.Excerpt == "" {
		main.Find("p").EachWithBreak(func(_ int, s *goquery.Selection) bool {
			if t := strings.Join(strings.Fields(s.Text()), " "); t != "" {
				a.Excerpt = t
				return false
			}
			return true
		})
	}

	a.Title = sanitize.Text(a.Title)
	a.Byline = sanitize.Text(a.Byline)
	a.Excerpt = sanitize.Text(a.Excerpt)
	a.TextContent = sanitize.Text(a.TextContent)
	return a, main
}

func articleTitle(doc *goquery.Document) string {
	if t := metaContent(doc, "og:title", "twitter:title"); t != "" {
		return t
	}
	if t := strings.TrimSpace(doc.Find("h1").First().Text()); t != "" {
		return t
	}
	return strings.TrimSpace(doc.Find("title").First().Text())
}

func byline(doc *goquery.Document) string {
	if b := metaContent(doc, "author", "article:author"); b != "" {
		return b
	}
	for _, sel := range []string{"[rel='author']", "[itemprop='author']", ".byline", ".author"} {
		if t := strings.TrimSpace(doc.Find(sel).First().Text()); t != "" {
			return t
		}
	}
	return ""
}

// metaContent returns the content of the first meta tag whose name or
// property equals one of keys, in key order.
func metaContent(doc *goquery.Document, keys ...string) string {
	for _, key := range keys {
		var found string
		doc.Find("meta").EachWithBreak(func(_ int, s *goquery.Selection) bool {
			if strings.EqualFold(metaName(s), key) {
				found = strings.TrimSpace(s.AttrOr("content", ""))
				return found == ""
			}
			return true
		})
		if found != "" {
			return found
		}
	}
	return ""
}

func metaName(s *goquery.Selection) string {
	if name := s.AttrOr("name", ""); name != "" {
		return name
	}
	return s.AttrOr("property", "")
}
