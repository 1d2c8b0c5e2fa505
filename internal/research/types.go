// Package research gathers public facts about a hiring company from its
// official website.
package research

// Page is one fetched page of the company site.
type Page struct {
	URL         string `json:"url"`
	Title       string `json:"title"`
	TextContent string `json:"textContent"`
}

// Facts are sentences mined from the company pages.
type Facts struct {
	Values     []string `json:"values"`
	Products   []string `json:"products"`
	RecentNews []string `json:"recentNews"`
	Highlights []string `json:"highlights"`
}

// Payload is the cached research result for one company. Facts is nil when
// no official site could be identified.
type Payload struct {
	CompanyName string `json:"companyName"`
	Domain      string `json:"domain"`
	Pages       []Page `json:"pages"`
	Facts       *Facts `json:"facts"`
}

// Skipped reports whether the payload carries no facts.
func (p *Payload) Skipped() bool {
	return p == nil || p.Facts == nil
}

// Source is a citation for a research page.
type Source struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// Sources returns up to limit page citations.
func (p *Payload) Sources(limit int) []Source {
	if p == nil {
		return []Source{}
	}
	out := make([]Source, 0, len(p.Pages))
	for _, page := range p.Pages {
		if limit > 0 && len(out) >= limit {
			break
		}
		out = append(out, Source{Title: page.Title, URL: page.URL})
	}
	return out
}
