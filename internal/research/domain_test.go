package research

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHostname(t *testing.T) {
	tests := []struct {
		name     string
		url      string
		expected string
	}{
		{"simple", "https://doordash.com", "doordash.com"},
		{"www stripped", "https://www.DoorDash.com/about", "doordash.com"},
		{"subdomain kept", "https://careers.doordash.com/jobs", "careers.doordash.com"},
		{"port dropped", "http://127.0.0.1:8080/x", "127.0.0.1"},
		{"no scheme", "doordash.com", ""},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, hostname(tt.url))
		})
	}
}

func TestOfficialDomain_Shortest(t *testing.T) {
	results := []SearchResult{
		{URL: "https://en.wikipedia.org/wiki/Acme"},
		{URL: "https://www.acme.com/about"},
		{URL: "https://careers.acme.com"},
	}
	assert.Equal(t, "acme.com", OfficialDomain(results))
	assert.Equal(t, "", OfficialDomain(nil))
}

func TestOnDomain(t *testing.T) {
	results := []SearchResult{
		{URL: "https://acme.com/a"},
		{URL: "https://other.com/acme"},
		{URL: "https://www.acme.com/b"},
	}
	for i := 0; i < 6; i++ {
		results = append(results, SearchResult{URL: "https://acme.com/" + strings.Repeat("x", i+1)})
	}

	got := OnDomain(results, "acme.com", 5)
	assert.Len(t, got, 5)
	assert.Equal(t, "https://acme.com/a", got[0].URL)
	assert.Equal(t, "https://www.acme.com/b", got[1].URL)
}

func TestSummarize_Caps(t *testing.T) {
	var pages []Page
	for i := 0; i < 3; i++ {
		pages = append(pages, Page{TextContent: strings.Repeat("Our mission and values guide every product we launch. ", 4)})
	}
	f := Summarize(pages)
	assert.Len(t, f.Values, 5, "3 per page, 5 overall")
	assert.Len(t, f.Products, 5)
	assert.Len(t, f.RecentNews, 5)
	assert.Len(t, f.Highlights, 5)
}

func TestSummarize_IgnoresShortSentences(t *testing.T) {
	f := Summarize([]Page{{TextContent: "Values matter. Mission first."}})
	assert.Empty(t, f.Values)
	assert.Empty(t, f.Highlights)
}
