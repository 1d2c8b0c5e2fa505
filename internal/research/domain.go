package research

import (
	"net/url"
	"sort"
	"strings"
)

// hostname returns the lower-cased host of urlStr without a leading "www.".
func hostname(urlStr string) string {
	if urlStr == "" {
		return ""
	}
	parsed, err := url.Parse(urlStr)
	if err != nil || parsed.Hostname() == "" {
		return ""
	}
	return strings.TrimPrefix(strings.ToLower(parsed.Hostname()), "www.")
}

// OfficialDomain picks the result with the shortest hostname, on the
// assumption that the canonical site has the most concise domain. Ties keep
// search rank order.
func OfficialDomain(results []SearchResult) string {
	hosts := make([]string, 0, len(results))
	for _, r := range results {
		if h := hostname(r.URL); h != "" {
			hosts = append(hosts, h)
		}
	}
	if len(hosts) == 0 {
		return ""
	}
	sort.SliceStable(hosts, func(i, j int) bool {
		return len(hosts[i]) < len(hosts[j])
	})
	return hosts[0]
}

// OnDomain returns up to limit results whose URL mentions domain, in rank
// order.
func OnDomain(results []SearchResult, domain string, limit int) []SearchResult {
	out := make([]SearchResult, 0, limit)
	for _, r := range results {
		if len(out) >= limit {
			break
		}
		if strings.Contains(strings.ToLower(r.URL), domain) {
			out = append(out, r)
		}
	}
	return out
}
