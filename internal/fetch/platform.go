package fetch

import (
	"net/url"
	"strings"
)

// Platform is an applicant tracking system whose markup we know.
type Platform string

const (
	PlatformGreenhouse Platform = "greenhouse"
	PlatformLever      Platform = "lever"
	PlatformWorkday    Platform = "workday"
	PlatformUnknown    Platform = "unknown"
)

var platformHosts = []struct {
	platform Platform
	hosts    []string
}{
	{PlatformGreenhouse, []string{"greenhouse.io"}},
	{PlatformLever, []string{"lever.co"}},
	{PlatformWorkday, []string{"workday.com", "myworkdayjobs.com"}},
}

// DetectPlatform identifies the tracking system from a posting URL.
func DetectPlatform(urlStr string) Platform {
	parsed, err := url.Parse(urlStr)
	if err != nil {
		return PlatformUnknown
	}
	host := strings.ToLower(parsed.Hostname())
	for _, p := range platformHosts {
		for _, h := range p.hosts {
			if host == h || strings.HasSuffix(host, "."+h) {
				return p.platform
			}
		}
	}
	return PlatformUnknown
}

var contentSelectors = map[Platform][]string{
	PlatformGreenhouse: {".job__description.body", ".job__description", ".job-description__content", "#content", ".job-post-container"},
	PlatformLever:      {".posting-page", ".section-wrapper.page-full-width", ".posting-description", ".content"},
	PlatformWorkday:    {"[data-automation-id='jobDescription']", ".job-description"},
}

// ContentSelectors returns the main-content selectors for a platform, most
// specific first.
func ContentSelectors(p Platform) []string {
	if sel, ok := contentSelectors[p]; ok {
		return sel
	}
	return JobPostingSelectors()
}

// JobPostingSelectors are tried on unknown job boards.
func JobPostingSelectors() []string {
	return []string{
		".job-description",
		".job-content",
		"#job-description",
		".posting-content",
		".job-details",
		"[data-testid='job-description']",
		"main",
		"article",
		".content",
		"#content",
	}
}

// CompanyPageSelectors are tried on company about/values pages.
func CompanyPageSelectors() []string {
	return []string{"main", "article", ".about-content", ".values-content", ".culture-content", ".content", "#content"}
}

var commonNoise = []string{
	"form",
	"#application-form",
	".application-form",
	".apply-button-container",
	".eeo-statement",
	".eeo-section",
	".legal-disclosure",
	".social-share",
	".share-buttons",
	".cookie-consent",
	".gdpr-notice",
}

var platformNoise = map[Platform][]string{
	PlatformGreenhouse: {".application--wrapper", ".voluntary-self-id", "#usa_self_id_section", ".post-apply"},
	PlatformLever:      {".apply-section", ".lever-application-form", ".posting-apply"},
	PlatformWorkday:    {"[data-automation-id='applyButton']", ".application-section"},
}

// NoiseSelectors returns elements to drop before extraction on a platform.
func NoiseSelectors(p Platform) []string {
	out := append([]string{}, commonNoise...)
	return append(out, platformNoise[p]...)
}
