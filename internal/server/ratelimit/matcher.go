package ratelimit

import "strings"

// MatchEndpoint returns the configuration for path and method, or nil.
// Exact paths win over prefixes; /health is never limited.
func MatchEndpoint(path, method string, configs []EndpointConfig) *EndpointConfig {
	if path == "/health" {
		return &EndpointConfig{}
	}
	methodMatches := func(c *EndpointConfig) bool {
		return c.Method == "" || strings.EqualFold(c.Method, method)
	}
	for i := range configs {
		c := &configs[i]
		if c.Path == path && methodMatches(c) {
			return c
		}
	}
	for i := range configs {
		c := &configs[i]
		if strings.HasSuffix(c.Path, "/") && strings.HasPrefix(path, c.Path) && methodMatches(c) {
			return c
		}
	}
	return nil
}
