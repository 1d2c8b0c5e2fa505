package ratelimit

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Defaults for the pipeline trigger.
const (
	DefaultPipelineLimit  = 5
	DefaultPipelineWindow = 60 * time.Second
)

// EndpointConfig is the budget of one endpoint.
type EndpointConfig struct {
	Path   string        // exact path, or a prefix when it ends with "/"
	Method string        // empty matches every method
	Limit  int           // requests per window
	Window time.Duration // window length
	Burst  int           // defaults to Limit
}

// Config holds rate limiting configuration.
type Config struct {
	Enabled         bool
	DefaultLimit    int
	DefaultWindow   time.Duration
	CleanupInterval time.Duration
	IdleTTL         time.Duration
	Whitelist       map[string]bool
	EndpointConfigs []EndpointConfig
}

// LoadConfig reads the limiter configuration from the environment.
func LoadConfig() *Config {
	if !getEnvBool("JOB_INTEL_RATE_LIMIT_ENABLED", true) {
		return &Config{Enabled: false}
	}
	return &Config{
		Enabled:         true,
		DefaultLimit:    getEnvInt("JOB_INTEL_DEFAULT_RATE_LIMIT", 1000),
		DefaultWindow:   getEnvDuration("JOB_INTEL_DEFAULT_RATE_WINDOW", time.Minute),
		CleanupInterval: getEnvDuration("JOB_INTEL_RATE_CLEANUP_INTERVAL", 5*time.Minute),
		IdleTTL:         time.Hour,
		Whitelist:       parseIPList(os.Getenv("JOB_INTEL_RATE_WHITELIST")),
		EndpointConfigs: PipelineEndpoints(
			getEnvInt("JOB_INTEL_RATE_LIMIT", DefaultPipelineLimit),
			getEnvDuration("JOB_INTEL_RATE_WINDOW", DefaultPipelineWindow),
		),
	}
}

// PipelineEndpoints limits the job intelligence routes to limit requests
// per window per client.
func PipelineEndpoints(limit int, window time.Duration) []EndpointConfig {
	return []EndpointConfig{
		{Path: "/api/job-intel", Limit: limit, Window: window},
		{Path: "/api/job-intel/", Limit: limit, Window: window},
	}
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

// getEnvDuration accepts Go durations ("90s") or plain milliseconds.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if ms, err := strconv.Atoi(value); err == nil {
		return time.Duration(ms) * time.Millisecond
	}
	return defaultValue
}

func parseIPList(list string) map[string]bool {
	result := make(map[string]bool)
	for _, ip := range strings.Split(list, ",") {
		if ip = strings.TrimSpace(ip); ip != "" {
			result[ip] = true
		}
	}
	return result
}
