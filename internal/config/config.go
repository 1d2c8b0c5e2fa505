// Package config loads server and CLI settings from the environment, an
// optional .env file and an optional JSON file.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Duration is a time.Duration that reads from JSON as a Go duration
// string ("20s") or a number of milliseconds.
type Duration time.Duration

// UnmarshalJSON implements json.Unmarshaler.
func (d *Duration) UnmarshalJSON(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	switch t := v.(type) {
	case float64:
		*d = Duration(time.Duration(t) * time.Millisecond)
	case string:
		parsed, err := parseDuration(t)
		if err != nil {
			return err
		}
		*d = Duration(parsed)
	default:
		return fmt.Errorf("invalid duration %s", string(b))
	}
	return nil
}

// MarshalJSON implements json.Marshaler.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Config holds every setting. Zero values mean "not set" until merged with
// Defaults.
type Config struct {
	// Server
	Port           int      `json:"port,omitempty"`
	APIKey         string   `json:"api_key,omitempty"` // shared secret for /api routes
	Heartbeat      Duration `json:"heartbeat,omitempty"`
	AllowedOrigins []string `json:"allowed_origins,omitempty"`
	RateLimit      int      `json:"rate_limit,omitempty"`
	RateWindow     Duration `json:"rate_window,omitempty"`

	// Step budgets
	FetchTimeout    Duration `json:"fetch_timeout,omitempty"`
	ResearchTimeout Duration `json:"research_timeout,omitempty"`
	LLMTimeout      Duration `json:"llm_timeout,omitempty"`

	// Caches
	PageCacheTTL            Duration `json:"page_cache_ttl,omitempty"`
	PageCacheMaxEntries     int      `json:"page_cache_max_entries,omitempty"`
	ResearchCacheTTL        Duration `json:"research_cache_ttl,omitempty"`
	ResearchCacheMaxEntries int      `json:"research_cache_max_entries,omitempty"`

	// Fetching
	UserAgent  string `json:"user_agent,omitempty"`
	UseBrowser bool   `json:"use_browser,omitempty"` // headless fallback for SPA postings

	// Collaborators
	GeminiAPIKey   string `json:"gemini_api_key,omitempty"`
	LLMModel       string `json:"llm_model,omitempty"`
	SearchAPIKey   string `json:"search_api_key,omitempty"`
	SearchEngineID string `json:"search_engine_id,omitempty"`
	SearchEndpoint string `json:"search_endpoint,omitempty"`
	ResumeLibrary  string `json:"resume_library,omitempty"` // YAML path; embedded library when empty
}

// Defaults returns the stock settings.
func Defaults() Config {
	return Config{
		Port:                    3000,
		Heartbeat:               Duration(20 * time.Second),
		AllowedOrigins:          []string{"*"},
		RateLimit:               5,
		RateWindow:              Duration(60 * time.Second),
		FetchTimeout:            Duration(20 * time.Second),
		ResearchTimeout:         Duration(15 * time.Second),
		LLMTimeout:              Duration(60 * time.Second),
		PageCacheTTL:            Duration(2 * time.Hour),
		PageCacheMaxEntries:     48,
		ResearchCacheTTL:        Duration(6 * time.Hour),
		ResearchCacheMaxEntries: 120,
	}
}

// Load builds the effective configuration. Precedence is environment
// (including .env), then the JSON file at path, then Defaults. An empty
// path skips the file.
func Load(path string) (Config, error) {
	if err := LoadDotEnv(); err != nil {
		return Config{}, err
	}
	cfg := FromEnv()
	if path != "" {
		file, err := LoadConfig(path)
		if err != nil {
			return Config{}, err
		}
		cfg = cfg.MergeWithDefaults(*file)
	}
	cfg = cfg.MergeWithDefaults(Defaults())
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadDotEnv loads the given .env files (default ".env") into the process
// environment without overriding variables already set. Missing files are
// ignored.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to load %s: %w", f, err)
		}
	}
	return nil
}

// LoadConfig loads configuration from a JSON file.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("config path is empty")
	}

	if !filepath.IsAbs(path) {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get current directory: %w", err)
		}
		path = filepath.Join(cwd, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	return &cfg, nil
}

// FromEnv reads the settings present in the environment.
func FromEnv() Config {
	return Config{
		Port:                    envInt("PORT"),
		APIKey:                  os.Getenv("JOB_INTEL_API_KEY"),
		Heartbeat:               envDuration("JOB_INTEL_HEARTBEAT"),
		AllowedOrigins:          envList("JOB_INTEL_ALLOWED_ORIGINS"),
		RateLimit:               envInt("JOB_INTEL_RATE_LIMIT"),
		RateWindow:              envDuration("JOB_INTEL_RATE_WINDOW"),
		FetchTimeout:            envDuration("JOB_FETCH_TIMEOUT"),
		ResearchTimeout:         envDuration("JOB_RESEARCH_TIMEOUT"),
		LLMTimeout:              envDuration("JOB_LLM_TIMEOUT"),
		PageCacheTTL:            envDuration("JOB_PAGE_CACHE_TTL"),
		PageCacheMaxEntries:     envInt("JOB_PAGE_CACHE_MAX_ENTRIES"),
		ResearchCacheTTL:        envDuration("JOB_RESEARCH_CACHE_TTL"),
		ResearchCacheMaxEntries: envInt("JOB_RESEARCH_CACHE_MAX_ENTRIES"),
		UserAgent:               os.Getenv("JOB_INTEL_USER_AGENT"),
		UseBrowser:              envBool("JOB_INTEL_USE_BROWSER"),
		GeminiAPIKey:            os.Getenv("GEMINI_API_KEY"),
		LLMModel:                os.Getenv("JOB_INTEL_LLM_MODEL"),
		SearchAPIKey:            os.Getenv("SEARCH_API_KEY"),
		SearchEngineID:          os.Getenv("SEARCH_ENGINE_ID"),
		SearchEndpoint:          os.Getenv("SEARCH_ENDPOINT"),
		ResumeLibrary:           os.Getenv("JOB_INTEL_RESUME_LIBRARY"),
	}
}

// Validate checks that the configuration has valid values.
func (c *Config) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("config error: 'port' must be between 0 and 65535")
	}
	for name, v := range map[string]int{
		"rate_limit":                 c.RateLimit,
		"page_cache_max_entries":     c.PageCacheMaxEntries,
		"research_cache_max_entries": c.ResearchCacheMaxEntries,
	} {
		if v < 0 {
			return fmt.Errorf("config error: '%s' must be non-negative", name)
		}
	}
	for name, d := range map[string]Duration{
		"heartbeat":          c.Heartbeat,
		"rate_window":        c.RateWindow,
		"fetch_timeout":      c.FetchTimeout,
		"research_timeout":   c.ResearchTimeout,
		"llm_timeout":        c.LLMTimeout,
		"page_cache_ttl":     c.PageCacheTTL,
		"research_cache_ttl": c.ResearchCacheTTL,
	} {
		if d < 0 {
			return fmt.Errorf("config error: '%s' must be non-negative", name)
		}
	}

	if c.SearchEndpoint != "" {
		u, err := url.Parse(c.SearchEndpoint)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("config error: 'search_endpoint' must be an HTTP or HTTPS URL")
		}
	}
	if c.ResumeLibrary != "" {
		if _, err := os.Stat(c.ResumeLibrary); os.IsNotExist(err) {
			return fmt.Errorf("config error: resume library not found: %s", c.ResumeLibrary)
		}
	}
	return nil
}

// SearchConfigured reports whether company research can run.
func (c *Config) SearchConfigured() bool {
	return c.SearchAPIKey != "" && c.SearchEngineID != ""
}

// MergeWithDefaults returns a copy of c with unset fields taken from
// defaults. Booleans cannot be told apart from false, so they are OR-ed.
func (c *Config) MergeWithDefaults(defaults Config) Config {
	result := *c

	mergeString(&result.APIKey, defaults.APIKey)
	mergeString(&result.UserAgent, defaults.UserAgent)
	mergeString(&result.GeminiAPIKey, defaults.GeminiAPIKey)
	mergeString(&result.LLMModel, defaults.LLMModel)
	mergeString(&result.SearchAPIKey, defaults.SearchAPIKey)
	mergeString(&result.SearchEngineID, defaults.SearchEngineID)
	mergeString(&result.SearchEndpoint, defaults.SearchEndpoint)
	mergeString(&result.ResumeLibrary, defaults.ResumeLibrary)

	mergeInt(&result.Port, defaults.Port)
	mergeInt(&result.RateLimit, defaults.RateLimit)
	mergeInt(&result.PageCacheMaxEntries, defaults.PageCacheMaxEntries)
	mergeInt(&result.ResearchCacheMaxEntries, defaults.ResearchCacheMaxEntries)

	mergeDuration(&result.Heartbeat, defaults.Heartbeat)
	mergeDuration(&result.RateWindow, defaults.RateWindow)
	mergeDuration(&result.FetchTimeout, defaults.FetchTimeout)
	mergeDuration(&result.ResearchTimeout, defaults.ResearchTimeout)
	mergeDuration(&result.LLMTimeout, defaults.LLMTimeout)
	mergeDuration(&result.PageCacheTTL, defaults.PageCacheTTL)
	mergeDuration(&result.ResearchCacheTTL, defaults.ResearchCacheTTL)

	if len(result.AllowedOrigins) == 0 {
		result.AllowedOrigins = defaults.AllowedOrigins
	}
	result.UseBrowser = result.UseBrowser || defaults.UseBrowser

	return result
}

func mergeString(dst *string, def string) {
	if *dst == "" {
		*dst = def
	}
}

func mergeInt(dst *int, def int) {
	if *dst == 0 {
		*dst = def
	}
}

func mergeDuration(dst *Duration, def Duration) {
	if *dst == 0 {
		*dst = def
	}
}

// parseDuration accepts Go duration syntax or a bare number of milliseconds.
func parseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Duration(ms) * time.Millisecond, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q", s)
	}
	return d, nil
}

func envInt(key string) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
			return n
		}
	}
	return 0
}

func envBool(key string) bool {
	b, _ := strconv.ParseBool(strings.TrimSpace(os.Getenv(key)))
	return b
}

func envDuration(key string) Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := parseDuration(value); err == nil {
			return Duration(d)
		}
	}
	return 0
}

func envList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
