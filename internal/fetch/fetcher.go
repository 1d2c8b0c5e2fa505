package fetch

import (
	"context"
	"net/http"
	"time"

	"github.com/jonathan/job-intel/internal/cache"
	"github.com/jonathan/job-intel/internal/logging"
)

// Defaults for the job page cache.
const (
	DefaultPageCacheTTL        = 2 * time.Hour
	DefaultPageCacheMaxEntries = 48
)

// FetcherConfig configures a DocumentFetcher.
type FetcherConfig struct {
	UserAgent string
	Client    *http.Client
	// UseBrowser enables the headless-browser fallback for pages whose plain
	// HTML carries less than MinContentLength of main text.
	UseBrowser bool
	Renderer   Renderer
}

// DocumentFetcher fetches pages and memoizes them by URL.
type DocumentFetcher struct {
	cache *cache.TTL[*Document]
	ttl   time.Duration
	opts  *Options

	useBrowser bool
	render     Renderer
}

// NewDocumentFetcher builds a fetcher backed by pages. A nil pages cache gets
// the default job page budget.
func NewDocumentFetcher(pages *cache.TTL[*Document], ttl time.Duration, cfg FetcherConfig) *DocumentFetcher {
	if pages == nil {
		pages = cache.New[*Document](
			cache.WithTTL(DefaultPageCacheTTL),
			cache.WithMaxEntries(DefaultPageCacheMaxEntries),
		)
	}
	render := cfg.Renderer
	if render == nil {
		render = BrowserRenderer(cfg.UserAgent)
	}
	return &DocumentFetcher{
		cache:      pages,
		ttl:        ttl,
		opts:       &Options{UserAgent: cfg.UserAgent, Client: cfg.Client},
		useBrowser: cfg.UseBrowser,
		render:     render,
	}
}

// Fetch returns the document at url, from cache when live. Concurrent
// fetches of the same URL share one request. Failures are not cached.
func (f *DocumentFetcher) Fetch(ctx context.Context, url string) (*Document, error) {
	return f.cache.Remember(ctx, url, func(ctx context.Context) (*Document, error) {
		return f.load(ctx, url)
	}, f.ttl)
}

// Cached reports whether url is held in the page cache.
func (f *DocumentFetcher) Cached(url string) bool {
	return f.cache.Has(url)
}

func (f *DocumentFetcher) load(ctx context.Context, url string) (*Document, error) {
	doc, err := Get(ctx, url, f.opts)
	if err != nil {
		return nil, err
	}
	if !f.useBrowser {
		return doc, nil
	}

	platform := DetectPlatform(doc.FinalURL)
	text, err := ExtractMainText(doc.HTML, ContentSelectors(platform), NoiseSelectors(platform)...)
	if err == nil && !ShouldUseBrowser(text) {
		return doc, nil
	}

	log := logging.C(ctx)
	rendered, err := f.render(ctx, doc.FinalURL)
	if err != nil {
		log.Warn().Err(err).Str("url", url).Msg("browser fallback failed, using static HTML")
		return doc, nil
	}
	return &Document{
		HTML:        rendered,
		FinalURL:    doc.FinalURL,
		ContentType: doc.ContentType,
		StatusCode:  doc.StatusCode,
	}, nil
}
