package research

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jonathan/job-intel/internal/cache"
	"github.com/jonathan/job-intel/internal/fetch"
	"github.com/jonathan/job-intel/internal/logging"
	"github.com/jonathan/job-intel/internal/parsing"
	"github.com/jonathan/job-intel/internal/sanitize"
)

// Defaults for the research cache.
const (
	DefaultCacheTTL        = 6 * time.Hour
	DefaultCacheMaxEntries = 120
)

const (
	searchResultCount = 10
	maxPages          = 5
	pageConcurrency   = 3
)

// errNoOfficialSite stops the producer without caching an empty payload.
var errNoOfficialSite = errors.New("no official site identified")

// Query builds the search query for companyName.
func Query(companyName string) string {
	return companyName + " company (about OR values OR mission OR products)"
}

// Config configures an Aggregator.
type Config struct {
	UserAgent string
	Client    *http.Client
	TTL       time.Duration
}

// Aggregator researches companies and memoizes the results by lower-cased
// company name.
type Aggregator struct {
	searcher Searcher
	cache    *cache.TTL[*Payload]
	ttl      time.Duration
	opts     *fetch.Options
}

// NewAggregator builds an aggregator. A nil searcher makes every lookup
// return ErrSearchNotConfigured. A nil store gets the default budget.
func NewAggregator(searcher Searcher, store *cache.TTL[*Payload], cfg Config) *Aggregator {
	if store == nil {
		store = cache.New[*Payload](
			cache.WithTTL(DefaultCacheTTL),
			cache.WithMaxEntries(DefaultCacheMaxEntries),
		)
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &Aggregator{
		searcher: searcher,
		cache:    store,
		ttl:      ttl,
		opts:     &fetch.Options{UserAgent: cfg.UserAgent, Client: cfg.Client},
	}
}

// Enabled reports whether a searcher is configured.
func (a *Aggregator) Enabled() bool {
	return a.searcher != nil
}

func cacheKey(companyName string) string {
	return strings.ToLower(strings.TrimSpace(companyName))
}

// Cached returns the live cached payload for companyName, if any.
func (a *Aggregator) Cached(companyName string) (*Payload, bool) {
	return a.cache.Get(cacheKey(companyName))
}

// Research returns facts about companyName. When no official site can be
// identified the payload has nil Facts and is not cached.
func (a *Aggregator) Research(ctx context.Context, companyName string) (*Payload, error) {
	if a.searcher == nil {
		return nil, ErrSearchNotConfigured
	}
	companyName = strings.TrimSpace(companyName)
	if companyName == "" {
		return nil, fmt.Errorf("company name is required")
	}

	p, err := a.cache.Remember(ctx, cacheKey(companyName), func(ctx context.Context) (*Payload, error) {
		return a.gather(ctx, companyName)
	}, a.ttl)
	if errors.Is(err, errNoOfficialSite) {
		return &Payload{CompanyName: companyName, Pages: []Page{}}, nil
	}
	return p, err
}

func (a *Aggregator) gather(ctx context.Context, companyName string) (*Payload, error) {
	log := logging.C(ctx).With().Str("company", companyName).Logger()

	results, err := a.searcher.Search(ctx, Query(companyName), searchResultCount)
	if err != nil {
		return nil, err
	}

	domain := OfficialDomain(results)
	if domain == "" {
		log.Debug().Int("results", len(results)).Msg("no official site in search results")
		return nil, errNoOfficialSite
	}

	pages := a.fetchPages(ctx, OnDomain(results, domain, maxPages))
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	log.Debug().Str("domain", domain).Int("pages", len(pages)).Msg("company research gathered")

	return &Payload{
		CompanyName: companyName,
		Domain:      domain,
		Pages:       pages,
		Facts:       Summarize(pages),
	}, nil
}

// fetchPages loads targets concurrently and keeps the readable ones in
// search rank order. Individual failures are skipped.
func (a *Aggregator) fetchPages(ctx context.Context, targets []SearchResult) []Page {
	slots := make([]*Page, len(targets))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(pageConcurrency)
	for i, target := range targets {
		g.Go(func() error {
			slots[i] = a.fetchPage(gctx, target)
			return nil
		})
	}
	_ = g.Wait()

	pages := make([]Page, 0, len(targets))
	for _, p := range slots {
		if p != nil {
			pages = append(pages, *p)
		}
	}
	return pages
}

func (a *Aggregator) fetchPage(ctx context.Context, target SearchResult) *Page {
	doc, err := fetch.Get(ctx, target.URL, a.opts)
	if err != nil {
		logging.C(ctx).Debug().Err(err).Str("url", target.URL).Msg("skipping research page")
		return nil
	}
	article, err := parsing.ReadArticle(doc.HTML, target.URL)
	if err != nil || article.TextContent == "" {
		return nil
	}
	title := article.Title
	if title == "" {
		title = sanitize.Text(target.Title)
	}
	return &Page{URL: target.URL, Title: title, TextContent: article.TextContent}
}
