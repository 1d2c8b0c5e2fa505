package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/jonathan/job-intel/internal/cache"
	"github.com/jonathan/job-intel/internal/config"
	"github.com/jonathan/job-intel/internal/coverletter"
	"github.com/jonathan/job-intel/internal/fetch"
	"github.com/jonathan/job-intel/internal/llm"
	"github.com/jonathan/job-intel/internal/logging"
	"github.com/jonathan/job-intel/internal/pipeline"
	"github.com/jonathan/job-intel/internal/research"
	"github.com/jonathan/job-intel/internal/resumes"
)

// app holds the wired collaborators of one process.
type app struct {
	fetcher      *fetch.DocumentFetcher
	researcher   *research.Aggregator
	resumes      *resumes.Library
	orchestrator *pipeline.Orchestrator
	llmClient    llm.Client
}

func (a *app) Close() {
	if a.llmClient != nil {
		if err := a.llmClient.Close(); err != nil {
			logging.Get().Warn().Err(err).Msg("closing LLM client")
		}
	}
}

// outboundClient is shared by job page and research page fetches. Its
// ceiling is the longest stage budget that issues page requests.
func outboundClient(c config.Config) *http.Client {
	return fetch.NewHTTPClient(max(c.FetchTimeout.Std(), c.ResearchTimeout.Std()))
}

func newFetcher(c config.Config, client *http.Client) *fetch.DocumentFetcher {
	pages := cache.New[*fetch.Document](
		cache.WithTTL(c.PageCacheTTL.Std()),
		cache.WithMaxEntries(c.PageCacheMaxEntries),
	)
	return fetch.NewDocumentFetcher(pages, c.PageCacheTTL.Std(), fetch.FetcherConfig{
		UserAgent:  c.UserAgent,
		Client:     client,
		UseBrowser: c.UseBrowser,
	})
}

// newResearcher returns an aggregator. Without search credentials it is
// disabled and runs report research as not configured.
func newResearcher(ctx context.Context, c config.Config, client *http.Client) (*research.Aggregator, error) {
	store := cache.New[*research.Payload](
		cache.WithTTL(c.ResearchCacheTTL.Std()),
		cache.WithMaxEntries(c.ResearchCacheMaxEntries),
	)
	rc := research.Config{UserAgent: c.UserAgent, Client: client, TTL: c.ResearchCacheTTL.Std()}

	searcher, err := research.NewCustomSearch(ctx, c.SearchAPIKey, c.SearchEngineID, c.SearchEndpoint)
	if errors.Is(err, research.ErrSearchNotConfigured) {
		logging.C(ctx).Info().Msg("company research disabled: search is not configured")
		return research.NewAggregator(nil, store, rc), nil
	}
	if err != nil {
		return nil, err
	}
	return research.NewAggregator(searcher, store, rc), nil
}

// newLLM returns a client, or nil without error when no key is set.
func newLLM(ctx context.Context, c config.Config) (llm.Client, error) {
	lc := llm.DefaultConfig()
	if c.LLMModel != "" {
		lc = lc.WithModel(llm.TierStandard, c.LLMModel)
	}
	client, err := llm.NewClient(ctx, lc, c.GeminiAPIKey)
	if errors.Is(err, llm.ErrNotConfigured) {
		logging.C(ctx).Warn().Msg("GEMINI_API_KEY is not set; cover letter runs will be rejected")
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create LLM client: %w", err)
	}
	return client, nil
}

func newApp(ctx context.Context, c config.Config) (*app, error) {
	lib, err := resumes.Load(c.ResumeLibrary)
	if err != nil {
		return nil, err
	}
	client := outboundClient(c)
	researcher, err := newResearcher(ctx, c, client)
	if err != nil {
		return nil, err
	}
	llmClient, err := newLLM(ctx, c)
	if err != nil {
		return nil, err
	}

	a := &app{
		fetcher:    newFetcher(c, client),
		researcher: researcher,
		resumes:    lib,
		llmClient:  llmClient,
	}

	var generator pipeline.Generator
	if llmClient != nil {
		inv, err := coverletter.NewInvoker(llmClient)
		if err != nil {
			a.Close()
			return nil, err
		}
		generator = inv
	}

	a.orchestrator = pipeline.New(a.fetcher, a.researcher, lib, generator, pipeline.Timeouts{
		Fetch:    c.FetchTimeout.Std(),
		Research: c.ResearchTimeout.Std(),
		LLM:      c.LLMTimeout.Std(),
	})
	return a, nil
}
