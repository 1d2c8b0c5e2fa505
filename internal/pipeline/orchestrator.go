// Package pipeline runs the job intelligence flow for one request and
// reports every step to an Emitter.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jonathan/job-intel/internal/coverletter"
	"github.com/jonathan/job-intel/internal/fetch"
	"github.com/jonathan/job-intel/internal/logging"
	"github.com/jonathan/job-intel/internal/parsing"
	"github.com/jonathan/job-intel/internal/research"
	"github.com/jonathan/job-intel/internal/resumes"
	"github.com/jonathan/job-intel/internal/sanitize"
)

// Default step budgets.
const (
	DefaultFetchTimeout    = 20 * time.Second
	DefaultResearchTimeout = 15 * time.Second
	DefaultLLMTimeout      = 60 * time.Second
)

const (
	maxResearchSources = 5
	maxResumeHighlight = 3
	maxResumeSkills    = 12
	maxTopHighlights   = 5
	maxPrimaryMetrics  = 5
)

// Emitter receives the events of a run in order. Run never calls it
// concurrently.
type Emitter interface {
	Emit(event string, payload any) error
}

// EmitterFunc adapts a function to Emitter.
type EmitterFunc func(event string, payload any) error

// Emit calls f.
func (f EmitterFunc) Emit(event string, payload any) error {
	return f(event, payload)
}

// DocumentFetcher loads job postings.
type DocumentFetcher interface {
	Fetch(ctx context.Context, url string) (*fetch.Document, error)
}

// Researcher looks companies up.
type Researcher interface {
	Enabled() bool
	Cached(companyName string) (*research.Payload, bool)
	Research(ctx context.Context, companyName string) (*research.Payload, error)
}

// Generator turns a prompt into a cover letter.
type Generator interface {
	Invoke(ctx context.Context, prompt string, budget time.Duration) (coverletter.Result, error)
}

// Timeouts are the per-step budgets.
type Timeouts struct {
	Fetch    time.Duration
	Research time.Duration
	LLM      time.Duration
}

// DefaultTimeouts returns the stock budgets.
func DefaultTimeouts() Timeouts {
	return Timeouts{
		Fetch:    DefaultFetchTimeout,
		Research: DefaultResearchTimeout,
		LLM:      DefaultLLMTimeout,
	}
}

func (t Timeouts) withDefaults() Timeouts {
	d := DefaultTimeouts()
	if t.Fetch <= 0 {
		t.Fetch = d.Fetch
	}
	if t.Research <= 0 {
		t.Research = d.Research
	}
	if t.LLM <= 0 {
		t.LLM = d.LLM
	}
	return t
}

// Request is one pipeline invocation.
type Request struct {
	JobURL          string `json:"jobUrl"`
	ResumeID        string `json:"resumeId"`
	IncludeResearch bool   `json:"includeResearch"`
	Preferences     any    `json:"preferences,omitempty"`
	RunID           string `json:"runId,omitempty"`
}

// Orchestrator wires the steps together. Researcher and Generator may be
// nil: research is then skipped, and Validate rejects every request.
type Orchestrator struct {
	fetcher    DocumentFetcher
	researcher Researcher
	resumes    resumes.Store
	generator  Generator
	timeouts   Timeouts
}

// New builds an orchestrator.
func New(fetcher DocumentFetcher, researcher Researcher, store resumes.Store, generator Generator, timeouts Timeouts) *Orchestrator {
	return &Orchestrator{
		fetcher:    fetcher,
		researcher: researcher,
		resumes:    store,
		generator:  generator,
		timeouts:   timeouts.withDefaults(),
	}
}

// Validate checks req before any network call. It returns the résumé the
// run will use or a *ValidationError.
func (o *Orchestrator) Validate(req Request) (*resumes.Resume, error) {
	jobURL := strings.TrimSpace(req.JobURL)
	if jobURL == "" {
		return nil, invalid("jobUrl is required.")
	}
	u, err := url.Parse(jobURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, invalid("jobUrl must be a valid HTTP or HTTPS URL.")
	}
	if strings.TrimSpace(req.ResumeID) == "" {
		return nil, invalid("resumeId is required.")
	}
	resume, err := o.resumes.Get(req.ResumeID)
	if err != nil {
		return nil, &ValidationError{Status: http.StatusNotFound, Message: "Unknown resumeId provided."}
	}
	if o.generator == nil {
		return nil, &ValidationError{Status: http.StatusInternalServerError, Message: "LLM API key is not configured on the server."}
	}
	return resume, nil
}

// run carries the state of one invocation.
type run struct {
	ctx     context.Context
	emitter Emitter
	id      string
	closed  bool
}

// emit forwards to the emitter unless the caller is gone.
func (r *run) emit(event string, payload any) {
	if r.closed || r.ctx.Err() != nil {
		return
	}
	if err := r.emitter.Emit(event, payload); err != nil {
		r.closed = true
		logging.C(r.ctx).Debug().Err(err).Str("event", event).Msg("emit failed; dropping remaining events")
	}
}

func (r *run) progress(stage Stage, message string, extra map[string]any) {
	r.emit(EventProgress, ProgressEvent{Stage: stage, Message: sanitize.Text(message), Extra: extra})
}

// Run executes req and emits exactly one terminal event (result then
// complete, or error) unless ctx is cancelled first, in which case nothing
// further is emitted and ctx.Err() is returned.
func (o *Orchestrator) Run(ctx context.Context, req Request, emitter Emitter) error {
	if req.RunID == "" {
		req.RunID = uuid.NewString()
	}
	log := logging.C(ctx).With().Str("run_id", req.RunID).Logger()
	ctx = logging.WithLogger(ctx, &log)

	resume, err := o.Validate(req)
	if err != nil {
		return err
	}

	r := &run{ctx: ctx, emitter: emitter, id: req.RunID}
	payload, err := o.execute(r, req, resume)
	if ctxErr := ctx.Err(); ctxErr != nil {
		log.Info().Err(ctxErr).Msg("run cancelled by client")
		return ctxErr
	}
	if err != nil {
		log.Error().Err(err).Msg("run failed")
		message := sanitize.Text(err.Error())
		if message == "" {
			message = "An unexpected error occurred."
		}
		r.emit(EventError, ErrorPayload{Message: message})
		return err
	}

	r.emit(EventResult, payload)
	r.emit(EventComplete, CompletePayload{Status: "complete"})
	log.Info().Msg("run completed")
	return nil
}

func (o *Orchestrator) execute(r *run, req Request, resume *resumes.Resume) (*ResultPayload, error) {
	ctx := r.ctx
	r.progress(StageAccepted, "Request accepted for processing.", nil)

	doc, err := o.fetchJob(ctx, strings.TrimSpace(req.JobURL))
	if err != nil {
		return nil, err
	}
	r.progress(StageJobFetched, "Job posting retrieved successfully.", map[string]any{"url": doc.FinalURL})

	details, err := parsing.ExtractDetails(doc.HTML, doc.FinalURL)
	if err != nil {
		return nil, &UpstreamError{Step: StepFetch, Message: "Unable to read the job posting.", Cause: err}
	}
	r.progress(StageJobParsed, "Job description parsed.", map[string]any{
		"title":    details.Metadata.RoleTitle,
		"company":  details.Metadata.CompanyName,
		"location": details.Metadata.Location,
	})
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	payload, meta := o.research(r, req, details)
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	job := coverletter.Job{
		Title:     details.Metadata.RoleTitle,
		Company:   details.Metadata.CompanyName,
		Location:  details.Metadata.Location,
		Summary:   details.Summary,
		KeyPoints: details.BulletPoints,
		URL:       details.Metadata.SourceURL,
	}
	prompt := coverletter.BuildPrompt(coverletter.Input{
		Job:         job,
		Resume:      promptProfile(resume),
		Research:    coverletter.ResearchFromPayload(payload, maxResearchSources),
		Preferences: sanitize.Preferences(req.Preferences),
	})

	r.progress(StageDispatch, "Submitting structured prompt to the language model.", nil)
	result, err := o.generator.Invoke(ctx, prompt, o.timeouts.LLM)
	if err != nil {
		return nil, Classify(StepLLM, err)
	}

	return &ResultPayload{
		Status: "completed",
		Data:   result,
		Meta: ResultMeta{
			RunID:    r.id,
			Job:      job,
			Resume:   ResumeRef{ID: resume.ID, Name: resume.Name},
			Research: meta,
		},
	}, nil
}

func (o *Orchestrator) fetchJob(ctx context.Context, jobURL string) (*fetch.Document, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, o.timeouts.Fetch)
	defer cancel()
	doc, err := o.fetcher.Fetch(fetchCtx, jobURL)
	if err != nil {
		return nil, Classify(StepFetch, err)
	}
	return doc, nil
}

// research runs the optional research step. Failures are reported as
// progress and never abort the run.
func (o *Orchestrator) research(r *run, req Request, details *parsing.JobDetails) (*research.Payload, *ResearchMeta) {
	if !req.IncludeResearch {
		r.progress(StageResearchSkipped, "Company research disabled for this request.", nil)
		return nil, nil
	}
	company := parsing.CompanyForResearch(details)
	if company == "" {
		r.progress(StageResearchSkipped, "Unable to identify a company to research.", nil)
		return nil, nil
	}
	if o.researcher == nil || !o.researcher.Enabled() {
		r.progress(StageResearchSkipped, "Company research is not configured.", nil)
		return nil, nil
	}

	if cached, ok := o.researcher.Cached(company); ok {
		r.progress(StageResearchCacheHit, fmt.Sprintf("Using cached research for %s.", company), map[string]any{
			"domain": cached.Domain,
		})
		return cached, researchMeta(ResearchCached, cached)
	}

	r.progress(StageResearchLookup, fmt.Sprintf("Querying company research for %s.", company), nil)
	researchCtx, cancel := context.WithTimeout(r.ctx, o.timeouts.Research)
	defer cancel()
	payload, err := o.researcher.Research(researchCtx, company)
	if err != nil {
		if r.ctx.Err() != nil {
			return nil, nil
		}
		if errors.Is(err, research.ErrSearchNotConfigured) {
			r.progress(StageResearchSkipped, "Company research is not configured.", nil)
			return nil, nil
		}
		classified := Classify(StepResearch, err)
		logging.C(r.ctx).Warn().Err(err).Str("company", company).Msg("company research failed")
		r.progress(StageResearchFailed, "Company research failed: "+classified.Error(), nil)
		return nil, &ResearchMeta{Status: ResearchFailed, Pages: []research.Source{}}
	}

	r.progress(StageResearchComplete, fmt.Sprintf("Company research gathered for %s.", company), map[string]any{
		"domain":  payload.Domain,
		"sources": len(payload.Pages),
	})
	status := ResearchFetched
	if payload.Skipped() {
		status = ResearchSkipped
	}
	return payload, researchMeta(status, payload)
}

func researchMeta(status string, p *research.Payload) *ResearchMeta {
	return &ResearchMeta{Status: status, Domain: p.Domain, Pages: p.Sources(maxResearchSources)}
}

// promptProfile applies the payload caps to the résumé's derived profile.
func promptProfile(r *resumes.Resume) resumes.PromptProfile {
	highlights := sanitize.Strings(r.Highlights, maxResumeHighlight)
	skills := sanitize.Strings(r.Skills, maxResumeSkills)
	p := r.Profile
	return resumes.PromptProfile{
		ID:             r.ID,
		Name:           r.Name,
		Focus:          sanitize.Text(firstNonEmpty(p.Focus, r.Focus)),
		TopHighlights:  sanitize.Strings(orDefault(p.TopHighlights, highlights), maxTopHighlights),
		PrioritySkills: sanitize.Strings(orDefault(p.PrioritySkills, skills), maxResumeSkills),
		PrimaryMetrics: sanitize.Strings(orDefault(p.PrimaryMetrics, highlights), maxPrimaryMetrics),
	}
}

func orDefault(values, fallback []string) []string {
	if values != nil {
		return values
	}
	return fallback
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
