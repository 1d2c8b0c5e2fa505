package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/jonathan/job-intel/internal/logging"
	"github.com/jonathan/job-intel/internal/parsing"
	"github.com/jonathan/job-intel/internal/pipeline"
	"github.com/jonathan/job-intel/internal/sanitize"
)

var validate = validator.New()

// detailsQuery is the query of GET /api/job-intel/details.
type detailsQuery struct {
	URL string `validate:"required,http_url"`
}

// DetailsResponse is the body of GET /api/job-intel/details.
type DetailsResponse struct {
	Metadata     parsing.Metadata `json:"metadata"`
	Summary      string           `json:"summary"`
	BulletPoints []string         `json:"bulletPoints"`
}

// ResumeSummary is one entry of GET /api/resumes.
type ResumeSummary struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Focus string `json:"focus"`
}

// decodeJobIntelRequest reads the request body. Fields of the wrong type
// are treated as absent and includeResearch follows JSON truthiness.
func decodeJobIntelRequest(r *http.Request) (pipeline.Request, error) {
	var body map[string]any
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		return pipeline.Request{}, err
	}
	str := func(key string) string {
		s, _ := body[key].(string)
		return strings.TrimSpace(s)
	}
	return pipeline.Request{
		JobURL:          str("jobUrl"),
		ResumeID:        str("resumeId"),
		IncludeResearch: truthy(body["includeResearch"]),
		Preferences:     body["preferences"],
	}, nil
}

func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != ""
	case float64:
		return t != 0
	default:
		return true
	}
}

// handleJobIntel validates the request, then streams the run as
// Server-Sent Events.
func (s *Server) handleJobIntel(w http.ResponseWriter, r *http.Request) {
	log := logging.C(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	req, err := decodeJobIntelRequest(r)
	if err != nil {
		errorResponse(w, http.StatusBadRequest, "Invalid request body.")
		return
	}
	if s.deps.Pipeline == nil {
		errorResponse(w, http.StatusInternalServerError, "LLM API key is not configured on the server.")
		return
	}
	if _, err := s.deps.Pipeline.Validate(req); err != nil {
		errorResponse(w, HTTPStatus(err), sanitize.Text(err.Error()))
		return
	}

	sse, err := NewSSEWriter(w)
	if err != nil {
		errorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}
	stopHeartbeat := sse.StartHeartbeat(s.heartbeat)
	defer func() {
		stopHeartbeat()
		sse.Close()
	}()

	err = s.deps.Pipeline.Run(r.Context(), req, stopBeforeTerminal(sse, stopHeartbeat))
	switch {
	case err == nil:
		log.Info().Str("job_url", req.JobURL).Msg("job intel stream completed")
	case errors.Is(err, context.Canceled):
		log.Info().Str("job_url", req.JobURL).Msg("client closed job intel stream")
	default:
		log.Warn().Err(err).Str("job_url", req.JobURL).Msg("job intel stream ended with error")
	}
}

// handleJobIntelOptions answers bare OPTIONS requests. CORS preflights are
// answered by the cors middleware before they get here.
func (s *Server) handleJobIntelOptions(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Allow", "POST,OPTIONS")
	w.WriteHeader(http.StatusNoContent)
}

// handleJobDetails fetches one posting and returns its extracted details.
func (s *Server) handleJobDetails(w http.ResponseWriter, r *http.Request) {
	q := detailsQuery{URL: strings.TrimSpace(r.URL.Query().Get("url"))}
	if q.URL == "" {
		errorResponse(w, http.StatusBadRequest, "url query parameter is required.")
		return
	}
	if err := validate.Struct(q); err != nil {
		errorResponse(w, http.StatusBadRequest, "url must be a valid HTTP or HTTPS URL.")
		return
	}
	if s.deps.Fetcher == nil {
		errorResponse(w, http.StatusInternalServerError, "Job fetching is not configured.")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.deps.FetchTimeout)
	defer cancel()

	doc, err := s.deps.Fetcher.Fetch(ctx, q.URL)
	if err != nil {
		classified := pipeline.Classify(pipeline.StepFetch, err)
		logging.C(r.Context()).Warn().Err(err).Str("url", q.URL).Msg("job details fetch failed")
		errorResponse(w, HTTPStatus(classified), sanitize.Text(classified.Error()))
		return
	}

	pageURL := doc.FinalURL
	if pageURL == "" {
		pageURL = q.URL
	}
	details, err := parsing.ExtractDetails(doc.HTML, pageURL, parsing.WithSummarySentences(parsing.DetailSummarySentences))
	if err != nil {
		logging.C(r.Context()).Warn().Err(err).Str("url", q.URL).Msg("job details extraction failed")
		errorResponse(w, http.StatusBadGateway, "Unable to read the job posting.")
		return
	}

	bullets := details.BulletPoints
	if bullets == nil {
		bullets = []string{}
	}
	jsonResponse(w, http.StatusOK, DetailsResponse{
		Metadata:     details.Metadata,
		Summary:      details.Summary,
		BulletPoints: bullets,
	})
}

// handleListResumes lists the résumés a run may use.
func (s *Server) handleListResumes(w http.ResponseWriter, _ *http.Request) {
	out := []ResumeSummary{}
	if s.deps.Resumes != nil {
		for _, r := range s.deps.Resumes.List() {
			out = append(out, ResumeSummary{ID: r.ID, Name: r.Name, Focus: r.Focus})
		}
	}
	jsonResponse(w, http.StatusOK, map[string]any{"resumes": out})
}
