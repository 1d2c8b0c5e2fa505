package streamclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/jonathan/job-intel/internal/logging"
	"github.com/jonathan/job-intel/internal/pipeline"
)

// ErrIncomplete is returned when the stream ends before a terminal event.
var ErrIncomplete = errors.New("stream ended before completion")

// StatusError is a request rejected before streaming began.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("job intel request failed (status %d): %s", e.StatusCode, e.Message)
}

// StreamError is the message of an error event.
type StreamError struct {
	Message string
}

func (e *StreamError) Error() string {
	return e.Message
}

// Handlers observe a stream as it is read. Nil handlers are skipped.
type Handlers struct {
	OnProgress  func(pipeline.ProgressEvent)
	OnHeartbeat func(ts int64)
}

// Outcome is everything a completed stream delivered.
type Outcome struct {
	Result   *pipeline.ResultPayload
	Progress []pipeline.ProgressEvent
	Text     map[Channel]string
}

// Client calls a job intelligence server.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the HTTP client. The client must not set a total
// timeout shorter than a run.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.http = c }
}

// WithAPIKey sends key as a bearer token.
func WithAPIKey(key string) Option {
	return func(cl *Client) { cl.apiKey = key }
}

// New returns a client for the server at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{baseURL: strings.TrimRight(baseURL, "/"), http: http.DefaultClient}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Stream starts a run and reads it to its terminal event. Cancelling ctx
// closes the connection, which cancels the run on the server.
func (c *Client) Stream(ctx context.Context, req pipeline.Request, h Handlers) (*Outcome, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/job-intel", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("job intel request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, statusError(resp)
	}
	return Consume(ctx, resp.Body, h)
}

func statusError(resp *http.Response) error {
	msg := fmt.Sprintf("Unable to generate the cover letter (status %d).", resp.StatusCode)
	var body struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&body); err == nil {
		if body.Error != "" {
			msg = body.Error
		} else if body.Message != "" {
			msg = body.Message
		}
	}
	return &StatusError{StatusCode: resp.StatusCode, Message: msg}
}

// Consume reads frames from r until complete or error.
func Consume(ctx context.Context, r io.Reader, h Handlers) (*Outcome, error) {
	log := logging.C(ctx)
	acc := NewAccumulator()
	out := &Outcome{}
	frames := NewReader(r)

	for {
		f, err := frames.Next()
		if errors.Is(err, io.EOF) {
			return nil, ErrIncomplete
		}
		if err != nil {
			return nil, fmt.Errorf("read stream: %w", err)
		}

		switch f.Event {
		case pipeline.EventProgress:
			var ev pipeline.ProgressEvent
			if err := json.Unmarshal(f.Data, &ev); err != nil {
				log.Debug().Err(err).Msg("skipping malformed progress frame")
				continue
			}
			out.Progress = append(out.Progress, ev)
			appendDeltas(acc, ev.Extra)
			if h.OnProgress != nil {
				h.OnProgress(ev)
			}

		case pipeline.EventHeartbeat:
			var hb struct {
				TS int64 `json:"ts"`
			}
			_ = json.Unmarshal(f.Data, &hb)
			if h.OnHeartbeat != nil {
				h.OnHeartbeat(hb.TS)
			}

		case pipeline.EventResult:
			var res pipeline.ResultPayload
			if err := json.Unmarshal(f.Data, &res); err != nil {
				return nil, fmt.Errorf("decode result: %w", err)
			}
			out.Result = &res
			applyResult(acc, &res)

		case pipeline.EventError:
			var payload pipeline.ErrorPayload
			if err := json.Unmarshal(f.Data, &payload); err != nil || payload.Message == "" {
				payload.Message = "Unable to generate the cover letter."
			}
			return nil, &StreamError{Message: payload.Message}

		case pipeline.EventComplete:
			if out.Result == nil {
				return nil, fmt.Errorf("complete event without result: %w", ErrIncomplete)
			}
			out.Text = acc.Finalize()
			return out, nil

		default:
			log.Debug().Str("event", f.Event).Msg("ignoring unknown event")
		}
	}
}

var deltaKeys = map[string]Channel{
	"coverLetterDelta":    CoverLetter,
	"companySummaryDelta": CompanySummary,
	"jobSnippetDelta":     JobSnippet,
}

func appendDeltas(acc *Accumulator, extra map[string]any) {
	for key, ch := range deltaKeys {
		if s, ok := extra[key].(string); ok {
			_ = acc.Append(ch, s)
		}
	}
}

func applyResult(acc *Accumulator, res *pipeline.ResultPayload) {
	_ = acc.Replace(CoverLetter, res.Data.CoverLetterMarkdown)
	if res.Meta.Job.Summary != "" {
		_ = acc.Replace(JobSnippet, res.Meta.Job.Summary)
	}
	if r := res.Meta.Research; r != nil && len(r.Pages) > 0 {
		var b strings.Builder
		if r.Domain != "" {
			fmt.Fprintf(&b, "%s\n", r.Domain)
		}
		for _, p := range r.Pages {
			fmt.Fprintf(&b, "- %s (%s)\n", p.Title, p.URL)
		}
		_ = acc.Replace(CompanySummary, b.String())
	}
}
