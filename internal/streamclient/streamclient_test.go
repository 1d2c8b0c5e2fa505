package streamclient

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/job-intel/internal/pipeline"
)

func TestReader_Frames(t *testing.T) {
	stream := ": comment\n" +
		"event: progress\ndata: {\"stage\":\"accepted\"}\n\n" +
		"\n" +
		"event: result\r\ndata: {\"a\":1,\r\ndata: \"b\":2}\r\n\r\n" +
		"data: plain\n\n" +
		"event: complete\ndata: {}"

	r := NewReader(strings.NewReader(stream))

	f, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, "progress", f.Event)
	assert.JSONEq(t, `{"stage":"accepted"}`, string(f.Data))

	f, err = r.Next()
	require.NoError(t, err)
	assert.Equal(t, "result", f.Event)
	assert.JSONEq(t, `{"a":1,"b":2}`, string(f.Data))

	f, err = r.Next()
	require.NoError(t, err)
	assert.Equal(t, "message", f.Event)
	assert.Equal(t, "plain", string(f.Data))

	f, err = r.Next()
	require.NoError(t, err)
	assert.Equal(t, "complete", f.Event)

	_, err = r.Next()
	assert.ErrorIs(t, err, io.EOF)
}

func TestAccumulator_AppendFinalize(t *testing.T) {
	acc := NewAccumulator()
	require.NoError(t, acc.Append(CoverLetter, "Dear "))
	require.NoError(t, acc.Append(CoverLetter, "Acme, "))
	require.NoError(t, acc.Append(JobSnippet, "Staff role"))
	assert.Equal(t, "Dear Acme, ", acc.Text(CoverLetter))
	assert.Empty(t, acc.Text(CompanySummary))

	require.NoError(t, acc.Replace(JobSnippet, "Platform role"))

	got := acc.Finalize()
	assert.Equal(t, map[Channel]string{CoverLetter: "Dear Acme,", JobSnippet: "Platform role"}, got)

	assert.ErrorIs(t, acc.Append(CoverLetter, "more"), ErrFinalized)
	assert.ErrorIs(t, acc.Replace(CoverLetter, "more"), ErrFinalized)
	assert.Equal(t, got, acc.Finalize())
}

func TestAccumulator_Concurrent(t *testing.T) {
	acc := NewAccumulator()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = acc.Append(CoverLetter, "x")
		}()
	}
	wg.Wait()
	assert.Len(t, acc.Text(CoverLetter), 50)
}

func sseFrame(t *testing.T, event string, payload any) string {
	t.Helper()
	b, err := json.Marshal(payload)
	require.NoError(t, err)
	return fmt.Sprintf("event: %s\ndata: %s\n\n", event, b)
}

func completedStream(t *testing.T) string {
	result := pipeline.ResultPayload{Status: "completed"}
	result.Data.CoverLetterMarkdown = "Dear Acme,\n\nHello."
	result.Meta.Job.Summary = "Lead the platform team."
	result.Meta.Research = &pipeline.ResearchMeta{Status: pipeline.ResearchFetched, Domain: "acme.example"}
	return sseFrame(t, "progress", pipeline.ProgressEvent{Stage: pipeline.StageAccepted, Message: "Request accepted for processing."}) +
		sseFrame(t, "heartbeat", map[string]int64{"ts": 42}) +
		sseFrame(t, "progress", pipeline.ProgressEvent{Stage: pipeline.StageJobParsed, Message: "parsed", Extra: map[string]any{"coverLetterDelta": "draft"}}) +
		sseFrame(t, "result", result) +
		sseFrame(t, "complete", pipeline.CompletePayload{Status: "complete"})
}

func TestConsume_Completed(t *testing.T) {
	var stages []pipeline.Stage
	var beats []int64
	out, err := Consume(t.Context(), strings.NewReader(completedStream(t)), Handlers{
		OnProgress:  func(ev pipeline.ProgressEvent) { stages = append(stages, ev.Stage) },
		OnHeartbeat: func(ts int64) { beats = append(beats, ts) },
	})
	require.NoError(t, err)

	assert.Equal(t, []pipeline.Stage{pipeline.StageAccepted, pipeline.StageJobParsed}, stages)
	assert.Equal(t, []int64{42}, beats)
	require.NotNil(t, out.Result)
	assert.Equal(t, "completed", out.Result.Status)
	assert.Equal(t, "Dear Acme,\n\nHello.", out.Text[CoverLetter])
	assert.Equal(t, "Lead the platform team.", out.Text[JobSnippet])
	assert.Len(t, out.Progress, 2)
}

func TestConsume_ErrorEvent(t *testing.T) {
	stream := sseFrame(t, "progress", pipeline.ProgressEvent{Stage: pipeline.StageAccepted}) +
		sseFrame(t, "error", pipeline.ErrorPayload{Message: "Fetching the job posting took too long."})

	_, err := Consume(t.Context(), strings.NewReader(stream), Handlers{})
	var se *StreamError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "Fetching the job posting took too long.", se.Message)
}

func TestConsume_Truncated(t *testing.T) {
	stream := sseFrame(t, "progress", pipeline.ProgressEvent{Stage: pipeline.StageAccepted})
	_, err := Consume(t.Context(), strings.NewReader(stream), Handlers{})
	assert.ErrorIs(t, err, ErrIncomplete)

	_, err = Consume(t.Context(), strings.NewReader(sseFrame(t, "complete", pipeline.CompletePayload{Status: "complete"})), Handlers{})
	assert.ErrorIs(t, err, ErrIncomplete)
}

func TestClient_Stream(t *testing.T) {
	stream := completedStream(t)
	var got pipeline.Request
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/job-intel", r.URL.Path)
		assert.Equal(t, "Bearer s3cret", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = io.WriteString(w, stream)
	}))
	defer srv.Close()

	c := New(srv.URL+"/", WithAPIKey("s3cret"), WithHTTPClient(srv.Client()))
	out, err := c.Stream(t.Context(), pipeline.Request{JobURL: "https://acme.example/1", ResumeID: "data-analyst-cv", IncludeResearch: true}, Handlers{})
	require.NoError(t, err)
	assert.Equal(t, "Dear Acme,\n\nHello.", out.Text[CoverLetter])
	assert.Equal(t, "https://acme.example/1", got.JobURL)
	assert.True(t, got.IncludeResearch)
}

func TestClient_StatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"error":"Unknown resumeId provided."}`)
	}))
	defer srv.Close()

	_, err := New(srv.URL).Stream(t.Context(), pipeline.Request{JobURL: "https://acme.example/1", ResumeID: "nope"}, Handlers{})
	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusNotFound, se.StatusCode)
	assert.Equal(t, "Unknown resumeId provided.", se.Message)
}
