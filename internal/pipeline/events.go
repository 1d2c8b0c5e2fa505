package pipeline

import (
	"encoding/json"

	"github.com/jonathan/job-intel/internal/coverletter"
	"github.com/jonathan/job-intel/internal/research"
)

// Stream event names.
const (
	EventProgress  = "progress"
	EventResult    = "result"
	EventComplete  = "complete"
	EventError     = "error"
	EventHeartbeat = "heartbeat"
)

// Stage identifies a progress event.
type Stage string

const (
	StageAccepted         Stage = "accepted"
	StageJobFetched       Stage = "jobFetched"
	StageJobParsed        Stage = "jobParsed"
	StageResearchSkipped  Stage = "researchSkipped"
	StageResearchCacheHit Stage = "researchCacheHit"
	StageResearchLookup   Stage = "researchLookup"
	StageResearchComplete Stage = "researchComplete"
	StageResearchFailed   Stage = "researchFailed"
	// StageDispatch keeps its historical wire name.
	StageDispatch Stage = "openAiDispatch"
)

// ProgressEvent reports one step of a run. Extra fields are flattened into
// the JSON object next to stage and message.
type ProgressEvent struct {
	Stage   Stage
	Message string
	Extra   map[string]any
}

// MarshalJSON flattens Extra.
func (e ProgressEvent) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(e.Extra)+2)
	for k, v := range e.Extra {
		out[k] = v
	}
	out["stage"] = e.Stage
	out["message"] = e.Message
	return json.Marshal(out)
}

// UnmarshalJSON is the inverse of MarshalJSON.
func (e *ProgressEvent) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	stage, _ := raw["stage"].(string)
	message, _ := raw["message"].(string)
	delete(raw, "stage")
	delete(raw, "message")
	*e = ProgressEvent{Stage: Stage(stage), Message: message}
	if len(raw) > 0 {
		e.Extra = raw
	}
	return nil
}

// Research statuses reported in result meta.
const (
	ResearchFetched = "fetched"
	ResearchCached  = "cached"
	ResearchSkipped = "skipped"
	ResearchFailed  = "failed"
)

// ResultPayload is the data of the result event.
type ResultPayload struct {
	Status string             `json:"status"`
	Data   coverletter.Result `json:"data"`
	Meta   ResultMeta         `json:"meta"`
}

// ResultMeta describes what the letter was built from.
type ResultMeta struct {
	RunID    string          `json:"runId"`
	Job      coverletter.Job `json:"job"`
	Resume   ResumeRef       `json:"resume"`
	Research *ResearchMeta   `json:"research"`
}

// ResumeRef names the résumé used.
type ResumeRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ResearchMeta summarizes the research step.
type ResearchMeta struct {
	Status string            `json:"status"`
	Domain string            `json:"domain"`
	Pages  []research.Source `json:"pages"`
}

// CompletePayload is the data of the complete event.
type CompletePayload struct {
	Status string `json:"status"`
}

// ErrorPayload is the data of the error event.
type ErrorPayload struct {
	Message string `json:"message"`
}
