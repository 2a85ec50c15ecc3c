package api

import (
	"pipcast/internal/pipeline"
	"pipcast/internal/progress"
)

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// JobStatus is the lifecycle state of an asynchronous render.
type JobStatus string

const (
	JobQueued    JobStatus = "queued"
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobPartial   JobStatus = "partial"
	JobFailed    JobStatus = "failed"
	JobCanceled  JobStatus = "canceled"
)

// Finished reports whether the job will not change again.
func (s JobStatus) Finished() bool {
	switch s {
	case JobCompleted, JobPartial, JobFailed, JobCanceled:
		return true
	}
	return false
}

// Job describes an asynchronous render in a transport-friendly format.
type Job struct {
	ID        string          `json:"id"`
	Status    JobStatus       `json:"status"`
	CreatedAt string          `json:"createdAt"`
	UpdatedAt string          `json:"updatedAt"`
	Progress  *progress.Event `json:"progress,omitempty"`
	Result    *RenderResult   `json:"result,omitempty"`
	Error     string          `json:"error,omitempty"`
}

// JobListResponse wraps the retained jobs, newest first.
type JobListResponse struct {
	Jobs []Job `json:"jobs"`
}

// SubmitResponse acknowledges an asynchronous render.
type SubmitResponse struct {
	ID     string    `json:"id"`
	Status JobStatus `json:"status"`
}

// RenderOutput is one produced file.
type RenderOutput struct {
	Profile   string  `json:"profile"`
	File      string  `json:"file"`
	URL       string  `json:"url"`
	Backend   string  `json:"backend"`
	FellBack  bool    `json:"fellBack,omitempty"`
	Attempts  int     `json:"attempts"`
	ElapsedMS int64   `json:"elapsedMs"`
	SizeBytes int64   `json:"sizeBytes,omitempty"`
	Duration  float64 `json:"duration"`
}

// RenderFailure names a rendition that produced no file.
type RenderFailure struct {
	Profile string `json:"profile"`
	Class   string `json:"class"`
	Error   string `json:"error"`
}

// RenderResult is the JSON body of a finished render.
type RenderResult struct {
	InvocationID     string          `json:"invocationId"`
	Duration         float64         `json:"duration"`
	DurationFallback []string        `json:"durationFallback,omitempty"`
	Backend          string          `json:"backend,omitempty"`
	BackendReason    string          `json:"backendReason,omitempty"`
	Outputs          []RenderOutput  `json:"outputs"`
	Failures         []RenderFailure `json:"failures,omitempty"`
}

// LayerInfo is one catalog layer.
type LayerInfo struct {
	Role         string  `json:"role"`
	Width        int     `json:"width"`
	Height       int     `json:"height"`
	X            int     `json:"x"`
	Y            int     `json:"y"`
	RadiusTop    int     `json:"radiusTop,omitempty"`
	RadiusBottom int     `json:"radiusBottom,omitempty"`
	Opacity      float64 `json:"opacity"`
	Z            int     `json:"z"`
	Shadow       bool    `json:"shadow,omitempty"`
	Border       int     `json:"border,omitempty"`
	Host         string  `json:"host,omitempty"`
}

// ProfileInfo is one output profile.
type ProfileInfo struct {
	Name   string      `json:"name"`
	Label  string      `json:"label"`
	Width  int         `json:"width"`
	Height int         `json:"height"`
	Layers []LayerInfo `json:"layers"`
}

// ProfileListResponse wraps the profile catalog.
type ProfileListResponse struct {
	Profiles []ProfileInfo `json:"profiles"`
}

// CheckStatus mirrors a preflight result.
type CheckStatus struct {
	Name     string `json:"name"`
	Passed   bool   `json:"passed"`
	Optional bool   `json:"optional,omitempty"`
	Detail   string `json:"detail,omitempty"`
}

// DaemonStatus aggregates daemon runtime information for API consumers.
type DaemonStatus struct {
	Running       bool           `json:"running"`
	PID           int            `json:"pid"`
	LockFilePath  string         `json:"lockFilePath"`
	ActiveRenders int            `json:"activeRenders"`
	MaxConcurrent int            `json:"maxConcurrent"`
	Jobs          map[string]int `json:"jobs"`
	Checks        []CheckStatus  `json:"checks"`
}

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Error string `json:"error"`
	Class string `json:"class,omitempty"`
}

// jobStatusFor maps a finished pipeline invocation to a job state.
func jobStatusFor(result pipeline.Result, err error, canceled bool) JobStatus {
	switch {
	case canceled:
		return JobCanceled
	case err != nil:
		return JobFailed
	case len(result.Failures) == 0:
		return JobCompleted
	case len(result.Outputs) > 0:
		return JobPartial
	default:
		return JobFailed
	}
}

// StreamType tags a websocket message.
type StreamType string

const (
	StreamProgress StreamType = "progress"
	StreamJob      StreamType = "job"
)

// StreamMessage is one websocket frame on a job event stream: either a
// progress record or the job snapshot sent before the stream closes.
type StreamMessage struct {
	Type  StreamType      `json:"type"`
	Event *progress.Event `json:"event,omitempty"`
	Job   *Job            `json:"job,omitempty"`
}
