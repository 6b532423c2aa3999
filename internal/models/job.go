package models

import "time"

// JobState is the lifecycle state of a Job (Generation). Transitions are
// strictly forward: queued -> dispatched -> running -> complete, or ->
// failed from any non-terminal state. No rollbacks.
type JobState string

const (
	JobStateQueued     JobState = "queued"
	JobStateDispatched JobState = "dispatched"
	JobStateRunning    JobState = "running"
	JobStateComplete   JobState = "complete"
	JobStateFailed     JobState = "failed"
)

// IsTerminal reports whether the state is one of complete or failed.
func (s JobState) IsTerminal() bool {
	return s == JobStateComplete || s == JobStateFailed
}

// rank gives each non-terminal state an ordinal for forward-only validation.
var jobStateRank = map[JobState]int{
	JobStateQueued:     0,
	JobStateDispatched: 1,
	JobStateRunning:    2,
	JobStateComplete:   3,
	JobStateFailed:     3,
}

// CanTransition reports whether moving from s to next is a legal forward
// transition (failed is reachable from any non-terminal state).
func (s JobState) CanTransition(next JobState) bool {
	if s.IsTerminal() {
		return false
	}
	if next == JobStateFailed {
		return true
	}
	return jobStateRank[next] > jobStateRank[s]
}

// AdapterSpec names one adapter to splice into a job graph, with its strength.
type AdapterSpec struct {
	AdapterID string  `json:"adapter_id"`
	Strength  float64 `json:"strength"`
}

// ParameterBundle is the full set of generation parameters carried by a Job,
// immutable once the Job is created.
type ParameterBundle struct {
	Width       int           `json:"width"`
	Height      int           `json:"height"`
	Steps       int           `json:"steps"`
	Guidance    float64       `json:"guidance"`
	Sampler     string        `json:"sampler"`
	Scheduler   string        `json:"scheduler"`
	Seed        int64         `json:"seed"`
	SourceImage string        `json:"source_image,omitempty"`
	Denoise     float64       `json:"denoise,omitempty"`
	Adapters    []AdapterSpec `json:"adapters,omitempty"`
}

// Job (Generation) is the orchestrator's unit of dispatch: one image request
// routed to one node.
type Job struct {
	ID             string          `json:"id"`
	SessionID      string          `json:"session_id"`
	BatchID        string          `json:"batch_id,omitempty"`
	Stage          int             `json:"stage"`
	TaskClass      TaskClass       `json:"task_class"`
	Prompt         string          `json:"prompt"`
	NegativePrompt string          `json:"negative_prompt"`
	ModelFamily    Capability      `json:"model_family"`
	Params         ParameterBundle `json:"params"`

	State       JobState `json:"state"`
	NodeID      string   `json:"node_id,omitempty"`
	WorkerJobID string   `json:"worker_job_id,omitempty"`
	FailReason  string   `json:"fail_reason,omitempty"`

	ArtifactRef  string `json:"artifact_ref,omitempty"`
	ThumbnailRef string `json:"thumbnail_ref,omitempty"`
	FinalSeed    int64  `json:"final_seed,omitempty"`
	ObservedMS   int64  `json:"observed_ms,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// NewJob creates a new Job in state=queued with a fresh opaque id.
func NewJob(sessionID string, stage int, taskClass TaskClass, modelFamily Capability, prompt, negativePrompt string, params ParameterBundle) *Job {
	return &Job{
		ID:             NewGenerationID(),
		SessionID:      sessionID,
		Stage:          stage,
		TaskClass:      taskClass,
		Prompt:         prompt,
		NegativePrompt: negativePrompt,
		ModelFamily:    modelFamily,
		Params:         params,
		State:          JobStateQueued,
		CreatedAt:      time.Now(),
	}
}

// Transition moves the Job to next if the transition is legal, returning
// false (no mutation) otherwise. Callers must hold whatever lock guards the
// Job; Transition itself does no locking.
func (j *Job) Transition(next JobState) bool {
	if !j.State.CanTransition(next) {
		return false
	}
	j.State = next
	return true
}

// Clone returns a deep-enough copy of the Job safe to hand outside a lock.
func (j *Job) Clone() *Job {
	clone := *j
	clone.Params.Adapters = append([]AdapterSpec(nil), j.Params.Adapters...)
	return &clone
}
