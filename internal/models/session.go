package models

import "time"

// SessionStatus is the Iteration Controller's stage-funnel state for a session.
type SessionStatus string

const (
	SessionStatusConfiguring SessionStatus = "configuring"
	SessionStatusGenerating  SessionStatus = "generating"
	SessionStatusReviewing   SessionStatus = "reviewing"
	SessionStatusDone        SessionStatus = "done"
)

// Session is a user-facing workflow run consisting of ordered stages with
// feedback between them. Generations are associated by session id and are
// never moved between sessions.
type Session struct {
	ID           string                 `json:"id"`
	FlowKind     string                 `json:"flow_kind"`
	CreatedAt    time.Time              `json:"created_at"`
	Status       SessionStatus          `json:"status"`
	CurrentStage int                    `json:"current_stage"`
	IntentDoc    map[string]interface{} `json:"intent_doc"`
	LastFeedback string                 `json:"last_feedback,omitempty"`
}

// NewSession creates a new Session at stage 0 in the configuring status.
func NewSession(flowKind string, initialConfig map[string]interface{}) *Session {
	doc := initialConfig
	if doc == nil {
		doc = make(map[string]interface{})
	}
	return &Session{
		ID:           NewSessionID(),
		FlowKind:     flowKind,
		CreatedAt:    time.Now(),
		Status:       SessionStatusConfiguring,
		CurrentStage: 0,
		IntentDoc:    doc,
	}
}

// Clone returns a deep-enough copy of the Session safe to hand outside a lock.
func (s *Session) Clone() *Session {
	clone := *s
	clone.IntentDoc = make(map[string]interface{}, len(s.IntentDoc))
	for k, v := range s.IntentDoc {
		clone.IntentDoc[k] = v
	}
	return &clone
}
