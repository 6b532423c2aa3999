package interfaces

import "github.com/ternarybob/orchestrator/internal/models"

// Aggregator multiplexes upstream worker events into normalized, per-session
// downstream events, and tracks the worker-job-id -> (job-id, session-id)
// correlation table.
type Aggregator interface {
	// RegisterCorrelation inserts a new worker-job-id -> (job, session)
	// mapping, called by the Job Executor on dispatch.
	RegisterCorrelation(workerJobID, jobID, sessionID string)

	// RemoveCorrelation deletes a worker-job-id's correlation entry, called
	// once the job it identifies reaches a terminal state.
	RemoveCorrelation(workerJobID string)

	// Publish delivers a normalized event to every subscriber of the event's
	// owning session. A progress event that arrives at a full subscriber
	// channel is dropped for that subscriber; complete/error events
	// displace a buffered event instead and are never dropped.
	Publish(sessionID string, event models.Event)

	// Subscribe returns a channel of normalized events for sessionID and an
	// unsubscribe function. The channel is bounded.
	Subscribe(sessionID string) (events <-chan models.Event, unsubscribe func())
}
