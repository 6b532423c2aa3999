// Package iteration is the Iteration Controller: it owns per-session stage
// state and the configuring -> generating -> reviewing -> (generating|done)
// funnel, and turns feedback actions into Preference Engine writes and
// follow-up generation requests.
package iteration

import (
	"context"
	"fmt"
	"sync"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/orchestrator/internal/genexec"
	"github.com/ternarybob/orchestrator/internal/interfaces"
	"github.com/ternarybob/orchestrator/internal/models"
)

const defaultMoreLikeThisDenoise = 0.4

// Controller is the Iteration Controller.
type Controller struct {
	mu       sync.RWMutex
	sessions map[string]*models.Session

	executor   *genexec.Executor
	preference interfaces.PreferenceEngine
	rewriter   interfaces.Rewriter
	aggregator interfaces.Aggregator
	logger     arbor.ILogger
}

// New creates a Controller.
func New(executor *genexec.Executor, preference interfaces.PreferenceEngine, rewriter interfaces.Rewriter, aggregator interfaces.Aggregator, logger arbor.ILogger) *Controller {
	return &Controller{
		sessions:   make(map[string]*models.Session),
		executor:   executor,
		preference: preference,
		rewriter:   rewriter,
		aggregator: aggregator,
		logger:     logger,
	}
}

// CreateSession creates a new session in the configuring stage.
func (c *Controller) CreateSession(flowKind string, initialConfig map[string]interface{}) *models.Session {
	session := models.NewSession(flowKind, initialConfig)
	c.mu.Lock()
	c.sessions[session.ID] = session
	c.mu.Unlock()
	return session.Clone()
}

// GetSession returns a clone of the named session, or ErrNotFound.
func (c *Controller) GetSession(sessionID string) (*models.Session, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.sessions[sessionID]
	if !ok {
		return nil, fmt.Errorf("session %s: %w", sessionID, models.ErrNotFound)
	}
	return s.Clone(), nil
}

// DeleteSession cancels any in-flight generations for sessionID and removes
// the session record. The Job Executor's generation records for the session
// are not removed; ListGenerations still returns them.
func (c *Controller) DeleteSession(sessionID string) error {
	c.mu.Lock()
	_, ok := c.sessions[sessionID]
	delete(c.sessions, sessionID)
	c.mu.Unlock()
	if !ok {
		return fmt.Errorf("session %s: %w", sessionID, models.ErrNotFound)
	}
	c.executor.CancelSession(sessionID)
	return nil
}

// ListGenerations proxies to the Job Executor, scoped to stage when stage >= 0.
func (c *Controller) ListGenerations(sessionID string, stage int) []*models.Job {
	return c.executor.ListGenerations(sessionID, stage)
}

// GetJob proxies to the Job Executor.
func (c *Controller) GetJob(jobID string) (*models.Job, error) {
	return c.executor.GetJob(jobID)
}

// GetBatch proxies to the Job Executor.
func (c *Controller) GetBatch(batchID string) (*models.Batch, error) {
	return c.executor.GetBatch(batchID)
}

// SubmitSingle transitions a session from configuring to generating and
// dispatches a single-image request through the Job Executor.
func (c *Controller) SubmitSingle(ctx context.Context, req genexec.SingleRequest) (*models.Job, error) {
	session := c.beginGenerating(req.SessionID, req.Stage)

	job, err := c.executor.SubmitSingle(ctx, req)
	if job != nil {
		go c.watchGenerationCompletion(session.ID, req.Stage, job.ID)
	}
	return job, err
}

// SubmitBatch transitions a session from configuring to generating and
// dispatches a batch request through the Job Executor.
func (c *Controller) SubmitBatch(ctx context.Context, req genexec.BatchRequest) (*models.Batch, error) {
	session := c.beginGenerating(req.SessionID, req.Stage)

	batch, err := c.executor.SubmitBatch(ctx, req)
	if batch != nil {
		go c.watchBatchCompletion(session.ID, req.Stage, batch.ID)
	}
	return batch, err
}

// beginGenerating records the session's current stage and moves it to
// generating. Session-existence is soft: an unknown session id is created
// lazily at stage 0 so callers may submit without a preceding CreateSession
// call, mirroring how the Job Executor itself requires no session record.
func (c *Controller) beginGenerating(sessionID string, stage int) *models.Session {
	c.mu.Lock()
	defer c.mu.Unlock()

	session, ok := c.sessions[sessionID]
	if !ok {
		session = models.NewSession("", nil)
		session.ID = sessionID
		c.sessions[sessionID] = session
	}
	session.CurrentStage = stage
	session.Status = models.SessionStatusGenerating
	return session.Clone()
}

// watchGenerationCompletion subscribes to the session's event stream and
// advances generating -> reviewing once the single dispatched generation
// reaches a terminal complete or error event.
func (c *Controller) watchGenerationCompletion(sessionID string, stage int, generationID string) {
	events, unsubscribe := c.aggregator.Subscribe(sessionID)
	defer unsubscribe()

	for ev := range events {
		if (ev.Kind == models.EventComplete || ev.Kind == models.EventError) && ev.GenerationID == generationID {
			c.advanceToReviewing(sessionID, stage)
			return
		}
	}
}

// watchBatchCompletion subscribes to the session's event stream and
// advances generating -> reviewing once the dispatched batch closes.
func (c *Controller) watchBatchCompletion(sessionID string, stage int, batchID string) {
	events, unsubscribe := c.aggregator.Subscribe(sessionID)
	defer unsubscribe()

	for ev := range events {
		if ev.Kind == models.EventBatchComplete && ev.BatchID == batchID {
			c.advanceToReviewing(sessionID, stage)
			return
		}
	}
}

func (c *Controller) advanceToReviewing(sessionID string, stage int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if session, ok := c.sessions[sessionID]; ok && session.CurrentStage == stage && session.Status == models.SessionStatusGenerating {
		session.Status = models.SessionStatusReviewing
	}
}
