package iteration

import (
	"context"
	"fmt"

	"github.com/ternarybob/orchestrator/internal/genexec"
	"github.com/ternarybob/orchestrator/internal/models"
)

// FeedbackAction enumerates the feedback actions the controller accepts
// from a session in the reviewing stage.
type FeedbackAction string

const (
	FeedbackSelect       FeedbackAction = "select"
	FeedbackRejectAll    FeedbackAction = "reject-all"
	FeedbackMoreLikeThis FeedbackAction = "more-like-this"
	FeedbackAdvance      FeedbackAction = "advance"
)

// IterateRequest is the input to Iterate.
type IterateRequest struct {
	SessionID            string
	Stage                int
	Action               FeedbackAction
	SelectedIDs          []string
	RejectedIDs          []string
	FeedbackText         string
	ParameterAdjustments map[string]interface{}
}

// IterateResult is the controller's response: the next-stage plan (for
// select/advance) or a bare acknowledgement (for reject-all).
type IterateResult struct {
	Recorded  bool
	Prompt    string
	Negative  string
	Rationale string
}

// Iterate dispatches a feedback action. select and reject-all record
// Preference Engine events without advancing the stage; more-like-this
// additionally emits a new batch request against the selected image;
// advance moves a reviewing session to generating for the next stage.
func (c *Controller) Iterate(ctx context.Context, req IterateRequest) (IterateResult, error) {
	switch req.Action {
	case FeedbackSelect:
		return c.handleSelect(ctx, req)
	case FeedbackRejectAll:
		return c.handleRejectAll(req)
	case FeedbackMoreLikeThis:
		return c.handleMoreLikeThis(ctx, req)
	case FeedbackAdvance:
		return c.handleAdvance(req)
	default:
		return IterateResult{}, fmt.Errorf("unknown feedback action %q: %w", req.Action, models.ErrNotFound)
	}
}

// handleSelect records each selected generation as action=selected and asks
// the rewriter to propose the next stage's prompt pair, using the first
// selected generation as the representative prompt/model/adapters.
func (c *Controller) handleSelect(ctx context.Context, req IterateRequest) (IterateResult, error) {
	jobs, err := c.resolveJobs(req.SelectedIDs)
	if err != nil {
		return IterateResult{}, err
	}
	for _, job := range jobs {
		c.preference.Record(job.Prompt, string(job.ModelFamily), adapterIDs(job), models.ActionSelected, job.Stage, req.SessionID, req.FeedbackText)
	}

	if len(jobs) == 0 {
		return IterateResult{Recorded: true, Rationale: "no generations selected"}, nil
	}

	representative := jobs[0]
	prompt, negative, rationale, err := c.rewriter.Rewrite(ctx, representative.Prompt, representative.NegativePrompt)
	if err != nil {
		return IterateResult{}, fmt.Errorf("rewrite prompt: %w", err)
	}

	c.setLastFeedback(req.SessionID, req.FeedbackText)
	return IterateResult{Recorded: true, Prompt: prompt, Negative: negative, Rationale: rationale}, nil
}

// handleRejectAll records every rejected generation as action=rejected and
// leaves the session in the reviewing stage.
func (c *Controller) handleRejectAll(req IterateRequest) (IterateResult, error) {
	session, err := c.GetSession(req.SessionID)
	if err != nil {
		return IterateResult{}, err
	}
	if session.Status != models.SessionStatusReviewing {
		return IterateResult{}, fmt.Errorf("session %s is not reviewing: %w", req.SessionID, models.ErrInvalidState)
	}

	jobs, err := c.resolveJobs(req.RejectedIDs)
	if err != nil {
		return IterateResult{}, err
	}
	for _, job := range jobs {
		c.preference.Record(job.Prompt, string(job.ModelFamily), adapterIDs(job), models.ActionRejected, job.Stage, req.SessionID, req.FeedbackText)
	}

	c.setLastFeedback(req.SessionID, req.FeedbackText)
	return IterateResult{Recorded: true, Rationale: "all rejected; prior stage inputs remain available"}, nil
}

// handleMoreLikeThis emits a batch request using the selected generation's
// artifact as an image-to-image source at a low denoise strength.
func (c *Controller) handleMoreLikeThis(ctx context.Context, req IterateRequest) (IterateResult, error) {
	jobs, err := c.resolveJobs(req.SelectedIDs)
	if err != nil {
		return IterateResult{}, err
	}
	if len(jobs) == 0 {
		return IterateResult{}, fmt.Errorf("more-like-this requires a selected generation: %w", models.ErrNotFound)
	}
	source := jobs[0]

	total := 4
	if v, ok := req.ParameterAdjustments["total"].(float64); ok && v > 0 {
		total = int(v)
	}

	params := source.Params
	params.SourceImage = source.ArtifactRef
	params.Denoise = defaultMoreLikeThisDenoise

	batch, err := c.SubmitBatch(ctx, genexec.BatchRequest{
		SessionID: req.SessionID, Stage: source.Stage, TaskClass: source.TaskClass,
		ModelFamily: source.ModelFamily, Prompt: source.Prompt, NegativePrompt: source.NegativePrompt,
		Params: params, Total: total, SeedStart: params.Seed + 1,
	})
	if err != nil {
		return IterateResult{}, err
	}

	return IterateResult{Recorded: true, Rationale: fmt.Sprintf("submitted batch %s as variations of %s", batch.ID, source.ID)}, nil
}

// handleAdvance moves a reviewing session to generating for the next stage,
// applying any requested parameter adjustments (left to the caller's next
// generation request; the controller only records the stage transition).
func (c *Controller) handleAdvance(req IterateRequest) (IterateResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	session, ok := c.sessions[req.SessionID]
	if !ok {
		return IterateResult{}, fmt.Errorf("session %s: %w", req.SessionID, models.ErrNotFound)
	}
	if session.Status != models.SessionStatusReviewing {
		return IterateResult{}, fmt.Errorf("session %s is not reviewing: %w", req.SessionID, models.ErrInvalidState)
	}

	session.CurrentStage++
	if final, _ := req.ParameterAdjustments["final"].(bool); final {
		session.Status = models.SessionStatusDone
		return IterateResult{Recorded: true, Rationale: "reached terminal stage"}, nil
	}
	session.Status = models.SessionStatusGenerating
	return IterateResult{Recorded: true, Rationale: "advanced to next stage"}, nil
}

func (c *Controller) resolveJobs(ids []string) ([]*models.Job, error) {
	jobs := make([]*models.Job, 0, len(ids))
	for _, id := range ids {
		job, err := c.executor.GetJob(id)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}

func (c *Controller) setLastFeedback(sessionID, feedbackText string) {
	if feedbackText == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if session, ok := c.sessions[sessionID]; ok {
		session.LastFeedback = feedbackText
	}
}

func adapterIDs(job *models.Job) []string {
	ids := make([]string, len(job.Params.Adapters))
	for i, a := range job.Params.Adapters {
		ids[i] = a.AdapterID
	}
	return ids
}
