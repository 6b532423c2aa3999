package genexec

import (
	"context"
	"errors"
	"fmt"

	"github.com/ternarybob/orchestrator/internal/interfaces"
	"github.com/ternarybob/orchestrator/internal/models"
)

// SingleRequest describes one single-image generation request.
type SingleRequest struct {
	SessionID      string
	Stage          int
	TaskClass      models.TaskClass
	ModelFamily    models.Capability
	Prompt         string
	NegativePrompt string
	Params         models.ParameterBundle
	PreferredNode  string
}

// SubmitSingle runs the single-image path: route, build the job graph,
// submit to the chosen node, and continue polling for completion in the
// background. It returns as soon as the job has been dispatched.
func (e *Executor) SubmitSingle(ctx context.Context, req SingleRequest) (*models.Job, error) {
	job := models.NewJob(req.SessionID, req.Stage, req.TaskClass, req.ModelFamily, req.Prompt, req.NegativePrompt, req.Params)

	e.mu.Lock()
	e.jobs[job.ID] = job
	e.mu.Unlock()

	capability := deriveCapability(req.TaskClass, req.ModelFamily)
	candidates, err := e.router.Route(interfaces.RouteRequest{
		TaskClass: req.TaskClass, Capability: capability, PreferredNode: req.PreferredNode,
	})
	if err != nil {
		e.failQueuedJob(job, err)
		return job.Clone(), err
	}

	if err := e.dispatch(e.sessionContext(req.SessionID), job, candidates[0]); err != nil {
		e.failQueuedJob(job, err)
		return job.Clone(), err
	}

	return job.Clone(), nil
}

// dispatch builds the job graph for job against node, submits it, and
// launches the background poll loop. sessionCtx is the session's long-lived
// cancellation context, not the inbound request context.
func (e *Executor) dispatch(sessionCtx context.Context, job *models.Job, node *models.Node) error {
	if err := e.registry.BumpQueue(node.ID, 1); err != nil && e.logger != nil {
		e.logger.Warn().Str("node_id", node.ID).Err(err).Msg("failed to bump queue depth on dispatch")
	}

	needsImg2Img := job.Params.SourceImage != ""
	needsAdapters := len(job.Params.Adapters) > 0

	templateName, err := e.templates.Select(job.ModelFamily, needsImg2Img, needsAdapters)
	if err != nil {
		e.registry.BumpQueue(node.ID, -1)
		return fmt.Errorf("select template: %w", err)
	}

	graph, err := e.templates.Build(templateName, paramsToMap(job))
	if err != nil {
		e.registry.BumpQueue(node.ID, -1)
		return fmt.Errorf("build job graph: %w", err)
	}

	if needsAdapters {
		graph, err = e.templates.InjectAdapters(templateName, graph, job.Params.Adapters)
		if err != nil {
			e.registry.BumpQueue(node.ID, -1)
			return fmt.Errorf("inject adapters: %w", err)
		}
	}

	client, err := e.pool.Client(node.ID)
	if err != nil {
		e.registry.BumpQueue(node.ID, -1)
		return fmt.Errorf("resolve worker client: %w", err)
	}

	workerJobID, err := client.Submit(sessionCtx, graphToMap(graph))
	if err != nil {
		e.registry.BumpQueue(node.ID, -1)
		return fmt.Errorf("submit job: %w", err)
	}

	e.mu.Lock()
	job.NodeID = node.ID
	job.WorkerJobID = workerJobID
	job.Transition(models.JobStateDispatched)
	e.mu.Unlock()

	e.aggregator.RegisterCorrelation(workerJobID, job.ID, job.SessionID)

	go e.runSingleJob(sessionCtx, job, client)

	return nil
}

// runSingleJob owns a job's post-dispatch lifecycle: watch for the first
// upstream progress event to mark it running, then poll until the worker
// reports completion or failure.
func (e *Executor) runSingleJob(sessionCtx context.Context, job *models.Job, client interfaces.WorkerClient) {
	deadline, cancel := context.WithTimeout(sessionCtx, e.cfg.JobDeadline)
	defer cancel()

	events, unsubscribe := e.aggregator.Subscribe(job.SessionID)
	go e.watchFirstProgress(deadline, job, events, unsubscribe)

	outcome, err := client.PollUntilComplete(sessionCtx, job.WorkerJobID, deadline)
	if err != nil {
		e.failDispatchedJob(job, err)
		return
	}
	e.completeJob(job, outcome)
}

func (e *Executor) watchFirstProgress(ctx context.Context, job *models.Job, events <-chan models.Event, unsubscribe func()) {
	defer unsubscribe()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if ev.Kind != models.EventProgress || ev.GenerationID != job.ID {
				continue
			}
			e.mu.Lock()
			job.Transition(models.JobStateRunning)
			e.mu.Unlock()
			return
		}
	}
}

func (e *Executor) completeJob(job *models.Job, outcome interfaces.JobOutcome) {
	e.mu.Lock()
	job.ArtifactRef = outcome.ArtifactFilename
	job.FinalSeed = outcome.FinalSeed
	if job.FinalSeed == 0 {
		job.FinalSeed = job.Params.Seed
	}
	job.ObservedMS = outcome.ElapsedMS
	job.Transition(models.JobStateComplete)
	batchID := job.BatchID
	e.mu.Unlock()

	if err := e.registry.BumpQueue(job.NodeID, -1); err != nil && e.logger != nil {
		e.logger.Warn().Str("node_id", job.NodeID).Err(err).Msg("failed to bump queue depth on completion")
	}
	e.aggregator.RemoveCorrelation(job.WorkerJobID)
	e.aggregator.Publish(job.SessionID, models.NewCompleteEvent(job.ID, job.ArtifactRef, "", job.FinalSeed, job.ObservedMS, job.NodeID))

	if batchID != "" {
		e.markBatchJobTerminal(batchID, job.ID)
	}
}

func (e *Executor) failDispatchedJob(job *models.Job, cause error) {
	reason := cause.Error()
	if errors.Is(cause, models.ErrCancelled) || errors.Is(cause, context.Canceled) {
		reason = "cancelled"
	}

	e.mu.Lock()
	job.FailReason = reason
	job.Transition(models.JobStateFailed)
	nodeID := job.NodeID
	batchID := job.BatchID
	e.mu.Unlock()

	if nodeID != "" {
		if err := e.registry.BumpQueue(nodeID, -1); err != nil && e.logger != nil {
			e.logger.Warn().Str("node_id", nodeID).Err(err).Msg("failed to bump queue depth on failure")
		}
	}
	if job.WorkerJobID != "" {
		e.aggregator.RemoveCorrelation(job.WorkerJobID)
	}
	e.aggregator.Publish(job.SessionID, models.NewErrorEvent(job.ID, reason))

	if batchID != "" {
		e.markBatchJobTerminal(batchID, job.ID)
	}
}

// failQueuedJob fails a job that never made it past routing/dispatch, so no
// node queue depth or worker correlation needs to be unwound.
func (e *Executor) failQueuedJob(job *models.Job, cause error) {
	e.mu.Lock()
	job.FailReason = cause.Error()
	job.Transition(models.JobStateFailed)
	batchID := job.BatchID
	e.mu.Unlock()

	e.aggregator.Publish(job.SessionID, models.NewErrorEvent(job.ID, cause.Error()))
	if batchID != "" {
		e.markBatchJobTerminal(batchID, job.ID)
	}
}

// paramsToMap flattens a job's parameter bundle and prompt fields into the
// placeholder-resolution map the Template Engine expects.
func paramsToMap(job *models.Job) map[string]interface{} {
	m := map[string]interface{}{
		"model":           string(job.ModelFamily),
		"prompt":          job.Prompt,
		"negative_prompt": job.NegativePrompt,
		"width":           job.Params.Width,
		"height":          job.Params.Height,
		"steps":           job.Params.Steps,
		"guidance":        job.Params.Guidance,
		"sampler":         job.Params.Sampler,
		"scheduler":       job.Params.Scheduler,
		"seed":            job.Params.Seed,
	}
	if job.Params.SourceImage != "" {
		m["source_image"] = job.Params.SourceImage
		m["denoise"] = job.Params.Denoise
	}
	return m
}

// graphToMap converts a built JobGraph into the plain map submitted to the
// worker's HTTP API.
func graphToMap(graph interfaces.JobGraph) map[string]interface{} {
	out := make(map[string]interface{}, len(graph.Nodes))
	for id, node := range graph.Nodes {
		out[id] = map[string]interface{}{
			"class_type": node.Class,
			"inputs":     node.Inputs,
		}
	}
	return out
}
