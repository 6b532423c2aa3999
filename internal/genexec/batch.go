package genexec

import (
	"context"
	"time"

	"github.com/ternarybob/orchestrator/internal/interfaces"
	"github.com/ternarybob/orchestrator/internal/models"
)

// BatchRequest describes one batch generation request.
type BatchRequest struct {
	SessionID      string
	Stage          int
	TaskClass      models.TaskClass
	ModelFamily    models.Capability
	Prompt         string
	NegativePrompt string
	Params         models.ParameterBundle
	Total          int
	SeedStart      int64

	// ExploreModels enables Preference-Engine-guided model selection across
	// ModelCandidates instead of always using ModelFamily alone.
	ExploreModels   bool
	ModelCandidates []models.Capability

	// AutoAdapters enables Preference-Engine-guided adapter attachment per job.
	AutoAdapters bool
}

const draftStage = 0

// SubmitBatch runs the batch path: route the full candidate list, allocate
// the batch evenly across nodes, optionally explore models and auto-select
// adapters via the Preference Engine, then dispatch N single-image jobs.
func (e *Executor) SubmitBatch(ctx context.Context, req BatchRequest) (*models.Batch, error) {
	capability := deriveCapability(req.TaskClass, req.ModelFamily)
	candidates, err := e.router.Route(interfaces.RouteRequest{TaskClass: req.TaskClass, Capability: capability})
	if err != nil {
		return nil, err
	}

	nodeIDs := make([]string, len(candidates))
	for i, n := range candidates {
		nodeIDs[i] = n.ID
	}
	nodeAllocation := models.AllocateEvenly(req.Total, nodeIDs)

	batch := models.NewBatch(req.SessionID, req.Stage, req.Total, nodeAllocation)
	e.mu.Lock()
	e.batches[batch.ID] = batch
	e.mu.Unlock()

	selectedModels := e.selectModels(req)
	modelIDs := make([]string, len(selectedModels))
	for i, m := range selectedModels {
		modelIDs[i] = string(m)
	}
	modelAllocation := models.AllocateEvenly(req.Total, modelIDs)

	nodeAssignment := flatten(nodeAllocation, nodeIDs)
	modelAssignment := flatten(modelAllocation, modelIDs)

	nodesByID := make(map[string]*models.Node, len(candidates))
	for _, n := range candidates {
		nodesByID[n.ID] = n
	}

	sessionCtx := e.sessionContext(req.SessionID)

	for i := 0; i < req.Total; i++ {
		node := nodesByID[nodeAssignment[i]]
		modelFamily := req.ModelFamily
		if i < len(modelAssignment) && modelAssignment[i] != "" {
			modelFamily = models.Capability(modelAssignment[i])
		}

		params := req.Params
		params.Seed = req.SeedStart + int64(i)

		job := models.NewJob(req.SessionID, req.Stage, req.TaskClass, modelFamily, req.Prompt, req.NegativePrompt, params)
		job.BatchID = batch.ID

		if req.AutoAdapters {
			job.Params.Adapters = e.selectAdapters(sessionCtx, req.Prompt, modelFamily, node)
		}

		e.mu.Lock()
		e.jobs[job.ID] = job
		e.mu.Unlock()

		if err := e.dispatch(sessionCtx, job, node); err != nil {
			e.failQueuedJob(job, err)
		}
	}

	return batch.Clone(), nil
}

// selectModels implements the model-exploration thresholds: top-1 model
// alone at confidence >= 0.5 outside the draft stage, top-2 in [0.3, 0.5),
// and up to top-3 otherwise.
func (e *Executor) selectModels(req BatchRequest) []models.Capability {
	candidates := req.ModelCandidates
	if len(candidates) == 0 {
		candidates = []models.Capability{req.ModelFamily}
	}
	if !req.ExploreModels || len(candidates) <= 1 {
		return []models.Capability{req.ModelFamily}
	}

	ranked := e.rankModels(req.Prompt, candidates)
	if len(ranked) == 0 {
		return []models.Capability{req.ModelFamily}
	}

	top := ranked[0]
	var n int
	switch {
	case top.Confidence >= 0.5 && req.Stage != draftStage:
		n = 1
	case top.Confidence >= 0.3 && top.Confidence < 0.5:
		n = 2
	default:
		n = 3
	}
	if n > len(ranked) {
		n = len(ranked)
	}

	out := make([]models.Capability, n)
	for i := 0; i < n; i++ {
		out[i] = models.Capability(ranked[i].ID)
	}
	return out
}

// rankModels greedily derives a full ranking from the Preference Engine's
// argmax-only RecommendModel by repeatedly recommending from the shrinking
// remainder; the top entry's confidence is the only one the engine itself
// guarantees, so subsequent entries are a best-effort ordering.
func (e *Executor) rankModels(prompt string, candidates []models.Capability) []interfaces.Recommendation {
	remaining := make([]string, len(candidates))
	for i, c := range candidates {
		remaining[i] = string(c)
	}

	var ranked []interfaces.Recommendation
	for len(remaining) > 0 {
		rec := e.preference.RecommendModel(prompt, remaining)
		ranked = append(ranked, rec)
		remaining = removeString(remaining, rec.ID)
	}
	return ranked
}

// selectAdapters consults the Preference Engine for up to three
// highest-scoring adapters for (prompt, model), clipping strength to [0.5, 0.8].
func (e *Executor) selectAdapters(ctx context.Context, prompt string, model models.Capability, node *models.Node) []models.AdapterSpec {
	client, err := e.pool.Client(node.ID)
	if err != nil {
		return nil
	}
	assets, err := client.ListAssets(ctx, interfaces.AssetAdapter)
	if err != nil || len(assets) == 0 {
		return nil
	}

	candidates := make([]string, len(assets))
	for i, a := range assets {
		candidates[i] = a.ID
	}

	recs := e.preference.RecommendAdapters(prompt, string(model), candidates, 3)
	specs := make([]models.AdapterSpec, 0, len(recs))
	for _, r := range recs {
		specs = append(specs, models.AdapterSpec{AdapterID: r.ID, Strength: clip(0.5+r.Score*0.3, 0.5, 0.8)})
	}
	return specs
}

// markBatchJobTerminal records one job of batchID as terminal, publishes a
// batch-progress event, and a batch-complete event once the batch closes.
func (e *Executor) markBatchJobTerminal(batchID, latestJobID string) {
	e.mu.Lock()
	batch, ok := e.batches[batchID]
	if !ok {
		e.mu.Unlock()
		return
	}
	batch.MarkTerminal()
	completed, total, closed, sessionID := batch.Completed, batch.Total, batch.IsClosed(), batch.SessionID
	createdAt := batch.CreatedAt
	e.mu.Unlock()

	e.aggregator.Publish(sessionID, models.NewBatchProgressEvent(batchID, completed, total, latestJobID))
	if closed {
		e.aggregator.Publish(sessionID, models.NewBatchCompleteEvent(batchID, total, time.Since(createdAt).Milliseconds()))
	}
}

// flatten expands an id -> count allocation into a length-sum(counts) slice
// of ids, preserving the given order (the caller's priority order, used to
// decide which ids absorb AllocateEvenly's remainder).
func flatten(allocation map[string]int, order []string) []string {
	var out []string
	for _, id := range order {
		for i := 0; i < allocation[id]; i++ {
			out = append(out, id)
		}
	}
	return out
}

func removeString(s []string, target string) []string {
	out := make([]string, 0, len(s))
	for _, v := range s {
		if v != target {
			out = append(out, v)
		}
	}
	return out
}
