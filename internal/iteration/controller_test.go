package iteration

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/orchestrator/internal/genexec"
	"github.com/ternarybob/orchestrator/internal/interfaces"
	"github.com/ternarybob/orchestrator/internal/models"
	"github.com/ternarybob/orchestrator/internal/template"
)

type fakeRegistry struct {
	mu    sync.Mutex
	nodes map[string]*models.Node
}

func newFakeRegistry(nodes ...*models.Node) *fakeRegistry {
	r := &fakeRegistry{nodes: make(map[string]*models.Node)}
	for _, n := range nodes {
		r.nodes[n.ID] = n
	}
	return r
}

func (r *fakeRegistry) Load(nodes []models.Node) error { return nil }

func (r *fakeRegistry) Get(nodeID string) (*models.Node, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.nodes[nodeID]
	if !ok {
		return nil, models.ErrNotFound
	}
	return n.Clone(), nil
}

func (r *fakeRegistry) Capable(tag models.Capability) []*models.Node { return nil }

func (r *fakeRegistry) Snapshot() []*models.Node { return nil }

func (r *fakeRegistry) UpdateHealth(nodeID string, healthy bool, latencyMS int64) error { return nil }

func (r *fakeRegistry) BumpQueue(nodeID string, delta int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.nodes[nodeID]
	if !ok {
		return models.ErrNotFound
	}
	n.Runtime.QueueDepth += delta
	return nil
}

type fakeRouter struct{ candidates []*models.Node }

func (r *fakeRouter) Route(req interfaces.RouteRequest) ([]*models.Node, error) {
	return r.candidates, nil
}

type fakeWorkerClient struct {
	nodeID   string
	submitID string
	outcome  interfaces.JobOutcome
}

func (c *fakeWorkerClient) Submit(ctx context.Context, jobGraph map[string]interface{}) (string, error) {
	return c.submitID, nil
}

func (c *fakeWorkerClient) PollUntilComplete(ctx context.Context, workerJobID string, deadline context.Context) (interfaces.JobOutcome, error) {
	return c.outcome, nil
}

func (c *fakeWorkerClient) FetchArtifact(ctx context.Context, reference string) ([]byte, error) {
	return nil, nil
}

func (c *fakeWorkerClient) ListAssets(ctx context.Context, kind interfaces.AssetKind) ([]interfaces.AssetDescriptor, error) {
	return nil, nil
}

func (c *fakeWorkerClient) Events(ctx context.Context) (<-chan interfaces.WorkerEvent, error) {
	return make(chan interfaces.WorkerEvent), nil
}

func (c *fakeWorkerClient) NodeID() string { return c.nodeID }

type fakePool struct{ client *fakeWorkerClient }

func (p *fakePool) Client(nodeID string) (interfaces.WorkerClient, error) { return p.client, nil }

type fakePreferenceEngine struct {
	mu      sync.Mutex
	records []recordCall
}

type recordCall struct {
	prompt, model string
	action        models.PreferenceAction
}

func (p *fakePreferenceEngine) Record(prompt, model string, adapters []string, action models.PreferenceAction, stage int, sessionID, feedbackText string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.records = append(p.records, recordCall{prompt: prompt, model: model, action: action})
}

func (p *fakePreferenceEngine) RecommendModel(prompt string, candidates []string) interfaces.Recommendation {
	return interfaces.Recommendation{}
}

func (p *fakePreferenceEngine) RecommendAdapters(prompt, model string, candidates []string, k int) []interfaces.Recommendation {
	return nil
}

func (p *fakePreferenceEngine) Export() ([]byte, error)  { return nil, nil }
func (p *fakePreferenceEngine) Import(data []byte) error { return nil }

type fakeRewriter struct{}

func (fakeRewriter) Rewrite(ctx context.Context, prompt, negative string) (string, string, string, error) {
	return prompt + " refined", negative, "rewritten for clarity", nil
}

type inlineAggregator struct {
	mu          sync.Mutex
	subscribers map[string][]chan models.Event
}

func newInlineAggregator() *inlineAggregator {
	return &inlineAggregator{subscribers: make(map[string][]chan models.Event)}
}

func (a *inlineAggregator) RegisterCorrelation(workerJobID, jobID, sessionID string) {}
func (a *inlineAggregator) RemoveCorrelation(workerJobID string)                     {}

func (a *inlineAggregator) Publish(sessionID string, event models.Event) {
	a.mu.Lock()
	subs := append([]chan models.Event(nil), a.subscribers[sessionID]...)
	a.mu.Unlock()
	for _, ch := range subs {
		select {
		case ch <- event:
		default:
		}
	}
}

func (a *inlineAggregator) Subscribe(sessionID string) (<-chan models.Event, func()) {
	ch := make(chan models.Event, 64)
	a.mu.Lock()
	a.subscribers[sessionID] = append(a.subscribers[sessionID], ch)
	a.mu.Unlock()
	return ch, func() {}
}

func testNode(id string) *models.Node {
	return &models.Node{
		ID: id, Tier: models.TierQuality, Host: "h", Port: 1,
		CapabilityTags: []string{"sdxl"}, Capabilities: models.NewCapabilitySet([]string{"sdxl"}),
	}
}

func testTemplateEngine() *template.Engine {
	manifest := &template.Manifest{
		Entries: map[string]template.ManifestEntry{
			"sdxl-txt2img": {
				Name: "sdxl-txt2img", ModelFamilies: []string{"sdxl"},
				AcceptsImg2Img: true,
				Defaults:       map[string]interface{}{},
				Graph: map[string]template.GraphNodeDef{
					"checkpoint": {Class: "CheckpointLoader", Inputs: map[string]interface{}{"model": "{{model}}"}},
					"sampler":    {Class: "KSampler", Inputs: map[string]interface{}{"model_source": "checkpoint", "prompt": "{{prompt}}", "steps": "{{steps}}"}},
				},
			},
		},
	}
	return template.New(manifest)
}

func newTestController(t *testing.T) (*Controller, *fakePreferenceEngine) {
	t.Helper()
	node := testNode("n1")
	registry := newFakeRegistry(node)
	router := &fakeRouter{candidates: []*models.Node{node}}
	client := &fakeWorkerClient{nodeID: "n1", submitID: "w1", outcome: interfaces.JobOutcome{ArtifactFilename: "out.png"}}
	pool := &fakePool{client: client}
	agg := newInlineAggregator()
	pref := &fakePreferenceEngine{}

	executor := genexec.New(registry, router, testTemplateEngine(), pool, agg, pref, genexec.Config{JobDeadline: time.Second}, nil)
	controller := New(executor, pref, fakeRewriter{}, agg, nil)
	return controller, pref
}

func TestCreateSessionStartsConfiguring(t *testing.T) {
	controller, _ := newTestController(t)
	session := controller.CreateSession("simple", nil)
	assert.Equal(t, models.SessionStatusConfiguring, session.Status)
	assert.Equal(t, 0, session.CurrentStage)
}

func TestSubmitSingleTransitionsToReviewingOnCompletion(t *testing.T) {
	controller, _ := newTestController(t)
	session := controller.CreateSession("simple", nil)

	job, err := controller.SubmitSingle(context.Background(), genexec.SingleRequest{
		SessionID: session.ID, ModelFamily: models.CapabilitySDXL, Params: models.ParameterBundle{Steps: 20},
	})
	require.NoError(t, err)
	require.NotNil(t, job)

	mid, err := controller.GetSession(session.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SessionStatusGenerating, mid.Status)

	require.Eventually(t, func() bool {
		s, err := controller.GetSession(session.ID)
		return err == nil && s.Status == models.SessionStatusReviewing
	}, time.Second, 5*time.Millisecond)
}

func TestIterateSelectRecordsAndRewrites(t *testing.T) {
	controller, pref := newTestController(t)
	session := controller.CreateSession("simple", nil)

	job, err := controller.SubmitSingle(context.Background(), genexec.SingleRequest{
		SessionID: session.ID, ModelFamily: models.CapabilitySDXL, Prompt: "a dragon", Params: models.ParameterBundle{Steps: 20},
	})
	require.NoError(t, err)

	result, err := controller.Iterate(context.Background(), IterateRequest{
		SessionID: session.ID, Action: FeedbackSelect, SelectedIDs: []string{job.ID}, FeedbackText: "nice",
	})
	require.NoError(t, err)
	assert.True(t, result.Recorded)
	assert.Equal(t, "a dragon refined", result.Prompt)
	assert.Equal(t, "rewritten for clarity", result.Rationale)

	pref.mu.Lock()
	defer pref.mu.Unlock()
	require.Len(t, pref.records, 1)
	assert.Equal(t, models.ActionSelected, pref.records[0].action)
}

func TestIterateRejectAllDoesNotAdvanceStage(t *testing.T) {
	controller, pref := newTestController(t)
	session := controller.CreateSession("simple", nil)

	job, err := controller.SubmitSingle(context.Background(), genexec.SingleRequest{
		SessionID: session.ID, ModelFamily: models.CapabilitySDXL, Prompt: "a swamp", Params: models.ParameterBundle{Steps: 20},
	})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		s, err := controller.GetSession(session.ID)
		return err == nil && s.Status == models.SessionStatusReviewing
	}, time.Second, 5*time.Millisecond)

	result, err := controller.Iterate(context.Background(), IterateRequest{
		SessionID: session.ID, Action: FeedbackRejectAll, RejectedIDs: []string{job.ID}, FeedbackText: "too muddy",
	})
	require.NoError(t, err)
	assert.True(t, result.Recorded)

	s, err := controller.GetSession(session.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SessionStatusReviewing, s.Status)
	assert.Equal(t, "too muddy", s.LastFeedback)

	pref.mu.Lock()
	defer pref.mu.Unlock()
	require.Len(t, pref.records, 1)
	assert.Equal(t, models.ActionRejected, pref.records[0].action)
}

func TestAdvanceMovesReviewingToGenerating(t *testing.T) {
	controller, _ := newTestController(t)
	session := controller.CreateSession("simple", nil)

	_, err := controller.SubmitSingle(context.Background(), genexec.SingleRequest{
		SessionID: session.ID, ModelFamily: models.CapabilitySDXL, Params: models.ParameterBundle{Steps: 20},
	})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		s, err := controller.GetSession(session.ID)
		return err == nil && s.Status == models.SessionStatusReviewing
	}, time.Second, 5*time.Millisecond)

	result, err := controller.Iterate(context.Background(), IterateRequest{SessionID: session.ID, Action: FeedbackAdvance})
	require.NoError(t, err)
	assert.True(t, result.Recorded)

	s, err := controller.GetSession(session.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SessionStatusGenerating, s.Status)
	assert.Equal(t, 1, s.CurrentStage)
}

func TestAdvanceRejectedWhenNotReviewing(t *testing.T) {
	controller, _ := newTestController(t)
	session := controller.CreateSession("simple", nil)

	_, err := controller.Iterate(context.Background(), IterateRequest{SessionID: session.ID, Action: FeedbackAdvance})
	require.ErrorIs(t, err, models.ErrInvalidState)
}

func TestDeleteSessionRemovesSession(t *testing.T) {
	controller, _ := newTestController(t)
	session := controller.CreateSession("simple", nil)

	require.NoError(t, controller.DeleteSession(session.ID))
	_, err := controller.GetSession(session.ID)
	assert.ErrorIs(t, err, models.ErrNotFound)
}
