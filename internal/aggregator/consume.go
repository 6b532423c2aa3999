package aggregator

import (
	"context"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/orchestrator/internal/interfaces"
	"github.com/ternarybob/orchestrator/internal/models"
)

// Run starts one upstream consumer goroutine per node currently in the
// registry, translating each node's worker events into normalized,
// session-addressed events via the correlation table. It blocks until ctx
// is cancelled.
func (a *Aggregator) Run(ctx context.Context, pool interfaces.WorkerClientPool, registry interfaces.NodeRegistry, logger arbor.ILogger) {
	started := make(map[string]bool)
	for _, node := range registry.Snapshot() {
		if started[node.ID] {
			continue
		}
		started[node.ID] = true
		client, err := pool.Client(node.ID)
		if err != nil {
			if logger != nil {
				logger.Warn().Str("node_id", node.ID).Err(err).Msg("could not obtain worker client for event consumption")
			}
			continue
		}
		go a.consumeNode(ctx, client, logger)
	}
	<-ctx.Done()
}

func (a *Aggregator) consumeNode(ctx context.Context, client interfaces.WorkerClient, logger arbor.ILogger) {
	events, err := client.Events(ctx)
	if err != nil {
		if logger != nil {
			logger.Warn().Str("node_id", client.NodeID()).Err(err).Msg("could not subscribe to worker event stream")
		}
		return
	}

	for ev := range events {
		a.translate(ev, client.NodeID())
	}
}

// translate maps one decoded upstream worker event to a normalized Event and
// publishes it, when it corresponds to a known in-flight generation.
func (a *Aggregator) translate(ev interfaces.WorkerEvent, nodeID string) {
	switch ev.Kind {
	case interfaces.WorkerEventProgress:
		jobID, sessionID, ok := a.ResolveCorrelation(ev.PromptID)
		if !ok {
			return
		}
		a.Publish(sessionID, models.NewProgressEvent(jobID, ev.Value, ev.Max))
	case interfaces.WorkerEventExecuted, interfaces.WorkerEventStatus, interfaces.WorkerEventPing:
		// Completion and failure are detected by the Job Executor's
		// poll_until_complete path, which has the artifact metadata these
		// coarse upstream signals lack; nothing further to do here.
	}
}
