// Package healthprobe periodically checks every registered node's worker
// endpoint and feeds healthy/latency back into the Registry.
package healthprobe

import (
	"context"
	"net/http"
	"time"

	"github.com/ternarybob/arbor"
	"golang.org/x/sync/errgroup"

	"github.com/ternarybob/orchestrator/internal/interfaces"
)

// Prober runs a fixed-interval tick that fans a status probe out across
// every node in the registry, applying results back into it. It does not
// retry within a single tick; transient failures downgrade the node until
// the next tick.
type Prober struct {
	registry interfaces.NodeRegistry
	client   *http.Client
	interval time.Duration
	timeout  time.Duration
	logger   arbor.ILogger
}

// New creates a Prober with the given tick interval and per-probe timeout.
func New(registry interfaces.NodeRegistry, interval, timeout time.Duration, logger arbor.ILogger) *Prober {
	return &Prober{
		registry: registry,
		client:   &http.Client{},
		interval: interval,
		timeout:  timeout,
		logger:   logger,
	}
}

// Run blocks, ticking at p.interval, until ctx is cancelled. Call it with
// common.SafeGoWithContext from the process bootstrap.
func (p *Prober) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.tick(ctx)
		}
	}
}

// tick probes every node in the current snapshot concurrently and applies
// all results before returning.
func (p *Prober) tick(ctx context.Context) {
	nodes := p.registry.Snapshot()

	g, gctx := errgroup.WithContext(ctx)
	for _, n := range nodes {
		node := n
		g.Go(func() error {
			healthy, latencyMS := p.probe(gctx, node.Endpoint())
			if err := p.registry.UpdateHealth(node.ID, healthy, latencyMS); err != nil && p.logger != nil {
				p.logger.Warn().Str("node_id", node.ID).Err(err).Msg("failed to record probe result")
			}
			return nil
		})
	}

	// errgroup.Wait only returns an error if a probe goroutine itself
	// returns one; tick's probes never do, so this is purely a join point.
	_ = g.Wait()
}

// probe performs a single cheap status-endpoint check with a short timeout.
func (p *Prober) probe(ctx context.Context, endpoint string) (healthy bool, latencyMS int64) {
	probeCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(probeCtx, http.MethodGet, endpoint+"/system_stats", nil)
	if err != nil {
		return false, 0
	}

	start := time.Now()
	resp, err := p.client.Do(req)
	elapsed := time.Since(start)

	if err != nil {
		return false, 0
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return true, elapsed.Milliseconds()
	}
	return false, elapsed.Milliseconds()
}
