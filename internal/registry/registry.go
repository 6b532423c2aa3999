// Package registry is the canonical source of truth for node inventory and
// runtime health.
package registry

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/orchestrator/internal/models"
)

// Registry holds the node inventory, capability sets, tier, current queue
// depth, and health status. Readers may be many; writers are the Health
// Prober (health, latency) and the Job Executor (queue depth).
type Registry struct {
	mu     sync.RWMutex
	nodes  map[string]*models.Node
	logger arbor.ILogger
}

// New creates an empty Registry.
func New(logger arbor.ILogger) *Registry {
	return &Registry{
		nodes:  make(map[string]*models.Node),
		logger: logger,
	}
}

// Load replaces the inventory atomically. Fails with ErrConfigError when a
// node lacks required fields or declares unknown capability tags.
func (r *Registry) Load(nodes []models.Node) error {
	next := make(map[string]*models.Node, len(nodes))

	for i := range nodes {
		n := nodes[i]

		if n.ID == "" {
			return fmt.Errorf("node at index %d: %w: missing id", i, models.ErrConfigError)
		}
		if n.Host == "" || n.Port == 0 {
			return fmt.Errorf("node %s: %w: missing host/port", n.ID, models.ErrConfigError)
		}
		if !n.Tier.IsValid() {
			return fmt.Errorf("node %s: %w: invalid tier %q", n.ID, models.ErrConfigError, n.Tier)
		}
		for _, tag := range n.CapabilityTags {
			if !models.IsKnownCapability(tag) {
				return fmt.Errorf("node %s: %w: unknown capability tag %q", n.ID, models.ErrConfigError, tag)
			}
		}
		if _, exists := next[n.ID]; exists {
			return fmt.Errorf("node %s: %w: duplicate node id", n.ID, models.ErrConfigError)
		}

		n.Capabilities = models.NewCapabilitySet(n.CapabilityTags)
		// Nodes start unhealthy until the first successful probe.
		n.Runtime.Healthy = false
		node := n
		next[n.ID] = &node
	}

	r.mu.Lock()
	r.nodes = next
	r.mu.Unlock()

	if r.logger != nil {
		r.logger.Info().Int("node_count", len(next)).Msg("registry loaded")
	}

	return nil
}

// Get returns a clone of the named node, or ErrNotFound.
func (r *Registry) Get(nodeID string) (*models.Node, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n, ok := r.nodes[nodeID]
	if !ok {
		return nil, fmt.Errorf("node %s: %w", nodeID, models.ErrNotFound)
	}
	return n.Clone(), nil
}

// Capable returns clones of every node whose capability set contains tag.
func (r *Registry) Capable(tag models.Capability) []*models.Node {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*models.Node, 0, len(r.nodes))
	for _, n := range r.nodes {
		if n.HasCapability(tag) {
			out = append(out, n.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Snapshot returns an immutable copy of all nodes and their runtime state,
// sorted by node id for deterministic iteration.
func (r *Registry) Snapshot() []*models.Node {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*models.Node, 0, len(r.nodes))
	for _, n := range r.nodes {
		out = append(out, n.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// UpdateHealth is called by the Prober; atomic with respect to Snapshot.
// Transitions (healthy -> unhealthy or vice versa) bump the node's
// transition counter and are logged.
func (r *Registry) UpdateHealth(nodeID string, healthy bool, latencyMS int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	n, ok := r.nodes[nodeID]
	if !ok {
		return fmt.Errorf("node %s: %w", nodeID, models.ErrNotFound)
	}

	wasHealthy := n.Runtime.Healthy
	n.Runtime.Healthy = healthy
	n.Runtime.LastLatencyMS = latencyMS
	n.Runtime.LastCheckedAt = time.Now()

	if wasHealthy != healthy {
		n.Runtime.Transitions++
		if r.logger != nil {
			event := r.logger.Warn()
			if healthy {
				event = r.logger.Info()
			}
			event.Str("node_id", nodeID).Bool("healthy", healthy).Int64("latency_ms", latencyMS).
				Msg("node health transition")
		}
	}

	return nil
}

// BumpQueue adjusts a node's queue depth by delta (+1 or -1).
func (r *Registry) BumpQueue(nodeID string, delta int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	n, ok := r.nodes[nodeID]
	if !ok {
		return fmt.Errorf("node %s: %w", nodeID, models.ErrNotFound)
	}

	n.Runtime.QueueDepth += delta
	if n.Runtime.QueueDepth < 0 {
		n.Runtime.QueueDepth = 0
	}
	return nil
}
