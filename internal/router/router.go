// Package router implements the Task Router: tier- and capability-sensitive
// placement of single and batched jobs, with overflow spill.
package router

import (
	"fmt"
	"sort"

	"github.com/ternarybob/orchestrator/internal/interfaces"
	"github.com/ternarybob/orchestrator/internal/models"
)

// DefaultOverflowThreshold is used when no per-deployment value is configured.
const DefaultOverflowThreshold = 3

// Router is a stateless, deterministic placement function over a registry
// snapshot. Ties are broken by node id lexicographic order.
type Router struct {
	registry          interfaces.NodeRegistry
	overflowThreshold int
}

// New creates a Router reading node state from registry.
func New(registry interfaces.NodeRegistry, overflowThreshold int) *Router {
	if overflowThreshold <= 0 {
		overflowThreshold = DefaultOverflowThreshold
	}
	return &Router{registry: registry, overflowThreshold: overflowThreshold}
}

// Route returns an ordered list of candidate nodes, or ErrNoCapableNode when
// none satisfies both healthy=true and the capability requirement.
func (r *Router) Route(req interfaces.RouteRequest) ([]*models.Node, error) {
	candidates := r.registry.Capable(req.Capability)

	healthy := make([]*models.Node, 0, len(candidates))
	for _, n := range candidates {
		if n.Runtime.Healthy {
			healthy = append(healthy, n)
		}
	}
	if len(healthy) == 0 {
		return nil, fmt.Errorf("capability %s: %w", req.Capability, models.ErrNoCapableNode)
	}

	qualityClass := req.TaskClass.IsQualityClass()
	sort.SliceStable(healthy, func(i, j int) bool {
		a, b := healthy[i], healthy[j]
		if a.Tier.Rank() != b.Tier.Rank() {
			if qualityClass {
				return a.Tier.Rank() > b.Tier.Rank()
			}
			return a.Tier.Rank() < b.Tier.Rank()
		}
		if a.Runtime.QueueDepth != b.Runtime.QueueDepth {
			return a.Runtime.QueueDepth < b.Runtime.QueueDepth
		}
		return a.ID < b.ID
	})

	if req.PreferredNode != "" {
		for i, n := range healthy {
			if n.ID == req.PreferredNode {
				healthy = promoteToHead(healthy, i)
				break
			}
		}
	}

	healthy = r.applyOverflowSpill(healthy)

	return healthy, nil
}

// applyOverflowSpill promotes the first candidate below the overflow
// threshold to the head of the list, if the current head exceeds it.
// Otherwise the list is returned unchanged — the head node's worker will
// queue the job internally.
func (r *Router) applyOverflowSpill(candidates []*models.Node) []*models.Node {
	if len(candidates) == 0 || candidates[0].Runtime.QueueDepth <= r.overflowThreshold {
		return candidates
	}

	for i := 1; i < len(candidates); i++ {
		if candidates[i].Runtime.QueueDepth < r.overflowThreshold {
			return promoteToHead(candidates, i)
		}
	}
	return candidates
}

// promoteToHead moves the element at index i to the front, preserving the
// relative order of everything else.
func promoteToHead(nodes []*models.Node, i int) []*models.Node {
	if i == 0 {
		return nodes
	}
	out := make([]*models.Node, 0, len(nodes))
	out = append(out, nodes[i])
	out = append(out, nodes[:i]...)
	out = append(out, nodes[i+1:]...)
	return out
}
