package interfaces

import "github.com/ternarybob/orchestrator/internal/models"

// RouteRequest describes one routing decision input.
type RouteRequest struct {
	TaskClass     models.TaskClass
	Capability    models.Capability
	PreferredNode string
}

// Router selects one or more candidate nodes for a task class and
// capability requirement, given the current registry snapshot.
type Router interface {
	// Route returns an ordered list of candidate nodes, or ErrNoCapableNode
	// when none satisfies both healthy=true and the capability requirement.
	Route(req RouteRequest) ([]*models.Node, error)
}
