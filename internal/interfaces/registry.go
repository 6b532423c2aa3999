// Package interfaces defines the narrow seams between components, so each
// package can be built and tested against a small contract instead of a
// concrete collaborator.
package interfaces

import "github.com/ternarybob/orchestrator/internal/models"

// NodeRegistry is the canonical source of truth for node inventory and
// runtime health, consumed by the Router, Health Prober, and Job Executor.
type NodeRegistry interface {
	// Load replaces the inventory atomically. Fails with ErrConfigError when
	// a node lacks required fields or declares unknown capability tags.
	Load(nodes []models.Node) error

	// Get returns a clone of the named node, or ErrNotFound.
	Get(nodeID string) (*models.Node, error)

	// Capable returns clones of every node whose capability set contains tag.
	Capable(tag models.Capability) []*models.Node

	// Snapshot returns an immutable copy of all nodes and their runtime state.
	Snapshot() []*models.Node

	// UpdateHealth is called by the Prober; atomic with respect to Snapshot.
	UpdateHealth(nodeID string, healthy bool, latencyMS int64) error

	// BumpQueue adjusts a node's queue depth by delta (+1 or -1).
	BumpQueue(nodeID string, delta int) error
}
