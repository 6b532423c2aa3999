package handlers

import (
	"net/http"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/orchestrator/internal/interfaces"
)

// NodeHandler serves the /nodes and /health surfaces.
type NodeHandler struct {
	registry interfaces.NodeRegistry
	logger   arbor.ILogger
}

// NewNodeHandler creates a NodeHandler.
func NewNodeHandler(registry interfaces.NodeRegistry, logger arbor.ILogger) *NodeHandler {
	return &NodeHandler{registry: registry, logger: logger}
}

// List handles GET /nodes, returning the full registry snapshot.
func (h *NodeHandler) List(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	WriteJSON(w, http.StatusOK, h.registry.Snapshot())
}

type healthResponse struct {
	Status       string `json:"status"`
	NodesHealthy int    `json:"nodes_healthy"`
	NodesTotal   int    `json:"nodes_total"`
}

// Health handles GET /health, summarizing node health without naming any
// single node's identity in the top-level status.
func (h *NodeHandler) Health(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	nodes := h.registry.Snapshot()
	healthy := 0
	for _, n := range nodes {
		if n.Runtime.Healthy {
			healthy++
		}
	}

	status := "ok"
	if len(nodes) == 0 || healthy == 0 {
		status = "degraded"
	}

	WriteJSON(w, http.StatusOK, healthResponse{
		Status:       status,
		NodesHealthy: healthy,
		NodesTotal:   len(nodes),
	})
}
