package interfaces

import "github.com/ternarybob/orchestrator/internal/models"

// JobGraph is a tagged directed graph of worker-side nodes, each with a
// class tag and an inputs map, ready for submission to a Worker Client.
type JobGraph struct {
	Nodes map[string]JobGraphNode
}

// JobGraphNode is one node of a JobGraph.
type JobGraphNode struct {
	Class  string
	Inputs map[string]interface{}
}

// Clone returns a deep copy of the graph, safe for the template engine's
// two-phase substitution to mutate without touching the manifest default.
func (g JobGraph) Clone() JobGraph {
	clone := JobGraph{Nodes: make(map[string]JobGraphNode, len(g.Nodes))}
	for id, n := range g.Nodes {
		inputs := make(map[string]interface{}, len(n.Inputs))
		for k, v := range n.Inputs {
			inputs[k] = v
		}
		clone.Nodes[id] = JobGraphNode{Class: n.Class, Inputs: inputs}
	}
	return clone
}

// TemplateEngine turns a (template-name, parameters) pair into a concrete job graph.
type TemplateEngine interface {
	// Select deterministically picks the first manifest entry whose flags match.
	Select(modelFamily models.Capability, needsImg2Img, needsAdapters bool) (templateName string, err error)

	// Build substitutes placeholders; unresolved placeholders fail with
	// ErrMissingParameter.
	Build(templateName string, params map[string]interface{}) (JobGraph, error)

	// InjectAdapters splices an ordered adapter chain into a built job
	// graph. Fails with ErrUnsupportedAdapter if the template forbids adapters.
	InjectAdapters(templateName string, graph JobGraph, adapters []models.AdapterSpec) (JobGraph, error)
}
