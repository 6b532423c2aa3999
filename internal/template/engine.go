// Package template turns a (template-name, parameters) pair into a concrete
// job graph, with dynamic adapter-chain injection.
package template

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ternarybob/orchestrator/internal/interfaces"
	"github.com/ternarybob/orchestrator/internal/models"
)

// Engine loads parameterized job-graph templates and builds concrete job
// graphs from them.
type Engine struct {
	manifest *Manifest
	order    []string // manifest entry names, sorted, for deterministic Select
}

// New creates an Engine from a loaded Manifest. Entry names are sorted to
// give Select a stable enumeration order when the manifest's own encoding
// order isn't preserved by the TOML decoder.
func New(manifest *Manifest) *Engine {
	names := make([]string, 0, len(manifest.Entries))
	for name := range manifest.Entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return &Engine{manifest: manifest, order: names}
}

// Select deterministically picks the first manifest entry (in name order)
// whose flags match the request.
func (e *Engine) Select(modelFamily models.Capability, needsImg2Img, needsAdapters bool) (string, error) {
	for _, name := range e.order {
		entry := e.manifest.Entries[name]
		if !entry.supportsModelFamily(modelFamily) {
			continue
		}
		if needsImg2Img && !entry.AcceptsImg2Img {
			continue
		}
		if needsAdapters && !entry.AcceptsAdapters {
			continue
		}
		return name, nil
	}
	return "", fmt.Errorf("model family %s (img2img=%v adapters=%v): %w", modelFamily, needsImg2Img, needsAdapters, models.ErrNotFound)
}

// Build substitutes placeholders in the named template with params.
// Unresolved placeholders fail with ErrMissingParameter.
func (e *Engine) Build(templateName string, params map[string]interface{}) (interfaces.JobGraph, error) {
	entry, ok := e.manifest.Entries[templateName]
	if !ok {
		return interfaces.JobGraph{}, fmt.Errorf("template %s: %w", templateName, models.ErrNotFound)
	}

	merged := make(map[string]interface{}, len(entry.Defaults)+len(params))
	for k, v := range entry.Defaults {
		merged[k] = v
	}
	for k, v := range params {
		merged[k] = v
	}

	graph := interfaces.JobGraph{Nodes: make(map[string]interfaces.JobGraphNode, len(entry.Graph))}
	for id, def := range entry.Graph {
		graph.Nodes[id] = interfaces.JobGraphNode{Class: def.Class, Inputs: cloneInputs(def.Inputs)}
	}

	// Phase one: discover every placeholder site without mutating the graph.
	sites, err := discoverPlaceholders(graph)
	if err != nil {
		return interfaces.JobGraph{}, err
	}

	// Phase two: substitute with a type-sensitive replacer.
	resolve := func(name string) (interface{}, bool) {
		v, ok := merged[name]
		return v, ok
	}
	for _, site := range sites {
		if err := site.apply(graph, resolve); err != nil {
			return interfaces.JobGraph{}, fmt.Errorf("template %s: %w", templateName, err)
		}
	}

	return graph, nil
}

// InjectAdapters splices an ordered adapter chain into a built job graph.
// For each adapter in order, an adapter-loader node is inserted between the
// model-loader output and the downstream consumers, rewiring the
// model-output edge to chain through the loader. An empty adapter list is a
// no-op. Fails with ErrUnsupportedAdapter if the template forbids adapters.
func (e *Engine) InjectAdapters(templateName string, graph interfaces.JobGraph, adapters []models.AdapterSpec) (interfaces.JobGraph, error) {
	if len(adapters) == 0 {
		return graph, nil
	}

	entry, ok := e.manifest.Entries[templateName]
	if !ok {
		return interfaces.JobGraph{}, fmt.Errorf("template %s: %w", templateName, models.ErrNotFound)
	}
	if !entry.AcceptsAdapters {
		return interfaces.JobGraph{}, fmt.Errorf("template %s: %w", templateName, models.ErrUnsupportedAdapter)
	}

	result := graph.Clone()

	modelOutputNodeID, ok := findModelLoader(result)
	if !ok {
		return interfaces.JobGraph{}, fmt.Errorf("template %s: no model-loader node found", templateName)
	}

	currentSource := modelOutputNodeID
	for i, adapter := range adapters {
		loaderID := fmt.Sprintf("%s_adapter_%d", modelOutputNodeID, i)
		result.Nodes[loaderID] = interfaces.JobGraphNode{
			Class: "AdapterLoader",
			Inputs: map[string]interface{}{
				"model_source": currentSource,
				"adapter_id":   adapter.AdapterID,
				"strength":     adapter.Strength,
			},
		}
		rewireModelConsumers(result, currentSource, loaderID)
		currentSource = loaderID
	}

	return result, nil
}

func findModelLoader(graph interfaces.JobGraph) (string, bool) {
	ids := make([]string, 0, len(graph.Nodes))
	for id, n := range graph.Nodes {
		if n.Class == "CheckpointLoader" || n.Class == "ModelLoader" {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return "", false
	}
	sort.Strings(ids)
	return ids[0], true
}

// rewireModelConsumers points any node input that referenced oldSource at
// newSource instead, except the newly-created loader node itself.
func rewireModelConsumers(graph interfaces.JobGraph, oldSource, newSource string) {
	for id, n := range graph.Nodes {
		if id == newSource {
			continue
		}
		for k, v := range n.Inputs {
			if ref, ok := v.(string); ok && ref == oldSource {
				n.Inputs[k] = newSource
			}
		}
		graph.Nodes[id] = n
	}
}

func cloneInputs(in map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// placeholderSite records where one or more `{{name}}` placeholders were
// discovered in a single input value: either as the whole value (scalar
// replacement, exactly one placeholder) or embedded in a larger string
// (textual substitution, one or more placeholders).
type placeholderSite struct {
	nodeID string
	key    string
	names  []string
	whole  bool
	raw    string
}

func (s placeholderSite) apply(graph interfaces.JobGraph, resolve func(name string) (interface{}, bool)) error {
	node := graph.Nodes[s.nodeID]

	if s.whole {
		value, ok := resolve(s.names[0])
		if !ok {
			return fmt.Errorf("placeholder %q: %w", s.names[0], models.ErrMissingParameter)
		}
		node.Inputs[s.key] = value
		return nil
	}

	result := s.raw
	for _, name := range s.names {
		value, ok := resolve(name)
		if !ok {
			return fmt.Errorf("placeholder %q: %w", name, models.ErrMissingParameter)
		}
		result = strings.ReplaceAll(result, "{{"+name+"}}", fmt.Sprintf("%v", value))
	}
	node.Inputs[s.key] = result
	return nil
}

// discoverPlaceholders walks the graph collecting placeholder sites without
// mutating any input value.
func discoverPlaceholders(graph interfaces.JobGraph) ([]placeholderSite, error) {
	var sites []placeholderSite

	nodeIDs := make([]string, 0, len(graph.Nodes))
	for id := range graph.Nodes {
		nodeIDs = append(nodeIDs, id)
	}
	sort.Strings(nodeIDs)

	for _, nodeID := range nodeIDs {
		node := graph.Nodes[nodeID]
		keys := make([]string, 0, len(node.Inputs))
		for k := range node.Inputs {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		for _, key := range keys {
			v := node.Inputs[key]
			str, ok := v.(string)
			if !ok {
				continue
			}
			names, whole := parsePlaceholders(str)
			if len(names) == 0 {
				continue
			}
			sites = append(sites, placeholderSite{nodeID: nodeID, key: key, names: names, whole: whole, raw: str})
		}
	}

	return sites, nil
}

// parsePlaceholders returns every distinct `{{name}}` placeholder found in
// str, in left-to-right order. whole is true when str is exactly one
// placeholder occupying the entire value (scalar replacement shape).
func parsePlaceholders(str string) (names []string, whole bool) {
	seen := make(map[string]bool)
	rest := str
	total := 0

	for {
		start := strings.Index(rest, "{{")
		if start == -1 {
			break
		}
		end := strings.Index(rest[start+2:], "}}")
		if end == -1 {
			break
		}
		end += start + 2

		name := rest[start+2 : end]
		if name != "" {
			total++
			if !seen[name] {
				seen[name] = true
				names = append(names, name)
			}
		}
		rest = rest[end+2:]
	}

	whole = total == 1 && len(names) == 1 && str == "{{"+names[0]+"}}"
	return names, whole
}
