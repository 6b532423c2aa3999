package models

import (
	"fmt"
	"time"
)

// Node describes one GPU worker: its identity, declared capacity, capability
// set, network endpoint, and mutable runtime state. Nodes are created at
// startup from the declarative inventory and never destroyed while the
// process runs; only the Health Prober and the Job Executor mutate runtime
// fields after creation.
type Node struct {
	ID             string        `json:"id" toml:"id"`
	DisplayName    string        `json:"display_name" toml:"display_name"`
	Tier           Tier          `json:"tier" toml:"tier"`
	VRAMGB         int           `json:"vram_gb" toml:"vram_gb"`
	MaxConcurrent  int           `json:"max_concurrent" toml:"max_concurrent"`
	MaxResolution  int           `json:"max_resolution" toml:"max_resolution"`
	MaxBatch       int           `json:"max_batch" toml:"max_batch"`
	Capabilities   CapabilitySet `json:"capabilities"`
	CapabilityTags []string      `json:"-" toml:"capability_tags"`
	Host           string        `json:"host" toml:"host"`
	Port           int           `json:"port" toml:"port"`

	Runtime NodeRuntimeState `json:"runtime"`
}

// NodeRuntimeState is the mutable half of a Node, updated by the Health
// Prober (Healthy, LastLatencyMS, Transitions) and the Job Executor
// (QueueDepth) only.
type NodeRuntimeState struct {
	Healthy       bool      `json:"healthy"`
	LastLatencyMS int64     `json:"last_latency_ms"`
	QueueDepth    int       `json:"queue_depth"`
	Transitions   uint64    `json:"transitions"`
	LastCheckedAt time.Time `json:"last_checked_at"`
}

// Endpoint returns the node's base HTTP URL, e.g. "http://host:port".
func (n *Node) Endpoint() string {
	return fmt.Sprintf("http://%s:%d", n.Host, n.Port)
}

// WebSocketEndpoint returns the node's event-stream URL, e.g. "ws://host:port/ws".
func (n *Node) WebSocketEndpoint() string {
	return fmt.Sprintf("ws://%s:%d/ws", n.Host, n.Port)
}

// Clone returns a deep copy of the Node, safe to hand to a caller outside
// the Registry's lock.
func (n *Node) Clone() *Node {
	clone := *n
	clone.CapabilityTags = append([]string(nil), n.CapabilityTags...)
	clone.Capabilities = make(CapabilitySet, len(n.Capabilities))
	for k, v := range n.Capabilities {
		clone.Capabilities[k] = v
	}
	return &clone
}

// HasCapability reports whether the node declares the given capability tag.
func (n *Node) HasCapability(tag Capability) bool {
	return n.Capabilities.Has(tag)
}
