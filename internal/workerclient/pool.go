package workerclient

import (
	"fmt"
	"sync"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/orchestrator/internal/interfaces"
)

// Pool lazily constructs and caches one Client per node, keyed by node id.
type Pool struct {
	mu       sync.RWMutex
	clients  map[string]interfaces.WorkerClient
	registry interfaces.NodeRegistry
	cfg      Config
	logger   arbor.ILogger
}

// NewPool creates a Pool that resolves node endpoints from registry and
// builds Clients with cfg's per-operation timeouts.
func NewPool(registry interfaces.NodeRegistry, cfg Config, logger arbor.ILogger) *Pool {
	return &Pool{
		clients:  make(map[string]interfaces.WorkerClient),
		registry: registry,
		cfg:      cfg,
		logger:   logger,
	}
}

// Client returns the cached Client for nodeID, constructing one on first use.
func (p *Pool) Client(nodeID string) (interfaces.WorkerClient, error) {
	p.mu.RLock()
	c, ok := p.clients[nodeID]
	p.mu.RUnlock()
	if ok {
		return c, nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if c, ok := p.clients[nodeID]; ok {
		return c, nil
	}

	node, err := p.registry.Get(nodeID)
	if err != nil {
		return nil, fmt.Errorf("worker client pool: %w", err)
	}

	client := New(node.ID, node.Endpoint(), node.WebSocketEndpoint(), p.cfg, p.logger)
	p.clients[nodeID] = client
	return client, nil
}

var _ interfaces.WorkerClientPool = (*Pool)(nil)
