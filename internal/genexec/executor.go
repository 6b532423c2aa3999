// Package genexec is the Job Executor: it orchestrates single-image and
// batch generation requests by composing the Router, Template Engine,
// Worker Client Pool, Progress Aggregator, and Preference Engine.
package genexec

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/orchestrator/internal/interfaces"
	"github.com/ternarybob/orchestrator/internal/models"
)

// Config holds the executor's timeouts and batch policy thresholds.
type Config struct {
	JobDeadline time.Duration // default 300s, per-job dispatch-to-completion budget
}

// Executor is the Job Executor.
type Executor struct {
	registry   interfaces.NodeRegistry
	router     interfaces.Router
	templates  interfaces.TemplateEngine
	pool       interfaces.WorkerClientPool
	aggregator interfaces.Aggregator
	preference interfaces.PreferenceEngine
	logger     arbor.ILogger
	cfg        Config

	mu      sync.RWMutex
	jobs    map[string]*models.Job
	batches map[string]*models.Batch

	sessionMu     sync.Mutex
	sessionCtx    map[string]context.Context
	sessionCancel map[string]context.CancelFunc
}

// New creates an Executor.
func New(registry interfaces.NodeRegistry, router interfaces.Router, templates interfaces.TemplateEngine,
	pool interfaces.WorkerClientPool, agg interfaces.Aggregator, preference interfaces.PreferenceEngine,
	cfg Config, logger arbor.ILogger) *Executor {
	if cfg.JobDeadline <= 0 {
		cfg.JobDeadline = 300 * time.Second
	}
	return &Executor{
		registry:      registry,
		router:        router,
		templates:     templates,
		pool:          pool,
		aggregator:    agg,
		preference:    preference,
		cfg:           cfg,
		logger:        logger,
		jobs:          make(map[string]*models.Job),
		batches:       make(map[string]*models.Batch),
		sessionCtx:    make(map[string]context.Context),
		sessionCancel: make(map[string]context.CancelFunc),
	}
}

// GetJob returns a clone of a stored job, or ErrNotFound.
func (e *Executor) GetJob(jobID string) (*models.Job, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	j, ok := e.jobs[jobID]
	if !ok {
		return nil, fmt.Errorf("job %s: %w", jobID, models.ErrNotFound)
	}
	return j.Clone(), nil
}

// GetBatch returns a clone of a stored batch, or ErrNotFound.
func (e *Executor) GetBatch(batchID string) (*models.Batch, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	b, ok := e.batches[batchID]
	if !ok {
		return nil, fmt.Errorf("batch %s: %w", batchID, models.ErrNotFound)
	}
	return b.Clone(), nil
}

// ListGenerations returns clones of every job belonging to sessionID,
// optionally filtered to a single stage when stage >= 0.
func (e *Executor) ListGenerations(sessionID string, stage int) []*models.Job {
	e.mu.RLock()
	defer e.mu.RUnlock()

	out := make([]*models.Job, 0)
	for _, j := range e.jobs {
		if j.SessionID != sessionID {
			continue
		}
		if stage >= 0 && j.Stage != stage {
			continue
		}
		out = append(out, j.Clone())
	}
	return out
}

// CancelSession cancels every in-flight job belonging to sessionID. Already
// submitted worker-side jobs may still complete on the worker; their
// artifacts are discarded by the now-cancelled poll loop.
func (e *Executor) CancelSession(sessionID string) {
	e.sessionMu.Lock()
	cancel, ok := e.sessionCancel[sessionID]
	delete(e.sessionCtx, sessionID)
	delete(e.sessionCancel, sessionID)
	e.sessionMu.Unlock()
	if ok {
		cancel()
	}
}

// sessionContext returns the long-lived, cancellable context scoped to
// sessionID that background poll loops derive their deadlines from; it must
// never be the inbound HTTP request context, which dies when the handler
// returns.
func (e *Executor) sessionContext(sessionID string) context.Context {
	e.sessionMu.Lock()
	defer e.sessionMu.Unlock()

	if ctx, ok := e.sessionCtx[sessionID]; ok {
		return ctx
	}
	ctx, cancel := context.WithCancel(context.Background())
	e.sessionCtx[sessionID] = ctx
	e.sessionCancel[sessionID] = cancel
	return ctx
}

// deriveCapability maps a task-class and requested model family to the
// capability tag the Router filters on.
func deriveCapability(taskClass models.TaskClass, modelFamily models.Capability) models.Capability {
	if taskClass == models.TaskClassUpscale {
		return models.CapabilityUpscale
	}
	return modelFamily
}

func clip(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
