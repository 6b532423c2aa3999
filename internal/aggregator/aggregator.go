// Package aggregator fans in upstream worker events and fans out normalized,
// per-session events to downstream subscribers, bounding memory by dropping
// progress events that arrive at a full subscriber channel.
package aggregator

import (
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"

	"github.com/ternarybob/orchestrator/internal/interfaces"
	"github.com/ternarybob/orchestrator/internal/models"
)

// correlation is the worker-job-id -> (job-id, session-id) mapping entry.
type correlation struct {
	jobID     string
	sessionID string
}

type subscriber struct {
	id        uint64
	sessionID string
	ch        chan models.Event
}

// Aggregator is the single reliable fan-in/fan-out hub for generation events.
type Aggregator struct {
	mu           sync.Mutex
	correlations map[string]correlation
	subscribers  map[string]map[uint64]*subscriber
	nextSubID    uint64
	bufferSize   int
	dropLimiter  *rate.Limiter
	logger       arbor.ILogger
}

// New creates an Aggregator whose subscriber channels hold bufferSize events
// and whose drop-warning logs are rate limited to at most once per interval.
func New(bufferSize int, dropWarnInterval time.Duration, logger arbor.ILogger) *Aggregator {
	if bufferSize <= 0 {
		bufferSize = 64
	}
	if dropWarnInterval <= 0 {
		dropWarnInterval = 5 * time.Second
	}
	return &Aggregator{
		correlations: make(map[string]correlation),
		subscribers:  make(map[string]map[uint64]*subscriber),
		bufferSize:   bufferSize,
		dropLimiter:  rate.NewLimiter(rate.Every(dropWarnInterval), 1),
		logger:       logger,
	}
}

// RegisterCorrelation inserts a new worker-job-id -> (job, session) mapping.
func (a *Aggregator) RegisterCorrelation(workerJobID, jobID, sessionID string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.correlations[workerJobID] = correlation{jobID: jobID, sessionID: sessionID}
}

// ResolveCorrelation looks up the (job, session) pair for a worker job id.
func (a *Aggregator) ResolveCorrelation(workerJobID string) (jobID, sessionID string, ok bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	c, ok := a.correlations[workerJobID]
	if !ok {
		return "", "", false
	}
	return c.jobID, c.sessionID, true
}

// RemoveCorrelation drops a worker-job-id entry once its job reaches a
// terminal state.
func (a *Aggregator) RemoveCorrelation(workerJobID string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.correlations, workerJobID)
}

// Publish delivers event to every subscriber of sessionID. Under a full
// subscriber channel, complete/error events displace the oldest buffered
// entry rather than being dropped; progress events are dropped instead.
func (a *Aggregator) Publish(sessionID string, event models.Event) {
	a.mu.Lock()
	subs := a.subscribers[sessionID]
	targets := make([]*subscriber, 0, len(subs))
	for _, s := range subs {
		targets = append(targets, s)
	}
	a.mu.Unlock()

	for _, s := range targets {
		a.deliver(s, event)
	}
}

func (a *Aggregator) deliver(s *subscriber, event models.Event) {
	select {
	case s.ch <- event:
		return
	default:
	}

	if event.Kind != models.EventProgress {
		select {
		case <-s.ch: // make room by discarding one buffered event
		default:
		}
		select {
		case s.ch <- event:
		default:
			if a.logger != nil {
				a.logger.Warn().Str("session_id", s.sessionID).Msg("subscriber channel full, critical event could not be delivered")
			}
		}
		return
	}

	if a.dropLimiter.Allow() && a.logger != nil {
		a.logger.Warn().Str("session_id", s.sessionID).Uint64("subscriber_id", s.id).Msg("dropping progress event, subscriber channel full")
	}
}

// Subscribe registers a new bounded event channel for sessionID.
func (a *Aggregator) Subscribe(sessionID string) (<-chan models.Event, func()) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.nextSubID++
	id := a.nextSubID
	sub := &subscriber{id: id, sessionID: sessionID, ch: make(chan models.Event, a.bufferSize)}

	if a.subscribers[sessionID] == nil {
		a.subscribers[sessionID] = make(map[uint64]*subscriber)
	}
	a.subscribers[sessionID][id] = sub

	unsubscribe := func() {
		a.mu.Lock()
		defer a.mu.Unlock()
		if set, ok := a.subscribers[sessionID]; ok {
			delete(set, id)
			if len(set) == 0 {
				delete(a.subscribers, sessionID)
			}
		}
		close(sub.ch)
	}

	return sub.ch, unsubscribe
}

var _ interfaces.Aggregator = (*Aggregator)(nil)
