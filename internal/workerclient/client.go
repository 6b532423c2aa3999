// Package workerclient implements the per-node persistent handle to a GPU
// worker: job submission, completion polling, artifact retrieval, and the
// auto-reconnecting event-stream subscription.
package workerclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/ternarybob/arbor"
	"golang.org/x/sync/singleflight"

	"github.com/ternarybob/orchestrator/internal/interfaces"
	"github.com/ternarybob/orchestrator/internal/models"
)

// Config holds the per-operation timeouts and reconnect parameters for a Client.
type Config struct {
	SubmitTimeout     time.Duration
	PollInterval      time.Duration
	PollTimeout       time.Duration
	ArtifactTimeout   time.Duration
	ReconnectMinDelay time.Duration
	ReconnectMaxDelay time.Duration
	KeepaliveInterval time.Duration
}

// Client is the persistent handle to one GPU worker node.
type Client struct {
	nodeID   string
	endpoint string
	wsURL    string
	httpc    *http.Client
	cfg      Config
	logger   arbor.ILogger

	reconnectGroup singleflight.Group

	mu      sync.Mutex
	backoff time.Duration
}

// New creates a Client bound to one node's endpoint.
func New(nodeID, endpoint, wsURL string, cfg Config, logger arbor.ILogger) *Client {
	return &Client{
		nodeID:   nodeID,
		endpoint: endpoint,
		wsURL:    wsURL,
		httpc:    &http.Client{},
		cfg:      cfg,
		logger:   logger,
		backoff:  cfg.ReconnectMinDelay,
	}
}

// NodeID returns the id of the node this client talks to.
func (c *Client) NodeID() string { return c.nodeID }

type submitResponse struct {
	JobID       string `json:"job-id"`
	QueueNumber int    `json:"queue-number"`
}

// Submit posts a job graph and returns the worker-assigned job id.
func (c *Client) Submit(ctx context.Context, jobGraph map[string]interface{}) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.SubmitTimeout)
	defer cancel()

	body, err := json.Marshal(jobGraph)
	if err != nil {
		return "", fmt.Errorf("marshal job graph: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/submit", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build submit request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return "", fmt.Errorf("node %s submit: %w: %v", c.nodeID, models.ErrTransportError, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusUnprocessableEntity {
		return "", fmt.Errorf("node %s submit: %w", c.nodeID, models.ErrRejectedByWorker)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("node %s submit: %w: status %d", c.nodeID, models.ErrTransportError, resp.StatusCode)
	}

	var out submitResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("node %s submit: %w: decode response: %v", c.nodeID, models.ErrTransportError, err)
	}

	return out.JobID, nil
}

type historyResponse struct {
	Status   string `json:"status"`
	Progress *struct {
		Current int `json:"current"`
		Max     int `json:"max"`
	} `json:"progress,omitempty"`
	Outputs []struct {
		Filename string `json:"filename"`
	} `json:"outputs,omitempty"`
	Error string `json:"error,omitempty"`
}

// PollUntilComplete polls the history endpoint at c.cfg.PollInterval until
// either the worker reports completion, deadlineCtx is done (ErrTimeout), or
// ctx is cancelled (ErrCancelled).
func (c *Client) PollUntilComplete(ctx context.Context, workerJobID string, deadlineCtx context.Context) (interfaces.JobOutcome, error) {
	start := time.Now()
	ticker := time.NewTicker(c.cfg.PollInterval)
	defer ticker.Stop()

	for {
		snap, err := c.history(ctx, workerJobID)
		if err == nil {
			switch snap.Status {
			case interfaces.HistoryComplete:
				outputs := snap.Outputs
				var filename string
				if len(outputs) > 0 {
					filename = outputs[0]
				}
				return interfaces.JobOutcome{ArtifactFilename: filename, ElapsedMS: time.Since(start).Milliseconds()}, nil
			case interfaces.HistoryFailed:
				return interfaces.JobOutcome{}, fmt.Errorf("node %s job %s: %w: %s", c.nodeID, workerJobID, models.ErrRejectedByWorker, snap.ErrorMessage)
			}
		}

		select {
		case <-ctx.Done():
			return interfaces.JobOutcome{}, fmt.Errorf("node %s job %s: %w", c.nodeID, workerJobID, models.ErrCancelled)
		case <-deadlineCtx.Done():
			return interfaces.JobOutcome{}, fmt.Errorf("node %s job %s: %w", c.nodeID, workerJobID, models.ErrTimeout)
		case <-ticker.C:
		}
	}
}

func (c *Client) history(ctx context.Context, workerJobID string) (interfaces.HistorySnapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.PollTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"/history/"+workerJobID, nil)
	if err != nil {
		return interfaces.HistorySnapshot{}, err
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return interfaces.HistorySnapshot{}, fmt.Errorf("node %s history: %w: %v", c.nodeID, models.ErrTransportError, err)
	}
	defer resp.Body.Close()

	var out historyResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return interfaces.HistorySnapshot{}, fmt.Errorf("node %s history: %w: decode: %v", c.nodeID, models.ErrTransportError, err)
	}

	snap := interfaces.HistorySnapshot{Status: interfaces.HistoryStatus(out.Status), ErrorMessage: out.Error}
	if out.Progress != nil {
		snap.CurrentStep = out.Progress.Current
		snap.MaxStep = out.Progress.Max
	}
	for _, o := range out.Outputs {
		snap.Outputs = append(snap.Outputs, o.Filename)
	}
	return snap, nil
}

// FetchArtifact retrieves raw bytes for an artifact reference.
func (c *Client) FetchArtifact(ctx context.Context, reference string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.ArtifactTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"/view/"+reference, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("node %s fetch artifact: %w: %v", c.nodeID, models.ErrTransportError, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("node %s artifact %s: %w", c.nodeID, reference, models.ErrNotFound)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("node %s fetch artifact: %w: status %d", c.nodeID, models.ErrTransportError, resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("node %s fetch artifact: %w: read body: %v", c.nodeID, models.ErrTransportError, err)
	}
	return data, nil
}

type assetResponse struct {
	Models   []string `json:"models"`
	Adapters []string `json:"adapters"`
}

// ListAssets queries the worker for available models or adapters.
func (c *Client) ListAssets(ctx context.Context, kind interfaces.AssetKind) ([]interfaces.AssetDescriptor, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"/object_info", nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("node %s list assets: %w: %v", c.nodeID, models.ErrTransportError, err)
	}
	defer resp.Body.Close()

	var out assetResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("node %s list assets: %w: decode: %v", c.nodeID, models.ErrTransportError, err)
	}

	var names []string
	switch kind {
	case interfaces.AssetModel:
		names = out.Models
	case interfaces.AssetAdapter:
		names = out.Adapters
	}

	descriptors := make([]interfaces.AssetDescriptor, 0, len(names))
	for _, n := range names {
		descriptors = append(descriptors, interfaces.AssetDescriptor{ID: n, Kind: kind, Name: n})
	}
	return descriptors, nil
}

// Events returns the long-lived, auto-reconnecting event channel. The
// channel is closed when ctx is cancelled.
func (c *Client) Events(ctx context.Context) (<-chan interfaces.WorkerEvent, error) {
	out := make(chan interfaces.WorkerEvent, 64)
	go c.runEventLoop(ctx, out)
	return out, nil
}

// runEventLoop owns the connect/read/reconnect state machine for one node's
// event stream: dial, consume until severed, back off, repeat.
func (c *Client) runEventLoop(ctx context.Context, out chan<- interfaces.WorkerEvent) {
	defer close(out)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		conn, err := c.dial(ctx)
		if err != nil {
			if c.logger != nil {
				c.logger.Warn().Str("node_id", c.nodeID).Err(err).Msg("worker event stream dial failed, backing off")
			}
			if !c.sleepBackoff(ctx) {
				return
			}
			continue
		}

		c.resetBackoff()
		c.consume(ctx, conn, out)

		select {
		case <-ctx.Done():
			return
		default:
		}
	}
}

// dial deduplicates concurrent reconnect attempts from multiple callers via
// singleflight, so a severed connection is retried exactly once.
func (c *Client) dial(ctx context.Context) (*websocket.Conn, error) {
	v, err, _ := c.reconnectGroup.Do(c.nodeID, func() (interface{}, error) {
		dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
		conn, _, err := dialer.DialContext(ctx, c.wsURL, nil)
		if err != nil {
			return nil, fmt.Errorf("node %s: %w: %v", c.nodeID, models.ErrTransportError, err)
		}
		return conn, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*websocket.Conn), nil
}

func (c *Client) consume(ctx context.Context, conn *websocket.Conn, out chan<- interfaces.WorkerEvent) {
	defer conn.Close()

	keepalive := time.NewTicker(c.cfg.KeepaliveInterval)
	defer keepalive.Stop()

	msgs := make(chan []byte)
	errs := make(chan error, 1)
	go func() {
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				errs <- err
				return
			}
			msgs <- data
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-keepalive.C:
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case err := <-errs:
			if c.logger != nil {
				c.logger.Warn().Str("node_id", c.nodeID).Err(err).Msg("worker event stream severed, reconnecting")
			}
			return
		case data := <-msgs:
			event, ok := decodeWorkerEvent(data)
			if !ok {
				continue // unknown message kinds are tolerated and discarded
			}
			select {
			case out <- event:
			case <-ctx.Done():
				return
			}
		}
	}
}

func (c *Client) sleepBackoff(ctx context.Context) bool {
	c.mu.Lock()
	delay := c.backoff
	next := c.backoff * 2
	if next > c.cfg.ReconnectMaxDelay {
		next = c.cfg.ReconnectMaxDelay
	}
	c.backoff = next
	c.mu.Unlock()

	select {
	case <-time.After(delay):
		return true
	case <-ctx.Done():
		return false
	}
}

func (c *Client) resetBackoff() {
	c.mu.Lock()
	c.backoff = c.cfg.ReconnectMinDelay
	c.mu.Unlock()
}

type rawWorkerMessage struct {
	Type string `json:"type"`
	Data struct {
		PromptID       string `json:"prompt-id"`
		Value          int    `json:"value"`
		Max            int    `json:"max"`
		Output         string `json:"output"`
		QueueRemaining int    `json:"queue-remaining"`
	} `json:"data"`
}

func decodeWorkerEvent(data []byte) (interfaces.WorkerEvent, bool) {
	var raw rawWorkerMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return interfaces.WorkerEvent{}, false
	}

	switch raw.Type {
	case string(interfaces.WorkerEventProgress):
		return interfaces.WorkerEvent{Kind: interfaces.WorkerEventProgress, PromptID: raw.Data.PromptID, Value: raw.Data.Value, Max: raw.Data.Max}, true
	case string(interfaces.WorkerEventExecuted):
		return interfaces.WorkerEvent{Kind: interfaces.WorkerEventExecuted, PromptID: raw.Data.PromptID, Output: raw.Data.Output}, true
	case string(interfaces.WorkerEventStatus):
		return interfaces.WorkerEvent{Kind: interfaces.WorkerEventStatus, QueueRemaining: raw.Data.QueueRemaining}, true
	case string(interfaces.WorkerEventPing):
		return interfaces.WorkerEvent{Kind: interfaces.WorkerEventPing}, true
	default:
		return interfaces.WorkerEvent{}, false
	}
}
