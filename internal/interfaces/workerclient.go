package interfaces

import "context"

// WorkerEventKind enumerates the upstream worker event-stream message kinds
// the orchestrator understands; unknown kinds are tolerated and discarded.
type WorkerEventKind string

const (
	WorkerEventProgress WorkerEventKind = "progress"
	WorkerEventExecuted WorkerEventKind = "executed"
	WorkerEventStatus   WorkerEventKind = "status"
	WorkerEventPing     WorkerEventKind = "ping"
)

// WorkerEvent is a decoded message from a node's upstream event stream.
type WorkerEvent struct {
	Kind           WorkerEventKind
	PromptID       string
	Value          int
	Max            int
	Output         string
	QueueRemaining int
}

// JobOutcome is the terminal result of poll_until_complete.
type JobOutcome struct {
	ArtifactFilename string
	FinalSeed        int64
	ElapsedMS        int64
}

// HistoryStatus is the decoded status field of a history-query response.
type HistoryStatus string

const (
	HistoryRunning  HistoryStatus = "running"
	HistoryComplete HistoryStatus = "complete"
	HistoryFailed   HistoryStatus = "failed"
)

// HistorySnapshot is one poll result from the worker's history endpoint.
type HistorySnapshot struct {
	Status       HistoryStatus
	CurrentStep  int
	MaxStep      int
	Outputs      []string
	ErrorMessage string
}

// AssetKind distinguishes the two enumerable asset classes a worker reports.
type AssetKind string

const (
	AssetModel   AssetKind = "model"
	AssetAdapter AssetKind = "adapter"
)

// AssetDescriptor is one loadable model or adapter a worker advertises.
type AssetDescriptor struct {
	ID   string
	Kind AssetKind
	Name string
}

// WorkerClient is the per-node persistent handle to a single GPU worker.
type WorkerClient interface {
	// Submit posts a job graph and returns the worker-assigned job id.
	// Fails with ErrTransportError or ErrRejectedByWorker.
	Submit(ctx context.Context, jobGraph map[string]interface{}) (workerJobID string, err error)

	// PollUntilComplete polls the history endpoint until completion or
	// deadline; on deadline fails with ErrTimeout.
	PollUntilComplete(ctx context.Context, workerJobID string, deadline context.Context) (JobOutcome, error)

	// FetchArtifact retrieves raw bytes for an artifact reference.
	FetchArtifact(ctx context.Context, reference string) ([]byte, error)

	// ListAssets queries the worker for available models or adapters.
	ListAssets(ctx context.Context, kind AssetKind) ([]AssetDescriptor, error)

	// Events returns the long-lived, auto-reconnecting event channel. The
	// channel is closed when ctx is cancelled.
	Events(ctx context.Context) (<-chan WorkerEvent, error)

	// NodeID returns the id of the node this client talks to.
	NodeID() string
}

// WorkerClientPool resolves a WorkerClient by node id, constructing and
// caching one client per node.
type WorkerClientPool interface {
	Client(nodeID string) (WorkerClient, error)
}
