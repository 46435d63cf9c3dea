package graph

import "time"

// NodeStatus is the outcome of one node within a run.
type NodeStatus string

const (
	StatusCompleted NodeStatus = "completed"
	StatusFailed    NodeStatus = "failed"
	StatusSkipped   NodeStatus = "skipped"
)

// NodeResult is one entry of a run trace.
//
// Output is set only for completed nodes, Error only for failed nodes and
// SkipReason only for skipped nodes.
type NodeResult struct {
	NodeID     string     `json:"nodeId"`
	NodeType   NodeType   `json:"nodeType"`
	Status     NodeStatus `json:"status"`
	Output     any        `json:"output,omitempty"`
	Error      string     `json:"error,omitempty"`
	SkipReason string     `json:"skipReason,omitempty"`
	Wave       int        `json:"wave"`
	DurationMs int64      `json:"durationMs"`
	Timestamp  time.Time  `json:"timestamp"`

	err error
}

// Err returns the evaluation error of a failed node.
func (r NodeResult) Err() error { return r.err }

// RunStatus is the lifecycle state of a run.
type RunStatus string

const (
	RunPending   RunStatus = "pending"
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
)

// Terminal reports whether the run can no longer change.
func (s RunStatus) Terminal() bool {
	return s == RunCompleted || s == RunFailed
}

// Run records one execution of a graph. Once Status is terminal the run is
// not modified again.
type Run struct {
	ID          string       `json:"id"`
	WorkflowID  string       `json:"workflowId,omitempty"`
	Status      RunStatus    `json:"status"`
	Results     []NodeResult `json:"results"`
	FinalOutput string       `json:"finalOutput"`
	Error       string       `json:"error,omitempty"`
	Waves       [][]string   `json:"waves,omitempty"`
	CostUSD     float64      `json:"costUsd,omitempty"`
	StartedAt   time.Time    `json:"startedAt"`
	CompletedAt time.Time    `json:"completedAt"`

	err error
}

// Err returns the error that failed the run: a *GraphError for invalid
// graphs, a context error for cancelled runs, or the first output-blocking
// *EvalError. It is nil for completed runs and for runs loaded from a store.
func (r *Run) Err() error { return r.err }

// Result returns the trace entry for nodeID.
func (r *Run) Result(nodeID string) (NodeResult, bool) {
	for _, res := range r.Results {
		if res.NodeID == nodeID {
			return res, true
		}
	}
	return NodeResult{}, false
}

func (r *Run) fail(err error) {
	r.Status = RunFailed
	r.err = err
	r.Error = err.Error()
}
