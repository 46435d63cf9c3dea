package emit

// Event messages emitted by the engine, in the order a run produces them.
const (
	MsgRunStarted    = "run_started"
	MsgWaveStarted   = "wave_started"
	MsgNodeCompleted = "node_completed"
	MsgNodeFailed    = "node_failed"
	MsgNodeSkipped   = "node_skipped"
	MsgNodeRetry     = "node_retry"
	MsgRunCompleted  = "run_completed"
	MsgRunFailed     = "run_failed"
	MsgRunCancelled  = "run_cancelled"
)

// Event is one observable step of a run.
//
// Run-level events leave NodeID empty; run_started and run-terminal events
// carry Wave -1.
type Event struct {
	RunID string

	// Wave is the zero-based index of the wave the event belongs to.
	Wave int

	NodeID   string
	NodeType string

	Msg string

	// Meta holds event specific data. Common keys:
	//   - "duration_ms": node evaluation time
	//   - "error": failure message
	//   - "code": evaluation error code
	//   - "reason": skip reason
	//   - "attempt": retry attempt number
	//   - "tokens_in", "tokens_out", "model": generation usage
	Meta map[string]interface{}
}

// Failed reports whether the event records a failure.
func (e Event) Failed() bool {
	return e.Msg == MsgNodeFailed || e.Msg == MsgRunFailed || e.Msg == MsgRunCancelled
}
