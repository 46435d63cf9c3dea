package graph

import (
	"errors"
	"strings"

	"github.com/dshills/flowgraph/graph/tool"
)

// Graph validation sentinels. Every *GraphError unwraps to one of these.
var (
	ErrDuplicateNode     = errors.New("duplicate node id")
	ErrDanglingEdge      = errors.New("edge references a missing node")
	ErrCycleDetected     = errors.New("cycle detected")
	ErrInvalidNodeConfig = errors.New("invalid node config")
)

// Evaluation sentinels. Every *EvalError with a matching Code unwraps to one of these.
var (
	ErrAmbiguousInput  = errors.New("output has more than one unmerged input and no template")
	ErrInvalidOperator = errors.New("invalid condition operator")
	ErrNonComparable   = errors.New("operands are not comparable")
	ErrEmptyPrompt     = errors.New("prompt is empty after template resolution")
	ErrUnknownProvider = errors.New("unknown provider")
	ErrInvalidRepoURL  = tool.ErrInvalidRepoURL
)

// ErrBodyTooLarge marks a fetch whose response exceeded the HTTP tool's
// size limit. Retrying cannot help, so it is never transient.
var ErrBodyTooLarge = tool.ErrBodyTooLarge

// ErrRunBudgetExceeded is recorded on a run that outlived its wall clock budget.
var ErrRunBudgetExceeded = errors.New("run exceeded wall clock budget")

// ErrInvalidRetryPolicy is returned by WithRetryPolicy for unusable policies.
var ErrInvalidRetryPolicy = errors.New("invalid retry policy: MaxAttempts must be >= 1 and MaxDelay >= BaseDelay")

// GraphErrorKind classifies a validation failure.
type GraphErrorKind string

const (
	DuplicateNode     GraphErrorKind = "DuplicateNode"
	DanglingEdge      GraphErrorKind = "DanglingEdge"
	CycleDetected     GraphErrorKind = "CycleDetected"
	InvalidNodeConfig GraphErrorKind = "InvalidNodeConfig"
)

// GraphError is returned by Validate. It is fatal: a run never starts on an
// invalid graph.
type GraphError struct {
	Kind GraphErrorKind

	// NodeID is the offending node (DuplicateNode, InvalidNodeConfig) or the
	// unresolved endpoint (DanglingEdge).
	NodeID string

	// EdgeID is set for DanglingEdge.
	EdgeID string

	// Field names the missing or mismatched config field for InvalidNodeConfig.
	Field string

	// Path lists the node ids around a cycle, first id repeated at the end.
	Path []string
}

// Error implements the error interface.
func (e *GraphError) Error() string {
	switch e.Kind {
	case DuplicateNode:
		return "duplicate node id " + e.NodeID
	case DanglingEdge:
		return "edge " + e.EdgeID + " references missing node " + e.NodeID
	case CycleDetected:
		return "cycle detected: " + strings.Join(e.Path, " -> ")
	case InvalidNodeConfig:
		return "node " + e.NodeID + ": invalid config: missing " + e.Field
	}
	return string(e.Kind)
}

// Unwrap returns the sentinel matching Kind so callers can use errors.Is.
func (e *GraphError) Unwrap() error {
	switch e.Kind {
	case DuplicateNode:
		return ErrDuplicateNode
	case DanglingEdge:
		return ErrDanglingEdge
	case CycleDetected:
		return ErrCycleDetected
	case InvalidNodeConfig:
		return ErrInvalidNodeConfig
	}
	return nil
}

// Evaluation error codes.
const (
	CodeAmbiguousInput  = "AMBIGUOUS_INPUT"
	CodeInvalidOperator = "INVALID_OPERATOR"
	CodeNonComparable   = "NON_COMPARABLE"
	CodeEmptyPrompt     = "EMPTY_PROMPT"
	CodeUnknownProvider = "UNKNOWN_PROVIDER"
	CodeInvalidURL      = "INVALID_URL"
	CodeProviderError   = "PROVIDER_ERROR"
	CodeFetchError      = "FETCH_ERROR"
	CodeMemoryError     = "MEMORY_ERROR"
	CodeNodeTimeout     = "NODE_TIMEOUT"
	CodePanic           = "PANIC"
	CodeNoEvaluator     = "NO_EVALUATOR"
	CodeInternal        = "INTERNAL"
)

var codeSentinels = map[string]error{
	CodeAmbiguousInput:  ErrAmbiguousInput,
	CodeInvalidOperator: ErrInvalidOperator,
	CodeNonComparable:   ErrNonComparable,
	CodeEmptyPrompt:     ErrEmptyPrompt,
	CodeUnknownProvider: ErrUnknownProvider,
	CodeInvalidURL:      ErrInvalidRepoURL,
}

// EvalError is a per-node runtime failure. It is recorded on the node's result
// and only fails the run when no output node can be produced.
//
// Evaluators return EvalError for failures they classify themselves; those are
// never retried. Collaborator errors are wrapped by the engine with
// CodeProviderError or CodeFetchError once retries are exhausted.
type EvalError struct {
	NodeID  string
	Code    string
	Message string
	Cause   error
}

// Error formats the node id, code and message.
func (e *EvalError) Error() string {
	msg := e.Message
	if msg == "" && e.Cause != nil {
		msg = e.Cause.Error()
	}
	if e.NodeID == "" {
		return e.Code + ": " + msg
	}
	return "node " + e.NodeID + ": " + e.Code + ": " + msg
}

// Unwrap exposes the cause, or the sentinel for the code when there is none.
func (e *EvalError) Unwrap() []error {
	var errs []error
	if s, ok := codeSentinels[e.Code]; ok {
		errs = append(errs, s)
	}
	if e.Cause != nil {
		errs = append(errs, e.Cause)
	}
	return errs
}

func evalErr(code, msg string) *EvalError {
	return &EvalError{Code: code, Message: msg}
}

// EngineError reports a misconfigured engine.
type EngineError struct {
	Message string
	Code    string
}

// Error implements the error interface.
func (e *EngineError) Error() string {
	if e.Code != "" {
		return e.Code + ": " + e.Message
	}
	return e.Message
}
