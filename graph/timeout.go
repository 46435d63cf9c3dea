package graph

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// nodeTimeout resolves the timeout for a node type: a per-type override
// first, then the engine default. Zero means no timeout.
func (o *Options) nodeTimeout(t NodeType) time.Duration {
	if d, ok := o.NodeTimeouts[t]; ok && d > 0 {
		return d
	}
	if o.DefaultNodeTimeout > 0 {
		return o.DefaultNodeTimeout
	}
	return 0
}

// evaluateWithTimeout runs one attempt of ev, bounded by timeout when it is
// positive. An attempt that outlives its deadline fails with NODE_TIMEOUT
// even if the evaluator returned a value.
func evaluateWithTimeout(ctx context.Context, ev Evaluator, inv Invocation, timeout time.Duration) (any, error) {
	if timeout <= 0 {
		return safeEvaluate(ctx, ev, inv)
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	out, err := safeEvaluate(timeoutCtx, ev, inv)
	if errors.Is(timeoutCtx.Err(), context.DeadlineExceeded) {
		return nil, &EvalError{
			NodeID:  inv.Node.ID,
			Code:    CodeNodeTimeout,
			Message: fmt.Sprintf("node %s exceeded timeout of %v", inv.Node.ID, timeout),
			Cause:   context.DeadlineExceeded,
		}
	}
	return out, err
}

// safeEvaluate converts an evaluator panic into a PANIC evaluation error.
func safeEvaluate(ctx context.Context, ev Evaluator, inv Invocation) (out any, err error) {
	defer func() {
		if r := recover(); r != nil {
			out = nil
			err = &EvalError{NodeID: inv.Node.ID, Code: CodePanic, Message: fmt.Sprint(r)}
		}
	}()
	return ev.Evaluate(ctx, inv)
}
