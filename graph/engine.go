package graph

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dshills/flowgraph/graph/emit"
)

// Engine executes workflow graphs wave by wave.
//
// An Engine holds no per-run state and may run several graphs concurrently;
// the memory store is the only state shared between runs.
//
// Example:
//
//	reg := graph.NewRegistry(graph.Collaborators{
//	    Fetcher:    tool.NewGitHubFetcher("", token),
//	    TextModels: map[string]model.TextModel{"anthropic": claude},
//	})
//	engine, err := graph.New(reg, graph.NewMemoryMap(), emit.NewSlogEmitter(nil),
//	    graph.WithMaxConcurrent(4),
//	    graph.WithRetryPolicy(graph.DefaultRetryPolicy()),
//	)
//	run := engine.Run(ctx, g, "")
type Engine struct {
	registry Registry
	memory   MemoryStore
	emitter  emit.Emitter
	opts     Options
}

// New builds an engine. A nil memory store gets a fresh MemoryMap and a nil
// emitter discards events.
func New(registry Registry, memory MemoryStore, emitter emit.Emitter, opts ...Option) (*Engine, error) {
	if registry == nil {
		return nil, &EngineError{Message: "registry is required", Code: "MISSING_REGISTRY"}
	}
	if memory == nil {
		memory = NewMemoryMap()
	}
	if emitter == nil {
		emitter = emit.NewNullEmitter()
	}

	cfg := &engineConfig{opts: defaultOptions()}
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	return &Engine{
		registry: registry,
		memory:   memory,
		emitter:  emitter,
		opts:     cfg.opts,
	}, nil
}

// Memory returns the store memory-cell nodes read and write.
func (e *Engine) Memory() MemoryStore { return e.memory }

// execution is the mutable state of one run.
type execution struct {
	engine  *Engine
	run     *Run
	graph   *Graph
	plan    *plan
	in      map[string][]*Edge
	results map[string]NodeResult

	// failedBy maps a node skipped because of a failure to the failed node
	// at the root of the chain.
	failedBy map[string]string

	cost *CostTracker
}

// Run executes g and always returns a Run in a terminal state.
//
// Invalid graphs fail before any node runs, with a *GraphError from Run.Err.
// Cancelling ctx stops the run at the next wave boundary: the wave in flight
// finishes, its results and memory writes are discarded, and the run fails
// with the context's cause.
func (e *Engine) Run(ctx context.Context, g *Graph, workflowID string) *Run {
	if g == nil {
		g = &Graph{}
	}
	run := &Run{
		ID:         e.opts.NewID(),
		WorkflowID: workflowID,
		Status:     RunPending,
		Results:    []NodeResult{},
		StartedAt:  time.Now().UTC(),
	}

	if err := Validate(g); err != nil {
		run.fail(err)
		e.finish(run)
		return run
	}

	p := buildPlan(g)
	run.Waves = p.waves
	run.Status = RunRunning
	e.emit(emit.Event{RunID: run.ID, Wave: -1, Msg: emit.MsgRunStarted, Meta: map[string]interface{}{
		"workflow_id": workflowID,
		"nodes":       len(g.Nodes),
		"waves":       len(p.waves),
	}})

	if e.opts.RunWallClockBudget > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeoutCause(ctx, e.opts.RunWallClockBudget, ErrRunBudgetExceeded)
		defer cancel()
	}

	ex := &execution{
		engine:   e,
		run:      run,
		graph:    g,
		plan:     p,
		in:       g.incoming(),
		results:  make(map[string]NodeResult, len(g.Nodes)),
		failedBy: make(map[string]string),
	}
	if e.opts.CostTracking {
		ex.cost = NewCostTracker(run.ID, e.opts.Pricing)
	}

	// abandoned is the cancellation cause when a wave was not run or was
	// discarded. A context that expires after the last wave leaves it nil.
	var abandoned error
	for i, wave := range p.waves {
		if ctx.Err() != nil {
			abandoned = context.Cause(ctx)
			break
		}
		results, ok := ex.runWave(ctx, i, wave)
		if !ok {
			abandoned = context.Cause(ctx)
			break
		}
		ex.record(results)
	}

	if abandoned != nil {
		run.fail(abandoned)
	} else {
		ex.settle()
	}
	if ex.cost != nil {
		run.CostUSD = ex.cost.TotalCost()
	}
	e.finish(run)
	return run
}

// runWave evaluates one wave. It returns false when the run was cancelled
// while the wave was in flight, in which case nothing of the wave is kept.
func (ex *execution) runWave(ctx context.Context, index int, wave []string) ([]NodeResult, bool) {
	e := ex.engine
	e.emit(emit.Event{RunID: ex.run.ID, Wave: index, Msg: emit.MsgWaveStarted, Meta: map[string]interface{}{
		"nodes": strings.Join(wave, ","),
	}})

	results := make([]NodeResult, len(wave))
	wm := newWaveMemory(e.memory)

	var pending atomic.Int64
	var eg errgroup.Group
	eg.SetLimit(e.opts.MaxConcurrentNodes)

	for i, id := range wave {
		node, _ := ex.graph.Node(id)
		inputs, skip := ex.resolveInputs(node)
		if skip != nil {
			skip.Wave = index
			results[i] = *skip
			continue
		}

		pending.Add(1)
		eg.Go(func() error {
			results[i] = ex.evaluateNode(ctx, index, node, inputs, nodeMemory{wave: wm, nodeID: id})
			if m := e.opts.Metrics; m != nil {
				m.UpdatePendingNodes(int(pending.Add(-1)))
			}
			return nil
		})
	}
	if m := e.opts.Metrics; m != nil {
		m.UpdatePendingNodes(int(pending.Load()))
	}
	_ = eg.Wait()

	if ctx.Err() != nil {
		return nil, false
	}

	var completed []string
	for _, r := range results {
		if r.Status == StatusCompleted {
			completed = append(completed, r.NodeID)
		}
	}
	failures := wm.commit(context.WithoutCancel(ctx), completed)
	for i := range results {
		if err, ok := failures[results[i].NodeID]; ok {
			evalErr := &EvalError{NodeID: results[i].NodeID, Code: CodeMemoryError, Message: "commit write", Cause: err}
			results[i].Status = StatusFailed
			results[i].Output = nil
			results[i].err = evalErr
			results[i].Error = evalErr.Error()
		}
	}
	return results, true
}

// resolveInputs returns the live inputs of node, or a skipped result when
// the node must not run.
func (ex *execution) resolveInputs(node Node) ([]NodeResult, *NodeResult) {
	var inputs []NodeResult
	considered := 0

	for _, edge := range ex.in[node.ID] {
		if ex.plan.feedback[edge] {
			continue
		}
		considered++

		src := ex.results[edge.Source]
		switch src.Status {
		case StatusFailed:
			ex.failedBy[node.ID] = src.NodeID
			return nil, ex.skipped(node, "upstream failed: "+src.NodeID)
		case StatusSkipped:
			if root, ok := ex.failedBy[src.NodeID]; ok {
				ex.failedBy[node.ID] = root
				return nil, ex.skipped(node, "upstream failed: "+src.NodeID)
			}
			continue
		}

		if branch, tagged := edge.Guard(); tagged && src.NodeType == NodeCondition {
			cond, ok := src.Output.(ConditionResult)
			if !ok || cond.Result != branch {
				continue
			}
		}
		inputs = append(inputs, src)
	}

	if considered > 0 && len(inputs) == 0 {
		return nil, ex.skipped(node, "no active inputs")
	}
	return inputs, nil
}

func (ex *execution) skipped(node Node, reason string) *NodeResult {
	return &NodeResult{
		NodeID:     node.ID,
		NodeType:   node.Type,
		Status:     StatusSkipped,
		SkipReason: reason,
		Timestamp:  time.Now().UTC(),
	}
}

// evaluateNode runs one node to a completed or failed result. Evaluation is
// detached from ctx cancellation so in-flight collaborator calls finish.
func (ex *execution) evaluateNode(ctx context.Context, wave int, node Node, inputs []NodeResult, mem MemoryStore) NodeResult {
	e := ex.engine
	if m := e.opts.Metrics; m != nil {
		m.nodeStarted()
		defer m.nodeFinished()
	}

	start := time.Now()
	inv := Invocation{RunID: ex.run.ID, Node: node, Inputs: inputs, Memory: mem}
	out, err := e.evaluate(ctx, wave, inv)
	elapsed := time.Since(start)

	res := NodeResult{
		NodeID:     node.ID,
		NodeType:   node.Type,
		Wave:       wave,
		DurationMs: elapsed.Milliseconds(),
		Timestamp:  time.Now().UTC(),
	}
	if err != nil {
		res.Status = StatusFailed
		res.err = err
		res.Error = err.Error()
	} else {
		res.Status = StatusCompleted
		res.Output = out
	}

	if m := e.opts.Metrics; m != nil {
		m.RecordNodeLatency(node.Type, elapsed, res.Status)
	}
	return res
}

// evaluate dispatches to the node's evaluator. Collaborator-backed nodes get
// a per-attempt timeout and the retry policy; retries stop once the run is
// cancelled.
func (e *Engine) evaluate(runCtx context.Context, wave int, inv Invocation) (any, error) {
	node := inv.Node
	ev, ok := e.registry[node.Type]
	if !ok || ev == nil {
		return nil, &EvalError{NodeID: node.ID, Code: CodeNoEvaluator, Message: "no evaluator registered for " + string(node.Type)}
	}

	ctx := context.WithoutCancel(runCtx)
	if !node.Type.External() {
		out, err := safeEvaluate(ctx, ev, inv)
		return out, classify(node, err)
	}

	attempts := 1
	if e.opts.Retry != nil {
		attempts = e.opts.Retry.MaxAttempts
	}
	timeout := e.opts.nodeTimeout(node.Type)

	var err error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			reason := "error"
			if errors.Is(err, context.DeadlineExceeded) {
				reason = "timeout"
			}
			if m := e.opts.Metrics; m != nil {
				m.IncrementRetries(node.Type, reason)
			}
			e.emit(emit.Event{RunID: inv.RunID, Wave: wave, NodeID: node.ID, NodeType: string(node.Type),
				Msg: emit.MsgNodeRetry, Meta: map[string]interface{}{"attempt": attempt + 1, "last_error": err.Error()}})

			delay := computeBackoff(attempt-1, e.opts.Retry.BaseDelay, e.opts.Retry.MaxDelay, nil)
			timer := time.NewTimer(delay)
			select {
			case <-timer.C:
			case <-runCtx.Done():
				timer.Stop()
				return nil, classify(node, err)
			}
		}

		var out any
		out, err = evaluateWithTimeout(ctx, ev, inv, timeout)
		if err == nil {
			return out, nil
		}
		if attempt+1 >= attempts || !e.opts.Retry.retryable(err) || runCtx.Err() != nil {
			break
		}
	}
	return nil, classify(node, err)
}

// classify turns any evaluator error into an *EvalError for node.
func classify(node Node, err error) error {
	if err == nil {
		return nil
	}

	var evalErr *EvalError
	if errors.As(err, &evalErr) {
		if evalErr.NodeID == "" {
			c := *evalErr
			c.NodeID = node.ID
			return &c
		}
		return evalErr
	}

	if errors.Is(err, ErrInvalidRepoURL) {
		return &EvalError{NodeID: node.ID, Code: CodeInvalidURL, Message: err.Error(), Cause: err}
	}

	code := CodeInternal
	switch node.Type {
	case NodeSourceFetch:
		code = CodeFetchError
	case NodeTextGenerate, NodeImageGenerate:
		code = CodeProviderError
	case NodeMemoryCell:
		code = CodeMemoryError
	}
	return &EvalError{NodeID: node.ID, Code: code, Message: err.Error(), Cause: err}
}

// record appends a finished wave to the run and reports it.
func (ex *execution) record(results []NodeResult) {
	e := ex.engine
	for _, r := range results {
		ex.results[r.NodeID] = r
		ex.run.Results = append(ex.run.Results, r)

		ev := emit.Event{RunID: ex.run.ID, Wave: r.Wave, NodeID: r.NodeID, NodeType: string(r.NodeType)}
		switch r.Status {
		case StatusCompleted:
			ev.Msg = emit.MsgNodeCompleted
			ev.Meta = map[string]interface{}{"duration_ms": r.DurationMs}
			if text, ok := r.Output.(GeneratedText); ok && r.NodeType == NodeTextGenerate {
				ev.Meta["model"] = text.Model
				ev.Meta["tokens_in"] = text.InputTokens
				ev.Meta["tokens_out"] = text.OutputTokens
				if ex.cost != nil {
					ev.Meta["cost_usd"] = ex.cost.Record(r.NodeID, text)
				}
			}
		case StatusFailed:
			ev.Msg = emit.MsgNodeFailed
			ev.Meta = map[string]interface{}{"duration_ms": r.DurationMs, "error": r.Error}
			var evalErr *EvalError
			if errors.As(r.err, &evalErr) {
				ev.Meta["code"] = evalErr.Code
			}
		case StatusSkipped:
			ev.Msg = emit.MsgNodeSkipped
			ev.Meta = map[string]interface{}{"reason": r.SkipReason}
			if m := e.opts.Metrics; m != nil {
				label := "no_active_inputs"
				if _, ok := ex.failedBy[r.NodeID]; ok {
					label = "upstream_failed"
				}
				m.IncrementSkipped(label)
			}
		}
		e.emit(ev)
	}
}

// settle assembles the final output and decides the terminal status of a run
// that was not cancelled.
func (ex *execution) settle() {
	var outputs []string
	var blocked error
	produced := false

	for _, n := range ex.graph.Nodes {
		if n.Type != NodeOutput {
			continue
		}
		r := ex.results[n.ID]
		switch {
		case r.Status == StatusCompleted:
			produced = true
			outputs = append(outputs, Render(r.Output))
		case r.Status == StatusFailed && blocked == nil:
			blocked = r.err
		case r.Status == StatusSkipped && blocked == nil:
			if root, ok := ex.failedBy[n.ID]; ok {
				blocked = ex.results[root].err
			}
		}
	}

	ex.run.FinalOutput = strings.Join(outputs, inputSeparator)
	if !produced && blocked != nil {
		ex.run.fail(blocked)
		return
	}
	ex.run.Status = RunCompleted
}

// finish stamps the completion time and reports the terminal state.
func (e *Engine) finish(run *Run) {
	run.CompletedAt = time.Now().UTC()
	d := run.CompletedAt.Sub(run.StartedAt)

	ev := emit.Event{RunID: run.ID, Wave: -1, Meta: map[string]interface{}{
		"status":      string(run.Status),
		"duration_ms": d.Milliseconds(),
		"results":     len(run.Results),
	}}
	switch {
	case run.Status == RunCompleted:
		ev.Msg = emit.MsgRunCompleted
	case errors.Is(run.Err(), context.Canceled):
		ev.Msg = emit.MsgRunCancelled
		ev.Meta["error"] = run.Error
	default:
		ev.Msg = emit.MsgRunFailed
		ev.Meta["error"] = run.Error
	}
	if run.CostUSD > 0 {
		ev.Meta["cost_usd"] = run.CostUSD
	}
	e.emit(ev)

	if m := e.opts.Metrics; m != nil {
		m.RecordRun(run.Status, d)
	}
}

func (e *Engine) emit(ev emit.Event) {
	e.emitter.Emit(ev)
}

// String describes the engine configuration.
func (e *Engine) String() string {
	retries := 1
	if e.opts.Retry != nil {
		retries = e.opts.Retry.MaxAttempts
	}
	return fmt.Sprintf("Engine{MaxConcurrent: %d, NodeTimeout: %v, MaxAttempts: %d}",
		e.opts.MaxConcurrentNodes, e.opts.DefaultNodeTimeout, retries)
}
