package graph

import (
	"time"

	"github.com/google/uuid"
)

// Options configures an Engine. Use the With* functions rather than setting
// fields directly.
type Options struct {
	// MaxConcurrentNodes bounds how many nodes of one wave evaluate at the
	// same time. Default 8.
	MaxConcurrentNodes int

	// DefaultNodeTimeout bounds each attempt of a collaborator-backed node.
	// Zero disables the timeout. Default 2m.
	DefaultNodeTimeout time.Duration

	// NodeTimeouts overrides DefaultNodeTimeout per node type.
	NodeTimeouts map[NodeType]time.Duration

	// Retry is nil to disable retries.
	Retry *RetryPolicy

	// RunWallClockBudget bounds a whole run; it is checked between waves.
	// Zero means unlimited.
	RunWallClockBudget time.Duration

	Metrics *PrometheusMetrics

	// CostTracking records token usage of text-generate nodes and fills
	// Run.CostUSD.
	CostTracking bool
	Pricing      map[string]ModelPricing

	// NewID generates run ids. Default uuid.NewString.
	NewID func() string
}

func defaultOptions() Options {
	return Options{
		MaxConcurrentNodes: 8,
		DefaultNodeTimeout: 2 * time.Minute,
		NewID:              uuid.NewString,
	}
}

// Option mutates the engine configuration and may reject invalid values.
type Option func(*engineConfig) error

type engineConfig struct {
	opts Options
}

// WithMaxConcurrent sets how many nodes of one wave run at the same time.
//
// Default: 8. Waves wider than the limit queue their remaining nodes; the
// next wave still starts only after every node of the current one settles.
// Provider rate limits are usually the binding constraint for text-generate
// heavy graphs.
//
// Example:
//
//	engine, err := graph.New(registry, memory, emitter,
//		graph.WithMaxConcurrent(4),
//	)
func WithMaxConcurrent(n int) Option {
	return func(cfg *engineConfig) error {
		if n < 1 {
			return &EngineError{Message: "max concurrent nodes must be >= 1", Code: "INVALID_OPTION"}
		}
		cfg.opts.MaxConcurrentNodes = n
		return nil
	}
}

// WithDefaultNodeTimeout sets the per-attempt timeout of collaborator-backed
// nodes. Zero disables it.
func WithDefaultNodeTimeout(d time.Duration) Option {
	return func(cfg *engineConfig) error {
		if d < 0 {
			return &EngineError{Message: "node timeout must not be negative", Code: "INVALID_OPTION"}
		}
		cfg.opts.DefaultNodeTimeout = d
		return nil
	}
}

// WithNodeTimeout overrides the timeout for one node type.
func WithNodeTimeout(t NodeType, d time.Duration) Option {
	return func(cfg *engineConfig) error {
		if !t.External() {
			return &EngineError{Message: "timeouts apply only to collaborator-backed node types, not " + string(t), Code: "INVALID_OPTION"}
		}
		if cfg.opts.NodeTimeouts == nil {
			cfg.opts.NodeTimeouts = make(map[NodeType]time.Duration)
		}
		cfg.opts.NodeTimeouts[t] = d
		return nil
	}
}

// WithRetryPolicy enables retries of collaborator-backed nodes. A nil policy
// disables them.
//
// Only transient failures are retried (see IsTransient). Set Retryable on the
// policy to override that classification.
//
// Example:
//
//	graph.WithRetryPolicy(&graph.RetryPolicy{
//		MaxAttempts: 3,
//		BaseDelay:   500 * time.Millisecond,
//		MaxDelay:    5 * time.Second,
//	})
func WithRetryPolicy(p *RetryPolicy) Option {
	return func(cfg *engineConfig) error {
		if p != nil {
			if err := p.Validate(); err != nil {
				return err
			}
		}
		cfg.opts.Retry = p
		return nil
	}
}

// WithRunWallClockBudget bounds the duration of a run. When it expires the
// run is cancelled and its error wraps ErrRunBudgetExceeded. Zero means no
// bound.
func WithRunWallClockBudget(d time.Duration) Option {
	return func(cfg *engineConfig) error {
		cfg.opts.RunWallClockBudget = d
		return nil
	}
}

// WithMetrics records Prometheus metrics for every run.
func WithMetrics(metrics *PrometheusMetrics) Option {
	return func(cfg *engineConfig) error {
		cfg.opts.Metrics = metrics
		return nil
	}
}

// WithCostTracking turns on per-run token cost accounting. A nil pricing
// table uses the built-in one.
//
// Pricing keys are model name prefixes; the longest matching prefix wins.
//
// Example:
//
//	graph.WithCostTracking(map[string]graph.ModelPricing{
//		"gpt-4o": {InputPer1M: 2.50, OutputPer1M: 10.00},
//	})
func WithCostTracking(pricing map[string]ModelPricing) Option {
	return func(cfg *engineConfig) error {
		cfg.opts.CostTracking = true
		cfg.opts.Pricing = pricing
		return nil
	}
}

// WithIDGenerator replaces the run id generator, mostly for tests.
func WithIDGenerator(fn func() string) Option {
	return func(cfg *engineConfig) error {
		if fn == nil {
			return &EngineError{Message: "id generator must not be nil", Code: "INVALID_OPTION"}
		}
		cfg.opts.NewID = fn
		return nil
	}
}
