package graph

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"github.com/dshills/flowgraph/graph/model"
)

// RetryPolicy configures automatic retries of nodes that call an external
// collaborator (source-fetch, text-generate, image-generate).
//
// Backoff is exponential with jitter:
//
//	delay = min(BaseDelay * 2^attempt, MaxDelay) + rand(0, BaseDelay)
type RetryPolicy struct {
	// MaxAttempts counts the first call. 1 disables retries.
	MaxAttempts int

	BaseDelay time.Duration
	MaxDelay  time.Duration

	// Retryable decides whether an error may be retried. Nil uses IsTransient.
	Retryable func(error) bool
}

// DefaultRetryPolicy retries transient collaborator failures three times.
func DefaultRetryPolicy() *RetryPolicy {
	return &RetryPolicy{
		MaxAttempts: 3,
		BaseDelay:   250 * time.Millisecond,
		MaxDelay:    5 * time.Second,
	}
}

// Validate reports ErrInvalidRetryPolicy for unusable settings.
func (rp *RetryPolicy) Validate() error {
	if rp.MaxAttempts < 1 {
		return ErrInvalidRetryPolicy
	}
	if rp.MaxDelay > 0 && rp.BaseDelay > 0 && rp.MaxDelay < rp.BaseDelay {
		return ErrInvalidRetryPolicy
	}
	return nil
}

func (rp *RetryPolicy) retryable(err error) bool {
	if rp.Retryable != nil {
		return rp.Retryable(err)
	}
	return IsTransient(err)
}

// IsTransient classifies collaborator errors.
//
// Node timeouts, rate limits and server errors are transient. Errors an
// evaluator classified itself (*EvalError other than NODE_TIMEOUT), missing
// credentials, rejected repository references, oversized responses and
// caller cancellation are not. Unclassified errors, typically network
// failures, are treated as transient.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var evalErr *EvalError
	if errors.As(err, &evalErr) {
		return evalErr.Code == CodeNodeTimeout
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, model.ErrMissingAPIKey) ||
		errors.Is(err, ErrInvalidRepoURL) || errors.Is(err, ErrBodyTooLarge) {
		return false
	}

	var provErr *model.ProviderError
	if errors.As(err, &provErr) {
		return provErr.Retryable
	}

	var r interface{ Retryable() bool }
	if errors.As(err, &r) {
		return r.Retryable()
	}
	return true
}

// computeBackoff returns the delay before retry number attempt (zero-based).
// rng may be nil to use the global source.
func computeBackoff(attempt int, base, maxDelay time.Duration, rng *rand.Rand) time.Duration {
	if base <= 0 {
		return 0
	}
	delay := base << attempt
	if maxDelay > 0 && (delay > maxDelay || delay <= 0) {
		delay = maxDelay
	}

	var jitter time.Duration
	if rng != nil {
		jitter = time.Duration(rng.Int63n(int64(base)))
	} else {
		jitter = time.Duration(rand.Int63n(int64(base))) // #nosec G404 -- jitter for retry timing, not security
	}
	return delay + jitter
}
