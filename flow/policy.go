package flow

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RetryPolicy configures a BackoffPipeline's retry behavior.
type RetryPolicy struct {
	// MaxAttempts is the maximum number of execution attempts, including the
	// first. Must be >= 1; 1 means no retries.
	MaxAttempts int
	// BaseDelay is the initial backoff interval. Zero uses a 500ms default.
	BaseDelay time.Duration
	// MaxDelay caps the backoff interval. Zero uses a 30s default.
	MaxDelay time.Duration
	// Retryable reports whether an error should be retried. Nil retries
	// every error until MaxAttempts is reached.
	Retryable func(error) bool
}

// Validate reports whether the policy's fields are internally consistent.
func (rp *RetryPolicy) Validate() error {
	if rp.MaxAttempts < 1 {
		return ErrInvalidRetryPolicy
	}
	if rp.MaxDelay > 0 && rp.BaseDelay > 0 && rp.MaxDelay < rp.BaseDelay {
		return ErrInvalidRetryPolicy
	}
	return nil
}

// Pipeline wraps a single step body invocation with resilience behavior
// (retry, backoff, or nothing at all).
type Pipeline interface {
	ExecuteAsync(ctx context.Context, body func(ctx context.Context) error) error
}

// ResiliencePipelineProvider resolves a named Pipeline for a step. The name
// passed is the step's name, letting hosts configure per-step policies.
type ResiliencePipelineProvider interface {
	Get(name string) Pipeline
}

// NoOpPipeline runs the body exactly once: the default when no resilience
// policy is configured.
type NoOpPipeline struct{}

func (NoOpPipeline) ExecuteAsync(ctx context.Context, body func(ctx context.Context) error) error {
	return body(ctx)
}

type noOpProvider struct{}

func (noOpProvider) Get(string) Pipeline { return NoOpPipeline{} }

// NewNoOpProvider returns a ResiliencePipelineProvider whose Get always
// returns a NoOpPipeline.
func NewNoOpProvider() ResiliencePipelineProvider { return noOpProvider{} }

// BackoffPipeline retries a failing body with exponential backoff and
// jitter, built on github.com/cenkalti/backoff/v4.
type BackoffPipeline struct {
	policy  RetryPolicy
	onRetry func(attempt int, err error)
}

// NewBackoffPipeline returns a BackoffPipeline governed by policy.
func NewBackoffPipeline(policy RetryPolicy) *BackoffPipeline {
	return &BackoffPipeline{policy: policy}
}

// OnRetry registers a callback invoked before each retry attempt (attempt is
// 1-based, counting the attempt that just failed).
func (p *BackoffPipeline) OnRetry(fn func(attempt int, err error)) *BackoffPipeline {
	p.onRetry = fn
	return p
}

func durationOr(d, fallback time.Duration) time.Duration {
	if d <= 0 {
		return fallback
	}
	return d
}

func (p *BackoffPipeline) ExecuteAsync(ctx context.Context, body func(ctx context.Context) error) error {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = durationOr(p.policy.BaseDelay, 500*time.Millisecond)
	eb.MaxInterval = durationOr(p.policy.MaxDelay, 30*time.Second)
	eb.MaxElapsedTime = 0
	wrapped := backoff.WithContext(eb, ctx)

	attempt := 0
	op := func() error {
		attempt++
		err := body(ctx)
		if err == nil {
			return nil
		}
		if attempt >= p.policy.MaxAttempts {
			return backoff.Permanent(err)
		}
		if p.policy.Retryable != nil && !p.policy.Retryable(err) {
			return backoff.Permanent(err)
		}
		if p.onRetry != nil {
			p.onRetry(attempt, err)
		}
		return err
	}
	return backoff.Retry(op, wrapped)
}

// mapProvider resolves per-step pipelines registered by name, falling back
// to a default for unregistered names.
type mapProvider struct {
	pipelines map[string]Pipeline
	def       Pipeline
}

// NewResiliencePipelineProvider returns a ResiliencePipelineProvider backed
// by a name-to-pipeline map, falling back to def (NoOpPipeline{} if nil).
func NewResiliencePipelineProvider(def Pipeline) *mapProvider {
	if def == nil {
		def = NoOpPipeline{}
	}
	return &mapProvider{pipelines: make(map[string]Pipeline), def: def}
}

// Register associates name with pl, overriding the default for that name.
func (p *mapProvider) Register(name string, pl Pipeline) *mapProvider {
	p.pipelines[name] = pl
	return p
}

func (p *mapProvider) Get(name string) Pipeline {
	if pl, ok := p.pipelines[name]; ok {
		return pl
	}
	return p.def
}
