package reload

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"configreload/pkg/core"
)

// Endpoints collects the application collaborators a strategy may invoke.
// Refresh re-binds property sources in place; Restart tears down and rebuilds
// the in-process context; Shutdown terminates the process so the surrounding
// orchestration replaces it.
type Endpoints struct {
	Refresh  func(ctx context.Context) error
	Restart  func(ctx context.Context) error
	Shutdown func(ctx context.Context) error
}

// Jitter produces the randomized wait applied before the disruptive
// strategies, so that replicas detecting the same change do not restart at
// the same instant. The wait is uniform in [0, MaxWait) and interruptible.
type Jitter struct {
	MaxWait time.Duration
	// Rand returns a non-negative value below its argument. Defaults to
	// rand.Int63n; tests inject a deterministic source.
	Rand func(int64) int64
}

// Duration draws one wait from the jitter distribution. MaxWait <= 0 always
// yields zero.
func (jitter Jitter) Duration() time.Duration {
	if jitter.MaxWait <= 0 {
		return 0
	}
	draw := jitter.Rand
	if draw == nil {
		draw = rand.Int63n
	}
	return time.Duration(draw(int64(jitter.MaxWait)))
}

// Wait sleeps for one drawn duration. Cancellation aborts the wait early and
// returns ctx.Err(); callers treat that as a shutdown in progress, not a
// failure.
func (jitter Jitter) Wait(ctx context.Context) error {
	duration := jitter.Duration()
	if duration == 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(duration)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Strategy is the single configured way of applying a detected change.
// Exactly one is built at startup and stays fixed for the process lifetime.
type Strategy struct {
	name  core.StrategyName
	apply func(ctx context.Context) error
}

// Name returns the configured strategy name.
func (strategy *Strategy) Name() core.StrategyName {
	return strategy.name
}

// Apply executes the strategy action. A ctx.Err() return means the process
// was shutting down and the action was skipped.
func (strategy *Strategy) Apply(ctx context.Context) error {
	return strategy.apply(ctx)
}

// NewStrategy assembles the configured update strategy. A missing collaborator
// for the selected strategy is a configuration error surfaced here, before any
// detector starts, never deferred to reload time.
func NewStrategy(name core.StrategyName, jitter Jitter, endpoints Endpoints) (*Strategy, error) {
	switch name {
	case core.StrategyRefresh:
		if endpoints.Refresh == nil {
			return nil, fmt.Errorf("strategy %q selected but no refresh endpoint is registered", name)
		}
		return &Strategy{name: name, apply: endpoints.Refresh}, nil

	case core.StrategyRestartContext:
		if endpoints.Restart == nil {
			return nil, fmt.Errorf("strategy %q selected but no restart endpoint is registered", name)
		}
		return &Strategy{name: name, apply: jittered(jitter, endpoints.Restart)}, nil

	case core.StrategyShutdown:
		if endpoints.Shutdown == nil {
			return nil, fmt.Errorf("strategy %q selected but no shutdown endpoint is registered", name)
		}
		return &Strategy{name: name, apply: jittered(jitter, endpoints.Shutdown)}, nil
	}
	return nil, fmt.Errorf("unsupported update strategy %q", name)
}

// jittered wraps a disruptive action with the randomized wait. When the wait
// is interrupted by cancellation the action is skipped entirely: the process
// is already terminating and must not restart itself on the way out.
func jittered(jitter Jitter, action func(ctx context.Context) error) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		if err := jitter.Wait(ctx); err != nil {
			return err
		}
		return action(ctx)
	}
}
