package reload

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-logr/logr"

	"configreload/pkg/core"
	"configreload/pkg/observability/metrics"
)

// OutcomeHook observes the result of each strategy execution. Wiring uses it
// to post Kubernetes Events on the source object; a nil hook is ignored.
type OutcomeHook func(signal core.ChangeSignal, strategy core.StrategyName, err error)

// Coordinator serializes strategy executions: at most one runs at any
// instant, and at most one signal is retained as pending while one runs.
// A burst of signals therefore collapses into the in-flight execution plus
// exactly one follow-up. Submit never blocks the calling detector.
type Coordinator struct {
	strategy *Strategy
	active   *ActiveConfig
	logger   logr.Logger
	outcome  OutcomeHook

	mu      sync.Mutex
	running bool
	pending *pendingSignal
}

type pendingSignal struct {
	ctx    context.Context
	signal core.ChangeSignal
}

var _ SignalSink = &Coordinator{}

// NewCoordinator constructs a Coordinator for the configured strategy.
func NewCoordinator(strategy *Strategy, active *ActiveConfig, logger logr.Logger, outcome OutcomeHook) *Coordinator {
	return &Coordinator{
		strategy: strategy,
		active:   active,
		logger:   logger.WithName("coordinator"),
		outcome:  outcome,
	}
}

// Submit hands a change signal to the coordinator. If an execution is in
// flight the signal replaces any previously pending one; otherwise execution
// starts on a fresh goroutine and Submit returns immediately.
func (coordinator *Coordinator) Submit(ctx context.Context, signal core.ChangeSignal) {
	coordinator.mu.Lock()
	defer coordinator.mu.Unlock()

	if coordinator.running {
		metrics.RecordCoalescedSignal()
		coordinator.pending = &pendingSignal{ctx: ctx, signal: signal}
		coordinator.logger.V(1).Info("reload in flight, signal held as pending", "source", signal.Source.String())
		return
	}
	coordinator.running = true
	go coordinator.execute(ctx, signal)
}

// execute runs strategy executions until no pending signal remains. The
// running flag is released on every path out of the loop.
func (coordinator *Coordinator) execute(ctx context.Context, signal core.ChangeSignal) {
	for {
		coordinator.runOnce(ctx, signal)

		coordinator.mu.Lock()
		if coordinator.pending != nil {
			next := coordinator.pending
			coordinator.pending = nil
			coordinator.mu.Unlock()
			ctx, signal = next.ctx, next.signal
			continue
		}
		coordinator.running = false
		coordinator.mu.Unlock()
		return
	}
}

// runOnce applies the strategy for one signal. A panicking endpoint is
// contained here so the execution right is still released and the
// coordinator stays usable for the next signal.
func (coordinator *Coordinator) runOnce(ctx context.Context, signal core.ChangeSignal) {
	logger := coordinator.logger.WithValues("source", signal.Source.String(), "strategy", string(coordinator.strategy.Name()))

	started := time.Now()
	err := coordinator.applyContained(ctx)
	duration := time.Since(started)

	metrics.RecordReload(coordinator.strategy.Name(), duration, err)
	switch {
	case err == nil:
		coordinator.active.commit(signal.Source, signal.Fingerprint)
		logger.Info("configuration reload applied", "duration", duration)
	case ctx.Err() != nil:
		logger.Info("configuration reload abandoned, process shutting down")
	default:
		// Not retried for this signal; the application keeps running under the
		// old configuration until the next detection.
		logger.Error(err, "configuration reload failed")
	}

	if coordinator.outcome != nil {
		coordinator.notifyOutcome(logger, signal, err)
	}
}

// notifyOutcome invokes the outcome hook with its own panic containment so a
// misbehaving hook cannot take down the execute goroutine while running is
// still held.
func (coordinator *Coordinator) notifyOutcome(logger logr.Logger, signal core.ChangeSignal, err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			logger.Error(fmt.Errorf("outcome hook panicked: %v", recovered), "reload outcome notification failed")
		}
	}()
	coordinator.outcome(signal, coordinator.strategy.Name(), err)
}

func (coordinator *Coordinator) applyContained(ctx context.Context) (err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			err = fmt.Errorf("update strategy panicked: %v", recovered)
		}
	}()
	return coordinator.strategy.Apply(ctx)
}
