package reload

import (
	"context"
	"time"

	"github.com/go-logr/logr"
	"k8s.io/apimachinery/pkg/util/wait"

	"configreload/pkg/core"
	"configreload/pkg/observability/metrics"
)

// PollingDetector re-fetches snapshots for its sources on a fixed period and
// emits a change signal whenever a fingerprint differs from the active one.
// All ticks run on a single goroutine, so a slow tick can never overlap the
// next one; missed ticks are skipped rather than queued.
type PollingDetector struct {
	kind     core.SourceKind
	sources  []core.SourceRef
	provider SnapshotProvider
	period   time.Duration
	active   *ActiveConfig
	sink     SignalSink
	logger   logr.Logger
}

var _ Detector = &PollingDetector{}

// NewPollingDetector constructs a polling detector for one source kind.
func NewPollingDetector(kind core.SourceKind, sources []core.SourceRef, provider SnapshotProvider,
	period time.Duration, active *ActiveConfig, sink SignalSink, logger logr.Logger) *PollingDetector {

	detector := &PollingDetector{
		kind:     kind,
		sources:  sources,
		provider: provider,
		period:   period,
		active:   active,
		sink:     sink,
	}
	detector.logger = logger.WithName("detector").WithValues("detector", detector.Name())
	return detector
}

// Name implements Detector.
func (detector *PollingDetector) Name() string {
	return "polling-" + string(detector.kind)
}

// Run ticks on the fixed period until ctx is cancelled.
func (detector *PollingDetector) Run(ctx context.Context) {
	detector.logger.Info("starting polling detector", "period", detector.period, "sources", len(detector.sources))
	wait.NonSlidingUntilWithContext(ctx, detector.tick, detector.period)
	detector.logger.Info("polling detector stopped")
}

// tick checks every monitored source once. A fetch failure skips that source
// for this tick only; detection resumes on the next tick.
func (detector *PollingDetector) tick(ctx context.Context) {
	for _, source := range detector.sources {
		if ctx.Err() != nil {
			return
		}
		snapshot, err := detector.provider.Fetch(ctx, source)
		if err != nil {
			category := core.ClassifyError(err)
			metrics.RecordFetchFailure(detector.kind, category)
			detector.logger.Error(err, "snapshot fetch failed, skipping until next tick",
				"source", source.String(), "category", string(category))
			continue
		}
		if snapshot.Fingerprint == detector.active.Get(source) {
			continue
		}
		detector.logger.Info("configuration change detected", "source", source.String())
		metrics.RecordChangeSignal(detector.Name())
		detector.sink.Submit(ctx, core.ChangeSignal{
			Source:      source,
			Fingerprint: snapshot.Fingerprint,
			DetectedAt:  time.Now(),
		})
	}
}
