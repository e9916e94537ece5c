package reload

import (
	"context"
	"sync"
	"time"

	"github.com/go-logr/logr"
	"k8s.io/apimachinery/pkg/api/meta"
	"k8s.io/apimachinery/pkg/watch"

	"configreload/pkg/core"
	"configreload/pkg/observability/metrics"
)

const (
	defaultReconnectBase = time.Second
	defaultReconnectCap  = 30 * time.Second
)

// EventDetector subscribes to one watch stream per monitored namespace and
// translates notifications for monitored objects into change signals. A
// broken or closed stream is reopened after an exponential backoff with a
// ceiling; the detector never gives up until ctx is cancelled.
type EventDetector struct {
	kind       core.SourceKind
	provider   SnapshotProvider
	subscriber WatchSubscriber
	active     *ActiveConfig
	sink       SignalSink
	logger     logr.Logger

	// namespace -> object name -> monitored source
	monitored map[string]map[string]core.SourceRef

	reconnectBase time.Duration
	reconnectCap  time.Duration
}

var _ Detector = &EventDetector{}

// NewEventDetector constructs an event detector for one source kind.
func NewEventDetector(kind core.SourceKind, sources []core.SourceRef, provider SnapshotProvider,
	subscriber WatchSubscriber, active *ActiveConfig, sink SignalSink, logger logr.Logger) *EventDetector {

	monitored := make(map[string]map[string]core.SourceRef)
	for _, source := range sources {
		byName := monitored[source.Namespace]
		if byName == nil {
			byName = make(map[string]core.SourceRef)
			monitored[source.Namespace] = byName
		}
		byName[source.Name] = source
	}

	detector := &EventDetector{
		kind:          kind,
		provider:      provider,
		subscriber:    subscriber,
		active:        active,
		sink:          sink,
		monitored:     monitored,
		reconnectBase: defaultReconnectBase,
		reconnectCap:  defaultReconnectCap,
	}
	detector.logger = logger.WithName("detector").WithValues("detector", detector.Name())
	return detector
}

// Name implements Detector.
func (detector *EventDetector) Name() string {
	return "event-" + string(detector.kind)
}

// Run starts one watch loop per monitored namespace and blocks until every
// loop has returned after ctx cancellation.
func (detector *EventDetector) Run(ctx context.Context) {
	detector.logger.Info("starting event detector", "namespaces", len(detector.monitored))

	var group sync.WaitGroup
	for namespace := range detector.monitored {
		group.Add(1)
		go func(namespace string) {
			defer group.Done()
			detector.watchNamespace(ctx, namespace)
		}(namespace)
	}
	group.Wait()
	detector.logger.Info("event detector stopped")
}

// watchNamespace holds the connect / watch / disconnect state machine for one
// namespace. A stream that delivered at least one event, or that stayed up
// longer than the backoff ceiling, resets the backoff; connect failures and
// short silent closes double it up to the cap. The second reset condition
// matters for quiet namespaces, where the API server closes idle watches on
// its own timeout and a healthy stream may never carry an event.
func (detector *EventDetector) watchNamespace(ctx context.Context, namespace string) {
	logger := detector.logger.WithValues("namespace", namespace)
	delay := detector.reconnectBase

	for ctx.Err() == nil {
		stream, err := detector.subscriber.Subscribe(ctx, detector.kind, namespace)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			metrics.RecordWatchReconnect(detector.kind)
			logger.Error(err, "watch connect failed, backing off", "delay", delay)
			if !sleepInterruptible(ctx, delay) {
				return
			}
			delay = nextReconnectDelay(delay, detector.reconnectCap)
			continue
		}

		logger.V(1).Info("watch stream established")
		connected := time.Now()
		delivered := detector.consume(ctx, namespace, stream)
		if ctx.Err() != nil {
			return
		}

		metrics.RecordWatchReconnect(detector.kind)
		if delivered || time.Since(connected) > detector.reconnectCap {
			delay = detector.reconnectBase
			logger.V(1).Info("watch stream closed, reconnecting")
			continue
		}
		logger.Info("watch stream closed without events, backing off", "delay", delay)
		if !sleepInterruptible(ctx, delay) {
			return
		}
		delay = nextReconnectDelay(delay, detector.reconnectCap)
	}
}

// consume drains the stream until it closes or ctx is cancelled. It reports
// whether any event arrived, which the caller uses to reset the backoff.
func (detector *EventDetector) consume(ctx context.Context, namespace string, stream watch.Interface) bool {
	defer stream.Stop()

	delivered := false
	for {
		select {
		case <-ctx.Done():
			return delivered
		case event, ok := <-stream.ResultChan():
			if !ok {
				return delivered
			}
			delivered = true
			detector.handleEvent(ctx, namespace, event)
		}
	}
}

// handleEvent filters one notification and emits a change signal when a
// monitored object's content fingerprint differs from the active one.
func (detector *EventDetector) handleEvent(ctx context.Context, namespace string, event watch.Event) {
	switch event.Type {
	case watch.Added, watch.Modified, watch.Deleted:
	case watch.Bookmark:
		detector.logger.V(2).Info("ignoring bookmark event")
		return
	default:
		detector.logger.V(1).Info("ignoring watch event", "type", string(event.Type))
		return
	}

	accessor, err := meta.Accessor(event.Object)
	if err != nil {
		detector.logger.Error(err, "watch event carried a non-object payload")
		return
	}
	source, monitored := detector.monitored[namespace][accessor.GetName()]
	if !monitored {
		detector.logger.V(2).Info("ignoring event for unmonitored object", "name", accessor.GetName())
		return
	}

	snapshot := core.EmptySnapshot()
	if event.Type != watch.Deleted {
		snapshot, err = detector.provider.Fetch(ctx, source)
		if err != nil {
			category := core.ClassifyError(err)
			metrics.RecordFetchFailure(detector.kind, category)
			detector.logger.Error(err, "snapshot fetch failed for watch event",
				"source", source.String(), "category", string(category))
			return
		}
	}
	if snapshot.Fingerprint == detector.active.Get(source) {
		return
	}

	detector.logger.Info("configuration change detected", "source", source.String(), "event", string(event.Type))
	metrics.RecordChangeSignal(detector.Name())
	detector.sink.Submit(ctx, core.ChangeSignal{
		Source:      source,
		Fingerprint: snapshot.Fingerprint,
		DetectedAt:  time.Now(),
	})
}

// nextReconnectDelay doubles the delay up to the ceiling.
func nextReconnectDelay(current, ceiling time.Duration) time.Duration {
	next := current * 2
	if next > ceiling {
		return ceiling
	}
	return next
}

// sleepInterruptible waits for the duration or until ctx is cancelled. It
// reports false when interrupted by cancellation.
func sleepInterruptible(ctx context.Context, duration time.Duration) bool {
	if duration <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(duration)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
