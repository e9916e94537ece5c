package reload

import (
	"context"
	"fmt"
	"time"

	"github.com/go-logr/logr"
	"k8s.io/apimachinery/pkg/watch"

	"configreload/pkg/core"
)

// SnapshotProvider materializes the current content of a monitored source.
// Implementations live in pkg/adapters; failures are classified and recovered
// by the detectors, never propagated.
type SnapshotProvider interface {
	Fetch(ctx context.Context, source core.SourceRef) (core.Snapshot, error)
}

// WatchSubscriber opens a long-lived watch stream for all objects of a source
// kind in one namespace. The returned stream ends when the server closes it,
// on error, or when Stop is called; the EventDetector owns reconnects.
type WatchSubscriber interface {
	Subscribe(ctx context.Context, kind core.SourceKind, namespace string) (watch.Interface, error)
}

// SignalSink accepts change signals for reload coordination. Submission must
// never block the calling detector. Implemented by *Coordinator.
type SignalSink interface {
	Submit(ctx context.Context, signal core.ChangeSignal)
}

// Detector is a background change detection loop. Run blocks until ctx is
// cancelled; it never returns early on its own.
type Detector interface {
	// Name identifies the detector in logs and metrics, e.g. "event-secret".
	Name() string
	Run(ctx context.Context)
}

// Options selects and parameterizes the detector variants to build. The
// closed set of variants is {polling, event} x {config-map, secret}; a kind
// with no configured sources gets no detector.
type Options struct {
	ConfigMapMode core.DetectionMode
	SecretMode    core.DetectionMode
	PollPeriod    time.Duration
	Sources       []core.SourceRef
}

// Deps carries the collaborators shared by all detectors.
type Deps struct {
	ConfigMapProvider SnapshotProvider
	SecretProvider    SnapshotProvider
	Subscriber        WatchSubscriber
	Active            *ActiveConfig
	Sink              SignalSink
	Logger            logr.Logger
}

// BuildDetectors constructs one detector per source kind that has monitored
// sources, according to the configured detection mode for that kind.
func BuildDetectors(options Options, deps Deps) ([]Detector, error) {
	byKind := make(map[core.SourceKind][]core.SourceRef)
	for _, source := range options.Sources {
		byKind[source.Kind] = append(byKind[source.Kind], source)
	}

	providers := map[core.SourceKind]SnapshotProvider{
		core.SourceKindConfigMap: deps.ConfigMapProvider,
		core.SourceKindSecret:    deps.SecretProvider,
	}
	modes := map[core.SourceKind]core.DetectionMode{
		core.SourceKindConfigMap: options.ConfigMapMode,
		core.SourceKindSecret:    options.SecretMode,
	}

	var detectors []Detector
	for _, kind := range []core.SourceKind{core.SourceKindConfigMap, core.SourceKindSecret} {
		sources := byKind[kind]
		if len(sources) == 0 {
			continue
		}
		provider := providers[kind]
		if provider == nil {
			return nil, fmt.Errorf("no snapshot provider for source kind %q", kind)
		}
		switch modes[kind] {
		case core.DetectionModePolling:
			if options.PollPeriod <= 0 {
				return nil, fmt.Errorf("poll period must be positive for kind %q, got %s", kind, options.PollPeriod)
			}
			detectors = append(detectors, NewPollingDetector(kind, sources, provider,
				options.PollPeriod, deps.Active, deps.Sink, deps.Logger))
		case core.DetectionModeEvent:
			if deps.Subscriber == nil {
				return nil, fmt.Errorf("no watch subscriber for source kind %q", kind)
			}
			detectors = append(detectors, NewEventDetector(kind, sources, provider,
				deps.Subscriber, deps.Active, deps.Sink, deps.Logger))
		default:
			return nil, fmt.Errorf("unknown detection mode %q for source kind %q", modes[kind], kind)
		}
	}
	return detectors, nil
}
