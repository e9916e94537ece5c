package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	ctrlmetrics "sigs.k8s.io/controller-runtime/pkg/metrics"

	"configreload/pkg/core"
)

var (
	registerOnce sync.Once

	changeSignalsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "configreload_change_signals_total",
		Help: "Total number of change signals emitted, grouped by detector.",
	}, []string{"detector"})

	coalescedSignalsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "configreload_coalesced_signals_total",
		Help: "Total number of change signals coalesced into an already pending reload.",
	})

	fetchFailuresTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "configreload_fetch_failures_total",
		Help: "Total number of snapshot fetch failures, grouped by source kind and error category.",
	}, []string{"kind", "category"})

	watchReconnectsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "configreload_watch_reconnects_total",
		Help: "Total number of watch stream reconnect attempts, grouped by source kind.",
	}, []string{"kind"})

	reloadsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "configreload_reloads_total",
		Help: "Total number of update strategy executions, grouped by strategy and result.",
	}, []string{"strategy", "result"})

	reloadDurationSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "configreload_reload_duration_seconds",
		Help:    "Histogram of update strategy execution duration in seconds, including the jitter wait.",
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
	})
)

func ensureRegistered() {
	registerOnce.Do(func() {
		ctrlmetrics.Registry.MustRegister(changeSignalsTotal, coalescedSignalsTotal,
			fetchFailuresTotal, watchReconnectsTotal, reloadsTotal, reloadDurationSeconds)
	})
}

// RecordChangeSignal counts a change signal emitted by the named detector.
func RecordChangeSignal(detector string) {
	ensureRegistered()
	changeSignalsTotal.WithLabelValues(detector).Inc()
}

// RecordCoalescedSignal counts a signal that was folded into the pending slot.
func RecordCoalescedSignal() {
	ensureRegistered()
	coalescedSignalsTotal.Inc()
}

// RecordFetchFailure counts a snapshot fetch failure by kind and error category.
func RecordFetchFailure(kind core.SourceKind, category core.ErrorCategory) {
	ensureRegistered()
	fetchFailuresTotal.WithLabelValues(string(kind), string(category)).Inc()
}

// RecordWatchReconnect counts a watch stream reconnect attempt.
func RecordWatchReconnect(kind core.SourceKind) {
	ensureRegistered()
	watchReconnectsTotal.WithLabelValues(string(kind)).Inc()
}

// RecordReload updates the reload metrics for one strategy execution.
func RecordReload(strategy core.StrategyName, duration time.Duration, reloadErr error) {
	ensureRegistered()

	outcome := "success"
	if reloadErr != nil {
		outcome = "error"
	}
	reloadsTotal.WithLabelValues(string(strategy), outcome).Inc()
	reloadDurationSeconds.Observe(duration.Seconds())
}
