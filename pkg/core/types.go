package core

import (
	"fmt"
	"time"
)

// SourceKind identifies the kind of Kubernetes object backing a monitored source.
type SourceKind string

const (
	// SourceKindConfigMap monitors ConfigMap objects.
	SourceKindConfigMap SourceKind = "config-map"
	// SourceKindSecret monitors Secret objects.
	SourceKindSecret SourceKind = "secret"
)

// ParseSourceKind converts a configuration string into a SourceKind.
func ParseSourceKind(value string) (SourceKind, error) {
	switch SourceKind(value) {
	case SourceKindConfigMap, SourceKindSecret:
		return SourceKind(value), nil
	}
	return "", fmt.Errorf("unknown source kind %q (want %q or %q)", value, SourceKindConfigMap, SourceKindSecret)
}

// SourceRef identifies one monitored configuration object. It is immutable
// once constructed and comparable, so it can key maps directly.
type SourceRef struct {
	Kind      SourceKind
	Namespace string
	Name      string
}

// String renders the reference as kind:namespace/name.
func (r SourceRef) String() string {
	return fmt.Sprintf("%s:%s/%s", r.Kind, r.Namespace, r.Name)
}

// ChangeSignal notifies the reload coordinator that a monitored source's
// content has changed. Fingerprint carries the content hash of the snapshot
// that triggered the signal so the coordinator can record it as active after
// a successful reload.
type ChangeSignal struct {
	Source      SourceRef
	Fingerprint string
	DetectedAt  time.Time
}

// DetectionMode selects how changes to a source kind are detected.
type DetectionMode string

const (
	// DetectionModePolling re-fetches snapshots on a fixed period and compares.
	DetectionModePolling DetectionMode = "polling"
	// DetectionModeEvent subscribes to a watch stream and reacts to notifications.
	DetectionModeEvent DetectionMode = "event"
)

// ParseDetectionMode converts a configuration string into a DetectionMode.
func ParseDetectionMode(value string) (DetectionMode, error) {
	switch DetectionMode(value) {
	case DetectionModePolling, DetectionModeEvent:
		return DetectionMode(value), nil
	}
	return "", fmt.Errorf("unknown detection mode %q (want %q or %q)", value, DetectionModePolling, DetectionModeEvent)
}

// StrategyName selects how a detected change is applied to the running application.
type StrategyName string

const (
	// StrategyRefresh re-binds property sources in place without a restart.
	StrategyRefresh StrategyName = "refresh"
	// StrategyRestartContext restarts the in-process application context after a jitter wait.
	StrategyRestartContext StrategyName = "restart-context"
	// StrategyShutdown terminates the process after a jitter wait, delegating
	// the replacement to the surrounding orchestration.
	StrategyShutdown StrategyName = "shutdown"
)

// ParseStrategyName converts a configuration string into a StrategyName.
func ParseStrategyName(value string) (StrategyName, error) {
	switch StrategyName(value) {
	case StrategyRefresh, StrategyRestartContext, StrategyShutdown:
		return StrategyName(value), nil
	}
	return "", fmt.Errorf("unknown update strategy %q (want %q, %q or %q)",
		value, StrategyRefresh, StrategyRestartContext, StrategyShutdown)
}
