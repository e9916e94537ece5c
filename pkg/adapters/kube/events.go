package kube

import (
	"context"
	"errors"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/client-go/tools/record"

	"configreload/pkg/core"
)

// Recorder posts Kubernetes Events on the monitored source object when a
// reload is applied or fails, so the outcome is visible next to the object
// that triggered it.
//
// The methods guard against nil receivers so tests can pass a nil recorder
// when event emission is not under test.
type Recorder struct {
	recorder record.EventRecorder
}

// NewRecorder constructs a Recorder from the provided EventRecorder.
func NewRecorder(recorder record.EventRecorder) *Recorder {
	return &Recorder{recorder: recorder}
}

// ReloadOutcome records the result of one strategy execution against the
// source object. Executions abandoned because the process is shutting down
// are not recorded.
func (r *Recorder) ReloadOutcome(signal core.ChangeSignal, strategy core.StrategyName, reloadErr error) {
	if r == nil || r.recorder == nil {
		return
	}
	if errors.Is(reloadErr, context.Canceled) || errors.Is(reloadErr, context.DeadlineExceeded) {
		return
	}
	object := sourceObject(signal.Source)
	if reloadErr != nil {
		r.recorder.Eventf(object, corev1.EventTypeWarning, "ReloadFailed",
			"%s reload for %s failed: %v", strategy, signal.Source, reloadErr)
		return
	}
	r.recorder.Eventf(object, corev1.EventTypeNormal, "ReloadApplied",
		"%s reload applied for %s", strategy, signal.Source)
}

// sourceObject builds a skeleton object carrying just the identity the event
// machinery needs to resolve a reference.
func sourceObject(source core.SourceRef) runtime.Object {
	objectMeta := metav1.ObjectMeta{Namespace: source.Namespace, Name: source.Name}
	if source.Kind == core.SourceKindSecret {
		return &corev1.Secret{ObjectMeta: objectMeta}
	}
	return &corev1.ConfigMap{ObjectMeta: objectMeta}
}
