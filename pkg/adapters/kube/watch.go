package kube

import (
	"context"
	"fmt"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/watch"
	"k8s.io/client-go/kubernetes"

	"configreload/pkg/core"
)

// Subscriber opens watch streams for ConfigMaps and Secrets through the typed
// clientset. The stream covers all objects of the kind in the namespace; the
// event detector filters by name.
type Subscriber struct {
	client kubernetes.Interface
}

// NewSubscriber constructs a Subscriber backed by the given clientset.
func NewSubscriber(client kubernetes.Interface) *Subscriber {
	return &Subscriber{client: client}
}

// Subscribe opens a watch stream for one source kind in one namespace.
func (subscriber *Subscriber) Subscribe(ctx context.Context, kind core.SourceKind, namespace string) (watch.Interface, error) {
	switch kind {
	case core.SourceKindConfigMap:
		stream, err := subscriber.client.CoreV1().ConfigMaps(namespace).Watch(ctx, metav1.ListOptions{})
		if err != nil {
			return nil, fmt.Errorf("watch configmaps in %s: %w", namespace, err)
		}
		return stream, nil
	case core.SourceKindSecret:
		stream, err := subscriber.client.CoreV1().Secrets(namespace).Watch(ctx, metav1.ListOptions{})
		if err != nil {
			return nil, fmt.Errorf("watch secrets in %s: %w", namespace, err)
		}
		return stream, nil
	}
	return nil, fmt.Errorf("unsupported source kind %q", kind)
}
