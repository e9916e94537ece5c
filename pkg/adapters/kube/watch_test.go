package kube_test

import (
	"context"
	"testing"
	"time"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/watch"
	"k8s.io/client-go/kubernetes/fake"

	kube "configreload/pkg/adapters/kube"
	core "configreload/pkg/core"
)

func TestSubscriberDeliversConfigMapEvents(t *testing.T) {
	clientset := fake.NewSimpleClientset()
	subscriber := kube.NewSubscriber(clientset)

	stream, err := subscriber.Subscribe(context.Background(), core.SourceKindConfigMap, "default")
	if err != nil {
		t.Fatalf("unexpected subscribe error: %v", err)
	}
	defer stream.Stop()

	_, err = clientset.CoreV1().ConfigMaps("default").Create(context.Background(), &corev1.ConfigMap{
		ObjectMeta: metav1.ObjectMeta{Namespace: "default", Name: "app-config"},
		Data:       map[string]string{"level": "info"},
	}, metav1.CreateOptions{})
	if err != nil {
		t.Fatalf("unexpected create error: %v", err)
	}

	select {
	case event := <-stream.ResultChan():
		if event.Type != watch.Added {
			t.Fatalf("expected Added event, got %s", event.Type)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("no event delivered on the watch stream")
	}
}

func TestSubscriberRejectsUnknownKind(t *testing.T) {
	subscriber := kube.NewSubscriber(fake.NewSimpleClientset())
	if _, err := subscriber.Subscribe(context.Background(), core.SourceKind("pod"), "default"); err == nil {
		t.Fatalf("expected error for unsupported kind")
	}
}
