package kube

import (
	"context"
	"fmt"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"

	"configreload/pkg/core"
)

// ConfigMapProvider materializes snapshots from ConfigMap objects through the
// typed clientset. Both string and binary entries contribute to the snapshot
// so any change to either is reflected in the fingerprint.
type ConfigMapProvider struct {
	client kubernetes.Interface
}

// NewConfigMapProvider constructs a provider backed by the given clientset.
func NewConfigMapProvider(client kubernetes.Interface) *ConfigMapProvider {
	return &ConfigMapProvider{client: client}
}

// Fetch returns the current content of the referenced ConfigMap.
func (provider *ConfigMapProvider) Fetch(ctx context.Context, source core.SourceRef) (core.Snapshot, error) {
	configMap, err := provider.client.CoreV1().ConfigMaps(source.Namespace).Get(ctx, source.Name, metav1.GetOptions{})
	if err != nil {
		return core.Snapshot{}, fmt.Errorf("fetch %s: %w", source, err)
	}
	data := make(map[string]string, len(configMap.Data)+len(configMap.BinaryData))
	for key, value := range configMap.Data {
		data[key] = value
	}
	for key, value := range configMap.BinaryData {
		data[key] = string(value)
	}
	return core.NewSnapshot(data), nil
}

// SecretProvider materializes snapshots from Secret objects. Values arrive
// base64-decoded from the API and enter the snapshot verbatim.
type SecretProvider struct {
	client kubernetes.Interface
}

// NewSecretProvider constructs a provider backed by the given clientset.
func NewSecretProvider(client kubernetes.Interface) *SecretProvider {
	return &SecretProvider{client: client}
}

// Fetch returns the current content of the referenced Secret.
func (provider *SecretProvider) Fetch(ctx context.Context, source core.SourceRef) (core.Snapshot, error) {
	secret, err := provider.client.CoreV1().Secrets(source.Namespace).Get(ctx, source.Name, metav1.GetOptions{})
	if err != nil {
		return core.Snapshot{}, fmt.Errorf("fetch %s: %w", source, err)
	}
	data := make(map[string]string, len(secret.Data))
	for key, value := range secret.Data {
		data[key] = string(value)
	}
	return core.NewSnapshot(data), nil
}
