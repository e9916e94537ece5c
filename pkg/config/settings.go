package config

import (
	"fmt"
	"time"

	"configreload/pkg/core"
)

// Source configures one monitored configuration object.
type Source struct {
	Kind      string `mapstructure:"kind"`
	Namespace string `mapstructure:"namespace"`
	Name      string `mapstructure:"name"`
}

// Settings is the full configuration surface of the reload control loop. It
// is assembled by wiring code from a config file, environment variables and
// flags; the control loop itself only ever sees the validated, typed values.
type Settings struct {
	// ConfigMapMode and SecretMode select the detection mode per source kind.
	ConfigMapMode string `mapstructure:"configmap_mode"`
	SecretMode    string `mapstructure:"secret_mode"`
	// PollPeriod is the fixed delay between polling ticks.
	PollPeriod time.Duration `mapstructure:"poll_period"`
	// MaxJitter bounds the randomized wait before restart/shutdown reloads.
	MaxJitter time.Duration `mapstructure:"max_jitter"`
	// Strategy names the update strategy applied on detected changes.
	Strategy string `mapstructure:"strategy"`
	// Sources lists the monitored objects.
	Sources []Source `mapstructure:"sources"`
	// MetricsBindAddress is the listen address of the prometheus endpoint.
	MetricsBindAddress string `mapstructure:"metrics_bind_address"`
}

// Default returns the settings used when nothing is configured.
func Default() Settings {
	return Settings{
		ConfigMapMode:      string(core.DetectionModePolling),
		SecretMode:         string(core.DetectionModePolling),
		PollPeriod:         15 * time.Second,
		MaxJitter:          2 * time.Second,
		Strategy:           string(core.StrategyRefresh),
		MetricsBindAddress: ":8080",
	}
}

// Validate checks the settings as a whole. It fails on the first problem so
// the process refuses to start half-configured.
func (settings Settings) Validate() error {
	if _, err := settings.ConfigMapDetection(); err != nil {
		return fmt.Errorf("configmap_mode: %w", err)
	}
	if _, err := settings.SecretDetection(); err != nil {
		return fmt.Errorf("secret_mode: %w", err)
	}
	if _, err := settings.StrategyName(); err != nil {
		return fmt.Errorf("strategy: %w", err)
	}
	if len(settings.Sources) == 0 {
		return fmt.Errorf("at least one monitored source must be configured")
	}
	if _, err := settings.SourceRefs(); err != nil {
		return err
	}
	if settings.PollPeriod <= 0 {
		return fmt.Errorf("poll_period must be positive, got %s", settings.PollPeriod)
	}
	if settings.MaxJitter < 0 {
		return fmt.Errorf("max_jitter must not be negative, got %s", settings.MaxJitter)
	}
	return nil
}

// ConfigMapDetection returns the typed detection mode for ConfigMap sources.
func (settings Settings) ConfigMapDetection() (core.DetectionMode, error) {
	return core.ParseDetectionMode(settings.ConfigMapMode)
}

// SecretDetection returns the typed detection mode for Secret sources.
func (settings Settings) SecretDetection() (core.DetectionMode, error) {
	return core.ParseDetectionMode(settings.SecretMode)
}

// StrategyName returns the typed update strategy name.
func (settings Settings) StrategyName() (core.StrategyName, error) {
	return core.ParseStrategyName(settings.Strategy)
}

// SourceRefs converts the configured sources into typed references.
func (settings Settings) SourceRefs() ([]core.SourceRef, error) {
	refs := make([]core.SourceRef, 0, len(settings.Sources))
	for index, source := range settings.Sources {
		kind, err := core.ParseSourceKind(source.Kind)
		if err != nil {
			return nil, fmt.Errorf("sources[%d]: %w", index, err)
		}
		if source.Namespace == "" || source.Name == "" {
			return nil, fmt.Errorf("sources[%d]: namespace and name are required", index)
		}
		refs = append(refs, core.SourceRef{Kind: kind, Namespace: source.Namespace, Name: source.Name})
	}
	return refs, nil
}
