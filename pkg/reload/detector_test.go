package reload_test

import (
	"testing"
	"time"

	"github.com/go-logr/logr"

	core "configreload/pkg/core"
	reload "configreload/pkg/reload"
)

func testDeps(store *reload.ActiveConfig) reload.Deps {
	return reload.Deps{
		ConfigMapProvider: &scriptedProvider{},
		SecretProvider:    &scriptedProvider{},
		Subscriber:        &fakeSubscriber{},
		Active:            store,
		Sink:              &committingSink{store: store},
		Logger:            logr.Discard(),
	}
}

func TestBuildDetectorsSelectsVariantsPerKind(t *testing.T) {
	options := reload.Options{
		ConfigMapMode: core.DetectionModePolling,
		SecretMode:    core.DetectionModeEvent,
		PollPeriod:    15 * time.Second,
		Sources: []core.SourceRef{
			{Kind: core.SourceKindConfigMap, Namespace: "default", Name: "app-config"},
			{Kind: core.SourceKindConfigMap, Namespace: "default", Name: "feature-flags"},
			{Kind: core.SourceKindSecret, Namespace: "default", Name: "db-credentials"},
		},
	}

	detectors, err := reload.BuildDetectors(options, testDeps(reload.NewActiveConfig()))
	if err != nil {
		t.Fatalf("unexpected build error: %v", err)
	}
	if len(detectors) != 2 {
		t.Fatalf("expected one detector per configured kind, got %d", len(detectors))
	}
	if detectors[0].Name() != "polling-config-map" {
		t.Fatalf("expected polling-config-map, got %s", detectors[0].Name())
	}
	if detectors[1].Name() != "event-secret" {
		t.Fatalf("expected event-secret, got %s", detectors[1].Name())
	}
}

func TestBuildDetectorsSkipsKindsWithoutSources(t *testing.T) {
	options := reload.Options{
		ConfigMapMode: core.DetectionModeEvent,
		SecretMode:    core.DetectionModeEvent,
		Sources: []core.SourceRef{
			{Kind: core.SourceKindConfigMap, Namespace: "default", Name: "app-config"},
		},
	}

	detectors, err := reload.BuildDetectors(options, testDeps(reload.NewActiveConfig()))
	if err != nil {
		t.Fatalf("unexpected build error: %v", err)
	}
	if len(detectors) != 1 || detectors[0].Name() != "event-config-map" {
		t.Fatalf("expected only event-config-map, got %d detectors", len(detectors))
	}
}

func TestBuildDetectorsValidatesConfiguration(t *testing.T) {
	source := core.SourceRef{Kind: core.SourceKindConfigMap, Namespace: "default", Name: "app-config"}

	options := reload.Options{ConfigMapMode: core.DetectionModePolling, Sources: []core.SourceRef{source}}
	if _, err := reload.BuildDetectors(options, testDeps(reload.NewActiveConfig())); err == nil {
		t.Fatalf("expected error for non-positive poll period")
	}

	options = reload.Options{ConfigMapMode: "webhook", Sources: []core.SourceRef{source}}
	if _, err := reload.BuildDetectors(options, testDeps(reload.NewActiveConfig())); err == nil {
		t.Fatalf("expected error for unknown detection mode")
	}

	options = reload.Options{ConfigMapMode: core.DetectionModeEvent, Sources: []core.SourceRef{source}}
	deps := testDeps(reload.NewActiveConfig())
	deps.Subscriber = nil
	if _, err := reload.BuildDetectors(options, deps); err == nil {
		t.Fatalf("expected error when event mode has no subscriber")
	}

	deps = testDeps(reload.NewActiveConfig())
	deps.ConfigMapProvider = nil
	options.ConfigMapMode = core.DetectionModePolling
	options.PollPeriod = time.Second
	if _, err := reload.BuildDetectors(options, deps); err == nil {
		t.Fatalf("expected error when kind has no provider")
	}
}
