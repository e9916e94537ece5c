package reload_test

import (
	"testing"

	core "configreload/pkg/core"
	reload "configreload/pkg/reload"
)

func TestActiveConfigSeedAndGet(t *testing.T) {
	store := reload.NewActiveConfig()
	source := core.SourceRef{Kind: core.SourceKindConfigMap, Namespace: "default", Name: "app-config"}

	if got := store.Get(source); got != "" {
		t.Fatalf("expected empty fingerprint for unseeded source, got %q", got)
	}

	store.Seed(source, "abc123")
	if got := store.Get(source); got != "abc123" {
		t.Fatalf("expected seeded fingerprint, got %q", got)
	}

	other := core.SourceRef{Kind: core.SourceKindSecret, Namespace: "default", Name: "app-config"}
	if got := store.Get(other); got != "" {
		t.Fatalf("sources of different kinds must not share fingerprints, got %q", got)
	}
}
