package reload

import (
	"sync"

	"configreload/pkg/core"
)

// ActiveConfig tracks, per monitored source, the fingerprint of the
// configuration currently live in the application. Detectors read it to
// decide whether a fresh snapshot differs; only the Coordinator writes it,
// after a strategy execution succeeds, so a detector never observes a
// fingerprint mid-transition.
type ActiveConfig struct {
	mu           sync.RWMutex
	fingerprints map[core.SourceRef]string
}

// NewActiveConfig constructs an empty store.
func NewActiveConfig() *ActiveConfig {
	return &ActiveConfig{fingerprints: make(map[core.SourceRef]string)}
}

// Seed records the fingerprint of the initially loaded configuration for a
// source. Wiring calls this once at startup, before any detector runs, so the
// first tick or watch notification does not trigger a spurious reload.
func (store *ActiveConfig) Seed(source core.SourceRef, fingerprint string) {
	store.mu.Lock()
	defer store.mu.Unlock()
	store.fingerprints[source] = fingerprint
}

// Get returns the active fingerprint for a source, or the empty string if the
// source has never been seeded or committed.
func (store *ActiveConfig) Get(source core.SourceRef) string {
	store.mu.RLock()
	defer store.mu.RUnlock()
	return store.fingerprints[source]
}

// commit records the fingerprint applied by a successful reload. Callers must
// hold the Coordinator's execution right; the store itself only guards the map.
func (store *ActiveConfig) commit(source core.SourceRef, fingerprint string) {
	store.mu.Lock()
	defer store.mu.Unlock()
	store.fingerprints[source] = fingerprint
}
