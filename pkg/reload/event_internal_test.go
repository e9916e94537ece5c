package reload

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/go-logr/logr"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/watch"

	"configreload/pkg/core"
)

func TestNextReconnectDelayDoublesUpToCeiling(t *testing.T) {
	ceiling := 30 * time.Second
	delay := time.Second
	var seen []time.Duration
	for i := 0; i < 7; i++ {
		delay = nextReconnectDelay(delay, ceiling)
		seen = append(seen, delay)
	}
	want := []time.Duration{2 * time.Second, 4 * time.Second, 8 * time.Second,
		16 * time.Second, 30 * time.Second, 30 * time.Second, 30 * time.Second}
	for i := range want {
		if seen[i] != want[i] {
			t.Fatalf("step %d: expected %s, got %s", i, want[i], seen[i])
		}
	}
}

type flakySubscriber struct {
	mu       sync.Mutex
	failures int
	calls    int
	stream   *watch.FakeWatcher
}

func (s *flakySubscriber) Subscribe(ctx context.Context, kind core.SourceKind, namespace string) (watch.Interface, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.calls <= s.failures {
		return nil, fmt.Errorf("connection refused")
	}
	return s.stream, nil
}

type signalCounter struct {
	mu    sync.Mutex
	count int
}

func (c *signalCounter) Submit(ctx context.Context, signal core.ChangeSignal) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.count++
}

func (c *signalCounter) total() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.count
}

type fixedProvider struct{ snapshot core.Snapshot }

func (p fixedProvider) Fetch(ctx context.Context, source core.SourceRef) (core.Snapshot, error) {
	return p.snapshot, nil
}

// silentStreamSubscriber hands out streams that stay open for a fixed
// duration and then close without ever delivering an event, recording when
// each stream was opened and closed.
type silentStreamSubscriber struct {
	mu       sync.Mutex
	stayUp   time.Duration
	connects []time.Time
	closes   []time.Time
}

func (s *silentStreamSubscriber) Subscribe(ctx context.Context, kind core.SourceKind, namespace string) (watch.Interface, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connects = append(s.connects, time.Now())
	stream := watch.NewFake()
	time.AfterFunc(s.stayUp, func() {
		s.mu.Lock()
		s.closes = append(s.closes, time.Now())
		s.mu.Unlock()
		stream.Stop()
	})
	return stream, nil
}

func (s *silentStreamSubscriber) connectCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.connects)
}

func (s *silentStreamSubscriber) timeline() ([]time.Time, []time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]time.Time(nil), s.connects...), append([]time.Time(nil), s.closes...)
}

// A healthy stream that outlives the backoff ceiling without delivering a
// single event still resets the reconnect delay: quiet namespaces, where the
// API server closes idle watches on its own timeout, must reconnect promptly
// instead of climbing toward the ceiling.
func TestEventDetectorResetsBackoffAfterLongLivedSilentStream(t *testing.T) {
	source := core.SourceRef{Kind: core.SourceKindConfigMap, Namespace: "default", Name: "app-settings"}
	subscriber := &silentStreamSubscriber{stayUp: 110 * time.Millisecond}

	detector := NewEventDetector(core.SourceKindConfigMap, []core.SourceRef{source},
		fixedProvider{snapshot: core.NewSnapshot(map[string]string{"level": "info"})},
		subscriber, NewActiveConfig(), &signalCounter{}, logr.Discard())
	detector.reconnectBase = 10 * time.Millisecond
	detector.reconnectCap = 50 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() { defer close(done); detector.Run(ctx) }()

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) && subscriber.connectCount() < 4 {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("detector did not stop on cancellation")
	}

	connects, closes := subscriber.timeline()
	if len(connects) < 4 {
		t.Fatalf("expected at least 4 watch connects, got %d", len(connects))
	}
	// Unreset backoff would double the wait after every silent close, reaching
	// 40ms by the third reconnect; reset waits stay near the 10ms base.
	for i := 0; i < 3; i++ {
		waited := connects[i+1].Sub(closes[i])
		if waited > 35*time.Millisecond {
			t.Fatalf("reconnect %d waited %s after a long-lived stream, backoff did not reset", i+1, waited)
		}
	}
}

// A detector must survive connect failures and eventually watch successfully,
// never terminating before ctx cancellation.
func TestEventDetectorRetriesFailedConnects(t *testing.T) {
	source := core.SourceRef{Kind: core.SourceKindSecret, Namespace: "default", Name: "db-credentials"}
	subscriber := &flakySubscriber{failures: 3, stream: watch.NewFake()}
	sink := &signalCounter{}

	detector := NewEventDetector(core.SourceKindSecret, []core.SourceRef{source},
		fixedProvider{snapshot: core.NewSnapshot(map[string]string{"password": "hunter2"})},
		subscriber, NewActiveConfig(), sink, logr.Discard())
	detector.reconnectBase = 2 * time.Millisecond
	detector.reconnectCap = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() { defer close(done); detector.Run(ctx) }()

	subscriber.stream.Modify(&corev1.Secret{ObjectMeta: metav1.ObjectMeta{Namespace: "default", Name: "db-credentials"}})

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) && sink.total() == 0 {
		time.Sleep(5 * time.Millisecond)
	}
	if sink.total() == 0 {
		t.Fatalf("detector never recovered from connect failures")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("detector did not stop on cancellation")
	}
}
