package dispatcher

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/asaf-cyber/ProRecruit-sub002/internal/events"
	"github.com/asaf-cyber/ProRecruit-sub002/internal/store"
)

// fakePublisher records deliveries and can fail the first n attempts.
type fakePublisher struct {
	mu        sync.Mutex
	published []events.AlertEvent
	failures  int
}

func (p *fakePublisher) Publish(ctx context.Context, ev events.AlertEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failures > 0 {
		p.failures--
		return errors.New("broker unavailable")
	}
	p.published = append(p.published, ev)
	return nil
}

func (p *fakePublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.published)
}

func fastRetry() RetryConfig {
	return RetryConfig{
		MaxRetries:     3,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
		BackoffFactor:  2.0,
	}
}

func testEvent(alertID string) events.AlertEvent {
	return events.NewCreated(store.Alert{AlertID: alertID, EntityID: "job-1", RuleID: "stale-open"}, time.Now())
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}

func TestDispatcherDelivers(t *testing.T) {
	pub := &fakePublisher{}
	d := New(pub, fastRetry(), 16)

	ctx, cancel := context.WithCancel(context.Background())
	d.Start(ctx)

	d.Enqueue(testEvent("a-1"))
	d.Enqueue(testEvent("a-2"))

	waitFor(t, time.Second, func() bool { return pub.count() == 2 })

	cancel()
	d.Wait()

	if d.Dropped() != 0 {
		t.Errorf("Dropped() = %d, want 0", d.Dropped())
	}
}

func TestDispatcherRetriesTransientFailure(t *testing.T) {
	pub := &fakePublisher{failures: 2}
	d := New(pub, fastRetry(), 16)

	ctx, cancel := context.WithCancel(context.Background())
	d.Start(ctx)

	d.Enqueue(testEvent("a-1"))
	waitFor(t, time.Second, func() bool { return pub.count() == 1 })

	cancel()
	d.Wait()
}

func TestDispatcherDropsWhenFull(t *testing.T) {
	pub := &fakePublisher{}
	d := New(pub, fastRetry(), 2)

	// Not started: the queue fills and overflow is dropped, never blocking.
	for i := 0; i < 5; i++ {
		d.Enqueue(testEvent("a-1"))
	}

	if got := d.Dropped(); got != 3 {
		t.Errorf("Dropped() = %d, want 3", got)
	}
}

func TestDispatcherDrainsOnShutdown(t *testing.T) {
	pub := &fakePublisher{}
	d := New(pub, fastRetry(), 16)

	// Queue before starting, then cancel immediately: the loop must still
	// make a best-effort delivery pass before exiting.
	d.Enqueue(testEvent("a-1"))
	d.Enqueue(testEvent("a-2"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	d.Start(ctx)
	d.Wait()

	if pub.count() != 2 {
		t.Errorf("published at shutdown = %d, want 2", pub.count())
	}
}

func TestCalculateBackoff(t *testing.T) {
	cfg := DefaultRetryConfig()

	for attempt := 0; attempt < 10; attempt++ {
		b := calculateBackoff(cfg, attempt)
		if b < 0 {
			t.Fatalf("backoff for attempt %d is negative: %v", attempt, b)
		}
		// +25% jitter over the cap is the worst case.
		if max := time.Duration(float64(cfg.MaxBackoff) * 1.25); b > max {
			t.Fatalf("backoff for attempt %d = %v, exceeds %v", attempt, b, max)
		}
	}
}

func TestWithRetryHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := withRetry(ctx, fastRetry(), "test", func() error {
		calls++
		return errors.New("always fails")
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("withRetry() error = %v, want context.Canceled", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1 (no retries after cancellation)", calls)
	}
}

func TestWithRetryExhaustsAttempts(t *testing.T) {
	calls := 0
	err := withRetry(context.Background(), fastRetry(), "test", func() error {
		calls++
		return errors.New("always fails")
	})
	if err == nil {
		t.Fatal("withRetry() returned nil for a permanently failing operation")
	}
	if calls != 4 {
		t.Errorf("calls = %d, want 4 (1 initial + 3 retries)", calls)
	}
}
