package shelf

import (
	"testing"
	"time"

	"github.com/ValentinKolb/shelfpod/lib/order"
)

// eventually polls the condition until it holds or the deadline passes.
// Background-worker effects are asynchronous, so assertions on them get a
// settle window instead of a fixed sleep.
func eventually(t *testing.T, timeout time.Duration, cond func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return cond()
}

// TestMoverPromotesFromOverflow: once the hot shelf frees a slot, the mover
// relocates the overflow-resident hot order, and a later poll delivers it.
func TestMoverPromotesFromOverflow(t *testing.T) {
	pod := newTestPod(t, testShelves(1, 2, 2), nil)
	pod.StartBackgroundActivities()
	defer pod.StopBackgroundActivities()

	short := hotOrder("short", 100, 0, nil)
	if result := pod.AddOrder(short); !result.Added || result.State != order.StoredInRegular {
		t.Fatalf("short order should take the hot slot, got %v", result)
	}

	long := hotOrder("long", 300, 0, nil)
	if result := pod.AddOrder(long); !result.Added || result.State != order.StoredInOverflow {
		t.Fatalf("long order should land in overflow, got %v", result)
	}

	// let a measurable amount of overflow residence accrue, then free the
	// hot slot; the mover should promote within the settle window
	time.Sleep(20 * time.Millisecond)
	if polled := pod.PollOrder(); polled == nil || polled.ID() != "short" {
		t.Fatalf("expected the short order first, got %v", polled)
	}

	if !eventually(t, 2*time.Second, func() bool { return long.State() == order.StoredInRegular }) {
		t.Fatalf("order was not promoted to the hot shelf, state=%s", long.State())
	}
	if long.TimeSpentOnOverflowMs() <= 0 {
		t.Error("promotion must record the overflow residence time")
	}

	polled := pod.PollOrder()
	if polled == nil || polled.ID() != "long" {
		t.Fatalf("expected the promoted order, got %v", polled)
	}
	if polled.State() != order.PickedUpForDelivery {
		t.Errorf("expected PickedUpForDelivery, got %s", polled.State())
	}
}

// TestPromotionPreservesExpiryCeiling: promoting an order must not extend
// its life beyond what it had in overflow at that moment.
func TestPromotionPreservesExpiryCeiling(t *testing.T) {
	pod := newTestPod(t, testShelves(1, 2, 2), nil)
	pod.StartBackgroundActivities()
	defer pod.StopBackgroundActivities()

	blocker := hotOrder("blocker", 100, 0, nil)
	pod.AddOrder(blocker)

	candidate := hotOrder("candidate", 300, 0.2, nil)
	pod.AddOrder(candidate)

	// let some overflow decay accrue before the promotion
	time.Sleep(300 * time.Millisecond)
	expiryInOverflow := candidate.ExpiryTimestampMs(2)

	pod.PollOrder() // frees the hot slot
	if !eventually(t, 2*time.Second, func() bool { return candidate.State() == order.StoredInRegular }) {
		t.Fatalf("order was not promoted, state=%s", candidate.State())
	}

	expiryInRegular := candidate.ExpiryTimestampMs(1)
	if expiryInRegular > expiryInOverflow {
		t.Errorf("promotion extended the expiry: overflow=%d regular=%d", expiryInOverflow, expiryInRegular)
	}
}

// TestExpirerRetiresInOverflow: an order burning out on the overflow shelf
// is retired by the expirer without any poll.
func TestExpirerRetiresInOverflow(t *testing.T) {
	// overflow decays 10x, so the short order burns out in well under a second
	pod := newTestPod(t, testShelves(1, 1, 10), nil)
	pod.StartBackgroundActivities()
	defer pod.StopBackgroundActivities()

	blocker := hotOrder("blocker", 300, 0, nil)
	pod.AddOrder(blocker)

	doomed := hotOrder("doomed", 1, 0.45, nil)
	if result := pod.AddOrder(doomed); !result.Added || result.State != order.StoredInOverflow {
		t.Fatalf("expected overflow placement, got %v", result)
	}

	if !eventually(t, 3*time.Second, func() bool { return doomed.State() == order.ExpiredInOverflow }) {
		t.Fatalf("order was not retired by the expirer, state=%s", doomed.State())
	}

	// the overflow slot is usable again
	if result := pod.AddOrder(hotOrder("next", 1, 0.45, nil)); !result.Added {
		t.Errorf("the expired order's slot should be free, got %v", result)
	}
}

// TestExpirerRetiresInRegular: same retirement on a regular shelf.
func TestExpirerRetiresInRegular(t *testing.T) {
	pod := newTestPod(t, testShelves(1, 1, 2), nil)
	pod.StartBackgroundActivities()
	defer pod.StopBackgroundActivities()

	doomed := hotOrder("doomed", 1, 0.45, nil)
	if result := pod.AddOrder(doomed); !result.Added || result.State != order.StoredInRegular {
		t.Fatalf("expected regular placement, got %v", result)
	}

	if !eventually(t, 3*time.Second, func() bool { return doomed.State() == order.ExpiredInRegular }) {
		t.Fatalf("order was not retired by the expirer, state=%s", doomed.State())
	}
}

// TestStopBackgroundActivities: stopping joins all workers and leaves the
// pod quiescent; a double stop is harmless.
func TestStopBackgroundActivities(t *testing.T) {
	pod := newTestPod(t, testShelves(1, 2, 2), nil)
	pod.StartBackgroundActivities()

	pod.AddOrder(hotOrder("o-1", 300, 0, nil))
	pod.AddOrder(hotOrder("o-2", 300, 0, nil)) // overflow, keeps a mover interested

	done := make(chan struct{})
	go func() {
		pod.StopBackgroundActivities()
		pod.StopBackgroundActivities()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("stop did not join the workers")
	}

	// the shelves themselves remain readable after shutdown
	if polled := pod.PollOrder(); polled == nil {
		t.Error("orders still shelved should remain pollable")
	}
}
