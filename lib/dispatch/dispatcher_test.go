package dispatch

import (
	"fmt"
	"testing"
	"time"

	"github.com/ValentinKolb/shelfpod/lib/order"
	"github.com/ValentinKolb/shelfpod/lib/shelf"
	"github.com/kapetan-io/tackle/clock"
)

func testPod(t *testing.T) *shelf.ShelfPod {
	t.Helper()
	shelves := []shelf.Shelf{
		{ID: "hot-shelf", Capacity: 10, Temperature: order.Hot, DecayRateFactor: 1},
		{ID: "cold-shelf", Capacity: 10, Temperature: order.Cold, DecayRateFactor: 1},
		{ID: "frozen-shelf", Capacity: 10, Temperature: order.Frozen, DecayRateFactor: 1},
		{ID: "overflow-shelf", Capacity: 10, Temperature: order.Overflow, DecayRateFactor: 2},
	}
	pod, err := shelf.NewShelfPod(shelves, nil)
	if err != nil {
		t.Fatal(err)
	}
	return pod
}

func hotOrder(id string) *order.Order {
	return order.New(id, "test-dish", order.Hot, 300, 0.1, clock.NewProvider())
}

// TestDispatcherPicksUpAddedOrders: every stored order is collected by a
// courier once its (zero, here) travel delay elapsed.
func TestDispatcherPicksUpAddedOrders(t *testing.T) {
	pod := testPod(t)

	d := New(Config{Pod: pod, MinDelaySecs: 0, MaxDelaySecs: 0})
	d.StartBackgroundActivities()
	defer d.StopBackgroundActivities()

	orders := make([]*order.Order, 0, 3)
	for i := 0; i < 3; i++ {
		o := hotOrder(fmt.Sprintf("o-%d", i))
		orders = append(orders, o)
		if result := pod.AddOrder(o); !result.Added {
			t.Fatalf("add failed: %v", result)
		}
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		done := true
		for _, o := range orders {
			if o.State() != order.PickedUpForDelivery {
				done = false
			}
		}
		if done {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	for _, o := range orders {
		if o.State() != order.PickedUpForDelivery {
			t.Errorf("order %s was not picked up, state=%s", o.ID(), o.State())
		}
	}
}

// TestDispatcherIgnoresRejectedAdds: a failed add must not dispatch a
// courier.
func TestDispatcherIgnoresRejectedAdds(t *testing.T) {
	pod := testPod(t)

	// bait is shelved before the dispatcher observes the pod, so no courier
	// is assigned to it; only a phantom courier could take it
	bait := order.New("bait", "test-dish", order.Hot, 1000, 0.1, clock.NewProvider())
	if result := pod.AddOrder(bait); !result.Added {
		t.Fatalf("bait add failed: %v", result)
	}

	d := New(Config{Pod: pod, MinDelaySecs: 0, MaxDelaySecs: 0})
	d.StartBackgroundActivities()
	defer d.StopBackgroundActivities()

	// shelf life 0 -> CameExpired -> no courier
	dead := order.New("dead", "test-dish", order.Hot, 0, 0.1, clock.NewProvider())
	if result := pod.AddOrder(dead); result.Added {
		t.Fatalf("expected a rejected add, got %v", result)
	}

	// a later valid order is collected by its own courier; it expires sooner
	// than the bait, so that courier takes it and leaves the bait alone
	alive := hotOrder("alive")
	pod.AddOrder(alive)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) && alive.State() != order.PickedUpForDelivery {
		time.Sleep(10 * time.Millisecond)
	}
	if alive.State() != order.PickedUpForDelivery {
		t.Errorf("valid order was not picked up, state=%s", alive.State())
	}
	if bait.State() != order.StoredInRegular {
		t.Errorf("a courier was dispatched for the rejected add, bait state=%s", bait.State())
	}
}

// TestDispatcherStopCancelsPendingPickups: stop returns promptly even with
// couriers still in transit, and no pickup happens afterwards.
func TestDispatcherStopCancelsPendingPickups(t *testing.T) {
	pod := testPod(t)

	d := New(Config{Pod: pod, MinDelaySecs: 60, MaxDelaySecs: 60})
	d.StartBackgroundActivities()

	o := hotOrder("o-1")
	pod.AddOrder(o)

	done := make(chan struct{})
	go func() {
		d.StopBackgroundActivities()
		d.StopBackgroundActivities() // double stop is harmless
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("stop did not cancel the pending pickup")
	}

	if o.State() != order.StoredInRegular {
		t.Errorf("canceled courier must not pick up, state=%s", o.State())
	}
}
