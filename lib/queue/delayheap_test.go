package queue

import (
	"testing"
	"time"

	"github.com/kapetan-io/tackle/clock"
)

// TestDelayHeapReleasesAfterDelay verifies that Take blocks until the
// scheduled timestamp and then releases the order.
func TestDelayHeapReleasesAfterDelay(t *testing.T) {
	clk := clock.NewProvider()
	d := NewDelayHeap(clk)
	defer d.Close()

	o := makeOrder("a", 100)
	start := clk.Now()
	d.Push(o, start.UnixMilli()+100)

	got, ok := d.Take()
	if !ok || got.ID() != "a" {
		t.Fatalf("expected order a, got %v ok=%t", got, ok)
	}
	if elapsed := clk.Now().Sub(start); elapsed < 90*time.Millisecond {
		t.Errorf("order released after %v, before its delay elapsed", elapsed)
	}
}

// TestDelayHeapEarlierPushPreempts verifies that pushing an order with a
// sooner timestamp re-arms a consumer already waiting on a later one.
func TestDelayHeapEarlierPushPreempts(t *testing.T) {
	clk := clock.NewProvider()
	d := NewDelayHeap(clk)
	defer d.Close()

	late := makeOrder("late", 100)
	d.Push(late, clk.Now().UnixMilli()+5_000)

	got := make(chan string, 1)
	go func() {
		o, _ := d.Take()
		got <- o.ID()
	}()

	time.Sleep(20 * time.Millisecond)
	soon := makeOrder("soon", 100)
	d.Push(soon, clk.Now().UnixMilli()+50)

	select {
	case id := <-got:
		if id != "soon" {
			t.Errorf("expected the sooner order first, got %s", id)
		}
	case <-time.After(time.Second):
		t.Fatal("consumer was not preempted by the sooner order")
	}
}

// TestDelayHeapRemove verifies that a removed order is never released.
func TestDelayHeapRemove(t *testing.T) {
	clk := clock.NewProvider()
	d := NewDelayHeap(clk)
	defer d.Close()

	d.Push(makeOrder("a", 100), clk.Now().UnixMilli()+30)
	d.Push(makeOrder("b", 100), clk.Now().UnixMilli()+60)

	if !d.Remove("a") {
		t.Fatal("removing a scheduled order should succeed")
	}
	if d.Remove("a") {
		t.Error("removing twice should fail")
	}

	o, ok := d.Take()
	if !ok || o.ID() != "b" {
		t.Fatalf("expected b to surface, got %v", o)
	}
	if d.Len() != 0 {
		t.Errorf("heap should be empty, len=%d", d.Len())
	}
}

// TestDelayHeapReschedule verifies that re-pushing a present order moves its
// timestamp instead of duplicating it.
func TestDelayHeapReschedule(t *testing.T) {
	clk := clock.NewProvider()
	d := NewDelayHeap(clk)
	defer d.Close()

	o := makeOrder("a", 100)
	d.Push(o, clk.Now().UnixMilli()+5_000)
	d.Push(o, clk.Now().UnixMilli()+30)

	if d.Len() != 1 {
		t.Fatalf("reschedule must not duplicate, len=%d", d.Len())
	}

	start := time.Now()
	_, ok := d.Take()
	if !ok {
		t.Fatal("expected the order to surface")
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("order surfaced after %v, the reschedule was ignored", elapsed)
	}
}

// TestDelayHeapClose verifies that Close releases a blocked consumer.
func TestDelayHeapClose(t *testing.T) {
	clk := clock.NewProvider()
	d := NewDelayHeap(clk)

	done := make(chan bool, 1)
	go func() {
		_, ok := d.Take()
		done <- ok
	}()

	time.Sleep(20 * time.Millisecond)
	d.Close()

	select {
	case ok := <-done:
		if ok {
			t.Error("take after close should report not-ok")
		}
	case <-time.After(time.Second):
		t.Fatal("close did not wake the consumer")
	}
}
