package shelf

import (
	"context"

	"github.com/ValentinKolb/shelfpod/lib/order"
)

// --------------------------------------------------------------------------
// Lifecycle
// --------------------------------------------------------------------------

// StartBackgroundActivities launches the pod's maintenance workers: one
// mover per regular temperature, one expirer, and the update dispatcher.
//
// This is deliberately not part of construction - a background goroutine
// must never observe a partially constructed pod. Calling it twice is a
// no-op.
func (p *ShelfPod) StartBackgroundActivities() {
	p.bgMu.Lock()
	defer p.bgMu.Unlock()
	if p.running {
		return
	}
	p.ctx, p.cancel = context.WithCancel(context.Background())
	p.running = true

	for _, temp := range order.RegularTemperatures() {
		p.wg.Add(1)
		go p.runMover(temp)
	}
	p.wg.Add(1)
	go p.runExpirer()
	p.wg.Add(1)
	go p.runDispatcher()

	Logger.Infof("started background activities (%d movers, expirer, dispatcher)", len(order.RegularTemperatures()))
}

// StopBackgroundActivities interrupts all workers and waits for them to
// exit. Workers stop without further shelf mutations; orders still queued
// simply stop being polled. The pod cannot be restarted afterwards.
func (p *ShelfPod) StopBackgroundActivities() {
	p.bgMu.Lock()
	if !p.running {
		p.bgMu.Unlock()
		return
	}
	p.running = false
	p.bgMu.Unlock()

	p.cancel()
	for _, w := range p.watch {
		w.Close()
	}
	p.expirable.Close()
	p.updates.Close()
	p.wg.Wait()

	Logger.Infof("stopped background activities")
}

// --------------------------------------------------------------------------
// Mover workers
// --------------------------------------------------------------------------

// runMover promotes overflow-resident orders of one temperature back to
// their native shelf. The watch queue blocks while empty, and moveOrder
// blocks while the native shelf is full, so the worker costs nothing while
// there is nothing to do. Entries can be stale - already delivered or
// expired - and are dropped; moveOrder's internal CAS catches the rest of
// the races.
func (p *ShelfPod) runMover(temp order.Temperature) {
	defer p.wg.Done()
	Logger.Infof("launching mover for shelf=%s", temp)

	watch := p.watch[temp]
	for {
		o, ok := watch.Take()
		if !ok {
			return
		}
		if o.Terminal() {
			continue
		}
		if result := p.moveOrder(o); result.Added {
			Logger.Infof("moved orderId=%s from overflow to shelf=%s", o.ID(), temp)
		}
	}
}

// --------------------------------------------------------------------------
// Expirer worker
// --------------------------------------------------------------------------

// runExpirer retires orders the moment their remaining value reaches zero.
// One worker covers all shelves: the delay heap surfaces whichever shelved
// order expires next, annotated with the decay of the shelf it was on when
// enqueued.
func (p *ShelfPod) runExpirer() {
	defer p.wg.Done()
	Logger.Infof("launching expirer")

	for {
		o, ok := p.expirable.Take()
		if !ok {
			return
		}
		if o.Terminal() {
			continue
		}
		p.ExpireOrder(o)
	}
}

// --------------------------------------------------------------------------
// Update dispatcher
// --------------------------------------------------------------------------

// runDispatcher is the single consumer of the update log. It keeps the
// expirer's delay heap and the movers' watch queues in sync with what
// happened on the shelves. Funneling all of this through one goroutine is
// what spares the pod any transactional coupling between the shared queue
// and the worker queues.
func (p *ShelfPod) runDispatcher() {
	defer p.wg.Done()
	Logger.Infof("launching update dispatcher")

	for u := range p.updates.Recv() {
		p.maintainExpirable(u)
		p.maintainWatch(u)
	}
}

// maintainExpirable mirrors shelf mutations into the expirer's delay heap.
// The expiry timestamp is evaluated with the decay-rate factor of the shelf
// recorded in the update, not the order's current shelf - the order may have
// moved again by now, in which case a later Move record re-schedules it.
func (p *ShelfPod) maintainExpirable(u *update) {
	switch u.op {
	case opAdd, opMove:
		p.expirable.Push(u.ord, u.ord.ExpiryTimestampMs(p.factors[u.shelf]))
	case opRemove, opPoll:
		p.expirable.Remove(u.ord.ID())
	case opExpire:
		// already terminal; a stale heap entry drains and is dropped
	}
}

// maintainWatch mirrors overflow-shelf mutations into the mover watch
// queues. Move and Remove need no handling here: the mover itself dequeued
// the order before triggering them.
func (p *ShelfPod) maintainWatch(u *update) {
	switch u.op {
	case opAdd:
		if u.shelf == order.Overflow {
			p.watch[u.ord.Temperature()].Push(u.ord)
		}
	case opPoll, opExpire:
		if u.shelf == order.Overflow {
			p.watch[u.ord.Temperature()].Remove(u.ord.ID())
		}
	}
}
