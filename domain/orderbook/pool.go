package orderbook

import (
	"errors"
	"fmt"
)

// ErrPoolExhausted is returned by Insert when every slot is live. The
// book translates it into a PoolExhausted reject; it never aborts.
var ErrPoolExhausted = errors.New("order pool exhausted")

// OrderPool is a fixed-capacity slab of RestingOrder slots with a
// free-list. Handles stay stable for the lifetime of the order, so
// levels, the stop table and the by-order-id map can all point into
// the pool without owning anything.
type OrderPool struct {
	slots []RestingOrder
	inUse []bool
	free  []Handle
	live  int
}

func NewOrderPool(capacity int) *OrderPool {
	if capacity <= 0 {
		panic(fmt.Sprintf("orderbook: pool capacity %d", capacity))
	}
	p := &OrderPool{
		slots: make([]RestingOrder, capacity),
		inUse: make([]bool, capacity),
		free:  make([]Handle, capacity),
	}
	for i := range p.free {
		p.free[i] = Handle(capacity - 1 - i)
	}
	return p
}

// Insert places o into a free slot and returns its handle.
func (p *OrderPool) Insert(o RestingOrder) (Handle, error) {
	if len(p.free) == 0 {
		return NilHandle, ErrPoolExhausted
	}
	h := p.free[len(p.free)-1]
	p.free = p.free[:len(p.free)-1]
	o.next, o.prev = NilHandle, NilHandle
	p.slots[h] = o
	p.inUse[h] = true
	p.live++
	return h, nil
}

// Get resolves a handle to its live slot, nil if the slot is free or
// the handle out of range.
func (p *OrderPool) Get(h Handle) *RestingOrder {
	if h < 0 || int(h) >= len(p.slots) || !p.inUse[h] {
		return nil
	}
	return &p.slots[h]
}

// Remove frees the slot. Freed slots are reused LIFO.
func (p *OrderPool) Remove(h Handle) {
	if h < 0 || int(h) >= len(p.slots) || !p.inUse[h] {
		return
	}
	p.slots[h] = RestingOrder{}
	p.inUse[h] = false
	p.free = append(p.free, h)
	p.live--
}

func (p *OrderPool) Live() int { return p.live }

func (p *OrderPool) Cap() int { return len(p.slots) }

func (p *OrderPool) Full() bool { return p.live == len(p.slots) }

// ForEach visits live slots in ascending handle order.
func (p *OrderPool) ForEach(fn func(Handle, *RestingOrder) bool) {
	for i := range p.slots {
		if !p.inUse[i] {
			continue
		}
		if !fn(Handle(i), &p.slots[i]) {
			return
		}
	}
}

// Restore re-occupies an exact slot while rebuilding from a snapshot.
// Call ResetFree once after the last Restore.
func (p *OrderPool) Restore(h Handle, o RestingOrder) error {
	if h < 0 || int(h) >= len(p.slots) {
		return fmt.Errorf("restore handle %d out of range (cap %d)", h, len(p.slots))
	}
	if p.inUse[h] {
		return fmt.Errorf("restore handle %d already occupied", h)
	}
	o.next, o.prev = NilHandle, NilHandle
	p.slots[h] = o
	p.inUse[h] = true
	p.live++
	return nil
}

// ResetFree rebuilds the free list from the occupancy map. Slot reuse
// order after a rebuild matches a freshly filled pool, which keeps
// replayed allocations deterministic.
func (p *OrderPool) ResetFree() {
	p.free = p.free[:0]
	for i := len(p.slots) - 1; i >= 0; i-- {
		if !p.inUse[i] {
			p.free = append(p.free, Handle(i))
		}
	}
}
