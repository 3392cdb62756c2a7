package orderbook

// PriceLevel is a FIFO queue at a single price. Queue links live
// inside the pool slots, so every mutator takes the pool. TotalVisible
// tracks the sum of Remaining over the queue and is adjusted by the
// matcher on every fill.
type PriceLevel struct {
	Price int64

	head Handle
	tail Handle

	TotalVisible uint64
	OrderCount   uint32
}

func newPriceLevel(price int64) *PriceLevel {
	return &PriceLevel{Price: price, head: NilHandle, tail: NilHandle}
}

// Enqueue appends h at the back of the queue.
func (l *PriceLevel) Enqueue(p *OrderPool, h Handle) {
	o := p.Get(h)
	o.next, o.prev = NilHandle, NilHandle
	if l.head == NilHandle {
		l.head = h
		l.tail = h
	} else {
		p.Get(l.tail).next = h
		o.prev = l.tail
		l.tail = h
	}
	l.TotalVisible += o.Remaining
	l.OrderCount++
}

// PopHead removes the front order and returns its handle.
func (l *PriceLevel) PopHead(p *OrderPool) Handle {
	h := l.head
	if h == NilHandle {
		return NilHandle
	}
	o := p.Get(h)
	l.head = o.next
	if l.head != NilHandle {
		p.Get(l.head).prev = NilHandle
	} else {
		l.tail = NilHandle
	}
	o.next, o.prev = NilHandle, NilHandle
	l.TotalVisible -= o.Remaining
	l.OrderCount--
	return h
}

// Unlink removes h from any position in the queue.
func (l *PriceLevel) Unlink(p *OrderPool, h Handle) {
	o := p.Get(h)
	if o.prev != NilHandle {
		p.Get(o.prev).next = o.next
	} else {
		l.head = o.next
	}
	if o.next != NilHandle {
		p.Get(o.next).prev = o.prev
	} else {
		l.tail = o.prev
	}
	o.next, o.prev = NilHandle, NilHandle
	l.TotalVisible -= o.Remaining
	l.OrderCount--
}

func (l *PriceLevel) Empty() bool {
	return l.head == NilHandle
}

// Read-only helper
func (l *PriceLevel) Head() Handle {
	return l.head
}
