// Package ring provides the bounded single-producer single-consumer
// queue that feeds a book's command loop.
package ring

import "sync/atomic"

const cacheLine = 64

// SPSC is a lock-free bounded queue for exactly one producer and one
// consumer goroutine. Each side publishes its own index with an atomic
// store and reads the other side's with an atomic load; the indices
// live on separate cache lines so the two cores do not fight over one
// line.
type SPSC[T any] struct {
	buf  []T
	mask uint64

	_    [cacheLine - 8]byte
	head uint64 // next slot to write, owned by the producer
	_    [cacheLine - 8]byte
	tail uint64 // next slot to read, owned by the consumer
	_    [cacheLine - 8]byte
}

// New allocates a queue with the given capacity, which must be a
// power of two.
func New[T any](size uint64) *SPSC[T] {
	if size == 0 || size&(size-1) != 0 {
		panic("ring: size must be a power of two")
	}
	return &SPSC[T]{
		buf:  make([]T, size),
		mask: size - 1,
	}
}

// Offer appends v and reports whether there was room. Producer side
// only.
func (r *SPSC[T]) Offer(v T) bool {
	h := r.head
	t := atomic.LoadUint64(&r.tail)
	if h-t == uint64(len(r.buf)) {
		return false
	}
	r.buf[h&r.mask] = v
	atomic.StoreUint64(&r.head, h+1)
	return true
}

// Poll removes the oldest element, if any. Consumer side only.
func (r *SPSC[T]) Poll() (T, bool) {
	var zero T
	t := r.tail
	h := atomic.LoadUint64(&r.head)
	if t == h {
		return zero, false
	}
	v := r.buf[t&r.mask]
	r.buf[t&r.mask] = zero
	atomic.StoreUint64(&r.tail, t+1)
	return v, true
}

// Drain moves up to len(out) elements into out and returns how many it
// moved. Consumer side only.
func (r *SPSC[T]) Drain(out []T) int {
	var zero T
	t := r.tail
	h := atomic.LoadUint64(&r.head)
	n := h - t
	if n == 0 {
		return 0
	}
	if n > uint64(len(out)) {
		n = uint64(len(out))
	}
	for i := uint64(0); i < n; i++ {
		idx := (t + i) & r.mask
		out[i] = r.buf[idx]
		r.buf[idx] = zero
	}
	atomic.StoreUint64(&r.tail, t+n)
	return int(n)
}

func (r *SPSC[T]) Len() int {
	h := atomic.LoadUint64(&r.head)
	t := atomic.LoadUint64(&r.tail)
	return int(h - t)
}

func (r *SPSC[T]) Cap() int { return len(r.buf) }
