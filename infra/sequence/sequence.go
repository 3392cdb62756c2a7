// Package sequence issues the global command sequence numbers that
// order the journal, the event outbox, and snapshot naming.
package sequence

import "sync/atomic"

// Sequencer hands out strictly increasing sequence numbers starting at
// 1. Safe for concurrent use.
type Sequencer struct {
	n uint64
}

// Next returns the next sequence number.
func (s *Sequencer) Next() uint64 {
	return atomic.AddUint64(&s.n, 1)
}

// Current returns the last issued number, 0 if none yet.
func (s *Sequencer) Current() uint64 {
	return atomic.LoadUint64(&s.n)
}

// Reset moves the counter so the next call to Next returns v+1. Used
// when resuming from a journal or snapshot.
func (s *Sequencer) Reset(v uint64) {
	atomic.StoreUint64(&s.n, v)
}
