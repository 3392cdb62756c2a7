// Package orderbook implements the per-symbol matching core: a slab
// order pool addressed by integer handles, FIFO price levels indexed
// by red-black trees with cached best pointers, price-time priority
// matching with iceberg replenishment, stop-order triggering and
// Day/GTD expiry.
//
// The book is single-writer and deterministic. Commands are applied
// one at a time, events are appended to the command being processed,
// and identical command sequences produce identical event sequences
// and identical state. Nothing in this package allocates on the match
// path beyond the event buffer.
package orderbook
