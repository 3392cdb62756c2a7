package service

import (
	"context"
	"time"

	"tyr/domain/orderbook"
)

// Checkpoint writes a snapshot of every book at the current command
// boundary, then trims what the snapshot makes redundant: sealed
// journal segments, acked outbox entries, and old snapshot files.
// Returns the id of the written snapshot.
func (e *Engine) Checkpoint() (string, error) {
	// Export under the read lock. Writers are blocked, so the captured
	// states and sequence describe the same instant; the slow part,
	// compression and fsync, runs after the lock is dropped.
	e.mu.RLock()
	seq := e.seq.Current()
	syms := e.symbolsLocked()
	states := make([]orderbook.BookState, 0, len(syms))
	for _, sym := range syms {
		states = append(states, *e.books[sym].ExportState())
	}
	e.mu.RUnlock()

	id, err := e.snaps.Write(seq, states)
	if err != nil {
		return "", err
	}

	if err := e.journal.TruncateBefore(seq); err != nil {
		e.log.Warnw("journal truncate failed", "seq", seq, "err", err)
	}
	if err := e.events.TruncateAckedBefore(seq); err != nil {
		e.log.Warnw("outbox truncate failed", "seq", seq, "err", err)
	}
	if e.cfg.SnapshotKeep > 0 {
		if err := e.snaps.Prune(e.cfg.SnapshotKeep); err != nil {
			e.log.Warnw("snapshot prune failed", "err", err)
		}
	}

	e.log.Infow("checkpoint written", "seq", seq, "books", len(states), "id", id)
	return id, nil
}

// RunSnapshots checkpoints on a fixed interval until ctx is done.
func (e *Engine) RunSnapshots(ctx context.Context, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if _, err := e.Checkpoint(); err != nil {
				e.log.Errorw("checkpoint failed", "err", err)
			}
		}
	}
}
