package service

import (
	"fmt"

	"tyr/api"
	"tyr/domain/orderbook"
	"tyr/infra/wal"
	"tyr/snapshot"
)

// Recover rebuilds every book before the engine accepts traffic: the
// newest snapshot is restored first, then the journal is replayed on
// top of it. Replayed commands are not re-staged to the outbox; the
// outbox keeps whatever was staged before the restart and the
// broadcaster resumes from there.
func (e *Engine) Recover() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	var from uint64
	snap, err := snapshot.LoadLatest(e.cfg.SnapshotDir)
	if err != nil {
		return fmt.Errorf("load snapshot: %w", err)
	}
	if snap != nil {
		for i := range snap.Books {
			st := &snap.Books[i]
			book, err := orderbook.NewOrderBookFromState(st)
			if err != nil {
				return fmt.Errorf("restore symbol %d: %w", st.Spec.SymbolID, err)
			}
			e.books[st.Spec.SymbolID] = book
		}
		from = snap.Seq
		e.log.Infow("snapshot restored",
			"id", snap.ID, "seq", snap.Seq, "books", len(snap.Books))
	}

	last, err := wal.Replay(e.cfg.WALDir, from, func(rec *wal.Record) error {
		switch rec.Type {
		case wal.RecordSymbol:
			sp, err := api.DecodeSymbolSpec(rec.Data)
			if err != nil {
				return fmt.Errorf("seq %d: %w", rec.Seq, err)
			}
			if _, ok := e.books[sp.SymbolID]; !ok {
				e.books[sp.SymbolID] = orderbook.NewOrderBook(*sp, e.bookConfig())
			}
			return nil

		case wal.RecordCommand:
			cmd, err := api.DecodeCommand(rec.Data)
			if err != nil {
				return fmt.Errorf("seq %d: %w", rec.Seq, err)
			}
			book := e.books[cmd.Symbol]
			if book == nil {
				return fmt.Errorf("seq %d: command for unlisted symbol %d", rec.Seq, cmd.Symbol)
			}
			book.Apply(cmd)
			return nil

		default:
			return fmt.Errorf("seq %d: unknown record type %d", rec.Seq, rec.Type)
		}
	})
	if err != nil {
		return fmt.Errorf("journal replay: %w", err)
	}

	e.seq.Reset(last)
	e.log.Infow("recovery complete", "seq", last, "books", len(e.books))
	return nil
}
