package service

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"tyr/api"
	"tyr/domain/orderbook"
	"tyr/infra/outbox"
	"tyr/infra/sequence"
	"tyr/infra/wal"
	"tyr/snapshot"
)

// Config carries the engine-level settings. The per-book fields apply
// to every symbol admitted through this engine.
type Config struct {
	// WALDir and SnapshotDir must name the same directories the
	// journal and snapshot writer were opened on; Recover reads them.
	WALDir      string
	SnapshotDir string

	// SnapshotKeep bounds how many snapshot files Checkpoint leaves
	// behind. Zero keeps everything.
	SnapshotKeep int

	PoolCapacity        int
	SelfTradePrevention bool
}

// Engine is the only write entry point into the matching core. It
// owns one book per symbol and runs every command through the same
// pipeline: assign a sequence, journal, apply, stage the events.
//
// Writes are serialized on one lock, so books never see two commands
// at once and the journal order is the execution order. Queries take
// the read side and never touch book state.
type Engine struct {
	mu    sync.RWMutex
	books map[uint32]*orderbook.OrderBook

	seq     sequence.Sequencer
	journal *wal.WAL
	events  *outbox.Outbox
	snaps   *snapshot.Writer

	cfg Config
	log *zap.SugaredLogger

	enc []byte
}

// New wires the engine around its durable parts. Call Recover before
// accepting traffic.
func New(journal *wal.WAL, events *outbox.Outbox, snaps *snapshot.Writer, cfg Config, log *zap.SugaredLogger) *Engine {
	return &Engine{
		books:   make(map[uint32]*orderbook.OrderBook),
		journal: journal,
		events:  events,
		snaps:   snaps,
		cfg:     cfg,
		log:     log,
	}
}

func (e *Engine) bookConfig() orderbook.Config {
	return orderbook.Config{
		PoolCapacity:        e.cfg.PoolCapacity,
		SelfTradePrevention: e.cfg.SelfTradePrevention,
	}
}

// -------------------- Commands --------------------

// AddSymbol lists a new symbol and creates its book. The symbol spec
// is journaled so recovery rebuilds books that never saw a command.
func (e *Engine) AddSymbol(spec api.SymbolSpec) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.books[spec.SymbolID]; ok {
		return fmt.Errorf("symbol %d already listed", spec.SymbolID)
	}

	seq := e.seq.Next()
	rec := wal.NewRecord(wal.RecordSymbol, seq, api.EncodeSymbolSpec(&spec))
	if err := e.journal.Append(rec); err != nil {
		return fmt.Errorf("journal symbol %d: %w", spec.SymbolID, err)
	}

	e.books[spec.SymbolID] = orderbook.NewOrderBook(spec, e.bookConfig())
	e.log.Infow("symbol listed", "symbol", spec.SymbolID, "type", spec.Type)
	return nil
}

// Submit runs one command through the engine. On return cmd.Events
// holds the full acknowledgement. An error means the command did not
// reach the book; the caller may retry it unchanged.
func (e *Engine) Submit(cmd *api.OrderCommand) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.submit(cmd)
}

func (e *Engine) submit(cmd *api.OrderCommand) error {
	cmd.Events = cmd.Events[:0]

	book := e.books[cmd.Symbol]
	if book == nil {
		cmd.AppendReject(api.RejectSymbolMismatch)
		return nil
	}
	if cmd.Timestamp == 0 {
		cmd.Timestamp = uint64(time.Now().UnixNano())
	}
	cmd.Seq = e.seq.Next()

	// Journal first. The frame holds the command as submitted; the
	// events it produces are replayable from it.
	e.enc = api.AppendCommand(e.enc[:0], cmd)
	if err := e.journal.Append(wal.NewRecord(wal.RecordCommand, cmd.Seq, e.enc)); err != nil {
		return fmt.Errorf("journal seq %d: %w", cmd.Seq, err)
	}

	book.Apply(cmd)

	if len(cmd.Events) == 0 {
		return nil
	}
	payloads := make([][]byte, len(cmd.Events))
	for i := range cmd.Events {
		payloads[i] = api.EncodeEvent(&cmd.Events[i])
	}
	if err := e.events.Stage(cmd.Seq, payloads); err != nil {
		// The command is executed and journaled; only the feed copy of
		// its events is at risk. Surface the error, keep the state.
		e.log.Errorw("outbox stage failed", "seq", cmd.Seq, "err", err)
		return fmt.Errorf("stage seq %d: %w", cmd.Seq, err)
	}
	return nil
}

// -------------------- Queries --------------------

// Symbols returns the listed symbol ids in ascending order.
func (e *Engine) Symbols() []uint32 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.symbolsLocked()
}

func (e *Engine) symbolsLocked() []uint32 {
	out := make([]uint32, 0, len(e.books))
	for sym := range e.books {
		out = append(out, sym)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// L2 returns a depth-bounded view of one book.
func (e *Engine) L2(symbol uint32, depth int) (*api.L2MarketData, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	book := e.books[symbol]
	if book == nil {
		return nil, fmt.Errorf("unknown symbol %d", symbol)
	}
	return book.L2(depth), nil
}

// Seq is the sequence of the last accepted command.
func (e *Engine) Seq() uint64 {
	return e.seq.Current()
}

// Close flushes and closes the journal. The outbox is owned by the
// caller alongside the broadcaster draining it.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.journal.Close()
}
