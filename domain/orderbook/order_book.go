package orderbook

import (
	"fmt"

	"tyr/api"
)

// DefaultPoolCapacity bounds resting plus parked orders per book when
// the config leaves it zero.
const DefaultPoolCapacity = 1 << 16

// Config carries per-book settings. Zero values get defaults.
type Config struct {
	PoolCapacity int

	// SelfTradePrevention, when set, stops a taker at the first maker
	// with the same uid and cancels the taker's residual.
	SelfTradePrevention bool
}

type orderKey struct {
	uid uint64
	oid uint64
}

// OrderBook is the per-symbol matching book. Single-writer and
// deterministic: one goroutine applies commands, events land on the
// command itself, and identical input sequences produce identical
// state and events.
type OrderBook struct {
	spec api.SymbolSpec
	pool *OrderPool

	Bids *RBTree
	Asks *RBTree

	byOrderID map[orderKey]Handle
	stops     *stopBook
	expiry    expiryQueue

	clock     uint64
	seq       uint64
	lastTrade int64

	stp bool
}

func NewOrderBook(spec api.SymbolSpec, cfg Config) *OrderBook {
	if cfg.PoolCapacity <= 0 {
		cfg.PoolCapacity = DefaultPoolCapacity
	}
	return &OrderBook{
		spec:      spec,
		pool:      NewOrderPool(cfg.PoolCapacity),
		Bids:      NewRBTree(),
		Asks:      NewRBTree(),
		byOrderID: make(map[orderKey]Handle),
		stops:     newStopBook(),
		stp:       cfg.SelfTradePrevention,
	}
}

func (b *OrderBook) Spec() api.SymbolSpec { return b.spec }

func (b *OrderBook) Clock() uint64 { return b.clock }

// LastTradePrice is 0 until the book has traded.
func (b *OrderBook) LastTradePrice() int64 { return b.lastTrade }

// Live counts pool slots in use: resting orders plus parked stops.
func (b *OrderBook) Live() int { return b.pool.Live() }

// StopCount counts parked stops.
func (b *OrderBook) StopCount() int { return b.stops.len() }

func (b *OrderBook) Pool() *OrderPool { return b.pool }

// Lookup resolves a user's order to its live pool slot, nil if absent.
func (b *OrderBook) Lookup(uid, oid uint64) *RestingOrder {
	h, ok := b.byOrderID[orderKey{uid, oid}]
	if !ok {
		return nil
	}
	return b.pool.Get(h)
}

func (b *OrderBook) nextSeq() uint64 {
	b.seq++
	return b.seq
}

func (b *OrderBook) sideTree(s api.Side) *RBTree {
	if s == api.Bid {
		return b.Bids
	}
	return b.Asks
}

func (b *OrderBook) bestPrices() (bid, ask int64) {
	if l := b.Bids.BestMax(); l != nil {
		bid = l.Price
	}
	if l := b.Asks.BestMin(); l != nil {
		ask = l.Price
	}
	return
}

// Apply runs one command against the book. The order of operations is
// fixed: advance the clock, sweep expired orders, dispatch the action,
// then fire any stops the pass has triggered. Every observable effect
// is appended to cmd.Events in occurrence order.
func (b *OrderBook) Apply(cmd *api.OrderCommand) {
	if cmd.Timestamp > b.clock {
		b.clock = cmd.Timestamp
	}

	prevBid, prevAsk := b.bestPrices()
	evStart := len(cmd.Events)

	b.sweepExpired(cmd)

	switch cmd.Action {
	case api.ActionBid, api.ActionAsk:
		b.place(cmd)
	case api.ActionCancel:
		b.cancel(cmd)
	case api.ActionMove:
		b.move(cmd)
	case api.ActionReduce:
		b.reduce(cmd)
	default:
		cmd.AppendReject(api.RejectInvalidSize)
	}

	b.runStopTriggers(cmd, prevBid, prevAsk, evStart)
}

func (b *OrderBook) place(cmd *api.OrderCommand) {
	if cmd.Symbol != b.spec.SymbolID {
		cmd.AppendReject(api.RejectSymbolMismatch)
		return
	}
	if cmd.Size == 0 {
		cmd.AppendReject(api.RejectInvalidSize)
		return
	}
	if cmd.ReservePrice < 0 {
		cmd.AppendReject(api.RejectInvalidPrice)
		return
	}

	switch cmd.Type {
	case api.GTC, api.FOK, api.PostOnly, api.Day, api.GTD:
		if cmd.Price <= 0 {
			cmd.AppendReject(api.RejectInvalidPrice)
			return
		}
	case api.IOC:
		// price 0 is a market order
		if cmd.Price < 0 {
			cmd.AppendReject(api.RejectInvalidPrice)
			return
		}
	case api.Iceberg:
		if cmd.Price <= 0 {
			cmd.AppendReject(api.RejectInvalidPrice)
			return
		}
		if cmd.VisibleSize == 0 {
			cmd.AppendReject(api.RejectInvalidSize)
			return
		}
	case api.StopLimit:
		if cmd.Price <= 0 || cmd.StopPrice <= 0 {
			cmd.AppendReject(api.RejectInvalidPrice)
			return
		}
	case api.StopMarket:
		if cmd.StopPrice <= 0 {
			cmd.AppendReject(api.RejectInvalidPrice)
			return
		}
	default:
		cmd.AppendReject(api.RejectInvalidSize)
		return
	}

	if _, dup := b.byOrderID[orderKey{cmd.UID, cmd.OrderID}]; dup {
		cmd.AppendReject(api.RejectDuplicateOrderID)
		return
	}

	side := api.Bid
	if cmd.Action == api.ActionAsk {
		side = api.Ask
	}
	tk := taker{
		uid:     cmd.UID,
		oid:     cmd.OrderID,
		side:    side,
		typ:     cmd.Type,
		price:   cmd.Price,
		reserve: cmd.ReservePrice,
		stop:    cmd.StopPrice,
		size:    cmd.Size,
		visible: cmd.VisibleSize,
		expire:  b.expireFor(cmd.Type, cmd.ExpireTime),
	}

	if cmd.Type == api.StopLimit || cmd.Type == api.StopMarket {
		if !b.stopConditionMet(side, cmd.StopPrice) {
			b.park(cmd, &tk)
			return
		}
		cmd.AppendActivate(cmd.UID, cmd.OrderID, b.clock)
	}

	b.submit(cmd, &tk)
}

// stopConditionMet is the admission-time check: only the last trade
// price counts here. Quote conditions fire on best-quote movement, in
// the trigger scan.
func (b *OrderBook) stopConditionMet(side api.Side, stopPrice int64) bool {
	if b.lastTrade == 0 {
		return false
	}
	if side == api.Bid {
		return b.lastTrade >= stopPrice
	}
	return b.lastTrade <= stopPrice
}

func (b *OrderBook) expireFor(typ api.OrderType, explicit uint64) uint64 {
	switch typ {
	case api.Day:
		return endOfTradingDay(b.clock)
	case api.GTD:
		return explicit
	}
	return 0
}

func (b *OrderBook) cancel(cmd *api.OrderCommand) {
	if cmd.Symbol != b.spec.SymbolID {
		cmd.AppendReject(api.RejectSymbolMismatch)
		return
	}
	h, ok := b.byOrderID[orderKey{cmd.UID, cmd.OrderID}]
	if !ok {
		cmd.AppendReject(api.RejectUnknownOrder)
		return
	}
	o := b.pool.Get(h)
	released := o.TotalRemaining()
	price := o.Price
	b.removeResting(h)
	cmd.AppendCancel(cmd.UID, cmd.OrderID, price, released, api.CancelUserRequest, b.clock)
}

// move re-admits the order at the new price through the full pipeline:
// priority resets, and the resubmission may trade. A parked stop keeps
// its stop price and moves only its limit price.
func (b *OrderBook) move(cmd *api.OrderCommand) {
	if cmd.Symbol != b.spec.SymbolID {
		cmd.AppendReject(api.RejectSymbolMismatch)
		return
	}
	if cmd.Price <= 0 {
		cmd.AppendReject(api.RejectInvalidPrice)
		return
	}
	h, ok := b.byOrderID[orderKey{cmd.UID, cmd.OrderID}]
	if !ok {
		cmd.AppendReject(api.RejectUnknownOrder)
		return
	}
	ord := *b.pool.Get(h)
	b.removeResting(h)

	tk := taker{
		uid:     ord.UID,
		oid:     ord.OrderID,
		side:    ord.Side,
		typ:     ord.Type,
		price:   cmd.Price,
		reserve: ord.ReservePrice,
		stop:    ord.StopPrice,
		size:    ord.TotalRemaining(),
		visible: ord.VisibleSize,
		expire:  ord.ExpireTime,
	}
	if ord.Parked {
		if !b.stopConditionMet(ord.Side, ord.StopPrice) {
			b.park(cmd, &tk)
			return
		}
		cmd.AppendActivate(tk.uid, tk.oid, b.clock)
	}
	b.submit(cmd, &tk)
}

// reduce shrinks the order by cmd.Size, hidden reserve first. Reducing
// to nothing is a cancel.
func (b *OrderBook) reduce(cmd *api.OrderCommand) {
	if cmd.Symbol != b.spec.SymbolID {
		cmd.AppendReject(api.RejectSymbolMismatch)
		return
	}
	if cmd.Size == 0 {
		cmd.AppendReject(api.RejectInvalidSize)
		return
	}
	h, ok := b.byOrderID[orderKey{cmd.UID, cmd.OrderID}]
	if !ok {
		cmd.AppendReject(api.RejectUnknownOrder)
		return
	}
	o := b.pool.Get(h)
	total := o.TotalRemaining()
	if cmd.Size >= total {
		price := o.Price
		b.removeResting(h)
		cmd.AppendCancel(cmd.UID, cmd.OrderID, price, total, api.CancelUserRequest, b.clock)
		return
	}

	delta := cmd.Size
	fromHidden := delta
	if fromHidden > o.Hidden {
		fromHidden = o.Hidden
	}
	o.Hidden -= fromHidden
	if rest := delta - fromHidden; rest > 0 {
		o.Remaining -= rest
		if !o.Parked {
			b.sideTree(o.Side).Find(o.Price).TotalVisible -= rest
		}
	}
	cmd.AppendReduce(cmd.UID, cmd.OrderID, delta, o.TotalRemaining(), b.clock)
}

// removeResting unlinks h from wherever it lives (level or stop
// table), drops the id mapping and frees the slot. Emits nothing.
func (b *OrderBook) removeResting(h Handle) {
	o := b.pool.Get(h)
	if o == nil {
		panic(fmt.Sprintf("orderbook: removeResting dead handle %d", h))
	}
	if o.Parked {
		b.stops.remove(o.Side, stopItem{price: o.StopPrice, seq: o.Seq, h: h})
	} else {
		t := b.sideTree(o.Side)
		lvl := t.Find(o.Price)
		lvl.Unlink(b.pool, h)
		if lvl.Empty() {
			t.Delete(o.Price)
		}
	}
	delete(b.byOrderID, orderKey{o.UID, o.OrderID})
	b.pool.Remove(h)
}

// park admits an unsatisfied stop into the stop table. Parked orders
// occupy a pool slot and an id-map entry but no level.
func (b *OrderBook) park(cmd *api.OrderCommand, tk *taker) {
	o := RestingOrder{
		OrderID:      tk.oid,
		UID:          tk.uid,
		Side:         tk.side,
		Type:         tk.typ,
		Price:        tk.price,
		StopPrice:    tk.stop,
		ReservePrice: tk.reserve,
		Remaining:    tk.size,
		VisibleSize:  tk.visible,
		Seq:          b.nextSeq(),
		Parked:       true,
	}
	h, err := b.pool.Insert(o)
	if err != nil {
		cmd.AppendReject(api.RejectPoolExhausted)
		return
	}
	b.byOrderID[orderKey{tk.uid, tk.oid}] = h
	b.stops.add(tk.side, stopItem{price: tk.stop, seq: o.Seq, h: h})
}

// ---------------- traversal helpers ---------------- //

// BidsWalk visits bid levels best-first.
func (b *OrderBook) BidsWalk(fn func(*PriceLevel)) {
	b.Bids.ForEachDescending(func(l *PriceLevel) bool {
		fn(l)
		return true
	})
}

// AsksWalk visits ask levels best-first.
func (b *OrderBook) AsksWalk(fn func(*PriceLevel)) {
	b.Asks.ForEachAscending(func(l *PriceLevel) bool {
		fn(l)
		return true
	})
}
