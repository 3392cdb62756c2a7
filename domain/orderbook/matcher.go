package orderbook

import (
	"math"
	"math/bits"

	"tyr/api"
)

// taker is the matching-side view of an order entering the book: the
// command's fields after validation, or a fired stop's fields at
// activation. Matching consumes tk.size in place.
type taker struct {
	uid uint64
	oid uint64

	side api.Side
	typ  api.OrderType

	price   int64
	reserve int64
	stop    int64

	size    uint64
	visible uint64
	expire  uint64
}

// effectiveLimit is the worst price the taker accepts. Market legs
// (price 0) fall back to the reserve cap, then to unbounded.
func (tk *taker) effectiveLimit() int64 {
	if tk.price > 0 {
		return tk.price
	}
	if tk.reserve > 0 {
		return tk.reserve
	}
	if tk.side == api.Bid {
		return math.MaxInt64
	}
	return 0
}

func crosses(side api.Side, limit, levelPrice int64) bool {
	if side == api.Bid {
		return levelPrice <= limit
	}
	return levelPrice >= limit
}

func (b *OrderBook) bestOpposing(side api.Side) *PriceLevel {
	if side == api.Bid {
		return b.Asks.BestMin()
	}
	return b.Bids.BestMax()
}

func (b *OrderBook) wouldCross(side api.Side, limit int64) bool {
	best := b.bestOpposing(side)
	return best != nil && crosses(side, limit, best.Price)
}

// fokFillable dry-scans opposing visible liquidity within the limit.
// The sum is carry-checked; on overflow the order is treated as not
// fillable. Hidden iceberg reserve does not count.
func (b *OrderBook) fokFillable(side api.Side, limit int64, qty uint64) bool {
	var avail uint64
	fillable := false
	scan := func(lvl *PriceLevel) bool {
		if !crosses(side, limit, lvl.Price) {
			return false
		}
		sum, carry := bits.Add64(avail, lvl.TotalVisible, 0)
		if carry != 0 {
			return false
		}
		avail = sum
		if avail >= qty {
			fillable = true
			return false
		}
		return true
	}
	if side == api.Bid {
		b.Asks.ForEachAscending(scan)
	} else {
		b.Bids.ForEachDescending(scan)
	}
	return fillable
}

// submit is the shared pipeline behind place, move resubmission and
// stop activation: pool pre-check for orders that can rest, PostOnly
// and FOK gates, then the execution loop.
func (b *OrderBook) submit(cmd *api.OrderCommand, tk *taker) {
	if mayRest(tk.typ) && b.pool.Full() {
		cmd.AppendReject(api.RejectPoolExhausted)
		return
	}
	if tk.typ == api.PostOnly && b.wouldCross(tk.side, tk.price) {
		cmd.AppendReject(api.RejectWouldCross)
		return
	}
	if tk.typ == api.FOK && !b.fokFillable(tk.side, tk.price, tk.size) {
		cmd.AppendReject(api.RejectFOKNotFillable)
		return
	}
	b.execute(cmd, tk)
}

func mayRest(t api.OrderType) bool {
	switch t {
	case api.IOC, api.FOK, api.StopMarket:
		return false
	}
	return true
}

// execute fills the taker against opposing levels best-first, makers
// FIFO, always at the maker's level price. Residual quantity rests or
// cancels by order type.
func (b *OrderBook) execute(cmd *api.OrderCommand, tk *taker) {
	limit := tk.effectiveLimit()
	selfHit := false

	for tk.size > 0 {
		lvl := b.bestOpposing(tk.side)
		if lvl == nil || !crosses(tk.side, limit, lvl.Price) {
			break
		}
		h := lvl.Head()
		maker := b.pool.Get(h)
		if b.stp && maker.UID == tk.uid {
			selfHit = true
			break
		}

		trade := tk.size
		if maker.Remaining < trade {
			trade = maker.Remaining
		}
		maker.Remaining -= trade
		tk.size -= trade
		lvl.TotalVisible -= trade
		b.lastTrade = lvl.Price
		cmd.AppendTrade(maker.UID, maker.OrderID, tk.uid, tk.oid, lvl.Price, trade, b.clock)

		if maker.Remaining > 0 {
			continue
		}
		if maker.Hidden > 0 {
			b.replenishIceberg(lvl, h, maker)
			continue
		}
		lvl.PopHead(b.pool)
		delete(b.byOrderID, orderKey{maker.UID, maker.OrderID})
		b.pool.Remove(h)
		if lvl.Empty() {
			b.sideTree(tk.side.Opposite()).Delete(lvl.Price)
		}
	}

	if selfHit {
		cmd.AppendCancel(tk.uid, tk.oid, tk.price, tk.size, api.CancelSelfTrade, b.clock)
		return
	}
	if tk.size == 0 {
		return
	}
	switch tk.typ {
	case api.IOC, api.FOK, api.StopMarket:
		cmd.AppendCancel(tk.uid, tk.oid, tk.price, tk.size, api.CancelIOCUnfilled, b.clock)
	default:
		b.rest(cmd, tk)
	}
}

// replenishIceberg moves the next slice out of the hidden reserve and
// re-queues the maker at the back of its level with a fresh seq. Time
// priority within the level restarts for the new slice.
func (b *OrderBook) replenishIceberg(lvl *PriceLevel, h Handle, maker *RestingOrder) {
	slice := maker.VisibleSize
	if slice > maker.Hidden {
		slice = maker.Hidden
	}
	lvl.Unlink(b.pool, h)
	maker.Hidden -= slice
	maker.Remaining = slice
	maker.Seq = b.nextSeq()
	lvl.Enqueue(b.pool, h)
}

// rest admits the residual onto the taker's own side. Icebergs show
// at most VisibleSize and hold the remainder back.
func (b *OrderBook) rest(cmd *api.OrderCommand, tk *taker) {
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
		ExpireTime:   tk.expire,
		Seq:          b.nextSeq(),
	}
	if tk.typ == api.Iceberg && o.VisibleSize < o.Remaining {
		o.Hidden = o.Remaining - o.VisibleSize
		o.Remaining = o.VisibleSize
	}
	h, err := b.pool.Insert(o)
	if err != nil {
		cmd.AppendReject(api.RejectPoolExhausted)
		return
	}
	b.byOrderID[orderKey{tk.uid, tk.oid}] = h
	b.sideTree(tk.side).GetOrCreate(tk.price).Enqueue(b.pool, h)
	if tk.typ == api.Day || tk.typ == api.GTD {
		// a deadline at or below the clock sweeps on the next admission
		b.pushExpiry(expiryEntry{at: o.ExpireTime, h: h, uid: tk.uid, oid: tk.oid})
	}
}
