package orderbook

import (
	"github.com/google/btree"

	"tyr/api"
)

const stopTreeDegree = 8

// stopItem is a stop-table index entry. Price is the trigger price;
// seq breaks ties between stops at the same trigger.
type stopItem struct {
	price int64
	seq   uint64
	h     Handle
}

func lessBidStop(a, b stopItem) bool {
	if a.price != b.price {
		return a.price < b.price
	}
	return a.seq < b.seq
}

func lessAskStop(a, b stopItem) bool {
	if a.price != b.price {
		return a.price > b.price
	}
	return a.seq < b.seq
}

// stopBook indexes parked stops by trigger proximity. Bid stops fire
// as the market rises, so the lowest stop price is first; ask stops
// fire as it falls, so the highest is first. Both trees iterate in
// firing order.
type stopBook struct {
	bid *btree.BTreeG[stopItem]
	ask *btree.BTreeG[stopItem]
}

func newStopBook() *stopBook {
	return &stopBook{
		bid: btree.NewG(stopTreeDegree, lessBidStop),
		ask: btree.NewG(stopTreeDegree, lessAskStop),
	}
}

func (s *stopBook) tree(side api.Side) *btree.BTreeG[stopItem] {
	if side == api.Bid {
		return s.bid
	}
	return s.ask
}

func (s *stopBook) add(side api.Side, it stopItem) {
	s.tree(side).ReplaceOrInsert(it)
}

func (s *stopBook) remove(side api.Side, it stopItem) {
	s.tree(side).Delete(it)
}

func (s *stopBook) len() int {
	return s.bid.Len() + s.ask.Len()
}

// bidTriggerThreshold is the highest price signal visible to bid
// stops: a bid stop at sp fires when the last trade or the best ask
// reaches sp or above.
func (b *OrderBook) bidTriggerThreshold() (int64, bool) {
	var thr int64
	ok := false
	if b.lastTrade != 0 {
		thr = b.lastTrade
		ok = true
	}
	if ask := b.Asks.BestMin(); ask != nil && (!ok || ask.Price > thr) {
		thr = ask.Price
		ok = true
	}
	return thr, ok
}

// askTriggerThreshold mirrors bidTriggerThreshold: an ask stop at sp
// fires when the last trade or the best bid reaches sp or below.
func (b *OrderBook) askTriggerThreshold() (int64, bool) {
	var thr int64
	ok := false
	if b.lastTrade != 0 {
		thr = b.lastTrade
		ok = true
	}
	if bid := b.Bids.BestMax(); bid != nil && (!ok || bid.Price < thr) {
		thr = bid.Price
		ok = true
	}
	return thr, ok
}

// collectFired gathers every parked stop whose trigger condition holds
// right now, bid side first, each side in firing order. The trees are
// not mutated during iteration; removal happens in fireStop.
func (b *OrderBook) collectFired(buf []stopItem) []stopItem {
	if thr, ok := b.bidTriggerThreshold(); ok {
		b.stops.bid.Ascend(func(it stopItem) bool {
			if it.price > thr {
				return false
			}
			buf = append(buf, it)
			return true
		})
	}
	if thr, ok := b.askTriggerThreshold(); ok {
		b.stops.ask.Ascend(func(it stopItem) bool {
			if it.price < thr {
				return false
			}
			buf = append(buf, it)
			return true
		})
	}
	return buf
}

// runStopTriggers fires parked stops after a pass that traded or moved
// a best quote. Fired stops re-enter matching and can trigger further
// stops; the loop runs to a fixed point, bounded by the number of
// stops resident when the pass started. Each batch fires under the
// conditions that held when it was collected.
func (b *OrderBook) runStopTriggers(cmd *api.OrderCommand, prevBid, prevAsk int64, evStart int) {
	if b.stops.len() == 0 {
		return
	}
	traded := false
	for i := evStart; i < len(cmd.Events); i++ {
		if cmd.Events[i].Type == api.EventTrade {
			traded = true
			break
		}
	}
	curBid, curAsk := b.bestPrices()
	if !traded && curBid == prevBid && curAsk == prevAsk {
		return
	}

	budget := b.stops.len()
	var fired []stopItem
	for budget > 0 {
		fired = b.collectFired(fired[:0])
		if len(fired) == 0 {
			return
		}
		for _, it := range fired {
			if budget == 0 {
				return
			}
			budget--
			b.fireStop(cmd, it)
		}
	}
}

// fireStop activates one parked stop: the Activate event goes out
// first, then the order runs through the normal pipeline as a limit
// leg (StopLimit) or a reserve-capped market leg (StopMarket).
func (b *OrderBook) fireStop(cmd *api.OrderCommand, it stopItem) {
	o := b.pool.Get(it.h)
	if o == nil || !o.Parked {
		return
	}
	tk := taker{
		uid:     o.UID,
		oid:     o.OrderID,
		side:    o.Side,
		typ:     o.Type,
		price:   o.Price,
		reserve: o.ReservePrice,
		stop:    o.StopPrice,
		size:    o.Remaining,
		visible: o.VisibleSize,
	}
	b.stops.remove(o.Side, it)
	delete(b.byOrderID, orderKey{o.UID, o.OrderID})
	b.pool.Remove(it.h)

	cmd.AppendActivate(tk.uid, tk.oid, b.clock)
	b.submit(cmd, &tk)
}
