package orderbook

import (
	"container/heap"
	"time"

	"tyr/api"
)

// expiryEntry schedules one Day/GTD order for the sweep. Entries are
// never removed early: cancels and moves leave them behind, and the
// sweep drops entries whose slot no longer holds the same order.
type expiryEntry struct {
	at  uint64
	h   Handle
	uid uint64
	oid uint64
}

type expiryQueue []expiryEntry

func (q expiryQueue) Len() int { return len(q) }

func (q expiryQueue) Less(i, j int) bool {
	if q[i].at != q[j].at {
		return q[i].at < q[j].at
	}
	if q[i].uid != q[j].uid {
		return q[i].uid < q[j].uid
	}
	return q[i].oid < q[j].oid
}

func (q expiryQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }

func (q *expiryQueue) Push(x any) { *q = append(*q, x.(expiryEntry)) }

func (q *expiryQueue) Pop() any {
	old := *q
	n := len(old)
	e := old[n-1]
	*q = old[:n-1]
	return e
}

func (b *OrderBook) pushExpiry(e expiryEntry) {
	heap.Push(&b.expiry, e)
}

// sweepExpired cancels every order due at or before the current clock.
// It runs after the clock advances and before the command dispatches,
// so expiry cancels always precede the command's own events.
func (b *OrderBook) sweepExpired(cmd *api.OrderCommand) {
	for len(b.expiry) > 0 && b.expiry[0].at <= b.clock {
		e := heap.Pop(&b.expiry).(expiryEntry)
		o := b.pool.Get(e.h)
		if o == nil || o.UID != e.uid || o.OrderID != e.oid || o.Parked || o.ExpireTime != e.at {
			// stale: cancelled, moved, or the slot was reused
			continue
		}
		released := o.TotalRemaining()
		price := o.Price
		b.removeResting(e.h)
		cmd.AppendCancel(e.uid, e.oid, price, released, api.CancelExpired, b.clock)
	}
}

// endOfTradingDay maps a logical timestamp (UTC nanos) to the next
// midnight after it. Day orders admitted exactly at midnight live the
// whole day.
func endOfTradingDay(ts uint64) uint64 {
	t := time.Unix(0, int64(ts)).UTC()
	return uint64(t.Truncate(24 * time.Hour).Add(24 * time.Hour).UnixNano())
}
