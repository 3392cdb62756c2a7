package orderbook

import "tyr/api"

// Handle is a stable index into the order pool. It is a weak
// reference: the slot it names may be freed and reused, so long-lived
// references must be revalidated against (uid, order id).
type Handle int32

// NilHandle marks an empty link or a failed allocation.
const NilHandle Handle = -1

// RestingOrder is one pool slot: an order resting on a level or
// parked in the stop table. Remaining is the visible part only; the
// iceberg reserve sits in Hidden until a replenish moves it over.
type RestingOrder struct {
	OrderID uint64
	UID     uint64

	Side api.Side
	Type api.OrderType

	Price        int64
	StopPrice    int64
	ReservePrice int64

	Remaining   uint64
	VisibleSize uint64
	Hidden      uint64

	ExpireTime uint64
	Seq        uint64

	// Parked is true while the order waits in the stop table. Parked
	// orders are invisible to matching and carry no level links.
	Parked bool

	next Handle
	prev Handle
}

// TotalRemaining is the quantity released if the order is removed,
// hidden reserve included.
func (o *RestingOrder) TotalRemaining() uint64 {
	return o.Remaining + o.Hidden
}

// Next returns the link toward the back of the level queue.
func (o *RestingOrder) Next() Handle { return o.next }
