package orderbook

import (
	"fmt"
	"sort"

	"tyr/api"
)

// OrderState is the serializable image of one pool slot.
type OrderState struct {
	Handle       int32
	OrderID      uint64
	UID          uint64
	Side         api.Side
	Type         api.OrderType
	Price        int64
	StopPrice    int64
	ReservePrice int64
	Remaining    uint64
	VisibleSize  uint64
	Hidden       uint64
	ExpireTime   uint64
	Seq          uint64
	Parked       bool
}

// BookState is the full serializable image of a book. Rebuilding from
// it reproduces levels, FIFO order, parked stops, the expiry queue and
// every counter that matching depends on.
type BookState struct {
	Spec           api.SymbolSpec
	PoolCapacity   int
	STP            bool
	Clock          uint64
	Seq            uint64
	LastTradePrice int64
	Orders         []OrderState
}

// ExportState captures the book between commands. The caller owns the
// command boundary; the book is not safe to snapshot mid-Apply.
func (b *OrderBook) ExportState() *BookState {
	st := &BookState{
		Spec:           b.spec,
		PoolCapacity:   b.pool.Cap(),
		STP:            b.stp,
		Clock:          b.clock,
		Seq:            b.seq,
		LastTradePrice: b.lastTrade,
		Orders:         make([]OrderState, 0, b.pool.Live()),
	}
	b.pool.ForEach(func(h Handle, o *RestingOrder) bool {
		st.Orders = append(st.Orders, OrderState{
			Handle:       int32(h),
			OrderID:      o.OrderID,
			UID:          o.UID,
			Side:         o.Side,
			Type:         o.Type,
			Price:        o.Price,
			StopPrice:    o.StopPrice,
			ReservePrice: o.ReservePrice,
			Remaining:    o.Remaining,
			VisibleSize:  o.VisibleSize,
			Hidden:       o.Hidden,
			ExpireTime:   o.ExpireTime,
			Seq:          o.Seq,
			Parked:       o.Parked,
		})
		return true
	})
	return st
}

// NewOrderBookFromState rebuilds a book from an exported image.
// Level queues are reconstructed in seq order, which is the order the
// orders were enqueued in.
func NewOrderBookFromState(st *BookState) (*OrderBook, error) {
	b := NewOrderBook(st.Spec, Config{
		PoolCapacity:        st.PoolCapacity,
		SelfTradePrevention: st.STP,
	})
	b.clock = st.Clock
	b.seq = st.Seq
	b.lastTrade = st.LastTradePrice

	for i := range st.Orders {
		os := &st.Orders[i]
		err := b.pool.Restore(Handle(os.Handle), RestingOrder{
			OrderID:      os.OrderID,
			UID:          os.UID,
			Side:         os.Side,
			Type:         os.Type,
			Price:        os.Price,
			StopPrice:    os.StopPrice,
			ReservePrice: os.ReservePrice,
			Remaining:    os.Remaining,
			VisibleSize:  os.VisibleSize,
			Hidden:       os.Hidden,
			ExpireTime:   os.ExpireTime,
			Seq:          os.Seq,
			Parked:       os.Parked,
		})
		if err != nil {
			return nil, fmt.Errorf("restore order %d/%d: %w", os.UID, os.OrderID, err)
		}
		key := orderKey{os.UID, os.OrderID}
		if _, dup := b.byOrderID[key]; dup {
			return nil, fmt.Errorf("restore order %d/%d: duplicate id", os.UID, os.OrderID)
		}
		b.byOrderID[key] = Handle(os.Handle)
	}
	b.pool.ResetFree()

	resting := make([]*OrderState, 0, len(st.Orders))
	for i := range st.Orders {
		os := &st.Orders[i]
		if os.Parked {
			b.stops.add(os.Side, stopItem{price: os.StopPrice, seq: os.Seq, h: Handle(os.Handle)})
			continue
		}
		resting = append(resting, os)
	}
	sort.Slice(resting, func(i, j int) bool { return resting[i].Seq < resting[j].Seq })
	for _, os := range resting {
		h := Handle(os.Handle)
		b.sideTree(os.Side).GetOrCreate(os.Price).Enqueue(b.pool, h)
		if os.Type == api.Day || os.Type == api.GTD {
			b.pushExpiry(expiryEntry{at: os.ExpireTime, h: h, uid: os.UID, oid: os.OrderID})
		}
	}
	return b, nil
}
