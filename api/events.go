package api

type EventType int
type CancelReason int
type RejectReason int

const (
	EventTrade EventType = iota
	EventCancel
	EventReject
	EventActivate
	EventReduce
)

const (
	CancelUserRequest CancelReason = iota
	CancelIOCUnfilled
	CancelExpired
	CancelSelfTrade
)

func (r CancelReason) String() string {
	switch r {
	case CancelUserRequest:
		return "USER_REQUEST"
	case CancelIOCUnfilled:
		return "IOC_UNFILLED"
	case CancelExpired:
		return "EXPIRED"
	case CancelSelfTrade:
		return "SELF_TRADE"
	}
	return "UNKNOWN"
}

const (
	RejectUnknownOrder RejectReason = iota
	RejectDuplicateOrderID
	RejectWouldCross
	RejectFOKNotFillable
	RejectPoolExhausted
	RejectInvalidPrice
	RejectInvalidSize
	RejectSymbolMismatch
)

func (r RejectReason) String() string {
	switch r {
	case RejectUnknownOrder:
		return "UNKNOWN_ORDER"
	case RejectDuplicateOrderID:
		return "DUPLICATE_ORDER_ID"
	case RejectWouldCross:
		return "WOULD_CROSS"
	case RejectFOKNotFillable:
		return "FOK_NOT_FILLABLE"
	case RejectPoolExhausted:
		return "POOL_EXHAUSTED"
	case RejectInvalidPrice:
		return "INVALID_PRICE"
	case RejectInvalidSize:
		return "INVALID_SIZE"
	case RejectSymbolMismatch:
		return "SYMBOL_MISMATCH"
	}
	return "UNKNOWN"
}

// MatcherEvent is one entry of a command's event buffer. A single flat
// struct covers every variant; which fields are meaningful depends on
// Type:
//
//	Trade:    Maker*, Taker*, Price (maker's level), Size, Timestamp
//	Cancel:   OrderID, UID, Price, Remaining (released, hidden included), CancelReason
//	Reject:   OrderID, UID, Price, Size (as submitted), RejectReason
//	Activate: OrderID, UID (stop fired; precedes its trades)
//	Reduce:   OrderID, UID, Size (reduced by), Remaining (left resting)
type MatcherEvent struct {
	Type EventType

	MakerUID     uint64
	MakerOrderID uint64
	TakerUID     uint64
	TakerOrderID uint64

	OrderID uint64
	UID     uint64

	Price     int64
	Size      uint64
	Remaining uint64

	CancelReason CancelReason
	RejectReason RejectReason

	Timestamp uint64
}

// smallEventCap sizes the first allocation of an event buffer. Almost
// every command produces at most a few events.
const smallEventCap = 4

func (c *OrderCommand) appendEvent(ev MatcherEvent) {
	if c.Events == nil {
		c.Events = make([]MatcherEvent, 0, smallEventCap)
	}
	c.Events = append(c.Events, ev)
}

func (c *OrderCommand) AppendTrade(makerUID, makerOID, takerUID, takerOID uint64, price int64, size, ts uint64) {
	c.appendEvent(MatcherEvent{
		Type:         EventTrade,
		MakerUID:     makerUID,
		MakerOrderID: makerOID,
		TakerUID:     takerUID,
		TakerOrderID: takerOID,
		Price:        price,
		Size:         size,
		Timestamp:    ts,
	})
}

func (c *OrderCommand) AppendCancel(uid, oid uint64, price int64, remaining uint64, reason CancelReason, ts uint64) {
	c.appendEvent(MatcherEvent{
		Type:         EventCancel,
		UID:          uid,
		OrderID:      oid,
		Price:        price,
		Remaining:    remaining,
		CancelReason: reason,
		Timestamp:    ts,
	})
}

func (c *OrderCommand) AppendReject(reason RejectReason) {
	c.appendEvent(MatcherEvent{
		Type:         EventReject,
		UID:          c.UID,
		OrderID:      c.OrderID,
		Price:        c.Price,
		Size:         c.Size,
		RejectReason: reason,
		Timestamp:    c.Timestamp,
	})
}

func (c *OrderCommand) AppendActivate(uid, oid uint64, ts uint64) {
	c.appendEvent(MatcherEvent{
		Type:      EventActivate,
		UID:       uid,
		OrderID:   oid,
		Timestamp: ts,
	})
}

func (c *OrderCommand) AppendReduce(uid, oid uint64, by, remaining uint64, ts uint64) {
	c.appendEvent(MatcherEvent{
		Type:      EventReduce,
		UID:       uid,
		OrderID:   oid,
		Size:      by,
		Remaining: remaining,
		Timestamp: ts,
	})
}
