package api

// OrderCommand is the single unit of work the engine consumes. One
// struct covers all five actions; fields unused by an action are zero.
//
// Price 0 on an IOC (or on the market leg of an activated StopMarket)
// means "market": the order crosses any level, bounded only by
// ReservePrice when that is set.
type OrderCommand struct {
	Seq     uint64
	UID     uint64
	OrderID uint64
	Symbol  uint32

	Action Action
	Type   OrderType

	Price        int64
	ReservePrice int64
	StopPrice    int64
	Size         uint64
	VisibleSize  uint64
	ExpireTime   uint64
	Timestamp    uint64

	// Events is filled by the matcher while the command is processed,
	// in occurrence order. It is the acknowledgement.
	Events []MatcherEvent
}

// Reset clears the command for reuse from a pool or ring slot.
func (c *OrderCommand) Reset() {
	ev := c.Events[:0]
	*c = OrderCommand{}
	c.Events = ev
}

// IngestAck closes a bulk ingest stream: how many commands entered
// the ring. Outcomes travel on the event feed, not on this ack.
type IngestAck struct {
	Accepted uint64
}
