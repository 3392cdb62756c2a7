package api

type Side int
type Action int
type OrderType int
type SymbolType int

const (
	Bid Side = iota
	Ask
)

// Opposite returns the side an incoming order matches against.
func (s Side) Opposite() Side {
	if s == Bid {
		return Ask
	}
	return Bid
}

func (s Side) String() string {
	if s == Bid {
		return "BID"
	}
	return "ASK"
}

const (
	ActionBid Action = iota
	ActionAsk
	ActionCancel
	ActionMove
	ActionReduce
)

func (a Action) String() string {
	switch a {
	case ActionBid:
		return "BID"
	case ActionAsk:
		return "ASK"
	case ActionCancel:
		return "CANCEL"
	case ActionMove:
		return "MOVE"
	case ActionReduce:
		return "REDUCE"
	}
	return "UNKNOWN"
}

const (
	GTC OrderType = iota
	IOC
	FOK
	PostOnly
	StopLimit
	StopMarket
	Iceberg
	Day
	GTD
)

func (t OrderType) String() string {
	switch t {
	case GTC:
		return "GTC"
	case IOC:
		return "IOC"
	case FOK:
		return "FOK"
	case PostOnly:
		return "POST_ONLY"
	case StopLimit:
		return "STOP_LIMIT"
	case StopMarket:
		return "STOP_MARKET"
	case Iceberg:
		return "ICEBERG"
	case Day:
		return "DAY"
	case GTD:
		return "GTD"
	}
	return "UNKNOWN"
}

const (
	Spot SymbolType = iota
	Futures
	Perpetual
	CallOption
	PutOption
)

// SymbolSpec is the read-only contract definition a book is built from.
// Fees are basis points and are carried through untouched; settlement
// happens upstream.
type SymbolSpec struct {
	SymbolID      uint32
	Type          SymbolType
	BaseCurrency  uint32
	QuoteCurrency uint32
	BaseScaleK    int64
	QuoteScaleK   int64
	TakerFee      int64
	MakerFee      int64
	MarginBuy     int64
	MarginSell    int64
}
