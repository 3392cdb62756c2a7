package api

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// Binary codec for commands, events and L2 views, using the protobuf
// wire format directly. Zero-valued fields are omitted, unknown fields
// are skipped, so frames stay forward and backward compatible without
// generated code.
//
// OrderCommand field numbers:
//
//	1 seq  2 uid  3 order_id  4 symbol  5 action  6 order_type
//	7 price  8 reserve_price  9 stop_price  10 size  11 visible_size
//	12 expire_time  13 timestamp  14 events (length-delimited, repeated)
//
// MatcherEvent field numbers:
//
//	1 type  2 maker_uid  3 maker_order_id  4 taker_uid  5 taker_order_id
//	6 order_id  7 uid  8 price  9 size  10 remaining
//	11 cancel_reason  12 reject_reason  13 timestamp

func appendUvarintField(b []byte, num protowire.Number, v uint64) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

func appendIvarintField(b []byte, num protowire.Number, v int64) []byte {
	return appendUvarintField(b, num, uint64(v))
}

// AppendCommand appends the wire encoding of c to b.
func AppendCommand(b []byte, c *OrderCommand) []byte {
	b = appendUvarintField(b, 1, c.Seq)
	b = appendUvarintField(b, 2, c.UID)
	b = appendUvarintField(b, 3, c.OrderID)
	b = appendUvarintField(b, 4, uint64(c.Symbol))
	b = appendUvarintField(b, 5, uint64(c.Action))
	b = appendUvarintField(b, 6, uint64(c.Type))
	b = appendIvarintField(b, 7, c.Price)
	b = appendIvarintField(b, 8, c.ReservePrice)
	b = appendIvarintField(b, 9, c.StopPrice)
	b = appendUvarintField(b, 10, c.Size)
	b = appendUvarintField(b, 11, c.VisibleSize)
	b = appendUvarintField(b, 12, c.ExpireTime)
	b = appendUvarintField(b, 13, c.Timestamp)
	for i := range c.Events {
		sub := AppendEvent(nil, &c.Events[i])
		b = protowire.AppendTag(b, 14, protowire.BytesType)
		b = protowire.AppendBytes(b, sub)
	}
	return b
}

// EncodeCommand encodes c into a fresh buffer.
func EncodeCommand(c *OrderCommand) []byte {
	return AppendCommand(make([]byte, 0, 64), c)
}

// DecodeCommand parses a wire-encoded command.
func DecodeCommand(b []byte) (*OrderCommand, error) {
	c := &OrderCommand{}
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, fmt.Errorf("command tag: %w", protowire.ParseError(n))
		}
		b = b[n:]
		if typ == protowire.VarintType && num >= 1 && num <= 13 {
			v, m := protowire.ConsumeVarint(b)
			if m < 0 {
				return nil, fmt.Errorf("command field %d: %w", num, protowire.ParseError(m))
			}
			b = b[m:]
			switch num {
			case 1:
				c.Seq = v
			case 2:
				c.UID = v
			case 3:
				c.OrderID = v
			case 4:
				c.Symbol = uint32(v)
			case 5:
				c.Action = Action(v)
			case 6:
				c.Type = OrderType(v)
			case 7:
				c.Price = int64(v)
			case 8:
				c.ReservePrice = int64(v)
			case 9:
				c.StopPrice = int64(v)
			case 10:
				c.Size = v
			case 11:
				c.VisibleSize = v
			case 12:
				c.ExpireTime = v
			case 13:
				c.Timestamp = v
			}
			continue
		}
		if num == 14 && typ == protowire.BytesType {
			v, m := protowire.ConsumeBytes(b)
			if m < 0 {
				return nil, fmt.Errorf("command events: %w", protowire.ParseError(m))
			}
			b = b[m:]
			ev, err := DecodeEvent(v)
			if err != nil {
				return nil, err
			}
			c.Events = append(c.Events, *ev)
			continue
		}
		m := protowire.ConsumeFieldValue(num, typ, b)
		if m < 0 {
			return nil, fmt.Errorf("command field %d: %w", num, protowire.ParseError(m))
		}
		b = b[m:]
	}
	return c, nil
}

// AppendEvent appends the wire encoding of ev to b.
func AppendEvent(b []byte, ev *MatcherEvent) []byte {
	b = appendUvarintField(b, 1, uint64(ev.Type))
	b = appendUvarintField(b, 2, ev.MakerUID)
	b = appendUvarintField(b, 3, ev.MakerOrderID)
	b = appendUvarintField(b, 4, ev.TakerUID)
	b = appendUvarintField(b, 5, ev.TakerOrderID)
	b = appendUvarintField(b, 6, ev.OrderID)
	b = appendUvarintField(b, 7, ev.UID)
	b = appendIvarintField(b, 8, ev.Price)
	b = appendUvarintField(b, 9, ev.Size)
	b = appendUvarintField(b, 10, ev.Remaining)
	b = appendUvarintField(b, 11, uint64(ev.CancelReason))
	b = appendUvarintField(b, 12, uint64(ev.RejectReason))
	b = appendUvarintField(b, 13, ev.Timestamp)
	return b
}

// EncodeEvent encodes ev into a fresh buffer.
func EncodeEvent(ev *MatcherEvent) []byte {
	return AppendEvent(make([]byte, 0, 48), ev)
}

// DecodeEvent parses a wire-encoded matcher event.
func DecodeEvent(b []byte) (*MatcherEvent, error) {
	ev := &MatcherEvent{}
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, fmt.Errorf("event tag: %w", protowire.ParseError(n))
		}
		b = b[n:]
		if typ != protowire.VarintType {
			m := protowire.ConsumeFieldValue(num, typ, b)
			if m < 0 {
				return nil, fmt.Errorf("event field %d: %w", num, protowire.ParseError(m))
			}
			b = b[m:]
			continue
		}
		v, m := protowire.ConsumeVarint(b)
		if m < 0 {
			return nil, fmt.Errorf("event field %d: %w", num, protowire.ParseError(m))
		}
		b = b[m:]
		switch num {
		case 1:
			ev.Type = EventType(v)
		case 2:
			ev.MakerUID = v
		case 3:
			ev.MakerOrderID = v
		case 4:
			ev.TakerUID = v
		case 5:
			ev.TakerOrderID = v
		case 6:
			ev.OrderID = v
		case 7:
			ev.UID = v
		case 8:
			ev.Price = int64(v)
		case 9:
			ev.Size = v
		case 10:
			ev.Remaining = v
		case 11:
			ev.CancelReason = CancelReason(v)
		case 12:
			ev.RejectReason = RejectReason(v)
		case 13:
			ev.Timestamp = v
		}
	}
	return ev, nil
}

// AppendSymbolSpec appends the wire encoding of sp to b.
//
// Field numbers:
//
//	1 symbol_id  2 symbol_type  3 base_currency  4 quote_currency
//	5 base_scale_k  6 quote_scale_k  7 taker_fee  8 maker_fee
//	9 margin_buy  10 margin_sell
func AppendSymbolSpec(b []byte, sp *SymbolSpec) []byte {
	b = appendUvarintField(b, 1, uint64(sp.SymbolID))
	b = appendUvarintField(b, 2, uint64(sp.Type))
	b = appendUvarintField(b, 3, uint64(sp.BaseCurrency))
	b = appendUvarintField(b, 4, uint64(sp.QuoteCurrency))
	b = appendIvarintField(b, 5, sp.BaseScaleK)
	b = appendIvarintField(b, 6, sp.QuoteScaleK)
	b = appendIvarintField(b, 7, sp.TakerFee)
	b = appendIvarintField(b, 8, sp.MakerFee)
	b = appendIvarintField(b, 9, sp.MarginBuy)
	b = appendIvarintField(b, 10, sp.MarginSell)
	return b
}

// EncodeSymbolSpec encodes sp into a fresh buffer.
func EncodeSymbolSpec(sp *SymbolSpec) []byte {
	return AppendSymbolSpec(make([]byte, 0, 32), sp)
}

// DecodeSymbolSpec parses a wire-encoded symbol spec.
func DecodeSymbolSpec(b []byte) (*SymbolSpec, error) {
	sp := &SymbolSpec{}
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, fmt.Errorf("symbol spec tag: %w", protowire.ParseError(n))
		}
		b = b[n:]
		if typ != protowire.VarintType {
			m := protowire.ConsumeFieldValue(num, typ, b)
			if m < 0 {
				return nil, fmt.Errorf("symbol spec field %d: %w", num, protowire.ParseError(m))
			}
			b = b[m:]
			continue
		}
		v, m := protowire.ConsumeVarint(b)
		if m < 0 {
			return nil, fmt.Errorf("symbol spec field %d: %w", num, protowire.ParseError(m))
		}
		b = b[m:]
		switch num {
		case 1:
			sp.SymbolID = uint32(v)
		case 2:
			sp.Type = SymbolType(v)
		case 3:
			sp.BaseCurrency = uint32(v)
		case 4:
			sp.QuoteCurrency = uint32(v)
		case 5:
			sp.BaseScaleK = int64(v)
		case 6:
			sp.QuoteScaleK = int64(v)
		case 7:
			sp.TakerFee = int64(v)
		case 8:
			sp.MakerFee = int64(v)
		case 9:
			sp.MarginBuy = int64(v)
		case 10:
			sp.MarginSell = int64(v)
		}
	}
	return sp, nil
}

// L2Request asks the engine for a depth-bounded book view.
type L2Request struct {
	Symbol uint32
	Depth  uint32
}

// AppendL2Request appends the wire encoding of r to b.
func AppendL2Request(b []byte, r *L2Request) []byte {
	b = appendUvarintField(b, 1, uint64(r.Symbol))
	b = appendUvarintField(b, 2, uint64(r.Depth))
	return b
}

// DecodeL2Request parses a wire-encoded L2 request.
func DecodeL2Request(b []byte) (*L2Request, error) {
	r := &L2Request{}
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, fmt.Errorf("l2 request tag: %w", protowire.ParseError(n))
		}
		b = b[n:]
		if typ == protowire.VarintType {
			v, m := protowire.ConsumeVarint(b)
			if m < 0 {
				return nil, fmt.Errorf("l2 request field %d: %w", num, protowire.ParseError(m))
			}
			b = b[m:]
			switch num {
			case 1:
				r.Symbol = uint32(v)
			case 2:
				r.Depth = uint32(v)
			}
			continue
		}
		m := protowire.ConsumeFieldValue(num, typ, b)
		if m < 0 {
			return nil, fmt.Errorf("l2 request field %d: %w", num, protowire.ParseError(m))
		}
		b = b[m:]
	}
	return r, nil
}

// AppendIngestAck appends the wire encoding of a to b.
func AppendIngestAck(b []byte, a *IngestAck) []byte {
	return appendUvarintField(b, 1, a.Accepted)
}

// DecodeIngestAck parses a wire-encoded ingest ack.
func DecodeIngestAck(b []byte) (*IngestAck, error) {
	a := &IngestAck{}
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, fmt.Errorf("ingest ack tag: %w", protowire.ParseError(n))
		}
		b = b[n:]
		if typ == protowire.VarintType && num == 1 {
			v, m := protowire.ConsumeVarint(b)
			if m < 0 {
				return nil, fmt.Errorf("ingest ack field %d: %w", num, protowire.ParseError(m))
			}
			b = b[m:]
			a.Accepted = v
			continue
		}
		m := protowire.ConsumeFieldValue(num, typ, b)
		if m < 0 {
			return nil, fmt.Errorf("ingest ack field %d: %w", num, protowire.ParseError(m))
		}
		b = b[m:]
	}
	return a, nil
}

func appendPackedI64(b []byte, num protowire.Number, vs []int64) []byte {
	if len(vs) == 0 {
		return b
	}
	sub := make([]byte, 0, len(vs)*2)
	for _, v := range vs {
		sub = protowire.AppendVarint(sub, uint64(v))
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, sub)
}

func appendPackedU64(b []byte, num protowire.Number, vs []uint64) []byte {
	if len(vs) == 0 {
		return b
	}
	sub := make([]byte, 0, len(vs)*2)
	for _, v := range vs {
		sub = protowire.AppendVarint(sub, v)
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, sub)
}

func appendPackedU32(b []byte, num protowire.Number, vs []uint32) []byte {
	if len(vs) == 0 {
		return b
	}
	sub := make([]byte, 0, len(vs)*2)
	for _, v := range vs {
		sub = protowire.AppendVarint(sub, uint64(v))
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, sub)
}

func consumePackedVarints(b []byte) ([]uint64, error) {
	var out []uint64
	for len(b) > 0 {
		v, m := protowire.ConsumeVarint(b)
		if m < 0 {
			return nil, protowire.ParseError(m)
		}
		out = append(out, v)
		b = b[m:]
	}
	return out, nil
}

// AppendL2 appends the wire encoding of md to b. The six depth slices
// are packed varints.
func AppendL2(b []byte, md *L2MarketData) []byte {
	b = appendUvarintField(b, 1, uint64(md.Symbol))
	b = appendUvarintField(b, 2, md.Timestamp)
	b = appendIvarintField(b, 3, md.LastTradePrice)
	b = appendPackedI64(b, 4, md.AskPrices)
	b = appendPackedU64(b, 5, md.AskVolumes)
	b = appendPackedU32(b, 6, md.AskOrders)
	b = appendPackedI64(b, 7, md.BidPrices)
	b = appendPackedU64(b, 8, md.BidVolumes)
	b = appendPackedU32(b, 9, md.BidOrders)
	return b
}

// DecodeL2 parses a wire-encoded L2 view.
func DecodeL2(b []byte) (*L2MarketData, error) {
	md := &L2MarketData{}
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, fmt.Errorf("l2 tag: %w", protowire.ParseError(n))
		}
		b = b[n:]
		switch {
		case typ == protowire.VarintType && num >= 1 && num <= 3:
			v, m := protowire.ConsumeVarint(b)
			if m < 0 {
				return nil, fmt.Errorf("l2 field %d: %w", num, protowire.ParseError(m))
			}
			b = b[m:]
			switch num {
			case 1:
				md.Symbol = uint32(v)
			case 2:
				md.Timestamp = v
			case 3:
				md.LastTradePrice = int64(v)
			}
		case typ == protowire.BytesType && num >= 4 && num <= 9:
			raw, m := protowire.ConsumeBytes(b)
			if m < 0 {
				return nil, fmt.Errorf("l2 field %d: %w", num, protowire.ParseError(m))
			}
			b = b[m:]
			vs, err := consumePackedVarints(raw)
			if err != nil {
				return nil, fmt.Errorf("l2 field %d: %w", num, err)
			}
			switch num {
			case 4:
				md.AskPrices = asI64(vs)
			case 5:
				md.AskVolumes = vs
			case 6:
				md.AskOrders = asU32(vs)
			case 7:
				md.BidPrices = asI64(vs)
			case 8:
				md.BidVolumes = vs
			case 9:
				md.BidOrders = asU32(vs)
			}
		default:
			m := protowire.ConsumeFieldValue(num, typ, b)
			if m < 0 {
				return nil, fmt.Errorf("l2 field %d: %w", num, protowire.ParseError(m))
			}
			b = b[m:]
		}
	}
	return md, nil
}

func asI64(vs []uint64) []int64 {
	out := make([]int64, len(vs))
	for i, v := range vs {
		out[i] = int64(v)
	}
	return out
}

func asU32(vs []uint64) []uint32 {
	out := make([]uint32, len(vs))
	for i, v := range vs {
		out[i] = uint32(v)
	}
	return out
}
