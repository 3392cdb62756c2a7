package orderbook

import "tyr/api"

// FillL2 overwrites md with the top depth levels per side. Volumes are
// visible quantity only; iceberg reserve stays hidden here just as it
// does for matching.
func (b *OrderBook) FillL2(md *api.L2MarketData, depth int) {
	md.Symbol = b.spec.SymbolID
	md.Timestamp = b.clock
	md.LastTradePrice = b.lastTrade

	md.AskPrices = md.AskPrices[:0]
	md.AskVolumes = md.AskVolumes[:0]
	md.AskOrders = md.AskOrders[:0]
	md.BidPrices = md.BidPrices[:0]
	md.BidVolumes = md.BidVolumes[:0]
	md.BidOrders = md.BidOrders[:0]

	n := 0
	b.Asks.ForEachAscending(func(lvl *PriceLevel) bool {
		if n >= depth {
			return false
		}
		md.AskPrices = append(md.AskPrices, lvl.Price)
		md.AskVolumes = append(md.AskVolumes, lvl.TotalVisible)
		md.AskOrders = append(md.AskOrders, lvl.OrderCount)
		n++
		return true
	})
	n = 0
	b.Bids.ForEachDescending(func(lvl *PriceLevel) bool {
		if n >= depth {
			return false
		}
		md.BidPrices = append(md.BidPrices, lvl.Price)
		md.BidVolumes = append(md.BidVolumes, lvl.TotalVisible)
		md.BidOrders = append(md.BidOrders, lvl.OrderCount)
		n++
		return true
	})
}

// L2 allocates and fills a fresh view.
func (b *OrderBook) L2(depth int) *api.L2MarketData {
	md := api.NewL2MarketData(b.spec.SymbolID, depth)
	b.FillL2(md, depth)
	return md
}
