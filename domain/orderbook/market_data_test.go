package orderbook

import (
	"testing"

	"tyr/api"
)

func TestL2TopOfBook(t *testing.T) {
	b := newTestBook()
	apply(b, placeCmd(api.ActionAsk, api.GTC, 1, 1, 105, 10))
	apply(b, placeCmd(api.ActionAsk, api.GTC, 1, 2, 103, 4))
	apply(b, placeCmd(api.ActionAsk, api.GTC, 2, 3, 103, 6))
	apply(b, placeCmd(api.ActionBid, api.GTC, 3, 4, 99, 5))
	apply(b, placeCmd(api.ActionBid, api.GTC, 3, 5, 97, 5))
	apply(b, placeCmd(api.ActionBid, api.IOC, 4, 6, 103, 1))

	md := b.L2(2)
	if md.Symbol != testSymbol || md.LastTradePrice != 103 {
		t.Fatalf("header wrong: %+v", md)
	}
	if len(md.AskPrices) != 2 || md.AskPrices[0] != 103 || md.AskPrices[1] != 105 {
		t.Errorf("ask ladder: %v", md.AskPrices)
	}
	if md.AskVolumes[0] != 9 || md.AskOrders[0] != 2 {
		t.Errorf("best ask aggregate: vol %d orders %d", md.AskVolumes[0], md.AskOrders[0])
	}
	if len(md.BidPrices) != 2 || md.BidPrices[0] != 99 || md.BidPrices[1] != 97 {
		t.Errorf("bid ladder: %v", md.BidPrices)
	}
}

func TestL2DepthLimitAndHiddenExcluded(t *testing.T) {
	b := newTestBook()
	for i := int64(1); i <= 5; i++ {
		apply(b, placeCmd(api.ActionBid, api.GTC, 1, uint64(i), 90+i, 1))
	}
	ice := placeCmd(api.ActionAsk, api.Iceberg, 2, 10, 100, 500)
	ice.VisibleSize = 50
	apply(b, ice)

	md := b.L2(3)
	if len(md.BidPrices) != 3 || md.BidPrices[0] != 95 {
		t.Errorf("depth cap: %v", md.BidPrices)
	}
	if len(md.AskVolumes) != 1 || md.AskVolumes[0] != 50 {
		t.Errorf("iceberg reserve must stay hidden: %v", md.AskVolumes)
	}

	// reused buffer shrinks with the book
	apply(b, placeCmd(api.ActionCancel, 0, 1, 5, 0, 0))
	b.FillL2(md, 3)
	if len(md.BidPrices) != 3 || md.BidPrices[0] != 94 {
		t.Errorf("refill after cancel: %v", md.BidPrices)
	}
}
