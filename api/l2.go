package api

// L2MarketData is a depth-bounded view of one book, parallel-slice
// encoded the way feed consumers expect it. LastTradePrice is 0 until
// the book has traded.
type L2MarketData struct {
	Symbol         uint32
	Timestamp      uint64
	LastTradePrice int64

	AskPrices  []int64
	AskVolumes []uint64
	AskOrders  []uint32

	BidPrices  []int64
	BidVolumes []uint64
	BidOrders  []uint32
}

// NewL2MarketData preallocates the parallel slices for depth levels.
func NewL2MarketData(symbol uint32, depth int) *L2MarketData {
	return &L2MarketData{
		Symbol:     symbol,
		AskPrices:  make([]int64, 0, depth),
		AskVolumes: make([]uint64, 0, depth),
		AskOrders:  make([]uint32, 0, depth),
		BidPrices:  make([]int64, 0, depth),
		BidVolumes: make([]uint64, 0, depth),
		BidOrders:  make([]uint32, 0, depth),
	}
}
