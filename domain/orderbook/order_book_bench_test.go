package orderbook

import (
	"testing"

	"tyr/api"
)

func BenchmarkPlaceResting(b *testing.B) {
	book := NewOrderBook(api.SymbolSpec{SymbolID: testSymbol}, Config{PoolCapacity: max(b.N, 1)})
	cmd := &api.OrderCommand{}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		cmd.Reset()
		cmd.UID = 1
		cmd.OrderID = uint64(i + 1)
		cmd.Symbol = testSymbol
		cmd.Action = api.ActionBid
		cmd.Type = api.GTC
		cmd.Price = 100 - int64(i%64)
		cmd.Size = 10
		book.Apply(cmd)
	}
}

func BenchmarkCancel(b *testing.B) {
	book := NewOrderBook(api.SymbolSpec{SymbolID: testSymbol}, Config{PoolCapacity: max(b.N, 1)})
	for i := 0; i < b.N; i++ {
		apply(book, placeCmd(api.ActionBid, api.GTC, 1, uint64(i+1), 100-int64(i%64), 10))
	}
	cmd := &api.OrderCommand{}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		cmd.Reset()
		cmd.UID = 1
		cmd.OrderID = uint64(i + 1)
		cmd.Symbol = testSymbol
		cmd.Action = api.ActionCancel
		book.Apply(cmd)
	}
}

func BenchmarkCrossAndFill(b *testing.B) {
	book := NewOrderBook(api.SymbolSpec{SymbolID: testSymbol}, Config{PoolCapacity: 16})
	rest := &api.OrderCommand{}
	take := &api.OrderCommand{}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		rest.Reset()
		rest.UID = 1
		rest.OrderID = uint64(2*i + 1)
		rest.Symbol = testSymbol
		rest.Action = api.ActionAsk
		rest.Type = api.GTC
		rest.Price = 100
		rest.Size = 10
		book.Apply(rest)

		take.Reset()
		take.UID = 2
		take.OrderID = uint64(2*i + 2)
		take.Symbol = testSymbol
		take.Action = api.ActionBid
		take.Type = api.IOC
		take.Price = 100
		take.Size = 10
		book.Apply(take)
	}
}
