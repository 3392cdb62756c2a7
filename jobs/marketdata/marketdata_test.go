package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"go.uber.org/zap"

	"tyr/api"
)

type stubSource struct {
	books map[uint32]*api.L2MarketData
}

func (s *stubSource) Symbols() []uint32 {
	out := make([]uint32, 0, len(s.books))
	for sym := range s.books {
		out = append(out, sym)
	}
	return out
}

func (s *stubSource) L2(sym uint32, depth int) (*api.L2MarketData, error) {
	md, ok := s.books[sym]
	if !ok {
		return nil, fmt.Errorf("unknown symbol %d", sym)
	}
	return md, nil
}

type stubSender struct {
	keys   []string
	values [][]byte
}

func (s *stubSender) Send(_ context.Context, key, value []byte) error {
	s.keys = append(s.keys, string(key))
	s.values = append(s.values, append([]byte(nil), value...))
	return nil
}

func TestPublishOneFrame(t *testing.T) {
	src := &stubSource{books: map[uint32]*api.L2MarketData{
		7: {
			Symbol:         7,
			Timestamp:      123,
			LastTradePrice: 101,
			BidPrices:      []int64{100, 99},
			BidVolumes:     []uint64{5, 8},
			AskPrices:      []int64{102},
			AskVolumes:     []uint64{3},
		},
	}}
	snd := &stubSender{}
	p := New(src, snd, 10, time.Second, zap.NewNop().Sugar())

	p.publishAll(context.Background())

	if len(snd.values) != 1 || snd.keys[0] != "7" {
		t.Fatalf("sent %d frames, keys %v", len(snd.values), snd.keys)
	}
	var f Frame
	if err := json.Unmarshal(snd.values[0], &f); err != nil {
		t.Fatalf("frame is not valid json: %v", err)
	}
	if f.V != frameVersion || f.Symbol != 7 || f.LastTradePrice != 101 {
		t.Errorf("frame header: %+v", f)
	}
	if len(f.BidPrices) != 2 || f.BidPrices[0] != 100 || f.AskVolumes[0] != 3 {
		t.Errorf("frame ladder: %+v", f)
	}
}

func TestPublishAllCoversEverySymbol(t *testing.T) {
	src := &stubSource{books: map[uint32]*api.L2MarketData{
		1: {Symbol: 1},
		2: {Symbol: 2},
		3: {Symbol: 3},
	}}
	snd := &stubSender{}
	p := New(src, snd, 5, time.Second, zap.NewNop().Sugar())

	p.publishAll(context.Background())

	if len(snd.values) != 3 {
		t.Fatalf("published %d of 3", len(snd.values))
	}
	seen := map[string]bool{}
	for _, k := range snd.keys {
		seen[k] = true
	}
	if !seen["1"] || !seen["2"] || !seen["3"] {
		t.Errorf("keys %v", snd.keys)
	}
}
