// Package marketdata periodically snapshots every book's top levels
// and publishes them as JSON frames, keyed by symbol. The feed is a
// rolling view; consumers only care about the newest frame, so frames
// are fire-and-forget and carry no outbox guarantees.
package marketdata

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"go.uber.org/zap"

	"tyr/api"
)

const frameVersion = 1

// Source yields L2 views of the live books.
type Source interface {
	Symbols() []uint32
	L2(symbol uint32, depth int) (*api.L2MarketData, error)
}

// Sender publishes one frame. *kafka.Producer satisfies it.
type Sender interface {
	Send(ctx context.Context, key, value []byte) error
}

// Frame is the published JSON shape.
type Frame struct {
	V              int      `json:"v"`
	Symbol         uint32   `json:"symbol"`
	Timestamp      uint64   `json:"ts"`
	LastTradePrice int64    `json:"last_trade_price"`
	BidPrices      []int64  `json:"bid_prices"`
	BidVolumes     []uint64 `json:"bid_volumes"`
	AskPrices      []int64  `json:"ask_prices"`
	AskVolumes     []uint64 `json:"ask_volumes"`
}

type Publisher struct {
	src      Source
	sender   Sender
	depth    int
	interval time.Duration
	log      *zap.SugaredLogger
}

func New(src Source, sender Sender, depth int, interval time.Duration, log *zap.SugaredLogger) *Publisher {
	return &Publisher{
		src:      src,
		sender:   sender,
		depth:    depth,
		interval: interval,
		log:      log,
	}
}

// Run publishes until ctx is cancelled.
func (p *Publisher) Run(ctx context.Context) {
	p.log.Infow("market data publisher started", "depth", p.depth, "interval", p.interval)
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.log.Info("market data publisher stopped")
			return
		case <-ticker.C:
			p.publishAll(ctx)
		}
	}
}

func (p *Publisher) publishAll(ctx context.Context) {
	for _, sym := range p.src.Symbols() {
		if err := p.publishOne(ctx, sym); err != nil {
			p.log.Warnw("l2 publish failed", "symbol", sym, "error", err)
		}
	}
}

func (p *Publisher) publishOne(ctx context.Context, sym uint32) error {
	md, err := p.src.L2(sym, p.depth)
	if err != nil {
		return err
	}
	buf, err := json.Marshal(Frame{
		V:              frameVersion,
		Symbol:         md.Symbol,
		Timestamp:      md.Timestamp,
		LastTradePrice: md.LastTradePrice,
		BidPrices:      md.BidPrices,
		BidVolumes:     md.BidVolumes,
		AskPrices:      md.AskPrices,
		AskVolumes:     md.AskVolumes,
	})
	if err != nil {
		return err
	}
	key := strconv.FormatUint(uint64(sym), 10)
	return p.sender.Send(ctx, []byte(key), buf)
}
