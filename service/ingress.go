package service

import (
	"context"
	"time"

	"tyr/api"
	"tyr/infra/ring"
)

const (
	ingressBatch = 256
	// ingressIdle is how long the drain loop sleeps when the ring is
	// empty. Short enough to keep tail latency flat, long enough not
	// to burn a core on an idle market.
	ingressIdle = 100 * time.Microsecond
)

// RunIngress drains commands from the ring into the engine until ctx
// is cancelled. This is the fire-and-forget path: callers observe the
// outcome through the event feed, not through a return value. Each
// drained batch is applied under one acquisition of the write lock.
func (e *Engine) RunIngress(ctx context.Context, in *ring.SPSC[*api.OrderCommand]) {
	batch := make([]*api.OrderCommand, ingressBatch)

	for {
		n := in.Drain(batch)
		if n == 0 {
			select {
			case <-ctx.Done():
				return
			default:
			}
			time.Sleep(ingressIdle)
			continue
		}

		e.mu.Lock()
		for _, cmd := range batch[:n] {
			if err := e.submit(cmd); err != nil {
				e.log.Errorw("ingress submit failed",
					"symbol", cmd.Symbol, "uid", cmd.UID, "order", cmd.OrderID, "err", err)
			}
		}
		e.mu.Unlock()
	}
}
