package service

import (
	"context"
	"reflect"
	"testing"
	"time"

	"go.uber.org/zap"

	"tyr/api"
	"tyr/infra/outbox"
	"tyr/infra/ring"
	"tyr/infra/wal"
	"tyr/snapshot"
)

const testSym uint32 = 7

type testDirs struct {
	wal   string
	box   string
	snaps string
}

func newTestDirs(t *testing.T) testDirs {
	return testDirs{wal: t.TempDir(), box: t.TempDir(), snaps: t.TempDir()}
}

// openEngine builds an engine over dirs and recovers it, so calling it
// twice on the same dirs is a restart.
func openEngine(t *testing.T, d testDirs) *Engine {
	t.Helper()

	journal, err := wal.Open(wal.Config{Dir: d.wal, SegmentSize: 512})
	if err != nil {
		t.Fatalf("open wal: %v", err)
	}
	events, err := outbox.Open(d.box)
	if err != nil {
		t.Fatalf("open outbox: %v", err)
	}
	snaps, err := snapshot.NewWriter(d.snaps)
	if err != nil {
		t.Fatalf("snapshot writer: %v", err)
	}

	e := New(journal, events, snaps, Config{
		WALDir:       d.wal,
		SnapshotDir:  d.snaps,
		SnapshotKeep: 2,
		PoolCapacity: 128,
	}, zap.NewNop().Sugar())
	if err := e.Recover(); err != nil {
		t.Fatalf("recover: %v", err)
	}
	return e
}

func closeEngine(t *testing.T, e *Engine) {
	t.Helper()
	if err := e.Close(); err != nil {
		t.Fatalf("close engine: %v", err)
	}
	if err := e.events.Close(); err != nil {
		t.Fatalf("close outbox: %v", err)
	}
}

func testSpec(sym uint32) api.SymbolSpec {
	return api.SymbolSpec{
		SymbolID:      sym,
		BaseCurrency:  1,
		QuoteCurrency: 840,
		BaseScaleK:    1,
		QuoteScaleK:   1,
	}
}

func place(action api.Action, typ api.OrderType, uid, oid uint64, price int64, size uint64) *api.OrderCommand {
	return &api.OrderCommand{
		Symbol:    testSym,
		UID:       uid,
		OrderID:   oid,
		Action:    action,
		Type:      typ,
		Price:     price,
		Size:      size,
		Timestamp: 1,
	}
}

func mustSubmit(t *testing.T, e *Engine, cmd *api.OrderCommand) *api.OrderCommand {
	t.Helper()
	if err := e.Submit(cmd); err != nil {
		t.Fatalf("submit uid=%d oid=%d: %v", cmd.UID, cmd.OrderID, err)
	}
	return cmd
}

func TestSubmitPipeline(t *testing.T) {
	d := newTestDirs(t)
	e := openEngine(t, d)
	defer closeEngine(t, e)

	if err := e.AddSymbol(testSpec(testSym)); err != nil {
		t.Fatalf("add symbol: %v", err)
	}
	if err := e.AddSymbol(testSpec(testSym)); err == nil {
		t.Fatal("duplicate listing must fail")
	}

	rest := mustSubmit(t, e, place(api.ActionAsk, api.GTC, 1, 1, 100, 10))
	if rest.Seq != 2 {
		t.Fatalf("first command after listing got seq %d", rest.Seq)
	}
	if len(rest.Events) != 0 {
		t.Fatalf("resting order produced events: %+v", rest.Events)
	}

	take := mustSubmit(t, e, place(api.ActionBid, api.IOC, 2, 2, 100, 7))
	if len(take.Events) != 1 || take.Events[0].Type != api.EventTrade {
		t.Fatalf("cross events: %+v", take.Events)
	}
	if ev := take.Events[0]; ev.Price != 100 || ev.Size != 7 {
		t.Fatalf("trade %d@%d", ev.Size, ev.Price)
	}
	if e.Seq() != 3 {
		t.Fatalf("engine at seq %d", e.Seq())
	}

	md, err := e.L2(testSym, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(md.AskPrices) != 1 || md.AskPrices[0] != 100 || md.AskVolumes[0] != 3 {
		t.Fatalf("l2 after cross: %+v", md)
	}
	if _, err := e.L2(999, 10); err == nil {
		t.Fatal("unknown symbol must fail the query")
	}
	if syms := e.Symbols(); len(syms) != 1 || syms[0] != testSym {
		t.Fatalf("symbols: %v", syms)
	}

	// only the trade command produced events, one outbox entry
	var staged int
	err = e.events.Scan(outbox.StateNew, 0, func(en outbox.Entry) error {
		staged++
		if en.Seq != take.Seq {
			t.Fatalf("staged under seq %d, want %d", en.Seq, take.Seq)
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if staged != 1 {
		t.Fatalf("staged %d entries", staged)
	}
}

func TestUnknownSymbolRejected(t *testing.T) {
	d := newTestDirs(t)
	e := openEngine(t, d)
	defer closeEngine(t, e)

	cmd := place(api.ActionBid, api.GTC, 1, 1, 100, 5)
	if err := e.Submit(cmd); err != nil {
		t.Fatal(err)
	}
	if len(cmd.Events) != 1 || cmd.Events[0].Type != api.EventReject {
		t.Fatalf("events: %+v", cmd.Events)
	}
	if cmd.Events[0].RejectReason != api.RejectSymbolMismatch {
		t.Fatalf("reject reason %v", cmd.Events[0].RejectReason)
	}
	// nothing journaled, no sequence consumed
	if e.Seq() != 0 {
		t.Fatalf("engine at seq %d", e.Seq())
	}
}

func TestRecoverRebuildsBooks(t *testing.T) {
	d := newTestDirs(t)

	e1 := openEngine(t, d)
	if err := e1.AddSymbol(testSpec(testSym)); err != nil {
		t.Fatal(err)
	}
	mustSubmit(t, e1, place(api.ActionAsk, api.GTC, 1, 11, 105, 3))
	mustSubmit(t, e1, place(api.ActionAsk, api.GTC, 1, 12, 103, 5))
	mustSubmit(t, e1, place(api.ActionBid, api.GTC, 2, 21, 99, 2))
	mustSubmit(t, e1, place(api.ActionBid, api.IOC, 3, 31, 103, 2))

	stop := place(api.ActionBid, api.StopLimit, 4, 41, 210, 1)
	stop.StopPrice = 200
	mustSubmit(t, e1, stop)

	want := e1.books[testSym].ExportState()
	wantSeq := e1.Seq()
	closeEngine(t, e1)

	e2 := openEngine(t, d)
	defer closeEngine(t, e2)

	if e2.Seq() != wantSeq {
		t.Fatalf("recovered at seq %d, want %d", e2.Seq(), wantSeq)
	}
	got := e2.books[testSym].ExportState()
	if !reflect.DeepEqual(want, got) {
		t.Fatalf("state diverged across restart:\n want %+v\n got  %+v", want, got)
	}

	// the rebuilt book must keep matching where the old one left off
	take := mustSubmit(t, e2, place(api.ActionBid, api.IOC, 5, 51, 103, 3))
	if len(take.Events) != 1 || take.Events[0].Price != 103 || take.Events[0].Size != 3 {
		t.Fatalf("post-recovery cross: %+v", take.Events)
	}
}

func TestCheckpointAndRecover(t *testing.T) {
	d := newTestDirs(t)

	e1 := openEngine(t, d)
	if err := e1.AddSymbol(testSpec(testSym)); err != nil {
		t.Fatal(err)
	}
	for i := uint64(1); i <= 20; i++ {
		mustSubmit(t, e1, place(api.ActionAsk, api.GTC, 1, i, 100+int64(i), 5))
	}

	id, err := e1.Checkpoint()
	if err != nil {
		t.Fatalf("checkpoint: %v", err)
	}
	if id == "" {
		t.Fatal("checkpoint returned no id")
	}

	// traffic after the checkpoint lives only in the journal tail
	mustSubmit(t, e1, place(api.ActionCancel, api.GTC, 1, 3, 0, 0))
	mustSubmit(t, e1, place(api.ActionCancel, api.GTC, 1, 7, 0, 0))
	mustSubmit(t, e1, place(api.ActionBid, api.IOC, 2, 100, 101, 5))

	want := e1.books[testSym].ExportState()
	wantSeq := e1.Seq()
	closeEngine(t, e1)

	e2 := openEngine(t, d)
	defer closeEngine(t, e2)

	if e2.Seq() != wantSeq {
		t.Fatalf("recovered at seq %d, want %d", e2.Seq(), wantSeq)
	}
	got := e2.books[testSym].ExportState()
	if !reflect.DeepEqual(want, got) {
		t.Fatalf("state diverged across checkpointed restart:\n want %+v\n got  %+v", want, got)
	}

	next := mustSubmit(t, e2, place(api.ActionBid, api.GTC, 3, 200, 90, 1))
	if next.Seq != wantSeq+1 {
		t.Fatalf("sequence resumed at %d, want %d", next.Seq, wantSeq+1)
	}
}

func TestCheckpointTrimsAckedOutbox(t *testing.T) {
	d := newTestDirs(t)
	e := openEngine(t, d)
	defer closeEngine(t, e)

	if err := e.AddSymbol(testSpec(testSym)); err != nil {
		t.Fatal(err)
	}
	mustSubmit(t, e, place(api.ActionAsk, api.GTC, 1, 1, 100, 5))
	mustSubmit(t, e, place(api.ActionBid, api.IOC, 2, 2, 100, 5))
	mustSubmit(t, e, place(api.ActionAsk, api.GTC, 1, 3, 100, 5))
	mustSubmit(t, e, place(api.ActionBid, api.IOC, 2, 4, 100, 2))

	type key struct {
		seq   uint64
		index uint32
	}
	var staged []key
	if err := e.events.Scan(outbox.StateNew, 0, func(en outbox.Entry) error {
		staged = append(staged, key{en.Seq, en.Index})
		return nil
	}); err != nil {
		t.Fatal(err)
	}
	if len(staged) == 0 {
		t.Fatal("no events staged")
	}
	for _, k := range staged {
		if err := e.events.MarkSent(k.seq, k.index); err != nil {
			t.Fatal(err)
		}
		if err := e.events.MarkAcked(k.seq, k.index); err != nil {
			t.Fatal(err)
		}
	}

	if _, err := e.Checkpoint(); err != nil {
		t.Fatal(err)
	}

	var acked int
	if err := e.events.Scan(outbox.StateAcked, 0, func(outbox.Entry) error {
		acked++
		return nil
	}); err != nil {
		t.Fatal(err)
	}
	if acked != 0 {
		t.Fatalf("%d acked entries survived the checkpoint", acked)
	}
}

func TestIngressRingApplies(t *testing.T) {
	d := newTestDirs(t)
	e := openEngine(t, d)
	defer closeEngine(t, e)

	if err := e.AddSymbol(testSpec(testSym)); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	in := ring.New[*api.OrderCommand](8)
	done := make(chan struct{})
	go func() {
		defer close(done)
		e.RunIngress(ctx, in)
	}()

	for i := uint64(1); i <= 3; i++ {
		if !in.Offer(place(api.ActionBid, api.GTC, 1, i, 100-int64(i), 1)) {
			t.Fatalf("ring rejected command %d", i)
		}
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		md, err := e.L2(testSym, 10)
		if err != nil {
			t.Fatal(err)
		}
		if len(md.BidPrices) == 3 {
			break
		}
		if time.Now().After(deadline) {
			cancel()
			t.Fatalf("ring commands not applied, l2: %+v", md)
		}
		time.Sleep(2 * time.Millisecond)
	}

	cancel()
	<-done
}

func TestSnapshotJobWritesCheckpoints(t *testing.T) {
	d := newTestDirs(t)
	e := openEngine(t, d)
	defer closeEngine(t, e)

	if err := e.AddSymbol(testSpec(testSym)); err != nil {
		t.Fatal(err)
	}
	mustSubmit(t, e, place(api.ActionAsk, api.GTC, 1, 1, 100, 5))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		e.RunSnapshots(ctx, 10*time.Millisecond)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for {
		snap, err := snapshot.LoadLatest(d.snaps)
		if err != nil {
			t.Fatal(err)
		}
		if snap != nil {
			if snap.Seq != e.Seq() {
				t.Fatalf("snapshot at seq %d, engine at %d", snap.Seq, e.Seq())
			}
			break
		}
		if time.Now().After(deadline) {
			cancel()
			t.Fatal("snapshot job never wrote a checkpoint")
		}
		time.Sleep(5 * time.Millisecond)
	}

	cancel()
	<-done
}
