package main

import (
	"context"
	"flag"
	"net"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"

	"tyr/api"
	"tyr/api/grpcserver"
	"tyr/infra/kafka"
	"tyr/infra/outbox"
	"tyr/infra/ring"
	"tyr/infra/wal"
	"tyr/jobs/broadcaster"
	"tyr/jobs/marketdata"
	"tyr/service"
	"tyr/snapshot"
)

func main() {
	var (
		listen    = flag.String("listen", ":50051", "grpc listen address")
		walDir    = flag.String("wal-dir", "./data/wal", "command journal directory")
		walFsync  = flag.Bool("wal-fsync", false, "fsync the journal on every append")
		outboxDir = flag.String("outbox-dir", "./data/outbox", "event outbox directory")
		snapDir   = flag.String("snapshot-dir", "./data/snapshots", "snapshot directory")
		snapEvery = flag.Duration("snapshot-interval", 30*time.Second, "checkpoint interval")
		snapKeep  = flag.Int("snapshot-keep", 3, "snapshot files to keep")
		symbols   = flag.String("symbols", "1", "comma separated symbol ids to list")
		poolCap   = flag.Int("pool", 1<<16, "per-book order pool capacity")
		stp       = flag.Bool("stp", false, "self-trade prevention")
		ringSize  = flag.Uint64("ring", 1<<14, "ingress ring capacity, power of two")
		brokers   = flag.String("kafka-brokers", "", "comma separated kafka brokers, empty disables egress")
		evTopic   = flag.String("events-topic", "tyr.events", "matcher event topic")
		mdTopic   = flag.String("md-topic", "tyr.l2", "market data topic")
		mdDepth   = flag.Int("md-depth", 10, "market data ladder depth")
		mdEvery   = flag.Duration("md-interval", 250*time.Millisecond, "market data publish interval")
	)
	flag.Parse()

	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()
	log := logger.Sugar()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ---------------- Durable state ----------------

	journal, err := wal.Open(wal.Config{Dir: *walDir, Fsync: *walFsync})
	if err != nil {
		log.Fatalw("journal open failed", "dir", *walDir, "err", err)
	}

	events, err := outbox.Open(*outboxDir)
	if err != nil {
		log.Fatalw("outbox open failed", "dir", *outboxDir, "err", err)
	}

	snaps, err := snapshot.NewWriter(*snapDir)
	if err != nil {
		log.Fatalw("snapshot store failed", "dir", *snapDir, "err", err)
	}

	// ---------------- Engine ----------------

	eng := service.New(journal, events, snaps, service.Config{
		WALDir:              *walDir,
		SnapshotDir:         *snapDir,
		SnapshotKeep:        *snapKeep,
		PoolCapacity:        *poolCap,
		SelfTradePrevention: *stp,
	}, log)

	if err := eng.Recover(); err != nil {
		log.Fatalw("recovery failed", "err", err)
	}

	listed := make(map[uint32]bool)
	for _, sym := range eng.Symbols() {
		listed[sym] = true
	}
	for _, field := range strings.Split(*symbols, ",") {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		id, err := strconv.ParseUint(field, 10, 32)
		if err != nil {
			log.Fatalw("bad symbol id", "value", field, "err", err)
		}
		if listed[uint32(id)] {
			continue
		}
		spec := api.SymbolSpec{SymbolID: uint32(id), BaseScaleK: 1, QuoteScaleK: 1}
		if err := eng.AddSymbol(spec); err != nil {
			log.Fatalw("symbol listing failed", "symbol", id, "err", err)
		}
	}

	// ---------------- Background jobs ----------------

	var jobs sync.WaitGroup

	in := ring.New[*api.OrderCommand](*ringSize)
	jobs.Add(1)
	go func() {
		defer jobs.Done()
		eng.RunIngress(ctx, in)
	}()

	jobs.Add(1)
	go func() {
		defer jobs.Done()
		eng.RunSnapshots(ctx, *snapEvery)
	}()

	if *brokers != "" {
		bs := strings.Split(*brokers, ",")

		bc, err := broadcaster.New(events, bs, *evTopic, log)
		if err != nil {
			log.Fatalw("broadcaster init failed", "brokers", bs, "err", err)
		}
		defer bc.Close()
		jobs.Add(1)
		go func() {
			defer jobs.Done()
			bc.Run(ctx)
		}()

		mdOut := kafka.NewProducer(bs, *mdTopic)
		defer mdOut.Close()
		md := marketdata.New(eng, mdOut, *mdDepth, *mdEvery, log)
		jobs.Add(1)
		go func() {
			defer jobs.Done()
			md.Run(ctx)
		}()
	}

	// ---------------- gRPC ----------------

	lis, err := net.Listen("tcp", *listen)
	if err != nil {
		log.Fatalw("listen failed", "addr", *listen, "err", err)
	}

	grpcSrv := grpc.NewServer()
	grpcserver.NewServer(eng, in, log).Register(grpcSrv)

	go func() {
		<-ctx.Done()
		log.Infow("shutting down")
		done := make(chan struct{})
		go func() {
			grpcSrv.GracefulStop()
			close(done)
		}()
		// A parked ingest stream would hold GracefulStop open forever.
		select {
		case <-done:
		case <-time.After(10 * time.Second):
			grpcSrv.Stop()
		}
	}()

	log.Infow("engine serving", "addr", *listen, "symbols", eng.Symbols())
	if err := grpcSrv.Serve(lis); err != nil {
		log.Errorw("grpc server exited", "err", err)
	}

	// ---------------- Drain ----------------

	stop()
	jobs.Wait()

	if _, err := eng.Checkpoint(); err != nil {
		log.Errorw("final checkpoint failed", "err", err)
	}
	if err := eng.Close(); err != nil {
		log.Errorw("journal close failed", "err", err)
	}
	if err := events.Close(); err != nil {
		log.Errorw("outbox close failed", "err", err)
	}
	log.Infow("engine stopped", "seq", eng.Seq())
}
