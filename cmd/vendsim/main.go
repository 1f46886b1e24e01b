package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/chenzhangda16/web3-vending/internal/vending/host"
	"github.com/chenzhangda16/web3-vending/internal/vending/machine"
	"github.com/chenzhangda16/web3-vending/internal/vending/out"
	"github.com/chenzhangda16/web3-vending/internal/vending/sim"
	"github.com/chenzhangda16/web3-vending/internal/vending/slot"
	"github.com/chenzhangda16/web3-vending/internal/vending/store"
	"github.com/chenzhangda16/web3-vending/pkg/obs"
	"github.com/chenzhangda16/web3-vending/pkg/rng"
)

func main() {
	obs.Init("vendsim")
	var (
		dbPath = flag.String("db", "", "rocksdb path; empty runs in memory")
		spool  = flag.String("spool", "", "write vend events to this spool file")

		window   = flag.Uint64("window", 60, "cooldown window")
		capacity = flag.Uint64("capacity", 20, "ledger ring capacity")
		stock    = flag.Uint64("stock", 500, "initial stock")

		callers = flag.Int("callers", 50, "caller pool size")
		steps   = flag.Int("steps", 10000, "clock steps")
		tick    = flag.Uint64("tick", 1, "clock units per step")
		burst   = flag.Int("burst", 4, "max concurrent vends per step")

		det  = flag.Bool("det", true, "deterministic random streams")
		seed = flag.Int64("seed", 1, "seed for deterministic mode")
	)
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// an in-memory run lives as long as the process
	var be slot.Backend = slot.NewMemStore()
	deployment := obs.BootID()
	if *dbPath != "" {
		st, err := store.Open(*dbPath)
		if err != nil {
			log.Fatal(err)
		}
		defer st.Close()
		be = st
		deployment = st.Deployment()
	}

	m, err := machine.Open(be, machine.Config{Window: *window, Capacity: *capacity, InitialStock: *stock})
	if err != nil {
		log.Fatal(err)
	}

	var sink out.Sink = out.Discard{}
	if *spool != "" {
		fs, err := out.NewFileSink(*spool)
		if err != nil {
			log.Fatal(err)
		}
		defer func() { _ = fs.Close() }()
		sink = fs
	}

	rf := rng.New(map[bool]rng.Mode{true: rng.Deterministic, false: rng.Real}[*det], *seed)
	// the driver moves the clock past any vend already in a reopened store
	clock := host.NewManualClock(0)
	h := host.New(m, clock, sink, host.Config{Deployment: deployment})
	obs.P("deployment=%s rng=%s", deployment, rf)

	d := sim.NewDriver(sim.Config{Callers: *callers, Steps: *steps, Tick: *tick, MaxBurst: *burst}, h, clock, rf)
	rep, err := d.Run(ctx)
	if err != nil && err != context.Canceled {
		log.Fatal(err)
	}

	recent, err := h.History(5)
	if err != nil {
		log.Fatal(err)
	}
	for _, r := range recent {
		obs.P("recent: seq=%d caller=%s at=%d", r.Seq, r.Caller, r.At)
	}
	obs.P("report: %+v", rep)
}
