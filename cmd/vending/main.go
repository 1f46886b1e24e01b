package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/chenzhangda16/web3-vending/internal/vending/host"
	"github.com/chenzhangda16/web3-vending/internal/vending/machine"
	"github.com/chenzhangda16/web3-vending/internal/vending/out"
	"github.com/chenzhangda16/web3-vending/internal/vending/rpc"
	"github.com/chenzhangda16/web3-vending/internal/vending/store"
	"github.com/chenzhangda16/web3-vending/pkg/obs"
)

func main() {
	obs.Init("vending")
	var (
		dbPath  = flag.String("db", "./data/vending.db", "rocksdb path")
		rpcAddr = flag.String("rpc", ":8080", "http listen addr")

		// deployment constants: changing capacity on an existing db is refused
		window   = flag.Uint64("window", 60, "cooldown window in seconds")
		capacity = flag.Uint64("capacity", 20, "ledger ring capacity")
		stock    = flag.Uint64("stock", 100, "initial stock (first start only)")

		// outbound events: kafka when brokers set, else local spool file
		brokers = flag.String("brokers", "", "kafka brokers, comma-separated")
		topic   = flag.String("topic", "vending.events", "kafka topic for vend events")
		spool   = flag.String("spool", "./data/vend_events.spool", "event spool path when kafka is off")
	)
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	st, err := store.Open(*dbPath)
	if err != nil {
		log.Fatal(err)
	}
	defer st.Close()

	m, err := machine.Open(st, machine.Config{
		Window:       *window,
		Capacity:     *capacity,
		InitialStock: *stock,
	})
	if err != nil {
		log.Fatal(err)
	}

	var sink out.Sink
	if bs := out.SplitCSV(*brokers); len(bs) > 0 {
		sink, err = out.NewKafkaSink(bs, *topic, nil)
	} else {
		sink, err = out.NewFileSink(*spool)
	}
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = sink.Close() }()

	h := host.New(m, host.NewWallClock(), sink, host.Config{Deployment: st.Deployment()})

	srv := &http.Server{
		Addr:              *rpcAddr,
		Handler:           rpc.NewServer(h).Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		obs.P("rpc listening on %s db=%s deployment=%s window=%d capacity=%d",
			*rpcAddr, *dbPath, st.Deployment(), *window, *capacity)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shCtx, shCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shCancel()
		return srv.Shutdown(shCtx)
	})

	if err := g.Wait(); err != nil {
		log.Fatal(err)
	}
	obs.P("exit")
}
