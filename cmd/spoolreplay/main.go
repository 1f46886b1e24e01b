package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/chenzhangda16/web3-vending/internal/vending/out"
	"github.com/chenzhangda16/web3-vending/internal/vending/retry"
	"github.com/chenzhangda16/web3-vending/pkg/obs"
)

// spoolreplay forwards vend events that were spooled locally (kafka off) to kafka.
func main() {
	obs.Init("spoolreplay")
	var (
		spool    = flag.String("spool", "./data/vend_events.spool", "spool file written by the vending server")
		ckptPath = flag.String("ckpt", "./data/spoolreplay.ckpt", "checkpoint file path")
		brokers  = flag.String("brokers", "127.0.0.1:9092", "kafka brokers, comma-separated")
		topic    = flag.String("topic", "vending.events", "kafka topic")
	)
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	ck, err := out.NewFileCheckpoint(*ckptPath)
	if err != nil {
		log.Fatal(err)
	}
	sink, err := out.NewKafkaSink(out.SplitCSV(*brokers), *topic, nil)
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = sink.Close() }()

	var total int
	err = retry.Do(ctx, retry.Policy{MaxAttempts: 5, BaseDelay: 200 * time.Millisecond, Jitter: 100 * time.Millisecond},
		func(ctx context.Context) error {
			n, err := out.Replay(ctx, *spool, ck, sink)
			total += n
			return err
		})
	if err != nil {
		log.Fatalf("replay failed after %d records: %v", total, err)
	}
	obs.P("replayed %d records from %s", total, *spool)
}
