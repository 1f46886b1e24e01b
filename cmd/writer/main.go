package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/IBM/sarama"

	"github.com/chenzhangda16/web3-vending/internal/vending/out"
	"github.com/chenzhangda16/web3-vending/internal/vending/retry"
	"github.com/chenzhangda16/web3-vending/internal/vending/writer"
	"github.com/chenzhangda16/web3-vending/pkg/obs"
)

func main() {
	obs.Init("writer")
	var (
		brokers = flag.String("brokers", "127.0.0.1:9092", "kafka brokers, comma separated")
		topic   = flag.String("topic", "vending.events", "vend events topic")
		group   = flag.String("group", "vending.writer", "consumer group")
	)
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var pg *writer.PGWriter
	err := retry.Do(ctx, retry.Policy{MaxAttempts: 5, BaseDelay: 500 * time.Millisecond},
		func(context.Context) error {
			var err error
			pg, err = writer.NewPGWriterFromEnv()
			return err
		})
	if err != nil {
		log.Fatalf("pg init failed: %v", err)
	}
	defer func() { _ = pg.Close() }()

	if err := pg.EnsureSchema(ctx); err != nil {
		log.Fatalf("ensure schema failed: %v", err)
	}

	cfg := sarama.NewConfig()
	cfg.Version = sarama.V2_1_0_0
	cfg.Consumer.Group.Rebalance.Strategy = sarama.BalanceStrategyRange
	cfg.Consumer.Offsets.Initial = sarama.OffsetOldest

	cg, err := sarama.NewConsumerGroup(out.SplitCSV(*brokers), *group, cfg)
	if err != nil {
		log.Fatalf("consumer group init failed: %v", err)
	}
	defer func() { _ = cg.Close() }()

	h := &writer.Handler{Store: pg}

	log.Printf("[writer] start: topic=%s group=%s brokers=%s", *topic, *group, *brokers)

	for ctx.Err() == nil {
		if err := cg.Consume(ctx, []string{*topic}, h); err != nil {
			log.Printf("[writer] consume err: %v", err)
			time.Sleep(300 * time.Millisecond)
		}
	}
	log.Printf("[writer] exit: %v", ctx.Err())
}
