package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/IBM/sarama"

	"github.com/chenzhangda16/web3-vending/internal/vending/out"
)

type Handler struct{}

func (Handler) Setup(sarama.ConsumerGroupSession) error   { return nil }
func (Handler) Cleanup(sarama.ConsumerGroupSession) error { return nil }
func (Handler) ConsumeClaim(
	s sarama.ConsumerGroupSession,
	c sarama.ConsumerGroupClaim,
) error {
	for msg := range c.Messages() {
		var env out.Envelope
		var ev out.VendEvent
		if err := json.Unmarshal(msg.Value, &env); err != nil || env.Type != out.TypeVend {
			log.Printf("skip partition=%d offset=%d", msg.Partition, msg.Offset)
		} else if err := json.Unmarshal(env.Data, &ev); err != nil {
			log.Printf("bad vend event offset=%d err=%v", msg.Offset, err)
		} else {
			log.Printf("vend index=%d caller=%s at=%d remaining=%d balance=%d partition=%d offset=%d",
				ev.Index, ev.Caller, ev.At, ev.Remaining, ev.Balance, msg.Partition, msg.Offset)
		}
		s.MarkMessage(msg, "")
	}
	return nil
}

func main() {
	brokers := flag.String("brokers", "localhost:9092", "kafka brokers, comma-separated")
	topic := flag.String("topic", "vending.events", "topic")
	flag.Parse()

	cfg := sarama.NewConfig()
	cfg.Version = sarama.V2_8_0_0
	cfg.Consumer.Offsets.Initial = sarama.OffsetOldest

	group, err := sarama.NewConsumerGroup(out.SplitCSV(*brokers), "vending-test_tools", cfg)
	if err != nil {
		log.Fatal(err)
	}
	defer group.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	for ctx.Err() == nil {
		if err := group.Consume(ctx, []string{*topic}, Handler{}); err != nil {
			log.Printf("consume err: %v", err)
			return
		}
	}
}
