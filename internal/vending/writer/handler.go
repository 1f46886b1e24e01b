package writer

import (
	"context"
	"encoding/json"
	"log"

	"github.com/IBM/sarama"

	"github.com/chenzhangda16/web3-vending/internal/vending/out"
)

type VendInserter interface {
	InsertVend(ctx context.Context, ev out.VendEvent) error
}

// Handler is the consumer-group handler feeding vend events into the store.
type Handler struct {
	Store VendInserter
}

func (h *Handler) Setup(sarama.ConsumerGroupSession) error   { return nil }
func (h *Handler) Cleanup(sarama.ConsumerGroupSession) error { return nil }

func (h *Handler) ConsumeClaim(sess sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	ctx := sess.Context()
	for msg := range claim.Messages() {
		if h.Handle(ctx, msg.Value) {
			sess.MarkMessage(msg, "")
		}
	}
	return nil
}

// Handle reports whether the message may be marked. Undecodable and unknown
// messages are marked (dropped); a failed insert is not, so it is redelivered.
func (h *Handler) Handle(ctx context.Context, value []byte) bool {
	var env out.Envelope
	if err := json.Unmarshal(value, &env); err != nil {
		log.Printf("[writer] bad envelope: err=%v", err)
		return true
	}

	switch env.Type {
	case out.TypeVend:
		var ev out.VendEvent
		if err := json.Unmarshal(env.Data, &ev); err != nil {
			log.Printf("[writer] bad vend event: err=%v", err)
			return true
		}
		if err := h.Store.InsertVend(ctx, ev); err != nil {
			log.Printf("[writer] insert failed: index=%d err=%v", ev.Index, err)
			return false
		}
		return true
	default:
		return true
	}
}
