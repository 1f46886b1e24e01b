package out

import (
	"encoding/json"
	"fmt"

	"github.com/chenzhangda16/web3-vending/internal/vending/model"
)

const TypeVend = "vend"

type Envelope struct {
	Type string          `json:"type"` // e.g. "vend"
	TS   int64           `json:"ts"`   // unix milli
	Data json.RawMessage `json:"data"`
}

// VendEvent is published once per committed vend.
type VendEvent struct {
	Deployment string          `json:"deployment,omitempty"`
	Caller     model.Identity  `json:"caller"`
	At         model.Timestamp `json:"at"`
	Index      uint64          `json:"index"`
	Remaining  uint64          `json:"remaining"`
	Balance    uint64          `json:"balance"`
}

// Key is the partition key for env: the caller hex for vend events, empty
// otherwise.
func (e Envelope) Key() (string, error) {
	if e.Type != TypeVend {
		return "", nil
	}
	var ev VendEvent
	if err := json.Unmarshal(e.Data, &ev); err != nil {
		return "", fmt.Errorf("decode %s event: %w", e.Type, err)
	}
	return ev.Caller.Hex(), nil
}

func eventKey(v any) string {
	if ev, ok := v.(VendEvent); ok {
		return ev.Caller.Hex()
	}
	return ""
}

func NewEnvelope(typ string, ts int64, v any) (Envelope, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{Type: typ, TS: ts, Data: data}, nil
}
