package out

import "context"

// Sink receives events after the state they describe is committed.
type Sink interface {
	Emit(ctx context.Context, typ string, v any) error
	Close() error
}

// Forwarder resends an already built envelope as is. Replay uses it so the
// original timestamp and partition key survive the trip through the spool.
type Forwarder interface {
	Forward(ctx context.Context, env Envelope, key string) error
}

// Discard drops everything. Used when no outbound sink is configured.
type Discard struct{}

func (Discard) Emit(context.Context, string, any) error { return nil }
func (Discard) Close() error                            { return nil }
