// Package host is the execution environment around the vending machine: it
// serializes invocations, supplies the clock, and publishes committed vends.
package host

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/chenzhangda16/web3-vending/internal/vending/machine"
	"github.com/chenzhangda16/web3-vending/internal/vending/model"
	"github.com/chenzhangda16/web3-vending/internal/vending/out"
	"github.com/chenzhangda16/web3-vending/internal/vending/retry"
)

type Config struct {
	// EmitRetry bounds redelivery attempts to the sink after a commit.
	// Classify defaults to out.ClassifyEmit.
	EmitRetry retry.Policy
	// Deployment is stamped on every event; it tells apart ledgers whose
	// indices would otherwise collide downstream.
	Deployment string
}

type Host struct {
	mu    sync.Mutex
	m     *machine.Machine
	clock Clock
	sink  out.Sink
	cfg   Config
}

func New(m *machine.Machine, clock Clock, sink out.Sink, cfg Config) *Host {
	if sink == nil {
		sink = out.Discard{}
	}
	if cfg.EmitRetry.MaxAttempts <= 0 {
		cfg.EmitRetry.MaxAttempts = 3
	}
	if cfg.EmitRetry.BaseDelay <= 0 {
		cfg.EmitRetry.BaseDelay = 100 * time.Millisecond
	}
	if cfg.EmitRetry.Classify == nil {
		cfg.EmitRetry.Classify = out.ClassifyEmit
	}
	if cfg.EmitRetry.OnRetry == nil {
		cfg.EmitRetry.OnRetry = func(attempt int, wait time.Duration, err error) {
			log.Printf("[host] emit retry: attempt=%d wait=%s err=%v", attempt, wait, err)
		}
	}
	return &Host{m: m, clock: clock, sink: sink, cfg: cfg}
}

// Vend runs one serialized invocation for caller. The sink is called only
// after the commit and outside the lock, so a sink that calls back into the
// host sees finished state. A sink failure is logged; the vend stands.
func (h *Host) Vend(ctx context.Context, caller model.Identity) (machine.Receipt, error) {
	h.mu.Lock()
	now := h.clock.Now()
	rc, err := h.m.Vend(caller, now)
	h.mu.Unlock()

	if err != nil {
		if errors.Is(err, machine.ErrInternalInconsistency) {
			log.Printf("[host] vend aborted: caller=%s now=%d err=%v", caller, now, err)
		}
		return machine.Receipt{}, err
	}

	ev := out.VendEvent{
		Deployment: h.cfg.Deployment,
		Caller:     rc.Caller,
		At:         rc.At,
		Index:      rc.Index,
		Remaining:  rc.Remaining,
		Balance:    rc.Balance,
	}
	// the vend is committed; a caller that hangs up must not cancel its event
	emitErr := retry.Do(context.WithoutCancel(ctx), h.cfg.EmitRetry, func(ctx context.Context) error {
		return h.sink.Emit(ctx, out.TypeVend, ev)
	})
	if emitErr != nil {
		log.Printf("[host] emit failed: index=%d err=%v", rc.Index, emitErr)
	}
	return rc, nil
}

func (h *Host) Now() model.Timestamp { return h.clock.Now() }

func (h *Host) RemainingStock() (uint64, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.m.RemainingStock()
}

func (h *Host) CooldownRemaining(caller model.Identity) (uint64, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.m.CooldownRemaining(caller, h.clock.Now())
}

// Preview reports what Vend would return for caller now, without mutating.
func (h *Host) Preview(caller model.Identity) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.m.Preview(caller, h.clock.Now())
}

func (h *Host) History(count uint64) ([]model.Record, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.m.History(count)
}

func (h *Host) BalanceOf(caller model.Identity) (uint64, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.m.BalanceOf(caller)
}

func (h *Host) Stats() (machine.Stats, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.m.Stats()
}
