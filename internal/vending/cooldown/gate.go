// Package cooldown tracks the last successful action per identity and rejects
// actions that land inside the cooldown window.
package cooldown

import (
	"errors"
	"fmt"

	"github.com/chenzhangda16/web3-vending/internal/vending/model"
	"github.com/chenzhangda16/web3-vending/internal/vending/slot"
)

var (
	// ErrActive is matched by every *ActiveError.
	ErrActive = errors.New("cooldown active")
	// ErrClockRegressed means now is before the recorded last action. The host
	// clock is non-decreasing, so this is a broken host invariant.
	ErrClockRegressed = errors.New("cooldown: clock went backwards")
)

// ActiveError is returned by Check while the window has not elapsed.
type ActiveError struct {
	Remaining uint64
}

func (e *ActiveError) Error() string {
	return fmt.Sprintf("cooldown active: %d remaining", e.Remaining)
}

func (e *ActiveError) Is(target error) bool { return target == ErrActive }

var lastActionField = slot.Field("cooldown.last_action")

// Gate is a view over one invocation's slots.
type Gate struct {
	st     slot.ReadWriter
	window uint64
}

func New(st slot.ReadWriter, window uint64) *Gate {
	return &Gate{st: st, window: window}
}

func (g *Gate) Window() uint64 { return g.window }

func lastActionAddr(id model.Identity) slot.Addr {
	return slot.MapKey(lastActionField, id[:])
}

// LastAction returns ok=false when the identity never acted.
func (g *Gate) LastAction(id model.Identity) (model.Timestamp, bool, error) {
	return slot.ReadU64(g.st, lastActionAddr(id))
}

// Check has no side effects. elapsed == 0 with a non-zero window fails.
func (g *Gate) Check(id model.Identity, now model.Timestamp) error {
	last, ok, err := g.LastAction(id)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	if now < last {
		return fmt.Errorf("%w: last=%d now=%d", ErrClockRegressed, last, now)
	}
	if elapsed := now - last; elapsed < g.window {
		return &ActiveError{Remaining: g.window - elapsed}
	}
	return nil
}

// Remaining is the read-only preview: 0 when eligible. A regressed clock is
// clamped to elapsed == 0.
func (g *Gate) Remaining(id model.Identity, now model.Timestamp) (uint64, error) {
	last, ok, err := g.LastAction(id)
	if err != nil || !ok {
		return 0, err
	}
	var elapsed uint64
	if now > last {
		elapsed = now - last
	}
	if elapsed >= g.window {
		return 0, nil
	}
	return g.window - elapsed, nil
}

// Record commits now as the identity's last action.
func (g *Gate) Record(id model.Identity, now model.Timestamp) error {
	return slot.WriteU64(g.st, lastActionAddr(id), now)
}
