package host

import (
	"sync"
	"time"

	"github.com/chenzhangda16/web3-vending/internal/vending/model"
)

// Clock supplies the timestamp of an invocation. Implementations must be
// non-decreasing.
type Clock interface {
	Now() model.Timestamp
}

// WallClock reads unix seconds and never goes backwards: a step back of the
// system clock is held at the last value returned.
type WallClock struct {
	mu   sync.Mutex
	last model.Timestamp
	now  func() time.Time
}

func NewWallClock() *WallClock { return &WallClock{now: time.Now} }

func (c *WallClock) Now() model.Timestamp {
	c.mu.Lock()
	defer c.mu.Unlock()

	sec := c.now().Unix()
	var ts model.Timestamp
	if sec > 0 {
		ts = model.Timestamp(sec)
	}
	if ts < c.last {
		ts = c.last
	}
	c.last = ts
	return ts
}

// ManualClock is advanced explicitly. Used by tests and the simulator.
type ManualClock struct {
	mu  sync.Mutex
	now model.Timestamp
}

func NewManualClock(start model.Timestamp) *ManualClock { return &ManualClock{now: start} }

func (c *ManualClock) Now() model.Timestamp {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *ManualClock) Advance(d uint64) model.Timestamp {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now += d
	return c.now
}

// Set moves the clock to ts; earlier values are ignored.
func (c *ManualClock) Set(ts model.Timestamp) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if ts > c.now {
		c.now = ts
	}
}
