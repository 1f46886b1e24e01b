package rng

import (
	"fmt"
	"hash/fnv"
	"math/rand"
	"sync"
	"time"
)

type Mode int

const (
	Deterministic Mode = iota
	Real
)

// Stream names used by the simulator.
const (
	CallerPool = "caller_pool"
	CallerPick = "caller_pick"
	Burst      = "burst"
	TickJitter = "tick_jitter"
)

type Factory struct {
	baseSeed int64
	mode     Mode

	mu      sync.Mutex
	streams map[string]*rand.Rand
}

func New(mode Mode, seed int64) *Factory {
	if mode == Real {
		// seeded from time once, here, not per draw
		seed = time.Now().UnixNano()
	}
	return &Factory{
		baseSeed: seed,
		mode:     mode,
		streams:  make(map[string]*rand.Rand),
	}
}

// R returns a named stream, created and cached on first use. Streams are not
// safe for concurrent use; keep each on one goroutine.
func (f *Factory) R(name string) *rand.Rand {
	f.mu.Lock()
	defer f.mu.Unlock()

	if r, ok := f.streams[name]; ok {
		return r
	}
	s := deriveSeed(f.baseSeed, name)
	r := rand.New(rand.NewSource(s))
	f.streams[name] = r
	return r
}

func (f *Factory) Mode() Mode { return f.mode }

// Seed is the base seed; in Real mode it is the one drawn at construction, so
// logging it lets a run be repeated in Deterministic mode.
func (f *Factory) Seed() int64 { return f.baseSeed }

func (f *Factory) String() string {
	if f.mode == Real {
		return fmt.Sprintf("real(seed=%d)", f.baseSeed)
	}
	return fmt.Sprintf("det(seed=%d)", f.baseSeed)
}

func deriveSeed(base int64, name string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(name))
	return int64(h.Sum64()) ^ base
}
