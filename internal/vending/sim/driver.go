// Package sim drives random caller traffic against a host on a manual clock.
package sim

import (
	"context"
	"errors"
	"math/rand"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/chenzhangda16/web3-vending/internal/vending/host"
	"github.com/chenzhangda16/web3-vending/internal/vending/machine"
	"github.com/chenzhangda16/web3-vending/internal/vending/model"
	"github.com/chenzhangda16/web3-vending/pkg/obs"
	"github.com/chenzhangda16/web3-vending/pkg/rng"
)

var logf = obs.Component("sim")

type Config struct {
	Callers  int    // pool size
	Steps    int    // clock ticks to run
	Tick     uint64 // clock units per step
	MaxBurst int    // max concurrent vends per step
}

// Report counts vend outcomes. Attempts == OK+Cooldown+OutOfStock+Fatal.
type Report struct {
	Attempts   int
	OK         int
	Cooldown   int
	OutOfStock int
	Fatal      int
}

type Driver struct {
	cfg     Config
	h       *host.Host
	clock   *host.ManualClock
	callers []model.Identity

	rPick   *rand.Rand
	rBurst  *rand.Rand
	rJitter *rand.Rand
}

func NewDriver(cfg Config, h *host.Host, clock *host.ManualClock, rf *rng.Factory) *Driver {
	if cfg.Callers <= 0 {
		cfg.Callers = 16
	}
	if cfg.Tick == 0 {
		cfg.Tick = 1
	}
	if cfg.MaxBurst <= 0 {
		cfg.MaxBurst = 4
	}
	return &Driver{
		cfg:     cfg,
		h:       h,
		clock:   clock,
		callers: GenCallers(cfg.Callers, rf.R(rng.CallerPool)),
		rPick:   rf.R(rng.CallerPick),
		rBurst:  rf.R(rng.Burst),
		rJitter: rf.R(rng.TickJitter),
	}
}

// resume moves the clock up to the newest ledger record so a reopened store
// never sees time run backwards. Ledger timestamps are non-decreasing, so the
// newest one bounds every recorded cooldown.
func (d *Driver) resume() error {
	recent, err := d.h.History(1)
	if err != nil {
		return err
	}
	if len(recent) > 0 {
		d.clock.Set(recent[0].At)
	}
	return nil
}

// Run advances the clock Steps times. Each step fires a burst of concurrent
// vends; the host serializes them. An internal inconsistency stops the run.
func (d *Driver) Run(ctx context.Context) (Report, error) {
	var (
		mu  sync.Mutex
		rep Report
	)
	if err := d.resume(); err != nil {
		return rep, err
	}
	for step := 0; step < d.cfg.Steps; step++ {
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		d.clock.Advance(d.cfg.Tick + uint64(d.rJitter.Int63n(int64(d.cfg.Tick)+1)))

		n := 1 + d.rBurst.Intn(d.cfg.MaxBurst)
		picks := make([]model.Identity, n)
		for i := range picks {
			picks[i] = d.callers[d.rPick.Intn(len(d.callers))]
		}

		g, gctx := errgroup.WithContext(ctx)
		for _, caller := range picks {
			g.Go(func() error {
				_, err := d.h.Vend(gctx, caller)
				mu.Lock()
				defer mu.Unlock()
				rep.Attempts++
				switch {
				case err == nil:
					rep.OK++
				case errors.Is(err, machine.ErrCooldownActive):
					rep.Cooldown++
				case errors.Is(err, machine.ErrOutOfStock):
					rep.OutOfStock++
				default:
					rep.Fatal++
					return err
				}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return rep, err
		}
	}
	logf("done: attempts=%d ok=%d cooldown=%d out_of_stock=%d fatal=%d",
		rep.Attempts, rep.OK, rep.Cooldown, rep.OutOfStock, rep.Fatal)
	return rep, nil
}
