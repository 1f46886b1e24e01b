// Package machine implements the vending state machine: a stock counter gated
// by a per-caller cooldown, with every success appended to a bounded ledger.
//
// Each call works on its own slot.Txn. Checks run first and write nothing;
// the effects are staged in the view and reach the backend in one batch on
// Commit. Any error before that drops the view, so a failed or aborted call
// has no observable effect.
//
// The machine does no locking. Callers (see host.Host) serialize invocations.
package machine

import (
	"errors"
	"math"

	"github.com/chenzhangda16/web3-vending/internal/vending/cooldown"
	"github.com/chenzhangda16/web3-vending/internal/vending/ledger"
	"github.com/chenzhangda16/web3-vending/internal/vending/model"
	"github.com/chenzhangda16/web3-vending/internal/vending/slot"
)

var (
	stockAddr       = slot.Field("vending.stock")
	initializedAddr = slot.Field("vending.initialized")
	balanceField    = slot.Field("vending.balance")
)

var errStockUnset = errors.New("stock slot missing")

// Config is fixed at deployment.
type Config struct {
	Window       uint64 // cooldown, in clock units
	Capacity     uint64 // ledger ring size
	InitialStock uint64
}

type Machine struct {
	be  slot.Backend
	cfg Config
}

// Receipt describes a successful vend.
type Receipt struct {
	Caller    model.Identity  `json:"caller"`
	At        model.Timestamp `json:"at"`
	Index     uint64          `json:"index"`
	Remaining uint64          `json:"remaining"`
	Balance   uint64          `json:"balance"`
}

// Stats is a read-only snapshot.
type Stats struct {
	Stock    uint64 `json:"stock"`
	Vended   uint64 `json:"vended"`
	Retained uint64 `json:"retained"`
	Capacity uint64 `json:"capacity"`
	Window   uint64 `json:"window"`
}

// Open binds the machine to be, writing the initial stock on first use.
// Reopening an existing deployment keeps its stock and rejects a changed
// ledger capacity.
func Open(be slot.Backend, cfg Config) (*Machine, error) {
	if cfg.Capacity == 0 {
		return nil, ledger.ErrZeroCapacity
	}
	tx := slot.Begin(be)
	defer tx.Discard()

	l, err := ledger.New(tx, cfg.Capacity)
	if err != nil {
		return nil, err
	}
	if err := l.Init(); err != nil {
		return nil, err
	}
	_, done, err := slot.ReadU64(tx, initializedAddr)
	if err != nil {
		return nil, err
	}
	if !done {
		if err := slot.WriteU64(tx, stockAddr, cfg.InitialStock); err != nil {
			return nil, err
		}
		if err := slot.WriteU64(tx, initializedAddr, 1); err != nil {
			return nil, err
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &Machine{be: be, cfg: cfg}, nil
}

func (m *Machine) Config() Config { return m.cfg }

// Vend hands one item to caller at time now.
//
// Errors: ErrOutOfStock and *CooldownActiveError are business outcomes;
// anything matching ErrInternalInconsistency is fatal for this call. In
// every error case the backend is left as it was.
func (m *Machine) Vend(caller model.Identity, now model.Timestamp) (Receipt, error) {
	tx := slot.Begin(m.be)
	defer tx.Discard()

	rc, err := m.vend(tx, caller, now)
	if err != nil {
		return Receipt{}, err
	}
	if err := tx.Commit(); err != nil {
		return Receipt{}, inconsistent("commit", err)
	}
	return rc, nil
}

func (m *Machine) vend(tx *slot.Txn, caller model.Identity, now model.Timestamp) (Receipt, error) {
	// checks
	stock, err := m.check(tx, caller, now)
	if err != nil {
		return Receipt{}, err
	}

	// effects
	if stock == 0 {
		return Receipt{}, inconsistent("stock", errors.New("decrement would underflow"))
	}
	if err := slot.WriteU64(tx, stockAddr, stock-1); err != nil {
		return Receipt{}, inconsistent("stock", err)
	}
	l, err := ledger.New(tx, m.cfg.Capacity)
	if err != nil {
		return Receipt{}, inconsistent("ledger", err)
	}
	idx, err := l.Append(caller, now)
	if err != nil {
		return Receipt{}, inconsistent("ledger", err)
	}
	if err := cooldown.New(tx, m.cfg.Window).Record(caller, now); err != nil {
		return Receipt{}, inconsistent("cooldown", err)
	}
	bal, err := m.balance(tx, caller)
	if err != nil {
		return Receipt{}, inconsistent("balance", err)
	}
	if bal == math.MaxUint64 {
		return Receipt{}, inconsistent("balance", errors.New("increment would overflow"))
	}
	if err := slot.WriteU64(tx, balanceAddr(caller), bal+1); err != nil {
		return Receipt{}, inconsistent("balance", err)
	}

	return Receipt{
		Caller:    caller,
		At:        now,
		Index:     idx,
		Remaining: stock - 1,
		Balance:   bal + 1,
	}, nil
}

// check runs the read-only preconditions: stock first, then cooldown.
func (m *Machine) check(r slot.ReadWriter, caller model.Identity, now model.Timestamp) (uint64, error) {
	stock, err := readStock(r)
	if err != nil {
		return 0, inconsistent("stock", err)
	}
	if stock == 0 {
		return 0, ErrOutOfStock
	}
	if err := cooldown.New(r, m.cfg.Window).Check(caller, now); err != nil {
		if errors.Is(err, cooldown.ErrActive) {
			return 0, err
		}
		return 0, inconsistent("cooldown", err)
	}
	return stock, nil
}

// Preview returns the error Vend would return right now, without writing.
func (m *Machine) Preview(caller model.Identity, now model.Timestamp) error {
	tx := slot.Begin(m.be)
	defer tx.Discard()
	_, err := m.check(tx, caller, now)
	return err
}

func (m *Machine) RemainingStock() (uint64, error) {
	tx := slot.Begin(m.be)
	defer tx.Discard()
	stock, err := readStock(tx)
	if err != nil {
		return 0, inconsistent("stock", err)
	}
	return stock, nil
}

// CooldownRemaining is 0 when caller may vend at now.
func (m *Machine) CooldownRemaining(caller model.Identity, now model.Timestamp) (uint64, error) {
	tx := slot.Begin(m.be)
	defer tx.Discard()
	rem, err := cooldown.New(tx, m.cfg.Window).Remaining(caller, now)
	if err != nil {
		return 0, inconsistent("cooldown", err)
	}
	return rem, nil
}

// History returns the min(count, capacity, total) most recent records,
// newest first.
func (m *Machine) History(count uint64) ([]model.Record, error) {
	tx := slot.Begin(m.be)
	defer tx.Discard()
	l, err := ledger.New(tx, m.cfg.Capacity)
	if err != nil {
		return nil, err
	}
	recs, err := l.Recent(count)
	if err != nil {
		return nil, inconsistent("ledger", err)
	}
	return recs, nil
}

// Record looks up one ledger entry by insertion index.
func (m *Machine) Record(index uint64) (model.Record, bool, error) {
	tx := slot.Begin(m.be)
	defer tx.Discard()
	l, err := ledger.New(tx, m.cfg.Capacity)
	if err != nil {
		return model.Record{}, false, err
	}
	rec, ok, err := l.Get(index)
	if err != nil {
		return model.Record{}, false, inconsistent("ledger", err)
	}
	return rec, ok, nil
}

// BalanceOf is the number of items caller has received; 0 if unknown.
func (m *Machine) BalanceOf(caller model.Identity) (uint64, error) {
	tx := slot.Begin(m.be)
	defer tx.Discard()
	bal, err := m.balance(tx, caller)
	if err != nil {
		return 0, inconsistent("balance", err)
	}
	return bal, nil
}

func (m *Machine) Stats() (Stats, error) {
	tx := slot.Begin(m.be)
	defer tx.Discard()

	stock, err := readStock(tx)
	if err != nil {
		return Stats{}, inconsistent("stock", err)
	}
	l, err := ledger.New(tx, m.cfg.Capacity)
	if err != nil {
		return Stats{}, err
	}
	total, err := l.Total()
	if err != nil {
		return Stats{}, inconsistent("ledger", err)
	}
	return Stats{
		Stock:    stock,
		Vended:   total,
		Retained: min(total, m.cfg.Capacity),
		Capacity: m.cfg.Capacity,
		Window:   m.cfg.Window,
	}, nil
}

func (m *Machine) balance(r slot.Reader, caller model.Identity) (uint64, error) {
	bal, _, err := slot.ReadU64(r, balanceAddr(caller))
	return bal, err
}

func balanceAddr(id model.Identity) slot.Addr {
	return slot.MapKey(balanceField, id[:])
}

func readStock(r slot.Reader) (uint64, error) {
	stock, ok, err := slot.ReadU64(r, stockAddr)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, errStockUnset
	}
	return stock, nil
}
