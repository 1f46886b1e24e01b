package machine

import (
	"errors"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chenzhangda16/web3-vending/internal/vending/ledger"
	"github.com/chenzhangda16/web3-vending/internal/vending/model"
	"github.com/chenzhangda16/web3-vending/internal/vending/slot"
)

var (
	userA = model.Identity{0x0a}
	userB = model.Identity{0x0b}
	userX = model.Identity{0xee}
)

func open(t *testing.T, be slot.Backend, cfg Config) *Machine {
	t.Helper()
	m, err := Open(be, cfg)
	require.NoError(t, err)
	return m
}

func historyAt(t *testing.T, m *Machine, count uint64) []model.Timestamp {
	t.Helper()
	recs, err := m.History(count)
	require.NoError(t, err)
	out := make([]model.Timestamp, 0, len(recs))
	for _, r := range recs {
		out = append(out, r.At)
	}
	return out
}

func TestScenarioStockAndCooldown(t *testing.T) {
	m := open(t, slot.NewMemStore(), Config{Window: 100, Capacity: 3, InitialStock: 2})

	rc, err := m.Vend(userA, 0)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), rc.Remaining)
	assert.Equal(t, uint64(0), rc.Index)
	assert.Equal(t, []model.Timestamp{0}, historyAt(t, m, 10))

	_, err = m.Vend(userA, 50)
	var ce *CooldownActiveError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, uint64(50), ce.Remaining)
	assert.ErrorIs(t, err, ErrCooldownActive)

	rc, err = m.Vend(userA, 150)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), rc.Remaining)
	assert.Equal(t, uint64(2), rc.Balance)
	assert.Equal(t, []model.Timestamp{150, 0}, historyAt(t, m, 10))

	_, err = m.Vend(userB, 200)
	require.ErrorIs(t, err, ErrOutOfStock)
	assert.Equal(t, []model.Timestamp{150, 0}, historyAt(t, m, 10))
}

func TestScenarioRingWraps(t *testing.T) {
	m := open(t, slot.NewMemStore(), Config{Window: 0, Capacity: 2, InitialStock: 5})

	for _, ts := range []model.Timestamp{10, 20, 30} {
		_, err := m.Vend(userX, ts)
		require.NoError(t, err)
	}
	assert.Equal(t, []model.Timestamp{30, 20}, historyAt(t, m, 5))

	_, ok, err := m.Record(0)
	require.NoError(t, err)
	assert.False(t, ok, "t=10 record was overwritten")

	rec, ok, err := m.Record(2)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, model.Timestamp(30), rec.At)
}

func TestOutOfStockReportedBeforeCooldown(t *testing.T) {
	m := open(t, slot.NewMemStore(), Config{Window: 100, Capacity: 4, InitialStock: 1})
	_, err := m.Vend(userA, 0)
	require.NoError(t, err)

	// userA is inside its cooldown, but stock wins
	_, err = m.Vend(userA, 1)
	require.ErrorIs(t, err, ErrOutOfStock)
	require.ErrorIs(t, m.Preview(userA, 1), ErrOutOfStock)
}

func TestFailedVendChangesNothing(t *testing.T) {
	be := slot.NewMemStore()
	m := open(t, be, Config{Window: 100, Capacity: 3, InitialStock: 1})
	_, err := m.Vend(userA, 0)
	require.NoError(t, err)

	before := be.Snapshot()
	remBefore, err := m.CooldownRemaining(userA, 10)
	require.NoError(t, err)

	_, err = m.Vend(userA, 10) // out of stock
	require.Error(t, err)
	_, err = m.Vend(userB, 10) // out of stock
	require.Error(t, err)

	assert.Equal(t, before, be.Snapshot())
	remAfter, err := m.CooldownRemaining(userA, 10)
	require.NoError(t, err)
	assert.Equal(t, remBefore, remAfter)
}

func TestCooldownRejectionChangesNothing(t *testing.T) {
	be := slot.NewMemStore()
	m := open(t, be, Config{Window: 60, Capacity: 3, InitialStock: 10})
	_, err := m.Vend(userA, 100)
	require.NoError(t, err)

	before := be.Snapshot()
	_, err = m.Vend(userA, 100)
	require.ErrorIs(t, err, ErrCooldownActive)
	assert.Equal(t, before, be.Snapshot())
}

func TestAccessors(t *testing.T) {
	m := open(t, slot.NewMemStore(), Config{Window: 60, Capacity: 3, InitialStock: 10})

	bal, err := m.BalanceOf(userA)
	require.NoError(t, err)
	assert.Zero(t, bal)

	rem, err := m.CooldownRemaining(userA, 0)
	require.NoError(t, err)
	assert.Zero(t, rem)
	require.NoError(t, m.Preview(userA, 0))

	_, err = m.Vend(userA, 0)
	require.NoError(t, err)

	rem, err = m.CooldownRemaining(userA, 20)
	require.NoError(t, err)
	assert.Equal(t, uint64(40), rem)
	require.ErrorIs(t, m.Preview(userA, 20), ErrCooldownActive)

	bal, err = m.BalanceOf(userA)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), bal)

	st, err := m.Stats()
	require.NoError(t, err)
	assert.Equal(t, Stats{Stock: 9, Vended: 1, Retained: 1, Capacity: 3, Window: 60}, st)
}

func TestReopenKeepsState(t *testing.T) {
	be := slot.NewMemStore()
	m := open(t, be, Config{Window: 10, Capacity: 3, InitialStock: 5})
	_, err := m.Vend(userA, 0)
	require.NoError(t, err)

	m = open(t, be, Config{Window: 10, Capacity: 3, InitialStock: 99})
	stock, err := m.RemainingStock()
	require.NoError(t, err)
	assert.Equal(t, uint64(4), stock)

	_, err = Open(be, Config{Window: 10, Capacity: 4, InitialStock: 5})
	require.ErrorIs(t, err, ledger.ErrCapacityMismatch)
}

func TestZeroCapacityRejected(t *testing.T) {
	_, err := Open(slot.NewMemStore(), Config{Capacity: 0})
	require.ErrorIs(t, err, ledger.ErrZeroCapacity)
}

type flakyBackend struct {
	*slot.MemStore
	failApply bool
	failGet   error
}

func (f *flakyBackend) Get(a slot.Addr) (slot.Word, bool, error) {
	if f.failGet != nil {
		return slot.Word{}, false, f.failGet
	}
	return f.MemStore.Get(a)
}

func (f *flakyBackend) Apply(batch []slot.Write) error {
	if f.failApply {
		return errors.New("disk gone")
	}
	return f.MemStore.Apply(batch)
}

func TestCommitFailureIsFatalAndRollsBack(t *testing.T) {
	be := &flakyBackend{MemStore: slot.NewMemStore()}
	m := open(t, be, Config{Window: 10, Capacity: 3, InitialStock: 5})
	before := be.Snapshot()

	be.failApply = true
	_, err := m.Vend(userA, 0)
	require.ErrorIs(t, err, ErrInternalInconsistency)
	assert.False(t, IsBusiness(err))

	var ie *InconsistencyError
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, "commit", ie.Op)
	assert.Equal(t, before, be.Snapshot())
}

func TestStoreReadFailureIsFatal(t *testing.T) {
	be := &flakyBackend{MemStore: slot.NewMemStore()}
	m := open(t, be, Config{Window: 10, Capacity: 3, InitialStock: 5})

	be.failGet = errors.New("io error")
	_, err := m.Vend(userA, 0)
	require.ErrorIs(t, err, ErrInternalInconsistency)

	_, err = m.RemainingStock()
	require.ErrorIs(t, err, ErrInternalInconsistency)
}

func TestClockRegressionIsFatal(t *testing.T) {
	m := open(t, slot.NewMemStore(), Config{Window: 10, Capacity: 3, InitialStock: 5})
	_, err := m.Vend(userA, 100)
	require.NoError(t, err)

	_, err = m.Vend(userA, 50)
	require.ErrorIs(t, err, ErrInternalInconsistency)
}

func TestRandomSequencesKeepInvariants(t *testing.T) {
	const (
		window   = 30
		capacity = 4
		stock    = 25
	)
	r := rand.New(rand.NewPCG(7, 11))
	users := []model.Identity{{1}, {2}, {3}}

	m := open(t, slot.NewMemStore(), Config{Window: window, Capacity: capacity, InitialStock: stock})
	lastOK := map[model.Identity]model.Timestamp{}
	var now model.Timestamp
	var succeeded uint64

	for i := 0; i < 400; i++ {
		now += model.Timestamp(r.IntN(20))
		u := users[r.IntN(len(users))]

		_, err := m.Vend(u, now)
		switch {
		case err == nil:
			if prev, ok := lastOK[u]; ok {
				require.GreaterOrEqual(t, now-prev, uint64(window))
			}
			lastOK[u] = now
			succeeded++
		case IsBusiness(err):
		default:
			t.Fatalf("unexpected error: %v", err)
		}

		got, err := m.RemainingStock()
		require.NoError(t, err)
		require.Equal(t, stock-succeeded, got)

		recs, err := m.History(capacity)
		require.NoError(t, err)
		require.Len(t, recs, int(min(succeeded, capacity)))
		for k, rec := range recs {
			require.Equal(t, succeeded-1-uint64(k), rec.Seq)
		}
	}
	require.Equal(t, uint64(stock), succeeded, "stock should be drained")
}
