package store

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/chenzhangda16/web3-vending/internal/vending/slot"
)

func TestRocksStoreApplyAndReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vending.db")

	st, err := Open(path)
	require.NoError(t, err)

	a, b := slot.Field("a"), slot.Field("b")
	require.NoError(t, st.Apply([]slot.Write{
		{Addr: a, Word: slot.WordFromU64(1)},
		{Addr: b, Word: slot.WordFromU64(2)},
	}))
	dep := st.Deployment()
	require.Len(t, dep, 32)
	st.Close()

	st, err = Open(path)
	require.NoError(t, err)
	defer st.Close()
	require.Equal(t, dep, st.Deployment())

	w, ok, err := st.Get(b)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, slot.WordFromU64(2), w)

	_, ok, err = st.Get(slot.Field("missing"))
	require.NoError(t, err)
	require.False(t, ok)
}

func TestRecreatedStoreGetsNewDeployment(t *testing.T) {
	a, err := Open(filepath.Join(t.TempDir(), "a.db"))
	require.NoError(t, err)
	defer a.Close()
	b, err := Open(filepath.Join(t.TempDir(), "b.db"))
	require.NoError(t, err)
	defer b.Close()

	require.NotEmpty(t, a.Deployment())
	require.NotEqual(t, a.Deployment(), b.Deployment())
}

func TestKeySlotIsFixedWidth(t *testing.T) {
	require.Len(t, KeySlot(slot.Field("x")), len(slotPrefix)+32)
}
