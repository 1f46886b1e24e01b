package hash

import (
	"crypto/sha256"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBuilderLengthPrefixesStrings(t *testing.T) {
	got := NewBuilder().PutString("ab").Sum32()
	want := sha256.Sum256([]byte{0, 0, 0, 2, 'a', 'b'})
	require.Equal(t, Hash32(want), got)
}

func TestBuilderFixedHasNoPrefix(t *testing.T) {
	got := NewBuilder().PutFixed([]byte{1, 2}).PutU64(3).Bytes()
	require.Equal(t, []byte{1, 2, 0, 0, 0, 0, 0, 0, 0, 3}, got)
}

func TestSumStringDiffersByName(t *testing.T) {
	require.NotEqual(t, SumString("stock"), SumString("stock2"))
	require.Equal(t, SumString("stock"), SumString("stock"))
}
