package slot

import (
	"encoding/binary"
	"encoding/hex"

	"github.com/chenzhangda16/web3-vending/pkg/hash"
)

// LayoutVersion is mixed into every field base. Changing it (or any field name)
// relocates all state and needs a migration.
const LayoutVersion = "vending.v1"

// Addr is a fixed-width slot address.
type Addr [32]byte

// Word is the fixed-width value stored in one slot.
type Word [32]byte

func (a Addr) Hex() string { return "0x" + hex.EncodeToString(a[:]) }

// Field returns the base address of a named field.
func Field(name string) Addr {
	return Addr(hash.NewBuilder().PutString(LayoutVersion).PutString(name).Sum32())
}

// Add returns a+k as a 256-bit big-endian integer (wrapping). Array elements
// live at base+k.
func (a Addr) Add(k uint64) Addr {
	out := a
	carry := k
	for i := len(out) - 8; i >= 0 && carry != 0; i -= 8 {
		limb := binary.BigEndian.Uint64(out[i : i+8])
		sum := limb + carry
		if sum < limb {
			carry = 1
		} else {
			carry = 0
		}
		binary.BigEndian.PutUint64(out[i:i+8], sum)
	}
	return out
}

// MapKey returns the address of base[key] for mapping fields.
func MapKey(base Addr, key []byte) Addr {
	return Addr(hash.NewBuilder().PutFixed(key).PutFixed(base[:]).Sum32())
}

func WordFromU64(v uint64) Word {
	var w Word
	binary.BigEndian.PutUint64(w[24:], v)
	return w
}

// U64 decodes the low 8 bytes. ok is false when the high bytes are not zero.
func (w Word) U64() (v uint64, ok bool) {
	for _, b := range w[:24] {
		if b != 0 {
			return 0, false
		}
	}
	return binary.BigEndian.Uint64(w[24:]), true
}
