package store

import "github.com/chenzhangda16/web3-vending/internal/vending/slot"

const (
	keyLayout     = "meta:layout"
	keyDeployment = "meta:deployment"
	slotPrefix    = "slot:"
)

func KeyLayout() []byte     { return []byte(keyLayout) }
func KeyDeployment() []byte { return []byte(keyDeployment) }

// KeySlot is fixed width: prefix + 32-byte address.
func KeySlot(a slot.Addr) []byte {
	k := make([]byte, 0, len(slotPrefix)+len(a))
	k = append(k, slotPrefix...)
	k = append(k, a[:]...)
	return k
}
