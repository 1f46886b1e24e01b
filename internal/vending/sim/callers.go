package sim

import (
	"math/rand"

	"github.com/chenzhangda16/web3-vending/internal/vending/model"
)

func GenCallers(n int, r *rand.Rand) []model.Identity {
	out := make([]model.Identity, n)
	for i := range out {
		_, _ = r.Read(out[i][:])
	}
	return out
}
