package auction

import (
	"math/big"
	"time"

	fpmath "VaultCore/internal/math"
)

// PriceCalculator is the pluggable Dutch decay strategy: a pure function
// from start price and elapsed time to the current price. Calling it
// twice with the same inputs yields the same value.
type PriceCalculator interface {
	Price(startPrice *big.Int, elapsed time.Duration) *big.Int
}

// LinearDecay ramps the start price linearly down to zero over Horizon
// and stays at zero afterwards.
type LinearDecay struct {
	Horizon time.Duration
}

func (d LinearDecay) Price(startPrice *big.Int, elapsed time.Duration) *big.Int {
	if elapsed >= d.Horizon || elapsed < 0 {
		return new(big.Int)
	}
	remaining := big.NewInt(int64(d.Horizon - elapsed))
	return fpmath.MulDivFloor(startPrice, remaining, big.NewInt(int64(d.Horizon)))
}
