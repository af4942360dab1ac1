package math

import "math/big"

// Three fixed-point tiers used across the ledger and auction engine:
//
//	WAD  10^18  asset amounts and normalized claim units
//	RAY  10^27  rates, accumulators, prices, ratios
//	RAD  10^45  value totals (WAD x RAY)
//
// All arithmetic is exact big-integer arithmetic. Division rounds toward
// the protocol: floor when paying out, ceil when charging.
var (
	Wad = pow10(18)
	Ray = pow10(27)
	Rad = pow10(45)
)

func pow10(n int64) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(n), nil)
}

// WadOf returns units scaled to WAD.
func WadOf(units int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(units), Wad)
}

// RayOf returns units scaled to RAY.
func RayOf(units int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(units), Ray)
}

// RadOf returns units scaled to RAD.
func RadOf(units int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(units), Rad)
}

// Zero returns a fresh zero value.
func Zero() *big.Int {
	return new(big.Int)
}

// Clone returns a copy of v (nil-safe).
func Clone(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(v)
}

// Add returns a + b without mutating either operand.
func Add(a, b *big.Int) *big.Int {
	return new(big.Int).Add(a, b)
}

// Sub returns a - b without mutating either operand.
func Sub(a, b *big.Int) *big.Int {
	return new(big.Int).Sub(a, b)
}

// Mul returns a * b at combined scale (WAD x RAY = RAD, etc.).
func Mul(a, b *big.Int) *big.Int {
	return new(big.Int).Mul(a, b)
}

// RMul returns a * b / RAY, floored. Keeps a's tier when b is RAY-scale.
func RMul(a, b *big.Int) *big.Int {
	return DivFloor(new(big.Int).Mul(a, b), Ray)
}

// RMulCeil returns a * b / RAY, ceiled.
func RMulCeil(a, b *big.Int) *big.Int {
	return DivCeil(new(big.Int).Mul(a, b), Ray)
}

// DivFloor returns a / b rounded toward negative infinity.
func DivFloor(a, b *big.Int) *big.Int {
	q, r := new(big.Int).QuoRem(a, b, new(big.Int))
	// Quo truncates toward zero; adjust when signs differ and remainder is non-zero.
	if r.Sign() != 0 && (a.Sign() < 0) != (b.Sign() < 0) {
		q.Sub(q, big.NewInt(1))
	}
	return q
}

// DivCeil returns a / b rounded toward positive infinity.
func DivCeil(a, b *big.Int) *big.Int {
	q, r := new(big.Int).QuoRem(a, b, new(big.Int))
	if r.Sign() != 0 && (a.Sign() < 0) == (b.Sign() < 0) {
		q.Add(q, big.NewInt(1))
	}
	return q
}

// NormDelta converts a signed value-scale delta into normalized units by
// dividing by the accumulator. Positive deltas floor (the holder's claim
// grows by no more than the value moved); negative deltas ceil in
// magnitude (the claim shrinks by at least the value moved). Either way
// the cash leg, normDelta * accumulator, never favors the caller.
func NormDelta(delta, accumulator *big.Int) *big.Int {
	scaled := new(big.Int).Mul(delta, Ray)
	if delta.Sign() >= 0 {
		return DivFloor(scaled, accumulator)
	}
	return DivCeil(scaled, accumulator)
}

// MulDivFloor returns a * b / den, floored.
func MulDivFloor(a, b, den *big.Int) *big.Int {
	return DivFloor(new(big.Int).Mul(a, b), den)
}

// Min returns the smaller of a and b (fresh value).
func Min(a, b *big.Int) *big.Int {
	if a.Cmp(b) <= 0 {
		return new(big.Int).Set(a)
	}
	return new(big.Int).Set(b)
}

// IsZero reports whether v is nil or zero.
func IsZero(v *big.Int) bool {
	return v == nil || v.Sign() == 0
}
