package math_test

import (
	"math/big"
	"testing"

	fpmath "VaultCore/internal/math"
)

func TestTierScales(t *testing.T) {
	if fpmath.Mul(fpmath.Wad, fpmath.Ray).Cmp(fpmath.Rad) != 0 {
		t.Error("WAD * RAY should equal RAD")
	}
}

func TestRMul_Floors(t *testing.T) {
	// 5 * 1/3 RAY = 1.666... -> 1
	third := fpmath.DivFloor(fpmath.Ray, big.NewInt(3))
	got := fpmath.RMul(big.NewInt(5), third)
	if got.Cmp(big.NewInt(1)) != 0 {
		t.Errorf("got %s, want 1", got)
	}
}

func TestDivFloor_Negative(t *testing.T) {
	got := fpmath.DivFloor(big.NewInt(-7), big.NewInt(2))
	if got.Cmp(big.NewInt(-4)) != 0 {
		t.Errorf("got %s, want -4", got)
	}
}

func TestDivCeil_Negative(t *testing.T) {
	got := fpmath.DivCeil(big.NewInt(-7), big.NewInt(2))
	if got.Cmp(big.NewInt(-3)) != 0 {
		t.Errorf("got %s, want -3", got)
	}
}

func TestNormDelta_UnitAccumulator(t *testing.T) {
	delta := fpmath.WadOf(500)
	norm := fpmath.NormDelta(delta, fpmath.Ray)
	if norm.Cmp(delta) != 0 {
		t.Errorf("at unit accumulator norm should equal delta: got %s", norm)
	}
}

func TestNormDelta_NeverFavorsCaller(t *testing.T) {
	// accumulator of 1.5 RAY
	acc := new(big.Int).Add(fpmath.Ray, fpmath.DivFloor(fpmath.Ray, big.NewInt(2)))

	pos := fpmath.NormDelta(big.NewInt(10), acc) // 10/1.5 = 6.66 -> 6
	if pos.Cmp(big.NewInt(0)) <= 0 {
		t.Fatalf("positive norm delta should be positive, got %s", pos)
	}
	// norm * acc must not exceed the value moved in
	back := fpmath.RMul(pos, acc)
	if back.Cmp(big.NewInt(10)) > 0 {
		t.Errorf("claim value %s exceeds value moved 10", back)
	}

	neg := fpmath.NormDelta(big.NewInt(-10), acc) // -6.66 -> -7 (ceil in magnitude)
	backNeg := fpmath.RMulCeil(new(big.Int).Neg(neg), acc)
	if backNeg.Cmp(big.NewInt(10)) < 0 {
		t.Errorf("claim reduction %s is below value moved out 10", backNeg)
	}
}

func TestMin(t *testing.T) {
	a, b := big.NewInt(3), big.NewInt(9)
	if fpmath.Min(a, b).Cmp(a) != 0 {
		t.Error("min(3,9) should be 3")
	}
	// result must be independent of inputs
	m := fpmath.Min(a, b)
	m.SetInt64(99)
	if a.Int64() != 3 {
		t.Error("Min must not alias its arguments")
	}
}
