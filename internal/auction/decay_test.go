package auction_test

import (
	"math/big"
	"testing"
	"time"

	"VaultCore/internal/auction"
	fpmath "VaultCore/internal/math"
)

func TestLinearDecay(t *testing.T) {
	d := auction.LinearDecay{Horizon: time.Hour}
	start := fpmath.RayOf(100)

	if got := d.Price(start, 0); got.Cmp(start) != 0 {
		t.Errorf("at t=0: got %s, want %s", got, start)
	}
	if got := d.Price(start, 30*time.Minute); got.Cmp(fpmath.RayOf(50)) != 0 {
		t.Errorf("at halfway: got %s, want %s", got, fpmath.RayOf(50))
	}
	if got := d.Price(start, time.Hour); got.Sign() != 0 {
		t.Errorf("at horizon: got %s, want 0", got)
	}
	if got := d.Price(start, 2*time.Hour); got.Sign() != 0 {
		t.Errorf("past horizon: got %s, want 0", got)
	}
	if got := d.Price(start, -time.Minute); got.Sign() != 0 {
		t.Errorf("negative elapsed: got %s, want 0", got)
	}
}

func TestLinearDecay_Pure(t *testing.T) {
	d := auction.LinearDecay{Horizon: time.Hour}
	start := fpmath.RayOf(100)
	a := d.Price(start, 17*time.Minute)
	b := d.Price(start, 17*time.Minute)
	if a.Cmp(b) != 0 {
		t.Errorf("same inputs gave %s and %s", a, b)
	}
	if start.Cmp(fpmath.RayOf(100)) != 0 {
		t.Error("start price mutated")
	}
}

func TestLinearDecay_Floors(t *testing.T) {
	d := auction.LinearDecay{Horizon: 3 * time.Second}
	// 100 * 2/3 floors rather than rounds.
	got := d.Price(big.NewInt(100), time.Second)
	if got.Cmp(big.NewInt(66)) != 0 {
		t.Errorf("got %s, want 66", got)
	}
}
