package reserve_test

import (
	"math/big"
	"testing"

	fpmath "VaultCore/internal/math"
	"VaultCore/internal/reserve"
	"VaultCore/internal/token"

	"github.com/google/uuid"
)

func TestBadDebtAccounting(t *testing.T) {
	pool := reserve.NewPool(uuid.New(), token.NewLedger())

	if err := pool.AddAuctionDebt(fpmath.RadOf(100)); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := pool.ReduceAuctionDebt(fpmath.RadOf(30)); err != nil {
		t.Fatalf("reduce: %v", err)
	}
	if got := pool.BadDebt(); got.Cmp(fpmath.RadOf(70)) != 0 {
		t.Errorf("bad debt = %s, want %s", got, fpmath.RadOf(70))
	}

	if err := pool.ReduceAuctionDebt(fpmath.RadOf(100)); err == nil {
		t.Error("reduction beyond tracked debt should fail")
	}
	if err := pool.AddAuctionDebt(big.NewInt(-1)); err == nil {
		t.Error("negative increase should fail")
	}
}

func TestStableBalance(t *testing.T) {
	tokens := token.NewLedger()
	account := uuid.New()
	pool := reserve.NewPool(account, tokens)

	if err := tokens.Credit(token.KindStable, account, fpmath.RadOf(42)); err != nil {
		t.Fatalf("credit: %v", err)
	}
	if got := pool.StableBalance(); got.Cmp(fpmath.RadOf(42)) != 0 {
		t.Errorf("balance = %s, want %s", got, fpmath.RadOf(42))
	}
}
