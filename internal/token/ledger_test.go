package token_test

import (
	"math/big"
	"testing"

	fpmath "VaultCore/internal/math"
	"VaultCore/internal/token"

	"github.com/google/uuid"
)

func TestCreditDebit(t *testing.T) {
	l := token.NewLedger()
	account := uuid.New()

	if err := l.Credit(token.KindStable, account, fpmath.RadOf(100)); err != nil {
		t.Fatalf("credit: %v", err)
	}
	if err := l.Debit(token.KindStable, account, fpmath.RadOf(40)); err != nil {
		t.Fatalf("debit: %v", err)
	}
	if got := l.Balance(token.KindStable, account); got.Cmp(fpmath.RadOf(60)) != 0 {
		t.Errorf("balance = %s, want %s", got, fpmath.RadOf(60))
	}

	if err := l.Debit(token.KindStable, account, fpmath.RadOf(100)); err == nil {
		t.Error("overdraft should fail")
	}
	if err := l.Credit(token.KindStable, account, big.NewInt(-1)); err == nil {
		t.Error("negative credit should fail")
	}
}

func TestKindsAreIndependent(t *testing.T) {
	l := token.NewLedger()
	account := uuid.New()

	if err := l.Credit(token.KindBond, account, fpmath.RadOf(5)); err != nil {
		t.Fatalf("credit: %v", err)
	}
	if got := l.Balance(token.KindStable, account); got.Sign() != 0 {
		t.Errorf("stable balance = %s, want 0", got)
	}
}

func TestTransfer(t *testing.T) {
	l := token.NewLedger()
	from, to := uuid.New(), uuid.New()
	if err := l.Credit(token.KindStable, from, fpmath.RadOf(10)); err != nil {
		t.Fatalf("credit: %v", err)
	}

	if err := l.Transfer(token.KindStable, from, to, fpmath.RadOf(10)); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if got := l.Balance(token.KindStable, to); got.Cmp(fpmath.RadOf(10)) != 0 {
		t.Errorf("recipient balance = %s, want %s", got, fpmath.RadOf(10))
	}

	if err := l.Transfer(token.KindStable, from, to, fpmath.RadOf(1)); err == nil {
		t.Error("transfer beyond balance should fail")
	}
}

func TestBalance_ReturnsCopy(t *testing.T) {
	l := token.NewLedger()
	account := uuid.New()
	if err := l.Credit(token.KindStable, account, fpmath.RadOf(7)); err != nil {
		t.Fatalf("credit: %v", err)
	}

	l.Balance(token.KindStable, account).SetInt64(0)
	if got := l.Balance(token.KindStable, account); got.Cmp(fpmath.RadOf(7)) != 0 {
		t.Errorf("balance mutated through the read copy: %s", got)
	}
}
