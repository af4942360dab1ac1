package token

import (
	"fmt"
	"math/big"

	fpmath "VaultCore/internal/math"

	"github.com/google/uuid"
)

// Kind selects which token balance an operation touches.
type Kind int

const (
	KindStable Kind = iota // value-scale (RAD) stablecoin
	KindBond               // value-scale (RAD) protocol bond token
)

func (k Kind) String() string {
	switch k {
	case KindStable:
		return "stable"
	case KindBond:
		return "bond"
	default:
		return "unknown"
	}
}

// Ledger mirrors internal value changes as spendable token balances.
// Credits mint, debits burn; transfers move between accounts. All
// amounts are value-scale (RAD) and must be non-negative.
type Ledger struct {
	balances map[Kind]map[uuid.UUID]*big.Int
}

func NewLedger() *Ledger {
	return &Ledger{
		balances: map[Kind]map[uuid.UUID]*big.Int{
			KindStable: make(map[uuid.UUID]*big.Int),
			KindBond:   make(map[uuid.UUID]*big.Int),
		},
	}
}

// Balance returns the current balance (zero for unknown accounts).
func (l *Ledger) Balance(kind Kind, account uuid.UUID) *big.Int {
	return fpmath.Clone(l.balances[kind][account])
}

// Credit mints amount into account.
func (l *Ledger) Credit(kind Kind, account uuid.UUID, amount *big.Int) error {
	if amount.Sign() < 0 {
		return fmt.Errorf("token: credit amount must be non-negative, got %s", amount)
	}
	bal := l.balances[kind][account]
	if bal == nil {
		bal = new(big.Int)
		l.balances[kind][account] = bal
	}
	bal.Add(bal, amount)
	return nil
}

// Debit burns amount from account; rejects if the balance is insufficient.
func (l *Ledger) Debit(kind Kind, account uuid.UUID, amount *big.Int) error {
	if amount.Sign() < 0 {
		return fmt.Errorf("token: debit amount must be non-negative, got %s", amount)
	}
	bal := l.balances[kind][account]
	if bal == nil || bal.Cmp(amount) < 0 {
		return fmt.Errorf("token: insufficient %s balance for %s: have %s, need %s",
			kind, account, fpmath.Clone(bal), amount)
	}
	bal.Sub(bal, amount)
	return nil
}

// Transfer moves amount from one account to another.
func (l *Ledger) Transfer(kind Kind, from, to uuid.UUID, amount *big.Int) error {
	if err := l.Debit(kind, from, amount); err != nil {
		return err
	}
	return l.Credit(kind, to, amount)
}
