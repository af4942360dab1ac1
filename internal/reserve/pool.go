package reserve

import (
	"fmt"
	"math/big"

	fpmath "VaultCore/internal/math"
	"VaultCore/internal/token"

	"github.com/google/uuid"
)

// Pool is the protocol reserve: it absorbs bad debt registered by the
// liquidator and receives the protocol's share of interest accrual and
// auction proceeds through its stablecoin account.
type Pool struct {
	account uuid.UUID
	tokens  *token.Ledger
	badDebt *big.Int // value-scale (RAD)
}

func NewPool(account uuid.UUID, tokens *token.Ledger) *Pool {
	return &Pool{
		account: account,
		tokens:  tokens,
		badDebt: new(big.Int),
	}
}

// Account returns the pool's stablecoin account id.
func (p *Pool) Account() uuid.UUID {
	return p.account
}

// BadDebt returns the currently tracked bad debt.
func (p *Pool) BadDebt() *big.Int {
	return fpmath.Clone(p.badDebt)
}

// AddAuctionDebt registers newly absorbed bad debt.
func (p *Pool) AddAuctionDebt(amount *big.Int) error {
	if amount.Sign() < 0 {
		return fmt.Errorf("reserve: bad debt increase must be non-negative, got %s", amount)
	}
	p.badDebt.Add(p.badDebt, amount)
	return nil
}

// ReduceAuctionDebt shrinks tracked bad debt as auction settlements
// recover value. Reductions beyond the tracked amount are rejected.
func (p *Pool) ReduceAuctionDebt(amount *big.Int) error {
	if amount.Sign() < 0 {
		return fmt.Errorf("reserve: bad debt reduction must be non-negative, got %s", amount)
	}
	if p.badDebt.Cmp(amount) < 0 {
		return fmt.Errorf("reserve: bad debt reduction %s exceeds tracked %s", amount, p.badDebt)
	}
	p.badDebt.Sub(p.badDebt, amount)
	return nil
}

// StableBalance returns the pool's stablecoin balance.
func (p *Pool) StableBalance() *big.Int {
	return p.tokens.Balance(token.KindStable, p.account)
}
