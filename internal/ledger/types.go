package ledger

import (
	"math/big"

	"github.com/google/uuid"
)

// Vault is a single user's position in one asset.
//
// Standby and Active are unit-scale (WAD) collateral amounts. NormDebt
// and NormEquity are normalized (WAD) claim units: the value-scale claim
// is norm * accumulator. InitialEquity is the value-scale (RAD) equity
// principal recorded at supply time, used to split accrued value into
// interest and principal.
type Vault struct {
	Standby       *big.Int
	Active        *big.Int
	NormDebt      *big.Int
	NormEquity    *big.Int
	InitialEquity *big.Int
}

// IsEmpty reports whether the vault holds nothing at all.
func (v *Vault) IsEmpty() bool {
	return v.Standby.Sign() == 0 && v.Active.Sign() == 0 &&
		v.NormDebt.Sign() == 0 && v.NormEquity.Sign() == 0
}

// Asset is the per-asset aggregate: accumulators, price, risk limits and
// running totals across all vaults of the asset.
type Asset struct {
	ID string

	DebtAccumulator   *big.Int // RAY, starts at 1.0, only grows
	EquityAccumulator *big.Int // RAY, starts at 1.0, only grows
	AdjustedPrice     *big.Int // RAY

	Ceiling    *big.Int // RAD, max total mintable value
	Floor      *big.Int // RAD, min non-zero position value
	VaultLimit *big.Int // RAD, per-vault value cap; zero means unlimited

	TotalNormDebt   *big.Int // WAD
	TotalNormEquity *big.Int // WAD

	OnAuction *big.Int // WAD, collateral confiscated and held for auction
}

// VaultKey identifies a vault.
type VaultKey struct {
	AssetID string
	Owner   uuid.UUID
}
