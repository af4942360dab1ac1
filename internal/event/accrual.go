package event

import (
	"math/big"

	"github.com/google/uuid"
)

// AccrualTick is the accrual driver's periodic rate delta for one asset.
// The three increases are rate-scale (RAY); the ledger enforces that the
// equity and protocol shares never exceed debt growth.
type AccrualTick struct {
	TickID               uuid.UUID
	Asset                string
	Beneficiary          uuid.UUID
	DebtRateIncrease     *big.Int
	EquityRateIncrease   *big.Int
	ProtocolRateIncrease *big.Int
	Sequence             int64
}

func (a *AccrualTick) IdempotencyKey() string {
	return a.TickID.String()
}

func (a *AccrualTick) EventType() EventType {
	return EventTypeAccrualTick
}

func (a *AccrualTick) AssetID() string {
	return a.Asset
}

func (a *AccrualTick) SourceSequence() int64 {
	return a.Sequence
}
