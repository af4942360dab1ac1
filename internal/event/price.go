package event

import (
	"math/big"

	"github.com/google/uuid"
)

// PriceUpdate carries the oracle's adjusted price and liquidation ratio
// for one asset, both rate-scale (RAY).
type PriceUpdate struct {
	UpdateID         uuid.UUID
	Asset            string
	AdjustedPrice    *big.Int
	LiquidationRatio *big.Int
	Sequence         int64
}

func (p *PriceUpdate) IdempotencyKey() string {
	return p.UpdateID.String()
}

func (p *PriceUpdate) EventType() EventType {
	return EventTypePriceUpdate
}

func (p *PriceUpdate) AssetID() string {
	return p.Asset
}

func (p *PriceUpdate) SourceSequence() int64 {
	return p.Sequence
}
