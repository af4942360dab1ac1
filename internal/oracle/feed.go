package oracle

import (
	"fmt"
	"math/big"
	"sync"

	fpmath "VaultCore/internal/math"
)

// Feed stores the latest adjusted price and liquidation ratio per asset,
// both rate-scale (RAY). Updates arrive from the price ingestion path;
// reads come from the ledger, auction book, and liquidator.
type Feed struct {
	mu     sync.RWMutex
	prices map[string]*quote
}

type quote struct {
	adjustedPrice    *big.Int
	liquidationRatio *big.Int
}

func NewFeed() *Feed {
	return &Feed{
		prices: make(map[string]*quote),
	}
}

// Set replaces the quote for assetID.
func (f *Feed) Set(assetID string, adjustedPrice, liquidationRatio *big.Int) error {
	if adjustedPrice.Sign() < 0 {
		return fmt.Errorf("oracle: adjusted price must be non-negative, got %s", adjustedPrice)
	}
	if liquidationRatio.Sign() <= 0 {
		return fmt.Errorf("oracle: liquidation ratio must be positive, got %s", liquidationRatio)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prices[assetID] = &quote{
		adjustedPrice:    fpmath.Clone(adjustedPrice),
		liquidationRatio: fpmath.Clone(liquidationRatio),
	}
	return nil
}

// AdjustedPrice returns the latest adjusted price for assetID.
func (f *Feed) AdjustedPrice(assetID string) (*big.Int, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	q, ok := f.prices[assetID]
	if !ok {
		return nil, fmt.Errorf("oracle: no quote for asset %s", assetID)
	}
	return fpmath.Clone(q.adjustedPrice), nil
}

// LiquidationRatio returns the latest liquidation ratio for assetID.
func (f *Feed) LiquidationRatio(assetID string) (*big.Int, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	q, ok := f.prices[assetID]
	if !ok {
		return nil, fmt.Errorf("oracle: no quote for asset %s", assetID)
	}
	return fpmath.Clone(q.liquidationRatio), nil
}
