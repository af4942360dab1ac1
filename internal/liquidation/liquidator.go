package liquidation

import (
	"errors"
	"fmt"
	"math/big"

	"VaultCore/internal/auction"
	"VaultCore/internal/ledger"
	fpmath "VaultCore/internal/math"
	"VaultCore/internal/registry"
	"VaultCore/internal/reserve"

	"github.com/google/uuid"
)

var (
	ErrUnauthorized       = errors.New("liquidation: caller lacks required role")
	ErrAssetConfigured    = errors.New("liquidation: asset already configured")
	ErrAssetNotConfigured = errors.New("liquidation: asset not configured")
	ErrNothingToLiquidate = errors.New("liquidation: vault has nothing to liquidate")
	ErrVaultSafe          = errors.New("liquidation: vault is still collateralized")
	ErrPenaltyBelowUnit   = errors.New("liquidation: penalty fee must be at least 1.0")
)

// PriceFeed supplies the adjusted price and liquidation ratio used by
// the safety check.
type PriceFeed interface {
	AdjustedPrice(assetID string) (*big.Int, error)
	LiquidationRatio(assetID string) (*big.Int, error)
}

// AccessControl gates every mutating call.
type AccessControl interface {
	HasRole(role registry.Role, caller uuid.UUID) bool
}

// assetConfig is the per-asset liquidation policy.
type assetConfig struct {
	debtPenaltyFee   *big.Int // RAY, >= 1.0
	equityPenaltyFee *big.Int // RAY, >= 1.0
	auctioneer       *auction.Book
}

// Liquidator is the policy layer: it decides a vault is unsafe, zeroes
// it through the ledger, registers penalty-adjusted bad debt with the
// reserve pool, and opens an auction. It owns a role-checked identity of
// its own so the ledger can authorize its confiscations.
type Liquidator struct {
	id      uuid.UUID
	access  AccessControl
	ledger  *ledger.Ledger
	pool    *reserve.Pool
	feed    PriceFeed
	configs map[string]*assetConfig
}

func NewLiquidator(id uuid.UUID, access AccessControl, led *ledger.Ledger, pool *reserve.Pool, feed PriceFeed) *Liquidator {
	return &Liquidator{
		id:      id,
		access:  access,
		ledger:  led,
		pool:    pool,
		feed:    feed,
		configs: make(map[string]*assetConfig),
	}
}

// ID returns the liquidator's role-check identity.
func (l *Liquidator) ID() uuid.UUID {
	return l.id
}

// Init configures liquidation for an asset. Re-initialization is
// forbidden; penalties change through UpdatePenalties.
func (l *Liquidator) Init(caller uuid.UUID, assetID string, debtPenaltyFee, equityPenaltyFee *big.Int, auctioneer *auction.Book) error {
	if !l.access.HasRole(registry.RoleGov, caller) {
		return fmt.Errorf("%w: init requires %s", ErrUnauthorized, registry.RoleGov)
	}
	if _, ok := l.configs[assetID]; ok {
		return fmt.Errorf("%w: %s", ErrAssetConfigured, assetID)
	}
	if err := validatePenalties(debtPenaltyFee, equityPenaltyFee); err != nil {
		return err
	}
	l.configs[assetID] = &assetConfig{
		debtPenaltyFee:   fpmath.Clone(debtPenaltyFee),
		equityPenaltyFee: fpmath.Clone(equityPenaltyFee),
		auctioneer:       auctioneer,
	}
	return nil
}

// UpdatePenalties replaces the penalty fees for a configured asset.
func (l *Liquidator) UpdatePenalties(caller uuid.UUID, assetID string, debtPenaltyFee, equityPenaltyFee *big.Int) error {
	if !l.access.HasRole(registry.RoleGov, caller) {
		return fmt.Errorf("%w: penalty update requires %s", ErrUnauthorized, registry.RoleGov)
	}
	cfg, ok := l.configs[assetID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrAssetNotConfigured, assetID)
	}
	if err := validatePenalties(debtPenaltyFee, equityPenaltyFee); err != nil {
		return err
	}
	cfg.debtPenaltyFee = fpmath.Clone(debtPenaltyFee)
	cfg.equityPenaltyFee = fpmath.Clone(equityPenaltyFee)
	return nil
}

// UpdateAuctioneer rebinds the auction book handling an asset.
func (l *Liquidator) UpdateAuctioneer(caller uuid.UUID, assetID string, auctioneer *auction.Book) error {
	if !l.access.HasRole(registry.RoleGov, caller) {
		return fmt.Errorf("%w: auctioneer update requires %s", ErrUnauthorized, registry.RoleGov)
	}
	cfg, ok := l.configs[assetID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrAssetNotConfigured, assetID)
	}
	cfg.auctioneer = auctioneer
	return nil
}

// LiquidateVault zeroes an undercollateralized vault and opens an
// auction for its collateral. The auction debt carries the debt penalty
// surcharge; sellAllLot is set when the collateral's current value does
// not even cover the penalty-adjusted debt (structural shortfall).
func (l *Liquidator) LiquidateVault(caller uuid.UUID, assetID string, owner uuid.UUID) (uuid.UUID, error) {
	if !l.access.HasRole(registry.RoleLiquidator, caller) {
		return uuid.Nil, fmt.Errorf("%w: liquidation requires %s", ErrUnauthorized, registry.RoleLiquidator)
	}
	cfg, ok := l.configs[assetID]
	if !ok {
		return uuid.Nil, fmt.Errorf("%w: %s", ErrAssetNotConfigured, assetID)
	}
	a := l.ledger.Store().Asset(assetID)
	if a == nil {
		return uuid.Nil, fmt.Errorf("%w: unknown asset %s", ErrAssetNotConfigured, assetID)
	}
	v, ok := l.ledger.Store().PeekVault(assetID, owner)
	if !ok || v.Active.Sign() == 0 {
		return uuid.Nil, ErrNothingToLiquidate
	}

	price, err := l.feed.AdjustedPrice(assetID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("liquidation: %w", err)
	}
	ratio, err := l.feed.LiquidationRatio(assetID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("liquidation: %w", err)
	}

	claims := fpmath.Add(
		fpmath.Mul(v.NormDebt, a.DebtAccumulator),
		fpmath.Mul(v.NormEquity, a.EquityAccumulator),
	)
	collateralValue := fpmath.Mul(v.Active, price)
	required := fpmath.RMulCeil(claims, ratio)
	if collateralValue.Cmp(required) >= 0 {
		return uuid.Nil, fmt.Errorf("%w: collateral value %s covers %s", ErrVaultSafe, collateralValue, required)
	}

	collateral, normDebt, _, err := l.ledger.ConfiscateVault(l.id, assetID, owner)
	if err != nil {
		return uuid.Nil, err
	}

	debtValue := fpmath.Mul(normDebt, a.DebtAccumulator)
	auctionDebt := fpmath.RMulCeil(debtValue, cfg.debtPenaltyFee)
	if err := l.pool.AddAuctionDebt(auctionDebt); err != nil {
		return uuid.Nil, err
	}

	sellAllLot := fpmath.Mul(collateral, price).Cmp(auctionDebt) < 0
	return cfg.auctioneer.StartAuction(l.id, assetID, collateral, auctionDebt, owner, l.pool.Account(), sellAllLot)
}

// AddAuctionDebt passes a bad-debt increase through to the reserve pool.
func (l *Liquidator) AddAuctionDebt(amount *big.Int) error {
	return l.pool.AddAuctionDebt(amount)
}

// ReduceAuctionDebt passes settled value through to the reserve pool.
// Called by the auction book on every fill and on teardown.
func (l *Liquidator) ReduceAuctionDebt(amount *big.Int) error {
	return l.pool.ReduceAuctionDebt(amount)
}

func validatePenalties(debtPenaltyFee, equityPenaltyFee *big.Int) error {
	if debtPenaltyFee.Cmp(fpmath.Ray) < 0 || equityPenaltyFee.Cmp(fpmath.Ray) < 0 {
		return ErrPenaltyBelowUnit
	}
	return nil
}
