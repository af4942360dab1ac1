package ledger

import (
	"fmt"
	"math/big"

	fpmath "VaultCore/internal/math"
	"VaultCore/internal/registry"
	"VaultCore/internal/token"

	"github.com/google/uuid"
)

// AccessControl gates every mutating call. Checks fail closed.
type AccessControl interface {
	HasRole(role registry.Role, caller uuid.UUID) bool
}

// RatioSource supplies the liquidation ratio used by the certify check.
type RatioSource interface {
	LiquidationRatio(assetID string) (*big.Int, error)
}

// Ledger mutates the position store under the collateralization,
// floor/ceiling, and accumulator invariants. Every operation either
// applies fully or leaves the store byte-for-byte unchanged: all checks
// run before the first write.
type Ledger struct {
	store  *Store
	access AccessControl
	tokens *token.Ledger
	ratios RatioSource

	// bondRewardRate scales the bond token reward paid alongside
	// collected interest (RAY).
	bondRewardRate *big.Int
}

func NewLedger(store *Store, access AccessControl, tokens *token.Ledger, ratios RatioSource, bondRewardRate *big.Int) *Ledger {
	return &Ledger{
		store:          store,
		access:         access,
		tokens:         tokens,
		ratios:         ratios,
		bondRewardRate: fpmath.Clone(bondRewardRate),
	}
}

// Store exposes read access for query surfaces and invariant checks.
func (l *Ledger) Store() *Store {
	return l.store
}

// InitAsset registers a new asset with its risk limits. Re-initialization
// is forbidden.
func (l *Ledger) InitAsset(caller uuid.UUID, assetID string, ceiling, floor, vaultLimit *big.Int) error {
	if !l.access.HasRole(registry.RoleAssetManager, caller) {
		return fmt.Errorf("%w: init asset requires %s", ErrUnauthorized, registry.RoleAssetManager)
	}
	if l.store.Asset(assetID) != nil {
		return fmt.Errorf("%w: %s", ErrAssetExists, assetID)
	}
	l.store.PutAsset(newAsset(assetID, ceiling, floor, vaultLimit))
	return nil
}

// UpdateAdjustedPrice stores the oracle's adjusted price for an asset.
func (l *Ledger) UpdateAdjustedPrice(caller uuid.UUID, assetID string, price *big.Int) error {
	if !l.access.HasRole(registry.RoleTeller, caller) {
		return fmt.Errorf("%w: price update requires %s", ErrUnauthorized, registry.RoleTeller)
	}
	a := l.store.Asset(assetID)
	if a == nil {
		return fmt.Errorf("%w: %s", ErrUnknownAsset, assetID)
	}
	if price.Sign() < 0 {
		return fmt.Errorf("ledger: adjusted price must be non-negative, got %s", price)
	}
	a.AdjustedPrice = fpmath.Clone(price)
	return nil
}

// ModifyStandby moves collateral across the external boundary: positive
// deltas deposit into the owner's standby pool, negative withdraw from
// it. This is the only operation that changes an asset's total supply.
func (l *Ledger) ModifyStandby(caller uuid.UUID, assetID string, owner uuid.UUID, delta *big.Int) error {
	if !l.access.HasRole(registry.RoleAssetManager, caller) {
		return fmt.Errorf("%w: standby move requires %s", ErrUnauthorized, registry.RoleAssetManager)
	}
	if l.store.Asset(assetID) == nil {
		return fmt.Errorf("%w: %s", ErrUnknownAsset, assetID)
	}
	v := l.store.Vault(assetID, owner)
	newStandby := fpmath.Add(v.Standby, delta)
	if newStandby.Sign() < 0 {
		return fmt.Errorf("%w: have %s, withdraw %s", ErrInsufficientStandby, v.Standby, new(big.Int).Neg(delta))
	}
	v.Standby = newStandby
	l.store.RecordOwner(assetID, owner)
	return nil
}

// ModifyEquity moves |deltaUnderlying| between the caller's standby and
// active pools and adjusts the normalized equity claim by
// deltaEquity / equityAccumulator. Both deltas must carry the same sign.
func (l *Ledger) ModifyEquity(caller uuid.UUID, assetID string, deltaUnderlying, deltaEquity *big.Int) error {
	if !l.access.HasRole(registry.RoleWhitelisted, caller) {
		return fmt.Errorf("%w: equity change requires %s", ErrUnauthorized, registry.RoleWhitelisted)
	}
	a := l.store.Asset(assetID)
	if a == nil {
		return fmt.Errorf("%w: %s", ErrUnknownAsset, assetID)
	}
	if signsConflict(deltaUnderlying, deltaEquity) {
		return fmt.Errorf("%w: underlying %s, equity %s", ErrSignMismatch, deltaUnderlying, deltaEquity)
	}

	v := l.store.Vault(assetID, caller)

	newStandby := fpmath.Sub(v.Standby, deltaUnderlying)
	if newStandby.Sign() < 0 {
		return fmt.Errorf("%w: have %s, need %s", ErrInsufficientStandby, v.Standby, deltaUnderlying)
	}
	newActive := fpmath.Add(v.Active, deltaUnderlying)
	if newActive.Sign() < 0 {
		return fmt.Errorf("%w: have %s, release %s", ErrInsufficientActive, v.Active, new(big.Int).Neg(deltaUnderlying))
	}

	normDelta := fpmath.NormDelta(deltaEquity, a.EquityAccumulator)
	newNormEquity := fpmath.Add(v.NormEquity, normDelta)
	if newNormEquity.Sign() < 0 {
		return fmt.Errorf("%w: equity claim", ErrNegativeClaim)
	}
	newTotal := fpmath.Add(a.TotalNormEquity, normDelta)

	equityValue := fpmath.Mul(newNormEquity, a.EquityAccumulator)
	if newNormEquity.Sign() > 0 && equityValue.Cmp(a.Floor) < 0 {
		return fmt.Errorf("%w: equity value %s below floor %s", ErrBelowFloor, equityValue, a.Floor)
	}
	if normDelta.Sign() > 0 {
		totalValue := fpmath.Mul(newTotal, a.EquityAccumulator)
		if totalValue.Cmp(a.Ceiling) > 0 {
			return fmt.Errorf("%w: total equity value %s over ceiling %s", ErrCeilingExceeded, totalValue, a.Ceiling)
		}
		if a.VaultLimit.Sign() > 0 {
			vaultValue := fpmath.Add(equityValue, fpmath.Mul(v.NormDebt, a.DebtAccumulator))
			if vaultValue.Cmp(a.VaultLimit) > 0 {
				return fmt.Errorf("%w: vault value %s over limit %s", ErrVaultLimitExceeded, vaultValue, a.VaultLimit)
			}
		}
	}

	if err := l.certify(assetID, a, newActive, v.NormDebt, newNormEquity); err != nil {
		return err
	}

	newInitial := nextInitialEquity(v.InitialEquity, v.NormEquity, newNormEquity, normDelta, a.EquityAccumulator)

	v.Standby = newStandby
	v.Active = newActive
	v.NormEquity = newNormEquity
	v.InitialEquity = newInitial
	a.TotalNormEquity = newTotal
	l.store.RecordOwner(assetID, caller)
	return nil
}

// ModifyDebt moves |deltaCollateral| between standby and active pools
// and adjusts the normalized debt claim by deltaDebt / debtAccumulator.
// Minted debt is credited as stablecoin; repaid debt is debited.
func (l *Ledger) ModifyDebt(caller uuid.UUID, assetID string, deltaCollateral, deltaDebt *big.Int) error {
	if !l.access.HasRole(registry.RoleWhitelisted, caller) {
		return fmt.Errorf("%w: debt change requires %s", ErrUnauthorized, registry.RoleWhitelisted)
	}
	a := l.store.Asset(assetID)
	if a == nil {
		return fmt.Errorf("%w: %s", ErrUnknownAsset, assetID)
	}
	if signsConflict(deltaCollateral, deltaDebt) {
		return fmt.Errorf("%w: collateral %s, debt %s", ErrSignMismatch, deltaCollateral, deltaDebt)
	}

	v := l.store.Vault(assetID, caller)

	newStandby := fpmath.Sub(v.Standby, deltaCollateral)
	if newStandby.Sign() < 0 {
		return fmt.Errorf("%w: have %s, need %s", ErrInsufficientStandby, v.Standby, deltaCollateral)
	}
	newActive := fpmath.Add(v.Active, deltaCollateral)
	if newActive.Sign() < 0 {
		return fmt.Errorf("%w: have %s, release %s", ErrInsufficientActive, v.Active, new(big.Int).Neg(deltaCollateral))
	}

	normDelta := fpmath.NormDelta(deltaDebt, a.DebtAccumulator)
	newNormDebt := fpmath.Add(v.NormDebt, normDelta)
	if newNormDebt.Sign() < 0 {
		return fmt.Errorf("%w: debt claim", ErrNegativeClaim)
	}
	newTotal := fpmath.Add(a.TotalNormDebt, normDelta)

	debtValue := fpmath.Mul(newNormDebt, a.DebtAccumulator)
	if newNormDebt.Sign() > 0 && debtValue.Cmp(a.Floor) < 0 {
		return fmt.Errorf("%w: debt value %s below floor %s", ErrBelowFloor, debtValue, a.Floor)
	}
	if normDelta.Sign() > 0 {
		totalValue := fpmath.Mul(newTotal, a.DebtAccumulator)
		if totalValue.Cmp(a.Ceiling) > 0 {
			return fmt.Errorf("%w: total debt value %s over ceiling %s", ErrCeilingExceeded, totalValue, a.Ceiling)
		}
		if a.VaultLimit.Sign() > 0 {
			vaultValue := fpmath.Add(debtValue, fpmath.Mul(v.NormEquity, a.EquityAccumulator))
			if vaultValue.Cmp(a.VaultLimit) > 0 {
				return fmt.Errorf("%w: vault value %s over limit %s", ErrVaultLimitExceeded, vaultValue, a.VaultLimit)
			}
		}
	}

	if err := l.certify(assetID, a, newActive, newNormDebt, v.NormEquity); err != nil {
		return err
	}

	// Stablecoin leg: mint on draw, burn on repay. The repay balance is
	// validated before any state is touched.
	valueMoved := fpmath.Mul(new(big.Int).Abs(normDelta), a.DebtAccumulator)
	if normDelta.Sign() < 0 {
		if l.tokens.Balance(token.KindStable, caller).Cmp(valueMoved) < 0 {
			return fmt.Errorf("ledger: insufficient stablecoin to repay %s", valueMoved)
		}
	}

	v.Standby = newStandby
	v.Active = newActive
	v.NormDebt = newNormDebt
	a.TotalNormDebt = newTotal
	l.store.RecordOwner(assetID, caller)

	if normDelta.Sign() > 0 {
		if err := l.tokens.Credit(token.KindStable, caller, valueMoved); err != nil {
			return err
		}
	} else if normDelta.Sign() < 0 {
		if err := l.tokens.Debit(token.KindStable, caller, valueMoved); err != nil {
			return err
		}
	}
	return nil
}

// UpdateAccumulators applies the accrual driver's rate deltas. Debt
// accumulator growth is the sole source of new value, so the equity and
// protocol shares may never exceed it. Runs in O(1) regardless of vault
// count: the protocol share is credited to the reserve beneficiary and
// every equity holder's share is realized lazily through the
// accumulator.
func (l *Ledger) UpdateAccumulators(caller uuid.UUID, assetID string, beneficiary uuid.UUID, debtRateIncrease, equityRateIncrease, protocolRateIncrease *big.Int) error {
	if !l.access.HasRole(registry.RoleTeller, caller) {
		return fmt.Errorf("%w: accumulator update requires %s", ErrUnauthorized, registry.RoleTeller)
	}
	a := l.store.Asset(assetID)
	if a == nil {
		return fmt.Errorf("%w: %s", ErrUnknownAsset, assetID)
	}
	if debtRateIncrease.Sign() < 0 || equityRateIncrease.Sign() < 0 || protocolRateIncrease.Sign() < 0 {
		return ErrAccumulatorDecrease
	}
	claimed := fpmath.Add(equityRateIncrease, protocolRateIncrease)
	if claimed.Cmp(debtRateIncrease) > 0 {
		return fmt.Errorf("%w: equity %s + protocol %s > debt %s",
			ErrAccumulatorOrdering, equityRateIncrease, protocolRateIncrease, debtRateIncrease)
	}

	protocolShare := fpmath.Mul(protocolRateIncrease, a.TotalNormEquity)
	if err := l.tokens.Credit(token.KindStable, beneficiary, protocolShare); err != nil {
		return err
	}

	a.DebtAccumulator = fpmath.Add(a.DebtAccumulator, debtRateIncrease)
	a.EquityAccumulator = fpmath.Add(a.EquityAccumulator, equityRateIncrease)
	return nil
}

// CollectInterest realizes the caller's accrued equity interest without
// touching principal: the value above InitialEquity is paid out as
// stablecoin plus a proportional bond token reward, and the normalized
// claim shrinks so the remaining claim rebased against the current
// accumulator equals the recorded principal.
func (l *Ledger) CollectInterest(caller uuid.UUID, assetID string) error {
	if !l.access.HasRole(registry.RoleWhitelisted, caller) {
		return fmt.Errorf("%w: interest collection requires %s", ErrUnauthorized, registry.RoleWhitelisted)
	}
	a := l.store.Asset(assetID)
	if a == nil {
		return fmt.Errorf("%w: %s", ErrUnknownAsset, assetID)
	}
	v, ok := l.store.PeekVault(assetID, caller)
	if !ok || v.NormEquity.Sign() == 0 {
		return ErrNoAccruedInterest
	}

	currentValue := fpmath.Mul(v.NormEquity, a.EquityAccumulator)
	interest := fpmath.Sub(currentValue, v.InitialEquity)
	if interest.Sign() <= 0 {
		return ErrNoAccruedInterest
	}

	// Ceil: the claim shrinks by at least the interest paid, so the
	// caller can never extract more than the principal's fair share.
	normReduction := fpmath.DivCeil(interest, a.EquityAccumulator)
	newNormEquity := fpmath.Sub(v.NormEquity, normReduction)
	if newNormEquity.Sign() < 0 {
		return fmt.Errorf("%w: interest reduction", ErrNegativeClaim)
	}

	if err := l.tokens.Credit(token.KindStable, caller, interest); err != nil {
		return err
	}
	bondReward := fpmath.RMul(interest, l.bondRewardRate)
	if bondReward.Sign() > 0 {
		if err := l.tokens.Credit(token.KindBond, caller, bondReward); err != nil {
			return err
		}
	}

	v.NormEquity = newNormEquity
	v.InitialEquity = fpmath.Mul(newNormEquity, a.EquityAccumulator)
	a.TotalNormEquity = fpmath.Sub(a.TotalNormEquity, normReduction)
	return nil
}

// ConfiscateVault zeroes an undercollateralized vault on behalf of the
// liquidator: active collateral moves to the on-auction pool and the
// normalized claims leave the asset totals. Returns what was seized.
func (l *Ledger) ConfiscateVault(caller uuid.UUID, assetID string, owner uuid.UUID) (collateral, normDebt, normEquity *big.Int, err error) {
	if !l.access.HasRole(registry.RoleLiquidator, caller) {
		return nil, nil, nil, fmt.Errorf("%w: confiscation requires %s", ErrUnauthorized, registry.RoleLiquidator)
	}
	a := l.store.Asset(assetID)
	if a == nil {
		return nil, nil, nil, fmt.Errorf("%w: %s", ErrUnknownAsset, assetID)
	}
	v, ok := l.store.PeekVault(assetID, owner)
	if !ok {
		return nil, nil, nil, fmt.Errorf("%w: no vault for %s", ErrUnknownAsset, owner)
	}

	collateral = fpmath.Clone(v.Active)
	normDebt = fpmath.Clone(v.NormDebt)
	normEquity = fpmath.Clone(v.NormEquity)

	a.OnAuction = fpmath.Add(a.OnAuction, v.Active)
	a.TotalNormDebt = fpmath.Sub(a.TotalNormDebt, v.NormDebt)
	a.TotalNormEquity = fpmath.Sub(a.TotalNormEquity, v.NormEquity)

	v.Active = new(big.Int)
	v.NormDebt = new(big.Int)
	v.NormEquity = new(big.Int)
	v.InitialEquity = new(big.Int)
	return collateral, normDebt, normEquity, nil
}

// ReleaseAuctionCollateral moves confiscated collateral out of the
// on-auction pool into the recipient's standby balance. Called by the
// auction book on settlement and teardown.
func (l *Ledger) ReleaseAuctionCollateral(caller uuid.UUID, assetID string, recipient uuid.UUID, amount *big.Int) error {
	if !l.access.HasRole(registry.RoleLiquidator, caller) {
		return fmt.Errorf("%w: collateral release requires %s", ErrUnauthorized, registry.RoleLiquidator)
	}
	a := l.store.Asset(assetID)
	if a == nil {
		return fmt.Errorf("%w: %s", ErrUnknownAsset, assetID)
	}
	if amount.Sign() < 0 {
		return fmt.Errorf("ledger: release amount must be non-negative, got %s", amount)
	}
	if a.OnAuction.Cmp(amount) < 0 {
		return fmt.Errorf("%w: on auction %s, release %s", ErrInsufficientActive, a.OnAuction, amount)
	}
	v := l.store.Vault(assetID, recipient)
	a.OnAuction = fpmath.Sub(a.OnAuction, amount)
	v.Standby = fpmath.Add(v.Standby, amount)
	l.store.RecordOwner(assetID, recipient)
	return nil
}

// certify checks that active collateral at the current adjusted price
// covers all claims at the required liquidation ratio. Vaults with no
// claims always pass.
func (l *Ledger) certify(assetID string, a *Asset, active, normDebt, normEquity *big.Int) error {
	claims := fpmath.Add(
		fpmath.Mul(normDebt, a.DebtAccumulator),
		fpmath.Mul(normEquity, a.EquityAccumulator),
	)
	if claims.Sign() == 0 {
		return nil
	}
	ratio, err := l.ratios.LiquidationRatio(assetID)
	if err != nil {
		return fmt.Errorf("ledger: certify: %w", err)
	}
	collateralValue := fpmath.Mul(active, a.AdjustedPrice)
	required := fpmath.RMulCeil(claims, ratio)
	if collateralValue.Cmp(required) < 0 {
		return fmt.Errorf("%w: collateral value %s, required %s", ErrUndercollateralized, collateralValue, required)
	}
	return nil
}

// nextInitialEquity recomputes the principal tracker across an equity
// change: increases record new principal at the current accumulator,
// decreases scale the tracker proportionally so partial exits keep the
// interest/principal split intact.
func nextInitialEquity(initial, oldNorm, newNorm, normDelta, accumulator *big.Int) *big.Int {
	if normDelta.Sign() >= 0 {
		return fpmath.Add(initial, fpmath.Mul(normDelta, accumulator))
	}
	if newNorm.Sign() == 0 {
		return new(big.Int)
	}
	return fpmath.MulDivFloor(initial, newNorm, oldNorm)
}

func signsConflict(a, b *big.Int) bool {
	return a.Sign() != 0 && b.Sign() != 0 && a.Sign() != b.Sign()
}
