package ledger_test

import (
	"errors"
	"math/big"
	"testing"

	"VaultCore/internal/ledger"
	fpmath "VaultCore/internal/math"
	"VaultCore/internal/oracle"
	"VaultCore/internal/registry"
	"VaultCore/internal/token"

	"github.com/google/uuid"
)

const asset = "ETH"

// fixture wires a ledger with one configured asset: price 100, liquidation
// ratio 1.5, ceiling 1e6, floor 10, no per-vault limit.
type fixture struct {
	led    *ledger.Ledger
	tokens *token.Ledger
	feed   *oracle.Feed

	gov      uuid.UUID
	assetMgr uuid.UUID
	teller   uuid.UUID
	liq      uuid.UUID
	user     uuid.UUID
}

func halfRay() *big.Int {
	return fpmath.DivFloor(fpmath.Ray, big.NewInt(2))
}

func ratioOneAndHalf() *big.Int {
	return fpmath.Add(fpmath.Ray, halfRay())
}

func newFixture(t *testing.T, bondRewardRate *big.Int) *fixture {
	t.Helper()
	f := &fixture{
		tokens:   token.NewLedger(),
		feed:     oracle.NewFeed(),
		gov:      uuid.New(),
		assetMgr: uuid.New(),
		teller:   uuid.New(),
		liq:      uuid.New(),
		user:     uuid.New(),
	}
	reg := registry.NewRegistry()
	if err := reg.Grant(f.gov, registry.RoleGov, f.gov); err != nil {
		t.Fatalf("bootstrap gov: %v", err)
	}
	for _, g := range []struct {
		role    registry.Role
		account uuid.UUID
	}{
		{registry.RoleAssetManager, f.assetMgr},
		{registry.RoleTeller, f.teller},
		{registry.RoleLiquidator, f.liq},
		{registry.RoleWhitelisted, f.user},
	} {
		if err := reg.Grant(f.gov, g.role, g.account); err != nil {
			t.Fatalf("grant %s: %v", g.role, err)
		}
	}

	f.led = ledger.NewLedger(ledger.NewStore(), reg, f.tokens, f.feed, bondRewardRate)
	if err := f.led.InitAsset(f.assetMgr, asset, fpmath.RadOf(1_000_000), fpmath.RadOf(10), new(big.Int)); err != nil {
		t.Fatalf("init asset: %v", err)
	}
	if err := f.led.UpdateAdjustedPrice(f.teller, asset, fpmath.RayOf(100)); err != nil {
		t.Fatalf("set price: %v", err)
	}
	if err := f.feed.Set(asset, fpmath.RayOf(100), ratioOneAndHalf()); err != nil {
		t.Fatalf("set quote: %v", err)
	}
	return f
}

func (f *fixture) deposit(t *testing.T, owner uuid.UUID, units int64) {
	t.Helper()
	if err := f.led.ModifyStandby(f.assetMgr, asset, owner, fpmath.WadOf(units)); err != nil {
		t.Fatalf("deposit: %v", err)
	}
}

func TestInitAsset_Reinitialization(t *testing.T) {
	f := newFixture(t, new(big.Int))
	err := f.led.InitAsset(f.assetMgr, asset, fpmath.RadOf(1), fpmath.RadOf(1), new(big.Int))
	if !errors.Is(err, ledger.ErrAssetExists) {
		t.Errorf("got %v, want ErrAssetExists", err)
	}
}

func TestInitAsset_RequiresAssetManager(t *testing.T) {
	f := newFixture(t, new(big.Int))
	err := f.led.InitAsset(f.user, "BTC", fpmath.RadOf(1), fpmath.RadOf(1), new(big.Int))
	if !errors.Is(err, ledger.ErrUnauthorized) {
		t.Errorf("got %v, want ErrUnauthorized", err)
	}
}

func TestModifyStandby_DepositWithdraw(t *testing.T) {
	f := newFixture(t, new(big.Int))
	f.deposit(t, f.user, 10)

	if err := f.led.ModifyStandby(f.assetMgr, asset, f.user, fpmath.WadOf(-4)); err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	v, _ := f.led.Store().PeekVault(asset, f.user)
	if v.Standby.Cmp(fpmath.WadOf(6)) != 0 {
		t.Errorf("standby = %s, want %s", v.Standby, fpmath.WadOf(6))
	}

	err := f.led.ModifyStandby(f.assetMgr, asset, f.user, fpmath.WadOf(-7))
	if !errors.Is(err, ledger.ErrInsufficientStandby) {
		t.Errorf("got %v, want ErrInsufficientStandby", err)
	}
}

func TestModifyDebt_DrawMintsStablecoin(t *testing.T) {
	f := newFixture(t, new(big.Int))
	f.deposit(t, f.user, 10)

	if err := f.led.ModifyDebt(f.user, asset, fpmath.WadOf(10), fpmath.WadOf(500)); err != nil {
		t.Fatalf("draw: %v", err)
	}

	v, _ := f.led.Store().PeekVault(asset, f.user)
	if v.Standby.Sign() != 0 || v.Active.Cmp(fpmath.WadOf(10)) != 0 {
		t.Errorf("collateral split = standby %s / active %s, want 0 / %s", v.Standby, v.Active, fpmath.WadOf(10))
	}
	if v.NormDebt.Cmp(fpmath.WadOf(500)) != 0 {
		t.Errorf("norm debt = %s, want %s", v.NormDebt, fpmath.WadOf(500))
	}
	if got := f.tokens.Balance(token.KindStable, f.user); got.Cmp(fpmath.RadOf(500)) != 0 {
		t.Errorf("stablecoin minted = %s, want %s", got, fpmath.RadOf(500))
	}
	a := f.led.Store().Asset(asset)
	if a.TotalNormDebt.Cmp(fpmath.WadOf(500)) != 0 {
		t.Errorf("total norm debt = %s, want %s", a.TotalNormDebt, fpmath.WadOf(500))
	}
}

func TestModifyDebt_RepayBurnsStablecoin(t *testing.T) {
	f := newFixture(t, new(big.Int))
	f.deposit(t, f.user, 10)
	if err := f.led.ModifyDebt(f.user, asset, fpmath.WadOf(10), fpmath.WadOf(500)); err != nil {
		t.Fatalf("draw: %v", err)
	}

	if err := f.led.ModifyDebt(f.user, asset, new(big.Int), fpmath.WadOf(-500)); err != nil {
		t.Fatalf("repay: %v", err)
	}
	if got := f.tokens.Balance(token.KindStable, f.user); got.Sign() != 0 {
		t.Errorf("stablecoin after full repay = %s, want 0", got)
	}

	// With no claims left the collateral can leave the active pool.
	if err := f.led.ModifyDebt(f.user, asset, fpmath.WadOf(-10), new(big.Int)); err != nil {
		t.Fatalf("release collateral: %v", err)
	}
	v, _ := f.led.Store().PeekVault(asset, f.user)
	if v.Standby.Cmp(fpmath.WadOf(10)) != 0 {
		t.Errorf("standby = %s, want %s", v.Standby, fpmath.WadOf(10))
	}
}

func TestModifyDebt_SignMismatch(t *testing.T) {
	f := newFixture(t, new(big.Int))
	f.deposit(t, f.user, 10)
	err := f.led.ModifyDebt(f.user, asset, fpmath.WadOf(10), fpmath.WadOf(-500))
	if !errors.Is(err, ledger.ErrSignMismatch) {
		t.Errorf("got %v, want ErrSignMismatch", err)
	}
}

func TestModifyDebt_BelowFloor(t *testing.T) {
	f := newFixture(t, new(big.Int))
	f.deposit(t, f.user, 10)
	err := f.led.ModifyDebt(f.user, asset, fpmath.WadOf(10), fpmath.WadOf(5))
	if !errors.Is(err, ledger.ErrBelowFloor) {
		t.Errorf("got %v, want ErrBelowFloor", err)
	}
}

func TestModifyDebt_CeilingOnIncreaseOnly(t *testing.T) {
	f := newFixture(t, new(big.Int))
	f.deposit(t, f.user, 100)
	if err := f.led.ModifyDebt(f.user, asset, fpmath.WadOf(100), fpmath.WadOf(6000)); err != nil {
		t.Fatalf("draw to near ceiling: %v", err)
	}

	// Shrink the ceiling below the outstanding total, then check that a
	// further increase is rejected while a decrease still goes through.
	f.led.Store().Asset(asset).Ceiling = fpmath.RadOf(5000)

	err := f.led.ModifyDebt(f.user, asset, new(big.Int), fpmath.WadOf(100))
	if !errors.Is(err, ledger.ErrCeilingExceeded) {
		t.Errorf("increase over ceiling: got %v, want ErrCeilingExceeded", err)
	}
	if err := f.led.ModifyDebt(f.user, asset, new(big.Int), fpmath.WadOf(-100)); err != nil {
		t.Errorf("decrease over ceiling should pass: %v", err)
	}
}

func TestModifyDebt_Undercollateralized(t *testing.T) {
	f := newFixture(t, new(big.Int))
	f.deposit(t, f.user, 10)

	// 10 collateral at price 100 = 1000 value; 800 debt needs 1200 at
	// ratio 1.5.
	err := f.led.ModifyDebt(f.user, asset, fpmath.WadOf(10), fpmath.WadOf(800))
	if !errors.Is(err, ledger.ErrUndercollateralized) {
		t.Fatalf("got %v, want ErrUndercollateralized", err)
	}

	// The rejection must leave everything untouched.
	v, _ := f.led.Store().PeekVault(asset, f.user)
	if v.Standby.Cmp(fpmath.WadOf(10)) != 0 || v.Active.Sign() != 0 || v.NormDebt.Sign() != 0 {
		t.Errorf("vault mutated on rejection: standby %s active %s debt %s", v.Standby, v.Active, v.NormDebt)
	}
	if got := f.tokens.Balance(token.KindStable, f.user); got.Sign() != 0 {
		t.Errorf("stablecoin minted on rejection: %s", got)
	}
}

func TestModifyDebt_VaultLimit(t *testing.T) {
	f := newFixture(t, new(big.Int))
	f.led.Store().Asset(asset).VaultLimit = fpmath.RadOf(400)
	f.deposit(t, f.user, 10)

	err := f.led.ModifyDebt(f.user, asset, fpmath.WadOf(10), fpmath.WadOf(500))
	if !errors.Is(err, ledger.ErrVaultLimitExceeded) {
		t.Errorf("got %v, want ErrVaultLimitExceeded", err)
	}
}

func TestModifyDebt_RepayNeedsBalance(t *testing.T) {
	f := newFixture(t, new(big.Int))
	f.deposit(t, f.user, 10)
	if err := f.led.ModifyDebt(f.user, asset, fpmath.WadOf(10), fpmath.WadOf(500)); err != nil {
		t.Fatalf("draw: %v", err)
	}
	sink := uuid.New()
	if err := f.tokens.Transfer(token.KindStable, f.user, sink, fpmath.RadOf(100)); err != nil {
		t.Fatalf("drain balance: %v", err)
	}

	if err := f.led.ModifyDebt(f.user, asset, new(big.Int), fpmath.WadOf(-500)); err == nil {
		t.Fatal("repay beyond balance should fail")
	}
	// Claim unchanged after the failed repay.
	v, _ := f.led.Store().PeekVault(asset, f.user)
	if v.NormDebt.Cmp(fpmath.WadOf(500)) != 0 {
		t.Errorf("norm debt = %s, want %s", v.NormDebt, fpmath.WadOf(500))
	}
}

func TestModifyDebt_RequiresWhitelist(t *testing.T) {
	f := newFixture(t, new(big.Int))
	err := f.led.ModifyDebt(uuid.New(), asset, fpmath.WadOf(1), fpmath.WadOf(10))
	if !errors.Is(err, ledger.ErrUnauthorized) {
		t.Errorf("got %v, want ErrUnauthorized", err)
	}
}

func TestModifyEquity_SupplyAndExit(t *testing.T) {
	f := newFixture(t, new(big.Int))
	f.deposit(t, f.user, 10)

	if err := f.led.ModifyEquity(f.user, asset, fpmath.WadOf(10), fpmath.WadOf(500)); err != nil {
		t.Fatalf("supply: %v", err)
	}
	v, _ := f.led.Store().PeekVault(asset, f.user)
	if v.NormEquity.Cmp(fpmath.WadOf(500)) != 0 {
		t.Errorf("norm equity = %s, want %s", v.NormEquity, fpmath.WadOf(500))
	}
	if v.InitialEquity.Cmp(fpmath.RadOf(500)) != 0 {
		t.Errorf("initial equity = %s, want %s", v.InitialEquity, fpmath.RadOf(500))
	}

	if err := f.led.ModifyEquity(f.user, asset, fpmath.WadOf(-10), fpmath.WadOf(-500)); err != nil {
		t.Fatalf("exit: %v", err)
	}
	if v.Active.Sign() != 0 || v.NormEquity.Sign() != 0 || v.InitialEquity.Sign() != 0 {
		t.Errorf("after exit: active %s norm %s initial %s", v.Active, v.NormEquity, v.InitialEquity)
	}
	if v.Standby.Cmp(fpmath.WadOf(10)) != 0 {
		t.Errorf("standby = %s, want %s", v.Standby, fpmath.WadOf(10))
	}
}

func TestModifyEquity_PartialExitScalesPrincipal(t *testing.T) {
	f := newFixture(t, new(big.Int))
	f.deposit(t, f.user, 10)
	if err := f.led.ModifyEquity(f.user, asset, fpmath.WadOf(10), fpmath.WadOf(500)); err != nil {
		t.Fatalf("supply: %v", err)
	}

	if err := f.led.ModifyEquity(f.user, asset, fpmath.WadOf(-2), fpmath.WadOf(-100)); err != nil {
		t.Fatalf("partial exit: %v", err)
	}
	v, _ := f.led.Store().PeekVault(asset, f.user)
	// 400/500 of the original 500 principal remains.
	if v.InitialEquity.Cmp(fpmath.RadOf(400)) != 0 {
		t.Errorf("initial equity = %s, want %s", v.InitialEquity, fpmath.RadOf(400))
	}
}

func TestModifyEquity_BelowFloor(t *testing.T) {
	f := newFixture(t, new(big.Int))
	f.deposit(t, f.user, 10)
	err := f.led.ModifyEquity(f.user, asset, fpmath.WadOf(10), fpmath.WadOf(5))
	if !errors.Is(err, ledger.ErrBelowFloor) {
		t.Errorf("got %v, want ErrBelowFloor", err)
	}
}

func TestUpdateAccumulators_Ordering(t *testing.T) {
	f := newFixture(t, new(big.Int))
	tenth := fpmath.DivFloor(fpmath.Ray, big.NewInt(10))

	err := f.led.UpdateAccumulators(f.teller, asset, uuid.New(), tenth, tenth, tenth)
	if !errors.Is(err, ledger.ErrAccumulatorOrdering) {
		t.Errorf("equity+protocol > debt: got %v, want ErrAccumulatorOrdering", err)
	}

	err = f.led.UpdateAccumulators(f.teller, asset, uuid.New(), big.NewInt(-1), new(big.Int), new(big.Int))
	if !errors.Is(err, ledger.ErrAccumulatorDecrease) {
		t.Errorf("negative increase: got %v, want ErrAccumulatorDecrease", err)
	}

	err = f.led.UpdateAccumulators(f.user, asset, uuid.New(), tenth, new(big.Int), new(big.Int))
	if !errors.Is(err, ledger.ErrUnauthorized) {
		t.Errorf("non-teller: got %v, want ErrUnauthorized", err)
	}
}

func TestUpdateAccumulators_ProtocolShare(t *testing.T) {
	f := newFixture(t, new(big.Int))
	f.deposit(t, f.user, 10)
	if err := f.led.ModifyEquity(f.user, asset, fpmath.WadOf(10), fpmath.WadOf(500)); err != nil {
		t.Fatalf("supply: %v", err)
	}

	tenth := fpmath.DivFloor(fpmath.Ray, big.NewInt(10))
	fifth := fpmath.DivFloor(fpmath.Ray, big.NewInt(5))
	beneficiary := uuid.New()
	if err := f.led.UpdateAccumulators(f.teller, asset, beneficiary, fifth, tenth, tenth); err != nil {
		t.Fatalf("accrue: %v", err)
	}

	// Protocol share: 0.1 per normalized equity unit over 500 units.
	if got := f.tokens.Balance(token.KindStable, beneficiary); got.Cmp(fpmath.RadOf(50)) != 0 {
		t.Errorf("beneficiary credited %s, want %s", got, fpmath.RadOf(50))
	}
	a := f.led.Store().Asset(asset)
	if a.DebtAccumulator.Cmp(fpmath.Add(fpmath.Ray, fifth)) != 0 {
		t.Errorf("debt accumulator = %s", a.DebtAccumulator)
	}
	if a.EquityAccumulator.Cmp(fpmath.Add(fpmath.Ray, tenth)) != 0 {
		t.Errorf("equity accumulator = %s", a.EquityAccumulator)
	}
}

func TestCollectInterest(t *testing.T) {
	f := newFixture(t, halfRay())
	f.deposit(t, f.user, 10)
	if err := f.led.ModifyEquity(f.user, asset, fpmath.WadOf(10), fpmath.WadOf(500)); err != nil {
		t.Fatalf("supply: %v", err)
	}

	tenth := fpmath.DivFloor(fpmath.Ray, big.NewInt(10))
	if err := f.led.UpdateAccumulators(f.teller, asset, uuid.New(), tenth, tenth, new(big.Int)); err != nil {
		t.Fatalf("accrue: %v", err)
	}

	if err := f.led.CollectInterest(f.user, asset); err != nil {
		t.Fatalf("collect: %v", err)
	}

	// 500 at accumulator 1.1 is worth 550; 50 of interest pays out.
	interest := fpmath.RadOf(50)
	if got := f.tokens.Balance(token.KindStable, f.user); got.Cmp(interest) != 0 {
		t.Errorf("interest paid = %s, want %s", got, interest)
	}
	// Bond reward at half the interest.
	if got := f.tokens.Balance(token.KindBond, f.user); got.Cmp(fpmath.RadOf(25)) != 0 {
		t.Errorf("bond reward = %s, want %s", got, fpmath.RadOf(25))
	}

	// The claim shrank by at least the interest paid, and the principal
	// tracker was rebased against the current accumulator.
	v, _ := f.led.Store().PeekVault(asset, f.user)
	a := f.led.Store().Asset(asset)
	if v.NormEquity.Cmp(fpmath.WadOf(500)) >= 0 {
		t.Errorf("norm equity did not shrink: %s", v.NormEquity)
	}
	if v.InitialEquity.Cmp(fpmath.Mul(v.NormEquity, a.EquityAccumulator)) != 0 {
		t.Errorf("principal not rebased: initial %s, value %s", v.InitialEquity, fpmath.Mul(v.NormEquity, a.EquityAccumulator))
	}

	// Nothing further to collect right after a collection.
	if err := f.led.CollectInterest(f.user, asset); !errors.Is(err, ledger.ErrNoAccruedInterest) {
		t.Errorf("second collect: got %v, want ErrNoAccruedInterest", err)
	}
}

func TestCollectInterest_NoEquity(t *testing.T) {
	f := newFixture(t, new(big.Int))
	if err := f.led.CollectInterest(f.user, asset); !errors.Is(err, ledger.ErrNoAccruedInterest) {
		t.Errorf("got %v, want ErrNoAccruedInterest", err)
	}
}

func TestConfiscateVault(t *testing.T) {
	f := newFixture(t, new(big.Int))
	f.deposit(t, f.user, 10)
	if err := f.led.ModifyEquity(f.user, asset, fpmath.WadOf(6), fpmath.WadOf(100)); err != nil {
		t.Fatalf("supply: %v", err)
	}
	if err := f.led.ModifyDebt(f.user, asset, new(big.Int), fpmath.WadOf(200)); err != nil {
		t.Fatalf("draw: %v", err)
	}

	collateral, normDebt, normEquity, err := f.led.ConfiscateVault(f.liq, asset, f.user)
	if err != nil {
		t.Fatalf("confiscate: %v", err)
	}
	if collateral.Cmp(fpmath.WadOf(6)) != 0 || normDebt.Cmp(fpmath.WadOf(200)) != 0 || normEquity.Cmp(fpmath.WadOf(100)) != 0 {
		t.Errorf("seized %s / %s / %s", collateral, normDebt, normEquity)
	}

	v, _ := f.led.Store().PeekVault(asset, f.user)
	if v.Active.Sign() != 0 || v.NormDebt.Sign() != 0 || v.NormEquity.Sign() != 0 || v.InitialEquity.Sign() != 0 {
		t.Errorf("vault not zeroed: %+v", v)
	}
	if v.Standby.Cmp(fpmath.WadOf(4)) != 0 {
		t.Errorf("standby touched: %s", v.Standby)
	}

	a := f.led.Store().Asset(asset)
	if a.OnAuction.Cmp(fpmath.WadOf(6)) != 0 {
		t.Errorf("on auction = %s, want %s", a.OnAuction, fpmath.WadOf(6))
	}
	if a.TotalNormDebt.Sign() != 0 || a.TotalNormEquity.Sign() != 0 {
		t.Errorf("totals not cleared: debt %s equity %s", a.TotalNormDebt, a.TotalNormEquity)
	}

	// Conservation: confiscation moves collateral, it never destroys it.
	if total := f.led.Store().TotalCollateral(asset); total.Cmp(fpmath.WadOf(10)) != 0 {
		t.Errorf("total collateral = %s, want %s", total, fpmath.WadOf(10))
	}
}

func TestReleaseAuctionCollateral(t *testing.T) {
	f := newFixture(t, new(big.Int))
	f.deposit(t, f.user, 10)
	if err := f.led.ModifyDebt(f.user, asset, fpmath.WadOf(10), fpmath.WadOf(200)); err != nil {
		t.Fatalf("draw: %v", err)
	}
	if _, _, _, err := f.led.ConfiscateVault(f.liq, asset, f.user); err != nil {
		t.Fatalf("confiscate: %v", err)
	}

	buyer := uuid.New()
	if err := f.led.ReleaseAuctionCollateral(f.liq, asset, buyer, fpmath.WadOf(7)); err != nil {
		t.Fatalf("release: %v", err)
	}
	v, _ := f.led.Store().PeekVault(asset, buyer)
	if v.Standby.Cmp(fpmath.WadOf(7)) != 0 {
		t.Errorf("buyer standby = %s, want %s", v.Standby, fpmath.WadOf(7))
	}
	if total := f.led.Store().TotalCollateral(asset); total.Cmp(fpmath.WadOf(10)) != 0 {
		t.Errorf("total collateral = %s, want %s", total, fpmath.WadOf(10))
	}

	err := f.led.ReleaseAuctionCollateral(f.liq, asset, buyer, fpmath.WadOf(4))
	if !errors.Is(err, ledger.ErrInsufficientActive) {
		t.Errorf("over-release: got %v, want ErrInsufficientActive", err)
	}

	err = f.led.ReleaseAuctionCollateral(f.user, asset, buyer, fpmath.WadOf(1))
	if !errors.Is(err, ledger.ErrUnauthorized) {
		t.Errorf("non-liquidator: got %v, want ErrUnauthorized", err)
	}
}
