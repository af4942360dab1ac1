package auction

import (
	"fmt"
	"math/big"
	"time"

	fpmath "VaultCore/internal/math"
	"VaultCore/internal/registry"
	"VaultCore/internal/token"

	"github.com/google/uuid"
)

// AccessControl gates every mutating call.
type AccessControl interface {
	HasRole(role registry.Role, caller uuid.UUID) bool
}

// PriceSource supplies the live adjusted price for start/reset snapshots.
type PriceSource interface {
	AdjustedPrice(assetID string) (*big.Int, error)
}

// DebtEngine is the liquidator's bad-debt counter, notified on every
// settled value and on teardown.
type DebtEngine interface {
	ReduceAuctionDebt(amount *big.Int) error
}

// CollateralStore releases confiscated collateral back into vault
// standby balances (the ledger).
type CollateralStore interface {
	ReleaseAuctionCollateral(caller uuid.UUID, assetID string, recipient uuid.UUID, amount *big.Int) error
}

// Auction is one Dutch-price descending sale of confiscated collateral.
type Auction struct {
	ID          uuid.UUID
	AssetID     string
	Lot         *big.Int // WAD, remaining collateral
	Debt        *big.Int // RAD, remaining value owed
	Owner       uuid.UUID // residual lot recipient
	Beneficiary uuid.UUID // bad-debt absorber, receives proceeds
	StartPrice  *big.Int  // RAY
	StartTime   time.Time
	IsOver      bool
	SellAllLot  bool
	Proceeds    *big.Int // RAD, accumulated in sell-all mode
}

// Bid is a resting limit bid: lot committed at price, escrow held.
type Bid struct {
	Price *big.Int // RAY
	Lot   *big.Int // WAD
}

// Book holds per-auction lot/debt state and a descending-price
// singly-linked list of active bids per auction. The list is rooted at a
// sentinel head (uuid.Nil) and re-derived incrementally after every
// mutating call. Equal prices rank by insertion order, earliest first.
type Book struct {
	id     uuid.UUID // the book's own identity for ledger role checks
	escrow uuid.UUID // stablecoin escrow account for resting bids

	access     AccessControl
	tokens     *token.Ledger
	feed       PriceSource
	collateral CollateralStore
	debtEngine DebtEngine
	calc       PriceCalculator
	now        func() time.Time

	// startPrice = live price * priceBuffer on start and reset (RAY).
	priceBuffer *big.Int

	auctions map[uuid.UUID]*Auction
	bids     map[uuid.UUID]map[uuid.UUID]*Bid
	next     map[uuid.UUID]map[uuid.UUID]uuid.UUID // bidder -> next-lower bidder
}

func NewBook(id uuid.UUID, access AccessControl, tokens *token.Ledger, feed PriceSource, collateral CollateralStore, calc PriceCalculator, priceBuffer *big.Int, now func() time.Time) *Book {
	if now == nil {
		now = time.Now
	}
	return &Book{
		id:          id,
		escrow:      uuid.New(),
		access:      access,
		tokens:      tokens,
		feed:        feed,
		collateral:  collateral,
		calc:        calc,
		now:         now,
		priceBuffer: fpmath.Clone(priceBuffer),
		auctions:    make(map[uuid.UUID]*Auction),
		bids:        make(map[uuid.UUID]map[uuid.UUID]*Bid),
		next:        make(map[uuid.UUID]map[uuid.UUID]uuid.UUID),
	}
}

// BindDebtEngine wires the liquidator after construction; the liquidator
// and the book reference each other.
func (b *Book) BindDebtEngine(engine DebtEngine) {
	b.debtEngine = engine
}

// ID returns the book's role-check identity.
func (b *Book) ID() uuid.UUID {
	return b.id
}

// Auction returns a copy of the auction state.
func (b *Book) Auction(auctionID uuid.UUID) (Auction, error) {
	a, ok := b.auctions[auctionID]
	if !ok {
		return Auction{}, fmt.Errorf("%w: %s", ErrUnknownAuction, auctionID)
	}
	out := *a
	out.Lot = fpmath.Clone(a.Lot)
	out.Debt = fpmath.Clone(a.Debt)
	out.StartPrice = fpmath.Clone(a.StartPrice)
	out.Proceeds = fpmath.Clone(a.Proceeds)
	return out, nil
}

// AuctionIDs lists all auctions the book has opened.
func (b *Book) AuctionIDs() []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(b.auctions))
	for id := range b.auctions {
		ids = append(ids, id)
	}
	return ids
}

// Bids returns the active bids for an auction in priority order.
func (b *Book) Bids(auctionID uuid.UUID) []Bid {
	var out []Bid
	for bidder := b.next[auctionID][uuid.Nil]; bidder != uuid.Nil; bidder = b.next[auctionID][bidder] {
		bid := b.bids[auctionID][bidder]
		out = append(out, Bid{Price: fpmath.Clone(bid.Price), Lot: fpmath.Clone(bid.Lot)})
	}
	return out
}

// StartAuction opens a new auction for confiscated collateral. Only the
// liquidator may start auctions. The start price snapshots the live
// adjusted price plus the safety buffer.
func (b *Book) StartAuction(caller uuid.UUID, assetID string, lot, debt *big.Int, owner, beneficiary uuid.UUID, sellAllLot bool) (uuid.UUID, error) {
	if !b.access.HasRole(registry.RoleLiquidator, caller) {
		return uuid.Nil, fmt.Errorf("%w: start requires %s", ErrUnauthorized, registry.RoleLiquidator)
	}
	if lot.Sign() <= 0 || debt.Sign() < 0 {
		return uuid.Nil, fmt.Errorf("%w: lot %s, debt %s", ErrInvalidAmount, lot, debt)
	}
	price, err := b.feed.AdjustedPrice(assetID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("auction: start price: %w", err)
	}

	a := &Auction{
		ID:          uuid.New(),
		AssetID:     assetID,
		Lot:         fpmath.Clone(lot),
		Debt:        fpmath.Clone(debt),
		Owner:       owner,
		Beneficiary: beneficiary,
		StartPrice:  fpmath.RMul(price, b.priceBuffer),
		StartTime:   b.now(),
		SellAllLot:  sellAllLot,
		Proceeds:    new(big.Int),
	}
	b.auctions[a.ID] = a
	b.bids[a.ID] = make(map[uuid.UUID]*Bid)
	b.next[a.ID] = map[uuid.UUID]uuid.UUID{uuid.Nil: uuid.Nil}
	return a.ID, nil
}

// CalculatePrice returns the auction's current Dutch price.
func (b *Book) CalculatePrice(auctionID uuid.UUID) (*big.Int, error) {
	a, ok := b.auctions[auctionID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownAuction, auctionID)
	}
	return b.currentPrice(a), nil
}

func (b *Book) currentPrice(a *Auction) *big.Int {
	return b.calc.Price(a.StartPrice, b.now().Sub(a.StartTime))
}

// ResetAuction restarts the Dutch decay after the price has fully
// decayed: the start price re-snapshots the live feed with the safety
// buffer and the clock restarts. Lot, debt, and bids are untouched.
func (b *Book) ResetAuction(auctionID uuid.UUID) error {
	a, ok := b.auctions[auctionID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownAuction, auctionID)
	}
	if a.IsOver {
		return ErrAuctionOver
	}
	if b.currentPrice(a).Sign() != 0 {
		return ErrNotExpired
	}
	price, err := b.feed.AdjustedPrice(a.AssetID)
	if err != nil {
		return fmt.Errorf("auction: reset price: %w", err)
	}
	a.StartPrice = fpmath.RMul(price, b.priceBuffer)
	a.StartTime = b.now()
	return nil
}

// PlaceBid inserts a limit bid into the descending-price list. One
// active bid per (auction, bidder). The bid escrows price*lot stablecoin
// immediately and is truncated, along with any lower-priority bids, to
// the auction's remaining biddable budget.
func (b *Book) PlaceBid(caller uuid.UUID, auctionID uuid.UUID, price, lot *big.Int) error {
	if !b.access.HasRole(registry.RoleWhitelisted, caller) {
		return fmt.Errorf("%w: bidding requires %s", ErrUnauthorized, registry.RoleWhitelisted)
	}
	a, ok := b.auctions[auctionID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownAuction, auctionID)
	}
	if a.IsOver {
		return ErrAuctionOver
	}
	if price.Sign() <= 0 || lot.Sign() <= 0 {
		return fmt.Errorf("%w: price %s, lot %s", ErrInvalidAmount, price, lot)
	}
	if _, exists := b.bids[auctionID][caller]; exists {
		return ErrBidExists
	}
	current := b.currentPrice(a)
	if current.Sign() > 0 && price.Cmp(current) >= 0 {
		return fmt.Errorf("%w: bid %s, current %s", ErrBidTooHigh, price, current)
	}

	escrowed := fpmath.Mul(lot, price)
	if b.tokens.Balance(token.KindStable, caller).Cmp(escrowed) < 0 {
		return fmt.Errorf("auction: insufficient stablecoin to escrow %s", escrowed)
	}
	if err := b.tokens.Transfer(token.KindStable, caller, b.escrow, escrowed); err != nil {
		return err
	}

	b.insertBid(auctionID, caller, &Bid{Price: fpmath.Clone(price), Lot: fpmath.Clone(lot)})
	return b.enforceBudget(a)
}

// insertBid links the bidder at the correct descending-price rank. Ties
// break by insertion order: a new equal-price bid goes after existing
// ones.
func (b *Book) insertBid(auctionID, bidder uuid.UUID, bid *Bid) {
	nextOf := b.next[auctionID]
	prev := uuid.Nil
	for cur := nextOf[uuid.Nil]; cur != uuid.Nil; cur = nextOf[cur] {
		if b.bids[auctionID][cur].Price.Cmp(bid.Price) < 0 {
			break
		}
		prev = cur
	}
	nextOf[bidder] = nextOf[prev]
	nextOf[prev] = bidder
	b.bids[auctionID][bidder] = bid
}

// removeBid unlinks the bidder, refunding refund (nil means the bid's
// full escrow) from the escrow account.
func (b *Book) removeBid(auctionID, bidder uuid.UUID, refund *big.Int) error {
	bid := b.bids[auctionID][bidder]
	if refund == nil {
		refund = fpmath.Mul(bid.Lot, bid.Price)
	}
	nextOf := b.next[auctionID]
	prev := uuid.Nil
	for cur := nextOf[uuid.Nil]; cur != uuid.Nil; cur = nextOf[cur] {
		if cur == bidder {
			nextOf[prev] = nextOf[cur]
			delete(nextOf, cur)
			break
		}
		prev = cur
	}
	delete(b.bids[auctionID], bidder)
	if refund.Sign() > 0 {
		return b.tokens.Transfer(token.KindStable, b.escrow, bidder, refund)
	}
	return nil
}

// enforceBudget walks the list in priority order and shrinks or cancels
// bids whose cumulative commitment exceeds the remaining lot, or (when
// the auction stops at debt exhaustion) whose cumulative value exceeds
// the remaining debt. Excess escrow is refunded immediately.
func (b *Book) enforceBudget(a *Auction) error {
	nextOf := b.next[a.ID]
	lotBudget := fpmath.Clone(a.Lot)
	var valueBudget *big.Int
	if !a.SellAllLot {
		valueBudget = fpmath.Clone(a.Debt)
	}

	cur := nextOf[uuid.Nil]
	for cur != uuid.Nil {
		following := nextOf[cur]
		bid := b.bids[a.ID][cur]

		allowed := fpmath.Clone(lotBudget)
		if valueBudget != nil {
			byValue := fpmath.DivFloor(valueBudget, bid.Price)
			allowed = fpmath.Min(allowed, byValue)
		}

		switch {
		case allowed.Sign() <= 0:
			if err := b.removeBid(a.ID, cur, nil); err != nil {
				return err
			}
		case bid.Lot.Cmp(allowed) > 0:
			excess := fpmath.Sub(bid.Lot, allowed)
			refund := fpmath.Mul(excess, bid.Price)
			bid.Lot = allowed
			if err := b.tokens.Transfer(token.KindStable, b.escrow, cur, refund); err != nil {
				return err
			}
			fallthrough
		default:
			lotBudget = fpmath.Sub(lotBudget, bid.Lot)
			if valueBudget != nil {
				valueBudget = fpmath.Sub(valueBudget, fpmath.Mul(bid.Lot, bid.Price))
			}
		}
		cur = following
	}
	return nil
}

// reservedLot sums the lot committed by all active bids.
func (b *Book) reservedLot(auctionID uuid.UUID) *big.Int {
	total := new(big.Int)
	for _, bid := range b.bids[auctionID] {
		total.Add(total, bid.Lot)
	}
	return total
}

// BuyItNow fills instantly at the current price. The price must be
// positive, at or below maxPrice, and strictly above the best resting
// bid: once the decay crosses the top bid the fill belongs to
// FinalizeSale. The purchasable lot excludes lot reserved by pending
// bids.
func (b *Book) BuyItNow(caller uuid.UUID, auctionID uuid.UUID, maxPrice, lot *big.Int) error {
	if !b.access.HasRole(registry.RoleWhitelisted, caller) {
		return fmt.Errorf("%w: buying requires %s", ErrUnauthorized, registry.RoleWhitelisted)
	}
	a, ok := b.auctions[auctionID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownAuction, auctionID)
	}
	if a.IsOver {
		return ErrAuctionOver
	}
	if lot.Sign() <= 0 {
		return fmt.Errorf("%w: lot %s", ErrInvalidAmount, lot)
	}

	current := b.currentPrice(a)
	if current.Sign() == 0 {
		return ErrZeroPrice
	}
	if current.Cmp(maxPrice) > 0 {
		return fmt.Errorf("%w: current %s, max %s", ErrPriceAboveMax, current, maxPrice)
	}
	if top := b.next[auctionID][uuid.Nil]; top != uuid.Nil {
		if current.Cmp(b.bids[auctionID][top].Price) <= 0 {
			return ErrPriceBandTaken
		}
	}

	available := fpmath.Sub(a.Lot, b.reservedLot(auctionID))
	purchasable := fpmath.Min(lot, available)
	if purchasable.Sign() <= 0 {
		return ErrNoLotAvailable
	}
	if !a.SellAllLot {
		// Cap the lot so the sale never settles more value than is owed.
		if fpmath.Mul(purchasable, current).Cmp(a.Debt) > 0 {
			purchasable = fpmath.Min(purchasable, fpmath.DivCeil(a.Debt, current))
		}
	}
	value := fpmath.Mul(purchasable, current)
	if !a.SellAllLot {
		value = fpmath.Min(value, a.Debt)
	}

	if b.tokens.Balance(token.KindStable, caller).Cmp(value) < 0 {
		return fmt.Errorf("auction: insufficient stablecoin to buy %s", value)
	}
	if err := b.tokens.Transfer(token.KindStable, caller, a.Beneficiary, value); err != nil {
		return err
	}
	if err := b.collateral.ReleaseAuctionCollateral(b.id, a.AssetID, caller, purchasable); err != nil {
		return err
	}
	return b.applySale(a, purchasable, value)
}

// FinalizeSale executes the caller's own resting bid once the Dutch
// price has decayed to or below the bid price: the escrowed value moves
// to the beneficiary and the bid's lot pays out at the bid price.
func (b *Book) FinalizeSale(caller uuid.UUID, auctionID uuid.UUID) error {
	if !b.access.HasRole(registry.RoleWhitelisted, caller) {
		return fmt.Errorf("%w: finalizing requires %s", ErrUnauthorized, registry.RoleWhitelisted)
	}
	a, ok := b.auctions[auctionID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownAuction, auctionID)
	}
	if a.IsOver {
		return ErrAuctionOver
	}
	bid, ok := b.bids[auctionID][caller]
	if !ok {
		return ErrNoBid
	}
	if b.currentPrice(a).Cmp(bid.Price) > 0 {
		return fmt.Errorf("%w: bid %s", ErrBidNotCallable, bid.Price)
	}

	executedLot := fpmath.Clone(bid.Lot)
	value := fpmath.Mul(executedLot, bid.Price)
	if !a.SellAllLot {
		value = fpmath.Min(value, a.Debt)
	}

	// The full escrow moves out: settled value to the beneficiary, any
	// residual (debt shrank since escrow) back to the bidder.
	escrowed := fpmath.Mul(bid.Lot, bid.Price)
	if err := b.tokens.Transfer(token.KindStable, b.escrow, a.Beneficiary, value); err != nil {
		return err
	}
	if residual := fpmath.Sub(escrowed, value); residual.Sign() > 0 {
		if err := b.tokens.Transfer(token.KindStable, b.escrow, caller, residual); err != nil {
			return err
		}
	}
	if err := b.removeBid(auctionID, caller, new(big.Int)); err != nil {
		return err
	}
	if err := b.collateral.ReleaseAuctionCollateral(b.id, a.AssetID, caller, executedLot); err != nil {
		return err
	}
	return b.applySale(a, executedLot, value)
}

// applySale applies shared debt/lot bookkeeping after a fill and flips
// the auction to Over when its end condition is reached.
func (b *Book) applySale(a *Auction, lot, value *big.Int) error {
	a.Lot = fpmath.Sub(a.Lot, lot)

	if a.SellAllLot {
		// Reserve-pool bookkeeping waits until the whole lot is sold.
		a.Proceeds = fpmath.Add(a.Proceeds, value)
	} else {
		a.Debt = fpmath.Sub(a.Debt, value)
		if err := b.debtEngine.ReduceAuctionDebt(value); err != nil {
			return err
		}
	}

	if !a.SellAllLot && a.Debt.Sign() == 0 {
		return b.finish(a, a.Owner)
	}
	if a.Lot.Sign() == 0 {
		if a.SellAllLot {
			recovered := fpmath.Min(a.Proceeds, a.Debt)
			a.Debt = fpmath.Sub(a.Debt, recovered)
			if err := b.debtEngine.ReduceAuctionDebt(recovered); err != nil {
				return err
			}
		}
		return b.finish(a, a.Owner)
	}
	return b.enforceBudget(a)
}

// finish marks the auction over, refunds every pending bid, and returns
// any leftover lot to recipient.
func (b *Book) finish(a *Auction, recipient uuid.UUID) error {
	for bidder := b.next[a.ID][uuid.Nil]; bidder != uuid.Nil; bidder = b.next[a.ID][uuid.Nil] {
		if err := b.removeBid(a.ID, bidder, nil); err != nil {
			return err
		}
	}
	if a.Lot.Sign() > 0 {
		if err := b.collateral.ReleaseAuctionCollateral(b.id, a.AssetID, recipient, a.Lot); err != nil {
			return err
		}
		a.Lot = new(big.Int)
	}
	a.IsOver = true
	return nil
}

// CancelAuction is the administrative teardown: all remaining lot goes
// to recipient, every pending bid is refunded, and the full remaining
// debt is removed from the tracked bad debt.
func (b *Book) CancelAuction(caller uuid.UUID, auctionID uuid.UUID, recipient uuid.UUID) error {
	if !b.access.HasRole(registry.RoleGov, caller) {
		return fmt.Errorf("%w: cancel requires %s", ErrUnauthorized, registry.RoleGov)
	}
	a, ok := b.auctions[auctionID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownAuction, auctionID)
	}
	if a.IsOver {
		return ErrAuctionOver
	}
	if a.Debt.Sign() > 0 {
		if err := b.debtEngine.ReduceAuctionDebt(a.Debt); err != nil {
			return err
		}
		a.Debt = new(big.Int)
	}
	return b.finish(a, recipient)
}
