package core

import (
	"errors"
	"fmt"
	"math/big"
	"sort"
	"sync"
	"time"

	"VaultCore/internal/auction"
	"VaultCore/internal/event"
	"VaultCore/internal/ledger"
	"VaultCore/internal/liquidation"
	fpmath "VaultCore/internal/math"
	"VaultCore/internal/observability"
	"VaultCore/internal/oracle"
	"VaultCore/internal/registry"
	"VaultCore/internal/reserve"

	"github.com/google/uuid"
)

// ErrNoAccessRegistry is returned by the role operations when the engine
// was built without a role registry.
var ErrNoAccessRegistry = errors.New("core: no access registry configured")

// OpRecord describes one applied operation, emitted to the persistence
// worker after commit.
type OpRecord struct {
	Sequence       int64
	Op             string
	AssetID        string
	Caller         uuid.UUID
	IdempotencyKey string
	SourceSequence int64
	Timestamp      time.Time
}

// Engine serializes every public operation of the vault core under a
// single lock: callers never observe a partially-applied state, and any
// interleaving of submissions resolves to some total order. Each
// operation either applies fully or rejects with zero effect (the
// domain layers validate before their first write).
type Engine struct {
	mu       sync.Mutex
	sequence int64

	ledger     *ledger.Ledger
	book       *auction.Book
	liquidator *liquidation.Liquidator
	pool       *reserve.Pool
	feed       *oracle.Feed

	// tellerID is the identity the engine uses when applying driver
	// events (accrual ticks, price updates) to the ledger.
	tellerID uuid.UUID

	access *registry.Registry

	idempotency  *IdempotencyChecker
	seqValidator *SequenceValidator
	metrics      *observability.Metrics

	persistChan chan<- OpRecord
}

type EngineDeps struct {
	Ledger      *ledger.Ledger
	Book        *auction.Book
	Liquidator  *liquidation.Liquidator
	Pool        *reserve.Pool
	Feed        *oracle.Feed
	TellerID    uuid.UUID
	Access      *registry.Registry
	Idempotency *IdempotencyChecker
	Metrics     *observability.Metrics
	PersistChan chan<- OpRecord
}

func NewEngine(deps EngineDeps) *Engine {
	return &Engine{
		ledger:       deps.Ledger,
		book:         deps.Book,
		liquidator:   deps.Liquidator,
		pool:         deps.Pool,
		feed:         deps.Feed,
		tellerID:     deps.TellerID,
		access:       deps.Access,
		idempotency:  deps.Idempotency,
		seqValidator: NewSequenceValidator(),
		metrics:      deps.Metrics,
		persistChan:  deps.PersistChan,
	}
}

// Sequence returns the last applied operation sequence.
func (e *Engine) Sequence() int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sequence
}

// run executes op under the engine lock with metrics and op-log output.
func (e *Engine) run(op, assetID string, caller uuid.UUID, fn func() error) error {
	return e.runLocked(op, caller, func() (string, error) {
		return assetID, fn()
	})
}

func (e *Engine) runLocked(op string, caller uuid.UUID, fn func() (string, error)) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	start := time.Now()
	assetID, err := fn()
	if e.metrics != nil {
		e.metrics.OpDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	}

	if err != nil {
		if e.metrics != nil {
			e.metrics.OpsRejected.WithLabelValues(op, rejectReason(err)).Inc()
		}
		return err
	}

	e.sequence++
	if e.metrics != nil {
		e.metrics.OpsApplied.WithLabelValues(op).Inc()
		e.metrics.OpSequence.Set(float64(e.sequence))
	}
	e.emit(OpRecord{
		Sequence:  e.sequence,
		Op:        op,
		AssetID:   assetID,
		Caller:    caller,
		Timestamp: time.Now(),
	})
	return nil
}

// emit hands the record to the persistence worker without blocking the
// engine; a full channel drops the record (the op log is an audit
// surface, not the source of truth).
func (e *Engine) emit(rec OpRecord) {
	if e.persistChan == nil {
		return
	}
	select {
	case e.persistChan <- rec:
	default:
		if e.metrics != nil {
			e.metrics.PersistErrors.Inc()
		}
	}
}

// --- Ledger operations ---

func (e *Engine) InitAsset(caller uuid.UUID, assetID string, ceiling, floor, vaultLimit *big.Int) error {
	return e.run("init_asset", assetID, caller, func() error {
		return e.ledger.InitAsset(caller, assetID, ceiling, floor, vaultLimit)
	})
}

func (e *Engine) ModifyStandby(caller uuid.UUID, assetID string, owner uuid.UUID, delta *big.Int) error {
	return e.run("modify_standby", assetID, caller, func() error {
		return e.ledger.ModifyStandby(caller, assetID, owner, delta)
	})
}

func (e *Engine) ModifyEquity(caller uuid.UUID, assetID string, deltaUnderlying, deltaEquity *big.Int) error {
	return e.run("modify_equity", assetID, caller, func() error {
		return e.ledger.ModifyEquity(caller, assetID, deltaUnderlying, deltaEquity)
	})
}

func (e *Engine) ModifyDebt(caller uuid.UUID, assetID string, deltaCollateral, deltaDebt *big.Int) error {
	return e.run("modify_debt", assetID, caller, func() error {
		return e.ledger.ModifyDebt(caller, assetID, deltaCollateral, deltaDebt)
	})
}

func (e *Engine) CollectInterest(caller uuid.UUID, assetID string) error {
	return e.run("collect_interest", assetID, caller, func() error {
		if err := e.ledger.CollectInterest(caller, assetID); err != nil {
			return err
		}
		if e.metrics != nil {
			e.metrics.InterestCollected.WithLabelValues(assetID).Inc()
		}
		return nil
	})
}

// --- Liquidation operations ---

func (e *Engine) LiquidateVault(caller uuid.UUID, assetID string, owner uuid.UUID) (uuid.UUID, error) {
	var auctionID uuid.UUID
	err := e.run("liquidate_vault", assetID, caller, func() error {
		var err error
		auctionID, err = e.liquidator.LiquidateVault(caller, assetID, owner)
		if err != nil {
			return err
		}
		if e.metrics != nil {
			e.metrics.VaultsLiquidated.WithLabelValues(assetID).Inc()
			e.metrics.AuctionsStarted.WithLabelValues(assetID).Inc()
		}
		return nil
	})
	return auctionID, err
}

// --- Auction operations ---

func (e *Engine) PlaceBid(caller uuid.UUID, auctionID uuid.UUID, price, lot *big.Int) error {
	return e.runAuction("place_bid", auctionID, caller, func(assetID string) error {
		if err := e.book.PlaceBid(caller, auctionID, price, lot); err != nil {
			return err
		}
		if e.metrics != nil {
			e.metrics.BidsPlaced.WithLabelValues(assetID).Inc()
		}
		return nil
	})
}

func (e *Engine) BuyItNow(caller uuid.UUID, auctionID uuid.UUID, maxPrice, lot *big.Int) error {
	return e.runAuction("buy_it_now", auctionID, caller, func(assetID string) error {
		if err := e.book.BuyItNow(caller, auctionID, maxPrice, lot); err != nil {
			return err
		}
		if e.metrics != nil {
			e.metrics.BuyNowFills.WithLabelValues(assetID).Inc()
		}
		return nil
	})
}

func (e *Engine) FinalizeSale(caller uuid.UUID, auctionID uuid.UUID) error {
	return e.runAuction("finalize_sale", auctionID, caller, func(assetID string) error {
		if err := e.book.FinalizeSale(caller, auctionID); err != nil {
			return err
		}
		if e.metrics != nil {
			e.metrics.BidFinalizations.WithLabelValues(assetID).Inc()
		}
		return nil
	})
}

func (e *Engine) ResetAuction(auctionID uuid.UUID) error {
	return e.runAuction("reset_auction", auctionID, uuid.Nil, func(string) error {
		return e.book.ResetAuction(auctionID)
	})
}

func (e *Engine) CancelAuction(caller uuid.UUID, auctionID uuid.UUID, recipient uuid.UUID) error {
	return e.runAuction("cancel_auction", auctionID, caller, func(assetID string) error {
		if err := e.book.CancelAuction(caller, auctionID, recipient); err != nil {
			return err
		}
		if e.metrics != nil {
			e.metrics.AuctionsCancelled.WithLabelValues(assetID).Inc()
		}
		return nil
	})
}

// GrantRole assigns role to account. The registry enforces that only gov
// may grant once a gov identity exists.
func (e *Engine) GrantRole(caller uuid.UUID, role registry.Role, account uuid.UUID) error {
	return e.run("grant_role", "", caller, func() error {
		if e.access == nil {
			return ErrNoAccessRegistry
		}
		return e.access.Grant(caller, role, account)
	})
}

// RevokeRole removes role from account. Gov only.
func (e *Engine) RevokeRole(caller uuid.UUID, role registry.Role, account uuid.UUID) error {
	return e.run("revoke_role", "", caller, func() error {
		if e.access == nil {
			return ErrNoAccessRegistry
		}
		return e.access.Revoke(caller, role, account)
	})
}

func (e *Engine) runAuction(op string, auctionID uuid.UUID, caller uuid.UUID, fn func(assetID string) error) error {
	return e.runLocked(op, caller, func() (string, error) {
		assetID := ""
		wasOver := false
		if a, err := e.book.Auction(auctionID); err == nil {
			assetID = a.AssetID
			wasOver = a.IsOver
		}
		if err := fn(assetID); err != nil {
			return assetID, err
		}
		if e.metrics != nil && !wasOver && op != "cancel_auction" {
			if a, err := e.book.Auction(auctionID); err == nil && a.IsOver {
				e.metrics.AuctionsFinished.WithLabelValues(assetID).Inc()
			}
		}
		return assetID, nil
	})
}

// --- Event processing (NATS ingestion path) ---

// ProcessEvent applies an inbound driver event: accrual ticks update the
// accumulators, price updates refresh the oracle feed and the asset's
// adjusted price. Duplicates are dropped, accrual gaps are surfaced.
func (e *Engine) ProcessEvent(evt event.Event) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	eventType := evt.EventType().String()
	if e.metrics != nil {
		e.metrics.EventsReceived.WithLabelValues(eventType).Inc()
	}

	isDuplicate := e.idempotency.IsDuplicate(eventType, evt.IdempotencyKey())

	switch typed := evt.(type) {
	case *event.AccrualTick:
		partition := "accrual:" + typed.Asset
		if err := e.seqValidator.ValidateStrict(partition, typed.Sequence, isDuplicate); err != nil {
			return err
		}
		if isDuplicate {
			e.markDuplicate(eventType)
			return nil
		}
		if err := e.ledger.UpdateAccumulators(e.tellerID, typed.Asset, typed.Beneficiary,
			typed.DebtRateIncrease, typed.EquityRateIncrease, typed.ProtocolRateIncrease); err != nil {
			if e.metrics != nil {
				e.metrics.OpsRejected.WithLabelValues("update_accumulators", rejectReason(err)).Inc()
			}
			return err
		}
		if e.metrics != nil {
			e.metrics.AccrualUpdates.WithLabelValues(typed.Asset).Inc()
		}

	case *event.PriceUpdate:
		if isDuplicate || !e.seqValidator.ValidateMonotonic("price:"+typed.Asset, typed.Sequence) {
			e.markDuplicate(eventType)
			return nil
		}
		if err := e.feed.Set(typed.Asset, typed.AdjustedPrice, typed.LiquidationRatio); err != nil {
			return err
		}
		if err := e.ledger.UpdateAdjustedPrice(e.tellerID, typed.Asset, typed.AdjustedPrice); err != nil {
			return err
		}
		if e.metrics != nil {
			e.metrics.PriceUpdates.WithLabelValues(typed.Asset).Inc()
		}

	default:
		return fmt.Errorf("core: unhandled event type %s", eventType)
	}

	e.idempotency.MarkProcessed(eventType, evt.IdempotencyKey())
	e.sequence++
	if e.metrics != nil {
		e.metrics.OpsApplied.WithLabelValues(eventType).Inc()
		e.metrics.OpSequence.Set(float64(e.sequence))
	}
	e.emit(OpRecord{
		Sequence:       e.sequence,
		Op:             eventType,
		AssetID:        evt.AssetID(),
		IdempotencyKey: evt.IdempotencyKey(),
		SourceSequence: evt.SourceSequence(),
		Timestamp:      time.Now(),
	})
	return nil
}

func (e *Engine) markDuplicate(eventType string) {
	if e.metrics != nil {
		e.metrics.EventsDuplicate.WithLabelValues(eventType).Inc()
	}
}

// --- Read access (query surface) ---

// VaultOf returns a copy of the vault for (assetID, owner).
func (e *Engine) VaultOf(assetID string, owner uuid.UUID) (ledger.Vault, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	v, ok := e.ledger.Store().PeekVault(assetID, owner)
	if !ok {
		return ledger.Vault{}, false
	}
	return ledger.Vault{
		Standby:       fpmath.Clone(v.Standby),
		Active:        fpmath.Clone(v.Active),
		NormDebt:      fpmath.Clone(v.NormDebt),
		NormEquity:    fpmath.Clone(v.NormEquity),
		InitialEquity: fpmath.Clone(v.InitialEquity),
	}, true
}

// AssetOf returns a copy of the asset aggregate.
func (e *Engine) AssetOf(assetID string) (ledger.Asset, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	a := e.ledger.Store().Asset(assetID)
	if a == nil {
		return ledger.Asset{}, false
	}
	return ledger.Asset{
		ID:                a.ID,
		DebtAccumulator:   fpmath.Clone(a.DebtAccumulator),
		EquityAccumulator: fpmath.Clone(a.EquityAccumulator),
		AdjustedPrice:     fpmath.Clone(a.AdjustedPrice),
		Ceiling:           fpmath.Clone(a.Ceiling),
		Floor:             fpmath.Clone(a.Floor),
		VaultLimit:        fpmath.Clone(a.VaultLimit),
		TotalNormDebt:     fpmath.Clone(a.TotalNormDebt),
		TotalNormEquity:   fpmath.Clone(a.TotalNormEquity),
		OnAuction:         fpmath.Clone(a.OnAuction),
	}, true
}

// AuctionOf returns a copy of the auction state.
func (e *Engine) AuctionOf(auctionID uuid.UUID) (auction.Auction, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.book.Auction(auctionID)
}

// BidsOf returns the active bids for an auction in priority order.
func (e *Engine) BidsOf(auctionID uuid.UUID) []auction.Bid {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.book.Bids(auctionID)
}

// CurrentPrice returns the auction's Dutch price at this instant.
func (e *Engine) CurrentPrice(auctionID uuid.UUID) (*big.Int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.book.CalculatePrice(auctionID)
}

// BadDebt returns the reserve pool's tracked bad debt.
func (e *Engine) BadDebt() *big.Int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pool.BadDebt()
}

// AssetIDs returns the configured asset identifiers in sorted order.
func (e *Engine) AssetIDs() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	ids := e.ledger.Store().AssetIDs()
	sort.Strings(ids)
	return ids
}

// OwnersOf returns every owner that has ever held a vault under the asset.
func (e *Engine) OwnersOf(assetID string) []uuid.UUID {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ledger.Store().Owners(assetID)
}

// rejectReason maps an error to a stable metrics label.
func rejectReason(err error) string {
	switch {
	case errors.Is(err, ledger.ErrUnauthorized),
		errors.Is(err, auction.ErrUnauthorized),
		errors.Is(err, liquidation.ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, ledger.ErrUndercollateralized):
		return "undercollateralized"
	case errors.Is(err, ledger.ErrBelowFloor),
		errors.Is(err, ledger.ErrCeilingExceeded),
		errors.Is(err, ledger.ErrVaultLimitExceeded):
		return "limit"
	case errors.Is(err, ledger.ErrAccumulatorOrdering),
		errors.Is(err, ledger.ErrAccumulatorDecrease):
		return "accumulator"
	case errors.Is(err, auction.ErrAuctionOver),
		errors.Is(err, auction.ErrNotExpired),
		errors.Is(err, auction.ErrBidExists),
		errors.Is(err, auction.ErrNoBid),
		errors.Is(err, auction.ErrBidNotCallable),
		errors.Is(err, auction.ErrPriceBandTaken),
		errors.Is(err, liquidation.ErrVaultSafe),
		errors.Is(err, liquidation.ErrNothingToLiquidate):
		return "state"
	default:
		return "other"
	}
}
