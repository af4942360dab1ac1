package query

import (
	"context"
	"fmt"

	"VaultCore/internal/core"
	fpmath "VaultCore/internal/math"
	"VaultCore/internal/oracle"
	"VaultCore/internal/persistence"

	"github.com/google/uuid"
)

// Service provides read-only access to the vault core. Live state is read
// from the engine (which serializes against writers, so responses are never
// torn); op history is read from the Postgres op log. All responses include
// as_of_sequence for freshness semantics.
type Service struct {
	engine    *core.Engine
	feed      *oracle.Feed
	snapshots *persistence.SnapshotManager
}

func NewService(engine *core.Engine, feed *oracle.Feed, snapshots *persistence.SnapshotManager) *Service {
	return &Service{
		engine:    engine,
		feed:      feed,
		snapshots: snapshots,
	}
}

// GetVault returns the vault for (assetID, owner) with derived claim values.
func (s *Service) GetVault(assetID string, owner uuid.UUID) (*VaultResponse, error) {
	asset, ok := s.engine.AssetOf(assetID)
	if !ok {
		return nil, fmt.Errorf("query: unknown asset %q", assetID)
	}
	v, ok := s.engine.VaultOf(assetID, owner)
	if !ok {
		return nil, fmt.Errorf("query: no vault for owner %s under %q", owner, assetID)
	}
	asOf := s.engine.Sequence()

	debtValue := fpmath.Mul(v.NormDebt, asset.DebtAccumulator)
	equityValue := fpmath.Mul(v.NormEquity, asset.EquityAccumulator)
	collateralValue := fpmath.Mul(v.Active, asset.AdjustedPrice)

	safe := true
	claims := fpmath.Add(debtValue, equityValue)
	if claims.Sign() > 0 {
		ratio, err := s.feed.LiquidationRatio(assetID)
		if err != nil {
			return nil, fmt.Errorf("query: %w", err)
		}
		safe = collateralValue.Cmp(fpmath.RMulCeil(claims, ratio)) >= 0
	}

	return &VaultResponse{
		AssetID:         assetID,
		Owner:           owner,
		Standby:         v.Standby.String(),
		Active:          v.Active.String(),
		NormDebt:        v.NormDebt.String(),
		NormEquity:      v.NormEquity.String(),
		InitialEquity:   v.InitialEquity.String(),
		DebtValue:       debtValue.String(),
		EquityValue:     equityValue.String(),
		CollateralValue: collateralValue.String(),
		IsSafe:          safe,
		AsOfSequence:    asOf,
	}, nil
}

// GetAsset returns the asset aggregate.
func (s *Service) GetAsset(assetID string) (*AssetResponse, error) {
	a, ok := s.engine.AssetOf(assetID)
	if !ok {
		return nil, fmt.Errorf("query: unknown asset %q", assetID)
	}
	return &AssetResponse{
		AssetID:           a.ID,
		DebtAccumulator:   a.DebtAccumulator.String(),
		EquityAccumulator: a.EquityAccumulator.String(),
		AdjustedPrice:     a.AdjustedPrice.String(),
		Ceiling:           a.Ceiling.String(),
		Floor:             a.Floor.String(),
		VaultLimit:        a.VaultLimit.String(),
		TotalNormDebt:     a.TotalNormDebt.String(),
		TotalNormEquity:   a.TotalNormEquity.String(),
		OnAuction:         a.OnAuction.String(),
		AsOfSequence:      s.engine.Sequence(),
	}, nil
}

// GetAuction returns the auction with its live Dutch price and resting bids.
func (s *Service) GetAuction(auctionID uuid.UUID) (*AuctionResponse, error) {
	a, err := s.engine.AuctionOf(auctionID)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}

	current := "0"
	if !a.IsOver {
		price, err := s.engine.CurrentPrice(auctionID)
		if err != nil {
			return nil, fmt.Errorf("query: %w", err)
		}
		current = price.String()
	}

	var bids []BidResponse
	for i, bid := range s.engine.BidsOf(auctionID) {
		bids = append(bids, BidResponse{
			Rank:  i + 1,
			Price: bid.Price.String(),
			Lot:   bid.Lot.String(),
		})
	}

	return &AuctionResponse{
		AuctionID:    a.ID,
		AssetID:      a.AssetID,
		Lot:          a.Lot.String(),
		Debt:         a.Debt.String(),
		Owner:        a.Owner,
		Beneficiary:  a.Beneficiary,
		StartPrice:   a.StartPrice.String(),
		CurrentPrice: current,
		StartTime:    a.StartTime,
		IsOver:       a.IsOver,
		SellAllLot:   a.SellAllLot,
		Proceeds:     a.Proceeds.String(),
		Bids:         bids,
		AsOfSequence: s.engine.Sequence(),
	}, nil
}

// GetSystem returns protocol-wide state.
func (s *Service) GetSystem() *SystemResponse {
	return &SystemResponse{
		Assets:       s.engine.AssetIDs(),
		BadDebt:      s.engine.BadDebt().String(),
		AsOfSequence: s.engine.Sequence(),
	}
}

// GetOpHistory returns applied operations from the op log, oldest first.
func (s *Service) GetOpHistory(ctx context.Context, fromSequence int64, limit int) ([]OpHistoryEntry, error) {
	if s.snapshots == nil {
		return nil, fmt.Errorf("query: op log not configured")
	}
	if limit <= 0 || limit > 1000 {
		limit = 1000
	}

	rows, err := s.snapshots.LoadOpsFrom(ctx, fromSequence, limit)
	if err != nil {
		return nil, fmt.Errorf("query: load ops: %w", err)
	}

	entries := make([]OpHistoryEntry, 0, len(rows))
	for _, r := range rows {
		entries = append(entries, OpHistoryEntry{
			Sequence:       r.Sequence,
			Op:             r.Op,
			AssetID:        r.AssetID,
			Caller:         r.Caller,
			IdempotencyKey: r.IdempotencyKey,
			SourceSequence: r.SourceSequence,
			Timestamp:      r.Timestamp,
		})
	}
	return entries, nil
}

// BuildSnapshot assembles a point-in-time snapshot of the live state for
// the periodic snapshot writer.
func (s *Service) BuildSnapshot() *persistence.SnapshotData {
	snap := &persistence.SnapshotData{
		Sequence: s.engine.Sequence(),
		BadDebt:  s.engine.BadDebt().String(),
	}

	for _, assetID := range s.engine.AssetIDs() {
		a, ok := s.engine.AssetOf(assetID)
		if !ok {
			continue
		}
		snap.Assets = append(snap.Assets, persistence.AssetSnap{
			AssetID:           a.ID,
			DebtAccumulator:   a.DebtAccumulator.String(),
			EquityAccumulator: a.EquityAccumulator.String(),
			AdjustedPrice:     a.AdjustedPrice.String(),
			Ceiling:           a.Ceiling.String(),
			Floor:             a.Floor.String(),
			VaultLimit:        a.VaultLimit.String(),
			TotalNormDebt:     a.TotalNormDebt.String(),
			TotalNormEquity:   a.TotalNormEquity.String(),
			OnAuction:         a.OnAuction.String(),
		})

		for _, owner := range s.engine.OwnersOf(assetID) {
			v, ok := s.engine.VaultOf(assetID, owner)
			if !ok || v.IsEmpty() {
				continue
			}
			snap.Vaults = append(snap.Vaults, persistence.VaultSnap{
				AssetID:       assetID,
				Owner:         owner.String(),
				Standby:       v.Standby.String(),
				Active:        v.Active.String(),
				NormDebt:      v.NormDebt.String(),
				NormEquity:    v.NormEquity.String(),
				InitialEquity: v.InitialEquity.String(),
			})
		}
	}

	return snap
}
