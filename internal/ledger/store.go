package ledger

import (
	"math/big"

	fpmath "VaultCore/internal/math"

	"github.com/google/uuid"
)

// Store is the keyed position store: per-(asset,owner) vaults, per-asset
// aggregates, and an append-only enumerable owner list per asset. Owners
// are never removed; a vault can go to all-zero but stays listed so
// batched distribution variants can iterate all holders.
type Store struct {
	assets     map[string]*Asset
	vaults     map[VaultKey]*Vault
	owners     map[string][]uuid.UUID
	ownerIndex map[VaultKey]bool
}

func NewStore() *Store {
	return &Store{
		assets:     make(map[string]*Asset),
		vaults:     make(map[VaultKey]*Vault),
		owners:     make(map[string][]uuid.UUID),
		ownerIndex: make(map[VaultKey]bool),
	}
}

// Asset returns the aggregate state for assetID, or nil.
func (s *Store) Asset(assetID string) *Asset {
	return s.assets[assetID]
}

// PutAsset registers a new asset aggregate.
func (s *Store) PutAsset(a *Asset) {
	s.assets[a.ID] = a
}

// Vault returns the vault for (assetID, owner), creating a zero vault on
// first access. Vaults are created implicitly on first deposit and never
// deleted.
func (s *Store) Vault(assetID string, owner uuid.UUID) *Vault {
	key := VaultKey{AssetID: assetID, Owner: owner}
	v := s.vaults[key]
	if v == nil {
		v = &Vault{
			Standby:       new(big.Int),
			Active:        new(big.Int),
			NormDebt:      new(big.Int),
			NormEquity:    new(big.Int),
			InitialEquity: new(big.Int),
		}
		s.vaults[key] = v
	}
	return v
}

// PeekVault returns the vault without creating it.
func (s *Store) PeekVault(assetID string, owner uuid.UUID) (*Vault, bool) {
	v, ok := s.vaults[VaultKey{AssetID: assetID, Owner: owner}]
	return v, ok
}

// RecordOwner appends owner to the asset's enumerable owner list on
// first appearance. The index map avoids an O(n) duplicate scan.
func (s *Store) RecordOwner(assetID string, owner uuid.UUID) {
	key := VaultKey{AssetID: assetID, Owner: owner}
	if s.ownerIndex[key] {
		return
	}
	s.ownerIndex[key] = true
	s.owners[assetID] = append(s.owners[assetID], owner)
}

// Owners returns the asset's owner list in first-seen order.
func (s *Store) Owners(assetID string) []uuid.UUID {
	list := s.owners[assetID]
	out := make([]uuid.UUID, len(list))
	copy(out, list)
	return out
}

// TotalCollateral sums standby+active across all vaults of an asset plus
// collateral held on auction. Used by the conservation invariant check.
func (s *Store) TotalCollateral(assetID string) *big.Int {
	total := new(big.Int)
	for key, v := range s.vaults {
		if key.AssetID == assetID {
			total.Add(total, v.Standby)
			total.Add(total, v.Active)
		}
	}
	if a := s.assets[assetID]; a != nil {
		total.Add(total, a.OnAuction)
	}
	return total
}

// AssetIDs returns all registered asset ids.
func (s *Store) AssetIDs() []string {
	ids := make([]string, 0, len(s.assets))
	for id := range s.assets {
		ids = append(ids, id)
	}
	return ids
}

func newAsset(id string, ceiling, floor, vaultLimit *big.Int) *Asset {
	return &Asset{
		ID:                id,
		DebtAccumulator:   fpmath.Clone(fpmath.Ray),
		EquityAccumulator: fpmath.Clone(fpmath.Ray),
		AdjustedPrice:     new(big.Int),
		Ceiling:           fpmath.Clone(ceiling),
		Floor:             fpmath.Clone(floor),
		VaultLimit:        fpmath.Clone(vaultLimit),
		TotalNormDebt:     new(big.Int),
		TotalNormEquity:   new(big.Int),
		OnAuction:         new(big.Int),
	}
}
