package query

import (
	"time"

	"github.com/google/uuid"
)

// Fixed-point values are returned as decimal strings: rate- and value-scale
// integers overflow both int64 and JSON numbers.

// VaultResponse represents a vault position for API queries.
type VaultResponse struct {
	AssetID       string    `json:"asset_id"`
	Owner         uuid.UUID `json:"owner"`
	Standby       string    `json:"standby"`
	Active        string    `json:"active"`
	NormDebt      string    `json:"norm_debt"`
	NormEquity    string    `json:"norm_equity"`
	InitialEquity string    `json:"initial_equity"`

	// Derived values (computed at query time against live accumulators)
	DebtValue       string `json:"debt_value"`
	EquityValue     string `json:"equity_value"`
	CollateralValue string `json:"collateral_value"`
	IsSafe          bool   `json:"is_safe"`

	AsOfSequence int64 `json:"as_of_sequence"`
}

// AssetResponse represents an asset aggregate for API queries.
type AssetResponse struct {
	AssetID           string `json:"asset_id"`
	DebtAccumulator   string `json:"debt_accumulator"`
	EquityAccumulator string `json:"equity_accumulator"`
	AdjustedPrice     string `json:"adjusted_price"`
	Ceiling           string `json:"ceiling"`
	Floor             string `json:"floor"`
	VaultLimit        string `json:"vault_limit"`
	TotalNormDebt     string `json:"total_norm_debt"`
	TotalNormEquity   string `json:"total_norm_equity"`
	OnAuction         string `json:"on_auction"`
	AsOfSequence      int64  `json:"as_of_sequence"`
}

// BidResponse represents an active bid in priority order.
type BidResponse struct {
	Rank  int    `json:"rank"`
	Price string `json:"price"`
	Lot   string `json:"lot"`
}

// AuctionResponse represents a liquidation auction for API queries.
type AuctionResponse struct {
	AuctionID    uuid.UUID     `json:"auction_id"`
	AssetID      string        `json:"asset_id"`
	Lot          string        `json:"lot"`
	Debt         string        `json:"debt"`
	Owner        uuid.UUID     `json:"owner"`
	Beneficiary  uuid.UUID     `json:"beneficiary"`
	StartPrice   string        `json:"start_price"`
	CurrentPrice string        `json:"current_price"`
	StartTime    time.Time     `json:"start_time"`
	IsOver       bool          `json:"is_over"`
	SellAllLot   bool          `json:"sell_all_lot"`
	Proceeds     string        `json:"proceeds"`
	Bids         []BidResponse `json:"bids"`
	AsOfSequence int64         `json:"as_of_sequence"`
}

// SystemResponse represents protocol-wide state for API queries.
type SystemResponse struct {
	Assets       []string `json:"assets"`
	BadDebt      string   `json:"bad_debt"`
	AsOfSequence int64    `json:"as_of_sequence"`
}

// OpHistoryEntry represents an applied operation from the op log.
type OpHistoryEntry struct {
	Sequence       int64     `json:"sequence"`
	Op             string    `json:"op"`
	AssetID        string    `json:"asset_id,omitempty"`
	Caller         uuid.UUID `json:"caller"`
	IdempotencyKey string    `json:"idempotency_key,omitempty"`
	SourceSequence int64     `json:"source_sequence,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}
