package ingestion

import (
	"VaultCore/internal/event"
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/google/uuid"
)

// ParseRawEvent converts a RawEvent (JSON bytes + event type string) into a
// typed event.Event. The shell validates and parses before anything reaches
// the engine, so the engine only ever sees well-formed payloads.
func ParseRawEvent(raw RawEvent, eventType string) (event.Event, error) {
	switch eventType {
	case "AccrualTick":
		return parseAccrualTick(raw.Data)
	case "PriceUpdate":
		return parsePriceUpdate(raw.Data)
	default:
		return nil, fmt.Errorf("unknown event type: %s", eventType)
	}
}

// --- JSON wire formats ---
// These structs represent the JSON payloads received from NATS.
// Field names use snake_case to match upstream producers.
// Fixed-point values are carried as decimal strings because rate-scale
// integers overflow int64.

type accrualTickJSON struct {
	TickID               string `json:"tick_id"`
	Asset                string `json:"asset"`
	Beneficiary          string `json:"beneficiary"`
	DebtRateIncrease     string `json:"debt_rate_increase"`
	EquityRateIncrease   string `json:"equity_rate_increase"`
	ProtocolRateIncrease string `json:"protocol_rate_increase"`
	Sequence             int64  `json:"sequence"`
}

func parseAccrualTick(data []byte) (*event.AccrualTick, error) {
	var j accrualTickJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse AccrualTick: %w", err)
	}

	tickID, err := uuid.Parse(j.TickID)
	if err != nil {
		return nil, fmt.Errorf("parse tick_id: %w", err)
	}
	beneficiary, err := uuid.Parse(j.Beneficiary)
	if err != nil {
		return nil, fmt.Errorf("parse beneficiary: %w", err)
	}
	if j.Asset == "" {
		return nil, fmt.Errorf("parse AccrualTick: empty asset")
	}
	debtInc, err := parseFixed("debt_rate_increase", j.DebtRateIncrease)
	if err != nil {
		return nil, err
	}
	equityInc, err := parseFixed("equity_rate_increase", j.EquityRateIncrease)
	if err != nil {
		return nil, err
	}
	protocolInc, err := parseFixed("protocol_rate_increase", j.ProtocolRateIncrease)
	if err != nil {
		return nil, err
	}

	return &event.AccrualTick{
		TickID:               tickID,
		Asset:                j.Asset,
		Beneficiary:          beneficiary,
		DebtRateIncrease:     debtInc,
		EquityRateIncrease:   equityInc,
		ProtocolRateIncrease: protocolInc,
		Sequence:             j.Sequence,
	}, nil
}

type priceUpdateJSON struct {
	UpdateID         string `json:"update_id"`
	Asset            string `json:"asset"`
	AdjustedPrice    string `json:"adjusted_price"`
	LiquidationRatio string `json:"liquidation_ratio"`
	Sequence         int64  `json:"sequence"`
}

func parsePriceUpdate(data []byte) (*event.PriceUpdate, error) {
	var j priceUpdateJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse PriceUpdate: %w", err)
	}

	updateID, err := uuid.Parse(j.UpdateID)
	if err != nil {
		return nil, fmt.Errorf("parse update_id: %w", err)
	}
	if j.Asset == "" {
		return nil, fmt.Errorf("parse PriceUpdate: empty asset")
	}
	price, err := parseFixed("adjusted_price", j.AdjustedPrice)
	if err != nil {
		return nil, err
	}
	ratio, err := parseFixed("liquidation_ratio", j.LiquidationRatio)
	if err != nil {
		return nil, err
	}

	return &event.PriceUpdate{
		UpdateID:         updateID,
		Asset:            j.Asset,
		AdjustedPrice:    price,
		LiquidationRatio: ratio,
		Sequence:         j.Sequence,
	}, nil
}

func parseFixed(field, s string) (*big.Int, error) {
	if s == "" {
		return nil, fmt.Errorf("parse %s: empty value", field)
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("parse %s: invalid decimal %q", field, s)
	}
	return v, nil
}
