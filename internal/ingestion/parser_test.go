package ingestion_test

import (
	"VaultCore/internal/event"
	"VaultCore/internal/ingestion"
	"encoding/json"
	"testing"
	"time"
)

func rawFromJSON(t *testing.T, v interface{}) ingestion.RawEvent {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return ingestion.RawEvent{
		Subject:   "test",
		Data:      data,
		Timestamp: time.Now(),
		AckFunc:   func() {},
		NakFunc:   func() {},
	}
}

func TestParseAccrualTick(t *testing.T) {
	payload := map[string]interface{}{
		"tick_id":                "550e8400-e29b-41d4-a716-446655440000",
		"asset":                  "ETH-A",
		"beneficiary":            "660e8400-e29b-41d4-a716-446655440001",
		"debt_rate_increase":     "5000000000000000000000000",
		"equity_rate_increase":   "3000000000000000000000000",
		"protocol_rate_increase": "1000000000000000000000000",
		"sequence":               int64(42),
	}

	raw := rawFromJSON(t, payload)
	evt, err := ingestion.ParseRawEvent(raw, "AccrualTick")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	tick, ok := evt.(*event.AccrualTick)
	if !ok {
		t.Fatalf("expected *event.AccrualTick, got %T", evt)
	}

	if tick.Asset != "ETH-A" {
		t.Errorf("asset: got %s, want ETH-A", tick.Asset)
	}
	if tick.DebtRateIncrease.String() != "5000000000000000000000000" {
		t.Errorf("debt_rate_increase: got %s", tick.DebtRateIncrease)
	}
	if tick.EquityRateIncrease.String() != "3000000000000000000000000" {
		t.Errorf("equity_rate_increase: got %s", tick.EquityRateIncrease)
	}
	if tick.ProtocolRateIncrease.String() != "1000000000000000000000000" {
		t.Errorf("protocol_rate_increase: got %s", tick.ProtocolRateIncrease)
	}
	if tick.Sequence != 42 {
		t.Errorf("sequence: got %d, want 42", tick.Sequence)
	}
	if tick.EventType() != event.EventTypeAccrualTick {
		t.Errorf("event type: got %v, want AccrualTick", tick.EventType())
	}
	if tick.IdempotencyKey() != "550e8400-e29b-41d4-a716-446655440000" {
		t.Errorf("idempotency key: got %s", tick.IdempotencyKey())
	}
}

func TestParsePriceUpdate(t *testing.T) {
	payload := map[string]interface{}{
		"update_id":         "770e8400-e29b-41d4-a716-446655440002",
		"asset":             "ETH-A",
		"adjusted_price":    "1500000000000000000000000000000",
		"liquidation_ratio": "1450000000000000000000000000",
		"sequence":          int64(7),
	}

	raw := rawFromJSON(t, payload)
	evt, err := ingestion.ParseRawEvent(raw, "PriceUpdate")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	pu, ok := evt.(*event.PriceUpdate)
	if !ok {
		t.Fatalf("expected *event.PriceUpdate, got %T", evt)
	}

	if pu.Asset != "ETH-A" {
		t.Errorf("asset: got %s, want ETH-A", pu.Asset)
	}
	if pu.AdjustedPrice.String() != "1500000000000000000000000000000" {
		t.Errorf("adjusted_price: got %s", pu.AdjustedPrice)
	}
	if pu.LiquidationRatio.String() != "1450000000000000000000000000" {
		t.Errorf("liquidation_ratio: got %s", pu.LiquidationRatio)
	}
	if pu.SourceSequence() != 7 {
		t.Errorf("sequence: got %d, want 7", pu.SourceSequence())
	}
	if pu.EventType() != event.EventTypePriceUpdate {
		t.Errorf("event type: got %v, want PriceUpdate", pu.EventType())
	}
}

func TestParseUnknownEventType(t *testing.T) {
	raw := rawFromJSON(t, map[string]interface{}{})
	if _, err := ingestion.ParseRawEvent(raw, "Bogus"); err == nil {
		t.Fatal("expected error for unknown event type")
	}
}

func TestParseRejectsMalformedJSON(t *testing.T) {
	raw := ingestion.RawEvent{Subject: "test", Data: []byte("{not json"), Timestamp: time.Now()}
	if _, err := ingestion.ParseRawEvent(raw, "AccrualTick"); err == nil {
		t.Fatal("expected error for malformed JSON")
	}
	if _, err := ingestion.ParseRawEvent(raw, "PriceUpdate"); err == nil {
		t.Fatal("expected error for malformed JSON")
	}
}

func TestParseRejectsBadFixedPoint(t *testing.T) {
	payload := map[string]interface{}{
		"update_id":         "770e8400-e29b-41d4-a716-446655440002",
		"asset":             "ETH-A",
		"adjusted_price":    "1.5e27",
		"liquidation_ratio": "1450000000000000000000000000",
		"sequence":          int64(1),
	}
	raw := rawFromJSON(t, payload)
	if _, err := ingestion.ParseRawEvent(raw, "PriceUpdate"); err == nil {
		t.Fatal("expected error for non-integer fixed-point value")
	}
}

func TestParseRejectsBadUUID(t *testing.T) {
	payload := map[string]interface{}{
		"tick_id":                "not-a-uuid",
		"asset":                  "ETH-A",
		"beneficiary":            "660e8400-e29b-41d4-a716-446655440001",
		"debt_rate_increase":     "0",
		"equity_rate_increase":   "0",
		"protocol_rate_increase": "0",
		"sequence":               int64(1),
	}
	raw := rawFromJSON(t, payload)
	if _, err := ingestion.ParseRawEvent(raw, "AccrualTick"); err == nil {
		t.Fatal("expected error for invalid tick_id")
	}
}
