package core_test

import (
	"testing"

	"VaultCore/internal/core"
)

func TestValidateStrict(t *testing.T) {
	sv := core.NewSequenceValidator()

	if err := sv.ValidateStrict("accrual:ETH", 0, false); err != nil {
		t.Fatalf("first: %v", err)
	}
	if err := sv.ValidateStrict("accrual:ETH", 1, false); err != nil {
		t.Fatalf("second: %v", err)
	}
	if err := sv.ValidateStrict("accrual:ETH", 3, false); err == nil {
		t.Error("gap should fail")
	}
	if err := sv.ValidateStrict("accrual:ETH", 0, true); err != nil {
		t.Errorf("stale duplicate should pass: %v", err)
	}
	if err := sv.ValidateStrict("accrual:ETH", 0, false); err == nil {
		t.Error("stale non-duplicate should fail")
	}

	// Partitions are independent.
	if err := sv.ValidateStrict("accrual:BTC", 0, false); err != nil {
		t.Errorf("other partition: %v", err)
	}
}

func TestValidateMonotonic(t *testing.T) {
	sv := core.NewSequenceValidator()

	if !sv.ValidateMonotonic("price:ETH", 0) {
		t.Error("first should be fresh")
	}
	if sv.ValidateMonotonic("price:ETH", 0) {
		t.Error("replay should be stale")
	}
	if !sv.ValidateMonotonic("price:ETH", 5) {
		t.Error("forward jump should be fresh")
	}
	if sv.ValidateMonotonic("price:ETH", 3) {
		t.Error("late arrival should be stale")
	}
}

func TestSetExpectedSequence(t *testing.T) {
	sv := core.NewSequenceValidator()
	sv.SetExpectedSequence("accrual:ETH", 7)

	if err := sv.ValidateStrict("accrual:ETH", 6, false); err == nil {
		t.Error("below the recovered position should fail")
	}
	if err := sv.ValidateStrict("accrual:ETH", 7, false); err != nil {
		t.Errorf("at the recovered position: %v", err)
	}
}
