package core_test

import (
	"errors"
	"testing"

	"VaultCore/internal/core"
)

func TestIdempotencyChecker_LRU(t *testing.T) {
	ic := core.NewIdempotencyChecker(2, nil)

	ic.MarkProcessed("AccrualTick", "a")
	ic.MarkProcessed("AccrualTick", "b")
	if !ic.IsDuplicate("AccrualTick", "a") {
		t.Error("a should be a duplicate")
	}
	if ic.IsDuplicate("AccrualTick", "c") {
		t.Error("c was never processed")
	}

	// Keys are scoped by event type.
	if ic.IsDuplicate("PriceUpdate", "a") {
		t.Error("same key under another event type should not collide")
	}
}

func TestIdempotencyChecker_Eviction(t *testing.T) {
	ic := core.NewIdempotencyChecker(2, nil)

	ic.MarkProcessed("AccrualTick", "a")
	ic.MarkProcessed("AccrualTick", "b")
	ic.MarkProcessed("AccrualTick", "c") // evicts a

	if ic.IsDuplicate("AccrualTick", "a") {
		t.Error("a should have been evicted")
	}
	if !ic.IsDuplicate("AccrualTick", "b") || !ic.IsDuplicate("AccrualTick", "c") {
		t.Error("b and c should survive")
	}
}

type stubDBChecker struct {
	dup bool
	err error
}

func (s *stubDBChecker) IsDuplicate(eventType, idempotencyKey string) (bool, error) {
	return s.dup, s.err
}

func TestIdempotencyChecker_DBFallback(t *testing.T) {
	ic := core.NewIdempotencyChecker(2, &stubDBChecker{dup: true})
	if !ic.IsDuplicate("AccrualTick", "cold") {
		t.Error("durable hit should report duplicate")
	}

	// A store error must not block processing.
	ic = core.NewIdempotencyChecker(2, &stubDBChecker{err: errors.New("down")})
	if ic.IsDuplicate("AccrualTick", "x") {
		t.Error("store error should fall through to not-duplicate")
	}
}
