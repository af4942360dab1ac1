package core

import (
	"fmt"
)

// SequenceValidator validates upstream source sequences per partition.
// Accrual ticks are strict (a gap means a missed rate window and must be
// surfaced); price updates tolerate gaps but drop stale values.
// Not thread-safe; only accessed under the engine lock.
type SequenceValidator struct {
	expectedNextSeq map[string]int64
}

func NewSequenceValidator() *SequenceValidator {
	return &SequenceValidator{
		expectedNextSeq: make(map[string]int64),
	}
}

// ValidateStrict checks exact ordering for a partition. A stale sequence
// on a duplicate event is fine; on a new event it is an error.
func (sv *SequenceValidator) ValidateStrict(partition string, sourceSequence int64, isDuplicate bool) error {
	expected := sv.expectedNextSeq[partition]

	if sourceSequence < expected {
		if isDuplicate {
			return nil
		}
		return fmt.Errorf("out-of-order event: partition=%s, expected=%d, got=%d",
			partition, expected, sourceSequence)
	}
	if sourceSequence > expected {
		return fmt.Errorf("sequence gap: partition=%s, expected=%d, got=%d",
			partition, expected, sourceSequence)
	}

	sv.expectedNextSeq[partition] = expected + 1
	return nil
}

// ValidateMonotonic accepts any forward jump and reports whether the
// event is fresh; stale events are dropped silently by the caller.
func (sv *SequenceValidator) ValidateMonotonic(partition string, sourceSequence int64) bool {
	expected := sv.expectedNextSeq[partition]
	if sourceSequence < expected {
		return false
	}
	sv.expectedNextSeq[partition] = sourceSequence + 1
	return true
}

// SetExpectedSequence initializes a partition (used during recovery).
func (sv *SequenceValidator) SetExpectedSequence(partition string, seq int64) {
	sv.expectedNextSeq[partition] = seq
}
