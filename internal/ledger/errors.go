package ledger

import "errors"

// Every check is a hard reject: a failed call leaves the ledger
// unchanged. Sentinels are grouped by the failure taxonomy so callers
// can match with errors.Is.
var (
	// Authorization
	ErrUnauthorized = errors.New("ledger: caller lacks required role")

	// Invariant violations
	ErrBelowFloor           = errors.New("ledger: position below asset floor")
	ErrCeilingExceeded      = errors.New("ledger: asset ceiling exceeded")
	ErrUndercollateralized  = errors.New("ledger: active collateral does not cover claims")
	ErrVaultLimitExceeded   = errors.New("ledger: individual vault limit exceeded")
	ErrAccumulatorOrdering  = errors.New("ledger: equity and protocol growth exceed debt growth")
	ErrAccumulatorDecrease  = errors.New("ledger: accumulator increase must be non-negative")

	// State-machine violations
	ErrUnknownAsset = errors.New("ledger: unknown asset")
	ErrAssetExists  = errors.New("ledger: asset already initialized")

	// Arithmetic
	ErrSignMismatch        = errors.New("ledger: delta signs must match")
	ErrInsufficientStandby = errors.New("ledger: insufficient standby collateral")
	ErrInsufficientActive  = errors.New("ledger: insufficient active collateral")
	ErrNegativeClaim       = errors.New("ledger: claim would go negative")
	ErrNoAccruedInterest   = errors.New("ledger: no accrued interest to collect")
)
