package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// SnapshotManager persists periodic state snapshots for operational
// inspection and faster incident debugging. The op log stays the audit
// trail; snapshots are a convenience view of the in-memory state.
type SnapshotManager struct {
	db *sql.DB
}

// SnapshotData contains the observable vault state at a point in time.
// Fixed-point values are decimal strings because rate- and value-scale
// integers overflow int64.
type SnapshotData struct {
	Sequence  int64       `json:"sequence"`
	Assets    []AssetSnap `json:"assets"`
	Vaults    []VaultSnap `json:"vaults"`
	BadDebt   string      `json:"bad_debt"`
	CreatedAt time.Time   `json:"created_at"`
}

// AssetSnap is a serializable asset aggregate.
type AssetSnap struct {
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
}

// VaultSnap is a serializable vault position.
type VaultSnap struct {
	AssetID       string `json:"asset_id"`
	Owner         string `json:"owner"`
	Standby       string `json:"standby"`
	Active        string `json:"active"`
	NormDebt      string `json:"norm_debt"`
	NormEquity    string `json:"norm_equity"`
	InitialEquity string `json:"initial_equity"`
}

func NewSnapshotManager(db *sql.DB) *SnapshotManager {
	return &SnapshotManager{db: db}
}

// SaveSnapshot persists a snapshot to Postgres, one row per engine sequence.
func (sm *SnapshotManager) SaveSnapshot(ctx context.Context, snap *SnapshotData) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	snapshotID := uuid.New()
	formatVersion := int32(1) // v1: JSON-encoded SnapshotData

	_, err = sm.db.ExecContext(ctx, `
		INSERT INTO op_log.snapshots
			(snapshot_id, sequence, data, format_version, size_bytes, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (sequence) DO UPDATE SET data = $3, size_bytes = $5
	`, snapshotID, snap.Sequence, data, formatVersion, len(data), snap.CreatedAt)

	return err
}

// LoadLatestSnapshot loads the most recent snapshot, or nil when none exist.
func (sm *SnapshotManager) LoadLatestSnapshot(ctx context.Context) (*SnapshotData, error) {
	row := sm.db.QueryRowContext(ctx, `
		SELECT data FROM op_log.snapshots
		ORDER BY sequence DESC
		LIMIT 1
	`)

	var data []byte
	if err := row.Scan(&data); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("load snapshot: %w", err)
	}

	var snap SnapshotData
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot: %w", err)
	}

	return &snap, nil
}

// LoadOpsFrom loads applied operations from a given sequence onward, for
// audit queries against the op log.
func (sm *SnapshotManager) LoadOpsFrom(ctx context.Context, fromSequence int64, limit int) ([]OpRow, error) {
	rows, err := sm.db.QueryContext(ctx, `
		SELECT sequence, op, asset_id, caller, idempotency_key, source_sequence, timestamp
		FROM op_log.ops
		WHERE sequence >= $1
		ORDER BY sequence ASC
		LIMIT $2
	`, fromSequence, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ops []OpRow
	for rows.Next() {
		var o OpRow
		var caller string
		if err := rows.Scan(
			&o.Sequence, &o.Op, &o.AssetID, &caller,
			&o.IdempotencyKey, &o.SourceSequence, &o.Timestamp,
		); err != nil {
			return nil, err
		}
		id, err := uuid.Parse(caller)
		if err != nil {
			return nil, fmt.Errorf("parse caller %q: %w", caller, err)
		}
		o.Caller = id
		ops = append(ops, o)
	}

	return ops, rows.Err()
}
