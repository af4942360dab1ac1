package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// OpLogWriter writes applied operations to Postgres using multi-row INSERT.
// Inserts are idempotent on the engine sequence, so replaying a batch after
// a crash never duplicates rows.
type OpLogWriter struct {
	db *sql.DB
}

// OpRow represents a row in op_log.ops. It mirrors core.OpRecord so the
// persistence layer does not import the engine package; the orchestrator
// bridges between the two.
type OpRow struct {
	Sequence       int64
	Op             string
	AssetID        string
	Caller         uuid.UUID
	IdempotencyKey string
	SourceSequence int64
	Timestamp      time.Time
}

func NewOpLogWriter(db *sql.DB) *OpLogWriter {
	return &OpLogWriter{db: db}
}

// execer lets batch writes run either on the bare connection or inside a
// transaction owned by the caller.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// WriteOpBatch writes a batch of operations to op_log.ops.
func (w *OpLogWriter) WriteOpBatch(ctx context.Context, ex execer, ops []OpRow) error {
	if len(ops) == 0 {
		return nil
	}
	if ex == nil {
		ex = w.db
	}

	query := `INSERT INTO op_log.ops
		(sequence, op, asset_id, caller, idempotency_key, source_sequence, timestamp)
		VALUES `

	values := make([]string, 0, len(ops))
	args := make([]interface{}, 0, len(ops)*7)

	for i, o := range ops {
		base := i * 7
		values = append(values, fmt.Sprintf(
			"($%d, $%d, $%d, $%d, $%d, $%d, $%d)",
			base+1, base+2, base+3, base+4, base+5, base+6, base+7,
		))
		args = append(args,
			o.Sequence, o.Op, o.AssetID, o.Caller.String(),
			o.IdempotencyKey, o.SourceSequence, o.Timestamp,
		)
	}

	query += strings.Join(values, ", ")
	query += " ON CONFLICT (sequence) DO NOTHING" // Idempotent writes

	_, err := ex.ExecContext(ctx, query, args...)
	return err
}

// LastSequence returns the highest persisted engine sequence, or 0 when the
// log is empty. Used on startup to resume the outbound cursor.
func (w *OpLogWriter) LastSequence(ctx context.Context) (int64, error) {
	var seq sql.NullInt64
	err := w.db.QueryRowContext(ctx, `SELECT MAX(sequence) FROM op_log.ops`).Scan(&seq)
	if err != nil {
		return 0, err
	}
	if !seq.Valid {
		return 0, nil
	}
	return seq.Int64, nil
}
