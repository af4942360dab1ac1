package persistence

import (
	"VaultCore/internal/observability"
	"context"
	"database/sql"
	"log"
	"time"
)

// Worker drains the persist channel and batch-writes applied operations
// to Postgres. It runs independently from the engine: the engine's sends
// are non-blocking, so a stalled database never stalls vault operations —
// the op log is an audit trail, not the source of truth.
type Worker struct {
	writer       *OpLogWriter
	inputChan    <-chan OpRow
	batchSize    int
	flushTimeout time.Duration
	metrics      *observability.Metrics
}

func NewWorker(
	db *sql.DB,
	inputChan <-chan OpRow,
	batchSize int,
	flushTimeout time.Duration,
	metrics *observability.Metrics,
) *Worker {
	return &Worker{
		writer:       NewOpLogWriter(db),
		inputChan:    inputChan,
		batchSize:    batchSize,
		flushTimeout: flushTimeout,
		metrics:      metrics,
	}
}

// Run starts the persistence loop. It batches incoming rows and flushes
// either when the batch is full or the flush timeout expires. Blocks until
// ctx is cancelled or the input channel is closed.
func (w *Worker) Run(ctx context.Context) error {
	batch := make([]OpRow, 0, w.batchSize)

	timer := time.NewTimer(w.flushTimeout)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			// Graceful shutdown: flush remaining
			if len(batch) > 0 {
				if err := w.flush(context.Background(), batch); err != nil {
					log.Printf("ERROR: final flush failed: %v", err)
				}
			}
			return ctx.Err()

		case row, ok := <-w.inputChan:
			if !ok {
				if len(batch) > 0 {
					if err := w.flush(context.Background(), batch); err != nil {
						log.Printf("ERROR: final flush failed: %v", err)
					}
				}
				return nil
			}

			batch = append(batch, row)

			if len(batch) >= w.batchSize {
				if err := w.flushWithRetry(ctx, batch); err != nil {
					log.Printf("ERROR: batch flush failed after retries: %v", err)
				}
				batch = batch[:0]
				timer.Reset(w.flushTimeout)
			}

		case <-timer.C:
			if len(batch) > 0 {
				if err := w.flushWithRetry(ctx, batch); err != nil {
					log.Printf("ERROR: timeout flush failed after retries: %v", err)
				}
				batch = batch[:0]
			}
			timer.Reset(w.flushTimeout)
		}
	}
}

// flushWithRetry attempts to flush with exponential backoff. Rows already
// buffered are never dropped: it retries until the write succeeds or the
// context is cancelled, then makes one final attempt on shutdown.
func (w *Worker) flushWithRetry(ctx context.Context, batch []OpRow) error {
	backoff := 100 * time.Millisecond
	const maxBackoff = 30 * time.Second

	for attempt := 0; ; attempt++ {
		if attempt > 0 {
			log.Printf("WARN: persistence retry attempt %d (backoff=%v, ops=%d)",
				attempt, backoff, len(batch))
			select {
			case <-ctx.Done():
				return w.flush(context.Background(), batch)
			case <-time.After(backoff):
			}
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
		}

		err := w.flush(ctx, batch)
		if err == nil {
			if attempt > 0 {
				log.Printf("INFO: persistence flush succeeded after %d retries", attempt)
			}
			return nil
		}

		if w.metrics != nil {
			w.metrics.PersistErrors.Inc()
		}
	}
}

func (w *Worker) flush(ctx context.Context, batch []OpRow) error {
	start := time.Now()

	if err := w.writer.WriteOpBatch(ctx, nil, batch); err != nil {
		if w.metrics != nil {
			w.metrics.PersistErrors.Inc()
		}
		return err
	}

	if w.metrics != nil {
		w.metrics.PersistDur.Observe(time.Since(start).Seconds())
		w.metrics.OpsPersisted.Add(float64(len(batch)))
	}

	return nil
}

// Writer returns the underlying op-log writer for startup queries.
func (w *Worker) Writer() *OpLogWriter {
	return w.writer
}
