package ingestion

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go/jetstream"
)

// OutboundPublisher publishes applied operations to NATS for downstream
// consumers (indexers, keeper bots watching auctions, dashboards).
// Subjects follow the pattern: cdp.ops.applied.{op}.{asset}
type OutboundPublisher struct {
	js        jetstream.JetStream
	inputChan <-chan PublishableOp
}

// PublishableOp is an applied operation ready for outbound publishing.
type PublishableOp struct {
	Sequence       int64     `json:"sequence"`
	Op             string    `json:"op"`
	AssetID        string    `json:"asset_id,omitempty"`
	Caller         uuid.UUID `json:"caller"`
	IdempotencyKey string    `json:"idempotency_key,omitempty"`
	SourceSequence int64     `json:"source_sequence,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}

func NewOutboundPublisher(js jetstream.JetStream, inputChan <-chan PublishableOp) *OutboundPublisher {
	return &OutboundPublisher{
		js:        js,
		inputChan: inputChan,
	}
}

// Run starts the outbound publisher loop.
func (op *OutboundPublisher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case rec, ok := <-op.inputChan:
			if !ok {
				return nil
			}

			if err := op.publish(ctx, rec); err != nil {
				log.Printf("WARN: outbound publish failed seq=%d: %v", rec.Sequence, err)
				// Non-fatal: downstream consumers can query the op log directly
			}
		}
	}
}

func (op *OutboundPublisher) publish(ctx context.Context, rec PublishableOp) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal op: %w", err)
	}

	subject := fmt.Sprintf("cdp.ops.applied.%s", rec.Op)
	if rec.AssetID != "" {
		subject = fmt.Sprintf("%s.%s", subject, rec.AssetID)
	}

	_, err = op.js.Publish(ctx, subject, data)
	return err
}
