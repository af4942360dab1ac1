package event

// EventType discriminator for inbound event payloads.
type EventType int32

const (
	EventTypeUnknown EventType = iota
	EventTypeAccrualTick
	EventTypePriceUpdate
)

func (et EventType) String() string {
	switch et {
	case EventTypeAccrualTick:
		return "AccrualTick"
	case EventTypePriceUpdate:
		return "PriceUpdate"
	default:
		return "Unknown"
	}
}

// Event is the interface all inbound event payloads implement.
type Event interface {
	// IdempotencyKey returns the stable dedup key.
	IdempotencyKey() string

	// EventType returns the discriminator.
	EventType() EventType

	// AssetID returns the asset context.
	AssetID() string

	// SourceSequence returns the upstream ordering key.
	SourceSequence() int64
}
