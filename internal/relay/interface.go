package relay

import (
	"context"

	"github.com/sudo-init-do/realtime-stack/internal/domain"
)

// QueuePublisher hands a record to the durable persistence queue. A nil
// return means the broker has durably stored the message.
type QueuePublisher interface {
	Publish(ctx context.Context, record *domain.PersistRecord) error
	Close() error
}

// EventPublisher emits best-effort analytics events.
type EventPublisher interface {
	PublishEvent(ctx context.Context, event *domain.MessageEvent) error
	Close() error
}

// MessageRelay is the gateway's hand-off point for accepted chat messages.
type MessageRelay interface {
	Relay(ctx context.Context, record *domain.PersistRecord) error
	Close() error
}
