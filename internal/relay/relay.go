package relay

import (
	"context"

	"github.com/sudo-init-do/realtime-stack/internal/domain"
	"github.com/sudo-init-do/realtime-stack/pkg/log"
)

// Relay hands an accepted chat message off to the durable queue and, best
// effort, to the analytics stream. The two publishes are independent: the
// event publish runs on its own goroutine, its failure is logged and never
// surfaced, and it cannot prevent or roll back the durable publish.
type Relay struct {
	queue  QueuePublisher
	events EventPublisher
}

func NewRelay(queue QueuePublisher, events EventPublisher) *Relay {
	return &Relay{queue: queue, events: events}
}

// Relay returns the durable publish result; a nil error means the broker
// has stored the record. There is no internal retry.
func (r *Relay) Relay(ctx context.Context, record *domain.PersistRecord) error {
	go func() {
		event := domain.NewMessageSentEvent(record.RoomID, record.From, record.Ts)
		if err := r.events.PublishEvent(context.Background(), event); err != nil {
			log.L().Warn().Err(err).Str(log.FieldRoomID, record.RoomID).Msg("event publish failed")
		}
	}()

	return r.queue.Publish(ctx, record)
}

func (r *Relay) Close() error {
	err := r.queue.Close()
	if cerr := r.events.Close(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}
