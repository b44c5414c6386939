package persist

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/sudo-init-do/realtime-stack/internal/config"
	"github.com/sudo-init-do/realtime-stack/internal/domain"
	"github.com/sudo-init-do/realtime-stack/internal/relay"
	pkglog "github.com/sudo-init-do/realtime-stack/pkg/log"
)

// MessageStore persists validated records.
type MessageStore interface {
	SaveMessage(ctx context.Context, record *domain.PersistRecord) error
}

// Consumer drains the durable persistence queue. Prefetch (MaxAckPending)
// bounds how many unacknowledged messages are in flight at once, which is
// the backpressure protecting the store. Each message is acknowledged on
// successful insert and terminated (rejected, never redelivered) on
// deserialization, validation, or insert failure. A terminated message is
// lost; there is no dead-letter destination.
type Consumer struct {
	nc       *nats.Conn
	consumer jetstream.Consumer
	store    MessageStore
	subject  string
}

func NewConsumer(ctx context.Context, queueCfg config.QueueConfig, prefetch int, store MessageStore) (*Consumer, error) {
	nc, err := nats.Connect(queueCfg.URL, nats.Name("chat-persister"))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to queue broker: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to create jetstream context: %w", err)
	}

	stream, err := relay.EnsureStream(ctx, js, queueCfg)
	if err != nil {
		nc.Close()
		return nil, err
	}

	cons, err := stream.CreateOrUpdateConsumer(ctx, jetstream.ConsumerConfig{
		Durable:       queueCfg.Durable,
		FilterSubject: queueCfg.Subject,
		AckPolicy:     jetstream.AckExplicitPolicy,
		MaxAckPending: prefetch,
	})
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to create queue consumer: %w", err)
	}

	return &Consumer{
		nc:       nc,
		consumer: cons,
		store:    store,
		subject:  queueCfg.Subject,
	}, nil
}

// Run consumes until the context is cancelled. Messages already dispatched
// when cancellation hits are allowed to finish independently.
func (c *Consumer) Run(ctx context.Context) error {
	cc, err := c.consumer.Consume(func(msg jetstream.Msg) {
		go c.process(ctx, msg)
	})
	if err != nil {
		return fmt.Errorf("failed to start consuming: %w", err)
	}

	log.Printf("Queue consumer started (subject: %s)", c.subject)

	<-ctx.Done()
	log.Println("Queue consumer stopping...")
	cc.Stop()
	return nil
}

func (c *Consumer) process(ctx context.Context, msg jetstream.Msg) {
	// A dispatched message finishes on its own: shutdown cancellation must
	// not fail the insert and turn a valid record into a permanent reject.
	ctx = context.WithoutCancel(ctx)

	if err := c.handle(ctx, msg.Data()); err != nil {
		pkglog.L().Warn().Err(err).Str(pkglog.FieldQueueSubject, msg.Subject()).Msg("rejecting message without requeue")
		if terr := msg.Term(); terr != nil {
			pkglog.L().Error().Err(terr).Msg("failed to terminate message")
		}
		return
	}

	if err := msg.Ack(); err != nil {
		pkglog.L().Error().Err(err).Msg("failed to ack message")
	}
}

// handle deserializes, validates, and persists one queue message. Any
// returned error means the message must be rejected without requeue.
func (c *Consumer) handle(ctx context.Context, data []byte) error {
	var record domain.PersistRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return fmt.Errorf("failed to unmarshal record: %w", err)
	}

	if err := record.Validate(); err != nil {
		return fmt.Errorf("invalid record: %w", err)
	}

	if err := c.store.SaveMessage(ctx, &record); err != nil {
		return fmt.Errorf("failed to persist record: %w", err)
	}

	pkglog.L().Debug().
		Str(pkglog.FieldRoomID, record.RoomID).
		Str(pkglog.FieldSubject, record.From).
		Int64(pkglog.FieldTimestamp, record.Ts).
		Msg("persisted message")

	return nil
}

// Close closes the broker connection.
func (c *Consumer) Close() error {
	log.Println("Closing queue consumer...")
	c.nc.Close()
	return nil
}
