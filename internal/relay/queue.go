package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/sudo-init-do/realtime-stack/internal/config"
	"github.com/sudo-init-do/realtime-stack/internal/domain"
)

// JetStreamQueue publishes persist records to a file-backed JetStream work
// queue. Publish is synchronous: it returns only after the broker has
// acknowledged durable storage of the message.
type JetStreamQueue struct {
	nc      *nats.Conn
	js      jetstream.JetStream
	subject string
}

func NewJetStreamQueue(ctx context.Context, cfg config.QueueConfig) (*JetStreamQueue, error) {
	nc, err := nats.Connect(cfg.URL, nats.Name("chat-gateway"))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to queue broker: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to create jetstream context: %w", err)
	}

	if _, err := EnsureStream(ctx, js, cfg); err != nil {
		nc.Close()
		return nil, err
	}

	return &JetStreamQueue{nc: nc, js: js, subject: cfg.Subject}, nil
}

func (q *JetStreamQueue) Publish(ctx context.Context, record *domain.PersistRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal persist record: %w", err)
	}

	if _, err := q.js.Publish(ctx, q.subject, data); err != nil {
		return fmt.Errorf("failed to publish persist record: %w", err)
	}
	return nil
}

func (q *JetStreamQueue) Close() error {
	q.nc.Close()
	return nil
}

// EnsureStream creates or updates the persistence stream. Idempotent;
// called by both the gateway and the persister so either may start first.
// WorkQueuePolicy removes a message permanently once it is acked or
// terminated, which is exactly the queue contract the persister relies on.
func EnsureStream(ctx context.Context, js jetstream.JetStream, cfg config.QueueConfig) (jetstream.Stream, error) {
	streamCfg := jetstream.StreamConfig{
		Name:      cfg.Stream,
		Subjects:  []string{cfg.Subject},
		Retention: jetstream.WorkQueuePolicy,
		Storage:   jetstream.FileStorage,
		Discard:   jetstream.DiscardOld,
	}

	_, err := js.Stream(ctx, cfg.Stream)
	if err == nil {
		stream, err := js.UpdateStream(ctx, streamCfg)
		if err != nil {
			return nil, fmt.Errorf("failed to update stream %s: %w", cfg.Stream, err)
		}
		return stream, nil
	}

	if errors.Is(err, jetstream.ErrStreamNotFound) {
		stream, err := js.CreateStream(ctx, streamCfg)
		if err != nil {
			return nil, fmt.Errorf("failed to create stream %s: %w", cfg.Stream, err)
		}
		return stream, nil
	}

	return nil, fmt.Errorf("failed to check stream %s: %w", cfg.Stream, err)
}
