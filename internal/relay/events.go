package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"

	"github.com/sudo-init-do/realtime-stack/internal/config"
	"github.com/sudo-init-do/realtime-stack/internal/domain"
	pkglog "github.com/sudo-init-do/realtime-stack/pkg/log"
)

// ConfluentEventPublisher publishes message_sent events to Kafka, keyed by
// room id so events for one room stay on one partition.
type ConfluentEventPublisher struct {
	producer *kafka.Producer
	topic    string
	doneCh   chan struct{}
}

func NewConfluentEventPublisher(cfg config.EventsConfig) (*ConfluentEventPublisher, error) {
	if err := ensureTopic(cfg.Broker, cfg.Topic, cfg.Partitions); err != nil {
		pkglog.L().Warn().Err(err).Str(pkglog.FieldTopic, cfg.Topic).Msg("failed to ensure topic, it may already exist")
	}

	p, err := kafka.NewProducer(&kafka.ConfigMap{
		"bootstrap.servers": cfg.Broker,
		"acks":              "1",
		"linger.ms":         5,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka producer: %w", err)
	}

	ep := &ConfluentEventPublisher{
		producer: p,
		topic:    cfg.Topic,
		doneCh:   make(chan struct{}),
	}

	go ep.deliveryReportHandler()

	return ep, nil
}

func ensureTopic(broker, topic string, partitions int) error {
	admin, err := kafka.NewAdminClient(&kafka.ConfigMap{
		"bootstrap.servers": broker,
	})
	if err != nil {
		return fmt.Errorf("failed to create admin client: %w", err)
	}
	defer admin.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	results, err := admin.CreateTopics(ctx, []kafka.TopicSpecification{
		{
			Topic:             topic,
			NumPartitions:     partitions,
			ReplicationFactor: 1,
		},
	})
	if err != nil {
		return err
	}

	for _, result := range results {
		if result.Error.Code() != kafka.ErrNoError && result.Error.Code() != kafka.ErrTopicAlreadyExists {
			return fmt.Errorf("failed to create topic %s: %v", result.Topic, result.Error)
		}
	}

	return nil
}

func (ep *ConfluentEventPublisher) deliveryReportHandler() {
	for e := range ep.producer.Events() {
		switch ev := e.(type) {
		case *kafka.Message:
			if ev.TopicPartition.Error != nil {
				pkglog.L().Error().Err(ev.TopicPartition.Error).Str(pkglog.FieldTopic, ep.topic).Msg("event delivery failed")
			}
		}
	}
	close(ep.doneCh)
}

func (ep *ConfluentEventPublisher) PublishEvent(ctx context.Context, event *domain.MessageEvent) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	err = ep.producer.Produce(&kafka.Message{
		TopicPartition: kafka.TopicPartition{
			Topic:     &ep.topic,
			Partition: kafka.PartitionAny,
		},
		Key:   []byte(event.RoomID),
		Value: value,
	}, nil)
	if err != nil {
		return fmt.Errorf("failed to produce event: %w", err)
	}

	return nil
}

func (ep *ConfluentEventPublisher) Close() error {
	ep.producer.Flush(5000)
	ep.producer.Close()
	<-ep.doneCh
	return nil
}
