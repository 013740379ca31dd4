package event

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/vncsmyrnk/tessera/internal/core/domain"
	"github.com/vncsmyrnk/tessera/internal/core/ports"
)

const electionClosedType = "election.closed"

type KafkaPublisher struct {
	writer *kafka.Writer
}

var _ ports.ResultPublisher = (*KafkaPublisher)(nil)

// NewKafkaPublisher writes one message per closed election. Messages are
// keyed by election ID so every event of an election lands on one partition.
func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		BatchTimeout: 10 * time.Millisecond,
		MaxAttempts:  5,
		Compression:  kafka.Snappy,
	}

	return &KafkaPublisher{writer: w}
}

func electionClosedMessage(event domain.ElectionClosedEvent) (kafka.Message, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("failed to marshal event: %w", err)
	}

	return kafka.Message{
		Key:   []byte(event.ElectionID.String()),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "type", Value: []byte(electionClosedType)},
		},
	}, nil
}

func (kp *KafkaPublisher) PublishElectionClosed(ctx context.Context, event domain.ElectionClosedEvent) error {
	msg, err := electionClosedMessage(event)
	if err != nil {
		return err
	}

	if err := kp.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to write message to kafka: %w", err)
	}

	return nil
}

func (kp *KafkaPublisher) Close() error {
	if err := kp.writer.Close(); err != nil {
		return fmt.Errorf("failed to close kafka writer: %w", err)
	}
	return nil
}
