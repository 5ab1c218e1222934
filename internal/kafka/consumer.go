package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/segmentio/kafka-go"
)

type Consumer struct {
	reader *kafka.Reader
	log    *log.Helper
}

func NewConsumer(brokers []string, groupID, topic string, logger log.Logger) *Consumer {
	return &Consumer{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:           brokers,
			GroupID:           groupID,
			Topic:             topic,
			HeartbeatInterval: 3 * time.Second,
			SessionTimeout:    30 * time.Second,
		}),
		log: log.NewHelper(log.With(logger, "module", "kafka-consumer")),
	}
}

func (c *Consumer) Close() error {
	if c == nil || c.reader == nil {
		return nil
	}
	return c.reader.Close()
}

// Consume feeds decoded reservation events to handler until ctx is done.
// Undecodable messages are logged and skipped; a handler error stops the loop.
func (c *Consumer) Consume(ctx context.Context, handler func(context.Context, ReservationEvent) error) error {
	for {
		msg, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			return err
		}

		event, err := DecodeEvent(msg.Value)
		if err != nil {
			c.log.Warnf("skip message %s/%d@%d: %v", msg.Topic, msg.Partition, msg.Offset, err)
			continue
		}
		if err := handler(ctx, event); err != nil {
			return err
		}
	}
}

func DecodeEvent(payload []byte) (ReservationEvent, error) {
	var event ReservationEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return ReservationEvent{}, err
	}
	if event.Type == "" {
		return ReservationEvent{}, errors.New("event without type")
	}
	return event, nil
}
