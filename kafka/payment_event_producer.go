package kafka

import (
	"context"
	"encoding/json"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/saichennu440/craft-store/models"
)

// PaymentEventProducer publishes terminal payment events keyed by order id so
// downstream consumers see one order's events in order.
type PaymentEventProducer struct {
	writer *kafka.Writer
	topic  string
	logger *zap.Logger
}

func NewPaymentEventProducer(brokers []string, topic string, logger *zap.Logger) *PaymentEventProducer {
	w := &kafka.Writer{
		Addr:     kafka.TCP(brokers...),
		Topic:    topic,
		Balancer: &kafka.LeastBytes{},
	}
	logger.Info("payment event producer initialized",
		zap.String("topic", topic),
		zap.Strings("brokers", brokers),
	)
	return &PaymentEventProducer{writer: w, topic: topic, logger: logger}
}

func (p *PaymentEventProducer) PublishPaymentEvent(ctx context.Context, event models.PaymentEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	msg := kafka.Message{
		Key:   []byte(event.OrderID),
		Value: data,
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.Warn("failed to write payment event",
			zap.String("event_type", event.Type),
			zap.Error(err),
		)
		return err
	}

	p.logger.Info("payment event published",
		zap.String("event_type", event.Type),
		zap.String("order_id", event.OrderID),
	)
	return nil
}

func (p *PaymentEventProducer) Close() {
	if err := p.writer.Close(); err != nil {
		p.logger.Warn("failed to close kafka writer", zap.Error(err))
	}
}
