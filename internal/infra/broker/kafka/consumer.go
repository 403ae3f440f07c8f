package kafka

import (
	"context"
	"errors"
	"log/slog"

	"github.com/IBM/sarama"
)

type MessageHandler interface {
	Handle(ctx context.Context, msg *sarama.ConsumerMessage) error
}

type Consumer struct {
	group   sarama.ConsumerGroup
	handler MessageHandler
	logger  *slog.Logger
}

// NewConsumer joins groupID. The feed uses one group per instance so every
// instance sees every event.
func NewConsumer(brokers []string, groupID string, cfg *sarama.Config, handler MessageHandler, logger *slog.Logger) (*Consumer, error) {
	if cfg == nil {
		cfg = sarama.NewConfig()
		cfg.Version = sarama.V2_5_0_0
	}
	// live sessions only care about what happens after they attach
	cfg.Consumer.Offsets.Initial = sarama.OffsetNewest
	cfg.Consumer.Return.Errors = true
	g, err := sarama.NewConsumerGroup(brokers, groupID, cfg)
	if err != nil {
		return nil, err
	}
	return &Consumer{group: g, handler: handler, logger: logger}, nil
}

func (c *Consumer) Run(ctx context.Context, topics []string) error {
	go c.drainErrors(ctx)
	for {
		if err := c.group.Consume(ctx, topics, consumerGroupHandler{handler: c.handler, logger: c.logger}); err != nil {
			if errors.Is(err, sarama.ErrClosedConsumerGroup) {
				return nil
			}
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

func (c *Consumer) drainErrors(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case err, ok := <-c.group.Errors():
			if !ok {
				return
			}
			if c.logger != nil {
				c.logger.Warn("kafka consumer error", "error", err)
			}
		}
	}
}

func (c *Consumer) Close() error {
	return c.group.Close()
}

type consumerGroupHandler struct {
	handler MessageHandler
	logger  *slog.Logger
}

func (h consumerGroupHandler) Setup(sarama.ConsumerGroupSession) error   { return nil }
func (h consumerGroupHandler) Cleanup(sarama.ConsumerGroupSession) error { return nil }

func (h consumerGroupHandler) ConsumeClaim(sess sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for message := range claim.Messages() {
		if err := h.handler.Handle(sess.Context(), message); err != nil {
			// a push that cannot be decoded is skipped; sessions resync on lag
			if h.logger != nil {
				h.logger.Warn("feed event dropped", "error", err, "topic", message.Topic, "partition", message.Partition, "offset", message.Offset)
			}
		}
		sess.MarkMessage(message, "")
	}
	return nil
}
