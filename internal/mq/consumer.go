package mq

import (
	"context"

	rmq "github.com/apache/rocketmq-client-go/v2"
	"github.com/apache/rocketmq-client-go/v2/consumer"
	"github.com/apache/rocketmq-client-go/v2/primitive"
	"go.uber.org/zap"
)

type ConsumerOptions struct {
	NameServer string
	Topic      string
	Tag        string
	Group      string
}

// Handler processes one raw message body. A nil return acks the message; an
// error asks the broker to redeliver it later.
type Handler func(ctx context.Context, body []byte) error

// Consumer is the long-lived pull loop. Orderly consumption keeps publish
// order within a queue, which combined with the producer's sharding key gives
// per-conversation ordering.
type Consumer struct {
	c     rmq.PushConsumer
	topic string
	tag   string
	log   *zap.Logger
}

func NewConsumer(opt ConsumerOptions, log *zap.Logger) (*Consumer, error) {
	c, err := rmq.NewPushConsumer(
		consumer.WithNameServer([]string{opt.NameServer}),
		consumer.WithGroupName(opt.Group),
		consumer.WithConsumerModel(consumer.Clustering),
		consumer.WithConsumerOrder(true),
		consumer.WithConsumeFromWhere(consumer.ConsumeFromLastOffset),
	)
	if err != nil {
		return nil, err
	}
	return &Consumer{c: c, topic: opt.Topic, tag: opt.Tag, log: log}, nil
}

// Start subscribes and begins delivering bodies to handler, one at a time per
// queue. Handler errors are not swallowed here: they become redeliveries.
func (c *Consumer) Start(handler Handler) error {
	selector := consumer.MessageSelector{Type: consumer.TAG, Expression: "*"}
	if c.tag != "" {
		selector.Expression = c.tag
	}

	err := c.c.Subscribe(c.topic, selector, func(ctx context.Context, msgs ...*primitive.MessageExt) (consumer.ConsumeResult, error) {
		for _, m := range msgs {
			if err := handler(ctx, m.Body); err != nil {
				c.log.Warn("handler failed, message will be redelivered",
					zap.String("msg_id", m.MsgId),
					zap.Error(err),
				)
				return consumer.ConsumeRetryLater, nil
			}
		}
		return consumer.ConsumeSuccess, nil
	})
	if err != nil {
		return err
	}
	if err := c.c.Start(); err != nil {
		return err
	}
	c.log.Info("mq consumer started", zap.String("topic", c.topic))
	return nil
}

// Shutdown disconnects the client; an in-flight handler call finishes first.
func (c *Consumer) Shutdown() error {
	return c.c.Shutdown()
}
