// Package mq wraps the RocketMQ client behind the two roles the relay needs:
// a publisher for domain events and a push consumer for reacting to them.
package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	rmq "github.com/apache/rocketmq-client-go/v2"
	"github.com/apache/rocketmq-client-go/v2/primitive"
	"github.com/apache/rocketmq-client-go/v2/producer"

	"github.com/Andres3232/telegram-conversations/internal/event"
)

type ProducerOptions struct {
	NameServer string
	Topic      string
	Tag        string
	Group      string
}

// Publisher publishes envelopes to a single topic, keyed so that all events
// of one conversation land on the same queue (per-conversation ordering at
// the consumer). The broker connection is established on first publish;
// sync.Once makes concurrent first publishes share one connect attempt, and a
// failed connect is sticky until the process restarts.
type Publisher struct {
	opt ProducerOptions

	once sync.Once
	p    rmq.Producer
	err  error
}

func NewPublisher(opt ProducerOptions) *Publisher {
	return &Publisher{opt: opt}
}

func (p *Publisher) init() {
	p.once.Do(func() {
		if p.opt.NameServer == "" {
			p.err = fmt.Errorf("rocketmq: missing name-server")
			return
		}
		if p.opt.Topic == "" {
			p.err = fmt.Errorf("rocketmq: missing topic")
			return
		}
		if p.opt.Group == "" {
			p.err = fmt.Errorf("rocketmq: missing producer group")
			return
		}

		prd, err := rmq.NewProducer(
			producer.WithNameServer([]string{p.opt.NameServer}),
			producer.WithGroupName(p.opt.Group),
			producer.WithRetry(2),
			producer.WithQueueSelector(producer.NewHashQueueSelector()),
		)
		if err != nil {
			p.err = err
			return
		}
		if err := prd.Start(); err != nil {
			p.err = err
			return
		}
		p.p = prd
	})
}

// Publish sends the envelope as JSON, sharded by key. It returns only after
// the broker acks (SendSync), so a caller that advances a cursor afterwards
// knows the event is on the topic.
func (p *Publisher) Publish(ctx context.Context, env event.Envelope, key string) error {
	p.init()
	if p.err != nil {
		return p.err
	}

	b, err := json.Marshal(env)
	if err != nil {
		return err
	}

	m := primitive.NewMessage(p.opt.Topic, b)
	m.WithShardingKey(key)
	if p.opt.Tag != "" {
		m.WithTag(p.opt.Tag)
	}

	if _, err := p.p.SendSync(ctx, m); err != nil {
		return fmt.Errorf("rocketmq publish: %w", err)
	}
	return nil
}

func (p *Publisher) Close() error {
	if p.p != nil {
		return p.p.Shutdown()
	}
	return nil
}
