// Package rabbitmq provides a broker client for RabbitMQ. Topics are routing
// keys on a topic exchange, each consumer group owns a durable queue bound to
// its topic, and the channel delivery tag stands in for the offset.
package rabbitmq

import (
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/miladsoleymani/eventbus/broker"
	"github.com/miladsoleymani/eventbus/core"
)

func init() {
	broker.Register("rabbitmq", func(cfg broker.Config) (core.Client, error) {
		return New(optsFromConfig(cfg)...), nil
	})
}

// Client implements core.Client for RabbitMQ using amqp091-go.
//
// Design decisions:
//   - One connection and channel per producer and per group consumer.
//   - Producers use publisher confirms so Send returns once the broker has
//     taken responsibility for the message.
//   - Manual ack mode; CommitOffset acks, a failed handler nacks.
//   - Prefetch 1 by default so a queue is handled strictly in order.
type Client struct {
	opts options
}

// New creates a RabbitMQ Client.
func New(fns ...Option) *Client {
	opts := defaults()
	for _, fn := range fns {
		fn(&opts)
	}
	return &Client{opts: opts}
}

// NewProducer returns a producer for the AMQP URI in cfg.ConnectionString.
func (c *Client) NewProducer(cfg core.ConnectionConfig) (core.Producer, error) {
	if cfg.ConnectionString == "" {
		return nil, fmt.Errorf("eventbus/rabbitmq: connection string is required")
	}
	return &producer{uri: cfg.ConnectionString, opts: c.opts}, nil
}

// NewGroupConsumer returns a consumer for the AMQP URI in cfg.ConnectionString.
// Queues keep messages from the moment they are declared, so the earliest
// policy is the queue's natural behavior; the latest policy purges the queue
// on Init.
func (c *Client) NewGroupConsumer(cfg core.GroupConsumerConfig) (core.GroupConsumer, error) {
	if cfg.ConnectionString == "" {
		return nil, fmt.Errorf("eventbus/rabbitmq: connection string is required")
	}
	if cfg.GroupID == "" {
		return nil, fmt.Errorf("eventbus/rabbitmq: group id is required")
	}
	if cfg.StartingOffset != core.EarliestOffset && cfg.StartingOffset != core.LatestOffset {
		return nil, fmt.Errorf("eventbus/rabbitmq: starting offset %d not supported", cfg.StartingOffset)
	}
	return newConsumer(cfg, c.opts), nil
}

// dial opens a connection and a channel.
func dial(uri string) (*amqp.Connection, *amqp.Channel, error) {
	conn, err := amqp.Dial(uri)
	if err != nil {
		return nil, nil, fmt.Errorf("eventbus/rabbitmq: dial: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("eventbus/rabbitmq: open channel: %w", err)
	}
	return conn, ch, nil
}

// declareExchange declares the configured exchange unless the default
// exchange is used.
func declareExchange(ch *amqp.Channel, opts options) error {
	if opts.exchange == "" {
		return nil
	}
	if err := ch.ExchangeDeclare(opts.exchange, opts.exchangeType, opts.durable, false, false, false, nil); err != nil {
		return fmt.Errorf("eventbus/rabbitmq: declare exchange %q: %w", opts.exchange, err)
	}
	return nil
}

// queueName names the queue a group reads topic from. With the default
// exchange the queue must carry the topic name.
func queueName(group, topic string, opts options) string {
	if opts.exchange == "" || group == topic {
		return topic
	}
	return group + "." + topic
}

// optsFromConfig extracts options from broker.Config.
func optsFromConfig(cfg broker.Config) []Option {
	opts := []Option{WithLogger(cfg.Logger)}
	if ex, ok := cfg.Extra["exchange"].(string); ok {
		kind := "topic"
		if k, ok := cfg.Extra["exchange_type"].(string); ok {
			kind = k
		}
		opts = append(opts, WithExchange(ex, kind))
	}
	if pf, ok := cfg.Extra["prefetch_count"].(int); ok {
		opts = append(opts, WithPrefetchCount(pf))
	}
	return opts
}
