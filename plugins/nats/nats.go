// Package nats provides a broker client for NATS JetStream. Every topic maps
// to a subject backed by its own stream; the stream sequence is the offset and
// the partition is always 0.
package nats

import (
	"context"
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/miladsoleymani/eventbus/broker"
	"github.com/miladsoleymani/eventbus/core"
)

func init() {
	broker.Register("nats", func(cfg broker.Config) (core.Client, error) {
		return New(optsFromConfig(cfg)...), nil
	})
}

// Client implements core.Client for NATS JetStream.
//
// Design decisions:
//   - One NATS connection per producer and per group consumer.
//   - Streams are created (or updated) on first use of a subject.
//   - Each group consumer is a durable consumer named after the group with
//     explicit acks; CommitOffset acks, a failed handler naks for redelivery.
//   - MaxAckPending is 1 so a subject is delivered strictly in order.
type Client struct {
	opts options
}

// New creates a NATS Client.
func New(fns ...Option) *Client {
	opts := defaults()
	for _, fn := range fns {
		fn(&opts)
	}
	return &Client{opts: opts}
}

// NewProducer returns a producer for the NATS URL in cfg.ConnectionString.
func (c *Client) NewProducer(cfg core.ConnectionConfig) (core.Producer, error) {
	if cfg.ConnectionString == "" {
		return nil, fmt.Errorf("eventbus/nats: connection string is required")
	}
	return &producer{url: cfg.ConnectionString, opts: c.opts}, nil
}

// NewGroupConsumer returns a durable consumer for the NATS URL in
// cfg.ConnectionString.
func (c *Client) NewGroupConsumer(cfg core.GroupConsumerConfig) (core.GroupConsumer, error) {
	if cfg.ConnectionString == "" {
		return nil, fmt.Errorf("eventbus/nats: connection string is required")
	}
	if cfg.GroupID == "" {
		return nil, fmt.Errorf("eventbus/nats: group id is required")
	}
	return newConsumer(cfg, c.opts), nil
}

// connect dials url and opens a JetStream context.
func connect(url, name string) (*nats.Conn, jetstream.JetStream, error) {
	nc, err := nats.Connect(url, nats.Name(name))
	if err != nil {
		return nil, nil, fmt.Errorf("eventbus/nats: connect to %q: %w", url, err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, nil, fmt.Errorf("eventbus/nats: init jetstream: %w", err)
	}
	return nc, js, nil
}

// ensureStream creates or updates the stream backing topic.
func ensureStream(ctx context.Context, js jetstream.JetStream, topic string, opts options) (jetstream.Stream, error) {
	name := sanitizeStreamName(topic)
	stream, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      name,
		Subjects:  []string{topic},
		MaxMsgs:   opts.maxMsgs,
		MaxBytes:  opts.maxBytes,
		MaxAge:    opts.maxAge,
		Replicas:  opts.replicas,
		Retention: opts.retention,
		Storage:   opts.storage,
	})
	if err != nil {
		return nil, fmt.Errorf("eventbus/nats: create stream %q: %w", name, err)
	}
	return stream, nil
}

// sanitizeStreamName converts a subject pattern to a valid stream or
// durable name by replacing special characters.
func sanitizeStreamName(topic string) string {
	buf := make([]byte, len(topic))
	for i := 0; i < len(topic); i++ {
		c := topic[i]
		if c == '.' || c == '*' || c == '>' || c == ' ' {
			buf[i] = '-'
		} else {
			buf[i] = c
		}
	}
	return string(buf)
}

// deliverPolicy maps a core starting offset to a JetStream deliver policy.
func deliverPolicy(off int64) (jetstream.DeliverPolicy, uint64) {
	switch {
	case off == core.LatestOffset:
		return jetstream.DeliverNewPolicy, 0
	case off > 0:
		return jetstream.DeliverByStartSequencePolicy, uint64(off)
	}
	return jetstream.DeliverAllPolicy, 0
}

// optsFromConfig extracts options from broker.Config.
func optsFromConfig(cfg broker.Config) []Option {
	opts := []Option{WithLogger(cfg.Logger)}
	if v, ok := cfg.Extra["max_deliver"].(int); ok {
		opts = append(opts, WithMaxDeliver(v))
	}
	if v, ok := cfg.Extra["replicas"].(int); ok {
		opts = append(opts, WithReplicas(v))
	}
	if v, ok := cfg.Extra["storage"].(string); ok && v == "memory" {
		opts = append(opts, WithStorage(jetstream.MemoryStorage))
	}
	return opts
}
