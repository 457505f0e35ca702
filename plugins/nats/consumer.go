package nats

import (
	"context"
	"fmt"
	"sync"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"go.uber.org/zap"

	"github.com/miladsoleymani/eventbus/core"
)

type pendingKey struct {
	topic string
	seq   int64
}

type consumer struct {
	cfg    core.GroupConsumerConfig
	opts   options
	logger *zap.Logger

	mu      sync.Mutex
	conn    *nats.Conn
	subs    []jetstream.ConsumeContext
	pending map[pendingKey]jetstream.Msg
	cancel  context.CancelFunc
	closed  bool
}

func newConsumer(cfg core.GroupConsumerConfig, opts options) *consumer {
	return &consumer{
		cfg:     cfg,
		opts:    opts,
		logger:  opts.logger.With(zap.String("group", cfg.GroupID)),
		pending: make(map[pendingKey]jetstream.Msg),
	}
}

// Init creates a stream and a durable consumer per subscribed subject and
// starts consuming.
func (c *consumer) Init(ctx context.Context, strategies []core.Strategy) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return core.ErrClientClosed
	}
	if c.conn != nil {
		return fmt.Errorf("eventbus/nats: consumer %q already initialized", c.cfg.GroupID)
	}

	nc, js, err := connect(c.cfg.ConnectionString, "eventbus-"+c.cfg.GroupID)
	if err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(context.Background())
	policy, startSeq := deliverPolicy(c.cfg.StartingOffset)
	durable := sanitizeStreamName(c.cfg.GroupID)

	var subs []jetstream.ConsumeContext
	fail := func(err error) error {
		for _, s := range subs {
			s.Stop()
		}
		cancel()
		nc.Close()
		return err
	}

	for _, s := range strategies {
		for _, topic := range s.Subscriptions {
			stream, err := ensureStream(ctx, js, topic, c.opts)
			if err != nil {
				return fail(err)
			}

			cons, err := stream.CreateOrUpdateConsumer(ctx, jetstream.ConsumerConfig{
				Durable:       durable,
				AckPolicy:     jetstream.AckExplicitPolicy,
				AckWait:       c.opts.ackWait,
				MaxDeliver:    c.opts.maxDeliver,
				MaxAckPending: 1,
				DeliverPolicy: policy,
				OptStartSeq:   startSeq,
			})
			if err != nil {
				return fail(fmt.Errorf("eventbus/nats: create consumer %q: %w", durable, err))
			}

			cc, err := cons.Consume(c.dispatch(runCtx, topic, s.Handler))
			if err != nil {
				return fail(fmt.Errorf("eventbus/nats: start consume on %q: %w", durable, err))
			}
			subs = append(subs, cc)
		}
	}

	c.conn = nc
	c.subs = subs
	c.cancel = cancel
	return nil
}

// dispatch returns the JetStream callback for topic. Callbacks run one at a
// time per consumer; a failed delivery is naked so the server redelivers it.
func (c *consumer) dispatch(ctx context.Context, topic string, h core.DeliveryHandler) jetstream.MessageHandler {
	return func(msg jetstream.Msg) {
		md, err := msg.Metadata()
		if err != nil {
			c.logger.Error("nats metadata", zap.String("topic", topic), zap.Error(err))
			_ = msg.Nak()
			return
		}

		key := pendingKey{topic: topic, seq: int64(md.Sequence.Stream)}
		c.mu.Lock()
		c.pending[key] = msg
		c.mu.Unlock()
		defer func() {
			c.mu.Lock()
			delete(c.pending, key)
			c.mu.Unlock()
		}()

		set := core.MessageSet{{Offset: key.seq, Message: core.Message{Value: msg.Data()}}}
		if err := h(ctx, set, topic, 0); err != nil {
			c.logger.Warn("nats delivery failed",
				zap.String("topic", topic),
				zap.Int64("offset", key.seq),
				zap.Error(err),
			)
			_ = msg.Nak()
		}
	}
}

// CommitOffset acks the pending message at oc and waits for the server to
// confirm.
func (c *consumer) CommitOffset(ctx context.Context, oc core.OffsetCommit) error {
	c.mu.Lock()
	msg, ok := c.pending[pendingKey{topic: oc.Topic, seq: oc.Offset}]
	closed := c.closed
	c.mu.Unlock()

	if closed {
		return core.ErrClientClosed
	}
	if !ok {
		return fmt.Errorf("eventbus/nats: commit %s@%d: %w", oc.Topic, oc.Offset, core.ErrUnknownOffset)
	}
	if err := msg.DoubleAck(ctx); err != nil {
		return fmt.Errorf("eventbus/nats: ack: %w", err)
	}
	return nil
}

// Close stops all consumers and drains the connection.
func (c *consumer) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true

	for _, s := range c.subs {
		s.Stop()
	}
	if c.cancel != nil {
		c.cancel()
	}
	if c.conn != nil {
		c.conn.Close()
	}
	return nil
}
