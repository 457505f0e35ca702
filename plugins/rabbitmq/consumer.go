package rabbitmq

import (
	"context"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/miladsoleymani/eventbus/core"
)

type pendingKey struct {
	topic string
	tag   uint64
}

type consumer struct {
	cfg    core.GroupConsumerConfig
	opts   options
	logger *zap.Logger

	mu      sync.Mutex
	conn    *amqp.Connection
	ch      *amqp.Channel
	pending map[pendingKey]amqp.Delivery
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	closed  bool
}

func newConsumer(cfg core.GroupConsumerConfig, opts options) *consumer {
	return &consumer{
		cfg:     cfg,
		opts:    opts,
		logger:  opts.logger.With(zap.String("group", cfg.GroupID)),
		pending: make(map[pendingKey]amqp.Delivery),
	}
}

// Init declares and binds one queue per subscribed topic and starts consuming.
func (c *consumer) Init(ctx context.Context, strategies []core.Strategy) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return core.ErrClientClosed
	}
	if c.conn != nil {
		return fmt.Errorf("eventbus/rabbitmq: consumer %q already initialized", c.cfg.GroupID)
	}

	conn, ch, err := dial(c.cfg.ConnectionString)
	if err != nil {
		return err
	}
	runCtx, cancel := context.WithCancel(context.Background())
	fail := func(err error) error {
		cancel()
		closeAll(ch, conn)
		return err
	}

	if err := ch.Qos(c.opts.prefetchCount, 0, false); err != nil {
		return fail(fmt.Errorf("eventbus/rabbitmq: set qos: %w", err))
	}
	if err := declareExchange(ch, c.opts); err != nil {
		return fail(err)
	}

	type route struct {
		topic      string
		deliveries <-chan amqp.Delivery
		handler    core.DeliveryHandler
	}
	var routes []route

	for _, s := range strategies {
		for _, topic := range s.Subscriptions {
			if err := ctx.Err(); err != nil {
				return fail(err)
			}

			name := queueName(c.cfg.GroupID, topic, c.opts)
			q, err := ch.QueueDeclare(name, c.opts.durable, c.opts.autoDelete, false, false, nil)
			if err != nil {
				return fail(fmt.Errorf("eventbus/rabbitmq: declare queue %q: %w", name, err))
			}
			if c.opts.exchange != "" {
				if err := ch.QueueBind(q.Name, topic, c.opts.exchange, false, nil); err != nil {
					return fail(fmt.Errorf("eventbus/rabbitmq: bind queue %q: %w", q.Name, err))
				}
			}
			if c.cfg.StartingOffset == core.LatestOffset {
				if _, err := ch.QueuePurge(q.Name, false); err != nil {
					return fail(fmt.Errorf("eventbus/rabbitmq: purge queue %q: %w", q.Name, err))
				}
			}

			deliveries, err := ch.ConsumeWithContext(runCtx, q.Name, "", false, false, false, false, nil)
			if err != nil {
				return fail(fmt.Errorf("eventbus/rabbitmq: consume %q: %w", q.Name, err))
			}
			routes = append(routes, route{topic: topic, deliveries: deliveries, handler: s.Handler})
		}
	}

	c.conn, c.ch, c.cancel = conn, ch, cancel
	for _, r := range routes {
		c.wg.Add(1)
		go func(r route) {
			defer c.wg.Done()
			c.consumeLoop(runCtx, r.topic, r.deliveries, r.handler)
		}(r)
	}
	return nil
}

// consumeLoop processes deliveries until context cancellation or channel close.
func (c *consumer) consumeLoop(ctx context.Context, topic string, deliveries <-chan amqp.Delivery, handler core.DeliveryHandler) {
	for {
		select {
		case <-ctx.Done():
			return
		case d, ok := <-deliveries:
			if !ok {
				return // channel closed
			}
			c.deliver(ctx, topic, d, handler)
		}
	}
}

func (c *consumer) deliver(ctx context.Context, topic string, d amqp.Delivery, handler core.DeliveryHandler) {
	key := pendingKey{topic: topic, tag: d.DeliveryTag}
	c.mu.Lock()
	c.pending[key] = d
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.pending, key)
		c.mu.Unlock()
	}()

	set := core.MessageSet{{Offset: int64(d.DeliveryTag), Message: core.Message{Value: d.Body}}}
	if err := handler(ctx, set, topic, 0); err != nil {
		c.logger.Warn("rabbitmq delivery failed",
			zap.String("topic", topic),
			zap.Uint64("tag", d.DeliveryTag),
			zap.Error(err),
		)
		_ = d.Nack(false, c.opts.requeueOnNack)
	}
}

// CommitOffset acks the pending delivery at oc.
func (c *consumer) CommitOffset(_ context.Context, oc core.OffsetCommit) error {
	c.mu.Lock()
	d, ok := c.pending[pendingKey{topic: oc.Topic, tag: uint64(oc.Offset)}]
	closed := c.closed
	c.mu.Unlock()

	if closed {
		return core.ErrClientClosed
	}
	if !ok || oc.Offset < 0 {
		return fmt.Errorf("eventbus/rabbitmq: commit %s@%d: %w", oc.Topic, oc.Offset, core.ErrUnknownOffset)
	}
	if err := d.Ack(false); err != nil {
		return fmt.Errorf("eventbus/rabbitmq: ack: %w", err)
	}
	return nil
}

// Close stops consuming and tears down the channel and connection.
func (c *consumer) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	cancel, ch, conn := c.cancel, c.ch, c.conn
	c.mu.Unlock()

	if conn == nil {
		return nil
	}
	cancel()
	c.wg.Wait()
	return closeAll(ch, conn)
}
