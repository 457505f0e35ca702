package kafka

import (
	"context"
	"fmt"
	"sync"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/miladsoleymani/eventbus/core"
)

type consumer struct {
	addrs  []string
	group  string
	start  int64
	opts   options
	logger *zap.Logger

	mu      sync.Mutex
	readers map[string]*kafka.Reader
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started bool
	closed  bool
}

// Init checks the brokers are reachable, then starts one reader per
// subscribed topic. Delivery runs until Close.
func (c *consumer) Init(ctx context.Context, strategies []core.Strategy) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return core.ErrClientClosed
	}
	if c.started {
		return fmt.Errorf("eventbus/kafka: consumer %q already initialized", c.group)
	}

	var topics []string
	handlers := make(map[string]core.DeliveryHandler)
	for _, s := range strategies {
		for _, topic := range s.Subscriptions {
			if _, dup := handlers[topic]; dup {
				return fmt.Errorf("eventbus/kafka: topic %q subscribed twice", topic)
			}
			handlers[topic] = s.Handler
			topics = append(topics, topic)
		}
	}

	probe := &kafka.Client{Addr: kafka.TCP(c.addrs...), Timeout: c.opts.timeout}
	if c.opts.dialer != nil {
		probe.Transport = &kafka.Transport{TLS: c.opts.dialer.TLS, SASL: c.opts.dialer.SASLMechanism}
	}
	if _, err := probe.Metadata(ctx, &kafka.MetadataRequest{Topics: topics}); err != nil {
		return fmt.Errorf("eventbus/kafka: connect to %v: %w", c.addrs, err)
	}

	runCtx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.started = true

	for _, topic := range topics {
		cfg := kafka.ReaderConfig{
			Brokers:     c.addrs,
			Topic:       topic,
			GroupID:     c.group,
			MinBytes:    c.opts.minBytes,
			MaxBytes:    c.opts.maxBytes,
			MaxWait:     c.opts.maxWait,
			StartOffset: c.start,
		}
		if c.opts.dialer != nil {
			cfg.Dialer = c.opts.dialer
		}

		r := kafka.NewReader(cfg)
		c.readers[topic] = r

		c.wg.Add(1)
		go func(r *kafka.Reader, h core.DeliveryHandler) {
			defer c.wg.Done()
			c.consumeLoop(runCtx, r, h)
		}(r, handlers[topic])
	}
	return nil
}

// consumeLoop fetches messages and hands each one to the handler as a
// single-message set, waiting for it before fetching the next.
func (c *consumer) consumeLoop(ctx context.Context, r *kafka.Reader, handler core.DeliveryHandler) {
	topic := r.Config().Topic
	for {
		m, err := r.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() == nil {
				c.logger.Error("kafka fetch", zap.String("topic", topic), zap.Error(err))
			}
			return
		}

		set := core.MessageSet{{Offset: m.Offset, Message: core.Message{Value: m.Value}}}
		if err := handler(ctx, set, m.Topic, int32(m.Partition)); err != nil {
			// Offset is NOT committed. The message will be redelivered
			// after rebalance or restart.
			c.logger.Warn("kafka delivery failed",
				zap.String("topic", m.Topic),
				zap.Int("partition", m.Partition),
				zap.Int64("offset", m.Offset),
				zap.Error(err),
			)
		}
	}
}

// CommitOffset commits the handled message at oc; the group resumes after it.
func (c *consumer) CommitOffset(ctx context.Context, oc core.OffsetCommit) error {
	c.mu.Lock()
	r, ok := c.readers[oc.Topic]
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return core.ErrClientClosed
	}
	if !ok {
		return fmt.Errorf("eventbus/kafka: commit %s[%d]@%d: %w", oc.Topic, oc.Partition, oc.Offset, core.ErrUnknownOffset)
	}

	err := r.CommitMessages(ctx, kafka.Message{
		Topic:     oc.Topic,
		Partition: int(oc.Partition),
		Offset:    oc.Offset,
	})
	if err != nil {
		return fmt.Errorf("eventbus/kafka: commit offset: %w", err)
	}
	return nil
}

// Close stops delivery and closes all readers.
func (c *consumer) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	if c.cancel != nil {
		c.cancel()
	}
	c.mu.Unlock()

	c.wg.Wait()

	var errs []error
	for _, r := range c.readers {
		if err := r.Close(); err != nil {
			errs = append(errs, fmt.Errorf("eventbus/kafka: close reader: %w", err))
		}
	}
	if len(errs) > 0 {
		return errs[0]
	}
	return nil
}
