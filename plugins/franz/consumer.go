package franz

import (
	"context"
	"fmt"
	"sync"

	"github.com/twmb/franz-go/pkg/kgo"
	"go.uber.org/zap"

	"github.com/miladsoleymani/eventbus/core"
)

// pollRecords keeps every delivered set to a single record.
const pollRecords = 1

type pendingKey struct {
	topic     string
	partition int32
	offset    int64
}

type consumer struct {
	group  string
	kopts  []kgo.Opt
	logger *zap.Logger

	mu      sync.Mutex
	client  *kgo.Client
	pending map[pendingKey]*kgo.Record
	cancel  context.CancelFunc
	done    chan struct{}
	closed  bool
}

func newConsumer(group string, kopts []kgo.Opt, logger *zap.Logger) *consumer {
	return &consumer{
		group:   group,
		kopts:   kopts,
		logger:  logger.With(zap.String("group", group)),
		pending: make(map[pendingKey]*kgo.Record),
	}
}

// Init joins the group for every subscribed topic and starts polling.
func (c *consumer) Init(ctx context.Context, strategies []core.Strategy) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return core.ErrClientClosed
	}
	if c.client != nil {
		return fmt.Errorf("eventbus/franz: consumer %q already initialized", c.group)
	}

	var topics []string
	handlers := make(map[string]core.DeliveryHandler)
	for _, s := range strategies {
		for _, topic := range s.Subscriptions {
			if _, dup := handlers[topic]; dup {
				return fmt.Errorf("eventbus/franz: topic %q subscribed twice", topic)
			}
			handlers[topic] = s.Handler
			topics = append(topics, topic)
		}
	}

	opts := append([]kgo.Opt{kgo.ConsumeTopics(topics...)}, c.kopts...)
	client, err := kgo.NewClient(opts...)
	if err != nil {
		return fmt.Errorf("eventbus/franz: create client: %w", err)
	}
	if err := client.Ping(ctx); err != nil {
		client.Close()
		return fmt.Errorf("eventbus/franz: ping: %w", err)
	}

	runCtx, cancel := context.WithCancel(context.Background())
	c.client = client
	c.cancel = cancel
	c.done = make(chan struct{})

	go c.pollLoop(runCtx, client, handlers)
	return nil
}

// pollLoop delivers records one at a time. Rebalances are held back while a
// record is being handled so its commit cannot land after revocation.
func (c *consumer) pollLoop(ctx context.Context, client *kgo.Client, handlers map[string]core.DeliveryHandler) {
	defer close(c.done)

	for {
		fetches := client.PollRecords(ctx, pollRecords)
		if fetches.IsClientClosed() || ctx.Err() != nil {
			return
		}

		fetches.EachError(func(topic string, partition int32, err error) {
			c.logger.Error("franz fetch",
				zap.String("topic", topic),
				zap.Int32("partition", partition),
				zap.Error(err),
			)
		})

		fetches.EachPartition(func(p kgo.FetchTopicPartition) {
			if len(p.Records) == 0 {
				return
			}
			h, ok := handlers[p.Topic]
			if !ok {
				return
			}

			set := make(core.MessageSet, 0, len(p.Records))
			for _, r := range p.Records {
				c.track(r)
				set = append(set, core.MessageSetItem{Offset: r.Offset, Message: core.Message{Value: r.Value}})
			}

			if err := h(ctx, set, p.Topic, p.Partition); err != nil {
				c.logger.Warn("franz delivery failed",
					zap.String("topic", p.Topic),
					zap.Int32("partition", p.Partition),
					zap.Int64("offset", set[0].Offset),
					zap.Error(err),
				)
			}
			c.untrack(p.Records)
		})

		client.AllowRebalance()
	}
}

func (c *consumer) track(r *kgo.Record) {
	c.mu.Lock()
	c.pending[pendingKey{r.Topic, r.Partition, r.Offset}] = r
	c.mu.Unlock()
}

func (c *consumer) untrack(rs []*kgo.Record) {
	c.mu.Lock()
	for _, r := range rs {
		delete(c.pending, pendingKey{r.Topic, r.Partition, r.Offset})
	}
	c.mu.Unlock()
}

// CommitOffset commits the delivered record at oc.
func (c *consumer) CommitOffset(ctx context.Context, oc core.OffsetCommit) error {
	c.mu.Lock()
	client := c.client
	closed := c.closed
	r, ok := c.pending[pendingKey{oc.Topic, oc.Partition, oc.Offset}]
	c.mu.Unlock()

	if closed {
		return core.ErrClientClosed
	}
	if !ok || client == nil {
		return fmt.Errorf("eventbus/franz: commit %s[%d]@%d: %w", oc.Topic, oc.Partition, oc.Offset, core.ErrUnknownOffset)
	}
	if err := client.CommitRecords(ctx, r); err != nil {
		return fmt.Errorf("eventbus/franz: commit offset: %w", err)
	}
	return nil
}

// Close stops polling and leaves the group.
func (c *consumer) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	client, cancel, done := c.client, c.cancel, c.done
	c.mu.Unlock()

	if client == nil {
		return nil
	}
	cancel()
	<-done
	client.Close()
	return nil
}
