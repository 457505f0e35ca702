package mock

import (
	"context"
	"fmt"
	"sync"

	"github.com/miladsoleymani/eventbus/core"
)

// Client is a test double for core.Client. Set the exported fields to inject
// failures; read the accessors to assert on recorded calls.
type Client struct {
	ProducerErr     error
	InitErr         error
	SendErr         error
	SendResult      []core.DeliveryResult
	ConsumerErr     error
	ConsumerInitErr error
	CommitErr       error

	// DistinctSender makes Producer.Init return a separate Sender instead of nil.
	DistinctSender bool

	// InitGate, when set, blocks Producer.Init until it is closed.
	InitGate chan struct{}

	mu            sync.Mutex
	producerCfgs  []core.ConnectionConfig
	producerInits int
	sent          []core.OutgoingMessage
	sentBy        []string
	consumerCfgs  []core.GroupConsumerConfig
	consumers     []*Consumer
}

func NewClient() *Client {
	return &Client{}
}

func (c *Client) NewProducer(cfg core.ConnectionConfig) (core.Producer, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.producerCfgs = append(c.producerCfgs, cfg)
	if c.ProducerErr != nil {
		return nil, c.ProducerErr
	}
	return &Producer{client: c}, nil
}

func (c *Client) NewGroupConsumer(cfg core.GroupConsumerConfig) (core.GroupConsumer, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.consumerCfgs = append(c.consumerCfgs, cfg)
	if c.ConsumerErr != nil {
		return nil, c.ConsumerErr
	}
	cons := &Consumer{client: c, cfg: cfg}
	c.consumers = append(c.consumers, cons)
	return cons, nil
}

// ProducerConfigs returns the configs passed to NewProducer.
func (c *Client) ProducerConfigs() []core.ConnectionConfig {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]core.ConnectionConfig, len(c.producerCfgs))
	copy(out, c.producerCfgs)
	return out
}

// ProducerInits returns how many times Producer.Init was called.
func (c *Client) ProducerInits() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.producerInits
}

// Sent returns all messages passed to Send.
func (c *Client) Sent() []core.OutgoingMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]core.OutgoingMessage, len(c.sent))
	copy(out, c.sent)
	return out
}

// SentBy returns, per sent message, "producer" or "sender" depending on
// which handle sent it.
func (c *Client) SentBy() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.sentBy))
	copy(out, c.sentBy)
	return out
}

// ConsumerConfigs returns the configs passed to NewGroupConsumer.
func (c *Client) ConsumerConfigs() []core.GroupConsumerConfig {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]core.GroupConsumerConfig, len(c.consumerCfgs))
	copy(out, c.consumerCfgs)
	return out
}

// Consumers returns every consumer constructed so far.
func (c *Client) Consumers() []*Consumer {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*Consumer, len(c.consumers))
	copy(out, c.consumers)
	return out
}

func (c *Client) send(by string, msg core.OutgoingMessage) ([]core.DeliveryResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, msg)
	c.sentBy = append(c.sentBy, by)
	if c.SendErr != nil {
		return nil, c.SendErr
	}
	return c.SendResult, nil
}

// Producer is the core.Producer returned by Client.NewProducer. It can send
// on its own.
type Producer struct {
	client *Client
}

func (p *Producer) Init(ctx context.Context) (core.Sender, error) {
	c := p.client
	c.mu.Lock()
	c.producerInits++
	gate := c.InitGate
	c.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.InitErr != nil {
		return nil, c.InitErr
	}
	if c.DistinctSender {
		return &Sender{client: c}, nil
	}
	return nil, nil
}

func (p *Producer) Send(_ context.Context, msg core.OutgoingMessage) ([]core.DeliveryResult, error) {
	return p.client.send("producer", msg)
}

// Sender is the distinct send handle returned by Init when DistinctSender is set.
type Sender struct {
	client *Client
}

func (s *Sender) Send(_ context.Context, msg core.OutgoingMessage) ([]core.DeliveryResult, error) {
	return s.client.send("sender", msg)
}

// Consumer is the core.GroupConsumer returned by Client.NewGroupConsumer.
type Consumer struct {
	client *Client
	cfg    core.GroupConsumerConfig

	mu         sync.Mutex
	initCalls  int
	strategies []core.Strategy
	commits    []core.OffsetCommit
}

func (c *Consumer) Init(_ context.Context, strategies []core.Strategy) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.initCalls++
	c.strategies = strategies

	c.client.mu.Lock()
	err := c.client.ConsumerInitErr
	c.client.mu.Unlock()
	return err
}

func (c *Consumer) CommitOffset(_ context.Context, oc core.OffsetCommit) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.commits = append(c.commits, oc)

	c.client.mu.Lock()
	err := c.client.CommitErr
	c.client.mu.Unlock()
	return err
}

// Config returns the config the consumer was constructed with.
func (c *Consumer) Config() core.GroupConsumerConfig { return c.cfg }

// InitCalls returns how many times Init was called.
func (c *Consumer) InitCalls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.initCalls
}

// Strategies returns the strategies passed to the last Init.
func (c *Consumer) Strategies() []core.Strategy {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.strategies
}

// Commits returns all offsets passed to CommitOffset.
func (c *Consumer) Commits() []core.OffsetCommit {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]core.OffsetCommit, len(c.commits))
	copy(out, c.commits)
	return out
}

// Deliver simulates the broker handing a message set to the registered
// handler for topic, the way the delivery loop of a real client does.
func (c *Consumer) Deliver(ctx context.Context, set core.MessageSet, topic string, partition int32) error {
	for _, s := range c.Strategies() {
		for _, sub := range s.Subscriptions {
			if sub == topic {
				return s.Handler(ctx, set, topic, partition)
			}
		}
	}
	return fmt.Errorf("mock: no handler registered for topic %q", topic)
}
