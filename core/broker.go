package core

import "context"

// Client is the broker-client capability the Publisher and Subscriber are built on.
// Each broker plugin must implement this interface.
type Client interface {
	// NewProducer constructs a producer. It must not perform network I/O;
	// connecting happens in Producer.Init.
	NewProducer(cfg ConnectionConfig) (Producer, error)

	// NewGroupConsumer constructs a consumer-group member.
	NewGroupConsumer(cfg GroupConsumerConfig) (GroupConsumer, error)
}

// Producer is a constructed but not yet initialized producer.
//
// Init may return a distinct Sender, or nil when the producer itself is the
// send-capable handle. The Publisher resolves this once.
type Producer interface {
	Init(ctx context.Context) (Sender, error)
}

// Sender sends a single message and reports where it landed.
type Sender interface {
	Send(ctx context.Context, msg OutgoingMessage) ([]DeliveryResult, error)
}

// GroupConsumer is a consumer-group member. Init starts delivery for every
// strategy; from then on the client calls each strategy's handler from its own
// delivery goroutine and waits for it to return before handing over the next
// message set of the same partition.
type GroupConsumer interface {
	Init(ctx context.Context, strategies []Strategy) error
	CommitOffset(ctx context.Context, c OffsetCommit) error
}

// Strategy binds a handler to the topics it receives.
type Strategy struct {
	Subscriptions []string
	Handler       DeliveryHandler
}
