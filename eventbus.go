// Package eventbus publishes and subscribes to events on partitioned,
// offset-ordered log brokers. It re-exports core types for convenience:
//
//	client, _ := broker.Create("kafka", broker.Config{})
//	pub := eventbus.NewPublisher(client)
//	pub.Publish(ctx, eventbus.PublishRequest{EventName: "orders.created", Buffer: b, Config: cfg})
package eventbus

import (
	"go.uber.org/zap"

	"github.com/miladsoleymani/eventbus/core"
)

// Re-export core types at the package level for ergonomic usage.
type (
	Client           = core.Client
	ConnectionConfig = core.ConnectionConfig
	Handler          = core.Handler
	Middleware       = core.Middleware
	Option           = core.Option
	DeliveryResult   = core.DeliveryResult
	PublishRequest   = core.PublishRequest
	SubscribeRequest = core.SubscribeRequest
	Publisher        = core.Publisher
	Subscriber       = core.Subscriber
)

// NewPublisher creates a Publisher bound to the given broker client.
func NewPublisher(c Client, opts ...Option) *Publisher {
	return core.NewPublisher(c, opts...)
}

// NewSubscriber creates a Subscriber bound to the given broker client.
func NewSubscriber(c Client, opts ...Option) *Subscriber {
	return core.NewSubscriber(c, opts...)
}

// WithLogger sets the logger used by a Publisher or Subscriber.
func WithLogger(l *zap.Logger) Option {
	return core.WithLogger(l)
}

// WithMiddleware wraps every subscribed handler; the first middleware is outermost.
func WithMiddleware(mws ...Middleware) Option {
	return core.WithMiddleware(mws...)
}
