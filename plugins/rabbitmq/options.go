package rabbitmq

import "go.uber.org/zap"

// Option configures the RabbitMQ client.
type Option func(*options)

type options struct {
	// Exchange settings
	exchange     string
	exchangeType string

	// Queue settings
	durable    bool
	autoDelete bool

	// Consumer settings
	prefetchCount int
	requeueOnNack bool

	logger *zap.Logger
}

func defaults() options {
	return options{
		exchange:      "eventbus",
		exchangeType:  "topic", // direct, fanout, topic, headers
		durable:       true,
		prefetchCount: 1,
		requeueOnNack: true,
		logger:        zap.NewNop(),
	}
}

// WithExchange sets the exchange name and type. An empty name publishes
// through the default exchange straight to the queue named after the topic.
func WithExchange(name, kind string) Option {
	return func(o *options) {
		o.exchange = name
		o.exchangeType = kind
	}
}

// WithDurable controls whether exchanges and queues survive broker restart.
func WithDurable(d bool) Option {
	return func(o *options) { o.durable = d }
}

// WithPrefetchCount sets how many messages are delivered before requiring
// a commit. Values above 1 let a queue's deliveries overlap.
func WithPrefetchCount(n int) Option {
	return func(o *options) { o.prefetchCount = n }
}

// WithRequeueOnNack controls whether messages whose handler failed are requeued.
func WithRequeueOnNack(requeue bool) Option {
	return func(o *options) { o.requeueOnNack = requeue }
}

// WithAutoDelete causes the queue to be deleted when the last consumer disconnects.
func WithAutoDelete(d bool) Option {
	return func(o *options) { o.autoDelete = d }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}
