package kafka

import (
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Option configures the Kafka client.
type Option func(*options)

type options struct {
	// Producer
	balancer     kafka.Balancer
	requiredAcks kafka.RequiredAcks
	timeout      time.Duration

	// Consumer
	minBytes int
	maxBytes int
	maxWait  time.Duration

	// General
	dialer *kafka.Dialer
	logger *zap.Logger
}

func defaults() options {
	return options{
		balancer:     &kafka.LeastBytes{},
		requiredAcks: kafka.RequireAll,
		timeout:      10 * time.Second,
		minBytes:     1,
		maxBytes:     10e6, // 10 MB
		maxWait:      500 * time.Millisecond,
		logger:       zap.NewNop(),
	}
}

// WithBalancer sets the partition balancer used by Send.
func WithBalancer(b kafka.Balancer) Option {
	return func(o *options) { o.balancer = b }
}

// WithRequiredAcks sets the acknowledgement level for produce requests.
func WithRequiredAcks(acks kafka.RequiredAcks) Option {
	return func(o *options) { o.requiredAcks = acks }
}

// WithTimeout bounds each request made by the producer.
func WithTimeout(d time.Duration) Option {
	return func(o *options) { o.timeout = d }
}

// WithMaxBytes sets the maximum bytes per fetch.
func WithMaxBytes(n int) Option {
	return func(o *options) { o.maxBytes = n }
}

// WithMaxWait sets the maximum wait time for fetches.
func WithMaxWait(d time.Duration) Option {
	return func(o *options) { o.maxWait = d }
}

// WithDialer sets a custom dialer for TLS/SASL connections.
func WithDialer(d *kafka.Dialer) Option {
	return func(o *options) { o.dialer = d }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}
