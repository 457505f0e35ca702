package franz

import (
	"github.com/twmb/franz-go/pkg/kgo"
	"go.uber.org/zap"
)

// Option configures the franz-go client.
type Option func(*options)

type options struct {
	autoCreateTopics bool
	extra            []kgo.Opt
	logger           *zap.Logger
}

func defaults() options {
	return options{
		logger: zap.NewNop(),
	}
}

// WithAutoTopicCreation lets producers create missing topics.
func WithAutoTopicCreation(allow bool) Option {
	return func(o *options) { o.autoCreateTopics = allow }
}

// WithClientOpts appends raw kgo options (TLS, SASL, timeouts) to every
// client the plugin creates.
func WithClientOpts(opts ...kgo.Opt) Option {
	return func(o *options) { o.extra = append(o.extra, opts...) }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}
