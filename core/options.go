package core

import "go.uber.org/zap"

// Option configures a Publisher or Subscriber.
type Option func(*options)

type options struct {
	logger      *zap.Logger
	middlewares []Middleware
}

func defaults() options {
	return options{logger: zap.NewNop()}
}

func buildOptions(fns []Option) options {
	opts := defaults()
	for _, fn := range fns {
		fn(&opts)
	}
	return opts
}

// WithLogger sets the logger. A nil logger is ignored.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithMiddleware appends handler middleware. Middleware is applied in
// registration order: the first registered runs outermost. Publishers
// ignore it.
func WithMiddleware(mws ...Middleware) Option {
	return func(o *options) { o.middlewares = append(o.middlewares, mws...) }
}

// applyMiddleware wraps a handler with middleware in reverse order.
// Given middleware [A, B, C], the call order is A -> B -> C -> handler.
func applyMiddleware(h Handler, mws []Middleware) Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}
