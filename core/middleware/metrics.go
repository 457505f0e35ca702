package middleware

import (
	"context"
	"time"

	"github.com/miladsoleymani/eventbus/core"
)

// MetricsCollector is the interface that metrics backends must implement.
// This keeps the middleware decoupled from any specific metrics library.
type MetricsCollector interface {
	// MessageProcessed records that a message of the given event was handled.
	// duration is processing time and err is nil on success.
	MessageProcessed(event string, duration time.Duration, err error)
}

// Metrics returns middleware that reports processing metrics for event to
// the given collector.
func Metrics(event string, collector MetricsCollector) core.Middleware {
	return func(next core.Handler) core.Handler {
		return func(ctx context.Context, value []byte) error {
			start := time.Now()
			err := next(ctx, value)
			collector.MessageProcessed(event, time.Since(start), err)
			return err
		}
	}
}
