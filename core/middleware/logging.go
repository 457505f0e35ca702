package middleware

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/miladsoleymani/eventbus/core"
)

// Logging returns middleware that logs message processing duration and errors.
func Logging(logger *zap.Logger) core.Middleware {
	return func(next core.Handler) core.Handler {
		return func(ctx context.Context, value []byte) error {
			start := time.Now()
			err := next(ctx, value)
			fields := []zap.Field{
				zap.Int("bytes", len(value)),
				zap.Duration("elapsed", time.Since(start)),
			}

			if err != nil {
				logger.Error("handle message", append(fields, zap.Error(err))...)
			} else {
				logger.Info("handle message", fields...)
			}
			return err
		}
	}
}
