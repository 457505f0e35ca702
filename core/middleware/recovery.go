package middleware

import (
	"context"
	"fmt"
	"runtime"

	"go.uber.org/zap"

	"github.com/miladsoleymani/eventbus/core"
)

// Recovery returns middleware that recovers from panics in handlers,
// logs the stack trace, and returns the panic as an error wrapping
// core.ErrHandlerPanic.
func Recovery(logger *zap.Logger) core.Middleware {
	return func(next core.Handler) core.Handler {
		return func(ctx context.Context, value []byte) (err error) {
			defer func() {
				if r := recover(); r != nil {
					buf := make([]byte, 4096)
					n := runtime.Stack(buf, false)
					logger.Error("panic recovered",
						zap.Any("panic", r),
						zap.ByteString("stack", buf[:n]),
					)
					err = fmt.Errorf("%w: %v", core.ErrHandlerPanic, r)
				}
			}()
			return next(ctx, value)
		}
	}
}
