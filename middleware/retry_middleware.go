package middleware

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"sensor-rpc/message"
	"sensor-rpc/rpcerr"
)

// RetryMiddleware retries calls that failed to connect, with exponential backoff.
// Only *rpcerr.ConnectError is retried: nothing was written, so the controller never saw
// the request. Every other failure is returned immediately.
func RetryMiddleware(maxRetries int, baseDelay time.Duration) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *message.Request) (any, error) {
			result, err := next(ctx, req)
			for i := 0; i < maxRetries; i++ {
				var connectErr *rpcerr.ConnectError
				if err == nil || !errors.As(err, &connectErr) {
					return result, err
				}

				zerolog.Ctx(ctx).Warn().Err(err).Int("attempt", i+1).Msg("retrying rpc call")

				timer := time.NewTimer(baseDelay * time.Duration(1<<i))
				select {
				case <-ctx.Done():
					timer.Stop()
					return nil, err
				case <-timer.C:
				}
				result, err = next(ctx, req)
			}
			return result, err
		}
	}
}
