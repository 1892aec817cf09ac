package middleware

import (
	"context"
	"time"

	"sensor-rpc/message"
)

// TimeOutMiddleware bounds the inner call with a deadline. The transport closes the
// connection when the deadline passes, so the inner call returns promptly.
func TimeOutMiddleware(timeout time.Duration) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *message.Request) (any, error) {
			ctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()
			return next(ctx, req)
		}
	}
}
