package middleware

import (
	"context"
	"time"

	"sensor-rpc/message"
	"sensor-rpc/observability"
	"sensor-rpc/rpcerr"
)

// MetricsMiddleware records call counts and latency per method and outcome.
func MetricsMiddleware() Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *message.Request) (any, error) {
			start := time.Now()
			result, err := next(ctx, req)
			observability.RecordCall(req.Method, rpcerr.Kind(err), time.Since(start))
			return result, err
		}
	}
}
