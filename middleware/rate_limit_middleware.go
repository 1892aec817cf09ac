package middleware

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"sensor-rpc/message"
	"sensor-rpc/rpcerr"
)

// RateLimitMiddleware throttles calls to the controller with a token bucket.
// Calls wait for a token; if the wait would outlast ctx the call fails without dialing
// and reports the same timeout or cancellation a slow controller would.
func RateLimitMiddleware(r float64, burst int) Middleware {
	limiter := rate.NewLimiter(rate.Limit(r), burst)
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *message.Request) (any, error) {
			start := time.Now()
			if err := limiter.Wait(ctx); err != nil {
				return nil, rateLimitError(ctx, req, start, err)
			}
			return next(ctx, req)
		}
	}
}

func rateLimitError(ctx context.Context, req *message.Request, start time.Time, err error) error {
	switch {
	case ctx.Err() == context.Canceled:
		return fmt.Errorf("rate limit: %w", ctx.Err())
	case ctx.Err() == context.DeadlineExceeded:
		return &rpcerr.TimeoutError{Method: req.Method, Elapsed: time.Since(start), Err: ctx.Err()}
	}
	// Wait refuses up front when the next token lands after the deadline.
	if _, ok := ctx.Deadline(); ok {
		return &rpcerr.TimeoutError{
			Method:  req.Method,
			Elapsed: time.Since(start),
			Err:     fmt.Errorf("rate limit: %v: %w", err, context.DeadlineExceeded),
		}
	}
	return fmt.Errorf("rate limit exceeded: %w", err)
}
