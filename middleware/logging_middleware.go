package middleware

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"sensor-rpc/message"
	"sensor-rpc/rpcerr"
)

// LoggingMiddleware logs every call with a trace id, its duration and failure class.
// The trace id is also attached to the context logger seen by inner handlers.
func LoggingMiddleware(logger zerolog.Logger) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *message.Request) (any, error) {
			callLogger := logger.With().
				Str("trace_id", uuid.NewString()).
				Str("method", req.Method).
				Uint32("msg_id", req.ID).
				Logger()
			ctx = callLogger.WithContext(ctx)

			start := time.Now()
			result, err := next(ctx, req)
			duration := time.Since(start)

			if err != nil {
				callLogger.Error().Err(err).Str("kind", rpcerr.Kind(err)).Dur("duration", duration).Msg("rpc call failed")
				return nil, err
			}
			callLogger.Debug().Dur("duration", duration).Msg("rpc call")
			return result, nil
		}
	}
}
