// Package middleware wraps RPC client calls with cross-cutting behaviour.
//
// Chain(A, B, C)(invoke) → A(B(C(invoke)))
// Execution order: A.before → B.before → C.before → invoke → C.after → B.after → A.after
package middleware

import (
	"context"

	"sensor-rpc/message"
)

// HandlerFunc performs (or forwards) one call and returns its result.
type HandlerFunc func(ctx context.Context, req *message.Request) (any, error)

type Middleware func(next HandlerFunc) HandlerFunc

// Chain combines several middlewares into one, applied in the order given.
func Chain(middlewares ...Middleware) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		for i := len(middlewares) - 1; i >= 0; i-- {
			next = middlewares[i](next)
		}
		return next
	}
}
