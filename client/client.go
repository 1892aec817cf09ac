// Package client calls methods on the sensor controller.
//
// Every call owns one connection for its whole lifetime:
//
//	Call ─► middlewares ─► invoke: encode ─► resolve ─► dial ─► write ─► read…read ─► decode ─► close
//
// Responses are correlated by id even though a connection never carries more than one call.
package client

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"sensor-rpc/loadbalance"
	"sensor-rpc/message"
	"sensor-rpc/middleware"
	"sensor-rpc/protocol"
	"sensor-rpc/rpcerr"
	"sensor-rpc/transport"
)

type Client struct {
	opts options
	seq  atomic.Uint32

	mu          sync.RWMutex
	middlewares []middleware.Middleware
	handler     middleware.HandlerFunc
}

func NewClient(opts ...Option) *Client {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.registry != nil && o.balancer == nil {
		o.balancer = &loadbalance.RoundRobinBalancer{}
	}

	c := &Client{opts: o}
	c.Use(o.middlewares...)
	return c
}

// Use appends middlewares to the chain. Calls already in flight keep the old chain.
func (c *Client) Use(mws ...middleware.Middleware) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.middlewares = append(c.middlewares, mws...)
	chain := append([]middleware.Middleware{}, c.middlewares...)
	// The client deadline sits innermost so retries each get a fresh one.
	if c.opts.timeout > 0 {
		chain = append(chain, middleware.TimeOutMiddleware(c.opts.timeout))
	}
	c.handler = middleware.Chain(chain...)(c.invoke)
}

// Call invokes method on the controller and returns its decoded result.
// A nil params is sent as an empty list.
func (c *Client) Call(ctx context.Context, method string, params []any) (any, error) {
	req := &message.Request{
		ID:     c.seq.Add(1),
		Method: method,
		Params: params,
	}

	c.mu.RLock()
	handler := c.handler
	c.mu.RUnlock()

	return handler(ctx, req)
}

func (c *Client) invoke(ctx context.Context, req *message.Request) (any, error) {
	start := time.Now()
	logger := c.logger(ctx).With().Str("method", req.Method).Uint32("msg_id", req.ID).Logger()

	data, err := c.opts.codec.Encode(req)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	endpoint, err := c.resolve(ctx)
	if err != nil {
		return nil, c.classify(ctx, req, start, err)
	}

	conn, err := c.opts.dialer.Dial(ctx, endpoint)
	if err != nil {
		return nil, c.classify(ctx, req, start, err)
	}
	logger.Debug().Str("endpoint", endpoint).Msg("connected")
	defer func() {
		if err := conn.Close(); err != nil {
			logger.Warn().Err(err).Msg("close connection")
		}
	}()

	if err := conn.Write(data); err != nil {
		return nil, c.classify(ctx, req, start, err)
	}
	logger.Debug().Int("bytes", len(data)).Msg("request sent")

	resp, err := c.readResponse(conn)
	if err != nil {
		return nil, c.classify(ctx, req, start, err)
	}
	logger.Debug().Dur("elapsed", time.Since(start)).Msg("response received")

	if resp.ID != req.ID {
		return nil, &rpcerr.MismatchError{Want: req.ID, Got: resp.ID}
	}
	if resp.Failed() {
		return nil, &rpcerr.RemoteError{Method: req.Method, Payload: resp.Error}
	}
	return resp.Result, nil
}

// readResponse reads until one complete envelope is buffered. Bytes after it are ignored.
func (c *Client) readResponse(conn transport.Conn) (*message.Response, error) {
	buf := protocol.NewFrameBuffer(0)
	for {
		frame, err := buf.Next()
		if err == nil {
			resp := &message.Response{}
			if err := c.opts.codec.Decode(frame, resp); err != nil {
				return nil, err
			}
			return resp, nil
		}
		if !errors.Is(err, protocol.ErrIncomplete) {
			return nil, err
		}

		chunk, err := conn.ReadNext()
		if errors.Is(err, transport.ErrPeerClosed) {
			return nil, &rpcerr.FormatError{Reason: "connection closed before a complete response", Err: err}
		}
		if err != nil {
			return nil, err
		}
		if err := buf.Write(chunk); err != nil {
			return nil, err
		}
	}
}

func (c *Client) resolve(ctx context.Context) (string, error) {
	if c.opts.registry == nil {
		return c.opts.endpoint, nil
	}

	instances, err := c.opts.registry.Discover(ctx, c.opts.service)
	if err != nil {
		return "", &rpcerr.ConnectError{Endpoint: "service " + c.opts.service, Err: err}
	}
	instance, err := c.opts.balancer.Pick(instances)
	if err != nil {
		return "", &rpcerr.ConnectError{Endpoint: "service " + c.opts.service, Err: err}
	}
	return instance.Addr, nil
}

// classify turns a failure caused by ctx ending into a timeout or cancellation error.
// Any other failure is returned unchanged.
func (c *Client) classify(ctx context.Context, req *message.Request, start time.Time, err error) error {
	switch ctx.Err() {
	case context.DeadlineExceeded:
		return &rpcerr.TimeoutError{Method: req.Method, Elapsed: time.Since(start), Err: context.DeadlineExceeded}
	case context.Canceled:
		return fmt.Errorf("call %s: %w", req.Method, context.Canceled)
	}
	return err
}

// logger prefers the per-call logger attached by middleware.LoggingMiddleware.
func (c *Client) logger(ctx context.Context) *zerolog.Logger {
	if l := zerolog.Ctx(ctx); l.GetLevel() != zerolog.Disabled {
		return l
	}
	return &c.opts.logger
}
