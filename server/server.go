// Package server implements the controller side of the sensor RPC protocol: a method table,
// parallel request processing and graceful shutdown. It backs the simulated controller and
// the client tests.
//
// Request processing pipeline:
//
//	Accept conn → handleConn (single goroutine reads chunks into a FrameBuffer)
//	  → for each complete request: go handleRequest (parallel processing)
//	    → Codec.Decode → handler lookup → HandlerFunc → Codec.Encode → write response
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"sensor-rpc/codec"
	"sensor-rpc/message"
	"sensor-rpc/protocol"
	"sensor-rpc/registry"
)

// registrationTTL is the lease TTL in seconds; KeepAlive renews it automatically.
const registrationTTL = 10

type Server struct {
	handlers *handlerMap
	codec    codec.Codec
	logger   zerolog.Logger

	mu       sync.Mutex
	listener net.Listener
	conns    map[net.Conn]struct{}

	wg       sync.WaitGroup // Tracks in-flight requests for graceful shutdown
	shutdown atomic.Bool    // Set during shutdown to suppress Accept errors

	ctx    context.Context // Passed to handlers, canceled once Shutdown gives up waiting
	cancel context.CancelFunc

	registry      registry.Registry // nil if not using discovery
	service       string
	advertiseAddr string // Endpoint registered for clients; defaults to the listen address
}

type Option func(*Server)

func WithLogger(logger zerolog.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// WithRegistry registers the server under service when it starts serving and deregisters it
// on Shutdown. An empty advertiseAddr means the listen address.
func WithRegistry(reg registry.Registry, service, advertiseAddr string) Option {
	return func(s *Server) {
		s.registry = reg
		s.service = service
		s.advertiseAddr = advertiseAddr
	}
}

func NewServer(opts ...Option) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		handlers: newHandlerMap(),
		codec:    codec.Default,
		logger:   zerolog.Nop(),
		conns:    make(map[net.Conn]struct{}),
		ctx:      ctx,
		cancel:   cancel,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handle registers h for method, replacing any previous handler.
func (s *Server) Handle(method string, h HandlerFunc) error {
	return s.handlers.register(method, h)
}

// Serve listens on address and serves until Shutdown.
func (s *Server) Serve(network, address string) error {
	listener, err := net.Listen(network, address)
	if err != nil {
		return err
	}
	return s.ServeListener(listener)
}

// ServeListener serves connections accepted from listener until Shutdown.
func (s *Server) ServeListener(listener net.Listener) error {
	s.mu.Lock()
	s.listener = listener
	if s.advertiseAddr == "" {
		s.advertiseAddr = listener.Addr().String()
	}
	advertiseAddr := s.advertiseAddr
	s.mu.Unlock()

	// Shutdown ran before the listener was known
	if s.shutdown.Load() {
		listener.Close()
		return nil
	}

	if s.registry != nil {
		err := s.registry.Register(s.ctx, s.service, registry.ServiceInstance{
			Addr:   advertiseAddr,
			Weight: 1,
		}, registrationTTL)
		if err != nil {
			listener.Close()
			return fmt.Errorf("register %s: %w", s.service, err)
		}
	}

	s.logger.Info().
		Str("addr", listener.Addr().String()).
		Strs("methods", s.handlers.methods()).
		Msg("controller serving")

	// Accept loop: one goroutine per connection
	for {
		conn, err := listener.Accept()
		if err != nil {
			// Shutdown closes the listener, which fails Accept
			if s.shutdown.Load() {
				return nil
			}
			return err
		}
		s.trackConn(conn, true)
		go s.handleConn(conn)
	}
}

// handleConn reads sequentially (a single reader reassembles envelopes) but dispatches each
// request to its own goroutine. The write mutex keeps concurrent replies from interleaving.
func (s *Server) handleConn(conn net.Conn) {
	defer func() {
		s.trackConn(conn, false)
		conn.Close()
	}()

	writeMu := &sync.Mutex{}
	frames := protocol.NewFrameBuffer(0)
	chunk := make([]byte, 4096)
	for {
		n, err := conn.Read(chunk)
		if n > 0 {
			if werr := frames.Write(chunk[:n]); werr != nil {
				s.logger.Warn().Err(werr).Msg("dropping connection")
				return
			}
			for {
				frame, ferr := frames.Next()
				if errors.Is(ferr, protocol.ErrIncomplete) {
					break
				}
				if ferr != nil {
					s.logger.Warn().Err(ferr).Msg("dropping connection")
					return
				}
				if !s.beginRequest() {
					return
				}
				go s.handleRequest(frame, conn, writeMu)
			}
		}
		if err != nil {
			return // Peer closed or connection reset
		}
	}
}

// beginRequest counts a request in flight unless Shutdown has started. The check and the
// Add share mu with Shutdown setting the flag, so no Add can follow Shutdown's Wait.
func (s *Server) beginRequest() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.shutdown.Load() {
		return false
	}
	s.wg.Add(1)
	return true
}

func (s *Server) handleRequest(frame []byte, conn net.Conn, writeMu *sync.Mutex) {
	defer s.wg.Done()

	req := &message.Request{}
	if err := s.codec.Decode(frame, req); err != nil {
		// Without a well-formed request there is no id to answer to
		s.logger.Warn().Err(err).Msg("discarding malformed request")
		return
	}

	resp := s.dispatch(req)

	data, err := s.codec.Encode(resp)
	if err != nil {
		s.logger.Error().Err(err).Str("method", req.Method).Msg("encode reply")
		data, err = s.codec.Encode(&message.Response{ID: req.ID, Error: "encode reply: " + err.Error()})
		if err != nil {
			return
		}
	}

	writeMu.Lock()
	defer writeMu.Unlock()
	if _, err := conn.Write(data); err != nil {
		s.logger.Debug().Err(err).Str("method", req.Method).Msg("write reply")
	}
}

func (s *Server) dispatch(req *message.Request) *message.Response {
	resp := &message.Response{ID: req.ID}

	h, ok := s.handlers.lookup(req.Method)
	if !ok {
		resp.Error = "method not found: " + req.Method
		return resp
	}

	start := time.Now()
	result, err := h(s.ctx, req.Params)
	logger := s.logger.With().Str("method", req.Method).Uint32("msg_id", req.ID).Dur("duration", time.Since(start)).Logger()
	if err != nil {
		logger.Debug().Err(err).Msg("handler failed")
		resp.Error = err.Error()
		return resp
	}
	logger.Debug().Msg("handled")
	resp.Result = result
	return resp
}

func (s *Server) trackConn(conn net.Conn, add bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if add {
		s.conns[conn] = struct{}{}
	} else {
		delete(s.conns, conn)
	}
}

// Shutdown performs graceful shutdown:
//  1. Deregister from the registry (clients stop routing here)
//  2. Set the shutdown flag and close the listener
//  3. Wait for in-flight requests (with timeout), then close remaining connections
func (s *Server) Shutdown(timeout time.Duration) error {
	s.mu.Lock()
	advertiseAddr := s.advertiseAddr
	s.mu.Unlock()
	if s.registry != nil && advertiseAddr != "" {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		if err := s.registry.Deregister(ctx, s.service, advertiseAddr); err != nil {
			s.logger.Warn().Err(err).Msg("deregister")
		}
		cancel()
	}

	// Set the flag before closing so Serve sees an intentional close
	s.mu.Lock()
	s.shutdown.Store(true)
	if s.listener != nil {
		s.listener.Close()
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	var err error
	select {
	case <-done:
	case <-time.After(timeout):
		err = fmt.Errorf("timeout waiting for ongoing requests to finish")
	}

	s.cancel()
	s.mu.Lock()
	for conn := range s.conns {
		conn.Close()
	}
	s.mu.Unlock()
	return err
}
