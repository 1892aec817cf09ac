// Package transport implements the client side of the controller socket.
//
// Each RPC call owns exactly one connection: dial, write the request, read until the
// response is complete, close. There is no pooling or reuse between calls.
//
//	Dial(ctx) ──► Write(request) ──► ReadNext() … ReadNext() ──► Close()
//	    │                                                          ▲
//	    └──────────── ctx done: Close() unblocks ReadNext ─────────┘
package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"

	"sensor-rpc/rpcerr"
)

// DefaultSocketPath is where the controller router listens.
const DefaultSocketPath = "/var/run/arduino-router.sock"

// readChunkSize is the size of a single socket read. Responses larger than this arrive over
// several ReadNext calls and are stitched together by the protocol layer.
const readChunkSize = 4096

// ErrPeerClosed is returned by ReadNext when the controller closed its end of the socket.
var ErrPeerClosed = errors.New("transport: connection closed by peer")

// Conn is a single-use byte stream to the controller.
type Conn interface {
	// Write pushes the whole buffer onto the stream.
	Write(p []byte) error
	// ReadNext blocks until at least one chunk is available and returns it.
	ReadNext() ([]byte, error)
	// Close is idempotent and safe to call after any failure.
	Close() error
}

// Dialer opens a Conn to an endpoint. The returned Conn is closed when ctx is done.
type Dialer interface {
	Dial(ctx context.Context, endpoint string) (Conn, error)
}

// UnixDialer dials Unix stream sockets.
type UnixDialer struct{}

func (UnixDialer) Dial(ctx context.Context, endpoint string) (Conn, error) {
	conn, err := DialUnix(ctx, endpoint)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// ClientTransport is a Conn over a net.Conn.
type ClientTransport struct {
	conn net.Conn
	buf  []byte

	closeOnce sync.Once
	closeErr  error

	mu    sync.Mutex
	stop  func() bool // Detaches the ctx watcher
	cause error       // Context error that forced the close, if any
}

// DialUnix connects to the Unix socket at path. Failures are reported as *rpcerr.ConnectError.
// When ctx is done the connection is closed, which unblocks any pending read.
func DialUnix(ctx context.Context, path string) (*ClientTransport, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "unix", path)
	if err != nil {
		return nil, &rpcerr.ConnectError{Endpoint: path, Err: err}
	}
	return NewClientTransport(ctx, conn), nil
}

// NewClientTransport wraps an established connection and ties its lifetime to ctx.
func NewClientTransport(ctx context.Context, conn net.Conn) *ClientTransport {
	t := &ClientTransport{
		conn: conn,
		buf:  make([]byte, readChunkSize),
	}
	// Hold mu so the callback cannot observe t.stop before it is assigned
	t.mu.Lock()
	t.stop = context.AfterFunc(ctx, func() {
		t.mu.Lock()
		t.cause = ctx.Err()
		t.mu.Unlock()
		t.Close()
	})
	t.mu.Unlock()
	return t
}

func (t *ClientTransport) Write(p []byte) error {
	if _, err := t.conn.Write(p); err != nil {
		return t.wrap("write", err)
	}
	return nil
}

func (t *ClientTransport) ReadNext() ([]byte, error) {
	n, err := t.conn.Read(t.buf)
	if n > 0 {
		// Hand back a copy; t.buf is reused by the next read
		chunk := make([]byte, n)
		copy(chunk, t.buf[:n])
		return chunk, nil
	}
	if err == nil {
		return nil, t.wrap("read", io.ErrNoProgress)
	}
	if errors.Is(err, io.EOF) {
		if cause := t.closeCause(); cause != nil {
			return nil, fmt.Errorf("transport: read: %w", cause)
		}
		return nil, ErrPeerClosed
	}
	return nil, t.wrap("read", err)
}

func (t *ClientTransport) Close() error {
	t.closeOnce.Do(func() {
		t.mu.Lock()
		stop := t.stop
		t.mu.Unlock()
		stop()
		t.closeErr = t.conn.Close()
	})
	return t.closeErr
}

// Conn returns the underlying connection.
func (t *ClientTransport) Conn() net.Conn {
	return t.conn
}

// wrap prefers the context error when the connection was closed because ctx ended,
// so callers can tell a deadline apart from a broken socket.
func (t *ClientTransport) wrap(op string, err error) error {
	if cause := t.closeCause(); cause != nil {
		return fmt.Errorf("transport: %s: %w", op, cause)
	}
	return fmt.Errorf("transport: %s: %w", op, err)
}

func (t *ClientTransport) closeCause() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cause
}
