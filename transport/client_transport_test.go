package transport

import (
	"bytes"
	"context"
	"errors"
	"net"
	"path/filepath"
	"testing"
	"time"

	"sensor-rpc/rpcerr"
)

// listenUnix starts an echo-style listener; handle runs once per accepted connection.
func listenUnix(t *testing.T, handle func(net.Conn)) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ctl.sock")
	ln, err := net.Listen("unix", path)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { ln.Close() })

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func() {
				defer conn.Close()
				handle(conn)
			}()
		}
	}()
	return path
}

func TestDialMissingEndpoint(t *testing.T) {
	path := filepath.Join(t.TempDir(), "does-not-exist.sock")

	_, err := DialUnix(context.Background(), path)
	var connectErr *rpcerr.ConnectError
	if !errors.As(err, &connectErr) {
		t.Fatalf("expect ConnectError, got %v", err)
	}
	if connectErr.Endpoint != path {
		t.Errorf("endpoint mismatch: got %s, want %s", connectErr.Endpoint, path)
	}
}

func TestWriteAndReadNext(t *testing.T) {
	path := listenUnix(t, func(conn net.Conn) {
		buf := make([]byte, 64)
		n, err := conn.Read(buf)
		if err != nil {
			return
		}
		conn.Write(bytes.ToUpper(buf[:n]))
	})

	conn, err := DialUnix(context.Background(), path)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	if err := conn.Write([]byte("ping")); err != nil {
		t.Fatal(err)
	}
	chunk, err := conn.ReadNext()
	if err != nil {
		t.Fatal(err)
	}
	if string(chunk) != "PING" {
		t.Fatalf("expect PING, got %q", chunk)
	}

	// Server hung up after one reply
	if _, err := conn.ReadNext(); !errors.Is(err, ErrPeerClosed) {
		t.Fatalf("expect ErrPeerClosed, got %v", err)
	}
}

func TestCloseIdempotent(t *testing.T) {
	path := listenUnix(t, func(conn net.Conn) {
		conn.Read(make([]byte, 1))
	})

	conn, err := DialUnix(context.Background(), path)
	if err != nil {
		t.Fatal(err)
	}

	first := conn.Close()
	for i := 0; i < 3; i++ {
		if err := conn.Close(); err != first {
			t.Fatalf("close %d returned %v, first close returned %v", i+2, err, first)
		}
	}
}

func TestContextCancelUnblocksRead(t *testing.T) {
	// Server accepts but never answers
	path := listenUnix(t, func(conn net.Conn) {
		conn.Read(make([]byte, 64))
		time.Sleep(2 * time.Second)
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	conn, err := DialUnix(ctx, path)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	start := time.Now()
	_, err = conn.ReadNext()
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expect DeadlineExceeded, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("read was not unblocked promptly: %s", elapsed)
	}
}

func TestUnixDialerImplementsDialer(t *testing.T) {
	path := listenUnix(t, func(conn net.Conn) {})

	var d Dialer = UnixDialer{}
	conn, err := d.Dial(context.Background(), path)
	if err != nil {
		t.Fatal(err)
	}
	if err := conn.Close(); err != nil {
		t.Fatal(err)
	}
}
