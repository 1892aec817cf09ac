package rpcerr

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"syscall"
	"testing"
)

func TestKind(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{nil, "ok"},
		{&ConnectError{Endpoint: "/tmp/x.sock", Err: syscall.ENOENT}, "connect"},
		{&FormatError{Reason: "bad arity"}, "format"},
		{&MismatchError{Want: 1, Got: 2}, "mismatch"},
		{&RemoteError{Method: "read_sensors", Payload: "sensor offline"}, "remote"},
		{&ShapeError{Index: 2, Reason: "lux is not an integer"}, "shape"},
		{&TimeoutError{Method: "read_sensors", Err: context.DeadlineExceeded}, "timeout"},
		{fmt.Errorf("read sensors: %w", &RemoteError{Payload: "x"}), "remote"},
		{fmt.Errorf("call: %w", context.Canceled), "canceled"},
		{errors.New("boom"), "unknown"},
	}

	for _, tc := range cases {
		if got := Kind(tc.err); got != tc.want {
			t.Errorf("Kind(%v) = %q, want %q", tc.err, got, tc.want)
		}
	}
}

func TestConnectErrorUnwrap(t *testing.T) {
	err := error(&ConnectError{Endpoint: "/missing.sock", Err: syscall.ENOENT})
	if !errors.Is(err, syscall.ENOENT) {
		t.Fatalf("expect ConnectError to unwrap to ENOENT, got %v", err)
	}
}

func TestRemoteErrorMessage(t *testing.T) {
	err := &RemoteError{Method: "read_sensors", Payload: "sensor offline"}
	if !strings.Contains(err.Error(), "sensor offline") {
		t.Fatalf("expect payload in message, got %q", err.Error())
	}

	err = &RemoteError{Method: "read_sensors", Payload: map[string]any{"code": int64(3)}}
	if !strings.Contains(err.Error(), `{"code":3}`) {
		t.Fatalf("expect JSON payload in message, got %q", err.Error())
	}
}
