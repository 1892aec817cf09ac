// Package rpcerr defines the failure taxonomy shared by every layer of a sensor RPC call.
//
// Each stage of a call fails with its own type so callers can tell them apart with errors.As:
//
//	transport  → *ConnectError   (socket missing, refused, permission denied)
//	codec      → *FormatError    (bytes do not parse as an envelope)
//	client     → *MismatchError  (response id differs from request id)
//	           → *RemoteError    (controller filled the error slot)
//	           → *TimeoutError   (deadline expired before the answer arrived)
//	sensor     → *ShapeError     (result is not [temperature, humidity, lux])
package rpcerr

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ConnectError reports that the controller socket could not be reached.
type ConnectError struct {
	Endpoint string
	Err      error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("connect %s: %v", e.Endpoint, e.Err)
}

func (e *ConnectError) Unwrap() error { return e.Err }

// FormatError reports bytes that do not decode as a well-formed envelope.
type FormatError struct {
	Reason string
	Err    error // underlying decoder error, may be nil
}

func (e *FormatError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("malformed message: %s: %v", e.Reason, e.Err)
	}
	return "malformed message: " + e.Reason
}

func (e *FormatError) Unwrap() error { return e.Err }

// MismatchError reports a response whose correlation id does not match the request.
type MismatchError struct {
	Want uint32
	Got  uint32
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("protocol mismatch: response id %d, want %d", e.Got, e.Want)
}

// RemoteError carries the error payload the controller put in the response.
// Payload is the raw decoded value (usually a string) and is kept for diagnostics.
type RemoteError struct {
	Method  string
	Payload any
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("RPC error from %s: %s", e.Method, describe(e.Payload))
}

// ShapeError reports a result that cannot be mapped onto the expected structure.
type ShapeError struct {
	Index  int // offending element, -1 when the whole value is wrong
	Reason string
}

func (e *ShapeError) Error() string {
	if e.Index < 0 {
		return "unexpected result shape: " + e.Reason
	}
	return fmt.Sprintf("unexpected result shape at [%d]: %s", e.Index, e.Reason)
}

// TimeoutError reports that no response arrived before the call deadline.
type TimeoutError struct {
	Method  string
	Elapsed time.Duration
	Err     error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("call %s timed out after %s", e.Method, e.Elapsed.Round(time.Millisecond))
}

func (e *TimeoutError) Unwrap() error { return e.Err }

// Kind names the failure class of err for logs and metric labels.
func Kind(err error) string {
	var (
		connectErr  *ConnectError
		formatErr   *FormatError
		mismatchErr *MismatchError
		remoteErr   *RemoteError
		shapeErr    *ShapeError
		timeoutErr  *TimeoutError
	)
	switch {
	case err == nil:
		return "ok"
	case errors.As(err, &timeoutErr):
		return "timeout"
	case errors.As(err, &connectErr):
		return "connect"
	case errors.As(err, &formatErr):
		return "format"
	case errors.As(err, &mismatchErr):
		return "mismatch"
	case errors.As(err, &remoteErr):
		return "remote"
	case errors.As(err, &shapeErr):
		return "shape"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "unknown"
	}
}

func describe(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}
