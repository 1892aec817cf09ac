// Package message defines the RPC envelopes exchanged with the sensor controller.
//
// Envelopes are positional tuples on the wire; the codec layer turns them into bytes:
//
//	request:  [0, id, method, params]
//	response: [1, id, error, result]
package message

// MsgType is the leading discriminant of every envelope.
type MsgType int

const (
	MsgTypeRequest  MsgType = 0 // Client → controller
	MsgTypeResponse MsgType = 1 // Controller → client
)

// Request is a single RPC call. ID is chosen by the caller and echoed back in the Response.
type Request struct {
	ID     uint32
	Method string // e.g. "read_sensors"
	Params []any  // Positional arguments; nil is sent as an empty list
}

// Type returns MsgTypeRequest.
func (r *Request) Type() MsgType { return MsgTypeRequest }

// Response answers the Request with the same ID.
//
//   - On success: Error is nil and Result holds the decoded return value.
//   - On failure: Error holds the controller's error payload and Result must be ignored.
type Response struct {
	ID     uint32
	Error  any
	Result any
}

// Type returns MsgTypeResponse.
func (r *Response) Type() MsgType { return MsgTypeResponse }

// Failed reports whether the controller filled the error slot.
func (r *Response) Failed() bool { return r.Error != nil }
