// Package codec serializes RPC envelopes to and from their wire representation.
package codec

// Codec converts *message.Request and *message.Response values to bytes and back.
// Implementations are pure: no I/O, no shared mutable state.
type Codec interface {
	Encode(v any) ([]byte, error)
	Decode(data []byte, v any) error
}

// Default is the codec spoken by the sensor controller.
var Default Codec = &MsgpackCodec{}
