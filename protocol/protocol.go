// Package protocol reassembles RPC envelopes from a Unix stream socket.
//
// A stream socket has no message boundaries: one envelope may arrive split over several
// reads, or several envelopes may arrive in one read. The controller sends no length header;
// MessagePack values are self-delimiting, so FrameBuffer buffers received bytes and cuts
// them at the end of each complete top-level value.
//
//	read 1: ┌── 94 01 07 c0 93 cb ..┐
//	read 2: └── .. cb .. .. cd 01 2c ┘  → one frame
package protocol

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/vmihailenco/msgpack/v5"

	"sensor-rpc/rpcerr"
)

// MaxFrameSize bounds how many bytes may be buffered while waiting for one envelope.
// Sensor replies are a few dozen bytes; anything this large is garbage on the socket.
const MaxFrameSize = 1 << 20

// ErrIncomplete is returned by Next when the buffer holds only part of an envelope.
var ErrIncomplete = errors.New("protocol: incomplete frame")

// FrameBuffer accumulates stream bytes and yields complete envelopes. Not safe for
// concurrent use; each connection owns one.
type FrameBuffer struct {
	buf []byte
	max int
}

// NewFrameBuffer creates a buffer that rejects frames larger than max bytes.
// A non-positive max means MaxFrameSize.
func NewFrameBuffer(max int) *FrameBuffer {
	if max <= 0 {
		max = MaxFrameSize
	}
	return &FrameBuffer{max: max}
}

// Write appends a received chunk.
func (b *FrameBuffer) Write(p []byte) error {
	if len(b.buf)+len(p) > b.max {
		return &rpcerr.FormatError{Reason: fmt.Sprintf("frame exceeds %d bytes", b.max)}
	}
	b.buf = append(b.buf, p...)
	return nil
}

// Next removes and returns the bytes of the first complete envelope.
// It returns ErrIncomplete when more input is needed and a *rpcerr.FormatError when the
// buffered bytes can never form a valid MessagePack value.
func (b *FrameBuffer) Next() ([]byte, error) {
	if len(b.buf) == 0 {
		return nil, ErrIncomplete
	}

	// Skip walks exactly one value; bytes.Reader is a ByteScanner so the decoder
	// does not read ahead and r.Len() tells how much was consumed.
	r := bytes.NewReader(b.buf)
	dec := msgpack.NewDecoder(r)
	if err := dec.Skip(); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, ErrIncomplete
		}
		return nil, &rpcerr.FormatError{Reason: "invalid stream data", Err: err}
	}

	n := len(b.buf) - r.Len()
	frame := make([]byte, n)
	copy(frame, b.buf[:n])
	b.buf = b.buf[n:]
	if len(b.buf) == 0 {
		b.buf = nil
	}
	return frame, nil
}

// Buffered returns the number of bytes waiting for the rest of an envelope.
func (b *FrameBuffer) Buffered() int {
	return len(b.buf)
}
