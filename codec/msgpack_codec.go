package codec

import (
	"bytes"
	"fmt"
	"math"

	"github.com/vmihailenco/msgpack/v5"
	"github.com/vmihailenco/msgpack/v5/msgpcode"

	"sensor-rpc/message"
	"sensor-rpc/rpcerr"
)

// envelopeLen is the arity of both request and response tuples.
const envelopeLen = 4

// MsgpackCodec encodes envelopes as MessagePack arrays. Fields are positional, no names
// go on the wire:
//
//	[0, id, method, params]   request
//	[1, id, error,  result]   response
//
// Decoded dynamic values (params, error, result) use loose typing: integers come back as
// int64 (uint64 only above math.MaxInt64), floats as float64, arrays as []any and maps as
// map[string]any.
type MsgpackCodec struct{}

func (c *MsgpackCodec) Encode(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.UseCompactInts(true)

	var err error
	switch msg := v.(type) {
	case *message.Request:
		err = encodeRequest(enc, msg)
	case *message.Response:
		err = encodeResponse(enc, msg)
	default:
		return nil, fmt.Errorf("MsgpackCodec: unsupported type %T", v)
	}
	if err != nil {
		return nil, fmt.Errorf("MsgpackCodec: encode: %w", err)
	}
	return buf.Bytes(), nil
}

func (c *MsgpackCodec) Decode(data []byte, v any) error {
	// Walk the value once without building it. Every declared array, map and string
	// length is then backed by bytes in data, which bounds what the typed pass allocates.
	if err := msgpack.NewDecoder(bytes.NewReader(data)).Skip(); err != nil {
		return &rpcerr.FormatError{Reason: "truncated or invalid envelope", Err: err}
	}

	r := bytes.NewReader(data)
	dec := msgpack.NewDecoder(r)
	dec.UseLooseInterfaceDecoding(true)

	var err error
	switch msg := v.(type) {
	case *message.Request:
		err = decodeRequest(dec, msg)
	case *message.Response:
		err = decodeResponse(dec, msg)
	default:
		return fmt.Errorf("MsgpackCodec: unsupported type %T", v)
	}
	if err != nil {
		return asFormatError(err)
	}
	if r.Len() != 0 {
		return &rpcerr.FormatError{Reason: fmt.Sprintf("%d trailing bytes after envelope", r.Len())}
	}
	return nil
}

func encodeRequest(enc *msgpack.Encoder, req *message.Request) error {
	if err := enc.EncodeArrayLen(envelopeLen); err != nil {
		return err
	}
	if err := enc.EncodeInt(int64(message.MsgTypeRequest)); err != nil {
		return err
	}
	if err := enc.EncodeUint(uint64(req.ID)); err != nil {
		return err
	}
	if err := enc.EncodeString(req.Method); err != nil {
		return err
	}
	// The controller expects a list even when there are no arguments
	if err := enc.EncodeArrayLen(len(req.Params)); err != nil {
		return err
	}
	for _, p := range req.Params {
		if err := enc.Encode(p); err != nil {
			return err
		}
	}
	return nil
}

func encodeResponse(enc *msgpack.Encoder, resp *message.Response) error {
	if err := enc.EncodeArrayLen(envelopeLen); err != nil {
		return err
	}
	if err := enc.EncodeInt(int64(message.MsgTypeResponse)); err != nil {
		return err
	}
	if err := enc.EncodeUint(uint64(resp.ID)); err != nil {
		return err
	}
	if err := enc.Encode(resp.Error); err != nil {
		return err
	}
	return enc.Encode(resp.Result)
}

func decodeRequest(dec *msgpack.Decoder, req *message.Request) error {
	if err := decodeHeader(dec, message.MsgTypeRequest); err != nil {
		return err
	}
	id, err := decodeID(dec)
	if err != nil {
		return err
	}

	if isNil, err := peekNil(dec); err != nil {
		return err
	} else if isNil {
		return &rpcerr.FormatError{Reason: "method is nil"}
	}
	method, err := dec.DecodeString()
	if err != nil {
		return &rpcerr.FormatError{Reason: "method is not a string", Err: err}
	}

	n, err := dec.DecodeArrayLen()
	if err != nil {
		return &rpcerr.FormatError{Reason: "params is not a list", Err: err}
	}
	if n < 0 {
		return &rpcerr.FormatError{Reason: "params is nil"}
	}
	params := make([]any, 0, n)
	for i := 0; i < n; i++ {
		p, err := dec.DecodeInterfaceLoose()
		if err != nil {
			return &rpcerr.FormatError{Reason: fmt.Sprintf("params[%d]", i), Err: err}
		}
		params = append(params, normalizeInts(p))
	}

	req.ID = id
	req.Method = method
	req.Params = params
	return nil
}

func decodeResponse(dec *msgpack.Decoder, resp *message.Response) error {
	if err := decodeHeader(dec, message.MsgTypeResponse); err != nil {
		return err
	}
	id, err := decodeID(dec)
	if err != nil {
		return err
	}

	errPayload, err := dec.DecodeInterfaceLoose()
	if err != nil {
		return &rpcerr.FormatError{Reason: "error slot", Err: err}
	}
	result, err := dec.DecodeInterfaceLoose()
	if err != nil {
		return &rpcerr.FormatError{Reason: "result slot", Err: err}
	}

	resp.ID = id
	resp.Error = normalizeInts(errPayload)
	resp.Result = normalizeInts(result)
	return nil
}

// decodeHeader reads the array length and the message type discriminant.
func decodeHeader(dec *msgpack.Decoder, want message.MsgType) error {
	n, err := dec.DecodeArrayLen()
	if err != nil {
		return &rpcerr.FormatError{Reason: "envelope is not a list", Err: err}
	}
	if n != envelopeLen {
		return &rpcerr.FormatError{Reason: fmt.Sprintf("envelope has %d elements, want %d", n, envelopeLen)}
	}

	if isNil, err := peekNil(dec); err != nil {
		return err
	} else if isNil {
		return &rpcerr.FormatError{Reason: "message type is nil"}
	}
	typ, err := dec.DecodeInt64()
	if err != nil {
		return &rpcerr.FormatError{Reason: "message type is not an integer", Err: err}
	}
	if message.MsgType(typ) != want {
		return &rpcerr.FormatError{Reason: fmt.Sprintf("message type %d, want %d", typ, want)}
	}
	return nil
}

func decodeID(dec *msgpack.Decoder) (uint32, error) {
	if isNil, err := peekNil(dec); err != nil {
		return 0, err
	} else if isNil {
		return 0, &rpcerr.FormatError{Reason: "message id is nil"}
	}
	id, err := dec.DecodeInt64()
	if err != nil {
		return 0, &rpcerr.FormatError{Reason: "message id is not an integer", Err: err}
	}
	if id < 0 || id > math.MaxUint32 {
		return 0, &rpcerr.FormatError{Reason: fmt.Sprintf("message id %d out of range", id)}
	}
	return uint32(id), nil
}

func peekNil(dec *msgpack.Decoder) (bool, error) {
	c, err := dec.PeekCode()
	if err != nil {
		return false, &rpcerr.FormatError{Reason: "truncated envelope", Err: err}
	}
	return c == msgpcode.Nil, nil
}

// normalizeInts folds compact unsigned integers back to int64 so a value decodes to the same
// Go type regardless of its sign.
func normalizeInts(v any) any {
	switch x := v.(type) {
	case uint64:
		if x <= math.MaxInt64 {
			return int64(x)
		}
	case []any:
		for i, e := range x {
			x[i] = normalizeInts(e)
		}
	case map[string]any:
		for k, e := range x {
			x[k] = normalizeInts(e)
		}
	}
	return v
}

func asFormatError(err error) error {
	if _, ok := err.(*rpcerr.FormatError); ok {
		return err
	}
	return &rpcerr.FormatError{Reason: "decode", Err: err}
}
