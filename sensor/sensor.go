// Package sensor turns the controller's read_sensors result into a typed Reading.
//
// The result is untrusted input and is validated before any element is used:
//
//	[temperature, humidity, lux]
//	 float-ish    float-ish  integer
package sensor

import (
	"context"
	"fmt"
	"math"

	"github.com/rs/zerolog"

	"sensor-rpc/rpcerr"
)

// MethodReadSensors is the controller method returning the current environment reading.
const MethodReadSensors = "read_sensors"

// Reading is one environmental sample. No unit conversion is applied to controller values.
type Reading struct {
	Temperature float64 `json:"temperature"`
	Humidity    float64 `json:"humidity"`
	Lux         int64   `json:"lux"`
}

// Caller is satisfied by *client.Client.
type Caller interface {
	Call(ctx context.Context, method string, params []any) (any, error)
}

type Reader struct {
	caller Caller
	logger zerolog.Logger
}

type Option func(*Reader)

func WithLogger(logger zerolog.Logger) Option {
	return func(r *Reader) { r.logger = logger }
}

func NewReader(caller Caller, opts ...Option) *Reader {
	r := &Reader{caller: caller, logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ReadSensors asks the controller for a reading. Client failures are returned wrapped;
// a result of the wrong shape fails with *rpcerr.ShapeError.
func (r *Reader) ReadSensors(ctx context.Context) (Reading, error) {
	result, err := r.caller.Call(ctx, MethodReadSensors, []any{})
	if err != nil {
		return Reading{}, fmt.Errorf("read sensors: %w", err)
	}

	reading, err := ParseReading(result)
	if err != nil {
		r.logger.Warn().Err(err).Interface("result", result).Msg("unexpected read_sensors result")
		return Reading{}, fmt.Errorf("read sensors: %w", err)
	}

	r.logger.Debug().
		Float64("temperature", reading.Temperature).
		Float64("humidity", reading.Humidity).
		Int64("lux", reading.Lux).
		Msg("sensor reading")
	return reading, nil
}

// ParseReading validates a decoded result and maps it onto a Reading.
// Elements beyond the third are ignored.
func ParseReading(result any) (Reading, error) {
	values, ok := result.([]any)
	if !ok {
		return Reading{}, &rpcerr.ShapeError{Index: -1, Reason: fmt.Sprintf("expected a list, got %T", result)}
	}
	if len(values) < 3 {
		return Reading{}, &rpcerr.ShapeError{Index: -1, Reason: fmt.Sprintf("expected 3 values, got %d", len(values))}
	}

	temperature, err := asFloat(values, 0)
	if err != nil {
		return Reading{}, err
	}
	humidity, err := asFloat(values, 1)
	if err != nil {
		return Reading{}, err
	}
	lux, err := asInt(values, 2)
	if err != nil {
		return Reading{}, err
	}
	return Reading{Temperature: temperature, Humidity: humidity, Lux: lux}, nil
}

// asFloat accepts any numeric kind; integers are widened.
func asFloat(values []any, i int) (float64, error) {
	switch v := values[i].(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case uint64:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int8:
		return float64(v), nil
	case int16:
		return float64(v), nil
	case int32:
		return float64(v), nil
	case uint:
		return float64(v), nil
	case uint8:
		return float64(v), nil
	case uint16:
		return float64(v), nil
	case uint32:
		return float64(v), nil
	}
	return 0, &rpcerr.ShapeError{Index: i, Reason: fmt.Sprintf("expected a number, got %T", values[i])}
}

// asInt accepts integer kinds only; a float lux is rejected rather than truncated.
func asInt(values []any, i int) (int64, error) {
	switch v := values[i].(type) {
	case int64:
		return v, nil
	case uint64:
		if v > math.MaxInt64 {
			return 0, &rpcerr.ShapeError{Index: i, Reason: fmt.Sprintf("integer %d overflows int64", v)}
		}
		return int64(v), nil
	case int:
		return int64(v), nil
	case int8:
		return int64(v), nil
	case int16:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case uint:
		if uint64(v) > math.MaxInt64 {
			return 0, &rpcerr.ShapeError{Index: i, Reason: fmt.Sprintf("integer %d overflows int64", v)}
		}
		return int64(v), nil
	case uint8:
		return int64(v), nil
	case uint16:
		return int64(v), nil
	case uint32:
		return int64(v), nil
	}
	return 0, &rpcerr.ShapeError{Index: i, Reason: fmt.Sprintf("expected an integer, got %T", values[i])}
}
