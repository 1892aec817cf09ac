package client

import (
	"time"

	"github.com/rs/zerolog"

	"sensor-rpc/codec"
	"sensor-rpc/loadbalance"
	"sensor-rpc/middleware"
	"sensor-rpc/registry"
	"sensor-rpc/transport"
)

// DefaultTimeout bounds a call when WithTimeout is not given.
const DefaultTimeout = 5 * time.Second

// DefaultService is the registry name controllers register under.
const DefaultService = "arduino-router"

type options struct {
	endpoint    string
	registry    registry.Registry
	balancer    loadbalance.Balancer
	service     string
	dialer      transport.Dialer
	codec       codec.Codec
	timeout     time.Duration
	logger      zerolog.Logger
	middlewares []middleware.Middleware
}

func defaultOptions() options {
	return options{
		endpoint: transport.DefaultSocketPath,
		service:  DefaultService,
		dialer:   transport.UnixDialer{},
		codec:    codec.Default,
		timeout:  DefaultTimeout,
		logger:   zerolog.Nop(),
	}
}

type Option func(*options)

// WithEndpoint sets a fixed socket path. Ignored when a registry is configured.
func WithEndpoint(path string) Option {
	return func(o *options) { o.endpoint = path }
}

// WithRegistry resolves the endpoint per call by discovering service in reg and picking one
// instance with bal. A nil bal means round robin.
func WithRegistry(reg registry.Registry, bal loadbalance.Balancer, service string) Option {
	return func(o *options) {
		o.registry = reg
		o.balancer = bal
		if service != "" {
			o.service = service
		}
	}
}

func WithDialer(d transport.Dialer) Option {
	return func(o *options) { o.dialer = d }
}

func WithCodec(c codec.Codec) Option {
	return func(o *options) { o.codec = c }
}

// WithTimeout bounds every call. Zero disables the client deadline; the caller's ctx still applies.
func WithTimeout(d time.Duration) Option {
	return func(o *options) { o.timeout = d }
}

func WithLogger(logger zerolog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithMiddleware appends middlewares to the call chain, outermost first.
func WithMiddleware(mws ...middleware.Middleware) Option {
	return func(o *options) { o.middlewares = append(o.middlewares, mws...) }
}
