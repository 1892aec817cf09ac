// Package registry resolves which controller socket a client should talk to.
//
// A controller (or the router in front of it) registers its socket path under a service
// name; clients discover the live instances and pick one per call.
package registry

import (
	"context"
	"errors"
)

// ErrNoInstances is returned when a service has no registered endpoint.
var ErrNoInstances = errors.New("registry: no instances available")

// ServiceInstance describes one reachable controller endpoint.
type ServiceInstance struct {
	Addr    string // Socket path, e.g. "/var/run/arduino-router.sock"
	Weight  int    // Weight for load balancing
	Version string // Firmware / router version, informational
}

type Registry interface {
	Register(ctx context.Context, serviceName string, instance ServiceInstance, ttl int64) error
	Deregister(ctx context.Context, serviceName string, addr string) error
	Discover(ctx context.Context, serviceName string) ([]ServiceInstance, error)
}
