// Package loadbalance picks which controller endpoint serves a call when discovery
// returns more than one.
//
// Two strategies are implemented:
//   - RoundRobin:     routers of equal capacity
//   - WeightedRandom: mixed hardware, weighted by ServiceInstance.Weight
package loadbalance

import (
	"errors"

	"sensor-rpc/registry"
)

var errNoInstances = errors.New("loadbalance: no instances available")

// Balancer is the interface for load balancing strategies.
// The client calls Pick() before each RPC to select a target endpoint.
type Balancer interface {
	// Pick selects one instance from the available list.
	// Called on every RPC call, so it must be goroutine-safe.
	Pick(instances []registry.ServiceInstance) (*registry.ServiceInstance, error)

	// Name returns the strategy name (for logging/debugging).
	Name() string
}

// New returns the balancer registered under name, defaulting to round robin.
func New(name string) Balancer {
	switch name {
	case "weighted_random", "WeightedRandom":
		return &WeightedRandomBalancer{}
	default:
		return &RoundRobinBalancer{}
	}
}
