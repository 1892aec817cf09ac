package registry

import (
	"context"
	"sync"
)

// MemoryRegistry keeps instances in process memory. TTLs are ignored.
// Used for a fixed socket path and in tests.
type MemoryRegistry struct {
	mu        sync.RWMutex
	instances map[string][]ServiceInstance
}

func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{instances: make(map[string][]ServiceInstance)}
}

// NewStaticRegistry returns a registry that already knows a single endpoint for serviceName.
func NewStaticRegistry(serviceName, addr string) *MemoryRegistry {
	r := NewMemoryRegistry()
	r.instances[serviceName] = []ServiceInstance{{Addr: addr, Weight: 1}}
	return r
}

func (m *MemoryRegistry) Register(ctx context.Context, serviceName string, inst ServiceInstance, ttl int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	insts := m.instances[serviceName]
	for i := range insts {
		if insts[i].Addr == inst.Addr {
			insts[i] = inst
			return nil
		}
	}
	m.instances[serviceName] = append(insts, inst)
	return nil
}

func (m *MemoryRegistry) Deregister(ctx context.Context, serviceName string, addr string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	insts := m.instances[serviceName]
	for i, inst := range insts {
		if inst.Addr == addr {
			m.instances[serviceName] = append(insts[:i:i], insts[i+1:]...)
			break
		}
	}
	return nil
}

func (m *MemoryRegistry) Discover(ctx context.Context, serviceName string) ([]ServiceInstance, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	insts := m.instances[serviceName]
	if len(insts) == 0 {
		return nil, ErrNoInstances
	}
	out := make([]ServiceInstance, len(insts))
	copy(out, insts)
	return out, nil
}
