package server

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// HandlerFunc answers one method call. A returned error is sent to the caller as a string
// in the response error slot.
type HandlerFunc func(ctx context.Context, params []any) (any, error)

// handlerMap is the method table of a server: "read_sensors" → handler.
type handlerMap struct {
	mu       sync.RWMutex
	handlers map[string]HandlerFunc
}

func newHandlerMap() *handlerMap {
	return &handlerMap{handlers: make(map[string]HandlerFunc)}
}

func (m *handlerMap) register(method string, h HandlerFunc) error {
	if method == "" {
		return fmt.Errorf("rpc: method name must not be empty")
	}
	if h == nil {
		return fmt.Errorf("rpc: nil handler for %s", method)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[method] = h
	return nil
}

func (m *handlerMap) lookup(method string) (HandlerFunc, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	h, ok := m.handlers[method]
	return h, ok
}

// methods returns the registered method names in sorted order.
func (m *handlerMap) methods() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.handlers))
	for name := range m.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
