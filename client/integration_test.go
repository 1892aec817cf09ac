package client

import (
	"context"
	"fmt"
	"net"
	"path/filepath"
	"testing"
	"time"

	"sensor-rpc/loadbalance"
	"sensor-rpc/registry"
	"sensor-rpc/server"
)

// startController serves read_sensors on its own socket and registers it in reg.
// Each controller reports its index as lux so callers can tell them apart.
func startController(tb testing.TB, reg registry.Registry, service string, index int) string {
	tb.Helper()
	svr := server.NewServer(server.WithRegistry(reg, service, ""))
	svr.Handle("read_sensors", func(ctx context.Context, params []any) (any, error) {
		return []any{21.5, 47.2, index}, nil
	})

	path := filepath.Join(tb.TempDir(), fmt.Sprintf("ctl-%d.sock", index))
	ln, err := net.Listen("unix", path)
	if err != nil {
		tb.Fatal(err)
	}
	go svr.ServeListener(ln)
	tb.Cleanup(func() { svr.Shutdown(3 * time.Second) })

	waitRegistered(tb, reg, service, path)
	return path
}

func waitRegistered(tb testing.TB, reg registry.Registry, service, addr string) {
	tb.Helper()
	for i := 0; i < 100; i++ {
		instances, _ := reg.Discover(context.Background(), service)
		for _, inst := range instances {
			if inst.Addr == addr {
				return
			}
		}
		time.Sleep(10 * time.Millisecond)
	}
	tb.Fatalf("controller %s never registered", addr)
}

// Client → Registry → Balancer → Transport → Codec → Server → handler
func TestMultiController(t *testing.T) {
	reg := registry.NewMemoryRegistry()
	startController(t, reg, "arduino-router", 1)
	startController(t, reg, "arduino-router", 2)

	cli := NewClient(WithRegistry(reg, loadbalance.New("round_robin"), "arduino-router"))

	seen := map[any]int{}
	for i := 0; i < 10; i++ {
		result, err := cli.Call(context.Background(), "read_sensors", nil)
		if err != nil {
			t.Fatalf("request %d failed: %v", i, err)
		}
		values := result.([]any)
		seen[values[2]]++
	}
	if len(seen) != 2 || seen[int64(1)] != 5 || seen[int64(2)] != 5 {
		t.Fatalf("expect calls spread evenly over both controllers, got %v", seen)
	}
}

func TestConcurrentCalls(t *testing.T) {
	reg := registry.NewMemoryRegistry()
	path := startController(t, reg, "arduino-router", 7)
	cli := NewClient(WithEndpoint(path))

	errs := make(chan error, 20)
	for i := 0; i < 20; i++ {
		go func() {
			_, err := cli.Call(context.Background(), "read_sensors", nil)
			errs <- err
		}()
	}
	for i := 0; i < 20; i++ {
		if err := <-errs; err != nil {
			t.Fatal(err)
		}
	}
}

// Requires a local etcd on 127.0.0.1:2379; skipped otherwise.
func TestFullIntegrationWithEtcd(t *testing.T) {
	reg, err := registry.NewEtcdRegistry([]string{"127.0.0.1:2379"}, time.Second)
	if err != nil {
		t.Skipf("etcd unavailable: %v", err)
	}
	defer reg.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if _, err := reg.Discover(ctx, "reachability"); err != nil && err != registry.ErrNoInstances {
		t.Skipf("etcd unavailable: %v", err)
	}

	startController(t, reg, "sensors-integration", 3)

	cli := NewClient(WithRegistry(reg, loadbalance.New("weighted_random"), "sensors-integration"))
	result, err := cli.Call(context.Background(), "read_sensors", nil)
	if err != nil {
		t.Fatalf("Call failed: %v", err)
	}
	if values := result.([]any); values[2] != int64(3) {
		t.Fatalf("expect lux 3, got %v", values[2])
	}
}
