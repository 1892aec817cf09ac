// Command sensor-sim serves read_sensors on a Unix socket the way the controller router does.
// Readings drift slowly around a base value so consecutive calls differ.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"math"
	"math/rand/v2"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"sensor-rpc/client"
	"sensor-rpc/observability"
	"sensor-rpc/registry"
	"sensor-rpc/sensor"
	"sensor-rpc/server"
	"sensor-rpc/transport"
)

func main() {
	socket := flag.String("socket", transport.DefaultSocketPath, "socket path to listen on")
	etcd := flag.String("etcd", "", "comma-separated etcd endpoints to register with")
	service := flag.String("service", client.DefaultService, "registry service name")
	failRate := flag.Float64("fail-rate", 0, "fraction of calls answered with a sensor error")
	level := flag.String("log-level", "info", "log level")
	flag.Parse()

	if err := run(*socket, *etcd, *service, *failRate, *level); err != nil {
		fmt.Fprintf(os.Stderr, "sensor-sim: %v\n", err)
		os.Exit(1)
	}
}

func run(socket, etcd, service string, failRate float64, level string) error {
	logger := observability.NewLogger("sensor-sim", level, "console")

	var opts []server.Option
	opts = append(opts, server.WithLogger(logger))
	if etcd != "" {
		reg, err := registry.NewEtcdRegistry(strings.Split(etcd, ","), 3*time.Second)
		if err != nil {
			return fmt.Errorf("connect etcd: %w", err)
		}
		defer reg.Close()
		opts = append(opts, server.WithRegistry(reg, service, socket))
	}

	// A stale socket from a previous run blocks Listen
	if err := os.Remove(socket); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}

	svr := server.NewServer(opts...)
	env := newEnvironment(failRate)
	if err := svr.Handle(sensor.MethodReadSensors, env.read); err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() { errCh <- svr.Serve("unix", socket) }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info().Msg("shutting down")
	err := svr.Shutdown(3 * time.Second)
	os.Remove(socket)
	return err
}

// environment is a random walk over the three sensor values.
type environment struct {
	mu          sync.Mutex
	temperature float64
	humidity    float64
	lux         int64
	failRate    float64
}

func newEnvironment(failRate float64) *environment {
	return &environment{temperature: 21.5, humidity: 47.2, lux: 300, failRate: failRate}
}

func (e *environment) read(ctx context.Context, params []any) (any, error) {
	if rand.Float64() < e.failRate {
		return nil, errors.New("sensor bus timeout")
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.temperature = clamp(e.temperature+rand.NormFloat64()*0.1, -40, 85)
	e.humidity = clamp(e.humidity+rand.NormFloat64()*0.3, 0, 100)
	e.lux = max(0, e.lux+rand.Int64N(21)-10)
	return []any{round2(e.temperature), round2(e.humidity), e.lux}, nil
}

func clamp(v, lo, hi float64) float64 {
	return min(max(v, lo), hi)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
