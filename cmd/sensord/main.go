// Command sensord reads the environment sensors of a local controller.
//
//	sensord -once                 print one reading and exit
//	sensord -config sensord.toml  serve the read_sensors tool over HTTP
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"sensor-rpc/api"
	"sensor-rpc/client"
	"sensor-rpc/config"
	"sensor-rpc/loadbalance"
	"sensor-rpc/middleware"
	"sensor-rpc/observability"
	"sensor-rpc/registry"
	"sensor-rpc/sensor"
)

func main() {
	configPath := flag.String("config", "", "path to a TOML config file")
	once := flag.Bool("once", false, "print one reading and exit")
	socket := flag.String("socket", "", "controller socket path, overrides the config")
	flag.Parse()

	if err := run(*configPath, *socket, *once); err != nil {
		fmt.Fprintf(os.Stderr, "sensord: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath, socket string, once bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if socket != "" {
		cfg.Controller.Socket = socket
	}

	logger := observability.NewLogger("sensord", cfg.Log.Level, cfg.Log.Format)

	reg, closeReg, err := buildRegistry(cfg)
	if err != nil {
		return err
	}
	defer closeReg()

	reader := sensor.NewReader(buildClient(cfg, reg, logger), sensor.WithLogger(logger))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if once {
		reading, err := reader.ReadSensors(ctx)
		if err != nil {
			return err
		}
		printReading(os.Stdout, reading)
		return nil
	}

	srv := api.New(reader, logger, cfg.HTTP.CORSOrigins)
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe(cfg.HTTP.Listen) }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// buildRegistry uses etcd when endpoints are configured, otherwise the fixed socket path.
func buildRegistry(cfg config.Config) (registry.Registry, func(), error) {
	if len(cfg.Discovery.EtcdEndpoints) == 0 {
		return registry.NewStaticRegistry(cfg.Controller.Service, cfg.Controller.Socket), func() {}, nil
	}
	reg, err := registry.NewEtcdRegistry(cfg.Discovery.EtcdEndpoints, cfg.Discovery.DialTimeout)
	if err != nil {
		return nil, nil, fmt.Errorf("connect etcd: %w", err)
	}
	return reg, func() { reg.Close() }, nil
}

func buildClient(cfg config.Config, reg registry.Registry, logger zerolog.Logger) *client.Client {
	mws := []middleware.Middleware{
		middleware.LoggingMiddleware(logger),
		middleware.MetricsMiddleware(),
	}
	if cfg.Client.Rate > 0 {
		mws = append(mws, middleware.RateLimitMiddleware(cfg.Client.Rate, cfg.Client.Burst))
	}
	if cfg.Client.Retries > 0 {
		mws = append(mws, middleware.RetryMiddleware(cfg.Client.Retries, cfg.Client.RetryDelay))
	}

	return client.NewClient(
		client.WithRegistry(reg, loadbalance.New(cfg.Client.Balancer), cfg.Controller.Service),
		client.WithTimeout(cfg.Controller.Timeout),
		client.WithLogger(logger),
		client.WithMiddleware(mws...),
	)
}

func printReading(w io.Writer, r sensor.Reading) {
	fmt.Fprintf(w, "%-12s %10s\n", "SENSOR", "VALUE")
	fmt.Fprintf(w, "%-12s %10.2f\n", "temperature", r.Temperature)
	fmt.Fprintf(w, "%-12s %10.2f\n", "humidity", r.Humidity)
	fmt.Fprintf(w, "%-12s %10d\n", "lux", r.Lux)
}
