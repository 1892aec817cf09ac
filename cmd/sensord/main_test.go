package main

import (
	"bytes"
	"context"
	"net"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"sensor-rpc/config"
	"sensor-rpc/sensor"
	"sensor-rpc/server"
)

func TestPrintReading(t *testing.T) {
	var out bytes.Buffer
	printReading(&out, sensor.Reading{Temperature: 21.456, Humidity: 47.2, Lux: 300})

	got := out.String()
	for _, want := range []string{"21.46", "47.20", "300"} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q:\n%s", want, got)
		}
	}
	if lines := strings.Count(got, "\n"); lines != 4 {
		t.Errorf("expect header plus 3 rows, got %d lines", lines)
	}
}

func TestBuildClientAgainstStaticRegistry(t *testing.T) {
	svr := server.NewServer()
	svr.Handle(sensor.MethodReadSensors, func(ctx context.Context, params []any) (any, error) {
		return []any{19.0, 55.5, 120}, nil
	})
	path := filepath.Join(t.TempDir(), "ctl.sock")
	ln, err := net.Listen("unix", path)
	if err != nil {
		t.Fatal(err)
	}
	go svr.ServeListener(ln)
	defer svr.Shutdown(time.Second)

	cfg := config.Default()
	cfg.Controller.Socket = path
	cfg.Client.Rate = 100
	cfg.Client.Burst = 1
	cfg.Client.Retries = 1

	reg, closeReg, err := buildRegistry(cfg)
	if err != nil {
		t.Fatal(err)
	}
	defer closeReg()

	reader := sensor.NewReader(buildClient(cfg, reg, zerolog.Nop()))
	reading, err := reader.ReadSensors(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if reading != (sensor.Reading{Temperature: 19, Humidity: 55.5, Lux: 120}) {
		t.Fatalf("unexpected reading %+v", reading)
	}
}

func TestRunOnceMissingSocket(t *testing.T) {
	err := run("", filepath.Join(t.TempDir(), "missing.sock"), true)
	if err == nil || !strings.Contains(err.Error(), "connect") {
		t.Fatalf("expect connect error, got %v", err)
	}
}
