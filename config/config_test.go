package config

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sensord.toml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadEmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(cfg, Default()) {
		t.Fatalf("expect defaults, got %+v", cfg)
	}
	if cfg.Controller.Socket != "/var/run/arduino-router.sock" {
		t.Errorf("unexpected default socket %s", cfg.Controller.Socket)
	}
	if cfg.Controller.Timeout != 5*time.Second {
		t.Errorf("unexpected default timeout %s", cfg.Controller.Timeout)
	}
}

func TestLoadOverridesOnlyDefinedKeys(t *testing.T) {
	path := writeConfig(t, `
[controller]
socket = " /tmp/router.sock "
timeout = "250ms"

[discovery]
etcd_endpoints = ["127.0.0.1:2379", " ", "10.0.0.2:2379"]

[client]
rate = 5.0
burst = 3
retries = 2
retry_delay = "20ms"

[log]
level = "debug"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}

	def := Default()
	if cfg.Controller.Socket != "/tmp/router.sock" {
		t.Errorf("socket: got %q", cfg.Controller.Socket)
	}
	if cfg.Controller.Timeout != 250*time.Millisecond {
		t.Errorf("timeout: got %s", cfg.Controller.Timeout)
	}
	if cfg.Controller.Service != def.Controller.Service {
		t.Errorf("service should keep its default, got %q", cfg.Controller.Service)
	}
	if want := []string{"127.0.0.1:2379", "10.0.0.2:2379"}; !reflect.DeepEqual(cfg.Discovery.EtcdEndpoints, want) {
		t.Errorf("etcd endpoints: got %v", cfg.Discovery.EtcdEndpoints)
	}
	if cfg.Discovery.DialTimeout != def.Discovery.DialTimeout {
		t.Errorf("dial timeout should keep its default, got %s", cfg.Discovery.DialTimeout)
	}
	if cfg.Client.Rate != 5 || cfg.Client.Burst != 3 || cfg.Client.Retries != 2 || cfg.Client.RetryDelay != 20*time.Millisecond {
		t.Errorf("client: got %+v", cfg.Client)
	}
	if cfg.Log.Level != "debug" || cfg.Log.Format != def.Log.Format {
		t.Errorf("log: got %+v", cfg.Log)
	}
	if cfg.HTTP.Listen != def.HTTP.Listen {
		t.Errorf("http listen should keep its default, got %q", cfg.HTTP.Listen)
	}
}

func TestLoadZeroTimeoutDisablesDeadline(t *testing.T) {
	cfg, err := Load(writeConfig(t, "[controller]\ntimeout = \"0s\"\n"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Controller.Timeout != 0 {
		t.Fatalf("expect 0, got %s", cfg.Controller.Timeout)
	}
}

func TestLoadErrors(t *testing.T) {
	cases := []struct {
		name string
		body string
		want string
	}{
		{"bad duration", "[controller]\ntimeout = \"soon\"\n", "controller.timeout"},
		{"unknown key", "[controller]\nsokcet = \"/tmp/x.sock\"\n", "unknown key"},
		{"invalid toml", "[controller\n", "load config"},
		{"negative timeout", "[controller]\ntimeout = \"-1s\"\n", "must not be negative"},
		{"empty socket", "[controller]\nsocket = \"\"\n", "controller.socket"},
		{"zero burst", "[client]\nrate = 1.0\nburst = 0\n", "burst"},
		{"origin without scheme", "[http]\ncors_origins = [\"localhost:3000\"]\n", "cors_origins"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tc.body))
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expect error containing %q, got %v", tc.want, err)
			}
		})
	}
}

func TestLoadAcceptsCORSOrigins(t *testing.T) {
	cfg, err := Load(writeConfig(t, "[http]\ncors_origins = [\"*\", \"https://dash.local\", \"http://*.lan\"]\n"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	want := []string{"*", "https://dash.local", "http://*.lan"}
	if !reflect.DeepEqual(cfg.HTTP.CORSOrigins, want) {
		t.Fatalf("expect %v, got %v", want, cfg.HTTP.CORSOrigins)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.toml")); err == nil {
		t.Fatal("expect error for missing file")
	}
}
