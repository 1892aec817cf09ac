// Package config loads sensord settings from a TOML file. Keys missing from the file keep
// their defaults.
//
//	[controller]
//	socket  = "/var/run/arduino-router.sock"
//	timeout = "5s"
//	service = "arduino-router"
//
//	[discovery]
//	etcd_endpoints = ["127.0.0.1:2379"]
//	dial_timeout   = "3s"
//
//	[client]
//	rate        = 10.0
//	burst       = 5
//	retries     = 2
//	retry_delay = "100ms"
//	balancer    = "round_robin"
//
//	[http]
//	listen       = ":8090"
//	cors_origins = ["http://localhost:3000"]
//
//	[log]
//	level  = "info"
//	format = "console"
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"sensor-rpc/client"
	"sensor-rpc/transport"
)

type Config struct {
	Controller Controller
	Discovery  Discovery
	Client     Client
	HTTP       HTTP
	Log        Log
}

type Controller struct {
	Socket  string
	Timeout time.Duration // 0 disables the call deadline
	Service string        // Registry name when discovery is enabled
}

// Discovery is enabled when EtcdEndpoints is non-empty.
type Discovery struct {
	EtcdEndpoints []string
	DialTimeout   time.Duration
}

type Client struct {
	Rate       float64 // Calls per second, 0 disables rate limiting
	Burst      int
	Retries    int // Retries after a failed connect
	RetryDelay time.Duration
	Balancer   string
}

type HTTP struct {
	Listen      string
	CORSOrigins []string
}

type Log struct {
	Level  string
	Format string
}

func Default() Config {
	return Config{
		Controller: Controller{
			Socket:  transport.DefaultSocketPath,
			Timeout: client.DefaultTimeout,
			Service: client.DefaultService,
		},
		Discovery: Discovery{
			DialTimeout: 3 * time.Second,
		},
		Client: Client{
			Burst:      1,
			RetryDelay: 100 * time.Millisecond,
			Balancer:   "round_robin",
		},
		HTTP: HTTP{Listen: ":8090"},
		Log:  Log{Level: "info", Format: "console"},
	}
}

type fileConfig struct {
	Controller struct {
		Socket  string `toml:"socket"`
		Timeout string `toml:"timeout"`
		Service string `toml:"service"`
	} `toml:"controller"`
	Discovery struct {
		EtcdEndpoints []string `toml:"etcd_endpoints"`
		DialTimeout   string   `toml:"dial_timeout"`
	} `toml:"discovery"`
	Client struct {
		Rate       float64 `toml:"rate"`
		Burst      int     `toml:"burst"`
		Retries    int     `toml:"retries"`
		RetryDelay string  `toml:"retry_delay"`
		Balancer   string  `toml:"balancer"`
	} `toml:"client"`
	HTTP struct {
		Listen      string   `toml:"listen"`
		CORSOrigins []string `toml:"cors_origins"`
	} `toml:"http"`
	Log struct {
		Level  string `toml:"level"`
		Format string `toml:"format"`
	} `toml:"log"`
}

// Load reads path over Default. An empty path returns the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return Config{}, fmt.Errorf("load config: unknown key %s", undecoded[0])
	}

	if meta.IsDefined("controller", "socket") {
		cfg.Controller.Socket = strings.TrimSpace(raw.Controller.Socket)
	}
	if meta.IsDefined("controller", "timeout") {
		d, err := parseDuration("controller.timeout", raw.Controller.Timeout)
		if err != nil {
			return Config{}, err
		}
		cfg.Controller.Timeout = d
	}
	if meta.IsDefined("controller", "service") {
		cfg.Controller.Service = strings.TrimSpace(raw.Controller.Service)
	}

	if meta.IsDefined("discovery", "etcd_endpoints") {
		cfg.Discovery.EtcdEndpoints = normalizeList(raw.Discovery.EtcdEndpoints)
	}
	if meta.IsDefined("discovery", "dial_timeout") {
		d, err := parseDuration("discovery.dial_timeout", raw.Discovery.DialTimeout)
		if err != nil {
			return Config{}, err
		}
		cfg.Discovery.DialTimeout = d
	}

	if meta.IsDefined("client", "rate") {
		cfg.Client.Rate = raw.Client.Rate
	}
	if meta.IsDefined("client", "burst") {
		cfg.Client.Burst = raw.Client.Burst
	}
	if meta.IsDefined("client", "retries") {
		cfg.Client.Retries = raw.Client.Retries
	}
	if meta.IsDefined("client", "retry_delay") {
		d, err := parseDuration("client.retry_delay", raw.Client.RetryDelay)
		if err != nil {
			return Config{}, err
		}
		cfg.Client.RetryDelay = d
	}
	if meta.IsDefined("client", "balancer") {
		cfg.Client.Balancer = strings.TrimSpace(raw.Client.Balancer)
	}

	if meta.IsDefined("http", "listen") {
		cfg.HTTP.Listen = strings.TrimSpace(raw.HTTP.Listen)
	}
	if meta.IsDefined("http", "cors_origins") {
		cfg.HTTP.CORSOrigins = normalizeList(raw.HTTP.CORSOrigins)
	}
	if meta.IsDefined("log", "level") {
		cfg.Log.Level = strings.TrimSpace(raw.Log.Level)
	}
	if meta.IsDefined("log", "format") {
		cfg.Log.Format = strings.TrimSpace(raw.Log.Format)
	}

	return cfg, cfg.Validate()
}

// Validate reports settings that cannot work together.
func (c Config) Validate() error {
	if c.Controller.Socket == "" && len(c.Discovery.EtcdEndpoints) == 0 {
		return fmt.Errorf("config: controller.socket is empty and discovery is disabled")
	}
	if c.Controller.Timeout < 0 {
		return fmt.Errorf("config: controller.timeout must not be negative")
	}
	if c.Client.Rate < 0 {
		return fmt.Errorf("config: client.rate must not be negative")
	}
	if c.Client.Rate > 0 && c.Client.Burst < 1 {
		return fmt.Errorf("config: client.burst must be at least 1 when rate limiting")
	}
	if c.Client.Retries < 0 {
		return fmt.Errorf("config: client.retries must not be negative")
	}
	for _, origin := range c.HTTP.CORSOrigins {
		if !validOrigin(origin) {
			return fmt.Errorf("config: http.cors_origins entry %q must contain * or start with http:// or https://", origin)
		}
	}
	return nil
}

// validOrigin accepts what the CORS middleware accepts without panicking.
func validOrigin(origin string) bool {
	return strings.Contains(origin, "*") ||
		strings.HasPrefix(origin, "http://") ||
		strings.HasPrefix(origin, "https://")
}

func parseDuration(key, raw string) (time.Duration, error) {
	d, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return d, nil
}

func normalizeList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, v := range in {
		v = strings.TrimSpace(v)
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}
