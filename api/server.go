// Package api exposes the sensor reader as a tool endpoint over HTTP.
//
//	GET /tools/read_sensors  → {"temperature": 21.5, "humidity": 47.2, "lux": 300}
//	GET /health              → {"status": "ok", ...}
//	GET /metrics             → Prometheus exposition
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"sensor-rpc/observability"
	"sensor-rpc/rpcerr"
	"sensor-rpc/sensor"
)

var trustedProxies = []string{"127.0.0.1", "::1"}

// SensorReader is satisfied by *sensor.Reader.
type SensorReader interface {
	ReadSensors(ctx context.Context) (sensor.Reading, error)
}

type Server struct {
	reader  SensorReader
	logger  zerolog.Logger
	router  *gin.Engine
	started time.Time
	http    *http.Server
}

// New builds the router. An empty corsOrigins allows http://localhost:3000 only.
func New(reader SensorReader, logger zerolog.Logger, corsOrigins []string) *Server {
	observability.RegisterMetrics()

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(observability.RequestLogger(logger))
	r.Use(observability.RequestMetricsMiddleware())
	r.Use(cors.New(cors.Config{
		AllowOrigins: normalizeOrigins(corsOrigins),
		AllowMethods: []string{"GET"},
		AllowHeaders: []string{"Origin", "Content-Type"},
		MaxAge:       12 * time.Hour,
	}))
	if err := r.SetTrustedProxies(trustedProxies); err != nil {
		logger.Warn().Err(err).Strs("proxies", trustedProxies).Msg("set trusted proxies")
	}

	s := &Server{
		reader:  reader,
		logger:  logger,
		router:  r,
		started: time.Now(),
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"uptime":  time.Since(s.started).Round(time.Second).String(),
			"service": "sensord",
		})
	})

	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	s.router.GET("/tools/read_sensors", s.readSensors)
}

func (s *Server) readSensors(c *gin.Context) {
	reading, err := s.reader.ReadSensors(c.Request.Context())
	if err != nil {
		c.JSON(statusFor(err), gin.H{
			"error": err.Error(),
			"kind":  rpcerr.Kind(err),
		})
		return
	}
	c.JSON(http.StatusOK, reading)
}

// statusFor maps a failed read onto the status a gateway would report.
func statusFor(err error) int {
	switch rpcerr.Kind(err) {
	case "timeout":
		return http.StatusGatewayTimeout
	case "canceled":
		return 499 // Client closed request
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return http.StatusGatewayTimeout
	}
	return http.StatusBadGateway
}

// Handler returns the router for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves on addr until Shutdown.
func (s *Server) ListenAndServe(addr string) error {
	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	s.logger.Info().Str("addr", addr).Msg("http listening")
	err := s.http.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}

func normalizeOrigins(origins []string) []string {
	if len(origins) == 0 {
		return []string{"http://localhost:3000"}
	}
	return origins
}
