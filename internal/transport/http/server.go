// Package http serves the read-only monitor: health, Prometheus metrics and
// JSON views of clients, bans and the ban audit trail.
package http

import (
	stdhttp "net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirechat-tcp/internal/config"
	"github.com/vovakirdan/wirechat-tcp/internal/metrics"
	"github.com/vovakirdan/wirechat-tcp/internal/store"
)

// NewServer builds the monitor HTTP server. audit and m may be nil.
func NewServer(stats StatsProvider, audit store.AuditStore, m *metrics.Metrics, cfg config.Config, logger *zerolog.Logger) *stdhttp.Server {
	return &stdhttp.Server{
		Addr:              cfg.MonitorAddr,
		Handler:           NewRouter(stats, audit, m, cfg, logger),
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}

// NewRouter wires the monitor routes.
func NewRouter(stats StatsProvider, audit store.AuditStore, m *metrics.Metrics, cfg config.Config, logger *zerolog.Logger) *gin.Engine {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery(), LoggerMiddleware(logger))

	h := NewMonitorHandlers(stats, audit, logger)
	r.GET("/health", h.Health)
	r.GET("/metrics", gin.WrapH(m.Handler()))

	api := r.Group("/api", RateLimitMiddleware(cfg.MonitorRateLimit, logger))
	api.GET("/clients", h.ListClients)
	api.GET("/bans", h.ListBans)
	api.GET("/ban-events", h.ListBanEvents)

	return r
}
