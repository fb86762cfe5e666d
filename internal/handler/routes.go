package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"sub-proxy-go/internal/config"
	"sub-proxy-go/internal/metrics"
)

// Public paths.
const (
	RootPath    = "/"
	HealthPath  = "/health"
	PrimaryPath = "/primary"
	BackupPath  = "/backup"
)

// RegisterRoutes wires all route handlers onto the Echo instance.
func RegisterRoutes(e *echo.Echo, cfg *config.Config, m *metrics.Metrics, proxy *ProxyHandler, health *HealthHandler) {
	e.GET(RootPath, health.Root)
	e.GET(HealthPath, health.Health)

	e.GET(PrimaryPath, proxy.Primary)
	e.GET(BackupPath, proxy.Backup)

	if cfg.Metrics.Enabled {
		m.TrackPath(cfg.Metrics.Path)
		e.GET(cfg.Metrics.Path, echo.WrapHandler(promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})))
	}
}

// ProxyRouteSkipper reports whether the matched route relays an upstream
// response, whose headers must reach the caller untouched. Other methods on
// the proxy paths end in a locally generated 405 and keep the headers.
func ProxyRouteSkipper(c echo.Context) bool {
	if c.Request().Method != http.MethodGet {
		return false
	}
	switch c.Path() {
	case PrimaryPath, BackupPath:
		return true
	}
	return false
}
