package handler

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"sub-proxy-go/internal/config"
	"sub-proxy-go/internal/metrics"
	"sub-proxy-go/internal/middleware"
)

// NewEcho builds the Echo instance with the full middleware chain. Routes are
// added separately by RegisterRoutes.
func NewEcho(cfg *config.Config, logger *slog.Logger, m *metrics.Metrics) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = NewErrorHandler(logger)

	// Inbound timeouts to mitigate slow-client attacks.
	e.Server.ReadTimeout = 30 * time.Second
	// WriteTimeout is disabled (0) so relayed bodies are bounded by the
	// upstream client timeout instead of being cut off mid-stream.
	e.Server.WriteTimeout = 0
	e.Server.IdleTimeout = 120 * time.Second
	e.Server.ReadHeaderTimeout = 10 * time.Second

	e.Use(echomw.Recover())
	// Relayed responses carry the upstream's headers only.
	e.Use(echomw.RequestIDWithConfig(echomw.RequestIDConfig{
		Skipper: ProxyRouteSkipper,
	}))
	e.Use(middleware.RequestLogger(logger))
	e.Use(middleware.MetricsMiddleware(m))
	e.Use(echomw.BodyLimit(fmt.Sprintf("%dB", cfg.Server.BodyMaxBytes)))
	e.Use(middleware.SecurityHeadersWithConfig(middleware.SecurityConfig{
		Skipper: ProxyRouteSkipper,
	}))

	return e
}
