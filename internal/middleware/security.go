package middleware

import (
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
)

// securityHeaders are set on every response the proxy generates itself.
var securityHeaders = [][2]string{
	{"X-Content-Type-Options", "nosniff"},
	{"X-Frame-Options", "DENY"},
	{"X-XSS-Protection", "1; mode=block"},
	{"Cache-Control", "no-cache, no-store, must-revalidate"},
	{"Pragma", "no-cache"},
	{"Expires", "0"},
}

// SecurityConfig defines the config for the SecurityHeaders middleware.
type SecurityConfig struct {
	// Skipper selects requests whose responses are left untouched,
	// such as relayed upstream responses.
	Skipper echomw.Skipper
}

// SecurityHeaders returns an Echo middleware that adds the fixed security
// headers to every response.
func SecurityHeaders() echo.MiddlewareFunc {
	return SecurityHeadersWithConfig(SecurityConfig{})
}

// SecurityHeadersWithConfig returns a SecurityHeaders middleware with config.
// Headers are set before the handler runs so that responses written later by
// the HTTP error handler (404, 405) carry them as well.
func SecurityHeadersWithConfig(config SecurityConfig) echo.MiddlewareFunc {
	if config.Skipper == nil {
		config.Skipper = echomw.DefaultSkipper
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if config.Skipper(c) {
				return next(c)
			}

			h := c.Response().Header()
			for _, kv := range securityHeaders {
				h.Set(kv[0], kv[1])
			}

			return next(c)
		}
	}
}
