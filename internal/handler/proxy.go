package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"

	"github.com/labstack/echo/v4"

	"sub-proxy-go/internal/auth"
	"sub-proxy-go/internal/config"
	"sub-proxy-go/internal/model"
	"sub-proxy-go/internal/service"
)

// Route names double as log prefixes and metric labels.
const (
	RoutePrimary = "primary"
	RouteBackup  = "backup"
)

// ProxyHandler serves /primary and /backup: it gates on the shared secret and
// relays the chosen upstream's response verbatim.
type ProxyHandler struct {
	forwarder *service.Forwarder
	verifier  *auth.Verifier
	upstreams map[string]string
	logger    *slog.Logger
}

// NewProxyHandler creates a ProxyHandler.
func NewProxyHandler(cfg *config.Config, fwd *service.Forwarder, v *auth.Verifier, logger *slog.Logger) *ProxyHandler {
	return &ProxyHandler{
		forwarder: fwd,
		verifier:  v,
		upstreams: map[string]string{
			RoutePrimary: cfg.Upstream.PrimaryURL,
			RouteBackup:  cfg.Upstream.BackupURL,
		},
		logger: logger.With("component", "proxy_handler"),
	}
}

// Primary proxies to the primary upstream.
func (h *ProxyHandler) Primary(c echo.Context) error {
	return h.handle(c, RoutePrimary)
}

// Backup proxies to the backup upstream.
func (h *ProxyHandler) Backup(c echo.Context) error {
	return h.handle(c, RouteBackup)
}

func (h *ProxyHandler) handle(c echo.Context, route string) error {
	req := c.Request()
	if res := h.verifier.Verify(auth.SuppliedSecret(req.URL.Query())); res != auth.Valid {
		return plainStatus(c, res.StatusCode())
	}

	// Checked after auth so unauthenticated callers cannot tell which slots are set.
	upstream := h.upstreams[route]
	if upstream == "" {
		h.logger.Warn(route + " upstream not configured")
		return plainStatus(c, http.StatusServiceUnavailable)
	}

	pr := &model.ProxyRequest{
		Ctx:      req.Context(),
		RawQuery: req.URL.RawQuery,
		Header:   req.Header,
	}

	resp, err := h.forwarder.Forward(route, pr, upstream)
	if err != nil {
		// The error text embeds the upstream URL; log the category only.
		h.logger.Warn(route+" fetch failed", "reason", failureReason(err))
		return plainStatus(c, http.StatusServiceUnavailable)
	}
	defer func() { _ = resp.Body.Close() }()

	h.logger.Info(route+" fetch succeeded", "status", resp.StatusCode)

	// Upstream values replace anything set locally for the same header.
	dst := c.Response().Header()
	for key, vals := range resp.Header {
		dst.Del(key)
		for _, v := range vals {
			dst.Add(key, v)
		}
	}

	c.Response().WriteHeader(resp.StatusCode)

	// Once the status is sent a copy failure can only truncate the body. The
	// upstream read shares the inbound context, so a client disconnect stops it.
	if _, err := io.Copy(c.Response(), resp.Body); err != nil {
		h.logger.Warn(route+" relay interrupted", "reason", failureReason(err))
	}

	return nil
}

// failureReason reduces an upstream error to a coarse, non-identifying category.
func failureReason(err error) string {
	if errors.Is(err, service.ErrInvalidUpstream) {
		return "invalid_upstream"
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}
	if errors.Is(err, context.Canceled) {
		return "client_disconnected"
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return "dns"
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "timeout"
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return "connect"
	}

	return "other"
}

// plainStatus writes the standard status text as a text/plain body.
func plainStatus(c echo.Context, code int) error {
	return c.String(code, http.StatusText(code))
}
