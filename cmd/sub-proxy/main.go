package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/alecthomas/kong"
	"github.com/dustin/go-humanize"
	"github.com/labstack/echo/v4"
	"go.uber.org/fx"

	"sub-proxy-go/internal/auth"
	"sub-proxy-go/internal/client"
	"sub-proxy-go/internal/config"
	"sub-proxy-go/internal/handler"
	"sub-proxy-go/internal/listener"
	"sub-proxy-go/internal/metrics"
	"sub-proxy-go/internal/service"
)

// Set by goreleaser ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	// .env only fills variables that are not already set, so it must run
	// before Kong resolves env-backed flags.
	if err := config.LoadDotEnv(".env"); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	var cli config.CLI
	kong.Parse(&cli,
		kong.Name("sub-proxy"),
		kong.Description("Authenticated proxy for a primary and a backup subscription URL."),
		kong.Vars{"version": fmt.Sprintf("%s (%s, %s)", version, commit, date)},
	)

	fx.New(
		fx.Provide(
			func() *config.CLI { return &cli },
			config.Load,
			newLogger,
			metrics.New,
			handler.NewEcho,
			client.NewUpstreamClient,
			service.NewForwarder,
			auth.NewVerifier,
			handler.NewProxyHandler,
			handler.NewHealthHandler,
		),
		fx.Invoke(handler.RegisterRoutes, logStartupConfig, startServer),
	).Run()
}

func newLogger(cfg *config.Config) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(cfg.Log.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}

	var h slog.Handler
	switch strings.ToLower(cfg.Log.Format) {
	case "text":
		h = slog.NewTextHandler(os.Stdout, opts)
	default:
		h = slog.NewJSONHandler(os.Stdout, opts)
	}

	return slog.New(h)
}

// logStartupConfig reports which routes are usable without revealing the
// secret or the upstream addresses.
func logStartupConfig(cfg *config.Config, logger *slog.Logger) {
	cfg.WarnPermissions(logger)

	logger.Info("configuration loaded",
		"version", version,
		"password_configured", cfg.Auth.Password != "",
		"primary_configured", cfg.Upstream.PrimaryURL != "",
		"backup_configured", cfg.Upstream.BackupURL != "",
		"upstream_timeout", (time.Duration(cfg.Upstream.TimeoutSeconds) * time.Second).String(),
		"skip_tls_verify", cfg.Upstream.SkipTLSVerify,
		"proxy_protocol", cfg.Server.ProxyProtocol,
		"body_max", humanize.IBytes(uint64(cfg.Server.BodyMaxBytes)),
		"metrics_enabled", cfg.Metrics.Enabled,
	)

	if cfg.Auth.Password == "" {
		logger.Warn("PASSWORD is not set; /primary and /backup will answer 503")
	}
}

func startServer(lc fx.Lifecycle, e *echo.Echo, cfg *config.Config, logger *slog.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			ln, err := listener.Listen(cfg.Server)
			if err != nil {
				return err
			}
			logger.Info("starting server", "addr", ln.Addr().String())
			go func() {
				if err := e.Server.Serve(ln); err != nil && err != http.ErrServerClosed {
					logger.Error("server error", "err", err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info("shutting down server")
			return e.Shutdown(ctx)
		},
	})
}
