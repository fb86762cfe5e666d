// Package auth validates the shared secret that gates the proxy routes.
package auth

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"sub-proxy-go/internal/config"
	"sub-proxy-go/internal/metrics"
)

// QueryParam is the query parameter that carries the shared secret.
const QueryParam = "password"

// Result is the outcome of a credential check.
type Result int

const (
	// Unconfigured means no secret is configured; proxy routes fail closed.
	Unconfigured Result = iota
	// Invalid means the supplied secret was absent or wrong.
	Invalid
	// Valid means the supplied secret matched.
	Valid
)

func (r Result) String() string {
	switch r {
	case Unconfigured:
		return "unconfigured"
	case Invalid:
		return "invalid"
	case Valid:
		return "valid"
	default:
		return "unknown"
	}
}

// StatusCode maps a Result to the HTTP status the route answers with.
func (r Result) StatusCode() int {
	switch r {
	case Valid:
		return http.StatusOK
	case Invalid:
		return http.StatusUnauthorized
	default:
		return http.StatusServiceUnavailable
	}
}

// Verifier compares caller-supplied secrets against the configured one.
type Verifier struct {
	secret  []byte
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// NewVerifier creates a Verifier from the loaded config.
// The metrics parameter is optional; pass nil to disable auth metrics.
func NewVerifier(cfg *config.Config, logger *slog.Logger, m *metrics.Metrics) *Verifier {
	v := &Verifier{
		logger:  logger.With("component", "auth"),
		metrics: m,
	}
	if s := strings.TrimSpace(cfg.Auth.Password); s != "" {
		v.secret = []byte(s)
	}
	return v
}

// Configured reports whether a secret is set.
func (v *Verifier) Configured() bool {
	return len(v.secret) > 0
}

// Verify checks supplied against the configured secret. A nil supplied means
// the caller sent no secret at all. Logs record presence and length only.
func (v *Verifier) Verify(supplied *string) Result {
	res := v.verify(supplied)
	if v.metrics != nil {
		v.metrics.AuthResults.WithLabelValues(res.String()).Inc()
	}
	return res
}

func (v *Verifier) verify(supplied *string) Result {
	if !v.Configured() {
		v.logger.Warn("shared secret not configured")
		return Unconfigured
	}

	if supplied == nil {
		v.logger.Info("invalid credentials", "password_present", false, "password_length", 0)
		return Invalid
	}

	got := []byte(strings.TrimSpace(*supplied))
	if subtle.ConstantTimeCompare(got, v.secret) != 1 {
		v.logger.Info("invalid credentials", "password_present", true, "password_length", len(got))
		return Invalid
	}

	return Valid
}

// SuppliedSecret extracts the secret from a query, returning nil when the
// parameter is absent so that callers can tell "missing" from "empty".
func SuppliedSecret(q url.Values) *string {
	vals, ok := q[QueryParam]
	if !ok || len(vals) == 0 {
		return nil
	}
	s := vals[0]
	return &s
}
