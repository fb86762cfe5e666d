// Package service implements the core proxy forwarding logic.
package service

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/golang/gddo/httputil/header"

	"sub-proxy-go/internal/auth"
	"sub-proxy-go/internal/client"
	"sub-proxy-go/internal/model"
)

var (
	// ErrInvalidUpstream is returned when a configured upstream URL cannot be parsed.
	ErrInvalidUpstream = errors.New("invalid upstream URL")
	// ErrUpstreamUnreachable covers DNS, connect, TLS, timeout and protocol failures.
	ErrUpstreamUnreachable = errors.New("upstream unreachable")
)

// strippedRequestHeaders are never forwarded upstream: framing headers that
// the outbound transport sets itself, plus hop-by-hop headers.
var strippedRequestHeaders = []string{
	"Host",
	"Content-Length",
	"Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Proxy-Connection",
	"TE",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

// hopByHopResponseHeaders are dropped from upstream responses before relay.
var hopByHopResponseHeaders = []string{
	"Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Connection",
	"TE",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

// Forwarder rewrites inbound requests onto an upstream URL and issues them.
type Forwarder struct {
	client *client.UpstreamClient
	logger *slog.Logger
}

// NewForwarder creates a Forwarder.
func NewForwarder(c *client.UpstreamClient, logger *slog.Logger) *Forwarder {
	return &Forwarder{
		client: c,
		logger: logger.With("component", "forwarder"),
	}
}

// Forward sends pr to upstream and returns the upstream response unchanged
// apart from hop-by-hop headers. Any status code, including 4xx and 5xx, is
// a successful forward. The caller is responsible for closing the response body.
//
// Returned errors wrap ErrInvalidUpstream or ErrUpstreamUnreachable. Their
// text may contain the upstream URL and must not reach clients or logs.
func (f *Forwarder) Forward(route string, pr *model.ProxyRequest, upstream string) (*model.ProxyResponse, error) {
	target, err := buildUpstreamURL(upstream, pr.RawQuery)
	if err != nil {
		return nil, err
	}

	f.logger.Debug("forwarding request", "route", route)

	resp, err := f.client.DoStream(pr.Ctx, route, target, filterRequestHeaders(pr.Header))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUpstreamUnreachable, err)
	}

	resp.Header = filterResponseHeaders(resp.Header)
	return resp, nil
}

// buildUpstreamURL appends every inbound query pair except the shared secret
// to the upstream's own query. Pairs keep their order, multiplicity and
// original encoding.
func buildUpstreamURL(upstream, rawQuery string) (string, error) {
	u, err := url.Parse(upstream)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "", ErrInvalidUpstream
	}

	pairs := make([]string, 0, 4)
	if u.RawQuery != "" {
		pairs = append(pairs, u.RawQuery)
	}
	for _, pair := range strings.Split(rawQuery, "&") {
		if pair == "" || isSecretPair(pair) {
			continue
		}
		pairs = append(pairs, pair)
	}

	u.RawQuery = strings.Join(pairs, "&")
	u.ForceQuery = false
	return u.String(), nil
}

// isSecretPair reports whether a raw "key=value" pair carries the shared
// secret. Keys are compared after decoding so "pass%77ord" is caught too.
// Some upstream stacks also split on ';', so every ';' segment is checked.
// Undecodable keys are dropped along with the secret.
func isSecretPair(pair string) bool {
	for _, seg := range strings.Split(pair, ";") {
		key, _, _ := strings.Cut(seg, "=")
		decoded, err := url.QueryUnescape(key)
		if err != nil || decoded == auth.QueryParam {
			return true
		}
	}
	return false
}

// filterRequestHeaders copies the inbound headers minus framing and
// hop-by-hop headers, including any listed in Connection.
func filterRequestHeaders(src http.Header) http.Header {
	dst := src.Clone()
	if dst == nil {
		dst = make(http.Header)
	}
	for _, name := range header.ParseList(src, "Connection") {
		dst.Del(name)
	}
	for _, name := range strippedRequestHeaders {
		dst.Del(name)
	}
	return dst
}

func filterResponseHeaders(src http.Header) http.Header {
	dst := src.Clone()
	if dst == nil {
		dst = make(http.Header)
	}
	for _, name := range header.ParseList(src, "Connection") {
		dst.Del(name)
	}
	for _, name := range hopByHopResponseHeaders {
		dst.Del(name)
	}
	return dst
}
