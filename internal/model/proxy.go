// Package model defines shared types for the proxy.
package model

import (
	"context"
	"io"
	"net/http"
)

// ProxyRequest represents a client request to be forwarded upstream.
type ProxyRequest struct {
	Ctx context.Context
	// RawQuery is the inbound query string, still encoded, so pair order survives.
	RawQuery string
	Header   http.Header
}

// ProxyResponse represents the upstream response to be streamed back.
type ProxyResponse struct {
	StatusCode int
	Status     string // upstream status line, e.g. "200 OK"; diagnostics only
	Header     http.Header
	Body       io.ReadCloser
}
