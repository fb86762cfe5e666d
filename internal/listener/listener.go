// Package listener opens the inbound TCP listener.
package listener

import (
	"fmt"
	"net"
	"time"

	proxyproto "github.com/pires/go-proxyproto"

	"sub-proxy-go/internal/config"
)

// proxyHeaderTimeout bounds how long a connection may take to send its PROXY header.
const proxyHeaderTimeout = 10 * time.Second

// Listen binds the configured address. With server.proxy_protocol enabled the
// listener accepts an optional PROXY protocol v1/v2 header so that remote
// addresses reflect the real client behind an L4 load balancer. Connections
// without a header are served as-is.
func Listen(cfg config.ServerConfig) (net.Listener, error) {
	addr := cfg.Addr()
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("bind %s: %w", addr, err)
	}

	if !cfg.ProxyProtocol {
		return ln, nil
	}

	return &proxyproto.Listener{
		Listener:          ln,
		ReadHeaderTimeout: proxyHeaderTimeout,
	}, nil
}
