// Package httpclient builds the outbound http.Client shared by every request.
package httpclient

import (
	"net"
	"net/http"
	"time"
)

// Options configures the outbound client. Zero values leave the
// corresponding limit unset.
type Options struct {
	// Timeout bounds a whole request, including reading the response body
	Timeout time.Duration
	// ConnectTimeout bounds dialing the upstream
	ConnectTimeout time.Duration
	// TCPKeepalive is the keep-alive probe interval for upstream connections
	TCPKeepalive time.Duration
}

// New returns a pooled, keep-alive client. Build it once and share it.
func New(opts Options) *http.Client {
	dialer := &net.Dialer{
		Timeout:   opts.ConnectTimeout,
		KeepAlive: opts.TCPKeepalive,
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.DialContext = dialer.DialContext
	transport.ForceAttemptHTTP2 = true
	transport.MaxIdleConnsPerHost = 32
	if opts.TCPKeepalive > 0 {
		transport.IdleConnTimeout = opts.TCPKeepalive
	}

	return &http.Client{
		Timeout:   opts.Timeout,
		Transport: transport,
	}
}
