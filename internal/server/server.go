// Package server owns the gateway's listening socket: it picks TLS or
// plaintext from the configured key pair, applies the HTTP/1.1 and HTTP/2
// transport options and serves until a shutdown coordinator drains it.
package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sirosfoundation/go-chat-gateway/internal/shutdown"
)

// Config holds listener configuration
type Config struct {
	// Bind is the listen address (host:port)
	Bind string
	// TLSCert and TLSKey are PEM paths; TLS is used only when both are set
	TLSCert string
	TLSKey  string
	// TCPKeepalive is the TCP keep-alive period of accepted connections and
	// the HTTP/2 ping interval. Zero leaves both at their defaults.
	TCPKeepalive time.Duration
}

// TLSEnabled reports whether both halves of the key pair are configured
func (c Config) TLSEnabled() bool {
	return c.TLSCert != "" && c.TLSKey != ""
}

// Server is the gateway's HTTP server
type Server struct {
	cfg    Config
	logger *zap.Logger
	srv    *http.Server
}

// New prepares a server for handler. When TLS is configured the key pair
// is loaded here, so unreadable or malformed material fails startup.
func New(cfg Config, handler http.Handler, logger *zap.Logger) (*Server, error) {
	s := &Server{
		cfg:    cfg,
		logger: logger.Named("server"),
	}

	if (cfg.TLSCert == "") != (cfg.TLSKey == "") {
		s.logger.Warn("TLS disabled: both tls_cert and tls_key are required",
			zap.String("tls_cert", cfg.TLSCert),
			zap.String("tls_key", cfg.TLSKey))
	}

	h2 := &http.HTTP2Config{}
	if cfg.TCPKeepalive > 0 {
		h2.SendPingTimeout = cfg.TCPKeepalive
	}

	protocols := new(http.Protocols)
	protocols.SetHTTP1(true)

	s.srv = &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 30 * time.Second,
		IdleTimeout:       120 * time.Second,
		ErrorLog:          zap.NewStdLog(s.logger),
		Protocols:         protocols,
		HTTP2:             h2,
	}

	if cfg.TLSEnabled() {
		cert, err := tls.LoadX509KeyPair(cfg.TLSCert, cfg.TLSKey)
		if err != nil {
			return nil, fmt.Errorf("failed to load TLS key pair: %w", err)
		}
		s.srv.TLSConfig = &tls.Config{
			Certificates: []tls.Certificate{cert},
			MinVersion:   tls.VersionTLS12,
			// the listener is wrapped by Listen, so ALPN is set here
			NextProtos: []string{"h2", "http/1.1"},
		}
		protocols.SetHTTP2(true)
	} else {
		// cleartext HTTP/2 with prior knowledge; connections stay owned by
		// the server so Shutdown drains them
		protocols.SetUnencryptedHTTP2(true)
	}

	return s, nil
}

// TLS reports whether the server terminates TLS
func (s *Server) TLS() bool {
	return s.srv.TLSConfig != nil
}

// Listen binds the configured address. Bind failures are returned as is.
func (s *Server) Listen(ctx context.Context) (net.Listener, error) {
	lc := net.ListenConfig{KeepAlive: s.cfg.TCPKeepalive}
	ln, err := lc.Listen(ctx, "tcp", s.cfg.Bind)
	if err != nil {
		return nil, fmt.Errorf("failed to bind %s: %w", s.cfg.Bind, err)
	}

	if s.TLS() {
		ln = tls.NewListener(ln, s.srv.TLSConfig)
	}

	s.logger.Info("HTTP server listening",
		zap.String("address", ln.Addr().String()),
		zap.Bool("tls", s.TLS()))
	return ln, nil
}

// Serve accepts connections on ln until the server is drained
func (s *Server) Serve(ln net.Listener) error {
	if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Drain stops accepting connections and waits for in-flight requests.
// It implements shutdown.Drainer.
func (s *Server) Drain(ctx context.Context) error {
	s.logger.Info("Shutting down server...")
	return s.srv.Shutdown(ctx)
}

// Run serves on ln and lets coord decide when to drain. It returns after
// the drain has completed.
func (s *Server) Run(ctx context.Context, ln net.Listener, coord *shutdown.Coordinator) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return s.Serve(ln)
	})
	g.Go(func() error {
		return coord.Watch(gctx, s)
	})

	if err := g.Wait(); err != nil {
		return err
	}

	s.logger.Info("Server exited")
	return nil
}
