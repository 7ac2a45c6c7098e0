// Package app assembles a gateway from its configuration: the outbound
// client, the shared state, the upstream forwarder, metrics and the router.
package app

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/sirosfoundation/go-chat-gateway/internal/gateway"
	"github.com/sirosfoundation/go-chat-gateway/internal/server"
	"github.com/sirosfoundation/go-chat-gateway/internal/upstream"
	"github.com/sirosfoundation/go-chat-gateway/pkg/config"
	"github.com/sirosfoundation/go-chat-gateway/pkg/httpclient"
	"github.com/sirosfoundation/go-chat-gateway/pkg/metrics"
)

// Gateway is a wired gateway ready to be served
type Gateway struct {
	Router *gin.Engine
	State  *gateway.State
	// Metrics is nil when metrics are disabled
	Metrics *metrics.Collector
}

// New wires a gateway for cfg
func New(cfg *config.Config, logger *zap.Logger) *Gateway {
	client := httpclient.New(httpclient.Options{
		Timeout:        cfg.TimeoutDuration(),
		ConnectTimeout: cfg.ConnectTimeoutDuration(),
		TCPKeepalive:   cfg.TCPKeepaliveDuration(),
	})
	state := gateway.NewState(client, cfg.APIKey)

	var collector *metrics.Collector
	if cfg.Metrics.Enabled {
		collector = metrics.NewCollector()
	}

	forwarder := upstream.NewForwarder(cfg.Upstream.BaseURL, cfg.Upstream.APIKey, logger, collector)

	return &Gateway{
		Router: gateway.NewRouter(state, forwarder, gateway.RouterOptions{
			Logger:  logger,
			Metrics: collector,
		}),
		State:   state,
		Metrics: collector,
	}
}

// ServerConfig maps cfg onto the listener options
func ServerConfig(cfg *config.Config) server.Config {
	return server.Config{
		Bind:         cfg.Bind,
		TLSCert:      cfg.TLSCert,
		TLSKey:       cfg.TLSKey,
		TCPKeepalive: cfg.TCPKeepaliveDuration(),
	}
}
