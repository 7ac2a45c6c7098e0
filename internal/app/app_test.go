package app

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sirosfoundation/go-chat-gateway/internal/gateway"
	"github.com/sirosfoundation/go-chat-gateway/pkg/config"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestNew(t *testing.T) {
	cfg := config.Default()
	cfg.APIKey = "sk-local"

	gw := New(cfg, zap.NewNop())
	require.NotNil(t, gw.Metrics)
	assert.True(t, gw.State.AuthEnabled())
	assert.NotNil(t, gw.State.Client())

	w := httptest.NewRecorder()
	gw.Router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/status", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var status gateway.StatusResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	assert.True(t, status.AuthRequired)

	w = httptest.NewRecorder()
	gw.Router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/models", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = httptest.NewRecorder()
	gw.Router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestNew_MetricsDisabled(t *testing.T) {
	cfg := config.Default()
	cfg.Metrics.Enabled = false

	gw := New(cfg, zap.NewNop())
	assert.Nil(t, gw.Metrics)
	assert.False(t, gw.State.AuthEnabled())

	w := httptest.NewRecorder()
	gw.Router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestServerConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Bind = "127.0.0.1:9000"
	cfg.TLSCert = "cert.pem"
	cfg.TLSKey = "key.pem"
	cfg.TCPKeepalive = 15

	sc := ServerConfig(cfg)
	assert.Equal(t, "127.0.0.1:9000", sc.Bind)
	assert.Equal(t, 15*time.Second, sc.TCPKeepalive)
	assert.Equal(t, cfg.TLSEnabled(), sc.TLSEnabled())

	cfg.TLSKey = ""
	assert.Equal(t, cfg.TLSEnabled(), ServerConfig(cfg).TLSEnabled())
}
