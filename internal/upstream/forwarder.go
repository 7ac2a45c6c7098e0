// Package upstream forwards the gateway's API calls to an OpenAI-compatible
// provider through the shared outbound client.
package upstream

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/sirosfoundation/go-chat-gateway/internal/gateway"
	"github.com/sirosfoundation/go-chat-gateway/pkg/apierror"
	"github.com/sirosfoundation/go-chat-gateway/pkg/metrics"
	"github.com/sirosfoundation/go-chat-gateway/pkg/middleware"
)

const (
	opListModels      = "list_models"
	opChatCompletions = "chat_completions"
)

// hopHeaders are connection-scoped and never relayed
var hopHeaders = map[string]bool{
	"Connection":          true,
	"Proxy-Connection":    true,
	"Keep-Alive":          true,
	"Proxy-Authenticate":  true,
	"Proxy-Authorization": true,
	"Te":                  true,
	"Trailer":             true,
	"Transfer-Encoding":   true,
	"Upgrade":             true,
}

// Forwarder relays requests to the upstream provider unchanged and copies
// the response back as received.
type Forwarder struct {
	baseURL string
	apiKey  string
	logger  *zap.Logger
	metrics *metrics.Collector
}

// NewForwarder creates a Forwarder for baseURL. apiKey, when set, is sent
// upstream as a bearer token. m may be nil.
func NewForwarder(baseURL, apiKey string, logger *zap.Logger, m *metrics.Collector) *Forwarder {
	return &Forwarder{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		apiKey:  apiKey,
		logger:  logger.Named("upstream"),
		metrics: m,
	}
}

var _ gateway.Provider = (*Forwarder)(nil)

// ListModels implements gateway.Provider
func (f *Forwarder) ListModels(c *gin.Context, state *gateway.State) error {
	req, err := http.NewRequestWithContext(c.Request.Context(), http.MethodGet, f.baseURL+"/v1/models", nil)
	if err != nil {
		return apierror.Internal(fmt.Errorf("failed to create request: %w", err))
	}
	return f.forward(c, state, opListModels, req)
}

// ChatCompletions implements gateway.Provider
func (f *Forwarder) ChatCompletions(c *gin.Context, state *gateway.State, chat *gateway.ChatCompletionRequest) error {
	req, err := http.NewRequestWithContext(c.Request.Context(), http.MethodPost, f.baseURL+"/v1/chat/completions", bytes.NewReader(chat.Raw))
	if err != nil {
		return apierror.Internal(fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")

	f.logger.Debug("Forwarding chat completion",
		zap.String("model", chat.Model),
		zap.Bool("stream", chat.Stream),
		zap.Int("messages", len(chat.Messages)),
	)
	return f.forward(c, state, opChatCompletions, req)
}

func (f *Forwarder) forward(c *gin.Context, state *gateway.State, op string, req *http.Request) error {
	if f.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+f.apiKey)
	}
	if accept := c.GetHeader("Accept"); accept != "" {
		req.Header.Set("Accept", accept)
	}
	if id := c.GetString(middleware.RequestIDKey); id != "" {
		req.Header.Set(middleware.RequestIDHeader, id)
	}

	resp, err := state.Client().Do(req)
	if err != nil {
		f.upstreamError(op)
		f.logger.Error("Upstream request failed", zap.String("operation", op), zap.Error(err))
		return apierror.Internal(fmt.Errorf("upstream request failed: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		f.upstreamError(op)
	}

	// Relay upstream headers except hop-by-hop ones. CORS and request ID
	// headers are the gateway's own.
	header := c.Writer.Header()
	for key, values := range resp.Header {
		canonical := http.CanonicalHeaderKey(key)
		if hopHeaders[canonical] || canonical == http.CanonicalHeaderKey(middleware.RequestIDHeader) || strings.HasPrefix(canonical, "Access-Control-") {
			continue
		}
		header[key] = append([]string(nil), values...)
	}
	c.Status(resp.StatusCode)
	c.Writer.WriteHeaderNow()

	if err := copyFlush(c.Writer, resp.Body); err != nil {
		f.upstreamError(op)
		return apierror.Internal(fmt.Errorf("failed to relay upstream response: %w", err))
	}
	return nil
}

// copyFlush relays src to w, flushing after every read so streamed
// completions reach the caller chunk by chunk
func copyFlush(w gin.ResponseWriter, src io.Reader) error {
	buf := make([]byte, 32*1024)
	for {
		n, err := src.Read(buf)
		if n > 0 {
			if _, werr := w.Write(buf[:n]); werr != nil {
				return werr
			}
			w.Flush()
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

func (f *Forwarder) upstreamError(op string) {
	if f.metrics != nil {
		f.metrics.UpstreamError(op)
	}
}
