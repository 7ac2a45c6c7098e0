package gateway

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"go.uber.org/zap"

	"github.com/sirosfoundation/go-chat-gateway/pkg/apierror"
	"github.com/sirosfoundation/go-chat-gateway/pkg/metrics"
	"github.com/sirosfoundation/go-chat-gateway/pkg/middleware"
)

// ServiceName is reported by the status endpoints
const ServiceName = "chat-gateway"

// RouterOptions holds the optional collaborators of the router
type RouterOptions struct {
	Logger *zap.Logger
	// Metrics enables request metrics and GET /metrics when non-nil
	Metrics *metrics.Collector
}

// NewRouter binds the API endpoints to provider. Every request shares the
// same state; /v1 routes require a valid key when one is configured.
func NewRouter(state *State, provider Provider, opts RouterOptions) *gin.Engine {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	router := gin.New()

	// Middleware
	router.Use(gin.CustomRecovery(func(c *gin.Context, recovered any) {
		logger.Error("Recovered from panic", zap.Any("panic", recovered))
		apierror.Respond(c, apierror.Internal(fmt.Errorf("panic: %v", recovered)))
	}))
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger(logger))
	if opts.Metrics != nil {
		router.Use(opts.Metrics.Middleware())
	}
	router.Use(middleware.MirrorCORS())
	router.Use(func(c *gin.Context) {
		c.Set(StateKey, state)
		c.Next()
	})

	// Root-level health/status endpoints (no key required)
	status := func(c *gin.Context) {
		c.JSON(http.StatusOK, StatusResponse{
			Status:       "ok",
			Service:      ServiceName,
			APIVersion:   CurrentAPIVersion,
			AuthRequired: state.AuthEnabled(),
			Capabilities: capabilities,
		})
	}
	router.GET("/health", status)
	router.GET("/status", status)

	if opts.Metrics != nil {
		router.GET("/metrics", gin.WrapH(opts.Metrics.Handler()))
	}

	v1 := router.Group("/v1")
	v1.Use(middleware.APIKeyAuth(state.ValidKey, logger))
	{
		v1.GET("/models", func(c *gin.Context) {
			handle(c, provider.ListModels(c, StateFrom(c)))
		})
		v1.POST("/chat/completions", func(c *gin.Context) {
			var req ChatCompletionRequest
			if err := c.ShouldBindBodyWith(&req, binding.JSON); err != nil {
				apierror.Respond(c, apierror.RequestBodyInvalid(err))
				return
			}
			if raw, ok := c.Get(gin.BodyBytesKey); ok {
				req.Raw, _ = raw.([]byte)
			}

			handle(c, provider.ChatCompletions(c, StateFrom(c), &req))
		})
	}

	return router
}

// handle converts a provider error into the error envelope, unless the
// provider already started writing its response.
func handle(c *gin.Context, err error) {
	if err == nil {
		return
	}
	if c.Writer.Written() {
		_ = c.Error(err)
		c.Abort()
		return
	}
	apierror.Respond(c, err)
}
