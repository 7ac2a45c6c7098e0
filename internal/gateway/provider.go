package gateway

import (
	"encoding/json"

	"github.com/gin-gonic/gin"
)

// Provider serves the two upstream-backed endpoints. Implementations write
// the response themselves and return an error (ideally an *apierror.Error)
// only when nothing has been written yet.
type Provider interface {
	ListModels(c *gin.Context, state *State) error
	ChatCompletions(c *gin.Context, state *State, req *ChatCompletionRequest) error
}

// ChatCompletionRequest is the admitted chat-completion body. Only the fields
// the gateway inspects are decoded; Raw holds the body exactly as received.
type ChatCompletionRequest struct {
	Model    string            `json:"model" binding:"required"`
	Messages []json.RawMessage `json:"messages" binding:"required"`
	Stream   bool              `json:"stream,omitempty"`

	Raw []byte `json:"-"`
}
