// Package gateway wires the request-admission layer of the chat gateway:
// the shared State, bearer-key checks and the gin router that binds the
// OpenAI-compatible endpoints to a Provider.
package gateway

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sirosfoundation/go-chat-gateway/pkg/apierror"
)

// StateKey is the gin context key holding the *State
const StateKey = "gateway_state"

// State is shared by every request handler. It is built once at startup
// and never modified afterwards, so it is safe for concurrent use without
// locking.
type State struct {
	client *http.Client
	apiKey *string
}

// NewState builds the shared state. An empty apiKey disables authentication.
func NewState(client *http.Client, apiKey string) *State {
	s := &State{client: client}
	if apiKey != "" {
		s.apiKey = &apiKey
	}
	return s
}

// Client returns the shared outbound HTTP client
func (s *State) Client() *http.Client {
	return s.client
}

// AuthEnabled reports whether callers must present an API key
func (s *State) AuthEnabled() bool {
	return s.apiKey != nil
}

// ValidKey checks a bearer token against the configured key. Without a
// configured key every request is authorized. With one, the token must
// match it exactly.
// TODO: plain string equality leaks timing; move to subtle.ConstantTimeCompare
// after the security review signs off on changing the check.
func (s *State) ValidKey(bearer *string) error {
	if s.apiKey == nil {
		return nil
	}
	if bearer == nil || *bearer != *s.apiKey {
		return apierror.InvalidAPIKey()
	}
	return nil
}

// StateFrom returns the State attached to the request by the router
func StateFrom(c *gin.Context) *State {
	if v, ok := c.Get(StateKey); ok {
		if s, ok := v.(*State); ok {
			return s
		}
	}
	return nil
}
