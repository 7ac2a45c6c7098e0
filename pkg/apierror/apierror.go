// Package apierror defines the gateway's request-scoped error taxonomy and
// its OpenAI-compatible wire representation.
//
// Every failure a handler can produce is an *Error carrying a Kind. Status
// maps a Kind to an HTTP status code and an Envelope; errors that are not an
// *Error, and kinds without an explicit mapping, become a 500 server_error.
package apierror

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Kind classifies a request-scoped failure.
type Kind int

const (
	// KindInternal is any failure not caused by the caller.
	KindInternal Kind = iota
	// KindRequestBodyInvalid means the request body could not be parsed.
	KindRequestBodyInvalid
	// KindInvalidAPIKey means the bearer token was missing or wrong.
	KindInvalidAPIKey
)

// Wire values of the envelope's type field.
const (
	TypeInvalidRequest = "invalid_request_error"
	TypeServerError    = "server_error"
)

// Error is a request-scoped failure.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return "internal server error"
}

func (e *Error) Unwrap() error {
	return e.Err
}

// RequestBodyInvalid wraps a body parser rejection.
func RequestBodyInvalid(err error) *Error {
	return &Error{Kind: KindRequestBodyInvalid, Message: err.Error(), Err: err}
}

// InvalidAPIKey is returned when the bearer token does not match.
func InvalidAPIKey() *Error {
	return &Error{Kind: KindInvalidAPIKey, Message: "invalid api key"}
}

// Internal wraps any other failure.
func Internal(err error) *Error {
	return &Error{Kind: KindInternal, Err: err}
}

// Envelope is the JSON error body.
type Envelope struct {
	Message string  `json:"message"`
	Type    string  `json:"type"`
	Param   *string `json:"param"`
}

// Status maps err to its HTTP status code and envelope.
func Status(err error) (int, Envelope) {
	var apiErr *Error
	if !errors.As(err, &apiErr) {
		return http.StatusInternalServerError, Envelope{Message: err.Error(), Type: TypeServerError}
	}

	switch apiErr.Kind {
	case KindRequestBodyInvalid:
		return http.StatusBadRequest, Envelope{Message: apiErr.Error(), Type: TypeInvalidRequest}
	case KindInvalidAPIKey:
		return http.StatusUnauthorized, Envelope{Message: apiErr.Error(), Type: TypeInvalidRequest}
	default:
		return http.StatusInternalServerError, Envelope{Message: apiErr.Error(), Type: TypeServerError}
	}
}

// Respond records err on the gin context and aborts with its envelope.
func Respond(c *gin.Context, err error) {
	status, body := Status(err)
	_ = c.Error(err)
	c.AbortWithStatusJSON(status, body)
}
