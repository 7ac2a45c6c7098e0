package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/sirosfoundation/go-chat-gateway/internal/app"
	"github.com/sirosfoundation/go-chat-gateway/internal/server"
	"github.com/sirosfoundation/go-chat-gateway/internal/shutdown"
	"github.com/sirosfoundation/go-chat-gateway/pkg/config"
	"github.com/sirosfoundation/go-chat-gateway/pkg/metrics"
)

// UpstreamKey is the provider key the harness configures by default
const UpstreamKey = "sk-upstream"

// RecordedRequest is a request as seen by the fake upstream
type RecordedRequest struct {
	Method string
	Path   string
	Header http.Header
	Body   []byte
}

// FakeUpstream is an OpenAI-compatible provider answering canned responses
type FakeUpstream struct {
	Server *httptest.Server

	mu       sync.Mutex
	requests []RecordedRequest
}

func newFakeUpstream() *FakeUpstream {
	u := &FakeUpstream{}
	u.Server = httptest.NewServer(http.HandlerFunc(u.serve))
	return u
}

func (u *FakeUpstream) serve(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	u.mu.Lock()
	u.requests = append(u.requests, RecordedRequest{
		Method: r.Method,
		Path:   r.URL.Path,
		Header: r.Header.Clone(),
		Body:   body,
	})
	u.mu.Unlock()

	switch r.URL.Path {
	case "/v1/models":
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"object":"list","data":[{"id":"gpt-fake","object":"model","owned_by":"fake"}]}`))
	case "/v1/chat/completions":
		var req struct {
			Model  string `json:"model"`
			Stream bool   `json:"stream"`
		}
		_ = json.Unmarshal(body, &req)
		if req.Stream {
			w.Header().Set("Content-Type", "text/event-stream")
			for _, chunk := range []string{"Hel", "lo"} {
				fmt.Fprintf(w, "data: {\"object\":\"chat.completion.chunk\",\"model\":%q,\"choices\":[{\"delta\":{\"content\":%q}}]}\n\n", req.Model, chunk)
				w.(http.Flusher).Flush()
			}
			_, _ = w.Write([]byte("data: [DONE]\n\n"))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"id":"chatcmpl-fake","object":"chat.completion","model":%q,"choices":[{"index":0,"message":{"role":"assistant","content":"Hello"}}]}`, req.Model)
	default:
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":{"message":"unknown route"}}`))
	}
}

// Requests returns the requests received so far
func (u *FakeUpstream) Requests() []RecordedRequest {
	u.mu.Lock()
	defer u.mu.Unlock()
	return append([]RecordedRequest(nil), u.requests...)
}

// LastRequest returns the most recent request, failing t if there is none
func (u *FakeUpstream) LastRequest(t *testing.T) RecordedRequest {
	t.Helper()
	reqs := u.Requests()
	if len(reqs) == 0 {
		t.Fatal("upstream received no requests")
	}
	return reqs[len(reqs)-1]
}

// TestHarness runs the complete gateway on a loopback listener in front of
// a fake upstream, with helper methods for making API requests.
type TestHarness struct {
	T        *testing.T
	Config   *config.Config
	Upstream *FakeUpstream
	Metrics  *metrics.Collector
	Logger   *zap.Logger

	// Client is a pre-configured HTTP client for making requests
	Client *http.Client

	// BaseURL is the URL of the gateway under test
	BaseURL string

	coord  *shutdown.Coordinator
	sigCh  chan os.Signal
	runErr chan error
}

// TestHarnessOption configures the test harness
type TestHarnessOption func(*TestHarness)

// WithConfig sets a custom config for the test harness. Bind and
// upstream.base_url are always overridden.
func WithConfig(cfg *config.Config) TestHarnessOption {
	return func(h *TestHarness) {
		h.Config = cfg
	}
}

// WithAPIKey requires callers to present key
func WithAPIKey(key string) TestHarnessOption {
	return func(h *TestHarness) {
		h.Config.APIKey = key
	}
}

// NewTestHarness starts a gateway wired by app.New, as the gateway binary is
func NewTestHarness(t *testing.T, opts ...TestHarnessOption) *TestHarness {
	t.Helper()

	gin.SetMode(gin.TestMode)

	h := &TestHarness{
		T:        t,
		Config:   config.Default(),
		Upstream: newFakeUpstream(),
		Logger:   zap.NewNop(),
		Client:   &http.Client{Timeout: 10 * time.Second},
		sigCh:    make(chan os.Signal, 1),
		runErr:   make(chan error, 1),
	}
	t.Cleanup(h.Upstream.Server.Close)

	h.Config.Upstream.APIKey = UpstreamKey

	// Apply options
	for _, opt := range opts {
		opt(h)
	}

	h.Config.Bind = "127.0.0.1:0"
	h.Config.Upstream.BaseURL = h.Upstream.Server.URL

	gw := app.New(h.Config, h.Logger)
	h.Metrics = gw.Metrics

	srv, err := server.New(app.ServerConfig(h.Config), gw.Router, h.Logger)
	if err != nil {
		t.Fatalf("Failed to create server: %v", err)
	}

	ln, err := srv.Listen(context.Background())
	if err != nil {
		t.Fatalf("Failed to listen: %v", err)
	}
	h.BaseURL = "http://" + ln.Addr().String()

	h.coord = shutdown.New(h.Logger,
		shutdown.WithSignalChannel(h.sigCh),
		shutdown.WithTimeout(h.Config.ShutdownTimeoutDuration()),
	)
	go func() { h.runErr <- srv.Run(context.Background(), ln, h.coord) }()

	// Register cleanup
	t.Cleanup(func() {
		if h.coord.State() == shutdown.Running {
			_ = h.Stop()
		}
	})

	return h
}

// Stop delivers SIGTERM to the gateway and waits for the drain to finish
func (h *TestHarness) Stop() error {
	h.sigCh <- syscall.SIGTERM
	select {
	case err := <-h.runErr:
		return err
	case <-time.After(10 * time.Second):
		return fmt.Errorf("gateway did not stop")
	}
}

// Coordinator returns the shutdown coordinator of the running gateway
func (h *TestHarness) Coordinator() *shutdown.Coordinator {
	return h.coord
}

// Request makes an HTTP request to the gateway
func (h *TestHarness) Request(method, path string, body interface{}) *Response {
	h.T.Helper()
	return h.Do(h.NewRequest(method, path, body))
}

// NewRequest builds a request for path. A string or []byte body is sent
// as is; anything else is JSON encoded.
func (h *TestHarness) NewRequest(method, path string, body interface{}) *http.Request {
	h.T.Helper()

	var bodyReader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		bodyReader = bytes.NewReader([]byte(b))
	case []byte:
		bodyReader = bytes.NewReader(b)
	default:
		jsonBody, err := json.Marshal(body)
		if err != nil {
			h.T.Fatalf("Failed to marshal request body: %v", err)
		}
		bodyReader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequest(method, h.BaseURL+path, bodyReader)
	if err != nil {
		h.T.Fatalf("Failed to create request: %v", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req
}

// Do executes an HTTP request and returns a Response wrapper
func (h *TestHarness) Do(req *http.Request) *Response {
	h.T.Helper()

	resp, err := h.Client.Do(req)
	if err != nil {
		h.T.Fatalf("Request failed: %v", err)
	}

	return &Response{
		T:        h.T,
		Response: resp,
	}
}

// GET makes a GET request
func (h *TestHarness) GET(path string) *Response {
	return h.Request(http.MethodGet, path, nil)
}

// POST makes a POST request with a JSON body
func (h *TestHarness) POST(path string, body interface{}) *Response {
	return h.Request(http.MethodPost, path, body)
}

// WithAuth returns a client that sends token as a bearer key
func (h *TestHarness) WithAuth(token string) *AuthenticatedClient {
	return &AuthenticatedClient{
		harness: h,
		token:   token,
	}
}

// AuthenticatedClient wraps the harness with auth headers
type AuthenticatedClient struct {
	harness *TestHarness
	token   string
}

// GET makes an authenticated GET request
func (c *AuthenticatedClient) GET(path string) *Response {
	c.harness.T.Helper()
	req := c.harness.NewRequest(http.MethodGet, path, nil)
	req.Header.Set("Authorization", "Bearer "+c.token)
	return c.harness.Do(req)
}

// POST makes an authenticated POST request
func (c *AuthenticatedClient) POST(path string, body interface{}) *Response {
	c.harness.T.Helper()
	req := c.harness.NewRequest(http.MethodPost, path, body)
	req.Header.Set("Authorization", "Bearer "+c.token)
	return c.harness.Do(req)
}

// Response wraps an HTTP response with assertion helpers
type Response struct {
	T        *testing.T
	Response *http.Response
	body     []byte
	bodyRead bool
}

// Body returns the response body as bytes
func (r *Response) Body() []byte {
	r.T.Helper()
	if !r.bodyRead {
		var err error
		r.body, err = io.ReadAll(r.Response.Body)
		if err != nil {
			r.T.Fatalf("Failed to read response body: %v", err)
		}
		r.Response.Body.Close()
		r.bodyRead = true
	}
	return r.body
}

// JSON unmarshals the response body into the given target
func (r *Response) JSON(target interface{}) *Response {
	r.T.Helper()
	if err := json.Unmarshal(r.Body(), target); err != nil {
		r.T.Fatalf("Failed to unmarshal response: %v\nBody: %s", err, string(r.Body()))
	}
	return r
}

// Status asserts the response status code
func (r *Response) Status(expected int) *Response {
	r.T.Helper()
	if r.Response.StatusCode != expected {
		r.T.Errorf("Expected status %d, got %d\nBody: %s", expected, r.Response.StatusCode, string(r.Body()))
	}
	return r
}

// Header returns the value of a response header
func (r *Response) Header(name string) string {
	return r.Response.Header.Get(name)
}

// HasHeader asserts that a header exists
func (r *Response) HasHeader(name string) *Response {
	r.T.Helper()
	if r.Header(name) == "" {
		r.T.Errorf("Expected header %q to be present", name)
	}
	return r
}

// BodyContains asserts the response body contains a substring
func (r *Response) BodyContains(substr string) *Response {
	r.T.Helper()
	if !bytes.Contains(r.Body(), []byte(substr)) {
		r.T.Errorf("Expected body to contain %q\nBody: %s", substr, string(r.Body()))
	}
	return r
}

// ErrorEnvelope asserts an error response in the OpenAI error shape
func (r *Response) ErrorEnvelope(status int, errType string) *Response {
	r.T.Helper()
	r.Status(status)

	var env struct {
		Message string  `json:"message"`
		Type    string  `json:"type"`
		Param   *string `json:"param"`
	}
	r.JSON(&env)
	if env.Type != errType {
		r.T.Errorf("Expected error type %q, got %q", errType, env.Type)
	}
	if env.Message == "" {
		r.T.Errorf("Expected a non-empty error message")
	}
	if env.Param != nil {
		r.T.Errorf("Expected param to be null, got %q", *env.Param)
	}
	return r
}
