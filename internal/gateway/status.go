package gateway

// CurrentAPIVersion is the capability level reported on /status
const CurrentAPIVersion = 1

// StatusResponse is the response from the /status endpoint.
type StatusResponse struct {
	Status       string   `json:"status"`
	Service      string   `json:"service"`
	APIVersion   int      `json:"api_version"`
	AuthRequired bool     `json:"auth_required"`
	Capabilities []string `json:"capabilities,omitempty"`
}

var capabilities = []string{"models", "chat-completions"}
