// Package retell places outbound phone calls through Retell AI
package retell

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"golang.org/x/time/rate"

	"github.com/sammcj/actorglue/config"
)

const createCallPath = "/v2/create-phone-call"

// OptionalParams are copied verbatim from the input payload into the call request
var OptionalParams = []string{"custom_sip_headers", "data_storage_setting", "opt_in_signed_url"}

// CallRequest describes an outbound call
type CallRequest struct {
	FromNumber       string            `mapstructure:"from_number"`
	ToNumber         string            `mapstructure:"to_number"`
	AgentID          string            `mapstructure:"agent_id"`
	DynamicVariables map[string]string `mapstructure:"retell_llm_dynamic_variables"`
	Extra            map[string]any    `mapstructure:",remain"`
}

// DecodeRequest converts loosely typed parameters, such as translated model
// output or tool arguments, into a CallRequest. Dynamic variable values are
// stringified because the API only accepts strings.
func DecodeRequest(params map[string]any) (CallRequest, error) {
	var req CallRequest
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           &req,
	})
	if err != nil {
		return req, err
	}
	if err := dec.Decode(params); err != nil {
		return req, fmt.Errorf("invalid call parameters: %w", err)
	}
	return req, nil
}

// body builds the wire payload
func (r CallRequest) body() map[string]any {
	body := map[string]any{}
	for k, v := range r.Extra {
		body[k] = v
	}
	body["from_number"] = r.FromNumber
	body["to_number"] = r.ToNumber
	if r.AgentID != "" {
		body["override_agent_id"] = r.AgentID
	}
	if len(r.DynamicVariables) > 0 {
		body["retell_llm_dynamic_variables"] = r.DynamicVariables
	}
	return body
}

// Call is the API's answer to a call creation
type Call struct {
	CallID     string         `json:"call_id"`
	CallStatus string         `json:"call_status"`
	AgentID    string         `json:"agent_id"`
	AgentName  string         `json:"agent_name"`
	CallType   string         `json:"call_type"`
	Direction  string         `json:"direction"`
	Metadata   map[string]any `json:"metadata"`
}

// Caller places calls
type Caller interface {
	CreatePhoneCall(ctx context.Context, req CallRequest) (*Call, error)
}

// APIError is a non-2xx answer from the Retell API
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("retell api: status %d: %s", e.Status, strings.TrimSpace(e.Body))
}

// Client is a Caller backed by the Retell REST API
type Client struct {
	endpoint string
	apiKey   string
	http     *http.Client
	limiter  *rate.Limiter
}

// NewClient creates a client. Calls are paced to two per second.
func NewClient(cfg config.RetellConfig) *Client {
	return &Client{
		endpoint: strings.TrimRight(config.FirstNonEmpty(cfg.Endpoint, "https://api.retellai.com"), "/"),
		apiKey:   cfg.APIKey,
		http:     &http.Client{Timeout: 30 * time.Second},
		limiter:  rate.NewLimiter(rate.Every(500*time.Millisecond), 1),
	}
}

// CreatePhoneCall starts an outbound call
func (c *Client) CreatePhoneCall(ctx context.Context, req CallRequest) (*Call, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	data, err := json.Marshal(req.body())
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+createCallPath, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("create phone call: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &APIError{Status: resp.StatusCode, Body: string(respBody)}
	}

	var call Call
	if err := json.Unmarshal(respBody, &call); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &call, nil
}
