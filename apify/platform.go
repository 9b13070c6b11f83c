package apify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/sammcj/actorglue/config"
)

// ErrActorNotFound is returned when the platform has no actor of that name
var ErrActorNotFound = errors.New("actor not found")

// Platform is the subset of the Apify REST API the builder needs
type Platform interface {
	ActorID(ctx context.Context, name string) (string, error)
	DeleteActor(ctx context.Context, name string) error
	SetPublic(ctx context.Context, actorID string) error
}

// APIError is a non-2xx answer from the REST API
type APIError struct {
	Method string
	Path   string
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.Path, e.Status, strings.TrimSpace(e.Body))
}

// Client talks to the Apify REST API
type Client struct {
	endpoint string
	token    string
	http     *http.Client

	mu       sync.Mutex
	username string
}

// NewClient creates a REST client from the apify configuration
func NewClient(cfg config.ApifyConfig) *Client {
	return &Client{
		endpoint: strings.TrimRight(cfg.APIEndpoint, "/"),
		token:    cfg.Token,
		http:     &http.Client{Timeout: 30 * time.Second},
	}
}

// ActorID resolves an actor name owned by the token's user to its id
func (c *Client) ActorID(ctx context.Context, name string) (string, error) {
	path, err := c.actorPath(ctx, name)
	if err != nil {
		return "", err
	}

	var resp struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	status, err := c.do(ctx, http.MethodGet, path, nil, &resp)
	if status == http.StatusNotFound {
		return "", ErrActorNotFound
	}
	if err != nil {
		return "", err
	}
	return resp.Data.ID, nil
}

// DeleteActor removes the named actor. A missing actor is not an error.
func (c *Client) DeleteActor(ctx context.Context, name string) error {
	path, err := c.actorPath(ctx, name)
	if err != nil {
		return err
	}
	status, err := c.do(ctx, http.MethodDelete, path, nil, nil)
	if status == http.StatusNotFound {
		return nil
	}
	return err
}

// SetPublic marks the actor as publicly visible in the store
func (c *Client) SetPublic(ctx context.Context, actorID string) error {
	_, err := c.do(ctx, http.MethodPut, "/v2/acts/"+url.PathEscape(actorID), map[string]any{"isPublic": true}, nil)
	return err
}

// actorPath builds the username~name form the API accepts in place of an id
func (c *Client) actorPath(ctx context.Context, name string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.username == "" {
		var resp struct {
			Data struct {
				Username string `json:"username"`
			} `json:"data"`
		}
		if _, err := c.do(ctx, http.MethodGet, "/v2/users/me", nil, &resp); err != nil {
			return "", fmt.Errorf("resolve apify user: %w", err)
		}
		if resp.Data.Username == "" {
			return "", fmt.Errorf("resolve apify user: empty username")
		}
		c.username = resp.Data.Username
	}
	return "/v2/acts/" + url.PathEscape(c.username+"~"+name), nil
}

// do sends a JSON request and decodes a JSON response into out. The status
// code is returned even when err is set.
func (c *Client) do(ctx context.Context, method, path string, body, out any) (int, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return 0, fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.endpoint+path, reader)
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return resp.StatusCode, &APIError{Method: method, Path: path, Status: resp.StatusCode, Body: string(respBody)}
	}

	if out != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, out); err != nil {
			return resp.StatusCode, fmt.Errorf("decode response: %w", err)
		}
	}
	return resp.StatusCode, nil
}
