// Package apiclient builds requests against the coffee shop API using the
// environment's apiServerUrl as the base for every target.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/eugenenazirov/coffee-env/internal/environment"
)

const defaultTimeout = 10 * time.Second

// ErrInvalidBaseURL indicates apiServerUrl is empty or not an absolute URL.
var ErrInvalidBaseURL = errors.New("invalid API server URL")

// Client resolves API targets against the configured server and executes JSON requests.
type Client struct {
	base       *url.URL
	httpClient *http.Client
}

// Option configures Client behaviour.
type Option func(*Client)

// WithHTTPClient overrides the underlying HTTP client (primarily for tests).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// New creates a Client for env.APIServerURL.
func New(env environment.Environment, opts ...Option) (*Client, error) {
	raw := strings.TrimSpace(env.APIServerURL)
	base, err := url.Parse(raw)
	if raw == "" || err != nil || !base.IsAbs() || base.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidBaseURL, env.APIServerURL)
	}
	if !strings.HasSuffix(base.Path, "/") {
		base.Path += "/"
	}

	c := &Client{
		base:       base,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// BaseURL returns the server base address.
func (c *Client) BaseURL() string {
	return c.base.String()
}

// Endpoint resolves path against the base URL, keeping any base path prefix.
func (c *Client) Endpoint(path string) string {
	ref := &url.URL{Path: strings.TrimLeft(path, "/")}
	return c.base.ResolveReference(ref).String()
}

// Drinks is the public drinks listing.
func (c *Client) Drinks() string {
	return c.Endpoint("/drinks")
}

// DrinksDetail is the listing that requires the get:drinks-detail permission.
func (c *Client) DrinksDetail() string {
	return c.Endpoint("/drinks-detail")
}

// Drink addresses a single drink for PATCH and DELETE.
func (c *Client) Drink(id int) string {
	return c.Endpoint("/drinks/" + strconv.Itoa(id))
}

// NewRequest builds a JSON request for path. A non-empty token is sent as a bearer credential.
func (c *Client) NewRequest(ctx context.Context, method, path, token string, body any) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.Endpoint(path), reader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req, nil
}

// StatusError is returned by Do for non-2xx responses.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("api returned status %d: %s", e.StatusCode, e.Message)
}

type errorEnvelope struct {
	Success bool   `json:"success"`
	Error   int    `json:"error"`
	Message string `json:"message"`
}

// Do executes req and decodes a JSON response into out when out is non-nil.
func (c *Client) Do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		statusErr := &StatusError{StatusCode: resp.StatusCode}
		var envelope errorEnvelope
		if json.Unmarshal(body, &envelope) == nil {
			statusErr.Message = envelope.Message
		}
		return statusErr
	}

	if out == nil || len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
