// Package backend is the HTTP client for the upstream property-management API,
// the system of record for leases, payments, units and properties.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/matthewbaird/rentroll/internal/types"
)

// APIError is a non-2xx response from the backend.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("backend: API error %d: %s", e.StatusCode, e.Body)
}

// Client is the HTTP client for the backend API.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewClient creates a new backend client. A zero timeout means 30 seconds.
func NewClient(baseURL, token string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// IsConfigured returns true if the client has a base URL.
func (c *Client) IsConfigured() bool {
	return c != nil && c.baseURL != ""
}

func (c *Client) get(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("backend: create request: %w", err)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("backend: GET %s: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("backend: read response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return nil, &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	return body, nil
}

// unwrap accepts both a bare JSON value and a {"data": ...} envelope.
func unwrap(body []byte) []byte {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return trimmed
	}
	var env struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(trimmed, &env); err == nil && len(env.Data) > 0 {
		return env.Data
	}
	return trimmed
}

func fetch[T any](ctx context.Context, c *Client, path, what string) (T, error) {
	var v T
	body, err := c.get(ctx, path)
	if err != nil {
		return v, err
	}
	if err := json.Unmarshal(unwrap(body), &v); err != nil {
		return v, fmt.Errorf("backend: unmarshal %s: %w", what, err)
	}
	return v, nil
}

// ListLeases returns every lease visible to the token.
func (c *Client) ListLeases(ctx context.Context) ([]types.Lease, error) {
	return fetch[[]types.Lease](ctx, c, "/leases", "leases")
}

// ListPayments returns every payment visible to the token.
func (c *Client) ListPayments(ctx context.Context) ([]types.Payment, error) {
	return fetch[[]types.Payment](ctx, c, "/payments", "payments")
}

// ListUnits returns every unit visible to the token.
func (c *Client) ListUnits(ctx context.Context) ([]types.Unit, error) {
	return fetch[[]types.Unit](ctx, c, "/units", "units")
}

// ListProperties returns every property visible to the token.
func (c *Client) ListProperties(ctx context.Context) ([]types.Property, error) {
	return fetch[[]types.Property](ctx, c, "/properties", "properties")
}

// FetchProperty returns one property with its units.
func (c *Client) FetchProperty(ctx context.Context, id types.ID) (*types.Property, error) {
	p, err := fetch[types.Property](ctx, c, "/properties/"+url.PathEscape(id.String()), "property")
	if err != nil {
		return nil, err
	}
	return &p, nil
}
