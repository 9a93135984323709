// Package monitor provides the outbound HTTP surface of the pipeline:
// a client for posting worker registrations and heartbeats to an external
// registration endpoint.
package monitor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// RegistryClient posts JSON payloads to a registration endpoint. A
// non-2xx response is returned as a *StatusError, which is transient for
// retry purposes, distinct from a transport-level error; both count
// against the caller's retry budget.
type RegistryClient struct {
	baseURL    string
	httpClient *http.Client
}

// RegistryClientOption configures the client
type RegistryClientOption func(*RegistryClient)

// WithHTTPClient sets the underlying HTTP client.
func WithHTTPClient(client *http.Client) RegistryClientOption {
	return func(c *RegistryClient) {
		c.httpClient = client
	}
}

// NewRegistryClient creates a client for the endpoint at baseURL.
func NewRegistryClient(baseURL string, options ...RegistryClientOption) *RegistryClient {
	c := &RegistryClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}

	for _, opt := range options {
		opt(c)
	}

	return c
}

// Post sends payload as JSON to baseURL+path.
func (c *RegistryClient) Post(ctx context.Context, path string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("post %s: %w", path, err)
	}
	defer resp.Body.Close()
	// Drain so the connection can be reused.
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{Path: path, StatusCode: resp.StatusCode}
	}
	return nil
}

// StatusError reports a non-success response from the endpoint.
type StatusError struct {
	Path       string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("post %s: unexpected status %d", e.Path, e.StatusCode)
}

// IsRetryable marks non-success responses as transient.
func (e *StatusError) IsRetryable() bool {
	return true
}
