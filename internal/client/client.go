// Package client provides an HTTP client for the dbscribe server API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/dbscribe/dbscribe/internal/docs"
	"github.com/dbscribe/dbscribe/internal/index"
	"github.com/dbscribe/dbscribe/internal/llm"
	"github.com/dbscribe/dbscribe/internal/metrics"
)

// Client talks to a running dbscribe server.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates an API client.
// If baseURL is empty, uses DBSCRIBE_SERVER_URL env var or defaults to localhost:8490.
// Timeout can be configured via DBSCRIBE_CLIENT_TIMEOUT env var (default 10m for batch operations).
func New(baseURL string) *Client {
	if baseURL == "" {
		baseURL = os.Getenv("DBSCRIBE_SERVER_URL")
	}
	if baseURL == "" {
		baseURL = "http://localhost:8490"
	}

	timeout := 10 * time.Minute
	if t := os.Getenv("DBSCRIBE_CLIENT_TIMEOUT"); t != "" {
		if d, err := time.ParseDuration(t); err == nil {
			timeout = d
		}
	}

	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// apiError is the error payload the server returns on failure.
type apiError struct {
	Error string `json:"error"`
}

func (c *Client) do(ctx context.Context, method, path string, body, result any) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		var e apiError
		if json.Unmarshal(data, &e) == nil && e.Error != "" {
			return fmt.Errorf("%s %s: %s (status %d)", method, path, e.Error, resp.StatusCode)
		}
		return fmt.Errorf("%s %s: status %d", method, path, resp.StatusCode)
	}

	if result != nil {
		if err := json.Unmarshal(data, result); err != nil {
			return fmt.Errorf("unmarshal response: %w", err)
		}
	}
	return nil
}

// Health checks that the server is reachable.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("server unreachable: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check: status %d", resp.StatusCode)
	}
	return nil
}

// ServerStatus is the GET /api/status response.
type ServerStatus struct {
	Connected    bool   `json:"connected"`
	Database     string `json:"database,omitempty"`
	BatchRunning bool   `json:"batch_running,omitempty"`
}

// Status reports connection and batch state.
func (c *Client) Status(ctx context.Context) (ServerStatus, error) {
	var status ServerStatus
	err := c.do(ctx, "GET", "/api/status", nil, &status)
	return status, err
}

// ConnectRequest is the POST /api/connect payload.
type ConnectRequest struct {
	Server   string `json:"server"`
	Database string `json:"database"`
	User     string `json:"user,omitempty"`
	Password string `json:"password,omitempty"`
	Trusted  bool   `json:"trusted_connection,omitempty"`
}

// Connect establishes the server's database session.
func (c *Client) Connect(ctx context.Context, req ConnectRequest) (docs.ConnectionStatus, error) {
	var status docs.ConnectionStatus
	err := c.do(ctx, "POST", "/api/connect", req, &status)
	return status, err
}

// SavedConnection returns the last persisted connection settings.
func (c *Client) SavedConnection(ctx context.Context) (ConnectRequest, error) {
	var saved ConnectRequest
	err := c.do(ctx, "GET", "/api/saved-connection", nil, &saved)
	return saved, err
}

// StartBatch kicks off a documentation batch and returns the initial
// progress snapshot.
func (c *Client) StartBatch(ctx context.Context, opts docs.BatchOptions) (docs.ProgressSnapshot, error) {
	var progress docs.ProgressSnapshot
	err := c.do(ctx, "POST", "/api/batch", opts, &progress)
	return progress, err
}

// Progress returns the current batch progress.
func (c *Client) Progress(ctx context.Context) (docs.ProgressSnapshot, error) {
	var progress docs.ProgressSnapshot
	err := c.do(ctx, "GET", "/api/batch/progress", nil, &progress)
	return progress, err
}

// SearchResponse is the POST /api/search response.
type SearchResponse struct {
	Intent  *llm.Intent    `json:"intent,omitempty"`
	Results []index.Result `json:"results"`
}

// Search searches the documentation index. With useIntent the server
// interprets the query via the LLM before searching.
func (c *Client) Search(ctx context.Context, query string, limit int, useIntent bool) (SearchResponse, error) {
	var response SearchResponse
	err := c.do(ctx, "POST", "/api/search", map[string]any{
		"query":      query,
		"limit":      limit,
		"use_intent": useIntent,
	}, &response)
	return response, err
}

// Related returns documents similar to the named object.
func (c *Client) Related(ctx context.Context, schema, name string) ([]index.Result, error) {
	var response struct {
		Results []index.Result `json:"results"`
	}
	err := c.do(ctx, "GET", fmt.Sprintf("/api/related/%s/%s", schema, name), nil, &response)
	return response.Results, err
}

// Summary returns the stored documentation for an object without its
// analysis section.
func (c *Client) Summary(ctx context.Context, schema, name, objType string) (string, error) {
	var response struct {
		Summary string `json:"summary"`
	}
	err := c.do(ctx, "GET", fmt.Sprintf("/api/summary/%s/%s/%s", schema, name, objType), nil, &response)
	return response.Summary, err
}

// VectorStatus returns per-partition document counts.
func (c *Client) VectorStatus(ctx context.Context) (index.Stats, error) {
	var stats index.Stats
	err := c.do(ctx, "GET", "/api/vector-store/status", nil, &stats)
	return stats, err
}

// ClearVectorStore drops all stored documentation.
func (c *Client) ClearVectorStore(ctx context.Context) error {
	return c.do(ctx, "POST", "/api/vector-store/clear", nil, nil)
}

// Metrics returns the server's operation metrics snapshot.
func (c *Client) Metrics(ctx context.Context) (metrics.Snapshot, error) {
	var snapshot metrics.Snapshot
	err := c.do(ctx, "GET", "/api/metrics", nil, &snapshot)
	return snapshot, err
}
