// Package engine is the REST and push-channel client for the basisdesk
// execution engine. Open and close requests are asynchronous: the engine
// returns a job id which the caller polls to a terminal status.
package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/joasgard/basisdesk/internal/domain"
)

// Client is the REST client for the engine API.
type Client struct {
	baseURL    string
	httpClient *http.Client

	mu    sync.RWMutex
	token string
}

// NewClient creates an engine client for the given API root, e.g.
// "https://engine.basisdesk.io/v1".
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// SetToken installs the bearer token for the current session. An empty token
// clears the session.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
}

// Authenticated reports whether a session token is installed.
func (c *Client) Authenticated() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token != ""
}

// SubmitOpen submits an asynchronous open request and returns the job id.
func (c *Client) SubmitOpen(ctx context.Context, asset string, leverage, sizeUSD float64) (string, error) {
	var resp JobResponse
	err := c.doRequest(ctx, http.MethodPost, "/positions/open", OpenRequest{
		Asset:    asset,
		Leverage: leverage,
		SizeUSD:  sizeUSD,
	}, &resp)
	if err != nil {
		return "", fmt.Errorf("engine: submit open: %w", err)
	}
	return resp.JobID, nil
}

// SubmitClose submits an asynchronous close request and returns the job id.
func (c *Client) SubmitClose(ctx context.Context, positionID string) (string, error) {
	var resp JobResponse
	err := c.doRequest(ctx, http.MethodPost, "/positions/close", CloseRequest{
		PositionID: positionID,
	}, &resp)
	if err != nil {
		return "", fmt.Errorf("engine: submit close: %w", err)
	}
	return resp.JobID, nil
}

// JobStatus fetches the current state of a job.
func (c *Client) JobStatus(ctx context.Context, jobID string) (JobStatusResponse, error) {
	var resp JobStatusResponse
	path := fmt.Sprintf("/jobs/%s", url.PathEscape(jobID))
	if err := c.doRequest(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return JobStatusResponse{}, fmt.Errorf("engine: job status %s: %w", jobID, err)
	}
	return resp, nil
}

// Preflight runs the batched pre-trade validation for the proposed order.
func (c *Client) Preflight(ctx context.Context, asset string, leverage, sizeUSD float64) (PreflightResponse, error) {
	var resp PreflightResponse
	err := c.doRequest(ctx, http.MethodPost, "/preflight", PreflightRequest{
		Asset:    asset,
		Leverage: leverage,
		SizeUSD:  sizeUSD,
	}, &resp)
	if err != nil {
		return PreflightResponse{}, fmt.Errorf("engine: preflight: %w", err)
	}
	return resp, nil
}

// Positions fetches the full position list for the session account.
func (c *Client) Positions(ctx context.Context) ([]domain.Position, error) {
	var payloads []PositionPayload
	if err := c.doRequest(ctx, http.MethodGet, "/positions", nil, &payloads); err != nil {
		return nil, fmt.Errorf("engine: list positions: %w", err)
	}
	out := make([]domain.Position, 0, len(payloads))
	for _, p := range payloads {
		out = append(out, p.ToDomain())
	}
	return out, nil
}

// Position fetches a single position by id.
func (c *Client) Position(ctx context.Context, id string) (domain.Position, error) {
	var payload PositionPayload
	path := fmt.Sprintf("/positions/%s", url.PathEscape(id))
	if err := c.doRequest(ctx, http.MethodGet, path, nil, &payload); err != nil {
		return domain.Position{}, fmt.Errorf("engine: get position %s: %w", id, err)
	}
	return payload.ToDomain(), nil
}

// --------------------------------------------------------------------------
// Internal helpers
// --------------------------------------------------------------------------

// doRequest builds, sends, and decodes an HTTP request against the engine
// API. POST requests carry a client-generated idempotency key so retried
// submits cannot double-execute on the engine side.
func (c *Client) doRequest(ctx context.Context, method, path string, reqBody, out any) error {
	var body io.Reader
	if reqBody != nil {
		data, err := json.Marshal(reqBody)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if reqBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if method == http.MethodPost {
		req.Header.Set("Idempotency-Key", uuid.NewString())
	}

	c.mu.RLock()
	token := c.token
	c.mu.RUnlock()
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode == http.StatusUnauthorized {
		return domain.ErrNotAuthenticated
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(respBody))
	}

	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}
