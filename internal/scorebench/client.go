package scorebench

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/bytedance/sonic"
)

// client wraps http.Client with the API key and base URL.
type client struct {
	http    *http.Client
	baseURL string
	apiKey  string
}

func newClient(cfg *Config) *client {
	return &client{
		http:    &http.Client{Timeout: cfg.Timeout},
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
	}
}

func (c *client) do(ctx context.Context, method, path string, body any) (int, []byte, error) {
	var rd io.Reader = http.NoBody
	if body != nil {
		data, err := sonic.Marshal(body)
		if err != nil {
			return 0, nil, fmt.Errorf("marshal request body: %w", err)
		}
		rd = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return 0, nil, fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if method != http.MethodGet {
		req.Header.Set("X-API-Key", c.apiKey)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer func() { _ = resp.Body.Close() }()
	data, err := io.ReadAll(resp.Body)
	return resp.StatusCode, data, err
}

func (c *client) health(ctx context.Context) error {
	status, _, err := c.do(ctx, http.MethodGet, "/healthz", nil)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnhealthy, err)
	}
	if status != http.StatusOK {
		return fmt.Errorf("%w: status %d", ErrUnhealthy, status)
	}
	return nil
}

func (c *client) clear(ctx context.Context) (int, error) {
	status, body, err := c.do(ctx, http.MethodDelete, "/api/leaderboard", nil)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrReset, err)
	}
	if status != http.StatusOK {
		return 0, fmt.Errorf("%w: status %d: %s", ErrReset, status, body)
	}
	var resp struct {
		Deleted int `json:"deleted"`
	}
	if err := sonic.Unmarshal(body, &resp); err != nil {
		return 0, fmt.Errorf("%w: %w", ErrReset, err)
	}
	return resp.Deleted, nil
}

func (c *client) submit(ctx context.Context, s Submission) Outcome {
	status, _, err := c.do(ctx, http.MethodPost, "/api/leaderboard", s)
	switch {
	case err != nil:
		return OutcomeFailed
	case status == http.StatusCreated:
		return OutcomeAccepted
	case status == http.StatusOK:
		return OutcomeNotInTop
	case status == http.StatusTooManyRequests:
		return OutcomeRateLimited
	default:
		return OutcomeFailed
	}
}

func (c *client) leaderboard(ctx context.Context) ([]Entry, error) {
	status, body, err := c.do(ctx, http.MethodGet, "/api/leaderboard", nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFetch, err)
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrFetch, status)
	}
	var entries []Entry
	if err := sonic.Unmarshal(body, &entries); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFetch, err)
	}
	return entries, nil
}
