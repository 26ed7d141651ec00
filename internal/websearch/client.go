// Package websearch wraps the Tavily search API and exposes it as an agent
// tool.
package websearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	backoff "github.com/cenkalti/backoff/v4"
)

const DefaultBaseURL = "https://api.tavily.com"

type Client struct {
	APIKey     string
	BaseURL    string
	HTTPClient *http.Client
	Logger     *slog.Logger

	// MaxResults and SearchDepth mirror the Tavily request parameters.
	MaxResults  int
	SearchDepth string
}

func NewClient(apiKey string, logger *slog.Logger) *Client {
	return &Client{
		APIKey:      apiKey,
		BaseURL:     DefaultBaseURL,
		HTTPClient:  &http.Client{Timeout: 30 * time.Second},
		Logger:      logger,
		MaxResults:  5,
		SearchDepth: "advanced",
	}
}

type searchRequest struct {
	Query         string `json:"query"`
	MaxResults    int    `json:"max_results"`
	SearchDepth   string `json:"search_depth"`
	IncludeAnswer bool   `json:"include_answer"`
}

type SearchResponse struct {
	Query   string         `json:"query"`
	Answer  string         `json:"answer"`
	Results []SearchResult `json:"results"`
}

type SearchResult struct {
	Title   string  `json:"title"`
	URL     string  `json:"url"`
	Content string  `json:"content"`
	Score   float64 `json:"score"`
}

func (c *Client) Search(ctx context.Context, query string) (*SearchResponse, error) {
	reqBody, err := json.Marshal(searchRequest{
		Query:         query,
		MaxResults:    c.MaxResults,
		SearchDepth:   c.SearchDepth,
		IncludeAnswer: true,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	fn := func() (*SearchResponse, error) {
		return c.trySearch(ctx, reqBody)
	}
	opts := backoff.WithContext(backoff.NewExponentialBackOff(
		backoff.WithMaxElapsedTime(20*time.Second),
	), ctx)
	notify := func(err error, d time.Duration) {
		c.Logger.Warn("retrying search request", "delay", d, "error", err)
	}
	resp, err := backoff.RetryNotifyWithData(fn, opts, notify)
	if err != nil {
		return nil, fmt.Errorf("search with retries: %w", err)
	}
	return resp, nil
}

func (c *Client) trySearch(ctx context.Context, reqBody []byte) (*SearchResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/search", bytes.NewReader(reqBody))
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("new request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.APIKey)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	switch {
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, body)
	case resp.StatusCode != http.StatusOK:
		return nil, backoff.Permanent(fmt.Errorf("status %d: %s", resp.StatusCode, body))
	}

	var searchResp SearchResponse
	if err := json.Unmarshal(body, &searchResp); err != nil {
		return nil, backoff.Permanent(fmt.Errorf("decode response: %w", err))
	}
	return &searchResp, nil
}
