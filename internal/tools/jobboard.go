package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// Listing is one job-board search hit.
type Listing struct {
	Title   string `json:"title"`
	Company string `json:"company"`
	URL     string `json:"url"`
	Reason  string `json:"reason,omitempty"`
}

// JobBoardClient queries an external job-board search API.
type JobBoardClient struct {
	endpoint string
	apiKey   string
	client   *http.Client
}

// NewJobBoardClient creates a client for the job-board endpoint.
func NewJobBoardClient(endpoint, apiKey string) *JobBoardClient {
	return &JobBoardClient{
		endpoint: endpoint,
		apiKey:   apiKey,
		client:   &http.Client{Timeout: 10 * time.Second},
	}
}

// Search returns listings matching the query.
func (c *JobBoardClient) Search(ctx context.Context, query string, limit int) ([]Listing, error) {
	u := fmt.Sprintf("%s/search?q=%s&limit=%d", c.endpoint, url.QueryEscape(query), limit)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("job board: create request: %w", err)
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("job board: send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("job board: status %d: %s", resp.StatusCode, string(body))
	}

	var result struct {
		Listings []Listing `json:"listings"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("job board: decode response: %w", err)
	}
	return result.Listings, nil
}
