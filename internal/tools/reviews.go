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

// CompanyReview summarizes review-site sentiment for one company.
type CompanyReview struct {
	Company string  `json:"company"`
	Rating  float64 `json:"rating"`
	Summary string  `json:"summary"`
}

// ReviewClient queries an external company-review API.
type ReviewClient struct {
	endpoint string
	apiKey   string
	client   *http.Client
}

// NewReviewClient creates a client for the review endpoint.
func NewReviewClient(endpoint, apiKey string) *ReviewClient {
	return &ReviewClient{
		endpoint: endpoint,
		apiKey:   apiKey,
		client:   &http.Client{Timeout: 10 * time.Second},
	}
}

// Lookup fetches the review summary for a company.
func (c *ReviewClient) Lookup(ctx context.Context, company string) (*CompanyReview, error) {
	u := fmt.Sprintf("%s/reviews?company=%s", c.endpoint, url.QueryEscape(company))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("reviews: create request: %w", err)
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("reviews: send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("reviews: status %d: %s", resp.StatusCode, string(body))
	}

	var review CompanyReview
	if err := json.NewDecoder(resp.Body).Decode(&review); err != nil {
		return nil, fmt.Errorf("reviews: decode response: %w", err)
	}
	return &review, nil
}
