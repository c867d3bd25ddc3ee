// Package vendorbilling talks to the external billing vendors that hold
// the payment-side subscription records linked from memberships.
package vendorbilling

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// HTTPStatusClient looks up vendor subscription status over the billing
// gateway's REST API.
type HTTPStatusClient struct {
	baseURL string
	client  *http.Client
}

func NewHTTPStatusClient(baseURL string, client *http.Client) *HTTPStatusClient {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &HTTPStatusClient{baseURL: baseURL, client: client}
}

type statusResponse struct {
	Status string `json:"status"`
}

// Status fetches the vendor-side subscription state for the given
// provider and external reference.
func (c *HTTPStatusClient) Status(ctx context.Context, vendor, ref string) (string, error) {
	if c.baseURL == "" {
		return "", fmt.Errorf("vendor billing gateway not configured")
	}

	endpoint := fmt.Sprintf("%s/v1/vendors/%s/subscriptions/%s",
		c.baseURL, url.PathEscape(vendor), url.PathEscape(ref))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("build vendor status request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("vendor status request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("vendor status request: unexpected status %d", resp.StatusCode)
	}

	var body statusResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("decode vendor status response: %w", err)
	}
	return body.Status, nil
}
