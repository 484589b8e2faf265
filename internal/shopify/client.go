package shopify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// Client is a REST Admin API client scoped to one shop. The service
// treats it as a black-box snapshot source.
type Client struct {
	shopDomain  string
	accessToken string
	apiVersion  string
	baseURL     string
	httpClient  *http.Client
}

// NewClient creates an API client for a shop using its stored access token
func NewClient(shopDomain, accessToken, apiVersion string) *Client {
	return &Client{
		shopDomain:  shopDomain,
		accessToken: accessToken,
		apiVersion:  apiVersion,
		baseURL:     fmt.Sprintf("https://%s/admin/api/%s", shopDomain, apiVersion),
		httpClient:  &http.Client{Timeout: 15 * time.Second},
	}
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reqBody *bytes.Buffer
	if body != nil {
		reqBody = &bytes.Buffer{}
		if err := json.NewEncoder(reqBody).Encode(body); err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
	} else {
		reqBody = bytes.NewBuffer(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return err
	}
	req.Header.Set("X-Shopify-Access-Token", c.accessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("shopify request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("shopify api returned %d for %s %s", resp.StatusCode, method, path)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode shopify response: %w", err)
	}
	return nil
}

// GetAbandonedCheckouts fetches up to limit open checkouts for the shop
func (c *Client) GetAbandonedCheckouts(ctx context.Context, limit int) ([]Checkout, error) {
	var out struct {
		Checkouts []Checkout `json:"checkouts"`
	}
	q := url.Values{}
	q.Set("limit", fmt.Sprintf("%d", limit))
	q.Set("status", "open")
	if err := c.do(ctx, http.MethodGet, "/checkouts.json?"+q.Encode(), nil, &out); err != nil {
		return nil, fmt.Errorf("failed to get abandoned checkouts: %w", err)
	}
	return out.Checkouts, nil
}

// GetCustomer fetches one customer by id
func (c *Client) GetCustomer(ctx context.Context, customerID int64) (*Customer, error) {
	var out struct {
		Customer Customer `json:"customer"`
	}
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/customers/%d.json", customerID), nil, &out); err != nil {
		return nil, fmt.Errorf("failed to get customer %d: %w", customerID, err)
	}
	return &out.Customer, nil
}

// CreateWebhook subscribes the given address to a topic
func (c *Client) CreateWebhook(ctx context.Context, topic, address string) (*Webhook, error) {
	payload := map[string]Webhook{
		"webhook": {Topic: topic, Address: address, Format: "json"},
	}
	var out struct {
		Webhook Webhook `json:"webhook"`
	}
	if err := c.do(ctx, http.MethodPost, "/webhooks.json", payload, &out); err != nil {
		return nil, fmt.Errorf("failed to create webhook for %s: %w", topic, err)
	}
	return &out.Webhook, nil
}

// ListWebhooks returns the shop's current webhook subscriptions
func (c *Client) ListWebhooks(ctx context.Context) ([]Webhook, error) {
	var out struct {
		Webhooks []Webhook `json:"webhooks"`
	}
	if err := c.do(ctx, http.MethodGet, "/webhooks.json", nil, &out); err != nil {
		return nil, fmt.Errorf("failed to list webhooks: %w", err)
	}
	return out.Webhooks, nil
}

// GetShopInfo fetches the platform's record of the shop
func (c *Client) GetShopInfo(ctx context.Context) (*ShopInfo, error) {
	var out struct {
		Shop ShopInfo `json:"shop"`
	}
	if err := c.do(ctx, http.MethodGet, "/shop.json", nil, &out); err != nil {
		return nil, fmt.Errorf("failed to get shop info: %w", err)
	}
	return &out.Shop, nil
}
