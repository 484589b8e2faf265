package shopify

import (
	"strconv"
	"time"
)

// LineItem is one line of a checkout or cart payload. Shopify sends
// prices as strings and ids as numbers.
type LineItem struct {
	ProductID    int64  `json:"product_id"`
	VariantID    int64  `json:"variant_id"`
	Title        string `json:"title"`
	VariantTitle string `json:"variant_title"`
	Quantity     int    `json:"quantity"`
	Price        string `json:"price"`
	ImageURL     string `json:"image_url"`
	ProductURL   string `json:"product_url"`
}

// Checkout is the snapshot shape shared by checkout/cart webhooks and the
// abandoned-checkouts API.
type Checkout struct {
	ID                   int64      `json:"id"`
	Token                string     `json:"token"`
	Email                string     `json:"email"`
	CustomerID           int64      `json:"customer_id"`
	LineItems            []LineItem `json:"line_items"`
	TotalPrice           string     `json:"total_price"`
	Currency             string     `json:"currency"`
	AbandonedCheckoutURL string     `json:"abandoned_checkout_url"`
	CreatedAt            time.Time  `json:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at"`
}

// Order is the subset of an orders/create payload the service consumes
type Order struct {
	ID         int64     `json:"id"`
	Email      string    `json:"email"`
	CustomerID int64     `json:"customer_id"`
	TotalPrice string    `json:"total_price"`
	Currency   string    `json:"currency"`
	CreatedAt  time.Time `json:"created_at"`
}

// AppUninstall is the app/uninstalled payload
type AppUninstall struct {
	Domain string `json:"domain"`
}

// Customer is a platform customer record used for enrichment
type Customer struct {
	ID        int64  `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// Webhook is a platform webhook subscription
type Webhook struct {
	ID      int64  `json:"id"`
	Topic   string `json:"topic"`
	Address string `json:"address"`
	Format  string `json:"format"`
}

// ShopInfo is the platform's own record of a shop
type ShopInfo struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Domain   string `json:"domain"`
	Country  string `json:"country"`
	Currency string `json:"currency"`
	Timezone string `json:"iana_timezone"`
}

// ParsePrice converts a platform price string to a float. Empty or
// malformed values come back as 0.
func ParsePrice(s string) float64 {
	if s == "" {
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}

// FormatID renders a numeric platform id the way cart records store it
func FormatID(id int64) string {
	if id == 0 {
		return ""
	}
	return strconv.FormatInt(id, 10)
}
