package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// CartItem is one line item inside an abandoned cart
type CartItem struct {
	ProductID    string  `json:"product_id"`
	VariantID    string  `json:"variant_id"`
	Title        string  `json:"title"`
	VariantTitle string  `json:"variant_title,omitempty"`
	Quantity     int     `json:"quantity"`
	Price        float64 `json:"price"`
	Image        string  `json:"image,omitempty"`
	ProductURL   string  `json:"product_url,omitempty"`
}

// CartItems is stored as a JSONB column
type CartItems []CartItem

// Value implements driver.Valuer
func (ci CartItems) Value() (driver.Value, error) {
	if ci == nil {
		ci = CartItems{}
	}
	return json.Marshal(ci)
}

// Scan implements sql.Scanner
func (ci *CartItems) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*ci = CartItems{}
		return nil
	case []byte:
		return json.Unmarshal(v, ci)
	case string:
		return json.Unmarshal([]byte(v), ci)
	default:
		return fmt.Errorf("unsupported cart items column type %T", src)
	}
}

// TotalQuantity sums the quantities of all line items
func (ci CartItems) TotalQuantity() int {
	var total int
	for _, item := range ci {
		total += item.Quantity
	}
	return total
}

// Cart is an abandoned checkout tracked for recovery.
// (shop, cart_token) is unique, it is the idempotency key for every writer.
type Cart struct {
	ID                  int64      `db:"id" json:"id"`
	Shop                string     `db:"shop" json:"shop"`
	CartToken           string     `db:"cart_token" json:"cart_token"`
	CustomerID          string     `db:"customer_id" json:"customer_id,omitempty"`
	CustomerEmail       string     `db:"customer_email" json:"customer_email,omitempty"`
	CustomerFirstName   string     `db:"customer_first_name" json:"customer_first_name,omitempty"`
	CustomerLastName    string     `db:"customer_last_name" json:"customer_last_name,omitempty"`
	Items               CartItems  `db:"items" json:"items"`
	ItemCount           int        `db:"item_count" json:"item_count"`
	TotalPrice          float64    `db:"total_price" json:"total_price"`
	Currency            string     `db:"currency" json:"currency"`
	Status              string     `db:"status" json:"status"`
	AbandonedAt         time.Time  `db:"abandoned_at" json:"abandoned_at"`
	RecoveredAt         *time.Time `db:"recovered_at" json:"recovered_at,omitempty"`
	RecoveryAttempts    int        `db:"recovery_attempts" json:"recovery_attempts"`
	LastRecoveryAttempt *time.Time `db:"last_recovery_attempt" json:"last_recovery_attempt,omitempty"`
	RecoveryURL         string     `db:"recovery_url" json:"recovery_url,omitempty"`
	Notes               string     `db:"notes" json:"notes,omitempty"`
	CreatedAt           time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt           time.Time  `db:"updated_at" json:"updated_at"`
}

// Cart statuses
const (
	CartStatusAbandoned = "abandoned"
	CartStatusRecovered = "recovered"
	CartStatusExpired   = "expired"
)

// ValidCartStatus reports whether s is one of the closed cart status set
func ValidCartStatus(s string) bool {
	switch s {
	case CartStatusAbandoned, CartStatusRecovered, CartStatusExpired:
		return true
	}
	return false
}

// CartPatch is the atomic item/price refresh applied by update events.
// ObservedAt is the event's own timestamp; patches older than the stored
// abandoned_at are dropped.
type CartPatch struct {
	Items      CartItems
	TotalPrice float64
	Currency   string
	ObservedAt time.Time
}

// ShopSettings is stored as a JSONB column
type ShopSettings struct {
	CartSavingEnabled   bool `json:"cart_saving_enabled"`
	NotificationEnabled bool `json:"notification_enabled"`
	AutoRecoveryEnabled bool `json:"auto_recovery_enabled"`
}

// DefaultShopSettings returns the settings applied on install
func DefaultShopSettings() ShopSettings {
	return ShopSettings{
		CartSavingEnabled:   true,
		NotificationEnabled: true,
		AutoRecoveryEnabled: false,
	}
}

// Value implements driver.Valuer
func (s ShopSettings) Value() (driver.Value, error) {
	return json.Marshal(s)
}

// Scan implements sql.Scanner
func (s *ShopSettings) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*s = DefaultShopSettings()
		return nil
	case []byte:
		return json.Unmarshal(v, s)
	case string:
		return json.Unmarshal([]byte(v), s)
	default:
		return fmt.Errorf("unsupported shop settings column type %T", src)
	}
}

// Shop is a merchant account. The domain is the tenant boundary for carts.
type Shop struct {
	ID          int64        `db:"id" json:"id"`
	Domain      string       `db:"shop" json:"shop"`
	AccessToken string       `db:"access_token" json:"-"`
	Scope       string       `db:"scope" json:"scope"`
	IsActive    bool         `db:"is_active" json:"is_active"`
	Plan        string       `db:"plan" json:"plan"`
	Settings    ShopSettings `db:"settings" json:"settings"`
	InstalledAt time.Time    `db:"installed_at" json:"installed_at"`
	LastActive  time.Time    `db:"last_active" json:"last_active"`
	CreatedAt   time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time    `db:"updated_at" json:"updated_at"`
}

// Shop plans
const (
	ShopPlanFree    = "free"
	ShopPlanBasic   = "basic"
	ShopPlanPremium = "premium"
)

// Metadata is free-form activity context stored as JSONB
type Metadata map[string]interface{}

// Value implements driver.Valuer
func (m Metadata) Value() (driver.Value, error) {
	if m == nil {
		m = Metadata{}
	}
	return json.Marshal(m)
}

// Scan implements sql.Scanner
func (m *Metadata) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*m = Metadata{}
		return nil
	case []byte:
		return json.Unmarshal(v, m)
	case string:
		return json.Unmarshal([]byte(v), m)
	default:
		return fmt.Errorf("unsupported metadata column type %T", src)
	}
}

// Activity is one audit log entry for a shop
type Activity struct {
	ID          string    `db:"id" json:"id"`
	Shop        string    `db:"shop" json:"shop"`
	Type        string    `db:"type" json:"type"`
	Title       string    `db:"title" json:"title"`
	Description string    `db:"description" json:"description"`
	Metadata    Metadata  `db:"metadata" json:"metadata"`
	Severity    string    `db:"severity" json:"severity"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// Activity types
const (
	ActivityAppInstalled    = "app_installed"
	ActivityAppUninstalled  = "app_uninstalled"
	ActivityCartsSynced     = "carts_synced"
	ActivityCartRecovered   = "cart_recovered"
	ActivityWebhooksSetup   = "webhooks_setup"
	ActivitySettingsUpdated = "settings_updated"
)

// Activity severities
const (
	SeveritySuccess = "success"
	SeverityError   = "error"
	SeverityWarning = "warning"
	SeverityInfo    = "info"
)

// RecoveryStats aggregates cart outcomes for a shop over a window
type RecoveryStats struct {
	TotalAbandoned int     `json:"total_abandoned"`
	TotalRecovered int     `json:"total_recovered"`
	RecoveryRate   float64 `json:"recovery_rate"`
	TotalValue     float64 `json:"total_value"`
	PeriodDays     int     `json:"period_days"`
}
