package service

import (
	"context"
	"fmt"

	"cartsaver/internal/activity"
	"cartsaver/internal/models"
	"cartsaver/internal/shopify"
	"cartsaver/internal/util"

	"go.uber.org/zap"
)

// ShopAdminStore is the shop-record surface the dashboard uses
type ShopAdminStore interface {
	UpsertShop(ctx context.Context, shop *models.Shop) error
	GetShopByDomain(ctx context.Context, domain string) (*models.Shop, error)
	UpdateShopSettings(ctx context.Context, domain string, settings models.ShopSettings) (*models.Shop, error)
	DeactivateShop(ctx context.Context, domain string) error
}

// PlatformClient is the admin-API surface for provisioning and shop info.
// *shopify.Client satisfies it.
type PlatformClient interface {
	CreateWebhook(ctx context.Context, topic, address string) (*shopify.Webhook, error)
	ListWebhooks(ctx context.Context) ([]shopify.Webhook, error)
	GetShopInfo(ctx context.Context) (*shopify.ShopInfo, error)
}

// PlatformFactory builds a platform client from a shop's stored credential
type PlatformFactory func(shop *models.Shop) PlatformClient

// WebhookStatus reports whether one required subscription is in place
type WebhookStatus struct {
	Topic  string `json:"topic"`
	Status string `json:"status"`
	ID     int64  `json:"id,omitempty"`
}

// ShopService handles shop provisioning and settings
type ShopService struct {
	store     ShopAdminStore
	newClient PlatformFactory
	appURL    string
	recorder  activity.Recorder
	logger    *zap.Logger
}

// NewShopService creates a new shop service
func NewShopService(store ShopAdminStore, newClient PlatformFactory, appURL string, recorder activity.Recorder) *ShopService {
	if recorder == nil {
		recorder = activity.NopRecorder{}
	}
	return &ShopService{
		store:     store,
		newClient: newClient,
		appURL:    appURL,
		recorder:  recorder,
		logger:    util.GetLogger(),
	}
}

// Install registers a shop after the platform has granted it a
// credential. Reinstalls reactivate the existing record, then webhook
// subscriptions are provisioned for the new credential.
func (s *ShopService) Install(ctx context.Context, domain, accessToken, scope string) (*models.Shop, error) {
	shop := &models.Shop{
		Domain:      domain,
		AccessToken: accessToken,
		Scope:       scope,
		Settings:    models.DefaultShopSettings(),
	}

	if err := s.store.UpsertShop(ctx, shop); err != nil {
		return nil, fmt.Errorf("failed to register shop: %w", err)
	}

	s.logger.Info("Shop installed", zap.String("shop", shop.Domain))
	s.recorder.Record(ctx, activity.AppInstalled(shop.Domain))

	if _, err := s.SetupWebhooks(ctx, shop); err != nil {
		s.logger.Error("Webhook setup failed during install",
			zap.String("shop", shop.Domain), zap.Error(err))
	}

	return shop, nil
}

// GetShop retrieves the shop record by domain
func (s *ShopService) GetShop(ctx context.Context, domain string) (*models.Shop, error) {
	shop, err := s.store.GetShopByDomain(ctx, domain)
	if err != nil {
		return nil, fmt.Errorf("failed to get shop: %w", err)
	}
	if shop == nil {
		return nil, fmt.Errorf("shop not found: %s", domain)
	}
	return shop, nil
}

// GetShopInfo fetches the platform's own record of the shop
func (s *ShopService) GetShopInfo(ctx context.Context, shop *models.Shop) (*shopify.ShopInfo, error) {
	return s.newClient(shop).GetShopInfo(ctx)
}

// SetupWebhooks subscribes the webhook endpoint to every required topic.
// A per-topic failure is logged and skipped so the remaining topics still
// get provisioned.
func (s *ShopService) SetupWebhooks(ctx context.Context, shop *models.Shop) ([]shopify.Webhook, error) {
	client := s.newClient(shop)
	address := s.appURL + "/api/webhooks"

	var created []shopify.Webhook
	for _, topic := range AllTopics() {
		webhook, err := client.CreateWebhook(ctx, string(topic), address)
		if err != nil {
			s.logger.Error("Failed to create webhook",
				zap.String("shop", shop.Domain),
				zap.String("topic", string(topic)),
				zap.Error(err))
			continue
		}
		created = append(created, *webhook)
	}

	s.logger.Info("Webhook setup completed",
		zap.String("shop", shop.Domain), zap.Int("created", len(created)))

	if len(created) > 0 {
		s.recorder.Record(ctx, activity.WebhooksSetup(shop.Domain, len(created)))
	}
	return created, nil
}

// WebhookStatuses compares the shop's live subscriptions against the
// required topic set
func (s *ShopService) WebhookStatuses(ctx context.Context, shop *models.Shop) ([]WebhookStatus, error) {
	webhooks, err := s.newClient(shop).ListWebhooks(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list webhooks: %w", err)
	}

	address := s.appURL + "/api/webhooks"
	statuses := make([]WebhookStatus, 0, len(AllTopics()))
	for _, topic := range AllTopics() {
		status := WebhookStatus{Topic: string(topic), Status: "missing"}
		for _, webhook := range webhooks {
			if webhook.Topic == string(topic) && webhook.Address == address {
				status.Status = "active"
				status.ID = webhook.ID
				break
			}
		}
		statuses = append(statuses, status)
	}
	return statuses, nil
}

// UpdateSettings replaces the shop's settings
func (s *ShopService) UpdateSettings(ctx context.Context, domain string, settings models.ShopSettings) (*models.Shop, error) {
	shop, err := s.store.UpdateShopSettings(ctx, domain, settings)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Shop settings updated", zap.String("shop", domain))
	s.recorder.Record(ctx, activity.SettingsUpdated(domain))
	return shop, nil
}

// Uninstall marks the shop inactive from the dashboard side
func (s *ShopService) Uninstall(ctx context.Context, domain string) error {
	if err := s.store.DeactivateShop(ctx, domain); err != nil {
		return err
	}
	s.recorder.Record(ctx, activity.AppUninstalled(domain))
	return nil
}
