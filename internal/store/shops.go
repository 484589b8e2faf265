package store

import (
	"context"
	"database/sql"
	"fmt"

	"cartsaver/internal/models"
)

// UpsertShop creates or refreshes a shop record on install. Reinstalling
// reactivates the shop and replaces its credential.
func (s *Store) UpsertShop(ctx context.Context, shop *models.Shop) error {
	shop.Domain = NormalizeShopDomain(shop.Domain)
	if shop.Plan == "" {
		shop.Plan = models.ShopPlanFree
	}

	query := `
		INSERT INTO shops (shop, access_token, scope, is_active, plan, settings, installed_at, last_active)
		VALUES ($1, $2, $3, TRUE, $4, $5, NOW(), NOW())
		ON CONFLICT (shop) DO UPDATE
		SET access_token = EXCLUDED.access_token,
		    scope = EXCLUDED.scope,
		    is_active = TRUE,
		    last_active = NOW(),
		    updated_at = NOW()
		RETURNING id, installed_at, last_active, created_at, updated_at`

	err := s.db.QueryRowxContext(ctx, query,
		shop.Domain, shop.AccessToken, shop.Scope, shop.Plan, shop.Settings,
	).Scan(&shop.ID, &shop.InstalledAt, &shop.LastActive, &shop.CreatedAt, &shop.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert shop: %w", err)
	}
	return nil
}

// GetShopByDomain retrieves a shop by its normalized domain
func (s *Store) GetShopByDomain(ctx context.Context, domain string) (*models.Shop, error) {
	var shop models.Shop
	err := s.db.GetContext(ctx, &shop,
		"SELECT * FROM shops WHERE shop = $1", NormalizeShopDomain(domain))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &shop, nil
}

// UpdateShopSettings replaces a shop's settings
func (s *Store) UpdateShopSettings(ctx context.Context, domain string, settings models.ShopSettings) (*models.Shop, error) {
	var shop models.Shop
	err := s.db.GetContext(ctx, &shop, `
		UPDATE shops
		SET settings = $1, last_active = NOW(), updated_at = NOW()
		WHERE shop = $2
		RETURNING *`,
		settings, NormalizeShopDomain(domain))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("shop not found: %s", domain)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update shop settings: %w", err)
	}
	return &shop, nil
}

// DeactivateShop marks a shop inactive on uninstall. Cart records are
// kept as historical data.
func (s *Store) DeactivateShop(ctx context.Context, domain string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE shops
		SET is_active = FALSE, last_active = NOW(), updated_at = NOW()
		WHERE shop = $1`,
		NormalizeShopDomain(domain))
	if err != nil {
		return fmt.Errorf("failed to deactivate shop: %w", err)
	}
	return nil
}

// TouchShop bumps a shop's last_active timestamp
func (s *Store) TouchShop(ctx context.Context, domain string) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE shops SET last_active = NOW() WHERE shop = $1",
		NormalizeShopDomain(domain))
	return err
}
