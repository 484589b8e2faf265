package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"cartsaver/internal/models"
)

// CreateCartIfAbsent inserts a cart unless one already exists for the
// (shop, cart_token) pair. The unique index arbitrates concurrent creators;
// exactly one insert wins and every loser reports created=false with no
// error. Denormalized item_count is derived here so it can never drift from
// the items list.
func (s *Store) CreateCartIfAbsent(ctx context.Context, cart *models.Cart) (bool, error) {
	cart.Shop = NormalizeShopDomain(cart.Shop)
	cart.ItemCount = cart.Items.TotalQuantity()
	if cart.Status == "" {
		cart.Status = models.CartStatusAbandoned
	}
	if cart.AbandonedAt.IsZero() {
		cart.AbandonedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO carts (
			shop, cart_token, customer_id, customer_email,
			customer_first_name, customer_last_name,
			items, item_count, total_price, currency,
			status, abandoned_at, recovery_url, notes
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (shop, cart_token) DO NOTHING
		RETURNING id, created_at, updated_at`

	err := s.db.QueryRowxContext(ctx, query,
		cart.Shop, cart.CartToken, cart.CustomerID, cart.CustomerEmail,
		cart.CustomerFirstName, cart.CustomerLastName,
		cart.Items, cart.ItemCount, cart.TotalPrice, cart.Currency,
		cart.Status, cart.AbandonedAt, cart.RecoveryURL, cart.Notes,
	).Scan(&cart.ID, &cart.CreatedAt, &cart.UpdatedAt)

	if err == sql.ErrNoRows {
		// Conflict path: another writer already owns this token.
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to create cart: %w", err)
	}
	return true, nil
}

// UpdateCartIfPresent replaces a cart's items, denormalized totals and
// abandoned_at in one statement. The abandoned_at guard in the WHERE clause
// drops patches observed before the stored state, so a redelivered stale
// update can never regress newer data. Returns false when nothing matched,
// either because the cart does not exist or because the patch is stale.
func (s *Store) UpdateCartIfPresent(ctx context.Context, shop, cartToken string, patch models.CartPatch) (bool, error) {
	observedAt := patch.ObservedAt
	if observedAt.IsZero() {
		observedAt = time.Now().UTC()
	}

	query := `
		UPDATE carts
		SET items = $1,
		    item_count = $2,
		    total_price = $3,
		    currency = COALESCE(NULLIF($4, ''), currency),
		    abandoned_at = $5,
		    updated_at = NOW()
		WHERE shop = $6 AND cart_token = $7 AND abandoned_at <= $5`

	res, err := s.db.ExecContext(ctx, query,
		patch.Items, patch.Items.TotalQuantity(), patch.TotalPrice, patch.Currency,
		observedAt, NormalizeShopDomain(shop), cartToken)
	if err != nil {
		return false, fmt.Errorf("failed to update cart: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}

// CartExists reports whether a cart exists for the (shop, cart_token) pair
func (s *Store) CartExists(ctx context.Context, shop, cartToken string) (bool, error) {
	var exists bool
	err := s.db.GetContext(ctx, &exists,
		"SELECT EXISTS(SELECT 1 FROM carts WHERE shop = $1 AND cart_token = $2)",
		NormalizeShopDomain(shop), cartToken)
	return exists, err
}

// FindCartForRecovery returns the most recently abandoned cart for a
// customer, or nil when none matches. Ties on abandoned_at break by
// insertion order.
func (s *Store) FindCartForRecovery(ctx context.Context, shop, customerEmail string) (*models.Cart, error) {
	var cart models.Cart
	err := s.db.GetContext(ctx, &cart, `
		SELECT * FROM carts
		WHERE shop = $1 AND customer_email = $2 AND status = $3
		ORDER BY abandoned_at DESC, id DESC
		LIMIT 1`,
		NormalizeShopDomain(shop), customerEmail, models.CartStatusAbandoned)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &cart, nil
}

// MarkCartRecovered transitions one abandoned cart to recovered. The
// status predicate makes the transition first-wins: recovered_at is set
// exactly once and a redelivered order event is a no-op.
func (s *Store) MarkCartRecovered(ctx context.Context, cartID int64, recoveredAt time.Time) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE carts
		SET status = $1, recovered_at = $2, updated_at = NOW()
		WHERE id = $3 AND status = $4`,
		models.CartStatusRecovered, recoveredAt, cartID, models.CartStatusAbandoned)
	if err != nil {
		return false, fmt.Errorf("failed to mark cart recovered: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}

// GetCartByToken retrieves a cart by its platform token
func (s *Store) GetCartByToken(ctx context.Context, shop, cartToken string) (*models.Cart, error) {
	var cart models.Cart
	err := s.db.GetContext(ctx, &cart,
		"SELECT * FROM carts WHERE shop = $1 AND cart_token = $2",
		NormalizeShopDomain(shop), cartToken)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &cart, nil
}

// GetCartByID retrieves a cart by id, scoped to the shop. Nil when the
// shop owns no such cart.
func (s *Store) GetCartByID(ctx context.Context, shop string, cartID int64) (*models.Cart, error) {
	var cart models.Cart
	err := s.db.GetContext(ctx, &cart,
		"SELECT * FROM carts WHERE id = $1 AND shop = $2",
		cartID, NormalizeShopDomain(shop))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &cart, nil
}

// ListCarts retrieves a page of carts for a shop filtered by status,
// newest abandonment first
func (s *Store) ListCarts(ctx context.Context, shop, status string, limit, offset int) ([]models.Cart, error) {
	var carts []models.Cart
	err := s.db.SelectContext(ctx, &carts, `
		SELECT * FROM carts
		WHERE shop = $1 AND status = $2
		ORDER BY abandoned_at DESC, id DESC
		LIMIT $3 OFFSET $4`,
		NormalizeShopDomain(shop), status, limit, offset)
	return carts, err
}

// CountCarts counts carts for a shop in a given status
func (s *Store) CountCarts(ctx context.Context, shop, status string) (int, error) {
	var count int
	err := s.db.GetContext(ctx, &count,
		"SELECT COUNT(*) FROM carts WHERE shop = $1 AND status = $2",
		NormalizeShopDomain(shop), status)
	return count, err
}

// UpdateCartStatus sets a cart's status administratively. Entering
// recovered stamps recovered_at unless it was already set.
func (s *Store) UpdateCartStatus(ctx context.Context, shop string, cartID int64, status string) (*models.Cart, error) {
	var cart models.Cart
	err := s.db.GetContext(ctx, &cart, `
		UPDATE carts
		SET status = $1,
		    recovered_at = CASE WHEN $1 = $2 AND recovered_at IS NULL THEN NOW() ELSE recovered_at END,
		    updated_at = NOW()
		WHERE id = $3 AND shop = $4
		RETURNING *`,
		status, models.CartStatusRecovered, cartID, NormalizeShopDomain(shop))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update cart status: %w", err)
	}
	return &cart, nil
}

// DeleteCart removes a cart record. Administrative only, the ingestion
// paths never delete.
func (s *Store) DeleteCart(ctx context.Context, shop string, cartID int64) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM carts WHERE id = $1 AND shop = $2",
		cartID, NormalizeShopDomain(shop))
	if err != nil {
		return false, err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}

// GetRecoveryStats aggregates cart outcomes for a shop over the last N days
func (s *Store) GetRecoveryStats(ctx context.Context, shop string, days int) (*models.RecoveryStats, error) {
	since := time.Now().UTC().AddDate(0, 0, -days)

	rows := []struct {
		Status     string  `db:"status"`
		Count      int     `db:"count"`
		TotalValue float64 `db:"total_value"`
	}{}
	err := s.db.SelectContext(ctx, &rows, `
		SELECT status, COUNT(*) AS count, COALESCE(SUM(total_price), 0) AS total_value
		FROM carts
		WHERE shop = $1 AND abandoned_at >= $2
		GROUP BY status`,
		NormalizeShopDomain(shop), since)
	if err != nil {
		return nil, err
	}

	stats := &models.RecoveryStats{PeriodDays: days}
	for _, row := range rows {
		stats.TotalValue += row.TotalValue
		switch row.Status {
		case models.CartStatusAbandoned:
			stats.TotalAbandoned = row.Count
		case models.CartStatusRecovered:
			stats.TotalRecovered = row.Count
		}
	}
	if stats.TotalAbandoned > 0 {
		stats.RecoveryRate = float64(stats.TotalRecovered) / float64(stats.TotalAbandoned) * 100
	}
	return stats, nil
}
