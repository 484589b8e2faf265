package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"cartsaver/internal/models"
	"cartsaver/internal/util"

	"go.uber.org/zap"
)

// CartQueryStore is the read/admin surface for cart records
type CartQueryStore interface {
	ListCarts(ctx context.Context, shop, status string, limit, offset int) ([]models.Cart, error)
	CountCarts(ctx context.Context, shop, status string) (int, error)
	GetCartByID(ctx context.Context, shop string, cartID int64) (*models.Cart, error)
	UpdateCartStatus(ctx context.Context, shop string, cartID int64, status string) (*models.Cart, error)
	DeleteCart(ctx context.Context, shop string, cartID int64) (bool, error)
	GetRecoveryStats(ctx context.Context, shop string, days int) (*models.RecoveryStats, error)
}

// StatsCache caches serialized recovery stats per shop and window
type StatsCache interface {
	CacheStats(ctx context.Context, shop string, days int, payload []byte, ttl time.Duration) error
	GetCachedStats(ctx context.Context, shop string, days int) ([]byte, error)
}

// CartPage is one page of carts plus pagination hints
type CartPage struct {
	Carts      []models.Cart `json:"carts"`
	Pagination Pagination    `json:"pagination"`
}

type Pagination struct {
	Current int  `json:"current"`
	Pages   int  `json:"total"`
	HasNext bool `json:"has_next"`
	HasPrev bool `json:"has_prev"`
}

// CartService serves the dashboard's cart queries and administrative
// status changes. Ingestion never goes through here.
type CartService struct {
	store    CartQueryStore
	cache    StatsCache
	cacheTTL time.Duration
	logger   *zap.Logger
}

// NewCartService creates a new cart service. cache may be nil.
func NewCartService(store CartQueryStore, cache StatsCache, cacheTTL time.Duration) *CartService {
	return &CartService{
		store:    store,
		cache:    cache,
		cacheTTL: cacheTTL,
		logger:   util.GetLogger(),
	}
}

// ListCarts returns one page of a shop's carts in the given status,
// newest abandonment first
func (s *CartService) ListCarts(ctx context.Context, shop, status string, page, limit int) (*CartPage, error) {
	if status == "" {
		status = models.CartStatusAbandoned
	}
	if !models.ValidCartStatus(status) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}

	carts, err := s.store.ListCarts(ctx, shop, status, limit, (page-1)*limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list carts: %w", err)
	}
	total, err := s.store.CountCarts(ctx, shop, status)
	if err != nil {
		return nil, fmt.Errorf("failed to count carts: %w", err)
	}

	pages := (total + limit - 1) / limit
	return &CartPage{
		Carts: carts,
		Pagination: Pagination{
			Current: page,
			Pages:   pages,
			HasNext: page*limit < total,
			HasPrev: page > 1,
		},
	}, nil
}

// GetCart retrieves one cart scoped to the shop
func (s *CartService) GetCart(ctx context.Context, shop string, cartID int64) (*models.Cart, error) {
	return s.store.GetCartByID(ctx, shop, cartID)
}

// UpdateStatus changes a cart's status administratively. Transitioning to
// recovered stamps recovered_at once.
func (s *CartService) UpdateStatus(ctx context.Context, shop string, cartID int64, status string) (*models.Cart, error) {
	if !models.ValidCartStatus(status) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}

	cart, err := s.store.UpdateCartStatus(ctx, shop, cartID, status)
	if err != nil {
		return nil, err
	}
	if cart == nil {
		return nil, nil
	}

	s.logger.Info("Cart status updated",
		zap.String("shop", shop),
		zap.Int64("cart_id", cartID),
		zap.String("status", status))
	return cart, nil
}

// Delete removes one cart record
func (s *CartService) Delete(ctx context.Context, shop string, cartID int64) (bool, error) {
	deleted, err := s.store.DeleteCart(ctx, shop, cartID)
	if err != nil {
		return false, fmt.Errorf("failed to delete cart: %w", err)
	}
	return deleted, nil
}

// RecoveryStats aggregates cart outcomes over the last N days, served
// from cache when fresh
func (s *CartService) RecoveryStats(ctx context.Context, shop string, days int) (*models.RecoveryStats, error) {
	if days < 1 {
		days = 30
	}

	if s.cache != nil {
		if payload, err := s.cache.GetCachedStats(ctx, shop, days); err == nil && payload != nil {
			var stats models.RecoveryStats
			if err := json.Unmarshal(payload, &stats); err == nil {
				return &stats, nil
			}
		}
	}

	stats, err := s.store.GetRecoveryStats(ctx, shop, days)
	if err != nil {
		return nil, fmt.Errorf("failed to compute recovery stats: %w", err)
	}

	if s.cache != nil {
		if payload, err := json.Marshal(stats); err == nil {
			if err := s.cache.CacheStats(ctx, shop, days, payload, s.cacheTTL); err != nil {
				s.logger.Debug("Failed to cache recovery stats",
					zap.String("shop", shop), zap.Error(err))
			}
		}
	}

	return stats, nil
}
