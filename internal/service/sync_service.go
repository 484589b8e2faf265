package service

import (
	"context"
	"fmt"
	"time"

	"cartsaver/internal/activity"
	"cartsaver/internal/models"
	"cartsaver/internal/shopify"
	"cartsaver/internal/util"

	"go.uber.org/zap"
)

// CheckoutSource is the external snapshot provider backing reconciliation.
// *shopify.Client satisfies it.
type CheckoutSource interface {
	GetAbandonedCheckouts(ctx context.Context, limit int) ([]shopify.Checkout, error)
	GetCustomer(ctx context.Context, customerID int64) (*shopify.Customer, error)
}

// SourceFactory builds a snapshot source from a shop's stored credential
type SourceFactory func(shop *models.Shop) CheckoutSource

// SyncLocker serializes reconciliation runs per shop
type SyncLocker interface {
	AcquireSyncLock(ctx context.Context, shop string, ttl time.Duration) (bool, error)
	ReleaseSyncLock(ctx context.Context, shop string) error
}

// SyncResult is the sole observable outcome of a reconciliation run
type SyncResult struct {
	Synced  int    `json:"synced"`
	Skipped int    `json:"skipped"`
	Errors  int    `json:"errors"`
	Total   int    `json:"total"`
	Summary string `json:"summary"`
}

// SyncService pulls abandoned-checkout snapshots from the platform and
// merges them into the cart store. Additive only: an existing cart is
// never overwritten, because the pulled snapshot carries no ordering
// information relative to webhook writes.
type SyncService struct {
	store     CartStore
	newSource SourceFactory
	locker    SyncLocker
	recorder  activity.Recorder
	logger    *zap.Logger
}

// NewSyncService creates a new reconciliation service. locker may be nil.
func NewSyncService(store CartStore, newSource SourceFactory, locker SyncLocker, recorder activity.Recorder) *SyncService {
	if recorder == nil {
		recorder = activity.NopRecorder{}
	}
	return &SyncService{
		store:     store,
		newSource: newSource,
		locker:    locker,
		recorder:  recorder,
		logger:    util.GetLogger(),
	}
}

// Reconcile pulls up to limit snapshots for the shop and creates carts
// for the ones the store has never seen. Per-snapshot failures are
// counted and skipped; one bad record never aborts the batch.
func (s *SyncService) Reconcile(ctx context.Context, shop *models.Shop, limit int) (*SyncResult, error) {
	ctx, span := util.StartSpan(ctx, "SyncService.Reconcile")
	defer span.End()

	start := time.Now()
	defer func() {
		util.SyncLatency.Observe(time.Since(start).Seconds())
	}()

	if limit <= 0 {
		limit = 50
	}

	if s.locker != nil {
		acquired, err := s.locker.AcquireSyncLock(ctx, shop.Domain, 5*time.Minute)
		if err != nil {
			s.logger.Warn("Sync lock unavailable, proceeding unlocked",
				zap.String("shop", shop.Domain), zap.Error(err))
		} else if !acquired {
			return nil, ErrSyncInProgress
		} else {
			defer func() {
				if err := s.locker.ReleaseSyncLock(ctx, shop.Domain); err != nil {
					s.logger.Warn("Failed to release sync lock",
						zap.String("shop", shop.Domain), zap.Error(err))
				}
			}()
		}
	}

	s.logger.Info("Starting cart sync",
		zap.String("shop", shop.Domain), zap.Int("limit", limit))

	source := s.newSource(shop)
	checkouts, err := source.GetAbandonedCheckouts(ctx, limit)
	if err != nil {
		util.SyncRunsTotal.WithLabelValues("failed").Inc()
		return nil, fmt.Errorf("failed to fetch abandoned checkouts: %w", err)
	}

	result := &SyncResult{Total: len(checkouts)}

	for i := range checkouts {
		checkout := &checkouts[i]

		if checkout.Token == "" {
			result.Errors++
			s.logger.Warn("Skipping snapshot without token",
				zap.String("shop", shop.Domain), zap.Int64("checkout_id", checkout.ID))
			continue
		}

		exists, err := s.store.CartExists(ctx, shop.Domain, checkout.Token)
		if err != nil {
			result.Errors++
			s.logger.Error("Failed to check for existing cart",
				zap.String("shop", shop.Domain),
				zap.String("cart_token", checkout.Token),
				zap.Error(err))
			continue
		}
		if exists {
			result.Skipped++
			continue
		}

		cart := s.buildCart(ctx, shop, source, checkout)

		created, err := s.store.CreateCartIfAbsent(ctx, cart)
		if err != nil {
			result.Errors++
			s.logger.Error("Failed to create cart from snapshot",
				zap.String("shop", shop.Domain),
				zap.String("cart_token", checkout.Token),
				zap.Error(err))
			continue
		}
		if !created {
			// A webhook won the race between our existence check and the
			// insert. Same outcome as skip.
			result.Skipped++
			continue
		}

		util.CartsCreatedTotal.WithLabelValues("sync").Inc()
		result.Synced++
	}

	result.Summary = summarize(result)

	util.SyncRunsTotal.WithLabelValues("completed").Inc()
	util.SyncCheckoutsTotal.WithLabelValues("synced").Add(float64(result.Synced))
	util.SyncCheckoutsTotal.WithLabelValues("skipped").Add(float64(result.Skipped))
	util.SyncCheckoutsTotal.WithLabelValues("errored").Add(float64(result.Errors))

	s.logger.Info("Cart sync completed",
		zap.String("shop", shop.Domain),
		zap.Int("synced", result.Synced),
		zap.Int("skipped", result.Skipped),
		zap.Int("errors", result.Errors),
		zap.Int("total", result.Total))

	if result.Synced > 0 {
		s.recorder.Record(ctx, activity.CartsSynced(shop.Domain, result.Synced, result.Total, result.Errors))
	}

	return result, nil
}

// buildCart converts a snapshot into a cart record, enriched with
// customer details when they can be fetched. Enrichment is best-effort:
// a lookup failure still produces a cart with whatever is available.
func (s *SyncService) buildCart(ctx context.Context, shop *models.Shop, source CheckoutSource, checkout *shopify.Checkout) *models.Cart {
	cart := &models.Cart{
		Shop:          shop.Domain,
		CartToken:     checkout.Token,
		CustomerID:    shopify.FormatID(checkout.CustomerID),
		CustomerEmail: checkout.Email,
		Items:         mapLineItems(checkout.LineItems),
		TotalPrice:    shopify.ParsePrice(checkout.TotalPrice),
		Currency:      checkout.Currency,
		Status:        models.CartStatusAbandoned,
		AbandonedAt:   checkout.UpdatedAt,
		RecoveryURL:   checkout.AbandonedCheckoutURL,
	}

	if checkout.CustomerID != 0 {
		customer, err := source.GetCustomer(ctx, checkout.CustomerID)
		if err != nil {
			s.logger.Warn("Customer enrichment failed, creating cart with partial data",
				zap.String("shop", shop.Domain),
				zap.Int64("customer_id", checkout.CustomerID),
				zap.Error(err))
		} else {
			cart.CustomerID = shopify.FormatID(customer.ID)
			cart.CustomerEmail = customer.Email
			cart.CustomerFirstName = customer.FirstName
			cart.CustomerLastName = customer.LastName
		}
	}

	return cart
}

func summarize(result *SyncResult) string {
	switch {
	case result.Total == 0:
		return "No abandoned carts found in Shopify"
	case result.Synced == 0:
		return "All abandoned carts are already synced"
	default:
		return fmt.Sprintf("Successfully synced %d new carts", result.Synced)
	}
}
