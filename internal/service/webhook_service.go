package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"cartsaver/internal/activity"
	"cartsaver/internal/models"
	"cartsaver/internal/shopify"
	"cartsaver/internal/util"

	"go.uber.org/zap"
)

// CartStore is the subset of store primitives the ingestion paths use.
// All mutation goes through these; no handler reads-then-writes cart
// fields across separate calls.
type CartStore interface {
	CreateCartIfAbsent(ctx context.Context, cart *models.Cart) (bool, error)
	UpdateCartIfPresent(ctx context.Context, shop, cartToken string, patch models.CartPatch) (bool, error)
	CartExists(ctx context.Context, shop, cartToken string) (bool, error)
	FindCartForRecovery(ctx context.Context, shop, customerEmail string) (*models.Cart, error)
	MarkCartRecovered(ctx context.Context, cartID int64, recoveredAt time.Time) (bool, error)
}

// ShopStore is the shop-record surface webhook handlers touch
type ShopStore interface {
	DeactivateShop(ctx context.Context, domain string) error
}

// DeliveryDeduper remembers webhook delivery ids. Best-effort: when it is
// unavailable the store's own idempotency still keeps redeliveries safe.
type DeliveryDeduper interface {
	DeliverySeen(ctx context.Context, deliveryID string) (bool, error)
	MarkDeliverySeen(ctx context.Context, deliveryID string, ttl time.Duration) (bool, error)
}

// WebhookService maps inbound webhook events onto cart lifecycle
// transitions. Deliveries are at-least-once and unordered, so every
// handler is an idempotent upsert or conditional update.
type WebhookService struct {
	carts    CartStore
	shops    ShopStore
	dedup    DeliveryDeduper
	dedupTTL time.Duration
	recorder activity.Recorder
	logger   *zap.Logger
}

// NewWebhookService creates a new webhook service. dedup may be nil to
// disable delivery-id deduplication.
func NewWebhookService(carts CartStore, shops ShopStore, dedup DeliveryDeduper, dedupTTL time.Duration, recorder activity.Recorder) *WebhookService {
	if recorder == nil {
		recorder = activity.NopRecorder{}
	}
	return &WebhookService{
		carts:    carts,
		shops:    shops,
		dedup:    dedup,
		dedupTTL: dedupTTL,
		recorder: recorder,
		logger:   util.GetLogger(),
	}
}

// HandleEvent dispatches one verified delivery to its topic handler.
// shop is the sender-declared tenant, body the raw payload bytes,
// deliveryID the sender's delivery identifier (may be empty).
//
// The delivery id is recorded only once the outcome is settled: a nil
// return or a terminal no-op. A transient failure leaves the id
// unrecorded, so the redelivery it asks for is processed instead of
// being skipped as a duplicate.
func (s *WebhookService) HandleEvent(ctx context.Context, topic Topic, shop string, body []byte, deliveryID string) error {
	ctx, span := util.StartSpan(ctx, "WebhookService.HandleEvent")
	defer span.End()

	util.WebhooksReceivedTotal.WithLabelValues(string(topic)).Inc()

	if s.dedup != nil && deliveryID != "" {
		seen, err := s.dedup.DeliverySeen(ctx, deliveryID)
		if err != nil {
			s.logger.Warn("Delivery dedup unavailable, relying on store idempotency",
				zap.String("delivery_id", deliveryID), zap.Error(err))
		} else if seen {
			util.WebhooksDuplicateTotal.WithLabelValues(string(topic)).Inc()
			s.logger.Debug("Skipping duplicate delivery",
				zap.String("topic", string(topic)), zap.String("delivery_id", deliveryID))
			return nil
		}
	}

	err := s.dispatch(ctx, topic, shop, body)

	if (err == nil || Terminal(err)) && s.dedup != nil && deliveryID != "" {
		if _, markErr := s.dedup.MarkDeliverySeen(ctx, deliveryID, s.dedupTTL); markErr != nil {
			s.logger.Warn("Failed to record delivery id",
				zap.String("delivery_id", deliveryID), zap.Error(markErr))
		}
	}

	return err
}

func (s *WebhookService) dispatch(ctx context.Context, topic Topic, shop string, body []byte) error {
	switch topic {
	case TopicCheckoutCreated:
		checkout, err := decodeCheckout(body)
		if err != nil {
			return err
		}
		return s.HandleCheckoutCreated(ctx, shop, checkout)

	case TopicCheckoutUpdated:
		checkout, err := decodeCheckout(body)
		if err != nil {
			return err
		}
		return s.HandleCheckoutUpdated(ctx, shop, checkout)

	case TopicOrderCreated:
		var order shopify.Order
		if err := json.Unmarshal(body, &order); err != nil {
			return fmt.Errorf("%w: %v", ErrMalformedPayload, err)
		}
		return s.HandleOrderCreated(ctx, shop, &order)

	case TopicCartCreated:
		checkout, err := decodeCheckout(body)
		if err != nil {
			return err
		}
		return s.HandleCartCreated(ctx, shop, checkout)

	case TopicCartUpdated:
		checkout, err := decodeCheckout(body)
		if err != nil {
			return err
		}
		return s.HandleCartUpdated(ctx, shop, checkout)

	case TopicAppUninstalled:
		var payload shopify.AppUninstall
		if err := json.Unmarshal(body, &payload); err != nil {
			return fmt.Errorf("%w: %v", ErrMalformedPayload, err)
		}
		return s.HandleAppUninstalled(ctx, shop, &payload)
	}

	return fmt.Errorf("%w: %q", ErrUnknownTopic, topic)
}

// HandleCheckoutCreated creates an abandoned cart on first observation of
// a checkout. Requires at least one line item and a customer contact. An
// existing cart for the token makes this a no-op: first writer wins,
// redeliveries are absorbed by the store's uniqueness key.
func (s *WebhookService) HandleCheckoutCreated(ctx context.Context, shop string, checkout *shopify.Checkout) error {
	if len(checkout.LineItems) == 0 || checkout.Email == "" {
		return fmt.Errorf("%w: checkout %q has no items or no customer contact", ErrPreconditionFailed, checkout.Token)
	}
	return s.createCart(ctx, shop, checkout)
}

// HandleCartCreated is the cart-topic twin of HandleCheckoutCreated;
// customer contact is optional for raw carts.
func (s *WebhookService) HandleCartCreated(ctx context.Context, shop string, cart *shopify.Checkout) error {
	if len(cart.LineItems) == 0 {
		return fmt.Errorf("%w: cart %q has no items", ErrPreconditionFailed, cart.Token)
	}
	return s.createCart(ctx, shop, cart)
}

func (s *WebhookService) createCart(ctx context.Context, shop string, checkout *shopify.Checkout) error {
	if checkout.Token == "" {
		return fmt.Errorf("%w: missing cart token", ErrPreconditionFailed)
	}

	cart := &models.Cart{
		Shop:          shop,
		CartToken:     checkout.Token,
		CustomerID:    shopify.FormatID(checkout.CustomerID),
		CustomerEmail: checkout.Email,
		Items:         mapLineItems(checkout.LineItems),
		TotalPrice:    shopify.ParsePrice(checkout.TotalPrice),
		Currency:      checkout.Currency,
		Status:        models.CartStatusAbandoned,
		AbandonedAt:   time.Now().UTC(),
		RecoveryURL:   checkout.AbandonedCheckoutURL,
	}

	created, err := s.carts.CreateCartIfAbsent(ctx, cart)
	if err != nil {
		return fmt.Errorf("failed to create cart for token %q: %w", checkout.Token, err)
	}
	if !created {
		s.logger.Debug("Cart already exists, ignoring create event",
			zap.String("shop", shop), zap.String("cart_token", checkout.Token))
		return nil
	}

	util.CartsCreatedTotal.WithLabelValues("webhook").Inc()
	s.logger.Info("Abandoned cart created",
		zap.String("shop", shop),
		zap.String("cart_token", checkout.Token),
		zap.Float64("total_price", cart.TotalPrice))
	return nil
}

// HandleCheckoutUpdated refreshes an existing cart's items and totals.
// Never creates: an update for an unknown token is a terminal no-op. A
// patch older than the stored state is dropped by the store.
func (s *WebhookService) HandleCheckoutUpdated(ctx context.Context, shop string, checkout *shopify.Checkout) error {
	return s.updateCart(ctx, shop, checkout)
}

// HandleCartUpdated has the same replace semantics as HandleCheckoutUpdated
func (s *WebhookService) HandleCartUpdated(ctx context.Context, shop string, cart *shopify.Checkout) error {
	return s.updateCart(ctx, shop, cart)
}

func (s *WebhookService) updateCart(ctx context.Context, shop string, checkout *shopify.Checkout) error {
	if checkout.Token == "" {
		return fmt.Errorf("%w: missing cart token", ErrPreconditionFailed)
	}

	patch := models.CartPatch{
		Items:      mapLineItems(checkout.LineItems),
		TotalPrice: shopify.ParsePrice(checkout.TotalPrice),
		Currency:   checkout.Currency,
		ObservedAt: checkout.UpdatedAt,
	}

	updated, err := s.carts.UpdateCartIfPresent(ctx, shop, checkout.Token, patch)
	if err != nil {
		return fmt.Errorf("failed to update cart for token %q: %w", checkout.Token, err)
	}
	if updated {
		return nil
	}

	// Nothing matched: either the cart never existed (update never
	// creates) or the patch was stale. Tell them apart for observability.
	exists, err := s.carts.CartExists(ctx, shop, checkout.Token)
	if err == nil && exists {
		util.StaleUpdatesDroppedTotal.Inc()
		s.logger.Info("Dropped stale cart update",
			zap.String("shop", shop),
			zap.String("cart_token", checkout.Token),
			zap.Time("observed_at", checkout.UpdatedAt))
	}
	return nil
}

// HandleOrderCreated marks the customer's most recently abandoned cart as
// recovered. Matching is by customer identity because the completed order
// does not carry the abandoned cart's token. No matching cart is a no-op.
func (s *WebhookService) HandleOrderCreated(ctx context.Context, shop string, order *shopify.Order) error {
	if order.Email == "" {
		return fmt.Errorf("%w: order has no customer email", ErrPreconditionFailed)
	}

	cart, err := s.carts.FindCartForRecovery(ctx, shop, order.Email)
	if err != nil {
		return fmt.Errorf("failed to look up cart for recovery: %w", err)
	}
	if cart == nil {
		return nil
	}

	recovered, err := s.carts.MarkCartRecovered(ctx, cart.ID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to mark cart %d recovered: %w", cart.ID, err)
	}
	if !recovered {
		// Lost the race to another order event for the same cart.
		return nil
	}

	util.CartsRecoveredTotal.Inc()
	s.logger.Info("Cart recovered",
		zap.String("shop", shop),
		zap.Int64("cart_id", cart.ID),
		zap.String("customer_email", order.Email))
	s.recorder.Record(ctx, activity.CartRecovered(shop, cart.ID, cart.TotalPrice, cart.Currency))
	return nil
}

// HandleAppUninstalled marks the shop inactive. Cart records stay as
// historical data.
func (s *WebhookService) HandleAppUninstalled(ctx context.Context, shop string, payload *shopify.AppUninstall) error {
	domain := payload.Domain
	if domain == "" {
		domain = shop
	}

	if err := s.shops.DeactivateShop(ctx, domain); err != nil {
		return fmt.Errorf("failed to deactivate shop %q: %w", domain, err)
	}

	s.logger.Info("Shop deactivated on uninstall", zap.String("shop", domain))
	s.recorder.Record(ctx, activity.AppUninstalled(domain))
	return nil
}

func decodeCheckout(body []byte) (*shopify.Checkout, error) {
	var checkout shopify.Checkout
	if err := json.Unmarshal(body, &checkout); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	return &checkout, nil
}

func mapLineItems(items []shopify.LineItem) models.CartItems {
	mapped := make(models.CartItems, 0, len(items))
	for _, item := range items {
		mapped = append(mapped, models.CartItem{
			ProductID:    shopify.FormatID(item.ProductID),
			VariantID:    shopify.FormatID(item.VariantID),
			Title:        item.Title,
			VariantTitle: item.VariantTitle,
			Quantity:     item.Quantity,
			Price:        shopify.ParsePrice(item.Price),
			Image:        item.ImageURL,
			ProductURL:   item.ProductURL,
		})
	}
	return mapped
}
