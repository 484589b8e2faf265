package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"cartsaver/internal/activity"
	"cartsaver/internal/models"
)

// memStore is an in-memory CartStore/ShopStore with the same contract as
// the Postgres store: per-key serialization via one mutex, first-wins
// creates, staleness-guarded updates.
type memStore struct {
	mu          sync.Mutex
	carts       map[string]*models.Cart
	nextID      int64
	deactivated map[string]bool

	createErr error
	findErr   error
}

func newMemStore() *memStore {
	return &memStore{
		carts:       make(map[string]*models.Cart),
		deactivated: make(map[string]bool),
	}
}

func cartKey(shop, token string) string {
	return strings.ToLower(strings.TrimSpace(shop)) + "|" + token
}

func (m *memStore) CreateCartIfAbsent(_ context.Context, cart *models.Cart) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.createErr != nil {
		return false, m.createErr
	}

	key := cartKey(cart.Shop, cart.CartToken)
	if _, ok := m.carts[key]; ok {
		return false, nil
	}

	m.nextID++
	stored := *cart
	stored.ID = m.nextID
	stored.Shop = strings.ToLower(strings.TrimSpace(cart.Shop))
	stored.ItemCount = cart.Items.TotalQuantity()
	if stored.Status == "" {
		stored.Status = models.CartStatusAbandoned
	}
	if stored.AbandonedAt.IsZero() {
		stored.AbandonedAt = time.Now().UTC()
	}
	m.carts[key] = &stored
	cart.ID = stored.ID
	return true, nil
}

func (m *memStore) UpdateCartIfPresent(_ context.Context, shop, cartToken string, patch models.CartPatch) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cart, ok := m.carts[cartKey(shop, cartToken)]
	if !ok {
		return false, nil
	}

	observedAt := patch.ObservedAt
	if observedAt.IsZero() {
		observedAt = time.Now().UTC()
	}
	if observedAt.Before(cart.AbandonedAt) {
		return false, nil
	}

	cart.Items = patch.Items
	cart.ItemCount = patch.Items.TotalQuantity()
	cart.TotalPrice = patch.TotalPrice
	if patch.Currency != "" {
		cart.Currency = patch.Currency
	}
	cart.AbandonedAt = observedAt
	return true, nil
}

func (m *memStore) CartExists(_ context.Context, shop, cartToken string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.carts[cartKey(shop, cartToken)]
	return ok, nil
}

func (m *memStore) FindCartForRecovery(_ context.Context, shop, customerEmail string) (*models.Cart, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.findErr != nil {
		return nil, m.findErr
	}

	shop = strings.ToLower(strings.TrimSpace(shop))
	var best *models.Cart
	for _, cart := range m.carts {
		if cart.Shop != shop || cart.CustomerEmail != customerEmail || cart.Status != models.CartStatusAbandoned {
			continue
		}
		if best == nil ||
			cart.AbandonedAt.After(best.AbandonedAt) ||
			(cart.AbandonedAt.Equal(best.AbandonedAt) && cart.ID > best.ID) {
			best = cart
		}
	}
	if best == nil {
		return nil, nil
	}
	copied := *best
	return &copied, nil
}

func (m *memStore) MarkCartRecovered(_ context.Context, cartID int64, recoveredAt time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, cart := range m.carts {
		if cart.ID == cartID {
			if cart.Status != models.CartStatusAbandoned {
				return false, nil
			}
			cart.Status = models.CartStatusRecovered
			at := recoveredAt
			cart.RecoveredAt = &at
			return true, nil
		}
	}
	return false, nil
}

func (m *memStore) DeactivateShop(_ context.Context, domain string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deactivated[strings.ToLower(strings.TrimSpace(domain))] = true
	return nil
}

func (m *memStore) cartCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.carts)
}

func (m *memStore) get(shop, token string) *models.Cart {
	m.mu.Lock()
	defer m.mu.Unlock()
	cart, ok := m.carts[cartKey(shop, token)]
	if !ok {
		return nil
	}
	copied := *cart
	return &copied
}

// fakeDeduper remembers delivery ids in memory
type fakeDeduper struct {
	mu   sync.Mutex
	seen map[string]bool
	err  error
}

func (f *fakeDeduper) DeliverySeen(_ context.Context, deliveryID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return false, f.err
	}
	return f.seen[deliveryID], nil
}

func (f *fakeDeduper) MarkDeliverySeen(_ context.Context, deliveryID string, _ time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return false, f.err
	}
	if f.seen == nil {
		f.seen = make(map[string]bool)
	}
	if f.seen[deliveryID] {
		return true, nil
	}
	f.seen[deliveryID] = true
	return false, nil
}

// recordingSink captures activity events for assertions
type recordingSink struct {
	mu     sync.Mutex
	events []activity.Event
}

func (r *recordingSink) Record(_ context.Context, event activity.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *recordingSink) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	types := make([]string, 0, len(r.events))
	for _, event := range r.events {
		types = append(types, event.Type)
	}
	return types
}

var errBoom = fmt.Errorf("boom")
