package api

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"cartsaver/internal/auth"
	"cartsaver/internal/models"
	"cartsaver/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testSecret = "webhook-test-secret"
	testDomain = "demo.myshopify.com"
)

// stubCartStore implements just enough of the store contract for the
// ingestion handlers
type stubCartStore struct {
	mu    sync.Mutex
	carts map[string]*models.Cart
}

func newStubCartStore() *stubCartStore {
	return &stubCartStore{carts: make(map[string]*models.Cart)}
}

func (s *stubCartStore) CreateCartIfAbsent(_ context.Context, cart *models.Cart) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := cart.Shop + "|" + cart.CartToken
	if _, ok := s.carts[key]; ok {
		return false, nil
	}
	stored := *cart
	stored.ID = int64(len(s.carts) + 1)
	s.carts[key] = &stored
	return true, nil
}

func (s *stubCartStore) UpdateCartIfPresent(_ context.Context, shop, cartToken string, patch models.CartPatch) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cart, ok := s.carts[shop+"|"+cartToken]
	if !ok {
		return false, nil
	}
	cart.Items = patch.Items
	cart.TotalPrice = patch.TotalPrice
	return true, nil
}

func (s *stubCartStore) CartExists(_ context.Context, shop, cartToken string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.carts[shop+"|"+cartToken]
	return ok, nil
}

func (s *stubCartStore) FindCartForRecovery(_ context.Context, shop, customerEmail string) (*models.Cart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, cart := range s.carts {
		if cart.Shop == shop && cart.CustomerEmail == customerEmail && cart.Status == models.CartStatusAbandoned {
			copied := *cart
			return &copied, nil
		}
	}
	return nil, nil
}

func (s *stubCartStore) MarkCartRecovered(_ context.Context, cartID int64, recoveredAt time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, cart := range s.carts {
		if cart.ID == cartID {
			cart.Status = models.CartStatusRecovered
			at := recoveredAt
			cart.RecoveredAt = &at
			return true, nil
		}
	}
	return false, nil
}

func (s *stubCartStore) DeactivateShop(context.Context, string) error { return nil }

func (s *stubCartStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.carts)
}

func newWebhookRouter(store *stubCartStore) *gin.Engine {
	gin.SetMode(gin.TestMode)

	webhookService := service.NewWebhookService(store, store, nil, time.Hour, nil)
	jwtService := auth.NewJWTService("test-jwt-secret", time.Hour)
	handler := NewHandler(nil, nil, nil, webhookService, nil, jwtService, testSecret, 50)

	router := gin.New()
	router.POST("/api/webhooks", handler.handleWebhook)
	return router
}

func sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func postWebhook(router *gin.Engine, topic, signature string, body []byte) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/webhooks", bytes.NewReader(body))
	req.Header.Set(headerTopic, topic)
	req.Header.Set(headerShopDomain, testDomain)
	if signature != "" {
		req.Header.Set(headerHmac, signature)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func validCheckoutBody() []byte {
	return []byte(`{
		"token": "tok-1",
		"email": "jane@example.com",
		"line_items": [{"product_id": 1, "variant_id": 2, "title": "Mug", "quantity": 1, "price": "10.00"}],
		"total_price": "10.00",
		"currency": "USD"
	}`)
}

func TestWebhookValidSignatureProcessed(t *testing.T) {
	store := newStubCartStore()
	router := newWebhookRouter(store)

	body := validCheckoutBody()
	w := postWebhook(router, "checkouts/create", sign(testSecret, body), body)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, store.count())
}

func TestWebhookInvalidSignatureAckedNotProcessed(t *testing.T) {
	store := newStubCartStore()
	router := newWebhookRouter(store)

	body := validCheckoutBody()
	w := postWebhook(router, "checkouts/create", sign("wrong-secret", body), body)

	assert.Equal(t, http.StatusOK, w.Code, "forgeries are acknowledged, not failed")
	assert.Equal(t, 0, store.count())
}

func TestWebhookMissingSignatureAckedNotProcessed(t *testing.T) {
	store := newStubCartStore()
	router := newWebhookRouter(store)

	body := validCheckoutBody()
	w := postWebhook(router, "checkouts/create", "", body)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 0, store.count())
}

func TestWebhookSignatureCoversExactBytes(t *testing.T) {
	store := newStubCartStore()
	router := newWebhookRouter(store)

	body := validCheckoutBody()
	signature := sign(testSecret, body)

	// Whitespace change reserializes the payload without changing its
	// JSON meaning. The signature is over raw bytes, so it must fail.
	tampered := bytes.ReplaceAll(body, []byte("\t"), []byte(" "))
	require.NotEqual(t, body, tampered)

	w := postWebhook(router, "checkouts/create", signature, tampered)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 0, store.count())
}

func TestWebhookUnknownTopicAcked(t *testing.T) {
	store := newStubCartStore()
	router := newWebhookRouter(store)

	body := []byte(`{"id": 1}`)
	w := postWebhook(router, "products/create", sign(testSecret, body), body)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 0, store.count())
}

func TestWebhookPreconditionFailureAcked(t *testing.T) {
	store := newStubCartStore()
	router := newWebhookRouter(store)

	body := []byte(`{"token": "tok-2", "email": "jane@example.com", "line_items": [], "total_price": "0.00"}`)
	w := postWebhook(router, "checkouts/create", sign(testSecret, body), body)

	assert.Equal(t, http.StatusOK, w.Code, "terminal no-ops must not trigger redelivery")
	assert.Equal(t, 0, store.count())
}

func TestWebhookMalformedPayloadAcked(t *testing.T) {
	store := newStubCartStore()
	router := newWebhookRouter(store)

	body := []byte(`{not json`)
	w := postWebhook(router, "checkouts/create", sign(testSecret, body), body)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 0, store.count())
}

func TestWebhookRedeliveryIdempotent(t *testing.T) {
	store := newStubCartStore()
	router := newWebhookRouter(store)

	body := validCheckoutBody()
	signature := sign(testSecret, body)

	for i := 0; i < 3; i++ {
		w := postWebhook(router, "checkouts/create", signature, body)
		assert.Equal(t, http.StatusOK, w.Code)
	}
	assert.Equal(t, 1, store.count())
}

func TestSetupRoutes(t *testing.T) {
	gin.SetMode(gin.TestMode)

	store := newStubCartStore()
	webhookService := service.NewWebhookService(store, store, nil, time.Hour, nil)
	jwtService := auth.NewJWTService("test-jwt-secret", time.Hour)
	handler := NewHandler(nil, nil, nil, webhookService, nil, jwtService, testSecret, 50)

	router := gin.New()
	handler.SetupRoutes(router)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/carts", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code, "dashboard routes sit behind auth")
}

func TestAuthMiddlewareRejectsMissingToken(t *testing.T) {
	gin.SetMode(gin.TestMode)

	jwtService := auth.NewJWTService("test-jwt-secret", time.Hour)
	handler := NewHandler(nil, nil, nil, nil, nil, jwtService, testSecret, 50)

	router := gin.New()
	router.GET("/api/protected", handler.authMiddleware(), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"shop": shopFromContext(c)})
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/protected", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/protected", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthMiddlewareScopesShop(t *testing.T) {
	gin.SetMode(gin.TestMode)

	jwtService := auth.NewJWTService("test-jwt-secret", time.Hour)
	handler := NewHandler(nil, nil, nil, nil, nil, jwtService, testSecret, 50)

	router := gin.New()
	router.GET("/api/protected", handler.authMiddleware(), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"shop": shopFromContext(c)})
	})

	token, _, err := jwtService.GenerateToken("Demo.MyShopify.com")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"shop":"demo.myshopify.com"`)
}
