package controllers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	apperrors "hardline-backend/common/errors"
	"hardline-backend/controllers"
	"hardline-backend/models"
	"hardline-backend/services"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const frontendURL = "https://shop.example.com"

var testOrigins = controllers.NewOriginPolicy(frontendURL, []string{"*", "https://store.example.com", "https://proxy.example.com/"})

func okSession(_ context.Context, _ models.Identity, _ models.CheckoutRequest, _ string) (*models.CheckoutSession, *apperrors.Error) {
	return &models.CheckoutSession{SessionID: "cs_test_abc", URL: "https://checkout.stripe.com/c/pay/cs_test_abc"}, nil
}

func setupCheckoutRouter(checkout *mockCheckoutService, reconcile *mockReconcileService, identity *models.Identity) *gin.Engine {
	r := gin.New()
	if identity != nil {
		r.Use(withIdentity(*identity))
	}
	cc := controllers.NewCheckoutController(checkout, reconcile, testOrigins, zap.NewNop())
	r.POST("/api/checkout/session", cc.CreateSession)
	r.GET("/api/checkout/success", cc.Success)
	return r
}

func postJSON(r *gin.Engine, path string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	b, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBuffer(b))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestCreateSession_Unauthenticated(t *testing.T) {
	checkout := &mockCheckoutService{createFn: okSession}
	r := setupCheckoutRouter(checkout, nil, nil)

	w := postJSON(r, "/api/checkout/session", gin.H{"items": []gin.H{{"id": "a", "name": "Router", "price": 10}}}, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, 0, checkout.calls)
}

func TestCreateSession_Success(t *testing.T) {
	checkout := &mockCheckoutService{createFn: okSession}
	id := customer()
	r := setupCheckoutRouter(checkout, nil, &id)

	w := postJSON(r, "/api/checkout/session", gin.H{
		"items":     []gin.H{{"id": "a", "name": "Router", "price": 10.5, "quantity": 2}},
		"userEmail": "buyer@example.com",
		"userInfo":  gin.H{"fullName": "Jane Doe", "phone": "555"},
	}, map[string]string{"Origin": "https://store.example.com"})

	require.Equal(t, http.StatusOK, w.Code)
	var resp map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "cs_test_abc", resp["session_id"])
	assert.Equal(t, "https://checkout.stripe.com/c/pay/cs_test_abc", resp["url"])

	assert.Equal(t, "https://store.example.com", checkout.origin)
	require.Len(t, checkout.req.Items, 1)
	assert.Equal(t, "10.5", checkout.req.Items[0].Price.String())
	assert.Equal(t, "Jane Doe", checkout.req.UserInfo.FullName)
}

func TestCreateSession_OriginFallbacks(t *testing.T) {
	checkout := &mockCheckoutService{createFn: okSession}
	id := customer()
	r := setupCheckoutRouter(checkout, nil, &id)
	body := gin.H{"items": []gin.H{{"id": "a", "name": "Router", "price": 10}}}

	postJSON(r, "/api/checkout/session", body, map[string]string{"X-Forwarded-Proto": "https", "X-Forwarded-Host": "proxy.example.com"})
	assert.Equal(t, "https://proxy.example.com", checkout.origin)

	postJSON(r, "/api/checkout/session", body, nil)
	assert.Equal(t, frontendURL, checkout.origin)
}

func TestCreateSession_UnlistedOriginFallsBackToFrontend(t *testing.T) {
	checkout := &mockCheckoutService{createFn: okSession}
	id := customer()
	r := setupCheckoutRouter(checkout, nil, &id)
	body := gin.H{"items": []gin.H{{"id": "a", "name": "Router", "price": 10}}}

	postJSON(r, "/api/checkout/session", body, map[string]string{"Origin": "https://evil.example.net"})
	assert.Equal(t, frontendURL, checkout.origin)

	postJSON(r, "/api/checkout/session", body, map[string]string{"X-Forwarded-Proto": "https", "X-Forwarded-Host": "evil.example.net"})
	assert.Equal(t, frontendURL, checkout.origin)

	// a rejected Origin header still lets an allowed forwarded host through
	postJSON(r, "/api/checkout/session", body, map[string]string{
		"Origin":            "https://evil.example.net",
		"X-Forwarded-Proto": "https",
		"X-Forwarded-Host":  "proxy.example.com",
	})
	assert.Equal(t, "https://proxy.example.com", checkout.origin)
}

func TestCreateSession_ServiceErrors(t *testing.T) {
	id := customer()

	checkout := &mockCheckoutService{createFn: func(context.Context, models.Identity, models.CheckoutRequest, string) (*models.CheckoutSession, *apperrors.Error) {
		return nil, apperrors.BadRequest("No items in cart")
	}}
	w := postJSON(setupCheckoutRouter(checkout, nil, &id), "/api/checkout/session", gin.H{"items": []gin.H{}}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"No items in cart"}`, w.Body.String())

	checkout = &mockCheckoutService{createFn: func(context.Context, models.Identity, models.CheckoutRequest, string) (*models.CheckoutSession, *apperrors.Error) {
		return nil, apperrors.Upstream("Invalid API Key provided", nil)
	}}
	w = postJSON(setupCheckoutRouter(checkout, nil, &id), "/api/checkout/session", gin.H{"items": []gin.H{{"id": "a", "name": "Router", "price": 10}}}, nil)
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.JSONEq(t, `{"error":"Invalid API Key provided"}`, w.Body.String())
}

func TestCreateSession_MalformedBody(t *testing.T) {
	checkout := &mockCheckoutService{createFn: okSession}
	id := customer()
	r := setupCheckoutRouter(checkout, nil, &id)

	req := httptest.NewRequest(http.MethodPost, "/api/checkout/session", bytes.NewBufferString("{"))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, 0, checkout.calls)
}

func TestSuccess_States(t *testing.T) {
	id := customer()
	reconcile := &mockReconcileService{reconcileFn: func(_ context.Context, _ models.Identity, sessionID string) (*services.ReconcileResult, *apperrors.Error) {
		if sessionID == "" {
			return &services.ReconcileResult{State: services.StateError, RedirectTo: "/", RedirectAfterMs: 3000}, nil
		}
		return &services.ReconcileResult{State: services.StateFallbackSuccess, SessionID: sessionID, CartCleared: true}, nil
	}}
	r := setupCheckoutRouter(&mockCheckoutService{createFn: okSession}, reconcile, &id)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/checkout/success", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), `"redirect_to":"/"`)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/checkout/success?session_id=cs_1", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var res services.ReconcileResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.Equal(t, services.StateFallbackSuccess, res.State)
	assert.True(t, res.CartCleared)
}

func TestCartCheckout_UsesStoredCart(t *testing.T) {
	id := customer()
	carts := &mockCartService{}
	checkout := &mockCheckoutService{createFn: okSession}

	r := gin.New()
	r.Use(withIdentity(id))
	cc := controllers.NewCartController(carts, checkout, testOrigins, zap.NewNop())
	r.POST("/api/cart/items", cc.AddItem)
	r.POST("/api/cart/checkout", cc.Checkout)
	r.GET("/api/cart", cc.GetCart)

	w := postJSON(r, "/api/cart/items", gin.H{"id": "a", "name": "Router", "price": 10}, nil)
	require.Equal(t, http.StatusOK, w.Code)
	postJSON(r, "/api/cart/items", gin.H{"id": "a", "name": "Router", "price": 10}, nil)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/cart", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"total_items":2`)
	assert.Contains(t, w.Body.String(), `"total_price":"20"`)

	w = postJSON(r, "/api/cart/checkout", gin.H{"userInfo": gin.H{"fullName": "Jane Doe"}}, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, checkout.req.Items, 1)
	assert.Equal(t, 2, checkout.req.Items[0].Quantity)
	assert.Equal(t, "Jane Doe", checkout.req.UserInfo.FullName)
	assert.NotNil(t, carts.cart, "checkout must not clear the cart")
}
